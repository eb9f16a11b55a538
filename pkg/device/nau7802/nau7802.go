// Package nau7802 provides a driver for the NAU7802 24-bit load-cell ADC.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided.
package nau7802

import (
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

// I2C address.
const Address = 0x2A

// Registers.
const (
	regPUCtrl   = 0x00
	regCtrl1    = 0x01
	regCtrl2    = 0x02
	regADCOB2   = 0x12
	regADC      = 0x15
	regPGA      = 0x1B
	regPower    = 0x1C
	regRevision = 0x1F
)

// PU_CTRL bits.
const (
	puRR    = 1 << 0 // register reset
	puPUD   = 1 << 1 // power up digital
	puPUA   = 1 << 2 // power up analog
	puPUR   = 1 << 3 // power up ready
	puCS    = 1 << 4 // cycle start
	puCR    = 1 << 5 // cycle ready
	puAVDDS = 1 << 7 // internal LDO
)

// CTRL2 bits.
const (
	ctrl2CALS   = 1 << 2
	ctrl2CALErr = 1 << 3
	ctrl2CRS    = 0x70
	ctrl1Gain   = 0x07
	ctrl1VLDO   = 0x38

	adcClkChpOff = 0x30
	powerPGACap  = 1 << 7
)

var (
	ErrNotDetected = errors.New("nau7802: not detected")
	ErrTimeout     = errors.New("nau7802: timeout")
	ErrCalibration = errors.New("nau7802: afe calibration failed")
	ErrSampleRate  = errors.New("nau7802: unsupported sample rate")
	ErrGain        = errors.New("nau7802: unsupported gain")
	ErrLDO         = errors.New("nau7802: unsupported ldo voltage")
)

var rateCodes = map[int]byte{10: 0, 20: 1, 40: 2, 80: 3, 320: 7}

var gainCodes = map[int]byte{1: 0, 2: 1, 4: 2, 8: 3, 16: 4, 32: 5, 64: 6, 128: 7}

var ldoCodes = map[int]byte{
	2400: 7, 2700: 6, 3000: 5, 3300: 4,
	3600: 3, 3900: 2, 4200: 1, 4500: 0,
}

// Device wraps an I2C connection to a NAU7802.
type Device struct {
	bus     drivers.I2C
	Address uint16

	// Sleep waits between status polls; defaults to time.Sleep.
	Sleep func(time.Duration)
	// Timeout bounds power-up and calibration polling.
	Timeout time.Duration

	w [2]byte
	r [3]byte
}

// New creates a device on bus. It does not touch the hardware.
func New(bus drivers.I2C) *Device {
	return &Device{
		bus:     bus,
		Address: Address,
		Sleep:   time.Sleep,
		Timeout: time.Second,
	}
}

// Begin resets the chip, powers it up and applies the recommended analog
// settings.
func (d *Device) Begin() error {
	rev, err := d.read(regRevision)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotDetected, err)
	}
	if rev&0x0F != 0x0F {
		return fmt.Errorf("%w: revision 0x%02x", ErrNotDetected, rev)
	}

	if err := d.write(regPUCtrl, puRR); err != nil {
		return err
	}
	if err := d.write(regPUCtrl, puPUD); err != nil {
		return err
	}
	if err := d.PowerUp(); err != nil {
		return err
	}
	if err := d.update(regADC, adcClkChpOff, adcClkChpOff); err != nil {
		return err
	}
	return d.update(regPower, powerPGACap, powerPGACap)
}

// SetSampleRate selects the conversion rate in samples per second.
func (d *Device) SetSampleRate(sps int) error {
	code, ok := rateCodes[sps]
	if !ok {
		return fmt.Errorf("%w: %d", ErrSampleRate, sps)
	}
	return d.update(regCtrl2, ctrl2CRS, code<<4)
}

// SetGain selects the PGA gain.
func (d *Device) SetGain(gain int) error {
	code, ok := gainCodes[gain]
	if !ok {
		return fmt.Errorf("%w: %d", ErrGain, gain)
	}
	return d.update(regCtrl1, ctrl1Gain, code)
}

// SetLDO selects the internal LDO output in millivolts and enables it.
func (d *Device) SetLDO(millivolts int) error {
	code, ok := ldoCodes[millivolts]
	if !ok {
		return fmt.Errorf("%w: %d mV", ErrLDO, millivolts)
	}
	if err := d.update(regPUCtrl, puAVDDS, puAVDDS); err != nil {
		return err
	}
	return d.update(regCtrl1, ctrl1VLDO, code<<3)
}

// CalibrateAFE runs the internal offset calibration and waits for it.
func (d *Device) CalibrateAFE() error {
	if err := d.update(regCtrl2, ctrl2CALS|0x03, ctrl2CALS); err != nil {
		return err
	}
	v, err := d.poll(regCtrl2, ctrl2CALS, 0)
	if err != nil {
		return err
	}
	if v&ctrl2CALErr != 0 {
		return ErrCalibration
	}
	return nil
}

// PowerUp powers the digital and analog sections and starts conversions.
func (d *Device) PowerUp() error {
	if err := d.update(regPUCtrl, puPUD|puPUA, puPUD|puPUA); err != nil {
		return err
	}
	if _, err := d.poll(regPUCtrl, puPUR, puPUR); err != nil {
		return err
	}
	return d.update(regPUCtrl, puCS, puCS)
}

// PowerDown stops the chip.
func (d *Device) PowerDown() error {
	return d.update(regPUCtrl, puPUD|puPUA, 0)
}

// Available reports whether a new conversion is ready.
func (d *Device) Available() (bool, error) {
	v, err := d.read(regPUCtrl)
	if err != nil {
		return false, err
	}
	return v&puCR != 0, nil
}

// Reading returns the latest conversion as a signed 24-bit value.
func (d *Device) Reading() (int32, error) {
	d.w[0] = regADCOB2
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:3]); err != nil {
		return 0, err
	}
	u := uint32(d.r[0])<<16 | uint32(d.r[1])<<8 | uint32(d.r[2])
	return int32(u<<8) >> 8, nil
}

func (d *Device) read(reg byte) (byte, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.Address, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) write(reg, v byte) error {
	d.w[0] = reg
	d.w[1] = v
	return d.bus.Tx(d.Address, d.w[:2], nil)
}

// update replaces the bits in mask with v.
func (d *Device) update(reg, mask, v byte) error {
	cur, err := d.read(reg)
	if err != nil {
		return err
	}
	return d.write(reg, cur&^mask|v&mask)
}

// poll waits until reg&mask == want.
func (d *Device) poll(reg, mask, want byte) (byte, error) {
	const step = time.Millisecond
	for waited := time.Duration(0); ; waited += step {
		v, err := d.read(reg)
		if err != nil {
			return 0, err
		}
		if v&mask == want {
			return v, nil
		}
		if waited >= d.Timeout {
			return v, fmt.Errorf("%w: register 0x%02x", ErrTimeout, reg)
		}
		d.Sleep(step)
	}
}
