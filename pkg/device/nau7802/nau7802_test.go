package nau7802

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*fakeBus)(nil)

// fakeBus emulates the register file: power-up sets PUR and calibration
// completes immediately.
type fakeBus struct {
	regs    [0x20]byte
	writes  [][2]byte
	fail    error
	calErr  bool
	stuckPU bool
}

func newFakeBus() *fakeBus {
	b := &fakeBus{}
	b.regs[regRevision] = 0x0F
	return b
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if b.fail != nil {
		return b.fail
	}
	if addr != Address || len(w) == 0 {
		return errors.New("nack")
	}
	reg := w[0]
	if len(w) == 2 {
		b.writes = append(b.writes, [2]byte{reg, w[1]})
		v := w[1]
		switch reg {
		case regPUCtrl:
			if v&puPUD != 0 && !b.stuckPU {
				v |= puPUR
			} else {
				v &^= puPUR
			}
		case regCtrl2:
			if v&ctrl2CALS != 0 {
				v &^= ctrl2CALS
				if b.calErr {
					v |= ctrl2CALErr
				}
			}
		}
		b.regs[reg] = v
	}
	for i := range r {
		r[i] = b.regs[int(reg)+i]
	}
	return nil
}

func newDevice(b *fakeBus) *Device {
	d := New(b)
	d.Sleep = func(time.Duration) {}
	d.Timeout = 5 * time.Millisecond
	return d
}

func TestBegin(t *testing.T) {
	b := newFakeBus()
	d := newDevice(b)

	require.NoError(t, d.Begin())

	require.GreaterOrEqual(t, len(b.writes), 2)
	assert.Equal(t, [2]byte{regPUCtrl, puRR}, b.writes[0], "begin starts with a register reset")
	assert.Equal(t, [2]byte{regPUCtrl, puPUD}, b.writes[1])
	assert.NotZero(t, b.regs[regPUCtrl]&puPUA)
	assert.NotZero(t, b.regs[regPUCtrl]&puCS)
	assert.Equal(t, byte(adcClkChpOff), b.regs[regADC]&adcClkChpOff)
	assert.NotZero(t, b.regs[regPower]&powerPGACap)
}

func TestBegin_NotDetected(t *testing.T) {
	b := newFakeBus()
	b.fail = errors.New("nack")
	assert.ErrorIs(t, newDevice(b).Begin(), ErrNotDetected)

	b = newFakeBus()
	b.regs[regRevision] = 0x00
	assert.ErrorIs(t, newDevice(b).Begin(), ErrNotDetected)
}

func TestPowerUp_Timeout(t *testing.T) {
	b := newFakeBus()
	b.stuckPU = true
	assert.ErrorIs(t, newDevice(b).PowerUp(), ErrTimeout)
}

func TestConfigure(t *testing.T) {
	b := newFakeBus()
	d := newDevice(b)

	require.NoError(t, d.SetSampleRate(320))
	assert.Equal(t, byte(0x70), b.regs[regCtrl2]&ctrl2CRS)
	require.NoError(t, d.SetSampleRate(40))
	assert.Equal(t, byte(0x20), b.regs[regCtrl2]&ctrl2CRS)

	require.NoError(t, d.SetGain(128))
	assert.Equal(t, byte(7), b.regs[regCtrl1]&ctrl1Gain)

	require.NoError(t, d.SetLDO(3000))
	assert.Equal(t, byte(5<<3), b.regs[regCtrl1]&ctrl1VLDO)
	assert.Equal(t, byte(7), b.regs[regCtrl1]&ctrl1Gain, "ldo leaves the gain bits alone")
	assert.NotZero(t, b.regs[regPUCtrl]&puAVDDS)

	assert.ErrorIs(t, d.SetSampleRate(33), ErrSampleRate)
	assert.ErrorIs(t, d.SetGain(3), ErrGain)
	assert.ErrorIs(t, d.SetLDO(5000), ErrLDO)
}

func TestCalibrateAFE(t *testing.T) {
	b := newFakeBus()
	require.NoError(t, newDevice(b).CalibrateAFE())

	b = newFakeBus()
	b.calErr = true
	assert.ErrorIs(t, newDevice(b).CalibrateAFE(), ErrCalibration)
}

func TestPowerDown(t *testing.T) {
	b := newFakeBus()
	d := newDevice(b)
	require.NoError(t, d.PowerUp())
	require.NoError(t, d.PowerDown())
	assert.Zero(t, b.regs[regPUCtrl]&(puPUD|puPUA))
}

func TestReading_SignExtends(t *testing.T) {
	tests := []struct {
		raw  [3]byte
		want int32
	}{
		{raw: [3]byte{0x06, 0x6F, 0x67}, want: 421735},
		{raw: [3]byte{0xFF, 0xFF, 0xFF}, want: -1},
		{raw: [3]byte{0x80, 0x00, 0x00}, want: -8388608},
		{raw: [3]byte{0x7F, 0xFF, 0xFF}, want: 8388607},
	}

	for _, tt := range tests {
		b := newFakeBus()
		copy(b.regs[regADCOB2:], tt.raw[:])
		got, err := newDevice(b).Reading()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestAvailable(t *testing.T) {
	b := newFakeBus()
	d := newDevice(b)

	ok, err := d.Available()
	require.NoError(t, err)
	assert.False(t, ok)

	b.regs[regPUCtrl] |= puCR
	ok, err = d.Available()
	require.NoError(t, err)
	assert.True(t, ok)
}
