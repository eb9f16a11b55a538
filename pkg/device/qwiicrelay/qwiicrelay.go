// Package qwiicrelay drives a SparkFun Qwiic single relay over I2C.
package qwiicrelay

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// Default addresses; the jumper selects the alternate one.
const (
	Address          = 0x18
	AlternateAddress = 0x19
)

const (
	cmdOff     = 0x00
	cmdOn      = 0x01
	cmdVersion = 0x04
	cmdStatus  = 0x05
)

var ErrNotDetected = errors.New("qwiicrelay: not detected")

// Device is one relay board.
type Device struct {
	bus     drivers.I2C
	Address uint16

	w [1]byte
	r [1]byte
}

// New creates a relay at addr; zero selects Address.
func New(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = Address
	}
	return &Device{bus: bus, Address: addr}
}

// Begin checks that the board answers.
func (d *Device) Begin() error {
	if _, err := d.Version(); err != nil {
		return fmt.Errorf("%w at 0x%02x: %v", ErrNotDetected, d.Address, err)
	}
	return nil
}

// Version returns the board firmware version.
func (d *Device) Version() (byte, error) {
	return d.query(cmdVersion)
}

// On closes the relay.
func (d *Device) On() error { return d.command(cmdOn) }

// Off opens the relay.
func (d *Device) Off() error { return d.command(cmdOff) }

// State reports whether the relay is closed.
func (d *Device) State() (bool, error) {
	v, err := d.query(cmdStatus)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *Device) command(c byte) error {
	d.w[0] = c
	if err := d.bus.Tx(d.Address, d.w[:], nil); err != nil {
		return fmt.Errorf("qwiicrelay 0x%02x: %w", d.Address, err)
	}
	return nil
}

func (d *Device) query(c byte) (byte, error) {
	d.w[0] = c
	if err := d.bus.Tx(d.Address, d.w[:], d.r[:]); err != nil {
		return 0, fmt.Errorf("qwiicrelay 0x%02x: %w", d.Address, err)
	}
	return d.r[0], nil
}
