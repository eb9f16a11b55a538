package actuator

import (
	"fmt"

	"github.com/itohio/gopowder/pkg/fault"
)

// Direction is the auger rotation: 0 or 1.
type Direction int

const (
	Forward Direction = 0
	Reverse Direction = 1
)

// Stepper is the dispenser motor driver.
type Stepper interface {
	Enable() error
	Disable() error
	Step(count int, dir int) error
}

// Dispenser tracks the enable flag and direction of the powder dispenser.
// Dispense does not check Enabled; callers decide whether to enforce it.
type Dispenser struct {
	stepper Stepper
	enabled bool
	dir     Direction
}

// NewDispenser wraps a stepper. The dispenser starts disabled.
func NewDispenser(s Stepper) *Dispenser {
	return &Dispenser{stepper: s}
}

// Enable energizes the stepper driver.
func (d *Dispenser) Enable() error {
	if err := d.stepper.Enable(); err != nil {
		return fault.New(fault.Recoverable, "dispenser enable", err)
	}
	d.enabled = true
	return nil
}

// Disable releases the stepper driver.
func (d *Dispenser) Disable() error {
	d.enabled = false
	if err := d.stepper.Disable(); err != nil {
		return fault.New(fault.Recoverable, "dispenser disable", err)
	}
	return nil
}

// Enabled reports whether Enable was called last.
func (d *Dispenser) Enabled() bool { return d.enabled }

// Direction returns the last accepted direction.
func (d *Dispenser) Direction() Direction { return d.dir }

// SetDirection accepts 0 or 1. Any other value disables the dispenser and
// returns a ConfigInvalid fault.
func (d *Dispenser) SetDirection(dir int) error {
	if dir != int(Forward) && dir != int(Reverse) {
		_ = d.Disable()
		return fault.New(fault.ConfigInvalid, "dispenser direction", fmt.Errorf("%w: %d", ErrInvalidDirection, dir))
	}
	d.dir = Direction(dir)
	return nil
}

// Dispense sets the direction and hands steps to the stepper immediately.
func (d *Dispenser) Dispense(steps, dir int) error {
	if err := d.SetDirection(dir); err != nil {
		return err
	}
	if err := d.stepper.Step(steps, int(d.dir)); err != nil {
		return fault.New(fault.Recoverable, "dispense", err)
	}
	return nil
}
