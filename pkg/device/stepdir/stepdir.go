// Package stepdir drives a step/direction stepper driver from three GPIO
// lines.
package stepdir

import (
	"errors"
	"time"

	"github.com/itohio/gopowder/pkg/actuator"
)

// DefaultPulse is the step high time and the gap between steps.
const DefaultPulse = 500 * time.Microsecond

var ErrSteps = errors.New("stepdir: negative step count")

// Config describes the wiring.
type Config struct {
	Step   actuator.Pin
	Dir    actuator.Pin
	Enable actuator.Pin // optional

	// EnableActiveLow drives Enable low to energize the coils.
	EnableActiveLow bool
	// Pulse defaults to DefaultPulse.
	Pulse time.Duration
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Driver implements actuator.Stepper.
type Driver struct {
	cfg Config
}

// New creates a driver. Call Disable to put the enable line in a known state.
func New(cfg Config) *Driver {
	if cfg.Pulse <= 0 {
		cfg.Pulse = DefaultPulse
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Driver{cfg: cfg}
}

// Begin leaves the driver de-energized.
func (d *Driver) Begin() error {
	d.cfg.Step.Low()
	return d.Disable()
}

func (d *Driver) Enable() error {
	d.setEnable(true)
	return nil
}

func (d *Driver) Disable() error {
	d.setEnable(false)
	return nil
}

func (d *Driver) setEnable(on bool) {
	if d.cfg.Enable == nil {
		return
	}
	if on != d.cfg.EnableActiveLow {
		d.cfg.Enable.High()
	} else {
		d.cfg.Enable.Low()
	}
}

// Step pulses the step line count times; dir 1 drives the direction line high.
func (d *Driver) Step(count int, dir int) error {
	if count < 0 {
		return ErrSteps
	}
	if dir == 1 {
		d.cfg.Dir.High()
	} else {
		d.cfg.Dir.Low()
	}
	for i := 0; i < count; i++ {
		d.cfg.Step.High()
		d.cfg.Sleep(d.cfg.Pulse)
		d.cfg.Step.Low()
		d.cfg.Sleep(d.cfg.Pulse)
	}
	return nil
}
