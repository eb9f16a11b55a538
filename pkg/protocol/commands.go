package protocol

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/itohio/gopowder/pkg/fault"
	"github.com/itohio/gopowder/pkg/filter"
	"github.com/itohio/gopowder/pkg/scale"
)

// ErrDispenserDisabled is reported when Dispense arrives before DispenserOn
// and the enable check is enforced.
var ErrDispenserDisabled = errors.New("dispenser disabled")

// Scale is the part of the scale model the commands use.
type Scale interface {
	On() error
	Off() error
	Running() bool
	Tare() error
	SetCalibration(slope, intercept float32) error
	Weight(samples int, kind filter.Kind, timeout time.Duration) (scale.Reading, error)
	Raw(samples int, kind filter.Kind, timeout time.Duration) (scale.Reading, error)
}

// Actuators runs the timed devices.
type Actuators interface {
	Mix(ctx context.Context, seconds float32) error
	DrainFor(ctx context.Context, seconds float32) error
	Pump(ctx context.Context, pin int, seconds float32) error
}

// Dispenser steps the powder auger.
type Dispenser interface {
	Enable() error
	Disable() error
	Enabled() bool
	SetDirection(dir int) error
	Dispense(steps, dir int) error
}

// Deps are the devices behind the standard command set.
type Deps struct {
	Scale     Scale
	Actuators Actuators
	Dispenser Dispenser

	// RequireEnabled rejects Dispense while the dispenser is disabled.
	RequireEnabled bool
	// Timeout bounds averaging in Meas and ADC; defaults to scale.DefaultTimeout.
	Timeout time.Duration
}

// RegisterCommands binds the standard command set to d.
func RegisterCommands(d *Dispatcher, deps Deps) {
	if deps.Timeout <= 0 {
		deps.Timeout = scale.DefaultTimeout
	}
	c := &commands{Deps: deps}

	d.Register("Mix", c.mix)
	d.Register("Drain", c.drain)
	d.Register("Pump", c.pump)
	d.Register("Dispense", c.dispense)
	d.Register("DispenserOn", c.simple(deps.Dispenser.Enable))
	d.Register("DispenserOff", c.simple(deps.Dispenser.Disable))
	d.Register("ScaleOn", c.simple(deps.Scale.On))
	d.Register("ScaleOff", c.simple(deps.Scale.Off))
	d.Register("Meas", c.measure(TagWeight, deps.Scale.Weight))
	d.Register("ADC", c.measure(TagADC, deps.Scale.Raw))
	d.Register("Tare", c.tare)
	d.Register("Calibrate", c.calibrate)
}

type commands struct {
	Deps
}

func (c *commands) simple(fn func() error) HandlerFunc {
	return func(_ context.Context, _ Command, r *Replier) error {
		if err := fn(); err != nil {
			return err
		}
		return r.Echo()
	}
}

func (c *commands) mix(ctx context.Context, cmd Command, r *Replier) error {
	seconds, err := cmd.Float(0)
	if err != nil {
		return err
	}
	if err := c.Actuators.Mix(ctx, seconds); err != nil {
		return err
	}
	return r.Echo()
}

func (c *commands) drain(ctx context.Context, cmd Command, r *Replier) error {
	seconds, err := cmd.Float(0)
	if err != nil {
		return err
	}
	if err := c.Actuators.DrainFor(ctx, seconds); err != nil {
		return err
	}
	return r.Echo()
}

func (c *commands) pump(ctx context.Context, cmd Command, r *Replier) error {
	pin, err := cmd.Int(0)
	if err != nil {
		return err
	}
	seconds, err := cmd.Float(1)
	if err != nil {
		return err
	}
	if err := c.Actuators.Pump(ctx, pin, seconds); err != nil {
		return err
	}
	return r.Echo()
}

func (c *commands) dispense(_ context.Context, cmd Command, r *Replier) error {
	steps, err := cmd.Int(0)
	if err != nil {
		return err
	}
	dir, err := cmd.Int(1)
	if err != nil {
		return err
	}
	if err := c.Dispenser.SetDirection(dir); err != nil {
		return err
	}
	if c.RequireEnabled && !c.Dispenser.Enabled() {
		return fault.New(fault.Recoverable, cmd.Name, ErrDispenserDisabled)
	}
	if err := c.Dispenser.Dispense(steps, dir); err != nil {
		return err
	}
	return r.Echo()
}

type readFunc func(samples int, kind filter.Kind, timeout time.Duration) (scale.Reading, error)

// measure echoes first, then streams the averaged reading.
func (c *commands) measure(tag string, read readFunc) HandlerFunc {
	return func(_ context.Context, cmd Command, r *Replier) error {
		samples, err := cmd.Int(0)
		if err != nil {
			return err
		}
		name, err := cmd.Arg(1)
		if err != nil {
			return err
		}
		kind, ok := filter.ParseKind(name)
		if !ok {
			log.Printf("Unknown filter %q, falling back to %s", name, kind)
		}

		if err := r.Echo(); err != nil {
			return err
		}
		reading, err := read(samples, kind, c.Timeout)
		if err != nil {
			return err
		}
		return r.Measurement(tag, reading.Value, samples, kind)
	}
}

func (c *commands) tare(_ context.Context, _ Command, r *Replier) error {
	if !c.Scale.Running() {
		return fault.New(fault.Recoverable, "tare", scale.ErrNotRunning)
	}
	if err := c.Scale.Tare(); err != nil {
		return err
	}
	return r.Echo()
}

func (c *commands) calibrate(_ context.Context, cmd Command, r *Replier) error {
	slope, err := cmd.Float(0)
	if err != nil {
		return err
	}
	intercept, err := cmd.Float(1)
	if err != nil {
		return err
	}
	if err := c.Scale.SetCalibration(slope, intercept); err != nil {
		return err
	}
	return r.Echo()
}
