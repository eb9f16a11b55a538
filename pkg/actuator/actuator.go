// Package actuator drives the relays, pump and powder dispenser.
//
// Relays and the pump share one capability: switch on, hold for a duration,
// switch off. The dispenser stepper is fire-and-forget.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/gopowder/pkg/fault"
)

var (
	ErrBusy             = errors.New("actuator: busy")
	ErrDuration         = errors.New("actuator: invalid duration")
	ErrUnknownPin       = errors.New("actuator: unknown pump pin")
	ErrInvalidDirection = errors.New("actuator: invalid direction")
)

// Switch is anything that can be turned on and off: an I2C relay or a pump line.
type Switch interface {
	On() error
	Off() error
}

// Pin is a digital output line.
type Pin interface {
	High()
	Low()
}

// PinSwitch drives a Switch from a digital output, high meaning on.
type PinSwitch struct {
	Pin Pin
}

func (p PinSwitch) On() error {
	p.Pin.High()
	return nil
}

func (p PinSwitch) Off() error {
	p.Pin.Low()
	return nil
}

// Pins resolves pump pin numbers sent by the host to output lines.
type Pins map[int]Pin

// Lookup returns the pin with number n.
func (p Pins) Lookup(n int) (Pin, bool) {
	pin, ok := p[n]
	return pin, ok
}

// Facade runs the mixer, drain and pumps. A run blocks the caller for its
// whole duration and holds the facade exclusively; an overlapping run fails
// with ErrBusy.
type Facade struct {
	Mixer Switch
	Drain Switch
	Pumps Pins

	// Wait blocks for d; defaults to a timer that also returns on ctx.Done.
	Wait func(ctx context.Context, d time.Duration) error

	busy atomic.Bool
}

// Mix runs the mixer relay for seconds.
func (f *Facade) Mix(ctx context.Context, seconds float32) error {
	return f.run(ctx, "mix", f.Mixer, seconds)
}

// DrainFor runs the drain relay for seconds.
func (f *Facade) DrainFor(ctx context.Context, seconds float32) error {
	return f.run(ctx, "drain", f.Drain, seconds)
}

// Pump drives pump pin high for seconds.
func (f *Facade) Pump(ctx context.Context, pin int, seconds float32) error {
	p, ok := f.Pumps.Lookup(pin)
	if !ok {
		return fault.New(fault.Malformed, "pump", fmt.Errorf("%w: %d", ErrUnknownPin, pin))
	}
	return f.run(ctx, "pump", PinSwitch{Pin: p}, seconds)
}

func (f *Facade) run(ctx context.Context, op string, sw Switch, seconds float32) error {
	if sw == nil {
		return fault.New(fault.Recoverable, op, errors.New("no device attached"))
	}
	if !f.busy.CompareAndSwap(false, true) {
		return fault.New(fault.Recoverable, op, ErrBusy)
	}
	defer f.busy.Store(false)

	wait := f.Wait
	if wait == nil {
		wait = Sleep
	}
	if err := RunTimed(ctx, sw, seconds, wait); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// maxSeconds is the longest run a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// RunTimed switches sw on, waits seconds and switches it off again. Off is
// attempted whenever On succeeded, even when the wait was interrupted.
func RunTimed(ctx context.Context, sw Switch, seconds float32, wait func(context.Context, time.Duration) error) error {
	if seconds < 0 || math32.IsNaN(seconds) || math32.IsInf(seconds, 0) || float64(seconds) > maxSeconds {
		return fault.New(fault.Malformed, "run", fmt.Errorf("%w: %g", ErrDuration, seconds))
	}

	d := time.Duration(math.Round(float64(seconds) * float64(time.Second)))

	if err := sw.On(); err != nil {
		return fault.New(fault.Recoverable, "run", fmt.Errorf("failed to switch on: %w", err))
	}
	waitErr := wait(ctx, d)
	if err := sw.Off(); err != nil {
		return fault.New(fault.Recoverable, "run", fmt.Errorf("failed to switch off: %w", err))
	}
	if waitErr != nil {
		return fault.New(fault.Recoverable, "run", waitErr)
	}
	return nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
