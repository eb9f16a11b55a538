// Package controller boots the dosing rig and runs the command loop: bytes
// from the host are framed, dispatched and answered on the same stream.
//
// The controller is the only place that maps fault kinds to an outcome.
// Recoverable and malformed faults are answered by the dispatcher and the
// loop continues; setup and configuration faults go through the Policy.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/itohio/gopowder/pkg/actuator"
	"github.com/itohio/gopowder/pkg/fault"
	"github.com/itohio/gopowder/pkg/protocol"
	"github.com/itohio/gopowder/pkg/scale"
)

const (
	// ReplyInterval is the period reserved for unsolicited replies.
	ReplyInterval = 1000 // ms
	// DefaultIdle is how long Run sleeps when no byte is buffered.
	DefaultIdle = 5 * time.Millisecond
)

// ErrHalted is returned by Poll and Run once a fatal fault halted the controller.
var ErrHalted = errors.New("controller: halted")

// ByteSource is a non-blocking byte stream such as a UART ring buffer.
type ByteSource interface {
	Buffered() int
	ReadByte() (byte, error)
}

// Peripheral is a device initialized during Boot. A failing Begin is logged
// and does not stop the boot.
type Peripheral struct {
	Name  string
	Begin func() error
}

// Timing tracks the loop clock in milliseconds since New.
type Timing struct {
	CurrentMs       uint32
	LastReplyMs     uint32
	ReplyIntervalMs uint32
}

// Config wires the controller to its devices.
type Config struct {
	Scale     *scale.Model
	Settings  scale.Settings
	Slope     float32 // fallback fit when no calibration is persisted
	Intercept float32

	Actuators   *actuator.Facade
	Dispenser   *actuator.Dispenser
	Peripherals []Peripheral

	// Out receives every reply.
	Out    io.Writer
	Policy Policy

	RequireEnabled bool
	Timeout        time.Duration // averaging timeout for Meas and ADC

	Now  func() time.Time
	Idle time.Duration
}

// Controller owns the command loop state. It is not safe for concurrent
// use; a single goroutine boots it and polls it.
type Controller struct {
	cfg      Config
	start    time.Time
	framer   protocol.Framer
	dispatch *protocol.Dispatcher
	timing   Timing
	halted   error
}

// New creates a controller and registers the standard command set.
func New(cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Idle <= 0 {
		cfg.Idle = DefaultIdle
	}
	if cfg.Slope == 0 {
		cfg.Slope, cfg.Intercept = scale.ManualSlope, scale.ManualIntercept
	}

	c := &Controller{
		cfg:    cfg,
		start:  cfg.Now(),
		timing: Timing{ReplyIntervalMs: ReplyInterval},
	}
	c.dispatch = protocol.NewDispatcher(cfg.Out, c.millis)
	protocol.RegisterCommands(c.dispatch, protocol.Deps{
		Scale:          cfg.Scale,
		Actuators:      cfg.Actuators,
		Dispenser:      cfg.Dispenser,
		RequireEnabled: cfg.RequireEnabled,
		Timeout:        cfg.Timeout,
	})
	return c
}

// Dispatcher exposes the command table so callers can register extra commands.
func (c *Controller) Dispatcher() *protocol.Dispatcher { return c.dispatch }

// Timing returns a snapshot of the loop clock.
func (c *Controller) Timing() Timing { return c.timing }

// Halted reports whether a fatal fault stopped the controller.
func (c *Controller) Halted() bool { return c.halted != nil }

func (c *Controller) millis() uint32 {
	return uint32(c.cfg.Now().Sub(c.start) / time.Millisecond)
}

// Boot sets up the scale and peripherals, announces readiness, applies the
// calibration and tares the scale.
func (c *Controller) Boot() error {
	scaleReady := true
	if err := c.cfg.Scale.Setup(c.cfg.Settings); err != nil {
		if err := c.fail(err); err != nil {
			return err
		}
		scaleReady = false
	}

	for _, p := range c.cfg.Peripherals {
		if p.Begin == nil {
			continue
		}
		if err := p.Begin(); err != nil {
			log.Printf("Can't communicate with %s: %v", p.Name, err)
			continue
		}
		log.Printf("%s connected", p.Name)
	}

	if err := c.cfg.Dispenser.Disable(); err != nil {
		log.Printf("Failed to disable dispenser: %v", err)
	}

	if err := protocol.WriteMessage(c.cfg.Out, protocol.Banner); err != nil {
		return fmt.Errorf("failed to write banner: %w", err)
	}

	restored, err := c.cfg.Scale.Restore()
	if err != nil {
		log.Printf("Failed to restore calibration: %v", err)
	}
	if !restored {
		err := c.cfg.Scale.SetCalibration(c.cfg.Slope, c.cfg.Intercept)
		switch {
		case errors.Is(err, scale.ErrCalibration):
			return c.fail(fault.New(fault.ConfigInvalid, "boot calibration", err))
		case err != nil:
			// The fit is applied in memory; only persisting it failed.
			if err := c.report(err); err != nil {
				return err
			}
		}
	}

	if !scaleReady {
		return nil
	}
	if err := c.cfg.Scale.On(); err != nil {
		return c.report(err)
	}
	if err := c.cfg.Scale.Tare(); err != nil {
		return c.report(err)
	}
	return nil
}

// Poll drains every byte that is already buffered in src and executes the
// frames they complete. It never waits for more input.
func (c *Controller) Poll(ctx context.Context, src ByteSource) error {
	if c.halted != nil {
		return c.halted
	}
	c.timing.CurrentMs = c.millis()

	for src.Buffered() > 0 {
		b, err := src.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read byte: %w", err)
		}
		frame, ok := c.framer.Feed(b)
		if !ok {
			continue
		}

		err = c.dispatch.Handle(ctx, frame)
		c.timing.LastReplyMs = c.millis()
		if err == nil {
			continue
		}
		if err := c.fail(err); err != nil {
			return err
		}
	}
	return nil
}

// Run polls src until ctx is done or the controller halts.
func (c *Controller) Run(ctx context.Context, src ByteSource) error {
	for {
		if err := c.Poll(ctx, src); err != nil {
			return err
		}
		if src.Buffered() > 0 {
			continue
		}
		if err := actuator.Sleep(ctx, c.cfg.Idle); err != nil {
			return nil
		}
	}
}

// fail applies the policy to err. Non-fatal errors are reported and
// swallowed.
func (c *Controller) fail(err error) error {
	if !fault.Fatal(err) {
		return c.report(err)
	}

	switch c.cfg.Policy {
	case PolicyReject:
		log.Printf("Rejected %s fault: %v", fault.KindOf(err), err)
		_ = protocol.WriteError(c.cfg.Out, err)
		return nil
	default:
		log.Printf("Halting on %s fault: %v", fault.KindOf(err), err)
		if c.cfg.Dispenser != nil {
			_ = c.cfg.Dispenser.Disable()
		}
		_ = protocol.WriteMessage(c.cfg.Out, "Halted:"+err.Error())
		c.halted = fmt.Errorf("%w: %w", ErrHalted, err)
		return c.halted
	}
}

func (c *Controller) report(err error) error {
	log.Printf("%s fault: %v", fault.KindOf(err), err)
	if errors.Is(err, scale.ErrNotRunning) {
		return protocol.WriteMessage(c.cfg.Out, protocol.NotRunning)
	}
	return protocol.WriteError(c.cfg.Out, err)
}
