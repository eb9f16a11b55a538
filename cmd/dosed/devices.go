package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/itohio/gopowder/pkg/actuator"
	"github.com/itohio/gopowder/pkg/config"
	"github.com/itohio/gopowder/pkg/controller"
	"github.com/itohio/gopowder/pkg/device/i2cdev"
	"github.com/itohio/gopowder/pkg/device/nau7802"
	"github.com/itohio/gopowder/pkg/device/qwiicrelay"
	"github.com/itohio/gopowder/pkg/device/sim"
	"github.com/itohio/gopowder/pkg/device/stepdir"
	"github.com/itohio/gopowder/pkg/device/sysfsgpio"
	"github.com/itohio/gopowder/pkg/scale"
)

// devices are the collaborators of one controller.
type devices struct {
	sensor      scale.Sensor
	mixer       actuator.Switch
	drain       actuator.Switch
	pumps       actuator.Pins
	stepper     actuator.Stepper
	peripherals []controller.Peripheral

	rig     *sim.Rig // set in mock mode
	closers []io.Closer
}

func (d *devices) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i].Close())
	}
	return errors.Join(errs...)
}

func mockDevices(cfg *config.Config) *devices {
	sc := sim.DefaultConfig()
	sc.Noise = cfg.Mock.Noise
	sc.CountsPerGram = cfg.Mock.CountsPerGram
	// Keep the pan reading consistent with the configured calibration.
	sc.ZeroCounts = float64(-cfg.Scale.Intercept / cfg.Scale.Slope)

	rig := sim.New(sc, nil, cfg.Pump.Pins...)
	rig.SetLoad(cfg.Mock.LoadGrams)

	pumps := make(actuator.Pins, len(cfg.Pump.Pins))
	for _, n := range cfg.Pump.Pins {
		pin, _ := rig.Pin(n)
		pumps[n] = pin
	}

	return &devices{
		sensor:  rig.Scale,
		mixer:   rig.Mixer,
		drain:   rig.Drain,
		pumps:   pumps,
		stepper: rig.Stepper,
		peripherals: []controller.Peripheral{
			{Name: "drain relay", Begin: rig.Drain.Begin},
			{Name: "mixer relay", Begin: rig.Mixer.Begin},
		},
		rig: rig,
	}
}

func hardwareDevices(cfg *config.Config) (_ *devices, err error) {
	d := &devices{}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	bus, err := i2cdev.Open(cfg.Hardware.I2C)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, bus)

	mixer := qwiicrelay.New(bus, cfg.Relays.MixerAddress)
	drain := qwiicrelay.New(bus, cfg.Relays.DrainAddress)
	d.sensor = nau7802.New(bus)
	d.mixer, d.drain = mixer, drain

	openPin := func(n int) (*sysfsgpio.Pin, error) {
		p, err := sysfsgpio.Open(cfg.Hardware.GPIORoot, n)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, p)
		return p, nil
	}

	d.pumps = make(actuator.Pins, len(cfg.Pump.Pins))
	for _, n := range cfg.Pump.Pins {
		p, err := openPin(n)
		if err != nil {
			return nil, fmt.Errorf("pump pin: %w", err)
		}
		d.pumps[n] = p
	}

	step, err := openPin(cfg.Hardware.StepPin)
	if err != nil {
		return nil, fmt.Errorf("step pin: %w", err)
	}
	dir, err := openPin(cfg.Hardware.DirPin)
	if err != nil {
		return nil, fmt.Errorf("dir pin: %w", err)
	}
	sd := stepdir.Config{Step: step, Dir: dir, EnableActiveLow: true}
	if cfg.Hardware.EnablePin >= 0 {
		en, err := openPin(cfg.Hardware.EnablePin)
		if err != nil {
			return nil, fmt.Errorf("enable pin: %w", err)
		}
		sd.Enable = en
	}
	stepper := stepdir.New(sd)
	d.stepper = stepper

	d.peripherals = []controller.Peripheral{
		{Name: "drain relay", Begin: drain.Begin},
		{Name: "mixer relay", Begin: mixer.Begin},
		{Name: "dispenser", Begin: stepper.Begin},
	}
	return d, nil
}
