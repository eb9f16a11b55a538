package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/gopowder/pkg/actuator"
	"github.com/itohio/gopowder/pkg/config"
	"github.com/itohio/gopowder/pkg/controller"
	"github.com/itohio/gopowder/pkg/filter"
	"github.com/itohio/gopowder/pkg/link"
	"github.com/itohio/gopowder/pkg/scale"
	"github.com/itohio/gopowder/pkg/store"
)

var (
	portName string
	baudRate int
	mock     bool
)

// port is the host side of the command stream.
type port interface {
	controller.ByteSource
	io.WriteCloser
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the command protocol on a serial port",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func init() {
	runCmd.Flags().StringVarP(&portName, "port", "p", "", "Serial port device (overrides serial.port)")
	runCmd.Flags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (overrides serial.baud)")
	runCmd.Flags().BoolVar(&mock, "mock", false, "Serve a simulated rig")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portName != "" {
		cfg.Serial.Port = portName
	}
	if baudRate != 0 {
		cfg.Serial.Baud = baudRate
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln := link.New(cfg.Serial.Port, cfg.Serial.Baud, 0, nil)
	if err := ln.Connect(); err != nil {
		return err
	}
	defer ln.Close()

	logger.Info("serial link connected",
		zap.String("port", cfg.Serial.Port),
		zap.Int("baud", cfg.Serial.Baud),
		zap.Bool("mock", mock),
	)

	err = serve(ctx, cfg, mock, ln)
	if errors.Is(err, controller.ErrHalted) {
		logger.Error("controller halted", zap.Error(err))
	}
	if dropped := ln.Dropped(); dropped > 0 {
		logger.Warn("serial input dropped", zap.Int("bytes", dropped))
	}
	return err
}

// serve builds the rig and runs the controller on rw until ctx is done.
func serve(ctx context.Context, cfg *config.Config, mock bool, rw port) error {
	policy, err := controller.ParsePolicy(cfg.Fault.Policy)
	if err != nil {
		return err
	}

	backend, err := store.OpenFile(cfg.Store.Path, cfg.Store.Size)
	if err != nil {
		return err
	}
	defer backend.Close()

	var dev *devices
	if mock {
		dev = mockDevices(cfg)
	} else {
		dev, err = hardwareDevices(cfg)
		if err != nil {
			return err
		}
	}
	defer dev.Close()

	ctl := newController(cfg, policy, dev, store.New(backend), rw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctl.Boot(); err != nil {
			return fmt.Errorf("boot: %w", err)
		}
		logger.Info("controller ready", zap.Int("commands", ctl.Dispatcher().Commands()))
		return ctl.Run(gctx, rw)
	})
	g.Go(func() error {
		<-gctx.Done()
		return rw.Close()
	})
	return g.Wait()
}

func newController(cfg *config.Config, policy controller.Policy, dev *devices, st *store.EEPROM, out io.Writer) *controller.Controller {
	filters := filter.New(filter.Options{
		EWMAAlpha: cfg.Filter.EWMAAlpha,
		LPFAlpha:  cfg.Filter.LPFAlpha,
		Window:    cfg.Filter.SMAWindow,
	})
	model := scale.New(dev.sensor, scale.Options{
		Filters:     filters,
		Store:       st,
		TareSamples: cfg.Scale.TareSamples,
		TareTimeout: cfg.Scale.TareTimeout,
	})

	c := controller.Config{
		Scale: model,
		Settings: scale.Settings{
			SampleRate: cfg.Scale.SampleRate,
			Gain:       cfg.Scale.Gain,
			LDO:        cfg.Scale.LDO,
		},
		Slope:     cfg.Scale.Slope,
		Intercept: cfg.Scale.Intercept,
		Actuators: &actuator.Facade{
			Mixer: dev.mixer,
			Drain: dev.drain,
			Pumps: dev.pumps,
		},
		Dispenser:      actuator.NewDispenser(dev.stepper),
		Peripherals:    dev.peripherals,
		Out:            out,
		Policy:         policy,
		RequireEnabled: cfg.Dispenser.Enforced(),
	}
	if dev.rig != nil {
		c.Idle = cfg.Mock.SampleInterval
	}
	return controller.New(c)
}
