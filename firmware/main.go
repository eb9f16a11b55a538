//go:build tinygo

//go:generate tinygo flash -target=arduino-nano33

package main

import (
	"context"
	"machine"
	"time"

	"github.com/itohio/gopowder/pkg/actuator"
	"github.com/itohio/gopowder/pkg/controller"
	"github.com/itohio/gopowder/pkg/device/nau7802"
	"github.com/itohio/gopowder/pkg/device/qwiicrelay"
	"github.com/itohio/gopowder/pkg/device/stepdir"
	"github.com/itohio/gopowder/pkg/filter"
	"github.com/itohio/gopowder/pkg/scale"
	"github.com/itohio/gopowder/pkg/store"
)

var (
	uart = machine.UART0
	bus  = machine.I2C0
)

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})
	if err := bus.Configure(machine.I2CConfig{Frequency: I2C_FREQUENCY}); err != nil {
		println("i2c:", err.Error())
	}

	// Configure actuator pins as outputs, all off
	pumps := make(actuator.Pins, len(pumpPins))
	for n, pin := range pumpPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
		pumps[n] = pin
	}
	for _, pin := range []machine.Pin{PIN_STEP, PIN_DIR, PIN_ENABLE} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}

	mixer := qwiicrelay.New(bus, MIXER_RELAY_ADDRESS)
	drain := qwiicrelay.New(bus, DRAIN_RELAY_ADDRESS)
	stepper := stepdir.New(stepdir.Config{
		Step:            PIN_STEP,
		Dir:             PIN_DIR,
		Enable:          PIN_ENABLE,
		EnableActiveLow: true,
	})

	// The board has no EEPROM; calibration lasts until reset.
	cal := store.New(store.NewMemory(STORE_SIZE))

	model := scale.New(nau7802.New(bus), scale.Options{
		Filters: filter.New(filter.Options{
			EWMAAlpha: EWMA_ALPHA,
			LPFAlpha:  LPF_ALPHA,
			Window:    SMA_WINDOW,
		}),
		Store: cal,
	})

	ctl := controller.New(controller.Config{
		Scale: model,
		Settings: scale.Settings{
			SampleRate: SCALE_SAMPLE_RATE,
			Gain:       SCALE_GAIN,
			LDO:        SCALE_LDO,
		},
		Slope:     SCALE_SLOPE,
		Intercept: SCALE_INTERCEPT,
		Actuators: &actuator.Facade{
			Mixer: mixer,
			Drain: drain,
			Pumps: pumps,
		},
		Dispenser: actuator.NewDispenser(stepper),
		Peripherals: []controller.Peripheral{
			{Name: "drain relay", Begin: drain.Begin},
			{Name: "mixer relay", Begin: mixer.Begin},
			{Name: "dispenser", Begin: stepper.Begin},
		},
		Out:            uart,
		RequireEnabled: true,
	})

	if err := ctl.Boot(); err != nil {
		println("boot:", err.Error())
	}
	// Run only returns once halted; there is nothing left to do but idle.
	if err := ctl.Run(context.Background(), uart); err != nil {
		println("halted:", err.Error())
	}
	for {
		time.Sleep(time.Second)
	}
}
