//go:build tinygo

package main

import "machine"

const (
	// Serial configuration. 115200 baud matches the host tooling default.
	UART_BAUD_RATE = 115200

	// I2C bus shared by the load cell amplifier and the relays.
	I2C_FREQUENCY = 400 * machine.KHz

	// Qwiic relay addresses
	MIXER_RELAY_ADDRESS = 0x19
	DRAIN_RELAY_ADDRESS = 0x18

	// NAU7802 settings
	SCALE_SAMPLE_RATE = 320 // samples per second
	SCALE_GAIN        = 128
	SCALE_LDO         = 3 // 3.0V

	// Fallback linear fit used until a calibration is persisted
	SCALE_SLOPE     = 3.06828559218341e-05
	SCALE_INTERCEPT = -12.9400964147

	// Filter coefficients
	EWMA_ALPHA = 0.05
	LPF_ALPHA  = 0.5
	SMA_WINDOW = 10

	// Calibration storage size in bytes
	STORE_SIZE = 1024

	// Stepper driver pins
	PIN_STEP   = machine.D2
	PIN_DIR    = machine.D3
	PIN_ENABLE = machine.D4

	// Pump pins
	PIN_PUMP12 = machine.D12
)

// pumpPins maps protocol pin numbers to board pins.
var pumpPins = map[int]machine.Pin{
	12: PIN_PUMP12,
}
