package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dosed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, 320, cfg.Scale.SampleRate)
	assert.Equal(t, 128, cfg.Scale.Gain)
	assert.Equal(t, 3, cfg.Scale.LDO)
	assert.InDelta(t, 3.06828559218341e-05, cfg.Scale.Slope, 1e-12)
	assert.InDelta(t, -12.9400964147, cfg.Scale.Intercept, 1e-5)
	assert.Equal(t, 100, cfg.Scale.TareSamples)
	assert.Equal(t, time.Second, cfg.Scale.TareTimeout)
	assert.Equal(t, float32(0.05), cfg.Filter.EWMAAlpha)
	assert.Equal(t, float32(0.5), cfg.Filter.LPFAlpha)
	assert.Equal(t, 10, cfg.Filter.SMAWindow)
	assert.Equal(t, uint16(0x19), cfg.Relays.MixerAddress)
	assert.Equal(t, uint16(0x18), cfg.Relays.DrainAddress)
	assert.Equal(t, []int{12}, cfg.Pump.Pins)
	assert.True(t, cfg.Dispenser.Enforced())
	assert.Equal(t, 1024, cfg.Store.Size)
	assert.Equal(t, PolicyHalt, cfg.Fault.Policy)
	assert.Equal(t, "/dev/i2c-1", cfg.Hardware.I2C)
	assert.Equal(t, 23, cfg.Hardware.StepPin)
	assert.Equal(t, 25, cfg.Hardware.EnablePin)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: "/dev/ttyUSB1"
  baud: 57600

scale:
  sample_rate: 80
  gain: 64
  ldo: 5
  slope: 0.0001
  intercept: -3
  tare_samples: 50
  tare_timeout: 500ms

filter:
  ewma_alpha: 0.1
  sma_window: 20

relays:
  mixer_address: 0x1A

pump:
  pins: [12, 13]

dispenser:
  require_enabled: false

store:
  path: /var/lib/dosed/cal.bin

fault:
  policy: reject

hardware:
  i2c: /dev/i2c-3
  enable_pin: -1

mock:
  load_grams: 2.5
  sample_interval: 10ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	assert.Equal(t, 80, cfg.Scale.SampleRate)
	assert.Equal(t, 64, cfg.Scale.Gain)
	assert.Equal(t, 5, cfg.Scale.LDO)
	assert.Equal(t, float32(0.0001), cfg.Scale.Slope)
	assert.Equal(t, float32(-3), cfg.Scale.Intercept)
	assert.Equal(t, 50, cfg.Scale.TareSamples)
	assert.Equal(t, 500*time.Millisecond, cfg.Scale.TareTimeout)
	assert.Equal(t, float32(0.1), cfg.Filter.EWMAAlpha)
	assert.Equal(t, float32(0.5), cfg.Filter.LPFAlpha) // default
	assert.Equal(t, 20, cfg.Filter.SMAWindow)
	assert.Equal(t, uint16(0x1A), cfg.Relays.MixerAddress)
	assert.Equal(t, uint16(0x18), cfg.Relays.DrainAddress) // default
	assert.Equal(t, []int{12, 13}, cfg.Pump.Pins)
	assert.False(t, cfg.Dispenser.Enforced())
	assert.Equal(t, "/var/lib/dosed/cal.bin", cfg.Store.Path)
	assert.Equal(t, 1024, cfg.Store.Size) // default
	assert.Equal(t, PolicyReject, cfg.Fault.Policy)
	assert.Equal(t, "/dev/i2c-3", cfg.Hardware.I2C)
	assert.Equal(t, 24, cfg.Hardware.DirPin) // default
	assert.Equal(t, -1, cfg.Hardware.EnablePin)
	assert.Equal(t, 2.5, cfg.Mock.LoadGrams)
	assert.Equal(t, 10*time.Millisecond, cfg.Mock.SampleInterval)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: yaml: content: [")

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: "/dev/ttyACM1"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, 320, cfg.Scale.SampleRate)
	assert.Equal(t, []int{12}, cfg.Pump.Pins)
	assert.True(t, cfg.Dispenser.Enforced())
	assert.Equal(t, PolicyHalt, cfg.Fault.Policy)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "policy", content: "fault:\n  policy: explode\n"},
		{name: "slope", content: "scale:\n  slope: 0\n"},
		{name: "pin", content: "pump:\n  pins: [-1]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Scale.TareSamples = 15
	off := false
	cfg.Dispenser.RequireEnabled = &off

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 15, loaded.Scale.TareSamples)
	assert.False(t, loaded.Dispenser.Enforced())
	assert.Equal(t, cfg.Relays, loaded.Relays)
}
