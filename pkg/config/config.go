package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fault policies.
const (
	PolicyHalt   = "halt"
	PolicyReject = "reject"
)

// Config represents the application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Scale     ScaleConfig     `yaml:"scale"`
	Filter    FilterConfig    `yaml:"filter"`
	Relays    RelayConfig     `yaml:"relays"`
	Pump      PumpConfig      `yaml:"pump"`
	Dispenser DispenserConfig `yaml:"dispenser"`
	Store     StoreConfig     `yaml:"store"`
	Fault     FaultConfig     `yaml:"fault"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Mock      MockConfig      `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// ScaleConfig contains load-cell ADC settings and the fallback calibration
// applied when nothing is persisted.
type ScaleConfig struct {
	SampleRate  int           `yaml:"sample_rate"` // samples per second
	Gain        int           `yaml:"gain"`
	LDO         int           `yaml:"ldo"` // LDO code 2..8
	Slope       float32       `yaml:"slope"`
	Intercept   float32       `yaml:"intercept"`
	TareSamples int           `yaml:"tare_samples"`
	TareTimeout time.Duration `yaml:"tare_timeout"`
}

// FilterConfig tunes the smoothing filters.
type FilterConfig struct {
	EWMAAlpha float32 `yaml:"ewma_alpha"`
	LPFAlpha  float32 `yaml:"lpf_alpha"`
	SMAWindow int     `yaml:"sma_window"`
}

// RelayConfig contains the I2C addresses of the Qwiic relays.
type RelayConfig struct {
	MixerAddress uint16 `yaml:"mixer_address"`
	DrainAddress uint16 `yaml:"drain_address"`
}

// PumpConfig lists the pump pin numbers accepted by the Pump command.
type PumpConfig struct {
	Pins []int `yaml:"pins"`
}

// DispenserConfig contains dispenser behaviour switches.
type DispenserConfig struct {
	// RequireEnabled rejects Dispense until DispenserOn was received.
	RequireEnabled *bool `yaml:"require_enabled"`
}

// Enforced reports whether the enable check is on; unset means on.
func (d DispenserConfig) Enforced() bool {
	return d.RequireEnabled == nil || *d.RequireEnabled
}

// StoreConfig contains the calibration store location.
type StoreConfig struct {
	Path string `yaml:"path"`
	Size int    `yaml:"size"` // bytes
}

// FaultConfig selects what happens on setup or configuration faults.
type FaultConfig struct {
	Policy string `yaml:"policy"` // halt or reject
}

// HardwareConfig locates the Linux board devices used when not mocking.
type HardwareConfig struct {
	I2C       string `yaml:"i2c"`       // adapter device, e.g. /dev/i2c-1
	GPIORoot  string `yaml:"gpio_root"` // sysfs gpio class directory
	StepPin   int    `yaml:"step_pin"`
	DirPin    int    `yaml:"dir_pin"`
	EnablePin int    `yaml:"enable_pin"` // negative when the enable line is not wired
}

// MockConfig contains simulated rig configuration.
type MockConfig struct {
	Noise          float64       `yaml:"noise"`           // peak noise in counts
	CountsPerGram  float64       `yaml:"counts_per_gram"` // load-cell sensitivity
	LoadGrams      float64       `yaml:"load_grams"`      // initial load on the pan
	SampleInterval time.Duration `yaml:"sample_interval"` // poll period of the loop
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	enforced := true
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyACM0",
			Baud: 115200,
		},
		Scale: ScaleConfig{
			SampleRate:  320,
			Gain:        128,
			LDO:         3,
			Slope:       3.06828559218341e-05,
			Intercept:   -12.9400964147,
			TareSamples: 100,
			TareTimeout: time.Second,
		},
		Filter: FilterConfig{
			EWMAAlpha: 0.05,
			LPFAlpha:  0.5,
			SMAWindow: 10,
		},
		Relays: RelayConfig{
			MixerAddress: 0x19,
			DrainAddress: 0x18,
		},
		Pump: PumpConfig{
			Pins: []int{12},
		},
		Dispenser: DispenserConfig{
			RequireEnabled: &enforced,
		},
		Store: StoreConfig{
			Path: "calibration.bin",
			Size: 1024,
		},
		Fault: FaultConfig{
			Policy: PolicyHalt,
		},
		Hardware: HardwareConfig{
			I2C:       "/dev/i2c-1",
			GPIORoot:  "/sys/class/gpio",
			StepPin:   23,
			DirPin:    24,
			EnablePin: 25,
		},
		Mock: MockConfig{
			Noise:          40,
			CountsPerGram:  32591.4,
			LoadGrams:      0,
			SampleInterval: 5 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	switch c.Fault.Policy {
	case PolicyHalt, PolicyReject:
	default:
		return fmt.Errorf("invalid fault policy %q", c.Fault.Policy)
	}
	if c.Scale.Slope == 0 {
		return fmt.Errorf("invalid scale slope: must be non-zero")
	}
	for _, p := range c.Pump.Pins {
		if p < 0 {
			return fmt.Errorf("invalid pump pin %d", p)
		}
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Scale.SampleRate == 0 {
		c.Scale.SampleRate = def.Scale.SampleRate
	}
	if c.Scale.Gain == 0 {
		c.Scale.Gain = def.Scale.Gain
	}
	if c.Scale.LDO == 0 {
		c.Scale.LDO = def.Scale.LDO
	}
	if c.Scale.TareSamples == 0 {
		c.Scale.TareSamples = def.Scale.TareSamples
	}
	if c.Scale.TareTimeout == 0 {
		c.Scale.TareTimeout = def.Scale.TareTimeout
	}

	if c.Filter.EWMAAlpha == 0 {
		c.Filter.EWMAAlpha = def.Filter.EWMAAlpha
	}
	if c.Filter.LPFAlpha == 0 {
		c.Filter.LPFAlpha = def.Filter.LPFAlpha
	}
	if c.Filter.SMAWindow == 0 {
		c.Filter.SMAWindow = def.Filter.SMAWindow
	}

	if c.Relays.MixerAddress == 0 {
		c.Relays.MixerAddress = def.Relays.MixerAddress
	}
	if c.Relays.DrainAddress == 0 {
		c.Relays.DrainAddress = def.Relays.DrainAddress
	}

	if len(c.Pump.Pins) == 0 {
		c.Pump.Pins = def.Pump.Pins
	}

	if c.Dispenser.RequireEnabled == nil {
		c.Dispenser.RequireEnabled = def.Dispenser.RequireEnabled
	}

	if c.Store.Size == 0 {
		c.Store.Size = def.Store.Size
	}

	if c.Fault.Policy == "" {
		c.Fault.Policy = def.Fault.Policy
	}

	if c.Hardware.I2C == "" {
		c.Hardware.I2C = def.Hardware.I2C
	}
	if c.Hardware.GPIORoot == "" {
		c.Hardware.GPIORoot = def.Hardware.GPIORoot
	}
	if c.Hardware.StepPin == 0 {
		c.Hardware.StepPin = def.Hardware.StepPin
	}
	if c.Hardware.DirPin == 0 {
		c.Hardware.DirPin = def.Hardware.DirPin
	}

	if c.Mock.CountsPerGram == 0 {
		c.Mock.CountsPerGram = def.Mock.CountsPerGram
	}
	if c.Mock.SampleInterval == 0 {
		c.Mock.SampleInterval = def.Mock.SampleInterval
	}
}
