package scale

import (
	"fmt"
	"slices"
)

// Settings are the discrete ADC settings applied by Setup.
type Settings struct {
	SampleRate int // samples per second: 10, 20, 40, 80 or 320
	Gain       int // PGA gain: 1, 2, 4, 8, 16, 32, 64 or 128
	LDO        int // LDO code 2..8, see LDOMillivolts
}

// DefaultSettings are the settings the dosing rig ships with.
var DefaultSettings = Settings{SampleRate: 320, Gain: 128, LDO: 3}

var validRates = []int{10, 20, 40, 80, 320}

var validGains = []int{1, 2, 4, 8, 16, 32, 64, 128}

// ldoCodes maps the configuration code to the LDO output in millivolts.
var ldoCodes = map[int]int{
	2: 2400,
	3: 3000,
	4: 3300,
	5: 3600,
	6: 3900,
	7: 4200,
	8: 4500,
}

// LDOMillivolts returns the LDO voltage selected by code.
func LDOMillivolts(code int) (int, error) {
	mv, ok := ldoCodes[code]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLDO, code)
	}
	return mv, nil
}

// Validate checks every setting against the values the ADC supports.
func (s Settings) Validate() error {
	if !slices.Contains(validRates, s.SampleRate) {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, s.SampleRate)
	}
	if !slices.Contains(validGains, s.Gain) {
		return fmt.Errorf("%w: %d", ErrInvalidGain, s.Gain)
	}
	if _, err := LDOMillivolts(s.LDO); err != nil {
		return err
	}
	return nil
}
