// Package scale turns raw load-cell ADC counts into weight.
//
// A Model owns the filter pipeline and the calibration of one scale. It takes
// averaged, filtered readings from a Sensor, converts them with a linear
// calibration (factor and zero offset) and re-zeroes the offset on tare.
package scale

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/gopowder/pkg/fault"
	"github.com/itohio/gopowder/pkg/filter"
	"github.com/itohio/gopowder/pkg/store"
)

const (
	// ManualSlope and ManualIntercept are the factory linear fit of ADC counts
	// against grams.
	ManualSlope     = 3.06828559218341e-05
	ManualIntercept = -12.9400964147

	DefaultSamples = 100
	DefaultTimeout = 1000 * time.Millisecond
)

var (
	ErrNotDetected       = errors.New("scale: not detected, check wiring")
	ErrInvalidSampleRate = errors.New("scale: invalid sample rate")
	ErrInvalidGain       = errors.New("scale: invalid gain")
	ErrInvalidLDO        = errors.New("scale: invalid LDO voltage")
	ErrNotRunning        = errors.New("scale: not running")
	ErrNotCalibrated     = errors.New("scale: not calibrated")
	ErrCalibration       = errors.New("scale: invalid calibration")
	ErrSampleCount       = errors.New("scale: sample count must be positive")
	ErrNotPersisted      = errors.New("scale: calibration applied but not persisted")
)

// Sensor is the load-cell ADC.
type Sensor interface {
	Begin() error
	SetSampleRate(sps int) error
	SetGain(gain int) error
	SetLDO(millivolts int) error
	CalibrateAFE() error
	PowerUp() error
	PowerDown() error
	Reading() (int32, error)
}

// Store persists calibration across resets.
type Store interface {
	Float32(s store.Slot) (float32, bool, error)
	PutFloat32(s store.Slot, v float32) error
}

// Calibration maps raw counts to weight: weight = (raw - Offset) / Factor.
type Calibration struct {
	Factor float32
	Offset float32
}

// CalibrationFromFit derives a calibration from a linear fit raw->grams
// with the given slope and intercept.
func CalibrationFromFit(slope, intercept float32) (Calibration, error) {
	if slope == 0 || !finite(slope) || !finite(intercept) {
		return Calibration{}, fault.New(fault.Recoverable, "calibrate",
			fmt.Errorf("%w: slope %g intercept %g", ErrCalibration, slope, intercept))
	}
	factor := 1 / slope
	return Calibration{Factor: factor, Offset: -intercept * factor}, nil
}

// Reading is the result of an averaged read.
type Reading struct {
	Value    float32
	Samples  int         // samples requested; Value is the sum divided by this count
	Taken    int         // samples actually read before the timeout
	Filter   filter.Kind // filter applied to every sample
	TimedOut bool
}

// Options wires the collaborators of a Model; zero values take defaults.
type Options struct {
	Filters *filter.Pipeline
	Store   Store
	Now     func() time.Time

	TareSamples int
	TareFilter  filter.Kind
	TareTimeout time.Duration
}

// Model is the scale state. It is not safe for concurrent use.
type Model struct {
	sensor  Sensor
	filters *filter.Pipeline
	store   Store
	now     func() time.Time

	tareSamples int
	tareFilter  filter.Kind
	tareTimeout time.Duration

	cal        Calibration
	calibrated bool
	setup      bool
	powered    bool
}

// New creates a Model reading from sensor.
func New(sensor Sensor, opts Options) *Model {
	if opts.Filters == nil {
		opts.Filters = filter.New(filter.Options{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TareSamples <= 0 {
		opts.TareSamples = DefaultSamples
	}
	if opts.TareTimeout <= 0 {
		opts.TareTimeout = DefaultTimeout
	}
	if opts.TareFilter == filter.None {
		opts.TareFilter = filter.EWMA
	}

	return &Model{
		sensor:      sensor,
		filters:     opts.Filters,
		store:       opts.Store,
		now:         opts.Now,
		tareSamples: opts.TareSamples,
		tareFilter:  opts.TareFilter,
		tareTimeout: opts.TareTimeout,
	}
}

// Setup detects and configures the ADC, calibrates its analog front end and
// leaves it powered down. Every failure is SetupFatal.
func (m *Model) Setup(s Settings) error {
	const op = "scale setup"

	if err := s.Validate(); err != nil {
		return fault.New(fault.SetupFatal, op, err)
	}
	if err := m.sensor.Begin(); err != nil {
		return fault.New(fault.SetupFatal, op, fmt.Errorf("%w: %v", ErrNotDetected, err))
	}

	mv, _ := LDOMillivolts(s.LDO)
	steps := []struct {
		name string
		fn   func() error
	}{
		{"sample rate", func() error { return m.sensor.SetSampleRate(s.SampleRate) }},
		{"gain", func() error { return m.sensor.SetGain(s.Gain) }},
		{"ldo", func() error { return m.sensor.SetLDO(mv) }},
		{"afe calibration", m.sensor.CalibrateAFE},
		{"power down", m.sensor.PowerDown},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fault.New(fault.SetupFatal, op, fmt.Errorf("failed to set %s: %w", step.name, err))
		}
	}

	m.setup = true
	m.powered = false
	return nil
}

// On powers the ADC up.
func (m *Model) On() error {
	if err := m.sensor.PowerUp(); err != nil {
		return fault.New(fault.Recoverable, "scale on", err)
	}
	m.powered = true
	return nil
}

// Off powers the ADC down.
func (m *Model) Off() error {
	m.powered = false
	if err := m.sensor.PowerDown(); err != nil {
		return fault.New(fault.Recoverable, "scale off", err)
	}
	return nil
}

// Running reports whether the scale completed Setup and is powered up.
func (m *Model) Running() bool {
	return m.setup && m.powered
}

// Calibration returns the current calibration and whether it was ever set.
func (m *Model) Calibration() (Calibration, bool) {
	return m.cal, m.calibrated
}

// SetCalibration derives and stores the calibration from a linear fit. A
// valid fit is applied even when persisting it fails; the error then wraps
// ErrNotPersisted.
func (m *Model) SetCalibration(slope, intercept float32) error {
	cal, err := CalibrationFromFit(slope, intercept)
	if err != nil {
		return err
	}
	m.cal = cal
	m.calibrated = true
	return m.persist()
}

// Restore loads a calibration saved by an earlier run. It reports false when
// the store holds no calibration factor. An unset zero offset restores as 0,
// since the store cannot tell a zero value from an unwritten slot.
func (m *Model) Restore() (bool, error) {
	if m.store == nil {
		return false, nil
	}

	factor, okFactor, err := m.store.Float32(store.CalibrationFactor)
	if err != nil {
		return false, fault.New(fault.Recoverable, "restore calibration", err)
	}
	offset, _, err := m.store.Float32(store.ZeroOffset)
	if err != nil {
		return false, fault.New(fault.Recoverable, "restore calibration", err)
	}
	if !okFactor || factor == 0 || !finite(factor) || !finite(offset) {
		return false, nil
	}

	m.cal = Calibration{Factor: factor, Offset: offset}
	m.calibrated = true
	return true, nil
}

// AveragedReading reads and filters up to samples raw values and returns their
// sum divided by samples. The loop stops early once timeout has elapsed; the
// divisor stays the requested count, so a timed-out read is biased toward zero.
func (m *Model) AveragedReading(samples int, kind filter.Kind, timeout time.Duration) (Reading, error) {
	if samples <= 0 {
		return Reading{}, fault.New(fault.Malformed, "averaged reading", fmt.Errorf("%w: %d", ErrSampleCount, samples))
	}

	r := Reading{Samples: samples, Filter: kind}
	var sum float32
	start := m.now()
	for i := 0; i < samples; i++ {
		if m.now().Sub(start) > timeout {
			log.Printf("Timeout while averaging scale readings (%d of %d samples)", i, samples)
			r.TimedOut = true
			break
		}

		raw, err := m.sensor.Reading()
		if err != nil {
			return Reading{}, fault.New(fault.Recoverable, "averaged reading", fmt.Errorf("failed to read scale: %w", err))
		}
		sum += m.filters.Apply(kind, float32(raw))
		r.Taken++
	}

	r.Value = sum / float32(samples)
	return r, nil
}

// ConvertToWeight applies the calibration to a raw value.
func (m *Model) ConvertToWeight(raw float32) (float32, error) {
	if !m.calibrated {
		return 0, fault.New(fault.Recoverable, "convert", ErrNotCalibrated)
	}
	return (raw - m.cal.Offset) / m.cal.Factor, nil
}

// Tare takes an averaged raw reading with the tare defaults and makes it the
// new zero offset. The factor is left untouched. As with SetCalibration, a
// failed persist keeps the new offset and returns ErrNotPersisted.
func (m *Model) Tare() error {
	r, err := m.AveragedReading(m.tareSamples, m.tareFilter, m.tareTimeout)
	if err != nil {
		return err
	}
	// Without a fit the model keeps reporting not calibrated; the offset
	// still applies once a factor is set.
	m.cal.Offset = r.Value
	return m.persist()
}

// Raw returns an averaged raw reading of a running scale.
func (m *Model) Raw(samples int, kind filter.Kind, timeout time.Duration) (Reading, error) {
	if !m.Running() {
		return Reading{}, fault.New(fault.Recoverable, "raw", ErrNotRunning)
	}
	return m.AveragedReading(samples, kind, timeout)
}

// Weight returns an averaged, calibrated reading of a running scale.
func (m *Model) Weight(samples int, kind filter.Kind, timeout time.Duration) (Reading, error) {
	if !m.Running() {
		return Reading{}, fault.New(fault.Recoverable, "weight", ErrNotRunning)
	}
	if !m.calibrated {
		return Reading{}, fault.New(fault.Recoverable, "weight", ErrNotCalibrated)
	}

	r, err := m.AveragedReading(samples, kind, timeout)
	if err != nil {
		return Reading{}, err
	}
	r.Value, err = m.ConvertToWeight(r.Value)
	return r, err
}

func (m *Model) persist() error {
	if m.store == nil {
		return nil
	}
	if m.calibrated {
		if err := m.store.PutFloat32(store.CalibrationFactor, m.cal.Factor); err != nil {
			return fault.New(fault.Recoverable, "persist calibration", fmt.Errorf("%w: %w", ErrNotPersisted, err))
		}
	}
	if err := m.store.PutFloat32(store.ZeroOffset, m.cal.Offset); err != nil {
		return fault.New(fault.Recoverable, "persist calibration", fmt.Errorf("%w: %w", ErrNotPersisted, err))
	}
	return nil
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
