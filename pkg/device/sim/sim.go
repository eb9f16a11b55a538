// Package sim simulates the dosing rig for development without hardware and
// for tests: a load-cell ADC whose load follows the relays, pump and
// dispenser.
package sim

import (
	"errors"
	"math"
	"sync"
	"time"
)

var (
	ErrNotDetected = errors.New("sim: scale not detected")
	ErrPoweredDown = errors.New("sim: scale powered down")
	ErrFault       = errors.New("sim: injected fault")
)

// Config tunes the simulated physics.
type Config struct {
	ZeroCounts          float64 // raw counts with an empty pan
	CountsPerGram       float64 // load-cell sensitivity
	Noise               float64 // peak noise in counts
	GramsPerStep        float64 // powder delivered per dispenser step
	PumpGramsPerSecond  float64 // liquid added while a pump runs
	DrainGramsPerSecond float64
}

// DefaultConfig matches the factory calibration of the real rig.
func DefaultConfig() Config {
	return Config{
		ZeroCounts:          421735.2,
		CountsPerGram:       32591.4,
		Noise:               40,
		GramsPerStep:        0.0005,
		PumpGramsPerSecond:  4,
		DrainGramsPerSecond: 8,
	}
}

// Rig ties the simulated devices to one load on the pan.
type Rig struct {
	mu   sync.Mutex
	cfg  Config
	now  func() time.Time
	load float64 // grams on the pan

	Scale   *Scale
	Mixer   *Switch
	Drain   *Switch
	Stepper *Stepper
	pins    map[int]*Pin
}

// New creates a rig with the given pump pins. A nil now uses time.Now.
func New(cfg Config, now func() time.Time, pumpPins ...int) *Rig {
	if now == nil {
		now = time.Now
	}
	r := &Rig{cfg: cfg, now: now, pins: make(map[int]*Pin)}
	r.Scale = &Scale{rig: r}
	r.Mixer = &Switch{rig: r}
	r.Drain = &Switch{rig: r, rate: -cfg.DrainGramsPerSecond}
	r.Stepper = &Stepper{rig: r}
	for _, n := range pumpPins {
		r.pins[n] = &Pin{Switch: Switch{rig: r, rate: cfg.PumpGramsPerSecond}}
	}
	return r
}

// Pin returns the simulated pump line n.
func (r *Rig) Pin(n int) (*Pin, bool) {
	p, ok := r.pins[n]
	return p, ok
}

// PinNumbers lists the pump lines of the rig.
func (r *Rig) PinNumbers() []int {
	out := make([]int, 0, len(r.pins))
	for n := range r.pins {
		out = append(out, n)
	}
	return out
}

// Load returns the grams on the pan.
func (r *Rig) Load() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load
}

// SetLoad places grams on the pan.
func (r *Rig) SetLoad(grams float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load = grams
}

func (r *Rig) addLoad(grams float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load = math.Max(r.load+grams, 0)
}

// Scale simulates a NAU7802-style ADC.
type Scale struct {
	rig *Rig

	mu      sync.Mutex
	Missing bool  // Begin fails
	ReadErr error // returned by Reading when set
	begun   bool
	powered bool
	reads   int

	SampleRate int
	Gain       int
	LDO        int
	AFE        int // number of AFE calibrations
}

func (s *Scale) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Missing {
		return ErrNotDetected
	}
	s.begun = true
	return nil
}

func (s *Scale) SetSampleRate(sps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SampleRate = sps
	return nil
}

func (s *Scale) SetGain(gain int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gain = gain
	return nil
}

func (s *Scale) SetLDO(millivolts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LDO = millivolts
	return nil
}

func (s *Scale) CalibrateAFE() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AFE++
	return nil
}

func (s *Scale) PowerUp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powered = true
	return nil
}

func (s *Scale) PowerDown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powered = false
	return nil
}

// Powered reports the simulated power state.
func (s *Scale) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powered
}

// Reads returns how many conversions were taken.
func (s *Scale) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Reading returns counts for the current load plus deterministic noise.
func (s *Scale) Reading() (int32, error) {
	load := s.rig.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.ReadErr != nil:
		return 0, s.ReadErr
	case !s.begun:
		return 0, ErrNotDetected
	case !s.powered:
		return 0, ErrPoweredDown
	}

	s.reads++
	n := float64(s.reads)
	noise := (math.Sin(n*0.7) + math.Cos(n*1.3)) * 0.5 * s.rig.cfg.Noise
	counts := s.rig.cfg.ZeroCounts + load*s.rig.cfg.CountsPerGram + noise
	return int32(math.Round(counts)), nil
}

// Switch simulates a relay. While on it changes the load at rate grams/s.
type Switch struct {
	rig  *Rig
	rate float64

	mu    sync.Mutex
	Fail  bool
	on    bool
	onAt  time.Time
	runs  int
	total time.Duration
}

func (s *Switch) Begin() error { return nil }

func (s *Switch) On() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrFault
	}
	if !s.on {
		s.on = true
		s.onAt = s.rig.now()
	}
	return nil
}

func (s *Switch) Off() error {
	s.mu.Lock()
	if !s.on {
		s.mu.Unlock()
		return nil
	}
	elapsed := s.rig.now().Sub(s.onAt)
	s.on = false
	s.runs++
	s.total += elapsed
	rate := s.rate
	s.mu.Unlock()

	if rate != 0 {
		s.rig.addLoad(rate * elapsed.Seconds())
	}
	return nil
}

// IsOn reports the relay state.
func (s *Switch) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// Runs returns completed on/off cycles.
func (s *Switch) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// OnTime returns the accumulated on time.
func (s *Switch) OnTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Pin is a pump output line.
type Pin struct {
	Switch
}

func (p *Pin) High() { _ = p.On() }

func (p *Pin) Low() { _ = p.Off() }

// Stepper simulates the dispenser driver; forward steps add powder.
type Stepper struct {
	rig *Rig

	mu      sync.Mutex
	enabled bool
	steps   int
	lastDir int
	calls   int
}

func (s *Stepper) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = true
	return nil
}

func (s *Stepper) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	return nil
}

// Step moves the auger. Steps are delivered regardless of the enable state,
// as a driver with its enable line floating would.
func (s *Stepper) Step(count int, dir int) error {
	s.mu.Lock()
	s.calls++
	s.steps += count
	s.lastDir = dir
	s.mu.Unlock()

	if dir == 0 && count > 0 {
		s.rig.addLoad(float64(count) * s.rig.cfg.GramsPerStep)
	}
	return nil
}

// Enabled reports the simulated driver enable line.
func (s *Stepper) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Steps returns the total steps issued, the last direction and the number of calls.
func (s *Stepper) Steps() (total, lastDir, calls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps, s.lastDir, s.calls
}
