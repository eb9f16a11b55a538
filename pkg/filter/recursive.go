package filter

// Exponential is a single-pole recursive filter: f = a*x + (1-a)*f_prev.
// The first sample seeds the running value. EWMA and LPF are both Exponential
// with independent weights and state.
type Exponential struct {
	alpha  float32
	value  float32
	seeded bool
}

// NewExponential returns a filter weighting each new sample by alpha.
func NewExponential(alpha float32) *Exponential {
	return &Exponential{alpha: alpha}
}

// Filter feeds x and returns the new running value.
func (e *Exponential) Filter(x float32) float32 {
	if !e.seeded {
		e.value = x
		e.seeded = true
		return e.value
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
	return e.value
}

// Value returns the current running value.
func (e *Exponential) Value() float32 { return e.value }

// Reset forgets the running value; the next sample seeds it again.
func (e *Exponential) Reset() {
	e.value = 0
	e.seeded = false
}

// Moving is a simple moving average over a fixed circular window.
// Until the window fills the divisor is the number of samples seen so far.
type Moving struct {
	values []float32
	index  int
	count  int
	sum    float32
}

// NewMoving returns a moving average over size samples.
func NewMoving(size int) *Moving {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Moving{values: make([]float32, size)}
}

// Filter feeds x and returns the mean of the samples currently in the window.
func (m *Moving) Filter(x float32) float32 {
	m.sum -= m.values[m.index]
	m.values[m.index] = x
	m.index = (m.index + 1) % len(m.values)
	m.sum += x
	if m.count < len(m.values) {
		m.count++
	}
	return m.sum / float32(m.count)
}

// Len returns how many samples contribute to the current average.
func (m *Moving) Len() int { return m.count }

// Reset empties the window.
func (m *Moving) Reset() {
	clear(m.values)
	m.index = 0
	m.count = 0
	m.sum = 0
}
