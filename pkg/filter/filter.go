// Package filter smooths raw scale samples.
//
// A Pipeline owns one persistent state per filter kind. Calls must come from a
// single caller: two logical sample streams sharing a Pipeline corrupt each other.
package filter

const (
	// DefaultEWMAAlpha is the weight of a new sample in the EWMA filter.
	DefaultEWMAAlpha = 0.05
	// DefaultLPFAlpha is the weight of a new sample in the low-pass filter.
	DefaultLPFAlpha = 0.5
	// DefaultWindow is the SMA window size.
	DefaultWindow = 10
)

// Kind selects a filtering strategy. The ordinal is sent to the host in
// measurement replies.
type Kind int

const (
	None Kind = iota
	EWMA
	SMA
	LPF
)

var kindNames = [...]string{"NONE", "EWMA", "SMA", "LPF"}

func (k Kind) String() string {
	if k < None || k > LPF {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// ParseKind maps an exact, case-sensitive filter name to a Kind.
// Unknown names fall back to EWMA with ok == false so callers can log the fallback.
func ParseKind(s string) (k Kind, ok bool) {
	for i, name := range kindNames {
		if s == name {
			return Kind(i), true
		}
	}
	return EWMA, false
}

// Options tunes the stateful filters. Zero values take the defaults.
type Options struct {
	EWMAAlpha float32
	LPFAlpha  float32
	Window    int
}

// Pipeline applies one of the filter kinds to a sample.
type Pipeline struct {
	ewma Exponential
	sma  *Moving
	lpf  Exponential
}

// New creates a Pipeline with the given options.
func New(opts Options) *Pipeline {
	if opts.EWMAAlpha <= 0 || opts.EWMAAlpha > 1 {
		opts.EWMAAlpha = DefaultEWMAAlpha
	}
	if opts.LPFAlpha <= 0 || opts.LPFAlpha > 1 {
		opts.LPFAlpha = DefaultLPFAlpha
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}

	return &Pipeline{
		ewma: Exponential{alpha: opts.EWMAAlpha},
		sma:  NewMoving(opts.Window),
		lpf:  Exponential{alpha: opts.LPFAlpha},
	}
}

// Apply filters sample with the state of the given kind.
// Kinds outside the known range pass the sample through unchanged.
func (p *Pipeline) Apply(kind Kind, sample float32) float32 {
	switch kind {
	case EWMA:
		return p.ewma.Filter(sample)
	case SMA:
		return p.sma.Filter(sample)
	case LPF:
		return p.lpf.Filter(sample)
	default:
		return sample
	}
}

// Reset drops the state of every filter kind.
func (p *Pipeline) Reset() {
	p.ewma.Reset()
	p.sma.Reset()
	p.lpf.Reset()
}
