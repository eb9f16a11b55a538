// Package fault classifies controller errors so that a single caller can decide
// whether to halt the device or reject the command and carry on.
package fault

import "errors"

// Kind is the error class of a failure.
type Kind int

const (
	// Recoverable failures are reported to the host and execution continues.
	Recoverable Kind = iota
	// Malformed marks a frame with missing or non-numeric arguments.
	Malformed
	// SetupFatal marks a device that was not detected or was misconfigured.
	SetupFatal
	// ConfigInvalid marks an invalid runtime configuration value (dispenser direction).
	ConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case Recoverable:
		return "recoverable"
	case Malformed:
		return "malformed"
	case SetupFatal:
		return "setup_fatal"
	case ConfigInvalid:
		return "config_invalid"
	default:
		return "unknown"
	}
}

// Error keeps the kind, the failing operation and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name. A nil err stays nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// defaulting to Recoverable for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Recoverable
}

// Fatal reports whether err must stop the device under the halt policy.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case SetupFatal, ConfigInvalid:
		return true
	}
	return false
}
