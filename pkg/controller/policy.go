package controller

import "fmt"

// Policy decides the outcome of SetupFatal and ConfigInvalid faults.
type Policy int

const (
	// PolicyHalt disables the dispenser, reports `<Halted:...>` and stops
	// accepting frames.
	PolicyHalt Policy = iota
	// PolicyReject reports `<Error:...>` and keeps running.
	PolicyReject
)

func (p Policy) String() string {
	switch p {
	case PolicyHalt:
		return "halt"
	case PolicyReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a config value to a Policy. The empty string is PolicyHalt.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "halt":
		return PolicyHalt, nil
	case "reject":
		return PolicyReject, nil
	default:
		return PolicyHalt, fmt.Errorf("unknown fault policy %q", s)
	}
}
