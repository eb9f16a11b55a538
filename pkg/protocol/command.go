package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/itohio/gopowder/pkg/fault"
)

var (
	ErrMissingArg = errors.New("missing argument")
	ErrBadArg     = errors.New("invalid argument")
)

// Command is one decoded frame: a name and positional arguments.
type Command struct {
	Name string
	Args []string
}

// Parse splits a frame body on commas. Empty tokens are skipped, so "Mix,,2"
// carries a single argument. No escaping is supported.
func Parse(frame []byte) Command {
	tokens := strings.FieldsFunc(string(frame), func(r rune) bool { return r == Separator })
	if len(tokens) == 0 {
		return Command{}
	}
	return Command{Name: tokens[0], Args: tokens[1:]}
}

// Arg returns argument i.
func (c Command) Arg(i int) (string, error) {
	if i < 0 || i >= len(c.Args) {
		return "", fault.New(fault.Malformed, c.Name, fmt.Errorf("%w %d", ErrMissingArg, i+1))
	}
	return c.Args[i], nil
}

// Int parses argument i as a decimal integer.
func (c Command) Int(i int) (int, error) {
	s, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fault.New(fault.Malformed, c.Name, fmt.Errorf("%w %d: %q is not an integer", ErrBadArg, i+1, s))
	}
	return v, nil
}

// Float parses argument i as a float.
func (c Command) Float(i int) (float32, error) {
	s, err := c.Arg(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return 0, fault.New(fault.Malformed, c.Name, fmt.Errorf("%w %d: %q is not a number", ErrBadArg, i+1, s))
	}
	return float32(v), nil
}
