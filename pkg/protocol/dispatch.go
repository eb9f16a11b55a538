package protocol

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/itohio/gopowder/pkg/fault"
	"github.com/itohio/gopowder/pkg/scale"
)

// HandlerFunc executes one command. Handlers decide when to echo; the
// dispatcher echoes on their behalf if they return without doing so.
type HandlerFunc func(ctx context.Context, cmd Command, r *Replier) error

// Dispatcher maps command names to handlers and writes replies to w.
type Dispatcher struct {
	w        io.Writer
	millis   func() uint32
	handlers map[string]HandlerFunc
	replier  Replier
}

// NewDispatcher creates an empty dispatch table writing replies to w.
// millis supplies the counter printed in echo replies.
func NewDispatcher(w io.Writer, millis func() uint32) *Dispatcher {
	if millis == nil {
		millis = func() uint32 { return 0 }
	}
	return &Dispatcher{
		w:        w,
		millis:   millis,
		handlers: make(map[string]HandlerFunc),
		replier:  Replier{w: w, buf: make([]byte, 0, FrameSize+32)},
	}
}

// Register binds name to fn, replacing any earlier binding.
func (d *Dispatcher) Register(name string, fn HandlerFunc) {
	d.handlers[name] = fn
}

// Commands returns the number of registered commands.
func (d *Dispatcher) Commands() int { return len(d.handlers) }

// Handle parses and executes one frame. Unrecognized commands are only
// echoed. Recoverable and malformed failures are reported to the host and
// swallowed. SetupFatal and ConfigInvalid failures are returned after the
// echo so the caller can apply its fault policy.
func (d *Dispatcher) Handle(ctx context.Context, frame []byte) error {
	r := &d.replier
	r.frame = string(frame)
	r.millis = d.millis()
	r.pending = true

	cmd := Parse(frame)
	h, ok := d.handlers[cmd.Name]
	if !ok {
		return r.Echo()
	}

	err := h(ctx, cmd, r)
	if echoErr := r.Echo(); echoErr != nil {
		return echoErr
	}
	if err == nil {
		return nil
	}
	if fault.Fatal(err) {
		return err
	}
	return d.report(err)
}

func (d *Dispatcher) report(err error) error {
	if errors.Is(err, scale.ErrNotRunning) {
		return WriteMessage(d.w, NotRunning)
	}
	log.Printf("%s command failed: %v", fault.KindOf(err), err)
	return WriteError(d.w, err)
}
