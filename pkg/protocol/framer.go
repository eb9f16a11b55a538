// Package protocol implements the serial command protocol of the dosing
// controller: `<`/`>` delimited ASCII frames of comma separated tokens, a
// dispatch table keyed by the first token, and framed replies.
package protocol

const (
	StartMarker = '<'
	EndMarker   = '>'
	Separator   = ','

	// FrameSize is the frame buffer capacity; one byte is reserved for the
	// terminator, so at most FrameSize-1 body bytes are kept.
	FrameSize = 128
)

// State of the framer.
type State int

const (
	// Idle waits for a start marker and discards everything else.
	Idle State = iota
	// Reading accumulates body bytes until the end marker.
	Reading
)

func (s State) String() string {
	if s == Reading {
		return "reading"
	}
	return "idle"
}

// Framer extracts frames from a byte stream one byte at a time.
// It never blocks and never allocates.
type Framer struct {
	buf   [FrameSize]byte
	n     int
	state State
}

// State returns the current framer state.
func (f *Framer) State() State { return f.state }

// Feed consumes one byte. When b completes a frame, Feed returns the frame
// body and true; the framer is already back in Idle. The returned slice is
// only valid until the next call to Feed.
//
// Bytes past the buffer capacity are dropped silently and the frame is still
// delivered, truncated, when its end marker arrives. A start marker while
// reading restarts the frame.
func (f *Framer) Feed(b byte) ([]byte, bool) {
	switch f.state {
	case Idle:
		if b == StartMarker {
			f.state = Reading
			f.n = 0
		}
		return nil, false

	default:
		switch b {
		case EndMarker:
			f.state = Idle
			return f.buf[:f.n], true
		case StartMarker:
			f.n = 0
			return nil, false
		}
		if f.n < FrameSize-1 {
			f.buf[f.n] = b
			f.n++
		} else {
			f.n = FrameSize - 1
		}
		return nil, false
	}
}

// Reset drops a partial frame.
func (f *Framer) Reset() {
	f.state = Idle
	f.n = 0
}
