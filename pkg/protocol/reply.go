package protocol

import (
	"io"
	"strconv"

	"github.com/itohio/gopowder/pkg/filter"
)

// Decimals is the precision of values in measurement replies.
const Decimals = 4

const (
	TagWeight = "Weight"
	TagADC    = "ADC"

	NotRunning = "Scale not running"
	Banner     = "Ready to push powder, baby!"
)

// Replier writes framed replies for the frame currently being handled.
type Replier struct {
	w       io.Writer
	frame   string
	millis  uint32
	pending bool
	buf     []byte
}

// Pending reports whether the current frame has not been echoed yet.
func (r *Replier) Pending() bool { return r.pending }

// Echo acknowledges the current frame with `<Msg frame Time ms>`. It writes
// nothing when the frame was already acknowledged.
func (r *Replier) Echo() error {
	if !r.pending {
		return nil
	}
	r.pending = false

	b := r.buf[:0]
	b = append(b, StartMarker)
	b = append(b, "Msg "...)
	b = append(b, r.frame...)
	b = append(b, " Time "...)
	b = strconv.AppendUint(b, uint64(r.millis), 10)
	b = append(b, EndMarker, '\n')
	r.buf = b
	_, err := r.w.Write(b)
	return err
}

// Measurement writes `<tag:value,samples,filter>` with the filter ordinal.
func (r *Replier) Measurement(tag string, value float32, samples int, kind filter.Kind) error {
	b := r.buf[:0]
	b = append(b, StartMarker)
	b = append(b, tag...)
	b = append(b, ':')
	b = strconv.AppendFloat(b, float64(value), 'f', Decimals, 32)
	b = append(b, Separator)
	b = strconv.AppendInt(b, int64(samples), 10)
	b = append(b, Separator)
	b = strconv.AppendInt(b, int64(kind), 10)
	b = append(b, EndMarker, '\n')
	r.buf = b
	_, err := r.w.Write(b)
	return err
}

// Message writes `<text>`.
func (r *Replier) Message(text string) error {
	return WriteMessage(r.w, text)
}

// WriteMessage writes text as a single framed line.
func WriteMessage(w io.Writer, text string) error {
	b := make([]byte, 0, len(text)+3)
	b = append(b, StartMarker)
	b = append(b, text...)
	b = append(b, EndMarker, '\n')
	_, err := w.Write(b)
	return err
}

// WriteError writes `<Error:msg>`.
func WriteError(w io.Writer, err error) error {
	return WriteMessage(w, "Error:"+err.Error())
}
