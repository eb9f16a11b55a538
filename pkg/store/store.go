// Package store is a byte-addressable persistent store with the layout of the
// controller's EEPROM: three float32 slots at fixed offsets and a bulk clear.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/chewxy/math32"
)

// DefaultSize is the EEPROM size of an Arduino Uno class board.
const DefaultSize = 1024

// Slot is the byte offset of a persisted value.
type Slot int

const (
	CalibrationFactor Slot = 0
	ZeroOffset        Slot = 10
	Channel1Offset    Slot = 20
)

const slotWidth = 4

// ErrOutOfRange is returned when a slot does not fit the backing store.
var ErrOutOfRange = errors.New("store: slot out of range")

// Backend is the raw storage under an EEPROM.
type Backend interface {
	io.ReaderAt
	io.WriterAt
	Size() int
}

// EEPROM reads and writes float32 slots in little-endian order.
// A slot whose bytes are all zero is reported as unset, so a stored +0.0
// reads back the same as a slot that was never written.
type EEPROM struct {
	b Backend
}

// New wraps a backend.
func New(b Backend) *EEPROM {
	return &EEPROM{b: b}
}

// Float32 returns the value stored at slot and whether it was ever written.
func (e *EEPROM) Float32(s Slot) (float32, bool, error) {
	if err := e.check(s); err != nil {
		return 0, false, err
	}

	var buf [slotWidth]byte
	if _, err := e.b.ReadAt(buf[:], int64(s)); err != nil {
		return 0, false, fmt.Errorf("failed to read slot %d: %w", s, err)
	}

	bits := binary.LittleEndian.Uint32(buf[:])
	if bits == 0 {
		return 0, false, nil
	}
	return math32.Float32frombits(bits), true, nil
}

// PutFloat32 writes v at slot.
func (e *EEPROM) PutFloat32(s Slot, v float32) error {
	if err := e.check(s); err != nil {
		return err
	}

	var buf [slotWidth]byte
	binary.LittleEndian.PutUint32(buf[:], math32.Float32bits(v))
	if _, err := e.b.WriteAt(buf[:], int64(s)); err != nil {
		return fmt.Errorf("failed to write slot %d: %w", s, err)
	}
	return nil
}

// Clear zeroes every byte of the store.
func (e *EEPROM) Clear() error {
	zero := make([]byte, e.b.Size())
	if _, err := e.b.WriteAt(zero, 0); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

func (e *EEPROM) check(s Slot) error {
	if s < 0 || int(s)+slotWidth > e.b.Size() {
		return fmt.Errorf("%w: %d", ErrOutOfRange, s)
	}
	return nil
}
