package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEEPROM_SlotRoundTrip(t *testing.T) {
	e := New(NewMemory(0))

	_, set, err := e.Float32(CalibrationFactor)
	require.NoError(t, err)
	assert.False(t, set, "fresh store reports unset slots")

	require.NoError(t, e.PutFloat32(CalibrationFactor, 32591.4))
	require.NoError(t, e.PutFloat32(ZeroOffset, -421735.2))
	require.NoError(t, e.PutFloat32(Channel1Offset, 7))

	v, set, err := e.Float32(CalibrationFactor)
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, float32(32591.4), v)

	v, _, err = e.Float32(ZeroOffset)
	require.NoError(t, err)
	assert.Equal(t, float32(-421735.2), v)

	v, _, err = e.Float32(Channel1Offset)
	require.NoError(t, err)
	assert.Equal(t, float32(7), v)
}

func TestEEPROM_LittleEndianLayout(t *testing.T) {
	mem := NewMemory(64)
	e := New(mem)

	require.NoError(t, e.PutFloat32(ZeroOffset, 1)) // 0x3f800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, mem.data[10:14])
}

func TestEEPROM_Clear(t *testing.T) {
	e := New(NewMemory(32))
	require.NoError(t, e.PutFloat32(CalibrationFactor, 3))
	require.NoError(t, e.PutFloat32(Channel1Offset, 4))

	require.NoError(t, e.Clear())

	for _, s := range []Slot{CalibrationFactor, ZeroOffset, Channel1Offset} {
		_, set, err := e.Float32(s)
		require.NoError(t, err)
		assert.False(t, set, "slot %d", s)
	}
}

func TestEEPROM_OutOfRange(t *testing.T) {
	e := New(NewMemory(16))

	_, _, err := e.Float32(Channel1Offset)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, e.PutFloat32(Slot(-1), 1), ErrOutOfRange)
}

func TestFile_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")

	f, err := OpenFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, f.Size())
	require.NoError(t, New(f).PutFloat32(CalibrationFactor, 12.5))
	require.NoError(t, f.Close())

	f, err = OpenFile(path, 0)
	require.NoError(t, err)
	defer f.Close()

	v, set, err := New(f).Float32(CalibrationFactor)
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, float32(12.5), v)

	_, err = f.WriteAt(make([]byte, 8), int64(DefaultSize-4))
	assert.Error(t, err)
}
