package qwiicrelay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"github.com/itohio/gopowder/pkg/actuator"
)

var (
	_ drivers.I2C     = (*fakeBus)(nil)
	_ actuator.Switch = (*Device)(nil)
)

// fakeBus hosts relay boards keyed by address.
type fakeBus struct {
	relays map[uint16]bool
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	on, ok := b.relays[addr]
	if !ok {
		return errors.New("nack")
	}
	switch w[0] {
	case cmdOn:
		b.relays[addr] = true
	case cmdOff:
		b.relays[addr] = false
	case cmdVersion:
		r[0] = 0x12
	case cmdStatus:
		r[0] = 0
		if on {
			r[0] = 1
		}
	}
	return nil
}

func TestRelay(t *testing.T) {
	bus := &fakeBus{relays: map[uint16]bool{Address: false, AlternateAddress: false}}
	drain := New(bus, 0)
	mixer := New(bus, AlternateAddress)

	require.NoError(t, drain.Begin())
	require.NoError(t, mixer.Begin())

	require.NoError(t, mixer.On())
	on, err := mixer.State()
	require.NoError(t, err)
	assert.True(t, on)
	assert.False(t, bus.relays[Address], "boards are addressed independently")

	require.NoError(t, mixer.Off())
	on, err = mixer.State()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestRelay_NotDetected(t *testing.T) {
	bus := &fakeBus{relays: map[uint16]bool{}}
	d := New(bus, 0x1A)

	assert.ErrorIs(t, d.Begin(), ErrNotDetected)
	assert.Error(t, d.On())
	_, err := d.State()
	assert.Error(t, err)
}
