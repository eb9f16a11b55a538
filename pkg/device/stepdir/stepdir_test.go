package stepdir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopowder/pkg/actuator"
)

var _ actuator.Stepper = (*Driver)(nil)

type pin struct {
	high  bool
	rises int
}

func (p *pin) High() {
	if !p.high {
		p.rises++
	}
	p.high = true
}

func (p *pin) Low() { p.high = false }

func TestDriver(t *testing.T) {
	step, dir, en := &pin{}, &pin{}, &pin{}
	var slept time.Duration
	d := New(Config{
		Step:            step,
		Dir:             dir,
		Enable:          en,
		EnableActiveLow: true,
		Sleep:           func(d time.Duration) { slept += d },
	})

	require.NoError(t, d.Begin())
	assert.True(t, en.high, "active-low enable is released high")

	require.NoError(t, d.Enable())
	assert.False(t, en.high)

	require.NoError(t, d.Step(25, 1))
	assert.Equal(t, 25, step.rises)
	assert.False(t, step.high)
	assert.True(t, dir.high)
	assert.Equal(t, 50*DefaultPulse, slept)

	require.NoError(t, d.Step(3, 0))
	assert.False(t, dir.high)
	assert.Equal(t, 28, step.rises)

	assert.ErrorIs(t, d.Step(-1, 0), ErrSteps)

	require.NoError(t, d.Disable())
	assert.True(t, en.high)
}

func TestDriver_NoEnableLine(t *testing.T) {
	d := New(Config{Step: &pin{}, Dir: &pin{}, Sleep: func(time.Duration) {}})
	require.NoError(t, d.Enable())
	require.NoError(t, d.Step(1, 0))
}
