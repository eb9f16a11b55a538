package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/itohio/gopowder/pkg/config"
	"github.com/itohio/gopowder/pkg/link"
)

// loopPort delivers queued input and collects replies.
type loopPort struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

func (p *loopPort) send(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.WriteString(s)
}

func (p *loopPort) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.in.Len()
}

func (p *loopPort) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.in.Len() == 0 {
		return 0, link.ErrEmpty
	}
	return p.in.ReadByte()
}

func (p *loopPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *loopPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *loopPort) output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

func TestServe_Mock(t *testing.T) {
	defer goleak.VerifyNone(t)
	logger = zap.NewNop()

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "cal.bin")
	cfg.Mock.Noise = 0
	cfg.Mock.SampleInterval = time.Millisecond

	port := &loopPort{}
	port.send("<Meas,5,NONE><Mix,0.01><Foo>")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, true, port) }()

	require.Eventually(t, func() bool {
		return strings.Contains(port.output(), "<Msg Foo Time ")
	}, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	lines := strings.Split(strings.TrimSpace(port.output()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "<Ready to push powder, baby!>", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "<Msg Meas,5,NONE Time "), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "<Weight:0.0000,5,0>") || strings.HasPrefix(lines[2], "<Weight:-0.0000,5,0>"), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "<Msg Mix,0.01 Time "), lines[3])
	assert.True(t, port.closed)

	_, err := os.Stat(cfg.Store.Path)
	assert.NoError(t, err, "calibration store is created")
}

func TestMockDevices(t *testing.T) {
	cfg := config.Default()
	cfg.Pump.Pins = []int{12, 13}
	cfg.Mock.LoadGrams = 3

	dev := mockDevices(cfg)
	require.NotNil(t, dev.rig)
	assert.Len(t, dev.pumps, 2)
	assert.Len(t, dev.peripherals, 2)
	assert.Equal(t, 3.0, dev.rig.Load())
	assert.NoError(t, dev.Close())
}

func TestCommands_ConfigAndStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dosed.yaml")

	execute := func(args ...string) (string, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
		err := rootCmd.Execute()
		return out.String(), err
	}

	out, err := execute("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")

	_, err = execute("config", "init")
	assert.Error(t, err, "init refuses to overwrite")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Store.Path = filepath.Join(dir, "cal.bin")
	require.NoError(t, cfg.Save(cfgPath))

	out, err = execute("store", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "calibration_factor: unset")

	out, err = execute("store", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Store cleared")
}
