// Package i2cdev exposes a Linux /dev/i2c-N adapter as a drivers.I2C bus.
package i2cdev

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Bus is an open I2C adapter. Transactions are serialized.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16
	set  bool
}

// Open opens the adapter at path, for example /dev/i2c-1.
func Open(path string) (*Bus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c adapter %s: %w", path, err)
	}
	return &Bus{f: f}, nil
}

// Tx writes w to addr and then reads len(r) bytes. The kernel issues a stop
// between the write and the read.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.set || b.addr != addr {
		if err := unix.IoctlSetInt(int(b.f.Fd()), unix.I2C_SLAVE, int(addr)); err != nil {
			return fmt.Errorf("failed to select i2c address 0x%02x: %w", addr, err)
		}
		b.addr, b.set = addr, true
	}
	if len(w) > 0 {
		if _, err := b.f.Write(w); err != nil {
			return fmt.Errorf("i2c write to 0x%02x: %w", addr, err)
		}
	}
	if len(r) > 0 {
		if _, err := io.ReadFull(b.f, r); err != nil {
			return fmt.Errorf("i2c read from 0x%02x: %w", addr, err)
		}
	}
	return nil
}

// Close closes the adapter.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.f.Close()
}
