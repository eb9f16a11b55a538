//go:build !linux

package i2cdev

import "errors"

var errUnsupported = errors.New("i2cdev: only supported on linux")

// Bus is unavailable on this platform.
type Bus struct{}

// Open always fails on this platform.
func Open(path string) (*Bus, error) { return nil, errUnsupported }

func (b *Bus) Tx(addr uint16, w, r []byte) error { return errUnsupported }

func (b *Bus) Close() error { return nil }
