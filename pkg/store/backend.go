package store

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Memory is a RAM backend, used by tests and boards without EEPROM.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory allocates a zeroed backend of size bytes.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) Size() int { return len(m.data) }

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("write of %d bytes at %d exceeds store size %d", len(p), off, len(m.data))
	}
	return copy(m.data[off:], p), nil
}

// File is a fixed-size file backend for the Linux build.
type File struct {
	f    *os.File
	size int
}

// OpenFile opens or creates path and grows it to size bytes.
func OpenFile(path string, size int) (*File, error) {
	if size <= 0 {
		size = DefaultSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat store %s: %w", path, err)
	}
	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size store %s: %w", path, err)
		}
	}

	return &File{f: f, size: size}, nil
}

func (f *File) Size() int { return f.size }

func (f *File) ReadAt(p []byte, off int64) (int, error) { return f.f.ReadAt(p, off) }

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(f.size) {
		return 0, fmt.Errorf("write of %d bytes at %d exceeds store size %d", len(p), off, f.size)
	}
	return f.f.WriteAt(p, off)
}

// Close syncs and closes the file.
func (f *File) Close() error {
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	return f.f.Close()
}
