// Package link connects the host controller to the dosing rig's serial line
// and exposes it as a non-blocking byte source.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the rig firmware.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the number of received bytes held before the reader drops input.
	DefaultBufferSize = 4096
)

var (
	ErrNotConnected = errors.New("link: not connected")
	ErrConnected    = errors.New("link: already connected")
	ErrEmpty        = errors.New("link: no byte buffered")
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Opener opens the underlying byte stream.
type Opener func(name string, baud int) (io.ReadWriteCloser, error)

// OpenSerial opens a real serial port in 8N1 mode.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial is a connection to the rig. Bytes are read on a background
// goroutine into a bounded queue so Buffered and ReadByte never block.
type Serial struct {
	port     string
	baudRate int
	open     Opener

	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	rx        chan byte
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
	dropped   int
}

// New creates a link on port. Zero baudRate and bufSize select the defaults
// and a nil open selects OpenSerial.
func New(port string, baudRate, bufSize int, open Opener) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}
	if open == nil {
		open = OpenSerial
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		open:     open,
		rx:       make(chan byte, bufSize),
	}
}

// Connect opens the port and starts the reader.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrConnected
	}

	conn, err := s.open(s.port, s.baudRate)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.connected = true

	go s.read(ctx, conn, s.done)

	return nil
}

// Close closes the port and waits for the reader to exit. Bytes already
// buffered remain readable.
func (s *Serial) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	err := s.conn.Close()
	done := s.done
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Dropped returns how many received bytes were discarded on a full queue.
func (s *Serial) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Buffered returns the number of received bytes waiting to be read.
func (s *Serial) Buffered() int { return len(s.rx) }

// ReadByte returns the next received byte or ErrEmpty.
func (s *Serial) ReadByte() (byte, error) {
	select {
	case b := <-s.rx:
		return b, nil
	default:
		return 0, ErrEmpty
	}
}

// Write sends p to the rig.
func (s *Serial) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return 0, ErrNotConnected
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to serial port: %w", err)
	}
	return n, nil
}

func (s *Serial) read(ctx context.Context, conn io.Reader, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			select {
			case s.rx <- b:
			default:
				s.mu.Lock()
				s.dropped++
				s.mu.Unlock()
			}
		}

		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				log.Printf("Error reading from serial port: %v", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}
