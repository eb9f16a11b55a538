// Package sysfsgpio drives Linux GPIO output lines through /sys/class/gpio.
package sysfsgpio

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultRoot is the sysfs GPIO class directory.
const DefaultRoot = "/sys/class/gpio"

// Pin is an exported output line. It satisfies actuator.Pin; write errors
// are logged because the pin interface has no error return.
type Pin struct {
	n     int
	value *os.File
}

// Open exports line n under root (DefaultRoot when empty), configures it as
// an output and drives it low.
func Open(root string, n int) (*Pin, error) {
	if root == "" {
		root = DefaultRoot
	}
	dir := filepath.Join(root, "gpio"+strconv.Itoa(n))

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(n)), 0); err != nil {
			return nil, fmt.Errorf("failed to export gpio %d: %w", n, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("low"), 0); err != nil {
		return nil, fmt.Errorf("failed to set gpio %d direction: %w", n, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "value"), os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open gpio %d value: %w", n, err)
	}
	return &Pin{n: n, value: f}, nil
}

// Number returns the line number.
func (p *Pin) Number() int { return p.n }

func (p *Pin) High() { p.set('1') }

func (p *Pin) Low() { p.set('0') }

func (p *Pin) set(v byte) {
	if _, err := p.value.WriteAt([]byte{v}, 0); err != nil {
		log.Printf("Failed to write gpio %d: %v", p.n, err)
	}
}

// Close releases the value file. The line stays exported.
func (p *Pin) Close() error { return p.value.Close() }
