//go:build !wasm

package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// NativePort is a Port backed by a real UART, opened fresh on startup
// with no bytes from a prior run carried forward: a link always begins
// its handshake from a known-empty wire.
type NativePort struct {
	port *serial.Port
}

// Open opens a native serial port and discards anything already
// sitting in its OS-level buffers, so the first byte the link sees
// after Open is whatever the peer sends after this side starts
// listening, not a leftover frame from before the port was opened.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	np := &NativePort{port: port}
	if err := np.Flush(); err != nil {
		np.port.Close()
		return nil, fmt.Errorf("failed to clear stale input on %s: %w", cfg.Device, err)
	}
	return np, nil
}

// Read reads data from the serial port.
func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port.
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port.
func (p *NativePort) Close() error {
	return p.port.Close()
}

// Flush discards buffered input and output at the OS level. A link
// calls this before Initiate so a stale byte from before the port was
// opened can't be mistaken for part of the new handshake.
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
