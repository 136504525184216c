// Package serial abstracts the byte source/sink an L0 link runs over.
package serial

import (
	"io"
)

// Port represents a serial port interface.
// This abstraction allows for different implementations:
//   - Native serial (using github.com/tarm/serial)
//   - A websocket bridge (host/wsbridge), for hardware-free testing
//   - A mock port, for unit tests
type Port interface {
	io.ReadWriteCloser

	// Flush discards any buffered input and output. A link calls this
	// before Initiate so a handshake never starts with a stale byte
	// already sitting in the pipe.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate. Ignored by transports (USB CDC, websocket) that
	// don't have one.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for an L0 link.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200, // common default for point-to-point UART links
		ReadTimeout: 100,    // 100ms read timeout
	}
}
