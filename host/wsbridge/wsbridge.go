// Package wsbridge tunnels a raw L0 byte stream over a websocket
// connection, so a link can be driven without a physical UART —
// useful for CI and browser-side demos.
package wsbridge

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"l0link/host/serial"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Bridge adapts a *websocket.Conn to host/serial.Port: each inbound
// binary message is treated as raw link bytes to be fed byte-by-byte
// into a Parser, and each Write is sent as its own binary message.
type Bridge struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending []byte // bytes read from the current message not yet consumed
}

// Dial connects to a websocket server exposing an L0 bridge endpoint.
func Dial(url string) (*Bridge, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: dial %s: %w", url, err)
	}
	return &Bridge{conn: conn}, nil
}

// Upgrade turns an incoming HTTP request into a Bridge, for a process
// acting as the websocket server side of the link.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Bridge, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: upgrade: %w", err)
	}
	return &Bridge{conn: conn}, nil
}

// Read implements io.Reader by draining the current binary message (or
// the next one if exhausted) into b.
func (br *Bridge) Read(b []byte) (int, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	if len(br.pending) == 0 {
		_, msg, err := br.conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("wsbridge: read: %w", err)
		}
		br.pending = msg
	}

	n := copy(b, br.pending)
	br.pending = br.pending[n:]
	return n, nil
}

// Write implements io.Writer by sending b as a single binary message.
func (br *Bridge) Write(b []byte) (int, error) {
	if err := br.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, fmt.Errorf("wsbridge: write: %w", err)
	}
	return len(b), nil
}

// Close closes the underlying connection.
func (br *Bridge) Close() error {
	return br.conn.Close()
}

// Flush is a no-op: each Write is already its own websocket message.
// It does not discard input; bytes left over from an already received
// message stay pending for the next Read.
func (br *Bridge) Flush() error {
	return nil
}

// SetReadDeadline arranges for Read to time out, mirroring the
// inter-byte read timeout a native serial port offers via
// serial.Config.ReadTimeout.
func (br *Bridge) SetReadDeadline(d time.Duration) error {
	return br.conn.SetReadDeadline(time.Now().Add(d))
}

var _ serial.Port = (*Bridge)(nil)
