// Package link is the external collaborator around the L0 core: it
// drives an l0.Parser and l0.Encoder over a host/serial.Port, owns the
// inter-byte timer, and dispatches completed packets to a
// caller-supplied handler. Both sides of a connection run the same
// Link type, each tracking its own outbound sequence number
// independently of the Parser's inbound one.
package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"l0link/host/serial"
	"l0link/l0"
)

// PacketHandler receives packets completed by the Parser.
type PacketHandler func(l0.Packet)

// Link owns one end of a point-to-point L0 connection.
type Link struct {
	parser l0.Parser
	enc    l0.Encoder
	port   serial.Port
	log    *logrus.Entry

	timeout  time.Duration
	onPacket PacketHandler

	writeMu sync.Mutex
	ownSeq  l0.PacketSeq // next sequence number this side will send

	done chan struct{}
}

// New creates a Link over an already-open port. timeout is the period
// of the inter-byte timer: when it fires, Run calls Parser.Timeout,
// which is a no-op while the link is synchronized and idle and
// otherwise resets the Parser, so SyncReq is transmitted at once.
// onPacket is called synchronously from Run's
// goroutine for every completed packet; it must not block. initialSeq
// is this side's first outbound sequence number; it must be valid per
// l0.PacketSeq.IsValid.
func New(port serial.Port, timeout time.Duration, initialSeq l0.PacketSeq, onPacket PacketHandler, log *logrus.Logger) *Link {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Link{
		port:     port,
		timeout:  timeout,
		onPacket: onPacket,
		log:      log.WithField("component", "l0-link"),
		ownSeq:   initialSeq,
		done:     make(chan struct{}),
	}
}

// Initiate begins the handshake as the initiating side: it flushes any
// stale input on the port, resets the Parser (which is already in its
// initial state), transmits the resulting SyncReq byte, and follows it
// with this side's seq0.
func (l *Link) Initiate() error {
	if err := l.port.Flush(); err != nil {
		return fmt.Errorf("link: flush before initiate: %w", err)
	}
	r := l.parser.Reset()
	if err := l.act(r); err != nil {
		return err
	}
	return l.writeByte(byte(l.ownSeq))
}

// Send encodes and writes pkt to the port, stamping it with this
// side's next outbound sequence number.
func (l *Link) Send(pkt l0.Packet) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	pkt.Seq = l.ownSeq
	l.ownSeq = l.ownSeq.Next()

	if _, err := l.enc.Encode(l.port, pkt); err != nil {
		return fmt.Errorf("link: send: %w", err)
	}
	return nil
}

func (l *Link) writeByte(b byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_, err := l.port.Write([]byte{b})
	if err != nil {
		return fmt.Errorf("link: write byte 0x%02X: %w", b, err)
	}
	return nil
}

// Run reads one byte at a time from the port, feeds the Parser, and
// drives the inter-byte timer until ctx is cancelled or the port
// returns an unrecoverable read error.
func (l *Link) Run(ctx context.Context) error {
	defer close(l.done)

	byteCh := make(chan byte)
	errCh := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := l.port.Read(buf)
			for i := 0; i < n; i++ {
				select {
				case byteCh <- buf[i]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				errCh <- err
				return
			}
		}
	}()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errCh:
			return fmt.Errorf("link: read: %w", err)

		case b := <-byteCh:
			r := l.parser.Parse(b)
			l.log.WithFields(logrus.Fields{"byte": fmt.Sprintf("0x%02X", b)}).Debug("parsed byte")
			if err := l.act(r); err != nil {
				return err
			}
			l.applyTimer(timer, r.TimerAction())

		case <-timer.C:
			r := l.parser.Timeout()
			l.log.Debug("inter-byte timer fired")
			if err := l.act(r); err != nil {
				return err
			}
			l.applyTimer(timer, r.TimerAction())
		}
	}
}

// act handles a ParseResult's side effects common to both Parse and
// Timeout: transmitting a requested sync byte, dispatching a completed
// packet, and — on the one ParseResult shape unique to a responder
// that just completed the handshake (sync=SyncAck, state=READY, no
// packet) — following SyncAck with this side's own seq0.
func (l *Link) act(r l0.ParseResult) error {
	if r.Sync != 0 {
		if err := l.writeByte(r.Sync); err != nil {
			return err
		}
		if r.Sync == l0.SyncAck && r.State == l0.StateReady && r.Packet == nil {
			if err := l.writeByte(byte(l.ownSeq)); err != nil {
				return err
			}
		}
	}
	if r.Packet != nil && l.onPacket != nil {
		l.onPacket(*r.Packet)
	}
	return nil
}

func (l *Link) applyTimer(timer *time.Timer, action l0.TimerAction) {
	switch action {
	case l0.TimerRestart:
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.timeout)
	case l0.TimerStop:
		timer.Stop()
	}
}

// Close closes the underlying port, combining that with any other
// cleanup error into a single multierror.
func (l *Link) Close() error {
	var result *multierror.Error

	if err := l.port.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("link: close port: %w", err))
	}

	select {
	case <-l.done:
	case <-time.After(time.Second):
		result = multierror.Append(result, fmt.Errorf("link: Run did not stop within 1s of port close"))
	}

	return result.ErrorOrNil()
}
