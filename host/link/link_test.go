package link

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"l0link/host/serial"
	"l0link/l0"
)

// pipePort adapts a net.Conn (as produced by net.Pipe) to serial.Port
// for in-process link-to-link tests.
type pipePort struct {
	net.Conn
}

func (pipePort) Flush() error { return nil }

func newPipePair() (serial.Port, serial.Port) {
	a, b := net.Pipe()
	return pipePort{a}, pipePort{b}
}

func TestHandshakeAndBidirectionalSend(t *testing.T) {
	portA, portB := newPipePair()

	receivedA := make(chan l0.Packet, 4)
	receivedB := make(chan l0.Packet, 4)

	linkA := New(portA, 200*time.Millisecond, 1, func(p l0.Packet) { receivedA <- p }, nil)
	linkB := New(portB, 200*time.Millisecond, 4, func(p l0.Packet) { receivedB <- p }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go linkA.Run(ctx)
	go linkB.Run(ctx)

	require.NoError(t, linkA.Initiate())

	// Give the handshake time to settle, then exchange packets both ways.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, linkA.Send(l0.Packet{Code: 0x02, Data: []byte{1, 2, 3}}))
	select {
	case pkt := <-receivedB:
		require.Equal(t, uint8(2), pkt.Code)
		require.Equal(t, []byte{1, 2, 3}, pkt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for B to receive A's packet")
	}

	require.NoError(t, linkB.Send(l0.Packet{Code: 0x05}))
	select {
	case pkt := <-receivedA:
		require.Equal(t, uint8(5), pkt.Code)
		require.Empty(t, pkt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for A to receive B's packet")
	}

	cancel()
	require.NoError(t, linkA.Close())
	require.NoError(t, linkB.Close())
}
