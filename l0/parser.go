package l0

// parsingState is the Parser's internal phase, a closed set of
// alternatives dispatched with a single switch per byte. The
// unexported type keeps the set closed to this file so the switch in
// Parse stays exhaustive.
type parsingState uint8

const (
	stateAwaitSyncAck parsingState = iota
	stateAwaitReqSeq
	stateAwaitAckSeq
	stateAwaitMsgSeq
	stateAwaitMsgAckSeq
	stateAwaitMsgCode
	stateAwaitMsgLen
	stateAwaitMsgData
)

// Parser is the receive-side state machine: it consumes one byte per
// call to Parse, drives the sync handshake, reassembles Packets, and
// reports a ParseResult advising the caller what (if anything) to
// transmit and how to drive its inter-byte timer. A Parser is
// synchronous, allocation-light, and exclusively owned by its caller
// for the life of a link; the zero value is ready to use.
type Parser struct {
	state           parsingState
	peerSeq         PacketSeq
	pktSeq          PacketSeq
	pktCode         uint8
	buf             FixedBuffer
	expectedDataLen int
}

// Parse consumes a single received byte and returns the resulting
// verdict.
func (p *Parser) Parse(b byte) ParseResult {
	switch p.state {
	case stateAwaitSyncAck:
		return p.parseAwaitSyncAck(b)
	case stateAwaitReqSeq:
		return p.parseAwaitReqSeq(b)
	case stateAwaitAckSeq:
		return p.parseAwaitAckSeq(b)
	case stateAwaitMsgSeq:
		return p.parseAwaitMsgSeq(b)
	case stateAwaitMsgAckSeq:
		return p.parseAwaitMsgAckSeq(b)
	case stateAwaitMsgCode:
		return p.parseAwaitMsgCode(b)
	case stateAwaitMsgLen:
		return p.parseAwaitMsgLen(b)
	case stateAwaitMsgData:
		return p.parseAwaitMsgData(b)
	default:
		// Unreachable: parsingState's alphabet is closed to this file.
		return p.Reset()
	}
}

func (p *Parser) parseAwaitSyncAck(b byte) ParseResult {
	switch b {
	case SyncReq:
		p.state = stateAwaitReqSeq
		return ParseResult{State: StateRecv}
	case SyncAck:
		p.state = stateAwaitAckSeq
		return ParseResult{State: StateRecv}
	default:
		return ParseResult{}
	}
}

func (p *Parser) parseAwaitReqSeq(b byte) ParseResult {
	if !IsValidSeq(b) {
		return p.Reset()
	}
	p.peerSeq = PacketSeq(b)
	p.state = stateAwaitMsgSeq
	return ParseResult{Sync: SyncAck, State: StateReady}
}

func (p *Parser) parseAwaitAckSeq(b byte) ParseResult {
	if !IsValidSeq(b) {
		return p.Reset()
	}
	p.peerSeq = PacketSeq(b)
	p.state = stateAwaitMsgSeq
	return ParseResult{State: StateReady}
}

func (p *Parser) parseAwaitMsgSeq(b byte) ParseResult {
	switch {
	case b == SyncReq:
		p.state = stateAwaitReqSeq
		return ParseResult{State: StateRecv}
	case b == SyncAck:
		p.state = stateAwaitMsgAckSeq
		return ParseResult{State: StateReady | StateRecv}
	case b == byte(p.peerSeq):
		p.pktSeq = p.peerSeq
		p.peerSeq = p.peerSeq.Next()
		p.buf.Reset()
		p.state = stateAwaitMsgCode
		return ParseResult{State: StateReady | StateRecv}
	default:
		return p.Reset()
	}
}

func (p *Parser) parseAwaitMsgAckSeq(b byte) ParseResult {
	if b == byte(p.peerSeq) {
		p.state = stateAwaitMsgSeq
		return ParseResult{State: StateReady}
	}
	return p.Reset()
}

func (p *Parser) parseAwaitMsgCode(b byte) ParseResult {
	p.pktCode = b & codeMask
	lenNibble := (b >> lenShift) & escapeNib

	switch {
	case lenNibble == 0:
		return p.emitPacket()
	case lenNibble == escapeNib:
		p.state = stateAwaitMsgLen
		return ParseResult{State: StateReady | StateRecv}
	default:
		p.expectedDataLen = int(lenNibble)
		p.buf.Reset()
		p.state = stateAwaitMsgData
		return ParseResult{State: StateReady | StateRecv}
	}
}

func (p *Parser) parseAwaitMsgLen(b byte) ParseResult {
	if b >= 0x80 {
		return p.Reset()
	}
	if b == 0 {
		return p.emitPacket()
	}
	p.expectedDataLen = int(b)
	p.buf.Reset()
	p.state = stateAwaitMsgData
	return ParseResult{State: StateReady | StateRecv}
}

func (p *Parser) parseAwaitMsgData(b byte) ParseResult {
	p.buf.Append(b)
	if p.buf.Len() >= p.expectedDataLen {
		return p.emitPacket()
	}
	return ParseResult{State: StateReady | StateRecv}
}

func (p *Parser) emitPacket() ParseResult {
	pkt := &Packet{
		Seq:  p.pktSeq,
		Code: p.pktCode,
		Data: p.buf.Bytes(),
	}
	p.buf.Reset()
	p.expectedDataLen = 0
	p.state = stateAwaitMsgSeq
	return ParseResult{State: StateReady, Packet: pkt}
}

// Reset unconditionally returns the Parser to its initial sync state
// and instructs the caller to transmit SyncReq. It is used both
// externally and internally to abort malformed input. peerSeq is
// zeroed, since nothing reachable before the next sync reads it; the
// in-progress packet buffer is left for the next reassembly to reset.
func (p *Parser) Reset() ParseResult {
	p.state = stateAwaitSyncAck
	p.peerSeq = 0
	return ParseResult{Sync: SyncReq}
}

// Timeout signals that the caller's inter-byte timer fired. Idle at
// AWAIT_MSG_SEQ this is a no-op (nothing partial is on the wire);
// otherwise it is equivalent to a desync.
func (p *Parser) Timeout() ParseResult {
	if p.state == stateAwaitMsgSeq {
		return ParseResult{State: StateReady}
	}
	return p.Reset()
}
