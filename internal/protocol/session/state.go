package session

import (
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
)

// State is one receiver state. Each variant carries only what that state needs.
type State interface {
	Name() string
	isState()
}

// AwaitingConnection is the initial state and the state after a disconnect.
type AwaitingConnection struct{}

// AwaitingHandshake waits for the peer's handshake. Header is set once a
// header-only read has been seen and the payload is expected next.
type AwaitingHandshake struct {
	Header *frame.Header
}

// AwaitingMessage reassembles framed messages. Header is set when a header has
// been consumed and its payload is incomplete; Buffer holds the unconsumed tail.
type AwaitingMessage struct {
	Header *frame.Header
	Buffer []byte
}

func (AwaitingConnection) Name() string { return "awaiting_connection" }
func (AwaitingHandshake) Name() string  { return "awaiting_handshake" }
func (AwaitingMessage) Name() string    { return "awaiting_message" }

func (AwaitingConnection) isState() {}
func (AwaitingHandshake) isState()  {}
func (AwaitingMessage) isState()    {}

// Event is one transport lifecycle or data event for a peer.
type Event interface {
	isEvent()
}

type Connected struct{}

type Disconnected struct{}

// Received carries one transport read. Data is owned by the receiver after delivery.
type Received struct {
	Data []byte
}

// Removed ends the session permanently.
type Removed struct{}

func (Connected) isEvent()    {}
func (Disconnected) isEvent() {}
func (Received) isEvent()     {}
func (Removed) isEvent()      {}

// Effect is a side effect requested by a transition. The receiver executes
// effects in order.
type Effect interface {
	isEffect()
}

// SendHandshake asks for the local handshake to be written to the peer.
type SendHandshake struct{}

// HandshakeAccepted reports a decoded handshake. VersionErr is set when no
// common protocol version exists; Version is then 0.
type HandshakeAccepted struct {
	Handshake  protocol.Handshake
	Version    int
	VersionErr error
}

// HandshakeRejected reports a handshake that failed decode or validation.
type HandshakeRejected struct {
	Header frame.Header
	Err    error
}

// ShortRead reports a handshake-mode read below header size that was dropped.
type ShortRead struct {
	Length int
}

// Dispatch hands one reassembled message to the router. Payload does not alias
// the session buffer.
type Dispatch struct {
	Header  frame.Header
	Payload []byte
}

// PeerLost reports that a handshaked peer disconnected.
type PeerLost struct{}

func (SendHandshake) isEffect()     {}
func (HandshakeAccepted) isEffect() {}
func (HandshakeRejected) isEffect() {}
func (ShortRead) isEffect()         {}
func (Dispatch) isEffect()          {}
func (PeerLost) isEffect()          {}
