package schema

import (
	"fmt"

	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
)

// Spec describes one known message kind.
type Spec struct {
	Type  uint8
	Name  string
	Range protocol.Range
}

type ValidationError struct {
	MessageType uint8
	Length      int
	Reason      string
}

const (
	reasonUnknownType = "unknown message_type"
	reasonLength      = "length out of range"
)

func (e ValidationError) Error() string {
	return fmt.Sprintf("schema: message_type=%d length=%d: %s", e.MessageType, e.Length, e.Reason)
}

func (e ValidationError) Unwrap() error {
	if e.Reason == reasonLength {
		return protocol.ErrInvalidLength
	}
	return protocol.ErrInvalidType
}

var names = map[uint8]string{
	protocol.HandshakeID:            "handshake",
	protocol.LegacyGossipID:         "legacy_gossip",
	protocol.MilestoneRequestID:     "milestone_request",
	protocol.TransactionBroadcastID: "transaction_broadcast",
	protocol.TransactionRequestID:   "transaction_request",
	protocol.HeartbeatID:            "heartbeat",
}

var specs = buildSpecs()

func buildSpecs() map[uint8]Spec {
	out := make(map[uint8]Spec, len(names))
	for id, name := range names {
		r, ok := protocol.SizeRange(id)
		if !ok {
			panic(fmt.Sprintf("schema: no size range for %s", name))
		}
		out[id] = Spec{Type: id, Name: name, Range: r}
	}
	return out
}

func Lookup(messageType uint8) (Spec, bool) {
	s, ok := specs[messageType]
	return s, ok
}

// Name returns the kind name, or "unknown" for unassigned ids.
func Name(messageType uint8) string {
	if s, ok := specs[messageType]; ok {
		return s.Name
	}
	return "unknown"
}

// Validate checks that a header names a known kind and advertises a length that kind accepts.
func Validate(h frame.Header) error {
	s, ok := specs[h.Type]
	if !ok {
		return ValidationError{MessageType: h.Type, Length: int(h.Length), Reason: reasonUnknownType}
	}
	if !s.Range.Contains(int(h.Length)) {
		return ValidationError{MessageType: h.Type, Length: int(h.Length), Reason: reasonLength}
	}
	return nil
}
