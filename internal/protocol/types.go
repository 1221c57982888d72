package protocol

// Message type ids. Assigned once, never reused.
const (
	HandshakeID            uint8 = 0x01
	LegacyGossipID         uint8 = 0x02
	MilestoneRequestID     uint8 = 0x03
	TransactionBroadcastID uint8 = 0x04
	TransactionRequestID   uint8 = 0x05
	HeartbeatID            uint8 = 0x06
)

// HashSize is the size of a transaction identifier on the wire.
const HashSize = 49

// Hash identifies a transaction.
type Hash [HashSize]byte

// Message is one typed payload kind.
type Message interface {
	// ID returns the kind's wire type id.
	ID() uint8
	// Size returns the encoded payload length.
	Size() int
	// Encode returns the payload bytes, without header.
	Encode() []byte
}

// Range is an inclusive range of accepted payload lengths.
type Range struct {
	Min int
	Max int
}

func (r Range) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// SizeRange returns the accepted payload range for a known type id.
func SizeRange(id uint8) (Range, bool) {
	switch id {
	case HandshakeID:
		return HandshakeRange, true
	case LegacyGossipID:
		return LegacyGossipRange, true
	case MilestoneRequestID:
		return MilestoneRequestRange, true
	case TransactionBroadcastID:
		return TransactionBroadcastRange, true
	case TransactionRequestID:
		return TransactionRequestRange, true
	case HeartbeatID:
		return HeartbeatRange, true
	default:
		return Range{}, false
	}
}

func checkLength(id uint8, r Range, b []byte) error {
	if !r.Contains(len(b)) {
		return &LengthError{Type: id, Length: len(b)}
	}
	return nil
}
