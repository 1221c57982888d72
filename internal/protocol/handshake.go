package protocol

const (
	handshakePortSize        = 2
	handshakeTimestampSize   = 8
	CoordinatorSize          = 49
	handshakeMWMSize         = 1
	handshakeConstantSize    = handshakePortSize + handshakeTimestampSize + CoordinatorSize + handshakeMWMSize
	handshakeVersionsMinSize = 1
	// VersionsSize is the width of the supported-version bitmask carried by a handshake.
	VersionsSize = 32
)

// HandshakeRange accepts the constant fields plus 1 to 32 bitmask bytes.
var HandshakeRange = Range{
	Min: handshakeConstantSize + handshakeVersionsMinSize,
	Max: handshakeConstantSize + VersionsSize,
}

// Handshake is exchanged once per connection before any other message.
type Handshake struct {
	Port                   uint16
	Timestamp              uint64
	Coordinator            [CoordinatorSize]byte
	MinimumWeightMagnitude uint8
	// SupportedVersions is zero padded when the peer sent fewer than VersionsSize bytes.
	SupportedVersions [VersionsSize]byte
}

// NewHandshake copies versions into the fixed-width bitmask; bytes past VersionsSize are dropped.
func NewHandshake(port uint16, timestamp uint64, coordinator [CoordinatorSize]byte, mwm uint8, versions []byte) Handshake {
	h := Handshake{
		Port:                   port,
		Timestamp:              timestamp,
		Coordinator:            coordinator,
		MinimumWeightMagnitude: mwm,
	}
	copy(h.SupportedVersions[:], versions)
	return h
}

// Versions returns the advertised version mask without trailing zero bytes.
func (h Handshake) Versions() []byte {
	n := len(h.SupportedVersions)
	for n > 0 && h.SupportedVersions[n-1] == 0 {
		n--
	}
	out := make([]byte, n)
	copy(out, h.SupportedVersions[:n])
	return out
}

func (Handshake) ID() uint8 { return HandshakeID }

func (Handshake) Size() int { return handshakeConstantSize + VersionsSize }

func (h Handshake) Encode() []byte {
	out := make([]byte, 0, h.Size())
	out = appendUint16(out, h.Port)
	out = appendUint64(out, h.Timestamp)
	out = append(out, h.Coordinator[:]...)
	out = append(out, h.MinimumWeightMagnitude)
	return append(out, h.SupportedVersions[:]...)
}

func DecodeHandshake(b []byte) (Handshake, error) {
	if err := checkLength(HandshakeID, HandshakeRange, b); err != nil {
		return Handshake{}, err
	}
	var (
		h   Handshake
		err error
	)
	r := newFieldReader(HandshakeID, b)
	if h.Port, err = r.uint16("port"); err != nil {
		return Handshake{}, err
	}
	if h.Timestamp, err = r.uint64("timestamp"); err != nil {
		return Handshake{}, err
	}
	if err = r.copyInto("coordinator", h.Coordinator[:]); err != nil {
		return Handshake{}, err
	}
	if h.MinimumWeightMagnitude, err = r.uint8("minimum_weight_magnitude"); err != nil {
		return Handshake{}, err
	}
	copy(h.SupportedVersions[:], r.rest())
	return h, nil
}
