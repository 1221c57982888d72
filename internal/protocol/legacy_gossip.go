package protocol

// LegacyGossipRange is a transaction followed by the hash the sender wants in return.
var LegacyGossipRange = Range{Min: TransactionMinSize + HashSize, Max: TransactionMaxSize + HashSize}

// LegacyGossip is the pre-v2 combined broadcast and request. Receivers decode it but never act on it.
type LegacyGossip struct {
	Transaction []byte
	Hash        Hash
}

func (LegacyGossip) ID() uint8 { return LegacyGossipID }

func (m LegacyGossip) Size() int { return len(m.Transaction) + HashSize }

func (m LegacyGossip) Encode() []byte {
	out := make([]byte, 0, m.Size())
	out = append(out, m.Transaction...)
	return append(out, m.Hash[:]...)
}

func DecodeLegacyGossip(b []byte) (LegacyGossip, error) {
	if err := checkLength(LegacyGossipID, LegacyGossipRange, b); err != nil {
		return LegacyGossip{}, err
	}
	var m LegacyGossip
	r := newFieldReader(LegacyGossipID, b)
	tx, err := r.span("transaction", r.remaining()-HashSize)
	if err != nil {
		return LegacyGossip{}, err
	}
	m.Transaction = append([]byte(nil), tx...)
	if err := r.copyInto("hash", m.Hash[:]); err != nil {
		return LegacyGossip{}, err
	}
	return m, nil
}
