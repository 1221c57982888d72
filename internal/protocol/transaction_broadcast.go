package protocol

const (
	TransactionMinSize = 292
	TransactionMaxSize = 1604
)

var TransactionBroadcastRange = Range{Min: TransactionMinSize, Max: TransactionMaxSize}

// TransactionBroadcast carries one opaque transaction.
type TransactionBroadcast struct {
	Transaction []byte
}

func NewTransactionBroadcast(tx []byte) TransactionBroadcast {
	out := make([]byte, len(tx))
	copy(out, tx)
	return TransactionBroadcast{Transaction: out}
}

func (TransactionBroadcast) ID() uint8 { return TransactionBroadcastID }

func (m TransactionBroadcast) Size() int { return len(m.Transaction) }

func (m TransactionBroadcast) Encode() []byte {
	out := make([]byte, len(m.Transaction))
	copy(out, m.Transaction)
	return out
}

func DecodeTransactionBroadcast(b []byte) (TransactionBroadcast, error) {
	if err := checkLength(TransactionBroadcastID, TransactionBroadcastRange, b); err != nil {
		return TransactionBroadcast{}, err
	}
	return NewTransactionBroadcast(b), nil
}
