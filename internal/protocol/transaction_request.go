package protocol

var TransactionRequestRange = Range{Min: HashSize, Max: HashSize}

// TransactionRequest asks a peer for the transaction identified by Hash.
type TransactionRequest struct {
	Hash Hash
}

func (TransactionRequest) ID() uint8 { return TransactionRequestID }

func (TransactionRequest) Size() int { return HashSize }

func (m TransactionRequest) Encode() []byte {
	out := make([]byte, HashSize)
	copy(out, m.Hash[:])
	return out
}

func DecodeTransactionRequest(b []byte) (TransactionRequest, error) {
	if err := checkLength(TransactionRequestID, TransactionRequestRange, b); err != nil {
		return TransactionRequest{}, err
	}
	var m TransactionRequest
	if err := newFieldReader(TransactionRequestID, b).copyInto("hash", m.Hash[:]); err != nil {
		return TransactionRequest{}, err
	}
	return m, nil
}
