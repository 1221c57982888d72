package protocol

import "github.com/danmuck/tanglegossip/internal/protocol/frame"

// decodeFrame checks the header against the kind and the payload before the kind's own decode.
func decodeFrame[T Message](h frame.Header, payload []byte, decode func([]byte) (T, error)) (T, error) {
	var zero T
	if h.Type != zero.ID() {
		return zero, &TypeError{Advertised: h.Type, Expected: zero.ID()}
	}
	if int(h.Length) != len(payload) {
		return zero, &AdvertisedLengthError{Type: h.Type, Advertised: int(h.Length), Actual: len(payload)}
	}
	return decode(payload)
}

func DecodeHandshakeFrame(h frame.Header, payload []byte) (Handshake, error) {
	return decodeFrame(h, payload, DecodeHandshake)
}

func DecodeLegacyGossipFrame(h frame.Header, payload []byte) (LegacyGossip, error) {
	return decodeFrame(h, payload, DecodeLegacyGossip)
}

func DecodeMilestoneRequestFrame(h frame.Header, payload []byte) (MilestoneRequest, error) {
	return decodeFrame(h, payload, DecodeMilestoneRequest)
}

func DecodeTransactionBroadcastFrame(h frame.Header, payload []byte) (TransactionBroadcast, error) {
	return decodeFrame(h, payload, DecodeTransactionBroadcast)
}

func DecodeTransactionRequestFrame(h frame.Header, payload []byte) (TransactionRequest, error) {
	return decodeFrame(h, payload, DecodeTransactionRequest)
}

func DecodeHeartbeatFrame(h frame.Header, payload []byte) (Heartbeat, error) {
	return decodeFrame(h, payload, DecodeHeartbeat)
}
