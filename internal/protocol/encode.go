package protocol

import "github.com/danmuck/tanglegossip/internal/protocol/frame"

// Encode returns the full wire form of msg: header followed by payload.
func Encode(msg Message) []byte {
	payload := msg.Encode()
	return frame.Frame{
		Header:  frame.Header{Type: msg.ID(), Length: uint16(len(payload))},
		Payload: payload,
	}.Bytes()
}
