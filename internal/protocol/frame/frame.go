package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

// HeaderSize is the size of the type-length prefix carried by every message.
const HeaderSize = 3

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrShortPayload    = errors.New("frame: short payload")
)

// Header is the fixed wire header: message type followed by the big-endian payload length.
type Header struct {
	Type   uint8
	Length uint16
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 1<<16 - 1,
	}
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Type
	binary.BigEndian.PutUint16(buf[1:3], h.Length)
	return buf
}

// DecodeHeader never fails: any three bytes form a syntactically valid header.
// Whether the type is known and the length acceptable is up to the caller.
func DecodeHeader(b [HeaderSize]byte) Header {
	return Header{
		Type:   b[0],
		Length: binary.BigEndian.Uint16(b[1:3]),
	}
}

// ParseHeader decodes the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return DecodeHeader([HeaderSize]byte(b[:HeaderSize])), nil
}

// Bytes returns the header followed by the payload. The header length is taken from the payload.
func (f Frame) Bytes() []byte {
	h := f.Header
	h.Length = uint16(len(f.Payload))
	out := make([]byte, 0, HeaderSize+len(f.Payload))
	out = append(out, EncodeHeader(h)...)
	return append(out, f.Payload...)
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h := DecodeHeader(fixed)
	if limits.MaxPayloadBytes > 0 && int(h.Length) > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Frame{}, ErrShortPayload
			}
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > 1<<16-1 {
		return ErrPayloadTooLarge
	}
	_, err := w.Write(f.Bytes())
	return err
}
