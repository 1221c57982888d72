package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/tanglegossip/internal/testutil/testlog"
)

func TestHeaderRoundTripAllTypesAndLengths(t *testing.T) {
	testlog.Start(t)
	for typ := 0; typ <= 0xff; typ++ {
		for length := 0; length <= 0xffff; length++ {
			in := Header{Type: uint8(typ), Length: uint16(length)}
			raw := EncodeHeader(in)
			if len(raw) != HeaderSize {
				t.Fatalf("encoded header size got=%d want=%d", len(raw), HeaderSize)
			}
			out := DecodeHeader([HeaderSize]byte(raw))
			if out != in {
				t.Fatalf("header mismatch got=%+v want=%+v", out, in)
			}
		}
	}
}

func TestEncodeHeaderIsBigEndian(t *testing.T) {
	testlog.Start(t)
	raw := EncodeHeader(Header{Type: 0x04, Length: 0x0124})
	if !bytes.Equal(raw, []byte{0x04, 0x01, 0x24}) {
		t.Fatalf("unexpected header bytes: %x", raw)
	}
}

func TestParseHeaderShortInput(t *testing.T) {
	testlog.Start(t)
	if _, err := ParseHeader([]byte{1, 2}); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	h, err := ParseHeader([]byte{3, 0, 4, 0xaa})
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if h.Type != 3 || h.Length != 4 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestReadWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := Frame{Header: Header{Type: 3}, Payload: []byte{0x81, 0xf7, 0xdf, 0x7c}}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if buf.Len() != HeaderSize+4 {
		t.Fatalf("unexpected frame size: %d", buf.Len())
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Type != 3 || out.Header.Length != 4 {
		t.Fatalf("header mismatch: %+v", out.Header)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameMalformedInput(t *testing.T) {
	testlog.Start(t)
	if _, err := ReadFrame(bytes.NewReader([]byte{1, 2}), DefaultLimits()); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader([]byte{1, 0, 5, 1, 2}), DefaultLimits()); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
	_, err := ReadFrame(bytes.NewReader([]byte{1, 0x10, 0x00}), Limits{MaxPayloadBytes: 16})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
