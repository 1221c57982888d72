package wiretap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
	"github.com/danmuck/tanglegossip/internal/protocol/schema"
	"github.com/danmuck/tanglegossip/internal/protocol/version"
	"github.com/danmuck/tanglegossip/internal/testutil/testlog"
)

var testCoordinator = [protocol.CoordinatorSize]byte{0x10, 0x20, 0x30}

func testHandshake(versions []byte) protocol.Handshake {
	return protocol.NewHandshake(15600, 1700000000, testCoordinator, 14, versions)
}

// duplex reads from in and records writes in out.
type duplex struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func (d *duplex) Read(p []byte) (int, error)  { return d.in.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.out.Write(p) }

func TestGreetWritesHandshakeFrame(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	hs := testHandshake(version.Supported())
	if err := Greet(&buf, hs); err != nil {
		t.Fatalf("greet: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), protocol.Encode(hs)) {
		t.Fatalf("greeting differs from encoded handshake")
	}
}

func TestNextReportsHandshakeVersions(t *testing.T) {
	testlog.Start(t)
	tap := New(frame.DefaultLimits(), testlog.Logger(t))

	rec, err := tap.Next(bytes.NewReader(protocol.Encode(testHandshake(version.Mask(1, 2, 9)))))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if rec.Name != "handshake" || rec.Invalid != nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Version != version.Sting || rec.VersionErr != nil {
		t.Fatalf("negotiated got=%d err=%v", rec.Version, rec.VersionErr)
	}
	if rec.RemoteHighest != 9 || !rec.SpeaksSting {
		t.Fatalf("remote highest=%d sting=%v", rec.RemoteHighest, rec.SpeaksSting)
	}

	rec, err = tap.Next(bytes.NewReader(protocol.Encode(testHandshake(version.Mask(1)))))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !errors.Is(rec.VersionErr, version.ErrVersionMismatch) || rec.SpeaksSting {
		t.Fatalf("expected version mismatch, got %+v", rec)
	}
}

func TestNextMarksInvalidFrames(t *testing.T) {
	testlog.Start(t)
	tap := New(frame.Limits{}, testlog.Logger(t))
	var stream bytes.Buffer
	stream.Write(frame.Frame{Header: frame.Header{Type: protocol.MilestoneRequestID}, Payload: []byte{1, 2, 3}}.Bytes())
	stream.Write(frame.Frame{Header: frame.Header{Type: 0x42}, Payload: []byte{1}}.Bytes())
	stream.Write(protocol.Encode(protocol.Heartbeat{SolidMilestoneIndex: 4, SnapshotMilestoneIndex: 2}))

	rec, err := tap.Next(&stream)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	var vErr schema.ValidationError
	if !errors.As(rec.Invalid, &vErr) || vErr.Length != 3 {
		t.Fatalf("expected length validation error, got %+v", rec)
	}
	rec, err = tap.Next(&stream)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if rec.Name != "unknown" || !errors.Is(rec.Invalid, protocol.ErrInvalidType) {
		t.Fatalf("expected unknown type record, got %+v", rec)
	}
	rec, err = tap.Next(&stream)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	hb, ok := rec.Message.(protocol.Heartbeat)
	if !ok || hb.SolidMilestoneIndex != 4 {
		t.Fatalf("expected heartbeat, got %+v", rec)
	}
}

func TestNextEnforcesLimits(t *testing.T) {
	testlog.Start(t)
	tap := New(frame.Limits{MaxPayloadBytes: 16}, testlog.Logger(t))
	_, err := tap.Next(bytes.NewReader(protocol.Encode(testHandshake(version.Supported()))))
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWatchGreetsAndStopsAtCount(t *testing.T) {
	testlog.Start(t)
	var stream bytes.Buffer
	stream.Write(protocol.Encode(testHandshake(version.Supported())))
	stream.Write(protocol.Encode(protocol.MilestoneRequest{Index: 7}))
	stream.Write(protocol.Encode(protocol.MilestoneRequest{Index: 8}))
	conn := &duplex{in: bytes.NewReader(stream.Bytes())}

	tap := New(frame.DefaultLimits(), testlog.Logger(t))
	var names []string
	hs := testHandshake(version.Supported())
	if err := tap.Watch(context.Background(), conn, hs, 2, func(r Record) { names = append(names, r.Name) }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(names) != 2 || names[0] != "handshake" || names[1] != "milestone_request" {
		t.Fatalf("unexpected records: %v", names)
	}
	if !bytes.Equal(conn.out.Bytes(), protocol.Encode(hs)) {
		t.Fatalf("watch did not greet the peer")
	}
}

func TestWatchEndsCleanlyAtEOF(t *testing.T) {
	testlog.Start(t)
	conn := &duplex{in: bytes.NewReader(protocol.Encode(protocol.MilestoneRequest{Index: 1}))}
	tap := New(frame.DefaultLimits(), testlog.Logger(t))
	seen := 0
	if err := tap.Watch(context.Background(), conn, testHandshake(nil), 0, func(Record) { seen++ }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if seen != 1 {
		t.Fatalf("records got=%d want=1", seen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	conn = &duplex{in: bytes.NewReader(nil)}
	if err := tap.Watch(ctx, conn, testHandshake(nil), 0, func(Record) {}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
