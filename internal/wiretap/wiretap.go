// Package wiretap reads gossip frames straight off a connection and reports
// what each one is, without running a receiver.
package wiretap

import (
	"context"
	"errors"
	"io"

	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
	"github.com/danmuck/tanglegossip/internal/protocol/schema"
	"github.com/danmuck/tanglegossip/internal/protocol/version"
	"github.com/rs/zerolog"
)

// Record describes one frame. Invalid is set when the header or payload was
// rejected; Message is set otherwise. Version fields are only filled for handshakes.
type Record struct {
	Header  frame.Header
	Name    string
	Invalid error
	Message protocol.Message

	Version       int
	VersionErr    error
	RemoteHighest int
	SpeaksSting   bool
}

// Tap decodes frames read from a peer.
type Tap struct {
	limits frame.Limits
	log    zerolog.Logger
}

func New(limits frame.Limits, logger zerolog.Logger) *Tap {
	if limits.MaxPayloadBytes <= 0 {
		limits = frame.DefaultLimits()
	}
	return &Tap{limits: limits, log: logger}
}

// Greet writes hs as one frame, which is what a peer expects first.
func Greet(w io.Writer, hs protocol.Handshake) error {
	return frame.WriteFrame(w, frame.Frame{
		Header:  frame.Header{Type: protocol.HandshakeID},
		Payload: hs.Encode(),
	})
}

// Next reads one frame. Read and limit errors are returned; malformed
// messages come back as a Record with Invalid set.
func (t *Tap) Next(r io.Reader) (Record, error) {
	f, err := frame.ReadFrame(r, t.limits)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Header: f.Header, Name: schema.Name(f.Header.Type)}
	if err := schema.Validate(f.Header); err != nil {
		rec.Invalid = err
		return rec, nil
	}
	msg, err := decode(f)
	if err != nil {
		rec.Invalid = err
		return rec, nil
	}
	rec.Message = msg
	if hs, ok := msg.(protocol.Handshake); ok {
		remote := hs.Versions()
		rec.Version, rec.VersionErr = version.Negotiated(remote)
		rec.RemoteHighest = version.Highest(remote)
		rec.SpeaksSting = version.Supports(remote, version.Sting)
	}
	return rec, nil
}

// Watch greets the peer on rw, then reports frames to fn until count frames
// were seen (count <= 0 means no limit), the stream ends or ctx is done.
// Closing rw is the caller's job; Watch only checks ctx between frames.
func (t *Tap) Watch(ctx context.Context, rw io.ReadWriter, hs protocol.Handshake, count int, fn func(Record)) error {
	if err := Greet(rw, hs); err != nil {
		return err
	}
	for seen := 0; count <= 0 || seen < count; seen++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := t.Next(rw)
		if errors.Is(err, frame.ErrShortHeader) {
			t.log.Debug().Int("frames", seen).Msg("stream ended")
			return nil
		}
		if err != nil {
			return err
		}
		fn(rec)
	}
	return nil
}

func decode(f frame.Frame) (protocol.Message, error) {
	switch f.Header.Type {
	case protocol.HandshakeID:
		return protocol.DecodeHandshakeFrame(f.Header, f.Payload)
	case protocol.LegacyGossipID:
		return protocol.DecodeLegacyGossipFrame(f.Header, f.Payload)
	case protocol.MilestoneRequestID:
		return protocol.DecodeMilestoneRequestFrame(f.Header, f.Payload)
	case protocol.TransactionBroadcastID:
		return protocol.DecodeTransactionBroadcastFrame(f.Header, f.Payload)
	case protocol.TransactionRequestID:
		return protocol.DecodeTransactionRequestFrame(f.Header, f.Payload)
	case protocol.HeartbeatID:
		return protocol.DecodeHeartbeatFrame(f.Header, f.Payload)
	default:
		return nil, &protocol.TypeError{Advertised: f.Header.Type}
	}
}
