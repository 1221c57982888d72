package session

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
	"github.com/danmuck/tanglegossip/internal/protocol/version"
)

var (
	ErrCoordinatorMismatch = errors.New("session: handshake coordinator mismatch")
	ErrMWMMismatch         = errors.New("session: handshake minimum weight magnitude mismatch")
)

// Machine computes receiver transitions. It holds only read-only configuration.
type Machine struct {
	// Versions is the local version mask. Nil means version.Supported().
	Versions []byte
	// Check validates a decoded handshake before it is accepted. Nil accepts
	// every handshake that decodes.
	Check func(protocol.Handshake) error
}

// StrictCheck returns a handshake check requiring the given coordinator, the
// given minimum weight magnitude and a common protocol version.
func StrictCheck(coordinator [protocol.CoordinatorSize]byte, mwm uint8, versions []byte) func(protocol.Handshake) error {
	own := bytes.Clone(versions)
	return func(h protocol.Handshake) error {
		if h.Coordinator != coordinator {
			return ErrCoordinatorMismatch
		}
		if h.MinimumWeightMagnitude != mwm {
			return fmt.Errorf("%w: got=%d want=%d", ErrMWMMismatch, h.MinimumWeightMagnitude, mwm)
		}
		if _, err := version.Negotiate(own, h.Versions()); err != nil {
			return err
		}
		return nil
	}
}

// Step applies ev to s. Removed leaves the state untouched; the caller ends the session.
func (m Machine) Step(s State, ev Event) (State, []Effect) {
	if _, ok := ev.(Removed); ok {
		return s, nil
	}
	switch st := s.(type) {
	case AwaitingHandshake:
		return m.stepHandshake(st, ev)
	case AwaitingMessage:
		return m.stepMessage(st, ev)
	case AwaitingConnection:
		return m.stepConnection(st, ev)
	default:
		return m.stepConnection(AwaitingConnection{}, ev)
	}
}

func (m Machine) stepConnection(st AwaitingConnection, ev Event) (State, []Effect) {
	if _, ok := ev.(Connected); ok {
		return AwaitingHandshake{}, []Effect{SendHandshake{}}
	}
	return st, nil
}

func (m Machine) stepHandshake(st AwaitingHandshake, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Disconnected:
		return AwaitingConnection{}, nil
	case Received:
		// Reads shorter than a header are dropped, not accumulated, and reset
		// the gate to expect a fresh header.
		if len(e.Data) < frame.HeaderSize {
			return AwaitingHandshake{}, []Effect{ShortRead{Length: len(e.Data)}}
		}
		if st.Header != nil {
			return m.handshake(*st.Header, e.Data)
		}
		h := frame.DecodeHeader([frame.HeaderSize]byte(e.Data[:frame.HeaderSize]))
		if len(e.Data) == frame.HeaderSize {
			return AwaitingHandshake{Header: &h}, nil
		}
		return m.handshake(h, e.Data[frame.HeaderSize:])
	default:
		return st, nil
	}
}

func (m Machine) handshake(h frame.Header, payload []byte) (State, []Effect) {
	hs, err := protocol.DecodeHandshakeFrame(h, payload)
	if err == nil && m.Check != nil {
		err = m.Check(hs)
	}
	if err != nil {
		return AwaitingHandshake{}, []Effect{HandshakeRejected{Header: h, Err: err}}
	}
	v, verr := version.Negotiate(m.versions(), hs.Versions())
	return AwaitingMessage{}, []Effect{HandshakeAccepted{Handshake: hs, Version: v, VersionErr: verr}}
}

func (m Machine) stepMessage(st AwaitingMessage, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Disconnected:
		return AwaitingConnection{}, []Effect{PeerLost{}}
	case Received:
		return drain(st.Header, append(slices.Clip(st.Buffer), e.Data...))
	default:
		return st, nil
	}
}

// drain dispatches every complete frame in buf in order and returns the
// unconsumed tail as a fresh slice with no spare capacity.
func drain(header *frame.Header, buf []byte) (State, []Effect) {
	var effects []Effect
	offset := 0
	for {
		if header == nil {
			if len(buf)-offset < frame.HeaderSize {
				break
			}
			h := frame.DecodeHeader([frame.HeaderSize]byte(buf[offset : offset+frame.HeaderSize]))
			header = &h
			offset += frame.HeaderSize
			continue
		}
		n := int(header.Length)
		if len(buf)-offset < n {
			break
		}
		effects = append(effects, Dispatch{Header: *header, Payload: buf[offset : offset+n : offset+n]})
		offset += n
		header = nil
	}
	var rest []byte
	if offset < len(buf) {
		rest = slices.Clip(bytes.Clone(buf[offset:]))
	}
	return AwaitingMessage{Header: header, Buffer: rest}, effects
}

func (m Machine) versions() []byte {
	if m.Versions == nil {
		return version.Supported()
	}
	return m.Versions
}
