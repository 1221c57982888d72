package session

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
	"github.com/danmuck/tanglegossip/internal/protocol/schema"
	"github.com/danmuck/tanglegossip/internal/protocol/version"
	"github.com/rs/zerolog"
)

var ErrReceiverStopped = errors.New("session: receiver stopped")

// Sender writes raw bytes to a peer without waiting for delivery.
type Sender interface {
	Send(peer string, b []byte) error
}

// ReceiverConfig wires one receiver. Handshake builds the local handshake each
// time a connection is established.
type ReceiverConfig struct {
	Peer      string
	InboxSize int
	Machine   Machine
	Handshake func() protocol.Handshake
	Sender    Sender
	Router    *Router
	Peers     *PeerTable
	Metrics   *observability.ProtocolMetrics
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Receiver is the single goroutine that owns one peer's session state.
type Receiver struct {
	cfg   ReceiverConfig
	log   zerolog.Logger
	inbox chan Event
	done  chan struct{}
	state State
}

func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.InboxSize < 1 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewProtocolMetrics()
	}
	if cfg.Peers == nil {
		cfg.Peers = NewPeerTable()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Receiver{
		cfg:   cfg,
		log:   cfg.Logger.With().Str("peer", cfg.Peer).Logger(),
		inbox: make(chan Event, cfg.InboxSize),
		done:  make(chan struct{}),
		state: AwaitingConnection{},
	}
}

func (r *Receiver) Peer() string { return r.cfg.Peer }

// Done is closed when Run returns.
func (r *Receiver) Done() <-chan struct{} { return r.done }

// Deliver queues ev for the receiver, blocking while the inbox is full.
func (r *Receiver) Deliver(ctx context.Context, ev Event) error {
	select {
	case <-r.done:
		return ErrReceiverStopped
	default:
	}
	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		return ErrReceiverStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until Removed arrives or ctx ends. The effects of one
// event are finished before ctx is checked again; a dispatch blocked on a full
// queue is abandoned when ctx ends.
func (r *Receiver) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.forget()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.inbox:
			if _, ok := ev.(Removed); ok {
				r.log.Info().Msg("peer removed")
				return nil
			}
			next, effects := r.cfg.Machine.Step(r.state, ev)
			if next.Name() != r.state.Name() {
				r.log.Debug().Str("from", r.state.Name()).Str("to", next.Name()).Msg("state transition")
			}
			r.state = next
			for _, eff := range effects {
				if err := r.apply(ctx, eff); err != nil {
					return err
				}
			}
		}
	}
}

func (r *Receiver) apply(ctx context.Context, eff Effect) error {
	m := r.cfg.Metrics
	switch e := eff.(type) {
	case SendHandshake:
		r.log.Info().Msg("connected")
		if r.cfg.Handshake == nil || r.cfg.Sender == nil {
			return nil
		}
		if err := r.cfg.Sender.Send(r.cfg.Peer, protocol.Encode(r.cfg.Handshake())); err != nil {
			r.log.Warn().Err(err).Msg("sending handshake failed")
		}

	case HandshakeAccepted:
		m.HandshakesAccepted.Add(1)
		if e.VersionErr != nil {
			m.VersionMismatches.Add(1)
			r.log.Warn().Err(e.VersionErr).Msg("no common protocol version")
		}
		fresh := r.cfg.Peers.Upsert(Peer{
			ID:                     r.cfg.Peer,
			Port:                   e.Handshake.Port,
			Version:                e.Version,
			MinimumWeightMagnitude: e.Handshake.MinimumWeightMagnitude,
			HandshakeAt:            r.cfg.Now(),
		})
		if fresh {
			m.ConnectedPeers.Add(1)
		}
		remote := e.Handshake.Versions()
		r.log.Info().
			Uint16("port", e.Handshake.Port).
			Int("version", e.Version).
			Int("remote_highest", version.Highest(remote)).
			Bool("remote_speaks_sting", version.Supports(remote, version.Sting)).
			Msg("handshake completed")

	case HandshakeRejected:
		m.HandshakesRejected.Add(1)
		r.log.Warn().
			Err(e.Err).
			Uint8("message_type", e.Header.Type).
			Int("length", int(e.Header.Length)).
			Msg("reading handshake failed")

	case ShortRead:
		m.ShortReads.Add(1)
		r.log.Debug().Int("length", e.Length).Msg("dropping short read")

	case PeerLost:
		r.forget()
		r.log.Info().Msg("disconnected")

	case Dispatch:
		m.MessagesReceived.Add(1)
		return r.dispatch(ctx, e.Header, e.Payload)
	}
	return nil
}

func (r *Receiver) dispatch(ctx context.Context, h frame.Header, payload []byte) error {
	if r.cfg.Router == nil {
		return nil
	}
	err := r.cfg.Router.Route(ctx, r.cfg.Peer, h, payload)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	case errors.Is(err, ErrForwardFailed):
		r.cfg.Metrics.ForwardFailures.Add(1)
		r.log.Error().Err(err).Str("message", schema.Name(h.Type)).Msg("processing message failed")
	default:
		r.cfg.Metrics.InvalidMessages.Add(1)
		r.log.Warn().
			Err(err).
			Str("message", schema.Name(h.Type)).
			Uint8("message_type", h.Type).
			Int("length", len(payload)).
			Msg("dropping malformed message")
	}
	return nil
}

func (r *Receiver) forget() {
	if r.cfg.Peers.Remove(r.cfg.Peer) {
		r.cfg.Metrics.ConnectedPeers.Add(-1)
	}
}
