package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
	"github.com/danmuck/tanglegossip/internal/protocol/schema"
	"github.com/danmuck/tanglegossip/internal/worker"
	"github.com/rs/zerolog"
)

var ErrForwardFailed = errors.New("session: forward failed")

// ForwardError reports a decoded message that could not be handed to its worker queue.
type ForwardError struct {
	Type uint8
	Err  error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("session: forward %s failed: %v", schema.Name(e.Type), e.Err)
}

func (e *ForwardError) Unwrap() []error { return []error{ErrForwardFailed, e.Err} }

// Router hands reassembled messages to worker queues. It is shared by all receivers.
type Router struct {
	transactions *worker.Queue[protocol.TransactionBroadcast]
	requests     *worker.Queue[worker.Request]
	metrics      *observability.ProtocolMetrics
	log          zerolog.Logger
}

func NewRouter(
	transactions *worker.Queue[protocol.TransactionBroadcast],
	requests *worker.Queue[worker.Request],
	metrics *observability.ProtocolMetrics,
	logger zerolog.Logger,
) *Router {
	if metrics == nil {
		metrics = observability.NewProtocolMetrics()
	}
	return &Router{
		transactions: transactions,
		requests:     requests,
		metrics:      metrics,
		log:          logger,
	}
}

// Route decodes one message from peer and forwards it. Pushes block until the
// queue has room or ctx ends. A known type with an out-of-range length fails
// with schema.ValidationError; decode failures are returned unchanged. Either
// way the message is dropped. Unknown types are ignored.
func (r *Router) Route(ctx context.Context, peer string, h frame.Header, payload []byte) error {
	if _, known := schema.Lookup(h.Type); known {
		if err := schema.Validate(h); err != nil {
			return err
		}
	}
	switch h.Type {
	case protocol.HandshakeID:
		r.log.Warn().Str("peer", peer).Msg("ignoring unexpected handshake")
		return nil

	case protocol.LegacyGossipID:
		r.log.Warn().Str("peer", peer).Int("length", int(h.Length)).Msg("ignoring unsupported legacy gossip")
		return nil

	case protocol.MilestoneRequestID:
		msg, err := protocol.DecodeMilestoneRequestFrame(h, payload)
		if err != nil {
			return err
		}
		r.metrics.MilestoneRequestsReceived.Add(1)
		return forwardTo(ctx, h.Type, r.requests, worker.Request{Peer: peer, Message: msg})

	case protocol.TransactionBroadcastID:
		msg, err := protocol.DecodeTransactionBroadcastFrame(h, payload)
		if err != nil {
			return err
		}
		r.metrics.IncomingTransactions.Add(1)
		return forwardTo(ctx, h.Type, r.transactions, msg)

	case protocol.TransactionRequestID:
		msg, err := protocol.DecodeTransactionRequestFrame(h, payload)
		if err != nil {
			return err
		}
		r.metrics.TransactionRequestsReceived.Add(1)
		return forwardTo(ctx, h.Type, r.requests, worker.Request{Peer: peer, Message: msg})

	case protocol.HeartbeatID:
		hb, err := protocol.DecodeHeartbeatFrame(h, payload)
		if err != nil {
			return err
		}
		r.metrics.HeartbeatsReceived.Add(1)
		r.log.Debug().
			Str("peer", peer).
			Uint32("solid_milestone_index", hb.SolidMilestoneIndex).
			Uint32("snapshot_milestone_index", hb.SnapshotMilestoneIndex).
			Msg("heartbeat")
		return nil

	default:
		r.log.Debug().Str("peer", peer).Uint8("message_type", h.Type).Msg("ignoring unknown message type")
		return nil
	}
}

func forwardTo[T any](ctx context.Context, typ uint8, q *worker.Queue[T], v T) error {
	if err := q.Push(ctx, v); err != nil {
		if errors.Is(err, worker.ErrQueueClosed) {
			return &ForwardError{Type: typ, Err: err}
		}
		return err
	}
	return nil
}
