package worker

import (
	"context"
	"errors"

	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/tangle"
	"github.com/rs/zerolog"
)

var ErrNoPeers = errors.New("worker: no handshaked peers")

// Requester asks handshaked peers for transactions and milestones, one peer
// per request in round-robin order.
type Requester struct {
	queue   *Queue[protocol.Message]
	tangle  tangle.Tangle
	peers   PeerLister
	sender  Sender
	metrics *observability.ProtocolMetrics
	log     zerolog.Logger
	next    int
}

func NewRequester(
	queue *Queue[protocol.Message],
	tg tangle.Tangle,
	peers PeerLister,
	sender Sender,
	metrics *observability.ProtocolMetrics,
	logger zerolog.Logger,
) *Requester {
	if metrics == nil {
		metrics = observability.NewProtocolMetrics()
	}
	return &Requester{
		queue:   queue,
		tangle:  tg,
		peers:   peers,
		sender:  sender,
		metrics: metrics,
		log:     logger.With().Str("worker", "requester").Logger(),
	}
}

func (r *Requester) RequestTransaction(ctx context.Context, h protocol.Hash) error {
	return r.queue.Push(ctx, protocol.TransactionRequest{Hash: h})
}

// RequestMilestone queues a milestone request. Index 0 asks for the latest milestone.
func (r *Requester) RequestMilestone(ctx context.Context, index uint32) error {
	return r.queue.Push(ctx, protocol.MilestoneRequest{Index: index})
}

func (r *Requester) Run(ctx context.Context) error {
	r.log.Info().Msg("running")
	defer r.log.Info().Msg("stopped")
	for {
		msg, err := r.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := r.Process(msg); err != nil && !errors.Is(err, ErrNoPeers) {
			r.log.Warn().Err(err).Msg("sending request failed")
		}
	}
}

// Process sends msg to the next peer and returns that peer. Transaction
// requests for solid entry points or known transactions are skipped and
// return an empty peer.
func (r *Requester) Process(msg protocol.Message) (string, error) {
	if req, ok := msg.(protocol.TransactionRequest); ok {
		if r.tangle.IsSolidEntryPoint(req.Hash) || r.tangle.Contains(req.Hash) {
			return "", nil
		}
	}
	peers := r.peers.IDs()
	if len(peers) == 0 {
		r.log.Debug().Uint8("message_type", msg.ID()).Msg("no peer to request from")
		return "", ErrNoPeers
	}
	peer := peers[r.next%len(peers)]
	r.next++
	if err := r.sender.Send(peer, protocol.Encode(msg)); err != nil {
		return peer, err
	}
	r.metrics.RequestsSent.Add(1)
	return peer, nil
}
