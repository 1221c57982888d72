package worker

import (
	"context"
	"errors"

	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/rs/zerolog"
)

// Ledger resolves what a peer asked for.
type Ledger interface {
	Get(hash protocol.Hash) ([]byte, bool)
	Milestone(index uint32) (protocol.Hash, bool)
}

// Responder answers peer requests with transaction broadcasts.
type Responder struct {
	queue   *Queue[Request]
	ledger  Ledger
	sender  Sender
	metrics *observability.ProtocolMetrics
	log     zerolog.Logger
}

func NewResponder(queue *Queue[Request], ledger Ledger, sender Sender, metrics *observability.ProtocolMetrics, logger zerolog.Logger) *Responder {
	if metrics == nil {
		metrics = observability.NewProtocolMetrics()
	}
	return &Responder{
		queue:   queue,
		ledger:  ledger,
		sender:  sender,
		metrics: metrics,
		log:     logger.With().Str("worker", "responder").Logger(),
	}
}

func (r *Responder) Run(ctx context.Context) error {
	r.log.Info().Msg("running")
	defer r.log.Info().Msg("stopped")
	for {
		req, err := r.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		r.Process(req)
	}
}

// Process answers one request. Requests for unknown data are dropped.
func (r *Responder) Process(req Request) {
	switch m := req.Message.(type) {
	case protocol.MilestoneRequest:
		h, ok := r.ledger.Milestone(m.Index)
		if !ok {
			r.log.Debug().Str("peer", req.Peer).Uint32("index", m.Index).Msg("unknown milestone")
			return
		}
		r.reply(req.Peer, h)
	case protocol.TransactionRequest:
		r.reply(req.Peer, m.Hash)
	default:
		r.log.Warn().Str("peer", req.Peer).Type("message", req.Message).Msg("unexpected request")
	}
}

func (r *Responder) reply(peer string, h protocol.Hash) {
	tx, ok := r.ledger.Get(h)
	if !ok {
		r.log.Debug().Str("peer", peer).Hex("hash", h[:]).Msg("unknown transaction")
		return
	}
	if err := r.sender.Send(peer, protocol.Encode(protocol.NewTransactionBroadcast(tx))); err != nil {
		r.log.Warn().Err(err).Str("peer", peer).Msg("sending transaction failed")
		return
	}
	r.metrics.OutgoingTransactions.Add(1)
}
