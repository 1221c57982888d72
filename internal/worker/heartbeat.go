package worker

import (
	"context"
	"time"

	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/rs/zerolog"
)

// MilestoneIndexes reports the local milestone progress advertised in heartbeats.
type MilestoneIndexes interface {
	SolidMilestoneIndex() uint32
	SnapshotMilestoneIndex() uint32
}

// HeartbeatWorker sends a heartbeat to every handshaked peer once per interval.
type HeartbeatWorker struct {
	interval time.Duration
	indexes  MilestoneIndexes
	peers    PeerLister
	sender   Sender
	metrics  *observability.ProtocolMetrics
	log      zerolog.Logger
}

func NewHeartbeatWorker(
	interval time.Duration,
	indexes MilestoneIndexes,
	peers PeerLister,
	sender Sender,
	metrics *observability.ProtocolMetrics,
	logger zerolog.Logger,
) *HeartbeatWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if metrics == nil {
		metrics = observability.NewProtocolMetrics()
	}
	return &HeartbeatWorker{
		interval: interval,
		indexes:  indexes,
		peers:    peers,
		sender:   sender,
		metrics:  metrics,
		log:      logger.With().Str("worker", "heartbeat").Logger(),
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("running")
	defer w.log.Info().Msg("stopped")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Beat()
		}
	}
}

// Beat sends one heartbeat to each peer and returns how many sends succeeded.
func (w *HeartbeatWorker) Beat() int {
	raw := protocol.Encode(protocol.Heartbeat{
		SolidMilestoneIndex:    w.indexes.SolidMilestoneIndex(),
		SnapshotMilestoneIndex: w.indexes.SnapshotMilestoneIndex(),
	})
	sent := 0
	for _, peer := range w.peers.IDs() {
		if err := w.sender.Send(peer, raw); err != nil {
			w.log.Debug().Err(err).Str("peer", peer).Msg("sending heartbeat failed")
			continue
		}
		sent++
	}
	w.metrics.HeartbeatsSent.Add(uint64(sent))
	return sent
}
