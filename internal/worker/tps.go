package worker

import (
	"context"
	"time"

	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/rs/zerolog"
)

// Throughput is the transaction traffic seen during one interval.
type Throughput struct {
	Incoming uint64
	New      uint64
	Outgoing uint64
}

// TPSWorker logs transaction throughput once per interval.
type TPSWorker struct {
	interval time.Duration
	metrics  *observability.ProtocolMetrics
	log      zerolog.Logger
	last     Throughput
}

func NewTPSWorker(interval time.Duration, metrics *observability.ProtocolMetrics, logger zerolog.Logger) *TPSWorker {
	if interval <= 0 {
		interval = time.Second
	}
	if metrics == nil {
		metrics = observability.NewProtocolMetrics()
	}
	return &TPSWorker{
		interval: interval,
		metrics:  metrics,
		log:      logger.With().Str("worker", "tps").Logger(),
	}
}

func (w *TPSWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("running")
	defer w.log.Info().Msg("stopped")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d := w.Tick()
			w.log.Info().
				Uint64("incoming", d.Incoming).
				Uint64("new", d.New).
				Uint64("outgoing", d.Outgoing).
				Msg("tps")
		}
	}
}

// Tick returns the deltas since the previous tick.
func (w *TPSWorker) Tick() Throughput {
	now := Throughput{
		Incoming: w.metrics.IncomingTransactions.Load(),
		New:      w.metrics.NewTransactions.Load(),
		Outgoing: w.metrics.OutgoingTransactions.Load(),
	}
	d := Throughput{
		Incoming: now.Incoming - w.last.Incoming,
		New:      now.New - w.last.New,
		Outgoing: now.Outgoing - w.last.Outgoing,
	}
	w.last = now
	return d
}
