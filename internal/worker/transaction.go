package worker

import (
	"context"
	"errors"

	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

var transactionPrefix = []byte("tx/")

// TransactionStore is the part of the tangle the transaction worker writes to.
type TransactionStore interface {
	Insert(hash protocol.Hash, tx []byte) bool
}

// HashTransaction derives the 49-byte transaction id.
func HashTransaction(tx []byte) protocol.Hash {
	d, err := blake2b.New(protocol.HashSize, nil)
	if err != nil {
		panic(err)
	}
	d.Write(tx)
	var h protocol.Hash
	copy(h[:], d.Sum(nil))
	return h
}

// TransactionKey is the storage key of a transaction.
func TransactionKey(h protocol.Hash) []byte {
	return append(append([]byte(nil), transactionPrefix...), h[:]...)
}

// TransactionWorker stores broadcast transactions that are new to the tangle.
type TransactionWorker struct {
	queue   *Queue[protocol.TransactionBroadcast]
	tangle  TransactionStore
	store   storage.Backend
	durable bool
	metrics *observability.ProtocolMetrics
	log     zerolog.Logger
}

func NewTransactionWorker(
	queue *Queue[protocol.TransactionBroadcast],
	tangle TransactionStore,
	store storage.Backend,
	durable bool,
	metrics *observability.ProtocolMetrics,
	logger zerolog.Logger,
) *TransactionWorker {
	if metrics == nil {
		metrics = observability.NewProtocolMetrics()
	}
	return &TransactionWorker{
		queue:   queue,
		tangle:  tangle,
		store:   store,
		durable: durable,
		metrics: metrics,
		log:     logger.With().Str("worker", "transaction").Logger(),
	}
}

// Run consumes the queue until it is closed and drained or ctx ends.
func (w *TransactionWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("running")
	defer w.log.Info().Msg("stopped")
	for {
		msg, err := w.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := w.Process(msg); err != nil {
			w.log.Error().Err(err).Msg("storing transaction failed")
		}
	}
}

// Process stores msg and reports whether it was new.
func (w *TransactionWorker) Process(msg protocol.TransactionBroadcast) (bool, error) {
	h := HashTransaction(msg.Transaction)
	if !w.tangle.Insert(h, msg.Transaction) {
		w.metrics.KnownTransactions.Add(1)
		return false, nil
	}
	w.metrics.NewTransactions.Add(1)
	if w.store == nil {
		return true, nil
	}
	batch := w.store.NewBatch()
	if err := batch.Put(TransactionKey(h), msg.Transaction); err != nil {
		return true, err
	}
	return true, batch.Apply(w.durable)
}
