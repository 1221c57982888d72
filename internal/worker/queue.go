package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/tanglegossip/internal/protocol"
)

var ErrQueueClosed = errors.New("worker: queue closed")

// Queue is a bounded multi-producer queue. Push blocks while the queue is
// full. After Close, Push fails with ErrQueueClosed and Pop drains what is left.
type Queue[T any] struct {
	items     chan T
	done      chan struct{}
	closeOnce sync.Once
}

func NewQueue[T any](size int) *Queue[T] {
	if size < 1 {
		size = 1
	}
	return &Queue[T]{
		items: make(chan T, size),
		done:  make(chan struct{}),
	}
}

func (q *Queue[T]) Push(ctx context.Context, v T) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.items <- v:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop returns the next item. It fails with ErrQueueClosed once the queue is
// closed and empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-q.items:
		return v, nil
	default:
	}
	select {
	case v := <-q.items:
		return v, nil
	case <-q.done:
		select {
		case v := <-q.items:
			return v, nil
		default:
			return zero, ErrQueueClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

// Request is a peer request waiting for the responder.
type Request struct {
	Peer    string
	Message protocol.Message
}
