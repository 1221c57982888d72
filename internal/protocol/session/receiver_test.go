package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
	"github.com/danmuck/tanglegossip/internal/testutil/testlog"
	"github.com/danmuck/tanglegossip/internal/worker"
)

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
	ch   chan []byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{ch: make(chan []byte, 16)}
}

func (s *fakeSender) Send(peer string, b []byte) error {
	s.mu.Lock()
	s.sent = append(s.sent, b)
	s.mu.Unlock()
	s.ch <- b
	return nil
}

type receiverFixture struct {
	routerFixture
	receiver *Receiver
	sender   *fakeSender
	peers    *PeerTable
	errCh    chan error
}

func startReceiver(t *testing.T, ctx context.Context, queueSize int) receiverFixture {
	t.Helper()
	f := receiverFixture{
		routerFixture: newRouterFixture(t, queueSize),
		sender:        newFakeSender(),
		peers:         NewPeerTable(),
		errCh:         make(chan error, 1),
	}
	f.receiver = NewReceiver(ReceiverConfig{
		Peer:      "10.0.0.9:15600",
		InboxSize: 8,
		Handshake: testHandshake,
		Sender:    f.sender,
		Router:    f.router,
		Peers:     f.peers,
		Metrics:   f.metrics,
		Logger:    testlog.Logger(t),
	})
	go func() { f.errCh <- f.receiver.Run(ctx) }()
	return f
}

func (f receiverFixture) deliver(t *testing.T, events ...Event) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, ev := range events {
		if err := f.receiver.Deliver(ctx, ev); err != nil {
			t.Fatalf("deliver %T: %v", ev, err)
		}
	}
}

func popRequest(t *testing.T, q *worker.Queue[worker.Request]) worker.Request {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("pop request: %v", err)
	}
	return req
}

func waitStopped(t *testing.T, f receiverFixture) error {
	t.Helper()
	select {
	case err := <-f.errCh:
		return err
	case <-time.After(time.Second):
		t.Fatalf("receiver did not stop")
		return nil
	}
}

func TestReceiverSessionLifecycle(t *testing.T) {
	testlog.Start(t)
	f := startReceiver(t, context.Background(), 4)

	f.deliver(t, Connected{})
	select {
	case raw := <-f.sender.ch:
		h, err := frame.ParseHeader(raw)
		if err != nil {
			t.Fatalf("parse sent header: %v", err)
		}
		hs, err := protocol.DecodeHandshakeFrame(h, raw[frame.HeaderSize:])
		if err != nil {
			t.Fatalf("decode sent handshake: %v", err)
		}
		if hs != testHandshake() {
			t.Fatalf("unexpected handshake sent: %+v", hs)
		}
	case <-time.After(time.Second):
		t.Fatalf("handshake was not sent")
	}

	tx := bytes.Repeat([]byte{0x33}, protocol.TransactionMinSize+10)
	broadcast := protocol.Encode(protocol.NewTransactionBroadcast(tx))
	f.deliver(t,
		Received{Data: protocol.Encode(testHandshake())},
		Received{Data: protocol.Encode(protocol.MilestoneRequest{Index: 77})},
		Received{Data: broadcast[:100]},
		Received{Data: broadcast[100:]},
	)

	req := popRequest(t, f.requests)
	if req.Peer != "10.0.0.9:15600" || req.Message != (protocol.MilestoneRequest{Index: 77}) {
		t.Fatalf("unexpected request: %+v", req)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := f.transactions.Pop(ctx)
	if err != nil || !bytes.Equal(got.Transaction, tx) {
		t.Fatalf("unexpected broadcast err=%v", err)
	}

	p, ok := f.peers.Get("10.0.0.9:15600")
	if !ok || p.Version != 2 || p.Port != 15600 {
		t.Fatalf("unexpected peer entry: %+v ok=%v", p, ok)
	}
	if f.metrics.ConnectedPeers.Load() != 1 || f.metrics.HandshakesAccepted.Load() != 1 {
		t.Fatalf("handshake metrics not recorded")
	}

	f.deliver(t, Disconnected{}, Removed{})
	if err := waitStopped(t, f); err != nil {
		t.Fatalf("run returned %v", err)
	}
	if f.peers.Len() != 0 || f.metrics.ConnectedPeers.Load() != 0 {
		t.Fatalf("peer not forgotten: len=%d connected=%d", f.peers.Len(), f.metrics.ConnectedPeers.Load())
	}
	if err := f.receiver.Deliver(context.Background(), Connected{}); !errors.Is(err, ErrReceiverStopped) {
		t.Fatalf("expected ErrReceiverStopped, got %v", err)
	}
}

func TestReceiverContinuesAfterForwardFailure(t *testing.T) {
	testlog.Start(t)
	f := startReceiver(t, context.Background(), 4)
	f.requests.Close()

	tx := bytes.Repeat([]byte{0x44}, protocol.TransactionMinSize)
	f.deliver(t,
		Connected{},
		Received{Data: protocol.Encode(testHandshake())},
		Received{Data: protocol.Encode(protocol.TransactionRequest{Hash: protocol.Hash{1}})},
		Received{Data: append(protocol.Encode(protocol.MilestoneRequest{Index: 3}), 0x04)},
		Received{Data: protocol.Encode(protocol.NewTransactionBroadcast(tx))[1:]},
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := f.transactions.Pop(ctx)
	if err != nil || !bytes.Equal(got.Transaction, tx) {
		t.Fatalf("session did not continue after forward failure: %v", err)
	}
	if n := f.metrics.ForwardFailures.Load(); n != 2 {
		t.Fatalf("forward failures got=%d want=2", n)
	}

	f.deliver(t, Removed{})
	if err := waitStopped(t, f); err != nil {
		t.Fatalf("run returned %v", err)
	}
}

func TestReceiverDropsMalformedMessages(t *testing.T) {
	testlog.Start(t)
	f := startReceiver(t, context.Background(), 4)
	bad := frame.Frame{Header: frame.Header{Type: protocol.MilestoneRequestID}, Payload: []byte{1, 2, 3, 4, 5}}.Bytes()
	f.deliver(t,
		Connected{},
		Received{Data: protocol.Encode(testHandshake())},
		Received{Data: bad},
		Received{Data: protocol.Encode(protocol.MilestoneRequest{Index: 5})},
	)
	req := popRequest(t, f.requests)
	if req.Message != (protocol.MilestoneRequest{Index: 5}) {
		t.Fatalf("unexpected request: %+v", req)
	}
	if f.metrics.InvalidMessages.Load() != 1 {
		t.Fatalf("invalid message not counted")
	}
	f.deliver(t, Removed{})
	waitStopped(t, f)
}

func TestReceiverShutdownWhileBlockedOnQueue(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	f := startReceiver(t, ctx, 1)
	f.deliver(t,
		Connected{},
		Received{Data: protocol.Encode(testHandshake())},
		Received{Data: protocol.Encode(protocol.MilestoneRequest{Index: 1})},
		Received{Data: protocol.Encode(protocol.MilestoneRequest{Index: 2})},
	)

	deadline := time.Now().Add(time.Second)
	for f.requests.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("first request never forwarded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := waitStopped(t, f); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.requests.Len() != 1 {
		t.Fatalf("blocked message should not be forwarded on shutdown")
	}
	select {
	case <-f.receiver.Done():
	default:
		t.Fatalf("done channel not closed")
	}
}
