package node

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/tanglegossip/internal/network"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/session"
	"github.com/danmuck/tanglegossip/internal/testutil/testlog"
	"github.com/danmuck/tanglegossip/internal/worker"
)

func testConfig(id string, peers ...string) Config {
	cfg := DefaultConfig()
	cfg.ID = id
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.OpsAddr = ""
	cfg.Peers = peers
	cfg.HeartbeatInterval = time.Hour
	cfg.Session.Backoff = session.BackoffConfig{
		InitialDelay: 20 * time.Millisecond,
		Multiplier:   1.5,
		MaxDelay:     200 * time.Millisecond,
	}
	return cfg
}

func startNode(t *testing.T, ctx context.Context, cfg Config) (*Node, <-chan error) {
	t.Helper()
	n, err := New(cfg, testlog.Logger(t))
	if err != nil {
		t.Fatalf("new node %s: %v", cfg.ID, err)
	}
	if err := n.Listen(); err != nil {
		t.Fatalf("listen %s: %v", cfg.ID, err)
	}
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	return n, done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func connectedPair(t *testing.T) (a, b *Node, stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	a, doneA := startNode(t, ctx, testConfig("node-a"))
	b, doneB := startNode(t, ctx, testConfig("node-b", a.Addr().String()))
	waitFor(t, "handshakes", func() bool {
		return len(a.Peers()) == 1 && len(b.Peers()) == 1
	})
	return a, b, func() {
		cancel()
		for _, done := range []<-chan error{doneA, doneB} {
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("node run returned error: %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("node did not stop")
			}
		}
	}
}

func testTransaction(seed byte) []byte {
	tx := make([]byte, protocol.TransactionMinSize+10)
	for i := range tx {
		tx[i] = seed + byte(i)
	}
	return tx
}

func TestNodesHandshake(t *testing.T) {
	testlog.Start(t)
	a, b, stop := connectedPair(t)
	defer stop()

	peer := b.Peers()[0]
	if peer.ID != a.Addr().String() {
		t.Fatalf("unexpected peer id got=%s want=%s", peer.ID, a.Addr())
	}
	if peer.Version != 2 || peer.Port != 15600 || peer.MinimumWeightMagnitude != 14 {
		t.Fatalf("unexpected peer entry: %+v", peer)
	}
	if got := a.Metrics().ConnectedPeers.Load(); got != 1 {
		t.Fatalf("connected peers got=%d want=1", got)
	}
	if got := b.Metrics().HandshakesAccepted.Load(); got != 1 {
		t.Fatalf("handshakes accepted got=%d want=1", got)
	}
}

func TestBroadcastIsStoredByPeer(t *testing.T) {
	testlog.Start(t)
	a, b, stop := connectedPair(t)
	defer stop()

	tx := testTransaction(7)
	sent, err := a.Broadcast(tx)
	if err != nil || sent != 1 {
		t.Fatalf("broadcast sent=%d err=%v", sent, err)
	}
	hash := worker.HashTransaction(tx)
	waitFor(t, "transaction stored", func() bool { return b.Tangle().Contains(hash) })
	if _, ok := b.Storage().Get(worker.TransactionKey(hash)); !ok {
		t.Fatalf("transaction missing from storage")
	}
	if got := b.Metrics().NewTransactions.Load(); got != 1 {
		t.Fatalf("new transactions got=%d want=1", got)
	}
}

func TestMilestoneRequestIsAnswered(t *testing.T) {
	testlog.Start(t)
	a, b, stop := connectedPair(t)
	defer stop()

	tx := testTransaction(40)
	hash := worker.HashTransaction(tx)
	a.Tangle().Insert(hash, tx)
	a.Tangle().SetMilestone(9, hash)

	if err := b.RequestMilestone(context.Background(), 9); err != nil {
		t.Fatalf("request milestone: %v", err)
	}
	waitFor(t, "milestone transaction", func() bool { return b.Tangle().Contains(hash) })
	if got := a.Metrics().MilestoneRequestsReceived.Load(); got != 1 {
		t.Fatalf("milestone requests received got=%d want=1", got)
	}
}

func TestTransactionRequestIsAnswered(t *testing.T) {
	testlog.Start(t)
	a, b, stop := connectedPair(t)
	defer stop()

	tx := testTransaction(90)
	hash := worker.HashTransaction(tx)
	b.Tangle().Insert(hash, tx)

	if err := a.RequestTransaction(context.Background(), hash); err != nil {
		t.Fatalf("request transaction: %v", err)
	}
	waitFor(t, "requested transaction", func() bool { return a.Tangle().Contains(hash) })
}

func TestRemovePeerEndsSession(t *testing.T) {
	testlog.Start(t)
	a, b, stop := connectedPair(t)
	defer stop()

	if err := b.RemovePeer(a.Addr().String()); err != nil {
		t.Fatalf("remove peer: %v", err)
	}
	waitFor(t, "peer tables cleared", func() bool {
		return len(a.Peers()) == 0 && len(b.Peers()) == 0
	})
	if err := b.RemovePeer(a.Addr().String()); !errors.Is(err, network.ErrUnknownPeer) {
		t.Fatalf("second remove got=%v want=%v", err, network.ErrUnknownPeer)
	}
}

func TestBroadcastRejectsBadLength(t *testing.T) {
	testlog.Start(t)
	n, err := New(testConfig("solo"), testlog.Logger(t))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if _, err := n.Broadcast(make([]byte, 10)); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestHandleEventWithoutReceiverIsIgnored(t *testing.T) {
	testlog.Start(t)
	n, err := New(testConfig("solo"), testlog.Logger(t))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	ev := network.Event{Kind: network.Message, Peer: "x", Data: []byte{1, 2, 3}}
	if err := n.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if err := n.HandleEvent(context.Background(), network.Event{Kind: network.Connected, Peer: "x"}); err != nil {
		t.Fatalf("connected before run: %v", err)
	}
}

func TestOpsServerIsWired(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig("ops")
	cfg.OpsAddr = "127.0.0.1:0"
	cfg.OpsToken = "secret"
	n, err := New(cfg, testlog.Logger(t))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if n.ops == nil {
		t.Fatalf("ops server not created")
	}

	rec := httptest.NewRecorder()
	n.ops.HTTPRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/peers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("peers status got=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	n.ops.HTTPRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/milestone/1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request status got=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/requests/milestone/1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	n.ops.HTTPRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("authenticated request status got=%d", rec.Code)
	}
}
