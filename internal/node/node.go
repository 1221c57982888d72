package node

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/danmuck/tanglegossip/internal/auth"
	"github.com/danmuck/tanglegossip/internal/network"
	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/session"
	"github.com/danmuck/tanglegossip/internal/protocol/version"
	"github.com/danmuck/tanglegossip/internal/server"
	"github.com/danmuck/tanglegossip/internal/storage"
	"github.com/danmuck/tanglegossip/internal/tangle"
	"github.com/danmuck/tanglegossip/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Node wires the transport, per-peer receivers, workers and the ops server.
type Node struct {
	cfg      Config
	log      zerolog.Logger
	metrics  *observability.ProtocolMetrics
	registry *prometheus.Registry

	tangle *tangle.Memory
	store  *storage.Memory
	peers  *session.PeerTable

	transactions *worker.Queue[protocol.TransactionBroadcast]
	requests     *worker.Queue[worker.Request]
	outgoing     *worker.Queue[protocol.Message]

	machine   session.Machine
	router    *session.Router
	transport *network.Transport
	ops       *server.Server

	txWorker  *worker.TransactionWorker
	responder *worker.Responder
	requester *worker.Requester
	tps       *worker.TPSWorker
	heartbeat *worker.HeartbeatWorker

	mu        sync.Mutex
	runCtx    context.Context
	receivers map[string]*session.Receiver
	wg        sync.WaitGroup
}

func New(cfg Config, logger zerolog.Logger) (*Node, error) {
	cfg = cfg.withDefaults()
	log := logger.With().Str("node", cfg.ID).Logger()

	metrics := observability.NewProtocolMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	n := &Node{
		cfg:          cfg,
		log:          log,
		metrics:      metrics,
		registry:     registry,
		tangle:       tangle.NewMemory(),
		store:        storage.NewMemory(),
		peers:        session.NewPeerTable(),
		transactions: worker.NewQueue[protocol.TransactionBroadcast](cfg.TransactionQueue),
		requests:     worker.NewQueue[worker.Request](cfg.RequestQueue),
		outgoing:     worker.NewQueue[protocol.Message](cfg.OutgoingQueue),
		receivers:    make(map[string]*session.Receiver),
	}

	versions := version.Supported()
	n.machine = session.Machine{Versions: versions}
	if cfg.Session.StrictHandshake {
		n.machine.Check = session.StrictCheck(cfg.Coordinator, cfg.MinimumWeightMagnitude, versions)
	}
	n.router = session.NewRouter(n.transactions, n.requests, metrics, log)
	n.transport = network.NewTransport(cfg.networkConfig(), n, log)

	n.txWorker = worker.NewTransactionWorker(n.transactions, n.tangle, n.store, cfg.Durable, metrics, log)
	n.responder = worker.NewResponder(n.requests, n.tangle, n.transport, metrics, log)
	n.requester = worker.NewRequester(n.outgoing, n.tangle, n.peers, n.transport, metrics, log)
	n.tps = worker.NewTPSWorker(cfg.TPSInterval, metrics, log)
	n.heartbeat = worker.NewHeartbeatWorker(cfg.HeartbeatInterval, n.tangle, n.peers, n.transport, metrics, log)

	if cfg.OpsAddr != "" {
		opsCfg := server.Config{
			NodeID:      cfg.ID,
			Addr:        cfg.OpsAddr,
			CorsOrigins: cfg.CorsOrigins,
		}
		if cfg.OpsToken != "" {
			opsCfg.Validator = auth.StaticToken{Token: cfg.OpsToken}
		}
		ops, err := server.New(opsCfg, n, registry, log)
		if err != nil {
			return nil, err
		}
		n.ops = ops
	}
	return n, nil
}

func (n *Node) ID() string                              { return n.cfg.ID }
func (n *Node) Tangle() *tangle.Memory                  { return n.tangle }
func (n *Node) Storage() *storage.Memory                { return n.store }
func (n *Node) Metrics() *observability.ProtocolMetrics { return n.metrics }
func (n *Node) Registry() *prometheus.Registry          { return n.registry }

// Listen binds the gossip listener ahead of Run.
func (n *Node) Listen() error { return n.transport.Listen() }

// Addr returns the bound gossip address, or nil before Listen.
func (n *Node) Addr() net.Addr { return n.transport.Addr() }

// Run blocks until ctx ends or a component fails. Worker queues are closed on
// the way out so queued messages are drained.
func (n *Node) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	n.mu.Lock()
	n.runCtx = gctx
	n.mu.Unlock()

	n.log.Info().Str("listen", n.cfg.ListenAddr).Int("peers", len(n.cfg.Peers)).Msg("starting")
	group.Go(func() error { return n.transport.Run(gctx) })
	group.Go(func() error { return n.txWorker.Run(gctx) })
	group.Go(func() error { return n.responder.Run(gctx) })
	group.Go(func() error { return n.requester.Run(gctx) })
	group.Go(func() error { return n.tps.Run(gctx) })
	group.Go(func() error { return n.heartbeat.Run(gctx) })
	if n.ops != nil {
		group.Go(func() error { return n.ops.Run(gctx) })
	}
	group.Go(func() error {
		<-gctx.Done()
		n.transactions.Close()
		n.requests.Close()
		n.outgoing.Close()
		return nil
	})

	err := group.Wait()
	n.wg.Wait()
	n.log.Info().Msg("stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// HandleEvent routes transport events to the peer's receiver.
func (n *Node) HandleEvent(ctx context.Context, ev network.Event) error {
	var sev session.Event
	switch ev.Kind {
	case network.Connected:
		sev = session.Connected{}
	case network.Disconnected:
		sev = session.Disconnected{}
	case network.Message:
		sev = session.Received{Data: ev.Data}
	case network.Removed:
		sev = session.Removed{}
	default:
		return nil
	}

	r := n.receiver(ev.Peer, ev.Kind == network.Connected)
	if r == nil {
		return nil
	}
	err := r.Deliver(ctx, sev)
	if errors.Is(err, session.ErrReceiverStopped) && ev.Kind == network.Connected {
		n.release(ev.Peer, r)
		if r = n.receiver(ev.Peer, true); r != nil {
			err = r.Deliver(ctx, sev)
		}
	}
	if errors.Is(err, session.ErrReceiverStopped) {
		n.log.Debug().Str("peer", ev.Peer).Str("event", ev.Kind.String()).Msg("receiver stopped, event dropped")
		return nil
	}
	return err
}

// receiver returns the peer's receiver, starting one when create is set.
func (n *Node) receiver(peer string, create bool) *session.Receiver {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := n.receivers[peer]; ok {
		return r
	}
	if !create || n.runCtx == nil || n.runCtx.Err() != nil {
		return nil
	}
	r := session.NewReceiver(session.ReceiverConfig{
		Peer:      peer,
		InboxSize: n.cfg.Session.InboxSize,
		Machine:   n.machine,
		Handshake: n.handshake,
		Sender:    n.transport,
		Router:    n.router,
		Peers:     n.peers,
		Metrics:   n.metrics,
		Logger:    n.log,
	})
	n.receivers[peer] = r
	ctx := n.runCtx
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			n.log.Warn().Err(err).Str("peer", peer).Msg("receiver stopped")
		}
		n.release(peer, r)
	}()
	return r
}

func (n *Node) release(peer string, r *session.Receiver) {
	n.mu.Lock()
	if n.receivers[peer] == r {
		delete(n.receivers, peer)
	}
	n.mu.Unlock()
}

func (n *Node) handshake() protocol.Handshake {
	return protocol.NewHandshake(
		n.cfg.Port,
		uint64(time.Now().UnixMilli()),
		n.cfg.Coordinator,
		n.cfg.MinimumWeightMagnitude,
		n.machine.Versions,
	)
}

// Broadcast sends tx to every handshaked peer and returns how many sends were queued.
func (n *Node) Broadcast(tx []byte) (int, error) {
	if !protocol.TransactionBroadcastRange.Contains(len(tx)) {
		return 0, &protocol.LengthError{Type: protocol.TransactionBroadcastID, Length: len(tx)}
	}
	raw := protocol.Encode(protocol.NewTransactionBroadcast(tx))
	sent := 0
	for _, peer := range n.peers.IDs() {
		if err := n.transport.Send(peer, raw); err != nil {
			n.log.Warn().Err(err).Str("peer", peer).Msg("broadcast failed")
			continue
		}
		sent++
	}
	n.metrics.OutgoingTransactions.Add(uint64(sent))
	return sent, nil
}

func (n *Node) Peers() []session.Peer { return n.peers.List() }

func (n *Node) AddPeer(addr string) error { return n.transport.AddPeer(addr) }

func (n *Node) RemovePeer(id string) error { return n.transport.RemovePeer(id) }

func (n *Node) RequestTransaction(ctx context.Context, h protocol.Hash) error {
	return n.requester.RequestTransaction(ctx, h)
}

func (n *Node) RequestMilestone(ctx context.Context, index uint32) error {
	return n.requester.RequestMilestone(ctx, index)
}
