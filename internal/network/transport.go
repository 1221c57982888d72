package network

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/tanglegossip/internal/protocol/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type peerEntry struct {
	cancel context.CancelFunc
	conn   *conn
	static bool
}

// Transport accepts inbound peers and keeps static peers dialed.
type Transport struct {
	cfg     Config
	handler Handler
	log     zerolog.Logger

	mu       sync.Mutex
	ctx      context.Context
	listener net.Listener
	peers    map[string]*peerEntry
	wg       sync.WaitGroup
}

func NewTransport(cfg Config, handler Handler, logger zerolog.Logger) *Transport {
	return &Transport{
		cfg:     cfg.withDefaults(),
		handler: handler,
		log:     logger.With().Str("component", "network").Logger(),
		peers:   make(map[string]*peerEntry),
	}
}

// Listen binds the listen address. Run calls it when it has not been called.
func (t *Transport) Listen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", t.cfg.ListenAddr)
	if err != nil {
		return err
	}
	t.listener = ln
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Run accepts and dials peers until ctx ends, then waits for every peer goroutine.
func (t *Transport) Run(ctx context.Context) error {
	if err := t.Listen(); err != nil {
		return err
	}
	t.mu.Lock()
	t.ctx = ctx
	ln := t.listener
	t.mu.Unlock()

	t.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	for _, addr := range t.cfg.Peers {
		if err := t.AddPeer(addr); err != nil {
			t.log.Warn().Err(err).Str("peer", addr).Msg("adding static peer failed")
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return t.acceptLoop(gctx, ln)
	})
	group.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	err := group.Wait()

	t.mu.Lock()
	for _, p := range t.peers {
		p.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (t *Transport) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		id := raw.RemoteAddr().String()
		pctx, cancel := context.WithCancel(ctx)
		entry := &peerEntry{cancel: cancel}
		t.mu.Lock()
		t.peers[id] = entry
		t.mu.Unlock()

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer cancel()
			t.connected(pctx, id, entry, raw)
			t.drop(id, entry)
		}()
	}
}

// AddPeer dials addr now and again after every disconnect until RemovePeer or shutdown.
func (t *Transport) AddPeer(addr string) error {
	addr = strings.TrimSpace(addr)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx == nil {
		return ErrNotRunning
	}
	if _, ok := t.peers[addr]; ok {
		return ErrPeerExists
	}
	pctx, cancel := context.WithCancel(t.ctx)
	entry := &peerEntry{cancel: cancel, static: true}
	t.peers[addr] = entry

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		t.dialLoop(pctx, addr, entry)
		t.drop(addr, entry)
	}()
	return nil
}

// RemovePeer closes the peer's connection, stops redialing it and emits Removed.
func (t *Transport) RemovePeer(id string) error {
	t.mu.Lock()
	entry, ok := t.peers[strings.TrimSpace(id)]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	entry.cancel()
	return nil
}

// Send queues b for peer without waiting for the write.
func (t *Transport) Send(peer string, b []byte) error {
	t.mu.Lock()
	entry, ok := t.peers[peer]
	var c *conn
	if ok {
		c = entry.conn
	}
	t.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	if c == nil {
		return ErrNotConnected
	}
	return c.write(b)
}

// Peers returns the ids of known peers, connected or not.
func (t *Transport) Peers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.peers))
	for id := range t.peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (t *Transport) dialLoop(ctx context.Context, addr string, entry *peerEntry) {
	redial := session.NewRedial(t.cfg.Backoff, rand.New(rand.NewSource(time.Now().UnixNano())))
	dialer := net.Dialer{Timeout: t.cfg.ConnectTimeout}
	for {
		var delay time.Duration
		raw, err := dialer.DialContext(ctx, "tcp", addr)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				t.log.Debug().Err(err).Str("peer", addr).Msg("dial failed")
			}
			delay = redial.Failed()
		case t.connected(ctx, addr, entry, raw):
			delay = redial.Succeeded()
		default:
			delay = redial.Failed()
			t.log.Debug().Str("peer", addr).Int("failures", redial.Failures()).Msg("peer closed without sending")
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connected serves one established connection and reports it to the handler.
// It reports whether the peer sent any data.
func (t *Transport) connected(ctx context.Context, id string, entry *peerEntry, raw net.Conn) bool {
	c := newConn(id, raw, t.cfg)
	t.mu.Lock()
	entry.conn = c
	t.mu.Unlock()

	t.log.Info().Str("peer", id).Bool("static", entry.static).Msg("connection established")
	var err error
	if err = t.emit(Event{Kind: Connected, Peer: id}); err == nil {
		err = t.serve(ctx, c)
	} else {
		raw.Close()
	}

	t.mu.Lock()
	entry.conn = nil
	t.mu.Unlock()
	c.closed.Store(true)

	if err != nil && !errors.Is(err, context.Canceled) {
		t.log.Info().Err(err).Str("peer", id).Msg("connection closed with error")
	} else {
		t.log.Info().Str("peer", id).Msg("connection closed")
	}
	_ = t.emit(Event{Kind: Disconnected, Peer: id})
	return c.active.Load()
}

func (t *Transport) drop(id string, entry *peerEntry) {
	t.mu.Lock()
	if t.peers[id] == entry {
		delete(t.peers, id)
	}
	t.mu.Unlock()
	_ = t.emit(Event{Kind: Removed, Peer: id})
}

func (t *Transport) emit(ev Event) error {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	return t.handler.HandleEvent(ctx, ev)
}
