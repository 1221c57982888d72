// Package network carries raw peer bytes over TCP.
//
// Each peer is served by one goroutine that reports its lifecycle and reads
// to the Handler in order. Writes are queued and never block the caller.
package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/tanglegossip/internal/protocol/session"
)

var (
	ErrUnknownPeer  = errors.New("network: unknown peer")
	ErrNotConnected = errors.New("network: peer not connected")
	ErrBufferFull   = errors.New("network: send buffer full")
	ErrPeerExists   = errors.New("network: peer already added")
	ErrNotRunning   = errors.New("network: transport not running")
)

type EventKind int

const (
	Connected EventKind = iota + 1
	Disconnected
	Message
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Message:
		return "message"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one peer lifecycle change or read. Data is set for Message only and
// is owned by the handler.
type Event struct {
	Kind EventKind
	Peer string
	Data []byte
}

// Handler receives every peer event. Events for one peer arrive from a single
// goroutine in order. A returned error drops the connection.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Config controls the transport. ReadRate is in bytes per second; zero disables the limit.
type Config struct {
	ListenAddr     string
	Peers          []string
	SendBuffer     int
	ReadBuffer     int
	ReadRate       float64
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Backoff        session.BackoffConfig
}

func DefaultConfig() Config {
	sc := session.DefaultConfig()
	return Config{
		ListenAddr:     ":15600",
		SendBuffer:     128,
		ReadBuffer:     64 * 1024,
		ConnectTimeout: sc.ConnectTimeout,
		WriteTimeout:   sc.WriteTimeout,
		Backoff:        sc.Backoff,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = d.ReadBuffer
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}
