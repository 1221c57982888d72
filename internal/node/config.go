package node

import (
	"time"

	"github.com/danmuck/tanglegossip/internal/network"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/session"
)

// Config is everything a node needs to run. OpsAddr empty disables the ops server;
// OpsToken empty leaves its mutating routes open.
type Config struct {
	ID          string
	ListenAddr  string
	OpsAddr     string
	OpsToken    string
	CorsOrigins []string
	Peers       []string

	// Handshake identity.
	Port                   uint16
	Coordinator            [protocol.CoordinatorSize]byte
	MinimumWeightMagnitude uint8

	Durable           bool
	TransactionQueue  int
	RequestQueue      int
	OutgoingQueue     int
	ReadRate          float64
	TPSInterval       time.Duration
	HeartbeatInterval time.Duration
	Session           session.Config
}

func DefaultConfig() Config {
	return Config{
		ID:                     "gossip-0",
		ListenAddr:             network.DefaultConfig().ListenAddr,
		OpsAddr:                ":14265",
		Port:                   15600,
		MinimumWeightMagnitude: 14,
		TransactionQueue:       1024,
		RequestQueue:           256,
		OutgoingQueue:          256,
		TPSInterval:            time.Second,
		HeartbeatInterval:      30 * time.Second,
		Session:                session.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ID == "" {
		c.ID = d.ID
	}
	if c.TransactionQueue <= 0 {
		c.TransactionQueue = d.TransactionQueue
	}
	if c.RequestQueue <= 0 {
		c.RequestQueue = d.RequestQueue
	}
	if c.OutgoingQueue <= 0 {
		c.OutgoingQueue = d.OutgoingQueue
	}
	if c.TPSInterval <= 0 {
		c.TPSInterval = d.TPSInterval
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.Session.InboxSize <= 0 {
		c.Session.InboxSize = d.Session.InboxSize
	}
	if c.Session.Backoff.InitialDelay <= 0 {
		c.Session.Backoff = d.Session.Backoff
	}
	return c
}

func (c Config) networkConfig() network.Config {
	return network.Config{
		ListenAddr:     c.ListenAddr,
		Peers:          c.Peers,
		ReadRate:       c.ReadRate,
		ConnectTimeout: c.Session.ConnectTimeout,
		WriteTimeout:   c.Session.WriteTimeout,
		Backoff:        c.Session.Backoff,
	}
}
