package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/tanglegossip/internal/config"
	"github.com/danmuck/tanglegossip/internal/node"
	"github.com/danmuck/tanglegossip/internal/protocol"
)

type fileConfig struct {
	ID                     string   `toml:"id"`
	ListenAddr             string   `toml:"listen_addr"`
	OpsAddr                string   `toml:"ops_addr"`
	OpsToken               string   `toml:"ops_token"`
	Port                   int      `toml:"port"`
	Coordinator            string   `toml:"coordinator"`
	MinimumWeightMagnitude int      `toml:"minimum_weight_magnitude"`
	StrictHandshake        bool     `toml:"strict_handshake"`
	Durable                bool     `toml:"durable"`
	TransactionQueue       int      `toml:"transaction_queue"`
	RequestQueue           int      `toml:"request_queue"`
	InboxSize              int      `toml:"inbox_size"`
	ReadRate               float64  `toml:"read_rate"`
	TPSInterval            string   `toml:"tps_interval"`
	HeartbeatInterval      string   `toml:"heartbeat_interval"`
	Peers                  []string `toml:"peers"`
	PeersFile              string   `toml:"peers_file"`
	CorsOrigins            []string `toml:"cors_origins"`
}

func loadNodeConfig(path string) (node.Config, error) {
	cfg := node.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return node.Config{}, fmt.Errorf("load node config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("ops_addr") {
		cfg.OpsAddr = strings.TrimSpace(raw.OpsAddr)
	}
	if meta.IsDefined("ops_token") {
		cfg.OpsToken = strings.TrimSpace(raw.OpsToken)
	}
	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 0xffff {
			return node.Config{}, fmt.Errorf("port out of range: %d", raw.Port)
		}
		cfg.Port = uint16(raw.Port)
	}
	if meta.IsDefined("coordinator") {
		coordinator, err := parseCoordinator(raw.Coordinator)
		if err != nil {
			return node.Config{}, err
		}
		cfg.Coordinator = coordinator
	}
	if meta.IsDefined("minimum_weight_magnitude") {
		if raw.MinimumWeightMagnitude < 0 || raw.MinimumWeightMagnitude > 0xff {
			return node.Config{}, fmt.Errorf("minimum_weight_magnitude out of range: %d", raw.MinimumWeightMagnitude)
		}
		cfg.MinimumWeightMagnitude = uint8(raw.MinimumWeightMagnitude)
	}
	if meta.IsDefined("strict_handshake") {
		cfg.Session.StrictHandshake = raw.StrictHandshake
	}
	if meta.IsDefined("durable") {
		cfg.Durable = raw.Durable
	}
	if meta.IsDefined("transaction_queue") {
		cfg.TransactionQueue = raw.TransactionQueue
	}
	if meta.IsDefined("request_queue") {
		cfg.RequestQueue = raw.RequestQueue
	}
	if meta.IsDefined("inbox_size") {
		cfg.Session.InboxSize = raw.InboxSize
	}
	if meta.IsDefined("read_rate") {
		cfg.ReadRate = raw.ReadRate
	}
	if meta.IsDefined("tps_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TPSInterval))
		if err != nil {
			return node.Config{}, fmt.Errorf("parse tps_interval: %w", err)
		}
		cfg.TPSInterval = d
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return node.Config{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if meta.IsDefined("peers") {
		cfg.Peers = normalizePeers(raw.Peers)
	}
	if meta.IsDefined("peers_file") {
		if peersPath := strings.TrimSpace(raw.PeersFile); peersPath != "" {
			if !filepath.IsAbs(peersPath) {
				peersPath = filepath.Join(filepath.Dir(path), peersPath)
			}
			peers, err := config.LoadPeers(peersPath)
			if err != nil {
				return node.Config{}, err
			}
			cfg.Peers = mergePeers(cfg.Peers, peers.Addrs())
		}
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	return cfg, nil
}

func parseCoordinator(s string) ([protocol.CoordinatorSize]byte, error) {
	var out [protocol.CoordinatorSize]byte
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("parse coordinator: %w", err)
	}
	if len(raw) != protocol.CoordinatorSize {
		return out, fmt.Errorf("parse coordinator: got %d bytes, want %d", len(raw), protocol.CoordinatorSize)
	}
	copy(out[:], raw)
	return out, nil
}

func normalizePeers(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, peer := range in {
		v := strings.TrimSpace(peer)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func mergePeers(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, peer := range append(append([]string(nil), base...), extra...) {
		if _, ok := seen[peer]; ok {
			continue
		}
		seen[peer] = struct{}{}
		out = append(out, peer)
	}
	return out
}
