package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// PeersFile lists static neighbors dialed at startup.
type PeersFile struct {
	Peers []PeerEntry `toml:"peers"`
}

type PeerEntry struct {
	Alias string `toml:"alias"`
	Addr  string `toml:"addr"`
}

func LoadPeers(path string) (PeersFile, error) {
	var cfg PeersFile
	if err := loadToml(path, &cfg); err != nil {
		return PeersFile{}, err
	}
	for i := range cfg.Peers {
		cfg.Peers[i].Addr = strings.TrimSpace(cfg.Peers[i].Addr)
	}
	if err := ValidatePeers(cfg); err != nil {
		return PeersFile{}, err
	}
	return cfg, nil
}

// Addrs returns the peer addresses in file order.
func (p PeersFile) Addrs() []string {
	out := make([]string, 0, len(p.Peers))
	for _, entry := range p.Peers {
		out = append(out, entry.Addr)
	}
	return out
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidatePeers(cfg PeersFile) error {
	seen := make(map[string]struct{}, len(cfg.Peers))
	for i, entry := range cfg.Peers {
		if err := ValidatePeerEntry(entry); err != nil {
			return fmt.Errorf("peer[%d] invalid: %w", i, err)
		}
		if _, ok := seen[entry.Addr]; ok {
			return fmt.Errorf("peer[%d] invalid: duplicate addr %s", i, entry.Addr)
		}
		seen[entry.Addr] = struct{}{}
	}
	return nil
}

func ValidatePeerEntry(entry PeerEntry) error {
	addr := strings.TrimSpace(entry.Addr)
	if addr == "" {
		return fmt.Errorf("addr is required")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("addr %q: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("host required in addr %q", addr)
	}
	if port == "" {
		return fmt.Errorf("port required in addr %q", addr)
	}
	return nil
}
