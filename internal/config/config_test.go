package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/tanglegossip/internal/testutil/testlog"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadPeersTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "peers.toml")
	if err := WriteTemplate(path, "peers", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadPeers(path)
	if err != nil {
		t.Fatalf("load peers: %v", err)
	}
	addrs := cfg.Addrs()
	if len(addrs) != 2 || addrs[0] != "127.0.0.1:15601" || addrs[1] != "127.0.0.1:15602" {
		t.Fatalf("unexpected addrs: %v", addrs)
	}
	if cfg.Peers[0].Alias != "neighbor-1" {
		t.Fatalf("unexpected alias: %q", cfg.Peers[0].Alias)
	}
}

func TestLoadPeersTrimsAddr(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "peers.toml", "[[peers]]\naddr = \"  10.0.0.1:15600 \"\n")
	cfg, err := LoadPeers(path)
	if err != nil {
		t.Fatalf("load peers: %v", err)
	}
	if cfg.Peers[0].Addr != "10.0.0.1:15600" {
		t.Fatalf("addr not trimmed: %q", cfg.Peers[0].Addr)
	}
}

func TestLoadPeersRejectsInvalidEntries(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"missing addr": "[[peers]]\nalias = \"x\"\n",
		"no port":      "[[peers]]\naddr = \"10.0.0.1\"\n",
		"no host":      "[[peers]]\naddr = \":15600\"\n",
		"duplicate":    "[[peers]]\naddr = \"a:1\"\n[[peers]]\naddr = \"a:1\"\n",
	}
	for name, body := range cases {
		path := writeFile(t, "peers.toml", body)
		if _, err := LoadPeers(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadPeersWrapsFileErrors(t *testing.T) {
	testlog.Start(t)
	_, err := LoadPeers(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load failure, got %v", err)
	}
	path := writeFile(t, "bad.toml", "[[peers]\n")
	_, err = LoadPeers(path)
	if err == nil || !strings.Contains(err.Error(), "config parse failed") {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestWriteTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "node.toml")
	if err := WriteTemplate(path, "node", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "node", false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if err := WriteTemplate(path, "node", true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
	if _, err := Template("wallet"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
