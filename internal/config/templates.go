package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "node":
		return nodeTemplate, nil
	case "peers":
		return peersTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const nodeTemplate = `id = "gossip-0"
listen_addr = ":15600"
ops_addr = ":14265"
ops_token = ""
port = 15600
coordinator = ""
minimum_weight_magnitude = 14
strict_handshake = false
durable = false
transaction_queue = 1024
request_queue = 256
inbox_size = 64
read_rate = 0
tps_interval = "1s"
heartbeat_interval = "30s"
peers = []
peers_file = "peers.toml"
cors_origins = ["http://localhost:3000"]
`

const peersTemplate = `[[peers]]
alias = "neighbor-1"
addr = "127.0.0.1:15601"

[[peers]]
alias = "neighbor-2"
addr = "127.0.0.1:15602"
`
