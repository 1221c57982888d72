package main

import (
	"flag"
	"log"

	"github.com/danmuck/tanglegossip/internal/config"
)

func main() {
	kind := flag.String("kind", "node", "config kind: node|peers")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing peers file")
	input := flag.String("input", "", "peers file path for validation (defaults to cmd/gossipctl/peers.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != "peers" {
			log.Fatalf("validation is supported for kind peers, got %s", *kind)
		}
		path := *input
		if path == "" {
			path = "cmd/gossipctl/peers.toml"
		}
		cfg, err := config.LoadPeers(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %d peers at %s", len(cfg.Peers), path)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "node":
			target = "cmd/gossipctl/config.toml"
		case "peers":
			target = "cmd/gossipctl/peers.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
