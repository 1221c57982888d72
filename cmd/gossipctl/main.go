package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/tanglegossip/internal/logging"
	"github.com/danmuck/tanglegossip/internal/node"
	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "", "node config path (defaults apply when empty)")
	flag.Parse()

	observability.InitLogger("gossipctl")

	cfg := node.DefaultConfig()
	if *path != "" {
		loaded, err := loadNodeConfig(*path)
		if err != nil {
			log.Fatal().Err(err).Str("path", *path).Msg("config")
		}
		cfg = loaded
	}

	n, err := node.New(cfg, logging.Component("node"))
	if err != nil {
		log.Fatal().Err(err).Msg("node init")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := n.Run(ctx); err != nil {
		log.Error().Err(err).Msg("node stopped")
		os.Exit(1)
	}
}
