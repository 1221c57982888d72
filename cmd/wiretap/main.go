package main

import (
	"context"
	"encoding/hex"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/tanglegossip/internal/logging"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/frame"
	"github.com/danmuck/tanglegossip/internal/protocol/version"
	"github.com/danmuck/tanglegossip/internal/wiretap"
)

func main() {
	peer := flag.String("peer", "127.0.0.1:15600", "gossip address to connect to")
	count := flag.Int("count", 0, "frames to read before exiting (0 = until the peer closes)")
	port := flag.Uint("port", 15600, "port advertised in the handshake")
	mwm := flag.Uint("mwm", 14, "minimum weight magnitude advertised in the handshake")
	maxPayload := flag.Int("max-payload", frame.DefaultLimits().MaxPayloadBytes, "largest payload accepted")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.Component("wiretap")

	raw, err := net.DialTimeout("tcp", *peer, 5*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Str("peer", *peer).Msg("dial")
	}
	defer raw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		raw.Close()
	}()

	var coordinator [protocol.CoordinatorSize]byte
	hs := protocol.NewHandshake(uint16(*port), uint64(time.Now().UnixMilli()), coordinator, uint8(*mwm), version.Supported())
	tap := wiretap.New(frame.Limits{MaxPayloadBytes: *maxPayload}, logger)
	err = tap.Watch(ctx, raw, hs, *count, func(rec wiretap.Record) {
		ev := logger.Info()
		if rec.Invalid != nil {
			ev = logger.Warn().Err(rec.Invalid)
		}
		ev = ev.Str("message", rec.Name).
			Uint8("message_type", rec.Header.Type).
			Int("length", int(rec.Header.Length))
		if rec.Header.Type == protocol.HandshakeID && rec.Invalid == nil {
			ev = ev.Int("version", rec.Version).
				Int("remote_highest", rec.RemoteHighest).
				Bool("remote_speaks_sting", rec.SpeaksSting).
				AnErr("version_err", rec.VersionErr)
		}
		if tx, ok := rec.Message.(protocol.TransactionBroadcast); ok {
			ev = ev.Str("transaction_prefix", hex.EncodeToString(tx.Transaction[:8]))
		}
		ev.Msg("frame")
	})
	if err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("watch")
		os.Exit(1)
	}
}
