package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/tanglegossip/internal/auth"
	"github.com/danmuck/tanglegossip/internal/observability"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/protocol/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const Version = "0.1.0"

// Backend is the node surface exposed over HTTP.
type Backend interface {
	Peers() []session.Peer
	AddPeer(addr string) error
	RemovePeer(id string) error
	RequestTransaction(ctx context.Context, h protocol.Hash) error
	RequestMilestone(ctx context.Context, index uint32) error
}

// Config for the ops server. A nil Validator leaves mutating routes open.
type Config struct {
	NodeID      string
	Addr        string
	CorsOrigins []string
	Validator   auth.Validator
}

// Server is the node's operations API.
type Server struct {
	cfg      Config
	backend  Backend
	registry *prometheus.Registry
	router   *gin.Engine
	log      zerolog.Logger
	appeared time.Time
}

func New(cfg Config, backend Backend, registry *prometheus.Registry, logger zerolog.Logger) (*Server, error) {
	metrics, err := observability.NewHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.OpsRequests(logger, metrics, cfg.NodeID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		backend:  backend,
		registry: registry,
		router:   r,
		log:      logger.With().Str("component", "server").Logger(),
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("serving")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || v.Validate(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
