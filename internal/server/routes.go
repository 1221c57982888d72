package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/tanglegossip/internal/network"
	"github.com/danmuck/tanglegossip/internal/protocol"
	"github.com/danmuck/tanglegossip/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type addPeerRequest struct {
	Addr string `json:"addr" binding:"required"`
}

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"node":    s.cfg.NodeID,
			"version": Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	r.GET("/peers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"peers": s.backend.Peers()})
	})

	ops := r.Group("/", requireToken(s.cfg.Validator))

	ops.POST("/peers", func(c *gin.Context) {
		var req addPeerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.backend.AddPeer(req.Addr); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "ok", "peer": req.Addr})
	})

	ops.DELETE("/peers/:id", func(c *gin.Context) {
		id := c.Param("id")
		if err := s.backend.RemovePeer(id); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "peer": id})
	})

	ops.POST("/requests/milestone/:index", func(c *gin.Context) {
		index, err := strconv.ParseUint(c.Param("index"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milestone index"})
			return
		}
		if err := s.backend.RequestMilestone(c.Request.Context(), uint32(index)); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "index": index})
	})

	ops.POST("/requests/transaction/:hash", func(c *gin.Context) {
		raw, err := hex.DecodeString(c.Param("hash"))
		if err != nil || len(raw) != protocol.HashSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction hash"})
			return
		}
		var h protocol.Hash
		copy(h[:], raw)
		if err := s.backend.RequestTransaction(c.Request.Context(), h); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "hash": c.Param("hash")})
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, network.ErrUnknownPeer):
		return http.StatusNotFound
	case errors.Is(err, network.ErrPeerExists):
		return http.StatusConflict
	case errors.Is(err, worker.ErrQueueClosed), errors.Is(err, network.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
