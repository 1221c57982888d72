package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// metricsRoute is scraped every few seconds; its requests log at trace.
const metricsRoute = "/metrics"

// OpsRequests logs and records every ops API request. Route parameters
// (peer id, milestone index, transaction hash) are logged as fields so an
// operator can follow a request to the peer or item it targeted.
func OpsRequests(logger zerolog.Logger, m *HTTPMetrics, node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequest(node, c.Request.Method, route, status, elapsed)

		event := requestEvent(logger, route, status)
		for _, p := range c.Params {
			event = event.Str(p.Key, p.Value)
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("ops request")
	}
}

func requestEvent(logger zerolog.Logger, route string, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return logger.Warn().Bool("rejected", true)
	case status >= http.StatusBadRequest:
		return logger.Warn()
	case route == metricsRoute:
		return logger.Trace()
	default:
		return logger.Debug()
	}
}
