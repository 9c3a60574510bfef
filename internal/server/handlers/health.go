package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/biorecords/biorecords/internal/server/response"
)

// readyTimeout bounds the database ping of the readiness check.
const readyTimeout = 2 * time.Second

// HandleHealth handles GET /health (liveness check).
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "biorecords-api",
		"version": "v1",
	})
}

// HandleReady handles GET /ready. It pings the database and reports 503
// when it cannot be reached.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Readiness check failed")
		response.ServiceUnavailable(w, "Database not available")
		return
	}

	response.OK(w, map[string]any{
		"status": "ready",
		"cache": map[string]any{
			"items": h.cache.ItemCount(),
		},
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}

// HandleMetrics handles GET /metrics with plain text counters.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	stats := h.cache.GetStats()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics := []struct {
		name, kind string
		value      int64
	}{
		{"biorecords_http_requests_total", "counter", h.counters.Requests.Load()},
		{"biorecords_http_client_errors_total", "counter", h.counters.ClientErrors.Load()},
		{"biorecords_http_server_errors_total", "counter", h.counters.ServerErrors.Load()},
		{"biorecords_cache_items", "gauge", int64(stats.ItemCount)},
		{"biorecords_cache_hits_total", "counter", stats.Hits},
		{"biorecords_cache_misses_total", "counter", stats.Misses},
		{"biorecords_cache_flushes_total", "counter", stats.Flushes},
		{"biorecords_events_published_total", "counter", h.broker.EventsPublished()},
		{"biorecords_events_dropped_total", "counter", h.broker.EventsDropped()},
		{"biorecords_websocket_clients", "gauge", int64(h.wsHub.ClientCount())},
		{"biorecords_sse_clients", "gauge", int64(h.sseBroadcaster.ClientCount())},
		{"biorecords_uptime_seconds", "gauge", int64(time.Since(h.startTime).Seconds())},
	}
	for _, m := range metrics {
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n%s %d\n", m.name, m.kind, m.name, m.value)
	}
}
