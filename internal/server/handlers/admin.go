package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/biorecords/biorecords/internal/server/response"
)

// HandleRebuildNames handles POST /admin/rebuild-names. It recomputes the
// derived names of every taxon.
func (h *Handlers) HandleRebuildNames(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n, err := h.store.Taxa.RebuildAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info().
		Int("changed", n).
		Dur("duration", time.Since(start)).
		Msg("Rebuilt taxon names")
	response.OK(w, map[string]any{
		"status":  "completed",
		"changed": n,
	})
}

// HandleStats handles GET /admin/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	version, err := h.store.Version(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response.OK(w, map[string]any{
		"runtime": map[string]any{
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
			"memory_mb":      memStats.Alloc / 1024 / 1024,
			"memory_sys_mb":  memStats.Sys / 1024 / 1024,
		},
		"database": map[string]any{
			"schema_version": version,
		},
		"http": map[string]any{
			"requests_total":      h.counters.Requests.Load(),
			"client_errors_total": h.counters.ClientErrors.Load(),
			"server_errors_total": h.counters.ServerErrors.Load(),
		},
		"events": map[string]any{
			"published_total": h.broker.EventsPublished(),
			"dropped_total":   h.broker.EventsDropped(),
			"queue_depth":     h.broker.QueueDepth(),
			"subscribers":     h.broker.SubscriberCount(),
		},
		"realtime": map[string]any{
			"websocket_clients": h.wsHub.ClientCount(),
			"sse_clients":       h.sseBroadcaster.ClientCount(),
		},
		"cache": h.cache.GetStats(),
	})
}
