package api

import (
	"net/http"
	"time"
)

// HealthResponse reports the liveness of the background services the
// minute loop depends on — ported from the teacher's health.go, whose
// database/mqtt/file_watcher checks have no analog here; scheduler tick
// age and metadata refresh age are this domain's equivalent signals.
type HealthResponse struct {
	Status            string `json:"status"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	Checks            map[string]string `json:"checks"`
	LastTickAgoSeconds   float64 `json:"last_tick_ago_seconds"`
	SchedulerSkips       int64   `json:"scheduler_skips"`
	MetadataAgeSeconds   float64 `json:"metadata_age_seconds"`
	CatalogOpenEvents    int     `json:"catalog_open_events"`
}

// SchedulerStats is the subset of scheduler.Scheduler the health check
// needs. Defined here, satisfied structurally, to avoid internal/api
// importing internal/scheduler for a three-method interface.
type SchedulerStats interface {
	Ticks() int64
	Skips() int64
	LastTick() time.Time
}

// MetadataStats is the subset of metadata.Cache the health check needs.
type MetadataStats interface {
	LastRefresh() time.Time
}

// CatalogStats is the subset of catalog.Writer the health check needs.
type CatalogStats interface {
	OpenEventCount() int
}

// HealthHandler serves /api/v1/health.
type HealthHandler struct {
	scheduler SchedulerStats
	metadata  MetadataStats
	catalog   CatalogStats
	startTime time.Time

	// staleTickThreshold is how long since the last minute tick before
	// the scheduler is reported unhealthy rather than merely degraded.
	staleTickThreshold time.Duration
}

// NewHealthHandler returns a HealthHandler. staleTickThreshold should be
// a small multiple of one minute (the tick period); two minutes is a
// reasonable default that tolerates exactly one skipped tick.
func NewHealthHandler(scheduler SchedulerStats, metadata MetadataStats, catalog CatalogStats, startTime time.Time, staleTickThreshold time.Duration) *HealthHandler {
	return &HealthHandler{
		scheduler:          scheduler,
		metadata:           metadata,
		catalog:            catalog,
		startTime:          startTime,
		staleTickThreshold: staleTickThreshold,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	now := time.Now().UTC()
	var lastTickAgo time.Duration
	var skips int64
	if h.scheduler != nil {
		last := h.scheduler.LastTick()
		skips = h.scheduler.Skips()
		if last.IsZero() {
			checks["scheduler"] = "not_yet_ticked"
		} else {
			lastTickAgo = now.Sub(last)
			if lastTickAgo > h.staleTickThreshold {
				checks["scheduler"] = "stale"
				status = "unhealthy"
				httpStatus = http.StatusServiceUnavailable
			} else {
				checks["scheduler"] = "ok"
			}
		}
	} else {
		checks["scheduler"] = "not_configured"
	}

	var metadataAge time.Duration
	if h.metadata != nil {
		last := h.metadata.LastRefresh()
		if last.IsZero() {
			checks["metadata"] = "never_refreshed"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			metadataAge = now.Sub(last)
			checks["metadata"] = "ok"
		}
	} else {
		checks["metadata"] = "not_configured"
	}

	var openEvents int
	if h.catalog != nil {
		openEvents = h.catalog.OpenEventCount()
	}

	resp := HealthResponse{
		Status:             status,
		UptimeSeconds:      int64(time.Since(h.startTime).Seconds()),
		Checks:             checks,
		LastTickAgoSeconds: lastTickAgo.Seconds(),
		SchedulerSkips:     skips,
		MetadataAgeSeconds: metadataAge.Seconds(),
		CatalogOpenEvents:  openEvents,
	}

	WriteJSON(w, httpStatus, resp)
}
