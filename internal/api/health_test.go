package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSchedulerStats struct {
	ticks    int64
	skips    int64
	lastTick time.Time
}

func (f fakeSchedulerStats) Ticks() int64        { return f.ticks }
func (f fakeSchedulerStats) Skips() int64        { return f.skips }
func (f fakeSchedulerStats) LastTick() time.Time { return f.lastTick }

type fakeMetadataStats struct {
	lastRefresh time.Time
}

func (f fakeMetadataStats) LastRefresh() time.Time { return f.lastRefresh }

type fakeCatalogStats struct {
	openEvents int
}

func (f fakeCatalogStats) OpenEventCount() int { return f.openEvents }

func TestHealthHandler_HealthyWhenRecentlyTicked(t *testing.T) {
	h := NewHealthHandler(
		fakeSchedulerStats{lastTick: time.Now().UTC()},
		fakeMetadataStats{lastRefresh: time.Now().UTC()},
		fakeCatalogStats{openEvents: 1},
		time.Now().Add(-time.Hour),
		2*time.Minute,
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if resp.CatalogOpenEvents != 1 {
		t.Errorf("expected 1 open event, got %d", resp.CatalogOpenEvents)
	}
}

func TestHealthHandler_UnhealthyWhenTickIsStale(t *testing.T) {
	h := NewHealthHandler(
		fakeSchedulerStats{lastTick: time.Now().Add(-10 * time.Minute)},
		fakeMetadataStats{lastRefresh: time.Now().UTC()},
		fakeCatalogStats{},
		time.Now().Add(-time.Hour),
		2*time.Minute,
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", resp.Status)
	}
	if resp.Checks["scheduler"] != "stale" {
		t.Errorf("expected scheduler check to report stale, got %s", resp.Checks["scheduler"])
	}
}

func TestHealthHandler_DegradedWhenMetadataNeverRefreshed(t *testing.T) {
	h := NewHealthHandler(
		fakeSchedulerStats{lastTick: time.Now().UTC()},
		fakeMetadataStats{},
		fakeCatalogStats{},
		time.Now().Add(-time.Hour),
		2*time.Minute,
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a degraded (not unhealthy) status, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("expected degraded, got %s", resp.Status)
	}
}

func TestHealthHandler_NotYetTickedIsStillHealthy(t *testing.T) {
	h := NewHealthHandler(
		fakeSchedulerStats{},
		fakeMetadataStats{lastRefresh: time.Now().UTC()},
		fakeCatalogStats{},
		time.Now(),
		2*time.Minute,
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a not-yet-ticked scheduler at startup, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Checks["scheduler"] != "not_yet_ticked" {
		t.Errorf("expected not_yet_ticked, got %s", resp.Checks["scheduler"])
	}
}
