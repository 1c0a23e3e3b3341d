// current_configuration, latest, range, and catalog_range implement
// C11's three read operations (§4.11) plus the catalog range query,
// reading back C2's configuration and C6/C9's on-disk stores. The read
// API never locks against the writer beyond what those stores already
// do internally — per §5, the log and catalog files are single-writer
// and the reader tolerates seeing either the pre- or post-rewrite state.
package api

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tremornet/tremor-monitor/internal/catalog"
	"github.com/tremornet/tremor-monitor/internal/config"
	"github.com/tremornet/tremor-monitor/internal/logstore"
	"github.com/tremornet/tremor-monitor/internal/metadata"
	"github.com/tremornet/tremor-monitor/internal/model"
)

// DataHandler serves the four read endpoints over the monitor's
// configuration, metadata, log store, and catalog.
type DataHandler struct {
	config   *config.Store
	metadata *metadata.Cache
	logStore *logstore.Store
	catalog  *catalog.Writer
}

// NewDataHandler returns a DataHandler over the given collaborators.
func NewDataHandler(cfg *config.Store, meta *metadata.Cache, logStore *logstore.Store, cat *catalog.Writer) *DataHandler {
	return &DataHandler{config: cfg, metadata: meta, logStore: logStore, catalog: cat}
}

// Routes registers the four endpoints at the plain, unversioned paths
// §6 names (/api/current_configuration etc.), distinct from the
// versioned /api/v1 supplements this module adds.
func (h *DataHandler) Routes(r chi.Router) {
	r.Get("/api/current_configuration", h.CurrentConfiguration)
	r.Post("/api/latest", h.Latest)
	r.Post("/api/range", h.Range)
	r.Post("/api/catalog_range", h.CatalogRange)
}

type currentConfigurationResponse struct {
	Stations []string       `json:"stations"`
	Filters  []model.Filter `json:"filters"`
}

// CurrentConfiguration returns the sorted station list and the current
// filter list (§4.11).
func (h *DataHandler) CurrentConfiguration(w http.ResponseWriter, r *http.Request) {
	var stations model.StationSet
	h.metadata.Use(func(inv *metadata.Inventory) {
		stations = inv.StationCodes()
	})
	domain := h.config.Domain()
	WriteJSON(w, http.StatusOK, currentConfigurationResponse{
		Stations: []string(stations),
		Filters:  domain.Filters,
	})
}

type latestRequest struct {
	Stations     []string  `json:"stations"`
	Filters      []model.Filter `json:"filters"`
	LogTransform bool      `json:"log_transform"`
}

// Latest returns, for each requested filter, the most recent minute's
// RSAM per station (§4.11).
func (h *DataHandler) Latest(w http.ResponseWriter, r *http.Request) {
	var req latestRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	known, err := h.knownStations()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stations, ok := h.resolveStations(req.Stations, known)
	if !ok {
		WriteError(w, http.StatusNotAcceptable, "unknown station in request")
		return
	}
	filters := h.resolveFilters(req.Filters)
	channel, err := model.DetectChannel(h.config.Domain().Channels)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "invalid channel configuration")
		return
	}

	out := make(map[string]map[string]float64, len(filters))
	now := time.Now().UTC()
	for _, f := range filters {
		row, err := h.latestRow(f, channel, now)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		values := make(map[string]float64, len(stations))
		for _, st := range stations {
			v := row[st]
			if req.LogTransform && v > 0 {
				v = math.Log(v)
			}
			values[st] = v
		}
		out[f.String()] = values
	}
	WriteJSON(w, http.StatusOK, out)
}

// latestRow returns the most recent minute's per-station values for
// filter/channel, trying today's log file and falling back to
// yesterday's when today's file has no rows yet (e.g. shortly after
// midnight).
func (h *DataHandler) latestRow(f model.Filter, channel model.Channel, now time.Time) (map[string]float64, error) {
	for _, day := range []time.Time{now, now.AddDate(0, 0, -1)} {
		timestamps, perStation, err := h.logStore.Read(day, f, channel)
		if err != nil {
			return nil, err
		}
		if len(timestamps) == 0 {
			continue
		}
		last := len(timestamps) - 1
		row := make(map[string]float64, len(perStation))
		for station, values := range perStation {
			row[station] = values[last]
		}
		return row, nil
	}
	return map[string]float64{}, nil
}

type rangeRequest struct {
	RangeStart   time.Time `json:"range_start"`
	RangeEnd     time.Time `json:"range_end"`
	Stations     []string  `json:"stations"`
	Filters      []model.Filter `json:"filters"`
	LogTransform bool      `json:"log_transform"`
}

// Range returns, for each filter, station → values[] across the closed
// minute range [range_start, range_end] (§4.11). An inverted range
// (start after end) yields an empty result.
func (h *DataHandler) Range(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	known, err := h.knownStations()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stations, ok := h.resolveStations(req.Stations, known)
	if !ok {
		WriteError(w, http.StatusNotAcceptable, "unknown station in request")
		return
	}
	filters := h.resolveFilters(req.Filters)
	channel, err := model.DetectChannel(h.config.Domain().Channels)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "invalid channel configuration")
		return
	}

	out := make(map[string]map[string][]float64, len(filters))
	if req.RangeEnd.Before(req.RangeStart) {
		for _, f := range filters {
			values := make(map[string][]float64, len(stations))
			for _, st := range stations {
				values[st] = []float64{}
			}
			out[f.String()] = values
		}
		WriteJSON(w, http.StatusOK, out)
		return
	}

	start, end := req.RangeStart.UTC(), req.RangeEnd.UTC()
	for _, f := range filters {
		values := make(map[string][]float64, len(stations))
		for _, st := range stations {
			values[st] = []float64{}
		}
		for day := model.StartOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
			timestamps, perStation, err := h.logStore.Read(day, f, channel)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error())
				return
			}
			for i, ts := range timestamps {
				if ts.Before(start) || ts.After(end) {
					continue
				}
				for _, st := range stations {
					v := perStation[st][i]
					if req.LogTransform && v > 0 {
						v = math.Log(v)
					}
					values[st] = append(values[st], v)
				}
			}
		}
		out[f.String()] = values
	}
	WriteJSON(w, http.StatusOK, out)
}

type catalogRangeRequest struct {
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
}

// CatalogRange returns every catalog event whose TriggerTime lies in
// [range_start, range_end] (§4.11).
func (h *DataHandler) CatalogRange(w http.ResponseWriter, r *http.Request) {
	var req catalogRangeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.catalog.Range(req.RangeStart.UTC(), req.RangeEnd.UTC())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	WriteJSON(w, http.StatusOK, events)
}

func (h *DataHandler) knownStations() (model.StationSet, error) {
	var known model.StationSet
	h.metadata.Use(func(inv *metadata.Inventory) {
		known = inv.StationCodes()
	})
	return known, nil
}

// resolveStations defaults an empty request list to every known
// station, and rejects the request (ok=false) if any requested station
// is not in known (§4.11: "unknown stations yield HTTP 406").
func (h *DataHandler) resolveStations(requested []string, known model.StationSet) (model.StationSet, bool) {
	if len(requested) == 0 {
		return known, true
	}
	for _, s := range requested {
		if !known.Contains(s) {
			return nil, false
		}
	}
	return model.NewStationSet(requested), true
}

// resolveFilters defaults an empty request list to the currently
// configured filter bank.
func (h *DataHandler) resolveFilters(requested []model.Filter) []model.Filter {
	if len(requested) == 0 {
		return h.config.Domain().Filters
	}
	return requested
}
