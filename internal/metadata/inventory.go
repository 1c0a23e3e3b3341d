// Package metadata implements C3, the Metadata Cache: a periodically
// refreshed station list plus instrument-response gains, backed by a
// file cache so a fetch failure degrades to "most recently cached"
// rather than losing the network entirely (§4.3).
package metadata

import "github.com/tremornet/tremor-monitor/internal/model"

// Response is one station's instrument-response gain. CountsToUm is the
// scalar the RSAM pipeline divides raw counts by to obtain particle
// velocity in micrometers/second (§4.3: "sensitivity ÷ 10^6").
type Response struct {
	StationCode string  `xml:"code,attr"`
	CountsToUm  float64 `xml:"countsToUm"`
}

// Inventory is the full station list plus response table fetched from
// (or cached from) the metadata/response source.
type Inventory struct {
	Stations  []model.Station     `xml:"station"`
	Responses map[string]Response `xml:"-"`
}

// CountsToUm looks up a station's response gain. The second return value
// is false if the station has no known response (§4.5 step 4: "if a
// station has no response, drop that trace and log").
func (inv *Inventory) CountsToUm(station string) (float64, bool) {
	if inv == nil {
		return 0, false
	}
	r, ok := inv.Responses[station]
	if !ok || r.CountsToUm == 0 {
		return 0, false
	}
	return r.CountsToUm, true
}

// StationCodes returns the sorted set of known station codes.
func (inv *Inventory) StationCodes() model.StationSet {
	if inv == nil {
		return nil
	}
	codes := make([]string, 0, len(inv.Stations))
	for _, s := range inv.Stations {
		codes = append(codes, s.Code)
	}
	return model.NewStationSet(codes)
}
