package metadata

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/tremornet/tremor-monitor/internal/model"
)

// cacheDoc is the on-disk XML form of an Inventory. §6 calls the cache
// files "inventory blobs written in the external toolkit's XML dialect...
// opaque to this spec; only file presence and mtime are contractually
// used" — so the exact schema here is this module's own, kept permissive
// the way the retrieved corpus's seiscompml07 parser tolerates missing or
// extra elements rather than failing the whole document over one field.
type cacheDoc struct {
	XMLName   xml.Name       `xml:"inventory"`
	Stations  []stationXML   `xml:"station"`
	Responses []responseXML  `xml:"response"`
}

type stationXML struct {
	Code string  `xml:"code,attr"`
	Lat  float64 `xml:"lat"`
	Lon  float64 `xml:"lon"`
	Site string  `xml:"site"`
}

type responseXML struct {
	Code       string  `xml:"code,attr"`
	CountsToUm float64 `xml:"countsToUm"`
}

// writeCache persists inv to path as XML. Used after every successful
// fetch so a later process restart (or a failed fetch) has a fallback.
func writeCache(path string, inv *Inventory) error {
	doc := cacheDoc{Stations: make([]stationXML, 0, len(inv.Stations))}
	for _, s := range inv.Stations {
		doc.Stations = append(doc.Stations, stationXML{Code: s.Code, Lat: s.Lat, Lon: s.Lon, Site: s.Site})
	}
	for code, r := range inv.Responses {
		doc.Responses = append(doc.Responses, responseXML{Code: code, CountsToUm: r.CountsToUm})
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// readCache loads a previously written cache file. A missing file or a
// parse failure are both reported as errors; callers treat either as
// "no usable cache".
func readCache(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	var doc cacheDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}

	inv := &Inventory{Responses: make(map[string]Response, len(doc.Responses))}
	for _, s := range doc.Stations {
		if s.Code == "" {
			continue // tolerate a malformed entry rather than failing the whole cache
		}
		inv.Stations = append(inv.Stations, model.Station{Code: s.Code, Lat: s.Lat, Lon: s.Lon, Site: s.Site})
	}
	for _, r := range doc.Responses {
		if r.Code == "" {
			continue
		}
		inv.Responses[r.Code] = Response{StationCode: r.Code, CountsToUm: r.CountsToUm}
	}
	return inv, nil
}
