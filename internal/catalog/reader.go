package catalog

import (
	"time"

	"github.com/tremornet/tremor-monitor/internal/model"
)

// Range returns every catalog event whose TriggerTime falls within
// [start, end], for C11's catalog_range endpoint. An inverted range
// (start after end) yields an empty result rather than an error (§4.11).
func (w *Writer) Range(start, end time.Time) ([]model.Event, error) {
	if end.Before(start) {
		return nil, nil
	}

	var events []model.Event
	for _, month := range monthsBetween(start, end) {
		doc, err := loadOrCreate(pathFor(w.baseDir, month))
		if err != nil {
			return nil, err
		}
		for _, row := range doc.rows {
			if !row.TriggerTime.Before(start) && !row.TriggerTime.After(end) {
				events = append(events, model.Event{
					ID:          row.EventID,
					TriggerTime: row.TriggerTime,
					Filter:      row.Filter,
					Stations:    row.Stations,
				})
			}
		}
	}
	return events, nil
}

func monthsBetween(start, end time.Time) []time.Time {
	start, end = start.UTC(), end.UTC()
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	var months []time.Time
	for !cur.After(last) {
		months = append(months, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}
