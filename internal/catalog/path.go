package catalog

import (
	"fmt"
	"path/filepath"
	"time"
)

// pathFor resolves the monthly catalog file an event with origin time t
// belongs to: tremor_catalog/<year>/<year>.<month>_tremor_catalog.txt
// (§4.9/§6). Edits to an open or just-reopened event always use its
// TriggerTime for this, not the current tick, so a rollover mid-event
// keeps editing the original month's file (§4.9, §8 boundary behaviors).
func pathFor(baseDir string, t time.Time) string {
	t = t.UTC()
	dir := filepath.Join(baseDir, fmt.Sprintf("%d", t.Year()))
	name := fmt.Sprintf("%d.%d_tremor_catalog.txt", t.Year(), int(t.Month()))
	return filepath.Join(dir, name)
}
