package logstore

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tremornet/tremor-monitor/internal/model"
)

// pathFor resolves the on-disk location of a (date, filter, channel) log
// file: logger_output/<year>/<month>/<YYYY>.<M>.<D>_<f_lo>,<f_hi>_<channel>.csv
// (§4.6 step 1).
func pathFor(baseDir string, date time.Time, filter model.Filter, channel model.Channel) string {
	date = date.UTC()
	year := date.Year()
	month := int(date.Month())
	day := date.Day()

	dir := filepath.Join(baseDir, fmt.Sprintf("%d", year), fmt.Sprintf("%d", month))
	name := fmt.Sprintf("%d.%d.%d_%s_%s.csv", year, month, day, filter.String(), channel)
	return filepath.Join(dir, name)
}
