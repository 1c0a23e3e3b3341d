// Package alarm implements C10, the Alarm Gate: mute/suppress rules
// applied to a minute's per-filter trigger votes, then a rate-capped
// invocation of the external audio hook (§4.10).
package alarm

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/metrics"
	"github.com/tremornet/tremor-monitor/internal/model"
	"github.com/tremornet/tremor-monitor/internal/trigger"
)

// Config mirrors the alert_config.json options §4.2/§4.10 name, plus
// the domain config's station_votes threshold the "effective_votes
// < station_votes" check (§4.10 step 2) needs.
type Config struct {
	SilenceAudio  bool
	MaxAudioPerHr int
	MuteStations  model.StationSet
	MuteFilters   []model.Filter
	StationVotes  int
}

// Gate owns the hourly rate cap state and invokes the external hook.
type Gate struct {
	hookPath string
	timeout  time.Duration
	log      zerolog.Logger

	mu          sync.Mutex
	hourMarker  time.Time
	countThisHr int
}

// New returns a Gate that runs hookPath (a single external command,
// invoked with no arguments) when a minute's votes survive every mute
// rule and the hourly cap allows it.
func New(hookPath string, timeout time.Duration, log zerolog.Logger) *Gate {
	return &Gate{hookPath: hookPath, timeout: timeout, log: log}
}

// MaybeFire applies §4.10's three suppression steps to each filter
// result that newly triggered this minute (callers pass only filters
// whose C9 step this minute returned alarm=true — a merge or
// continuation never reaches here). If any filter survives and the
// hourly counter allows it, the hook fires exactly once for the
// minute, not once per surviving filter.
func (g *Gate) MaybeFire(ctx context.Context, now time.Time, cfg Config, newlyTriggered []trigger.FilterResult) {
	if cfg.SilenceAudio {
		return
	}

	survived := false
	for _, result := range newlyTriggered {
		if g.suppressed(cfg, result) {
			continue
		}
		survived = true
	}
	if !survived {
		return
	}

	g.mu.Lock()
	hour := now.UTC().Truncate(time.Hour)
	if !hour.Equal(g.hourMarker) {
		g.hourMarker = hour
		g.countThisHr = 0
	}
	if g.countThisHr >= cfg.MaxAudioPerHr {
		g.mu.Unlock()
		g.log.Warn().Int("max_per_hr", cfg.MaxAudioPerHr).Msg("audio alarm suppressed: hourly cap reached")
		return
	}
	g.countThisHr++
	g.mu.Unlock()

	g.invoke(ctx)
}

// suppressed implements §4.10 steps 2-3 for one filter's result.
func (g *Gate) suppressed(cfg Config, result trigger.FilterResult) bool {
	for _, f := range cfg.MuteFilters {
		if f == result.Filter {
			return true
		}
	}
	effectiveVotes := 0
	for _, v := range result.Votes {
		if !cfg.MuteStations.Contains(v.Station) {
			effectiveVotes++
		}
	}
	return effectiveVotes < cfg.StationVotes
}

func (g *Gate) invoke(ctx context.Context) {
	if g.hookPath == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.hookPath)
	if err := cmd.Run(); err != nil {
		g.log.Error().Err(err).Str("hook", g.hookPath).Msg("audio alarm hook failed")
		return
	}
	metrics.AlarmFiredTotal.Inc()
	g.log.Info().Str("hook", g.hookPath).Msg("audio alarm hook invoked")
}
