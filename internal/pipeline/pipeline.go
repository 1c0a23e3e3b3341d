// Package pipeline wires C1 through C10 into the per-minute control
// flow SPEC_FULL.md names: C1 → C2.reload → C3.refreshIfDue →
// C4.fetch → C5.compute → C6.append → (C7.assemble → C8.vote →
// C9.step) → C10.maybeFire. Orchestrator.RunMinute is the scheduler's
// MinuteFunc; Orchestrator.RunDaily is its DailyFunc.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/acquisition"
	"github.com/tremornet/tremor-monitor/internal/alarm"
	"github.com/tremornet/tremor-monitor/internal/api"
	"github.com/tremornet/tremor-monitor/internal/catalog"
	"github.com/tremornet/tremor-monitor/internal/config"
	"github.com/tremornet/tremor-monitor/internal/logstore"
	"github.com/tremornet/tremor-monitor/internal/metadata"
	"github.com/tremornet/tremor-monitor/internal/metrics"
	"github.com/tremornet/tremor-monitor/internal/model"
	"github.com/tremornet/tremor-monitor/internal/rsam"
	"github.com/tremornet/tremor-monitor/internal/trigger"
	"github.com/tremornet/tremor-monitor/internal/window"
)

// Orchestrator owns every per-minute collaborator and drives one
// minute's work through the full chain.
type Orchestrator struct {
	config   *config.Store
	metadata *metadata.Cache
	feed     acquisition.Feed
	logStore *logstore.Store
	windows  *window.Assembler
	catalog  *catalog.Writer
	alarm    *alarm.Gate

	// broadcaster fans each minute's per-filter trigger summary out to
	// SSE clients (§4.11's stream supplement). Nil is fine: RunMinute
	// simply doesn't publish anything.
	broadcaster *api.Broadcaster

	acquisitionTimeout time.Duration
	log                zerolog.Logger
}

// Options bundles Orchestrator's collaborators.
type Options struct {
	Config             *config.Store
	Metadata           *metadata.Cache
	Feed               acquisition.Feed
	LogStore           *logstore.Store
	Windows            *window.Assembler
	Catalog            *catalog.Writer
	Alarm              *alarm.Gate
	Broadcaster        *api.Broadcaster
	AcquisitionTimeout time.Duration
	Log                zerolog.Logger
}

// New returns an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		config:             opts.Config,
		metadata:           opts.Metadata,
		feed:               opts.Feed,
		logStore:           opts.LogStore,
		windows:            opts.Windows,
		catalog:            opts.Catalog,
		alarm:              opts.Alarm,
		broadcaster:        opts.Broadcaster,
		acquisitionTimeout: opts.AcquisitionTimeout,
		log:                opts.Log.With().Str("component", "pipeline").Logger(),
	}
}

// RunMinute is the scheduler.MinuteFunc: one full pass of the control
// flow for the closed-open window [minuteStart, minuteEnd).
func (o *Orchestrator) RunMinute(ctx context.Context, minuteStart, minuteEnd time.Time) {
	// The scheduler's firing instant carries sub-second jitter (§4.1); the
	// log store's minute label must land exactly on the boundary or a
	// jittered tick writes a duplicate minute (§8.1). Normalizing here too
	// means RunMinute is safe to call directly (as the tests do) without
	// relying on the caller having already truncated.
	minuteStart = model.NormalizeMinute(minuteStart)
	minuteEnd = model.NormalizeMinute(minuteEnd)

	o.config.Reload()
	domain := o.config.Domain()
	alert := o.config.Alert()

	o.metadata.RefreshIfDue(ctx, minuteEnd)

	channel, err := model.DetectChannel(domain.Channels)
	if err != nil {
		o.log.Error().Err(err).Str("channels", domain.Channels).Msg("minute abandoned: invalid channel selector")
		metrics.MinutesSkippedTotal.WithLabelValues("bad_channel_selector").Inc()
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.acquisitionTimeout)
	traces, err := o.feed.Fetch(fetchCtx, minuteStart, minuteEnd)
	cancel()
	if err != nil {
		o.log.Warn().Err(err).Time("minute", minuteStart).Msg("minute abandoned: acquisition feed unreachable")
		metrics.MinutesSkippedTotal.WithLabelValues("acquisition_unreachable").Inc()
		return
	}

	blacklist := model.NewStationSet(domain.StationBlacklist)
	for _, station := range blacklist {
		delete(traces, station)
	}

	var rsamResult rsam.Result
	o.metadata.Use(func(inv *metadata.Inventory) {
		rsamResult = rsam.Compute(traces, domain.Filters, inv, o.log)
	})

	for _, filter := range domain.Filters {
		if err := o.logStore.Append(minuteEnd, minuteEnd, filter, channel, rsamResult[filter]); err != nil {
			o.log.Error().Err(err).Str("filter", filter.String()).Msg("log store append failed")
		}
	}

	if !alert.AlertOn {
		return
	}

	var knownStations model.StationSet
	o.metadata.Use(func(inv *metadata.Inventory) {
		knownStations = inv.StationCodes().Subtract(blacklist)
	})

	var newlyTriggered []trigger.FilterResult
	minBetween := time.Duration(domain.MinimumMinBetweenEvents) * time.Minute
	for _, filter := range domain.Filters {
		windows, err := o.windows.Assemble(filter, channel, minuteEnd, domain.STALength, domain.LTALength, domain.STALength, domain.RampIntervals, knownStations)
		if err != nil {
			o.log.Error().Err(err).Str("filter", filter.String()).Msg("window assembly failed")
			continue
		}

		params := trigger.Params{
			PercentageData: domain.PercentageData,
			TriggerRatio:   domain.TriggerRatio,
			MinVelocity:    domain.MinVelocity,
			RampMinAvg:     domain.RampMinAvg,
			StationVotes:   domain.StationVotes,
		}
		result := trigger.Evaluate(filter, windows, params, knownStations)

		trueStations := make([]string, 0, len(result.Votes))
		for _, v := range result.Votes {
			trueStations = append(trueStations, v.Station)
		}

		fired, err := o.catalog.Step(filter, minuteEnd, result.Triggered, model.NewStationSet(trueStations), minBetween)
		if err != nil {
			o.log.Error().Err(err).Str("filter", filter.String()).Msg("catalog step failed")
			continue
		}
		if fired {
			metrics.CatalogEventsOpenedTotal.WithLabelValues(filter.String()).Inc()
			newlyTriggered = append(newlyTriggered, result)
		}
		if o.broadcaster != nil {
			o.broadcaster.Publish(api.Event{
				Filter:     filter,
				Time:       minuteEnd,
				Triggered:  result.Triggered,
				AlarmFired: fired,
				Stations:   model.NewStationSet(trueStations),
			})
		}
	}

	if len(newlyTriggered) > 0 {
		alarmCfg := alarm.Config{
			SilenceAudio:  alert.SilenceAudio,
			MaxAudioPerHr: alert.MaxAudioPerHr,
			MuteStations:  model.NewStationSet(alert.MuteStations),
			MuteFilters:   alert.MuteFilters,
			StationVotes:  domain.StationVotes,
		}
		o.alarm.MaybeFire(ctx, minuteEnd, alarmCfg, newlyTriggered)
	}
}

// RunDaily is the scheduler.DailyFunc. The metadata refresh is already
// gated by elapsed time inside RefreshIfDue, so this call is a
// convenience trigger aligned to the daily tick §4.1 names, not a
// second, independent refresh mechanism.
func (o *Orchestrator) RunDaily(ctx context.Context, day time.Time) {
	o.metadata.RefreshIfDue(ctx, day)
}
