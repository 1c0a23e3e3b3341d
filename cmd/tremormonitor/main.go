// Command tremormonitor runs the tremor monitor end to end: C1's minute
// and daily ticks drive the pipeline orchestrator (C2 through C10), and
// an HTTP server (C11) exposes the logs, catalog, health, and live
// event stream to readers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	tremormonitor "github.com/tremornet/tremor-monitor"
	"github.com/tremornet/tremor-monitor/internal/acquisition"
	"github.com/tremornet/tremor-monitor/internal/alarm"
	"github.com/tremornet/tremor-monitor/internal/api"
	"github.com/tremornet/tremor-monitor/internal/catalog"
	"github.com/tremornet/tremor-monitor/internal/config"
	"github.com/tremornet/tremor-monitor/internal/logstore"
	"github.com/tremornet/tremor-monitor/internal/metadata"
	"github.com/tremornet/tremor-monitor/internal/model"
	"github.com/tremornet/tremor-monitor/internal/obs"
	"github.com/tremornet/tremor-monitor/internal/pipeline"
	"github.com/tremornet/tremor-monitor/internal/scheduler"
	"github.com/tremornet/tremor-monitor/internal/window"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	var simulate bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.MQTTBrokerURL, "mqtt-url", "", "MQTT broker URL (overrides MQTT_BROKER_URL)")
	flag.BoolVar(&simulate, "simulate", false, "Use the simulated waveform feed instead of MQTT")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	procCfg, err := config.LoadProcess(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load process config")
	}
	if simulate {
		procCfg.SimulateFeed = true
	}

	log := obs.New(procCfg.LogLevel)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Msg("tremor monitor starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	domainStore, err := config.NewStore(procCfg.DomainConfigPath, procCfg.AlertConfigPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load domain configuration")
	}
	watcher := config.NewWatcher(domainStore, procCfg.DomainConfigPath, procCfg.AlertConfigPath, log)
	defer watcher.Stop()

	metaLog := obs.Component(log, "metadata")
	domainCfg := domainStore.Domain()

	// The metadata/response source is an out-of-scope external
	// collaborator (§1): production deployments supply a Source that
	// talks to the real station/response service. Absent one here,
	// StaticSource serves a minimal placeholder network so the process
	// runs end to end in -simulate mode.
	placeholderStations := simulationStations
	metaSource := metadata.StaticSource{Inventory: &metadata.Inventory{
		Stations:  placeholderStations,
		Responses: placeholderResponses(placeholderStations),
	}}
	metaCache, err := metadata.New(metaSource, domainCfg.MetadataFilename, domainCfg.ResponseFilename, metaLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metadata cache")
	}

	logStore, err := logstore.New(procCfg.LogOutputDir, obs.Component(log, "logstore"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize log store")
	}
	windowAssembler := window.New(logStore, obs.Component(log, "window"))

	catalogWriter, err := catalog.New(procCfg.CatalogDir, obs.Component(log, "catalog"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize catalog writer")
	}

	alarmGate := alarm.New(procCfg.AlarmHookPath, procCfg.AlarmHookTimeout, obs.Component(log, "alarm"))

	feedLog := obs.Component(log, "acquisition")
	var feed acquisition.Feed
	if procCfg.SimulateFeed || procCfg.MQTTBrokerURL == "" {
		feed = acquisition.NewSimulatedFeed(stationCodes(placeholderStations), 100, 1.0)
		log.Info().Msg("acquisition running in simulated mode (no waveform broker configured)")
	} else {
		mqttFeed, err := acquisition.NewMQTTFeed(acquisition.MQTTFeedOptions{
			BrokerURL: procCfg.MQTTBrokerURL,
			ClientID:  procCfg.MQTTClientID,
			Topics:    []string{"tremor/waveform/+"},
			Username:  procCfg.MQTTUsername,
			Password:  procCfg.MQTTPassword,
			Log:       feedLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqttFeed.Close()
		feed = mqttFeed
		log.Info().Str("broker", procCfg.MQTTBrokerURL).Msg("mqtt acquisition feed connected")
	}

	broadcaster := api.NewBroadcaster(256)

	orchestrator := pipeline.New(pipeline.Options{
		Config:             domainStore,
		Metadata:           metaCache,
		Feed:               feed,
		LogStore:           logStore,
		Windows:            windowAssembler,
		Catalog:            catalogWriter,
		Alarm:              alarmGate,
		Broadcaster:        broadcaster,
		AcquisitionTimeout: procCfg.AcquisitionTimeout,
		Log:                log,
	})

	sched := scheduler.New(orchestrator.RunMinute, orchestrator.RunDaily, log)
	sched.Start()
	defer sched.Stop()

	srv := api.NewServer(api.ServerOptions{
		Addr:               procCfg.HTTPAddr,
		Config:             domainStore,
		Metadata:           metaCache,
		LogStore:           logStore,
		Catalog:            catalogWriter,
		Scheduler:          sched,
		Broadcaster:        broadcaster,
		WebFiles:           tremormonitor.WebFiles,
		CORSOrigins:        procCfg.CORSOrigins,
		RateLimitRPS:       procCfg.RateLimitRPS,
		RateLimitBurst:     procCfg.RateLimitBurst,
		RequestTimeout:     procCfg.ReadTimeout,
		StaleTickThreshold: procCfg.StaleTickThreshold,
		StartTime:          startTime,
		Log:                obs.Component(log, "http"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info().
		Str("listen", procCfg.HTTPAddr).
		Dur("startup_ms", time.Since(startTime)).
		Msg("tremor monitor ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("tremor monitor stopped")
}

// simulationStations is the placeholder network used when no metadata
// source is configured, so -simulate mode exercises the full pipeline
// without a live station/response service.
var simulationStations = []model.Station{
	{Code: "REF1", Lat: 19.42, Lon: -155.29, Site: "Reference Station 1"},
	{Code: "REF2", Lat: 19.43, Lon: -155.28, Site: "Reference Station 2"},
	{Code: "REF3", Lat: 19.41, Lon: -155.30, Site: "Reference Station 3"},
}

func placeholderResponses(stations []model.Station) map[string]metadata.Response {
	out := make(map[string]metadata.Response, len(stations))
	for _, s := range stations {
		out[s.Code] = metadata.Response{StationCode: s.Code, CountsToUm: 1.0}
	}
	return out
}

func stationCodes(stations []model.Station) []string {
	out := make([]string, len(stations))
	for i, s := range stations {
		out[i] = s.Code
	}
	return out
}
