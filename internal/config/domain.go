package config

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tremornet/tremor-monitor/internal/model"
)

// DomainConfig is config.json (§4.2): endpoints, network selection, filter
// bank, and trigger thresholds.
type DomainConfig struct {
	FDSNAddress      string `json:"fdsn_address"`
	SeedlinkAddress  string `json:"seedlink_address"`
	SeedlinkPort     int    `json:"seedlink_port"`
	Network          string `json:"network"`
	StationWildcard  string `json:"station_wildcard"`
	LocationWildcard string `json:"location_wildcard"`
	Channels         string `json:"channels"`

	StationBlacklist []string      `json:"station_blacklist"`
	Filters          []model.Filter `json:"filters"`

	STALength int `json:"sta_length"` // minutes; also used as the ramp buffer's
	// per-interval width W (§4.2 does not name a separate ramp-window-width
	// key, so the ramp buffer reuses the STA granularity — see DESIGN.md).
	LTALength     int     `json:"lta_length"`  // minutes
	RampIntervals int     `json:"ramp_intervals"` // K: number of ramp intervals
	RampMinAvg    float64 `json:"ramp_min_avg"`   // minimum value the newest ramp interval average must reach

	PercentageData          float64 `json:"percentage_data"`
	TriggerRatio            float64 `json:"trigger_ratio"`
	MinVelocity             float64 `json:"min_velocity"`
	StationVotes            int     `json:"station_votes"`
	MinimumMinBetweenEvents int     `json:"minimum_min_between_events"`

	ResponseFilename string `json:"response_filename"`
	MetadataFilename string `json:"metadata_filename"`
}

// AlertConfig is alert_config.json (§4.2): mutes and the alarm cap.
type AlertConfig struct {
	MuteStations  []string       `json:"mute_stations"`
	MuteFilters   []model.Filter `json:"mute_filters"`
	SilenceAudio  bool           `json:"silence_audio"`
	MaxAudioPerHr int            `json:"max_audio_per_hr"`
	AlertOn       bool           `json:"alert_on"`
}

// Validate enforces the invariants configuration must hold before the
// pipeline can safely run. §9's Open Question on sta_length=1 degeneracy is
// resolved here: reject degenerate window lengths outright rather than
// special-case the guard-gap math.
func (c DomainConfig) Validate() error {
	if c.STALength < 1 {
		return fmt.Errorf("sta_length must be >= 1, got %d", c.STALength)
	}
	if c.LTALength < 1 {
		return fmt.Errorf("lta_length must be >= 1, got %d", c.LTALength)
	}
	if c.RampIntervals < 1 {
		return fmt.Errorf("ramp_intervals (K) must be >= 1, got %d", c.RampIntervals)
	}
	if c.PercentageData < 0 || c.PercentageData > 1 {
		return fmt.Errorf("percentage_data must be in [0,1], got %v", c.PercentageData)
	}
	if c.StationVotes < 1 {
		return fmt.Errorf("station_votes must be >= 1, got %d", c.StationVotes)
	}
	if c.MinimumMinBetweenEvents < 0 {
		return fmt.Errorf("minimum_min_between_events must be >= 0, got %d", c.MinimumMinBetweenEvents)
	}
	for _, f := range c.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Store composes the domain config and alert config, each independently
// mtime-keyed per §4.2's reload() contract.
type Store struct {
	domain *fileStore[DomainConfig]
	alert  *fileStore[AlertConfig]
}

// NewStore performs the initial load of both files. Either failing is
// fatal, per §4.2 ("read errors on initial load are fatal").
func NewStore(domainPath, alertPath string, log zerolog.Logger) (*Store, error) {
	domain, err := newFileStore[DomainConfig](domainPath, log)
	if err != nil {
		return nil, err
	}
	if err := domain.Get().Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain configuration: %w", err)
	}
	alert, err := newFileStore[AlertConfig](alertPath, log)
	if err != nil {
		return nil, err
	}
	return &Store{domain: domain, alert: alert}, nil
}

// Reload re-checks both files' mtimes and re-reads whichever changed. This
// is the scheduler-driven mechanism §4.1/§4.2 require to run every tick.
func (s *Store) Reload() {
	s.domain.Reload()
	s.alert.Reload()
}

// Domain returns the current domain configuration snapshot.
func (s *Store) Domain() *DomainConfig {
	return s.domain.Get()
}

// Alert returns the current alert configuration snapshot.
func (s *Store) Alert() *AlertConfig {
	return s.alert.Get()
}
