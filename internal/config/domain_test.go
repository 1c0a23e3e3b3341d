package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func validDomainConfig() DomainConfig {
	return DomainConfig{
		Network:                 "XX",
		STALength:               1,
		LTALength:               10,
		RampIntervals:           3,
		RampMinAvg:              0.1,
		PercentageData:          0.5,
		TriggerRatio:            3.0,
		MinVelocity:             0.01,
		StationVotes:            3,
		MinimumMinBetweenEvents: 10,
	}
}

func TestStore_InitialLoad(t *testing.T) {
	dir := t.TempDir()
	domainPath := filepath.Join(dir, "config.json")
	alertPath := filepath.Join(dir, "alert_config.json")
	writeJSON(t, domainPath, validDomainConfig())
	writeJSON(t, alertPath, AlertConfig{MaxAudioPerHr: 2, AlertOn: true})

	s, err := NewStore(domainPath, alertPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if s.Domain().Network != "XX" {
		t.Errorf("Network = %q, want XX", s.Domain().Network)
	}
	if !s.Alert().AlertOn {
		t.Error("AlertOn = false, want true")
	}
}

func TestStore_InitialLoad_InvalidIsFatal(t *testing.T) {
	dir := t.TempDir()
	domainPath := filepath.Join(dir, "config.json")
	alertPath := filepath.Join(dir, "alert_config.json")
	bad := validDomainConfig()
	bad.STALength = 0
	writeJSON(t, domainPath, bad)
	writeJSON(t, alertPath, AlertConfig{})

	if _, err := NewStore(domainPath, alertPath, zerolog.Nop()); err == nil {
		t.Fatal("expected error for invalid sta_length, got nil")
	}
}

func TestStore_InitialLoad_MissingFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewStore(filepath.Join(dir, "nope.json"), filepath.Join(dir, "nope2.json"), zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestStore_Reload_OnlyWhenMtimeChanges(t *testing.T) {
	dir := t.TempDir()
	domainPath := filepath.Join(dir, "config.json")
	alertPath := filepath.Join(dir, "alert_config.json")
	cfg := validDomainConfig()
	cfg.StationVotes = 3
	writeJSON(t, domainPath, cfg)
	writeJSON(t, alertPath, AlertConfig{})

	s, err := NewStore(domainPath, alertPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// Reload with no file change is a no-op.
	before := s.Domain()
	s.Reload()
	after := s.Domain()
	if before != after {
		t.Error("Reload without an mtime change replaced the snapshot pointer")
	}

	// Touch the file forward in time and change content; reload should pick it up.
	cfg.StationVotes = 5
	writeJSON(t, domainPath, cfg)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(domainPath, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	s.Reload()
	if s.Domain().StationVotes != 5 {
		t.Errorf("StationVotes = %d, want 5 after reload", s.Domain().StationVotes)
	}
}

func TestStore_Reload_ParseErrorKeepsPreviousView(t *testing.T) {
	dir := t.TempDir()
	domainPath := filepath.Join(dir, "config.json")
	alertPath := filepath.Join(dir, "alert_config.json")
	cfg := validDomainConfig()
	writeJSON(t, domainPath, cfg)
	writeJSON(t, alertPath, AlertConfig{})

	s, err := NewStore(domainPath, alertPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	future := time.Now().Add(2 * time.Second)
	if err := os.WriteFile(domainPath, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	os.Chtimes(domainPath, future, future)

	s.Reload()
	if s.Domain().StationVotes != cfg.StationVotes {
		t.Errorf("corrupt reload mutated the view: StationVotes = %d, want %d", s.Domain().StationVotes, cfg.StationVotes)
	}
}

func TestDomainConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*DomainConfig)
		wantErr bool
	}{
		{"valid", func(c *DomainConfig) {}, false},
		{"sta_length zero", func(c *DomainConfig) { c.STALength = 0 }, true},
		{"lta_length negative", func(c *DomainConfig) { c.LTALength = -1 }, true},
		{"ramp_intervals zero", func(c *DomainConfig) { c.RampIntervals = 0 }, true},
		{"percentage_data out of range", func(c *DomainConfig) { c.PercentageData = 1.5 }, true},
		{"station_votes zero", func(c *DomainConfig) { c.StationVotes = 0 }, true},
		{"negative merge window", func(c *DomainConfig) { c.MinimumMinBetweenEvents = -1 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validDomainConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
