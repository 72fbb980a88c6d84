package app

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roman-kulish/firefly/internal/derive"
	"github.com/roman-kulish/firefly/internal/geo"
)

const testConfig = `
settings:
  logLevel: debug
storage:
  dataDirectory: /var/lib/firefly
aircraft:
  type: F-16
  id: 87-0001
navigation:
  channels:
    - 1553/Ch_11/RT_6/SA_29/T/BC
  takeoffSpeed: 80
  requireEnds: true
airports:
  file: airports.csv
`

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firefly.yaml")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Settings.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.Settings.LogLevel)
	}
	if cfg.Storage.DataDirectory != "/var/lib/firefly" {
		t.Errorf("DataDirectory = %q", cfg.Storage.DataDirectory)
	}
	if cfg.Storage.BatchSize != defaultBatchSize {
		t.Errorf("BatchSize = %d, want default %d", cfg.Storage.BatchSize, defaultBatchSize)
	}
	if cfg.Aircraft.AircraftType != "F-16" || cfg.Aircraft.AircraftID != "87-0001" {
		t.Errorf("Aircraft = %+v", cfg.Aircraft)
	}
	if !slices.Equal(cfg.Navigation.Channels, []string{"1553/Ch_11/RT_6/SA_29/T/BC"}) {
		t.Errorf("Channels = %v", cfg.Navigation.Channels)
	}
	if cfg.Navigation.TakeoffSpeed != 80 {
		t.Errorf("TakeoffSpeed = %v", cfg.Navigation.TakeoffSpeed)
	}
	if !cfg.Navigation.RequireEnds {
		t.Error("RequireEnds not set")
	}
	if cfg.Airports.File != "airports.csv" {
		t.Errorf("Airports = %q", cfg.Airports.File)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: expected an error")
	}
	if _, err := LoadConfig(writeConfig(t, "settings: [")); err == nil {
		t.Error("malformed file: expected an error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Storage.DataDirectory != defaultDataDirectory || cfg.Storage.BatchSize != defaultBatchSize {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if !slices.Equal(cfg.Navigation.Channels, derive.DefaultChannels) {
		t.Errorf("Channels = %v", cfg.Navigation.Channels)
	}
	if cfg.Navigation.TakeoffSpeed != geo.DefaultTakeoffSpeed {
		t.Errorf("TakeoffSpeed = %v", cfg.Navigation.TakeoffSpeed)
	}

	bad := DefaultConfig()
	bad.Settings.LogLevel = "verbose"
	if err := bad.Validate(); err == nil {
		t.Error("invalid log level: expected an error")
	}

	bad = DefaultConfig()
	bad.Navigation.TakeoffSpeed = -1
	if err := bad.Validate(); err == nil {
		t.Error("negative takeoff speed: expected an error")
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("FIREFLY_LOG_LEVEL", "warn")
	t.Setenv("FIREFLY_DATA_DIR", "/tmp/stores")
	t.Setenv("FIREFLY_BATCH_SIZE", "250")
	t.Setenv("FIREFLY_AIRCRAFT_ID", "91-0402")
	t.Setenv("FIREFLY_NAV_CHANNELS", "a/b, c/d ,")
	t.Setenv("FIREFLY_TAKEOFF_SPEED", "65.5")

	cfg := DefaultConfig()
	cfg.Aircraft.AircraftID = "from-file"
	if err := ApplyEnvConfig(&cfg, map[string]bool{flagDataDir: true}); err != nil {
		t.Fatalf("ApplyEnvConfig: %v", err)
	}

	if cfg.Settings.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.Settings.LogLevel)
	}
	if cfg.Storage.DataDirectory != defaultDataDirectory {
		t.Errorf("DataDirectory = %q, a set flag must win over the environment", cfg.Storage.DataDirectory)
	}
	if cfg.Storage.BatchSize != 250 {
		t.Errorf("BatchSize = %d", cfg.Storage.BatchSize)
	}
	if cfg.Aircraft.AircraftID != "91-0402" {
		t.Errorf("AircraftID = %q", cfg.Aircraft.AircraftID)
	}
	if !slices.Equal(cfg.Navigation.Channels, []string{"a/b", "c/d"}) {
		t.Errorf("Channels = %q", cfg.Navigation.Channels)
	}
	if cfg.Navigation.TakeoffSpeed != 65.5 {
		t.Errorf("TakeoffSpeed = %v", cfg.Navigation.TakeoffSpeed)
	}
}

func TestApplyEnvConfigInvalidNumber(t *testing.T) {
	t.Setenv("FIREFLY_BATCH_SIZE", "many")

	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, nil); err == nil {
		t.Error("expected an error")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	t.Setenv("FIREFLY_AIRCRAFT_TYPE", "F-15")
	t.Setenv("FIREFLY_AIRCRAFT_ID", "env-id")

	flags := &flagValues{
		configPath: writeConfig(t, testConfig),
		aircraftID: "flag-id",
		batchSize:  42,
	}
	cfg, err := loadConfig(flags, map[string]bool{flagAircraftID: true, flagBatchSize: true})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Aircraft.AircraftType != "F-15" {
		t.Errorf("AircraftType = %q, the environment must win over the file", cfg.Aircraft.AircraftType)
	}
	if cfg.Aircraft.AircraftID != "flag-id" {
		t.Errorf("AircraftID = %q, a set flag must win", cfg.Aircraft.AircraftID)
	}
	if cfg.Storage.BatchSize != 42 {
		t.Errorf("BatchSize = %d", cfg.Storage.BatchSize)
	}
	if cfg.Settings.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want the file value", cfg.Settings.LogLevel)
	}
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = "/data"

	for name, want := range map[string]string{
		"sortie_12.ch10":        "/data/sortie_12.db",
		"/rec/sortie_12.ch10":   "/data/sortie_12.db",
		"sortie":                "/data/sortie.db",
		"2024.05.01.flight.c10": "/data/2024.05.01.flight.db",
	} {
		if got := cfg.StorePath(name); got != want {
			t.Errorf("StorePath(%q) = %q, want %q", name, got, want)
		}
	}
}
