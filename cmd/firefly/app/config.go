package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/firefly/internal/derive"
	"github.com/roman-kulish/firefly/internal/geo"
	"github.com/roman-kulish/firefly/internal/transcode"
)

const (
	defaultDataDirectory = "data"
	defaultBatchSize     = 1000
	envPrefix            = "FIREFLY_"
)

// Config represents the main application configuration
type Config struct {
	Settings   Settings           `yaml:"settings"`
	Storage    StorageConfig      `yaml:"storage"`
	Aircraft   transcode.Metadata `yaml:"aircraft"`
	Navigation NavigationConfig   `yaml:"navigation"`
	Airports   AirportsConfig     `yaml:"airports"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	BatchSize     int    `yaml:"batchSize"`
}

// NavigationConfig selects the channels carrying the navigation record
type NavigationConfig struct {
	Channels     []string `yaml:"channels"`
	TakeoffSpeed float64  `yaml:"takeoffSpeed"`

	// RequireEnds fails the derivation when takeoff and landing cannot be
	// resolved against the airports table.
	RequireEnds bool `yaml:"requireEnds"`
}

// AirportsConfig points at the reference airport table
type AirportsConfig struct {
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Settings: Settings{LogLevel: "info"},
		Storage: StorageConfig{
			DataDirectory: defaultDataDirectory,
			BatchSize:     defaultBatchSize,
		},
		Navigation: NavigationConfig{
			Channels:     append([]string(nil), derive.DefaultChannels...),
			TakeoffSpeed: geo.DefaultTakeoffSpeed,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &config, nil
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Settings.LogLevel); err != nil {
		return err
	}
	if c.Storage.DataDirectory == "" {
		c.Storage.DataDirectory = defaultDataDirectory
	}
	if c.Storage.BatchSize <= 0 {
		c.Storage.BatchSize = defaultBatchSize
	}
	if len(c.Navigation.Channels) == 0 {
		c.Navigation.Channels = append([]string(nil), derive.DefaultChannels...)
	}
	if c.Navigation.TakeoffSpeed < 0 {
		return errors.New("takeoff speed must not be negative")
	}
	if c.Navigation.TakeoffSpeed == 0 {
		c.Navigation.TakeoffSpeed = geo.DefaultTakeoffSpeed
	}
	return nil
}

// StorePath returns the store location for a recording name.
func (c *Config) StorePath(recording string) string {
	base := filepath.Base(recording)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.Storage.DataDirectory, base+".db")
}

// configSetter applies configuration values unless the corresponding flag has
// been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setList(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var list []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	*dst = list
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = f
	return nil
}

// ApplyEnvConfig applies configuration from environment variables (FIREFLY_*).
// Flags that have been explicitly set take precedence.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := &configSetter{changed: changed}

	s.setString(flagLogLevel, os.Getenv(envPrefix+"LOG_LEVEL"), &cfg.Settings.LogLevel)
	s.setString(flagDataDir, os.Getenv(envPrefix+"DATA_DIR"), &cfg.Storage.DataDirectory)
	s.setString(flagAircraftType, os.Getenv(envPrefix+"AIRCRAFT_TYPE"), &cfg.Aircraft.AircraftType)
	s.setString(flagAircraftID, os.Getenv(envPrefix+"AIRCRAFT_ID"), &cfg.Aircraft.AircraftID)
	s.setString(flagAirports, os.Getenv(envPrefix+"AIRPORTS"), &cfg.Airports.File)
	s.setList(flagChannel, os.Getenv(envPrefix+"NAV_CHANNELS"), &cfg.Navigation.Channels)

	if err := s.setIntFromString(flagBatchSize, os.Getenv(envPrefix+"BATCH_SIZE"), &cfg.Storage.BatchSize); err != nil {
		return err
	}
	if err := s.setFloatFromString(flagTakeoffSpeed, os.Getenv(envPrefix+"TAKEOFF_SPEED"), &cfg.Navigation.TakeoffSpeed); err != nil {
		return err
	}
	return nil
}
