package app

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagConfig       = "config"
	flagLogLevel     = "log-level"
	flagDataDir      = "data-dir"
	flagBatchSize    = "batch-size"
	flagAircraftType = "aircraft-type"
	flagAircraftID   = "aircraft-id"
	flagAirports     = "airports"
	flagChannel      = "channel"
	flagTakeoffSpeed = "takeoff-speed"
	flagRequireEnds  = "require-ends"
)

// flagValues holds the flags that override configuration settings.
type flagValues struct {
	configPath   string
	logLevel     string
	dataDir      string
	batchSize    int
	aircraftType string
	aircraftID   string
	airports     string
	channels     []string
	takeoffSpeed float64
	requireEnds  bool
}

func (f *flagValues) apply(cfg *Config, changed map[string]bool) {
	if changed[flagLogLevel] {
		cfg.Settings.LogLevel = f.logLevel
	}
	if changed[flagDataDir] {
		cfg.Storage.DataDirectory = f.dataDir
	}
	if changed[flagBatchSize] {
		cfg.Storage.BatchSize = f.batchSize
	}
	if changed[flagAircraftType] {
		cfg.Aircraft.AircraftType = f.aircraftType
	}
	if changed[flagAircraftID] {
		cfg.Aircraft.AircraftID = f.aircraftID
	}
	if changed[flagAirports] {
		cfg.Airports.File = f.airports
	}
	if changed[flagChannel] {
		cfg.Navigation.Channels = f.channels
	}
	if changed[flagTakeoffSpeed] {
		cfg.Navigation.TakeoffSpeed = f.takeoffSpeed
	}
	if changed[flagRequireEnds] {
		cfg.Navigation.RequireEnds = f.requireEnds
	}
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// NewRootCommand builds the command tree. Command output goes to out and logs
// to logOut.
func NewRootCommand(out, logOut io.Writer) *cobra.Command {
	var flags flagValues
	a := &App{Out: out}

	root := &cobra.Command{
		Use:           "firefly",
		Short:         "Convert IRIG 106 Chapter 10 flight recordings into queryable stores",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Configuration precedence: defaults, file, environment, flags.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			cfg, err := loadConfig(&flags, changed)
			if err != nil {
				return err
			}

			logger, err := NewLogger(logOut, cfg.Settings.LogLevel)
			if err != nil {
				return err
			}
			a.Config = cfg
			a.Logger = logger
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, flagConfig, "c", "", "Path to the configuration file")
	pf.StringVar(&flags.logLevel, flagLogLevel, "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.dataDir, flagDataDir, defaultDataDirectory, "Directory where stores are created")

	root.AddCommand(
		newTranscodeCommand(a, &flags),
		newDeriveCommand(a, &flags),
		newConvertCommand(a, &flags),
		newSegmentsCommand(a),
		newSummaryCommand(a),
		newInfoCommand(a),
		newVerifyCommand(a),
		newDumpCommand(a),
	)
	return root
}

func loadConfig(flags *flagValues, changed map[string]bool) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if flags.configPath != "" {
		fc, err := LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *fc
	}

	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return nil, err
	}
	flags.apply(&cfg, changed)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func addTranscodeFlags(cmd *cobra.Command, flags *flagValues) {
	f := cmd.Flags()
	f.StringVar(&flags.aircraftType, flagAircraftType, "", "Aircraft type, for example F-16")
	f.StringVar(&flags.aircraftID, flagAircraftID, "", "Aircraft tail number")
	f.IntVar(&flags.batchSize, flagBatchSize, defaultBatchSize, "Rows written per storage transaction")
}

func addDeriveFlags(cmd *cobra.Command, flags *flagValues) {
	f := cmd.Flags()
	f.StringVar(&flags.airports, flagAirports, "", "Airports CSV file used to name takeoff and landing locations")
	f.StringSliceVar(&flags.channels, flagChannel, nil, "Navigation channel path, repeatable")
	f.Float64Var(&flags.takeoffSpeed, flagTakeoffSpeed, 0, "Speed in knots above which the aircraft is airborne")
	f.BoolVar(&flags.requireEnds, flagRequireEnds, false, "Fail when takeoff and landing airports cannot be resolved")
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
