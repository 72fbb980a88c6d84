// Package derive converts the stored navigation bus traffic of a recording
// into the derived aircraft navigation table.
package derive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/roman-kulish/firefly/internal/geo"
	"github.com/roman-kulish/firefly/internal/ins"
	"github.com/roman-kulish/firefly/internal/storage"
	"github.com/roman-kulish/firefly/internal/telemetry"
)

// DefaultChannels are the channels the navigation system transmits its
// record on: to the bus controller and directly to the mission computer.
var DefaultChannels = []string{
	"1553/Ch_11/RT_6/SA_29/T/BC",
	"1553/Ch_11/RT_6/SA_29/T/RT_27/SA_26",
}

// ErrNoNavigationData is returned when none of the configured channels holds
// any message.
var ErrNoNavigationData = errors.New("no navigation messages found")

// Config selects the navigation channels and the takeoff detection.
type Config struct {
	// Channels are dataset or link paths, with or without the raw data group
	// prefix. Paths resolving to the same dataset are read once.
	Channels []string

	// TakeoffSpeed is the speed in knots above which the aircraft is airborne.
	TakeoffSpeed float64

	// Airports is used to name the takeoff and landing locations. Locations
	// are not resolved when it is empty.
	Airports geo.AirportTable
}

// Result describes a completed derivation.
type Result struct {
	Samples int
	Summary telemetry.Summary
	Ends    *geo.FlightEnds // nil when not resolved

	// EndsError tells why Ends is nil although airports were given. It
	// wraps geo.ErrNoTakeoff when the aircraft never reached the takeoff
	// speed. The samples and summary are stored regardless.
	EndsError error
}

// Option configures Run.
type Option func(*deriver)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *deriver) {
		d.logger = logger
	}
}

type deriver struct {
	logger zerolog.Logger
	now    func() time.Time
}

// Run reads the navigation messages of every configured channel, decodes them
// into samples ordered by time and replaces the derived navigation table. The
// extremes of the flight parameters and the takeoff and landing airports are
// stored as root attributes.
func Run(ctx context.Context, store storage.Store, cfg Config, opts ...Option) (*Result, error) {
	d := &deriver{logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.TakeoffSpeed <= 0 {
		cfg.TakeoffSpeed = geo.DefaultTakeoffSpeed
	}

	records, err := d.readRecords(ctx, store, cfg.Channels)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoNavigationData
	}

	samples, err := ins.Derive(records)
	if err != nil {
		return nil, fmt.Errorf("deriving navigation samples: %w", err)
	}
	if err = store.CreateGroup(ctx, storage.DerivedGroup); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	if err = store.StoreSamples(ctx, samples); err != nil {
		return nil, fmt.Errorf("storing navigation samples: %w", err)
	}
	d.logger.Info().Int("samples", len(samples)).Str("table", storage.SamplesPath).Msg("navigation samples stored")

	result := &Result{Samples: len(samples)}
	summary, _ := telemetry.Summarize(samples)
	result.Summary = summary

	attrs := make(map[string]any)
	for name, v := range summary.Attributes() {
		attrs[name] = v
	}

	if len(cfg.Airports) > 0 {
		ends, err := resolve(samples, cfg.Airports, cfg.TakeoffSpeed)
		switch {
		case errors.Is(err, geo.ErrNoTakeoff):
			result.EndsError = fmt.Errorf("resolving flight ends above %g kt: %w", cfg.TakeoffSpeed, err)
			d.logger.Debug().Err(err).Msg("flight ends not resolved")
		case err != nil:
			return nil, fmt.Errorf("resolving flight ends: %w", err)
		default:
			result.Ends = &ends
			attrs[storage.AttrTakeoffLocation] = ends.Takeoff.Airport.String()
			attrs[storage.AttrLandingLocation] = ends.Landing.Airport.String()
			d.logger.Info().
				Stringer("takeoff", ends.Takeoff.Airport).
				Stringer("landing", ends.Landing.Airport).
				Msg("flight ends resolved")
		}
	}

	now := d.now().UTC().Format(storage.AttributeTimeLayout)
	attrs[storage.AttrDateModified] = now
	attrs[storage.AttrDateMetadataModified] = now

	if err = store.SetAttributes(ctx, storage.RootGroup, attrs); err != nil {
		return nil, fmt.Errorf("storing summary attributes: %w", err)
	}
	return result, nil
}

func (d *deriver) readRecords(ctx context.Context, store storage.Store, channels []string) ([]ins.Record, error) {
	var records []ins.Record
	seen := make(map[int64]bool)

	for _, path := range channels {
		if !strings.HasPrefix(path, storage.RawGroup+"/") {
			path = storage.RawGroup + "/" + path
		}

		ds, err := store.Dataset(ctx, path)
		if errors.Is(err, storage.ErrNotFound) {
			d.logger.Warn().Str("channel", path).Msg("navigation channel not recorded")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", path, err)
		}
		if seen[ds.ID] {
			d.logger.Debug().Str("channel", path).Str("dataset", ds.Path).Msg("channel already read")
			continue
		}
		seen[ds.ID] = true

		r, err := store.ReadMessages(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		rows, err := storage.ReadAll(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, row := range rows {
			records = append(records, ins.Record{
				Channel:  ds.Path,
				Time:     row.Time,
				MsgError: row.MsgError,
				Words:    row.Messages,
			})
		}
		d.logger.Debug().Str("channel", path).Int("messages", len(rows)).Msg("navigation channel read")
	}
	return records, nil
}

func resolve(samples []telemetry.Sample, airports geo.AirportTable, threshold float64) (geo.FlightEnds, error) {
	speed := make([]float64, len(samples))
	lat := make([]float64, len(samples))
	lon := make([]float64, len(samples))
	for i, s := range samples {
		speed[i], lat[i], lon[i] = s.Speed, s.Latitude, s.Longitude
	}
	return geo.ResolveFlightEnds(speed, lat, lon, airports, threshold)
}
