package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"

	"github.com/roman-kulish/firefly/internal/ch10"
	"github.com/roman-kulish/firefly/internal/derive"
	"github.com/roman-kulish/firefly/internal/flight"
	"github.com/roman-kulish/firefly/internal/geo"
	"github.com/roman-kulish/firefly/internal/storage"
	"github.com/roman-kulish/firefly/internal/transcode"
)

// App holds what every command needs.
type App struct {
	Config *Config
	Logger zerolog.Logger
	Out    io.Writer
}

// Transcode converts a recording dump into a new store and returns the store
// path. An existing store at that path is replaced.
func (a *App) Transcode(ctx context.Context, recording, storePath string) (string, *transcode.Result, error) {
	src := ch10.NewDumpSource(recording)
	if storePath == "" {
		storePath = a.Config.StorePath(src.Name())
	}
	if err := prepareStore(storePath); err != nil {
		return "", nil, err
	}

	store := storage.NewSqliteStore(storePath)
	result, err := transcode.Transcode(ctx, src, store, a.Config.Aircraft,
		transcode.WithLogger(a.Logger),
		transcode.WithBatchSize(a.Config.Storage.BatchSize))
	if err = errors.Join(err, store.Close()); err != nil {
		return "", nil, fmt.Errorf("transcoding %s: %w", recording, err)
	}

	a.Logger.Info().
		Str("store", storePath).
		Int("packets", result.Packets).
		Int("messages", result.Messages).
		Int("frames", result.Frames).
		Int("datasets", result.Datasets).
		Int("links", result.Links).
		Msg("transcoded")
	return storePath, result, nil
}

// Derive builds the navigation samples of an existing store.
func (a *App) Derive(ctx context.Context, storePath string) (*derive.Result, error) {
	if !fileExists(storePath) {
		return nil, fmt.Errorf("store %s not found", storePath)
	}

	cfg := derive.Config{
		Channels:     a.Config.Navigation.Channels,
		TakeoffSpeed: a.Config.Navigation.TakeoffSpeed,
	}
	if a.Config.Airports.File != "" {
		airports, err := geo.LoadAirports(a.Config.Airports.File)
		if err != nil {
			return nil, err
		}
		cfg.Airports = airports
	} else {
		a.Logger.Warn().Msg("no airports file configured, flight ends are not resolved")
	}

	store := storage.NewSqliteStore(storePath)
	result, err := derive.Run(ctx, store, cfg, derive.WithLogger(a.Logger))
	if err = errors.Join(err, store.Close()); err != nil {
		return nil, fmt.Errorf("deriving %s: %w", storePath, err)
	}

	a.Logger.Info().
		Str("store", storePath).
		Int("samples", result.Samples).
		Msg("derived")

	if result.EndsError != nil {
		if a.Config.Navigation.RequireEnds {
			return nil, fmt.Errorf("deriving %s: %w", storePath, result.EndsError)
		}
		a.Logger.Warn().Err(result.EndsError).Msg("takeoff and landing locations not resolved")
	}
	return result, nil
}

// Segments loads the flight of a store and partitions it by condition. An
// empty condition yields the whole flight.
func (a *App) Segments(ctx context.Context, storePath, condition string, opts ...storage.ReaderOption) (segments []*flight.Segment, err error) {
	if !fileExists(storePath) {
		return nil, fmt.Errorf("store %s not found", storePath)
	}

	var pred flight.Predicate
	if condition != "" {
		if pred, err = flight.ParseCondition(condition); err != nil {
			return nil, err
		}
	}

	store := storage.NewSqliteStore(storePath)
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	whole, err := flight.Load(ctx, store, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", storePath, err)
	}
	if pred == nil {
		return []*flight.Segment{whole}, nil
	}
	return flight.Partition(whole, pred), nil
}

// RawMessages reads the 1553 messages at loc within the span of each segment.
func (a *App) RawMessages(ctx context.Context, storePath string, segments []*flight.Segment, loc flight.Location) (out [][]flight.RawMessages, err error) {
	store := storage.NewSqliteStore(storePath)
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	out = make([][]flight.RawMessages, len(segments))
	for i, s := range segments {
		if out[i], err = flight.ReadRawMessages(ctx, store, s, loc); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}
	}
	return out, nil
}

// Dump copies the packets of a recording to out, keeping only the given
// channels when any are given.
func (a *App) Dump(ctx context.Context, recording, out string, channels []uint) (int, error) {
	var keep func(*ch10.Packet) bool
	if len(channels) > 0 {
		keep = func(p *ch10.Packet) bool {
			return slices.Contains(channels, uint(p.ChannelID))
		}
	}

	n, err := ch10.CopyDump(ctx, ch10.NewDumpSource(recording), out, keep)
	if err != nil {
		return 0, fmt.Errorf("dumping %s: %w", recording, err)
	}
	a.Logger.Info().
		Str("recording", recording).
		Str("out", out).
		Int("packets", n).
		Msg("dumped")
	return n, nil
}

// prepareStore makes sure the store directory exists and removes a previous
// store at path.
func prepareStore(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating storage directory '%s': %w", dir, err)
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing previous store: %w", err)
		}
	}
	return nil
}
