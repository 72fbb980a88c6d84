package transcode

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/firefly/internal/ch10"
	"github.com/roman-kulish/firefly/internal/channel"
	"github.com/roman-kulish/firefly/internal/checksum"
	"github.com/roman-kulish/firefly/internal/storage"
)

// ErrNoAircraft is returned when neither the aircraft type nor its tail or
// serial number is given.
var ErrNoAircraft = errors.New("aircraft type or tail/serial number not given")

// Metadata identifies the aircraft a recording was captured on.
type Metadata struct {
	AircraftType string `yaml:"type"`
	AircraftID   string `yaml:"id"`
}

// Validate checks that the aircraft is identified.
func (m Metadata) Validate() error {
	if m.AircraftType == "" && m.AircraftID == "" {
		return ErrNoAircraft
	}
	return nil
}

// pather is implemented by sources backed by a file on disk.
type pather interface {
	Path() string
}

// Transcode runs both passes over src, storing the recording in store, and
// then records the file level metadata on the root group. When src is backed
// by a file its SHA-256 digest is stored as well.
func Transcode(ctx context.Context, src ch10.Source, store storage.Store, meta Metadata, opts ...Option) (*Result, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	logger := o.logger.With().Str("recording", src.Name()).Logger()

	logger.Info().Msg("collecting channel information")
	schema, err := channel.Build(ctx, src, channel.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("building channel schema: %w", err)
	}
	messages, frames := schema.Total()
	logger.Info().Int("channels", schema.Len()).Int("messages", messages).Int("frames", frames).Msg("channel schema built")

	result, err := Fill(ctx, src, schema, store, append(slices.Clip(opts), WithLogger(logger))...)
	if err != nil {
		return nil, fmt.Errorf("filling store: %w", err)
	}

	attrs := map[string]any{
		storage.AttrCh10File:     src.Name(),
		storage.AttrAircraftType: meta.AircraftType,
		storage.AttrAircraftID:   meta.AircraftID,
		storage.AttrFileID:       uuid.NewString(),
	}

	if p, ok := src.(pather); ok {
		sum, err := checksum.File(p.Path())
		if err != nil {
			return nil, fmt.Errorf("computing checksum: %w", err)
		}
		attrs[storage.AttrCh10FileChecksum] = sum
	}

	if !result.Start.IsZero() {
		attrs[storage.AttrTimeCoverageStart] = result.Start.UTC().Format(storage.AttributeTimeLayout)
		attrs[storage.AttrTimeCoverageEnd] = result.End.UTC().Format(storage.AttributeTimeLayout)
	}

	now := o.now().UTC().Format(storage.AttributeTimeLayout)
	attrs[storage.AttrDateCreated] = now
	attrs[storage.AttrDateModified] = now
	attrs[storage.AttrDateMetadataModified] = now

	if err = store.SetAttributes(ctx, storage.RootGroup, attrs); err != nil {
		return nil, fmt.Errorf("storing file attributes: %w", err)
	}

	logger.Info().
		Time("start", result.Start).
		Time("end", result.End).
		Dur("coverage", result.End.Sub(result.Start).Round(time.Millisecond)).
		Msg("recording transcoded")

	return result, nil
}
