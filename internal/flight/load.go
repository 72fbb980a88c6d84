package flight

import (
	"context"
	"errors"
	"fmt"

	"github.com/roman-kulish/firefly/internal/storage"
)

// ErrNoSamples is returned when a store holds no derived navigation samples.
var ErrNoSamples = errors.New("no navigation samples, derive the recording first")

// Load reads the flight metadata and the derived navigation samples of a
// store. Options restrict the samples to a time range.
func Load(ctx context.Context, store storage.Store, opts ...storage.ReaderOption) (*Segment, error) {
	attrs, err := store.Attributes(ctx, storage.RootGroup)
	if err != nil {
		return nil, fmt.Errorf("reading file attributes: %w", err)
	}
	tmats, err := store.Attributes(ctx, storage.TMATSGroup)
	if err != nil {
		return nil, fmt.Errorf("reading TMATS attributes: %w", err)
	}

	r, err := store.ReadSamples(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	samples, err := storage.ReadAll(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	meta := Metadata{
		File:            attrs[storage.AttrCh10File],
		Checksum:        attrs[storage.AttrCh10FileChecksum],
		FileID:          attrs[storage.AttrFileID],
		AircraftType:    attrs[storage.AttrAircraftType],
		AircraftID:      attrs[storage.AttrAircraftID],
		TakeoffLocation: attrs[storage.AttrTakeoffLocation],
		LandingLocation: attrs[storage.AttrLandingLocation],
		Attributes:      attrs,
		TMATS:           tmats,
	}
	return NewSegment(meta, samples), nil
}
