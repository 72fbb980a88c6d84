package storage

import (
	"context"
	"errors"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

// Well-known locations in a store.
const (
	RootGroup     = "/"
	RawGroup      = "chapter11_data"
	DerivedGroup  = "derived"
	TMATSGroup    = DerivedGroup + "/TMATS"
	TMATSBlobPath = RawGroup + "/TMATS"
	SamplesPath   = DerivedGroup + "/aircraft_ins"
)

var (
	// ErrNotFound is returned when a dataset, link or blob does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOutOfBounds is returned when a write falls outside a dataset.
	ErrOutOfBounds = errors.New("write outside dataset bounds")

	// ErrKindMismatch is returned when rows of the wrong kind are written to
	// or read from a dataset.
	ErrKindMismatch = errors.New("dataset kind mismatch")
)

// Store is the columnar store of a transcoded recording. It holds raw bus
// datasets, links that alias them, attributes on groups and datasets, and the
// derived navigation table.
type Store interface {
	// CreateGroup records a group path. Creating an existing group is a no-op.
	CreateGroup(ctx context.Context, path string) error

	// CreateDataset allocates a fixed-length dataset.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - path: Unique dataset location
	//   - kind: KindMIL1553 or KindVideo
	//   - length: Exact number of rows the dataset will hold
	//   - description: Optional human-readable description
	//
	// Returns:
	//   - dataset: The created dataset
	//   - error: If the path is taken or creation fails
	CreateDataset(ctx context.Context, path, kind string, length int, description string) (*Dataset, error)

	// CreateLink makes path an alias of an existing dataset. Reads through
	// the alias return the dataset rows; no data is copied.
	CreateLink(ctx context.Context, dataset *Dataset, path string) error

	// Dataset resolves a dataset or link path. Returns ErrNotFound when
	// neither exists.
	Dataset(ctx context.Context, path string) (*Dataset, error)

	// Datasets lists all datasets ordered by path.
	Datasets(ctx context.Context) ([]Dataset, error)

	// Links returns every alias path with the path of the dataset it refers to.
	Links(ctx context.Context) (map[string]string, error)

	// WriteMessages stores rows at indices start, start+1, ... of a 1553
	// dataset in a single transaction. Each index can be written once.
	WriteMessages(ctx context.Context, dataset *Dataset, start int, rows []MessageRow) error

	// WriteFrames stores video frames at indices start, start+1, ... of a
	// video dataset in a single transaction.
	WriteFrames(ctx context.Context, dataset *Dataset, start int, frames [][]byte) error

	// Count returns the number of rows written to a dataset.
	Count(ctx context.Context, dataset *Dataset) (int, error)

	// SetAttributes sets named attributes on a target (group or dataset path).
	// Values may be strings, numbers, booleans or fmt.Stringer. Existing
	// attributes are replaced.
	SetAttributes(ctx context.Context, target string, attrs map[string]any) error

	// Attributes returns the attributes of a target.
	Attributes(ctx context.Context, target string) (map[string]string, error)

	// SetBlob stores an opaque buffer.
	SetBlob(ctx context.Context, path string, data []byte, description string) error

	// Blob returns a stored buffer or ErrNotFound.
	Blob(ctx context.Context, path string) ([]byte, error)

	// ReadMessages iterates over the rows of a 1553 dataset or link in index
	// order.
	ReadMessages(ctx context.Context, path string, opts ...ReaderOption) (Reader[MessageRow], error)

	// ReadFrames returns all frames of a video dataset in index order.
	ReadFrames(ctx context.Context, path string) ([][]byte, error)

	// StoreSamples replaces the derived navigation table.
	StoreSamples(ctx context.Context, samples []telemetry.Sample) error

	// ReadSamples iterates over the derived navigation table in time order.
	ReadSamples(ctx context.Context, opts ...ReaderOption) (Reader[telemetry.Sample], error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}
