package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

// Row is a constraint for the row types a reader can return.
type Row interface {
	MessageRow | telemetry.Sample
}

// Reader provides an iterator-based interface for reading rows in index
// order with optional time filtering.
type Reader[T Row] interface {
	// Next advances the iterator and returns true if there is another row
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current row.
	// If called after Next() returns false, the behavior is undefined.
	Current() *T

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures the time filter of a reader.
type ReaderOption func(*readerFilter)

type readerFilter struct {
	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
}

// WithStartTime excludes rows with times before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(f *readerFilter) {
		f.startTime = &t
	}
}

// WithEndTime excludes rows with times after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(f *readerFilter) {
		f.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both WithStartTime
// and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(f *readerFilter) {
		f.startTime = &startTime
		f.endTime = &endTime
	}
}

func (f *readerFilter) bounds() (int64, int64, error) {
	start, end := int64(math.MinInt64), int64(math.MaxInt64)
	if f.startTime != nil {
		start = f.startTime.UnixNano()
	}
	if f.endTime != nil {
		end = f.endTime.UnixNano()
	}
	if start > end {
		return 0, 0, fmt.Errorf("start time %s is after end time %s", f.startTime, f.endTime)
	}
	return start, end, nil
}

// SqliteReader implements Reader for the SQLite backend.
type SqliteReader[T Row] struct {
	rows    *sql.Rows
	current T
	err     error
}

func newSqliteReader[T Row](ctx context.Context, db *sql.DB, query string, args []any, opts ...ReaderOption) (r *SqliteReader[T], err error) {
	if db == nil {
		return nil, errors.New("database connection required")
	}

	var f readerFilter
	for _, opt := range opts {
		opt(&f)
	}
	start, end, err := f.bounds()
	if err != nil {
		return nil, fmt.Errorf("initializing filters: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	rows, err := stmt.QueryContext(ctx, append(args, start, end)...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	return &SqliteReader[T]{rows: rows}, nil
}

func (r *SqliteReader[T]) scan() error {
	switch v := any(&r.current).(type) {
	case *MessageRow:
		var d messageData
		err := r.rows.Scan(
			&d.Time,
			&d.Timestamp,
			&d.MsgError,
			&d.TTB,
			&d.WordError,
			&d.SyncError,
			&d.WordCountError,
			&d.RespTimeout,
			&d.FormatError,
			&d.BusID,
			&d.PacketVersion,
			&d.Messages,
		)
		if err != nil {
			return fmt.Errorf("scanning message: %w", err)
		}
		if *v, err = fromMessageData(&d); err != nil {
			return fmt.Errorf("decoding message: %w", err)
		}

	case *telemetry.Sample:
		var d sampleData
		err := r.rows.Scan(
			&d.Time,
			&d.Latitude,
			&d.Longitude,
			&d.Altitude,
			&d.Speed,
			&d.Heading,
			&d.Roll,
			&d.Pitch,
			&d.GForce,
		)
		if err != nil {
			return fmt.Errorf("scanning sample: %w", err)
		}
		*v = fromSampleData(&d)
	}
	return nil
}

func (r *SqliteReader[T]) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		return false
	}
	if r.err = r.scan(); r.err != nil {
		return false
	}
	return true
}

func (r *SqliteReader[T]) Current() *T {
	return &r.current
}

func (r *SqliteReader[T]) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqliteReader[T]) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.rows = nil
		return err
	}
	return nil
}

// ReadAll drains a reader into a slice and closes it.
func ReadAll[T Row](ctx context.Context, r Reader[T]) (rows []T, err error) {
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		rows = append(rows, *r.Current())
	}
	if err = r.Error(); err != nil {
		return nil, err
	}
	return rows, nil
}
