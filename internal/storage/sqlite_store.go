package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

// maxRowsPerStatement keeps batch inserts well below the SQLite host
// parameter limit.
const maxRowsPerStatement = 500

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore returns a store backed by the SQLite database at dbPath.
// Connections are opened on first use; the schema is created by the first
// write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

// Path returns the database file path.
func (s *SqliteStore) Path() string {
	return s.dbPath
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateGroup(ctx context.Context, path string) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, insertGroupSQL, path); err != nil {
		return fmt.Errorf("inserting group %s: %w", path, err)
	}
	return nil
}

func (s *SqliteStore) CreateDataset(ctx context.Context, path, kind string, length int, description string) (dataset *Dataset, err error) {
	if kind != KindMIL1553 && kind != KindVideo {
		return nil, fmt.Errorf("creating dataset %s: %w: %q", path, ErrKindMismatch, kind)
	}
	if length < 0 {
		return nil, fmt.Errorf("creating dataset %s: negative length %d", path, length)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return nil, fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertDatasetSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var desc sql.NullString
	if description != "" {
		desc = sql.NullString{String: description, Valid: true}
	}

	result, err := stmt.ExecContext(ctx, path, kind, length, desc)
	if err != nil {
		return nil, fmt.Errorf("inserting dataset %s: %w", path, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting dataset ID: %w", err)
	}
	return &Dataset{ID: id, Path: path, Kind: kind, Length: length, Description: description}, nil
}

func (s *SqliteStore) CreateLink(ctx context.Context, dataset *Dataset, path string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, insertLinkSQL, path, dataset.ID); err != nil {
		return fmt.Errorf("linking %s to %s: %w", path, dataset.Path, err)
	}
	return nil
}

func (s *SqliteStore) Dataset(ctx context.Context, path string) (dataset *Dataset, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var ds Dataset
	err = db.QueryRowContext(ctx, selectDatasetSQL, path, path).Scan(&ds.ID, &ds.Path, &ds.Kind, &ds.Length, &ds.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying dataset %s: %w", path, err)
	}
	return &ds, nil
}

func (s *SqliteStore) Datasets(ctx context.Context) (datasets []Dataset, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectDatasetsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying datasets: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var ds Dataset
		if err = rows.Scan(&ds.ID, &ds.Path, &ds.Kind, &ds.Length, &ds.Description); err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

func (s *SqliteStore) Links(ctx context.Context) (links map[string]string, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectLinksSQL)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer closeWithError(rows, &err)

	links = make(map[string]string)
	for rows.Next() {
		var alias, target string
		if err = rows.Scan(&alias, &target); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		links[alias] = target
	}
	return links, rows.Err()
}

func checkWrite(dataset *Dataset, kind string, start, n int) error {
	if dataset.Kind != kind {
		return fmt.Errorf("%s is %s, not %s: %w", dataset.Path, dataset.Kind, kind, ErrKindMismatch)
	}
	if start < 0 || start+n > dataset.Length {
		return fmt.Errorf("%s: rows [%d, %d) of %d: %w", dataset.Path, start, start+n, dataset.Length, ErrOutOfBounds)
	}
	return nil
}

func (s *SqliteStore) WriteMessages(ctx context.Context, dataset *Dataset, start int, rows []MessageRow) (err error) {
	if len(rows) == 0 {
		return nil
	}
	if err = checkWrite(dataset, KindMIL1553, start, len(rows)); err != nil {
		return err
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	idx := start
	for chunk := range slices.Chunk(rows, maxRowsPerStatement) {
		values := make([]any, 0, len(chunk)*14)

		var sb strings.Builder
		sb.WriteString(insertMessagesSQL)

		for i := range chunk {
			data := toMessageData(&chunk[i])
			values = append(values,
				dataset.ID,
				idx,
				data.Time,
				data.Timestamp,
				data.MsgError,
				data.TTB,
				data.WordError,
				data.SyncError,
				data.WordCountError,
				data.RespTimeout,
				data.FormatError,
				data.BusID,
				data.PacketVersion,
				data.Messages,
			)
			idx++

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(valuesPlaceholder)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting messages into %s: %w", dataset.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) WriteFrames(ctx context.Context, dataset *Dataset, start int, frames [][]byte) (err error) {
	if len(frames) == 0 {
		return nil
	}
	if err = checkWrite(dataset, KindVideo, start, len(frames)); err != nil {
		return err
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	idx := start
	for chunk := range slices.Chunk(frames, maxRowsPerStatement) {
		values := make([]any, 0, len(chunk)*3)

		var sb strings.Builder
		sb.WriteString(insertFramesSQL)

		for i, frame := range chunk {
			values = append(values, dataset.ID, idx, frame)
			idx++

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?)")
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting frames into %s: %w", dataset.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) Count(ctx context.Context, dataset *Dataset) (n int, err error) {
	query := countMessagesSQL
	if dataset.Kind == KindVideo {
		query = countFramesSQL
	}

	db, err := s.getReadDB()
	if err != nil {
		return 0, fmt.Errorf("getting read connection: %w", err)
	}

	if err = db.QueryRowContext(ctx, query, dataset.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", dataset.Path, err)
	}
	return n, nil
}

func (s *SqliteStore) SetAttributes(ctx context.Context, target string, attrs map[string]any) (err error) {
	if len(attrs) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, upsertAttributeSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for name, v := range attrs {
		value, err := formatAttribute(v)
		if err != nil {
			return fmt.Errorf("attribute %s of %s: %w", name, target, err)
		}
		if _, err = stmt.ExecContext(ctx, target, name, value); err != nil {
			return fmt.Errorf("setting attribute %s of %s: %w", name, target, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) Attributes(ctx context.Context, target string) (attrs map[string]string, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectAttributesSQL, target)
	if err != nil {
		return nil, fmt.Errorf("querying attributes of %s: %w", target, err)
	}
	defer closeWithError(rows, &err)

	attrs = make(map[string]string)
	for rows.Next() {
		var name, value string
		if err = rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}

func (s *SqliteStore) SetBlob(ctx context.Context, path string, data []byte, description string) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, upsertBlobSQL, path, data, description); err != nil {
		return fmt.Errorf("storing blob %s: %w", path, err)
	}
	return nil
}

func (s *SqliteStore) Blob(ctx context.Context, path string) ([]byte, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var data []byte
	err = db.QueryRowContext(ctx, selectBlobSQL, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying blob %s: %w", path, err)
	}
	return data, nil
}

// ReadMessages creates a reader over the rows of a 1553 dataset. The path
// may be the dataset itself or any of its links.
//
// The returned reader must be closed after use to release database resources.
func (s *SqliteStore) ReadMessages(ctx context.Context, path string, opts ...ReaderOption) (Reader[MessageRow], error) {
	ds, err := s.Dataset(ctx, path)
	if err != nil {
		return nil, err
	}
	if ds.Kind != KindMIL1553 {
		return nil, fmt.Errorf("%s is %s: %w", path, ds.Kind, ErrKindMismatch)
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	r, err := newSqliteReader[MessageRow](ctx, db, selectMessagesSQL, []any{ds.ID}, opts...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SqliteStore) ReadFrames(ctx context.Context, path string) (frames [][]byte, err error) {
	ds, err := s.Dataset(ctx, path)
	if err != nil {
		return nil, err
	}
	if ds.Kind != KindVideo {
		return nil, fmt.Errorf("%s is %s: %w", path, ds.Kind, ErrKindMismatch)
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectFramesSQL, ds.ID)
	if err != nil {
		return nil, fmt.Errorf("querying frames of %s: %w", path, err)
	}
	defer closeWithError(rows, &err)

	frames = make([][]byte, 0, ds.Length)
	for rows.Next() {
		var frame []byte
		if err = rows.Scan(&frame); err != nil {
			return nil, fmt.Errorf("scanning frame: %w", err)
		}
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

const sampleColumns = 10

func (s *SqliteStore) StoreSamples(ctx context.Context, samples []telemetry.Sample) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	if _, err = tx.ExecContext(ctx, deleteSamplesSQL); err != nil {
		return fmt.Errorf("clearing samples: %w", err)
	}

	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	idx := 0
	for chunk := range slices.Chunk(samples, maxRowsPerStatement) {
		values := make([]any, 0, len(chunk)*sampleColumns)

		var sb strings.Builder
		sb.WriteString(insertSamplesSQL)

		for i := range chunk {
			data := toSampleData(&chunk[i])
			values = append(values,
				idx,
				data.Time,
				data.Latitude,
				data.Longitude,
				data.Altitude,
				data.Speed,
				data.Heading,
				data.Roll,
				data.Pitch,
				data.GForce,
			)
			idx++

			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(valuesPlaceholder)
		}

		if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
			return fmt.Errorf("batch inserting samples: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ReadSamples creates a reader over the derived navigation table.
//
// The returned reader must be closed after use to release database resources.
func (s *SqliteStore) ReadSamples(ctx context.Context, opts ...ReaderOption) (Reader[telemetry.Sample], error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	r, err := newSqliteReader[telemetry.Sample](ctx, db, selectSamplesSQL, nil, opts...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Info collects an overview of the store content.
func (s *SqliteStore) Info(ctx context.Context) (*Info, error) {
	var info Info
	var err error

	if info.Attributes, err = s.Attributes(ctx, RootGroup); err != nil {
		return nil, err
	}
	if info.TMATS, err = s.Attributes(ctx, TMATSGroup); err != nil {
		return nil, err
	}
	if info.Datasets, err = s.Datasets(ctx); err != nil {
		return nil, err
	}
	if info.Links, err = s.Links(ctx); err != nil {
		return nil, err
	}

	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var start, end int64
	if err = db.QueryRowContext(ctx, selectSamplesSpanSQL).Scan(&info.Samples, &start, &end); err != nil {
		return nil, fmt.Errorf("querying samples span: %w", err)
	}
	if info.Samples > 0 {
		info.Start = time.Unix(0, start).UTC()
		info.End = time.Unix(0, end).UTC()
	}
	return &info, nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
