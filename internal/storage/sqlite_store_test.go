package storage

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

var baseTime = time.Date(2019, 6, 12, 15, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s := NewSqliteStore(filepath.Join(t.TempDir(), "flight.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func messageRow(offset time.Duration, words ...uint16) MessageRow {
	ts := baseTime.Add(offset)
	return MessageRow{
		Time:          ts.UnixNano(),
		Timestamp:     ts.Format(TimestampLayout),
		TTB:           3,
		BusID:         "A",
		PacketVersion: 6,
		Messages:      words,
	}
}

func TestSqliteStore_Messages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateGroup(ctx, RawGroup); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := s.CreateGroup(ctx, RawGroup); err != nil {
		t.Fatalf("CreateGroup twice: %v", err)
	}

	path := RawGroup + "/1553/Ch_11/RT_6/SA_29/T/RT_27/SA_26"
	alias := RawGroup + "/1553/Ch_11/RT_27/SA_26/R/RT_6/SA_29"

	ds, err := s.CreateDataset(ctx, path, KindMIL1553, 3, "")
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	if _, err = s.CreateDataset(ctx, path, KindMIL1553, 3, ""); err == nil {
		t.Error("Expected error creating a dataset twice")
	}

	errRow := messageRow(time.Second, 7, 8)
	errRow.MsgError = true
	errRow.BusID = "B"
	rows := []MessageRow{messageRow(0, 1, 2, 3), errRow, messageRow(2 * time.Second)}

	if err = s.WriteMessages(ctx, ds, 0, rows[:2]); err != nil {
		t.Fatalf("WriteMessages: %v", err)
	}
	if err = s.WriteMessages(ctx, ds, 2, rows[2:]); err != nil {
		t.Fatalf("WriteMessages: %v", err)
	}
	if err = s.WriteMessages(ctx, ds, 3, rows[:1]); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds, got %v", err)
	}
	if err = s.WriteMessages(ctx, ds, 1, rows[:1]); err == nil {
		t.Error("Expected error writing an index twice")
	}
	if err = s.WriteFrames(ctx, ds, 0, [][]byte{{1}}); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Expected ErrKindMismatch, got %v", err)
	}

	if n, err := s.Count(ctx, ds); err != nil || n != 3 {
		t.Errorf("Count() = %d, %v, want 3", n, err)
	}

	if err = s.CreateLink(ctx, ds, alias); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	linked, err := s.Dataset(ctx, alias)
	if err != nil {
		t.Fatalf("Dataset(alias): %v", err)
	}
	if linked.ID != ds.ID || linked.Path != path {
		t.Errorf("alias resolved to %+v, want %+v", linked, ds)
	}
	if _, err = s.Dataset(ctx, RawGroup+"/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	links, err := s.Links(ctx)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if links[alias] != path {
		t.Errorf("Links() = %v", links)
	}

	r, err := s.ReadMessages(ctx, alias)
	if err != nil {
		t.Fatalf("ReadMessages: %v", err)
	}
	got, err := ReadAll(ctx, r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("Expected %d rows, got %d", len(rows), len(got))
	}
	for i := range rows {
		want := rows[i]
		if got[i].Time != want.Time || got[i].Timestamp != want.Timestamp || got[i].MsgError != want.MsgError ||
			got[i].BusID != want.BusID || got[i].TTB != want.TTB || got[i].PacketVersion != want.PacketVersion ||
			!slices.Equal(got[i].Messages, want.Messages) {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want)
		}
	}

	r, err = s.ReadMessages(ctx, path, WithStartTime(baseTime.Add(time.Second)))
	if err != nil {
		t.Fatalf("ReadMessages: %v", err)
	}
	got, err = ReadAll(ctx, r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 || !got[0].MsgError {
		t.Errorf("filtered rows = %+v", got)
	}

	inverted := WithTimeRange(baseTime.Add(time.Hour), baseTime)
	if r, err := s.ReadMessages(ctx, path, inverted); err == nil || r != nil {
		t.Errorf("inverted time range: reader = %v, error = %v, want nil reader and an error", r, err)
	}
	if r, err := s.ReadSamples(ctx, inverted); err == nil || r != nil {
		t.Errorf("inverted time range: samples reader = %v, error = %v, want nil reader and an error", r, err)
	}
}

func TestSqliteStore_Frames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ds, err := s.CreateDataset(ctx, RawGroup+"/Video Format 0/Ch_3", KindVideo, 2, "MPEG-2 transport stream")
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	frames := [][]byte{{0x47, 1}, {0x47, 2}}
	if err = s.WriteFrames(ctx, ds, 0, frames); err != nil {
		t.Fatalf("WriteFrames: %v", err)
	}

	got, err := s.ReadFrames(ctx, ds.Path)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if !slices.EqualFunc(got, frames, bytes.Equal) {
		t.Errorf("ReadFrames() = %v, want %v", got, frames)
	}

	if _, err = s.ReadMessages(ctx, ds.Path); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Expected ErrKindMismatch, got %v", err)
	}
	if _, err = s.CreateDataset(ctx, "x", "audio", 1, ""); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("Expected ErrKindMismatch for unknown kind, got %v", err)
	}
}

func TestSqliteStore_AttributesAndBlobs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.SetAttributes(ctx, RootGroup, map[string]any{
		"aircraft_type": "F-16",
		"max_lat":       35.5,
		"rcc_version":   uint8(7),
		"count":         12,
	})
	if err != nil {
		t.Fatalf("SetAttributes: %v", err)
	}
	if err = s.SetAttributes(ctx, RootGroup, map[string]any{"aircraft_type": "F-15"}); err != nil {
		t.Fatalf("SetAttributes: %v", err)
	}
	if err = s.SetAttributes(ctx, RootGroup, map[string]any{"bad": []int{1}}); err == nil {
		t.Error("Expected error for unsupported attribute type")
	}

	attrs, err := s.Attributes(ctx, RootGroup)
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	want := map[string]string{"aircraft_type": "F-15", "max_lat": "35.5", "rcc_version": "7", "count": "12"}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, attrs[k], v)
		}
	}
	if _, ok := attrs["bad"]; ok {
		t.Error("failed attribute batch was partially applied")
	}

	if err = s.SetBlob(ctx, TMATSBlobPath, []byte("G\\106:07;"), "raw TMATS"); err != nil {
		t.Fatalf("SetBlob: %v", err)
	}
	blob, err := s.Blob(ctx, TMATSBlobPath)
	if err != nil || string(blob) != "G\\106:07;" {
		t.Errorf("Blob() = %q, %v", blob, err)
	}
	if _, err = s.Blob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSqliteStore_Samples(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	samples := []telemetry.Sample{
		{Time: baseTime.UnixNano(), Latitude: 34.9, Longitude: -117.8, Altitude: 2300, Speed: 0, Heading: 90, Roll: 1, Pitch: 2, GForce: 1},
		{Time: baseTime.Add(time.Second).UnixNano(), Latitude: math.NaN(), Longitude: -117.7, Altitude: 2400, Speed: 120},
	}
	if err := s.StoreSamples(ctx, []telemetry.Sample{{Time: 1}}); err != nil {
		t.Fatalf("StoreSamples: %v", err)
	}
	if err := s.StoreSamples(ctx, samples); err != nil {
		t.Fatalf("StoreSamples: %v", err)
	}

	r, err := s.ReadSamples(ctx)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	got, err := ReadAll(ctx, r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(got))
	}
	if got[0] != samples[0] {
		t.Errorf("sample 0 = %+v, want %+v", got[0], samples[0])
	}
	if !math.IsNaN(got[1].Latitude) || got[1].Speed != 120 {
		t.Errorf("sample 1 = %+v", got[1])
	}

	r, err = s.ReadSamples(ctx, WithEndTime(baseTime))
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if got, err = ReadAll(ctx, r); err != nil || len(got) != 1 {
		t.Errorf("filtered samples = %v, %v", got, err)
	}

	info, err := s.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Samples != 2 || !info.Start.Equal(baseTime) || !info.End.Equal(baseTime.Add(time.Second)) {
		t.Errorf("Info() = %+v", info)
	}
}

func TestSqliteStore_Close(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "flight.db"))
	if err := s.CreateGroup(context.Background(), DerivedGroup); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// newMockStore wires a sqlmock connection as the write connection.
func newMockStore(t *testing.T) (*SqliteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := &SqliteStore{}
	s.writeDBOnce.Do(func() { s.writeDB = db })
	return s, mock
}

func TestSqliteStore_WriteMessages_RollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mil1553_rows").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	ds := &Dataset{ID: 1, Path: "p", Kind: KindMIL1553, Length: 1}
	if err := s.WriteMessages(context.Background(), ds, 0, []MessageRow{messageRow(0, 1)}); err == nil {
		t.Error("Expected error, got none")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestSqliteStore_WriteMessages_Chunks(t *testing.T) {
	s, mock := newMockStore(t)

	rows := make([]MessageRow, maxRowsPerStatement+1)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mil1553_rows").WillReturnResult(sqlmock.NewResult(0, maxRowsPerStatement))
	mock.ExpectExec("INSERT INTO mil1553_rows").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ds := &Dataset{ID: 1, Path: "p", Kind: KindMIL1553, Length: len(rows)}
	if err := s.WriteMessages(context.Background(), ds, 0, rows); err != nil {
		t.Errorf("WriteMessages: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestSqliteStore_StoreSamples_ClearFails(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	if err := s.StoreSamples(context.Background(), nil); err == nil {
		t.Error("Expected error, got none")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
