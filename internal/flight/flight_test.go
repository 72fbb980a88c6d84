package flight

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/firefly/internal/ch10"
	"github.com/roman-kulish/firefly/internal/storage"
	"github.com/roman-kulish/firefly/internal/telemetry"
)

var t0 = time.Date(2019, 6, 12, 15, 30, 0, 0, time.UTC)

func samplesWithSpeed(speeds ...float64) []telemetry.Sample {
	samples := make([]telemetry.Sample, len(speeds))
	for i, v := range speeds {
		samples[i] = telemetry.Sample{
			Time:      t0.Add(time.Duration(i) * time.Second).UnixNano(),
			Latitude:  34 + float64(i)/10,
			Longitude: -117 - float64(i)/10,
			Speed:     v,
			Altitude:  float64(1000 * i),
		}
	}
	return samples
}

func TestRuns(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		want    [][]int
	}{
		{name: "empty", indices: nil, want: nil},
		{name: "single", indices: []int{4}, want: [][]int{{4}}},
		{name: "one run", indices: []int{2, 3, 4}, want: [][]int{{2, 3, 4}}},
		{name: "three runs", indices: []int{0, 1, 5, 7, 8, 9}, want: [][]int{{0, 1}, {5}, {7, 8, 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Runs(tt.indices); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Runs(%v) = %v, want %v", tt.indices, got, tt.want)
			}
		})
	}
}

func TestPartition(t *testing.T) {
	meta := Metadata{AircraftType: "F-16", TMATS: map[string]string{`G\106`: "07"}}
	flight := NewSegment(meta, samplesWithSpeed(0, 60, 70, 10, 80, 90, 95, 20))

	fast := func(s telemetry.Sample) bool { return s.Speed > 50 }
	segments := Partition(flight, fast)
	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}
	if segments[0].Len() != 2 || segments[1].Len() != 3 {
		t.Errorf("segment sizes = %d, %d", segments[0].Len(), segments[1].Len())
	}
	if !segments[1].Start().Equal(t0.Add(4*time.Second)) || segments[1].Duration() != 2*time.Second {
		t.Errorf("segment 1 spans %s for %s", segments[1].Start(), segments[1].Duration())
	}

	// Segments carry their own copy of the metadata.
	segments[0].meta.TMATS[`G\106`] = "09"
	if flight.Metadata().TMATS[`G\106`] != "07" || segments[1].Metadata().AircraftType != "F-16" {
		t.Error("metadata shared between segments")
	}

	if got := Partition(flight, func(telemetry.Sample) bool { return false }); len(got) != 0 {
		t.Errorf("Expected no segments, got %d", len(got))
	}
	all := Partition(flight, func(telemetry.Sample) bool { return true })
	if len(all) != 1 || all[0].Len() != flight.Len() {
		t.Errorf("Expected one segment with every sample, got %d", len(all))
	}
}

func TestSegment_BoundingBox(t *testing.T) {
	samples := samplesWithSpeed(1, 2, 3)
	samples[1].Latitude = math.NaN()
	seg := NewSegment(Metadata{}, samples)

	want := BoundingBox{NorthLat: 34.2, SouthLat: 34, EastLon: -117, WestLon: -117.2}
	if got := seg.BoundingBox(); got != want {
		t.Errorf("BoundingBox() = %+v, want %+v", got, want)
	}

	empty := NewSegment(Metadata{}, nil)
	if bb := empty.BoundingBox(); !math.IsNaN(bb.NorthLat) || !math.IsNaN(bb.WestLon) {
		t.Errorf("empty BoundingBox() = %+v", bb)
	}
	if !empty.Start().IsZero() || empty.Duration() != 0 {
		t.Error("empty segment has a time span")
	}
}

func TestParseCondition(t *testing.T) {
	sample := telemetry.Sample{
		Time:     t0.UnixNano(),
		Speed:    120,
		Altitude: 8000,
		GForce:   1.5,
		Roll:     math.NaN(),
	}
	tests := []struct {
		expr  string
		match bool
	}{
		{"speed > 50", true},
		{"speed>50 and altitude < 10000", true},
		{"speed > 50 AND altitude >= 10000", false},
		{"g-force == 1.5", true},
		{"gforce != 1.5", false},
		{"roll < 0", false},
		{"roll != 0", false},
		{"time >= 2019-06-12T15:30:00Z", true},
		{"time < 2019-06-12T15:30:00Z", false},
		{"Speed <= 120", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			pred, err := ParseCondition(tt.expr)
			if err != nil {
				t.Fatalf("ParseCondition: %v", err)
			}
			if got := pred(sample); got != tt.match {
				t.Errorf("match = %v, want %v", got, tt.match)
			}
		})
	}

	far := telemetry.Sample{Time: math.MaxInt64}
	early, err := ParseCondition("time > 1900-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if !early(far) {
		t.Error("latest representable time must come after 1900")
	}
	exact, err := ParseCondition("time == " + t0.Add(time.Nanosecond).Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	if exact(sample) {
		t.Error("times one nanosecond apart must differ")
	}

	for _, expr := range []string{"", "speed", "speed > fast", "mach > 1", "time > yesterday", "speed => 1"} {
		if _, err := ParseCondition(expr); err == nil {
			t.Errorf("ParseCondition(%q): expected error", expr)
		}
	}
}

func TestChannelPath(t *testing.T) {
	tests := []struct {
		name     string
		dataType ch10.DataType
		loc      Location
		want     string
		err      error
	}{
		{name: "bus root", dataType: ch10.MIL1553Fmt1, want: "chapter11_data/1553"},
		{name: "channel", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11"}, want: "chapter11_data/1553/Ch_11"},
		{name: "RT to BC", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", FromRT: "6", FromSA: "29", ToRT: BC}, want: "chapter11_data/1553/Ch_11/RT_6/SA_29/T/BC"},
		{name: "RT to RT", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", FromRT: "6", FromSA: "29", ToRT: "27", ToSA: "26"}, want: "chapter11_data/1553/Ch_11/RT_6/SA_29/T/RT_27/SA_26"},
		{name: "BC to RT", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", ToRT: "3", ToSA: "1"}, want: "chapter11_data/1553/Ch_11/RT_3/SA_1/R/BC"},
		{name: "terminal", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", FromRT: "6"}, want: "chapter11_data/1553/Ch_11/RT_6"},
		{name: "subaddress", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", FromRT: "6", FromSA: "29"}, want: "chapter11_data/1553/Ch_11/RT_6/SA_29"},
		{name: "no channel", dataType: ch10.MIL1553Fmt1, loc: Location{FromRT: "6"}, err: ErrNoChannel},
		{name: "from_sa alone", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", FromSA: "29"}, err: ErrFromSAWithoutRT},
		{name: "to_sa alone", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", ToSA: "26"}, err: ErrToSAWithoutRT},
		{name: "missing from_sa", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", FromRT: "6", ToRT: "27", ToSA: "26"}, err: ErrNoFromSA},
		{name: "missing to_sa", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", FromRT: "6", FromSA: "29", ToRT: "27"}, err: ErrNoToSA},
		{name: "receiver without subaddress", dataType: ch10.MIL1553Fmt1, loc: Location{Channel: "11", ToRT: "3"}, err: ErrNoToSA},
		{name: "video", dataType: ch10.VideoFmt0, loc: Location{Channel: "3"}, want: "chapter11_data/Video Format 0/Ch_3"},
		{name: "video root", dataType: ch10.VideoFmt0, want: "chapter11_data/Video Format 0"},
		{name: "TMATS", dataType: ch10.TMATS, want: "chapter11_data/TMATS"},
		{name: "unsupported", dataType: ch10.EthernetFmt0, err: ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChannelPath(tt.dataType, tt.loc)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChannelPath: %v", err)
			}
			if got != tt.want {
				t.Errorf("ChannelPath() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := ChannelPath(ch10.MIL1553Fmt1, Location{Channel: "eleven"}); err == nil {
		t.Error("Expected error for a non-numeric channel")
	}
}

func TestWriteCSV(t *testing.T) {
	samples := samplesWithSpeed(0, 55.5)
	samples[0].Heading = math.NaN()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, samples); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "time,latitude,longitude,altitude,speed,heading,roll,pitch,gforce" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2019-06-12T15:30:00Z,34,-117,0,0,,0,0,0" {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2019-06-12T15:30:01Z,34.1,-117.1,1000,55.5,") {
		t.Errorf("second row = %q", lines[2])
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	s := storage.NewSqliteStore(filepath.Join(t.TempDir(), "flight.db"))
	t.Cleanup(func() { _ = s.Close() })

	if err := s.CreateGroup(ctx, storage.RootGroup); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := Load(ctx, s); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Expected ErrNoSamples, got %v", err)
	}

	err := s.SetAttributes(ctx, storage.RootGroup, map[string]any{
		storage.AttrAircraftType:    "F-16",
		storage.AttrTakeoffLocation: "EDWARDS AFB, CA",
		storage.AttrLandingLocation: "NELLIS AFB, NV",
	})
	if err != nil {
		t.Fatalf("SetAttributes: %v", err)
	}
	if err = s.SetAttributes(ctx, storage.TMATSGroup, map[string]any{`R-1\RI1`: "ACME"}); err != nil {
		t.Fatalf("SetAttributes: %v", err)
	}
	if err = s.StoreSamples(ctx, samplesWithSpeed(0, 60, 0)); err != nil {
		t.Fatalf("StoreSamples: %v", err)
	}

	flight, err := Load(ctx, s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	meta := flight.Metadata()
	if meta.AircraftType != "F-16" || meta.TakeoffLocation != "EDWARDS AFB, CA" || meta.LandingLocation != "NELLIS AFB, NV" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.TMATS[`R-1\RI1`] != "ACME" {
		t.Errorf("TMATS = %v", meta.TMATS)
	}
	if flight.Len() != 3 || flight.Duration() != 2*time.Second {
		t.Errorf("flight has %d samples over %s", flight.Len(), flight.Duration())
	}

	part, err := Load(ctx, s, storage.WithStartTime(t0.Add(time.Second)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if part.Len() != 2 {
		t.Errorf("Expected 2 samples after start time, got %d", part.Len())
	}
}

func rawRows(n int) []storage.MessageRow {
	rows := make([]storage.MessageRow, n)
	for i := range rows {
		at := t0.Add(time.Duration(i) * time.Second)
		rows[i] = storage.MessageRow{
			Time:      at.UnixNano(),
			Timestamp: at.Format(storage.TimestampLayout),
			BusID:     "A",
			Messages:  []uint16{0x0c3d, uint16(i)},
		}
	}
	return rows
}

func TestReadRawMessages(t *testing.T) {
	ctx := context.Background()
	s := storage.NewSqliteStore(filepath.Join(t.TempDir(), "flight.db"))
	t.Cleanup(func() { _ = s.Close() })

	toBC := storage.RawGroup + "/1553/Ch_11/RT_6/SA_29/T/BC"
	toRT := storage.RawGroup + "/1553/Ch_11/RT_6/SA_29/T/RT_27/SA_26"
	alias := storage.RawGroup + "/1553/Ch_11/RT_27/SA_26/R/RT_6/SA_29"
	for _, path := range []string{toBC, toRT} {
		ds, err := s.CreateDataset(ctx, path, storage.KindMIL1553, 3, "")
		if err != nil {
			t.Fatalf("CreateDataset: %v", err)
		}
		if err = s.WriteMessages(ctx, ds, 0, rawRows(3)); err != nil {
			t.Fatalf("WriteMessages: %v", err)
		}
		if path == toRT {
			if err = s.CreateLink(ctx, ds, alias); err != nil {
				t.Fatalf("CreateLink: %v", err)
			}
		}
	}

	// The segment spans the last two rows.
	seg := NewSegment(Metadata{}, samplesWithSpeed(0, 60, 70)[1:])

	tests := []struct {
		name  string
		loc   Location
		paths []string
	}{
		{name: "transfer", loc: Location{Channel: "11", FromRT: "6", FromSA: "29", ToRT: BC}, paths: []string{toBC}},
		{name: "terminal", loc: Location{Channel: "11", FromRT: "6"}, paths: []string{toBC, toRT}},
		{name: "channel", loc: Location{Channel: "11"}, paths: []string{toBC, toRT}},
		{name: "receiving terminal", loc: Location{Channel: "11", FromRT: "27"}, paths: []string{alias}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadRawMessages(ctx, s, seg, tt.loc)
			if err != nil {
				t.Fatalf("ReadRawMessages: %v", err)
			}
			var paths []string
			for _, m := range got {
				paths = append(paths, m.Path)
				if len(m.Rows) != 2 || m.Rows[0].Time != t0.Add(time.Second).UnixNano() {
					t.Errorf("%s: rows = %+v, want the last two", m.Path, m.Rows)
				}
			}
			if !reflect.DeepEqual(paths, tt.paths) {
				t.Errorf("paths = %v, want %v", paths, tt.paths)
			}
		})
	}

	if _, err := ReadRawMessages(ctx, s, seg, Location{Channel: "12"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := ReadRawMessages(ctx, s, seg, Location{FromRT: "6"}); !errors.Is(err, ErrNoChannel) {
		t.Errorf("Expected ErrNoChannel, got %v", err)
	}
}

func TestWriteRawCSV(t *testing.T) {
	rows := rawRows(2)
	rows[1].MsgError = true

	var buf bytes.Buffer
	if err := WriteRawCSV(&buf, []RawMessages{{Path: "chapter11_data/1553/Ch_11/RT_6/SA_29/T/BC", Rows: rows}}); err != nil {
		t.Fatalf("WriteRawCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "channel,time,timestamp,msg_error,ttb,word_error,sync_error,word_count_error,rsp_tout,format_error,bus_id,packet_version,words" {
		t.Errorf("header = %q", lines[0])
	}
	want := "chapter11_data/1553/Ch_11/RT_6/SA_29/T/BC,1560353401000000000,2019/06/12 15:30:01.000000,true,0,false,false,false,false,false,A,0,0c3d 0001"
	if lines[2] != want {
		t.Errorf("second row = %q, want %q", lines[2], want)
	}
}
