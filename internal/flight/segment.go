// Package flight models a derived flight and the segments it splits into when
// filtered by a condition on its navigation samples.
package flight

import (
	"maps"
	"math"
	"sync"
	"time"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

// Metadata describes the recording a flight was derived from.
type Metadata struct {
	File            string
	Checksum        string
	FileID          string
	AircraftType    string
	AircraftID      string
	TakeoffLocation string
	LandingLocation string

	// Attributes holds every root attribute of the store, TMATS the
	// attributes parsed from the recording setup record.
	Attributes map[string]string
	TMATS      map[string]string
}

func (m Metadata) clone() Metadata {
	m.Attributes = maps.Clone(m.Attributes)
	m.TMATS = maps.Clone(m.TMATS)
	return m
}

// BoundingBox is the geographic extent of a segment in degrees.
type BoundingBox struct {
	NorthLat float64 `json:"north_lat"`
	SouthLat float64 `json:"south_lat"`
	EastLon  float64 `json:"east_lon"`
	WestLon  float64 `json:"west_lon"`
}

// Segment is a time ordered run of navigation samples of one flight. The
// whole flight is a segment too.
type Segment struct {
	meta    Metadata
	samples []telemetry.Sample

	bboxOnce sync.Once
	bbox     BoundingBox
}

// NewSegment returns a segment over samples, which must be ordered by time.
func NewSegment(meta Metadata, samples []telemetry.Sample) *Segment {
	return &Segment{meta: meta, samples: samples}
}

// Clone returns a new segment with a copy of the metadata of s and the given
// samples in place of its own.
func (s *Segment) Clone(samples []telemetry.Sample) *Segment {
	return NewSegment(s.meta.clone(), samples)
}

func (s *Segment) Metadata() Metadata {
	return s.meta
}

func (s *Segment) Samples() []telemetry.Sample {
	return s.samples
}

func (s *Segment) Len() int {
	return len(s.samples)
}

// Start returns the time of the first sample, or the zero time for an empty
// segment.
func (s *Segment) Start() time.Time {
	if len(s.samples) == 0 {
		return time.Time{}
	}
	return s.samples[0].Timestamp()
}

// End returns the time of the last sample.
func (s *Segment) End() time.Time {
	if len(s.samples) == 0 {
		return time.Time{}
	}
	return s.samples[len(s.samples)-1].Timestamp()
}

func (s *Segment) Duration() time.Duration {
	return s.End().Sub(s.Start())
}

// BoundingBox returns the extent of the segment positions, ignoring missing
// values. It is computed on first use. All fields are NaN when the segment has
// no position.
func (s *Segment) BoundingBox() BoundingBox {
	s.bboxOnce.Do(func() {
		bb := BoundingBox{
			NorthLat: math.Inf(-1),
			SouthLat: math.Inf(1),
			EastLon:  math.Inf(-1),
			WestLon:  math.Inf(1),
		}
		found := false
		for _, v := range s.samples {
			if math.IsNaN(v.Latitude) || math.IsNaN(v.Longitude) {
				continue
			}
			found = true
			bb.NorthLat = math.Max(bb.NorthLat, v.Latitude)
			bb.SouthLat = math.Min(bb.SouthLat, v.Latitude)
			bb.EastLon = math.Max(bb.EastLon, v.Longitude)
			bb.WestLon = math.Min(bb.WestLon, v.Longitude)
		}
		if !found {
			nan := math.NaN()
			bb = BoundingBox{nan, nan, nan, nan}
		}
		s.bbox = bb
	})
	return s.bbox
}

// Predicate selects samples.
type Predicate func(telemetry.Sample) bool

// Partition splits the samples of s matching pred into segments of
// consecutive samples. Each segment carries a copy of the metadata of s. No
// match yields no segment.
func Partition(s *Segment, pred Predicate) []*Segment {
	var matches []int
	for i, v := range s.samples {
		if pred(v) {
			matches = append(matches, i)
		}
	}

	runs := Runs(matches)
	segments := make([]*Segment, 0, len(runs))
	for _, run := range runs {
		first, last := run[0], run[len(run)-1]
		segments = append(segments, s.Clone(s.samples[first:last+1:last+1]))
	}
	return segments
}

// Runs groups ascending indices into maximal runs of consecutive values.
func Runs(indices []int) [][]int {
	var runs [][]int
	start := 0
	for i := 1; i <= len(indices); i++ {
		if i == len(indices) || indices[i] != indices[i-1]+1 {
			if i > start {
				runs = append(runs, indices[start:i:i])
			}
			start = i
		}
	}
	return runs
}
