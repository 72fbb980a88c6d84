package ins

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

// Record is one raw navigation message read from the store.
type Record struct {
	Channel  string // dataset path the record was read from
	Time     int64  // nanoseconds since the Unix epoch
	MsgError bool
	Words    []uint16
}

// MessageError rejects a batch that contains a message flagged with a 1553
// message error.
type MessageError struct {
	Index   int
	Channel string
	Time    int64
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("message #%d on %s at %s: 1553 message error", e.Index, e.Channel,
		time.Unix(0, e.Time).UTC().Format(time.RFC3339Nano))
}

// Derive converts navigation records into samples sorted by time. Records
// with equal times keep their input order. The whole batch is rejected when
// any record carries a message error or is not exactly one navigation record.
func Derive(records []Record) ([]telemetry.Sample, error) {
	for i := range records {
		if records[i].MsgError {
			return nil, &MessageError{Index: i, Channel: records[i].Channel, Time: records[i].Time}
		}
	}

	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(records[a].Time, records[b].Time)
	})

	samples := make([]telemetry.Sample, len(records))
	for n, i := range order {
		r := &records[i]
		if len(r.Words) != RecordWords {
			return nil, &RecordSizeError{Index: i, Words: len(r.Words)}
		}
		w, err := DecodeWords(r.Words)
		if err != nil {
			return nil, fmt.Errorf("message #%d: %w", i, err)
		}
		samples[n] = Sample(r.Time, w)
	}
	return samples, nil
}

// Sample converts a decoded record into engineering units.
func Sample(t int64, w Word) telemetry.Sample {
	return telemetry.Sample{
		Time:      t,
		Latitude:  w.Latitude(),
		Longitude: w.Longitude(),
		Altitude:  w.AltitudeFeet(),
		Speed:     w.SpeedKnots(),
		Heading:   w.HeadingDegrees(),
		Roll:      w.RollDegrees(),
		Pitch:     w.PitchDegrees(),
		GForce:    w.GForce(),
	}
}
