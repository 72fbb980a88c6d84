package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeWords(words []uint16) []byte {
	b := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(b[2*i:], w)
	}
	return b
}

func decodeWords(b []byte) ([]uint16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("odd message blob length %d", len(b))
	}
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return words, nil
}

func toMessageData(r *MessageRow) *messageData {
	return &messageData{
		Time:           r.Time,
		Timestamp:      r.Timestamp,
		MsgError:       boolToInt(r.MsgError),
		TTB:            int(r.TTB),
		WordError:      boolToInt(r.WordError),
		SyncError:      boolToInt(r.SyncError),
		WordCountError: boolToInt(r.WordCountError),
		RespTimeout:    boolToInt(r.RespTimeout),
		FormatError:    boolToInt(r.FormatError),
		BusID:          r.BusID,
		PacketVersion:  int(r.PacketVersion),
		Messages:       encodeWords(r.Messages),
	}
}

func fromMessageData(d *messageData) (MessageRow, error) {
	words, err := decodeWords(d.Messages)
	if err != nil {
		return MessageRow{}, err
	}
	return MessageRow{
		Time:           d.Time,
		Timestamp:      d.Timestamp,
		MsgError:       d.MsgError != 0,
		TTB:            uint8(d.TTB),
		WordError:      d.WordError != 0,
		SyncError:      d.SyncError != 0,
		WordCountError: d.WordCountError != 0,
		RespTimeout:    d.RespTimeout != 0,
		FormatError:    d.FormatError != 0,
		BusID:          d.BusID,
		PacketVersion:  uint8(d.PacketVersion),
		Messages:       words,
	}, nil
}

// toNullFloat maps NaN to NULL, which is how SQLite stores it anyway.
func toNullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: !math.IsNaN(f)}
}

func fromNullFloat(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

func toSampleData(s *telemetry.Sample) *sampleData {
	return &sampleData{
		Time:      s.Time,
		Latitude:  toNullFloat(s.Latitude),
		Longitude: toNullFloat(s.Longitude),
		Altitude:  toNullFloat(s.Altitude),
		Speed:     toNullFloat(s.Speed),
		Heading:   toNullFloat(s.Heading),
		Roll:      toNullFloat(s.Roll),
		Pitch:     toNullFloat(s.Pitch),
		GForce:    toNullFloat(s.GForce),
	}
}

func fromSampleData(d *sampleData) telemetry.Sample {
	return telemetry.Sample{
		Time:      d.Time,
		Latitude:  fromNullFloat(d.Latitude),
		Longitude: fromNullFloat(d.Longitude),
		Altitude:  fromNullFloat(d.Altitude),
		Speed:     fromNullFloat(d.Speed),
		Heading:   fromNullFloat(d.Heading),
		Roll:      fromNullFloat(d.Roll),
		Pitch:     fromNullFloat(d.Pitch),
		GForce:    fromNullFloat(d.GForce),
	}
}

// formatAttribute renders supported attribute values as text.
func formatAttribute(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unsupported attribute type %T", v)
	}
}
