package flight

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/roman-kulish/firefly/internal/telemetry"
)

var csvHeader = []string{"time", "latitude", "longitude", "altitude", "speed", "heading", "roll", "pitch", "gforce"}

// WriteCSV writes samples with a header row. Times are RFC 3339 in UTC and
// missing values are empty cells.
func WriteCSV(w io.Writer, samples []telemetry.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(csvHeader))
	for _, s := range samples {
		record[0] = s.Timestamp().Format(time.RFC3339Nano)
		for i, v := range []float64{s.Latitude, s.Longitude, s.Altitude, s.Speed, s.Heading, s.Roll, s.Pitch, s.GForce} {
			record[i+1] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if v != v {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
