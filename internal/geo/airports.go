package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Airport table column headers.
const (
	ColumnSiteName  = "SITE_NAME"
	ColumnStateTerr = "STATE_TERR"
	ColumnLatitude  = "LATITUDE"
	ColumnLongitude = "LONGITUDE"
)

var ErrEmptyTable = errors.New("airport table is empty")

// Airport is a reference location.
type Airport struct {
	SiteName         string
	StateOrTerritory string
	Latitude         float64
	Longitude        float64
}

// String formats the airport as "SITE_NAME, STATE_TERR".
func (a Airport) String() string {
	return a.SiteName + ", " + a.StateOrTerritory
}

// AirportTable is a read-only list of reference airports.
type AirportTable []Airport

// Nearest returns the airport closest to the given point and its distance in
// kilometers. Ties go to the first airport in the table.
func (t AirportTable) Nearest(lat, lon float64) (Airport, float64, error) {
	if len(t) == 0 {
		return Airport{}, 0, ErrEmptyTable
	}

	best, bestDist := 0, GreatCircleDistance(lat, lon, t[0].Latitude, t[0].Longitude)
	for i := 1; i < len(t); i++ {
		if d := GreatCircleDistance(lat, lon, t[i].Latitude, t[i].Longitude); d < bestDist {
			best, bestDist = i, d
		}
	}
	return t[best], bestDist, nil
}

// LoadAirports reads an airport table from a CSV file. Files ending in ".zst"
// are zstd compressed.
func LoadAirports(path string) (table AirportTable, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening airport table: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if table, err = ReadAirports(r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadAirports parses a comma-delimited airport table with a header row. The
// columns may come in any order and extra columns are ignored.
func ReadAirports(r io.Reader) (AirportTable, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	fields := []string{ColumnSiteName, ColumnStateTerr, ColumnLatitude, ColumnLongitude}
	idx := make([]int, len(fields))
	for fi, f := range fields {
		idx[fi] = -1
		for hi, h := range header {
			if strings.EqualFold(f, strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
				idx[fi] = hi
				break
			}
		}
		if idx[fi] < 0 {
			return nil, fmt.Errorf("column %s not found", f)
		}
	}

	var table AirportTable
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		get := func(i int) string {
			if idx[i] >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx[i]])
		}

		lat, err := strconv.ParseFloat(get(2), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing %s: %w", line, ColumnLatitude, err)
		}
		lon, err := strconv.ParseFloat(get(3), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing %s: %w", line, ColumnLongitude, err)
		}
		table = append(table, Airport{
			SiteName:         get(0),
			StateOrTerritory: get(1),
			Latitude:         lat,
			Longitude:        lon,
		})
	}

	if len(table) == 0 {
		return nil, ErrEmptyTable
	}
	return table, nil
}
