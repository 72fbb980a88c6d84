package geo

import (
	"errors"
	"fmt"
)

// DefaultTakeoffSpeed is the speed, in knots, above which the aircraft is
// considered airborne.
const DefaultTakeoffSpeed = 50.0

var (
	// ErrNoTakeoff means no sample exceeds the takeoff speed.
	ErrNoTakeoff = errors.New("no sample exceeds the takeoff speed")

	ErrSeriesLength = errors.New("speed, latitude and longitude series differ in length")
)

// FlightEnd is the airport nearest to one end of a flight.
type FlightEnd struct {
	Index    int     // sample index of the first or last fast sample
	Airport  Airport // nearest airport
	Distance float64 // kilometers
}

// FlightEnds holds the takeoff and landing airports.
type FlightEnds struct {
	Takeoff FlightEnd
	Landing FlightEnd
}

// ResolveFlightEnds finds the first and last samples faster than threshold
// and the airports nearest to them. The three series are parallel.
func ResolveFlightEnds(speed, lat, lon []float64, table AirportTable, threshold float64) (FlightEnds, error) {
	if len(speed) != len(lat) || len(speed) != len(lon) {
		return FlightEnds{}, fmt.Errorf("%w: %d, %d, %d", ErrSeriesLength, len(speed), len(lat), len(lon))
	}

	first, last := -1, -1
	for i, s := range speed {
		if s > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return FlightEnds{}, fmt.Errorf("%w (%.1f kt)", ErrNoTakeoff, threshold)
	}

	var ends FlightEnds
	for _, end := range []struct {
		idx int
		dst *FlightEnd
	}{
		{idx: first, dst: &ends.Takeoff},
		{idx: last, dst: &ends.Landing},
	} {
		ap, dist, err := table.Nearest(lat[end.idx], lon[end.idx])
		if err != nil {
			return FlightEnds{}, err
		}
		*end.dst = FlightEnd{Index: end.idx, Airport: ap, Distance: dist}
	}
	return ends, nil
}
