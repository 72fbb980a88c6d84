package telemetry

import (
	"math"
	"time"
)

// Sample is one navigation record of the aircraft in engineering units.
type Sample struct {
	Time      int64   `json:"time"`      // Nanoseconds since the Unix epoch
	Latitude  float64 `json:"latitude"`  // Degrees
	Longitude float64 `json:"longitude"` // Degrees
	Altitude  float64 `json:"altitude"`  // Feet
	Speed     float64 `json:"speed"`     // Ground speed in knots
	Heading   float64 `json:"heading"`   // True heading in degrees
	Roll      float64 `json:"roll"`      // Degrees
	Pitch     float64 `json:"pitch"`     // Degrees
	GForce    float64 `json:"gforce"`    // Acceleration magnitude in g
}

// Timestamp returns the sample time in UTC.
func (s Sample) Timestamp() time.Time {
	return time.Unix(0, s.Time).UTC()
}

// Range is the minimum and maximum of a parameter.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r *Range) add(v float64) {
	r.Min = math.Min(r.Min, v)
	r.Max = math.Max(r.Max, v)
}

// Summary holds the extremes of the navigation parameters.
type Summary struct {
	Latitude  Range `json:"latitude"`
	Longitude Range `json:"longitude"`
	Pitch     Range `json:"pitch"`
	Roll      Range `json:"roll"`
	Altitude  Range `json:"altitude"`
	Speed     Range `json:"speed"`
	GForce    Range `json:"gforce"`
}

// Summarize returns the extremes of samples. It returns false for no samples.
func Summarize(samples []Sample) (Summary, bool) {
	if len(samples) == 0 {
		return Summary{}, false
	}

	first := samples[0]
	s := Summary{
		Latitude:  Range{first.Latitude, first.Latitude},
		Longitude: Range{first.Longitude, first.Longitude},
		Pitch:     Range{first.Pitch, first.Pitch},
		Roll:      Range{first.Roll, first.Roll},
		Altitude:  Range{first.Altitude, first.Altitude},
		Speed:     Range{first.Speed, first.Speed},
		GForce:    Range{first.GForce, first.GForce},
	}
	for _, v := range samples[1:] {
		s.Latitude.add(v.Latitude)
		s.Longitude.add(v.Longitude)
		s.Pitch.add(v.Pitch)
		s.Roll.add(v.Roll)
		s.Altitude.add(v.Altitude)
		s.Speed.add(v.Speed)
		s.GForce.add(v.GForce)
	}
	return s, true
}

// Attributes flattens the summary into the store attribute names.
func (s Summary) Attributes() map[string]float64 {
	return map[string]float64{
		"max_lat":      s.Latitude.Max,
		"min_lat":      s.Latitude.Min,
		"max_lon":      s.Longitude.Max,
		"min_lon":      s.Longitude.Min,
		"max_pitch":    s.Pitch.Max,
		"min_pitch":    s.Pitch.Min,
		"max_roll":     s.Roll.Max,
		"min_roll":     s.Roll.Min,
		"max_altitude": s.Altitude.Max,
		"min_altitude": s.Altitude.Min,
		"max_speed":    s.Speed.Max,
		"min_speed":    s.Speed.Min,
		"max_gforce":   s.GForce.Max,
		"min_gforce":   s.GForce.Min,
	}
}
