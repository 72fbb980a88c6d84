package telemetry

import "testing"

func TestSummarize(t *testing.T) {
	if _, ok := Summarize(nil); ok {
		t.Fatal("Summarize(nil) reported a summary")
	}

	s, ok := Summarize([]Sample{
		{Latitude: 34.9, Longitude: -117.9, Altitude: 2300, Speed: 0, Pitch: 1, Roll: -2, GForce: 1},
		{Latitude: 36.2, Longitude: -115.0, Altitude: 25000, Speed: 410, Pitch: -5, Roll: 30, GForce: 2.5},
		{Latitude: 35.5, Longitude: -116.1, Altitude: 12000, Speed: 300, Pitch: 3, Roll: 0, GForce: 0.8},
	})
	if !ok {
		t.Fatal("no summary")
	}

	attrs := s.Attributes()
	want := map[string]float64{
		"max_lat": 36.2, "min_lat": 34.9,
		"max_lon": -115.0, "min_lon": -117.9,
		"max_altitude": 25000, "min_altitude": 2300,
		"max_speed": 410, "min_speed": 0,
		"max_pitch": 3, "min_pitch": -5,
		"max_roll": 30, "min_roll": -2,
		"max_gforce": 2.5, "min_gforce": 0.8,
	}
	for name, v := range want {
		if attrs[name] != v {
			t.Errorf("%s = %v, want %v", name, attrs[name], v)
		}
	}
}
