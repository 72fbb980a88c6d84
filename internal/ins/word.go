// Package ins decodes the 64-byte navigation record sent by the aircraft's
// inertial navigation system over the 1553 bus.
package ins

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// RecordSize is the size of a navigation record in bytes.
	RecordSize = 64

	// RecordWords is the number of 1553 data words in a navigation record.
	RecordWords = RecordSize / 2
)

// Word is the navigation record layout. All fields are little-endian.
type Word struct {
	Status      uint16
	TimeTag     uint16
	VxMSW       int16
	VxLSW       uint16
	VyMSW       int16
	VyLSW       uint16
	VzMSW       int16
	VzLSW       uint16
	Azimuth     uint16
	Roll        int16
	Pitch       int16
	TrueHeading uint16
	MagHeading  uint16
	AccX        int16
	AccY        int16
	AccZ        int16
	CxxMSW      int16
	CxxLSW      uint16
	CxyMSW      int16
	CxyLSW      uint16
	CxzMSW      int16
	CxzLSW      uint16
	LonMSW      int16
	LonLSW      uint16
	Alt         int16
	SteerError  int16
	TiltX       int16
	TiltY       int16
	TBD         [4]int16
}

func init() {
	if n := binary.Size(Word{}); n != RecordSize {
		panic(fmt.Sprintf("ins: navigation record layout is %d bytes, want %d", n, RecordSize))
	}
}

// RecordSizeError is returned for a payload that is not exactly one record.
type RecordSizeError struct {
	Index int // position of the message in the input
	Words int
}

func (e *RecordSizeError) Error() string {
	return fmt.Sprintf("message #%d: %d data words, want %d", e.Index, e.Words, RecordWords)
}

// DecodeWords decodes a navigation record from 32 data words in bus order.
func DecodeWords(words []uint16) (Word, error) {
	if len(words) != RecordWords {
		return Word{}, &RecordSizeError{Index: -1, Words: len(words)}
	}

	var buf [RecordSize]byte
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[2*i:], w)
	}
	return Decode(buf[:])
}

// Decode decodes a navigation record from its 64-byte little-endian encoding.
func Decode(b []byte) (Word, error) {
	var w Word
	if len(b) != RecordSize {
		return w, fmt.Errorf("decoding navigation record: %d bytes, want %d", len(b), RecordSize)
	}
	if _, err := binary.Decode(b, binary.LittleEndian, &w); err != nil {
		return w, fmt.Errorf("decoding navigation record: %w", err)
	}
	return w, nil
}

// Words encodes the record as 32 data words in bus order.
func (w Word) Words() []uint16 {
	b, _ := binary.Append(make([]byte, 0, RecordSize), binary.LittleEndian, &w)
	words := make([]uint16, RecordWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return words
}

func join(msw int16, lsw uint16) int64 {
	return int64(msw)<<16 | int64(lsw)
}

const (
	angleScale = 180.0 / 0x7fff
	lonScale   = 180.0 / 0x7fffffff
	dirCosine  = 0x40000000
	fpsToKnots = 900.0 / 6080.0
)

// Latitude in degrees, from the Cxz direction cosine.
func (w Word) Latitude() float64 {
	return math.Asin(float64(join(w.CxzMSW, w.CxzLSW))/dirCosine) * 180 / math.Pi
}

// Longitude in degrees.
func (w Word) Longitude() float64 {
	return lonScale * float64(join(w.LonMSW, w.LonLSW))
}

func (w Word) RollDegrees() float64  { return angleScale * float64(w.Roll) }
func (w Word) PitchDegrees() float64 { return angleScale * float64(w.Pitch) }

// HeadingDegrees reads the true heading as unsigned, matching the recorded
// data, so values above 0x7fff give headings past 180 degrees.
func (w Word) HeadingDegrees() float64 { return angleScale * float64(w.TrueHeading) }

// AltitudeFeet returns the altitude; the raw value has a 4 ft resolution.
func (w Word) AltitudeFeet() float64 {
	return float64(w.Alt) * 4
}

// GForce is the magnitude of the acceleration vector in g.
func (w Word) GForce() float64 {
	x, y, z := int32(w.AccX>>5), int32(w.AccY>>5), int32(w.AccZ>>5)
	return math.Sqrt(float64(x*x+y*y+z*z)) / 32
}

// SpeedKnots is the horizontal ground speed computed in single precision from
// the most significant velocity words.
func (w Word) SpeedKnots() float64 {
	vx, vy := float32(w.VxMSW), float32(w.VyMSW)
	return float64(float32(fpsToKnots) * float32(math.Sqrt(float64(vx*vx+vy*vy))))
}
