package ch10

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
)

// ChannelType identifies packets of one data type on one channel.
type ChannelType struct {
	ChannelID uint16
	DataType  DataType
}

// ChannelCount is the number of packets seen for a ChannelType.
type ChannelCount struct {
	ChannelType
	Packets int
}

// Summary is an overview of a recording.
type Summary struct {
	Name        string
	Packets     int
	RCCVersion  uint8
	TMATS       map[string]string
	Start, Stop time.Time // first and last data packet header times
	Channels    []ChannelCount
}

// Recorder and TMATS details looked up in the summary attributes.
func (s *Summary) RecorderManufacturer() string { return s.TMATS[`R-1\RI1`] }
func (s *Summary) RecorderModel() string        { return s.TMATS[`R-1\RI2`] }
func (s *Summary) RecordingDateTime() string    { return s.TMATS[`R-1\RI4`] }
func (s *Summary) RecorderFirmware() string     { return s.TMATS[`R-1\RI10`] }
func (s *Summary) TMATSVersion() string         { return s.TMATS[`G\106`] }
func (s *Summary) IndexingEnabled() bool        { return s.TMATS[`R-1\IDX\E`] == "T" }
func (s *Summary) EventsEnabled() bool          { return s.TMATS[`R-1\EV\E`] == "T" }

// RCCVersionString maps the data version code to the IRIG 106 edition.
func RCCVersionString(v uint8) string {
	switch v {
	case 0:
		return "106-05 or earlier"
	case 7:
		return "106-07"
	case 8:
		return "106-09"
	case 9:
		return "106-11"
	case 10:
		return "106-13"
	case 11:
		return "106-15"
	case 12:
		return "106-17"
	case 13:
		return "106-19"
	default:
		return "Unknown"
	}
}

// Summarize reads the whole recording once and counts packets per channel
// and data type.
func Summarize(ctx context.Context, src Source) (summary *Summary, err error) {
	r, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", src.Name(), err)
	}
	defer func() {
		if cErr := r.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	counts := make(map[ChannelType]int)
	s := &Summary{Name: src.Name(), TMATS: map[string]string{}}
	for r.Next(ctx) {
		p := r.Packet()
		s.Packets++
		counts[ChannelType{ChannelID: p.ChannelID, DataType: p.DataType}]++

		if p.DataType == TMATS {
			body, err := TMATSBody(p)
			if err != nil {
				return nil, fmt.Errorf("packet #%d: %w", s.Packets, err)
			}
			attrs, _ := ParseTMATS(body)
			s.TMATS = TMATSMap(attrs)
			s.RCCVersion, _ = TMATSVersion(p)
		}
		if !p.IsIndex() {
			if s.Start.IsZero() {
				s.Start = p.Time
			}
			s.Stop = p.Time
		}
	}
	if err = r.Error(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.Name(), err)
	}

	for ct, n := range counts {
		s.Channels = append(s.Channels, ChannelCount{ChannelType: ct, Packets: n})
	}
	slices.SortFunc(s.Channels, func(a, b ChannelCount) int {
		if c := cmp.Compare(a.ChannelID, b.ChannelID); c != 0 {
			return c
		}
		return cmp.Compare(a.DataType, b.DataType)
	})
	return s, nil
}
