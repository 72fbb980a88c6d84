package storage

import (
	"database/sql"
	"time"
)

// Dataset kinds.
const (
	KindMIL1553 = "mil1553"
	KindVideo   = "video"
)

// Dataset is a fixed-length column set. Every index in [0, Length) is written
// exactly once.
type Dataset struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Length      int    `json:"length"`
	Description string `json:"description,omitempty"`
}

// MessageRow is one stored 1553 message.
type MessageRow struct {
	Time           int64    `json:"time"`      // Nanoseconds since the Unix epoch
	Timestamp      string   `json:"timestamp"` // Capture time as "2006/01/02 15:04:05.000000"
	MsgError       bool     `json:"msgError"`
	TTB            uint8    `json:"ttb"`
	WordError      bool     `json:"wordError"`
	SyncError      bool     `json:"syncError"`
	WordCountError bool     `json:"wordCountError"`
	RespTimeout    bool     `json:"rspTout"`
	FormatError    bool     `json:"formatError"`
	BusID          string   `json:"busID"`
	PacketVersion  uint8    `json:"packetVersion"`
	Messages       []uint16 `json:"messages"`
}

// TimestampLayout is the layout of MessageRow.Timestamp.
const TimestampLayout = "2006/01/02 15:04:05.000000"

// GetTime returns the row time.
func (r MessageRow) GetTime() int64 {
	return r.Time
}

type messageData struct {
	Time           int64
	Timestamp      string
	MsgError       int
	TTB            int
	WordError      int
	SyncError      int
	WordCountError int
	RespTimeout    int
	FormatError    int
	BusID          string
	PacketVersion  int
	Messages       []byte
}

type sampleData struct {
	Time      int64
	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64
	Altitude  sql.NullFloat64
	Speed     sql.NullFloat64
	Heading   sql.NullFloat64
	Roll      sql.NullFloat64
	Pitch     sql.NullFloat64
	GForce    sql.NullFloat64
}

// Info is an overview of the store content.
type Info struct {
	Attributes map[string]string
	TMATS      map[string]string
	Datasets   []Dataset
	Links      map[string]string // alias path to dataset path
	Samples    int
	Start, End time.Time // derived sample time span, zero without samples
}

// Root attribute names.
const (
	AttrCh10File             = "ch10_file"
	AttrCh10FileChecksum     = "ch10_file_checksum"
	AttrTimeCoverageStart    = "time_coverage_start"
	AttrTimeCoverageEnd      = "time_coverage_end"
	AttrDateCreated          = "date_created"
	AttrDateModified         = "date_modified"
	AttrDateMetadataModified = "date_metadata_modified"
	AttrAircraftType         = "aircraft_type"
	AttrAircraftID           = "aircraft_id"
	AttrFileID               = "file_id"
	AttrTakeoffLocation      = "takeoff_location"
	AttrLandingLocation      = "landing_location"
	AttrRCCVersion           = "rcc_version"
)

// AttributeTimeLayout is the layout of time valued attributes, ISO 8601 in UTC.
const AttributeTimeLayout = "2006-01-02T15:04:05.999999Z"
