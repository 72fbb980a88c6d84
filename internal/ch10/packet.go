package ch10

import (
	"fmt"
	"time"
)

// DataType is the IRIG 106 Chapter 10 packet data type code.
type DataType uint8

const (
	UserDefined      DataType = 0x00
	TMATS            DataType = 0x01
	RecordingEvent   DataType = 0x02
	RecordingIndex   DataType = 0x03
	PCMFmt1          DataType = 0x09
	IRIGTime         DataType = 0x11
	MIL1553Fmt1      DataType = 0x19
	MIL1553Fmt2      DataType = 0x1A
	AnalogFmt1       DataType = 0x21
	DiscreteFmt1     DataType = 0x29
	MessageFmt0      DataType = 0x30
	ARINC429Fmt0     DataType = 0x38
	VideoFmt0        DataType = 0x40
	VideoFmt1        DataType = 0x41
	VideoFmt2        DataType = 0x42
	ImageFmt0        DataType = 0x48
	ImageFmt1        DataType = 0x49
	UARTFmt0         DataType = 0x50
	IEEE1394Fmt0     DataType = 0x58
	IEEE1394Fmt1     DataType = 0x59
	ParallelFmt0     DataType = 0x60
	EthernetFmt0     DataType = 0x68
	TSPICTSFmt0      DataType = 0x70
	CANBusFmt0       DataType = 0x78
	FibreChannelFmt0 DataType = 0x79
)

var dataTypeNames = map[DataType]string{
	UserDefined:      "User Defined",
	TMATS:            "TMATS",
	RecordingEvent:   "Event",
	RecordingIndex:   "Index",
	PCMFmt1:          "PCM Format 1",
	IRIGTime:         "Time",
	MIL1553Fmt1:      "1553",
	MIL1553Fmt2:      "16PP194",
	AnalogFmt1:       "Analog",
	DiscreteFmt1:     "Discrete",
	MessageFmt0:      "Message",
	ARINC429Fmt0:     "ARINC 429",
	VideoFmt0:        "Video Format 0",
	VideoFmt1:        "Video Format 1",
	VideoFmt2:        "Video Format 2",
	ImageFmt0:        "Image Format 0",
	ImageFmt1:        "Image Format 1",
	UARTFmt0:         "UART",
	IEEE1394Fmt0:     "IEEE 1394 Format 0",
	IEEE1394Fmt1:     "IEEE 1394 Format 1",
	ParallelFmt0:     "Parallel",
	EthernetFmt0:     "Ethernet",
	TSPICTSFmt0:      "TSPI/CTS",
	CANBusFmt0:       "CAN Bus",
	FibreChannelFmt0: "Fibre Channel",
}

// String returns the human-readable name of the data type. The names of the
// 1553 and video format 0 types are also the top level of raw dataset paths.
func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Undefined (0x%02x)", uint8(t))
}

// VideoFrameSize is the size of a single MPEG-2 transport stream packet
// carried by video format 0 packets.
const VideoFrameSize = 188

// Packet is a decoded Chapter 10 packet. Only the payload fields that match
// the packet's data type are set.
type Packet struct {
	ChannelID uint16    `json:"channelID"`
	DataType  DataType  `json:"dataType"`
	Version   uint8     `json:"version"` // data type version from the packet header
	RelTime   int64     `json:"relTime"` // 48-bit relative time counter
	Time      time.Time `json:"time"`    // absolute time of the packet header

	Messages []Message `json:"messages,omitempty"` // MIL1553Fmt1
	Frames   [][]byte  `json:"frames,omitempty"`   // VideoFmt0, each VideoFrameSize bytes
	Data     []byte    `json:"data,omitempty"`     // TMATS and other raw payloads
}

// IsIndex reports whether the packet is bookkeeping rather than captured data.
func (p *Packet) IsIndex() bool {
	return p.DataType == RecordingIndex || p.DataType == TMATS
}
