package ch10

import "time"

// Direction of a 1553 transfer relative to the remote terminal.
type Direction uint8

const (
	Receive  Direction = 0
	Transmit Direction = 1
)

func (d Direction) String() string {
	if d == Transmit {
		return "T"
	}
	return "R"
}

// CommandWord holds the fields of a decoded MIL-STD-1553 command word.
type CommandWord struct {
	RT         uint8     `json:"rt"`
	Direction  Direction `json:"tr"`
	SubAddress uint8     `json:"sa"`
	Count      uint8     `json:"count"` // word count or mode code field
}

// IsModeCode reports whether the command word addresses a mode code subaddress.
func (c CommandWord) IsModeCode() bool {
	return c.SubAddress == 0 || c.SubAddress == 31
}

// WordCount returns the number of data words that follow the command word.
// A word count field of zero means 32 words. Mode codes 16 through 31 carry
// a single data word, the others carry none.
func (c CommandWord) WordCount() int {
	if c.IsModeCode() {
		if c.Count&0x10 != 0 {
			return 1
		}
		return 0
	}
	if c.Count == 0 {
		return 32
	}
	return int(c.Count & 0x1f)
}

// BlockStatus holds the per-message error and bus flags from the intra-packet
// header.
type BlockStatus struct {
	BusB           bool `json:"busB,omitempty"`
	MsgError       bool `json:"msgError,omitempty"`
	RT2RT          bool `json:"rt2rt,omitempty"`
	FormatError    bool `json:"formatError,omitempty"`
	RespTimeout    bool `json:"respTimeout,omitempty"`
	WordCountError bool `json:"wordCountError,omitempty"`
	SyncError      bool `json:"syncError,omitempty"`
	WordError      bool `json:"wordError,omitempty"`
}

// BusID returns "A" or "B".
func (s BlockStatus) BusID() string {
	if s.BusB {
		return "B"
	}
	return "A"
}

// Message is one decoded 1553 message from a MIL1553Fmt1 packet.
//
// For RT to RT transfers Command1 is the receive command and Command2 the
// transmit command.
type Message struct {
	Command1 CommandWord  `json:"cmd1"`
	Command2 *CommandWord `json:"cmd2,omitempty"`
	Status   BlockStatus  `json:"status"`
	TTB      uint8        `json:"ttb"`
	RelTime  int64        `json:"relTime"`
	Time     time.Time    `json:"time"`
	Words    []uint16     `json:"words"`
}

// IsRT2RT reports whether the message is an RT to RT transfer.
func (m *Message) IsRT2RT() bool {
	return m.Status.RT2RT && m.Command2 != nil
}

// DataWords returns the message data words, limited to the count announced by
// the first command word.
func (m *Message) DataWords() []uint16 {
	n := m.Command1.WordCount()
	if n > len(m.Words) {
		n = len(m.Words)
	}
	return m.Words[:n]
}
