package ch10

import (
	"encoding/binary"
	"errors"
	"regexp"
	"strings"
)

// tmatsHeaderSize is the size of the channel specific data word in front of
// the TMATS text.
const tmatsHeaderSize = 4

var (
	ErrShortTMATS = errors.New("TMATS packet shorter than its channel specific header")

	lineSplit = regexp.MustCompile("\r?\n")
)

// Attribute is a single TMATS "name:value;" pair.
type Attribute struct {
	Name  string
	Value string
}

// LineIssue describes a TMATS line that was not parsed cleanly.
type LineIssue struct {
	Line   int // 1-based
	Text   string
	Reason string
}

const (
	IssueNoSemicolon = "attribute without ending semicolon"
	IssueNoValue     = "attribute value not given"
	IssueNoSeparator = "attribute without name/value separator"
)

// TMATSBody returns the TMATS text of a TMATS packet, without the channel
// specific data word.
func TMATSBody(p *Packet) ([]byte, error) {
	if len(p.Data) < tmatsHeaderSize {
		return nil, ErrShortTMATS
	}
	return p.Data[tmatsHeaderSize:], nil
}

// TMATSVersion returns the RCC 106 version announced in the channel specific
// data word of a TMATS packet.
func TMATSVersion(p *Packet) (uint8, error) {
	if len(p.Data) < tmatsHeaderSize {
		return 0, ErrShortTMATS
	}
	return uint8(binary.LittleEndian.Uint32(p.Data[:tmatsHeaderSize]) & 0xff), nil
}

// ParseTMATS splits TMATS text into attributes. A line missing the trailing
// semicolon is still parsed and reported. Attributes with an empty value and
// lines without a colon are skipped and reported.
func ParseTMATS(text []byte) ([]Attribute, []LineIssue) {
	var attrs []Attribute
	var issues []LineIssue

	for i, line := range lineSplit.Split(string(text), -1) {
		if line == "" {
			continue
		}
		if !strings.HasSuffix(line, ";") {
			issues = append(issues, LineIssue{Line: i + 1, Text: line, Reason: IssueNoSemicolon})
		}

		name, value, ok := strings.Cut(strings.TrimRight(line, ";"), ":")
		if !ok {
			issues = append(issues, LineIssue{Line: i + 1, Text: line, Reason: IssueNoSeparator})
			continue
		}
		if value == "" {
			issues = append(issues, LineIssue{Line: i + 1, Text: line, Reason: IssueNoValue})
			continue
		}
		attrs = append(attrs, Attribute{Name: name, Value: value})
	}
	return attrs, issues
}

// TMATSMap turns parsed attributes into a lookup map; later duplicates win.
func TMATSMap(attrs []Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a.Value
	}
	return m
}
