package flight

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/roman-kulish/firefly/internal/ch10"
	"github.com/roman-kulish/firefly/internal/storage"
)

// RawMessages are the stored 1553 messages of one dataset or link.
type RawMessages struct {
	Path string
	Rows []storage.MessageRow
}

// ReadRawMessages reads the 1553 messages at loc recorded within the time span
// of segment s. A partial location reads every dataset below it. Links are read
// only when their dataset is outside the location.
func ReadRawMessages(ctx context.Context, store storage.Store, s *Segment, loc Location) ([]RawMessages, error) {
	path, err := ChannelPath(ch10.MIL1553Fmt1, loc)
	if err != nil {
		return nil, err
	}
	paths, err := rawPaths(ctx, store, path)
	if err != nil {
		return nil, err
	}

	var out []RawMessages
	for _, p := range paths {
		r, err := store.ReadMessages(ctx, p, storage.WithTimeRange(s.Start(), s.End()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		rows, err := storage.ReadAll(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		out = append(out, RawMessages{Path: p, Rows: rows})
	}
	return out, nil
}

func rawPaths(ctx context.Context, store storage.Store, path string) ([]string, error) {
	ds, err := store.Dataset(ctx, path)
	if err == nil {
		if ds.Kind != storage.KindMIL1553 {
			return nil, fmt.Errorf("%s: %w", path, storage.ErrKindMismatch)
		}
		return []string{path}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	prefix := path + "/"
	datasets, err := store.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var paths []string
	for _, d := range datasets {
		if d.Kind == storage.KindMIL1553 && strings.HasPrefix(d.Path, prefix) {
			seen[d.Path] = true
			paths = append(paths, d.Path)
		}
	}

	links, err := store.Links(ctx)
	if err != nil {
		return nil, err
	}
	for alias, target := range links {
		if strings.HasPrefix(alias, prefix) && !seen[target] {
			seen[target] = true
			paths = append(paths, alias)
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no 1553 data under %s: %w", path, storage.ErrNotFound)
	}
	slices.Sort(paths)
	return paths, nil
}

var rawHeader = []string{
	"channel", "time", "timestamp", "msg_error", "ttb", "word_error", "sync_error",
	"word_count_error", "rsp_tout", "format_error", "bus_id", "packet_version", "words",
}

// WriteRawCSV writes 1553 messages with a header row. Data words are
// space separated four digit hex.
func WriteRawCSV(w io.Writer, messages []RawMessages) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rawHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(rawHeader))
	for _, m := range messages {
		for _, r := range m.Rows {
			record[0] = m.Path
			record[1] = strconv.FormatInt(r.Time, 10)
			record[2] = r.Timestamp
			record[3] = strconv.FormatBool(r.MsgError)
			record[4] = strconv.Itoa(int(r.TTB))
			record[5] = strconv.FormatBool(r.WordError)
			record[6] = strconv.FormatBool(r.SyncError)
			record[7] = strconv.FormatBool(r.WordCountError)
			record[8] = strconv.FormatBool(r.RespTimeout)
			record[9] = strconv.FormatBool(r.FormatError)
			record[10] = r.BusID
			record[11] = strconv.Itoa(int(r.PacketVersion))
			record[12] = hexWords(r.Messages)
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("writing message: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func hexWords(words []uint16) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%04x", w)
	}
	return b.String()
}
