// Package transcode copies the bus and video data of a recording into a
// store, one fixed-size dataset per logical channel.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/roman-kulish/firefly/internal/ch10"
	"github.com/roman-kulish/firefly/internal/channel"
	"github.com/roman-kulish/firefly/internal/storage"
)

const defaultBatchSize = 1000

var (
	// ErrUnknownChannel is returned when the second pass meets a channel the
	// schema does not list.
	ErrUnknownChannel = errors.New("channel not in schema")

	// ErrChannelOverflow is returned when a channel receives more entries
	// than the schema announced.
	ErrChannelOverflow = errors.New("channel holds more entries than counted")
)

// FillMismatchError reports a channel whose written entries differ from the
// count established by the schema.
type FillMismatchError struct {
	Channel  string
	Expected int
	Written  int
}

func (e *FillMismatchError) Error() string {
	return fmt.Sprintf("channel %s: wrote %d of %d entries", e.Channel, e.Written, e.Expected)
}

// FrameSizeError reports a video frame that is not one transport stream
// packet.
type FrameSizeError struct {
	Channel string
	Packet  int // position of the packet in the recording, from 1
	Frame   int // position of the frame in the packet, from 1
	Size    int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("channel %s: packet %d, frame %d: %d bytes, want %d",
		e.Channel, e.Packet, e.Frame, e.Size, ch10.VideoFrameSize)
}

// Option configures Fill and Transcode.
type Option func(*options)

type options struct {
	logger    zerolog.Logger
	batchSize int
	now       func() time.Time
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBatchSize sets the number of entries buffered per channel before they
// are written in a single transaction.
func WithBatchSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:    zerolog.Nop(),
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result describes a completed fill.
type Result struct {
	Packets    int
	Messages   int
	Frames     int
	Datasets   int
	Links      int
	RCCVersion uint8
	TMATS      int // number of stored TMATS attributes

	// Start and End are the header times of the first and last data packets,
	// ignoring TMATS and recording index packets. Both are zero when the
	// recording holds no such packet.
	Start time.Time
	End   time.Time
}

// cursor is the forward write position of one dataset.
type cursor struct {
	dataset  *storage.Dataset
	expected int
	written  int
	rows     []storage.MessageRow
	frames   [][]byte
}

func (c *cursor) pending() int {
	return len(c.rows) + len(c.frames)
}

// reserve checks that the channel has room for one more entry.
func (c *cursor) reserve() error {
	if c.written+c.pending() >= c.expected {
		return fmt.Errorf("%s: %w", c.dataset.Path, ErrChannelOverflow)
	}
	return nil
}

type filler struct {
	*options

	store   storage.Store
	cursors map[string]*cursor
	order   []string
	result  Result
}

// Fill materializes a dataset for every channel in schema, then traverses src
// a second time and writes each message and video frame at its channel's next
// free index. Fill fails if any channel ends up with a different number of
// entries than the schema announced.
func Fill(ctx context.Context, src ch10.Source, schema *channel.Schema, store storage.Store, opts ...Option) (result *Result, err error) {
	f := &filler{
		options: newOptions(opts),
		store:   store,
		cursors: make(map[string]*cursor, schema.Len()),
	}

	if err = f.materialize(ctx, schema); err != nil {
		return nil, err
	}

	r, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", src.Name(), err)
	}
	defer func() {
		if cErr := r.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", src.Name(), cErr)
		}
	}()

	for n := 1; r.Next(ctx); n++ {
		if err = f.handlePacket(ctx, n, r.Packet()); err != nil {
			return nil, err
		}
	}
	if err = r.Error(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.Name(), err)
	}

	for _, path := range f.order {
		c := f.cursors[path]
		if err = f.flush(ctx, c); err != nil {
			return nil, err
		}
		if c.written != c.expected {
			return nil, &FillMismatchError{Channel: path, Expected: c.expected, Written: c.written}
		}
	}

	f.logger.Info().
		Int("packets", f.result.Packets).
		Int("messages", f.result.Messages).
		Int("frames", f.result.Frames).
		Msg("recording data stored")

	return &f.result, nil
}

func (f *filler) materialize(ctx context.Context, schema *channel.Schema) error {
	for _, group := range []string{storage.RawGroup, storage.DerivedGroup} {
		if err := f.store.CreateGroup(ctx, group); err != nil {
			return fmt.Errorf("creating group: %w", err)
		}
	}

	for _, e := range schema.Entries() {
		path := RawPath(e.Key)

		kind, description := storage.KindMIL1553, "MIL-STD-1553 messages"
		if _, ok := e.Kind.(channel.Video); ok {
			kind, description = storage.KindVideo, "MPEG-2 transport stream"
		}

		ds, err := f.store.CreateDataset(ctx, path, kind, e.Kind.ExpectedCount(), description)
		if err != nil {
			return fmt.Errorf("creating dataset: %w", err)
		}
		f.result.Datasets++
		f.logger.Debug().Str("dataset", path).Int("length", ds.Length).Msg("dataset created")

		if bus, ok := e.Kind.(channel.Bus1553); ok {
			for _, alias := range bus.Aliases {
				if err = f.store.CreateLink(ctx, ds, RawPath(alias)); err != nil {
					return fmt.Errorf("creating link: %w", err)
				}
				f.result.Links++
			}
		}

		f.cursors[e.Key.Path()] = &cursor{dataset: ds, expected: e.Kind.ExpectedCount()}
		f.order = append(f.order, e.Key.Path())
	}
	return nil
}

// RawPath returns the store location of a channel.
func RawPath(k channel.Key) string {
	return storage.RawGroup + "/" + k.Path()
}

func (f *filler) handlePacket(ctx context.Context, n int, p *ch10.Packet) error {
	f.result.Packets++
	if !p.IsIndex() {
		if f.result.Start.IsZero() {
			f.result.Start = p.Time
		}
		f.result.End = p.Time
	}

	switch p.DataType {
	case ch10.TMATS:
		return f.handleTMATS(ctx, n, p)

	case ch10.MIL1553Fmt1:
		for i := range p.Messages {
			m := &p.Messages[i]
			primary, _ := channel.Keys(p.ChannelID, m)
			c, err := f.cursor(primary)
			if err == nil {
				err = c.reserve()
			}
			if err != nil {
				return fmt.Errorf("packet %d, message %d: %w", n, i+1, err)
			}
			c.rows = append(c.rows, messageRow(p, m))
			f.result.Messages++
			if err = f.maybeFlush(ctx, c); err != nil {
				return err
			}
		}

	case ch10.VideoFmt0:
		c, err := f.cursor(channel.VideoKey(p.ChannelID))
		if err != nil {
			return fmt.Errorf("packet %d: %w", n, err)
		}
		for i, frame := range p.Frames {
			if len(frame) != ch10.VideoFrameSize {
				return &FrameSizeError{Channel: c.dataset.Path, Packet: n, Frame: i + 1, Size: len(frame)}
			}
			if err = c.reserve(); err != nil {
				return fmt.Errorf("packet %d: %w", n, err)
			}
			c.frames = append(c.frames, slices.Clone(frame))
			f.result.Frames++
			if err = f.maybeFlush(ctx, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *filler) cursor(k channel.Key) (*cursor, error) {
	path := k.Path()
	c, ok := f.cursors[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownChannel)
	}
	return c, nil
}

func (f *filler) maybeFlush(ctx context.Context, c *cursor) error {
	if c.pending() < f.batchSize {
		return nil
	}
	return f.flush(ctx, c)
}

func (f *filler) flush(ctx context.Context, c *cursor) error {
	switch {
	case len(c.rows) > 0:
		if err := f.store.WriteMessages(ctx, c.dataset, c.written, c.rows); err != nil {
			return fmt.Errorf("writing messages: %w", err)
		}
		c.written += len(c.rows)
		c.rows = c.rows[:0]

	case len(c.frames) > 0:
		if err := f.store.WriteFrames(ctx, c.dataset, c.written, c.frames); err != nil {
			return fmt.Errorf("writing frames: %w", err)
		}
		c.written += len(c.frames)
		c.frames = c.frames[:0]
	}
	return nil
}

func messageRow(p *ch10.Packet, m *ch10.Message) storage.MessageRow {
	ts := m.Time.UTC()
	return storage.MessageRow{
		Time:           ts.UnixNano(),
		Timestamp:      ts.Format(storage.TimestampLayout),
		MsgError:       m.Status.MsgError,
		TTB:            m.TTB,
		WordError:      m.Status.WordError,
		SyncError:      m.Status.SyncError,
		WordCountError: m.Status.WordCountError,
		RespTimeout:    m.Status.RespTimeout,
		FormatError:    m.Status.FormatError,
		BusID:          m.Status.BusID(),
		PacketVersion:  p.Version,
		Messages:       slices.Clone(m.DataWords()),
	}
}

func (f *filler) handleTMATS(ctx context.Context, n int, p *ch10.Packet) error {
	version, err := ch10.TMATSVersion(p)
	if err != nil {
		return fmt.Errorf("packet %d: %w", n, err)
	}
	body, err := ch10.TMATSBody(p)
	if err != nil {
		return fmt.Errorf("packet %d: %w", n, err)
	}

	attrs, issues := ch10.ParseTMATS(body)
	for _, issue := range issues {
		event := f.logger.Warn()
		if issue.Reason == ch10.IssueNoValue {
			event = f.logger.Debug()
		}
		event.Int("packet", n).Int("line", issue.Line).Str("text", issue.Text).Msg(issue.Reason)
	}

	values := make(map[string]any, len(attrs))
	for _, a := range attrs {
		values[a.Name] = a.Value
	}

	if err = f.store.CreateGroup(ctx, storage.TMATSGroup); err != nil {
		return fmt.Errorf("creating group: %w", err)
	}
	if err = f.store.SetAttributes(ctx, storage.TMATSGroup, values); err != nil {
		return fmt.Errorf("storing TMATS attributes: %w", err)
	}
	if err = f.store.SetAttributes(ctx, storage.RawGroup, map[string]any{storage.AttrRCCVersion: version}); err != nil {
		return fmt.Errorf("storing RCC version: %w", err)
	}
	if err = f.store.SetBlob(ctx, storage.TMATSBlobPath, body, "TMATS buffer"); err != nil {
		return fmt.Errorf("storing TMATS buffer: %w", err)
	}

	f.result.RCCVersion = version
	f.result.TMATS = len(values)
	f.logger.Info().Int("packet", n).Int("attributes", len(values)).Int("issues", len(issues)).Msg("TMATS stored")
	return nil
}
