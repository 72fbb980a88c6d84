package channel

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/roman-kulish/firefly/internal/ch10"
)

// Kind describes the storage a logical channel needs. It is either Bus1553
// or Video.
type Kind interface {
	// ExpectedCount is the exact number of entries the channel holds.
	ExpectedCount() int
	isKind()
}

// Bus1553 is a channel of 1553 messages. Aliases are the receiver side keys
// of RT to RT transfers stored under this channel.
type Bus1553 struct {
	Count   int
	Aliases []Key
}

func (b Bus1553) ExpectedCount() int { return b.Count }
func (Bus1553) isKind()              {}

// Video is a channel of video transport stream frames.
type Video struct {
	Count int
}

func (v Video) ExpectedCount() int { return v.Count }
func (Video) isKind()              {}

// Entry is one primary logical channel.
type Entry struct {
	Key  Key
	Kind Kind
}

// Schema lists the primary channels of a recording, ordered by path. It is
// not modified after Build returns.
type Schema struct {
	entries []Entry
	index   map[string]int
}

// Entries returns a copy of the schema entries.
func (s *Schema) Entries() []Entry {
	return slices.Clone(s.entries)
}

// Lookup finds the entry of a primary channel path.
func (s *Schema) Lookup(path string) (Entry, bool) {
	i, ok := s.index[path]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of primary channels.
func (s *Schema) Len() int {
	return len(s.entries)
}

// Total returns the number of entries across all channels.
func (s *Schema) Total() (messages, frames int) {
	for _, e := range s.entries {
		switch k := e.Kind.(type) {
		case Bus1553:
			messages += k.Count
		case Video:
			frames += k.Count
		}
	}
	return
}

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger used to report inconsistent messages.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

type builder struct {
	logger zerolog.Logger

	keys    map[string]Key
	counts  map[string]int
	video   map[string]bool
	aliases map[string]map[string]Key
}

// Build makes a full pass over src and counts the entries of every logical
// channel. Only 1553 format 1 and video format 0 packets contribute.
func Build(ctx context.Context, src ch10.Source, options ...Option) (schema *Schema, err error) {
	b := &builder{
		logger:  zerolog.Nop(),
		keys:    make(map[string]Key),
		counts:  make(map[string]int),
		video:   make(map[string]bool),
		aliases: make(map[string]map[string]Key),
	}
	for _, option := range options {
		option(b)
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
		p := r.Packet()
		switch p.DataType {
		case ch10.MIL1553Fmt1:
			for i := range p.Messages {
				b.addMessage(n, i+1, p.ChannelID, &p.Messages[i])
			}

		case ch10.VideoFmt0:
			key := VideoKey(p.ChannelID)
			path := key.Path()
			b.keys[path] = key
			b.video[path] = true
			b.counts[path] += len(p.Frames)
			b.logger.Debug().Int("packet", n).Int("frames", len(p.Frames)).Str("channel", path).Msg("video packet")
		}
	}
	if err = r.Error(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", src.Name(), err)
	}

	return b.schema(), nil
}

func (b *builder) addMessage(packet, msg int, channelID uint16, m *ch10.Message) {
	if a, ok := CheckDirections(m); !ok {
		if a.FirstNotReceive {
			b.logger.Warn().Int("packet", packet).Int("message", msg).Msg(`first command word not "Receive"`)
		}
		if a.SecondNotTransmit {
			b.logger.Warn().Int("packet", packet).Int("message", msg).Msg(`second command word not "Transmit"`)
		}
	}

	primary, alias := Keys(channelID, m)
	path := primary.Path()
	b.keys[path] = primary
	b.counts[path]++

	if alias != nil {
		set, ok := b.aliases[path]
		if !ok {
			set = make(map[string]Key)
			b.aliases[path] = set
		}
		set[alias.Path()] = *alias
	}
}

func (b *builder) schema() *Schema {
	paths := slices.Sorted(maps.Keys(b.keys))

	s := &Schema{
		entries: make([]Entry, 0, len(paths)),
		index:   make(map[string]int, len(paths)),
	}
	for _, path := range paths {
		var kind Kind
		if b.video[path] {
			kind = Video{Count: b.counts[path]}
		} else {
			aliases := slices.Collect(maps.Values(b.aliases[path]))
			slices.SortFunc(aliases, func(x, y Key) int { return cmp.Compare(x.Path(), y.Path()) })
			kind = Bus1553{Count: b.counts[path], Aliases: aliases}
		}
		s.index[path] = len(s.entries)
		s.entries = append(s.entries, Entry{Key: b.keys[path], Kind: kind})
	}
	return s
}
