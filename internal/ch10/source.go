package ch10

import (
	"context"
	"errors"
)

// ErrClosed is returned when a reader is used after Close.
var ErrClosed = errors.New("reader closed")

// Source is a recording that can be traversed from the start any number of
// times, each traversal producing the same packets in the same order.
type Source interface {
	// Name returns the recording file name, without directories.
	Name() string

	// Open starts a new traversal from the first packet.
	Open(ctx context.Context) (Reader, error)
}

// Reader is a single forward traversal of a Source.
type Reader interface {
	// Next advances to the next packet and returns false at the end of the
	// recording or on error.
	Next(context.Context) bool

	// Packet returns the current packet. It is only valid until the next call
	// to Next.
	Packet() *Packet

	// Error returns the error that stopped the iteration, if any.
	Error() error

	// Close releases the underlying resources.
	Close() error
}

// MemorySource is a Source backed by a slice of packets.
type MemorySource struct {
	name    string
	packets []Packet
}

func NewMemorySource(name string, packets []Packet) *MemorySource {
	return &MemorySource{name: name, packets: packets}
}

func (s *MemorySource) Name() string {
	return s.name
}

func (s *MemorySource) Open(context.Context) (Reader, error) {
	return &memoryReader{packets: s.packets, pos: -1}, nil
}

type memoryReader struct {
	packets []Packet
	pos     int
	closed  bool
	err     error
}

func (r *memoryReader) Next(ctx context.Context) bool {
	if r.closed {
		r.err = ErrClosed
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if r.pos+1 >= len(r.packets) {
		return false
	}
	r.pos++
	return true
}

func (r *memoryReader) Packet() *Packet {
	if r.pos < 0 || r.pos >= len(r.packets) {
		return nil
	}
	return &r.packets[r.pos]
}

func (r *memoryReader) Error() error {
	return r.err
}

func (r *memoryReader) Close() error {
	r.closed = true
	return nil
}
