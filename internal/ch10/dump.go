package ch10

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const zstdSuffix = ".zst"

// DumpSource reads a decoded packet dump: a stream of JSON encoded packets,
// one per line. Files with a ".zst" suffix are zstd compressed.
type DumpSource struct {
	path string
}

func NewDumpSource(path string) *DumpSource {
	return &DumpSource{path: path}
}

// Name returns the base name of the dump without the compression suffix.
func (s *DumpSource) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), zstdSuffix)
}

// Path returns the dump file path.
func (s *DumpSource) Path() string {
	return s.path
}

func (s *DumpSource) Open(ctx context.Context) (Reader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening dump: %w", err)
	}

	r := &dumpReader{file: f}
	if strings.HasSuffix(s.path, zstdSuffix) {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		r.zr = zr
		r.dec = json.NewDecoder(bufio.NewReader(zr))
	} else {
		r.dec = json.NewDecoder(bufio.NewReader(f))
	}
	return r, nil
}

type dumpReader struct {
	file *os.File
	zr   *zstd.Decoder
	dec  *json.Decoder

	current Packet
	count   int
	err     error
}

func (r *dumpReader) Next(ctx context.Context) bool {
	if r.err != nil || r.dec == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}

	r.current = Packet{}
	if err := r.dec.Decode(&r.current); err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("decoding packet #%d: %w", r.count+1, err)
		}
		return false
	}
	r.count++
	return true
}

func (r *dumpReader) Packet() *Packet {
	return &r.current
}

func (r *dumpReader) Error() error {
	return r.err
}

func (r *dumpReader) Close() error {
	if r.dec == nil {
		return nil
	}
	r.dec = nil
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}

// DumpWriter writes packets in the format read by DumpSource.
type DumpWriter struct {
	w   io.Writer
	zw  *zstd.Encoder
	buf *bufio.Writer
	enc *json.Encoder
}

// NewDumpWriter creates a writer on w. When compress is set the output is
// zstd compressed.
func NewDumpWriter(w io.Writer, compress bool) (*DumpWriter, error) {
	dw := &DumpWriter{w: w}
	out := w
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		dw.zw = zw
		out = zw
	}
	dw.buf = bufio.NewWriter(out)
	dw.enc = json.NewEncoder(dw.buf)
	return dw, nil
}

func (w *DumpWriter) Write(p *Packet) error {
	if err := w.enc.Encode(p); err != nil {
		return fmt.Errorf("encoding packet: %w", err)
	}
	return nil
}

// Close flushes buffered output. It does not close the underlying writer.
func (w *DumpWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing dump: %w", err)
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			return fmt.Errorf("closing zstd writer: %w", err)
		}
	}
	return nil
}

// WriteDumpFile writes packets to path, compressing when path ends in ".zst".
func WriteDumpFile(path string, packets []Packet) error {
	_, err := CopyDump(context.Background(), NewMemorySource(path, packets), path, nil)
	return err
}

// CopyDump streams the packets of src accepted by keep into a dump at path,
// compressing when path ends in ".zst". A nil keep accepts every packet. It
// returns the number of packets written.
func CopyDump(ctx context.Context, src Source, path string, keep func(*Packet) bool) (n int, err error) {
	r, err := src.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src.Name(), err)
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating dump: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	w, err := NewDumpWriter(f, strings.HasSuffix(path, zstdSuffix))
	if err != nil {
		return 0, err
	}
	for r.Next(ctx) {
		p := r.Packet()
		if keep != nil && !keep(p) {
			continue
		}
		if err = w.Write(p); err != nil {
			return n, err
		}
		n++
	}
	if err = r.Error(); err != nil {
		return n, fmt.Errorf("reading %s: %w", src.Name(), err)
	}
	return n, w.Close()
}
