// Package ovfile implements the typed, optionally compressed stream of
// fixed-width overlap records that both overlap store builders consume
// and produce (spec.md §4.3).
package ovfile

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/gkstore/ovrec"
	"github.com/klauspost/compress/gzip"
)

// Mode selects an ovfile stream's record shape and transport wrapper.
type Mode int

const (
	// NormalWrite streams bare ovrec.Overlap records.
	NormalWrite Mode = iota
	// Full streams records plus their owning partition, used by bucket
	// files carrying cross-partition overlaps (spec.md §4.3).
	Full
)

// Compression selects the transparent wrapper an ovfile stream reads or
// writes through.
type Compression int

const (
	Uncompressed Compression = iota
	Gzip
	Snappy
)

// FullRecord is the wire shape written under Full mode: an overlap plus
// the partition its A read belongs to, so a bucket-shuffle consumer can
// route it without consulting the read store.
type FullRecord struct {
	Overlap       ovrec.Overlap
	OwnerPartition uint32
}

const fullRecordSize = ovrec.OverlapSize + 4

// Writer appends overlap records to an underlying byte stream, optionally
// compressed, and accumulates a histogram of per-a_iid overlap counts as
// it goes.
type Writer struct {
	mode Mode
	hist *Histogram

	ctx   context.Context
	f     file.File
	wrap  io.Closer // non-nil for gzip/snappy; wraps f's raw writer
	w     io.Writer
	buf   *bufio.Writer
}

// NewWriter opens path for writing under the given mode/compression.
func NewWriter(ctx context.Context, path string, mode Mode, comp Compression) (*Writer, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("ovfile: create %s", path))
	}
	raw := f.Writer(ctx)
	w := &Writer{mode: mode, hist: NewHistogram(), ctx: ctx, f: f}
	switch comp {
	case Gzip:
		gw := gzip.NewWriter(raw)
		w.w = gw
		w.wrap = gw
	case Snappy:
		sw := snappy.NewBufferedWriter(raw)
		w.w = sw
		w.wrap = sw
	default:
		w.w = raw
	}
	w.buf = bufio.NewWriter(w.w)
	return w, nil
}

// RecordSize returns the on-disk size of one record under this writer's
// mode.
func (w *Writer) RecordSize() int {
	if w.mode == Full {
		return fullRecordSize
	}
	return ovrec.OverlapSize
}

// WriteOverlap appends one overlap record, tallying it into the writer's
// histogram. ownerPartition is only meaningful (and only written) under
// Full mode.
func (w *Writer) WriteOverlap(o ovrec.Overlap, ownerPartition uint32) error {
	w.hist.Add(o.AIID)
	var buf [fullRecordSize]byte
	o.Marshal(buf[:ovrec.OverlapSize])
	n := ovrec.OverlapSize
	if w.mode == Full {
		buf[n] = byte(ownerPartition)
		buf[n+1] = byte(ownerPartition >> 8)
		buf[n+2] = byte(ownerPartition >> 16)
		buf[n+3] = byte(ownerPartition >> 24)
		n += 4
	}
	if _, err := w.buf.Write(buf[:n]); err != nil {
		return errors.E(errors.Integrity, fmt.Sprintf("ovfile: short write: %v", err))
	}
	return nil
}

// TransferHistogram merges w's accumulated histogram into dst, the
// operation spec.md §4.3 calls out as run "on close."
func (w *Writer) TransferHistogram(dst *Histogram) {
	dst.Merge(w.hist)
}

// Close flushes buffered output and closes the underlying stream.
func (w *Writer) Close() (err error) {
	if err = w.buf.Flush(); err != nil {
		return err
	}
	if w.wrap != nil {
		if err = w.wrap.Close(); err != nil {
			return err
		}
	}
	return w.f.Close(w.ctx)
}

// Reader streams overlap records back out of a file written by Writer.
type Reader struct {
	mode Mode
	ctx  context.Context
	f    file.File
	r    io.Reader
	buf  []byte
}

// NewReader opens path for reading under the given mode/compression.
func NewReader(ctx context.Context, path string, mode Mode, comp Compression) (*Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	raw := f.Reader(ctx)
	r := &Reader{mode: mode, ctx: ctx, f: f}
	switch comp {
	case Gzip:
		gr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("ovfile: gzip open %s", path))
		}
		r.r = gr
	case Snappy:
		r.r = snappy.NewReader(raw)
	default:
		r.r = raw
	}
	size := ovrec.OverlapSize
	if mode == Full {
		size = fullRecordSize
	}
	r.buf = make([]byte, size)
	return r, nil
}

// RecordSize returns the on-disk size of one record under this reader's
// mode.
func (r *Reader) RecordSize() int { return len(r.buf) }

// ReadOverlap returns the next record, or ok=false at a clean EOF
// (spec.md's "read_overlap() -> o? (none at EOF)").
func (r *Reader) ReadOverlap() (o ovrec.Overlap, ownerPartition uint32, ok bool, err error) {
	n, rerr := io.ReadFull(r.r, r.buf)
	if rerr == io.EOF && n == 0 {
		return o, 0, false, nil
	}
	if rerr != nil {
		return o, 0, false, errors.E(errors.Integrity, fmt.Sprintf("ovfile: short read: %v", rerr))
	}
	o.Unmarshal(r.buf[:ovrec.OverlapSize])
	if r.mode == Full {
		b := r.buf[ovrec.OverlapSize:]
		ownerPartition = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	return o, ownerPartition, true, nil
}

// Close closes the underlying stream.
func (r *Reader) Close() error {
	return r.f.Close(r.ctx)
}
