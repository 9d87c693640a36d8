package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gkstore/gkrec"
	"github.com/grailbio/gkstore/internal/storeio"
)

// Location names where one read's encoded blob landed: which segment file
// and the byte offset within it, the two values stash_read_data must write
// back into the owning read record (spec.md §4.1, §4.2).
type Location struct {
	Segment int
	Offset  uint32
}

// Writer appends encoded read blobs across a rolling sequence of
// fixed-named segment files, closing and opening the next segment when a
// write would push the current one past gkrec.MaxSegmentBytes -- this is
// what keeps m_byte representable in 30 bits (spec.md §4.1).
type Writer struct {
	mu sync.Mutex

	ctx       context.Context
	storePath string

	segm   int
	offset uint32
	out    file.File
	w      interface{ Write([]byte) (int, error) }
}

// NewWriter creates the first blob segment file it writes under
// storePath (replacing any existing file of that name), ready to accept
// Append calls. segm is the segment index to start writing at, used by
// extend mode to continue past an already-populated store rather than
// starting over at blobs.0001.
func NewWriter(ctx context.Context, storePath string, segm int) (*Writer, error) {
	w := &Writer{ctx: ctx, storePath: storePath, segm: segm}
	if err := w.openSegment(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openSegment() error {
	path := storeio.BlobSegmentPath(w.storePath, w.segm)
	out, err := file.Create(w.ctx, path)
	if err != nil {
		return errors.E(err, fmt.Sprintf("blob: create segment %s", path))
	}
	w.out = out
	w.w = out.Writer(w.ctx)
	w.offset = 0
	log.Debug.Printf("blob: opened segment %s for writing", path)
	return nil
}

// Append writes rd's encoded blob, rolling over to a new segment first if
// the write would exceed gkrec.MaxSegmentBytes, and returns the location
// the caller must record on the owning read.
func (w *Writer) Append(rd ReadData) (Location, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := Encode(rd)
	if len(buf) > gkrec.MaxSegmentBytes {
		return Location{}, errors.E(errors.Invalid, fmt.Sprintf("blob: encoded read %q is %d bytes, exceeds %d-byte segment cap", rd.Name, len(buf), gkrec.MaxSegmentBytes))
	}
	if uint64(w.offset)+uint64(len(buf)) > uint64(gkrec.MaxSegmentBytes) {
		if err := w.rollover(); err != nil {
			return Location{}, err
		}
	}
	loc := Location{Segment: w.segm, Offset: w.offset}
	n, err := w.w.Write(buf)
	if err != nil || n != len(buf) {
		return Location{}, errors.E(errors.Integrity, fmt.Sprintf("blob: short write to segment %d at offset %d: %v", w.segm, w.offset, err))
	}
	w.offset += uint32(len(buf))
	return loc, nil
}

func (w *Writer) rollover() (err error) {
	file.CloseAndReport(w.ctx, w.out, &err)
	w.out = nil
	if err != nil {
		return err
	}
	w.segm++
	if w.segm >= gkrec.MaxSegments {
		return errors.E(errors.Invalid, fmt.Sprintf("blob: segment index %d exceeds %d-file limit", w.segm, gkrec.MaxSegments))
	}
	return w.openSegment()
}

// Close flushes and closes the current segment file. Segment returns the
// index of the last segment written, used by extend mode to record where
// a subsequent writer should resume.
func (w *Writer) Close() (segment int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out == nil {
		return w.segm, nil
	}
	file.CloseAndReport(w.ctx, w.out, &err)
	w.out = nil
	return w.segm, err
}
