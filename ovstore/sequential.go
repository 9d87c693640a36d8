// Package ovstore implements the overlap store builders of spec.md §4.4
// and §4.5: a sequential builder that consumes a single globally sorted
// stream, and a parallel bucket-shuffle builder that fans the sort out
// across independent slice jobs before a final merge pass.
package ovstore

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovfile"
	"github.com/grailbio/gkstore/ovrec"
)

// defaultSegmentRecordCap keeps a data segment under roughly 1 GiB of
// records, mirroring the blob segment's own 1 GiB rollover threshold
// (spec.md §4.4's "each <= 1 GiB of records").
const defaultSegmentRecordCap = (1 << 30) / ovrec.OverlapSize

// SequentialBuildOpts configures a SequentialBuilder.
type SequentialBuildOpts struct {
	// SegmentRecordCap caps how many records one data segment holds
	// before rollover. Zero means defaultSegmentRecordCap.
	SegmentRecordCap int
}

func (o SequentialBuildOpts) cap() int {
	if o.SegmentRecordCap > 0 {
		return o.SegmentRecordCap
	}
	return defaultSegmentRecordCap
}

// SequentialBuilder consumes a totally ordered stream of overlap records
// (sorted by (a_iid, b_iid), strictly non-decreasing on a_iid) and emits
// data segments, a primary index, an info header, and a histogram
// (spec.md §4.4).
type SequentialBuilder struct {
	ctx  context.Context
	path string
	opts SequentialBuildOpts

	segNum   int
	segCount int
	w        *ovfile.Writer

	haveCur bool
	cur     ovrec.Offt

	index     []ovrec.Offt
	hist      *ovfile.Histogram
	overlapID uint64
	smallest  uint32
	largest   uint32
	total     uint64
	started   bool
}

// NewSequentialBuilder opens path (which must not already contain a
// sealed store) and returns a builder ready to accept Add calls.
func NewSequentialBuilder(ctx context.Context, path string, opts SequentialBuildOpts) (*SequentialBuilder, error) {
	if storeio.Exists(ctx, storeio.OvInfoPath(path)) {
		return nil, errors.E(errors.Exists, fmt.Sprintf("ovstore: create: store already exists at %s", path))
	}
	b := &SequentialBuilder{ctx: ctx, path: path, opts: opts, hist: ovfile.NewHistogram()}
	if err := b.openSegment(); err != nil {
		return nil, err
	}
	placeholder := ovrec.Info{Magic: ovrec.MagicPlaceholder, Version: 1, RecordSize: ovrec.OverlapSize}
	if err := writeInfo(ctx, path, &placeholder); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *SequentialBuilder) openSegment() error {
	w, err := ovfile.NewWriter(b.ctx, storeio.OvSegmentPath(b.path, b.segNum+1), ovfile.NormalWrite, ovfile.Uncompressed)
	if err != nil {
		return err
	}
	b.w = w
	b.segCount = 0
	return nil
}

// Add appends one overlap record. Records must arrive non-decreasing on
// a_iid (and, within one a_iid group, already ordered on b_iid by the
// caller); a decrease fails OutOfOrder (spec.md §4.4 step 2).
func (b *SequentialBuilder) Add(o ovrec.Overlap) error {
	if b.haveCur && o.AIID < b.cur.AIID {
		return errors.E(errors.Invalid, fmt.Sprintf("ovstore: out-of-order a_iid %d after %d", o.AIID, b.cur.AIID))
	}
	if !b.started {
		b.started = true
		b.smallest = o.AIID
	}
	if b.haveCur && o.AIID != b.cur.AIID {
		if err := b.flushCurrent(o.AIID); err != nil {
			return err
		}
	}
	if !b.haveCur {
		// Rollover is only considered between groups, never mid-group: an
		// a_iid's overlaps must all land in one segment so fileno/offset
		// unambiguously names where the group starts (spec.md §4.1's
		// "no chunk may straddle segments" rule, applied here to groups).
		if b.segCount >= b.opts.cap() {
			if err := b.w.Close(); err != nil {
				return err
			}
			b.w.TransferHistogram(b.hist)
			b.segNum++
			if err := b.openSegment(); err != nil {
				return err
			}
		}
		b.cur = ovrec.Offt{AIID: o.AIID, Fileno: uint32(b.segNum + 1), Offset: uint32(b.segCount), OverlapID: b.overlapID}
		b.haveCur = true
	}

	if err := b.w.WriteOverlap(o, 0); err != nil {
		return err
	}
	b.segCount++
	b.cur.NumOlaps++
	b.overlapID++
	b.total++
	if o.AIID > b.largest {
		b.largest = o.AIID
	}
	return nil
}

// flushCurrent finishes the in-progress offt for b.cur.AIID, fills the
// gap up to (but not including) nextAIID with zero-count placeholders
// (spec.md §4.4 step 3), then clears haveCur so Add starts a fresh group.
func (b *SequentialBuilder) flushCurrent(nextAIID uint32) error {
	b.index = append(b.index, b.cur)
	for id := b.cur.AIID + 1; id < nextAIID; id++ {
		b.index = append(b.index, ovrec.Placeholder(id, b.cur.Fileno, b.cur.Offset+b.cur.NumOlaps, b.overlapID))
	}
	b.haveCur = false
	return nil
}

// Close flushes the final offt, writes the info header, and saves the
// histogram (spec.md §4.4 step 4).
func (b *SequentialBuilder) Close() error {
	if b.haveCur {
		b.index = append(b.index, b.cur)
		b.haveCur = false
	}
	if b.w != nil {
		if err := b.w.Close(); err != nil {
			return err
		}
		b.w.TransferHistogram(b.hist)
	}
	if err := writeIndex(b.ctx, b.path, b.index); err != nil {
		return err
	}
	info := ovrec.Info{
		SmallestID:  b.smallest,
		LargestID:   b.largest,
		NumOverlaps: b.total,
		Magic:       ovrec.Magic,
		Version:     1,
		RecordSize:  ovrec.OverlapSize,
	}
	if err := writeInfo(b.ctx, b.path, &info); err != nil {
		return err
	}
	if err := saveHistogram(b.ctx, b.path, b.hist); err != nil {
		return err
	}
	log.Debug.Printf("ovstore: sealed %s: %d overlaps, a_iid [%d,%d]", b.path, b.total, b.smallest, b.largest)
	return nil
}

func writeIndex(ctx context.Context, path string, index []ovrec.Offt) error {
	return storeio.WriteAll(ctx, storeio.OvIndexPath(path), marshalIndexEntries(index))
}

func writeInfo(ctx context.Context, path string, info *ovrec.Info) error {
	buf := make([]byte, ovrec.InfoSize)
	info.Marshal(buf)
	return storeio.WriteAll(ctx, storeio.OvInfoPath(path), buf)
}
