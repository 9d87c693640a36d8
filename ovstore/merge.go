package ovstore

import (
	"context"

	"github.com/grailbio/base/log"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovfile"
	"github.com/grailbio/gkstore/ovrec"
)

// MergeOpts configures MergeSlices.
type MergeOpts struct {
	FileLimit int
	// MaxAIID is the largest a_iid the bucket stage partitioned over; it
	// must match whatever value fed SliceForAIID during bucketing so an
	// entirely empty slice's a_iid range can still be located and padded
	// (spec.md §8 scenario 4). Zero disables range-aware padding for an
	// empty slice (only the gap between consecutive non-empty slices is
	// still filled).
	MaxAIID uint32
}

func sliceBounds(s, fileLimit int, maxAIID uint32) (lo, hi uint32) {
	if maxAIID == 0 || fileLimit <= 0 {
		return 0, 0
	}
	perSlice := (maxAIID + uint32(fileLimit) - 1) / uint32(fileLimit)
	if perSlice == 0 {
		perSlice = 1
	}
	lo = uint32(s-1)*perSlice + 1
	hi = uint32(s) * perSlice
	if hi > maxAIID {
		hi = maxAIID
	}
	if lo > maxAIID {
		return 0, 0
	}
	return lo, hi
}

// MergeSlices is the merge stage (spec.md §4.5 stage 3): it splices each
// slice's {s}.index into one global index, renumbering overlapID so it
// runs contiguously across the whole store, and sums each {s}.info and
// {s}.histogram into the store-wide info and histogram.
func MergeSlices(ctx context.Context, path string, opts MergeOpts) error {
	var (
		mergedIndex []ovrec.Offt
		lastReal    ovrec.Offt
		haveReal    bool
		globalID    uint64
		total       uint64
		smallest    uint32
		largest     uint32
		started     bool
	)
	hist := ovfile.NewHistogram()

	// spec.md §4.5 stage 3 step 1: pre-write one placeholder offt for
	// a_iid = 0 before any slice is merged in.
	mergedIndex = append(mergedIndex, ovrec.Placeholder(0, 0, 0, 0))

	pad := func(from, to uint32) {
		if from > to {
			return
		}
		fileno, offset := uint32(0), uint32(0)
		if haveReal {
			fileno, offset = lastReal.Fileno, lastReal.Offset+lastReal.NumOlaps
		}
		for id := from; id <= to; id++ {
			mergedIndex = append(mergedIndex, ovrec.Placeholder(id, fileno, offset, globalID))
		}
	}

	for s := 1; s <= opts.FileLimit; s++ {
		info, err := readSliceInfo(ctx, path, s)
		if err != nil {
			return err
		}
		_, hi := sliceBounds(s, opts.FileLimit, opts.MaxAIID)

		if info.NumOverlaps == 0 {
			from := uint32(1)
			if started {
				from = largest + 1
			}
			if hi > 0 {
				pad(from, hi)
				largest = hi
				started = true
			}
			continue
		}

		index, err := readSliceIndex(ctx, path, s)
		if err != nil {
			return err
		}
		from := uint32(1)
		if started {
			from = largest + 1
		}
		if info.SmallestID > from {
			pad(from, info.SmallestID-1)
		}
		for _, e := range index {
			e.OverlapID += globalID
			mergedIndex = append(mergedIndex, e)
			if e.NumOlaps > 0 {
				lastReal = e
				haveReal = true
			}
		}
		globalID += info.NumOverlaps
		if !started {
			smallest = info.SmallestID
		}
		largest = info.LargestID
		started = true
		total += info.NumOverlaps

		if sliceHist, err := loadHistogramAt(ctx, storeio.OvSliceHistogramPath(path, s)); err == nil {
			hist.Merge(sliceHist)
		}
	}

	if err := storeio.WriteAll(ctx, storeio.OvIndexPath(path), marshalIndexEntries(mergedIndex)); err != nil {
		return err
	}
	info := ovrec.Info{
		SmallestID:  smallest,
		LargestID:   largest,
		NumOverlaps: total,
		Magic:       ovrec.Magic,
		Version:     1,
		RecordSize:  ovrec.OverlapSize,
	}
	if err := writeInfo(ctx, path, &info); err != nil {
		return err
	}
	if err := saveHistogram(ctx, path, hist); err != nil {
		return err
	}
	log.Debug.Printf("ovstore: merge: %s: %d overlaps across %d slices, a_iid [%d,%d]", path, total, opts.FileLimit, smallest, largest)
	return nil
}
