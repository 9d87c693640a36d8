package ovstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovfile"
	"github.com/grailbio/gkstore/ovrec"
)

// SortSliceOpts configures SortSlice.
type SortSliceOpts struct {
	// JobIdxMax is the number of producer jobs the bucket stage ran
	// (jobIdx ranges over [1, JobIdxMax]).
	JobIdxMax int
	// FileLimit is the total number of slices in this build.
	FileLimit int
	// There is no compression setting: the sort stage tries the plain
	// form of each bucket file and then its .gz form (read as gzip),
	// since a mixed-compression run is legitimate (spec.md §4.5 stage 2).
}

// SortSlice is the sort stage's per-process entry point (spec.md §4.5
// stage 2): it gathers slice s's share from every bucket, sorts it in
// memory, and emits {s}, {s}.index, {s}.info, and {s}.histogram.
func SortSlice(ctx context.Context, path string, slice int, opts SortSliceOpts) error {
	claimed, totOvl, err := loadBucketSizes(ctx, path, opts.JobIdxMax, opts.FileLimit, slice)
	if err != nil {
		return err
	}

	records := make([][]ovfile.FullRecord, opts.JobIdxMax+1)
	err = traverse.Each(opts.JobIdxMax, func(i int) error {
		jobIdx := i + 1
		claimedCount, wasClaimed := claimed[jobIdx]
		recs, found, err := readBucketSlice(ctx, path, jobIdx, slice)
		if err != nil {
			return err
		}
		if !found {
			if wasClaimed {
				return errors.E(errors.Integrity, fmt.Sprintf("ovstore: bucket%04d/slice%04d: %s: sliceSizes claims %d records but no bucket file exists", jobIdx, slice, errMissingBucket, claimedCount))
			}
			return nil
		}
		if !wasClaimed {
			if len(recs) > 0 {
				return errors.E(errors.Integrity, fmt.Sprintf("ovstore: bucket%04d/slice%04d: unclaimed file has %d records", jobIdx, slice, len(recs)))
			}
			return nil
		}
		if uint64(len(recs)) != claimedCount {
			return errors.E(errors.Integrity, fmt.Sprintf("ovstore: bucket%04d/slice%04d: %s: claimed %d records, found %d", jobIdx, slice, errBucketSizeMismatch, claimedCount, len(recs)))
		}
		records[jobIdx] = recs
		return nil
	})
	if err != nil {
		return err
	}

	all := make([]ovfile.FullRecord, 0, totOvl)
	for _, recs := range records {
		all = append(all, recs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Overlap.Less(&all[j].Overlap) })

	return writeSortedSlice(ctx, path, slice, all)
}

var errBucketSizeMismatch = fmt.Errorf("BucketSizeMismatch")
var errMissingBucket = fmt.Errorf("MissingBucket")

// readBucketSlice opens jobIdx's slice{s} bucket file, trying both the
// compressed and uncompressed form, and streams it into memory. found is
// false only when neither form exists on disk at all; the caller decides
// whether that is a legitimate empty contribution (nothing claimed) or a
// MissingBucket failure (sliceSizes claimed records that never showed up).
// A file that exists but can't be opened/read is a distinct corruption
// failure, not MissingBucket.
func readBucketSlice(ctx context.Context, path string, jobIdx, slice int) (recs []ovfile.FullRecord, found bool, err error) {
	plain := storeio.BucketSlicePath(path, jobIdx, slice)
	gz := storeio.BucketSlicePathGz(path, jobIdx, slice)

	var (
		openPath string
		comp     ovfile.Compression
	)
	switch {
	case storeio.Exists(ctx, plain):
		openPath, comp = plain, ovfile.Uncompressed
	case storeio.Exists(ctx, gz):
		openPath, comp = gz, ovfile.Gzip
	default:
		return nil, false, nil
	}

	r, err := ovfile.NewReader(ctx, openPath, ovfile.Full, comp)
	if err != nil {
		return nil, true, errors.E(errors.Integrity, fmt.Sprintf("ovstore: %s: could not open bucket file: %v", openPath, err))
	}
	defer r.Close()

	var out []ovfile.FullRecord
	for {
		o, owner, ok, err := r.ReadOverlap()
		if err != nil {
			return nil, true, err
		}
		if !ok {
			break
		}
		out = append(out, ovfile.FullRecord{Overlap: o, OwnerPartition: owner})
	}
	return out, true, nil
}

// writeSortedSlice emits the per-slice data segment, index (with the
// same gap-filling discipline as the sequential builder), info, and
// histogram.
func writeSortedSlice(ctx context.Context, path string, slice int, sorted []ovfile.FullRecord) error {
	w, err := ovfile.NewWriter(ctx, storeio.OvSegmentPath(path, slice), ovfile.NormalWrite, ovfile.Uncompressed)
	if err != nil {
		return err
	}

	var (
		index     []ovrec.Offt
		haveCur   bool
		cur       ovrec.Offt
		overlapID uint64
		smallest  uint32
		largest   uint32
		started   bool
	)
	flush := func(nextAIID uint32) {
		index = append(index, cur)
		for id := cur.AIID + 1; id < nextAIID; id++ {
			index = append(index, ovrec.Placeholder(id, cur.Fileno, cur.Offset+cur.NumOlaps, overlapID))
		}
		haveCur = false
	}

	for i, rec := range sorted {
		o := rec.Overlap
		if !started {
			started = true
			smallest = o.AIID
		}
		if haveCur && o.AIID != cur.AIID {
			flush(o.AIID)
		}
		if !haveCur {
			cur = ovrec.Offt{AIID: o.AIID, Fileno: uint32(slice), Offset: uint32(i), OverlapID: overlapID}
			haveCur = true
		}
		if err := w.WriteOverlap(o, 0); err != nil {
			return err
		}
		cur.NumOlaps++
		overlapID++
		if o.AIID > largest {
			largest = o.AIID
		}
	}
	if haveCur {
		index = append(index, cur)
	}

	hist := ovfile.NewHistogram()
	if err := w.Close(); err != nil {
		return err
	}
	w.TransferHistogram(hist)

	if err := storeio.WriteAll(ctx, storeio.OvSegmentIndexPath(path, slice), marshalIndexEntries(index)); err != nil {
		return err
	}
	info := ovrec.Info{
		SmallestID:  smallest,
		LargestID:   largest,
		NumOverlaps: uint64(len(sorted)),
		Magic:       ovrec.Magic,
		Version:     1,
		RecordSize:  ovrec.OverlapSize,
	}
	infoBuf := make([]byte, ovrec.InfoSize)
	info.Marshal(infoBuf)
	if err := storeio.WriteAll(ctx, storeio.OvSegmentInfoPath(path, slice), infoBuf); err != nil {
		return err
	}
	if err := saveHistogramAt(ctx, storeio.OvSliceHistogramPath(path, slice), hist); err != nil {
		return err
	}
	log.Debug.Printf("ovstore: sort: slice %d: %d overlaps, a_iid [%d,%d]", slice, len(sorted), smallest, largest)
	return nil
}

// readSliceInfo loads {s}.info without requiring the store to be sealed
// (the merge stage reads these before the store-wide info exists).
func readSliceInfo(ctx context.Context, path string, slice int) (ovrec.Info, error) {
	buf, err := storeio.ReadAll(ctx, storeio.OvSegmentInfoPath(path, slice))
	if err != nil {
		return ovrec.Info{}, err
	}
	if len(buf) != ovrec.InfoSize {
		return ovrec.Info{}, errors.E(errors.Integrity, fmt.Sprintf("ovstore: slice %d: info is %d bytes, want %d", slice, len(buf), ovrec.InfoSize))
	}
	var info ovrec.Info
	info.Unmarshal(buf)
	return info, nil
}

func readSliceIndex(ctx context.Context, path string, slice int) ([]ovrec.Offt, error) {
	buf, err := storeio.ReadAll(ctx, storeio.OvSegmentIndexPath(path, slice))
	if err != nil {
		return nil, err
	}
	return unmarshalIndex(buf)
}
