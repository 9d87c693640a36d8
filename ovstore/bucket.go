package ovstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovfile"
	"github.com/grailbio/gkstore/ovrec"
)

// SliceForAIID maps an a_iid into one of fileLimit contiguous slices,
// given the largest a_iid the run will ever see. Slices are numbered
// 1..fileLimit, matching the store's 1-based segment numbering
// (spec.md §4.5: "slice — a range of a_iid values assigned to one
// segment").
func SliceForAIID(aIID, maxAIID uint32, fileLimit int) int {
	if fileLimit <= 0 {
		fileLimit = 1
	}
	if maxAIID == 0 || aIID == 0 {
		return 1
	}
	perSlice := (maxAIID + uint32(fileLimit) - 1) / uint32(fileLimit)
	if perSlice == 0 {
		perSlice = 1
	}
	s := int((aIID-1)/perSlice) + 1
	if s > fileLimit {
		s = fileLimit
	}
	return s
}

// BucketWriter is one producer job's half of the bucket stage: it fans
// overlap records out across fileLimit destination slices and, on
// Close, records how many records landed in each (spec.md §4.5 stage 1).
type BucketWriter struct {
	ctx       context.Context
	path      string
	jobIdx    int
	fileLimit int
	comp      ovfile.Compression

	writers map[int]*ovfile.Writer
	counts  []uint64 // length fileLimit+1; index 0 unused
}

// NewBucketWriter opens a producer job's bucket directory for writing.
func NewBucketWriter(ctx context.Context, path string, jobIdx, fileLimit int, comp ovfile.Compression) *BucketWriter {
	return &BucketWriter{
		ctx:       ctx,
		path:      path,
		jobIdx:    jobIdx,
		fileLimit: fileLimit,
		comp:      comp,
		writers:   make(map[int]*ovfile.Writer),
		counts:    make([]uint64, fileLimit+1),
	}
}

// Add routes o to slice (computed by the caller via SliceForAIID, or any
// other partitioning the coordinator chooses), tagging it with
// ownerPartition so a downstream per-partition overlap reader can filter
// without consulting the read store.
func (b *BucketWriter) Add(slice int, o ovrec.Overlap, ownerPartition uint32) error {
	if slice < 1 || slice > b.fileLimit {
		return errors.E(errors.Invalid, fmt.Sprintf("ovstore: bucket: slice %d out of range [1,%d]", slice, b.fileLimit))
	}
	w, ok := b.writers[slice]
	if !ok {
		path := storeio.BucketSlicePath(b.path, b.jobIdx, slice)
		if b.comp != ovfile.Uncompressed {
			path = storeio.BucketSlicePathGz(b.path, b.jobIdx, slice)
		}
		var err error
		w, err = ovfile.NewWriter(b.ctx, path, ovfile.Full, b.comp)
		if err != nil {
			return err
		}
		b.writers[slice] = w
	}
	if err := w.WriteOverlap(o, ownerPartition); err != nil {
		return err
	}
	b.counts[slice]++
	return nil
}

// Close flushes every slice file this job touched and writes sliceSizes,
// the fileLimit+1 uint64 array the sort stage's load_bucket_sizes reads
// (spec.md §4.5 stage 1).
func (b *BucketWriter) Close() error {
	for s := 1; s <= b.fileLimit; s++ {
		if w, ok := b.writers[s]; ok {
			if err := w.Close(); err != nil {
				return err
			}
		}
	}
	buf := make([]byte, 8*len(b.counts))
	for i, c := range b.counts {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], c)
	}
	return storeio.WriteAll(b.ctx, storeio.BucketSliceSizesPath(b.path, b.jobIdx), buf)
}

// loadBucketSizes implements load_bucket_sizes: sums, across every
// producer job in [1, jobIdxMax], the record count that job claims to
// have written to slice s. A missing sliceSizes file (the job never ran
// or wrote nothing at all) contributes zero, matching the "legitimate"
// empty-slice case spec.md §4.5 calls out.
func loadBucketSizes(ctx context.Context, path string, jobIdxMax, fileLimit, slice int) (map[int]uint64, uint64, error) {
	perJob := make(map[int]uint64, jobIdxMax)
	var total uint64
	for jobIdx := 1; jobIdx <= jobIdxMax; jobIdx++ {
		sizesPath := storeio.BucketSliceSizesPath(path, jobIdx)
		if !storeio.Exists(ctx, sizesPath) {
			continue
		}
		buf, err := storeio.ReadAll(ctx, sizesPath)
		if err != nil {
			return nil, 0, err
		}
		if len(buf) != 8*(fileLimit+1) {
			return nil, 0, errors.E(errors.Integrity, fmt.Sprintf("ovstore: %s: sliceSizes has %d bytes, want %d", sizesPath, len(buf), 8*(fileLimit+1)))
		}
		if slice > fileLimit {
			return nil, 0, errors.E(errors.Invalid, fmt.Sprintf("ovstore: slice %d exceeds fileLimit %d", slice, fileLimit))
		}
		count := binary.LittleEndian.Uint64(buf[slice*8 : slice*8+8])
		if count > 0 {
			perJob[jobIdx] = count
			total += count
		}
	}
	return perJob, total, nil
}
