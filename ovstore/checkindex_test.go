package ovstore

import (
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovfile"
	"github.com/grailbio/gkstore/ovrec"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// VerifySliceOutputs must fail while any slice hasn't finished sorting, and
// succeed once every slice's {s}.index/{s}.info pair exists.
func TestVerifySliceOutputsReportsMissingSlices(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/ov"

	const fileLimit = 3
	b := NewBucketWriter(ctx, path, 1, fileLimit, ovfile.Uncompressed)
	require.NoError(t, b.Add(1, ovrec.Overlap{AIID: 1, BIID: 2}, 0))
	require.NoError(t, b.Add(3, ovrec.Overlap{AIID: 201, BIID: 2}, 0))
	require.NoError(t, b.Close())

	// Only sort slices 1 and 3; slice 2 never runs.
	require.NoError(t, SortSlice(ctx, path, 1, SortSliceOpts{JobIdxMax: 1, FileLimit: fileLimit}))
	require.NoError(t, SortSlice(ctx, path, 3, SortSliceOpts{JobIdxMax: 1, FileLimit: fileLimit}))

	err := VerifySliceOutputs(ctx, path, fileLimit)
	require.Error(t, err)

	require.NoError(t, SortSlice(ctx, path, 2, SortSliceOpts{JobIdxMax: 1, FileLimit: fileLimit}))
	require.NoError(t, VerifySliceOutputs(ctx, path, fileLimit))
}

// Cleanup removes the per-slice intermediates and the bucket tree, and its
// bucket-directory scan terminates after ten consecutive missing
// directories rather than scanning forever.
func TestCleanupRemovesSliceAndBucketFiles(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/ov"

	const fileLimit = 2
	b := NewBucketWriter(ctx, path, 1, fileLimit, ovfile.Uncompressed)
	require.NoError(t, b.Add(1, ovrec.Overlap{AIID: 1, BIID: 2}, 0))
	require.NoError(t, b.Close())
	for s := 1; s <= fileLimit; s++ {
		require.NoError(t, SortSlice(ctx, path, s, SortSliceOpts{JobIdxMax: 1, FileLimit: fileLimit}))
	}
	require.NoError(t, MergeSlices(ctx, path, MergeOpts{FileLimit: fileLimit, MaxAIID: 2}))

	require.True(t, storeio.Exists(ctx, storeio.OvSegmentIndexPath(path, 1)))
	require.True(t, storeio.Exists(ctx, storeio.BucketDir(path, 1)+"/sliceSizes"))

	require.NoError(t, Cleanup(ctx, path, fileLimit))

	assert.False(t, storeio.Exists(ctx, storeio.OvSegmentIndexPath(path, 1)))
	assert.False(t, storeio.Exists(ctx, storeio.OvSegmentInfoPath(path, 1)))
	assert.False(t, storeio.Exists(ctx, storeio.BucketDir(path, 1)+"/sliceSizes"))

	// the merged store-wide index/info survive cleanup; only per-slice
	// intermediates and bucket directories are removed.
	assert.True(t, storeio.Exists(ctx, storeio.OvIndexPath(path)))
}
