package ovstore

import (
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/ovfile"
	"github.com/grailbio/gkstore/ovrec"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario 4 of spec.md §8: parallel build with an empty slice.
func TestParallelBuildEmptySlice(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/ov"

	const fileLimit = 3
	const jobIdxMax = 2
	const maxAIID = 300 // perSlice=100: slice1=[1,100] slice2=[101,200] slice3=[201,300]

	b1 := NewBucketWriter(ctx, path, 1, fileLimit, ovfile.Uncompressed)
	for i := 0; i < 100; i++ {
		require.NoError(t, b1.Add(1, ovrec.Overlap{AIID: uint32(i + 1), BIID: 999}, 0))
	}
	require.NoError(t, b1.Close())

	b2 := NewBucketWriter(ctx, path, 2, fileLimit, ovfile.Uncompressed)
	for i := 0; i < 50; i++ {
		require.NoError(t, b2.Add(3, ovrec.Overlap{AIID: uint32(201 + i), BIID: 1}, 0))
	}
	require.NoError(t, b2.Close())

	for s := 1; s <= fileLimit; s++ {
		require.NoError(t, SortSlice(ctx, path, s, SortSliceOpts{JobIdxMax: jobIdxMax, FileLimit: fileLimit}))
	}

	require.NoError(t, MergeSlices(ctx, path, MergeOpts{FileLimit: fileLimit, MaxAIID: maxAIID}))

	info, index, err := OpenIndex(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), info.NumOverlaps)

	byID := map[uint32]ovrec.Offt{}
	for _, e := range index {
		byID[e.AIID] = e
	}
	// slice 2's range produced no real overlaps; its a_iids carry numOlaps=0.
	for id := uint32(101); id <= 200; id++ {
		e, ok := byID[id]
		require.True(t, ok, "a_iid %d missing from index", id)
		assert.Equal(t, uint32(0), e.NumOlaps)
	}
	// slice 1 and slice 3's real a_iids are intact.
	assert.Equal(t, uint32(1), byID[1].NumOlaps)
	assert.Equal(t, uint32(1), byID[201].NumOlaps)

	report, err := CheckIndex(ctx, path, CheckIndexOpts{})
	require.NoError(t, err)
	assert.True(t, report.OK, "gaps: %v", report.Gaps)
}

func TestCheckIndexDetectsGap(t *testing.T) {
	index := []ovrec.Offt{
		{AIID: 1, NumOlaps: 1, OverlapID: 0},
		{AIID: 3, NumOlaps: 1, OverlapID: 1}, // a_iid jumps 1 -> 3, skipping 2
	}
	report, _ := checkIndexEntries(index)
	assert.False(t, report.OK)
	assert.NotEmpty(t, report.Gaps)
}

func TestCheckIndexFixesOverlapIDDrift(t *testing.T) {
	index := []ovrec.Offt{
		{AIID: 1, NumOlaps: 2, OverlapID: 0},
		{AIID: 2, NumOlaps: 1, OverlapID: 5}, // should be 2
	}
	report, fixed := checkIndexEntries(index)
	assert.False(t, report.OK)
	assert.Equal(t, uint64(2), fixed[1].OverlapID)
}
