package ovstore

import (
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/ovrec"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario 3 of spec.md §8: sequential overlap build.
func TestSequentialBuild(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/ov"

	b, err := NewSequentialBuilder(ctx, path, SequentialBuildOpts{})
	require.NoError(t, err)
	pairs := [][2]uint32{{1, 2}, {1, 3}, {3, 1}, {3, 2}, {5, 4}}
	for _, p := range pairs {
		require.NoError(t, b.Add(ovrec.Overlap{AIID: p[0], BIID: p[1]}))
	}
	require.NoError(t, b.Close())

	info, index, err := OpenIndex(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), info.SmallestID)
	assert.Equal(t, uint32(5), info.LargestID)
	assert.Equal(t, uint64(5), info.NumOverlaps)

	byID := map[uint32]ovrec.Offt{}
	for _, e := range index {
		byID[e.AIID] = e
	}
	assert.Equal(t, uint32(2), byID[1].NumOlaps)
	assert.Equal(t, uint32(0), byID[2].NumOlaps)
	assert.Equal(t, uint32(2), byID[3].NumOlaps)
	assert.Equal(t, uint32(0), byID[4].NumOlaps)
	assert.Equal(t, uint32(1), byID[5].NumOlaps)
	assert.Equal(t, uint64(0), byID[1].OverlapID)
	assert.Equal(t, uint64(2), byID[3].OverlapID)
	assert.Equal(t, uint64(4), byID[5].OverlapID)

	// testable property: sum of numOlaps == info.numOverlaps
	var sum uint64
	for _, e := range index {
		sum += uint64(e.NumOlaps)
	}
	assert.Equal(t, info.NumOverlaps, sum)
}

// scenario 6 of spec.md §8: out-of-order rejection.
func TestSequentialBuildOutOfOrder(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/ov"

	b, err := NewSequentialBuilder(ctx, path, SequentialBuildOpts{})
	require.NoError(t, err)
	require.NoError(t, b.Add(ovrec.Overlap{AIID: 7, BIID: 1}))
	err = b.Add(ovrec.Overlap{AIID: 5, BIID: 1})
	assert.Error(t, err)
}
