package readstore

import (
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/blob"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Build partitions, then read each partition, then union -> bit-identical
// to the original read iteration (spec.md §8's round-trip law).
func TestBuildPartitionsRoundTrip(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	srcPath := dir + "/src"
	dstPath := dir + "/parts"
	reg := storeio.NewRegistry()

	s, err := Open(ctx, srcPath, Create, Opts{Registry: reg})
	require.NoError(t, err)
	names := []string{"r1", "r2", "r3", "r4"}
	for _, name := range names {
		rid, err := s.AddEmptyRead()
		require.NoError(t, err)
		require.NoError(t, s.StashReadData(rid, blob.ReadData{
			Name:   name,
			RawSeq: "ACGT",
			RawQlt: []byte{10, 10, 10, 10},
		}, false))
	}
	require.NoError(t, s.Close())

	assignment := map[uint32]uint32{1: 1, 2: 2, 3: 1, 4: 2}
	require.NoError(t, BuildPartitions(ctx, srcPath, dstPath, assignment, Opts{Registry: reg}))

	got := map[uint32]string{}
	for p := 1; p <= 2; p++ {
		ps, err := Open(ctx, dstPath, ReadPartition, Opts{PartitionID: p, Registry: reg})
		require.NoError(t, err)
		for rid, part := range ps.translation {
			if int64(rid) == 0 {
				continue
			}
			_ = part
			idx := ps.translation[rid]
			rd, err := ps.LoadReadData(idx, 0)
			require.NoError(t, err)
			got[rid] = rd.Name
		}
		require.NoError(t, ps.Close())
	}
	assert.Equal(t, map[uint32]string{1: "r1", 2: "r2", 3: "r3", 4: "r4"}, got)
}
