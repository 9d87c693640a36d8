package readstore

import (
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/blob"
	"github.com/grailbio/gkstore/gkrec"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario 1 of spec.md §8: single read round-trip.
func TestSingleReadRoundTrip(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/S"

	reg := storeio.NewRegistry()
	s, err := Open(ctx, path, Create, Opts{Registry: reg})
	require.NoError(t, err)
	lid, err := s.AddLibrary(gkrec.Library{DefaultQV: 20, Name: "lib0"})
	require.NoError(t, err)
	rid, err := s.AddEmptyRead()
	require.NoError(t, err)
	s.reads[rid].LibraryID = lid
	require.NoError(t, s.StashReadData(rid, blob.ReadData{
		Name:   "r0",
		RawSeq: "ACGT",
		RawQlt: []byte{20, 20, 20, 20},
	}, false))
	require.NoError(t, s.Close())

	ro, err := Open(ctx, path, ReadAll, Opts{Registry: reg})
	require.NoError(t, err)
	defer ro.Close()

	assert.Equal(t, 1, ro.NumReads())
	r, err := ro.GetRead(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), r.RawSeqLen)

	rd, err := ro.LoadReadData(1, gkrec.VersionLatest)
	require.NoError(t, err)
	assert.Equal(t, "r0", rd.Name)
	assert.Equal(t, "ACGT", rd.RawSeq)
	assert.Equal(t, []byte{20, 20, 20, 20}, rd.RawQlt)
}

// scenario 2 of spec.md §8: a non-ACGT base forces 3-bit sequence packing,
// exercised here indirectly through the round trip (the chunk tag itself
// is covered directly in blob package tests).
func TestAmbiguityRoundTrip(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/S"

	reg := storeio.NewRegistry()
	s, err := Open(ctx, path, Create, Opts{Registry: reg})
	require.NoError(t, err)
	rid, err := s.AddEmptyRead()
	require.NoError(t, err)
	require.NoError(t, s.StashReadData(rid, blob.ReadData{
		Name:   "r1",
		RawSeq: "ACNT",
		RawQlt: []byte{5, 5, 5, 5},
	}, false))
	require.NoError(t, s.Close())

	ro, err := Open(ctx, path, ReadAll, Opts{Registry: reg})
	require.NoError(t, err)
	defer ro.Close()
	rd, err := ro.LoadReadData(1, gkrec.VersionLatest)
	require.NoError(t, err)
	assert.Equal(t, "ACNT", rd.RawSeq)
}

func TestCreateRejectsExisting(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/S"
	reg := storeio.NewRegistry()

	s, err := Open(ctx, path, Create, Opts{Registry: reg})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, path, Create, Opts{Registry: reg})
	assert.Error(t, err)
}

// scenario 5 of spec.md §8: extend preserves the prior version.
func TestExtendArchivesPriorVersion(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/S"
	reg := storeio.NewRegistry()

	s, err := Open(ctx, path, Create, Opts{Registry: reg})
	require.NoError(t, err)
	_, err = s.AddLibrary(gkrec.Library{Name: "lib0"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	e, err := Open(ctx, path, Extend, Opts{Registry: reg})
	require.NoError(t, err)
	_, err = e.AddLibrary(gkrec.Library{Name: "lib1"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := e.AddEmptyRead()
		require.NoError(t, err)
	}
	require.NoError(t, e.Close())

	assert.True(t, storeio.Exists(ctx, storeio.VersionDir(path, 1)+"/info"))
	assert.True(t, storeio.Exists(ctx, storeio.VersionDir(path, 1)+"/libraries"))

	final, err := Open(ctx, path, ReadAll, Opts{Registry: reg})
	require.NoError(t, err)
	defer final.Close()
	assert.Equal(t, 2, final.NumLibraries())
	assert.Equal(t, 5, final.NumReads())
}

// the trimmed version (spec.md §4.2) is a suffix-slice of the corrected
// sequence, bounded by the read record's clear range.
func TestTrimmedVersionSlicesCorrectedSequence(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/S"

	reg := storeio.NewRegistry()
	s, err := Open(ctx, path, Create, Opts{Registry: reg})
	require.NoError(t, err)
	rid, err := s.AddEmptyRead()
	require.NoError(t, err)
	require.NoError(t, s.StashReadData(rid, blob.ReadData{
		Name:    "r0",
		RawSeq:  "ACGTACGTAC",
		RawQlt:  []byte{20, 20, 20, 20, 20, 20, 20, 20, 20, 20},
		CorrSeq: "ACGTACGTAC",
		CorrQlt: []byte{20, 20, 20, 20, 20, 20, 20, 20, 20, 20},
	}, true))
	require.NoError(t, s.SetTrim(rid, 2, 8))
	require.NoError(t, s.Close())

	ro, err := Open(ctx, path, ReadAll, Opts{Registry: reg})
	require.NoError(t, err)
	defer ro.Close()

	rd, err := ro.LoadReadData(rid, gkrec.VersionTrimmed)
	require.NoError(t, err)
	assert.Equal(t, "GTACGT", rd.CorrSeq)
	assert.Equal(t, []byte{20, 20, 20, 20, 20, 20}, rd.CorrQlt)

	// VersionLatest also applies the trim once t_exists is set.
	rd, err = ro.LoadReadData(rid, gkrec.VersionLatest)
	require.NoError(t, err)
	assert.Equal(t, "GTACGT", rd.CorrSeq)

	// VersionCorrected bypasses the trim.
	rd, err = ro.LoadReadData(rid, gkrec.VersionCorrected)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTAC", rd.CorrSeq)
}

func TestSetTrimRejectsOutOfRangeEnd(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/S"

	reg := storeio.NewRegistry()
	s, err := Open(ctx, path, Create, Opts{Registry: reg})
	require.NoError(t, err)
	rid, err := s.AddEmptyRead()
	require.NoError(t, err)
	require.NoError(t, s.StashReadData(rid, blob.ReadData{
		Name:    "r0",
		RawSeq:  "ACGT",
		CorrSeq: "ACGT",
	}, true))
	assert.Error(t, s.SetTrim(rid, 0, 10))
	require.NoError(t, s.Close())
}

func TestRegistryRejectsDoubleWriter(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := dir + "/S"
	reg := storeio.NewRegistry()

	s1, err := Open(ctx, path, Create, Opts{Registry: reg})
	require.NoError(t, err)
	defer s1.Close()

	require.Error(t, reg.AcquireWriter(path))
}
