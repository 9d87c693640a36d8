package readstore

import (
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gkstore/blob"
	"github.com/grailbio/gkstore/gkrec"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sealing a store computes each blob segment's checksum and surfaces it in
// info.txt, a supplemental integrity line not part of the binary info
// layout.
func TestInfoTxtCarriesSegmentChecksum(t *testing.T) {
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
		Name:   "r0",
		RawSeq: "ACGT",
		RawQlt: []byte{20, 20, 20, 20},
	}, false))
	require.NoError(t, s.Close())

	infoTxt, err := storeio.ReadAll(ctx, storeio.InfoTxtPath(path))
	require.NoError(t, err)
	text := string(infoTxt)
	require.Contains(t, text, "segmentChecksum[1] ")

	var hexSum string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "segmentChecksum[1] ") {
			hexSum = strings.TrimPrefix(line, "segmentChecksum[1] ")
		}
	}
	require.NotEmpty(t, hexSum)

	segData, err := storeio.ReadAll(ctx, storeio.BlobSegmentPath(path, 0))
	require.NoError(t, err)
	want := blob.SegmentChecksumHex(segData)
	assert.Equal(t, want, hexSum)
}
