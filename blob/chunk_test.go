package blob

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rd := ReadData{
		Name:    "r0",
		RawSeq:  "ACGT",
		RawQlt:  []byte{10, 10, 10, 10},
		CorrSeq: "ACGTA",
		CorrQlt: []byte{20, 20, 20, 20, 20},
	}
	buf := Encode(rd)
	got, err := Decode(buf, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, rd.Name, got.Name)
	assert.Equal(t, rd.RawSeq, got.RawSeq)
	assert.Equal(t, rd.RawQlt, got.RawQlt)
	assert.Equal(t, rd.CorrSeq, got.CorrSeq)
	assert.Equal(t, rd.CorrQlt, got.CorrQlt)
}

// a corrupted embedded length prefix disagreeing with the caller-supplied
// expected base count fails BadPacking (spec.md §4.1).
func TestDecodeRejectsBadPacking(t *testing.T) {
	rd := ReadData{Name: "r0", RawSeq: "ACGT"}
	buf := Encode(rd)

	var payloadStart int
	err := WalkChunks(buf, chunkHeaderSize, func(c ChunkInfo) bool {
		if c.Tag == Tag2Seq {
			payloadStart = c.Pos + chunkHeaderSize
			return false
		}
		return true
	})
	require.NoError(t, err)
	require.NotZero(t, payloadStart)
	// the chunk payload's first 4 bytes are the embedded base-count
	// prefix; corrupt it so it disagrees with the caller-supplied length.
	binary.LittleEndian.PutUint32(buf[payloadStart:payloadStart+4], 99)

	_, err = Decode(buf, 4, 0)
	assert.Error(t, err)
}

func TestDecodeSkipsLengthCheckWhenExpectedIsZero(t *testing.T) {
	rd := ReadData{Name: "r0", RawSeq: "ACGT"}
	buf := Encode(rd)
	_, err := Decode(buf, 0, 0)
	assert.NoError(t, err)
}

func TestReadDataTrim(t *testing.T) {
	rd := ReadData{
		CorrSeq: "ACGTACGTAC",
		CorrQlt: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	}
	trimmed := rd.Trim(2, 8)
	assert.Equal(t, "GTACGT", trimmed.CorrSeq)
	assert.Equal(t, []byte{2, 3, 4, 5, 6, 7}, trimmed.CorrQlt)
}

func TestReadDataTrimClampsOutOfRangeEnd(t *testing.T) {
	rd := ReadData{CorrSeq: "ACGT"}
	trimmed := rd.Trim(2, 100)
	assert.Equal(t, "GT", trimmed.CorrSeq)
}
