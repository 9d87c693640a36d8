package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentChecksumRoundTrip(t *testing.T) {
	data := []byte("some blob segment bytes, not necessarily a valid chunk stream")
	hexSum := SegmentChecksumHex(data)

	got, err := ParseSegmentChecksum(hexSum)
	require.NoError(t, err)
	assert.Equal(t, SegmentChecksum(data), got)
}

func TestSegmentChecksumDetectsChange(t *testing.T) {
	a := SegmentChecksumHex([]byte("segment one"))
	b := SegmentChecksumHex([]byte("segment two"))
	assert.NotEqual(t, a, b)
}

func TestParseSegmentChecksumRejectsBadInput(t *testing.T) {
	_, err := ParseSegmentChecksum("not-hex!!")
	assert.Error(t, err)

	_, err = ParseSegmentChecksum("aabb")
	assert.Error(t, err, "too short for a highwayhash digest")
}
