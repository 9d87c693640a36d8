package blob

import (
	"encoding/hex"

	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
)

// segmentChecksumKey is a fixed, all-zero 32-byte key: the checksum is a
// structural content digest, not a security primitive, so there is no
// secret to keep.
var segmentChecksumKey = make([]byte, highwayhash.Size)

// SegmentChecksum hashes an entire blob segment file's contents. It is a
// supplemental integrity check layered on top of the store (spec.md's
// byte-exact format requirement doesn't itself call for a checksum); a
// mismatch is diagnostic, not a load-bearing failure mode.
func SegmentChecksum(data []byte) [highwayhash.Size]byte {
	return highwayhash.Sum(data, segmentChecksumKey)
}

// SegmentChecksumHex renders a checksum the way info.txt's
// segmentChecksum[fileno] lines carry it.
func SegmentChecksumHex(data []byte) string {
	sum := SegmentChecksum(data)
	return hex.EncodeToString(sum[:])
}

// ParseSegmentChecksum decodes a hex checksum read back from info.txt.
func ParseSegmentChecksum(s string) ([highwayhash.Size]byte, error) {
	var out [highwayhash.Size]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, errors.Wrapf(err, "blob: malformed segment checksum %q", s)
	}
	if len(b) != highwayhash.Size {
		return out, errors.Errorf("blob: segment checksum %q has %d bytes, want %d", s, len(b), highwayhash.Size)
	}
	copy(out[:], b)
	return out, nil
}
