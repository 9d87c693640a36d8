package blob

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
)

// ChunkInfo describes one chunk as WalkChunks encounters it, independent
// of any enclosing BLOB group — the view gkstore-dumpblob prints
// (restoring dumpBlob.C's segment walk).
type ChunkInfo struct {
	Pos    int
	Tag    Tag
	Length uint32
}

// WalkChunks scans data starting at byte offset start, calling fn once per
// chunk header it encounters until fn returns false or data is exhausted.
// A BLOB group header is reported and then walked into, so the chunks it
// groups are reported too; every other chunk's payload is skipped. Unlike
// Decode, it does not interpret payloads or require a leading BLOB group
// header: it is the raw per-chunk walk a segment dumper needs.
func WalkChunks(data []byte, start int, fn func(ChunkInfo) bool) error {
	pos := start
	for pos < len(data) {
		if pos+chunkHeaderSize > len(data) {
			return errors.E(errors.Integrity, fmt.Sprintf("blob: truncated chunk header at offset %d", pos))
		}
		var tag Tag
		copy(tag[:], data[pos:pos+4])
		length := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		info := ChunkInfo{Pos: pos, Tag: tag, Length: length}
		pos += chunkHeaderSize
		if pos+int(length) > len(data) {
			return errors.E(errors.Invalid, fmt.Sprintf("blob: chunk length %d at offset %d exceeds remaining %d bytes", length, pos, len(data)-pos))
		}
		if !fn(info) {
			return nil
		}
		if tag != TagBlob {
			pos += int(length)
		}
	}
	return nil
}
