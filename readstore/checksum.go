package readstore

import (
	"context"

	"github.com/grailbio/gkstore/blob"
	"github.com/grailbio/gkstore/internal/storeio"
)

// segmentChecksums hashes every blob segment file, fileno 1..segmentCount,
// for the info.txt segmentChecksum[fileno] lines (spec.md's domain-stack
// highwayhash wiring). segmentCount zero (no reads ever stashed) yields an
// empty map.
func segmentChecksums(ctx context.Context, storePath string, segmentCount int) (map[int]string, error) {
	out := make(map[int]string, segmentCount)
	for segm := 0; segm < segmentCount; segm++ {
		data, err := storeio.ReadAll(ctx, storeio.BlobSegmentPath(storePath, segm))
		if err != nil {
			return nil, err
		}
		out[segm+1] = blob.SegmentChecksumHex(data)
	}
	return out, nil
}
