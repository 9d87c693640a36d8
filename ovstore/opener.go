package ovstore

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovrec"
)

// OpenIndex loads a sealed overlap store's info header and primary index
// into memory (spec.md §4.6's opener, restricted to the read path; the
// write path is SequentialBuilder/parallel builder).
func OpenIndex(ctx context.Context, path string) (ovrec.Info, []ovrec.Offt, error) {
	infoBuf, err := storeio.ReadAll(ctx, storeio.OvInfoPath(path))
	if err != nil {
		if e, ok := err.(*errors.Error); ok && e.Kind == errors.NotExist {
			return ovrec.Info{}, nil, errors.E(errors.NotExist, fmt.Sprintf("ovstore: no store at %s", path))
		}
		return ovrec.Info{}, nil, err
	}
	if len(infoBuf) != ovrec.InfoSize {
		return ovrec.Info{}, nil, errors.E(errors.Invalid, fmt.Sprintf("ovstore: %s: info file is %d bytes, want %d", path, len(infoBuf), ovrec.InfoSize))
	}
	var info ovrec.Info
	info.Unmarshal(infoBuf)
	if !info.Sealed() {
		return ovrec.Info{}, nil, errors.E(errors.Invalid, fmt.Sprintf("ovstore: %s: info carries the create-time placeholder magic; store was never sealed", path))
	}
	if info.RecordSize != ovrec.OverlapSize {
		return ovrec.Info{}, nil, errors.E(errors.Invalid, fmt.Sprintf("ovstore: %s: recorded recordSize %d disagrees with compiled %d", path, info.RecordSize, ovrec.OverlapSize))
	}

	indexBuf, err := storeio.ReadAll(ctx, storeio.OvIndexPath(path))
	if err != nil {
		return ovrec.Info{}, nil, err
	}
	index, err := unmarshalIndex(indexBuf)
	if err != nil {
		return ovrec.Info{}, nil, err
	}
	return info, index, nil
}

func unmarshalIndex(buf []byte) ([]ovrec.Offt, error) {
	if len(buf)%ovrec.OfftSize != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("ovstore: index size %d is not a multiple of %d", len(buf), ovrec.OfftSize))
	}
	n := len(buf) / ovrec.OfftSize
	out := make([]ovrec.Offt, n)
	for i := 0; i < n; i++ {
		out[i].Unmarshal(buf[i*ovrec.OfftSize : (i+1)*ovrec.OfftSize])
	}
	return out, nil
}

func marshalIndexEntries(index []ovrec.Offt) []byte {
	buf := make([]byte, len(index)*ovrec.OfftSize)
	for i := range index {
		index[i].Marshal(buf[i*ovrec.OfftSize : (i+1)*ovrec.OfftSize])
	}
	return buf
}
