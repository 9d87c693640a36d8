package ovstore

import (
	"context"
	"encoding/binary"

	"github.com/grailbio/gkstore/internal/storeio"
	"github.com/grailbio/gkstore/ovfile"
)

func histogramPath(storePath string) string { return storePath + "/histogram" }

// saveHistogramAt persists h as a flat array of (a_iid, count) pairs to path.
func saveHistogramAt(ctx context.Context, path string, h *ovfile.Histogram) error {
	buf := make([]byte, 8*len(h.Counts))
	i := 0
	for id, c := range h.Counts {
		binary.LittleEndian.PutUint32(buf[i*8:i*8+4], id)
		binary.LittleEndian.PutUint32(buf[i*8+4:i*8+8], c)
		i++
	}
	return storeio.WriteAll(ctx, path, buf)
}

// loadHistogramAt reads back a histogram saved by saveHistogramAt.
func loadHistogramAt(ctx context.Context, path string) (*ovfile.Histogram, error) {
	buf, err := storeio.ReadAll(ctx, path)
	if err != nil {
		return nil, err
	}
	h := ovfile.NewHistogram()
	for i := 0; i+8 <= len(buf); i += 8 {
		id := binary.LittleEndian.Uint32(buf[i : i+4])
		c := binary.LittleEndian.Uint32(buf[i+4 : i+8])
		h.Counts[id] = c
	}
	return h, nil
}

func saveHistogram(ctx context.Context, storePath string, h *ovfile.Histogram) error {
	return saveHistogramAt(ctx, histogramPath(storePath), h)
}

func loadHistogram(ctx context.Context, storePath string) (*ovfile.Histogram, error) {
	return loadHistogramAt(ctx, histogramPath(storePath))
}
