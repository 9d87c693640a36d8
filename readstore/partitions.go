package readstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/gkstore/blob"
	"github.com/grailbio/gkstore/gkrec"
	"github.com/grailbio/gkstore/internal/storeio"
)

// PartitionMap is the decoded form of partitions/map (spec.md §4.2): for
// every rid, which partition it was assigned to (0 = unassigned/dropped)
// and its index within that partition's compacted array.
type PartitionMap struct {
	NumPartitions    int
	ReadsPerPartition []uint32 // 1-indexed; index 0 unused
	PartitionOf      []uint32 // by rid; 0 = unassigned
	IndexInPartition []uint32 // by rid; position within its partition's array
}

// marshal encodes m as {numPartitions, len(PartitionOf), readsPerPartition[1..P], (partitionOf[i], indexInPartition[i]) for i in [0,len)}.
func (m *PartitionMap) marshal() []byte {
	n := len(m.PartitionOf)
	buf := make([]byte, 8+4*m.NumPartitions+8*n)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.NumPartitions))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n))
	off := 8
	for p := 1; p <= m.NumPartitions; p++ {
		var v uint32
		if p < len(m.ReadsPerPartition) {
			v = m.ReadsPerPartition[p]
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], v)
		off += 4
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], m.PartitionOf[i])
		binary.LittleEndian.PutUint32(buf[off+4:off+8], m.IndexInPartition[i])
		off += 8
	}
	return buf
}

func unmarshalPartitionMap(buf []byte) (*PartitionMap, error) {
	if len(buf) < 8 {
		return nil, errors.E(errors.Invalid, "readstore: partitions/map too short")
	}
	numPartitions := int(binary.LittleEndian.Uint32(buf[0:4]))
	n := int(binary.LittleEndian.Uint32(buf[4:8]))
	want := 8 + 4*numPartitions + 8*n
	if len(buf) != want {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: partitions/map size %d, want %d", len(buf), want))
	}
	m := &PartitionMap{NumPartitions: numPartitions, ReadsPerPartition: make([]uint32, numPartitions+1)}
	off := 8
	for p := 1; p <= numPartitions; p++ {
		m.ReadsPerPartition[p] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	m.PartitionOf = make([]uint32, n)
	m.IndexInPartition = make([]uint32, n)
	for i := 0; i < n; i++ {
		m.PartitionOf[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		m.IndexInPartition[i] = binary.LittleEndian.Uint32(buf[off+4 : off+8])
		off += 8
	}
	return m, nil
}

// BuildPartitions reads the sealed store at srcPath read-only and writes a
// partitioned clone to dstPath: per spec.md §4.2, assignment maps rid to a
// 1-based partition id (0 meaning unassigned/dropped), and the clone never
// mutates srcPath.
func BuildPartitions(ctx context.Context, srcPath, dstPath string, assignment map[uint32]uint32, opts Opts) error {
	src, err := Open(ctx, srcPath, ReadAll, opts)
	if err != nil {
		return err
	}
	defer src.Close()

	numPartitions := 0
	for _, p := range assignment {
		if int(p) > numPartitions {
			numPartitions = int(p)
		}
	}

	m := &PartitionMap{
		NumPartitions:     numPartitions,
		ReadsPerPartition: make([]uint32, numPartitions+1),
		PartitionOf:       make([]uint32, len(src.reads)),
		IndexInPartition:  make([]uint32, len(src.reads)),
	}
	perPartitionReads := make([][]gkrec.Read, numPartitions+1)
	perPartitionBlobs := make([][]blob.ReadData, numPartitions+1)

	for rid := 1; rid < len(src.reads); rid++ {
		p := assignment[uint32(rid)]
		m.PartitionOf[rid] = p
		if p == 0 {
			continue
		}
		rd, err := src.LoadReadData(uint32(rid), gkrec.VersionLatest)
		if err != nil {
			return err
		}
		m.ReadsPerPartition[p]++
		m.IndexInPartition[rid] = m.ReadsPerPartition[p]
		perPartitionReads[p] = append(perPartitionReads[p], src.reads[rid])
		perPartitionBlobs[p] = append(perPartitionBlobs[p], rd)
	}

	if err := storeio.WriteAll(ctx, storeio.PartitionMapPath(dstPath), m.marshal()); err != nil {
		return err
	}

	return traverse.Each(numPartitions, func(i int) error {
		p := i + 1
		return writePartition(ctx, dstPath, p, perPartitionReads[p], perPartitionBlobs[p])
	})
}

// writePartition re-packs one partition's reads and blob data so m_byte is
// meaningful inside the partition's own blob segment, per spec.md §4.2.
func writePartition(ctx context.Context, dstPath string, p int, reads []gkrec.Read, datas []blob.ReadData) error {
	out := make([]gkrec.Read, len(reads)+1) // index 0 reserved, matching the main store's convention
	var body []byte
	for i, rd := range datas {
		buf := blob.Encode(rd)
		r := reads[i]
		r.SetLocation(0, uint32(len(body)))
		r.BlobLen = uint32(len(buf))
		r.SetPartition(uint32(p))
		out[i+1] = r
		body = append(body, buf...)
	}
	if err := storeio.WriteAll(ctx, storeio.PartitionBlobsPath(dstPath, p), body); err != nil {
		return err
	}
	return storeio.WriteAll(ctx, storeio.PartitionReadsPath(dstPath, p), marshalReads(out))
}

// loadPartition loads only partition p's records and blob data, plus the
// rid->index translation table, per spec.md §4.2's "partitioned read
// store can then be opened with only one partition resident in memory."
func loadPartition(ctx context.Context, storePath string, opts Opts, p int) (*Store, error) {
	mapBuf, err := storeio.ReadAll(ctx, storeio.PartitionMapPath(storePath))
	if err != nil {
		return nil, err
	}
	m, err := unmarshalPartitionMap(mapBuf)
	if err != nil {
		return nil, err
	}
	if p < 1 || p > m.NumPartitions {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: partition %d out of range [1,%d]", p, m.NumPartitions))
	}
	readsBuf, err := storeio.ReadAll(ctx, storeio.PartitionReadsPath(storePath, p))
	if err != nil {
		return nil, err
	}
	reads, err := unmarshalReads(readsBuf)
	if err != nil {
		return nil, err
	}
	translation := make(map[uint32]uint32, len(m.PartitionOf))
	for rid, part := range m.PartitionOf {
		if int(part) == p {
			translation[uint32(rid)] = m.IndexInPartition[rid]
		}
	}
	blobBuf, err := storeio.ReadAll(ctx, storeio.PartitionBlobsPath(storePath, p))
	if err != nil {
		return nil, err
	}
	s := &Store{
		ctx: ctx, path: storePath, opts: opts, reads: reads,
		translation: translation, partitionBlob: blobBuf,
	}
	return s, nil
}
