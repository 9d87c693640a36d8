// Package readstore implements the fixed-size-record read metadata table
// plus blob data described in spec.md §4.2: a store of DNA reads keyed by
// a dense 1-based identifier, opened in one of five modes.
package readstore

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/gkstore/blob"
	"github.com/grailbio/gkstore/gkrec"
	"github.com/grailbio/gkstore/internal/storeio"
)

// Mode selects how Open resolves a store path (spec.md §4.2).
type Mode int

const (
	Create Mode = iota
	Extend
	ReadAll
	ReadPartition
	BuildPartitions
)

func (m Mode) String() string {
	switch m {
	case Create:
		return "create"
	case Extend:
		return "extend"
	case ReadAll:
		return "read-all"
	case ReadPartition:
		return "read-partition"
	case BuildPartitions:
		return "build-partitions"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Opts configures an Open call.
type Opts struct {
	// PartitionID selects which partition ReadPartition loads. Must be
	// zero (meaningless) for every other mode.
	PartitionID int
	// HandlePoolSize is the blob reader's pooled-handle count (spec.md
	// §4.1's "pool of open file handles sized to the concurrency of the
	// consumer"). Zero means "use OMP_NUM_THREADS/GOMAXPROCS", per
	// spec.md §6's "Environment" clause.
	HandlePoolSize int
	// UseMmap reads blob segments through a memory-mapped view instead of
	// seek+read.
	UseMmap bool
	// Registry, when non-nil, is used instead of storeio.Default to guard the
	// open-for-writing invariant; tests use a private registry so they
	// don't interfere with each other.
	Registry *storeio.Registry
}

func (o Opts) poolSize() int {
	if o.HandlePoolSize > 0 {
		return o.HandlePoolSize
	}
	if n, err := strconv.Atoi(os.Getenv("OMP_NUM_THREADS")); err == nil && n > 0 {
		return n
	}
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}

func (o Opts) registry() *storeio.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return storeio.Default
}

// Store is an opened read store: in-memory library and read tables plus a
// handle onto the blob segment files backing them.
type Store struct {
	ctx  context.Context
	path string
	mode Mode
	opts Opts

	info      gkrec.StoreInfo
	libraries []gkrec.Library
	reads     []gkrec.Read // index i is read i; index 0 is the reserved empty slot

	blobReader *blob.Reader
	blobWriter *blob.Writer
	writer     bool

	lock *storeio.WriteLock

	// translation is read-partition's rid -> index-within-partition table,
	// loaded from partitions/map.
	translation map[uint32]uint32
	// partitionBlob holds the whole partitions/blobs.PPPP file in memory
	// when this Store was opened with ReadPartition: a partition's blob
	// data is small enough (by construction, it's one consumer's share)
	// that the segment-pool machinery blob.Reader provides is unneeded.
	partitionBlob []byte
}

// Open resolves storePath into a Store under the given mode. create must
// not pre-exist; every other mode requires a sealed store already there.
func Open(ctx context.Context, storePath string, mode Mode, opts Opts) (*Store, error) {
	if (mode == Create || mode == Extend) && opts.PartitionID != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: mode %v does not accept a partitionID", mode))
	}
	if mode != ReadPartition && opts.PartitionID != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: mode %v does not accept a partitionID", mode))
	}
	if mode == BuildPartitions {
		return nil, errors.E(errors.Invalid, "readstore: build-partitions is invoked via BuildPartitions, not Open")
	}

	switch mode {
	case Create:
		return create(ctx, storePath, opts)
	case Extend:
		return openExtend(ctx, storePath, opts)
	case ReadAll:
		return openReadOnly(ctx, storePath, opts, 0)
	case ReadPartition:
		return openReadOnly(ctx, storePath, opts, opts.PartitionID)
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("readstore: unknown mode %v", mode))
	}
}

func create(ctx context.Context, storePath string, opts Opts) (*Store, error) {
	if storeio.Exists(ctx, storeio.InfoPath(storePath)) {
		return nil, errors.E(errors.Exists, fmt.Sprintf("readstore: create: store already exists at %s", storePath))
	}
	reg := opts.registry()
	if err := reg.AcquireWriter(storePath); err != nil {
		return nil, errors.E(errors.Precondition, err.Error())
	}
	s := &Store{
		ctx: ctx, path: storePath, mode: Create, opts: opts, writer: true,
		reads: make([]gkrec.Read, 1), // index 0 is the reserved empty slot
		info:  gkrec.StoreInfo{Magic: gkrec.MagicPlaceholder, RecordSize: gkrec.ReadSize},
	}
	bw, err := blob.NewWriter(ctx, storePath, 0)
	if err != nil {
		reg.ReleaseWriter(storePath)
		return nil, err
	}
	s.blobWriter = bw
	if err := writeInfo(ctx, storePath, &s.info, nil); err != nil {
		bw.Close()
		reg.ReleaseWriter(storePath)
		return nil, err
	}
	log.Debug.Printf("readstore: created %s", storePath)
	return s, nil
}

func openExtend(ctx context.Context, storePath string, opts Opts) (*Store, error) {
	s, err := loadMetadata(ctx, storePath, opts, 0)
	if err != nil {
		return nil, err
	}
	reg := opts.registry()
	if err := reg.AcquireWriter(storePath); err != nil {
		return nil, errors.E(errors.Precondition, err.Error())
	}
	if err := archiveVersion(ctx, storePath); err != nil {
		reg.ReleaseWriter(storePath)
		return nil, err
	}
	s.mode = Extend
	s.writer = true
	bw, err := blob.NewWriter(ctx, storePath, lastSegment(s.reads)+1)
	if err != nil {
		reg.ReleaseWriter(storePath)
		return nil, err
	}
	s.blobWriter = bw
	return s, nil
}

func openReadOnly(ctx context.Context, storePath string, opts Opts, partitionID int) (*Store, error) {
	if partitionID == 0 {
		s, err := loadMetadata(ctx, storePath, opts, 0)
		if err != nil {
			return nil, err
		}
		s.mode = ReadAll
		s.blobReader = blob.NewReader(ctx, storePath, blob.ReaderOpts{PoolSize: opts.poolSize(), UseMmap: opts.UseMmap})
		return s, nil
	}
	s, err := loadPartition(ctx, storePath, opts, partitionID)
	if err != nil {
		return nil, err
	}
	s.mode = ReadPartition
	return s, nil
}

// lastSegment returns the highest segment index any read in reads
// currently references; an Extend writer starts at the segment after it,
// so segments holding existing reads are never reopened for writing.
func lastSegment(reads []gkrec.Read) int {
	max := 0
	for i := range reads {
		if s := int(reads[i].MSegm()); s > max {
			max = s
		}
	}
	return max
}

// Close seals the store: metadata tables are written last, making close
// the commit point for create and extend modes (spec.md §5). Read-only
// modes simply release their blob reader.
func (s *Store) Close() error {
	if !s.writer {
		if s.blobReader != nil {
			return s.blobReader.Close()
		}
		return nil
	}
	defer s.opts.registry().ReleaseWriter(s.path)
	if s.lock != nil {
		defer s.lock.Unlock()
	}
	if _, err := s.blobWriter.Close(); err != nil {
		return err
	}
	s.info.Recount(s.reads)
	s.info.NumLibraries = uint32(len(s.libraries))
	s.info.NumReads = uint32(len(s.reads) - 1)
	s.info.RecordSize = gkrec.ReadSize
	s.info.Version = 1

	if err := writeLibraries(s.ctx, s.path, s.libraries); err != nil {
		return err
	}
	if err := writeReads(s.ctx, s.path, s.reads); err != nil {
		return err
	}
	s.info.Magic = gkrec.Magic
	checksums, err := segmentChecksums(s.ctx, s.path, lastSegment(s.reads)+1)
	if err != nil {
		return err
	}
	if err := writeInfo(s.ctx, s.path, &s.info, checksums); err != nil {
		return err
	}
	log.Debug.Printf("readstore: sealed %s: %d reads, %d libraries", s.path, s.info.NumReads, s.info.NumLibraries)
	return nil
}

// AddLibrary appends lib to the library table, returning its assigned id.
func (s *Store) AddLibrary(lib gkrec.Library) (uint32, error) {
	if !s.writer {
		return 0, errors.E(errors.Invalid, "readstore: AddLibrary on a read-only store")
	}
	lib.LibraryID = uint32(len(s.libraries)) + 1
	s.libraries = append(s.libraries, lib)
	return lib.LibraryID, nil
}

// AddEmptyRead reserves the next read identifier and returns it with an
// unpopulated record.
func (s *Store) AddEmptyRead() (uint32, error) {
	if !s.writer {
		return 0, errors.E(errors.Invalid, "readstore: AddEmptyRead on a read-only store")
	}
	rid := uint32(len(s.reads))
	s.reads = append(s.reads, gkrec.Read{ReadID: rid})
	return rid, nil
}

// GetRead returns read rid's metadata record in O(1).
func (s *Store) GetRead(rid uint32) (gkrec.Read, error) {
	if int(rid) >= len(s.reads) {
		return gkrec.Read{}, errors.E(errors.Invalid, fmt.Sprintf("readstore: rid %d out of range (have %d reads)", rid, len(s.reads)-1))
	}
	return s.reads[rid], nil
}

// NumReads returns the number of populated read slots (excluding the
// reserved index 0).
func (s *Store) NumReads() int { return len(s.reads) - 1 }

// NumLibraries returns the number of libraries.
func (s *Store) NumLibraries() int { return len(s.libraries) }

// LoadReadData seeks to rid's blob location, reads blob_len bytes, decodes
// its chunk stream, and resolves it to the requested version (spec.md
// §4.2: raw/corrected are decoded as-is; trimmed and latest-with-a-trim
// slice the corrected sequence down to [clear_bgn, clear_end)).
func (s *Store) LoadReadData(rid uint32, version gkrec.Version) (blob.ReadData, error) {
	r, err := s.GetRead(rid)
	if err != nil {
		return blob.ReadData{}, err
	}
	var buf []byte
	switch {
	case s.partitionBlob != nil:
		end := uint64(r.MByte()) + uint64(r.BlobLen)
		if end > uint64(len(s.partitionBlob)) {
			return blob.ReadData{}, errors.E(errors.Integrity, fmt.Sprintf("readstore: rid %d: blob range [%d,%d) exceeds partition blob file of %d bytes", rid, r.MByte(), end, len(s.partitionBlob)))
		}
		buf = s.partitionBlob[r.MByte():end]
	case s.blobReader != nil:
		loc := blob.Location{Segment: int(r.MSegm()), Offset: r.MByte()}
		var err error
		buf, err = s.blobReader.ReadAt(loc, r.BlobLen, 0)
		if err != nil {
			return blob.ReadData{}, err
		}
	default:
		return blob.ReadData{}, errors.E(errors.Invalid, "readstore: LoadReadData requires a read-only or read-partition store")
	}
	rd, err := blob.Decode(buf, r.RawSeqLen, r.CorrSeqLen)
	if err != nil {
		return blob.ReadData{}, err
	}
	if version == gkrec.VersionTrimmed || (version == gkrec.VersionLatest && r.TExists()) {
		if !r.TExists() {
			return blob.ReadData{}, errors.E(errors.Invalid, fmt.Sprintf("readstore: rid %d: trimmed version requested but no trim range is set", rid))
		}
		rd = rd.Trim(r.ClearBgn, r.ClearEnd)
	}
	return rd, nil
}

// SetTrim records read rid's clear-range trim bounds: the trimmed version
// (spec.md §4.2) is a suffix-slice [clearBgn, clearEnd) of the corrected
// sequence, so clearEnd must not exceed the read's corrected length.
func (s *Store) SetTrim(rid uint32, clearBgn, clearEnd uint32) error {
	if !s.writer {
		return errors.E(errors.Invalid, "readstore: SetTrim on a read-only store")
	}
	if int(rid) >= len(s.reads) {
		return errors.E(errors.Invalid, fmt.Sprintf("readstore: rid %d out of range", rid))
	}
	r := &s.reads[rid]
	if !r.CExists() {
		return errors.E(errors.Invalid, fmt.Sprintf("readstore: rid %d: SetTrim requires a corrected sequence first", rid))
	}
	if clearBgn > clearEnd || clearEnd > r.CorrSeqLen {
		return errors.E(errors.Invalid, fmt.Sprintf("readstore: rid %d: trim range [%d,%d) invalid for corrected length %d", rid, clearBgn, clearEnd, r.CorrSeqLen))
	}
	r.ClearBgn = clearBgn
	r.ClearEnd = clearEnd
	r.SetTExists(true)
	return nil
}

// StashReadData encodes rd into a blob, appends it to the current
// segment (rolling over as needed), and updates rid's read record in
// place with the resulting location and lengths.
func (s *Store) StashReadData(rid uint32, rd blob.ReadData, corrected bool) error {
	if !s.writer {
		return errors.E(errors.Invalid, "readstore: StashReadData on a read-only store")
	}
	if int(rid) >= len(s.reads) {
		return errors.E(errors.Invalid, fmt.Sprintf("readstore: rid %d out of range", rid))
	}
	loc, err := s.blobWriter.Append(rd)
	if err != nil {
		return err
	}
	r := &s.reads[rid]
	r.SetLocation(uint32(loc.Segment), loc.Offset)
	r.BlobLen = uint32(len(blob.Encode(rd)))
	if rd.RawSeq != "" {
		r.RawSeqLen = uint32(len(rd.RawSeq))
	}
	if corrected && rd.CorrSeq != "" {
		r.CorrSeqLen = uint32(len(rd.CorrSeq))
		r.SetCExists(true)
	}
	return nil
}
