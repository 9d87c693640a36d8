package gkrec

import "encoding/binary"

// InfoSize is the on-disk size, in bytes, of a StoreInfo header.
const InfoSize = 64

// MagicPlaceholder is written at store creation time, before any read is
// known to have been committed; it is overwritten with Magic only when the
// store seals successfully on close, giving the freeze marker spec.md §6
// describes ("a placeholder magic is written at create time and rewritten
// to the real magic only when the store seals successfully").
const MagicPlaceholder = uint64(0)

// Magic is the real magic value a sealed read store carries.
const Magic = uint64(0x676b73746f726531) // "gkstore1" in ASCII, as an int

// StoreInfo is the read store's header (spec.md §3's "info"), extended with
// the per-version read/base counters the original implementation recomputes
// on every close (see SPEC_FULL.md's "Read counters by version").
type StoreInfo struct {
	Magic        uint64
	Version      uint32
	RecordSize   uint32
	NumLibraries uint32
	NumReads     uint32

	NumRawReads       uint32
	NumRawBases       uint64
	NumCorrectedReads uint32
	NumCorrectedBases uint64
	NumTrimmedReads   uint32
	NumTrimmedBases   uint64
}

// Sealed reports whether this info header carries the real magic rather
// than the create-time placeholder.
func (i *StoreInfo) Sealed() bool { return i.Magic == Magic }

// Marshal encodes i into the fixed InfoSize-byte wire layout.
func (i *StoreInfo) Marshal(dst []byte) {
	_ = dst[InfoSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], i.Magic)
	binary.LittleEndian.PutUint32(dst[8:12], i.Version)
	binary.LittleEndian.PutUint32(dst[12:16], i.RecordSize)
	binary.LittleEndian.PutUint32(dst[16:20], i.NumLibraries)
	binary.LittleEndian.PutUint32(dst[20:24], i.NumReads)
	binary.LittleEndian.PutUint32(dst[24:28], i.NumRawReads)
	binary.LittleEndian.PutUint64(dst[28:36], i.NumRawBases)
	binary.LittleEndian.PutUint32(dst[36:40], i.NumCorrectedReads)
	binary.LittleEndian.PutUint64(dst[40:48], i.NumCorrectedBases)
	binary.LittleEndian.PutUint32(dst[48:52], i.NumTrimmedReads)
	binary.LittleEndian.PutUint64(dst[52:60], i.NumTrimmedBases)
	binary.LittleEndian.PutUint32(dst[60:64], 0)
}

// Unmarshal decodes i from an InfoSize-byte wire record.
func (i *StoreInfo) Unmarshal(src []byte) {
	_ = src[InfoSize-1]
	i.Magic = binary.LittleEndian.Uint64(src[0:8])
	i.Version = binary.LittleEndian.Uint32(src[8:12])
	i.RecordSize = binary.LittleEndian.Uint32(src[12:16])
	i.NumLibraries = binary.LittleEndian.Uint32(src[16:20])
	i.NumReads = binary.LittleEndian.Uint32(src[20:24])
	i.NumRawReads = binary.LittleEndian.Uint32(src[24:28])
	i.NumRawBases = binary.LittleEndian.Uint64(src[28:36])
	i.NumCorrectedReads = binary.LittleEndian.Uint32(src[36:40])
	i.NumCorrectedBases = binary.LittleEndian.Uint64(src[40:48])
	i.NumTrimmedReads = binary.LittleEndian.Uint32(src[48:52])
	i.NumTrimmedBases = binary.LittleEndian.Uint64(src[52:60])
}

// Recount recomputes the per-version read and base counters from reads,
// matching gkStore::~gkStore's recountReads pass. index 0 is the reserved
// empty slot and is skipped.
func (i *StoreInfo) Recount(reads []Read) {
	i.NumReads = 0
	i.NumRawReads, i.NumRawBases = 0, 0
	i.NumCorrectedReads, i.NumCorrectedBases = 0, 0
	i.NumTrimmedReads, i.NumTrimmedBases = 0, 0

	for idx := 1; idx < len(reads); idx++ {
		r := &reads[idx]
		if r.ReadID == 0 {
			continue
		}
		i.NumReads++
		if r.RawSeqLen > 0 {
			i.NumRawReads++
			i.NumRawBases += uint64(r.RawSeqLen)
		}
		if r.CorrSeqLen > 0 {
			i.NumCorrectedReads++
			i.NumCorrectedBases += uint64(r.CorrSeqLen)
		}
		if r.ClearBgn < r.ClearEnd {
			i.NumTrimmedReads++
			i.NumTrimmedBases += uint64(r.ClearEnd - r.ClearBgn)
		}
	}
}
