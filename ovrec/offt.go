package ovrec

import "encoding/binary"

// OfftSize is the on-disk size, in bytes, of one Offt index entry.
const OfftSize = 24

// Offt is the overlap store's primary index entry (spec.md §3): for one
// a_iid, which data segment its overlaps start in, the record offset
// within that segment, how many overlaps it owns, and the running global
// overlapID at which its overlaps begin.
type Offt struct {
	AIID      uint32
	Fileno    uint32
	Offset    uint32
	NumOlaps  uint32
	OverlapID uint64
}

// Placeholder builds a zero-count index entry for an a_iid with no
// overlaps, carrying forward the previous segment's tail location so a
// reader seeking here lands somewhere valid (spec.md §4.4's "fills the
// gap" rule).
func Placeholder(aIID uint32, fileno, offset uint32, overlapID uint64) Offt {
	return Offt{AIID: aIID, Fileno: fileno, Offset: offset, NumOlaps: 0, OverlapID: overlapID}
}

// Marshal encodes o into the fixed OfftSize-byte wire layout.
func (o *Offt) Marshal(dst []byte) {
	_ = dst[OfftSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], o.AIID)
	binary.LittleEndian.PutUint32(dst[4:8], o.Fileno)
	binary.LittleEndian.PutUint32(dst[8:12], o.Offset)
	binary.LittleEndian.PutUint32(dst[12:16], o.NumOlaps)
	binary.LittleEndian.PutUint64(dst[16:24], o.OverlapID)
}

// Unmarshal decodes o from an OfftSize-byte wire record.
func (o *Offt) Unmarshal(src []byte) {
	_ = src[OfftSize-1]
	o.AIID = binary.LittleEndian.Uint32(src[0:4])
	o.Fileno = binary.LittleEndian.Uint32(src[4:8])
	o.Offset = binary.LittleEndian.Uint32(src[8:12])
	o.NumOlaps = binary.LittleEndian.Uint32(src[12:16])
	o.OverlapID = binary.LittleEndian.Uint64(src[16:24])
}
