// Package ovrec defines the on-disk wire structs of the overlap store: the
// fixed-width overlap record, the primary index entry ("offt"), and the
// store's info header (spec.md §3, §4.4).
package ovrec

import "encoding/binary"

// OverlapSize is the on-disk size, in bytes, of one Overlap record.
const OverlapSize = 32

// Overlap is the minimal fixed-width overlap record spec.md §3 describes:
// two read identifiers plus a-hang/b-hang, an error-rate evalue, and
// flip/orientation flags.
type Overlap struct {
	AIID  uint32
	BIID  uint32
	AHang int32
	BHang int32
	// Evalue is the error rate, fixed-point scaled by 1e6 (matches the
	// original implementation's AS_OVS_ERRBITS-style fixed-point encoding
	// rather than carrying a float on disk).
	Evalue uint32
	Flags  uint32 // bit 0: flipped; remaining bits reserved
	_      uint64 // pad to OverlapSize; reserved for future fields
}

const flagFlipped = 1 << 0

// Flipped reports whether the B read is reverse-complemented relative to A.
func (o *Overlap) Flipped() bool { return o.Flags&flagFlipped != 0 }

// SetFlipped sets or clears the flipped bit.
func (o *Overlap) SetFlipped(v bool) {
	if v {
		o.Flags |= flagFlipped
	} else {
		o.Flags &^= flagFlipped
	}
}

// Less orders overlaps by (a_iid, b_iid), the store's natural ordering
// (spec.md §3).
func (o *Overlap) Less(other *Overlap) bool {
	if o.AIID != other.AIID {
		return o.AIID < other.AIID
	}
	return o.BIID < other.BIID
}

// Marshal encodes o into the fixed OverlapSize-byte wire layout.
func (o *Overlap) Marshal(dst []byte) {
	_ = dst[OverlapSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], o.AIID)
	binary.LittleEndian.PutUint32(dst[4:8], o.BIID)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(o.AHang))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(o.BHang))
	binary.LittleEndian.PutUint32(dst[16:20], o.Evalue)
	binary.LittleEndian.PutUint32(dst[20:24], o.Flags)
	binary.LittleEndian.PutUint64(dst[24:32], 0)
}

// Unmarshal decodes o from an OverlapSize-byte wire record.
func (o *Overlap) Unmarshal(src []byte) {
	_ = src[OverlapSize-1]
	o.AIID = binary.LittleEndian.Uint32(src[0:4])
	o.BIID = binary.LittleEndian.Uint32(src[4:8])
	o.AHang = int32(binary.LittleEndian.Uint32(src[8:12]))
	o.BHang = int32(binary.LittleEndian.Uint32(src[12:16]))
	o.Evalue = binary.LittleEndian.Uint32(src[16:20])
	o.Flags = binary.LittleEndian.Uint32(src[20:24])
}
