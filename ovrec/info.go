package ovrec

import "encoding/binary"

// InfoSize is the on-disk size, in bytes, of an overlap store Info header.
const InfoSize = 40

// MagicPlaceholder is written at store creation time; see gkrec.MagicPlaceholder
// for the matching read-store convention.
const MagicPlaceholder = uint64(0)

// Magic is the real magic value a sealed overlap store carries.
const Magic = uint64(0x6f7673746f726531) // "ovstore1" in ASCII, as an int

// Info is the overlap store's header (spec.md §3): the smallest/largest
// a_iid actually represented, the total overlap count, the freeze magic,
// and the version/recordSize schema fingerprint.
type Info struct {
	SmallestID  uint32
	LargestID   uint32
	NumOverlaps uint64
	Magic       uint64
	Version     uint32
	RecordSize  uint32
}

// Sealed reports whether this info header carries the real magic rather
// than the create-time placeholder.
func (i *Info) Sealed() bool { return i.Magic == Magic }

// Marshal encodes i into the fixed InfoSize-byte wire layout.
func (i *Info) Marshal(dst []byte) {
	_ = dst[InfoSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], i.SmallestID)
	binary.LittleEndian.PutUint32(dst[4:8], i.LargestID)
	binary.LittleEndian.PutUint64(dst[8:16], i.NumOverlaps)
	binary.LittleEndian.PutUint64(dst[16:24], i.Magic)
	binary.LittleEndian.PutUint32(dst[24:28], i.Version)
	binary.LittleEndian.PutUint32(dst[28:32], i.RecordSize)
	binary.LittleEndian.PutUint64(dst[32:40], 0)
}

// Unmarshal decodes i from an InfoSize-byte wire record.
func (i *Info) Unmarshal(src []byte) {
	_ = src[InfoSize-1]
	i.SmallestID = binary.LittleEndian.Uint32(src[0:4])
	i.LargestID = binary.LittleEndian.Uint32(src[4:8])
	i.NumOverlaps = binary.LittleEndian.Uint64(src[8:16])
	i.Magic = binary.LittleEndian.Uint64(src[16:24])
	i.Version = binary.LittleEndian.Uint32(src[24:28])
	i.RecordSize = binary.LittleEndian.Uint32(src[28:32])
}
