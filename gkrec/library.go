package gkrec

import "encoding/binary"

// LibrarySize is the on-disk size, in bytes, of a Library record.
const LibrarySize = 128

const libraryNameLen = LibrarySize - 8

// Library describes a sample/prep shared by many reads (spec.md §3).
// Libraries are tiny in number (tens to hundreds) and are always held
// entirely in memory; the fixed-size on-disk record exists only so the
// library table can be loaded with one positional read, matching how the
// read table is loaded.
type Library struct {
	LibraryID uint32
	DefaultQV uint8
	// Name is the library's human-readable name, truncated to
	// libraryNameLen-1 bytes and NUL-terminated on marshal.
	Name string
}

// Marshal encodes l into the fixed LibrarySize-byte wire layout.
func (l *Library) Marshal(dst []byte) {
	_ = dst[LibrarySize-1]
	binary.LittleEndian.PutUint32(dst[0:4], l.LibraryID)
	dst[4] = l.DefaultQV
	dst[5] = 0
	dst[6] = 0
	dst[7] = 0
	for i := 8; i < LibrarySize; i++ {
		dst[i] = 0
	}
	n := copy(dst[8:LibrarySize-1], l.Name)
	_ = n
}

// Unmarshal decodes l from a LibrarySize-byte wire record.
func (l *Library) Unmarshal(src []byte) {
	_ = src[LibrarySize-1]
	l.LibraryID = binary.LittleEndian.Uint32(src[0:4])
	l.DefaultQV = src[4]
	end := 8
	for end < LibrarySize && src[end] != 0 {
		end++
	}
	l.Name = string(src[8:end])
}
