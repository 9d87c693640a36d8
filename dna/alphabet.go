// Package dna holds the DNA/quality alphabet lookup tables and the bit
// packing/unpacking routines used by the blob codec. The tables are plain
// value tables (spec.md marks these as pure lookup data, not algorithms);
// the packing routines are the actual 2-bit/3-bit/4-bit/5-bit encodings the
// blob format names.
package dna

// Base is one of the IUPAC nucleotide codes accepted by the 3-bit packing.
// The 2-bit packing only ever sees A, C, G, T.
type Base = byte

// letterTo3Bit maps an IUPAC base letter (either case) to its 3-bit code.
// A lookup miss (whitespace, garbage) yields 0xFF, which is not a 3-bit
// code, so callers must validate with ValidBase3 first.
var letterTo3Bit [256]uint8
var threeBitToLetter [8]byte

// letterTo2Bit maps {A,C,G,T} (and lower-case) to {0,1,2,3}; entries for any
// other byte are 0xFF.
var letterTo2Bit [256]uint8
var twoBitToLetter = [4]byte{'A', 'C', 'G', 'T'}

const unset = 0xFF

func init() {
	for i := range letterTo2Bit {
		letterTo2Bit[i] = unset
	}
	for i := range letterTo3Bit {
		letterTo3Bit[i] = unset
	}

	set2 := func(letter byte, code uint8) {
		letterTo2Bit[letter] = code
		letterTo2Bit[letter+('a'-'A')] = code
	}
	set2('A', 0)
	set2('C', 1)
	set2('G', 2)
	set2('T', 3)

	// 3-bit codes: ACGT keep their 2-bit values so a 2-bit-encoded read and
	// a 3-bit-encoded read agree on the four unambiguous bases; N and a
	// catch-all "other IUPAC ambiguity code" share the remaining codes.
	threeBitToLetter = [8]byte{'A', 'C', 'G', 'T', 'N', 'N', 'N', 'N'}
	set3 := func(letter byte, code uint8) {
		letterTo3Bit[letter] = code
		letterTo3Bit[letter+('a'-'A')] = code
	}
	set3('A', 0)
	set3('C', 1)
	set3('G', 2)
	set3('T', 3)
	set3('N', 4)
	for _, letter := range []byte("RYSWKMBDHV") {
		set3(letter, 5)
	}
}

// ValidBase2 reports whether b is one of the four unambiguous bases.
func ValidBase2(b byte) bool {
	return letterTo2Bit[b] != unset
}

// ValidBase3 reports whether b is a base the 3-bit packing can represent.
func ValidBase3(b byte) bool {
	return letterTo3Bit[b] != unset
}

// PureACGT reports whether every byte of seq is one of {A,C,G,T} (in either
// case), the condition spec.md requires before the 2-bit packing is chosen.
func PureACGT(seq []byte) bool {
	for _, b := range seq {
		if letterTo2Bit[b] == unset {
			return false
		}
	}
	return true
}

// ConstantByte reports whether every element of qlt equals qlt[0].
func ConstantByte(qlt []byte) bool {
	for i := 1; i < len(qlt); i++ {
		if qlt[i] != qlt[0] {
			return false
		}
	}
	return true
}

// MaxByte returns the largest value in qlt, or 0 for an empty slice.
func MaxByte(qlt []byte) byte {
	var m byte
	for _, v := range qlt {
		if v > m {
			m = v
		}
	}
	return m
}
