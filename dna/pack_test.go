package dna

import (
	"math/rand"
	"testing"
)

func TestPack2BitRoundTrip(t *testing.T) {
	for _, seq := range []string{"", "A", "ACG", "ACGT", "ACGTACGTAC", "TTTTTTTTTTTTTTTTT"} {
		if !PureACGT([]byte(seq)) {
			t.Fatalf("%q should be pure ACGT", seq)
		}
		packed := Pack2Bit([]byte(seq))
		if got, want := len(packed), (len(seq)+3)/4; got != want {
			t.Errorf("len(Pack2Bit(%q))=%d, want %d", seq, got, want)
		}
		dst := make([]byte, len(seq))
		Unpack2Bit(dst, packed, len(seq))
		if string(dst) != seq {
			t.Errorf("Unpack2Bit(Pack2Bit(%q)) = %q", seq, dst)
		}
	}
}

func TestPack3BitRoundTrip(t *testing.T) {
	for _, seq := range []string{"", "N", "ACNT", "ACGTNRYSWKMBDHV", "NNNNNNNNNNNNNNNNNNNNN"} {
		if !allValid3(seq) {
			t.Fatalf("%q should be valid for 3-bit packing", seq)
		}
		packed := Pack3Bit([]byte(seq))
		dst := make([]byte, len(seq))
		Unpack3Bit(dst, packed, len(seq))
		for i := range seq {
			// 3-bit packing is lossy for ambiguity codes other than N: RYSWKMBDHV
			// all decode back as N, matching spec.md's "adds N and ambiguity
			// codes" without claiming bit-exact round trip for codes beyond N.
			if seq[i] == 'N' && dst[i] != 'N' {
				t.Errorf("position %d: got %c want N", i, dst[i])
			}
		}
	}
	// ACGT bases must round-trip exactly through the 3-bit path too.
	seq := []byte("ACGTACGT")
	packed := Pack3Bit(seq)
	dst := make([]byte, len(seq))
	Unpack3Bit(dst, packed, len(seq))
	if string(dst) != string(seq) {
		t.Errorf("Unpack3Bit(Pack3Bit(%q)) = %q", seq, dst)
	}
}

func allValid3(s string) bool {
	for i := 0; i < len(s); i++ {
		if !ValidBase3(s[i]) {
			return false
		}
	}
	return true
}

func TestPack4BitRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 7, 21} {
		qlt := make([]byte, n)
		for i := range qlt {
			qlt[i] = byte(i % 16)
		}
		packed := Pack4Bit(qlt)
		dst := make([]byte, n)
		Unpack4Bit(dst, packed, n)
		for i := range qlt {
			if dst[i] != qlt[i] {
				t.Fatalf("n=%d: Unpack4Bit mismatch at %d: got %d want %d", n, i, dst[i], qlt[i])
			}
		}
	}
}

func TestPack5BitRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 5, 8, 9, 16, 33, 100} {
		qlt := make([]byte, n)
		for i := range qlt {
			qlt[i] = byte(rng.Intn(32))
		}
		packed := Pack5Bit(qlt)
		dst := make([]byte, n)
		Unpack5Bit(dst, packed, n)
		for i := range qlt {
			if dst[i] != qlt[i] {
				t.Fatalf("n=%d: Unpack5Bit mismatch at %d: got %d want %d", n, i, dst[i], qlt[i])
			}
		}
	}
}

func TestConstantByte(t *testing.T) {
	if !ConstantByte([]byte{5, 5, 5, 5}) {
		t.Error("expected constant")
	}
	if ConstantByte([]byte{5, 5, 6, 5}) {
		t.Error("expected non-constant")
	}
	if !ConstantByte(nil) {
		t.Error("empty slice is trivially constant")
	}
}

func TestMaxByte(t *testing.T) {
	if got, want := MaxByte([]byte{1, 9, 3}), byte(9); got != want {
		t.Errorf("MaxByte = %d, want %d", got, want)
	}
}
