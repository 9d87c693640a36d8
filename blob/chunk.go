// Package blob implements the tagged-chunk byte stream that carries each
// read's name, sequence, and quality payload (spec.md §4.1). A chunk
// stream is forward-compatible by construction: an unrecognised tag is
// skipped by length rather than rejected, so newer writers can add chunk
// kinds without breaking older readers.
package blob

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/gkstore/dna"
)

// Tag identifies a chunk's payload kind. Tags are always exactly 4 ASCII
// bytes on the wire.
type Tag [4]byte

var (
	TagBlob = Tag{'B', 'L', 'O', 'B'} // group header; length == byte sum of following chunks
	TagName = Tag{'N', 'A', 'M', 'E'} // NUL-terminated name
	Tag2Seq = Tag{'2', 'S', 'Q', 'S'} // 2-bit packed sequence
	Tag3Seq = Tag{'3', 'S', 'Q', 'S'} // 3-bit packed sequence
	Tag4Qlt = Tag{'4', 'Q', 'L', 'T'} // 4-bit packed quality
	Tag5Qlt = Tag{'5', 'Q', 'L', 'T'} // 5-bit packed quality
	TagCQlt = Tag{'Q', 'V', 'd', 'f'} // constant quality
)

// chunkHeaderSize is the on-disk size of a chunk's tag+length prefix.
const chunkHeaderSize = 8

// ReadData is the decoded form of one read's blob: its name plus whichever
// sequence/quality pairs were present in the stream (spec.md §4.1's
// encode/decode contract).
type ReadData struct {
	Name string

	RawSeq string
	RawQlt []byte // one quality value per base, 0-31

	CorrSeq string
	CorrQlt []byte
}

// Trim returns rd with its corrected sequence/quality restricted to
// [bgn,end): spec.md §4.2's trimmed version is a suffix-slice of the
// corrected sequence, not a chunk kind of its own, so there is no
// TrimSeq/TrimQlt field to decode — callers derive it from the owning
// read record's clear range instead.
func (rd ReadData) Trim(bgn, end uint32) ReadData {
	out := rd
	if end > uint32(len(rd.CorrSeq)) {
		end = uint32(len(rd.CorrSeq))
	}
	if bgn > end {
		bgn = end
	}
	out.CorrSeq = rd.CorrSeq[bgn:end]
	if rd.CorrQlt != nil {
		qEnd := end
		if qEnd > uint32(len(rd.CorrQlt)) {
			qEnd = uint32(len(rd.CorrQlt))
		}
		qBgn := bgn
		if qBgn > qEnd {
			qBgn = qEnd
		}
		out.CorrQlt = rd.CorrQlt[qBgn:qEnd]
	}
	return out
}

// appendChunk appends one chunk (tag + 4-byte length + payload) to dst.
func appendChunk(dst []byte, tag Tag, payload []byte) []byte {
	dst = append(dst, tag[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, payload...)
}

// encodeSeq appends the sequence chunk for seq, picking 2-bit packing when
// every base is pure ACGT and 3-bit otherwise (spec.md's "Sequence encoder
// picks 2-bit if the string is pure ACGT else 3-bit").
func encodeSeq(dst []byte, seq string, twoBit, threeBit Tag) []byte {
	b := unsafe.StringToBytes(seq)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if dna.PureACGT(b) {
		payload := append(append([]byte(nil), lenBuf[:]...), dna.Pack2Bit(b)...)
		return appendChunk(dst, twoBit, payload)
	}
	payload := append(append([]byte(nil), lenBuf[:]...), dna.Pack3Bit(b)...)
	return appendChunk(dst, threeBit, payload)
}

// encodeQlt appends the quality chunk for qlt, picking constant, then
// 4-bit, then 5-bit per spec.md's "Quality encoder picks constant if all
// values equal, else 4-bit if max <= 15, else 5-bit."
func encodeQlt(dst []byte, qlt []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(qlt)))
	switch {
	case dna.ConstantByte(qlt):
		var v byte
		if len(qlt) > 0 {
			v = qlt[0]
		}
		payload := append(append([]byte(nil), lenBuf[:]...), v)
		return appendChunk(dst, TagCQlt, payload)
	case dna.MaxByte(qlt) <= 15:
		payload := append(append([]byte(nil), lenBuf[:]...), dna.Pack4Bit(qlt)...)
		return appendChunk(dst, Tag4Qlt, payload)
	default:
		payload := append(append([]byte(nil), lenBuf[:]...), dna.Pack5Bit(qlt)...)
		return appendChunk(dst, Tag5Qlt, payload)
	}
}

// Encode produces the byte stream for one read's blob: a BLOB header chunk
// whose length equals the byte sum of the chunks that follow, a NAME
// chunk, then whichever sequence/quality chunks rd's fields populate
// (spec.md §4.1's encode contract).
func Encode(rd ReadData) []byte {
	var body []byte
	body = appendChunk(body, TagName, append([]byte(rd.Name), 0))
	if rd.RawSeq != "" {
		body = encodeSeq(body, rd.RawSeq, Tag2Seq, Tag3Seq)
	}
	if rd.RawQlt != nil {
		body = encodeQlt(body, rd.RawQlt)
	}
	if rd.CorrSeq != "" {
		body = encodeSeq(body, rd.CorrSeq, Tag2Seq, Tag3Seq)
	}
	if rd.CorrQlt != nil {
		body = encodeQlt(body, rd.CorrQlt)
	}
	out := appendChunk(nil, TagBlob, make([]byte, 0))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(body)))
	return append(out, body...)
}

// Decode parses a blob byte stream, filling in whichever sequence/quality
// fields it encounters. The stream doesn't label raw vs. corrected, so the
// first sequence (and quality) chunk is taken as raw and the second as
// corrected. rawSeqLen/corrSeqLen (in bases, from the owning read record)
// are the caller-supplied expected base counts spec.md §4.1 requires
// Decode to validate a chunk's unpacked length against: a mismatch fails
// BadPacking. Pass 0 for either length to skip that check (e.g. a read
// with no corrected sequence at all has corrSeqLen == 0 and no second
// sequence chunk to validate).
func Decode(buf []byte, rawSeqLen, corrSeqLen uint32) (ReadData, error) {
	var rd ReadData
	pos := 0
	seqSeen := 0
	qltSeen := 0
	for pos < len(buf) {
		if pos+chunkHeaderSize > len(buf) {
			return rd, errors.E(errors.Integrity, fmt.Sprintf("blob: truncated chunk header at offset %d", pos))
		}
		var tag Tag
		copy(tag[:], buf[pos:pos+4])
		length := binary.LittleEndian.Uint32(buf[pos+4 : pos+8])
		pos += chunkHeaderSize
		if pos+int(length) > len(buf) {
			return rd, errors.E(errors.Invalid, fmt.Sprintf("blob: chunk length %d at offset %d exceeds remaining %d bytes", length, pos, len(buf)-pos))
		}
		payload := buf[pos : pos+int(length)]
		pos += int(length)

		switch tag {
		case TagBlob:
			// group header: its payload is the chunks that follow, so step
			// back into them rather than skipping the whole group.
			pos -= int(length)
		case TagName:
			end := len(payload)
			if end > 0 && payload[end-1] == 0 {
				end--
			}
			rd.Name = unsafe.BytesToString(payload[:end])
		case Tag2Seq, Tag3Seq:
			if len(payload) < 4 {
				return rd, errors.E(errors.Invalid, "blob: sequence chunk missing length prefix")
			}
			n := int(binary.LittleEndian.Uint32(payload[0:4]))
			var expected uint32
			if seqSeen == 0 {
				expected = rawSeqLen
			} else {
				expected = corrSeqLen
			}
			if expected != 0 && uint32(n) != expected {
				return rd, errors.E(errors.Invalid, fmt.Sprintf("blob: chunk decoded %d bases, expected %d (BadPacking)", n, expected))
			}
			dst := make([]byte, n)
			if tag == Tag2Seq {
				dna.Unpack2Bit(dst, payload[4:], n)
			} else {
				dna.Unpack3Bit(dst, payload[4:], n)
			}
			if seqSeen == 0 {
				rd.RawSeq = unsafe.BytesToString(dst)
			} else {
				rd.CorrSeq = unsafe.BytesToString(dst)
			}
			seqSeen++
		case Tag4Qlt, Tag5Qlt, TagCQlt:
			if len(payload) < 4 {
				return rd, errors.E(errors.Invalid, "blob: quality chunk missing length prefix")
			}
			n := int(binary.LittleEndian.Uint32(payload[0:4]))
			dst := make([]byte, n)
			switch tag {
			case Tag4Qlt:
				dna.Unpack4Bit(dst, payload[4:], n)
			case Tag5Qlt:
				dna.Unpack5Bit(dst, payload[4:], n)
			case TagCQlt:
				var v byte
				if len(payload) > 4 {
					v = payload[4]
				}
				for i := range dst {
					dst[i] = v
				}
			}
			if qltSeen == 0 {
				rd.RawQlt = dst
			} else {
				rd.CorrQlt = dst
			}
			qltSeen++
		default:
			log.Debug.Printf("blob: skipping unknown chunk tag %q (%d bytes) at offset %d", tag[:], length, pos-chunkHeaderSize-int(length))
		}
	}
	return rd, nil
}
