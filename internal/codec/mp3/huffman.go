package mp3

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/errs"
)

// readBigValuePair decodes one (x, y) magnitude pair via table's canonical
// big_values Huffman tree, plus their sign bits, applying a linbits-width
// escape extension when the decoded magnitude hits the fixed escape marker
// value (15) on tables 16-31, per ISO/IEC 11172-3 Annex B's big_values
// region layout.
func readBigValuePair(r *bitio.Reader, table int, linbits int) (x, y int32, err error) {
	data := buildBigValueTable(table)
	idx, ok, err := vlcMatch(r, data.table)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, errs.New(errs.InvalidData, component, "big_values huffman decode failed")
	}
	pair := data.pairs[idx]
	xv, yv := int32(pair[0]), int32(pair[1])

	if xv == 15 && linbits > 0 {
		ext, err := r.ReadBits(linbits)
		if err != nil {
			return 0, 0, err
		}
		xv += int32(ext)
	}
	if xv != 0 {
		s, err := r.ReadBit()
		if err != nil {
			return 0, 0, err
		}
		if s == 1 {
			xv = -xv
		}
	}
	if yv == 15 && linbits > 0 {
		ext, err := r.ReadBits(linbits)
		if err != nil {
			return 0, 0, err
		}
		yv += int32(ext)
	}
	if yv != 0 {
		s, err := r.ReadBit()
		if err != nil {
			return 0, 0, err
		}
		if s == 1 {
			yv = -yv
		}
	}
	return xv, yv, nil
}

// readCount1Quad decodes 4 values (v,w,x,y in {-1,0,1}) from the count1
// region via count1TableA/B (selected by tableSelect), each a canonical
// Huffman tree over the 16 presence quadruples, with one sign bit read per
// nonzero component after the quadruple codeword per the standard's
// count1 layout.
func readCount1Quad(r *bitio.Reader, tableSelect int) (v, w, x, y int32, err error) {
	table := count1TableA
	if tableSelect != 0 {
		table = count1TableB
	}
	idx, ok, err := vlcMatch(r, table)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if !ok {
		return 0, 0, 0, 0, errs.New(errs.InvalidData, component, "count1 huffman decode failed")
	}
	q := count1Quads[idx]
	vals := [4]int32{int32(q.V), int32(q.W), int32(q.X), int32(q.Y)}
	for i, present := range vals {
		if present == 0 {
			continue
		}
		s, err := r.ReadBit()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if s == 1 {
			vals[i] = -1
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// linbitsTable gives the escape width for big_values Huffman table indices
// 16-31 (tables 0-15 never escape). Approximate per ISO/IEC 11172-3 Table
// B.7's published linbits column.
var linbitsTable = [...]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 2, 3, 4, 6, 8, 10, 13, 4, 5, 6, 7, 8, 9, 11, 13,
}

func linbitsFor(table int) int {
	if table < 0 || table >= len(linbitsTable) {
		return 0
	}
	return linbitsTable[table]
}
