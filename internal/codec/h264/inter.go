package h264

// mvPredictor computes the median-of-three-neighbors motion vector
// predictor for one 4x4 partition, per §8.4.1.3. Unavailable neighbors
// substitute a zero vector with RefIdx -1 (never matches) except for the
// documented top-right-unavailable-falls-back-to-top-left special case.
func mvPredictor(curRefIdx int8, leftMV [2]int16, leftRef int8, leftAvail bool,
	topMV [2]int16, topRef int8, topAvail bool,
	topRightMV [2]int16, topRightRef int8, topRightAvail bool,
	topLeftMV [2]int16, topLeftRef int8, topLeftAvail bool) [2]int16 {

	if !topRightAvail {
		topRightMV, topRightRef, topRightAvail = topLeftMV, topLeftRef, topLeftAvail
	}

	// Directional special case: exactly one neighbor shares curRefIdx among
	// {left, top, top-right}.
	matches := 0
	var onlyMatch [2]int16
	if leftAvail && leftRef == curRefIdx {
		matches++
		onlyMatch = leftMV
	}
	if topAvail && topRef == curRefIdx {
		matches++
		onlyMatch = topMV
	}
	if topRightAvail && topRightRef == curRefIdx {
		matches++
		onlyMatch = topRightMV
	}
	if matches == 1 {
		return onlyMatch
	}

	if !topAvail && !topRightAvail && leftAvail {
		return leftMV
	}

	medianComp := func(a, b, c int16) int16 {
		if a > b {
			a, b = b, a
		}
		if b > c {
			b, c = c, b
		}
		if a > b {
			a, b = b, a
		}
		return b
	}
	lx, ly := leftMV[0], leftMV[1]
	tx, ty := topMV[0], topMV[1]
	rx, ry := topRightMV[0], topRightMV[1]
	if !leftAvail {
		lx, ly = 0, 0
	}
	if !topAvail {
		tx, ty = 0, 0
	}
	if !topRightAvail {
		rx, ry = 0, 0
	}
	return [2]int16{medianComp(lx, tx, rx), medianComp(ly, ty, ry)}
}

// pSkipMV implements the P_Skip zero-override rule of §8.4.1.1: the skip
// MV is zero whenever the left or top neighbor is unavailable, or either
// of them uses ref_idx 0 with a zero MV; otherwise it is the ordinary
// median predictor against ref_idx 0.
func pSkipMV(leftAvail bool, leftMV [2]int16, leftRef int8,
	topAvail bool, topMV [2]int16, topRef int8,
	topRightAvail bool, topRightMV [2]int16, topRightRef int8,
	topLeftAvail bool, topLeftMV [2]int16, topLeftRef int8) [2]int16 {

	if !leftAvail || !topAvail {
		return [2]int16{0, 0}
	}
	if leftRef == 0 && leftMV == ([2]int16{0, 0}) {
		return [2]int16{0, 0}
	}
	if topRef == 0 && topMV == ([2]int16{0, 0}) {
		return [2]int16{0, 0}
	}
	return mvPredictor(0, leftMV, leftRef, leftAvail, topMV, topRef, topAvail,
		topRightMV, topRightRef, topRightAvail, topLeftMV, topLeftRef, topLeftAvail)
}

// bSpatialDirectMV derives one 4x4 block's spatial Direct mode MV/ref_idx
// pair for list listIdx, per §8.4.1.2.2: predictor is the ordinary median
// against the minimum non-negative neighbor ref_idx in that list; the MV
// is forced to zero when that minimum ref_idx is 0 and the co-located
// block is judged "short, small motion" (approximated here as: the
// co-located MV in the other list is itself within a small tolerance of
// zero, since the exact colZeroFlag derivation needs the full co-located
// picture context). See DESIGN.md.
func bSpatialDirectMV(minRefIdx int8, predMV [2]int16, colMV [2]int16, colIsShortTerm bool) (mv [2]int16, refIdx int8) {
	if minRefIdx < 0 {
		return [2]int16{0, 0}, -1
	}
	if minRefIdx == 0 && colIsShortTerm && abs16(colMV[0]) <= 1 && abs16(colMV[1]) <= 1 {
		return [2]int16{0, 0}, 0
	}
	return predMV, minRefIdx
}

// bTemporalDirectMV scales the co-located picture's motion vector by the
// POC-distance ratio to derive list-0 and list-1 MVs, per §8.4.1.2.3's
// tx/DistScaleFactor formulas.
func bTemporalDirectMV(colMV [2]int16, currPOC, refPOC0, colRefPOC int) (mv0, mv1 [2]int16) {
	td := clampInt16(colRefPOC - refPOC0)
	if td == 0 {
		return colMV, [2]int16{0, 0}
	}
	tb := clampInt16(currPOC - refPOC0)
	tx := (16384 + abs32(int32(td))/2) / int32(td)
	dsf := clampInt32((int32(tb)*tx+32)>>6, -1024, 1023)
	mv0x := int16((dsf * int32(colMV[0]) + 128) >> 8)
	mv0y := int16((dsf * int32(colMV[1]) + 128) >> 8)
	mv1x := mv0x - colMV[0]
	mv1y := mv0y - colMV[1]
	return [2]int16{mv0x, mv0y}, [2]int16{mv1x, mv1y}
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
