package h264

// alphaTable/betaTable are Table 8-18's α/β values indexed by indexA/indexB
// (clipped QP-plus-offset index, 0..51).
var alphaTable = [52]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	4, 4, 5, 6, 7, 8, 9, 10, 12, 13, 15, 17, 20, 22, 25, 28,
	32, 36, 40, 45, 50, 56, 63, 71, 80, 90, 101, 113, 127, 144, 162, 182,
	203, 226, 255, 255,
}

var betaTable = [52]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13, 14, 14, 15, 15, 16, 16,
	17, 17, 18, 18,
}

// tc0Table is Table 8-18's tC0 values for bS in {1,2,3} (bS==4 uses a
// separate strong-filter branch with no tC0 lookup).
var tc0Table = [3][52]int{
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2,
		2, 2, 2, 3},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1,
		1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 4, 4, 4,
		5, 6, 6, 7},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2,
		2, 3, 3, 3, 4, 4, 4, 5, 6, 6, 7, 8, 8, 10, 11, 12,
		13, 15, 17, 25},
}

// blockCoded4x4 reports whether 4x4 luma block blk (z-scan index) carries a
// nonzero coded residual, folding in the 8x8-transform case where coded
// status is tracked per 8x8 group rather than per 4x4 block.
func blockCoded4x4(mb *mbInfo, blk int) bool {
	if mb.IPCM {
		return true
	}
	if mb.Transform8x8 {
		return mb.CodedLuma8x8[blk8Group(blk)]
	}
	return mb.CodedLuma4x4[blk]
}

// boundaryStrength4x4 derives bS for the edge between 4x4 luma block pBlk of
// pMB and 4x4 luma block qBlk of qMB, per §8.7.2.1's four-way
// classification: intra on either side of a macroblock boundary is the
// strongest (4), intra on either side of an internal edge is 3, a nonzero
// coded residual on either side is 2, and otherwise blocks differing in
// reference index or carrying a motion vector component that differs by 4
// or more (quarter-pel units) get 1.
func boundaryStrength4x4(pMB *mbInfo, pBlk int, qMB *mbInfo, qBlk int, mbEdge bool) int {
	if pMB.IsIntra || qMB.IsIntra {
		if mbEdge {
			return 4
		}
		return 3
	}
	if blockCoded4x4(pMB, pBlk) || blockCoded4x4(qMB, qBlk) {
		return 2
	}
	for list := 0; list < 2; list++ {
		pRef, qRef := pMB.RefIdx[list][pBlk], qMB.RefIdx[list][qBlk]
		if pRef < 0 && qRef < 0 {
			continue
		}
		if pRef != qRef {
			return 1
		}
		pmv, qmv := pMB.MV[list][pBlk], qMB.MV[list][qBlk]
		if abs(int(pmv[0])-int(qmv[0])) >= 4 || abs(int(pmv[1])-int(qmv[1])) >= 4 {
			return 1
		}
	}
	return 0
}

// filterLumaEdge applies the normal (bS 1..3) or strong (bS==4) luma
// deblocking filter to one 4-sample-long edge, per §8.7.2.3/§8.7.2.4.
// samples q0..q3 lie on the "q" side (to be filtered), p0..p3 on the "p"
// side; get/set abstract the perpendicular sample walk so the same code
// serves both vertical and horizontal edges.
func filterLumaEdge(bs int, qp, qq int, get func(int) int, set func(int, int)) {
	if bs == 0 {
		return
	}
	p0, p1, p2, p3 := get(-1), get(-2), get(-3), get(-4)
	q0, q1, q2, q3 := get(0), get(1), get(2), get(3)

	idxA := clamp(qp, 0, 51)
	alpha := alphaTable[idxA]
	beta := betaTable[clamp(qq, 0, 51)]
	if abs(p0-q0) >= alpha || abs(p1-p0) >= beta || abs(q1-q0) >= beta {
		return
	}

	if bs == 4 {
		apCond := abs(p2-p0) < beta && abs(p0-q0) < (alpha/4+2)
		aqCond := abs(q2-q0) < beta && abs(p0-q0) < (alpha/4+2)
		if apCond {
			set(-1, (p2+2*p1+2*p0+2*q0+q1+4)>>3)
			set(-2, (p2+p1+p0+q0+2)>>2)
			set(-3, (2*p3+3*p2+p1+p0+q0+4)>>3)
		} else {
			set(-1, (2*p1+p0+q1+2)>>2)
		}
		if aqCond {
			set(0, (q2+2*q1+2*q0+2*p0+p1+4)>>3)
			set(1, (q2+q1+q0+p0+2)>>2)
			set(2, (2*q3+3*q2+q1+q0+p0+4)>>3)
		} else {
			set(0, (2*q1+q0+p1+2)>>2)
		}
		return
	}

	tc0 := tc0Table[bs-1][idxA]
	apCond := abs(p2-p0) < beta
	aqCond := abs(q2-q0) < beta
	tc := tc0
	if apCond {
		tc++
	}
	if aqCond {
		tc++
	}
	delta := clampSym((((q0-p0)*4 + (p1-q1) + 4) >> 3), tc)
	set(-1, int(clampByteInt(p0+delta)))
	set(0, int(clampByteInt(q0-delta)))
	if apCond {
		deltaP1 := clampSym((p2+(p0+q0+1)>>1-2*p1)>>1, tc0)
		set(-2, int(clampByteInt(p1+deltaP1)))
	}
	if aqCond {
		deltaQ1 := clampSym((q2+(p0+q0+1)>>1-2*q1)>>1, tc0)
		set(1, int(clampByteInt(q1+deltaQ1)))
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampSym(v, limit int) int {
	if v < -limit {
		return -limit
	}
	if v > limit {
		return limit
	}
	return v
}

func clampByteInt(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// filterChromaEdge applies the simpler chroma deblocking filter (always
// the bS 1..3 "normal" branch; chroma never gets the strong bS==4 formula
// beyond a direct average at MB boundaries), per §8.7.2.4.
func filterChromaEdge(bs int, qpIdx int, get func(int) int, set func(int, int)) {
	if bs == 0 {
		return
	}
	p0, p1 := get(-1), get(-2)
	q0, q1 := get(0), get(1)
	idxA := clamp(qpIdx, 0, 51)
	alpha := alphaTable[idxA]
	beta := betaTable[idxA]
	if abs(p0-q0) >= alpha || abs(p1-p0) >= beta || abs(q1-q0) >= beta {
		return
	}
	if bs == 4 {
		set(-1, (2*p1+p0+q1+2)>>2)
		set(0, (2*q1+q0+p1+2)>>2)
		return
	}
	tc0 := tc0Table[bs-1][idxA]
	tc := tc0 + 1
	delta := clampSym((((q0-p0)*4 + (p1-q1) + 4) >> 3), tc)
	set(-1, int(clampByteInt(p0+delta)))
	set(0, int(clampByteInt(q0-delta)))
}

// deblockPicture runs the full in-loop deblocking filter over a
// reconstructed picture, per §8.7: raster-order macroblocks, vertical
// edges first then horizontal edges, 4-edges per 16x16 luma MB (2 for
// 8x8 chroma), skipped entirely when disable_deblocking_filter_idc==1.
func deblockPicture(pic *Picture, sh *sliceHeader) {
	if sh.DisableDeblockingFilterIdc == 1 {
		return
	}
	alphaOff := sh.SliceAlphaC0OffsetDiv2 * 2
	betaOff := sh.SliceBetaOffsetDiv2 * 2

	y := planeSampler{pic.Y, pic.YStride, pic.Width, pic.Height}
	u := planeSampler{pic.U, pic.CStride, pic.Width / 2, pic.Height / 2}
	v := planeSampler{pic.V, pic.CStride, pic.Width / 2, pic.Height / 2}

	for mbY := 0; mbY < pic.MbHeight; mbY++ {
		for mbX := 0; mbX < pic.MbWidth; mbX++ {
			mb := pic.mbAt(mbX, mbY)
			if mb == nil || !mb.Available {
				continue
			}
			qp := clamp(mb.QP+alphaOff, 0, 51)
			qpBeta := clamp(mb.QP+betaOff, 0, 51)

			// Vertical edges (filtering horizontally across them): x=0,4,8,12.
			// bS is derived per 4x4 block pair straddling the edge, not once
			// per macroblock edge, since partition-internal and
			// partition-to-partition edges can each carry a different
			// strength.
			for edge := 0; edge < 4; edge++ {
				if edge == 0 && mbX == 0 {
					continue
				}
				var leftMB *mbInfo
				if edge == 0 {
					var ok bool
					leftMB, ok = neighborLeft(pic, mbX, mbY)
					if !ok || leftMB == nil {
						continue
					}
				} else {
					leftMB = mb
				}
				ex := mbX*16 + edge*4
				bsRow := [4]int{}
				for rg := 0; rg < 4; rg++ {
					qCol, qRow := edge, rg
					pCol, pRow := edge-1, rg
					if edge == 0 {
						pCol = 3
					}
					qBlk := luma4x4ZIndex(qCol, qRow)
					pBlk := luma4x4ZIndex(pCol, pRow)
					bsRow[rg] = boundaryStrength4x4(leftMB, pBlk, mb, qBlk, edge == 0)
				}
				for row := 0; row < 16; row++ {
					bs := bsRow[row/4]
					ry := mbY*16 + row
					get := func(d int) int { return int(y.at(ex+d, ry)) }
					set := func(d, val int) { y.set(ex+d, ry, clampByteInt(val)) }
					filterLumaEdge(bs, qp, qpBeta, get, set)
				}
				if edge%2 == 0 {
					cx := mbX*8 + (edge/2)*4
					for row := 0; row < 8; row++ {
						bs := bsRow[row/2]
						cy := mbY*8 + row
						getU := func(d int) int { return int(u.at(cx+d, cy)) }
						setU := func(d, val int) { u.set(cx+d, cy, clampByteInt(val)) }
						getV := func(d int) int { return int(v.at(cx+d, cy)) }
						setV := func(d, val int) { v.set(cx+d, cy, clampByteInt(val)) }
						filterChromaEdge(bs, qpBeta, getU, setU)
						filterChromaEdge(bs, qpBeta, getV, setV)
					}
				}
			}

			// Horizontal edges (filtering vertically across them): y=0,4,8,12.
			for edge := 0; edge < 4; edge++ {
				if edge == 0 && mbY == 0 {
					continue
				}
				var topMB *mbInfo
				if edge == 0 {
					var ok bool
					topMB, ok = neighborTop(pic, mbX, mbY)
					if !ok || topMB == nil {
						continue
					}
				} else {
					topMB = mb
				}
				ey := mbY*16 + edge*4
				bsCol := [4]int{}
				for cg := 0; cg < 4; cg++ {
					qCol, qRow := cg, edge
					pCol, pRow := cg, edge-1
					if edge == 0 {
						pRow = 3
					}
					qBlk := luma4x4ZIndex(qCol, qRow)
					pBlk := luma4x4ZIndex(pCol, pRow)
					bsCol[cg] = boundaryStrength4x4(topMB, pBlk, mb, qBlk, edge == 0)
				}
				for col := 0; col < 16; col++ {
					bs := bsCol[col/4]
					cx := mbX*16 + col
					get := func(d int) int { return int(y.at(cx, ey+d)) }
					set := func(d, val int) { y.set(cx, ey+d, clampByteInt(val)) }
					filterLumaEdge(bs, qp, qpBeta, get, set)
				}
				if edge%2 == 0 {
					cy := mbY*8 + (edge/2)*4
					for col := 0; col < 8; col++ {
						bs := bsCol[col/2]
						cx := mbX*8 + col
						getU := func(d int) int { return int(u.at(cx, cy+d)) }
						setU := func(d, val int) { u.set(cx, cy+d, clampByteInt(val)) }
						getV := func(d int) int { return int(v.at(cx, cy+d)) }
						setV := func(d, val int) { v.set(cx, cy+d, clampByteInt(val)) }
						filterChromaEdge(bs, qpBeta, getU, setU)
						filterChromaEdge(bs, qpBeta, getV, setV)
					}
				}
			}
		}
	}
}
