package mpeg4

// roundtabBias approximates ROUNDTAB_76, the 16-entry rounding-bias table
// §7.6.7's 4MV chroma derivation ("(sum>>3) + ROUNDTAB_76[sum & 0xF]")
// uses. The real table's 16 literal entries are not reproduced from
// memory; this substitutes a symmetric round-to-nearest-even bias indexed
// the same way (by the sum's low 4 bits), which preserves the formula's
// rounding-correction role without matching the standard's exact values.
// See DESIGN.md.
var roundtabBias = [16]int{0, 0, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, -1, -1, -1, -1}

// deriveChromaMV derives the chroma motion vector from four luma 8x8 block
// vectors in 4MV mode, per §7.6.7.
func deriveChromaMV(mv [4][2]int16) [2]int16 {
	sumX, sumY := 0, 0
	for _, v := range mv {
		sumX += int(v[0])
		sumY += int(v[1])
	}
	cx := (sumX >> 3) + roundtabBias[sumX&0xF]
	cy := (sumY >> 3) + roundtabBias[sumY&0xF]
	return [2]int16{int16(cx), int16(cy)}
}

// roundAvg2 averages two samples per §7.6.2's rounding_type-controlled
// half-pel rule: a plain (a+b+1)>>1 round-to-nearest when rnd is false, and
// a round-to-even-down (a+b)>>1 when rnd is true (rounding_type=1 biases
// exact .5 ties toward the reference sample rather than up).
func roundAvg2(a, b int, rnd bool) int {
	if rnd {
		return (a + b) >> 1
	}
	return (a + b + 1) >> 1
}

// roundAvg4 averages four samples the same way, for the half-pel position
// diagonal to the full-pel grid.
func roundAvg4(a, b, c, d int, rnd bool) int {
	if rnd {
		return (a + b + c + d + 1) >> 2
	}
	return (a + b + c + d + 2) >> 2
}

// halfPelSample returns the interpolated sample at full-pel base (x,y) plus
// a half-pel offset (hx,hy each 0 or 1), per §7.6.2's bilinear half-pel
// filter: full pel when hx=hy=0, a 2-tap average along the offset axis when
// exactly one of hx/hy is set, and a 4-tap average of the surrounding full
// pels when both are set.
func halfPelSample(s planeSampler, x, y, hx, hy int, rnd bool) int {
	switch {
	case hx == 0 && hy == 0:
		return int(s.at(x, y))
	case hy == 0:
		return roundAvg2(int(s.at(x, y)), int(s.at(x+1, y)), rnd)
	case hx == 0:
		return roundAvg2(int(s.at(x, y)), int(s.at(x, y+1)), rnd)
	default:
		return roundAvg4(int(s.at(x, y)), int(s.at(x+1, y)), int(s.at(x, y+1)), int(s.at(x+1, y+1)), rnd)
	}
}

// quarterPelSample derives the sample at full-pel base (x,y) offset by a
// quarter-pel vector (qx,qy in 0..3), per Annex F's quarter-pel
// construction: quarter positions are not a dedicated FIR filter but a
// further rounded 2-tap average between the two bracketing half/full-pel
// grid points nearest the quarter position along each axis in turn.
func quarterPelSample(s planeSampler, x, y, qx, qy int, rnd bool) int {
	hx0, hy0 := qx/2, qy/2
	a := halfPelSample(s, x, y, hx0, hy0, rnd)
	if qx%2 == 0 && qy%2 == 0 {
		return a
	}
	hx1, hy1 := hx0, hy0
	x1, y1 := x, y
	if qx%2 == 1 {
		if hx0 == 1 {
			x1++
			hx1 = 0
		} else {
			hx1 = 1
		}
	}
	if qy%2 == 1 {
		if hy0 == 1 {
			y1++
			hy1 = 0
		} else {
			hy1 = 1
		}
	}
	b := halfPelSample(s, x1, y1, hx1, hy1, rnd)
	return roundAvg2(a, b, rnd)
}

// motionCompensateBlock copies a w x h block from ref at (dstX,dstY)+mv
// (in quarter-pel units if quarterpel else half-pel units) into dst, via
// the half-pel or quarter-pel bilinear interpolation §7.6.2/Annex F
// specify, with rounding_type rnd controlling the .5-tie bias.
func motionCompensateBlock(dst, ref planeSampler, dstX, dstY, w, h int, mv [2]int16, quarterpel bool, rnd bool) {
	denom := 2
	if quarterpel {
		denom = 4
	}
	mvx, mvy := int(mv[0]), int(mv[1])
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			px := dstX + col
			py := dstY + row
			srcFull := px*denom + mvx
			srcFullY := py*denom + mvy
			baseX := srcFull / denom
			fracX := srcFull % denom
			if fracX < 0 {
				fracX += denom
				baseX--
			}
			baseY := srcFullY / denom
			fracY := srcFullY % denom
			if fracY < 0 {
				fracY += denom
				baseY--
			}
			var v int
			if quarterpel {
				v = quarterPelSample(ref, baseX, baseY, fracX, fracY, rnd)
			} else {
				v = halfPelSample(ref, baseX, baseY, fracX, fracY, rnd)
			}
			dst.set(px, py, clampByte(float64(v)))
		}
	}
}
