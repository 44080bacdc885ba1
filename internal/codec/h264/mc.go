package h264

// clampTap clamps a 6-tap FIR accumulator into byte range after its final
// rounding shift.
func clampTap(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// lumaSixTap applies the standard's 6-tap half-pel luma filter
// [1,-5,20,20,-5,1]/32 (§8.4.2.2.1) along one axis at integer sample
// positions p0..p5 centered between p2 and p3.
func lumaSixTap(p0, p1, p2, p3, p4, p5 int32) int32 {
	return p0 - 5*p1 + 20*p2 + 20*p3 - 5*p4 + p5
}

// sampleLuma reads one luma sample with edge-replicate clamping.
func sampleLuma(s planeSampler, x, y int) int32 { return int32(s.at(x, y)) }

// interpolateLumaHalfH computes the horizontal half-pel sample at (x+0.5,y).
func interpolateLumaHalfH(s planeSampler, x, y int) int32 {
	v := lumaSixTap(
		sampleLuma(s, x-2, y), sampleLuma(s, x-1, y), sampleLuma(s, x, y),
		sampleLuma(s, x+1, y), sampleLuma(s, x+2, y), sampleLuma(s, x+3, y))
	return v
}

func interpolateLumaHalfV(s planeSampler, x, y int) int32 {
	v := lumaSixTap(
		sampleLuma(s, x, y-2), sampleLuma(s, x, y-1), sampleLuma(s, x, y),
		sampleLuma(s, x, y+1), sampleLuma(s, x, y+2), sampleLuma(s, x, y+3))
	return v
}

func roundHalf(v int32) byte { return clampTap((v + 16) >> 5) }

// motionCompensateLuma writes one size x size luma block at destination
// (dox,doy) in dst, sampled from reference ref at (refx,refy) plus
// quarter-pel motion vector (mvx,mvy) in quarter-sample units, per the 16
// fractional-position cases of §8.4.2.2.1/§8.4.2.2.2.
func motionCompensateLuma(dst planeSampler, dox, doy int, ref planeSampler, refx, refy, mvx, mvy, size int) {
	ix := refx + (mvx >> 2)
	iy := refy + (mvy >> 2)
	fx := mvx & 3
	fy := mvy & 3

	for by := 0; by < size; by++ {
		for bx := 0; bx < size; bx++ {
			x, y := ix+bx, iy+by
			var out byte
			switch {
			case fx == 0 && fy == 0:
				out = ref.at(x, y)
			case fx == 2 && fy == 0:
				out = roundHalf(interpolateLumaHalfH(ref, x, y))
			case fx == 0 && fy == 2:
				out = roundHalf(interpolateLumaHalfV(ref, x, y))
			case fx == 2 && fy == 2:
				// full diagonal half-pel: 6-tap over the six intermediate
				// horizontal half-pel values (§8.4.2.2.1 "j" sample).
				var taps [6]int32
				for i := -2; i <= 3; i++ {
					taps[i+2] = interpolateLumaHalfH(ref, x, y+i)
				}
				mid := lumaSixTap(taps[0], taps[1], taps[2], taps[3], taps[4], taps[5])
				out = clampTap((mid + 512) >> 10)
			case fy == 0:
				h := roundHalf(interpolateLumaHalfH(ref, x, y))
				var base byte
				if fx == 1 {
					base = ref.at(x, y)
				} else {
					base = ref.at(x+1, y)
				}
				out = clampTap((int32(h) + int32(base) + 1) >> 1)
			case fx == 0:
				v := roundHalf(interpolateLumaHalfV(ref, x, y))
				var base byte
				if fy == 1 {
					base = ref.at(x, y)
				} else {
					base = ref.at(x, y+1)
				}
				out = clampTap((int32(v) + int32(base) + 1) >> 1)
			case fx == 2:
				var taps [6]int32
				for i := -2; i <= 3; i++ {
					taps[i+2] = interpolateLumaHalfH(ref, x, y+i)
				}
				mid := lumaSixTap(taps[0], taps[1], taps[2], taps[3], taps[4], taps[5])
				j := clampTap((mid + 512) >> 10)
				var b byte
				if fy == 1 {
					b = roundHalf(interpolateLumaHalfH(ref, x, y))
				} else {
					b = roundHalf(interpolateLumaHalfH(ref, x, y+1))
				}
				out = clampTap((int32(j) + int32(b) + 1) >> 1)
			case fx%2 == 1 && fy%2 == 1:
				// diagonal quarter-pel: average of the nearest horizontal
				// and vertical half-pel samples.
				hy, vx := y, x
				if fy == 3 {
					hy = y + 1
				}
				if fx == 3 {
					vx = x + 1
				}
				h := roundHalf(interpolateLumaHalfH(ref, x, hy))
				v := roundHalf(interpolateLumaHalfV(ref, vx, y))
				out = clampTap((int32(h) + int32(v) + 1) >> 1)
			default: // fy == 2
				var taps [6]int32
				for i := -2; i <= 3; i++ {
					taps[i+2] = interpolateLumaHalfV(ref, x+i, y)
				}
				mid := lumaSixTap(taps[0], taps[1], taps[2], taps[3], taps[4], taps[5])
				j := clampTap((mid + 512) >> 10)
				var b byte
				if fx == 1 {
					b = roundHalf(interpolateLumaHalfV(ref, x, y))
				} else {
					b = roundHalf(interpolateLumaHalfV(ref, x+1, y))
				}
				out = clampTap((int32(j) + int32(b) + 1) >> 1)
			}
			dst.set(dox+bx, doy+by, out)
		}
	}
}

// motionCompensateChroma performs eighth-pel bilinear chroma interpolation
// per §8.4.2.2.2, for one size x size chroma block.
func motionCompensateChroma(dst planeSampler, dox, doy int, ref planeSampler, refx, refy, mvx, mvy, size int) {
	ix := refx + (mvx >> 3)
	iy := refy + (mvy >> 3)
	fx := int32(mvx & 7)
	fy := int32(mvy & 7)

	for by := 0; by < size; by++ {
		for bx := 0; bx < size; bx++ {
			x, y := ix+bx, iy+by
			a := int32(ref.at(x, y))
			b := int32(ref.at(x+1, y))
			c := int32(ref.at(x, y+1))
			d := int32(ref.at(x+1, y+1))
			v := (8-fx)*(8-fy)*a + fx*(8-fy)*b + (8-fx)*fy*c + fx*fy*d
			dst.set(dox+bx, doy+by, clampTap((v+32)>>6))
		}
	}
}

// blendBiPred averages two single-direction prediction blocks into the
// destination for bi-predictive (B-slice Bi) partitions, per §8.4.2.3.1's
// default (non-weighted) averaging.
func blendBiPred(dst planeSampler, ox, oy, w, h int, a, b planeSampler) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			av := int32(a.at(ox+x, oy+y))
			bv := int32(b.at(ox+x, oy+y))
			dst.set(ox+x, oy+y, clampTap((av+bv+1)>>1))
		}
	}
}

// applyExplicitWeight applies explicit weighted prediction's
// (w, o, log2WD) tuple to one sample, per §8.4.2.3.2.
func applyExplicitWeight(sample byte, w, o, log2WD int) byte {
	if log2WD >= 1 {
		v := ((int32(sample)*int32(w) + (1 << uint(log2WD-1))) >> uint(log2WD)) + int32(o)
		return clampTap(v)
	}
	v := int32(sample)*int32(w) + int32(o)
	return clampTap(v)
}

// implicitWeights derives the default implicit bi-pred weights from the
// POC distance between the two reference pictures and the current
// picture, per §8.4.2.3.2's implicit-mode formula; long-term references or
// a zero denominator fall back to the standard's 32/32 equal-weight case.
func implicitWeights(currPOC, poc0, poc1 int, longTerm0, longTerm1 bool) (w0, w1 int) {
	if longTerm0 || longTerm1 {
		return 32, 32
	}
	td := clampInt16(poc1 - poc0)
	if td == 0 {
		return 32, 32
	}
	tb := clampInt16(currPOC - poc0)
	tx := (16384 + abs32(int32(td))/2) / int32(td)
	dsf := clampInt32((int32(tb)*tx+32)>>6, -1024, 1023)
	w1v := dsf >> 2
	if w1v < -64 || w1v > 128 {
		return 32, 32
	}
	return 64 - int(w1v), int(w1v)
}

func clampInt16(v int) int {
	if v < -32768 {
		return -32768
	}
	if v > 32767 {
		return 32767
	}
	return v
}

func clampInt32(v int32, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
