package mp3

import "math"

// windowCoeff/shortWindowCoeff give the long-block window shapes (block
// types 0, 1 and 3: normal, start, stop; any other type gets the normal
// window) and the short-block 12-point window,
// per ISO/IEC 11172-3 §3.4.6.3's window functions.
func windowCoeff(blockType int, n int) float64 {
	switch blockType {
	case 1: // start block: normal sine for first half, flat-then-sine transition for second
		if n < 18 {
			return math.Sin(math.Pi / 36 * (float64(n) + 0.5))
		}
		if n < 24 {
			return 1.0
		}
		if n < 30 {
			return math.Sin(math.Pi / 12 * (float64(n) - 18 + 0.5))
		}
		return 0.0
	case 3: // stop block: mirror of start
		if n < 6 {
			return 0.0
		}
		if n < 12 {
			return math.Sin(math.Pi / 12 * (float64(n) - 6 + 0.5))
		}
		if n < 18 {
			return 1.0
		}
		return math.Sin(math.Pi / 36 * (float64(n) + 0.5))
	default: // 0: normal long window
		return math.Sin(math.Pi / 36 * (float64(n) + 0.5))
	}
}

func shortWindowCoeff(n int) float64 {
	return math.Sin(math.Pi / 12 * (float64(n) + 0.5))
}

// imdctN computes an n-point IMDCT producing 2n time-domain samples via the
// direct definition; n is small here (18 for long blocks, 6 for short) so an
// O(n^2) evaluation is adequate.
func imdctN(spec []float64) []float64 {
	n := len(spec)
	out := make([]float64, 2*n)
	for i := 0; i < 2*n; i++ {
		var sum float64
		for k := 0; k < n; k++ {
			angle := math.Pi / float64(4*n) * float64(2*i+1+n) * float64(2*k+1)
			sum += spec[k] * math.Cos(angle)
		}
		out[i] = sum
	}
	return out
}

// hybridSynthesizeSubband runs the IMDCT + windowing + overlap-add for one
// 18-coefficient subband of one granule, returning 18 output samples and
// updating the stored overlap tail in place.
func hybridSynthesizeSubband(coeffs [18]float64, blockType int, overlap *[18]float64) [18]float64 {
	var out [18]float64
	if blockType == 2 {
		// Three independent 6-point IMDCTs (12 samples each), overlapped by
		// 50% window-to-window and against the previous granule's tail.
		var td [36]float64
		for w := 0; w < 3; w++ {
			var sub [6]float64
			for i := 0; i < 6; i++ {
				sub[i] = coeffs[w*6+i]
			}
			block := imdctN(sub[:]) // 12 samples
			for i := 0; i < 12; i++ {
				windowed := block[i] * shortWindowCoeff(i)
				td[w*6+i] += windowed
			}
		}
		for i := 0; i < 18; i++ {
			out[i] = td[i] + overlap[i]
			overlap[i] = 0
		}
		for i := 0; i < 18; i++ {
			overlap[i] = td[18+i]
		}
		return out
	}

	block := imdctN(coeffs[:]) // 36 samples
	for i := 0; i < 36; i++ {
		block[i] *= windowCoeff(blockType, i)
	}
	for i := 0; i < 18; i++ {
		out[i] = block[i] + overlap[i]
	}
	for i := 0; i < 18; i++ {
		overlap[i] = block[18+i]
	}
	return out
}

// applyFrequencyInversion negates every odd-indexed sample of odd-numbered
// subbands, per ISO/IEC 11172-3 §3.4.6.4, so the polyphase synthesis filter
// sees correctly aliased input.
func applyFrequencyInversion(subbandOut [][18]float64) {
	for sb := 1; sb < len(subbandOut); sb += 2 {
		for i := 1; i < 18; i += 2 {
			subbandOut[sb][i] = -subbandOut[sb][i]
		}
	}
}
