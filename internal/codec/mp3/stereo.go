package mp3

import "math"

// applyStereo performs joint-stereo reconstruction per mode_ext, on the
// requantized spectra of both channels, before alias reduction.
//
// mode_ext bit 1 (0x2, when set) enables MS stereo: (L,R) <- ((M+S)/sqrt(2),
// (M-S)/sqrt(2)) treating the decoded channel-0/1 arrays as (mid, side).
// mode_ext bit 0 (0x1, when set) enables intensity stereo: bands at or above
// intensity_bound are reconstructed from the left channel's magnitude and a
// per-band scalefactor-derived position, the same shape as this decoder's
// AAC intensity-stereo handling.
func applyStereo(hdr FrameHeader, gi granuleInfo, left, right []float64, isPositions []float64, intensityBoundBand int) {
	if hdr.Mode != modeJoint {
		return
	}
	ms := hdr.ModeExt&0x2 != 0
	is := hdr.ModeExt&0x1 != 0

	bands := sfBandLong
	if gi.windowSwitching && gi.blockType == 2 {
		bands = expandShortBandsToLines()
	}

	if ms {
		inv := 1.0 / math.Sqrt2
		for i := 0; i < len(left) && i < len(right); i++ {
			m := left[i]
			s := right[i]
			left[i] = (m + s) * inv
			right[i] = (m - s) * inv
		}
	}

	if is {
		for b := intensityBoundBand; b < len(bands)-1; b++ {
			lo := bands[b]
			hi := bands[b+1]
			if hi > len(left) {
				hi = len(left)
			}
			if lo >= hi {
				continue
			}
			pos := 0.0
			if b < len(isPositions) {
				pos = isPositions[b]
			}
			scale := math.Pow(2, -0.25*pos)
			for i := lo; i < hi; i++ {
				right[i] = left[i] * scale
			}
		}
	}
}

// expandShortBandsToLines flattens the 3-window short-band table into a
// single ascending boundary list covering 576 lines, matching the layout
// reorderShort produces.
func expandShortBandsToLines() []int {
	out := make([]int, 0, len(sfBandShort)*3)
	out = append(out, 0)
	for w := 0; w < 3; w++ {
		for b := 0; b < len(sfBandShort)-1; b++ {
			out = append(out, w*192+sfBandShort[b+1])
		}
	}
	return out
}
