package aac

import (
	"math"

	"github.com/bramblemedia/reelcore/internal/bitio"
)

// decodeCPE parses a channel_pair_element: optionally a single shared
// ics_info (common_window) followed by an ms_mask, then two individual
// channel streams, left and right. MS stereo and intensity-stereo
// reconstruction are applied once both channels are decoded, by convention
// §4.5's Stereo coupling subsection.
func (d *Decoder) decodeCPE(r *bitio.Reader) (left, right *ics, err error) {
	commonWindow, err := r.ReadFlag()
	if err != nil {
		return nil, nil, err
	}

	var msMaskPresent bool
	var msUsed []bool
	var shared ics

	if commonWindow {
		if err := d.readICSInfo(r, &shared); err != nil {
			return nil, nil, err
		}
		msMaskPresent, err = r.ReadFlag()
		if err != nil {
			return nil, nil, err
		}
		nSWB := numSWB(&shared)
		nBands := shared.numGroups * nSWB
		if msMaskPresent {
			msUsed = make([]bool, nBands)
			for i := 0; i < nBands; i++ {
				b, err := r.ReadBit()
				if err != nil {
					return nil, nil, err
				}
				msUsed[i] = b == 1
			}
		}
	}

	left, err = d.decodeCPEChannel(r, commonWindow, &shared)
	if err != nil {
		return nil, nil, err
	}
	right, err = d.decodeCPEChannel(r, commonWindow, &shared)
	if err != nil {
		return nil, nil, err
	}

	if commonWindow && msMaskPresent {
		applyMSStereo(left, right, msUsed)
	}
	applyIntensityStereo(left, right, msUsed)

	return left, right, nil
}

// decodeCPEChannel reads one channel's global_gain and, for the
// common_window case, reuses the shared windowing info rather than reading
// its own ics_info.
func (d *Decoder) decodeCPEChannel(r *bitio.Reader, commonWindow bool, shared *ics) (*ics, error) {
	if _, err := r.ReadBits(8); err != nil { // global_gain
		return nil, err
	}
	ic := &ics{}
	if commonWindow {
		ic.windowSequence = shared.windowSequence
		ic.windowShape = shared.windowShape
		ic.maxSFB = shared.maxSFB
		ic.numWindows = shared.numWindows
		ic.numGroups = shared.numGroups
		ic.groupLen = shared.groupLen
		ic.bandOffsets = shared.bandOffsets
	} else {
		if err := d.readICSInfo(r, ic); err != nil {
			return nil, err
		}
	}
	return ic, d.decodeICSBody(r, ic)
}

// applyMSStereo performs the per-band mid/side -> left/right reconstruction:
// for every band where ms_used is set and neither channel's codebook is
// NOISE (PNS) or INTENSITY, (L,R) <- (L+R, L-R) in place, by convention.
func applyMSStereo(left, right *ics, msUsed []bool) {
	nSWB := numSWB(left)
	winLen := len(left.spectrum) / max(left.numWindows, 1)

	for g := 0; g < left.numGroups; g++ {
		for rep := 0; rep < left.groupLen[g]; rep++ {
			winIdx := groupWindowIndex(left, g, rep)
			base := winIdx * winLen
			for b := 0; b < nSWB; b++ {
				bandIdx := g*nSWB + b
				if bandIdx < len(msUsed) && msUsed[bandIdx] {
					lcb := left.codebook[bandIdx]
					rcb := right.codebook[bandIdx]
					if !cbIsPNS(lcb) && !cbIsPNS(rcb) && !cbIsIntensity(lcb) && !cbIsIntensity(rcb) {
						lo := base + left.bandOffsets[b]
						hi := base + left.bandOffsets[b+1]
						if hi > base+winLen {
							hi = base + winLen
						}
						for i := lo; i < hi && i < len(left.spectrum) && i < len(right.spectrum); i++ {
							l := left.spectrum[i]
							rr := right.spectrum[i]
							left.spectrum[i] = l + rr
							right.spectrum[i] = l - rr
						}
					}
				}
			}
		}
	}
}

// applyIntensityStereo derives the right channel's samples for bands coded
// with an intensity-stereo codebook: R = L * sign * 2^(-0.25*is_position),
// where sign is +1 for codebook 14 and -1 for codebook 15, flipped again
// when ms_used is set for that band.
func applyIntensityStereo(left, right *ics, msUsed []bool) {
	nSWB := numSWB(left)
	if nSWB != numSWB(right) {
		return
	}
	winLen := len(left.spectrum) / max(left.numWindows, 1)

	for g := 0; g < left.numGroups && g < right.numGroups; g++ {
		for rep := 0; rep < left.groupLen[g]; rep++ {
			winIdx := groupWindowIndex(left, g, rep)
			base := winIdx * winLen
			for b := 0; b < nSWB; b++ {
				rcb := right.codebook[g*nSWB+b]
				if !cbIsIntensity(rcb) {
					continue
				}
				sign := 1.0
				if rcb == cbIS2 {
					sign = -1.0
				}
				if idx := g*nSWB + b; idx < len(msUsed) && msUsed[idx] {
					sign = -sign
				}
				isPos := right.scaleFactors[g*nSWB+b]
				scale := sign * math.Pow(2, -0.25*float64(isPos))
				lo := base + left.bandOffsets[b]
				hi := base + left.bandOffsets[b+1]
				if hi > base+winLen {
					hi = base + winLen
				}
				for i := lo; i < hi && i < len(left.spectrum) && i < len(right.spectrum); i++ {
					right.spectrum[i] = left.spectrum[i] * scale
				}
			}
			_ = winIdx
		}
	}
}
