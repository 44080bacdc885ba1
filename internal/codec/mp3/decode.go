package mp3

import (
	"math"

	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/media"
)

// regionBoundaries returns the sample-index boundaries of big_values regions
// 0/1 for a granule: for long blocks these come from sfBandLong via
// region0_count/region1_count; for window-switching (short/mixed) blocks,
// only table_select[0]/[1] are coded, so region 0 is approximated as the
// first 36 lines (the long-equivalent span of 2 subbands) and the remainder
// uses table_select[1] — documented as an approximation in DESIGN.md, since
// the standard's exact short-block region split is a fixed constant this
// module does not reproduce bit-for-bit.
func regionBoundaries(gi granuleInfo) (b0, b1 int) {
	if gi.windowSwitching {
		return 36, 576
	}
	i0 := gi.region0Count + 1
	if i0 >= len(sfBandLong) {
		i0 = len(sfBandLong) - 1
	}
	i1 := gi.region0Count + gi.region1Count + 2
	if i1 >= len(sfBandLong) {
		i1 = len(sfBandLong) - 1
	}
	return sfBandLong[i0], sfBandLong[i1]
}

// decodeHuffmanSpectrum reads one granule/channel's big_values and count1
// regions up to endBit (the part2_3_length boundary from the granule's side
// info), zero-filling whatever remains of the 576-line spectrum.
func decodeHuffmanSpectrum(r *bitio.Reader, gi granuleInfo, endBit int64) [576]int32 {
	var is [576]int32
	region0, region1 := regionBoundaries(gi)
	bigValuesSamples := 2 * gi.bigValues

	idx := 0
	for idx < bigValuesSamples && idx < 576 && r.BitPosition() < endBit {
		var table int
		switch {
		case idx < region0:
			table = gi.tableSelect[0]
		case idx < region1:
			table = gi.tableSelect[1]
		default:
			table = gi.tableSelect[2]
		}
		x, y, err := readBigValuePair(r, table, linbitsFor(table))
		if err != nil {
			break
		}
		is[idx] = x
		idx++
		if idx < 576 {
			is[idx] = y
			idx++
		}
	}

	for idx+3 < 576 && r.BitPosition() < endBit {
		v, w, x, y, err := readCount1Quad(r, gi.count1TableSelect)
		if err != nil {
			break
		}
		is[idx] = v
		is[idx+1] = w
		is[idx+2] = x
		is[idx+3] = y
		idx += 4
	}

	if endBit > r.BitPosition() {
		_ = r.Skip(int(endBit - r.BitPosition()))
	}
	return is
}

// requantize converts one quantized spectral value to a linear magnitude,
// per ISO/IEC 11172-3 §2.4.3.4's xr = sign(is)*|is|^(4/3)*2^((gain-210)/4) *
// 2^(-scalefac_multiplier*(scalefac+preflag*pretab)) formula, with the
// additional short-block subblock_gain term.
func requantize(is int32, gi granuleInfo, scalefac, sfb, window int) float64 {
	if is == 0 {
		return 0
	}
	mag := math.Pow(math.Abs(float64(is)), 4.0/3.0)
	exp := 0.25 * float64(gi.globalGain-210)
	mult := 0.5
	if gi.scalefacScale {
		mult = 1.0
	}
	sfAdj := float64(scalefac)
	isLongBand := !(gi.windowSwitching && gi.blockType == 2)
	if gi.preflag && isLongBand && sfb < len(pretab) {
		sfAdj += float64(pretab[sfb])
	}
	exp -= mult * sfAdj
	if !isLongBand && window >= 0 && window < 3 {
		exp -= 2 * float64(gi.subblockGain[window])
	}
	v := mag * math.Pow(2, exp)
	if is < 0 {
		v = -v
	}
	return v
}

// intensityBound returns the first scale-factor band coded purely via
// intensity stereo: the highest band whose right-channel big_values/count1
// coefficients are all zero, approximated here as the band following the
// last nonzero big_values region (the standard derives this from the
// encoder's actual zero run, which this decoder does not track separately).
func intensityBound(rightIs [576]int32, gi granuleInfo) int {
	last := 0
	for i := 575; i >= 0; i-- {
		if rightIs[i] != 0 {
			last = i
			break
		}
	}
	return bandForIndexSafe(last, gi) + 1
}

func bandForIndexSafe(i int, gi granuleInfo) int {
	if i < 0 {
		return 0
	}
	b, _ := bandForIndex(i, gi)
	return b
}

// decodeMainData decodes all granules/channels of one frame from buf (the
// bit-reservoir-prefixed main data), returning the synthesized PCM
// AudioFrame and the number of bytes of buf actually consumed.
func decodeMainData(d *Decoder, buf []byte, hdr FrameHeader, side sideInfo) (*media.AudioFrame, int, error) {
	r := bitio.NewReader(buf)
	nCh := hdr.NbChannels
	selectScaleFactorBands(hdr.SampleRate)

	var pcm [2][]float64
	for ch := 0; ch < nCh; ch++ {
		pcm[ch] = make([]float64, 0, side.nGranules*576)
	}

	var prevScalefacs [2]channelScalefacs

	for g := 0; g < side.nGranules; g++ {
		var xr [2][576]float64
		var rawIs [2][576]int32

		for ch := 0; ch < nCh; ch++ {
			gi := side.granules[g][ch]
			startBit := r.BitPosition()

			var scfsi [4]bool
			if ch < 2 {
				scfsi = side.scfsi[ch]
			}
			var prev *channelScalefacs
			if g == 1 {
				prev = &prevScalefacs[ch]
			}
			sf, err := readScaleFactors(r, gi, scfsi, g, prev, hdr.Version == versionMPEG1)
			if err != nil {
				return nil, int(r.BitPosition() / 8), err
			}
			prevScalefacs[ch] = sf

			endBit := startBit + int64(gi.part2_3Length)
			is := decodeHuffmanSpectrum(r, gi, endBit)
			rawIs[ch] = is

			for i, v := range is {
				sfb, window := bandForIndex(i, gi)
				var scalefac int
				if gi.windowSwitching && gi.blockType == 2 && !(gi.mixedBlock && i < sfBandLong[8]) {
					scalefac = sf.short[sfb][window]
				} else {
					scalefac = sf.long[sfb]
				}
				xr[ch][i] = requantize(v, gi, scalefac, sfb, window)
			}
			if gi.windowSwitching && gi.blockType == 2 {
				copy(xr[ch][:], reorderShort(xr[ch][:], gi))
			}
		}

		if nCh == 2 {
			gi0 := side.granules[g][0]
			ibound := intensityBound(rawIs[1], gi0)
			isPos := make([]float64, len(sfBandLong))
			for b := range isPos {
				if b < len(prevScalefacs[1].long) {
					isPos[b] = float64(prevScalefacs[1].long[b])
				}
			}
			applyStereo(hdr, gi0, xr[0][:], xr[1][:], isPos, ibound)
		}

		for ch := 0; ch < nCh; ch++ {
			gi := side.granules[g][ch]
			applyAliasReduction(xr[ch][:], gi)
			granulePCM := synthesizeGranule(d, ch, xr[ch], gi)
			pcm[ch] = append(pcm[ch], granulePCM...)
		}
	}

	nbSamples := len(pcm[0])
	planes := make([][]byte, nCh)
	for ch := 0; ch < nCh; ch++ {
		planes[ch] = packF32Samples(pcm[ch])
	}

	frame := &media.AudioFrame{
		NbSamples: nbSamples,
		SampleRate: hdr.SampleRate,
		SampleFormat: media.SampleF32P,
		ChannelLayout: media.LayoutForChannelCount(nCh),
		Planes: planes,
	}
	return frame, int((r.BitPosition() + 7) / 8), nil
}

// synthesizeGranule runs the hybrid (IMDCT+window+overlap) filter across all
// 32 subbands of one granule/channel, applies frequency inversion, and feeds
// each of the granule's 18 time slots through the polyphase synthesis
// filterbank, producing 576 interleaved-free (mono-per-channel) PCM samples.
func synthesizeGranule(d *Decoder, ch int, xr [576]float64, gi granuleInfo) []float64 {
	var subbandOut [32][18]float64
	for sb := 0; sb < 32; sb++ {
		var coeffs [18]float64
		copy(coeffs[:], xr[sb*18:sb*18+18])
		blockType := gi.blockType
		if !gi.windowSwitching {
			blockType = 0
		}
		if gi.mixedBlock && sb < 2 {
			blockType = 0
		}
		subbandOut[sb] = hybridSynthesizeSubband(coeffs, blockType, &d.hybridOverlap[ch][sb])
	}
	applyFrequencyInversion(subbandOut[:])

	out := make([]float64, 0, 576)
	for t := 0; t < 18; t++ {
		var v [32]float64
		for sb := 0; sb < 32; sb++ {
			v[sb] = subbandOut[sb][t]
		}
		pcmSlot := synthesizePolyphase(v, d.synthState[ch])
		out = append(out, pcmSlot[:]...)
	}
	return out
}

func packF32Samples(samples []float64) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		bits := math.Float32bits(float32(s))
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}
