package mpeg4

import "github.com/bramblemedia/reelcore/internal/bitio"

// mbInfo is one macroblock's decode state, kept for neighbor AC/DC and
// motion-vector prediction context and, once the picture is a reference,
// for motion compensation.
type mbInfo struct {
	Available bool
	IsIntra bool
	Coded bool // false: not_coded, copy straight from the reference
	Is4MV bool
	ACPred bool
	MV [4][2]int16 // per-8x8-luma-block; all four equal outside 4MV mode
	ChromaMV [2]int16
	CBPY int
	CBPC int
	Quant int
	DC [6]int16 // Y0..Y3, Cb, Cr — used as the DC predictor for neighbors
	ACRow [6][7]int16 // first coefficient row (horizontal AC predictor source)
	ACCol [6][7]int16 // first coefficient column (vertical AC predictor source)
}

// decodeContext carries the per-VOP state decodeMacroblock needs.
type decodeContext struct {
	vol *VOLHeader
	vop *VOPHeader
	pic *Picture
	ref *Picture // forward reference (P/B); nil for I
	refBack *Picture // backward reference (B only); nil otherwise
	counters *errorCounters
}

// errorCounters tallies the containment events this package defines.
type errorCounters struct {
	CBPYFallbacks int64
	ResyncRecoveries int64
	MalformedMbDrops int64
}

// decodeMacroblock decodes one macroblock at (mbX, mbY) per §6.2.5's
// macroblock() syntax, reconstructing directly into ctx.pic.
func decodeMacroblock(r *bitio.Reader, ctx *decodeContext, mbX, mbY int) error {
	mb := ctx.pic.mbAt(mbX, mbY)
	isIntraVOP := ctx.vop.PicType == VOPTypeI
	mb.Quant = prevQuantFor(ctx.pic, mbX, mbY, ctx.vop.Quant)

	mbType, cbpc, notCoded, err := decodeMCBPC(r, isIntraVOP)
	if err != nil {
		return err
	}
	if notCoded {
		mb.Available = true
		mb.Coded = false
		mb.IsIntra = false
		copyMBFromReference(ctx, mb, mbX, mbY, [2]int16{0, 0})
		return nil
	}

	mb.IsIntra = mbType == mbTypeIntra || mbType == mbTypeIntraQ
	mb.Is4MV = mbType == mbTypeInter4V || mbType == mbTypeInter4VQ
	mb.CBPC = cbpc
	mb.Available = true
	mb.Coded = true

	if mb.IsIntra {
		acPred, err := r.ReadFlag()
		if err != nil {
			return err
		}
		mb.ACPred = acPred
	}

	cbpy, err := decodeCBPY(r)
	if err != nil {
		// §4.8's named containment policy: a failed CBPY decode falls back
		// to cbpy=0 (no coded luma blocks) rather than aborting the slice.
		ctx.counters.CBPYFallbacks++
		cbpy = 0
	}
	if mb.IsIntra {
		cbpy ^= 0xF // Table 16's intra differential coding
	}
	mb.CBPY = cbpy

	needsDQuant := mbType == mbTypeIntraQ || mbType == mbTypeInterQ || mbType == mbTypeInter4VQ
	if needsDQuant {
		d, err := decodeDQUANT(r)
		if err != nil {
			return err
		}
		mb.Quant = clampQuant(mb.Quant + d)
	}

	if ctx.vol.Interlaced {
		// interlaced_info: this decoder targets progressive streams, so only
		// the one dct_type bit is read and discarded; field_prediction and
		// field motion vectors are not read.
		if _, err := r.ReadBit(); err != nil {
			return err
		}
	}

	if !mb.IsIntra {
		if err := decodeMotionVectors(r, ctx, mb, mbX, mbY); err != nil {
			return err
		}
	} else {
		for i := range mb.MV {
			mb.MV[i] = [2]int16{0, 0}
		}
	}

	var coeffs [6][64]int16
	cbp := (cbpy << 2) | cbpc
	for blk := 0; blk < 6; blk++ {
		coded := cbp&(1<<uint(5-blk)) != 0
		if !coded && !mb.IsIntra {
			continue
		}
		if mb.IsIntra {
			dc, err := decodeIntraDC(r, ctx.vol.QuantPrecision, ctx.vop.IntraDCVlcThr, mb.Quant)
			if err != nil {
				return err
			}
			coeffs[blk][0] = dc
			if coded {
				if err := decodeTCOEF(r, 1, &coeffs[blk]); err != nil {
					return err
				}
			}
		} else if coded {
			if err := decodeTCOEF(r, 0, &coeffs[blk]); err != nil {
				return err
			}
		}
	}

	reconstructMB(ctx, mb, mbX, mbY, &coeffs)
	return nil
}

func clampQuant(q int) int {
	if q < 1 {
		return 1
	}
	if q > 31 {
		return 31
	}
	return q
}

// prevQuantFor returns the quantizer in force before any DQUANT delta —
// the previous coded macroblock's quant in raster order, or the VOP's
// vop_quant at the start of a slice/video packet.
func prevQuantFor(pic *Picture, mbX, mbY int, vopQuant int) int {
	addr := mbY*pic.MbWidth + mbX
	if addr == 0 {
		return vopQuant
	}
	prevX, prevY := (addr-1)%pic.MbWidth, (addr-1)/pic.MbWidth
	prev := pic.mbAt(prevX, prevY)
	if prev == nil || !prev.Available {
		return vopQuant
	}
	return prev.Quant
}

// decodeIntraDC reads one intra DC coefficient: a fixed-length code of
// (quant_precision+3) bits when quant >= vlcThreshold(intra_dc_vlc_thr)
// disables the VLC path per Table 8's threshold rule, otherwise a short VLC
// approximated the same way as the AC coefficients (via tcoefEventTable).
func decodeIntraDC(r *bitio.Reader, quantPrecision, vlcThr, quant int) (int16, error) {
	thresholdQuant := vlcThreshold(vlcThr)
	if quant >= thresholdQuant {
		bits, err := r.ReadBits(quantPrecision + 3)
		if err != nil {
			return 0, err
		}
		return int16(bits) * 8, nil
	}
	idx, ok, err := vlcMatch(r, tcoefEventTable)
	if err != nil {
		return 0, err
	}
	mag := 0
	if ok && idx < len(tcoefEvents) {
		mag = tcoefEvents[idx].Level
	} else if ok {
		v, err := r.ReadBits(8) // ESCAPE: an 8-bit magnitude follows
		if err != nil {
			return 0, err
		}
		mag = int(v)
	}
	sign := int16(1)
	if mag != 0 {
		s, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if s == 1 {
			sign = -1
		}
	}
	return sign * int16(mag) * 8, nil
}

func vlcThreshold(idx int) int {
	// Table 8's thresholds rise with intra_dc_vlc_thr; 7 disables the VLC
	// path entirely (always FLC), the common real-encoder setting.
	thresholds := [8]int{1 << 20, 13, 15, 17, 19, 21, 23, 0}
	if idx < 0 || idx > 7 {
		return thresholds[7]
	}
	return thresholds[idx]
}
