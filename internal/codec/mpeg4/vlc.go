package mpeg4

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/errs"
)

// Macroblock-type classes decodeMCBPC resolves to, mirroring ISO/IEC
// 14496-2 Table 14/15's macroblock_type enumeration.
const (
	mbTypeIntra = iota
	mbTypeIntraQ
	mbTypeInter
	mbTypeInterQ
	mbTypeInter4V
	mbTypeInter4VQ
)

// zigzag8x8 is the classic JPEG/MPEG zigzag scan order over an 8x8 block.
var zigzag8x8 = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// decodeMCBPC reads macroblock_type and the two chroma CBP bits (cbpc) in
// one pass via mcbpcIntraTable/mcbpcInterTable, the canonically-assigned
// VLCs for ISO/IEC 14496-2 Tables 14 (intra VOPs) and 15 (inter VOPs). The
// not_coded flag for inter VOPs is the single leading bit Table 15 reserves
// ahead of the MCBPC code proper.
func decodeMCBPC(r *bitio.Reader, isIntraVOP bool) (mbType int, cbpc int, notCoded bool, err error) {
	if !isIntraVOP {
		nc, e := r.ReadBit()
		if e != nil {
			return 0, 0, false, e
		}
		if nc == 1 {
			return 0, 0, true, nil
		}
	}
	table := mcbpcInterTable
	base := mbTypeInter
	if isIntraVOP {
		table = mcbpcIntraTable
		base = mbTypeIntra
	}
	val, ok, e := vlcMatch(r, table)
	if e != nil {
		return 0, 0, false, e
	}
	if !ok {
		return 0, 0, false, errs.New(errs.InvalidData, component, "mcbpc: no matching codeword")
	}
	if isIntraVOP {
		mbType = base + val/4
	} else {
		// mcbpcInterLens orders its five classes INTER, INTER+Q, INTER4V,
		// INTRA, INTRA+Q; map that ordering onto this package's mbType
		// constants.
		interClassMbType := [5]int{mbTypeInter, mbTypeInterQ, mbTypeInter4V, mbTypeIntra, mbTypeIntraQ}
		mbType = interClassMbType[val/4]
	}
	cbpc = val % 4
	return mbType, cbpc, false, nil
}

// decodeCBPY reads cbpy, the 4-bit luma coded-block-pattern (one bit per
// 8x8 luma block), via cbpyTable's Table 16 VLC. Callers XOR the result
// with 0xF for intra macroblocks per §6.3.13's note; this function returns
// the raw decoded value.
func decodeCBPY(r *bitio.Reader) (int, error) {
	val, ok, err := vlcMatch(r, cbpyTable)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errs.New(errs.InvalidData, component, "cbpy: no matching codeword")
	}
	return val, nil
}

// decodeDQUANT reads the 2-bit differential quantizer step present on
// *_Q macroblock types, mapping to {-2,-1,1,2} per Table 17.
func decodeDQUANT(r *bitio.Reader) (int, error) {
	bits, err := r.ReadBits(2)
	if err != nil {
		return 0, err
	}
	switch bits {
	case 0:
		return -2, nil
	case 1:
		return -1, nil
	case 2:
		return 1, nil
	default:
		return 2, nil
	}
}

// decodeMVD reads one motion vector difference component: a magnitude
// class via mvdMagnitudeTable's VLC, fcode-1 residual bits refining that
// class into an exact magnitude, a sign bit, then the range-wrap per
// §7.6.3's vop_fcode logic, per the motion vector data syntax Annex
// shares with ITU-T H.263 Table 14.
func decodeMVD(r *bitio.Reader, fcode int) (int, error) {
	if fcode < 1 {
		fcode = 1
	}
	class, ok, err := vlcMatch(r, mvdMagnitudeTable)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errs.New(errs.InvalidData, component, "mvd: no matching codeword")
	}
	if class == 0 {
		return 0, nil
	}
	residualBits := fcode - 1
	residual := 0
	if residualBits > 0 {
		v, err := r.ReadBits(residualBits)
		if err != nil {
			return 0, err
		}
		residual = int(v)
	}
	magnitude := ((class - 1) << uint(residualBits)) | residual
	magnitude++
	sign, err := r.ReadBit()
	if err != nil {
		return 0, err
	}
	if sign == 1 {
		magnitude = -magnitude
	}
	return rangeWrapMV(magnitude, fcode), nil
}

// rangeWrapMV wraps a motion-vector component into the range the given
// f_code allows, per §7.6.3's modulo reconstruction ([-range, range-1]
// where range = 32 << (fcode-1)).
func rangeWrapMV(v, fcode int) int {
	rng := 32 << uint(fcode-1)
	span := rng * 2
	v = ((v+rng)%span + span) % span
	return v - rng
}

// decodeTCOEF decodes the DCT coefficient (run/level/last) stream for one
// 8x8 block starting at zigzag index start, into dst (raster order, zigzag
// already undone). Each event is read via tcoefEventTable against
// tcoefEvents' short list of common (last,run,level) combinations; an
// event index of len(tcoefEvents) is the ESCAPE code, whose LAST/RUN/LEVEL
// fields are read explicitly per Annex Table 18. See DESIGN.md.
func decodeTCOEF(r *bitio.Reader, start int, dst *[64]int16) error {
	pos := start
	for pos < 64 {
		idx, ok, err := vlcMatch(r, tcoefEventTable)
		if err != nil {
			return err
		}
		if !ok {
			return errs.New(errs.InvalidData, component, "tcoef: no matching codeword")
		}
		var last, run, level int
		if idx == len(tcoefEvents) {
			lb, err := r.ReadBit()
			if err != nil {
				return err
			}
			last = int(lb)
			rb, err := r.ReadBits(6)
			if err != nil {
				return err
			}
			run = int(rb)
			lv, err := r.ReadBits(8)
			if err != nil {
				return err
			}
			level = int(int8(lv))
		} else {
			ev := tcoefEvents[idx]
			last, run, level = ev.Last, ev.Run, ev.Level
			sign, err := r.ReadBit()
			if err != nil {
				return err
			}
			if sign == 1 {
				level = -level
			}
		}
		pos += run
		if pos >= 64 {
			return nil
		}
		dst[zigzag8x8[pos]] = int16(level)
		pos++
		if last == 1 {
			return nil
		}
	}
	return nil
}
