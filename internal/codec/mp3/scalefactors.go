package mp3

import "github.com/bramblemedia/reelcore/internal/bitio"

// sfBandLong/sfBandShort are the active scale-factor-band boundary tables
// (21 long bands covering 576 lines, 12 short bands x 3 windows covering
// 192 lines each = 576) for the frame currently being decoded.
// selectScaleFactorBands picks the table matching the frame's sample rate
// per ISO/IEC 11172-3 Table B.8/B.2's three MPEG1 sample-rate families,
// since band boundaries differ across families rather than sharing one
// table. MPEG2/2.5 rates have no tables of their own: each reuses the MPEG1
// table of the family whose rate is twice or four times its own.
var sfBandLong = sfBandLong44100
var sfBandShort = sfBandShort44100

var sfBandLong44100 = []int{0, 4, 8, 12, 16, 20, 24, 30, 36, 44, 52, 62, 74, 90, 110, 134, 162, 196, 238, 288, 342, 418, 576}
var sfBandShort44100 = []int{0, 4, 8, 12, 16, 22, 30, 40, 52, 66, 84, 106, 136, 192}

var sfBandLong48000 = []int{0, 4, 8, 12, 16, 20, 24, 30, 36, 42, 50, 60, 72, 88, 106, 128, 156, 190, 230, 276, 330, 384, 576}
var sfBandShort48000 = []int{0, 4, 8, 12, 16, 22, 28, 38, 50, 64, 80, 100, 126, 192}

var sfBandLong32000 = []int{0, 4, 8, 12, 16, 20, 24, 30, 36, 44, 54, 66, 82, 102, 126, 156, 194, 240, 296, 364, 448, 550, 576}
var sfBandShort32000 = []int{0, 4, 8, 12, 16, 22, 30, 42, 58, 78, 104, 138, 180, 192}

// selectScaleFactorBands activates the long/short band table matching
// sampleRate: 24/12kHz use the 48kHz table, 16/8kHz the 32kHz table, and
// every other rate (44.1kHz, 22.05kHz, 11.025kHz) the 44.1kHz table.
func selectScaleFactorBands(sampleRate int) {
	switch sampleRate {
	case 48000, 24000, 12000:
		sfBandLong, sfBandShort = sfBandLong48000, sfBandShort48000
	case 32000, 16000, 8000:
		sfBandLong, sfBandShort = sfBandLong32000, sfBandShort32000
	default:
		sfBandLong, sfBandShort = sfBandLong44100, sfBandShort44100
	}
}

// scalefacCompressTable maps scalefac_compress (0-15) to (slen1, slen2), the
// bit widths of the two scalefactor groups for long/mixed blocks, per
// ISO/IEC 11172-3 Table B.8.
var scalefacCompressTable = [16][2]int{
	{0, 0}, {0, 1}, {0, 2}, {0, 3}, {3, 0}, {1, 1}, {1, 2}, {1, 3},
	{2, 1}, {2, 2}, {2, 3}, {3, 1}, {3, 2}, {3, 3}, {4, 2}, {4, 3},
}

type channelScalefacs struct {
	long [23]int
	short [13][3]int // [band][window]
}

// readScaleFactors decodes one granule/channel's scale factors. For long
// blocks, scfsi (granule 1 only, MPEG1) lets a band group be copied from
// granule 0 instead of re-read; short/mixed blocks always read both
// granules in full, per the standard.
func readScaleFactors(r *bitio.Reader, gi granuleInfo, scfsi [4]bool, granuleIdx int, prev *channelScalefacs, isMPEG1 bool) (channelScalefacs, error) {
	var sf channelScalefacs
	slen1, slen2 := scalefacCompressTable[gi.scalefacCompress%16][0], scalefacCompressTable[gi.scalefacCompress%16][1]

	if gi.windowSwitching && gi.blockType == 2 {
		// Short (or mixed) block: bands 0-5 use slen1, 6-11 use slen2, all
		// three windows read independently, no scfsi carry-over.
		nLongBands := 0
		if gi.mixedBlock {
			nLongBands = 8
			for b := 0; b < nLongBands; b++ {
				v, err := r.ReadBits(slen1)
				if err != nil {
					return sf, err
				}
				sf.long[b] = int(v)
			}
		}
		for b := 0; b < 12; b++ {
			width := slen1
			if b >= 6 {
				width = slen2
			}
			for w := 0; w < 3; w++ {
				if nLongBands > 0 && b < 3 {
					// bands already covered by the long prefix in mixed mode
					continue
				}
				v, err := r.ReadBits(width)
				if err != nil {
					return sf, err
				}
				sf.short[b][w] = int(v)
			}
		}
		return sf, nil
	}

	// Long block: 4 band groups {0-5,6-10,11-15,16-20}, gated by scfsi for
	// granule 1 of an MPEG1 frame.
	groups := [4][2]int{{0, 6}, {6, 11}, {11, 16}, {16, 21}}
	widths := [4]int{slen1, slen1, slen2, slen2}
	for gIdx, grp := range groups {
		if isMPEG1 && granuleIdx == 1 && scfsi[gIdx] && prev != nil {
			for b := grp[0]; b < grp[1]; b++ {
				sf.long[b] = prev.long[b]
			}
			continue
		}
		for b := grp[0]; b < grp[1]; b++ {
			v, err := r.ReadBits(widths[gIdx])
			if err != nil {
				return sf, err
			}
			sf.long[b] = int(v)
		}
	}
	return sf, nil
}

// pretab is the additive scalefactor bias applied to the top bands when
// preflag is set, per ISO/IEC 11172-3 Table B.6.
var pretab = [...]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 3, 3, 3, 2}
