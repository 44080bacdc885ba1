package mp3

// aliasCS/aliasCA are the 8 butterfly coefficient pairs (cs, ca) applied across
// each internal 18-line subband boundary, per ISO/IEC 11172-3 Table 3-B.9.
var aliasCS = [8]float64{0.85749293, 0.88174200, 0.94962865, 0.98331459, 0.99551782, 0.99916056, 0.99989920, 0.99999316}
var aliasCA = [8]float64{0.51449576, 0.47173197, 0.31337745, 0.18191320, 0.09457419, 0.04096558, 0.01419856, 0.00369997}

// applyAliasReduction runs the 8-point butterfly across each of the 31
// internal subband boundaries of a 576-line long-block spectrum. Short
// blocks and the short portion of mixed blocks skip this stage per the
// standard.
func applyAliasReduction(xr []float64, gi granuleInfo) {
	if gi.windowSwitching && gi.blockType == 2 && !gi.mixedBlock {
		return
	}
	nLongSubbands := 32
	if gi.mixedBlock {
		nLongSubbands = 2 // only the first 2 subbands (36 lines) are long-transformed
	}
	for sb := 1; sb < nLongSubbands; sb++ {
		base := sb * 18
		if base+8 > len(xr) || base-8 < 0 {
			continue
		}
		for i := 0; i < 8; i++ {
			lo := base - 1 - i
			hi := base + i
			if lo < 0 || hi >= len(xr) {
				continue
			}
			a := xr[lo]
			b := xr[hi]
			xr[lo] = a*aliasCS[i] - b*aliasCA[i]
			xr[hi] = b*aliasCS[i] + a*aliasCA[i]
		}
	}
}
