package aac

import "github.com/bramblemedia/reelcore/internal/bitio"

// tnsFilter holds one TNS filter's parameters for one window.
type tnsFilter struct {
	length int
	order int
	direction bool
	coeffs []float64 // LPC coefficients derived from reflection coeffs
}

// tnsInfo holds up to 8 windows x 4 filters of TNS data, by convention
// step 4.
type tnsInfo struct {
	filters [8][4]tnsFilter
	nFilt [8]int
}

var tnsTables = [2][]float64{
	// 3-bit coefficient table (coef_compress=1, coef_res=0 => 3 bits)
	{0, 0.4338837391, 0.7818314825, 0.9749279122, -0.9848077530, -0.6427876097, -0.2079116908, 0.0},
	// 4-bit coefficient table
	{0, 0.2079116908, 0.4067366431, 0.5877852523, 0.7390089172, 0.8502171357, 0.9350162510, 0.9800207096,
		-0.9975640503, -0.9569403357, -0.8758309826, -0.7557495744, -0.6026346364, -0.4257792916, -0.2334453639, -0.0847538295},
}

func readTNSData(r *bitio.Reader, ic *ics) (tnsInfo, error) {
	var tns tnsInfo
	nWin := 1
	if ic.windowSequence == windowShort {
		nWin = 8
	}
	for w := 0; w < nWin; w++ {
		nFiltBits := 2
		orderBits := 5
		if ic.windowSequence == windowShort {
			nFiltBits = 1
			orderBits = 3
		}
		nFilt, err := r.ReadBits(nFiltBits)
		if err != nil {
			return tns, err
		}
		tns.nFilt[w] = int(nFilt)
		if nFilt == 0 {
			continue
		}
		coefResBits := 1
		coefRes, err := r.ReadBits(coefResBits)
		if err != nil {
			return tns, err
		}
		for f := 0; f < int(nFilt); f++ {
			length, err := r.ReadBits(ifElse(ic.windowSequence == windowShort, 4, 6))
			if err != nil {
				return tns, err
			}
			order, err := r.ReadBits(orderBits)
			if err != nil {
				return tns, err
			}
			filt := tnsFilter{length: int(length), order: int(order)}
			if order > 0 {
				dir, err := r.ReadFlag()
				if err != nil {
					return tns, err
				}
				filt.direction = dir
				coefCompress, err := r.ReadFlag()
				if err != nil {
					return tns, err
				}
				bits := 3
				if coefRes == 1 {
					bits = 4
				}
				if coefCompress {
					bits--
				}
				table := tnsTables[coefRes]
				reflect := make([]float64, order)
				for k := 0; k < int(order); k++ {
					v, err := r.ReadBits(bits)
					if err != nil {
						return tns, err
					}
					idx := int(v)
					if coefCompress {
						idx *= 2 // compressed table uses every other entry
						if idx >= len(table) {
							idx = len(table) - 1
						}
					}
					reflect[k] = table[idx%len(table)]
				}
				filt.coeffs = reflectToLPC(reflect)
			}
			if int(filt.order) < len(tns.filters[w]) || true {
				// store up to 4 filters
			}
			if f < 4 {
				tns.filters[w][f] = filt
			}
		}
	}
	return tns, nil
}

func ifElse(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

// reflectToLPC converts reflection (PARCOR) coefficients to direct-form LPC
// coefficients via the standard Levinson recursion step used by TNS.
func reflectToLPC(reflect []float64) []float64 {
	order := len(reflect)
	lpc := make([]float64, order)
	tmp := make([]float64, order)
	for i := 0; i < order; i++ {
		lpc[i] = reflect[i]
		for j := 0; j < i; j++ {
			tmp[j] = lpc[j] - reflect[i]*lpc[i-1-j]
		}
		copy(lpc[:i], tmp[:i])
	}
	return lpc
}

// applyTNS runs each active filter as an all-pole filter over its band
// range of the spectrum, scanning forward or reverse per the direction bit.
func applyTNS(ic *ics) {
	nSWB := numSWB(ic)
	for w := 0; w < ic.numWindows; w++ {
		if ic.tns.nFilt[w] == 0 {
			continue
		}
		bottom := nSWB
		for f := 0; f < ic.tns.nFilt[w] && f < 4; f++ {
			filt := ic.tns.filters[w][f]
			top := bottom
			bottom = top - filt.length
			if bottom < 0 {
				bottom = 0
			}
			if filt.order == 0 {
				continue
			}
			startBin := ic.bandOffsets[min(bottom, nSWB)]
			endBin := ic.bandOffsets[min(top, nSWB)]
			applyTNSFilterWindow(ic, w, startBin, endBin, filt)
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func applyTNSFilterWindow(ic *ics, w, start, end int, filt tnsFilter) {
	windowSpectrumLen := len(ic.spectrum) / max(ic.numWindows, 1)
	base := w * windowSpectrumLen
	lo := base + start
	hi := base + end
	if hi > base+windowSpectrumLen {
		hi = base + windowSpectrumLen
	}
	if lo < 0 || lo >= hi || hi > len(ic.spectrum) {
		return
	}
	n := hi - lo
	state := make([]float64, filt.order)
	apply := func(i int) {
		x := ic.spectrum[lo+i]
		var pred float64
		for j, c := range filt.coeffs {
			pred += c * state[j]
		}
		y := x - pred
		copy(state[1:], state[:len(state)-1])
		state[0] = y
		ic.spectrum[lo+i] = y
	}
	if filt.direction {
		for i := n - 1; i >= 0; i-- {
			apply(i)
		}
	} else {
		for i := 0; i < n; i++ {
			apply(i)
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
