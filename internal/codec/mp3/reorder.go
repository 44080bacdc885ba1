package mp3

// longBandForIndex returns the scale-factor band owning raw spectral line i
// in a long (or the long prefix of a mixed) block.
func longBandForIndex(i int) int {
	for b := 0; b < len(sfBandLong)-1; b++ {
		if i < sfBandLong[b+1] {
			return b
		}
	}
	return len(sfBandLong) - 2
}

// shortBandWindowForIndex maps a raw (pre-reorder) spectral line position to
// its (band, window, offset-within-window) within a short or mixed block,
// given the band-major encoding order: for each short sfb, the 3 windows'
// coefficients are stored as 3 consecutive same-width runs. band is -1 if
// pos falls inside a mixed block's long-block prefix.
func shortBandWindowForIndex(pos int, gi granuleInfo) (band, window, offset int) {
	bandBase := 0
	startBand := 0
	if gi.mixedBlock {
		bandBase = sfBandLong[8]
		startBand = 3
	}
	if pos < bandBase {
		return -1, 0, 0
	}
	p := pos - bandBase
	b := startBand
	for b < len(sfBandShort)-1 {
		width := sfBandShort[b+1] - sfBandShort[b]
		if width <= 0 {
			b++
			continue
		}
		span := width * 3
		if p < span {
			return b, p / width, p % width
		}
		p -= span
		b++
	}
	return len(sfBandShort) - 2, 2, 0
}

// bandForIndex resolves the (sfb, window) a raw spectral line belongs to,
// dispatching on block type; window is always 0 for long blocks.
func bandForIndex(i int, gi granuleInfo) (sfb, window int) {
	if gi.windowSwitching && gi.blockType == 2 {
		b, w, _ := shortBandWindowForIndex(i, gi)
		if b < 0 {
			return longBandForIndex(i), 0
		}
		return b, w
	}
	return longBandForIndex(i), 0
}

// reorderShort rearranges a short/mixed block's requantized spectrum from
// the encoded band-then-window grouping into 3 window-contiguous runs of 192
// values each (following the mixed block's unreordered long prefix), so the
// hybrid filter stage can treat each window as an independent spectrum.
func reorderShort(xr []float64, gi granuleInfo) []float64 {
	out := make([]float64, len(xr))
	bandBase := 0
	if gi.mixedBlock {
		bandBase = sfBandLong[8]
		copy(out[:bandBase], xr[:bandBase])
	}
	for i := bandBase; i < len(xr); i++ {
		b, w, off := shortBandWindowForIndex(i, gi)
		if b < 0 {
			continue
		}
		lo := sfBandShort[b]
		dst := bandBase + w*192 + lo + off
		if dst >= 0 && dst < len(out) {
			out[dst] = xr[i]
		}
	}
	return out
}
