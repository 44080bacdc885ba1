package aac

import "math"

// synthesize runs the inverse MDCT and windowing/overlap-add stage for one
// channel's decoded spectrum, returning 1024 time-domain samples per
// decode step 7. Long windows produce one 2048-sample IMDCT halved by
// 50% overlap-add; short windows produce eight 256-sample IMDCTs assembled
// with the standard short-window overlap pattern before the same overlap-add
// against the previous frame's tail.
func (d *Decoder) synthesize(ch int, ic *ics) []float64 {
	out := make([]float64, 1024)
	if ic == nil {
		copy(out, d.overlap[ch])
		return out
	}

	var timeDomain []float64
	if ic.windowSequence == windowShort {
		timeDomain = synthesizeShort(ic, d.windowShape(ch, ic))
	} else {
		timeDomain = synthesizeLong(ic, d.windowShape(ch, ic))
	}

	for i := 0; i < 1024; i++ {
		out[i] = timeDomain[i] + d.overlap[ch][i]
	}
	copy(d.overlap[ch], timeDomain[1024:2048])

	d.prevWindowShape[ch] = ic.windowShape
	d.prevWindowSeq[ch] = ic.windowSequence
	return out
}

// windowShape resolves which window (KBD or sine) to apply to the first and
// second half of this frame's transform, since AAC allows the shape to
// change at a frame boundary and each half is windowed independently using
// the shape declared for that half's neighboring frame.
type halfShapes struct {
	first, second int
}

func (d *Decoder) windowShape(ch int, ic *ics) halfShapes {
	return halfShapes{first: d.prevWindowShape[ch], second: ic.windowShape}
}

// kbdWindow builds a Kaiser-Bessel-derived window of length n (this decoder's
// default shape, window_shape=0), via the standard KBD construction: a
// Kaiser window of half length, cumulative-sum normalized, then mirrored.
func kbdWindow(n int, alpha float64) []float64 {
	half := n / 2
	kaiser := make([]float64, half+1)
	denom := besselI0(alpha * math.Pi)
	for i := 0; i <= half; i++ {
		x := float64(2*i)/float64(half) - 1
		arg := alpha * math.Pi * math.Sqrt(1-x*x)
		kaiser[i] = besselI0(arg) / denom
	}
	var sum float64
	cum := make([]float64, half+1)
	for i := 0; i <= half; i++ {
		sum += kaiser[i]
		cum[i] = sum
	}
	total := cum[half]
	w := make([]float64, n)
	for i := 0; i < half; i++ {
		v := math.Sqrt(cum[i] / total)
		w[i] = v
		w[n-1-i] = v
	}
	return w
}

func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	for k := 1; k < 25; k++ {
		term *= (x / (2 * float64(k))) * (x / (2 * float64(k)))
		sum += term
	}
	return sum
}

func sineWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = math.Sin(math.Pi / float64(n) * (float64(i) + 0.5))
	}
	return w
}

func windowOfShape(shape, n int) []float64 {
	if shape == 1 {
		return sineWindow(n)
	}
	return kbdWindow(n, 6)
}

// imdct computes the inverse modified DCT of a length-n spectrum, producing
// 2n time-domain samples, via the direct O(n^2) definition. Frame sizes here
// (2048 long, 256 short) are small enough that this is adequate without an
// FFT-based fast IMDCT.
func imdct(spec []float64) []float64 {
	n := len(spec)
	out := make([]float64, 2*n)
	for i := 0; i < 2*n; i++ {
		var sum float64
		for k := 0; k < n; k++ {
			angle := math.Pi / float64(4*n) * float64(2*i+1+n) * float64(2*k+1)
			sum += spec[k] * math.Cos(angle)
		}
		out[i] = sum * (2.0 / float64(n))
	}
	return out
}

// synthesizeLong performs the 1024-coefficient IMDCT and applies the
// (possibly split) analysis window across the resulting 2048 samples.
func synthesizeLong(ic *ics, shapes halfShapes) []float64 {
	td := imdct(ic.spectrum)
	firstWin := windowOfShape(shapes.first, 2048)
	secondWin := windowOfShape(shapes.second, 2048)
	out := make([]float64, 2048)
	half := 1024
	for i := 0; i < half; i++ {
		out[i] = td[i] * firstWin[i]
	}
	for i := half; i < 2048; i++ {
		out[i] = td[i] * secondWin[i]
	}
	return out
}

// synthesizeShort runs eight independent 128-coefficient IMDCTs (256 samples
// each) and assembles them into the 2048-sample long-window-equivalent
// buffer using the standard short-window 50%-overlap stacking: each window's
// 256 samples straddle the boundary with its neighbor by 128 samples, with
// the whole group centered inside the 2048-sample frame the way a
// long-window transform would occupy it.
func synthesizeShort(ic *ics, shapes halfShapes) []float64 {
	out := make([]float64, 2048)
	winLen := 128
	win := windowOfShape(shapes.second, 2*winLen)

	leadIn := 1024 - 4*winLen - winLen/2 // samples before the first short window's data region
	for w := 0; w < ic.numWindows; w++ {
		lo := w * winLen
		hi := lo + winLen
		if hi > len(ic.spectrum) {
			hi = len(ic.spectrum)
		}
		if lo >= hi {
			continue
		}
		td := imdct(ic.spectrum[lo:hi])
		base := leadIn + w*winLen
		for i := 0; i < len(td) && base+i < len(out) && base+i >= 0; i++ {
			out[base+i] += td[i] * win[i]
		}
	}
	return out
}
