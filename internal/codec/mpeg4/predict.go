package mpeg4

import "math"

// dequantCoeff reverses DCT coefficient quantization for one non-DC (or
// non-intra) coefficient at zigzag position zz, per §7.4.3. quantType
// selects between the H.263-style formula (false, the common case) and the
// MPEG quantization-matrix formula (true).
func dequantCoeff(level int, quant int, zz int, quantType bool, mat [64]int) int {
	if level == 0 {
		return 0
	}
	if !quantType {
		sign := 1
		mag := level
		if mag < 0 {
			sign, mag = -1, -mag
		}
		var rec int
		if quant%2 == 1 {
			rec = quant * (2*mag + 1)
		} else {
			rec = quant*(2*mag+1) - 1
		}
		return clampCoeff(sign * rec)
	}
	sign := 1
	mag := level
	if mag < 0 {
		sign, mag = -1, -mag
	}
	rec := (2*mag + 1) * quant * mat[zz] / 16
	return clampCoeff(sign * rec)
}

func clampCoeff(v int) int {
	if v < -2048 {
		return -2048
	}
	if v > 2047 {
		return 2047
	}
	return v
}

// predictDCAC applies §7.4.4's closer-gradient DC/AC coefficient
// prediction: the predictor is the top neighbor's DC when the gradient
// |left.DC - topleft.DC| > |top.DC - topleft.DC| is false (top is "closer"),
// else the left neighbor's DC; the same choice of direction reuses that
// neighbor's stored AC row/column as the first-row/first-column AC
// predictor. Prediction runs before dequantization, so AC predictors are
// quantized levels and the DC predictor is decodeIntraDC's value (the real decoder rescales each predictor by the ratio of the two
// blocks' quantizers first); this decoder skips that rescale step, a
// disclosed simplification that is exact whenever the neighbor and current
// quantizer match (the overwhelmingly common constant-quant case) and only
// approximate across a DQUANT step. See DESIGN.md.
func predictDCAC(mb *mbInfo, coeffs *[64]int16, blk int, left, top, topLeft *mbInfo, leftOK, topOK, topLeftOK bool) {
	if !mb.ACPred {
		storePredictorContext(mb, coeffs, blk)
		return
	}
	var leftDC, topDC, topLeftDC int
	if leftOK {
		leftDC = int(left.DC[blk])
	}
	if topOK {
		topDC = int(top.DC[blk])
	}
	if topLeftOK {
		topLeftDC = int(topLeft.DC[blk])
	}

	useLeft := topOK == false
	if leftOK && topOK {
		if abs(leftDC-topLeftDC) > abs(topDC-topLeftDC) {
			useLeft = true
		}
	} else if leftOK {
		useLeft = true
	}

	if useLeft && leftOK {
		coeffs[0] += int16(leftDC)
		for i := 0; i < 7; i++ {
			coeffs[(i+1)*8] += left.ACCol[blk][i]
		}
	} else if topOK {
		coeffs[0] += int16(topDC)
		for i := 0; i < 7; i++ {
			coeffs[i+1] += top.ACRow[blk][i]
		}
	}

	storePredictorContext(mb, coeffs, blk)
}

// storePredictorContext records this block's DC and first row/column AC
// coefficients so later neighbor macroblocks can use them as predictors.
func storePredictorContext(mb *mbInfo, coeffs *[64]int16, blk int) {
	mb.DC[blk] = coeffs[0]
	for i := 0; i < 7; i++ {
		mb.ACRow[blk][i] = coeffs[i+1]
		mb.ACCol[blk][i] = coeffs[(i+1)*8]
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// idct8x8 applies the separable inverse 8-point DCT-III to block (raster
// order in, raster order out), per §7.5's transform.
func idct8x8(block *[64]float64) {
	var tmp [64]float64
	for y := 0; y < 8; y++ {
		idct1D(block[y*8 : y*8+8])
	}
	for x := 0; x < 8; x++ {
		var col [8]float64
		for y := 0; y < 8; y++ {
			col[y] = block[y*8+x]
		}
		idct1D(col[:])
		for y := 0; y < 8; y++ {
			tmp[y*8+x] = col[y]
		}
	}
	copy(block[:], tmp[:])
}

func idct1D(v []float64) {
	var out [8]float64
	for n := 0; n < 8; n++ {
		sum := 0.0
		for k := 0; k < 8; k++ {
			c := 1.0
			if k == 0 {
				c = 1.0 / math.Sqrt2
			}
			sum += c * v[k] * math.Cos(math.Pi/8*(float64(n)+0.5)*float64(k))
		}
		out[n] = sum * 0.5
	}
	copy(v, out[:])
}

func clampByte(v float64) byte {
	iv := int(math.Round(v))
	if iv < 0 {
		return 0
	}
	if iv > 255 {
		return 255
	}
	return byte(iv)
}
