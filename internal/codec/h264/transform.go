package h264

// Dequantization scale factors for the 4x4 integer transform, indexed by
// (qp%6, coefficient position class), per Table 8-15 (V values) combined
// with the standard's per-position m(i,j) grouping collapsed to three
// classes: positions {0,2,8,10}, positions {5,7,13,15}, and the rest.
var dequant4x4V = [6][3]int32{
	{10, 16, 13},
	{11, 18, 14},
	{13, 20, 16},
	{14, 23, 18},
	{16, 25, 20},
	{18, 29, 23},
}

func dequantClass4x4(pos int) int {
	switch pos {
	case 0, 2, 8, 10:
		return 0
	case 5, 7, 13, 15:
		return 1
	default:
		return 2
	}
}

// dequant4x4Block scales a zig-zag-ordered 4x4 residual block (already
// placed in raster order by the caller) by the QP-derived factor, per
// §8.5.9 (for transform_bypass QP==0 the caller skips this entirely).
func dequant4x4Block(coeffs *[16]int32, qp int, scalingList []int) {
	qpMod := qp % 6
	qpDiv := qp / 6
	for i := 0; i < 16; i++ {
		v := dequant4x4V[qpMod][dequantClass4x4(i)]
		w := int32(16)
		if len(scalingList) == 16 {
			w = int32(scalingList[i])
		}
		scaled := coeffs[i] * v * w
		if qpDiv >= 4 {
			coeffs[i] = scaled << uint(qpDiv-4)
		} else {
			coeffs[i] = (scaled + (1 << uint(3-qpDiv))) >> uint(4-qpDiv)
		}
	}
}

// idct4x4 performs the standard's core 4x4 inverse integer transform
// (§8.5.12.2): a separable butterfly of adds/shifts, applied to coefficients
// already in raster (not zig-zag) order, writing the spatial residual back
// in place.
func idct4x4(c *[16]int32) {
	var tmp [16]int32
	for i := 0; i < 4; i++ {
		a := c[i*4+0]
		b := c[i*4+1]
		cc := c[i*4+2]
		d := c[i*4+3]
		e0 := a + cc
		e1 := a - cc
		e2 := (b >> 1) - d
		e3 := b + (d >> 1)
		tmp[i*4+0] = e0 + e3
		tmp[i*4+1] = e1 + e2
		tmp[i*4+2] = e1 - e2
		tmp[i*4+3] = e0 - e3
	}
	for j := 0; j < 4; j++ {
		a := tmp[0*4+j]
		b := tmp[1*4+j]
		cc := tmp[2*4+j]
		d := tmp[3*4+j]
		e0 := a + cc
		e1 := a - cc
		e2 := (b >> 1) - d
		e3 := b + (d >> 1)
		c[0*4+j] = (e0 + e3 + 32) >> 6
		c[1*4+j] = (e1 + e2 + 32) >> 6
		c[2*4+j] = (e1 - e2 + 32) >> 6
		c[3*4+j] = (e0 - e3 + 32) >> 6
	}
}

// hadamard4x4DC performs the I_16x16 luma DC Hadamard transform (§8.5.10)
// in place on the 4x4 array of per-block DC coefficients.
func hadamard4x4DC(c *[16]int32) {
	var tmp [16]int32
	for i := 0; i < 4; i++ {
		a, b, cc, d := c[i*4+0], c[i*4+1], c[i*4+2], c[i*4+3]
		s0, s1 := a+cc, a-cc
		s2, s3 := b-d, b+d
		tmp[i*4+0] = s0 + s3
		tmp[i*4+1] = s1 + s2
		tmp[i*4+2] = s1 - s2
		tmp[i*4+3] = s0 - s3
	}
	for j := 0; j < 4; j++ {
		a, b, cc, d := tmp[0*4+j], tmp[1*4+j], tmp[2*4+j], tmp[3*4+j]
		s0, s1 := a+cc, a-cc
		s2, s3 := b-d, b+d
		c[0*4+j] = s0 + s3
		c[1*4+j] = s1 + s2
		c[2*4+j] = s1 - s2
		c[3*4+j] = s0 - s3
	}
}

// dequantDC4x4 applies the I_16x16 luma DC dequant factor of §8.5.10.
func dequantDC4x4(c *[16]int32, qp int) {
	qpMod := qp % 6
	qpDiv := qp / 6
	v := dequant4x4V[qpMod][0] * 16
	for i := range c {
		if qpDiv >= 6 {
			c[i] = (c[i] * v) << uint(qpDiv-6)
		} else {
			c[i] = (c[i]*v + (1 << uint(5-qpDiv))) >> uint(6-qpDiv)
		}
	}
}

// hadamard2x2ChromaDC performs the chroma DC 2x2 Hadamard transform plus
// dequant, per §8.5.11.
func hadamard2x2ChromaDC(c *[4]int32, qp int) {
	a, b, cc, d := c[0], c[1], c[2], c[3]
	f0 := a + b
	f1 := a - b
	f2 := cc + d
	f3 := cc - d
	c[0] = f0 + f2
	c[1] = f1 + f3
	c[2] = f0 - f2
	c[3] = f1 - f3

	qpMod := qp % 6
	qpDiv := qp / 6
	v := dequant4x4V[qpMod][0] * 16
	for i := range c {
		c[i] = ((c[i] * v) << uint(qpDiv)) >> 5
	}
}

// dequant8x8V mirrors dequant4x4V for the optional 8x8 transform (Table
// 8-16's six-class grouping collapsed the same way as the 4x4 table).
var dequant8x8V = [6][6]int32{
	{20, 18, 32, 19, 25, 24},
	{22, 19, 35, 21, 28, 26},
	{26, 23, 42, 24, 33, 31},
	{28, 25, 45, 26, 35, 33},
	{32, 28, 51, 30, 40, 38},
	{36, 32, 58, 34, 46, 43},
}

func dequant8x8Class(i int) int {
	x, y := i%8, i/8
	switch {
	case (x%4 == 0) && (y%4 == 0):
		return 0
	case (x%2 == 1) && (y%2 == 1):
		return 1
	case (x%4 == 2) && (y%4 == 2):
		return 2
	case (x%4 == 0 && y%2 == 1) || (x%2 == 1 && y%4 == 0):
		return 3
	case (x%4 == 0 && y%4 == 2) || (x%4 == 2 && y%4 == 0):
		return 4
	default:
		return 5
	}
}

func dequant8x8Block(coeffs *[64]int32, qp int, scalingList []int) {
	qpMod := qp % 6
	qpDiv := qp / 6
	for i := 0; i < 64; i++ {
		v := dequant8x8V[qpMod][dequant8x8Class(i)]
		w := int32(16)
		if len(scalingList) == 64 {
			w = int32(scalingList[i])
		}
		scaled := coeffs[i] * v * w
		if qpDiv >= 6 {
			coeffs[i] = scaled << uint(qpDiv-6)
		} else {
			coeffs[i] = (scaled + (1 << uint(5-qpDiv))) >> uint(6-qpDiv)
		}
	}
}

// idct8x8Row1D performs one 1-D 8-point inverse-transform butterfly on d,
// the shared core of §8.5.12.3's separable row/column passes.
func idct8x8Row1D(d [8]int32) [8]int32 {
	a0 := d[0] + d[4]
	a2 := d[0] - d[4]
	a4 := (d[2] >> 1) - d[6]
	a6 := d[2] + (d[6] >> 1)

	b0 := a0 + a6
	b2 := a2 + a4
	b4 := a2 - a4
	b6 := a0 - a6

	a1 := -d[3] + d[5] - d[7] - (d[7] >> 1)
	a3 := d[1] + d[7] - d[3] - (d[3] >> 1)
	a5 := -d[1] + d[7] + d[5] + (d[5] >> 1)
	a7 := d[3] + d[5] + d[1] + (d[1] >> 1)

	b1 := a1 + (a7 >> 2)
	b7 := a7 - (a1 >> 2)
	b3 := a3 + (a5 >> 2)
	b5 := (a3 >> 2) - a5

	var r [8]int32
	r[0] = b0 + b7
	r[7] = b0 - b7
	r[1] = b2 + b5
	r[6] = b2 - b5
	r[2] = b4 + b3
	r[5] = b4 - b3
	r[3] = b6 + b1
	r[4] = b6 - b1
	return r
}

// idct8x8 is the optional High-profile 8x8 inverse transform, per
// §8.5.12.3: separable row then column passes of the 8-point butterfly,
// with the column pass's output rounded and scaled down by 1/64 exactly
// as idct4x4's column pass is.
func idct8x8(c *[64]int32) {
	var tmp [64]int32
	for row := 0; row < 8; row++ {
		var d [8]int32
		copy(d[:], c[row*8:row*8+8])
		r := idct8x8Row1D(d)
		copy(tmp[row*8:row*8+8], r[:])
	}
	for col := 0; col < 8; col++ {
		var d [8]int32
		for row := 0; row < 8; row++ {
			d[row] = tmp[row*8+col]
		}
		r := idct8x8Row1D(d)
		for row := 0; row < 8; row++ {
			c[row*8+col] = (r[row] + 32) >> 6
		}
	}
}

// zigzag4x4 maps zig-zag scan position to raster position within a 4x4
// block, per Figure 8-8.
var zigzag4x4 = [16]int{0, 1, 4, 8, 5, 2, 3, 6, 9, 12, 13, 10, 7, 11, 14, 15}

// zigzag8x8 maps zig-zag scan position to raster position within an 8x8
// block, per Figure 8-9.
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

// toRaster4x4 reorders a zig-zag-scanned residualBlock into raster order.
func toRaster4x4(zz [16]int32) [16]int32 {
	var out [16]int32
	for i, pos := range zigzag4x4 {
		out[pos] = zz[i]
	}
	return out
}
