package h264

// Intra 4x4/8x8 luma prediction modes, per Table 8-2.
const (
	intra4x4Vertical = iota
	intra4x4Horizontal
	intra4x4DC
	intra4x4DiagDownLeft
	intra4x4DiagDownRight
	intra4x4VerticalRight
	intra4x4HorizontalDown
	intra4x4VerticalLeft
	intra4x4HorizontalUp
)

// Intra 16x16 / chroma prediction modes, per Tables 8-3 and 8-5.
const (
	intra16DC = iota
	intra16Horizontal
	intra16Vertical
	intra16Plane
)

// leftOrCorner/topOrCorner index an 8x8 reference-sample array, returning
// the corner sample for index -1 and clamping indices beyond the array to
// its last entry (the reference extension the standard's p[x,y]
// substitution process would otherwise require tracking explicitly).
func leftOrCorner(left [8]int, corner, k int) int {
	if k < 0 {
		return corner
	}
	if k > 7 {
		k = 7
	}
	return left[k]
}

func topOrCorner(top [16]int, corner, k int) int {
	if k < 0 {
		return corner
	}
	if k > 15 {
		k = 15
	}
	return top[k]
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// planeSampler reads/writes samples of one plane at (x,y) with edge
// replication for out-of-picture neighbors, mirroring the unavailable-sample
// substitution rule of §8.3.1.2.1.
type planeSampler struct {
	buf           []byte
	stride        int
	width, height int
}

func (s planeSampler) at(x, y int) byte {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= s.width {
		x = s.width - 1
	}
	if y >= s.height {
		y = s.height - 1
	}
	return s.buf[y*s.stride+x]
}

func (s planeSampler) set(x, y int, v byte) {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return
	}
	s.buf[y*s.stride+x] = v
}

// predictIntra4x4 fills an in-place 4x4 block at (bx,by) in the luma plane
// using mode and neighbor availability flags, per §8.3.1.2.
func predictIntra4x4(s planeSampler, bx, by, mode int, haveLeft, haveTop, haveTopRight bool) {
	var left [4]int
	var top [4]int
	var topRight [4]int
	var cornerTL int
	for i := 0; i < 4; i++ {
		if haveLeft {
			left[i] = int(s.at(bx-1, by+i))
		} else {
			left[i] = 128
		}
		if haveTop {
			top[i] = int(s.at(bx+i, by-1))
		} else {
			top[i] = 128
		}
	}
	if haveTopRight {
		for i := 0; i < 4; i++ {
			topRight[i] = int(s.at(bx+4+i, by-1))
		}
	} else if haveTop {
		for i := 0; i < 4; i++ {
			topRight[i] = top[3]
		}
	} else {
		for i := 0; i < 4; i++ {
			topRight[i] = 128
		}
	}
	if haveLeft && haveTop {
		cornerTL = int(s.at(bx-1, by-1))
	} else if haveTop {
		cornerTL = top[0]
	} else if haveLeft {
		cornerTL = left[0]
	} else {
		cornerTL = 128
	}

	set := func(x, y, v int) { s.set(bx+x, by+y, clampByte(v)) }

	switch mode {
	case intra4x4Vertical:
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				set(x, y, top[x])
			}
		}
	case intra4x4Horizontal:
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				set(x, y, left[y])
			}
		}
	case intra4x4DC:
		sum, n := 0, 0
		if haveTop {
			sum += top[0] + top[1] + top[2] + top[3]
			n += 4
		}
		if haveLeft {
			sum += left[0] + left[1] + left[2] + left[3]
			n += 4
		}
		dc := 128
		if n > 0 {
			dc = (sum + n/2) / n
		}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				set(x, y, dc)
			}
		}
	case intra4x4DiagDownLeft:
		ext := [8]int{top[0], top[1], top[2], top[3], topRight[0], topRight[1], topRight[2], topRight[3]}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				i := x + y
				if i == 6 {
					set(x, y, (ext[6]+3*ext[7]+2)>>2)
				} else {
					set(x, y, (ext[i]+2*ext[i+1]+ext[i+2]+2)>>2)
				}
			}
		}
	case intra4x4DiagDownRight:
		ext := [9]int{left[3], left[2], left[1], left[0], cornerTL, top[0], top[1], top[2], top[3]}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				i := 4 + (x - y)
				set(x, y, (ext[i-1]+2*ext[i]+ext[i+1]+2)>>2)
			}
		}
	case intra4x4VerticalRight:
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				zVR := 2*x - y
				i := x - (y >> 1)
				switch {
				case zVR >= 0 && zVR%2 == 0:
					a := cornerTL
					if i > 0 {
						a = top[i-1]
					}
					set(x, y, (a+top[i]+1)>>1)
				case zVR >= 0:
					a := cornerTL
					if i >= 2 {
						a = top[i-2]
					}
					b := cornerTL
					if i >= 1 {
						b = top[i-1]
					}
					set(x, y, (a+2*b+top[i]+2)>>2)
				default:
					a := left[min(y-2, 3)]
					if y < 2 {
						a = cornerTL
					}
					set(x, y, (a+2*left[y-1]+left[y]+2)>>2)
				}
			}
		}
	case intra4x4HorizontalDown:
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				zHD := 2*y - x
				j := y - (x >> 1)
				switch {
				case zHD >= 0 && zHD%2 == 0:
					a := cornerTL
					if j > 0 {
						a = left[j-1]
					}
					set(x, y, (a+left[j]+1)>>1)
				case zHD > 0:
					a := cornerTL
					if j >= 1 {
						a = left[j-1]
					}
					set(x, y, (a+2*left[j]+left[min(j+1, 3)]+2)>>2)
				default:
					a := cornerTL
					if x >= 2 {
						a = top[x-2]
					}
					b := cornerTL
					if x >= 1 {
						b = top[x-1]
					}
					set(x, y, (a+2*b+top[x]+2)>>2)
				}
			}
		}
	case intra4x4VerticalLeft:
		ext := [8]int{top[0], top[1], top[2], top[3], topRight[0], topRight[1], topRight[2], topRight[3]}
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				i := x + (y >> 1)
				if y%2 == 0 {
					set(x, y, (ext[i]+ext[i+1]+1)>>1)
				} else {
					set(x, y, (ext[i]+2*ext[i+1]+ext[i+2]+2)>>2)
				}
			}
		}
	case intra4x4HorizontalUp:
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				zHU := x + 2*y
				switch {
				case zHU < 5 && zHU%2 == 0:
					j := y + (x >> 1)
					set(x, y, (left[j]+left[min(j+1, 3)]+1)>>1)
				case zHU < 5:
					j := y + (x >> 1)
					set(x, y, (left[j]+2*left[min(j+1, 3)]+left[min(j+2, 3)]+2)>>2)
				case zHU == 5:
					set(x, y, (left[2]+3*left[3]+2)>>2)
				default:
					set(x, y, left[3])
				}
			}
		}
	default:
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				set(x, y, 128)
			}
		}
	}
}


// filterIntra8x8Refs applies §8.3.2.2.1's 3-tap low-pass filter to the raw
//8x8 reference samples (16 top samples spanning top+top-right, 8 left
// samples, and the corner), producing the p' samples every 8x8 mode
// predicts from. Unavailable inputs are expected to already carry their
// substituted value (edge replication or 128) on entry, matching
// predictIntra4x4's convention, so the filter runs unconditionally.
func filterIntra8x8Refs(top [16]int, left [8]int, corner int) (topF [16]int, leftF [8]int, cornerF int) {
	cornerF = (left[0] + 2*corner + top[0] + 2) >> 2
	topF[0] = (corner + 2*top[0] + top[1] + 2) >> 2
	for x := 1; x < 15; x++ {
		topF[x] = (top[x-1] + 2*top[x] + top[x+1] + 2) >> 2
	}
	topF[15] = (top[14] + 3*top[15] + 2) >> 2

	leftF[0] = (corner + 2*left[0] + left[1] + 2) >> 2
	for y := 1; y < 7; y++ {
		leftF[y] = (left[y-1] + 2*left[y] + left[y+1] + 2) >> 2
	}
	leftF[7] = (left[6] + 3*left[7] + 2) >> 2
	return
}

// predictIntra8x8 fills an in-place 8x8 block at (ox,oy) in the luma plane
// for the transform_size_8x8 path, per §8.3.2: the same nine directional
// modes as 4x4 intra, applied to the low-pass filtered reference samples
// filterIntra8x8Refs produces rather than the raw neighbor samples.
func predictIntra8x8(s planeSampler, ox, oy, mode int, haveLeft, haveTop, haveTopRight bool) {
	var rawTop [16]int
	var rawLeft [8]int
	var rawCorner int
	for i := 0; i < 8; i++ {
		if haveLeft {
			rawLeft[i] = int(s.at(ox-1, oy+i))
		} else {
			rawLeft[i] = 128
		}
	}
	for i := 0; i < 8; i++ {
		if haveTop {
			rawTop[i] = int(s.at(ox+i, oy-1))
		} else {
			rawTop[i] = 128
		}
	}
	if haveTopRight {
		for i := 0; i < 8; i++ {
			rawTop[8+i] = int(s.at(ox+8+i, oy-1))
		}
	} else if haveTop {
		for i := 0; i < 8; i++ {
			rawTop[8+i] = rawTop[7]
		}
	} else {
		for i := 0; i < 8; i++ {
			rawTop[8+i] = 128
		}
	}
	if haveLeft && haveTop {
		rawCorner = int(s.at(ox-1, oy-1))
	} else if haveTop {
		rawCorner = rawTop[0]
	} else if haveLeft {
		rawCorner = rawLeft[0]
	} else {
		rawCorner = 128
	}

	top, left, corner := filterIntra8x8Refs(rawTop, rawLeft, rawCorner)
	set := func(x, y, v int) { s.set(ox+x, oy+y, clampByte(v)) }

	switch mode {
	case intra4x4Vertical:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				set(x, y, top[x])
			}
		}
	case intra4x4Horizontal:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				set(x, y, left[y])
			}
		}
	case intra4x4DC:
		sum, n := 0, 0
		if haveTop {
			for x := 0; x < 8; x++ {
				sum += top[x]
			}
			n += 8
		}
		if haveLeft {
			for y := 0; y < 8; y++ {
				sum += left[y]
			}
			n += 8
		}
		dc := 128
		if n > 0 {
			dc = (sum + n/2) / n
		}
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				set(x, y, dc)
			}
		}
	case intra4x4DiagDownLeft:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				i := x + y
				if i == 14 {
					set(x, y, (top[14]+3*top[15]+2)>>2)
				} else {
					set(x, y, (top[i]+2*top[i+1]+top[i+2]+2)>>2)
				}
			}
		}
	case intra4x4DiagDownRight:
		ext := [17]int{}
		for i := 0; i < 8; i++ {
			ext[i] = left[7-i]
		}
		ext[8] = corner
		for i := 0; i < 8; i++ {
			ext[9+i] = top[i]
		}
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				i := 8 + (x - y)
				set(x, y, (ext[i-1]+2*ext[i]+ext[i+1]+2)>>2)
			}
		}
	case intra4x4VerticalRight:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				zVR := 2*x - y
				i := x - (y >> 1)
				switch {
				case zVR >= 0 && zVR%2 == 0:
					a := corner
					if i > 0 {
						a = top[i-1]
					}
					set(x, y, (a+top[i]+1)>>1)
				case zVR >= 0:
					a := corner
					if i >= 2 {
						a = top[i-2]
					}
					b := corner
					if i >= 1 {
						b = top[i-1]
					}
					set(x, y, (a+2*b+top[i]+2)>>2)
				case zVR == -1:
					set(x, y, (left[0]+2*corner+top[0]+2)>>2)
				default:
					k := y - 2*x
					set(x, y, (leftOrCorner(left, corner, k-3)+2*leftOrCorner(left, corner, k-2)+leftOrCorner(left, corner, k-1)+2)>>2)
				}
			}
		}
	case intra4x4HorizontalDown:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				zHD := 2*y - x
				j := y - (x >> 1)
				switch {
				case zHD >= 0 && zHD%2 == 0:
					a := corner
					if j > 0 {
						a = left[j-1]
					}
					set(x, y, (a+left[j]+1)>>1)
				case zHD > 0:
					a := corner
					if j >= 1 {
						a = left[j-1]
					}
					set(x, y, (a+2*left[j]+left[min(j+1, 7)]+2)>>2)
				case zHD == -1:
					set(x, y, (left[0]+2*corner+top[0]+2)>>2)
				default:
					k := x - y
					a := topOrCorner(top, corner, k-2)
					b := topOrCorner(top, corner, k-1)
					set(x, y, (a+2*b+topOrCorner(top, corner, k)+2)>>2)
				}
			}
		}
	case intra4x4VerticalLeft:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				i := x + (y >> 1)
				if y%2 == 0 {
					set(x, y, (top[i]+top[i+1]+1)>>1)
				} else {
					set(x, y, (top[i]+2*top[i+1]+top[i+2]+2)>>2)
				}
			}
		}
	case intra4x4HorizontalUp:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				zHU := x + 2*y
				switch {
				case zHU < 13 && zHU%2 == 0:
					j := y + (x >> 1)
					set(x, y, (left[j]+left[min(j+1, 7)]+1)>>1)
				case zHU < 13:
					j := y + (x >> 1)
					set(x, y, (left[j]+2*left[min(j+1, 7)]+left[min(j+2, 7)]+2)>>2)
				case zHU == 13:
					set(x, y, (left[6]+3*left[7]+2)>>2)
				default:
					set(x, y, left[7])
				}
			}
		}
	default:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				set(x, y, 128)
			}
		}
	}
}

// predictIntra16x16 fills the full 16x16 luma macroblock at (mbX,mbY) (pixel
// origin) per §8.3.3.
func predictIntra16x16(s planeSampler, ox, oy, mode int, haveLeft, haveTop bool) {
	switch mode {
	case intra16Vertical:
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				s.set(ox+x, oy+y, s.at(ox+x, oy-1))
			}
		}
	case intra16Horizontal:
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				s.set(ox+x, oy+y, s.at(ox-1, oy+y))
			}
		}
	case intra16Plane:
		predictPlane(s, ox, oy, 16)
	default: // DC
		sum, n := 0, 0
		if haveTop {
			for x := 0; x < 16; x++ {
				sum += int(s.at(ox+x, oy-1))
			}
			n += 16
		}
		if haveLeft {
			for y := 0; y < 16; y++ {
				sum += int(s.at(ox-1, oy+y))
			}
			n += 16
		}
		dc := 128
		if n > 0 {
			dc = (sum + n/2) / n
		}
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				s.set(ox+x, oy+y, byte(dc))
			}
		}
	}
}

// predictChroma8x8 fills one 8x8 chroma block (Cb or Cr) at pixel origin
// (ox,oy), per §8.3.4.
func predictChroma8x8(s planeSampler, ox, oy, mode int, haveLeft, haveTop bool) {
	switch mode {
	case intra16Horizontal:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				s.set(ox+x, oy+y, s.at(ox-1, oy+y))
			}
		}
	case intra16Vertical:
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				s.set(ox+x, oy+y, s.at(ox+x, oy-1))
			}
		}
	case intra16Plane:
		predictPlane(s, ox, oy, 8)
	default: // DC, per-4x4-quadrant averaging
		for qy := 0; qy < 2; qy++ {
			for qx := 0; qx < 2; qx++ {
				bx, by := ox+qx*4, oy+qy*4
				sum, n := 0, 0
				useTop := haveTop
				useLeft := haveLeft
				if useTop {
					for x := 0; x < 4; x++ {
						sum += int(s.at(bx+x, by-1))
					}
					n += 4
				}
				if useLeft {
					for y := 0; y < 4; y++ {
						sum += int(s.at(bx-1, by+y))
					}
					n += 4
				}
				dc := 128
				if n > 0 {
					dc = (sum + n/2) / n
				}
				for y := 0; y < 4; y++ {
					for x := 0; x < 4; x++ {
						s.set(bx+x, by+y, byte(dc))
					}
				}
			}
		}
	}
}

// predictPlane implements the Plane prediction mode shared by 16x16 luma and
// 8x8 chroma, per §8.3.3.4 / §8.3.4.4.
func predictPlane(s planeSampler, ox, oy, size int) {
	h := 0
	for x := 0; x < size/2; x++ {
		h += (x + 1) * (int(s.at(ox+size/2+x, oy-1)) - int(s.at(ox+size/2-2-x, oy-1)))
	}
	v := 0
	for y := 0; y < size/2; y++ {
		v += (y + 1) * (int(s.at(ox-1, oy+size/2+y)) - int(s.at(ox-1, oy+size/2-2-y)))
	}
	var b, c int
	if size == 16 {
		b = (5*h + 32) >> 6
		c = (5*v + 32) >> 6
	} else {
		b = (17*h + 16) >> 5
		c = (17*v + 16) >> 5
	}
	a := 16 * (int(s.at(ox-1, oy+size-1)) + int(s.at(ox+size-1, oy-1)))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			val := (a + b*(x-(size/2-1)) + c*(y-(size/2-1)) + 16) >> 5
			s.set(ox+x, oy+y, clampByte(val))
		}
	}
}

// predictIPCM copies raw PCM samples directly into the plane, per §8.3.5 — no
// prediction, no residual.
func predictIPCM(s planeSampler, ox, oy, size int, samples []byte, stride int) {
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			s.set(ox+x, oy+y, samples[y*stride+x])
		}
	}
}
