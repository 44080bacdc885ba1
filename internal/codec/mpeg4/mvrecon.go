package mpeg4

import "github.com/bramblemedia/reelcore/internal/bitio"

// blockOriginLuma returns the top-left sample coordinate, within the relevant
// plane, of luma 8x8 block blk (0..3: TL,TR,BL,BR) inside macroblock
// (mbX,mbY).
func blockOriginLuma(mbX, mbY, blk int) (int, int) {
	x := mbX*16 + (blk%2)*8
	y := mbY*16 + (blk/2)*8
	return x, y
}

func medianOf3(a, b, c int) int {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return b
}

// predictMV derives the median-of-three motion vector predictor for luma
// sub-block blk of the macroblock at (mbX,mbY), from the left, top, and
// top-right neighbor's corresponding sub-block vector, per §7.6.4 (falling
// back to the available subset, and to zero with none available).
func predictMV(pic *Picture, mbX, mbY, blk int, is4MV bool) [2]int16 {
	blockIdx := func(mb *mbInfo) [2]int16 {
		if is4MV {
			return mb.MV[blk]
		}
		return mb.MV[0]
	}
	var candidates [][2]int16
	if left := pic.mbAt(mbX-1, mbY); left != nil && left.Available && !left.IsIntra {
		candidates = append(candidates, blockIdx(left))
	}
	if top := pic.mbAt(mbX, mbY-1); top != nil && top.Available && !top.IsIntra {
		candidates = append(candidates, blockIdx(top))
	}
	if topRight := pic.mbAt(mbX+1, mbY-1); topRight != nil && topRight.Available && !topRight.IsIntra {
		candidates = append(candidates, blockIdx(topRight))
	}
	if len(candidates) == 0 {
		return [2]int16{0, 0}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	for len(candidates) < 3 {
		candidates = append(candidates, candidates[len(candidates)-1])
	}
	return [2]int16{
		int16(medianOf3(int(candidates[0][0]), int(candidates[1][0]), int(candidates[2][0]))),
		int16(medianOf3(int(candidates[0][1]), int(candidates[1][1]), int(candidates[2][1]))),
	}
}

// decodeMotionVectors reads the MVD(s) for one macroblock and resolves
// them into absolute per-8x8-block motion vectors plus the derived chroma
// vector, per §6.2.5/§7.6.
func decodeMotionVectors(r *bitio.Reader, ctx *decodeContext, mb *mbInfo, mbX, mbY int) error {
	fcode := ctx.vop.FcodeForward
	if mb.Is4MV {
		for blk := 0; blk < 4; blk++ {
			dx, err := decodeMVD(r, fcode)
			if err != nil {
				return err
			}
			dy, err := decodeMVD(r, fcode)
			if err != nil {
				return err
			}
			pred := predictMV(ctx.pic, mbX, mbY, blk, true)
			mb.MV[blk] = [2]int16{
				int16(rangeWrapMV(int(pred[0])+dx, fcode)),
				int16(rangeWrapMV(int(pred[1])+dy, fcode)),
			}
		}
		mb.ChromaMV = deriveChromaMV(mb.MV)
		return nil
	}
	dx, err := decodeMVD(r, fcode)
	if err != nil {
		return err
	}
	dy, err := decodeMVD(r, fcode)
	if err != nil {
		return err
	}
	pred := predictMV(ctx.pic, mbX, mbY, 0, false)
	mv := [2]int16{
		int16(rangeWrapMV(int(pred[0])+dx, fcode)),
		int16(rangeWrapMV(int(pred[1])+dy, fcode)),
	}
	for i := range mb.MV {
		mb.MV[i] = mv
	}
	mb.ChromaMV = deriveChromaMV(mb.MV)
	return nil
}

// copyMBFromReference handles a not_coded P-macroblock: straight
// zero-residual motion compensation from the reference at mv (normally
// zero), per §6.2.5's skip path.
func copyMBFromReference(ctx *decodeContext, mb *mbInfo, mbX, mbY int, mv [2]int16) {
	for i := range mb.MV {
		mb.MV[i] = mv
	}
	mb.ChromaMV = mv
	motionCompensateAllBlocks(ctx, mb, mbX, mbY)
}

// motionCompensateAllBlocks writes this macroblock's motion-compensated
// prediction (luma per-8x8-block, chroma single block) into ctx.pic, from
// ctx.ref. A nil reference (e.g. the first P-VOP after a dropped I-VOP)
// leaves the macroblock at its zero-initialized sample value.
func motionCompensateAllBlocks(ctx *decodeContext, mb *mbInfo, mbX, mbY int) {
	if ctx.ref == nil {
		return
	}
	dstY := planeSampler{ctx.pic.Y, ctx.pic.YStride, ctx.pic.Width, ctx.pic.Height}
	srcY := planeSampler{ctx.ref.Y, ctx.ref.YStride, ctx.ref.Width, ctx.ref.Height}
	rnd := ctx.vop.RoundingType
	for blk := 0; blk < 4; blk++ {
		x, y := blockOriginLuma(mbX, mbY, blk)
		motionCompensateBlock(dstY, srcY, x, y, 8, 8, mb.MV[blk], ctx.vol.Quarterpel, rnd)
	}
	cx, cy := mbX*8, mbY*8
	dstU := planeSampler{ctx.pic.U, ctx.pic.CStride, ctx.pic.Width / 2, ctx.pic.Height / 2}
	srcU := planeSampler{ctx.ref.U, ctx.ref.CStride, ctx.ref.Width / 2, ctx.ref.Height / 2}
	dstV := planeSampler{ctx.pic.V, ctx.pic.CStride, ctx.pic.Width / 2, ctx.pic.Height / 2}
	srcV := planeSampler{ctx.ref.V, ctx.ref.CStride, ctx.ref.Width / 2, ctx.ref.Height / 2}
	motionCompensateBlock(dstU, srcU, cx, cy, 8, 8, mb.ChromaMV, ctx.vol.Quarterpel, rnd)
	motionCompensateBlock(dstV, srcV, cx, cy, 8, 8, mb.ChromaMV, ctx.vol.Quarterpel, rnd)
}

// matFor returns the quantization matrix for the given intra/non-intra
// path (the same matrix applies to luma and chroma blocks).
func matFor(vol *VOLHeader, isIntra bool) [64]int {
	if isIntra {
		return vol.IntraQuantMat
	}
	return vol.NonIntraQuantMat
}

// dequantizeBlock reverses quantization for one 8x8 block (raster order),
// per §7.4.3. When skipDC is true (intra blocks), position 0 is passed
// through unchanged — it already holds a directly reconstructed DC value
// from decodeIntraDC, not a coefficient level.
func dequantizeBlock(levels *[64]int16, quant int, quantType bool, mat [64]int, skipDC bool) [64]float64 {
	var out [64]float64
	start := 0
	if skipDC {
		out[0] = float64(levels[0])
		start = 1
	}
	for pos := start; pos < 64; pos++ {
		raster := zigzag8x8[pos]
		out[raster] = float64(dequantCoeff(int(levels[raster]), quant, pos, quantType, mat))
	}
	return out
}

// reconstructMB finishes one macroblock: intra blocks apply AC/DC
// prediction then an unconditional coefficient-domain IDCT straight to
// pixels (+128 level shift); inter blocks motion-compensate the
// prediction first, then add the IDCT'd residual.
func reconstructMB(ctx *decodeContext, mb *mbInfo, mbX, mbY int, coeffs *[6][64]int16) {
	if !mb.IsIntra {
		motionCompensateAllBlocks(ctx, mb, mbX, mbY)
	}

	leftMB, leftOK := neighborMB(ctx.pic, mbX-1, mbY)
	topMB, topOK := neighborMB(ctx.pic, mbX, mbY-1)
	topLeftMB, topLeftOK := neighborMB(ctx.pic, mbX-1, mbY-1)

	planes := [6]planeSampler{}
	lumaX, lumaY := mbX*16, mbY*16
	planes[0] = planeSampler{ctx.pic.Y, ctx.pic.YStride, ctx.pic.Width, ctx.pic.Height}
	planes[1] = planes[0]
	planes[2] = planes[0]
	planes[3] = planes[0]
	planes[4] = planeSampler{ctx.pic.U, ctx.pic.CStride, ctx.pic.Width / 2, ctx.pic.Height / 2}
	planes[5] = planeSampler{ctx.pic.V, ctx.pic.CStride, ctx.pic.Width / 2, ctx.pic.Height / 2}

	for blk := 0; blk < 6; blk++ {
		if mb.IsIntra {
			predictDCAC(mb, &coeffs[blk], blk, leftMB, topMB, topLeftMB, leftOK, topOK, topLeftOK)
		}
		mat := matFor(ctx.vol, mb.IsIntra)
		floatBlock := dequantizeBlock(&coeffs[blk], mb.Quant, ctx.vol.QuantType, mat, mb.IsIntra)
		idct8x8(&floatBlock)

		var ox, oy int
		if blk < 4 {
			ox, oy = lumaX+(blk%2)*8, lumaY+(blk/2)*8
		} else {
			ox, oy = mbX*8, mbY*8
		}
		for row := 0; row < 8; row++ {
			for col := 0; col < 8; col++ {
				v := floatBlock[row*8+col]
				if mb.IsIntra {
					planes[blk].set(ox+col, oy+row, clampByte(v+128))
				} else {
					cur := float64(planes[blk].at(ox+col, oy+row))
					planes[blk].set(ox+col, oy+row, clampByte(cur+v))
				}
			}
		}
	}
}

func neighborMB(pic *Picture, mbX, mbY int) (*mbInfo, bool) {
	mb := pic.mbAt(mbX, mbY)
	return mb, mb != nil && mb.Available
}
