package h264

// cabacReader decodes CABAC slice data syntax elements. Context-index
// derivation follows the neighbor-dependent ctxIdxInc rules of ITU-T
// H.264 §9.3.3.1.1: mb_skip_flag/mb_type/coded_block_pattern/
// intra_chroma_pred_mode/ref_idx derive ctxIdxInc from already-decoded
// left/top neighbor macroblocks, mb_qp_delta from the immediately
// preceding macroblock in decoding order, and residual significance
// flags from the scanning position within their ctxBlockCat-specific
// context range (§9.3.3.1.3, Table 9-40/9-42).
type cabacReader struct {
	e *cabacEngine

	// lastQpDeltaNonZero tracks mb_qp_delta's decode-order neighbor
	// (the previous macroblock that actually carried a coded
	// mb_qp_delta), per the ctxIdxInc rule of §9.3.3.1.1.5.
	lastQpDeltaNonZero bool
	// lastMvdAbs is a decode-order stand-in for the spatial left/top
	// mvd-magnitude neighbors §9.3.3.1.1.7 sums to pick ctxIdxInc: the
	// true derivation needs per-4x4-block mvd history, which this
	// decoder does not retain, so the immediately preceding partition's
	// |mvd| approximates it. See DESIGN.md.
	lastMvdAbs [2]int
}

func newCabacReader(e *cabacEngine) *cabacReader { return &cabacReader{e: e} }

const (
	ctxMbSkip = 11
	ctxMbTypeIBase = 3
	ctxPrevIntraPredMode = 68
	ctxMbTypePBase = 14
	ctxMbTypeBBase = 27
	ctxSubMbTypePBase = 21
	ctxSubMbTypeBBase = 36
	ctxI16x16CbpLuma = 276
	ctxI16x16CbpChroma0 = 277
	ctxI16x16CbpChroma1 = 278
	ctxTransform8 = 399
	ctxCbpLumaBase = 73
	ctxCbpChromaBase = 77
	ctxQpDeltaBase = 60
	ctxRefIdxBase = 54
	ctxMvdBase = 40
	ctxIntraChroma = 64
	ctxSigCoeffBase = 105
	ctxLastSigBase = 166
	ctxCoeffAbsBase = 227
)

// ctxBlockCat identifies which of the five residual block categories
// (§9.3.3.1.3, Table 9-42) a residualBlockCABAC call is decoding; the
// significant_coeff_flag/last_significant_coeff_flag/coeff_abs_level
// context bases all offset by category.
const (
	catChromaDC = iota
	catLumaDCIntra16x16
	catLumaACIntra16x16
	catLumaLevel4x4
	catChromaAC
)

var sigCoeffCatOffset = [5]int{0, 15, 29, 44, 47}
var lastSigCatOffset = [5]int{0, 15, 29, 44, 47}
var coeffAbsCatOffset = [5]int{0, 10, 20, 30, 39}
var sigCoeffCatMax = [5]int{3, 14, 14, 14, 14}

func condTermFlag(avail bool, cond bool) int {
	if avail && cond {
		return 1
	}
	return 0
}

func (c *cabacReader) mbSkipFlag(leftSkip, topSkip bool) (bool, error) {
	ctx := ctxMbSkip
	if leftSkip {
		ctx++
	}
	if topSkip {
		ctx++
	}
	b, err := c.e.DecodeDecision(ctx)
	return b == 1, err
}

func (c *cabacReader) endOfSlice() (bool, error) {
	b, err := c.e.DecodeTerminate()
	return b == 1, err
}

// mbTypeI decodes mb_type for an I/SI slice macroblock via the real
// binarization of Table 9-36: a context-adaptive bin distinguishing
// I_NxN from the rest (ctxIdxInc from whether the left/top neighbor is
// itself non-I_NxN), a terminate bin signaling I_PCM, and for I_16x16 a
// fixed-context coded_block_pattern-luma bit, a 2-bin coded_block_
// pattern-chroma tree, and two bypass bits for Intra16x16PredMode —
// reassembled into the same 0..25 mb_type numbering classifyIType
// expects.
func (c *cabacReader) mbTypeI(leftNonNxN, topNonNxN bool) (int, error) {
	ctx0 := ctxMbTypeIBase + condTermFlag(true, leftNonNxN) + condTermFlag(true, topNonNxN)
	b0, err := c.e.DecodeDecision(ctx0)
	if err != nil {
		return 0, err
	}
	if b0 == 0 {
		return 0, nil
	}
	term, err := c.e.DecodeTerminate()
	if err != nil {
		return 0, err
	}
	if term == 1 {
		return 25, nil
	}
	cbpLumaBit, err := c.e.DecodeDecision(ctxI16x16CbpLuma)
	if err != nil {
		return 0, err
	}
	cbpChromaBit0, err := c.e.DecodeDecision(ctxI16x16CbpChroma0)
	if err != nil {
		return 0, err
	}
	cbpChroma := 0
	if cbpChromaBit0 == 1 {
		cbpChromaBit1, err := c.e.DecodeDecision(ctxI16x16CbpChroma1)
		if err != nil {
			return 0, err
		}
		if cbpChromaBit1 == 1 {
			cbpChroma = 2
		} else {
			cbpChroma = 1
		}
	}
	predBit0, err := c.e.DecodeBypass()
	if err != nil {
		return 0, err
	}
	predBit1, err := c.e.DecodeBypass()
	if err != nil {
		return 0, err
	}
	predMode := predBit0*2 + predBit1
	rem := cbpChroma
	if cbpLumaBit == 1 {
		rem += 3
	}
	return predMode + 4*rem + 1, nil
}

// mbType decodes mb_type for P/B slices: a fixed-context prefix bin
// (ctxIdxInc has no neighbor dependency for P/B mb_type, unlike I
// slices) distinguishing the inter type range from intra, then either a
// short fixed-context tree over the slice's inter mb_type range or,
// when the prefix selects intra, mbTypeI's binarization offset into the
// slice's intra mb_type range.
func (c *cabacReader) mbType(sliceType int, maxType int, leftNonNxN, topNonNxN bool) (int, error) {
	if sliceType == sliceI || sliceType == sliceSI {
		return c.mbTypeI(leftNonNxN, topNonNxN)
	}
	base := ctxMbTypePBase
	interCount := 5
	intraOffset := 5
	if sliceType == sliceB {
		base = ctxMbTypeBBase
		interCount = 23
		intraOffset = 23
	}
	b0, err := c.e.DecodeDecision(base)
	if err != nil {
		return 0, err
	}
	if b0 == 0 {
		t, err := c.mbTypeI(false, false)
		if err != nil {
			return 0, err
		}
		return t + intraOffset, nil
	}
	v, err := c.e.DecodeUnaryMax(func(i int) int { return base + 1 + min(i, 2) }, interCount-1)
	if err != nil {
		return 0, err
	}
	if v >= interCount {
		v = interCount - 1
	}
	return v, nil
}

func (c *cabacReader) subMbType(sliceType int, maxType int) (int, error) {
	base := ctxSubMbTypePBase
	if sliceType == sliceB {
		base = ctxSubMbTypeBBase
	}
	return c.e.DecodeUnaryMax(func(i int) int { return base + min(i, 2) }, maxType)
}

// refIdx decodes ref_idx_l0/l1 as truncated unary: ctxIdxInc for the
// first bin derives from whether the left/top neighbor partition used a
// nonzero reference index in the same list (§9.3.3.1.1.6); later bins
// use a fixed context.
func (c *cabacReader) refIdx(leftAvail, leftNonzero, topAvail, topNonzero bool) (int, error) {
	ctx0 := ctxRefIdxBase + condTermFlag(leftAvail, leftNonzero) + 2*condTermFlag(topAvail, topNonzero)
	b0, err := c.e.DecodeDecision(ctx0)
	if err != nil {
		return 0, err
	}
	if b0 == 0 {
		return 0, nil
	}
	v, err := c.e.DecodeUnaryMax(func(i int) int { return ctxRefIdxBase + 4 }, 30)
	if err != nil {
		return 1, err
	}
	return v + 1, nil
}

// mvdComponent decodes one axis of mvd_l0/l1 via UEGk (k=3, uCoff=9,
// signed): a truncated-unary prefix up to 9 bins drawn from a 7-context
// bank (bin0's ctxIdxInc keyed on a neighbor-magnitude threshold, bins
// 1-4 each on a fixed ctxIdxInc, bins 5-8 sharing the bank's last
// context), followed by an order-3 Exp-Golomb bypass-coded suffix when
// the prefix saturates, and a bypass sign bit (§9.3.3.1.1.7, Table 9-39).
func (c *cabacReader) mvdComponent(axis int) (int, error) {
	sum := c.lastMvdAbs[axis]
	base := ctxMvdBase + axis*7
	firstBinCtx := base
	switch {
	case sum < 3:
		firstBinCtx = base
	case sum < 33:
		firstBinCtx = base + 1
	default:
		firstBinCtx = base + 2
	}
	prefix := 0
	for prefix < 9 {
		var ctxIdx int
		switch {
		case prefix == 0:
			ctxIdx = firstBinCtx
		case prefix < 5:
			ctxIdx = base + 2 + prefix
		default:
			ctxIdx = base + 6
		}
		b, err := c.e.DecodeDecision(ctxIdx)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		prefix++
	}
	mag := prefix
	if prefix == 9 {
		suffix, err := c.e.DecodeUEGSuffix(3)
		if err != nil {
			return 0, err
		}
		mag += suffix
	}
	sign := 0
	if mag != 0 {
		s, err := c.e.DecodeBypass()
		if err != nil {
			return 0, err
		}
		sign = s
	}
	c.lastMvdAbs[axis] = mag
	if sign == 1 {
		return -mag, nil
	}
	return mag, nil
}

// mbQpDelta decodes mb_qp_delta via truncated unary whose first bin's
// ctxIdxInc depends on whether the macroblock immediately preceding
// this one in decoding order carried a nonzero mb_qp_delta
// (§9.3.3.1.1.5) — the one ctxIdxInc rule defined over decoding order
// rather than spatial neighbors.
func (c *cabacReader) mbQpDelta() (int, error) {
	ctx0 := ctxQpDeltaBase
	if c.lastQpDeltaNonZero {
		ctx0++
	}
	b0, err := c.e.DecodeDecision(ctx0)
	if err != nil {
		return 0, err
	}
	u := 0
	if b0 == 1 {
		u = 1
		b1, err := c.e.DecodeDecision(ctxQpDeltaBase + 2)
		if err != nil {
			return 0, err
		}
		for b1 == 1 {
			u++
			b1, err = c.e.DecodeDecision(ctxQpDeltaBase + 3)
			if err != nil {
				return 0, err
			}
		}
	}
	c.lastQpDeltaNonZero = u != 0
	if u%2 == 0 {
		return -(u / 2), nil
	}
	return (u + 1) / 2, nil
}

// intraChromaPredMode decodes intra_chroma_pred_mode (truncated unary,
// max value 3): the first bin's ctxIdxInc follows whether the left/top
// neighbor is intra-coded with a nonzero chroma pred mode
// (§9.3.3.1.1.8); the remaining bins share one fixed context.
func (c *cabacReader) intraChromaPredMode(leftAvail, leftNonzero, topAvail, topNonzero bool) (int, error) {
	ctx0 := ctxIntraChroma + condTermFlag(leftAvail, leftNonzero) + condTermFlag(topAvail, topNonzero)
	b0, err := c.e.DecodeDecision(ctx0)
	if err != nil {
		return 0, err
	}
	if b0 == 0 {
		return 0, nil
	}
	v := 1
	for v < 3 {
		b, err := c.e.DecodeDecision(ctxIntraChroma + 3)
		if err != nil {
			return v, err
		}
		if b == 0 {
			break
		}
		v++
	}
	return v, nil
}

func (c *cabacReader) transformSize8x8Flag() (bool, error) {
	b, err := c.e.DecodeDecision(ctxTransform8)
	return b == 1, err
}

func (c *cabacReader) prevIntra4x4PredModeFlag() (bool, error) {
	b, err := c.e.DecodeDecision(ctxPrevIntraPredMode)
	return b == 1, err
}

func (c *cabacReader) remIntra4x4PredMode() (int, error) {
	return c.e.DecodeBypassBits(3)
}

// cbpNeighborLumaBit returns the condTermFlag for the 8x8 luma block
// adjoining block binIdx in direction dir (left or top): 1 when that
// block's coded_block_pattern bit is clear, 0 otherwise, including when the
// neighbor is unavailable (cur holds this macroblock's own bits decoded so
// far, for the within-macroblock neighbors), per the block adjacency of
// Figure 6-10.
func cbpNeighborLumaBit(binIdx int, leftward bool, cur [4]int, neighbor *mbInfo, neighborAvail bool) int {
	var within bool
	var ownIdx, otherIdx int
	if leftward {
		within = binIdx == 1 || binIdx == 3
		ownIdx = binIdx - 1
		otherIdx = binIdx + 1
	} else {
		within = binIdx == 2 || binIdx == 3
		ownIdx = binIdx - 2
		otherIdx = binIdx + 2
	}
	if within {
		return condTermFlag(true, cur[ownIdx] == 0)
	}
	if !neighborAvail || neighbor == nil {
		return 0
	}
	if neighbor.IPCM {
		return 0
	}
	bit := (neighbor.CbpLuma >> uint(otherIdx)) & 1
	return condTermFlag(true, bit == 0)
}

// codedBlockPatternLuma decodes the four coded_block_pattern luma bits,
// one per 8x8 block, with ctxIdxInc derived from the left/top 8x8
// neighbor's own coded_block_pattern bit per §9.3.3.1.1.4.
func (c *cabacReader) codedBlockPatternLuma(leftMB *mbInfo, leftOK bool, topMB *mbInfo, topOK bool) (int, error) {
	var cur [4]int
	for i := 0; i < 4; i++ {
		condA := cbpNeighborLumaBit(i, true, cur, leftMB, leftOK)
		condB := cbpNeighborLumaBit(i, false, cur, topMB, topOK)
		ctxIdx := ctxCbpLumaBase + condA + 2*condB
		b, err := c.e.DecodeDecision(ctxIdx)
		if err != nil {
			return 0, err
		}
		cur[i] = b
	}
	v := 0
	for i, b := range cur {
		v |= b << uint(i)
	}
	return v, nil
}

func cbpChromaCond(avail bool, isPCM bool, val, want int) int {
	if !avail {
		return 0
	}
	if isPCM {
		return 1
	}
	if val == want {
		return 1
	}
	return 0
}

// codedBlockPatternChroma decodes coded_block_pattern chroma (0/1/2)
// with ctxIdxInc derived from whether the left/top neighbor's
// coded_block_pattern_chroma was nonzero (bin0) or equal to 2 (bin1),
// per §9.3.3.1.1.4.
func (c *cabacReader) codedBlockPatternChroma(leftMB *mbInfo, leftOK bool, topMB *mbInfo, topOK bool) (int, error) {
	leftIPCM := leftOK && leftMB != nil && leftMB.IPCM
	topIPCM := topOK && topMB != nil && topMB.IPCM
	leftVal, topVal := 0, 0
	if leftOK && leftMB != nil {
		leftVal = leftMB.CbpChroma
	}
	if topOK && topMB != nil {
		topVal = topMB.CbpChroma
	}
	ctx0 := ctxCbpChromaBase
	ctx0 += condTermFlag(leftOK, leftIPCM || leftVal != 0)
	ctx0 += 2 * condTermFlag(topOK, topIPCM || topVal != 0)
	b0, err := c.e.DecodeDecision(ctx0)
	if err != nil {
		return 0, err
	}
	if b0 == 0 {
		return 0, nil
	}
	ctx1 := ctxCbpChromaBase + 4
	ctx1 += cbpChromaCond(leftOK, leftIPCM, leftVal, 2)
	ctx1 += 2 * cbpChromaCond(topOK, topIPCM, topVal, 2)
	b1, err := c.e.DecodeDecision(ctx1)
	if err != nil {
		return 1, err
	}
	if b1 == 1 {
		return 2, nil
	}
	return 1, nil
}

// residualBlockCABAC decodes one block's coefficients via
// significant_coeff_flag / last_significant_coeff_flag / coeff_abs_level
// per §9.3.3.1.3. significant_coeff_flag and last_significant_coeff_flag
// both key ctxIdxInc on scanning position directly (clipped to each
// category's max per Table 9-43), offset by ctxBlockCat so the five
// residual categories don't share one context pool.
func (c *cabacReader) residualBlockCABAC(maxCoeff int, cat int) (residualBlock, error) {
	var blk residualBlock
	var sig [16]bool
	lastPos := -1
	sigBase := ctxSigCoeffBase + sigCoeffCatOffset[cat]
	lastBase := ctxLastSigBase + lastSigCatOffset[cat]
	posMax := sigCoeffCatMax[cat]
	for i := 0; i < maxCoeff-1; i++ {
		s, err := c.e.DecodeDecision(sigBase + min(i, posMax))
		if err != nil {
			return blk, err
		}
		if s == 1 {
			sig[i] = true
			last, err := c.e.DecodeDecision(lastBase + min(i, posMax))
			if err != nil {
				return blk, err
			}
			lastPos = i
			if last == 1 {
				break
			}
		}
	}
	if lastPos >= 0 && !sig[lastPos] {
		sig[lastPos] = true
	} else if lastPos < 0 && maxCoeff > 0 {
		sig[maxCoeff-1] = true
		lastPos = maxCoeff - 1
	}

	numSig := 0
	for i := 0; i <= lastPos && i < maxCoeff; i++ {
		if sig[i] {
			numSig++
		}
	}
	blk.TotalCoeff = numSig
	absBase := ctxCoeffAbsBase + coeffAbsCatOffset[cat]
	remaining := numSig
	for i := lastPos; i >= 0 && i < maxCoeff; i-- {
		if !sig[i] {
			continue
		}
		ctxInc := boolToIntC(remaining > 1)
		b0, err := c.e.DecodeDecision(absBase + ctxInc)
		if err != nil {
			return blk, err
		}
		level := 1
		if b0 == 1 {
			more, err := c.e.DecodeUnaryMax(func(j int) int { return absBase + 4 + min(j, 3) }, 13)
			if err != nil {
				return blk, err
			}
			level += more
			if more == 13 {
				extra, err := c.e.DecodeUEGSuffix(0)
				if err != nil {
					return blk, err
				}
				level += extra
			}
		}
		sign, err := c.e.DecodeBypass()
		if err != nil {
			return blk, err
		}
		v := int32(level)
		if sign == 1 {
			v = -v
		}
		blk.Coeffs[i] = v
		remaining--
	}
	return blk, nil
}

func boolToIntC(b bool) int {
	if b {
		return 1
	}
	return 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
