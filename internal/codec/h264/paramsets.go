package h264

import "github.com/bramblemedia/reelcore/internal/bitio"

// SPS holds the fields of an H.264 Sequence Parameter Set this decoder
// actually consumes, by convention.
type SPS struct {
	ID int
	ProfileIDC int
	LevelIDC int
	ChromaFormatIDC int
	SeparateColourPlane bool
	BitDepthLuma int
	BitDepthChroma int
	Log2MaxFrameNum int
	PicOrderCntType int
	Log2MaxPicOrderCntLsb int
	DeltaPicOrderAlwaysZero bool
	OffsetForNonRefPic int
	OffsetForTopToBottom int
	OffsetForRefFrame []int
	MaxNumRefFrames int
	GapsInFrameNumAllowed bool
	PicWidthInMbs int
	PicHeightInMapUnits int
	FrameMbsOnly bool
	MbAdaptiveFrameField bool
	Direct8x8Inference bool
	CropLeft, CropRight int
	CropTop, CropBottom int
	MaxNumReorderFrames int
	SeqScalingMatrix [12][]int
	SeqScalingMatrixPresent bool
}

// Width and Height return the cropped luma picture dimensions in samples.
func (s *SPS) Width() int {
	subWidthC := chromaSubWidth(s.ChromaFormatIDC, s.SeparateColourPlane)
	return s.PicWidthInMbs*16 - subWidthC*(s.CropLeft+s.CropRight)
}

func (s *SPS) Height() int {
	subHeightC := chromaSubHeight(s.ChromaFormatIDC, s.SeparateColourPlane)
	heightMul := 1
	if !s.FrameMbsOnly {
		heightMul = 2
	}
	return s.PicHeightInMapUnits*16*heightMul - subHeightC*(s.CropTop+s.CropBottom)
}

func (s *SPS) MbHeight() int {
	heightMul := 1
	if !s.FrameMbsOnly {
		heightMul = 2
	}
	return s.PicHeightInMapUnits * heightMul
}

func chromaSubWidth(chromaFormatIDC int, separate bool) int {
	if separate {
		return 1
	}
	switch chromaFormatIDC {
	case 1, 2:
		return 2
	default:
		return 1
	}
}

func chromaSubHeight(chromaFormatIDC int, separate bool) int {
	if separate {
		return 1
	}
	switch chromaFormatIDC {
	case 1:
		return 2
	default:
		return 1
	}
}

// PPS holds the fields of an H.264 Picture Parameter Set this decoder
// consumes, by convention.
type PPS struct {
	ID int
	SPSID int
	EntropyCodingModeCABAC bool
	BottomFieldPicOrderInFramePresent bool
	NumSliceGroups int
	NumRefIdxL0DefaultActive int
	NumRefIdxL1DefaultActive int
	WeightedPred bool
	WeightedBipredIdc int
	PicInitQP int
	PicInitQS int
	ChromaQPIndexOffset int
	SecondChromaQPIndexOffset int
	DeblockingFilterControlPresent bool
	ConstrainedIntraPred bool
	RedundantPicCntPresent bool
	Transform8x8Mode bool
	PicScalingMatrixPresent bool
	PicScalingMatrix [12][]int
}

// ParseSPS parses an SPS RBSP (NAL header byte already consumed by the
// caller, payload already emulation-prevention-stripped).
func ParseSPS(r *bitio.Reader) (*SPS, error) {
	sps := &SPS{ChromaFormatIDC: 1, BitDepthLuma: 8, BitDepthChroma: 8, MaxNumReorderFrames: 16}

	profile, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	sps.ProfileIDC = int(profile)
	if _, err := r.ReadBits(8); err != nil { // constraint flags + reserved
		return nil, err
	}
	level, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	sps.LevelIDC = int(level)
	id, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.ID = int(id)

	if isHighProfile(sps.ProfileIDC) {
		cf, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.ChromaFormatIDC = int(cf)
		if sps.ChromaFormatIDC == 3 {
			v, err := r.ReadFlag()
			if err != nil {
				return nil, err
			}
			sps.SeparateColourPlane = v
		}
		bdl, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.BitDepthLuma = int(bdl) + 8
		bdc, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.BitDepthChroma = int(bdc) + 8
		if _, err := r.ReadFlag(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return nil, err
		}
		present, err := r.ReadFlag()
		if err != nil {
			return nil, err
		}
		sps.SeqScalingMatrixPresent = present
		if present {
			limit := 8
			if sps.ChromaFormatIDC == 3 {
				limit = 12
			}
			if err := parseScalingLists(r, sps.SeqScalingMatrix[:limit]); err != nil {
				return nil, err
			}
		}
	}

	lm, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.Log2MaxFrameNum = int(lm) + 4

	poct, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.PicOrderCntType = int(poct)

	switch sps.PicOrderCntType {
	case 0:
		v, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.Log2MaxPicOrderCntLsb = int(v) + 4
	case 1:
		v, err := r.ReadFlag()
		if err != nil {
			return nil, err
		}
		sps.DeltaPicOrderAlwaysZero = v
		o1, err := r.ReadSE()
		if err != nil {
			return nil, err
		}
		sps.OffsetForNonRefPic = int(o1)
		o2, err := r.ReadSE()
		if err != nil {
			return nil, err
		}
		sps.OffsetForTopToBottom = int(o2)
		numCycle, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.OffsetForRefFrame = make([]int, numCycle)
		for i := range sps.OffsetForRefFrame {
			v, err := r.ReadSE()
			if err != nil {
				return nil, err
			}
			sps.OffsetForRefFrame[i] = int(v)
		}
	}

	mrf, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.MaxNumRefFrames = int(mrf)
	gaps, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	sps.GapsInFrameNumAllowed = gaps

	pw, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.PicWidthInMbs = int(pw) + 1
	ph, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sps.PicHeightInMapUnits = int(ph) + 1

	fmo, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	sps.FrameMbsOnly = fmo
	if !sps.FrameMbsOnly {
		v, err := r.ReadFlag()
		if err != nil {
			return nil, err
		}
		sps.MbAdaptiveFrameField = v
	}
	d8, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	sps.Direct8x8Inference = d8

	cropping, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	if cropping {
		l, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.CropLeft = int(l)
		right, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.CropRight = int(right)
		top, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.CropTop = int(top)
		bot, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sps.CropBottom = int(bot)
	}

	vuiPresent, err := r.ReadFlag()
	if err != nil || !vuiPresent {
		return sps, nil
	}
	parseVUIMaxReorder(r, sps)
	return sps, nil
}

func isHighProfile(profileIDC int) bool {
	switch profileIDC {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		return true
	default:
		return false
	}
}

// parseVUIMaxReorder reads just enough of the VUI to extract
// max_num_reorder_frames (bitstream_restriction), tolerating a truncated or
// malformed VUI by leaving sps.MaxNumReorderFrames at the default of 16 that
// ParseSPS sets.
func parseVUIMaxReorder(r *bitio.Reader, sps *SPS) {
	arPresent, err := r.ReadFlag()
	if err != nil {
		return
	}
	if arPresent {
		idc, err := r.ReadBits(8)
		if err != nil {
			return
		}
		if idc == 255 {
			if _, err := r.ReadBits(32); err != nil {
				return
			}
		}
	}
	if skipVUIFlag(r, 1) {
		return
	}
	videoSignal, err := r.ReadFlag()
	if err != nil {
		return
	}
	if videoSignal {
		if _, err := r.ReadBits(4); err != nil {
			return
		}
		colourDesc, err := r.ReadFlag()
		if err != nil {
			return
		}
		if colourDesc {
			if _, err := r.ReadBits(24); err != nil {
				return
			}
		}
	}
	chromaLoc, err := r.ReadFlag()
	if err != nil {
		return
	}
	if chromaLoc {
		if _, err := r.ReadUE(); err != nil {
			return
		}
		if _, err := r.ReadUE(); err != nil {
			return
		}
	}
	timing, err := r.ReadFlag()
	if err != nil {
		return
	}
	if timing {
		if _, err := r.ReadBits(32); err != nil {
			return
		}
		if _, err := r.ReadBits(32); err != nil {
			return
		}
		if _, err := r.ReadFlag(); err != nil {
			return
		}
	}
	nalHRD, err := r.ReadFlag()
	if err != nil {
		return
	}
	if nalHRD {
		skipHRDParameters(r)
	}
	vclHRD, err := r.ReadFlag()
	if err != nil {
		return
	}
	if vclHRD {
		skipHRDParameters(r)
	}
	if nalHRD || vclHRD {
		if _, err := r.ReadFlag(); err != nil {
			return
		}
	}
	if _, err := r.ReadFlag(); err != nil { // pic_struct_present_flag
		return
	}
	restriction, err := r.ReadFlag()
	if err != nil {
		return
	}
	if !restriction {
		return
	}
	if _, err := r.ReadFlag(); err != nil { // motion_vectors_over_pic_boundaries_flag
		return
	}
	if _, err := r.ReadUE(); err != nil { // max_bytes_per_pic_denom
		return
	}
	if _, err := r.ReadUE(); err != nil { // max_bits_per_mb_denom
		return
	}
	if _, err := r.ReadUE(); err != nil { // log2_max_mv_length_horizontal
		return
	}
	if _, err := r.ReadUE(); err != nil { // log2_max_mv_length_vertical
		return
	}
	mnr, err := r.ReadUE() // max_num_reorder_frames
	if err != nil {
		return
	}
	sps.MaxNumReorderFrames = int(mnr)
}

func skipVUIFlag(r *bitio.Reader, dataBits int) bool {
	f, err := r.ReadFlag()
	if err != nil {
		return true
	}
	if f {
		if _, err := r.ReadBits(dataBits); err != nil {
			return true
		}
	}
	return false
}

func skipHRDParameters(r *bitio.Reader) {
	cpbCnt, err := r.ReadUE()
	if err != nil {
		return
	}
	if _, err := r.ReadBits(8); err != nil {
		return
	}
	for i := uint32(0); i <= cpbCnt; i++ {
		if _, err := r.ReadUE(); err != nil {
			return
		}
		if _, err := r.ReadUE(); err != nil {
			return
		}
		if _, err := r.ReadFlag(); err != nil {
			return
		}
	}
	r.ReadBits(5)
	r.ReadBits(5)
	r.ReadBits(5)
	r.ReadBits(5)
}

// ParsePPS parses a PPS RBSP, given the SPS map to resolve chroma_format_idc
// for scaling-list sizing.
func ParsePPS(r *bitio.Reader, spsByID map[int]*SPS) (*PPS, error) {
	pps := &PPS{NumSliceGroups: 1}
	id, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	pps.ID = int(id)
	spsID, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	pps.SPSID = int(spsID)

	cabac, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	pps.EntropyCodingModeCABAC = cabac
	bf, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	pps.BottomFieldPicOrderInFramePresent = bf

	nsg, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	pps.NumSliceGroups = int(nsg) + 1
	if pps.NumSliceGroups > 1 {
		// FMO slice groups: this decoder scopes this out (no arbitrary slice
		// order support is required); skip the remaining slice-group map
		// fields by falling back to a single implicit group for decode
		// purposes.
		if _, err := r.ReadUE(); err != nil {
			return nil, err
		}
	}

	r0, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL0DefaultActive = int(r0) + 1
	r1, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL1DefaultActive = int(r1) + 1

	wp, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	pps.WeightedPred = wp
	wbi, err := r.ReadBits(2)
	if err != nil {
		return nil, err
	}
	pps.WeightedBipredIdc = int(wbi)

	qp, err := r.ReadSE()
	if err != nil {
		return nil, err
	}
	pps.PicInitQP = int(qp) + 26
	qs, err := r.ReadSE()
	if err != nil {
		return nil, err
	}
	pps.PicInitQS = int(qs) + 26
	cqo, err := r.ReadSE()
	if err != nil {
		return nil, err
	}
	pps.ChromaQPIndexOffset = clamp(int(cqo), -12, 12)

	dfc, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	pps.DeblockingFilterControlPresent = dfc
	cip, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	pps.ConstrainedIntraPred = cip
	rpc, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	pps.RedundantPicCntPresent = rpc

	// Second chroma QP offset defaults to the first; extension fields are
	// only present when more_rbsp_data remains. If all that is left is the
	// rbsp stop bit and its zero padding, the PPS ends here; a truncated
	// extension is tolerated by returning on EOF.
	pps.SecondChromaQPIndexOffset = pps.ChromaQPIndexOffset
	if left := r.BitsRemaining(); left <= 8 {
		if left <= 0 {
			return pps, nil
		}
		if v, err := r.PeekBits(int(left)); err != nil || v == 1<<uint(left-1) {
			return pps, nil
		}
	}
	t8, err := r.ReadFlag()
	if err != nil {
		return pps, nil
	}
	pps.Transform8x8Mode = t8
	present, err := r.ReadFlag()
	if err != nil {
		return pps, nil
	}
	pps.PicScalingMatrixPresent = present
	if present {
		sps := spsByID[pps.SPSID]
		chromaFormatIDC := 1
		if sps != nil {
			chromaFormatIDC = sps.ChromaFormatIDC
		}
		limit := 6
		if pps.Transform8x8Mode {
			if chromaFormatIDC == 3 {
				limit = 12
			} else {
				limit = 8
			}
		}
		if err := parseScalingLists(r, pps.PicScalingMatrix[:limit]); err != nil {
			return pps, nil
		}
	}
	sco, err := r.ReadSE()
	if err != nil {
		return pps, nil
	}
	pps.SecondChromaQPIndexOffset = clamp(int(sco), -12, 12)
	return pps, nil
}

// parseScalingLists reads a seq/pic_scaling_matrix's per-list presence flags
// and delta-coded values, leaving each absent list's slot nil so the
// decoder's fallback-chain resolution (list[k] = list[k-1], falling back to
// the flat/default matrices for the first member of each group) can apply.
func parseScalingLists(r *bitio.Reader, lists [][]int) error {
	for i := range lists {
		present, err := r.ReadFlag()
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		size := 16
		if i >= 6 {
			size = 64
		}
		list, err := readScalingList(r, size)
		if err != nil {
			return err
		}
		lists[i] = list
	}
	return nil
}

func readScalingList(r *bitio.Reader, size int) ([]int, error) {
	list := make([]int, size)
	lastScale, nextScale := 8, 8
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta, err := r.ReadSE()
			if err != nil {
				return nil, err
			}
			nextScale = (lastScale + int(delta) + 256) % 256
		}
		if nextScale == 0 {
			list[j] = lastScale
		} else {
			list[j] = nextScale
			lastScale = nextScale
		}
	}
	return list, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
