package h264

// mbInfo holds the per-macroblock decode caches this package enumerates:
// mb_type, CBP, transform_8x8 flag, intra modes, motion vectors/ref indices
// at both 16x16 and 4x4 granularity, and coded-block-flags.
type mbInfo struct {
	MbType int
	IsIntra bool
	Intra16x16 bool
	IPCM bool
	Transform8x8 bool
	CbpLuma int
	CbpChroma int
	ChromaPred int
	IntraModes4x4 [16]int
	// MV[list][4x4 block 0..15], RefIdx[list][4x4 block]; for 16x16-granular
	// storage the same value is replicated across all 16 sub-blocks.
	MV [2][16][2]int16
	RefIdx [2][16]int8
	QP int
	CodedLuma4x4 [16]bool
	CodedLuma8x8 [4]bool
	CodedChromaDC [2]bool
	CodedChroma4x4 [2][8]bool
	// TotalCoeffLuma4x4/TotalCoeffChroma4x4 record each block's CAVLC
	// total_coeff, the neighbor context Table 9-5 keys its coeff_token
	// column on (§9.2.1). decodeIPCM sets 16 for every block of an IPCM
	// macroblock, matching the standard's nC=16 special case.
	TotalCoeffLuma4x4 [16]int8
	TotalCoeffChroma4x4 [2][8]int8
	Available bool
}

// Picture is one reconstructed frame: Y/U/V planes plus the per-MB info
// needed both to finish reconstructing the current frame (neighbor context)
// and, once pushed to the DPB, to serve as a motion-compensation reference.
type Picture struct {
	Width, Height int
	MbWidth, MbHeight int
	Y, U, V []byte
	YStride, CStride int
	MBs []mbInfo // mb_width*mb_height, raster order
	FrameNum int
	POC int
	TopFieldOrderCnt int
	BotFieldOrderCnt int
	IsRef bool
	IsLongTerm bool
	LongTermFrameIdx int
	PicType int // PictureI/P/B
	Outputted bool
}

func newPicture(sps *SPS) *Picture {
	mbW := sps.PicWidthInMbs
	mbH := sps.MbHeight()
	yStride := mbW * 16
	cStride := mbW * 8
	p := &Picture{
		Width: sps.Width(),
		Height: sps.Height(),
		MbWidth: mbW,
		MbHeight: mbH,
		YStride: yStride,
		CStride: cStride,
		Y: make([]byte, yStride*mbH*16),
		U: make([]byte, cStride*mbH*8),
		V: make([]byte, cStride*mbH*8),
		MBs: make([]mbInfo, mbW*mbH),
	}
	return p
}

func (p *Picture) mbAt(mbX, mbY int) *mbInfo {
	if mbX < 0 || mbY < 0 || mbX >= p.MbWidth || mbY >= p.MbHeight {
		return nil
	}
	return &p.MBs[mbY*p.MbWidth+mbX]
}
