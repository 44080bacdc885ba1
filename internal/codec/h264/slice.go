package h264

import "github.com/bramblemedia/reelcore/internal/bitio"

const (
	sliceP = 0
	sliceB = 1
	sliceI = 2
	sliceSP = 3
	sliceSI = 4
)

func normalizedSliceType(t int) int {
	return t % 5
}

// refListModOp is one ref_pic_list_modification operation.
type refListModOp struct {
	Idc int // 0: subtract short-term, 1: add short-term, 2: long-term, 3: end
	Value int
}

// mmcoOp is one memory_management_control_operation.
type mmcoOp struct {
	Op int
	DifferenceOfPicNumsMinus1 int
	LongTermPicNum int
	LongTermFrameIdx int
	MaxLongTermFrameIdxPlus1 int
}

// predWeight holds one reference's explicit weighted-prediction parameters
// for one component (luma or one chroma plane).
type predWeight struct {
	Weight int
	Offset int
}

// sliceHeader holds the slice_header() fields this decoder consumes, per
//.
type sliceHeader struct {
	FirstMbInSlice int
	SliceType int
	PPSID int
	ColourPlaneID int
	FrameNum int
	FieldPicFlag bool
	BottomFieldFlag bool
	IdrPicID int
	PicOrderCntLsb int
	DeltaPicOrderCntBottom int
	DeltaPicOrderCnt0 int
	DeltaPicOrderCnt1 int
	RedundantPicCnt int
	DirectSpatialMvPred bool
	NumRefIdxActiveOverride bool
	NumRefIdxL0Active int
	NumRefIdxL1Active int
	RefListModL0 []refListModOp
	RefListModL1 []refListModOp
	LumaLog2WeightDenom int
	ChromaLog2WeightDenom int
	WeightL0Luma []predWeight
	WeightL0Cb []predWeight
	WeightL0Cr []predWeight
	WeightL1Luma []predWeight
	WeightL1Cb []predWeight
	WeightL1Cr []predWeight
	NoOutputOfPriorPics bool
	LongTermReferenceFlag bool
	AdaptiveRefPicMarking bool
	MMCOs []mmcoOp
	CabacInitIdc int
	SliceQP int
	DisableDeblockingFilterIdc int
	SliceAlphaC0OffsetDiv2 int
	SliceBetaOffsetDiv2 int

	NalRefIdc int
	IsIDR bool
}

// parseSliceHeader parses a slice_header() RBSP for a P/B/I/SP/SI slice.
func parseSliceHeader(r *bitio.Reader, nal nalUnit, sps *SPS, pps *PPS) (*sliceHeader, error) {
	sh := &sliceHeader{NalRefIdc: nal.RefIDC, IsIDR: nal.Type == nalTypeSliceIDR}

	v, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sh.FirstMbInSlice = int(v)
	st, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sh.SliceType = normalizedSliceType(int(st))
	ppsID, err := r.ReadUE()
	if err != nil {
		return nil, err
	}
	sh.PPSID = int(ppsID)

	if sps.SeparateColourPlane {
		cp, err := r.ReadBits(2)
		if err != nil {
			return nil, err
		}
		sh.ColourPlaneID = int(cp)
	}

	fn, err := r.ReadBits(sps.Log2MaxFrameNum)
	if err != nil {
		return nil, err
	}
	sh.FrameNum = int(fn)

	if !sps.FrameMbsOnly {
		fp, err := r.ReadFlag()
		if err != nil {
			return nil, err
		}
		sh.FieldPicFlag = fp
		if fp {
			bf, err := r.ReadFlag()
			if err != nil {
				return nil, err
			}
			sh.BottomFieldFlag = bf
		}
	}

	if sh.IsIDR {
		idr, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sh.IdrPicID = int(idr)
	}

	if sps.PicOrderCntType == 0 {
		lsb, err := r.ReadBits(sps.Log2MaxPicOrderCntLsb)
		if err != nil {
			return nil, err
		}
		sh.PicOrderCntLsb = int(lsb)
		if pps.BottomFieldPicOrderInFramePresent && !sh.FieldPicFlag {
			d, err := r.ReadSE()
			if err != nil {
				return nil, err
			}
			sh.DeltaPicOrderCntBottom = int(d)
		}
	} else if sps.PicOrderCntType == 1 && !sps.DeltaPicOrderAlwaysZero {
		d0, err := r.ReadSE()
		if err != nil {
			return nil, err
		}
		sh.DeltaPicOrderCnt0 = int(d0)
		if pps.BottomFieldPicOrderInFramePresent && !sh.FieldPicFlag {
			d1, err := r.ReadSE()
			if err != nil {
				return nil, err
			}
			sh.DeltaPicOrderCnt1 = int(d1)
		}
	}

	if pps.RedundantPicCntPresent {
		rpc, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sh.RedundantPicCnt = int(rpc)
	}

	if sh.SliceType == sliceB {
		dsp, err := r.ReadFlag()
		if err != nil {
			return nil, err
		}
		sh.DirectSpatialMvPred = dsp
	}

	sh.NumRefIdxL0Active = pps.NumRefIdxL0DefaultActive
	sh.NumRefIdxL1Active = pps.NumRefIdxL1DefaultActive
	if sh.SliceType == sliceP || sh.SliceType == sliceSP || sh.SliceType == sliceB {
		override, err := r.ReadFlag()
		if err != nil {
			return nil, err
		}
		sh.NumRefIdxActiveOverride = override
		if override {
			n0, err := r.ReadUE()
			if err != nil {
				return nil, err
			}
			sh.NumRefIdxL0Active = int(n0) + 1
			if sh.SliceType == sliceB {
				n1, err := r.ReadUE()
				if err != nil {
					return nil, err
				}
				sh.NumRefIdxL1Active = int(n1) + 1
			}
		}
	}

	if sh.SliceType != sliceI && sh.SliceType != sliceSI {
		mods, err := parseRefListMods(r)
		if err != nil {
			return nil, err
		}
		sh.RefListModL0 = mods
		if sh.SliceType == sliceB {
			mods1, err := parseRefListMods(r)
			if err != nil {
				return nil, err
			}
			sh.RefListModL1 = mods1
		}
	}

	if (pps.WeightedPred && (sh.SliceType == sliceP || sh.SliceType == sliceSP)) ||
		(pps.WeightedBipredIdc == 1 && sh.SliceType == sliceB) {
		if err := parsePredWeightTable(r, sh, sps); err != nil {
			return nil, err
		}
	}

	if nal.RefIDC != 0 {
		if err := parseDecRefPicMarking(r, sh); err != nil {
			return nil, err
		}
	}

	if pps.EntropyCodingModeCABAC && sh.SliceType != sliceI && sh.SliceType != sliceSI {
		ci, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sh.CabacInitIdc = int(ci)
	}

	qpDelta, err := r.ReadSE()
	if err != nil {
		return nil, err
	}
	sh.SliceQP = clamp(pps.PicInitQP+int(qpDelta), 0, 51)

	if sh.SliceType == sliceSP || sh.SliceType == sliceSI {
		if sh.SliceType == sliceSP {
			if _, err := r.ReadFlag(); err != nil { // sp_for_switch_flag
				return nil, err
			}
		}
		if _, err := r.ReadSE(); err != nil { // slice_qs_delta
			return nil, err
		}
	}

	if pps.DeblockingFilterControlPresent {
		idc, err := r.ReadUE()
		if err != nil {
			return nil, err
		}
		sh.DisableDeblockingFilterIdc = int(idc)
		if sh.DisableDeblockingFilterIdc != 1 {
			a, err := r.ReadSE()
			if err != nil {
				return nil, err
			}
			sh.SliceAlphaC0OffsetDiv2 = clamp(int(a), -6, 6)
			b, err := r.ReadSE()
			if err != nil {
				return nil, err
			}
			sh.SliceBetaOffsetDiv2 = clamp(int(b), -6, 6)
		}
	}

	return sh, nil
}

func parseRefListMods(r *bitio.Reader) ([]refListModOp, error) {
	present, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	var ops []refListModOp
	for {
		idc, err := r.ReadUE()
		if err != nil {
			return ops, err
		}
		if idc == 3 {
			break
		}
		val, err := r.ReadUE()
		if err != nil {
			return ops, err
		}
		ops = append(ops, refListModOp{Idc: int(idc), Value: int(val)})
		if len(ops) > 64 {
			break
		}
	}
	return ops, nil
}

func parsePredWeightTable(r *bitio.Reader, sh *sliceHeader, sps *SPS) error {
	lw, err := r.ReadUE()
	if err != nil {
		return err
	}
	sh.LumaLog2WeightDenom = int(lw)
	if sps.ChromaFormatIDC != 0 {
		cw, err := r.ReadUE()
		if err != nil {
			return err
		}
		sh.ChromaLog2WeightDenom = int(cw)
	}

	readList := func(n int) ([]predWeight, []predWeight, []predWeight, error) {
		luma := make([]predWeight, n)
		cb := make([]predWeight, n)
		cr := make([]predWeight, n)
		for i := 0; i < n; i++ {
			luma[i].Weight = 1 << uint(sh.LumaLog2WeightDenom)
			cb[i].Weight = 1 << uint(sh.ChromaLog2WeightDenom)
			cr[i].Weight = 1 << uint(sh.ChromaLog2WeightDenom)

			lf, err := r.ReadFlag()
			if err != nil {
				return luma, cb, cr, err
			}
			if lf {
				w, err := r.ReadSE()
				if err != nil {
					return luma, cb, cr, err
				}
				o, err := r.ReadSE()
				if err != nil {
					return luma, cb, cr, err
				}
				luma[i] = predWeight{Weight: int(w), Offset: int(o)}
			}
			if sps.ChromaFormatIDC != 0 {
				cf, err := r.ReadFlag()
				if err != nil {
					return luma, cb, cr, err
				}
				if cf {
					for _, dst := range []*predWeight{&cb[i], &cr[i]} {
						w, err := r.ReadSE()
						if err != nil {
							return luma, cb, cr, err
						}
						o, err := r.ReadSE()
						if err != nil {
							return luma, cb, cr, err
						}
						*dst = predWeight{Weight: int(w), Offset: int(o)}
					}
				}
			}
		}
		return luma, cb, cr, nil
	}

	var err2 error
	sh.WeightL0Luma, sh.WeightL0Cb, sh.WeightL0Cr, err2 = readList(sh.NumRefIdxL0Active)
	if err2 != nil {
		return err2
	}
	if sh.SliceType == sliceB {
		sh.WeightL1Luma, sh.WeightL1Cb, sh.WeightL1Cr, err2 = readList(sh.NumRefIdxL1Active)
		if err2 != nil {
			return err2
		}
	}
	return nil
}

func parseDecRefPicMarking(r *bitio.Reader, sh *sliceHeader) error {
	if sh.IsIDR {
		noOutput, err := r.ReadFlag()
		if err != nil {
			return err
		}
		sh.NoOutputOfPriorPics = noOutput
		lt, err := r.ReadFlag()
		if err != nil {
			return err
		}
		sh.LongTermReferenceFlag = lt
		return nil
	}
	adaptive, err := r.ReadFlag()
	if err != nil {
		return err
	}
	sh.AdaptiveRefPicMarking = adaptive
	if !adaptive {
		return nil
	}
	for i := 0; i < 65; i++ {
		op, err := r.ReadUE()
		if err != nil {
			return err
		}
		if op == 0 {
			break
		}
		m := mmcoOp{Op: int(op)}
		switch op {
		case 1, 3:
			v, err := r.ReadUE()
			if err != nil {
				return err
			}
			m.DifferenceOfPicNumsMinus1 = int(v)
			if op == 3 {
				lt, err := r.ReadUE()
				if err != nil {
					return err
				}
				m.LongTermFrameIdx = int(lt)
			}
		case 2:
			v, err := r.ReadUE()
			if err != nil {
				return err
			}
			m.LongTermPicNum = int(v)
		case 4:
			v, err := r.ReadUE()
			if err != nil {
				return err
			}
			m.MaxLongTermFrameIdxPlus1 = int(v)
		case 6:
			v, err := r.ReadUE()
			if err != nil {
				return err
			}
			m.LongTermFrameIdx = int(v)
		}
		sh.MMCOs = append(sh.MMCOs, m)
	}
	return nil
}
