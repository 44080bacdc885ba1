package h264

// pocState threads the running picture-order-count variables pic_order_cnt_type
// 0 and 2 need across slices/frames, per POC derivation rules.
type pocState struct {
	prevRefPocMsb   int
	prevRefPocLsb   int
	prevFrameNum    int
	prevFrameNumOffset int
}

func (s *pocState) reset() {
	*s = pocState{}
}

// derivePOC computes a single POC for one slice, updating the running state
// in s. Separate top/bottom field order counts are not derived
// (delta_pic_order_cnt_bottom is not applied); this decoder only handles
// frame pictures.
func derivePOC(sps *SPS, sh *sliceHeader, s *pocState, isIDR bool) (poc int) {
	switch sps.PicOrderCntType {
	case 0:
		maxLsb := 1 << uint(sps.Log2MaxPicOrderCntLsb)
		if isIDR {
			s.prevRefPocMsb, s.prevRefPocLsb = 0, 0
		}
		var pocMsb int
		lsb := sh.PicOrderCntLsb
		if lsb < s.prevRefPocLsb && (s.prevRefPocLsb-lsb) >= maxLsb/2 {
			pocMsb = s.prevRefPocMsb + maxLsb
		} else if lsb > s.prevRefPocLsb && (lsb-s.prevRefPocLsb) > maxLsb/2 {
			pocMsb = s.prevRefPocMsb - maxLsb
		} else {
			pocMsb = s.prevRefPocMsb
		}
		poc = pocMsb + lsb
		if sh.NalRefIdc != 0 {
			s.prevRefPocMsb = pocMsb
			s.prevRefPocLsb = lsb
		}
		return poc

	case 1:
		frameNumOffset := 0
		if isIDR {
			frameNumOffset = 0
		} else if s.prevFrameNum > sh.FrameNum {
			frameNumOffset = s.prevFrameNumOffset + (1 << uint(sps.Log2MaxFrameNum))
		} else {
			frameNumOffset = s.prevFrameNumOffset
		}
		absFrameNum := frameNumOffset + sh.FrameNum
		if len(sps.OffsetForRefFrame) == 0 {
			absFrameNum = 0
		} else if sh.NalRefIdc == 0 && absFrameNum > 0 {
			absFrameNum--
		}
		expectedDeltaPerCycle := 0
		for _, o := range sps.OffsetForRefFrame {
			expectedDeltaPerCycle += o
		}
		var expectedPoc int
		if absFrameNum > 0 && len(sps.OffsetForRefFrame) > 0 {
			cycleCount := (absFrameNum - 1) / len(sps.OffsetForRefFrame)
			frameNumInCycle := (absFrameNum - 1) % len(sps.OffsetForRefFrame)
			expectedPoc = cycleCount * expectedDeltaPerCycle
			for i := 0; i <= frameNumInCycle; i++ {
				expectedPoc += sps.OffsetForRefFrame[i]
			}
		}
		if sh.NalRefIdc == 0 {
			expectedPoc += sps.OffsetForNonRefPic
		}
		poc = expectedPoc + sh.DeltaPicOrderCnt0
		s.prevFrameNumOffset = frameNumOffset
		s.prevFrameNum = sh.FrameNum
		return poc

	case 2:
		frameNumOffset := 0
		if isIDR {
			frameNumOffset = 0
		} else if s.prevFrameNum > sh.FrameNum {
			frameNumOffset = s.prevFrameNumOffset + (1 << uint(sps.Log2MaxFrameNum))
		} else {
			frameNumOffset = s.prevFrameNumOffset
		}
		var tempPoc int
		if isIDR {
			tempPoc = 0
		} else if sh.NalRefIdc == 0 {
			tempPoc = 2*(frameNumOffset+sh.FrameNum) - 1
		} else {
			tempPoc = 2 * (frameNumOffset + sh.FrameNum)
		}
		s.prevFrameNumOffset = frameNumOffset
		s.prevFrameNum = sh.FrameNum
		return tempPoc
	}
	return 0
}
