package h264

import "sort"

// refPic is one entry of a constructed reference picture list: a pointer
// into the DPB plus the derived PicNum/LongTermPicNum used by list
// modification and P_Skip/co-located lookups.
type refPic struct {
	Pic *Picture
	PicNum int
	LongTerm bool
	LongTermIdx int
}

// buildInitialRefLists constructs L0 (and, for B slices, L1) by convention
// §4.7: P-slices sort short-term refs by descending PicNum then append
// long-term refs ascending by LongTermFrameIdx; B-slices split short-term
// refs into the two POC-ordered halves then append long-term refs.
func buildInitialRefLists(sh *sliceHeader, sps *SPS, dpb *DPB, currPOC, currFrameNum int) (l0, l1 []refPic) {
	maxFrameNum := 1 << uint(sps.Log2MaxFrameNum)

	var shortTerm []refPic
	var longTerm []refPic
	for _, p := range dpb.pictures {
		if !p.IsRef {
			continue
		}
		if p.IsLongTerm {
			longTerm = append(longTerm, refPic{Pic: p, LongTerm: true, LongTermIdx: p.LongTermFrameIdx})
			continue
		}
		picNum := p.FrameNum
		if p.FrameNum > currFrameNum {
			picNum = p.FrameNum - maxFrameNum
		}
		shortTerm = append(shortTerm, refPic{Pic: p, PicNum: picNum})
	}
	sort.Slice(longTerm, func(i, j int) bool { return longTerm[i].LongTermIdx < longTerm[j].LongTermIdx })

	if sh.SliceType == sliceP || sh.SliceType == sliceSP {
		sort.Slice(shortTerm, func(i, j int) bool { return shortTerm[i].PicNum > shortTerm[j].PicNum })
		l0 = append(l0, shortTerm...)
		l0 = append(l0, longTerm...)
		return l0, nil
	}

	// B-slice: two POC-ordered halves.
	var beforeCurr, afterCurr []refPic
	for _, rp := range shortTerm {
		if rp.Pic.POC < currPOC {
			beforeCurr = append(beforeCurr, rp)
		} else {
			afterCurr = append(afterCurr, rp)
		}
	}
	sort.Slice(beforeCurr, func(i, j int) bool { return beforeCurr[i].Pic.POC > beforeCurr[j].Pic.POC })
	sort.Slice(afterCurr, func(i, j int) bool { return afterCurr[i].Pic.POC < afterCurr[j].Pic.POC })

	l0 = append(l0, beforeCurr...)
	l0 = append(l0, afterCurr...)
	l0 = append(l0, longTerm...)

	l1 = append(l1, afterCurr...)
	l1 = append(l1, beforeCurr...)
	l1 = append(l1, longTerm...)

	if len(l1) > 1 && listsIdentical(l0, l1) {
		l1[0], l1[1] = l1[1], l1[0]
	}
	return l0, l1
}

func listsIdentical(a, b []refPic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Pic != b[i].Pic {
			return false
		}
	}
	return true
}

// applyRefListMods executes a sequence of ref_pic_list_modification
// operations against an initial list, per the standard's short-term
// subtract/add and long-term-pic-num procedures.
func applyRefListMods(list []refPic, ops []refListModOp, sps *SPS, currPicNum int) []refPic {
	if len(ops) == 0 {
		return list
	}
	maxPicNum := 1 << uint(sps.Log2MaxFrameNum)
	out := append([]refPic{}, list...)
	predPicNum := currPicNum

	for idx, op := range ops {
		if idx >= len(out) {
			out = append(out, refPic{})
		}
		switch op.Idc {
		case 0, 1:
			var absDiff int
			if op.Idc == 0 {
				absDiff = op.Value + 1
				predPicNum -= absDiff
				if predPicNum < 0 {
					predPicNum += maxPicNum
				}
			} else {
				absDiff = op.Value + 1
				predPicNum += absDiff
				if predPicNum >= maxPicNum {
					predPicNum -= maxPicNum
				}
			}
			picNum := predPicNum
			if picNum > currPicNum {
				picNum -= maxPicNum
			}
			moveToFront(out, idx, func(rp refPic) bool { return !rp.LongTerm && rp.PicNum == picNum })
		case 2:
			moveToFront(out, idx, func(rp refPic) bool { return rp.LongTerm && rp.LongTermIdx == op.Value })
		}
	}
	return out
}

// moveToFront finds the first entry at or after fromIdx matching pred and
// shifts it to position fromIdx, pushing the rest down by one (the
// standard's reordering procedure).
func moveToFront(list []refPic, fromIdx int, pred func(refPic) bool) {
	found := -1
	for i := fromIdx; i < len(list); i++ {
		if pred(list[i]) {
			found = i
			break
		}
	}
	if found < 0 {
		return
	}
	entry := list[found]
	copy(list[fromIdx+1:found+1], list[fromIdx:found])
	list[fromIdx] = entry
}
