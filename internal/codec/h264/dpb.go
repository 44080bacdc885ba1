package h264

import "sort"

// DPB is the decoded-picture buffer: reference pictures plus a POC-ordered
// reorder buffer for output, per "Decoded-picture buffer"
// section.
type DPB struct {
	pictures []*Picture // all pictures currently held (ref or awaiting output)
	maxRef   int
	maxReorder int
}

func newDPB(sps *SPS) *DPB {
	maxReorder := sps.MaxNumReorderFrames
	if maxReorder <= 0 {
		maxReorder = 16
	}
	maxRef := sps.MaxNumRefFrames
	if maxRef <= 0 {
		maxRef = 1
	}
	return &DPB{maxRef: maxRef, maxReorder: maxReorder}
}

// refCount returns the number of short-term + long-term reference pictures
// currently held.
func (d *DPB) refCount() int {
	n := 0
	for _, p := range d.pictures {
		if p.IsRef {
			n++
		}
	}
	return n
}

// insert pushes a freshly reconstructed picture, applies MMCO commands (or
// the IDR/sliding-window defaults when none were signaled), and evicts
// pictures that are neither a reference nor still pending output.
func (d *DPB) insert(pic *Picture, sh *sliceHeader, sps *SPS) {
	pic.IsRef = sh.NalRefIdc != 0
	d.pictures = append(d.pictures, pic)

	if sh.IsIDR {
		if sh.NoOutputOfPriorPics {
			d.dropAllExcept(pic)
		}
		for _, p := range d.pictures {
			if p != pic {
				p.IsRef = false
			}
		}
		if sh.LongTermReferenceFlag {
			pic.IsLongTerm = true
			pic.LongTermFrameIdx = 0
		}
		d.compact()
		return
	}

	if sh.AdaptiveRefPicMarking && len(sh.MMCOs) > 0 {
		d.applyMMCOs(pic, sh, sps)
	} else if pic.IsRef {
		d.slidingWindow(sps)
	}
	d.compact()
}

func (d *DPB) dropAllExcept(keep *Picture) {
	var kept []*Picture
	for _, p := range d.pictures {
		if p == keep || !p.Outputted {
			// still needed for output ordering unless explicitly dropped;
			// no_output_of_prior_pics discards everything but keep.
			if p == keep {
				kept = append(kept, p)
			}
		}
	}
	d.pictures = kept
}

func (d *DPB) slidingWindow(sps *SPS) {
	maxFrameNum := 1 << uint(sps.Log2MaxFrameNum)
	for d.refCount() > d.maxRef {
		var oldest *Picture
		oldestNum := -1
		for _, p := range d.pictures {
			if !p.IsRef || p.IsLongTerm {
				continue
			}
			picNum := p.FrameNum
			if oldest == nil || picNum < oldestNum {
				oldest = p
				oldestNum = picNum
			}
			_ = maxFrameNum
		}
		if oldest == nil {
			break
		}
		oldest.IsRef = false
	}
}

func (d *DPB) applyMMCOs(curr *Picture, sh *sliceHeader, sps *SPS) {
	maxPicNum := 1 << uint(sps.Log2MaxFrameNum)
	currPicNum := sh.FrameNum

	findShortTerm := func(diff int) *Picture {
		picNum := currPicNum - diff
		if picNum < 0 {
			picNum += maxPicNum
		}
		for _, p := range d.pictures {
			if p.IsRef && !p.IsLongTerm && p.FrameNum == picNum {
				return p
			}
		}
		return nil
	}
	findLongTerm := func(ltIdx int) *Picture {
		for _, p := range d.pictures {
			if p.IsRef && p.IsLongTerm && p.LongTermFrameIdx == ltIdx {
				return p
			}
		}
		return nil
	}

	for _, m := range sh.MMCOs {
		switch m.Op {
		case 1:
			if p := findShortTerm(m.DifferenceOfPicNumsMinus1 + 1); p != nil {
				p.IsRef = false
			}
		case 2:
			if p := findLongTerm(m.LongTermPicNum); p != nil {
				p.IsRef = false
			}
		case 3:
			if p := findShortTerm(m.DifferenceOfPicNumsMinus1 + 1); p != nil {
				if old := findLongTerm(m.LongTermFrameIdx); old != nil && old != p {
					old.IsRef = false
				}
				p.IsLongTerm = true
				p.LongTermFrameIdx = m.LongTermFrameIdx
			}
		case 4:
			maxIdx := m.MaxLongTermFrameIdxPlus1 - 1
			for _, p := range d.pictures {
				if p.IsLongTerm && p.LongTermFrameIdx > maxIdx {
					p.IsRef = false
				}
			}
		case 5:
			for _, p := range d.pictures {
				if p != curr {
					p.IsRef = false
				}
			}
		case 6:
			if old := findLongTerm(m.LongTermFrameIdx); old != nil {
				old.IsRef = false
			}
			curr.IsLongTerm = true
			curr.LongTermFrameIdx = m.LongTermFrameIdx
		}
	}
}

// compact drops pictures that are neither a reference nor awaiting output.
func (d *DPB) compact() {
	var kept []*Picture
	for _, p := range d.pictures {
		if p.IsRef || !p.Outputted {
			kept = append(kept, p)
		}
	}
	d.pictures = kept
}

// drainReady pops and returns pictures ready for output: once the number of
// not-yet-output pictures exceeds maxReorder, the lowest-POC one is
// released; drainAll forces every remaining picture out in POC order (used
// at end-of-stream).
func (d *DPB) drainReady(drainAll bool) []*Picture {
	var pending []*Picture
	for _, p := range d.pictures {
		if !p.Outputted {
			pending = append(pending, p)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].POC < pending[j].POC })

	var out []*Picture
	limit := d.maxReorder
	if drainAll {
		limit = 0
	}
	for len(pending) > limit {
		pending[0].Outputted = true
		out = append(out, pending[0])
		pending = pending[1:]
	}
	d.compact()
	return out
}
