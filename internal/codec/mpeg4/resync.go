package mpeg4

import "github.com/bramblemedia/reelcore/internal/bitio"

// findResyncMarker scans forward from the reader's current (byte-aligned)
// position for the video packet resync marker: at least 16 zero bits
// followed by a 1 bit, per §6.2.6's marker, which only ever appears
// byte-aligned in conforming bitstreams. Returns false if no marker is
// found before the data ends.
func findResyncMarker(r *bitio.Reader) bool {
	for r.BitsRemaining() >= 17 {
		save := *r
		zeros := 0
		for {
			b, err := r.ReadBit()
			if err != nil {
				*r = save
				return false
			}
			if b == 0 {
				zeros++
				continue
			}
			break
		}
		if zeros >= 16 {
			return true
		}
		*r = save
		if _, err := r.ReadBit(); err != nil {
			return false
		}
	}
	return false
}

// videoPacketHeader is the header following a resync marker mid-VOP, per
// §6.2.6: the resumed macroblock number and quantizer, resetting all AC/DC
// and motion-vector prediction context at that macroblock.
type videoPacketHeader struct {
	MbNumber int
	Quant    int
}

// parseVideoPacketHeader reads the fields following a resync marker.
// mbNumberBits is derived from the picture's total macroblock count
// (ceil(log2(mbWidth*mbHeight))).
func parseVideoPacketHeader(r *bitio.Reader, vol *VOLHeader, vop *VOPHeader, mbNumberBits int) (*videoPacketHeader, error) {
	mbNum, err := r.ReadBits(mbNumberBits)
	if err != nil {
		return nil, err
	}
	quant, err := r.ReadBits(vol.QuantPrecision)
	if err != nil {
		return nil, err
	}
	// header_extension_code and any following fields beyond quant are
	// outside this decoder's targeted profile (no sprite/newpred streams);
	// the caller resumes macroblock decode immediately after quant.
	return &videoPacketHeader{MbNumber: int(mbNum), Quant: int(quant)}, nil
}

func mbNumberBitsFor(pic *Picture) int {
	return log2Ceil(pic.MbWidth * pic.MbHeight)
}

// fillSkippedMBs marks every macroblock from fromAddr (inclusive) to
// toAddr (exclusive) as not_coded, copying from the reference at zero
// motion — the recovery action §4.8 names for resync-driven error
// containment between an expected and an actually-resumed macroblock
// number.
func fillSkippedMBs(ctx *decodeContext, fromAddr, toAddr int) {
	for addr := fromAddr; addr < toAddr; addr++ {
		mbX, mbY := addr%ctx.pic.MbWidth, addr/ctx.pic.MbWidth
		mb := ctx.pic.mbAt(mbX, mbY)
		if mb == nil {
			continue
		}
		mb.Available = true
		mb.Coded = false
		mb.IsIntra = false
		copyMBFromReference(ctx, mb, mbX, mbY, [2]int16{0, 0})
	}
}
