package mpeg4

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/errs"
)

// VOPHeader holds the per-Video-Object-Plane fields §6.2.4 defines, for the
// rectangular, non-sprite, non-scalable profile this decoder targets.
type VOPHeader struct {
	Coded         bool
	PicType       int // VOPTypeI/P/B/S
	ModuloTimeBase int
	TimeIncrement  int
	RoundingType   bool
	IntraDCVlcThr  int
	TopFieldFirst  bool
	AlternateScan  bool
	Quant          int
	FcodeForward   int
	FcodeBackward  int
}

// ParseVOP parses one VOP header. r must be positioned just after the
// 00 00 01 B6 start code.
func ParseVOP(r *bitio.Reader, vol *VOLHeader) (*VOPHeader, error) {
	h := &VOPHeader{}
	t, err := r.ReadBits(2)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vop_coding_type", err)
	}
	h.PicType = int(t)

	modulo := 0
	for {
		b, err := r.ReadBit()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "modulo_time_base", err)
		}
		if b == 0 {
			break
		}
		modulo++
		if modulo > 256 {
			return nil, errs.New(errs.InvalidData, component, "modulo_time_base runaway")
		}
	}
	h.ModuloTimeBase = modulo

	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, errs.Wrap(errs.InvalidData, component, "vop marker 1", err)
	}
	inc, err := r.ReadBits(vol.VopTimeIncrementBits)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vop_time_increment", err)
	}
	h.TimeIncrement = int(inc)
	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, errs.Wrap(errs.InvalidData, component, "vop marker 2", err)
	}

	coded, err := r.ReadFlag()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vop_coded", err)
	}
	h.Coded = coded
	if !coded {
		return h, nil
	}

	if h.PicType == VOPTypeP || h.PicType == VOPTypeS {
		rt, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vop_rounding_type", err)
		}
		h.RoundingType = rt
	}

	thr, err := r.ReadBits(3)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "intra_dc_vlc_thr", err)
	}
	h.IntraDCVlcThr = int(thr)

	if vol.Interlaced {
		top, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vop_top_field_first", err)
		}
		alt, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vop_alternate_scan", err)
		}
		h.TopFieldFirst, h.AlternateScan = top, alt
	}

	quant, err := r.ReadBits(vol.QuantPrecision)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vop_quant", err)
	}
	h.Quant = int(quant)

	if h.PicType != VOPTypeI {
		fc, err := r.ReadBits(3)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "fcode_forward", err)
		}
		h.FcodeForward = int(fc)
	}
	if h.PicType == VOPTypeB {
		fc, err := r.ReadBits(3)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "fcode_backward", err)
		}
		h.FcodeBackward = int(fc)
	}

	return h, nil
}
