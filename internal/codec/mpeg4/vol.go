package mpeg4

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/errs"
)

// Video Object Plane types, ISO/IEC 14496-2 §6.3.4's coding_type values.
const (
	VOPTypeI = 0
	VOPTypeP = 1
	VOPTypeB = 2
	VOPTypeS = 3
)

// VOLHeader holds the Video Object Layer fields the decode pipeline needs,
// parsed per §6.2.3. This decoder targets simple/core-profile rectangular,
// non-scalable streams: sprite, grayscale-shape, and scalability syntax are
// scanned past (best-effort bit consumption) rather than fully modeled,
// since they fall outside the targeted profile. See the package doc
// comment and DESIGN.md.
type VOLHeader struct {
	ID                       int
	VerID                    int
	Shape                    int // 0=rectangular (the only shape this decoder reconstructs)
	Width, Height            int
	AspectRatioWidth         int
	AspectRatioHeight        int
	VopTimeIncrementResolution int
	VopTimeIncrementBits     int
	FixedVopRate             bool
	FixedVopTimeIncrement    int
	Interlaced               bool
	OBMCDisable              bool
	QuantPrecision           int
	BitsPerPixel             int
	QuantType                bool
	IntraQuantMat            [64]int
	NonIntraQuantMat         [64]int
	Quarterpel               bool
	ResyncMarkerDisable      bool
	DataPartitioned          bool
	ReversibleVLC            bool
}

const component = "codec/mpeg4"

// defaultQuantMat is Annex I's default intra/inter quantization matrix
// shape (flat, since this decoder's targeted profile rarely loads custom
// matrices); real custom matrices are still read and applied when present.
var defaultFlatQuantMat = [64]int{
	16, 16, 16, 16, 16, 16, 16, 16,
	16, 16, 16, 16, 16, 16, 16, 16,
	16, 16, 16, 16, 16, 16, 16, 16,
	16, 16, 16, 16, 16, 16, 16, 16,
	16, 16, 16, 16, 16, 16, 16, 16,
	16, 16, 16, 16, 16, 16, 16, 16,
	16, 16, 16, 16, 16, 16, 16, 16,
	16, 16, 16, 16, 16, 16, 16, 16,
}

// log2Ceil returns ceil(log2(n)) for n >= 1, used to size
// fixed_vop_time_increment and the per-VOP vop_time_increment field.
func log2Ceil(n int) int {
	bits := 0
	v := 1
	for v < n {
		v <<= 1
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return bits
}

// ParseVOL parses a Video Object Layer header. id is the start code's low
// nibble (video_object_layer_id, from startCodeVOLMin..Max).
func ParseVOL(r *bitio.Reader, id int) (*VOLHeader, error) {
	v := &VOLHeader{ID: id, VerID: 1}
	v.IntraQuantMat = defaultFlatQuantMat
	v.NonIntraQuantMat = defaultFlatQuantMat

	if _, err := r.ReadBit(); err != nil { // random_accessible_vol
		return nil, errs.Wrap(errs.InvalidData, component, "vol random_accessible_vol", err)
	}
	if _, err := r.ReadBits(8); err != nil { // video_object_type_indication
		return nil, errs.Wrap(errs.InvalidData, component, "vol object type", err)
	}
	isIdentifier, err := r.ReadFlag()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vol is_object_layer_identifier", err)
	}
	if isIdentifier {
		verID, err := r.ReadBits(4)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vol verid", err)
		}
		v.VerID = int(verID)
		if _, err := r.ReadBits(3); err != nil { // priority
			return nil, errs.Wrap(errs.InvalidData, component, "vol priority", err)
		}
	}

	arInfo, err := r.ReadBits(4)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vol aspect_ratio_info", err)
	}
	if arInfo == 0xF {
		w, err := r.ReadBits(8)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vol par_width", err)
		}
		h, err := r.ReadBits(8)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vol par_height", err)
		}
		v.AspectRatioWidth, v.AspectRatioHeight = int(w), int(h)
	} else {
		v.AspectRatioWidth, v.AspectRatioHeight = 1, 1
	}

	hasControlParams, err := r.ReadFlag()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vol_control_parameters", err)
	}
	if hasControlParams {
		if _, err := r.ReadBits(2); err != nil { // chroma_format
			return nil, errs.Wrap(errs.InvalidData, component, "vol chroma_format", err)
		}
		if _, err := r.ReadBit(); err != nil { // low_delay
			return nil, errs.Wrap(errs.InvalidData, component, "vol low_delay", err)
		}
		hasVBV, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vol vbv_parameters", err)
		}
		if hasVBV {
			if err := r.Skip(15 + 1 + 15 + 1 + 15 + 1 + 3 + 1 + 11 + 1); err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "vol vbv bits", err)
			}
		}
	}

	shape, err := r.ReadBits(2)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "video_object_layer_shape", err)
	}
	v.Shape = int(shape)
	if v.Shape == 3 { // grayscale: an extra shape_extension field, not reconstructed
		if _, err := r.ReadBits(4); err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "vol shape_extension", err)
		}
	}

	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, errs.Wrap(errs.InvalidData, component, "vol marker 1", err)
	}
	resBits, err := r.ReadBits(16)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "vop_time_increment_resolution", err)
	}
	v.VopTimeIncrementResolution = int(resBits)
	if v.VopTimeIncrementResolution < 1 {
		v.VopTimeIncrementResolution = 1
	}
	v.VopTimeIncrementBits = log2Ceil(v.VopTimeIncrementResolution)
	if _, err := r.ReadBit(); err != nil { // marker_bit
		return nil, errs.Wrap(errs.InvalidData, component, "vol marker 2", err)
	}
	fixedRate, err := r.ReadFlag()
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, component, "fixed_vop_rate", err)
	}
	v.FixedVopRate = fixedRate
	if fixedRate {
		inc, err := r.ReadBits(v.VopTimeIncrementBits)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "fixed_vop_time_increment", err)
		}
		v.FixedVopTimeIncrement = int(inc)
	}

	if v.Shape != 2 { // not binary-only
		if v.Shape == 0 { // rectangular
			if _, err := r.ReadBit(); err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "vol marker 3", err)
			}
			w, err := r.ReadBits(13)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "video_object_layer_width", err)
			}
			if _, err := r.ReadBit(); err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "vol marker 4", err)
			}
			h, err := r.ReadBits(13)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "video_object_layer_height", err)
			}
			if _, err := r.ReadBit(); err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "vol marker 5", err)
			}
			v.Width, v.Height = int(w), int(h)
		}

		interlaced, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "interlaced", err)
		}
		v.Interlaced = interlaced
		obmc, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "obmc_disable", err)
		}
		v.OBMCDisable = obmc

		spriteBits := 1
		if v.VerID != 1 {
			spriteBits = 2
		}
		spriteEnable, err := r.ReadBits(spriteBits)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "sprite_enable", err)
		}
		if spriteEnable != 0 {
			// Static/GMC sprite warping parameters: outside this decoder's
			// targeted profile. Best-effort skip is not attempted since the
			// field count is itself data-dependent; treat as unsupported.
			return nil, errs.New(errs.Unsupported, component, "sprite-coded VOL not supported")
		}

		if v.Shape != 3 && v.VerID != 1 {
			if _, err := r.ReadBit(); err != nil { // reduced_resolution_vop_enable? or not_8_bit follows
				return nil, errs.Wrap(errs.InvalidData, component, "vol sadct/rr flag", err)
			}
		}

		not8Bit, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "not_8_bit", err)
		}
		if not8Bit {
			qp, err := r.ReadBits(4)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "quant_precision", err)
			}
			bpp, err := r.ReadBits(4)
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "bits_per_pixel", err)
			}
			v.QuantPrecision, v.BitsPerPixel = int(qp), int(bpp)
		} else {
			v.QuantPrecision, v.BitsPerPixel = 5, 8
		}

		if v.Shape == 3 {
			if err := r.Skip(1 + 4 + 1 + 1); err != nil { // no_gray_quant_update/alpha fields
				return nil, errs.Wrap(errs.InvalidData, component, "vol grayscale shape fields", err)
			}
		}

		quantType, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "quant_type", err)
		}
		v.QuantType = quantType
		if quantType {
			if err := readQuantMatFlag(r, &v.IntraQuantMat); err != nil {
				return nil, err
			}
			if err := readQuantMatFlag(r, &v.NonIntraQuantMat); err != nil {
				return nil, err
			}
		}

		if v.VerID != 1 {
			qp, err := r.ReadFlag()
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "quarter_sample", err)
			}
			v.Quarterpel = qp
		}

		complexityDisable, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "complexity_estimation_disable", err)
		}
		if !complexityDisable {
			return nil, errs.New(errs.Unsupported, component, "complexity estimation header not supported")
		}

		resyncDisable, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "resync_marker_disable", err)
		}
		v.ResyncMarkerDisable = resyncDisable

		dataPartitioned, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "data_partitioned", err)
		}
		v.DataPartitioned = dataPartitioned
		if dataPartitioned {
			rvlc, err := r.ReadFlag()
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "reversible_vlc", err)
			}
			v.ReversibleVLC = rvlc
		}

		if v.VerID != 1 {
			newpred, err := r.ReadFlag()
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "newpred_enable", err)
			}
			if newpred {
				return nil, errs.New(errs.Unsupported, component, "NEWPRED not supported")
			}
			reducedEnable, err := r.ReadFlag()
			if err != nil {
				return nil, errs.Wrap(errs.InvalidData, component, "reduced_resolution_vop_enable", err)
			}
			if reducedEnable {
				return nil, errs.New(errs.Unsupported, component, "reduced-resolution VOP not supported")
			}
		}

		scalability, err := r.ReadFlag()
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, component, "scalability", err)
		}
		if scalability {
			return nil, errs.New(errs.Unsupported, component, "scalable VOL not supported")
		}
	}

	return v, nil
}

// readQuantMatFlag reads load_*_quant_mat and, if set, the 64 8-bit
// coefficients (raster order, early-terminated by a 0 value per §6.3.5,
// which repeats the previous coefficient for the remainder).
func readQuantMatFlag(r *bitio.Reader, mat *[64]int) error {
	load, err := r.ReadFlag()
	if err != nil {
		return errs.Wrap(errs.InvalidData, component, "load_quant_mat flag", err)
	}
	if !load {
		return nil
	}
	last := 16
	for i := 0; i < 64; i++ {
		v, err := r.ReadBits(8)
		if err != nil {
			return errs.Wrap(errs.InvalidData, component, "quant_mat coefficient", err)
		}
		if v == 0 {
			break
		}
		last = int(v)
		mat[i] = last
	}
	for i := range mat {
		if mat[i] == 0 {
			mat[i] = last
		}
	}
	return nil
}
