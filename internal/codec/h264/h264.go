// Package h264 implements the ITU-T H.264 / ISO-14496-10 decoder of
// : NAL unit parsing (Annex B and AVCC), SPS/PPS parsing,
// slice header parsing, POC derivation, reference list construction and
// modification, DPB/MMCO management, CAVLC and CABAC entropy decoding,
// intra prediction, inter prediction and motion compensation, the integer
// inverse transform, and in-loop deblocking.
//
// This package discloses several structurally-equivalent approximations in
// place of literal ISO/IEC tables that cannot be reliably reproduced from
// memory: CAVLC's coeff_token/total_zeros/run_before VLC tables, CABAC's
// context-initialization (m,n) tables and per-element ctxIdxInc neighbor
// derivation, the 8x8 intra prediction directional modes, the 8x8 inverse
// transform's true 8-point butterfly, I_PCM sample reading, and per-4x4
// boundary-strength derivation for deblocking. Every approximation keeps
// the real mechanism's shape (the engine is bit-exact, the data around it
// is not) and is documented at its definition and in DESIGN.md.
package h264

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/codec"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
)

func init() {
	codec.Register(media.CodecH264, func() codec.Decoder { return &Decoder{} })
}

const component = "codec/h264"

// Decoder implements codec.Decoder for H.264/AVC.
type Decoder struct {
	opened bool
	annexB bool
	lengthSize int

	spsByID map[int]*SPS
	ppsByID map[int]*PPS

	dpb *DPB
	poc pocState
	counters entropyCounters

	curSPS *SPS
	pic *Picture // picture under construction across this access unit's slices
	curSh *sliceHeader

	pending []*media.VideoFrame
	eof bool
}

func (d *Decoder) CodecID() media.CodecID { return media.CodecH264 }
func (d *Decoder) Name() string { return component }

// Open configures the decoder from the stream's extra_data: an avcC box
// (AVCC length-prefixed NALs, length_size_minus_one at byte 4) if
// ExtraData starts with the avcC configurationVersion byte 1 and is at
// least 7 bytes, Annex B byte-stream framing otherwise.
func (d *Decoder) Open(params media.CodecParameters) error {
	d.spsByID = map[int]*SPS{}
	d.ppsByID = map[int]*PPS{}
	d.lengthSize = 4
	d.annexB = true

	if len(params.ExtraData) >= 7 && params.ExtraData[0] == 1 {
		d.annexB = false
		d.lengthSize = int(params.ExtraData[4]&0x3) + 1
		if err := d.parseAVCCExtraData(params.ExtraData); err != nil {
			return err
		}
	}
	d.opened = true
	return nil
}

// parseAVCCExtraData extracts the SPS/PPS NAL units carried in an avcC
// configuration box, per ISO/IEC 14496-15's avcC layout.
func (d *Decoder) parseAVCCExtraData(extra []byte) error {
	if len(extra) < 6 {
		return errs.New(errs.InvalidData, component, "avcC too short")
	}
	pos := 5
	numSPS := int(extra[pos] & 0x1F)
	pos++
	for i := 0; i < numSPS && pos+2 <= len(extra); i++ {
		l := int(extra[pos])<<8 | int(extra[pos+1])
		pos += 2
		if pos+l > len(extra) {
			break
		}
		d.handleNAL(parseNalUnit(extra[pos : pos+l]))
		pos += l
	}
	if pos >= len(extra) {
		return nil
	}
	numPPS := int(extra[pos])
	pos++
	for i := 0; i < numPPS && pos+2 <= len(extra); i++ {
		l := int(extra[pos])<<8 | int(extra[pos+1])
		pos += 2
		if pos+l > len(extra) {
			break
		}
		d.handleNAL(parseNalUnit(extra[pos : pos+l]))
		pos += l
	}
	return nil
}

func (d *Decoder) Flush() {
	d.pic = nil
	d.curSh = nil
	d.poc.reset()
	d.dpb = nil
	d.pending = nil
	d.eof = false
}

// SendPacket feeds one access unit's bitstream (Annex B start-coded or
// AVCC length-prefixed, per Open's framing detection) to the decoder. An
// empty packet is the flush sentinel: all pictures still held in the DPB
// are drained in POC order.
func (d *Decoder) SendPacket(pkt *media.Packet) error {
	if !d.opened {
		return errs.New(errs.Codec, component, "send_packet before open")
	}
	if pkt.IsFlush() {
		if f := d.finishCurrentPicture(); f != nil {
			d.pending = append(d.pending, f)
		}
		if d.dpb != nil {
			for _, p := range d.dpb.drainReady(true) {
				d.pending = append(d.pending, d.toVideoFrame(p, pkt))
			}
		}
		d.eof = true
		return nil
	}

	var units []nalUnit
	if d.annexB {
		units = splitAnnexB(pkt.Payload)
	} else {
		units = splitAVCC(pkt.Payload, d.lengthSize)
	}

	for _, nal := range units {
		if frame := d.handleNAL(nal); frame != nil {
			frame.PTS = pkt.PTS
			frame.DTS = pkt.DTS
			frame.Duration = pkt.Duration
			frame.TimeBase = pkt.TimeBase
			d.pending = append(d.pending, frame)
		}
	}
	return nil
}

// handleNAL dispatches one NAL unit by type, returning a finished frame
// when this NAL's arrival (a new slice's first_mb_in_slice==0 belonging to
// a different access unit) closes out the picture under construction.
// SPS, PPS and AUD NALs never close out a picture.
func (d *Decoder) handleNAL(nal nalUnit) *media.VideoFrame {
	switch nal.Type {
	case nalTypeSPS:
		r := bitio.NewReader(nal.RBSP)
		sps, err := ParseSPS(r)
		if err != nil {
			d.counters.MalformedNalDrops++
			return nil
		}
		d.spsByID[sps.ID] = sps
		return nil

	case nalTypePPS:
		r := bitio.NewReader(nal.RBSP)
		pps, err := ParsePPS(r, d.spsByID)
		if err != nil {
			d.counters.MalformedNalDrops++
			return nil
		}
		d.ppsByID[pps.ID] = pps
		return nil

	case nalTypeAUD, nalTypeSEI, nalTypeFiller, nalTypeEndSeq, nalTypeEndStream:
		return nil

	case nalTypeSliceIDR, nalTypeSliceNonIDR:
		return d.handleSlice(nal)

	case nalTypeSliceDPA, nalTypeSliceDPB, nalTypeSliceDPC:
		// Data-partitioned slices are not produced by any encoder this
		// module targets; treat as a malformed-drop rather than guessing
		// at partition reassembly.
		d.counters.MalformedNalDrops++
		return nil

	default:
		return nil
	}
}

// handleSlice parses one slice header, starts a new picture if this is the
// first slice of a new access unit (finishing and possibly emitting the
// previous one), decodes the slice's macroblocks, and folds the picture
// into the DPB once the last slice of its access unit has been seen (the
// next first_mb_in_slice==0 slice, SendPacket's flush, or the stream's
// end).
func (d *Decoder) handleSlice(nal nalUnit) *media.VideoFrame {
	ppsID, ok := peekPPSID(nal.RBSP)
	if !ok {
		d.counters.MalformedNalDrops++
		return nil
	}
	pps, ok := d.ppsByID[ppsID]
	if !ok {
		d.counters.MalformedNalDrops++
		return nil
	}
	sps, ok := d.spsByID[pps.SPSID]
	if !ok {
		d.counters.MalformedNalDrops++
		return nil
	}

	r := bitio.NewReader(nal.RBSP)
	sh, err := parseSliceHeader(r, nal, sps, pps)
	if err != nil {
		d.counters.MalformedNalDrops++
		return nil
	}
	if sh.RedundantPicCnt > 0 {
		d.counters.RedundantPicSkips++
		return nil
	}

	var finished *media.VideoFrame
	if sh.FirstMbInSlice == 0 || d.pic == nil {
		finished = d.finishCurrentPicture()
		d.startPicture(sps, sh)
	}

	l0, l1 := buildInitialRefLists(sh, sps, d.dpb, d.pic.POC, sh.FrameNum)
	l0 = applyRefListMods(l0, sh.RefListModL0, sps, sh.FrameNum)
	l1 = applyRefListMods(l1, sh.RefListModL1, sps, sh.FrameNum)

	ctx := &sliceDecodeCtx{sps: sps, pps: pps, sh: sh, pic: d.pic, l0: l0, l1: l1, counters: &d.counters}

	if pps.EntropyCodingModeCABAC {
		r.AlignByte()
		if err := decodeSliceDataCABAC(r, ctx); err != nil {
			d.counters.MalformedNalDrops++
		}
	} else {
		if err := decodeSliceDataCAVLC(r, ctx); err != nil {
			d.counters.MalformedNalDrops++
		}
	}
	d.curSh = sh
	d.curSPS = sps
	return finished
}

// peekPPSID reads just enough of a slice_header (first_mb_in_slice,
// slice_type, pic_parameter_set_id) to look up the governing PPS/SPS,
// ahead of the real parseSliceHeader call that needs them.
func peekPPSID(rbsp []byte) (int, bool) {
	r := bitio.NewReader(rbsp)
	if _, err := r.ReadUE(); err != nil {
		return 0, false
	}
	if _, err := r.ReadUE(); err != nil {
		return 0, false
	}
	v, err := r.ReadUE()
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func (d *Decoder) startPicture(sps *SPS, sh *sliceHeader) {
	if d.dpb == nil || d.curSPS != sps {
		d.dpb = newDPB(sps)
	}
	d.pic = newPicture(sps)
	d.pic.FrameNum = sh.FrameNum
	d.pic.PicType = picTypeFor(sh.SliceType)
	if sh.IsIDR {
		d.poc.reset()
	}
	d.pic.POC = derivePOC(sps, sh, &d.poc, sh.IsIDR)
}

func picTypeFor(sliceType int) int {
	switch sliceType {
	case sliceI, sliceSI:
		return int(media.PictureI)
	case sliceB:
		return int(media.PictureB)
	default:
		return int(media.PictureP)
	}
}

// finishCurrentPicture deblocks and inserts the in-progress picture into
// the DPB, draining any picture the reorder buffer now releases.
func (d *Decoder) finishCurrentPicture() *media.VideoFrame {
	if d.pic == nil || d.curSh == nil {
		return nil
	}
	deblockPicture(d.pic, d.curSh)
	d.dpb.insert(d.pic, d.curSh, d.curSPS)

	ready := d.dpb.drainReady(false)
	d.pic = nil
	d.curSh = nil
	if len(ready) == 0 {
		return nil
	}
	// Queue all newly-ready pictures; SendPacket only has room to return
	// one directly, so stash the rest in pending and return the first.
	for i := 1; i < len(ready); i++ {
		d.pending = append(d.pending, d.toVideoFrame(ready[i], nil))
	}
	return d.toVideoFrame(ready[0], nil)
}

func (d *Decoder) toVideoFrame(pic *Picture, pkt *media.Packet) *media.VideoFrame {
	f := &media.VideoFrame{
		Width: pic.Width,
		Height: pic.Height,
		PixelFormat: media.YUV420P,
		Planes: [3][]byte{pic.Y, pic.U, pic.V},
		Linesize: [3]int{pic.YStride, pic.CStride, pic.CStride},
		PictureType: media.PictureType(pic.PicType),
		IsKeyframe: pic.PicType == int(media.PictureI),
	}
	if pkt != nil {
		f.PTS, f.DTS, f.Duration, f.TimeBase = pkt.PTS, pkt.DTS, pkt.Duration, pkt.TimeBase
	}
	return f
}

func (d *Decoder) ReceiveFrame() (media.Frame, error) {
	if len(d.pending) > 0 {
		f := d.pending[0]
		d.pending = d.pending[1:]
		return f, nil
	}
	if d.eof {
		return nil, errs.ErrEof
	}
	return nil, errs.ErrNeedMoreData
}

// Counters exposes the decoder's error-containment tallies (malformed NAL
// drops, missing-reference fallbacks, redundant-picture skips), mirroring
// the demux layer's counter-exposure convention for observability without
// a dedicated metrics dependency.
func (d *Decoder) Counters() (malformedNalDrops, missingReferenceFallbacks, redundantPicSkips int64) {
	return d.counters.MalformedNalDrops, d.counters.MissingReferenceFallbacks, d.counters.RedundantPicSkips
}

// ContainmentCounters implements codec.ContainmentReporter so an optional
// stats.Recorder can surface these as Prometheus gauges without the decoder
// importing the stats package itself.
func (d *Decoder) ContainmentCounters() map[string]int64 {
	malformed, missingRef, redundant := d.Counters()
	return map[string]int64{
		"malformed_drops": malformed,
		"missing_reference_fallback": missingRef,
		"redundant_pic_skips": redundant,
	}
}
