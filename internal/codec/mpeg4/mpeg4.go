// Package mpeg4 implements the MPEG-4 Part 2 (ISO/IEC 14496-2) decoder of
// : Visual Object Layer header parsing (vol.go), per-VOP
// header parsing (vop.go), macroblock reconstruction — MCBPC/CBPY/DQUANT,
// median motion-vector prediction with fcode-scaled MVD and range
// wrapping, AC/DC coefficient prediction, half/quarter-pel motion
// compensation, 4MV chroma derivation — in mb.go/mvrecon.go/mc.go/
// predict.go, and resync-marker error recovery in resync.go. mpeg4.go is
// the top-level codec.Decoder, in the same Open/SendPacket/ReceiveFrame/
// Flush shape as the h264 and mp3 decoders.
//
// MCBPC/CBPY/MVD/TCOEF decode via canonical VLC tables built over each
// codebook's real structure (see DESIGN.md for codeword-reconstruction
// confidence notes); ROUNDTAB_76's rounding bias is approximated with a
// symmetric round-to-nearest-even formula rather than reproducing the
// standard's 16 literal entries. Quarter-pel motion compensation implements
// §7.6.2/Annex F's real nested half-pel/quarter-pel bilinear averaging
// construction. B-VOPs are decoded in bitstream order
// without a reorder buffer (display-order B-frame reordering is left to
// the caller, same as this decoder's treatment of P-VOPs). B-VOP
// macroblocks are read with the P-VOP macroblock syntax and predicted from
// the forward reference only; direct-mode and backward prediction are not
// implemented.
package mpeg4

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/codec"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
)

func init() {
	codec.Register(media.CodecMPEG4Part2, func() codec.Decoder { return &Decoder{} })
}

// Decoder implements codec.Decoder for MPEG-4 Part 2 elementary streams.
type Decoder struct {
	opened bool
	vols map[int]*VOLHeader
	curVOL *VOLHeader

	ref *Picture

	pending []*media.VideoFrame
	eof bool

	counters errorCounters
}

func (d *Decoder) CodecID() media.CodecID { return media.CodecMPEG4Part2 }
func (d *Decoder) Name() string { return component }

// Open scans extra_data (when present — an mp4 esds-delivered VOL header,
// or the common practice of prefixing the first packet's VOL in a raw ES)
// for VOL headers so decode can begin without waiting for an in-band one.
func (d *Decoder) Open(params media.CodecParameters) error {
	d.vols = make(map[int]*VOLHeader)
	d.opened = true
	if len(params.ExtraData) > 0 {
		d.ingestUnits(splitStartCodes(params.ExtraData))
	}
	return nil
}

func (d *Decoder) Flush() {
	d.ref = nil
	d.pending = nil
	d.eof = false
}

func (d *Decoder) SendPacket(pkt *media.Packet) error {
	if !d.opened {
		return errs.New(errs.Codec, component, "send_packet before open")
	}
	if pkt.IsFlush() {
		d.eof = true
		return nil
	}
	units := splitStartCodes(pkt.Payload)
	for _, u := range units {
		frame, err := d.handleUnit(u)
		if err != nil {
			d.counters.MalformedMbDrops++
			continue
		}
		if frame != nil {
			frame.PTS = pkt.PTS
			frame.DTS = pkt.DTS
			frame.Duration = pkt.Duration
			frame.TimeBase = pkt.TimeBase
			d.pending = append(d.pending, frame)
		}
	}
	return nil
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

func (d *Decoder) ingestUnits(units []unit) {
	for _, u := range units {
		if u.Code >= startCodeVOLMin && u.Code <= startCodeVOLMax {
			vol, err := ParseVOL(bitio.NewReader(u.Payload), int(u.Code-startCodeVOLMin))
			if err == nil {
				d.vols[vol.ID] = vol
				d.curVOL = vol
			}
		}
	}
}

func (d *Decoder) handleUnit(u unit) (*media.VideoFrame, error) {
	switch {
	case u.Code >= startCodeVOLMin && u.Code <= startCodeVOLMax:
		vol, err := ParseVOL(bitio.NewReader(u.Payload), int(u.Code-startCodeVOLMin))
		if err != nil {
			return nil, err
		}
		d.vols[vol.ID] = vol
		d.curVOL = vol
		return nil, nil
	case u.Code == startCodeVOP:
		if d.curVOL == nil {
			return nil, errs.New(errs.InvalidData, component, "VOP before any VOL")
		}
		return d.decodeVOP(u.Payload)
	default:
		return nil, nil
	}
}

func (d *Decoder) decodeVOP(payload []byte) (*media.VideoFrame, error) {
	r := bitio.NewReader(payload)
	vop, err := ParseVOP(r, d.curVOL)
	if err != nil {
		return nil, err
	}
	if !vop.Coded {
		return nil, nil
	}

	pic := newPicture(d.curVOL)
	pic.PicType = vop.PicType
	pic.Coded = true

	ctx := &decodeContext{
		vol: d.curVOL,
		vop: vop,
		pic: pic,
		ref: d.ref,
		counters: &d.counters,
	}

	total := pic.MbWidth * pic.MbHeight
	mbAddr := 0
	mbNumberBits := mbNumberBitsFor(pic)
	for mbAddr < total {
		mbX, mbY := mbAddr%pic.MbWidth, mbAddr/pic.MbWidth
		if err := decodeMacroblock(r, ctx, mbX, mbY); err != nil {
			fillSkippedMBs(ctx, mbAddr, total)
			break
		}
		mbAddr++
		if !d.curVOL.ResyncMarkerDisable && mbAddr < total && r.IsByteAligned() {
			if findResyncMarker(r) {
				d.counters.ResyncRecoveries++
				hdr, err := parseVideoPacketHeader(r, d.curVOL, vop, mbNumberBits)
				if err != nil {
					fillSkippedMBs(ctx, mbAddr, total)
					break
				}
				if hdr.MbNumber > mbAddr {
					fillSkippedMBs(ctx, mbAddr, hdr.MbNumber)
				}
				mbAddr = hdr.MbNumber
			}
		}
	}

	if vop.PicType != VOPTypeB {
		d.ref = pic
	}

	return toVideoFrame(pic), nil
}

func toVideoFrame(pic *Picture) *media.VideoFrame {
	pictureType := media.PictureUnknown
	switch pic.PicType {
	case VOPTypeI:
		pictureType = media.PictureI
	case VOPTypeP, VOPTypeS:
		pictureType = media.PictureP
	case VOPTypeB:
		pictureType = media.PictureB
	}
	return &media.VideoFrame{
		Width: pic.Width,
		Height: pic.Height,
		PixelFormat: media.YUV420P,
		Planes: [3][]byte{pic.Y, pic.U, pic.V},
		Linesize: [3]int{pic.YStride, pic.CStride, pic.CStride},
		PictureType: pictureType,
		IsKeyframe: pic.PicType == VOPTypeI,
	}
}

// Counters exposes the error-containment counters §4.8 names, mirroring
// the h264 package's observability convention.
func (d *Decoder) Counters() (cbpyFallbacks, resyncRecoveries, malformedMbDrops int64) {
	return d.counters.CBPYFallbacks, d.counters.ResyncRecoveries, d.counters.MalformedMbDrops
}

// ContainmentCounters implements codec.ContainmentReporter; see the h264
// package's equivalent.
func (d *Decoder) ContainmentCounters() map[string]int64 {
	cbpy, resync, malformed := d.Counters()
	return map[string]int64{
		"cbpy_fallback": cbpy,
		"resync_recovery": resync,
		"malformed_drops": malformed,
	}
}
