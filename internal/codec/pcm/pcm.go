// Package pcm implements the trivial send_packet/receive_frame decoders for
// raw PCM variants this package enumerates: U8, S16LE, S16BE, S24LE, S32LE, F32LE.
// Each packet maps to exactly one AudioFrame with no cross-packet state,
// other than the byte-width bookkeeping needed to reject a packet whose
// length is not a whole number of sample-frames.
package pcm

import (
	"encoding/binary"

	"github.com/bramblemedia/reelcore/internal/codec"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
)

func init() {
	codec.Register(media.CodecPCMU8, func() codec.Decoder { return newDecoder(media.CodecPCMU8) })
	codec.Register(media.CodecPCMS16LE, func() codec.Decoder { return newDecoder(media.CodecPCMS16LE) })
	codec.Register(media.CodecPCMS16BE, func() codec.Decoder { return newDecoder(media.CodecPCMS16BE) })
	codec.Register(media.CodecPCMS24LE, func() codec.Decoder { return newDecoder(media.CodecPCMS24LE) })
	codec.Register(media.CodecPCMS32LE, func() codec.Decoder { return newDecoder(media.CodecPCMS32LE) })
	codec.Register(media.CodecPCMF32LE, func() codec.Decoder { return newDecoder(media.CodecPCMF32LE) })
}

type Decoder struct {
	id media.CodecID
	opened bool
	sampleRate int
	layout media.ChannelLayout
	bytesPerRaw int // bytes per sample per channel in the wire format
	outFormat media.SampleFormat
	pending []*media.AudioFrame
	eof bool
}

func newDecoder(id media.CodecID) *Decoder { return &Decoder{id: id} }

func (d *Decoder) CodecID() media.CodecID { return d.id }
func (d *Decoder) Name() string { return "pcm/" + d.id.String() }

func (d *Decoder) Open(params media.CodecParameters) error {
	if params.Audio == nil {
		return errs.New(errs.InvalidArgument, d.Name(), "pcm decoder requires AudioStreamParams")
	}
	d.sampleRate = params.Audio.SampleRate
	d.layout = params.Audio.ChannelLayout
	if d.layout.Channels == 0 {
		d.layout = media.LayoutForChannelCount(2)
	}
	switch d.id {
	case media.CodecPCMU8:
		d.bytesPerRaw, d.outFormat = 1, media.SampleU8
	case media.CodecPCMS16LE, media.CodecPCMS16BE:
		d.bytesPerRaw, d.outFormat = 2, media.SampleS16
	case media.CodecPCMS24LE:
		d.bytesPerRaw, d.outFormat = 3, media.SampleS32 // widened to S32 packed on output
	case media.CodecPCMS32LE:
		d.bytesPerRaw, d.outFormat = 4, media.SampleS32
	case media.CodecPCMF32LE:
		d.bytesPerRaw, d.outFormat = 4, media.SampleF32
	default:
		return errs.Newf(errs.InvalidArgument, d.Name(), "unsupported pcm codec id %v", d.id)
	}
	d.opened = true
	return nil
}

func (d *Decoder) Flush() {
	d.pending = nil
	d.eof = false
}

func (d *Decoder) SendPacket(pkt *media.Packet) error {
	if !d.opened {
		return errs.New(errs.Codec, d.Name(), "send_packet before open")
	}
	if pkt.IsFlush() {
		d.eof = true
		return nil
	}
	frameSize := d.bytesPerRaw * d.layout.Channels
	if frameSize == 0 || len(pkt.Payload)%frameSize != 0 {
		return errs.Newf(errs.InvalidData, d.Name(), "packet length %d not a multiple of frame size %d", len(pkt.Payload), frameSize)
	}
	nbSamples := len(pkt.Payload) / frameSize
	out := convert(d.id, pkt.Payload, d.bytesPerRaw, d.layout.Channels, d.outFormat)
	frame := &media.AudioFrame{
		NbSamples: nbSamples,
		SampleRate: d.sampleRate,
		SampleFormat: d.outFormat,
		ChannelLayout: d.layout,
		Planes: [][]byte{out},
		PTS: pkt.PTS,
		DTS: pkt.DTS,
		Duration: pkt.Duration,
		TimeBase: pkt.TimeBase,
	}
	d.pending = append(d.pending, frame)
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

// convert re-encodes raw wire samples into the packed output SampleFormat,
// handling endianness and the 24->32 bit widening S24LE requires.
func convert(id media.CodecID, in []byte, bytesPerRaw, channels int, outFormat media.SampleFormat) []byte {
	switch id {
	case media.CodecPCMS16BE:
		out := make([]byte, len(in))
		for i := 0; i+1 < len(in); i += 2 {
			v := binary.BigEndian.Uint16(in[i : i+2])
			binary.LittleEndian.PutUint16(out[i:i+2], v)
		}
		return out
	case media.CodecPCMS24LE:
		n := len(in) / 3
		out := make([]byte, n*4)
		for i := 0; i < n; i++ {
			b0, b1, b2 := in[i*3], in[i*3+1], in[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if b2&0x80 != 0 {
				v |= int32(-1) << 24
			}
			binary.LittleEndian.PutUint32(out[i*4:i*4+4], uint32(v))
		}
		return out
	default:
		out := make([]byte, len(in))
		copy(out, in)
		return out
	}
}
