package pcm

import (
	"testing"

	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
)

func openStereo(t *testing.T, id media.CodecID) *Decoder {
	t.Helper()
	d := newDecoder(id)
	err := d.Open(media.CodecParameters{
		CodecID: id,
		Audio: &media.AudioStreamParams{
			SampleRate:    48000,
			ChannelLayout: media.LayoutForChannelCount(2),
		},
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return d
}

func TestS16LEPassesThroughUnchanged(t *testing.T) {
	d := openStereo(t, media.CodecPCMS16LE)
	payload := []byte{0x01, 0x02, 0x03, 0x04} // one stereo frame
	if err := d.SendPacket(&media.Packet{Payload: payload, PTS: 10, TimeBase: ratio.New(1, 48000)}); err != nil {
		t.Fatalf("SendPacket() error = %v", err)
	}
	frame, err := d.ReceiveFrame()
	if err != nil {
		t.Fatalf("ReceiveFrame() error = %v", err)
	}
	af := frame.(*media.AudioFrame)
	if af.NbSamples != 1 {
		t.Fatalf("NbSamples = %d, want 1", af.NbSamples)
	}
	if af.SampleFormat != media.SampleS16 {
		t.Fatalf("SampleFormat = %v, want SampleS16", af.SampleFormat)
	}
	if string(af.Planes[0]) != string(payload) {
		t.Fatalf("Planes[0] = %v, want unchanged %v", af.Planes[0], payload)
	}
}

func TestS16BESwapsByteOrder(t *testing.T) {
	d := openStereo(t, media.CodecPCMS16BE)
	// big-endian 0x0102 0x0304 -> little-endian bytes 0x02 0x01 0x04 0x03
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if err := d.SendPacket(&media.Packet{Payload: payload}); err != nil {
		t.Fatalf("SendPacket() error = %v", err)
	}
	frame, _ := d.ReceiveFrame()
	af := frame.(*media.AudioFrame)
	want := []byte{0x02, 0x01, 0x04, 0x03}
	if string(af.Planes[0]) != string(want) {
		t.Fatalf("Planes[0] = %v, want %v", af.Planes[0], want)
	}
}

func TestS24LEWidensAndSignExtendsNegativeSamples(t *testing.T) {
	d := openStereo(t, media.CodecPCMS24LE)
	// one mono-channel 24-bit sample per "channel" slot: 0xFFFFFF (-1) and 0x000001 (1)
	payload := []byte{0xff, 0xff, 0xff, 0x01, 0x00, 0x00}
	if err := d.SendPacket(&media.Packet{Payload: payload}); err != nil {
		t.Fatalf("SendPacket() error = %v", err)
	}
	frame, _ := d.ReceiveFrame()
	af := frame.(*media.AudioFrame)
	if af.SampleFormat != media.SampleS32 {
		t.Fatalf("SampleFormat = %v, want SampleS32", af.SampleFormat)
	}
	want := []byte{0xff, 0xff, 0xff, 0xff, 0x01, 0x00, 0x00, 0x00}
	if string(af.Planes[0]) != string(want) {
		t.Fatalf("Planes[0] = %v, want %v", af.Planes[0], want)
	}
}

func TestSendPacketRejectsMisalignedLength(t *testing.T) {
	d := openStereo(t, media.CodecPCMS16LE)
	err := d.SendPacket(&media.Packet{Payload: []byte{0x01, 0x02, 0x03}})
	if kind, ok := errs.KindOf(err); !ok || kind != errs.InvalidData {
		t.Fatalf("SendPacket() error kind = %v, %v; want InvalidData, true", kind, ok)
	}
}

func TestFlushThenReceiveReturnsEof(t *testing.T) {
	d := openStereo(t, media.CodecPCMS16LE)
	if err := d.SendPacket(&media.Packet{}); err != nil { // empty payload == flush sentinel
		t.Fatalf("SendPacket(flush) error = %v", err)
	}
	if _, err := d.ReceiveFrame(); err != errs.ErrEof {
		t.Fatalf("ReceiveFrame() after flush = %v, want ErrEof", err)
	}
}

func TestReceiveFrameWithNoPendingDataReturnsNeedMoreData(t *testing.T) {
	d := openStereo(t, media.CodecPCMS16LE)
	if _, err := d.ReceiveFrame(); err != errs.ErrNeedMoreData {
		t.Fatalf("ReceiveFrame() with nothing sent = %v, want ErrNeedMoreData", err)
	}
}

func TestSendPacketBeforeOpenIsCodecError(t *testing.T) {
	d := newDecoder(media.CodecPCMS16LE)
	err := d.SendPacket(&media.Packet{Payload: []byte{0, 0}})
	if kind, ok := errs.KindOf(err); !ok || kind != errs.Codec {
		t.Fatalf("SendPacket before Open error kind = %v, %v; want Codec, true", kind, ok)
	}
}
