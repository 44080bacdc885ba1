package flac

import (
	"testing"

	"github.com/bramblemedia/reelcore/internal/media"
)

// bitWriter is a minimal MSB-first bit packer for constructing test frames.
type bitWriter struct {
	bits []bool
}

func (w *bitWriter) push(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, (v>>uint(i))&1 == 1)
	}
}

func (w *bitWriter) pushSigned(v int32, n int) {
	w.push(uint32(v)&((1<<uint(n))-1), n)
}

func (w *bitWriter) bytes() []byte {
	out := make([]byte, (len(w.bits)+7)/8)
	for i, b := range w.bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// buildConstantMonoFrame builds a minimal one-channel FLAC frame with a
// CONSTANT subframe, matching the "minimal FLAC constant frame" scenario:
// block size 192 and 16-bit depth taken from the frame header (block-size
// code 1, sample-size code 4), sample rate taken from STREAMINFO (code 0),
// frame number 0.
func buildConstantMonoFrame(value int32) []byte {
	var w bitWriter
	w.push(0x3FFE, 14) // sync
	w.push(0, 1)       // reserved
	w.push(0, 1)       // fixed blocking strategy
	w.push(1, 4)       // block size code -> 192
	w.push(0, 4)       // sample rate code -> from STREAMINFO
	w.push(0, 4)       // channel assignment -> 1 channel (mono)
	w.push(4, 3)       // sample size code -> 16 bits
	w.push(0, 1)       // reserved
	w.push(0, 8)       // frame number, UTF8-encoded as a single zero byte
	w.push(0, 8)       // header CRC-8 (not verified by the decoder)

	// Subframe: CONSTANT, no wasted bits, 16-bit signed sample value.
	w.push(0, 1)           // subframe padding bit
	w.push(0, 6)           // subframe type: CONSTANT
	w.push(0, 1)           // wasted-bits flag
	w.pushSigned(value, 16) // constant sample value

	w.push(0, 16) // frame footer CRC-16 (not verified by the decoder)
	return w.bytes()
}

func TestDecodeFrameConstantMono(t *testing.T) {
	si := StreamInfo{
		SampleRate:    44100,
		Channels:      1,
		BitsPerSample: 16,
		MinBlockSize:  192,
		MaxBlockSize:  192,
	}
	data := buildConstantMonoFrame(1234)

	frame, err := decodeFrame(data, si)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if frame.NbSamples != 192 {
		t.Errorf("NbSamples = %d, want 192", frame.NbSamples)
	}
	if frame.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", frame.SampleRate)
	}
	if frame.ChannelLayout.Channels != 1 {
		t.Errorf("Channels = %d, want 1", frame.ChannelLayout.Channels)
	}
	if frame.SampleFormat != media.SampleS16P {
		t.Errorf("SampleFormat = %v, want SampleS16P", frame.SampleFormat)
	}
	if len(frame.Planes) != 1 {
		t.Fatalf("Planes = %d, want 1", len(frame.Planes))
	}
	plane := frame.Planes[0]
	if len(plane) != 192*2 {
		t.Fatalf("plane length = %d, want %d", len(plane), 192*2)
	}
	for i := 0; i < 192; i++ {
		got := int16(uint16(plane[i*2]) | uint16(plane[i*2+1])<<8)
		if got != 1234 {
			t.Fatalf("sample %d = %d, want 1234", i, got)
		}
	}
}

func TestDecodeFrameRejectsBadSync(t *testing.T) {
	data := buildConstantMonoFrame(0)
	data[0] = 0x00 // corrupt the sync code
	si := StreamInfo{SampleRate: 44100, Channels: 1, BitsPerSample: 16}
	if _, err := decodeFrame(data, si); err == nil {
		t.Fatal("expected error for bad frame sync")
	}
}

func TestDecoderSendReceiveRoundTrip(t *testing.T) {
	d := &Decoder{}
	streamInfo := []byte{
		0x00, 0xC0, // min block size 192
		0x00, 0xC0, // max block size 192
		0x00, 0x00, 0x00, // min frame size (unused by decoder)
		0x00, 0x00, 0x00, // max frame size (unused by decoder)
	}
	// Pack sample rate (20 bits)=44100, channels-1 (3 bits)=0, bps-1 (5 bits)=15,
	// total samples (36 bits)=0, then 16 bytes MD5.
	var w bitWriter
	w.push(44100, 20)
	w.push(0, 3)
	w.push(15, 5)
	w.push(0, 36)
	streamInfo = append(streamInfo, w.bytes()...)
	streamInfo = append(streamInfo, make([]byte, 16)...) // MD5

	if err := d.Open(media.CodecParameters{ExtraData: streamInfo}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pkt := &media.Packet{Payload: buildConstantMonoFrame(42)}
	if err := d.SendPacket(pkt); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	frame, err := d.ReceiveFrame()
	if err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}
	af, ok := frame.(*media.AudioFrame)
	if !ok {
		t.Fatalf("frame type = %T, want *media.AudioFrame", frame)
	}
	if af.NbSamples != 192 {
		t.Errorf("NbSamples = %d, want 192", af.NbSamples)
	}

	if err := d.SendPacket(&media.Packet{}); err != nil { // flush
		t.Fatalf("SendPacket(flush): %v", err)
	}
	if _, err := d.ReceiveFrame(); err == nil {
		t.Fatal("expected Eof after flush with no pending frames")
	}
}
