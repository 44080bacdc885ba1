package mp3

import (
	"testing"

	"github.com/bramblemedia/reelcore/internal/media"
)

// monoHeaderBytes builds the 4-byte header for a 44.1kHz/128kbps/mono,
// unprotected (no CRC) MPEG-1 Layer III frame.
func monoHeaderBytes() []byte {
	return []byte{0xFF, 0xFA, 0x90, 0xC0}
}

func TestParseHeaderMono(t *testing.T) {
	hdr, err := ParseHeader(monoHeaderBytes())
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if hdr.Version != versionMPEG1 {
		t.Errorf("Version = %d, want MPEG1", hdr.Version)
	}
	if hdr.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", hdr.SampleRate)
	}
	if hdr.BitrateKbps != 128 {
		t.Errorf("BitrateKbps = %d, want 128", hdr.BitrateKbps)
	}
	if hdr.NbChannels != 1 {
		t.Errorf("NbChannels = %d, want 1", hdr.NbChannels)
	}
	if !hdr.Protection {
		t.Errorf("Protection = false, want true (no CRC)")
	}
}

func TestParseHeaderRejectsBadSync(t *testing.T) {
	data := monoHeaderBytes()
	data[0] = 0x00
	if _, err := ParseHeader(data); err == nil {
		t.Fatal("expected error for bad sync")
	}
}

func TestParseHeaderRejectsNonLayer3(t *testing.T) {
	data := monoHeaderBytes()
	data[1] = 0xFC // layer bits -> 10 (Layer II)
	if _, err := ParseHeader(data); err == nil {
		t.Fatal("expected error for non-Layer-III stream")
	}
}

func TestSideInfoSizeTable(t *testing.T) {
	mono1, _ := ParseHeader(monoHeaderBytes())
	if got := sideInfoSize(mono1); got != 17 {
		t.Errorf("mono MPEG1 side info size = %d, want 17", got)
	}
	stereoHdr := mono1
	stereoHdr.NbChannels = 2
	if got := sideInfoSize(stereoHdr); got != 32 {
		t.Errorf("stereo MPEG1 side info size = %d, want 32", got)
	}
}

// buildSilentMonoFrame builds a minimal MPEG-1 Layer III mono frame whose
// side info codes part2_3_length=0 for both granules (no Huffman spectral
// data to read), decoding to 1152 samples of silence.
func buildSilentMonoFrame() []byte {
	payload := append([]byte{}, monoHeaderBytes()...)
	payload = append(payload, make([]byte, 17)...) // all-zero side info
	return payload
}

func TestDecoderSendReceiveSilentFrame(t *testing.T) {
	d := &Decoder{}
	if err := d.Open(media.CodecParameters{Audio: &media.AudioStreamParams{
		SampleRate:    44100,
		ChannelLayout: media.LayoutMono,
	}}); err != nil {
		t.Fatalf("Open: %v", err)
	}

	pkt := &media.Packet{Payload: buildSilentMonoFrame()}
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
	if af.NbSamples != 1152 {
		t.Errorf("NbSamples = %d, want 1152", af.NbSamples)
	}
	if af.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", af.SampleRate)
	}
	if len(af.Planes) != 1 {
		t.Fatalf("Planes = %d, want 1", len(af.Planes))
	}
	if af.SampleFormat != media.SampleF32P {
		t.Errorf("SampleFormat = %v, want SampleF32P", af.SampleFormat)
	}

	if err := d.SendPacket(&media.Packet{}); err != nil { // flush
		t.Fatalf("SendPacket(flush): %v", err)
	}
	if _, err := d.ReceiveFrame(); err == nil {
		t.Fatal("expected Eof after flush with no pending frames")
	}
}

func TestRequantizeZeroIsZero(t *testing.T) {
	gi := granuleInfo{globalGain: 140}
	if v := requantize(0, gi, 10, 3, -1); v != 0 {
		t.Errorf("requantize(0,...) = %v, want 0", v)
	}
}

func TestRequantizeSignPreserved(t *testing.T) {
	gi := granuleInfo{globalGain: 210}
	pos := requantize(5, gi, 0, 0, -1)
	neg := requantize(-5, gi, 0, 0, -1)
	if pos <= 0 {
		t.Errorf("requantize(5,...) = %v, want > 0", pos)
	}
	if neg >= 0 {
		t.Errorf("requantize(-5,...) = %v, want < 0", neg)
	}
	if pos != -neg {
		t.Errorf("requantize(5,...) = %v, requantize(-5,...) = %v, want equal magnitude", pos, neg)
	}
}

func TestRegionBoundariesShortBlock(t *testing.T) {
	gi := granuleInfo{windowSwitching: true, blockType: 2}
	b0, b1 := regionBoundaries(gi)
	if b0 != 36 || b1 != 576 {
		t.Errorf("regionBoundaries(short) = (%d,%d), want (36,576)", b0, b1)
	}
}
