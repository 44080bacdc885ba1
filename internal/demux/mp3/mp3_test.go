package mp3

import (
	"errors"
	"testing"

	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
)

// frameHeader4 builds the fixed 4-byte MPEG-1 Layer III frame header for
// 128kbps/44100Hz/stereo, no CRC, no padding — matching the bit layout
// codec/mp3.ParseHeader expects.
func frameHeader4() []byte {
	return []byte{0xFF, 0xFA, 0x90, 0x00}
}

const testFrameSize = 417 // computed: (1152/8)*128000/44100 truncated, no padding

// buildFrame pads body out to testFrameSize-4 bytes and prepends the fixed
// header, producing one complete MPEG frame.
func buildFrame(body []byte) []byte {
	out := append([]byte{}, frameHeader4()...)
	full := make([]byte, testFrameSize-4)
	copy(full, body)
	out = append(out, full...)
	return out
}

// buildXingLameBody constructs the side-info-sized prefix (stereo MPEG-1,
// no CRC => 32 bytes) followed by an "Xing" header (no optional fields) and
// a LAME extension carrying the given encoder delay/padding.
func buildXingLameBody(delay, padding int) []byte {
	body := make([]byte, 32) // side info placeholder
	body = append(body, []byte("Xing")...)
	body = append(body, 0, 0, 0, 0) // flags: no optional fields

	body = append(body, []byte("LAME3.99r")...) // 9-byte version string
	body = append(body, make([]byte, 12)...)    // revision/lowpass/peaks/gains/flags/abr

	b0 := byte(delay >> 4)
	b1 := byte(((delay & 0x0F) << 4) | ((padding >> 8) & 0x0F))
	b2 := byte(padding & 0xFF)
	body = append(body, b0, b1, b2)
	return body
}

func buildMinimalMP3(t *testing.T, delay, padding int) []byte {
	t.Helper()
	first := buildFrame(buildXingLameBody(delay, padding))
	second := buildFrame(nil)
	third := buildFrame(nil)

	out := make([]byte, 0, len(first)+len(second)+len(third))
	out = append(out, first...)
	out = append(out, second...)
	out = append(out, third...)
	return out
}

func TestProbeRecognizesMP3(t *testing.T) {
	data := buildMinimalMP3(t, 576, 1152)
	score, ok := probe(data, "")
	if !ok || score != 100 {
		t.Fatalf("probe() = (%d, %v), want (100, true)", score, ok)
	}
}

func TestProbeFallsBackToExtension(t *testing.T) {
	garbage := []byte("not an mpeg frame at all, but named right")
	if _, ok := probe(garbage, "track.mp3"); !ok {
		t.Fatalf("probe() with .mp3 filename should fall back to extension match")
	}
	if _, ok := probe(garbage, "track.txt"); ok {
		t.Fatalf("probe() matched unrelated data with no mp3 extension")
	}
}

func TestOpenIndexesAllFrames(t *testing.T) {
	data := buildMinimalMP3(t, 576, 1152)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if len(d.frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(d.frames))
	}
	streams := d.Streams()
	if len(streams) != 1 {
		t.Fatalf("len(Streams()) = %d, want 1", len(streams))
	}
	if streams[0].Params.Audio == nil || streams[0].Params.Audio.SampleRate != 44100 {
		t.Errorf("audio params = %+v, want 44100Hz", streams[0].Params.Audio)
	}
	if streams[0].Params.Audio.ChannelLayout.Channels != 2 {
		t.Errorf("channels = %d, want 2", streams[0].Params.Audio.ChannelLayout.Channels)
	}
}

func TestOpenExtractsGaplessExtraData(t *testing.T) {
	data := buildMinimalMP3(t, 576, 1152)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	streams := d.Streams()
	if len(streams[0].ExtraData) != 16 {
		t.Fatalf("ExtraData len = %d, want 16 (gapless block)", len(streams[0].ExtraData))
	}
	gapless, ok := decodeGaplessExtraDataForTest(streams[0].ExtraData)
	if !ok {
		t.Fatalf("could not decode gapless extra_data")
	}
	wantFrontSkip := int64(576 + 529)
	if gapless.frontSkip != wantFrontSkip {
		t.Errorf("frontSkip = %d, want %d", gapless.frontSkip, wantFrontSkip)
	}
}

// decodeGaplessExtraDataForTest mirrors codec/mp3's private unpacking just
// enough to assert the front_skip field this package computed.
func decodeGaplessExtraDataForTest(extra []byte) (struct{ frontSkip, padding int64 }, bool) {
	var out struct{ frontSkip, padding int64 }
	if len(extra) != 16 {
		return out, false
	}
	out.frontSkip = int64(uint32(extra[0]) | uint32(extra[1])<<8 | uint32(extra[2])<<16 | uint32(extra[3])<<24)
	out.padding = int64(uint32(extra[4]) | uint32(extra[5])<<8 | uint32(extra[6])<<16 | uint32(extra[7])<<24)
	return out, true
}

func TestReadPacketSequence(t *testing.T) {
	data := buildMinimalMP3(t, 576, 1152)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	var packets int
	var lastPTS int64 = -1
	for {
		pkt, err := d.ReadPacket()
		if errors.Is(err, errs.ErrEof) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket() error: %v", err)
		}
		if len(pkt.Payload) != testFrameSize {
			t.Errorf("packet %d payload len = %d, want %d", packets, len(pkt.Payload), testFrameSize)
		}
		if pkt.PTS <= lastPTS && packets > 0 {
			t.Errorf("packet %d PTS %d did not increase from %d", packets, pkt.PTS, lastPTS)
		}
		lastPTS = pkt.PTS
		packets++
	}
	if packets != 3 {
		t.Fatalf("read %d packets, want 3", packets)
	}
}
