package aiff

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
)

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func chunk(id string, body []byte) []byte {
	out := append([]byte(id), be32(uint32(len(body)))...)
	out = append(out, body...)
	if len(body)%2 != 0 {
		out = append(out, 0) // pad byte, not counted in size
	}
	return out
}

// ieeeExtended80 encodes a positive integer sample rate as an 80-bit IEEE
// extended float, the inverse of readIEEEExtended, for test-fixture use.
func ieeeExtended80(v int) []byte {
	out := make([]byte, 10)
	if v == 0 {
		return out
	}
	exponent := 0
	mantissa := uint64(v)
	for mantissa < 1<<63 {
		mantissa <<= 1
		exponent--
	}
	exponent += 63 + 16383
	out[0] = byte(exponent >> 8)
	out[1] = byte(exponent)
	for i := 0; i < 8; i++ {
		out[9-i] = byte(mantissa >> uint(8*i))
	}
	return out
}

func buildCOMM(channels uint16, numFrames uint32, bits uint16, rate int) []byte {
	body := make([]byte, 0, 18)
	body = append(body, be16(channels)...)
	body = append(body, be32(numFrames)...)
	body = append(body, be16(bits)...)
	body = append(body, ieeeExtended80(rate)...)
	return body
}

func buildSSND(samples []byte) []byte {
	body := append([]byte{}, be32(0)...) // offset
	body = append(body, be32(0)...)      // blockSize
	body = append(body, samples...)
	return body
}

func buildMinimalAIFF(numFrames int, channels int, bits int) []byte {
	frameSize := channels * (bits / 8)
	samples := make([]byte, numFrames*frameSize)
	for i := range samples {
		samples[i] = byte(i + 1)
	}
	comm := chunk("COMM", buildCOMM(uint16(channels), uint32(numFrames), uint16(bits), 44100))
	ssnd := chunk("SSND", buildSSND(samples))

	body := append([]byte("AIFF"), comm...)
	body = append(body, ssnd...)
	out := append([]byte("FORM"), be32(uint32(len(body)))...)
	out = append(out, body...)
	return out
}

func TestProbeRecognizesAIFF(t *testing.T) {
	data := buildMinimalAIFF(10, 2, 16)
	score, ok := probe(data, "")
	if !ok || score != 100 {
		t.Fatalf("probe() = (%d, %v), want (100, true)", score, ok)
	}
}

func TestProbeRejectsNonAIFF(t *testing.T) {
	if _, ok := probe([]byte("RIFFxxxxWAVEfmt "), ""); ok {
		t.Fatalf("probe() matched a non-AIFF RIFF file")
	}
}

func TestOpenParsesStreamParams(t *testing.T) {
	data := buildMinimalAIFF(10000, 2, 16)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	streams := d.Streams()
	if len(streams) != 1 {
		t.Fatalf("len(Streams()) = %d, want 1", len(streams))
	}
	audio := streams[0].Params.Audio
	if audio == nil || audio.SampleRate != 44100 {
		t.Fatalf("audio params = %+v, want 44100Hz", audio)
	}
	if audio.ChannelLayout.Channels != 2 {
		t.Errorf("channels = %d, want 2", audio.ChannelLayout.Channels)
	}
	if streams[0].Duration != 10000 {
		t.Errorf("Duration = %d, want 10000 sample-frames", streams[0].Duration)
	}
}

func TestReadPacketCoversAllFrames(t *testing.T) {
	const numFrames = 10000
	data := buildMinimalAIFF(numFrames, 2, 16)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	var totalFrames int64
	var lastPTS int64 = -1
	for {
		pkt, err := d.ReadPacket()
		if errors.Is(err, errs.ErrEof) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket() error: %v", err)
		}
		if pkt.PTS <= lastPTS && totalFrames > 0 {
			t.Errorf("PTS %d did not increase from %d", pkt.PTS, lastPTS)
		}
		lastPTS = pkt.PTS
		totalFrames += pkt.Duration
	}
	if totalFrames != numFrames {
		t.Fatalf("total frames read = %d, want %d", totalFrames, numFrames)
	}
}

func TestResolveCodecRejectsUnsupportedCompression(t *testing.T) {
	if _, err := resolveCodec("AIFC", "ima4", 16); err == nil {
		t.Fatalf("resolveCodec() accepted an unsupported compression type")
	}
	id, err := resolveCodec("AIFC", "sowt", 16)
	if err != nil {
		t.Fatalf("resolveCodec(sowt) error: %v", err)
	}
	if id.String() != "pcm_s16le" {
		t.Errorf("resolveCodec(sowt) = %v, want pcm_s16le", id)
	}
}
