package flac

import (
	"encoding/binary"
	"errors"
	"testing"

	codecflac "github.com/bramblemedia/reelcore/internal/codec/flac"
	"github.com/bramblemedia/reelcore/internal/crcutil"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
)

const (
	testBlockSizeCode   = 12 // 256<<(12-8) = 4096 samples, no extension bytes
	testSampleRateCode  = 9  // sampleRateTable[9] = 44100, no extension bytes
	testChannelAssign   = 1  // stereo, independent channels
	testSampleSizeCode  = 4  // sampleSizeTable[4] = 16 bits
	testBlockSize       = 4096
	testBodyLen         = 10
)

// buildMetadataBlockHeader packs the 1-byte (last/type) + 3-byte BE length
// header preceding every FLAC metadata block.
func buildMetadataBlockHeader(last bool, blockType byte, length int) []byte {
	b := blockType & 0x7F
	if last {
		b |= 0x80
	}
	out := []byte{b, 0, 0, 0}
	out[1] = byte(length >> 16)
	out[2] = byte(length >> 8)
	out[3] = byte(length)
	return out
}

func buildStreamInfoBlock(sampleRate, channels, bitsPerSample int, totalSamples int64) []byte {
	si := codecflac.StreamInfo{
		MinBlockSize:  testBlockSize,
		MaxBlockSize:  testBlockSize,
		MinFrameSize:  0,
		MaxFrameSize:  0,
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		TotalSamples:  totalSamples,
	}
	return encodeStreamInfo(si)
}

// buildFrame assembles one fixed-blocksize FLAC frame: a 4-byte bit-packed
// header word, a single-byte UTF-8 coded frame number (valid for the small
// indices these tests use), the header CRC-8, and a zero-filled body
// standing in for subframes + footer CRC-16 (content is irrelevant to the
// demuxer, which never decodes the payload).
func buildFrame(frameNumber int) []byte {
	word := uint32(0x3FFE<<18) | uint32(testBlockSizeCode<<12) | uint32(testSampleRateCode<<8) |
		uint32(testChannelAssign<<4) | uint32(testSampleSizeCode<<1)
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, word)
	hdr = append(hdr, byte(frameNumber)) // UTF-8 single-byte form for small values
	crc := crcutil.CRC8(hdr)
	hdr = append(hdr, crc)

	body := make([]byte, testBodyLen)
	return append(hdr, body...)
}

func buildMinimalFlac(nFrames int) []byte {
	out := []byte("fLaC")
	si := buildStreamInfoBlock(44100, 2, 16, 0)
	out = append(out, buildMetadataBlockHeader(true, blockStreamInfo, len(si))...)
	out = append(out, si...)
	for i := 0; i < nFrames; i++ {
		out = append(out, buildFrame(i)...)
	}
	return out
}

func TestProbeRecognizesFlac(t *testing.T) {
	data := buildMinimalFlac(3)
	score, ok := probe(data, "")
	if !ok || score != 100 {
		t.Fatalf("probe() = (%d, %v), want (100, true)", score, ok)
	}
}

func TestProbeRejectsNonFlac(t *testing.T) {
	if _, ok := probe([]byte("not flac at all"), ""); ok {
		t.Fatalf("probe() matched non-FLAC data")
	}
}

func TestOpenIndexesFrames(t *testing.T) {
	data := buildMinimalFlac(3)
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
	audio := streams[0].Params.Audio
	if audio == nil || audio.SampleRate != 44100 {
		t.Fatalf("audio params = %+v, want 44100Hz", audio)
	}
	if audio.ChannelLayout.Channels != 2 {
		t.Errorf("channels = %d, want 2", audio.ChannelLayout.Channels)
	}
	if streams[0].Duration != int64(3*testBlockSize) {
		t.Errorf("Duration = %d, want %d (fallback from frame scan)", streams[0].Duration, 3*testBlockSize)
	}
}

func TestReadPacketSequence(t *testing.T) {
	data := buildMinimalFlac(3)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	wantFrameLen := 4 + 1 + 1 + testBodyLen // header word + frame-number byte + crc + body
	var packets int
	for {
		pkt, err := d.ReadPacket()
		if errors.Is(err, errs.ErrEof) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket() error: %v", err)
		}
		if len(pkt.Payload) != wantFrameLen {
			t.Errorf("packet %d payload len = %d, want %d", packets, len(pkt.Payload), wantFrameLen)
		}
		if pkt.PTS != int64(packets*testBlockSize) {
			t.Errorf("packet %d PTS = %d, want %d", packets, pkt.PTS, packets*testBlockSize)
		}
		packets++
	}
	if packets != 3 {
		t.Fatalf("read %d packets, want 3", packets)
	}
}

func TestSeekLandsOnFrameBoundary(t *testing.T) {
	data := buildMinimalFlac(3)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	secondFrameUs := int64(testBlockSize) * 1_000_000 / 44100
	if err := d.Seek(secondFrameUs); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	pkt, err := d.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket() after seek error: %v", err)
	}
	if pkt.PTS != int64(testBlockSize) {
		t.Errorf("PTS after seek = %d, want %d", pkt.PTS, testBlockSize)
	}
}
