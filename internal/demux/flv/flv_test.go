package flv

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
)

func be24(v int) []byte { return []byte{byte(v >> 16), byte(v >> 8), byte(v)} }

// flvTimestamp packs a tag's 24+8-bit extended timestamp field (low 24 bits,
// then the high byte), per the FLV tag header.
func flvTimestamp(ms int64) []byte {
	return []byte{byte(ms >> 16), byte(ms >> 8), byte(ms), byte(ms >> 24)}
}

// buildTag assembles one complete FLV tag: header + payload + the trailing
// 4-byte previous-tag-size (computed from this tag's own total length).
func buildTag(tagType byte, timestamp int64, payload []byte) []byte {
	var out []byte
	out = append(out, tagType)
	out = append(out, be24(len(payload))...)
	out = append(out, flvTimestamp(timestamp)...)
	out = append(out, 0, 0, 0) // stream id, always 0
	out = append(out, payload...)
	tagLen := 11 + len(payload)
	prevSize := make([]byte, 4)
	binary.BigEndian.PutUint32(prevSize, uint32(tagLen))
	out = append(out, prevSize...)
	return out
}

func buildFileHeader() []byte {
	out := []byte("FLV")
	out = append(out, 1)          // version
	out = append(out, 0x05)       // flags: audio + video present
	out = append(out, 0, 0, 0, 9) // data offset = 9
	out = append(out, 0, 0, 0, 0) // PreviousTagSize0
	return out
}

func buildAACSequenceHeaderTag() []byte {
	payload := []byte{0xAF, 0x00} // soundFormat=AAC(10),soundRate=3,soundSize=1,soundType=1; AACPacketType=0
	payload = append(payload, 0x12, 0x10)
	return buildTag(tagTypeAudio, 0, payload)
}

func buildAACRawTag(timestamp int64) []byte {
	payload := []byte{0xAF, 0x01} // AACPacketType=1 (raw)
	payload = append(payload, make([]byte, 20)...)
	return buildTag(tagTypeAudio, timestamp, payload)
}

func buildAVCSequenceHeaderTag() []byte {
	payload := []byte{0x17, 0x00} // frameType=1(key),codecID=7(AVC); AVCPacketType=0
	payload = append(payload, 0, 0, 0)  // composition time offset (always 0 on a sequence header)
	payload = append(payload, 1, 0x64, 0, 0x1E, 0xFF, 0xE1, 0, 5, 0x67, 0, 0, 0, 0, 0, 0xE1, 0, 4, 0x68, 0, 0, 0)
	return buildTag(tagTypeVideo, 0, payload)
}

func buildAVCNALUTag(timestamp int64, keyframe bool, cts int) []byte {
	frameType := byte(2)
	if keyframe {
		frameType = 1
	}
	payload := []byte{frameType<<4 | 7, 0x01} // AVCPacketType=1 (NALU)
	payload = append(payload, be24(cts)...)
	nal := make([]byte, 16)
	lengthPrefixed := append(be32(len(nal)), nal...)
	payload = append(payload, lengthPrefixed...)
	return buildTag(tagTypeVideo, timestamp, payload)
}

func be32(v int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

// buildMinimalFLV assembles a file header followed by an AAC sequence
// header, an AVC sequence header, then two video frames (one keyframe, one
// inter-frame with a nonzero composition-time offset) and two audio frames.
func buildMinimalFLV() []byte {
	var out []byte
	out = append(out, buildFileHeader()...)
	out = append(out, buildAACSequenceHeaderTag()...)
	out = append(out, buildAVCSequenceHeaderTag()...)
	out = append(out, buildAVCNALUTag(0, true, 0)...)
	out = append(out, buildAACRawTag(0)...)
	out = append(out, buildAVCNALUTag(33, false, 66)...)
	out = append(out, buildAACRawTag(23)...)
	return out
}

func TestProbeRecognizesFLV(t *testing.T) {
	data := buildMinimalFLV()
	score, ok := probe(data, "")
	if !ok || score != 100 {
		t.Fatalf("probe() = (%d, %v), want (100, true)", score, ok)
	}
}

func TestProbeRejectsNonFLV(t *testing.T) {
	if _, ok := probe([]byte("not an flv file"), ""); ok {
		t.Fatalf("probe() matched non-FLV data")
	}
}

func TestOpenResolvesCodecsAndExtraData(t *testing.T) {
	data := buildMinimalFLV()
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	streams := d.Streams()
	if len(streams) != 2 {
		t.Fatalf("len(Streams()) = %d, want 2", len(streams))
	}
	var audio, video *media.Stream
	for i := range streams {
		switch streams[i].MediaType {
		case media.Audio:
			audio = &streams[i]
		case media.Video:
			video = &streams[i]
		}
	}
	if audio == nil || video == nil {
		t.Fatalf("expected one audio and one video stream, got %+v", streams)
	}
	if audio.CodecID != media.CodecAAC {
		t.Errorf("audio CodecID = %v, want CodecAAC", audio.CodecID)
	}
	if len(audio.ExtraData) != 2 {
		t.Errorf("audio ExtraData len = %d, want 2 (AudioSpecificConfig)", len(audio.ExtraData))
	}
	if video.CodecID != media.CodecH264 {
		t.Errorf("video CodecID = %v, want CodecH264", video.CodecID)
	}
	if len(video.ExtraData) == 0 {
		t.Errorf("video ExtraData empty, want the AVCDecoderConfigurationRecord")
	}
}

func TestReadPacketSkipsSequenceHeadersAndComputesPTS(t *testing.T) {
	data := buildMinimalFLV()
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	var videoPTS []int64
	var videoKeyframes []bool
	var n int
	for {
		pkt, err := d.ReadPacket()
		if errors.Is(err, errs.ErrEof) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket() error: %v", err)
		}
		n++
		if pkt.StreamIndex == videoStreamIndex(d) {
			videoPTS = append(videoPTS, pkt.PTS)
			videoKeyframes = append(videoKeyframes, pkt.IsKeyframe)
		}
	}
	if n != 4 {
		t.Fatalf("read %d packets, want 4 (sequence headers must be skipped)", n)
	}
	if len(videoPTS) != 2 {
		t.Fatalf("read %d video packets, want 2", len(videoPTS))
	}
	if videoPTS[0] != 0 {
		t.Errorf("first video PTS = %d, want 0", videoPTS[0])
	}
	if videoPTS[1] != 33+66 {
		t.Errorf("second video PTS = %d, want dts(33)+cts(66)=99", videoPTS[1])
	}
	if !videoKeyframes[0] || videoKeyframes[1] {
		t.Errorf("video keyframes = %v, want [true, false]", videoKeyframes)
	}
}

func videoStreamIndex(d *Demuxer) int { return d.video.streamIndex }

func TestResolveAudioCodecRejectsUnsupportedFormat(t *testing.T) {
	id, _ := resolveAudioCodec(1, 1) // ADPCM
	if id != media.CodecUnknown {
		t.Errorf("resolveAudioCodec(ADPCM) = %v, want CodecUnknown", id)
	}
}

func TestSigned24SignExtends(t *testing.T) {
	if got := signed24([]byte{0xFF, 0xFF, 0xFF}); got != -1 {
		t.Errorf("signed24(0xFFFFFF) = %d, want -1", got)
	}
	if got := signed24([]byte{0x00, 0x00, 0x42}); got != 0x42 {
		t.Errorf("signed24(0x000042) = %d, want 0x42", got)
	}
}
