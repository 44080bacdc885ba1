package mp4

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
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

func box(typ string, content []byte) []byte {
	out := make([]byte, 0, 8+len(content))
	out = append(out, be32(uint32(8+len(content)))...)
	out = append(out, []byte(typ)...)
	out = append(out, content...)
	return out
}

func fullBoxHeader(version byte) []byte {
	return []byte{version, 0, 0, 0}
}

// buildVideoStsd constructs a minimal avc1 stsd box with a single sample
// entry and an avcC child box.
func buildVideoStsd() []byte {
	avcC := box("avcC", []byte{1, 0x42, 0x00, 0x1e, 0xff, 0xe1, 0x00, 0x00})

	entryContent := make([]byte, 0, 128)
	entryContent = append(entryContent, make([]byte, 6)...)  // reserved
	entryContent = append(entryContent, be16(1)...)          // data_reference_index
	entryContent = append(entryContent, make([]byte, 2)...)  // pre_defined
	entryContent = append(entryContent, make([]byte, 2)...)  // reserved
	entryContent = append(entryContent, make([]byte, 12)...) // pre_defined[3]
	entryContent = append(entryContent, be16(176)...)        // width
	entryContent = append(entryContent, be16(144)...)        // height
	entryContent = append(entryContent, be32(0x00480000)...) // horizresolution
	entryContent = append(entryContent, be32(0x00480000)...) // vertresolution
	entryContent = append(entryContent, make([]byte, 4)...)  // reserved
	entryContent = append(entryContent, be16(1)...)          // frame_count
	entryContent = append(entryContent, make([]byte, 32)...) // compressorname
	entryContent = append(entryContent, be16(24)...)         // depth
	entryContent = append(entryContent, []byte{0xff, 0xff}...)
	entryContent = append(entryContent, avcC...)
	entry := box("avc1", entryContent)

	stsdContent := make([]byte, 0, len(entry)+8)
	stsdContent = append(stsdContent, fullBoxHeader(0)...)
	stsdContent = append(stsdContent, be32(1)...)
	stsdContent = append(stsdContent, entry...)
	return box("stsd", stsdContent)
}

// buildAudioStsd constructs a minimal mp4a stsd box with an esds child
// carrying a 2-byte AudioSpecificConfig payload.
func buildAudioStsd() []byte {
	asc := []byte{0x12, 0x10} // AAC-LC, 44100Hz, stereo (not decoded by the test, just opaque)

	dsi := make([]byte, 0, 2+len(asc))
	dsi = append(dsi, tagDecoderSpecificInfo, byte(len(asc)))
	dsi = append(dsi, asc...)

	dcdBody := make([]byte, 0, 13+len(dsi))
	dcdBody = append(dcdBody, 0x40)             // objectTypeIndication (AAC)
	dcdBody = append(dcdBody, 0x15)             // streamType/upStream/reserved
	dcdBody = append(dcdBody, 0, 0, 0)          // bufferSizeDB
	dcdBody = append(dcdBody, be32(128000)...)  // maxBitrate
	dcdBody = append(dcdBody, be32(128000)...)  // avgBitrate
	dcdBody = append(dcdBody, dsi...)
	dcd := make([]byte, 0, 2+len(dcdBody))
	dcd = append(dcd, tagDecoderConfigDescriptor, byte(len(dcdBody)))
	dcd = append(dcd, dcdBody...)

	esBody := make([]byte, 0, 3+len(dcd))
	esBody = append(esBody, be16(1)...) // ES_ID
	esBody = append(esBody, 0)          // flags
	esBody = append(esBody, dcd...)
	es := make([]byte, 0, 2+len(esBody))
	es = append(es, tagESDescriptor, byte(len(esBody)))
	es = append(es, esBody...)

	esdsContent := make([]byte, 0, 4+len(es))
	esdsContent = append(esdsContent, fullBoxHeader(0)...)
	esdsContent = append(esdsContent, es...)
	esds := box("esds", esdsContent)

	entryContent := make([]byte, 0, 28+len(esds))
	entryContent = append(entryContent, make([]byte, 6)...) // reserved
	entryContent = append(entryContent, be16(1)...)         // data_reference_index
	entryContent = append(entryContent, make([]byte, 8)...) // version/revision/vendor
	entryContent = append(entryContent, be16(2)...)         // channelcount
	entryContent = append(entryContent, be16(16)...)        // samplesize
	entryContent = append(entryContent, make([]byte, 4)...) // pre_defined/reserved
	entryContent = append(entryContent, be32(44100<<16)...) // samplerate, 16.16 fixed
	entryContent = append(entryContent, esds...)
	entry := box("mp4a", entryContent)

	stsdContent := make([]byte, 0, len(entry)+8)
	stsdContent = append(stsdContent, fullBoxHeader(0)...)
	stsdContent = append(stsdContent, be32(1)...)
	stsdContent = append(stsdContent, entry...)
	return box("stsd", stsdContent)
}

func buildSTTS(count, delta uint32) []byte {
	c := append(fullBoxHeader(0), be32(1)...)
	c = append(c, be32(count)...)
	c = append(c, be32(delta)...)
	return box("stts", c)
}

func buildSTSC() []byte {
	c := append(fullBoxHeader(0), be32(1)...)
	c = append(c, be32(1)...) // first_chunk
	c = append(c, be32(1)...) // samples_per_chunk
	c = append(c, be32(1)...) // sample_description_index
	return box("stsc", c)
}

func buildSTSZ(size uint32) []byte {
	c := append(fullBoxHeader(0), be32(size)...)
	c = append(c, be32(1)...) // sample_count
	return box("stsz", c)
}

func buildSTCOPlaceholder() []byte {
	c := append(fullBoxHeader(0), be32(1)...)
	c = append(c, be32(0)...) // patched later
	return box("stco", c)
}

func buildMDHD(timescale, duration uint32) []byte {
	c := append(fullBoxHeader(0), be32(0)...) // creation_time
	c = append(c, be32(0)...)                 // modification_time
	c = append(c, be32(timescale)...)
	c = append(c, be32(duration)...)
	return box("mdhd", c)
}

func buildHDLR(handlerType string) []byte {
	c := append(fullBoxHeader(0), make([]byte, 4)...) // pre_defined
	c = append(c, []byte(handlerType)...)
	c = append(c, make([]byte, 13)...) // reserved[3] + empty name
	return box("hdlr", c)
}

func buildStbl(stsd, stts, stsc, stsz, stco []byte) []byte {
	c := make([]byte, 0, len(stsd)+len(stts)+len(stsc)+len(stsz)+len(stco))
	c = append(c, stsd...)
	c = append(c, stts...)
	c = append(c, stsc...)
	c = append(c, stsz...)
	c = append(c, stco...)
	return box("stbl", c)
}

func buildTrak(handlerType string, timescale uint32, stsd, sampleSize []byte) []byte {
	mdhd := buildMDHD(timescale, 1)
	hdlr := buildHDLR(handlerType)
	stts := buildSTTS(1, timescale)
	stsc := buildSTSC()
	stsz := buildSTSZ(uint32(len(sampleSize)))
	stco := buildSTCOPlaceholder()
	stbl := buildStbl(stsd, stts, stsc, stsz, stco)
	minf := box("minf", stbl)
	mdia := box("mdia", append(append([]byte{}, mdhd...), append(hdlr, minf...)...))
	return box("trak", mdia)
}

func buildMVHD(timescale, duration uint32) []byte {
	c := append(fullBoxHeader(0), be32(0)...)
	c = append(c, be32(0)...)
	c = append(c, be32(timescale)...)
	c = append(c, be32(duration)...)
	return box("mvhd", c)
}

// patchU32 overwrites a big-endian uint32 at byte offset pos within buf.
func patchU32(buf []byte, pos int, v uint32) {
	binary.BigEndian.PutUint32(buf[pos:pos+4], v)
}

// buildMinimalFile assembles ftyp + moov(mvhd, video trak, audio trak) +
// mdat(videoSample, audioSample), patching each track's stco chunk offset to
// the sample's absolute position in the final buffer.
func buildMinimalFile(t *testing.T) []byte {
	t.Helper()

	videoSample := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	audioSample := []byte{0x11, 0x22, 0x33}

	videoTrak := buildTrak("vide", 30, buildVideoStsd(), videoSample)
	audioTrak := buildTrak("soun", 44100, buildAudioStsd(), audioSample)
	mvhd := buildMVHD(1000, 2000)

	moovContent := make([]byte, 0, len(mvhd)+len(videoTrak)+len(audioTrak))
	moovContent = append(moovContent, mvhd...)
	moovContent = append(moovContent, videoTrak...)
	moovContent = append(moovContent, audioTrak...)
	moov := box("moov", moovContent)

	ftyp := box("ftyp", append([]byte("isom"), append(be32(0), []byte("isom")...)...))

	head := make([]byte, 0, len(ftyp)+len(moov))
	head = append(head, ftyp...)
	head = append(head, moov...)

	mdatHeaderLen := 8
	videoOffset := uint32(len(head) + mdatHeaderLen)
	audioOffset := videoOffset + uint32(len(videoSample))

	mdatContent := make([]byte, 0, len(videoSample)+len(audioSample))
	mdatContent = append(mdatContent, videoSample...)
	mdatContent = append(mdatContent, audioSample...)
	mdat := box("mdat", mdatContent)

	full := make([]byte, 0, len(head)+len(mdat))
	full = append(full, head...)
	full = append(full, mdat...)

	videoStcoPos := findSTCOOffsetFieldPos(t, full, 0)
	patchU32(full, videoStcoPos, videoOffset)
	audioStcoPos := findSTCOOffsetFieldPos(t, full, videoStcoPos+1)
	patchU32(full, audioStcoPos, audioOffset)

	return full
}

// findSTCOOffsetFieldPos locates the byte position of the single chunk
// offset value within the next "stco" box at or after searchFrom, by
// scanning for the literal box-type bytes (test-only convenience; real
// parsing happens in the package under test).
func findSTCOOffsetFieldPos(t *testing.T, buf []byte, searchFrom int) int {
	t.Helper()
	marker := []byte("stco")
	for i := searchFrom; i+4 <= len(buf); i++ {
		if string(buf[i:i+4]) == string(marker) {
			// box layout: [size(4)][type(4)][version/flags(4)][entry_count(4)][offset(4)]
			return i + 4 + 4 + 4
		}
	}
	t.Fatalf("stco box not found after offset %d", searchFrom)
	return -1
}

func TestProbeRecognizesFtyp(t *testing.T) {
	data := buildMinimalFile(t)
	score, ok := probe(data, "")
	if !ok || score != 100 {
		t.Fatalf("probe() = (%d, %v), want (100, true)", score, ok)
	}
}

func TestProbeRejectsNonMP4(t *testing.T) {
	if _, ok := probe([]byte("not an mp4 file at all"), ""); ok {
		t.Fatalf("probe() matched non-mp4 data")
	}
}

func TestOpenParsesStreams(t *testing.T) {
	data := buildMinimalFile(t)
	src := ioutil.NewMemSource(data)

	d := &Demuxer{}
	if err := d.Open(src); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	streams := d.Streams()
	if len(streams) != 2 {
		t.Fatalf("len(Streams()) = %d, want 2", len(streams))
	}

	var video, audio *media.Stream
	for i := range streams {
		switch streams[i].MediaType {
		case media.Video:
			video = &streams[i]
		case media.Audio:
			audio = &streams[i]
		}
	}
	if video == nil || audio == nil {
		t.Fatalf("expected one video and one audio stream, got %+v", streams)
	}
	if video.CodecID != media.CodecH264 {
		t.Errorf("video CodecID = %v, want H264", video.CodecID)
	}
	if video.Params.Video == nil || video.Params.Video.Width != 176 || video.Params.Video.Height != 144 {
		t.Errorf("video params = %+v, want 176x144", video.Params.Video)
	}
	if len(video.ExtraData) == 0 {
		t.Errorf("video ExtraData empty, want avcC payload")
	}
	if audio.CodecID != media.CodecAAC {
		t.Errorf("audio CodecID = %v, want AAC", audio.CodecID)
	}
	if audio.Params.Audio == nil || audio.Params.Audio.SampleRate != 44100 || audio.Params.Audio.ChannelLayout.Channels != 2 {
		t.Errorf("audio params = %+v, want 44100Hz stereo", audio.Params.Audio)
	}
	if len(audio.ExtraData) != 2 {
		t.Errorf("audio ExtraData = %v, want 2-byte AudioSpecificConfig", audio.ExtraData)
	}
}

func TestReadPacketInFileOrder(t *testing.T) {
	data := buildMinimalFile(t)
	src := ioutil.NewMemSource(data)

	d := &Demuxer{}
	if err := d.Open(src); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	pkt1, err := d.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket() #1 error: %v", err)
	}
	if string(pkt1.Payload) != "\xAA\xBB\xCC\xDD" {
		t.Errorf("packet #1 payload = %v, want video sample first (lowest file offset)", pkt1.Payload)
	}

	pkt2, err := d.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket() #2 error: %v", err)
	}
	if string(pkt2.Payload) != "\x11\x22\x33" {
		t.Errorf("packet #2 payload = %v, want audio sample second", pkt2.Payload)
	}

	if _, err := d.ReadPacket(); !errors.Is(err, errs.ErrEof) {
		t.Fatalf("ReadPacket() #3 error = %v, want Eof", err)
	}
}
