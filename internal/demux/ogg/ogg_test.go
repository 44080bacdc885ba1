package ogg

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/bramblemedia/reelcore/internal/crcutil"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
)

func le64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}
func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// buildPage packs one or more packets (each already known to be small
// enough for single-segment lacing) into one Ogg page.
func buildPage(headerType byte, granule int64, serial uint32, sequence uint32, packets [][]byte) []byte {
	var segTable []byte
	var body []byte
	for _, pkt := range packets {
		if len(pkt) >= 255 {
			panic("test fixture packet too large for single-segment lacing")
		}
		segTable = append(segTable, byte(len(pkt)))
		body = append(body, pkt...)
	}
	out := []byte("OggS")
	out = append(out, 0) // version
	out = append(out, headerType)
	out = append(out, le64(granule)...)
	out = append(out, le32(serial)...)
	out = append(out, le32(sequence)...)
	out = append(out, le32(0)...) // CRC, unchecked by this package
	out = append(out, byte(len(segTable)))
	out = append(out, segTable...)
	out = append(out, body...)
	return out
}

func buildFlacIdentPacket(sampleRate, channels, bitsPerSample int, nMoreHeaderPackets uint16) []byte {
	out := []byte("\x7FFLAC")
	out = append(out, 1, 0) // major, minor
	nh := make([]byte, 2)
	binary.BigEndian.PutUint16(nh, nMoreHeaderPackets)
	out = append(out, nh...)
	out = append(out, []byte("fLaC")...)
	out = append(out, 0x80, 0, 0, 34) // metadata block header: last=1, type=0 (STREAMINFO), length=34
	si := make([]byte, 34)
	// minBlock/maxBlock = 4096 (bits 0..31), sampleRate(20 bits)/channels(3)/bits(5) at bit 80,
	// built the same way flac.encodeStreamInfo does — inlined here to avoid
	// depending on the sibling flac demux package from this test.
	binary.BigEndian.PutUint16(si[0:2], 4096)
	binary.BigEndian.PutUint16(si[2:4], 4096)
	word := uint32(sampleRate)<<12 | uint32(channels-1)<<9 | uint32(bitsPerSample-1)<<4
	binary.BigEndian.PutUint32(si[10:14], word)
	out = append(out, si...)
	return out
}

func buildFlacFramePacket(frameNumber, blockSizeCode, sampleRateCode, channelAssign, sampleSizeCode int) []byte {
	word := uint32(0x3FFE<<18) | uint32(blockSizeCode<<12) | uint32(sampleRateCode<<8) |
		uint32(channelAssign<<4) | uint32(sampleSizeCode<<1)
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, word)
	hdr = append(hdr, byte(frameNumber))
	hdr = append(hdr, crcutil.CRC8(hdr))
	return append(hdr, make([]byte, 10)...)
}

func buildMinimalOggFlac(t *testing.T) []byte {
	t.Helper()
	const blockSize = 4096
	ident := buildFlacIdentPacket(44100, 2, 16, 1)
	page0 := buildPage(headerBOS, 0, 1, 0, [][]byte{ident})

	comment := []byte{0, 0, 0, 0} // dummy VORBIS_COMMENT-style placeholder, not parsed
	page1 := buildPage(0, 0, 1, 1, [][]byte{comment})

	frame0 := buildFlacFramePacket(0, 12, 9, 1, 4)
	page2 := buildPage(0, blockSize, 1, 2, [][]byte{frame0})

	frame1 := buildFlacFramePacket(1, 12, 9, 1, 4)
	page3 := buildPage(headerEOS, 2*blockSize, 1, 3, [][]byte{frame1})

	var out []byte
	out = append(out, page0...)
	out = append(out, page1...)
	out = append(out, page2...)
	out = append(out, page3...)
	return out
}

func TestProbeRecognizesOgg(t *testing.T) {
	data := buildMinimalOggFlac(t)
	score, ok := probe(data, "")
	if !ok || score != 100 {
		t.Fatalf("probe() = (%d, %v), want (100, true)", score, ok)
	}
}

func TestOpenRecognizesFlacInOgg(t *testing.T) {
	data := buildMinimalOggFlac(t)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	streams := d.Streams()
	if len(streams) != 1 {
		t.Fatalf("len(Streams()) = %d, want 1", len(streams))
	}
	if streams[0].CodecID != media.CodecFLAC {
		t.Fatalf("CodecID = %v, want CodecFLAC", streams[0].CodecID)
	}
	if streams[0].Params.Audio == nil || streams[0].Params.Audio.SampleRate != 44100 {
		t.Errorf("audio params = %+v, want 44100Hz", streams[0].Params.Audio)
	}
	if len(streams[0].ExtraData) != 34 {
		t.Errorf("ExtraData len = %d, want 34 (STREAMINFO)", len(streams[0].ExtraData))
	}
}

func TestReadPacketSkipsHeadersAndYieldsAudio(t *testing.T) {
	data := buildMinimalOggFlac(t)
	d := &Demuxer{}
	if err := d.Open(ioutil.NewMemSource(data)); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	var packets int
	var pts []int64
	for {
		pkt, err := d.ReadPacket()
		if errors.Is(err, errs.ErrEof) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket() error: %v", err)
		}
		pts = append(pts, pkt.PTS)
		packets++
	}
	if packets != 2 {
		t.Fatalf("read %d audio packets, want 2 (header packets must be skipped)", packets)
	}
	if pts[0] != 0 || pts[1] != 4096 {
		t.Errorf("packet PTS = %v, want [0, 4096]", pts)
	}
}
