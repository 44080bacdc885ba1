package mp3

import (
	"encoding/binary"

	codecmp3 "github.com/bramblemedia/reelcore/internal/codec/mp3"
)

// xingInfo is what this package needs out of a first-frame Xing/Info/VBRI
// header: the optional frame/byte totals and, when a LAME extension trails
// it, the encoder delay/padding gapless parameters.
type xingInfo struct {
	frames         int64
	bytes          int64
	hasFrames      bool
	hasLame        bool
	encoderDelay   int
	encoderPadding int
}

// sideInfoLen mirrors the codec package's private sideInfoSize table (the
// demux layer needs it to locate where the Xing header starts within the
// frame body, which begins right after the fixed header + side info).
func sideInfoLen(hdr codecmp3.FrameHeader) int {
	if hdr.Version == 3 { // MPEG-1
		if hdr.NbChannels == 1 {
			return 17
		}
		return 32
	}
	if hdr.NbChannels == 1 {
		return 9
	}
	return 17
}

// parseXing looks for a Xing/Info (MPEG audio) or VBRI header at the start
// of the first frame's data region (right after the side info), and a
// trailing LAME extension header with gapless playback parameters, per
// "Xing/VBRI/LAME gapless extra_data" note. frameBody is the
// frame's bytes after its fixed 4-byte header.
func parseXing(frameBody []byte, hdr codecmp3.FrameHeader) *xingInfo {
	sideLen := sideInfoLen(hdr)
	crcLen := 0
	if !hdr.Protection {
		crcLen = 2
	}
	start := crcLen + sideLen
	if start+8 > len(frameBody) {
		return tryVBRI(frameBody)
	}
	tag := string(frameBody[start : start+4])
	if tag != "Xing" && tag != "Info" {
		return tryVBRI(frameBody)
	}

	info := &xingInfo{}
	pos := start + 4
	flags := binary.BigEndian.Uint32(frameBody[pos : pos+4])
	pos += 4
	const (
		flagFrames  = 1 << 0
		flagBytes   = 1 << 1
		flagTOC     = 1 << 2
		flagQuality = 1 << 3
	)
	if flags&flagFrames != 0 {
		if pos+4 > len(frameBody) {
			return info
		}
		info.frames = int64(binary.BigEndian.Uint32(frameBody[pos : pos+4]))
		info.hasFrames = true
		pos += 4
	}
	if flags&flagBytes != 0 {
		if pos+4 > len(frameBody) {
			return info
		}
		info.bytes = int64(binary.BigEndian.Uint32(frameBody[pos : pos+4]))
		pos += 4
	}
	if flags&flagTOC != 0 {
		pos += 100
	}
	if flags&flagQuality != 0 {
		pos += 4
	}

	// LAME extension: "LAME"+version string (9 bytes total), then a run of
	// fixed fields; the encoder delay/padding sit in a 3-byte field 21 bytes
	// into that run (ISO-agnostic LAME tag layout every major MP3 encoder
	// that emits gapless metadata follows).
	const (
		versionStringLen    = 9
		preDelayPaddingLen  = 1 + 1 + 4 + 2 + 2 + 1 + 1 // revision/lowpass/peak/rgRadio/rgAudiophile/flags/abr
	)
	lamePos := pos + versionStringLen + preDelayPaddingLen
	if lamePos+3 > len(frameBody) {
		return info
	}
	b0, b1, b2 := frameBody[lamePos], frameBody[lamePos+1], frameBody[lamePos+2]
	delay := (int(b0) << 4) | (int(b1) >> 4)
	padding := ((int(b1) & 0x0F) << 8) | int(b2)
	info.hasLame = true
	info.encoderDelay = delay
	info.encoderPadding = padding
	return info
}

func tryVBRI(frameBody []byte) *xingInfo {
	const vbriOffset = 32 // VBRI header sits at a fixed offset from frame data start
	if vbriOffset+4 > len(frameBody) {
		return nil
	}
	if string(frameBody[vbriOffset:vbriOffset+4]) != "VBRI" {
		return nil
	}
	if vbriOffset+14+4 > len(frameBody) {
		return &xingInfo{}
	}
	frames := binary.BigEndian.Uint32(frameBody[vbriOffset+14 : vbriOffset+18])
	return &xingInfo{frames: int64(frames), hasFrames: true}
}

// encodeGaplessExtraData packs front_skip/padding/valid_total_per_channel
// into the {u32le, u32le, u64le} layout the codec/mp3 decoder's
// decodeGaplessExtraData expects.
func encodeGaplessExtraData(frontSkip, padding, validTotal int64) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint32(out[0:4], uint32(frontSkip))
	binary.LittleEndian.PutUint32(out[4:8], uint32(padding))
	binary.LittleEndian.PutUint64(out[8:16], uint64(validTotal))
	return out
}
