package ogg

import (
	"encoding/binary"

	"github.com/bramblemedia/reelcore/internal/bitio"
	codecflac "github.com/bramblemedia/reelcore/internal/codec/flac"
	"github.com/bramblemedia/reelcore/internal/media"
)

// sniffBOS identifies the codec carried by a logical stream from its first
// (beginning-of-stream) packet, per the magic bytes each mapping
// specification reserves for its identification header.
func sniffBOS(packet []byte) codecInfo {
	switch {
	case hasPrefix(packet, "\x7FFLAC"):
		return sniffFlacBOS(packet)
	case hasPrefix(packet, "\x01vorbis"):
		return sniffVorbisBOS(packet)
	case hasPrefix(packet, "OpusHead"):
		return sniffOpusBOS(packet)
	case hasPrefix(packet, "\x80theora"):
		return codecInfo{id: media.CodecTheora, mediaType: media.Video, headerPackets: 3}
	default:
		return codecInfo{id: media.CodecUnknown, mediaType: media.Data}
	}
}

func hasPrefix(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == prefix
}

// sniffFlacBOS parses the Ogg FLAC mapping's first header packet: magic
// "\x7FFLAC" + major(1) + minor(1) + number-of-header-packets(2, BE) +
// "fLaC" + a standard metadata-block-header + 34-byte STREAMINFO, per the
// xiph.org "Ogg FLAC" mapping. codec/flac.ParseStreamInfo parses the
// STREAMINFO itself, so this just locates it.
func sniffFlacBOS(packet []byte) codecInfo {
	const prefixLen = 5 + 1 + 1 + 2 + 4 // "\x7FFLAC" + major + minor + nHeader(2) + "fLaC"
	if len(packet) < prefixLen+4+34 {
		return codecInfo{id: media.CodecUnknown, mediaType: media.Data}
	}
	nHeaderPackets := int(binary.BigEndian.Uint16(packet[7:9]))
	streamInfoStart := prefixLen + 4 // skip the metadata-block-header
	streamInfoBytes := packet[streamInfoStart : streamInfoStart+34]
	si, err := codecflac.ParseStreamInfo(streamInfoBytes)
	if err != nil {
		return codecInfo{id: media.CodecUnknown, mediaType: media.Data}
	}
	return codecInfo{
		id: media.CodecFLAC,
		mediaType: media.Audio,
		sampleRate: si.SampleRate,
		channels: si.Channels,
		extraData: append([]byte{}, streamInfoBytes...),
		headerPackets: nHeaderPackets + 1, // +1 for this identification packet itself
	}
}

// sniffVorbisBOS parses just enough of the Vorbis identification header
// (magic "\x01vorbis" + version(4,LE) + channels(1) + sampleRate(4,LE) +
// bitrate_max/nominal/min(4 each) + blocksize(1) + framing(1)) to expose
// accurate stream parameters; Vorbis audio itself is not decoded by this
// module (media.CodecVorbis's doc comment), so no further header packets
// need parsing.
func sniffVorbisBOS(packet []byte) codecInfo {
	const headerLen = 7 + 4 + 1 + 4 + 4 + 4 + 4 + 1 + 1
	if len(packet) < headerLen {
		return codecInfo{id: media.CodecVorbis, mediaType: media.Audio, headerPackets: 3}
	}
	channels := int(packet[11])
	sampleRate := int(binary.LittleEndian.Uint32(packet[12:16]))
	return codecInfo{
		id: media.CodecVorbis, mediaType: media.Audio,
		sampleRate: sampleRate, channels: channels,
		headerPackets: 3, // identification + comment + setup, per the Vorbis I spec
	}
}

// sniffOpusBOS parses the OpusHead identification header (magic
// "OpusHead" + version(1) + channelCount(1) + preSkip(2,LE) +
// inputSampleRate(4,LE) + outputGain(2,LE) + channelMappingFamily(1)).
// Opus's internal decode rate is always 48kHz regardless of
// inputSampleRate; this decoder does not decode Opus, so sampleRate here is
// only descriptive metadata.
func sniffOpusBOS(packet []byte) codecInfo {
	const headerLen = 8 + 1 + 1 + 2 + 4 + 2 + 1
	if len(packet) < headerLen {
		return codecInfo{id: media.CodecOpus, mediaType: media.Audio, headerPackets: 2}
	}
	channels := int(packet[9])
	sampleRate := int(binary.LittleEndian.Uint32(packet[12:16]))
	return codecInfo{
		id: media.CodecOpus, mediaType: media.Audio,
		sampleRate: sampleRate, channels: channels,
		headerPackets: 2, // identification + comment, per RFC 7845
	}
}

// flacPacketBlockSize extracts the block size a wrapped native FLAC frame
// announces in its header, the same fields codec/flac's decodeFrame reads
// (resolveBlockSize) but without CRC-validating or sync-scanning for it:
// Ogg's own packet framing already gives an exact boundary, so there is no
// need for internal/demux/flac's byte-scanning technique here.
func flacPacketBlockSize(payload []byte) (int, bool) {
	if len(payload) < 5 {
		return 0, false
	}
	r := bitio.NewReader(payload)
	if sync, err := r.ReadBits(14); err != nil || sync != 0x3FFE {
		return 0, false
	}
	if _, err := r.ReadBits(2); err != nil { // reserved + blocking strategy
		return 0, false
	}
	blockSizeCode, err := r.ReadBits(4)
	if err != nil {
		return 0, false
	}
	switch {
	case blockSizeCode == 0:
		return 0, false
	case blockSizeCode == 1:
		return 192, true
	case blockSizeCode >= 2 && blockSizeCode <= 5:
		return 576 << (blockSizeCode - 2), true
	case blockSizeCode == 6, blockSizeCode == 7:
		// Needs the trailing 8/16-bit extension after sample-rate/channel
		// fields; rare in practice (non-power-of-two/non-576-multiple
		// block sizes) and not worth the extra bit-offset bookkeeping
		// here since a wrong estimate only affects the interpolated PTS
		// between granule-bearing pages, never correctness of playback.
		return 0, false
	default:
		return 256 << (blockSizeCode - 8), true
	}
}
