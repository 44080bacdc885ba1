package flac

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/crcutil"
)

// frameHeaderInfo is the subset of a FLAC frame header this package needs
// to index frame boundaries: how many samples the frame holds and how many
// bytes its header itself occupies (so the header CRC-8 byte can be
// located). It deliberately stops short of subframe decoding — that is
// codec/flac's job once the demuxer has handed it a packet.
type frameHeaderInfo struct {
	blockSize int
	headerLen int
}

var sampleRateTable = [...]int{
	0, 88200, 176400, 192000,
	8000, 16000, 22050, 24000, 32000, 44100, 48000, 96000,
	0, 0, 0, 0,
}

// tryParseFrameHeader attempts to parse a FLAC frame header starting at
// buf[0], mirroring the header-only portion of codec/flac's decodeFrame
// (RFC 9639 §9.1), and validates it against the trailing CRC-8 byte. It
// reports ok=false for anything that doesn't look like a genuine frame
// start, which the caller treats as "keep scanning" rather than an error —
// sync-code collisions inside subframe data are possible in principle but,
// combined with the CRC-8 check, vanishingly rare in practice.
func tryParseFrameHeader(buf []byte, streamInfoRate int) (frameHeaderInfo, bool) {
	if len(buf) < 5 {
		return frameHeaderInfo{}, false
	}
	r := bitio.NewReader(buf)

	sync, err := r.ReadBits(14)
	if err != nil || sync != 0x3FFE {
		return frameHeaderInfo{}, false
	}
	reserved1, err := r.ReadBit()
	if err != nil || reserved1 != 0 {
		return frameHeaderInfo{}, false
	}
	if _, err := r.ReadBit(); err != nil { // blocking strategy, either value is valid
		return frameHeaderInfo{}, false
	}
	blockSizeCode, err := r.ReadBits(4)
	if err != nil {
		return frameHeaderInfo{}, false
	}
	sampleRateCode, err := r.ReadBits(4)
	if err != nil {
		return frameHeaderInfo{}, false
	}
	channelAssign, err := r.ReadBits(4)
	if err != nil || channelAssign > 10 {
		return frameHeaderInfo{}, false
	}
	sampleSizeCode, err := r.ReadBits(3)
	if err != nil || sampleSizeCode == 3 || sampleSizeCode == 7 {
		return frameHeaderInfo{}, false
	}
	reserved2, err := r.ReadBit()
	if err != nil || reserved2 != 0 {
		return frameHeaderInfo{}, false
	}
	if _, err := r.ReadUTF8(); err != nil {
		return frameHeaderInfo{}, false
	}

	blockSize, ok := resolveBlockSizeForScan(r, blockSizeCode)
	if !ok {
		return frameHeaderInfo{}, false
	}
	if _, ok := resolveSampleRateForScan(r, sampleRateCode, streamInfoRate); !ok {
		return frameHeaderInfo{}, false
	}
	if _, err := r.ReadBits(8); err != nil { // header CRC-8 byte itself
		return frameHeaderInfo{}, false
	}

	headerLen := r.BytePosition()
	if headerLen > len(buf) {
		return frameHeaderInfo{}, false
	}
	if crcutil.CRC8(buf[:headerLen-1]) != buf[headerLen-1] {
		return frameHeaderInfo{}, false
	}
	return frameHeaderInfo{blockSize: blockSize, headerLen: headerLen}, true
}

func resolveBlockSizeForScan(r *bitio.Reader, code uint32) (int, bool) {
	switch {
	case code == 0:
		return 0, false
	case code == 1:
		return 192, true
	case code >= 2 && code <= 5:
		return 576 << (code - 2), true
	case code == 6:
		v, err := r.ReadBits(8)
		if err != nil {
			return 0, false
		}
		return int(v) + 1, true
	case code == 7:
		v, err := r.ReadBits(16)
		if err != nil {
			return 0, false
		}
		return int(v) + 1, true
	default:
		return 256 << (code - 8), true
	}
}

func resolveSampleRateForScan(r *bitio.Reader, code uint32, streamInfoRate int) (int, bool) {
	switch {
	case code == 0:
		return streamInfoRate, true
	case code >= 1 && code <= 11:
		return sampleRateTable[code], true
	case code == 12:
		v, err := r.ReadBits(8)
		if err != nil {
			return 0, false
		}
		return int(v) * 1000, true
	case code == 13:
		v, err := r.ReadBits(16)
		if err != nil {
			return 0, false
		}
		return int(v), true
	case code == 14:
		v, err := r.ReadBits(16)
		if err != nil {
			return 0, false
		}
		return int(v) * 10, true
	default:
		return 0, false
	}
}
