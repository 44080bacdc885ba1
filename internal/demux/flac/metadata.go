package flac

import (
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
)

// metadata block type codes per the FLAC format (streamable subset, RFC 9639 §8.1).
const (
	blockStreamInfo   = 0
	blockPadding      = 1
	blockApplication  = 2
	blockSeekTable    = 3
	blockVorbisComment = 4
	blockCueSheet     = 5
	blockPicture      = 6
)

// metadataBlockHeader is the 4-byte header preceding every metadata block:
// 1 bit "is last block", 7 bits block type, 3-byte big-endian length.
type metadataBlockHeader struct {
	last      bool
	blockType byte
	length    int
}

func readMetadataBlockHeader(r *ioutil.Reader) (metadataBlockHeader, error) {
	b, err := r.ReadExact(1)
	if err != nil {
		return metadataBlockHeader{}, err
	}
	length, err := r.ReadU24BE()
	if err != nil {
		return metadataBlockHeader{}, err
	}
	return metadataBlockHeader{
		last:      b[0]&0x80 != 0,
		blockType: b[0] & 0x7F,
		length:    int(length),
	}, nil
}

// seekPoint is one SEEKTABLE entry (RFC 9639 §8.4).
type seekPoint struct {
	sampleNumber uint64
	offset       uint64 // byte offset from the first frame, exclusive of metadata
	frameSamples uint16
}

const seekPointPlaceholder = 0xFFFFFFFFFFFFFFFF

func parseSeekTable(data []byte) []seekPoint {
	const pointSize = 18
	n := len(data) / pointSize
	points := make([]seekPoint, 0, n)
	for i := 0; i < n; i++ {
		b := data[i*pointSize:]
		sampleNumber := beU64(b[0:8])
		if sampleNumber == seekPointPlaceholder {
			continue
		}
		points = append(points, seekPoint{
			sampleNumber: sampleNumber,
			offset:       beU64(b[8:16]),
			frameSamples: beU16(b[16:18]),
		})
	}
	return points
}

func beU64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func beU16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// readMetadataBlocks walks every metadata block starting right after the
// "fLaC" magic, returning the parsed STREAMINFO and (if present) a
// SEEKTABLE, plus the Vorbis comment tags folded into plain metadata. The
// reader is left positioned at the first audio frame.
func readMetadataBlocks(r *ioutil.Reader) (streamInfoBytes []byte, seekTable []seekPoint, tags map[string]string, err error) {
	tags = map[string]string{}
	for {
		hdr, herr := readMetadataBlockHeader(r)
		if herr != nil {
			return nil, nil, nil, herr
		}
		body, berr := r.ReadExact(hdr.length)
		if berr != nil {
			return nil, nil, nil, berr
		}
		switch hdr.blockType {
		case blockStreamInfo:
			streamInfoBytes = body
		case blockSeekTable:
			seekTable = parseSeekTable(body)
		case blockVorbisComment:
			for k, v := range parseVorbisComment(body) {
				tags[k] = v
			}
		case blockPadding, blockApplication, blockCueSheet, blockPicture:
			// not needed for demuxing; already consumed above.
		}
		if hdr.last {
			break
		}
	}
	if streamInfoBytes == nil {
		return nil, nil, nil, errs.New(errs.InvalidData, component, "missing STREAMINFO block")
	}
	return streamInfoBytes, seekTable, tags, nil
}

// parseVorbisComment decodes the Xiph comment format: a little-endian u32
// vendor-string length + vendor string, a little-endian u32 comment count,
// then that many (length-prefixed "KEY=value") strings.
func parseVorbisComment(data []byte) map[string]string {
	tags := map[string]string{}
	pos := 0
	readU32 := func() (uint32, bool) {
		if pos+4 > len(data) {
			return 0, false
		}
		v := uint32(data[pos]) | uint32(data[pos+1])<<8 | uint32(data[pos+2])<<16 | uint32(data[pos+3])<<24
		pos += 4
		return v, true
	}
	vendorLen, ok := readU32()
	if !ok || pos+int(vendorLen) > len(data) {
		return tags
	}
	pos += int(vendorLen)
	count, ok := readU32()
	if !ok {
		return tags
	}
	for i := uint32(0); i < count; i++ {
		entryLen, ok := readU32()
		if !ok || pos+int(entryLen) > len(data) {
			break
		}
		entry := string(data[pos : pos+int(entryLen)])
		pos += int(entryLen)
		for j := 0; j < len(entry); j++ {
			if entry[j] == '=' {
				tags[entry[:j]] = entry[j+1:]
				break
			}
		}
	}
	return tags
}
