// Package aiff implements the AIFF/AIFF-C container demuxer 
// §4.6: "FORM"/"COMM"/"SSND" IFF chunk walk, 80-bit IEEE-754-extended
// sample-rate decode, and AIFF-C compression-type dispatch, chunked into
// fixed-size packets the same way internal/demux/flac indexes fixed-size
// frames — AIFF's sample data is one contiguous blob with no native framing
// of its own, so this package imposes one (matching the block size the
// FLAC demuxer already uses) rather than emitting the entire stream as a
// single packet.
//
// Chunk scanning mirrors internal/demux/mp4/box.go's box-header read/walk:
// a 4-byte tag + a fixed-width size field, read generically and dispatched
// by tag — the same "IFF/ISO-BMFF style" TLV shape, just big-endian-sized
// and without ISO-BMFF's size==0/size==1 extensions (IFF chunk sizes are
// always a plain 32-bit value).
package aiff

import (
	"math"
	"sort"

	"github.com/bramblemedia/reelcore/internal/demux"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
)

func init() {
	demux.Register("aiff", probe, func() demux.Demuxer { return &Demuxer{} })
}

const component = "demux/aiff"

// packetFrames bounds how many sample-frames one emitted packet covers.
const packetFrames = 4096

func probe(snippet []byte, filename string) (int, bool) {
	if len(snippet) >= 12 && string(snippet[0:4]) == "FORM" &&
		(string(snippet[8:12]) == "AIFF" || string(snippet[8:12]) == "AIFC") {
		return demux.ScoreMax, true
	}
	return 0, false
}

type chunkHeader struct {
	id string
	size int64
	// pos is the byte offset of the first content byte (right after id+size).
	pos int64
}

func readChunkHeader(r *ioutil.Reader) (chunkHeader, error) {
	id, err := r.ReadTag4()
	if err != nil {
		return chunkHeader{}, err
	}
	size, err := r.ReadU32BE()
	if err != nil {
		return chunkHeader{}, err
	}
	return chunkHeader{id: id, size: int64(size), pos: r.Position()}, nil
}

// packetEntry is one indexed packet's position and sample-frame extent.
type packetEntry struct {
	offset int64
	nbFrames int
	firstFrame int64
}

// Demuxer implements demux.Demuxer for AIFF/AIFF-C streams.
type Demuxer struct {
	src ioutil.Source

	codecID media.CodecID
	sampleRate int
	channels int
	frameSize int // bytes per sample-frame across all channels
	totalFrames int64

	packets []packetEntry
	cursor int
	stream media.Stream
}

func (d *Demuxer) Open(src ioutil.Source) error {
	d.src = src
	r := ioutil.NewReader(src)

	if _, err := src.Seek(ioutil.SeekStart, 0); err != nil {
		return errs.Wrap(errs.Io, component, "seeking to start", err)
	}
	form, err := readChunkHeader(r)
	if err != nil {
		return errs.Wrap(errs.Io, component, "reading FORM header", err)
	}
	if form.id != "FORM" {
		return errs.New(errs.InvalidData, component, "missing FORM chunk")
	}
	formType, err := r.ReadTag4()
	if err != nil {
		return errs.Wrap(errs.Io, component, "reading form type", err)
	}
	if formType != "AIFF" && formType != "AIFC" {
		return errs.Newf(errs.InvalidData, component, "unsupported FORM type %q", formType)
	}

	formEnd := form.pos + form.size
	var haveCOMM bool
	var compressionType string
	var bitsPerSample, numChannels int
	var sampleRate int
	var numSampleFrames int64
	var ssnd chunkHeader
	var haveSSND bool

	pos := r.Position()
	for pos < formEnd {
		if _, err := src.Seek(ioutil.SeekStart, pos); err != nil {
			return errs.Wrap(errs.Io, component, "seeking to chunk", err)
		}
		hdr, err := readChunkHeader(r)
		if err != nil {
			break
		}
		switch hdr.id {
		case "COMM":
			body, err := r.ReadExact(int(hdr.size))
			if err != nil {
				return errs.Wrap(errs.Io, component, "reading COMM chunk", err)
			}
			if len(body) < 18 {
				return errs.New(errs.InvalidData, component, "COMM chunk too short")
			}
			numChannels = int(beU16(body[0:2]))
			numSampleFrames = int64(beU32(body[2:6]))
			bitsPerSample = int(beU16(body[6:8]))
			sampleRate = int(readIEEEExtended(body[8:18]))
			if formType == "AIFC" && len(body) >= 22 {
				compressionType = string(body[18:22])
			}
			haveCOMM = true
		case "SSND":
			ssnd = hdr
			haveSSND = true
		}
		// Chunk content is padded to an even number of bytes.
		contentLen := hdr.size
		if contentLen%2 != 0 {
			contentLen++
		}
		pos = hdr.pos + contentLen
	}

	if !haveCOMM {
		return errs.New(errs.InvalidData, component, "missing COMM chunk")
	}
	if !haveSSND {
		return errs.New(errs.InvalidData, component, "missing SSND chunk")
	}

	codecID, err := resolveCodec(formType, compressionType, bitsPerSample)
	if err != nil {
		return err
	}
	d.codecID = codecID
	d.sampleRate = sampleRate
	d.channels = numChannels
	d.frameSize = (bitsPerSample / 8) * numChannels
	if d.frameSize == 0 {
		return errs.New(errs.InvalidData, component, "zero-size sample frame")
	}

	if _, err := src.Seek(ioutil.SeekStart, ssnd.pos); err != nil {
		return errs.Wrap(errs.Io, component, "seeking to SSND body", err)
	}
	ssndOffset, err := r.ReadU32BE() // block-align offset, rarely nonzero
	if err != nil {
		return errs.Wrap(errs.Io, component, "reading SSND offset", err)
	}
	if _, err := r.ReadU32BE(); err != nil { // blockSize, unused
		return errs.Wrap(errs.Io, component, "reading SSND blockSize", err)
	}
	dataStart := ssnd.pos + 8 + int64(ssndOffset)
	dataLen := ssnd.size - 8 - int64(ssndOffset)

	d.totalFrames = numSampleFrames
	if d.totalFrames == 0 {
		d.totalFrames = dataLen / int64(d.frameSize)
	}

	d.buildPacketIndex(dataStart)

	d.stream = media.Stream{
		Index: 0,
		MediaType: media.Audio,
		CodecID: d.codecID,
		TimeBase: ratio.New(1, int64(d.sampleRate)),
		Duration: d.totalFrames,
		NbFrames: int64(len(d.packets)),
		Params: media.StreamParams{Audio: &media.AudioStreamParams{
			SampleRate: d.sampleRate,
			ChannelLayout: media.LayoutForChannelCount(d.channels),
			SampleFormat: sampleFormatFor(d.codecID),
			BitsPerSample: bitsPerSample,
		}},
		Metadata: map[string]string{},
	}
	return nil
}

func (d *Demuxer) buildPacketIndex(dataStart int64) {
	var frame int64
	for frame < d.totalFrames {
		n := int64(packetFrames)
		if frame+n > d.totalFrames {
			n = d.totalFrames - frame
		}
		d.packets = append(d.packets, packetEntry{
			offset: dataStart + frame*int64(d.frameSize),
			nbFrames: int(n),
			firstFrame: frame,
		})
		frame += n
	}
}

// resolveCodec maps the COMM chunk's bit depth (and, for AIFF-C, its
// compression type) onto one of the supported PCM codec IDs.
// Only uncompressed linear PCM is supported — AIFF-C's many lossy/ADPCM
// compression types are out of scope and have no decoder here and
// are rejected here rather than silently mis-decoded.
func resolveCodec(formType, compressionType string, bitsPerSample int) (media.CodecID, error) {
	if formType == "AIFF" || compressionType == "" || compressionType == "NONE" {
		switch bitsPerSample {
		case 8:
			return media.CodecPCMU8, nil
		case 16:
			return media.CodecPCMS16BE, nil
		default:
			return media.CodecUnknown, errs.Newf(errs.Unsupported, component, "unsupported AIFF sample size %d bits", bitsPerSample)
		}
	}
	if compressionType == "sowt" && bitsPerSample == 16 {
		return media.CodecPCMS16LE, nil
	}
	return media.CodecUnknown, errs.Newf(errs.Unsupported, component, "unsupported AIFF-C compression type %q", compressionType)
}

func sampleFormatFor(id media.CodecID) media.SampleFormat {
	switch id {
	case media.CodecPCMU8:
		return media.SampleU8
	default:
		return media.SampleS16
	}
}

func beU16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// readIEEEExtended decodes the 80-bit IEEE-754 extended-precision float
// AIFF's COMM chunk uses for sampleRate: 1 sign bit + 15-bit biased
// exponent, then a 64-bit mantissa with an explicit (non-hidden) leading
// bit, per the x87 extended format.
func readIEEEExtended(b []byte) float64 {
	sign := 1.0
	if b[0]&0x80 != 0 {
		sign = -1.0
	}
	exponent := int(b[0]&0x7F)<<8 | int(b[1])
	var mantissa uint64
	for i := 2; i < 10; i++ {
		mantissa = mantissa<<8 | uint64(b[i])
	}
	if exponent == 0 && mantissa == 0 {
		return 0
	}
	if exponent == 0x7FFF {
		return sign * math.Inf(1)
	}
	exponent -= 16383
	return sign * float64(mantissa) * math.Pow(2, float64(exponent-63))
}

func (d *Demuxer) Streams() []media.Stream { return []media.Stream{d.stream} }

func (d *Demuxer) ReadPacket() (*media.Packet, error) {
	if d.cursor >= len(d.packets) {
		return nil, errs.ErrEof
	}
	p := d.packets[d.cursor]
	if _, err := d.src.Seek(ioutil.SeekStart, p.offset); err != nil {
		return nil, errs.Wrap(errs.Io, component, "seeking to packet", err)
	}
	payload, err := d.src.ReadExact(p.nbFrames * d.frameSize)
	if err != nil {
		return nil, errs.Wrap(errs.Io, component, "reading packet", err)
	}
	d.cursor++
	return &media.Packet{
		Payload: payload,
		StreamIndex: 0,
		PTS: p.firstFrame,
		DTS: p.firstFrame,
		Duration: int64(p.nbFrames),
		TimeBase: d.stream.TimeBase,
		IsKeyframe: true,
		Pos: p.offset,
	}, nil
}

func (d *Demuxer) Seek(targetUs int64) error {
	targetSample := ratio.Microsecond.Rescale(targetUs, d.stream.TimeBase)
	idx := sort.Search(len(d.packets), func(i int) bool {
		return d.packets[i].firstFrame > targetSample
	})
	if idx > 0 {
		idx--
	}
	d.cursor = idx
	return nil
}

func (d *Demuxer) Duration() int64 {
	if d.sampleRate == 0 {
		return -1
	}
	return d.stream.TimeBase.Rescale(d.stream.Duration, ratio.Microsecond)
}

func (d *Demuxer) Metadata() map[string]string { return d.stream.Metadata }
