// Package mp3 implements the MPEG audio (MP3) container demuxer of
// : ID3v2 skip, frame-sync scanning reusing the codec layer's
// own frame-header parser, a Xing/Info/VBRI + LAME gapless-metadata reader,
// and file-order packet emission over the resulting frame index.
//
// Frame-header parsing is shared with (not duplicated from) the codec/mp3
// decoder — the same 4-byte sync/version/layer/bitrate/sample-rate fields
// this package needs to locate frame boundaries are exactly what the
// decoder needs to decode them, so both layers call codec/mp3.ParseHeader.
package mp3

import (
	"errors"
	"sort"

	codecmp3 "github.com/bramblemedia/reelcore/internal/codec/mp3"
	"github.com/bramblemedia/reelcore/internal/demux"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
)

func init() {
	demux.Register("mp3", probe, func() demux.Demuxer { return &Demuxer{} })
}

const component = "demux/mp3"

// probe recognizes an MPEG audio stream by finding a valid frame header
// right after any leading ID3v2 tag, by convention.
func probe(snippet []byte, filename string) (int, bool) {
	pos := skipID3v2(snippet)
	if pos+4 <= len(snippet) {
		if _, err := codecmp3.ParseHeader(snippet[pos:]); err == nil {
			return demux.ScoreMax, true
		}
	}
	if hasMP3Extension(filename) {
		return demux.ScoreExtension, true
	}
	return 0, false
}

func hasMP3Extension(filename string) bool {
	n := len(filename)
	if n < 4 {
		return false
	}
	ext := filename[n-4:]
	return ext == ".mp3" || ext == ".MP3"
}

// frameInfo is one indexed frame's position.
type frameInfo struct {
	offset int64
	size int
}

// Demuxer implements demux.Demuxer for bare MPEG audio streams.
type Demuxer struct {
	src ioutil.Source

	sampleRate int
	channels int
	samplesPerFrame int

	frames []frameInfo
	cursor int

	gaplessExtra []byte
	stream media.Stream
}

func (d *Demuxer) Open(src ioutil.Source) error {
	d.src = src
	r := ioutil.NewReader(src)

	if _, err := src.Seek(ioutil.SeekStart, 0); err != nil {
		return errs.Wrap(errs.Io, component, "seeking to start", err)
	}
	if err := skipID3v2Tag(r); err != nil {
		return err
	}

	size, haveSize := src.Size()
	var xing *xingInfo

	for {
		pos := src.Position()
		if haveSize && pos+4 > size {
			break
		}
		hdrBytes, err := src.ReadExact(4)
		if err != nil {
			if errors.Is(err, errs.ErrEof) {
				break
			}
			return errs.Wrap(errs.Io, component, "reading frame header", err)
		}
		hdr, err := codecmp3.ParseHeader(hdrBytes)
		if err != nil {
			if len(d.frames) == 0 {
				return errs.Wrap(errs.InvalidData, component, "no valid mpeg frame found", err)
			}
			break // trailing garbage (id3v1 tag, padding) after the last frame
		}
		if d.sampleRate == 0 {
			d.sampleRate = hdr.SampleRate
			d.channels = hdr.NbChannels
			d.samplesPerFrame = hdr.SamplesPerFrame
		}

		bodyLen := hdr.FrameSize - 4
		frameBody, err := src.ReadExact(bodyLen)
		if err != nil {
			return errs.Wrap(errs.Io, component, "reading frame body", err)
		}

		if len(d.frames) == 0 {
			xing = parseXing(frameBody, hdr)
		}

		d.frames = append(d.frames, frameInfo{offset: pos, size: hdr.FrameSize})
	}
	if len(d.frames) == 0 {
		return errs.New(errs.InvalidData, component, "no mpeg frames found")
	}

	if xing != nil && xing.hasLame {
		totalSamples := int64(len(d.frames)) * int64(d.samplesPerFrame)
		frontSkip := int64(xing.encoderDelay) + 529
		validTotal := totalSamples - frontSkip - int64(xing.encoderPadding)
		if validTotal < 0 {
			validTotal = 0
		}
		d.gaplessExtra = encodeGaplessExtraData(frontSkip, int64(xing.encoderPadding), validTotal)
	}

	d.stream = media.Stream{
		Index: 0,
		MediaType: media.Audio,
		CodecID: media.CodecMP3,
		TimeBase: ratio.New(1, int64(d.sampleRate)),
		Duration: int64(len(d.frames)) * int64(d.samplesPerFrame),
		NbFrames: int64(len(d.frames)),
		ExtraData: d.gaplessExtra,
		Params: media.StreamParams{Audio: &media.AudioStreamParams{
			SampleRate: d.sampleRate,
			ChannelLayout: media.LayoutForChannelCount(d.channels),
			SampleFormat: media.SampleS16,
			BitsPerSample: 16,
		}},
		Metadata: map[string]string{},
	}
	return nil
}

func (d *Demuxer) Streams() []media.Stream { return []media.Stream{d.stream} }

func (d *Demuxer) ReadPacket() (*media.Packet, error) {
	if d.cursor >= len(d.frames) {
		return nil, errs.ErrEof
	}
	f := d.frames[d.cursor]
	if _, err := d.src.Seek(ioutil.SeekStart, f.offset); err != nil {
		return nil, errs.Wrap(errs.Io, component, "seeking to frame", err)
	}
	payload, err := d.src.ReadExact(f.size)
	if err != nil {
		return nil, errs.Wrap(errs.Io, component, "reading frame", err)
	}
	pts := int64(d.cursor) * int64(d.samplesPerFrame)
	d.cursor++
	return &media.Packet{
		Payload: payload,
		StreamIndex: 0,
		PTS: pts,
		DTS: pts,
		Duration: int64(d.samplesPerFrame),
		TimeBase: d.stream.TimeBase,
		IsKeyframe: true,
		Pos: f.offset,
	}, nil
}

func (d *Demuxer) Seek(targetUs int64) error {
	targetSample := ratio.Microsecond.Rescale(targetUs, d.stream.TimeBase)
	idx := sort.Search(len(d.frames), func(i int) bool {
		return int64(i)*int64(d.samplesPerFrame) > targetSample
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
