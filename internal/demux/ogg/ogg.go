package ogg

import (
	"errors"
	"sort"

	"github.com/bramblemedia/reelcore/internal/demux"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
)

func init() {
	demux.Register("ogg", probe, func() demux.Demuxer { return &Demuxer{} })
}

func probe(snippet []byte, filename string) (int, bool) {
	if len(snippet) >= 4 && string(snippet[:4]) == "OggS" {
		return demux.ScoreMax, true
	}
	return 0, false
}

// Demuxer implements demux.Demuxer for Ogg-muxed streams (Vorbis, Opus,
// Theora, or FLAC-in-Ogg logical bitstreams).
type Demuxer struct {
	streams   []*logicalStream
	bySerial  map[uint32]*logicalStream
	packets   []packetRecord
	cursor    int
	metadata  map[string]string
}

func (d *Demuxer) Open(src ioutil.Source) error {
	r := ioutil.NewReader(src)
	if _, err := src.Seek(ioutil.SeekStart, 0); err != nil {
		return errs.Wrap(errs.Io, component, "seeking to start", err)
	}
	d.bySerial = map[uint32]*logicalStream{}
	d.metadata = map[string]string{}

	for {
		p, err := readPage(r)
		if err != nil {
			if errors.Is(err, errs.ErrEof) {
				break
			}
			return err
		}

		ls, known := d.bySerial[p.serial]
		if !known {
			ls = &logicalStream{serial: p.serial, streamIndex: len(d.streams)}
			d.bySerial[p.serial] = ls
			d.streams = append(d.streams, ls)
		}

		records := ls.feedPage(p)
		for _, rec := range records {
			if ls.headerPacketsSeen < ls.codec.headerPackets || (ls.headerPacketsSeen == 0 && p.isBOS()) {
				if ls.headerPacketsSeen == 0 && p.isBOS() {
					ls.codec = sniffBOS(rec.payload)
				}
				ls.headerPacketsSeen++
				continue // header packets never reach the application as media packets
			}
			d.packets = append(d.packets, rec)
		}
	}

	if len(d.streams) == 0 {
		return errs.New(errs.InvalidData, component, "no Ogg logical bitstreams found")
	}
	for _, ls := range d.streams {
		ls.stream = media.Stream{
			Index:     ls.streamIndex,
			MediaType: ls.codec.mediaType,
			CodecID:   ls.codec.id,
			TimeBase:  ratio.New(1, int64(max1(ls.codec.sampleRate))),
			ExtraData: ls.codec.extraData,
			Metadata:  map[string]string{},
		}
		if ls.codec.mediaType == media.Audio {
			ls.stream.Params.Audio = &media.AudioStreamParams{
				SampleRate:    ls.codec.sampleRate,
				ChannelLayout: media.LayoutForChannelCount(ls.codec.channels),
				SampleFormat:  media.SampleS16,
			}
		}
	}
	return nil
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

func (d *Demuxer) Streams() []media.Stream {
	out := make([]media.Stream, len(d.streams))
	for i, ls := range d.streams {
		out[i] = ls.stream
	}
	return out
}

func (d *Demuxer) ReadPacket() (*media.Packet, error) {
	if d.cursor >= len(d.packets) {
		return nil, errs.ErrEof
	}
	rec := d.packets[d.cursor]
	d.cursor++
	tb := d.streams[rec.streamIndex].stream.TimeBase
	return &media.Packet{
		Payload:     rec.payload,
		StreamIndex: rec.streamIndex,
		PTS:         rec.pts,
		DTS:         rec.pts,
		Duration:    rec.duration,
		TimeBase:    tb,
		IsKeyframe:  true,
	}, nil
}

// Seek finds the first packet at or after targetUs across every stream and
// repositions the shared cursor there. Ogg's page-granule resync already
// keeps each stream's packets close to real time, so a linear search over
// the (already time-ordered-enough) packet list is sufficient.
func (d *Demuxer) Seek(targetUs int64) error {
	idx := sort.Search(len(d.packets), func(i int) bool {
		rec := d.packets[i]
		tb := d.streams[rec.streamIndex].stream.TimeBase
		us := tb.Rescale(rec.pts, ratio.Microsecond)
		return us >= targetUs
	})
	d.cursor = idx
	return nil
}

func (d *Demuxer) Duration() int64 {
	var maxUs int64
	for _, ls := range d.streams {
		if ls.codec.sampleRate == 0 {
			continue
		}
		tb := ratio.New(1, int64(ls.codec.sampleRate))
		us := tb.Rescale(ls.cumSamples, ratio.Microsecond)
		if us > maxUs {
			maxUs = us
		}
	}
	if maxUs == 0 {
		return -1
	}
	return maxUs
}

func (d *Demuxer) Metadata() map[string]string { return d.metadata }
