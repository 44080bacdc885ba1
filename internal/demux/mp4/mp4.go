package mp4

import (
	"sort"

	"github.com/bramblemedia/reelcore/internal/demux"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
)

func init() {
	demux.Register("mp4", probe, func() demux.Demuxer { return &Demuxer{} })
}

// probe recognizes ISO-BMFF containers by the presence of an ftyp box (or,
// failing that, a moov box) within the first bytes of the source, per
// magic-byte scoring.
func probe(snippet []byte, filename string) (int, bool) {
	if hasTopLevelBox(snippet, "ftyp") {
		return demux.ScoreMax, true
	}
	if hasTopLevelBox(snippet, "moov") {
		return demux.ScorePartial, true
	}
	return 0, false
}

func hasTopLevelBox(snippet []byte, want string) bool {
	pos := 0
	for pos+8 <= len(snippet) {
		size := int(snippet[pos])<<24 | int(snippet[pos+1])<<16 | int(snippet[pos+2])<<8 | int(snippet[pos+3])
		typ := string(snippet[pos+4 : pos+8])
		if typ == want {
			return true
		}
		if size < 8 {
			return false
		}
		pos += size
	}
	return false
}

// track is one parsed trak's decoded state: its stream metadata, resolved
// sample index, and read cursor.
type track struct {
	stream  media.Stream
	samples []sampleEntry
	cursor  int
}

// Demuxer implements demux.Demuxer for classic (non-fragmented) ISO-BMFF
// files: MP4, MOV, 3GP, M4A.
type Demuxer struct {
	src      ioutil.Source
	r        *ioutil.Reader
	tracks   []*track
	metadata map[string]string
	duration int64 // microseconds, -1 if unknown
}

const movieTimescaleDefault = 1000

func (d *Demuxer) Open(src ioutil.Source) error {
	d.src = src
	d.r = ioutil.NewReader(src)
	d.metadata = map[string]string{}
	d.duration = -1

	size, haveSize := src.Size()
	limit := int64(1) << 62
	if haveSize {
		limit = size
	}

	var movieTimescale uint32 = movieTimescaleDefault
	foundMoov := false

	err := walkBoxes(d.r, limit, func(hdr boxHeader) error {
		if hdr.Type != "moov" {
			return nil
		}
		foundMoov = true
		return d.parseMoov(hdr, &movieTimescale)
	})
	if err != nil {
		return err
	}
	if !foundMoov {
		return errs.New(errs.InvalidData, component, "no moov box found")
	}
	return nil
}

func (d *Demuxer) parseMoov(hdr boxHeader, movieTimescale *uint32) error {
	return walkBoxes(d.r, hdr.PayloadEnd, func(child boxHeader) error {
		switch child.Type {
		case "mvhd":
			ts, durUnits, err := parseMVHD(d.r)
			if err != nil {
				return err
			}
			*movieTimescale = ts
			if ts > 0 {
				d.duration = int64(durUnits) * 1_000_000 / int64(ts)
			}
			return nil
		case "trak":
			t, err := d.parseTrak(child)
			if err != nil {
				return err
			}
			if t != nil {
				t.stream.Index = len(d.tracks)
				d.tracks = append(d.tracks, t)
			}
			return nil
		default:
			return nil
		}
	})
}

// parseMVHD reads a movie header box's timescale and duration (supporting
// both the 32-bit version 0 and 64-bit version 1 field widths).
func parseMVHD(r *ioutil.Reader) (timescale uint32, duration uint64, err error) {
	version, err := readFullBoxVersionFlags(r)
	if err != nil {
		return 0, 0, err
	}
	if version == 1 {
		if err := r.Skip(8 + 8); err != nil {
			return 0, 0, err
		}
		timescale, err = r.ReadU32BE()
		if err != nil {
			return 0, 0, err
		}
		duration, err = r.ReadU64BE()
		if err != nil {
			return 0, 0, err
		}
	} else {
		if err := r.Skip(4 + 4); err != nil {
			return 0, 0, err
		}
		timescale, err = r.ReadU32BE()
		if err != nil {
			return 0, 0, err
		}
		d32, err := r.ReadU32BE()
		if err != nil {
			return 0, 0, err
		}
		duration = uint64(d32)
	}
	return timescale, duration, nil
}

func (d *Demuxer) parseTrak(hdr boxHeader) (*track, error) {
	var mediaType media.MediaType
	var timescale uint32
	var durationUnits uint64
	var tables sampleTables
	var desc sampleDescription
	haveStsd := false

	err := walkBoxes(d.r, hdr.PayloadEnd, func(child boxHeader) error {
		switch child.Type {
		case "mdia":
			return walkBoxes(d.r, child.PayloadEnd, func(m boxHeader) error {
				switch m.Type {
				case "mdhd":
					ts, dur, err := parseMDHD(d.r)
					if err != nil {
						return err
					}
					timescale = ts
					durationUnits = dur
					return nil
				case "hdlr":
					hType, err := parseHDLR(d.r)
					if err != nil {
						return err
					}
					mediaType = hType
					return nil
				case "minf":
					return walkBoxes(d.r, m.PayloadEnd, func(mi boxHeader) error {
						if mi.Type != "stbl" {
							return nil
						}
						return walkBoxes(d.r, mi.PayloadEnd, func(s boxHeader) error {
							var err error
							switch s.Type {
							case "stsd":
								desc, err = parseSTSD(d.r, s, mediaType)
								haveStsd = true
							case "stts":
								tables.stts, err = parseSTTS(d.r, s)
							case "stsc":
								tables.stsc, err = parseSTSC(d.r)
							case "stsz":
								tables.stszDefault, tables.stsz, err = parseSTSZ(d.r)
							case "stco":
								tables.chunkOffsets, err = parseSTCO(d.r)
							case "co64":
								tables.chunkOffsets, err = parseCO64(d.r)
							case "stss":
								tables.syncSamples, err = parseSTSS(d.r)
							case "ctts":
								tables.ctts, err = parseCTTS(d.r)
							}
							return err
						})
					})
				default:
					return nil
				}
			})
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if mediaType != media.Audio && mediaType != media.Video {
		return nil, nil // subtitle/hint/metadata tracks: not exposed
	}
	if !haveStsd {
		return nil, errs.New(errs.InvalidData, component, "trak missing stsd")
	}

	samples, err := buildSampleIndex(&tables)
	if err != nil {
		return nil, err
	}

	tb := ratio.New(1, int64(timescale))
	st := media.Stream{
		MediaType: mediaType,
		CodecID:   desc.CodecID,
		TimeBase:  tb,
		Duration:  int64(durationUnits),
		NbFrames:  int64(len(samples)),
		ExtraData: desc.ExtraData,
		Metadata:  map[string]string{},
	}
	if desc.Audio != nil {
		st.Params.Audio = desc.Audio
	}
	if desc.Video != nil {
		st.Params.Video = desc.Video
	}

	return &track{stream: st, samples: samples}, nil
}

func parseMDHD(r *ioutil.Reader) (timescale uint32, duration uint64, err error) {
	version, err := readFullBoxVersionFlags(r)
	if err != nil {
		return 0, 0, err
	}
	if version == 1 {
		if err := r.Skip(8 + 8); err != nil {
			return 0, 0, err
		}
		timescale, err = r.ReadU32BE()
		if err != nil {
			return 0, 0, err
		}
		duration, err = r.ReadU64BE()
		if err != nil {
			return 0, 0, err
		}
	} else {
		if err := r.Skip(4 + 4); err != nil {
			return 0, 0, err
		}
		timescale, err = r.ReadU32BE()
		if err != nil {
			return 0, 0, err
		}
		d32, err := r.ReadU32BE()
		if err != nil {
			return 0, 0, err
		}
		duration = uint64(d32)
	}
	// language(2) + pre_defined(2) follow; irrelevant here.
	return timescale, duration, nil
}

func parseHDLR(r *ioutil.Reader) (media.MediaType, error) {
	if err := r.Skip(4 + 4); err != nil { // version/flags + pre_defined
		return media.Unknown, err
	}
	handlerType, err := r.ReadTag4()
	if err != nil {
		return media.Unknown, err
	}
	switch handlerType {
	case "vide":
		return media.Video, nil
	case "soun":
		return media.Audio, nil
	default:
		return media.Unknown, nil
	}
}

func (d *Demuxer) Streams() []media.Stream {
	out := make([]media.Stream, len(d.tracks))
	for i, t := range d.tracks {
		out[i] = t.stream
	}
	return out
}

// ReadPacket returns the next sample in file order: across every track's
// current cursor, the one with the smallest absolute byte offset, per
// interleaving rule.
func (d *Demuxer) ReadPacket() (*media.Packet, error) {
	bestTrack := -1
	var bestOffset int64
	for i, t := range d.tracks {
		if t.cursor >= len(t.samples) {
			continue
		}
		off := t.samples[t.cursor].Offset
		if bestTrack < 0 || off < bestOffset {
			bestTrack = i
			bestOffset = off
		}
	}
	if bestTrack < 0 {
		return nil, errs.ErrEof
	}

	t := d.tracks[bestTrack]
	s := t.samples[t.cursor]
	t.cursor++

	if _, err := d.src.Seek(ioutil.SeekStart, s.Offset); err != nil {
		return nil, errs.Wrap(errs.Io, component, "seeking to sample", err)
	}
	payload, err := d.src.ReadExact(int(s.Size))
	if err != nil {
		return nil, errs.Wrap(errs.Io, component, "reading sample payload", err)
	}

	duration := int64(0)
	if t.cursor < len(t.samples) {
		duration = t.samples[t.cursor].DTS - s.DTS
	}

	return &media.Packet{
		Payload:     payload,
		StreamIndex: t.stream.Index,
		PTS:         s.PTS,
		DTS:         s.DTS,
		Duration:    duration,
		TimeBase:    t.stream.TimeBase,
		IsKeyframe:  s.Keyframe,
		Pos:         s.Offset,
	}, nil
}

// Seek repositions every track's cursor to the sample at or before
// targetUs, choosing the nearest preceding sync sample for video tracks so
// decode can resume cleanly.
func (d *Demuxer) Seek(targetUs int64) error {
	for _, t := range d.tracks {
		tb := t.stream.TimeBase
		targetTS := ratio.Microsecond.Rescale(targetUs, tb)
		idx := sort.Search(len(t.samples), func(i int) bool {
			return t.samples[i].DTS > targetTS
		})
		if idx > 0 {
			idx--
		}
		for idx > 0 && !t.samples[idx].Keyframe {
			idx--
		}
		t.cursor = idx
	}
	return nil
}

func (d *Demuxer) Duration() int64 { return d.duration }

func (d *Demuxer) Metadata() map[string]string { return d.metadata }
