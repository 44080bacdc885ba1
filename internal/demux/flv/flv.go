// Package flv implements the FLV container demuxer : the
// "FLV" signature, the flat tag loop (audio/video/script tags, each
// followed by its own previous-tag-size trailer), and the AAC/AVC/HEVC
// packet-type framing those tags carry.
package flv

import (
	"sort"

	"github.com/bramblemedia/reelcore/internal/demux"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
)

const component = "demux/flv"

func init() {
	demux.Register("flv", probe, func() demux.Demuxer { return &Demuxer{} })
}

// probe recognizes the 3-byte "FLV" signature at the start of the source.
func probe(snippet []byte, filename string) (int, bool) {
	if len(snippet) >= 3 && string(snippet[:3]) == "FLV" {
		return demux.ScoreMax, true
	}
	return 0, false
}

// tagEntry is one precomputed packet location: everything ReadPacket needs
// to seek to and return the tag's payload without re-walking the tag loop.
type tagEntry struct {
	offset int64
	size int
	streamIndex int
	pts int64 // milliseconds
	dts int64 // milliseconds
	keyframe bool
}

// trackState is the incremental state built up while scanning audio or
// video tags: whether this track has been seen at all yet, its assigned
// stream index, and the media.Stream built from its first tag (codec ID
// resolved there; ExtraData is filled in separately once a sequence-header
// tag, if any, has been scanned).
type trackState struct {
	streamIndex int
	present bool
	stream media.Stream
}

// Demuxer implements demux.Demuxer for FLV. Like internal/demux/mp4 and
// internal/demux/flac, it builds a complete packet index once in Open
// rather than tracking a stateful cursor through the tag loop, since FLV
// tags already arrive in a single file-ordered stream and a precomputed
// index is easier to hand-verify than incremental re-parsing on every
// ReadPacket call.
type Demuxer struct {
	src ioutil.Source
	audio trackState
	video trackState
	nextIndex int
	tags []tagEntry
	cursor int
	duration int64 // milliseconds, -1 if unknown
}

const (
	tagTypeAudio = 8
	tagTypeVideo = 9
	tagTypeScript = 18
)

func (d *Demuxer) Open(src ioutil.Source) error {
	d.src = src
	r := ioutil.NewReader(src)
	if _, err := src.Seek(ioutil.SeekStart, 0); err != nil {
		return errs.Wrap(errs.Io, component, "seeking to start", err)
	}

	sig, err := r.ReadExact(3)
	if err != nil {
		return errs.Wrap(errs.Io, component, "reading FLV signature", err)
	}
	if string(sig) != "FLV" {
		return errs.New(errs.InvalidData, component, "missing FLV signature")
	}
	if err := r.Skip(1); err != nil { // version
		return err
	}
	// The has-audio/has-video flags byte is advisory only; actual tag types
	// encountered in the loop below are authoritative, so it's read past
	// and discarded here.
	if _, err := r.ReadU8(); err != nil {
		return err
	}
	dataOffset, err := r.ReadU32BE()
	if err != nil {
		return err
	}
	// The file header is followed by a mandatory 4-byte PreviousTagSize0
	// field (always 0, since there is no tag before the first one) before
	// the first real tag begins.
	firstTagPos := int64(dataOffset) + 4
	if _, err := src.Seek(ioutil.SeekStart, firstTagPos); err != nil {
		return errs.Wrap(errs.Io, component, "seeking past FLV header", err)
	}

	size, haveSize := src.Size()
	var limit int64 = 1 << 62
	if haveSize {
		limit = size
	}

	var avcExtraData, aacExtraData []byte
	var maxDTS int64

	pos := firstTagPos
	for pos+4 <= limit {
		if _, err := src.Seek(ioutil.SeekStart, pos); err != nil {
			return errs.Wrap(errs.Io, component, "seeking to tag", err)
		}
		hdr, err := r.ReadExact(11)
		if err != nil {
			break // trailing garbage shorter than one tag header: stop cleanly
		}
		tagType := hdr[0]
		dataSize := int(hdr[1])<<16 | int(hdr[2])<<8 | int(hdr[3])
		timestamp := int64(hdr[4])<<16 | int64(hdr[5])<<8 | int64(hdr[6]) | int64(hdr[7])<<24
		payloadPos := pos + 11
		nextPos := payloadPos + int64(dataSize) + 4 // +4 for the trailing previous-tag-size

		if payloadPos+int64(dataSize) > limit {
			break
		}

		switch tagType {
		case tagTypeAudio:
			entry, extra, err := d.scanAudioTag(r, payloadPos, dataSize, timestamp)
			if err != nil {
				return err
			}
			if extra != nil {
				aacExtraData = extra
			}
			if entry != nil {
				d.tags = append(d.tags, *entry)
			}
		case tagTypeVideo:
			entry, extra, err := d.scanVideoTag(r, payloadPos, dataSize, timestamp)
			if err != nil {
				return err
			}
			if extra != nil {
				avcExtraData = extra
			}
			if entry != nil {
				d.tags = append(d.tags, *entry)
			}
		case tagTypeScript:
			// onMetaData and similar AMF0 script tags: not needed for
			// playback (duration is derived from the tag timestamps
			// themselves below), so the payload is skipped entirely.
		default:
			return errs.Newf(errs.InvalidData, component, "unknown FLV tag type %d", tagType)
		}

		if timestamp > maxDTS {
			maxDTS = timestamp
		}
		pos = nextPos
	}

	if d.audio.present {
		d.audio.stream.ExtraData = aacExtraData
	}
	if d.video.present {
		d.video.stream.ExtraData = avcExtraData
	}
	if !d.audio.present && !d.video.present {
		return errs.New(errs.InvalidData, component, "no audio or video tags found")
	}

	sort.SliceStable(d.tags, func(i, j int) bool { return d.tags[i].offset < d.tags[j].offset })

	d.duration = maxDTS
	if d.duration <= 0 {
		d.duration = -1
	}
	return nil
}

func (d *Demuxer) Streams() []media.Stream {
	var out []media.Stream
	if d.audio.present {
		out = append(out, d.audio.stream)
	}
	if d.video.present {
		out = append(out, d.video.stream)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (d *Demuxer) ReadPacket() (*media.Packet, error) {
	if d.cursor >= len(d.tags) {
		return nil, errs.ErrEof
	}
	e := d.tags[d.cursor]
	d.cursor++

	duration := int64(0)
	for i := d.cursor; i < len(d.tags); i++ {
		if d.tags[i].streamIndex == e.streamIndex {
			duration = d.tags[i].dts - e.dts
			break
		}
	}

	if _, err := d.src.Seek(ioutil.SeekStart, e.offset); err != nil {
		return nil, errs.Wrap(errs.Io, component, "seeking to tag payload", err)
	}
	payload, err := d.src.ReadExact(e.size)
	if err != nil {
		return nil, errs.Wrap(errs.Io, component, "reading tag payload", err)
	}

	return &media.Packet{
		Payload: payload,
		StreamIndex: e.streamIndex,
		PTS: e.pts,
		DTS: e.dts,
		Duration: duration,
		TimeBase: flvTimeBase,
		IsKeyframe: e.keyframe,
		Pos: e.offset,
	}, nil
}

// Seek repositions the shared cursor to the first tag at or after targetUs,
// then walks back over any non-keyframe video tag so decode can resume
// cleanly (audio tags have no such concept and are always keyframe=true).
func (d *Demuxer) Seek(targetUs int64) error {
	targetMs := targetUs / 1000
	idx := sort.Search(len(d.tags), func(i int) bool { return d.tags[i].dts >= targetMs })
	for idx > 0 && idx < len(d.tags) && d.tags[idx].streamIndex == d.video.streamIndex && !d.tags[idx].keyframe {
		idx--
	}
	d.cursor = idx
	return nil
}

func (d *Demuxer) Duration() int64 {
	if d.duration < 0 {
		return -1
	}
	return d.duration * 1000 // ms -> us
}

func (d *Demuxer) Metadata() map[string]string { return map[string]string{} }
