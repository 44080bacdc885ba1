package ogg

import "github.com/bramblemedia/reelcore/internal/media"

// packetRecord is one reassembled logical packet ready for emission,
// already tagged with the stream it belongs to and a best-effort
// presentation timestamp in that stream's sample units.
type packetRecord struct {
	streamIndex int
	payload []byte
	pts int64
	duration int64
}

// logicalStream accumulates one Ogg serial number's packets across pages.
type logicalStream struct {
	serial uint32
	streamIndex int
	codec codecInfo

	pending []byte // bytes of a packet still being assembled across pages
	cumSamples int64

	headerPacketsSeen int
	stream media.Stream
}

// codecInfo is what BOS sniffing can determine before any packet framing
// is known.
type codecInfo struct {
	id media.CodecID
	mediaType media.MediaType
	sampleRate int
	channels int
	extraData []byte
	headerPackets int // how many leading packets are codec headers, not payload
}

// feedPage folds one page's segments into the stream's in-progress packet
// buffer, emitting every packet that completes on this page. A segment
// value of 255 means "more bytes follow in the next segment (or page) for
// this same packet"; any other value ends the packet there.
func (s *logicalStream) feedPage(p *page) []packetRecord {
	var completed [][]byte
	off := 0
	for _, segLen := range p.segments {
		s.pending = append(s.pending, p.body[off:off+segLen]...)
		off += segLen
		if segLen < 255 {
			completed = append(completed, s.pending)
			s.pending = nil
		}
	}

	if len(completed) == 0 {
		return nil
	}

	out := make([]packetRecord, 0, len(completed))
	for i, payload := range completed {
		duration := estimatePacketDuration(s.codec, payload)
		pts := s.cumSamples
		s.cumSamples += duration
		isLast := i == len(completed)-1
		if isLast && p.granule >= 0 {
			// The page's granule position is the authoritative sample
			// count through the end of the last packet completing on
			// it; resync to it rather than letting per-packet estimates
			// drift (exact for audio codecs whose granule is a sample
			// count, which covers every codec this package maps).
			s.cumSamples = p.granule
		}
		out = append(out, packetRecord{streamIndex: s.streamIndex, payload: payload, pts: pts, duration: duration})
	}
	return out
}

// estimatePacketDuration returns how many samples one packet represents,
// when that can be determined without a full codec decode. FLAC-in-Ogg
// wraps native FLAC frames, whose block size sits in the same header
// bitio/flac's decoder parses; for Vorbis/Opus/Theora (recognized but not
// decoded by per media.CodecID's doc comment) there is no
// way to know a packet's duration without the codec's own mode/block
// tables, so those packets fall back to the page-granule resync above for
// their actual timestamps and report a zero estimate in between.
func estimatePacketDuration(c codecInfo, payload []byte) int64 {
	if c.id == media.CodecFLAC {
		if n, ok := flacPacketBlockSize(payload); ok {
			return int64(n)
		}
	}
	return 0
}
