// Package codec defines the uniform decoder contract and
// the codec registry that maps a CodecID to a decoder factory. Concrete
// decoders live in the h264, mpeg4, aac, mp3, flac, and pcm subpackages.
package codec

import (
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
)

// Decoder is the polymorphic send_packet/receive_frame contract every codec
// implements.
type Decoder interface {
	CodecID() media.CodecID
	Name() string

	// Open configures the decoder. It may be called only once per instance.
	Open(params media.CodecParameters) error

	// SendPacket accepts one compressed unit in decode order. An empty
	// packet (Packet.IsFlush()) initiates drain. Returns errs.ErrNeedMoreData
	// if the decoder's internal output buffer is full and the caller must
	// drain via ReceiveFrame first.
	SendPacket(pkt *media.Packet) error

	// ReceiveFrame drains one decoded frame. Returns errs.ErrNeedMoreData
	// when no frame is ready yet, or errs.ErrEof once a post-flush drain is
	// exhausted.
	ReceiveFrame() (media.Frame, error)

	// Flush resets all internal state to the post-Open condition while
	// retaining configuration. Used on seek.
	Flush()
}

// ContainmentReporter is implemented by decoders that track error-containment counters (e.g. h264's malformed_nal_drops,
// missing_reference_fallbacks). It is deliberately not part of Decoder
// itself: not every codec accumulates these, and decoders stay free of a
// stats dependency (see internal/stats) so callers type-assert for it
// opportunistically. ContainmentCounters returns cumulative counts since
// Open, keyed by counter name.
type ContainmentReporter interface {
	ContainmentCounters() map[string]int64
}

// Factory constructs a fresh, unopened Decoder instance.
type Factory func() Decoder

var registry = map[media.CodecID]Factory{}

// Register installs a factory for id. Called from each codec subpackage's
// init().
func Register(id media.CodecID, f Factory) {
	registry[id] = f
}

// Create returns a new decoder for id, or an Unsupported error if no
// decoder is registered.
func Create(id media.CodecID) (Decoder, error) {
	f, ok := registry[id]
	if !ok {
		return nil, errs.Newf(errs.Unsupported, "codec/registry", "no decoder registered for codec %s", id)
	}
	return f(), nil
}

// Registered reports whether a decoder is registered for id.
func Registered(id media.CodecID) bool {
	_, ok := registry[id]
	return ok
}
