// Package media defines the value types that flow between byte sources,
// demuxers, and decoders: Packet, Frame (Audio/Video), Stream, and the
// codec/sample/pixel enums this package describes.
package media

import "github.com/bramblemedia/reelcore/internal/ratio"

// MediaType classifies a Stream.
type MediaType int

const (
	Unknown MediaType = iota
	Audio
	Video
	Subtitle
	Data
)

func (m MediaType) String() string {
	switch m {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case Subtitle:
		return "subtitle"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// CodecID identifies a codec/container-level payload type.
type CodecID int

const (
	CodecUnknown CodecID = iota
	CodecH264
	CodecMPEG4Part2
	CodecAAC
	CodecMP3
	CodecFLAC
	CodecPCMU8
	CodecPCMS16LE
	CodecPCMS16BE
	CodecPCMS24LE
	CodecPCMS32LE
	CodecPCMF32LE
	// Recognized by probing/demuxing but not decoded by this decoder (no
	// decoder implements them) — kept so demuxers can still expose stream
	// metadata for codecs outside decoder list.
	CodecVorbis
	CodecOpus
	CodecTheora
	CodecH265
)

func (c CodecID) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecMPEG4Part2:
		return "mpeg4part2"
	case CodecAAC:
		return "aac"
	case CodecMP3:
		return "mp3"
	case CodecFLAC:
		return "flac"
	case CodecPCMU8:
		return "pcm_u8"
	case CodecPCMS16LE:
		return "pcm_s16le"
	case CodecPCMS16BE:
		return "pcm_s16be"
	case CodecPCMS24LE:
		return "pcm_s24le"
	case CodecPCMS32LE:
		return "pcm_s32le"
	case CodecPCMF32LE:
		return "pcm_f32le"
	case CodecVorbis:
		return "vorbis"
	case CodecOpus:
		return "opus"
	case CodecTheora:
		return "theora"
	case CodecH265:
		return "h265"
	default:
		return "unknown"
	}
}

// SampleFormat enumerates the audio sample encodings §3 lists, each either
// packed-interleaved or planar.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleU8
	SampleS16
	SampleS32
	SampleF32
	SampleU8P
	SampleS16P
	SampleS32P
	SampleF32P
)

// IsPlanar reports whether the format stores one plane per channel.
func (f SampleFormat) IsPlanar() bool {
	switch f {
	case SampleU8P, SampleS16P, SampleS32P, SampleF32P:
		return true
	default:
		return false
	}
}

// BytesPerSample returns the size of one sample in one plane/channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleU8, SampleU8P:
		return 1
	case SampleS16, SampleS16P:
		return 2
	case SampleS32, SampleS32P, SampleF32, SampleF32P:
		return 4
	default:
		return 0
	}
}

// PixelFormat enumerates decoded video pixel layouts. YUV420p is the only
// format any decoder here emits.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	YUV420P
)

// PictureType classifies a decoded video frame's coding type.
type PictureType int

const (
	PictureUnknown PictureType = iota
	PictureI
	PictureP
	PictureB
)

// ChannelLayout describes the spatial arrangement of audio channels. Channels
// is derived: equal to the number of set positions, and must equal the
// number of planes for planar formats (1 for packed).
type ChannelLayout struct {
	Mask uint32 // bitmask of channel positions, per the usual WAV/AAC convention
	Channels int
}

// Common layouts.
var (
	LayoutMono = ChannelLayout{Mask: 0x4, Channels: 1}
	LayoutStereo = ChannelLayout{Mask: 0x3, Channels: 2}
)

// LayoutForChannelCount returns a default layout for a bare channel count
// when no explicit mask is known (e.g. raw ADTS AAC).
func LayoutForChannelCount(n int) ChannelLayout {
	switch n {
	case 1:
		return LayoutMono
	case 2:
		return LayoutStereo
	default:
		return ChannelLayout{Mask: 0, Channels: n}
	}
}

// Packet is a compressed, demuxer-produced unit of one stream. An empty
// (zero-length) Payload is the flush sentinel signalling end-of-input to
// the decoder.
type Packet struct {
	Payload []byte // shared, immutable view; never mutated after construction
	StreamIndex int
	PTS int64
	DTS int64
	Duration int64
	TimeBase ratio.Rational
	IsKeyframe bool
	Pos int64 // file offset the packet's payload was read from, -1 if unknown
}

// IsFlush reports whether p is the empty flush sentinel.
func (p *Packet) IsFlush() bool { return len(p.Payload) == 0 }

// Frame is implemented by AudioFrame and VideoFrame.
type Frame interface {
	isFrame()
	BaseTimestamps() (pts, dts, duration int64, tb ratio.Rational)
}

// AudioFrame is one decoded block of PCM audio.
type AudioFrame struct {
	NbSamples int
	SampleRate int
	SampleFormat SampleFormat
	ChannelLayout ChannelLayout
	// Planes holds one buffer for packed formats, ChannelLayout.Channels
	// buffers for planar formats.
	Planes [][]byte
	PTS int64
	DTS int64
	Duration int64
	TimeBase ratio.Rational
}

func (*AudioFrame) isFrame() {}

func (f *AudioFrame) BaseTimestamps() (int64, int64, int64, ratio.Rational) {
	return f.PTS, f.DTS, f.Duration, f.TimeBase
}

// VideoFrame is one decoded picture.
type VideoFrame struct {
	Width int
	Height int
	PixelFormat PixelFormat
	// Planes[i] has stride Linesize[i] >= width_of_plane(i); row r of
	// plane i starts at byte offset r*Linesize[i].
	Planes [3][]byte
	Linesize [3]int
	PictureType PictureType
	IsKeyframe bool
	PTS int64
	DTS int64
	Duration int64
	TimeBase ratio.Rational
}

func (*VideoFrame) isFrame() {}

func (f *VideoFrame) BaseTimestamps() (int64, int64, int64, ratio.Rational) {
	return f.PTS, f.DTS, f.Duration, f.TimeBase
}

// AudioStreamParams carries the audio-specific fields of a Stream.
type AudioStreamParams struct {
	SampleRate int
	ChannelLayout ChannelLayout
	SampleFormat SampleFormat
	BitsPerSample int
}

// VideoStreamParams carries the video-specific fields of a Stream.
type VideoStreamParams struct {
	Width int
	Height int
	PixelFormat PixelFormat
	FrameRate ratio.Rational
}

// StreamParams is a tagged union: exactly one of Audio/Video is set,
// depending on the owning Stream's MediaType.
type StreamParams struct {
	Audio *AudioStreamParams
	Video *VideoStreamParams
}

// Stream is per-stream metadata a demuxer emits at open time.
type Stream struct {
	Index int
	MediaType MediaType
	CodecID CodecID
	TimeBase ratio.Rational
	// Duration is in TimeBase units; -1 if unknown.
	Duration int64
	// StartTime is the first packet's pts, in TimeBase units.
	StartTime int64
	// NbFrames is 0 if unknown.
	NbFrames int64
	// ExtraData is opaque codec-specific header bytes (e.g. avcC, esds
	// AudioSpecificConfig, STREAMINFO).
	ExtraData []byte
	Params StreamParams
	Metadata map[string]string
}

// CodecParameters configures a decoder's Open call.
type CodecParameters struct {
	CodecID CodecID
	ExtraData []byte
	BitRate int64
	Audio *AudioStreamParams
	Video *VideoStreamParams
}
