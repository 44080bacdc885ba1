package flv

import (
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
)

// flvTimeBase is the rational time base every FLV stream uses: tag
// timestamps are milliseconds, per the container format itself.
var flvTimeBase = ratio.New(1, 1000)

// soundRateTable maps the 2-bit soundRate field to a sample rate in Hz, per
// the FLV audio-tag header. Only informative for non-AAC formats: AAC's
// actual sample rate comes from the AudioSpecificConfig the sequence-header
// tag carries.
var soundRateTable = [4]int{5512, 11025, 22050, 44100}

const (
	soundFormatPCMPlatform = 0
	soundFormatMP3 = 2
	soundFormatPCMLE = 3
	soundFormatAAC = 10
	soundFormatMP3_8kHz = 14
)

const (
	aacPacketTypeSequenceHeader = 0
	aacPacketTypeRaw = 1
)

// scanAudioTag parses one audio tag's payload header (the reader is already
// positioned at payloadPos). It returns a tagEntry to index when the tag
// carries playable audio, and/or extraData when the tag is an AAC
// sequence-header (AudioSpecificConfig) rather than a raw access unit.
func (d *Demuxer) scanAudioTag(r *ioutil.Reader, payloadPos int64, dataSize int, timestamp int64) (*tagEntry, []byte, error) {
	if dataSize < 1 {
		return nil, nil, nil
	}
	soundByte, err := r.ReadU8()
	if err != nil {
		return nil, nil, errs.Wrap(errs.Io, component, "reading audio tag header", err)
	}
	soundFormat := soundByte >> 4
	soundRate := (soundByte >> 2) & 0x3
	soundSize := (soundByte >> 1) & 0x1
	soundType := soundByte & 0x1

	codecID, bitsPerSample := resolveAudioCodec(soundFormat, soundSize)
	channels := 1
	if soundType == 1 {
		channels = 2
	}
	if !d.audio.present {
		d.audio.present = true
		d.audio.streamIndex = d.nextIndex
		d.nextIndex++
		d.audio.stream = media.Stream{
			Index: d.audio.streamIndex,
			MediaType: media.Audio,
			CodecID: codecID,
			TimeBase: flvTimeBase,
			Duration: -1,
			Metadata: map[string]string{},
			Params: media.StreamParams{
				Audio: &media.AudioStreamParams{
					SampleRate: soundRateTable[soundRate],
					ChannelLayout: media.LayoutForChannelCount(channels),
					SampleFormat: media.SampleS16,
					BitsPerSample: bitsPerSample,
				},
			},
		}
	}

	if soundFormat == soundFormatAAC {
		if dataSize < 2 {
			return nil, nil, errs.New(errs.InvalidData, component, "AAC audio tag too short")
		}
		packetType, err := r.ReadU8()
		if err != nil {
			return nil, nil, errs.Wrap(errs.Io, component, "reading AACPacketType", err)
		}
		remaining := dataSize - 2
		if packetType == aacPacketTypeSequenceHeader {
			asc, err := r.ReadExact(remaining)
			if err != nil {
				return nil, nil, errs.Wrap(errs.Io, component, "reading AAC sequence header", err)
			}
			return nil, asc, nil
		}
		return &tagEntry{
			offset: payloadPos + 2,
			size: remaining,
			streamIndex: d.audio.streamIndex,
			pts: timestamp,
			dts: timestamp,
			keyframe: true,
		}, nil, nil
	}

	remaining := dataSize - 1
	if remaining <= 0 {
		return nil, nil, nil
	}
	return &tagEntry{
		offset: payloadPos + 1,
		size: remaining,
		streamIndex: d.audio.streamIndex,
		pts: timestamp,
		dts: timestamp,
		keyframe: true,
	}, nil, nil
}

// resolveAudioCodec maps an FLV soundFormat nibble (and, for linear PCM,
// the soundSize bit) onto this package's codec IDs. Formats this decoder has
// no decoder for (ADPCM, G.711, Speex, Nellymoser,...) map to
// CodecUnknown rather than failing the whole container, the same posture
// internal/demux/ogg takes toward Vorbis/Opus/Theora.
func resolveAudioCodec(soundFormat, soundSize byte) (media.CodecID, int) {
	switch soundFormat {
	case soundFormatAAC:
		return media.CodecAAC, 16
	case soundFormatMP3, soundFormatMP3_8kHz:
		return media.CodecMP3, 16
	case soundFormatPCMLE, soundFormatPCMPlatform:
		if soundSize == 1 {
			return media.CodecPCMS16LE, 16
		}
		return media.CodecPCMU8, 8
	default:
		return media.CodecUnknown, 0
	}
}

const (
	videoFrameTypeKeyframe = 1
)

const (
	videoCodecAVC = 7
	videoCodecHEVC = 12
)

const (
	avcPacketTypeSequenceHeader = 0
	avcPacketTypeNALU = 1
	avcPacketTypeEndOfSequence = 2
)

// scanVideoTag parses one video tag's payload header. AVC and HEVC tags
// carry an AVCPacketType byte and a 24-bit signed composition-time offset
// (pts = dts + cts); every other FLV video codec ID has no such framing and
// the payload is the raw frame directly after the codec-ID byte.
func (d *Demuxer) scanVideoTag(r *ioutil.Reader, payloadPos int64, dataSize int, timestamp int64) (*tagEntry, []byte, error) {
	if dataSize < 1 {
		return nil, nil, nil
	}
	codecByte, err := r.ReadU8()
	if err != nil {
		return nil, nil, errs.Wrap(errs.Io, component, "reading video tag header", err)
	}
	frameType := codecByte >> 4
	codecIDByte := codecByte & 0xF
	keyframe := frameType == videoFrameTypeKeyframe

	codecID := resolveVideoCodec(codecIDByte)
	if !d.video.present {
		d.video.present = true
		d.video.streamIndex = d.nextIndex
		d.nextIndex++
		d.video.stream = media.Stream{
			Index: d.video.streamIndex,
			MediaType: media.Video,
			CodecID: codecID,
			TimeBase: flvTimeBase,
			Duration: -1,
			Metadata: map[string]string{},
			Params: media.StreamParams{
				Video: &media.VideoStreamParams{
					PixelFormat: media.YUV420P,
				},
			},
		}
	}

	if codecIDByte == videoCodecAVC || codecIDByte == videoCodecHEVC {
		if dataSize < 5 {
			return nil, nil, errs.New(errs.InvalidData, component, "AVC/HEVC video tag too short")
		}
		packetType, err := r.ReadU8()
		if err != nil {
			return nil, nil, errs.Wrap(errs.Io, component, "reading AVCPacketType", err)
		}
		ctsBytes, err := r.ReadExact(3)
		if err != nil {
			return nil, nil, errs.Wrap(errs.Io, component, "reading composition time offset", err)
		}
		cts := signed24(ctsBytes)
		remaining := dataSize - 5

		switch packetType {
		case avcPacketTypeSequenceHeader:
			cfg, err := r.ReadExact(remaining)
			if err != nil {
				return nil, nil, errs.Wrap(errs.Io, component, "reading AVC sequence header", err)
			}
			return nil, cfg, nil
		case avcPacketTypeEndOfSequence:
			return nil, nil, nil
		default:
			return &tagEntry{
				offset: payloadPos + 5,
				size: remaining,
				streamIndex: d.video.streamIndex,
				pts: timestamp + cts,
				dts: timestamp,
				keyframe: keyframe,
			}, nil, nil
		}
	}

	remaining := dataSize - 1
	if remaining <= 0 {
		return nil, nil, nil
	}
	return &tagEntry{
		offset: payloadPos + 1,
		size: remaining,
		streamIndex: d.video.streamIndex,
		pts: timestamp,
		dts: timestamp,
		keyframe: keyframe,
	}, nil, nil
}

// resolveVideoCodec maps an FLV video-tag codec-ID nibble onto this
// module's codec IDs. Sorenson H.263/Screen Video/VP6 have no decoder here
// and map to CodecUnknown so the stream is still exposed.
func resolveVideoCodec(codecID byte) media.CodecID {
	switch codecID {
	case videoCodecAVC:
		return media.CodecH264
	case videoCodecHEVC:
		return media.CodecH265
	default:
		return media.CodecUnknown
	}
}

// signed24 interprets a 3-byte big-endian field as a two's-complement
// signed integer, per the FLV composition-time-offset encoding.
func signed24(b []byte) int64 {
	v := int64(b[0])<<16 | int64(b[1])<<8 | int64(b[2])
	if v&0x800000 != 0 {
		v -= 0x1000000
	}
	return v
}
