package mp4

import (
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
)

// sampleDescription is what parseSTSD extracts from one stsd entry: the
// codec tag's mapped CodecID plus whatever extra_data that codec's decoder
// needs (avcC/hvcC NAL-unit config, esds AudioSpecificConfig,...).
type sampleDescription struct {
	CodecID media.CodecID
	ExtraData []byte
	Audio *media.AudioStreamParams
	Video *media.VideoStreamParams
}

// videoSampleEntryCodecs maps ISO-BMFF video sample-entry FourCCs to a
// CodecID. Sample entries outside this set produce CodecUnknown so callers
// can still expose the stream without a working decoder behind it.
var videoSampleEntryCodecs = map[string]media.CodecID{
	"avc1": media.CodecH264,
	"avc3": media.CodecH264,
	"hev1": media.CodecH265,
	"hvc1": media.CodecH265,
	"mp4v": media.CodecMPEG4Part2,
}

var audioSampleEntryCodecs = map[string]media.CodecID{
	"mp4a": media.CodecAAC,
	".mp3": media.CodecMP3,
	"fLaC": media.CodecFLAC,
	"twos": media.CodecPCMS16BE,
	"sowt": media.CodecPCMS16LE,
	"raw ": media.CodecPCMU8,
}

// parseSTSD reads the one sample-description entry this package supports
// (the first one; multi-entry stsd tracks with mid-stream format switches
// are outside scope) and returns its codec mapping.
func parseSTSD(r *ioutil.Reader, hdr boxHeader, mediaType media.MediaType) (sampleDescription, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return sampleDescription{}, err
	}
	entryCount, err := r.ReadU32BE()
	if err != nil {
		return sampleDescription{}, err
	}
	if entryCount == 0 {
		return sampleDescription{}, errs.New(errs.InvalidData, component, "stsd has no entries")
	}

	entryHdr, err := readBoxHeader(r, hdr.PayloadEnd)
	if err != nil {
		return sampleDescription{}, err
	}
	if _, err := r.Seek(ioutil.SeekStart, entryHdr.PayloadPos); err != nil {
		return sampleDescription{}, err
	}

	switch mediaType {
	case media.Video:
		return parseVideoSampleEntry(r, entryHdr)
	case media.Audio:
		return parseAudioSampleEntry(r, entryHdr)
	default:
		return sampleDescription{CodecID: media.CodecUnknown}, nil
	}
}

func parseVideoSampleEntry(r *ioutil.Reader, hdr boxHeader) (sampleDescription, error) {
	// SampleEntry base (8) + reserved[4](4x2=... actually 6 bytes)+data_ref_index(2)
	if err := r.Skip(6 + 2); err != nil {
		return sampleDescription{}, err
	}
	// VisualSampleEntry fixed fields: pre_defined(2)+reserved(2)+pre_defined[3](12)
	// +width(2)+height(2)+horizresolution(4)+vertresolution(4)+reserved(4)
	// +frame_count(2)+compressorname(32)+depth(2)+pre_defined(2)
	if err := r.Skip(2 + 2 + 12); err != nil {
		return sampleDescription{}, err
	}
	width, err := r.ReadU16BE()
	if err != nil {
		return sampleDescription{}, err
	}
	height, err := r.ReadU16BE()
	if err != nil {
		return sampleDescription{}, err
	}
	if err := r.Skip(4 + 4 + 4 + 2 + 32 + 2 + 2); err != nil {
		return sampleDescription{}, err
	}

	codecID, ok := videoSampleEntryCodecs[hdr.Type]
	if !ok {
		codecID = media.CodecUnknown
	}

	desc := sampleDescription{
		CodecID: codecID,
		Video: &media.VideoStreamParams{
			Width: int(width),
			Height: int(height),
			PixelFormat: media.YUV420P,
		},
	}

	err = walkBoxes(r, hdr.PayloadEnd, func(child boxHeader) error {
		switch child.Type {
		case "avcC", "hvcC":
			n := child.PayloadEnd - child.PayloadPos
			if n <= 0 {
				return nil
			}
			b, err := r.ReadExact(int(n))
			if err != nil {
				return err
			}
			desc.ExtraData = b
		}
		return nil
	})
	if err != nil {
		return sampleDescription{}, err
	}
	return desc, nil
}

func parseAudioSampleEntry(r *ioutil.Reader, hdr boxHeader) (sampleDescription, error) {
	if err := r.Skip(6 + 2); err != nil {
		return sampleDescription{}, err
	}
	// AudioSampleEntry: reserved[2](8)+channelcount(2)+samplesize(2)
	// +pre_defined(2)+reserved(2)+samplerate(4, 16.16 fixed point)
	if err := r.Skip(8); err != nil {
		return sampleDescription{}, err
	}
	channelCount, err := r.ReadU16BE()
	if err != nil {
		return sampleDescription{}, err
	}
	sampleSize, err := r.ReadU16BE()
	if err != nil {
		return sampleDescription{}, err
	}
	if err := r.Skip(2 + 2); err != nil {
		return sampleDescription{}, err
	}
	sampleRateFixed, err := r.ReadU32BE()
	if err != nil {
		return sampleDescription{}, err
	}
	sampleRate := int(sampleRateFixed >> 16)

	codecID, ok := audioSampleEntryCodecs[hdr.Type]
	if !ok {
		codecID = media.CodecUnknown
	}

	desc := sampleDescription{
		CodecID: codecID,
		Audio: &media.AudioStreamParams{
			SampleRate: sampleRate,
			ChannelLayout: media.LayoutForChannelCount(int(channelCount)),
			SampleFormat: media.SampleS16,
			BitsPerSample: int(sampleSize),
		},
	}

	err = walkBoxes(r, hdr.PayloadEnd, func(child boxHeader) error {
		if child.Type != "esds" {
			return nil
		}
		n := child.PayloadEnd - child.PayloadPos
		if n <= 0 {
			return nil
		}
		b, err := r.ReadExact(int(n))
		if err != nil {
			return err
		}
		asc, err := extractAudioSpecificConfig(b)
		if err != nil {
			return err
		}
		desc.ExtraData = asc
		return nil
	})
	if err != nil {
		return sampleDescription{}, err
	}
	return desc, nil
}

// descriptor tags of the MPEG-4 systems descriptor tree (ISO/IEC 14496-1
// §8.3) esds wraps: ES_Descriptor → DecoderConfigDescriptor →
// DecoderSpecificInfo, the last of which carries the raw AudioSpecificConfig
// the AAC decoder expects as extra_data.
const (
	tagESDescriptor = 0x03
	tagDecoderConfigDescriptor = 0x04
	tagDecoderSpecificInfo = 0x05
)

// extractAudioSpecificConfig walks the esds box payload (already past the
// 4-byte version/flags header) looking for the DecoderSpecificInfo payload
// nested inside the ES_Descriptor → DecoderConfigDescriptor tree.
func extractAudioSpecificConfig(esdsPayload []byte) ([]byte, error) {
	if len(esdsPayload) < 4 {
		return nil, errs.New(errs.InvalidData, component, "esds too short")
	}
	buf := esdsPayload[4:]

	es, ok := readDescriptor(buf, tagESDescriptor)
	if !ok {
		return nil, errs.New(errs.InvalidData, component, "esds: missing ES_Descriptor")
	}
	// ES_Descriptor: ES_ID(2) + flags(1), then optional fields gated on
	// the flags byte's top 3 bits, then the nested descriptors.
	if len(es) < 3 {
		return nil, errs.New(errs.InvalidData, component, "esds: ES_Descriptor too short")
	}
	flags := es[2]
	pos := 3
	const (
		streamDependenceFlag = 1 << 7
		urlFlag = 1 << 6
		ocrStreamFlag = 1 << 5
	)
	if flags&streamDependenceFlag != 0 {
		pos += 2
	}
	if flags&urlFlag != 0 {
		if pos >= len(es) {
			return nil, errs.New(errs.InvalidData, component, "esds: truncated URL field")
		}
		urlLen := int(es[pos])
		pos += 1 + urlLen
	}
	if flags&ocrStreamFlag != 0 {
		pos += 2
	}
	if pos > len(es) {
		return nil, errs.New(errs.InvalidData, component, "esds: truncated ES_Descriptor")
	}

	dcd, ok := readDescriptor(es[pos:], tagDecoderConfigDescriptor)
	if !ok {
		return nil, errs.New(errs.InvalidData, component, "esds: missing DecoderConfigDescriptor")
	}
	// DecoderConfigDescriptor: objectTypeIndication(1)+streamType/upStream/
	// reserved(1)+bufferSizeDB(3)+maxBitrate(4)+avgBitrate(4), then the
	// nested DecoderSpecificInfo.
	const dcdFixedFields = 1 + 1 + 3 + 4 + 4
	if len(dcd) < dcdFixedFields {
		return nil, errs.New(errs.InvalidData, component, "esds: DecoderConfigDescriptor too short")
	}
	dsi, ok := readDescriptor(dcd[dcdFixedFields:], tagDecoderSpecificInfo)
	if !ok {
		return nil, errs.New(errs.InvalidData, component, "esds: missing DecoderSpecificInfo")
	}
	return dsi, nil
}

// readDescriptor scans buf for a descriptor whose tag matches wantTag,
// returning its payload. Descriptor sizes use the MPEG-4 "expandable class"
// length encoding: each length byte's top bit marks continuation, the low 7
// bits contribute to the value, most to least significant byte first.
func readDescriptor(buf []byte, wantTag byte) ([]byte, bool) {
	pos := 0
	for pos < len(buf) {
		tag := buf[pos]
		pos++
		size := 0
		for {
			if pos >= len(buf) {
				return nil, false
			}
			b := buf[pos]
			pos++
			size = (size << 7) | int(b&0x7F)
			if b&0x80 == 0 {
				break
			}
		}
		if pos+size > len(buf) {
			return nil, false
		}
		payload := buf[pos : pos+size]
		if tag == wantTag {
			return payload, true
		}
		pos += size
	}
	return nil, false
}
