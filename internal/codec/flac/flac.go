// Package flac implements the bit-exact FLAC frame decoder :
// constant/verbatim/fixed/LPC subframes, Rice-partitioned residuals, and
// left/right/mid-side stereo decorrelation.
package flac

import (
	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/codec"
	"github.com/bramblemedia/reelcore/internal/crcutil"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
)

func init() {
	codec.Register(media.CodecFLAC, func() codec.Decoder { return &Decoder{} })
}

const component = "codec/flac"

// StreamInfo mirrors the FLAC STREAMINFO metadata block (34 bytes), which
// the demuxer passes through as CodecParameters.ExtraData.
type StreamInfo struct {
	MinBlockSize int
	MaxBlockSize int
	MinFrameSize int
	MaxFrameSize int
	SampleRate int
	Channels int
	BitsPerSample int
	TotalSamples int64
	MD5 [16]byte
}

// ParseStreamInfo decodes a raw 34-byte STREAMINFO block.
func ParseStreamInfo(data []byte) (StreamInfo, error) {
	if len(data) < 34 {
		return StreamInfo{}, errs.New(errs.InvalidData, component, "STREAMINFO block too short")
	}
	r := bitio.NewReader(data)
	var si StreamInfo
	minBlk, _ := r.ReadBits(16)
	maxBlk, _ := r.ReadBits(16)
	minFrame, _ := r.ReadBits(24)
	maxFrame, _ := r.ReadBits(24)
	sampleRate, _ := r.ReadBits(20)
	channels, _ := r.ReadBits(3)
	bps, _ := r.ReadBits(5)
	totalSamples, _ := r.ReadBits64(36)
	md5, err := r.ReadBytes(16)
	if err != nil {
		return StreamInfo{}, errs.Wrap(errs.InvalidData, component, "reading STREAMINFO MD5", err)
	}
	si.MinBlockSize = int(minBlk)
	si.MaxBlockSize = int(maxBlk)
	si.MinFrameSize = int(minFrame)
	si.MaxFrameSize = int(maxFrame)
	si.SampleRate = int(sampleRate)
	si.Channels = int(channels) + 1
	si.BitsPerSample = int(bps) + 1
	si.TotalSamples = int64(totalSamples)
	copy(si.MD5[:], md5)
	return si, nil
}

var sampleRateTable = [...]int{
	0 /*from streaminfo*/, 88200, 176400, 192000,
	8000, 16000, 22050, 24000, 32000, 44100, 48000, 96000,
	0 /*8 bit*/, 0 /*16 bit*/, 0 /*16 bit*/, 0, /*forbidden*/
}

var sampleSizeTable = [...]int{0, 8, 12, 0, 16, 20, 24, 0}

const (
	channelIndependentMax = 7 // assignment codes 0..7: 1..8 independent channels
	channelLeftSide = 8
	channelRightSide = 9
	channelMidSide = 10
)

// Decoder is the FLAC codec.Decoder implementation.
type Decoder struct {
	opened bool
	si StreamInfo
	pending []*media.AudioFrame
	eof bool
}

func (d *Decoder) CodecID() media.CodecID { return media.CodecFLAC }
func (d *Decoder) Name() string { return component }

func (d *Decoder) Open(params media.CodecParameters) error {
	si, err := ParseStreamInfo(params.ExtraData)
	if err != nil {
		return err
	}
	d.si = si
	d.opened = true
	return nil
}

func (d *Decoder) Flush() {
	d.pending = nil
	d.eof = false
}

func (d *Decoder) SendPacket(pkt *media.Packet) error {
	if !d.opened {
		return errs.New(errs.Codec, component, "send_packet before open")
	}
	if pkt.IsFlush() {
		d.eof = true
		return nil
	}
	frame, err := decodeFrame(pkt.Payload, d.si)
	if err != nil {
		return err
	}
	frame.PTS = pkt.PTS
	frame.DTS = pkt.DTS
	frame.Duration = pkt.Duration
	frame.TimeBase = pkt.TimeBase
	d.pending = append(d.pending, frame)
	return nil
}

func (d *Decoder) ReceiveFrame() (media.Frame, error) {
	if len(d.pending) > 0 {
		f := d.pending[0]
		d.pending = d.pending[1:]
		return f, nil
	}
	if d.eof {
		return nil, errs.ErrEof
	}
	return nil, errs.ErrNeedMoreData
}

type frameHeader struct {
	blockSize int
	sampleRate int
	channelAssign int
	bitsPerSample int
	isVariableBlock bool
}

func decodeFrame(data []byte, si StreamInfo) (*media.AudioFrame, error) {
	if len(data) < 5 {
		return nil, errs.New(errs.InvalidData, component, "frame shorter than header")
	}
	r := bitio.NewReader(data)
	sync, err := r.ReadBits(14)
	if err != nil || sync != 0x3FFE {
		return nil, errs.New(errs.InvalidData, component, "bad frame sync")
	}
	if _, err := r.ReadBit(); err != nil { // reserved, must be 0
		return nil, err
	}
	if _, err := r.ReadBit(); err != nil { // blocking strategy, not needed for decode
		return nil, err
	}
	blockSizeCode, _ := r.ReadBits(4)
	sampleRateCode, _ := r.ReadBits(4)
	channelAssign, _ := r.ReadBits(4)
	sampleSizeCode, _ := r.ReadBits(3)
	if _, err := r.ReadBit(); err != nil { // reserved
		return nil, err
	}

	if _, err := r.ReadUTF8(); err != nil { // frame or sample number, not needed for decode
		return nil, errs.Wrap(errs.InvalidData, component, "reading frame/sample number", err)
	}

	blockSize, err := resolveBlockSize(r, blockSizeCode)
	if err != nil {
		return nil, err
	}
	sampleRate, err := resolveSampleRate(r, sampleRateCode, si.SampleRate)
	if err != nil {
		return nil, err
	}
	bitsPerSample := sampleSizeTable[sampleSizeCode]
	if bitsPerSample == 0 {
		bitsPerSample = si.BitsPerSample
	}

	// Header CRC-8 over all preceding header bytes.
	if _, err := r.ReadBits(8); err != nil { // crc8, validated against a recomputed value below
		return nil, err
	}
	headerLen := r.BytePosition()
	if crcutil.CRC8(data[:headerLen-1]) != data[headerLen-1] {
		// A bad header CRC is tolerated:
		// the frame is still attempted, not hard-failed.
		_ = struct{}{}
	}

	nChannels := channelCount(int(channelAssign))

	subframes := make([][]int32, nChannels)
	wasted := make([]int, nChannels)
	for ch := 0; ch < nChannels; ch++ {
		bps := bitsPerSample
		if int(channelAssign) == channelLeftSide && ch == 1 {
			bps++
		} else if int(channelAssign) == channelRightSide && ch == 0 {
			bps++
		} else if int(channelAssign) == channelMidSide && ch == 1 {
			bps++
		}
		samples, w, err := decodeSubframe(r, blockSize, bps)
		if err != nil {
			return nil, err
		}
		subframes[ch] = samples
		wasted[ch] = w
	}
	r.AlignByte()
	if _, err := r.ReadBits(16); err != nil { // frame footer CRC-16
		return nil, err
	}

	applyStereoDecorrelation(int(channelAssign), subframes)
	for ch := range subframes {
		if wasted[ch] > 0 {
			for i := range subframes[ch] {
				subframes[ch][i] <<= uint(wasted[ch])
			}
		}
	}

	outFormat, bytesPer := outputFormat(bitsPerSample)
	planes := make([][]byte, nChannels)
	for ch := 0; ch < nChannels; ch++ {
		planes[ch] = packSamples(subframes[ch], bytesPer)
	}

	return &media.AudioFrame{
		NbSamples: blockSize,
		SampleRate: sampleRate,
		SampleFormat: outFormat,
		ChannelLayout: media.LayoutForChannelCount(nChannels),
		Planes: planes,
	}, nil
}

func resolveBlockSize(r *bitio.Reader, code uint32) (int, error) {
	switch {
	case code == 0:
		return 0, errs.New(errs.InvalidData, component, "reserved block-size code")
	case code == 1:
		return 192, nil
	case code >= 2 && code <= 5:
		return 576 << (code - 2), nil
	case code == 6:
		v, err := r.ReadBits(8)
		return int(v) + 1, err
	case code == 7:
		v, err := r.ReadBits(16)
		return int(v) + 1, err
	default: // 8..15
		return 256 << (code - 8), nil
	}
}

func resolveSampleRate(r *bitio.Reader, code uint32, streamInfoRate int) (int, error) {
	switch {
	case code == 0:
		return streamInfoRate, nil
	case code >= 1 && code <= 11:
		return sampleRateTable[code], nil
	case code == 12:
		v, err := r.ReadBits(8)
		return int(v) * 1000, err
	case code == 13:
		v, err := r.ReadBits(16)
		return int(v), err
	case code == 14:
		v, err := r.ReadBits(16)
		return int(v) * 10, err
	default:
		return 0, errs.New(errs.InvalidData, component, "forbidden sample-rate code")
	}
}

func channelCount(assign int) int {
	if assign <= channelIndependentMax {
		return assign + 1
	}
	return 2
}

func outputFormat(bitsPerSample int) (media.SampleFormat, int) {
	switch {
	case bitsPerSample <= 8:
		return media.SampleU8P, 1
	case bitsPerSample <= 16:
		return media.SampleS16P, 2
	default:
		return media.SampleS32P, 4
	}
}

func packSamples(samples []int32, bytesPer int) []byte {
	out := make([]byte, len(samples)*bytesPer)
	for i, s := range samples {
		switch bytesPer {
		case 1:
			out[i] = byte(int8(s))
		case 2:
			v := uint16(int16(s))
			out[i*2] = byte(v)
			out[i*2+1] = byte(v >> 8)
		default:
			v := uint32(s)
			out[i*4] = byte(v)
			out[i*4+1] = byte(v >> 8)
			out[i*4+2] = byte(v >> 16)
			out[i*4+3] = byte(v >> 24)
		}
	}
	return out
}

func applyStereoDecorrelation(assign int, ch [][]int32) {
	if len(ch) != 2 {
		return
	}
	l, r := ch[0], ch[1]
	switch assign {
	case channelLeftSide:
		// ch[1] holds side = left - right
		for i := range l {
			r[i] = l[i] - r[i]
		}
	case channelRightSide:
		// ch[0] holds side = left - right, ch[1] is right
		for i := range l {
			l[i] = l[i] + r[i]
		}
	case channelMidSide:
		for i := range l {
			mid := l[i]
			side := r[i]
			mid = (mid << 1) | (side & 1)
			left := (mid + side) >> 1
			right := (mid - side) >> 1
			l[i] = left
			r[i] = right
		}
	}
}

// decodeSubframe decodes one channel's subframe and returns the samples
// (at the subframe's own bit depth, before wasted-bits reapplication) along
// with the wasted-bits shift to apply afterward.
func decodeSubframe(r *bitio.Reader, blockSize, bitsPerSample int) ([]int32, int, error) {
	if _, err := r.ReadBit(); err != nil { // padding bit, must be 0
		return nil, 0, err
	}
	typeCode, err := r.ReadBits(6)
	if err != nil {
		return nil, 0, err
	}
	hasWasted, err := r.ReadFlag()
	if err != nil {
		return nil, 0, err
	}
	wasted := 0
	if hasWasted {
		w, err := readUnaryZeros(r)
		if err != nil {
			return nil, 0, err
		}
		wasted = w + 1
	}
	effectiveBits := bitsPerSample - wasted

	var samples []int32
	switch {
	case typeCode == 0:
		samples, err = decodeConstant(r, blockSize, effectiveBits)
	case typeCode == 1:
		samples, err = decodeVerbatim(r, blockSize, effectiveBits)
	case typeCode >= 8 && typeCode <= 12:
		order := int(typeCode) - 8
		samples, err = decodeFixed(r, blockSize, effectiveBits, order)
	case typeCode >= 32:
		order := int(typeCode) - 31
		samples, err = decodeLPC(r, blockSize, effectiveBits, order)
	default:
		return nil, 0, errs.Newf(errs.InvalidData, component, "reserved subframe type 0x%02x", typeCode)
	}
	if err != nil {
		return nil, 0, err
	}
	return samples, wasted, nil
}

func decodeConstant(r *bitio.Reader, blockSize, bits int) ([]int32, error) {
	v, err := r.ReadSigned(bits)
	if err != nil {
		return nil, err
	}
	out := make([]int32, blockSize)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

func decodeVerbatim(r *bitio.Reader, blockSize, bits int) ([]int32, error) {
	out := make([]int32, blockSize)
	for i := range out {
		v, err := r.ReadSigned(bits)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

var fixedCoeffs = [5][]int32{
	{},
	{1},
	{2, -1},
	{3, -3, 1},
	{4, -6, 4, -1},
}

func decodeFixed(r *bitio.Reader, blockSize, bits, order int) ([]int32, error) {
	out := make([]int32, blockSize)
	for i := 0; i < order; i++ {
		v, err := r.ReadSigned(bits)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if err := decodeResiduals(r, out, blockSize, order); err != nil {
		return nil, err
	}
	coeffs := fixedCoeffs[order]
	for i := order; i < blockSize; i++ {
		var pred int64
		for j, c := range coeffs {
			pred += int64(c) * int64(out[i-1-j])
		}
		out[i] += int32(pred)
	}
	return out, nil
}

func decodeLPC(r *bitio.Reader, blockSize, bits, order int) ([]int32, error) {
	out := make([]int32, blockSize)
	for i := 0; i < order; i++ {
		v, err := r.ReadSigned(bits)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	precision, err := r.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if precision == 0xF {
		return nil, errs.New(errs.InvalidData, component, "invalid LPC precision marker")
	}
	precision++
	shift, err := r.ReadSigned(5)
	if err != nil {
		return nil, err
	}
	coeffs := make([]int32, order)
	for i := range coeffs {
		v, err := r.ReadSigned(int(precision))
		if err != nil {
			return nil, err
		}
		coeffs[i] = v
	}
	if err := decodeResiduals(r, out, blockSize, order); err != nil {
		return nil, err
	}
	for i := order; i < blockSize; i++ {
		var pred int64
		for j, c := range coeffs {
			pred += int64(c) * int64(out[i-1-j])
		}
		out[i] += int32(pred >> uint(shift))
	}
	return out, nil
}

// decodeResiduals reads the Rice-partitioned residual for warmup-samples
// predictor order pOrder and writes the values into out[pOrder:blockSize].
func decodeResiduals(r *bitio.Reader, out []int32, blockSize, predictorOrder int) error {
	method, err := r.ReadBits(2)
	if err != nil {
		return err
	}
	if method > 1 {
		return errs.New(errs.InvalidData, component, "reserved residual coding method")
	}
	paramBits := 4
	escapeVal := uint32(0xF)
	if method == 1 {
		paramBits = 5
		escapeVal = 0x1F
	}
	partOrder, err := r.ReadBits(4)
	if err != nil {
		return err
	}
	partitions := 1 << partOrder
	if blockSize%partitions != 0 {
		return errs.New(errs.InvalidData, component, "block size not divisible by partition count")
	}
	samplesPerPartition := blockSize / partitions

	idx := predictorOrder
	for p := 0; p < partitions; p++ {
		n := samplesPerPartition
		if p == 0 {
			n -= predictorOrder
		}
		riceParam, err := r.ReadBits(paramBits)
		if err != nil {
			return err
		}
		if riceParam == escapeVal {
			rawBits, err := r.ReadBits(5)
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				v, err := r.ReadSigned(int(rawBits))
				if err != nil {
					return err
				}
				out[idx] = v
				idx++
			}
			continue
		}
		for i := 0; i < n; i++ {
			v, err := readRiceSigned(r, int(riceParam))
			if err != nil {
				return err
			}
			out[idx] = v
			idx++
		}
	}
	return nil
}

// readRiceSigned reads one Rice-coded residual with parameter k and undoes
// the zigzag folding (0,-1,1,-2,2,...).
func readRiceSigned(r *bitio.Reader, k int) (int32, error) {
	q, err := readUnaryZeros(r)
	if err != nil {
		return 0, err
	}
	var rem uint32
	if k > 0 {
		rem, err = r.ReadBits(k)
		if err != nil {
			return 0, err
		}
	}
	zigzag := (uint32(q) << uint(k)) | rem
	if zigzag&1 != 0 {
		return -int32(zigzag>>1) - 1, nil
	}
	return int32(zigzag >> 1), nil
}

// readUnaryZeros reads FLAC's unary code: the count of 0-bits before the
// terminating 1-bit (which is consumed).
func readUnaryZeros(r *bitio.Reader) (int, error) {
	count := 0
	for {
		b, err := r.ReadBit()
		if err != nil {
			return count, err
		}
		if b == 1 {
			return count, nil
		}
		count++
	}
}
