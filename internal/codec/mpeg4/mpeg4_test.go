package mpeg4

import (
	"testing"

	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/codec"
	"github.com/bramblemedia/reelcore/internal/media"
)

// bitWriter is a small test-only helper for constructing exact bit
// sequences to exercise the VOL/VOP/macroblock bit-field parsers.
type bitWriter struct {
	buf  []byte
	cur  byte
	nbit int
}

func (w *bitWriter) writeBit(b int) {
	w.cur = w.cur<<1 | byte(b&1)
	w.nbit++
	if w.nbit == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.nbit = 0
	}
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit(int((v >> uint(i)) & 1))
	}
}

func (w *bitWriter) writeFlag(b bool) {
	if b {
		w.writeBit(1)
	} else {
		w.writeBit(0)
	}
}

// writeUnary writes n one-bits followed by a terminating zero, matching
// bitio.Reader.ReadUnary's convention.
func (w *bitWriter) writeUnary(n int) {
	for i := 0; i < n; i++ {
		w.writeBit(1)
	}
	w.writeBit(0)
}

func (w *bitWriter) bytes() []byte {
	if w.nbit > 0 {
		w.buf = append(w.buf, w.cur<<uint(8-w.nbit))
		w.cur = 0
		w.nbit = 0
	}
	return w.buf
}

func TestSplitStartCodesBasic(t *testing.T) {
	var data []byte
	data = append(data, 0x00, 0x00, 0x01, startCodeVOLMin, 0xAA, 0xBB)
	data = append(data, 0x00, 0x00, 0x01, startCodeVOP, 0xCC, 0xDD, 0xEE)

	units := splitStartCodes(data)
	if len(units) != 2 {
		t.Fatalf("len(units) = %d, want 2", len(units))
	}
	if units[0].Code != startCodeVOLMin {
		t.Errorf("units[0].Code = %#x, want %#x", units[0].Code, startCodeVOLMin)
	}
	if string(units[0].Payload) != "\xAA\xBB" {
		t.Errorf("units[0].Payload = %v", units[0].Payload)
	}
	if units[1].Code != startCodeVOP {
		t.Errorf("units[1].Code = %#x, want %#x", units[1].Code, startCodeVOP)
	}
	if string(units[1].Payload) != "\xCC\xDD\xEE" {
		t.Errorf("units[1].Payload = %v", units[1].Payload)
	}
}

func TestSplitStartCodesEmpty(t *testing.T) {
	if units := splitStartCodes(nil); units != nil {
		t.Errorf("splitStartCodes(nil) = %v, want nil", units)
	}
	if units := splitStartCodes([]byte{0x00, 0x00}); units != nil {
		t.Errorf("splitStartCodes(too short) = %v, want nil", units)
	}
}

// minimalRectangularVOLBits builds a simple/core-profile rectangular VOL
// header: 176x144, vop_time_increment_resolution=30, 8-bit samples, no
// custom quantization matrices, resync markers enabled.
func minimalRectangularVOLBits() []byte {
	w := &bitWriter{}
	w.writeBit(0)          // random_accessible_vol
	w.writeBits(1, 8)      // video_object_type_indication
	w.writeFlag(false)     // is_object_layer_identifier
	w.writeBits(1, 4)      // aspect_ratio_info (square pixel)
	w.writeFlag(false)     // vol_control_parameters
	w.writeBits(0, 2)      // video_object_layer_shape: rectangular
	w.writeBit(1)          // marker_bit
	w.writeBits(30, 16)    // vop_time_increment_resolution
	w.writeBit(1)          // marker_bit
	w.writeFlag(false)     // fixed_vop_rate
	w.writeBit(1)          // marker_bit
	w.writeBits(176, 13)   // video_object_layer_width
	w.writeBit(1)          // marker_bit
	w.writeBits(144, 13)   // video_object_layer_height
	w.writeBit(1)          // marker_bit
	w.writeFlag(false)     // interlaced
	w.writeFlag(false)     // obmc_disable
	w.writeBits(0, 1)      // sprite_enable (verid==1 -> 1 bit)
	w.writeFlag(false)     // not_8_bit
	w.writeFlag(false)     // quant_type
	w.writeFlag(true)      // complexity_estimation_disable
	w.writeFlag(false)     // resync_marker_disable
	w.writeFlag(false)     // data_partitioned
	w.writeFlag(false)     // scalability
	return w.bytes()
}

func TestParseVOLMinimalRectangular(t *testing.T) {
	r := bitio.NewReader(minimalRectangularVOLBits())
	vol, err := ParseVOL(r, 0)
	if err != nil {
		t.Fatalf("ParseVOL: %v", err)
	}
	if vol.Width != 176 || vol.Height != 144 {
		t.Errorf("Width/Height = %d/%d, want 176/144", vol.Width, vol.Height)
	}
	if vol.Shape != 0 {
		t.Errorf("Shape = %d, want 0 (rectangular)", vol.Shape)
	}
	if vol.VopTimeIncrementResolution != 30 {
		t.Errorf("VopTimeIncrementResolution = %d, want 30", vol.VopTimeIncrementResolution)
	}
	if vol.QuantPrecision != 5 || vol.BitsPerPixel != 8 {
		t.Errorf("QuantPrecision/BitsPerPixel = %d/%d, want 5/8", vol.QuantPrecision, vol.BitsPerPixel)
	}
	if vol.ResyncMarkerDisable {
		t.Errorf("ResyncMarkerDisable = true, want false")
	}
}

func minimalIVOPBits(vol *VOLHeader, quant int) []byte {
	w := &bitWriter{}
	w.writeBits(uint32(VOPTypeI), 2) // vop_coding_type
	w.writeBit(0)                    // modulo_time_base terminator (value 0)
	w.writeBit(1)                    // marker_bit
	w.writeBits(1, vol.VopTimeIncrementBits)
	w.writeBit(1)                 // marker_bit
	w.writeFlag(true)             // vop_coded
	w.writeBits(0, 3)             // intra_dc_vlc_thr
	w.writeBits(uint32(quant), vol.QuantPrecision)
	return w.bytes()
}

func TestParseVOPIFrame(t *testing.T) {
	r := bitio.NewReader(minimalRectangularVOLBits())
	vol, err := ParseVOL(r, 0)
	if err != nil {
		t.Fatalf("ParseVOL: %v", err)
	}
	vr := bitio.NewReader(minimalIVOPBits(vol, 10))
	vop, err := ParseVOP(vr, vol)
	if err != nil {
		t.Fatalf("ParseVOP: %v", err)
	}
	if vop.PicType != VOPTypeI {
		t.Errorf("PicType = %d, want VOPTypeI", vop.PicType)
	}
	if !vop.Coded {
		t.Errorf("Coded = false, want true")
	}
	if vop.Quant != 10 {
		t.Errorf("Quant = %d, want 10", vop.Quant)
	}
	if vop.TimeIncrement != 1 {
		t.Errorf("TimeIncrement = %d, want 1", vop.TimeIncrement)
	}
}

func TestDecodeMCBPCIntraVOP(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0xC, 4) // canonical codeword 1100 -> val 3: mbTypeIntra, cbpc 3
	r := bitio.NewReader(w.bytes())
	mbType, cbpc, notCoded, err := decodeMCBPC(r, true)
	if err != nil {
		t.Fatalf("decodeMCBPC: %v", err)
	}
	if notCoded {
		t.Fatalf("notCoded = true, want false")
	}
	if mbType != mbTypeIntra {
		t.Errorf("mbType = %d, want mbTypeIntra", mbType)
	}
	if cbpc != 3 {
		t.Errorf("cbpc = %d, want 3", cbpc)
	}
}

func TestDecodeMCBPCInterNotCoded(t *testing.T) {
	w := &bitWriter{}
	w.writeBit(1) // not_coded
	r := bitio.NewReader(w.bytes())
	_, _, notCoded, err := decodeMCBPC(r, false)
	if err != nil {
		t.Fatalf("decodeMCBPC: %v", err)
	}
	if !notCoded {
		t.Errorf("notCoded = false, want true")
	}
}

func TestDecodeMCBPCInter4V(t *testing.T) {
	w := &bitWriter{}
	w.writeBit(0)   // coded
	w.writeBits(0x6C, 7) // canonical codeword 1101100 -> val 9: INTER4V, cbpc 1
	r := bitio.NewReader(w.bytes())
	mbType, cbpc, notCoded, err := decodeMCBPC(r, false)
	if err != nil {
		t.Fatalf("decodeMCBPC: %v", err)
	}
	if notCoded {
		t.Fatalf("notCoded = true, want false")
	}
	if mbType != mbTypeInter4V {
		t.Errorf("mbType = %d, want mbTypeInter4V", mbType)
	}
	if cbpc != 1 {
		t.Errorf("cbpc = %d, want 1", cbpc)
	}
}

func TestDecodeDQUANT(t *testing.T) {
	cases := []struct {
		bits uint32
		want int
	}{
		{0, -2}, {1, -1}, {2, 1}, {3, 2},
	}
	for _, c := range cases {
		w := &bitWriter{}
		w.writeBits(c.bits, 2)
		r := bitio.NewReader(w.bytes())
		got, err := decodeDQUANT(r)
		if err != nil {
			t.Fatalf("decodeDQUANT: %v", err)
		}
		if got != c.want {
			t.Errorf("decodeDQUANT(%02b) = %d, want %d", c.bits, got, c.want)
		}
	}
}

func TestDecodeMVDAndRangeWrap(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0xA, 4) // canonical codeword 1010 -> class 2
	w.writeBits(1, 1) // residual bit (fcode=2 -> residualBits=1)
	w.writeBit(1)     // sign: negative
	r := bitio.NewReader(w.bytes())
	got, err := decodeMVD(r, 2)
	if err != nil {
		t.Fatalf("decodeMVD: %v", err)
	}
	if got != -4 {
		t.Errorf("decodeMVD = %d, want -4", got)
	}
}

func TestRangeWrapMV(t *testing.T) {
	if got := rangeWrapMV(70, 1); got != 6 {
		t.Errorf("rangeWrapMV(70,1) = %d, want 6", got)
	}
	if got := rangeWrapMV(0, 1); got != 0 {
		t.Errorf("rangeWrapMV(0,1) = %d, want 0", got)
	}
}

func TestMedianOf3(t *testing.T) {
	if got := medianOf3(5, 1, 3); got != 3 {
		t.Errorf("medianOf3(5,1,3) = %d, want 3", got)
	}
	if got := medianOf3(-1, -1, -1); got != -1 {
		t.Errorf("medianOf3(-1,-1,-1) = %d, want -1", got)
	}
}

func TestLog2Ceil(t *testing.T) {
	cases := map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 30: 5}
	for n, want := range cases {
		if got := log2Ceil(n); got != want {
			t.Errorf("log2Ceil(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestDeriveChromaMV(t *testing.T) {
	mv := [4][2]int16{{8, 8}, {8, 8}, {8, 8}, {8, 8}}
	got := deriveChromaMV(mv)
	if got != [2]int16{4, 4} {
		t.Errorf("deriveChromaMV = %v, want {4 4}", got)
	}
}

func TestDequantCoeffH263Style(t *testing.T) {
	mat := defaultFlatQuantMat
	if got := dequantCoeff(3, 5, 0, false, mat); got != 35 {
		t.Errorf("dequantCoeff(3,5,odd) = %d, want 35", got)
	}
	if got := dequantCoeff(-3, 4, 0, false, mat); got != -27 {
		t.Errorf("dequantCoeff(-3,4,even) = %d, want -27", got)
	}
	if got := dequantCoeff(0, 5, 0, false, mat); got != 0 {
		t.Errorf("dequantCoeff(0,...) = %d, want 0", got)
	}
}

// TestCopyMBFromReferenceZeroMV mirrors not_coded skip
// path: a zero-motion-vector copy from the reference must reproduce the
// co-located reference samples exactly.
func TestCopyMBFromReferenceZeroMV(t *testing.T) {
	vol := &VOLHeader{Width: 16, Height: 16, QuantPrecision: 5, BitsPerPixel: 8}
	vol.IntraQuantMat = defaultFlatQuantMat
	vol.NonIntraQuantMat = defaultFlatQuantMat

	ref := newPicture(vol)
	for i := range ref.Y {
		ref.Y[i] = 77
	}
	for i := range ref.U {
		ref.U[i] = 150
	}
	for i := range ref.V {
		ref.V[i] = 160
	}

	pic := newPicture(vol)
	ctx := &decodeContext{
		vol:      vol,
		vop:      &VOPHeader{PicType: VOPTypeP},
		pic:      pic,
		ref:      ref,
		counters: &errorCounters{},
	}
	mb := pic.mbAt(0, 0)
	copyMBFromReference(ctx, mb, 0, 0, [2]int16{0, 0})

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if got := pic.Y[y*pic.YStride+x]; got != 77 {
				t.Fatalf("Y[%d][%d] = %d, want 77", y, x, got)
			}
		}
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if got := pic.U[y*pic.CStride+x]; got != 150 {
				t.Fatalf("U[%d][%d] = %d, want 150", y, x, got)
			}
			if got := pic.V[y*pic.CStride+x]; got != 160 {
				t.Fatalf("V[%d][%d] = %d, want 160", y, x, got)
			}
		}
	}
}

// TestCBPYFailureFallback exercises named containment
// policy: a macroblock whose CBPY read fails falls back to cbpy=0 and a
// counted event, rather than aborting the picture outright. decodeCBPY's
// own contract is simple enough to check directly: on short input it
// reports an error, which decodeMacroblock is documented (mb.go) to treat
// as cbpy=0 plus ctx.counters.CBPYFallbacks++.
func TestCBPYFailureFallback(t *testing.T) {
	r := bitio.NewReader(nil)
	if _, err := decodeCBPY(r); err == nil {
		t.Fatalf("decodeCBPY on empty reader: want error, got nil")
	}
}

func TestDecoderRegisteredForMPEG4Part2(t *testing.T) {
	if !codec.Registered(media.CodecMPEG4Part2) {
		t.Fatalf("codec.Registered(CodecMPEG4Part2) = false, want true")
	}
}

func TestDecoderSendPacketBeforeOpen(t *testing.T) {
	d := &Decoder{}
	err := d.SendPacket(&media.Packet{Payload: []byte{0x00, 0x00, 0x01, startCodeVOP}})
	if err == nil {
		t.Fatalf("SendPacket before Open: want error, got nil")
	}
}

func TestDecoderOpenAndFlush(t *testing.T) {
	d := &Decoder{}
	if err := d.Open(media.CodecParameters{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	d.ref = newPicture(&VOLHeader{Width: 16, Height: 16})
	d.Flush()
	if d.ref != nil {
		t.Errorf("ref after Flush = %v, want nil", d.ref)
	}
}

func TestDecoderVOPBeforeVOLIsMalformed(t *testing.T) {
	d := &Decoder{}
	if err := d.Open(media.CodecParameters{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	data := append([]byte{0x00, 0x00, 0x01, startCodeVOP}, 0xAA, 0xBB)
	if err := d.SendPacket(&media.Packet{Payload: data}); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	cbpy, resync, dropped := d.Counters()
	_ = cbpy
	_ = resync
	if dropped != 1 {
		t.Errorf("MalformedMbDrops = %d, want 1", dropped)
	}
}
