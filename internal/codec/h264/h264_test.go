package h264

import (
	"testing"

	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/media"
)

func TestSplitAnnexBMixedStartCodes(t *testing.T) {
	t.Parallel()
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xE0, 0x1E,
		0x00, 0x00, 0x01, 0x68, 0xCE, 0x38, 0x80,
		0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84, 0x00, 0xFF, 0xFE,
	}
	units := splitAnnexB(data)
	if len(units) != 3 {
		t.Fatalf("expected 3 NAL units, got %d", len(units))
	}
	if units[0].Type != nalTypeSPS {
		t.Errorf("unit 0: got type %d, want SPS (7)", units[0].Type)
	}
	if units[1].Type != nalTypePPS {
		t.Errorf("unit 1: got type %d, want PPS (8)", units[1].Type)
	}
	if units[2].Type != nalTypeSliceIDR {
		t.Errorf("unit 2: got type %d, want IDR (5)", units[2].Type)
	}
	if units[2].RefIDC != 3 {
		t.Errorf("unit 2 ref_idc: got %d, want 3", units[2].RefIDC)
	}
}

func TestSplitAnnexBEmpty(t *testing.T) {
	t.Parallel()
	if units := splitAnnexB(nil); units != nil {
		t.Errorf("expected nil for empty input, got %d units", len(units))
	}
	if units := splitAnnexB([]byte{0x00, 0x01}); units != nil {
		t.Errorf("expected nil for too-short input, got %d units", len(units))
	}
}

func TestSplitAVCC(t *testing.T) {
	t.Parallel()
	data := []byte{
		0x00, 0x00, 0x00, 0x02, 0x65, 0x88,
		0x00, 0x00, 0x00, 0x03, 0x41, 0x9A, 0x00,
	}
	units := splitAVCC(data, 4)
	if len(units) != 2 {
		t.Fatalf("expected 2 NAL units, got %d", len(units))
	}
	if units[0].Type != nalTypeSliceIDR {
		t.Errorf("unit 0: got type %d, want IDR (5)", units[0].Type)
	}
	if units[1].Type != nalTypeSliceNonIDR {
		t.Errorf("unit 1: got type %d, want non-IDR (1)", units[1].Type)
	}
}

// These two SPS payloads are real encoder output, exercised here against
// the codec package's parser to confirm ParseSPS derives the expected
// cropped width/height.
func TestParseSPSWidthHeight720p(t *testing.T) {
	t.Parallel()
	raw := []byte{
		0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40, 0x50,
		0x05, 0xbb, 0xff, 0x00, 0x03, 0x00, 0x04, 0x6a,
		0x02, 0x02, 0x02, 0x80, 0x00, 0x01, 0xf4, 0x80,
		0x00, 0x5d, 0xc0, 0x07, 0x8c, 0x18, 0xcb,
	}
	sps, err := ParseSPS(bitio.NewReader(removeEmulationPrevention(raw)))
	if err != nil {
		t.Fatalf("ParseSPS error: %v", err)
	}
	if w := sps.Width(); w != 1280 {
		t.Errorf("width: got %d, want 1280", w)
	}
	if h := sps.Height(); h != 720 {
		t.Errorf("height: got %d, want 720", h)
	}
}

func TestParseSPSWidthHeightSmall(t *testing.T) {
	t.Parallel()
	raw := []byte{
		0x4d, 0x40, 0x1f, 0xb9, 0x08, 0x08, 0x0c,
		0xd8, 0x0b, 0x50, 0x10, 0x10, 0x14, 0x00, 0x00,
		0x0f, 0xa4, 0x00, 0x02, 0xee, 0x03, 0x81, 0x80,
		0x04, 0x93, 0xc0, 0x02, 0x49, 0xe8, 0xa0, 0xc0,
		0x3a, 0x8e, 0x18, 0xc9,
	}
	sps, err := ParseSPS(bitio.NewReader(removeEmulationPrevention(raw)))
	if err != nil {
		t.Fatalf("ParseSPS error: %v", err)
	}
	if w := sps.Width(); w != 256 {
		t.Errorf("width: got %d, want 256", w)
	}
	if h := sps.Height(); h != 192 {
		t.Errorf("height: got %d, want 192", h)
	}
}

func TestParseSPSTooShort(t *testing.T) {
	t.Parallel()
	_, err := ParseSPS(bitio.NewReader([]byte{0x64, 0x00}))
	if err == nil {
		t.Error("expected error for too-short SPS")
	}
}

// TestPSkipZeroMVFallback is the P_Skip zero-MV fallback scenario:
// a 32x32 (2x2 macroblock) picture, one prior reference frame, and a
// skipped macroblock whose left and top neighbors both already carry
// ref_idx_l0=0 with mv=(0,0) — per §8.4.1.1, the skip MV stays zero and
// motion compensation copies the co-located reference samples verbatim.
func TestPSkipZeroMVFallback(t *testing.T) {
	t.Parallel()
	sps := &SPS{
		ChromaFormatIDC:     1,
		BitDepthLuma:        8,
		BitDepthChroma:      8,
		Log2MaxFrameNum:     4,
		MaxNumRefFrames:     1,
		MaxNumReorderFrames: 0,
		PicWidthInMbs:       2,
		PicHeightInMapUnits: 2,
		FrameMbsOnly:        true,
	}

	ref := newPicture(sps)
	for i := range ref.Y {
		ref.Y[i] = 77
	}
	for i := range ref.U {
		ref.U[i] = 150
	}
	for i := range ref.V {
		ref.V[i] = 160
	}
	ref.IsRef = true

	pic := newPicture(sps)

	// Left neighbor of MB (1,1) is MB (0,1); top neighbor is MB (1,0).
	leftMB := pic.mbAt(0, 1)
	leftMB.Available = true
	topMB := pic.mbAt(1, 0)
	topMB.Available = true
	for i := 0; i < 16; i++ {
		leftMB.RefIdx[0][i] = 0
		topMB.RefIdx[0][i] = 0
	}

	sh := &sliceHeader{SliceType: sliceP}
	ctx := &sliceDecodeCtx{
		sps:      sps,
		pic:      pic,
		sh:       sh,
		l0:       []refPic{{Pic: ref}},
		counters: &entropyCounters{},
	}

	mbAddr := 1*pic.MbWidth + 1 // (mbX=1, mbY=1)
	reconstructSkipMB(ctx, mbAddr, 26)

	mb := pic.mbAt(1, 1)
	if mb.MbType != skippedMbTypeMarker {
		t.Errorf("mb_type: got %d, want skip marker %d", mb.MbType, skippedMbTypeMarker)
	}
	for i := 0; i < 16; i++ {
		if mb.RefIdx[0][i] != 0 {
			t.Errorf("block %d ref_idx_l0: got %d, want 0", i, mb.RefIdx[0][i])
		}
		if mb.MV[0][i] != ([2]int16{0, 0}) {
			t.Errorf("block %d mv: got %v, want (0,0)", i, mb.MV[0][i])
		}
	}

	dst := planeSampler{pic.Y, pic.YStride, pic.Width, pic.Height}
	src := planeSampler{ref.Y, ref.YStride, ref.Width, ref.Height}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			gotV := dst.at(1*16+x, 1*16+y)
			wantV := src.at(1*16+x, 1*16+y)
			if gotV != wantV {
				t.Fatalf("luma(%d,%d): got %d, want %d (co-located reference sample)", x, y, gotV, wantV)
			}
		}
	}
}

func TestDPBSlidingWindowAndDrain(t *testing.T) {
	t.Parallel()
	sps := &SPS{
		Log2MaxFrameNum:     4,
		MaxNumRefFrames:     2,
		MaxNumReorderFrames: 1,
		PicWidthInMbs:       1,
		PicHeightInMapUnits: 1,
		FrameMbsOnly:        true,
		ChromaFormatIDC:     1,
	}
	dpb := newDPB(sps)

	mk := func(frameNum, poc int, refIdc int, idr bool) (*Picture, *sliceHeader) {
		p := newPicture(sps)
		p.FrameNum = frameNum
		p.POC = poc
		sh := &sliceHeader{FrameNum: frameNum, NalRefIdc: refIdc, IsIDR: idr}
		return p, sh
	}

	p0, sh0 := mk(0, 0, 1, true)
	dpb.insert(p0, sh0, sps)
	p1, sh1 := mk(1, 4, 1, false)
	dpb.insert(p1, sh1, sps)
	p2, sh2 := mk(2, 2, 1, false)
	dpb.insert(p2, sh2, sps)

	if got := dpb.refCount(); got > sps.MaxNumRefFrames {
		t.Errorf("refCount after sliding window: got %d, want <= %d", got, sps.MaxNumRefFrames)
	}

	out := dpb.drainReady(true)
	if len(out) == 0 {
		t.Fatal("expected drainReady(true) to release all pending pictures")
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].POC > out[i].POC {
			t.Errorf("drain order not POC-ascending: %d before %d", out[i-1].POC, out[i].POC)
		}
	}
}

func TestDecoderRegisteredForH264(t *testing.T) {
	t.Parallel()
	d := &Decoder{}
	if d.CodecID() != media.CodecH264 {
		t.Errorf("CodecID: got %v, want %v", d.CodecID(), media.CodecH264)
	}
}

func TestDecoderSendPacketBeforeOpen(t *testing.T) {
	t.Parallel()
	d := &Decoder{}
	err := d.SendPacket(&media.Packet{Payload: []byte{0x00, 0x00, 0x00, 0x01, 0x67}})
	if err == nil {
		t.Error("expected error sending a packet before Open")
	}
}

func TestDecoderTruncatedPPSDoesNotPanic(t *testing.T) {
	t.Parallel()
	d := &Decoder{}
	if err := d.Open(media.CodecParameters{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// A PPS NAL referencing an SPS id that was never parsed, with its RBSP
	// ending inside the scaling-list data: ParsePPS keeps the fields it read,
	// so handleNAL must take it without panicking and SendPacket must not fail.
	pkt := &media.Packet{Payload: []byte{
		0x00, 0x00, 0x00, 0x01, 0x68, 0xFF, 0xFF, 0xFF, 0xFF,
	}}
	if err := d.SendPacket(pkt); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	_, _, _ = d.Counters()
}
