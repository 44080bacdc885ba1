package aac

import (
	"errors"
	"testing"

	"github.com/bramblemedia/reelcore/internal/bitio"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/media"
)

// buildASC encodes a minimal AudioSpecificConfig from the given object type,
// sample-rate index and channel configuration.
func buildASC(objectType, sampleRateIdx, channelConfig uint32) []byte {
	var bits []bool
	push := func(v uint32, n int) {
		for i := n - 1; i >= 0; i-- {
			bits = append(bits, (v>>uint(i))&1 == 1)
		}
	}
	push(objectType, 5)
	push(sampleRateIdx, 4)
	push(channelConfig, 4)
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func TestParseAudioSpecificConfig(t *testing.T) {
	data := buildASC(2, 4, 2) // LC, 44100, stereo
	asc, err := parseAudioSpecificConfig(data)
	if err != nil {
		t.Fatalf("parseAudioSpecificConfig: %v", err)
	}
	if asc.sampleRate != 44100 {
		t.Errorf("sampleRate = %d, want 44100", asc.sampleRate)
	}
	if asc.channels != 2 {
		t.Errorf("channels = %d, want 2", asc.channels)
	}
	if asc.sampleRateIdx != 4 {
		t.Errorf("sampleRateIdx = %d, want 4", asc.sampleRateIdx)
	}
}

func TestParseAudioSpecificConfigExplicitRate(t *testing.T) {
	var bits []bool
	push := func(v uint32, n int) {
		for i := n - 1; i >= 0; i-- {
			bits = append(bits, (v>>uint(i))&1 == 1)
		}
	}
	push(2, 5)     // object type
	push(0xF, 4)   // explicit rate marker
	push(48000, 24)
	push(1, 4) // mono
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	asc, err := parseAudioSpecificConfig(out)
	if err != nil {
		t.Fatalf("parseAudioSpecificConfig: %v", err)
	}
	if asc.sampleRate != 48000 {
		t.Errorf("sampleRate = %d, want 48000", asc.sampleRate)
	}
	if asc.channels != 1 {
		t.Errorf("channels = %d, want 1", asc.channels)
	}
}

func TestOpenRequiresAudioParams(t *testing.T) {
	d := &Decoder{}
	err := d.Open(media.CodecParameters{})
	if err == nil {
		t.Fatal("expected error for missing AudioStreamParams")
	}
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestOpenDerivesFromExtraData(t *testing.T) {
	d := &Decoder{}
	err := d.Open(media.CodecParameters{
		Audio: &media.AudioStreamParams{
			SampleRate:    44100,
			ChannelLayout: media.LayoutStereo,
		},
		ExtraData: buildASC(2, 3, 2), // 48000, stereo
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.sampleRate != 48000 {
		t.Errorf("sampleRate = %d, want 48000 (from ASC)", d.sampleRate)
	}
	if d.channels != 2 {
		t.Errorf("channels = %d, want 2", d.channels)
	}
	if len(d.overlap) != 2 || len(d.overlap[0]) != 1024 {
		t.Fatalf("overlap buffers not sized correctly: %+v", d.overlap)
	}
}

func TestReceiveFrameNeedsMoreDataWhenEmpty(t *testing.T) {
	d := &Decoder{}
	if err := d.Open(media.CodecParameters{
		Audio: &media.AudioStreamParams{SampleRate: 44100, ChannelLayout: media.LayoutStereo},
	}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err := d.ReceiveFrame()
	if !errors.Is(err, errs.ErrNeedMoreData) {
		t.Fatalf("expected NeedMoreData, got %v", err)
	}
}

func TestFlushSignalsEOF(t *testing.T) {
	d := &Decoder{}
	if err := d.Open(media.CodecParameters{
		Audio: &media.AudioStreamParams{SampleRate: 44100, ChannelLayout: media.LayoutStereo},
	}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.SendPacket(&media.Packet{}); err != nil {
		t.Fatalf("SendPacket(flush): %v", err)
	}
	_, err := d.ReceiveFrame()
	if !errors.Is(err, errs.ErrEof) {
		t.Fatalf("expected Eof, got %v", err)
	}
}

func TestSkipDSEAdvancesPastPayload(t *testing.T) {
	var bits []bool
	push := func(v uint32, n int) {
		for i := n - 1; i >= 0; i-- {
			bits = append(bits, (v>>uint(i))&1 == 1)
		}
	}
	push(3, 4)    // element_instance_tag
	push(0, 1)    // data_element_byte_align_flag
	push(2, 8)    // count
	push(0xAB, 8) // payload byte 1
	push(0xCD, 8) // payload byte 2
	out := make([]byte, (len(bits)+7)/8+1)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	r := bitio.NewReader(out)
	if err := skipDSE(r); err != nil {
		t.Fatalf("skipDSE: %v", err)
	}
	if r.BitPosition() != int64(len(bits)) {
		t.Errorf("bit position = %d, want %d", r.BitPosition(), len(bits))
	}
}

func TestCodebookDimensionAndSign(t *testing.T) {
	cases := []struct {
		cb       int
		wantDim  int
		wantSign bool
		wantLav  int
	}{
		{1, 4, true, 1},
		{2, 4, true, 1},
		{3, 4, false, 1},
		{4, 4, false, 1},
		{5, 2, true, 4},
		{6, 2, true, 4},
		{7, 2, false, 7},
		{9, 2, false, 12},
		{11, 2, false, 16},
	}
	for _, c := range cases {
		p := specCodebooks[c.cb]
		if p.dim != c.wantDim {
			t.Errorf("specCodebooks[%d].dim = %d, want %d", c.cb, p.dim, c.wantDim)
		}
		if p.signed != c.wantSign {
			t.Errorf("specCodebooks[%d].signed = %v, want %v", c.cb, p.signed, c.wantSign)
		}
		if p.lav != c.wantLav {
			t.Errorf("specCodebooks[%d].lav = %d, want %d", c.cb, p.lav, c.wantLav)
		}
	}
	if !specCodebooks[11].escape {
		t.Errorf("specCodebooks[11].escape = false, want true")
	}
}

func TestBuildSpecCodebookPrefixFree(t *testing.T) {
	for cb := 1; cb <= 11; cb++ {
		data := buildSpecCodebook(cb)
		p := specCodebooks[cb]
		wantCount := 1
		span := p.lav + 1
		if p.signed {
			span = 2*p.lav + 1
		}
		for i := 0; i < p.dim; i++ {
			wantCount *= span
		}
		if len(data.tuples) != wantCount {
			t.Errorf("codebook %d: got %d tuples, want %d", cb, len(data.tuples), wantCount)
		}
		seen := map[uint64]bool{}
		for _, e := range data.table {
			key := uint64(e.Len)<<32 | uint64(e.Code)
			if seen[key] {
				t.Errorf("codebook %d: duplicate codeword len=%d code=%d", cb, e.Len, e.Code)
			}
			seen[key] = true
		}
		for _, a := range data.table {
			for _, b := range data.table {
				if a.Len < b.Len && b.Code>>uint(b.Len-a.Len) == a.Code {
					t.Errorf("codebook %d: code len=%d code=%d is a prefix of len=%d code=%d", cb, a.Len, a.Code, b.Len, b.Code)
				}
			}
		}
	}
}

func TestInverseQuantizeZeroIsZero(t *testing.T) {
	if v := inverseQuantize(0, 100); v != 0 {
		t.Errorf("inverseQuantize(0, 100) = %v, want 0", v)
	}
}

func TestInverseQuantizeSignPreserved(t *testing.T) {
	pos := inverseQuantize(5, 120)
	neg := inverseQuantize(-5, 120)
	if pos <= 0 {
		t.Errorf("expected positive result, got %v", pos)
	}
	if neg >= 0 {
		t.Errorf("expected negative result, got %v", neg)
	}
	if pos != -neg {
		t.Errorf("magnitude mismatch: %v vs %v", pos, neg)
	}
}
