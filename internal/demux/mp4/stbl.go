package mp4

import (
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
)

// sttsRun is one run-length entry of the decoding-time-to-sample table.
type sttsRun struct {
	Count uint32
	Delta uint32
}

// stscRun is one run-length entry of the sample-to-chunk table.
type stscRun struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
	SampleDescIdx   uint32
}

// cttsRun is one run-length entry of the composition-time-offset table.
type cttsRun struct {
	Count  uint32
	Offset int32
}

// sampleTables holds the raw stbl run-length tables for one track, before
// they are expanded into the per-sample index buildSampleIndex produces.
type sampleTables struct {
	stts          []sttsRun
	stsc          []stscRun
	stszDefault   uint32
	stsz          []uint32
	chunkOffsets  []uint64
	syncSamples   []uint32 // 1-based; nil means every sample is sync
	ctts          []cttsRun
}

func readFullBoxVersionFlags(r *ioutil.Reader) (version byte, err error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func parseSTTS(r *ioutil.Reader, hdr boxHeader) ([]sttsRun, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	out := make([]sttsRun, 0, count)
	for i := uint32(0); i < count; i++ {
		c, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		d, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		out = append(out, sttsRun{Count: c, Delta: d})
	}
	return out, nil
}

func parseSTSC(r *ioutil.Reader) ([]stscRun, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	out := make([]stscRun, 0, count)
	for i := uint32(0); i < count; i++ {
		fc, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		spc, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		sdi, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		out = append(out, stscRun{FirstChunk: fc, SamplesPerChunk: spc, SampleDescIdx: sdi})
	}
	return out, nil
}

func parseSTSZ(r *ioutil.Reader) (defaultSize uint32, sizes []uint32, err error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return 0, nil, err
	}
	defaultSize, err = r.ReadU32BE()
	if err != nil {
		return 0, nil, err
	}
	count, err := r.ReadU32BE()
	if err != nil {
		return 0, nil, err
	}
	if defaultSize != 0 {
		return defaultSize, nil, nil
	}
	sizes = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := r.ReadU32BE()
		if err != nil {
			return 0, nil, err
		}
		sizes = append(sizes, s)
	}
	return 0, sizes, nil
}

func parseSTCO(r *ioutil.Reader) ([]uint64, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		out = append(out, uint64(v))
	}
	return out, nil
}

func parseCO64(r *ioutil.Reader) ([]uint64, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := r.ReadU64BE()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseSTSS(r *ioutil.Reader) ([]uint32, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseCTTS(r *ioutil.Reader) ([]cttsRun, error) {
	if _, err := readFullBoxVersionFlags(r); err != nil {
		return nil, err
	}
	count, err := r.ReadU32BE()
	if err != nil {
		return nil, err
	}
	out := make([]cttsRun, 0, count)
	for i := uint32(0); i < count; i++ {
		c, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		o, err := r.ReadU32BE()
		if err != nil {
			return nil, err
		}
		out = append(out, cttsRun{Count: c, Offset: int32(o)})
	}
	return out, nil
}

// sampleEntry is one fully resolved sample: its absolute file offset, byte
// size, decode/presentation timestamps (in the track's own timescale), and
// sync-sample status.
type sampleEntry struct {
	Offset    int64
	Size      uint32
	DTS       int64
	PTS       int64
	Keyframe  bool
}

// buildSampleIndex expands a track's run-length stbl tables into one
// sampleEntry per sample, per index-construction rules:
// stts deltas accumulate into dts, stsc resolves (chunk, offset-in-chunk),
// stco/co64 give the chunk's base file offset, stsz gives sizes, ctts adds
// the composition offset to form pts, and stss marks sync samples (absent
// → every sample is sync).
func buildSampleIndex(t *sampleTables) ([]sampleEntry, error) {
	sampleCount := 0
	for _, run := range t.stts {
		sampleCount += int(run.Count)
	}
	if t.stszDefault == 0 && sampleCount == 0 {
		sampleCount = len(t.stsz)
	}

	dtsOf := make([]int64, sampleCount)
	var dts int64
	idx := 0
	for _, run := range t.stts {
		for i := uint32(0); i < run.Count && idx < sampleCount; i++ {
			dtsOf[idx] = dts
			dts += int64(run.Delta)
			idx++
		}
	}

	sizeOf := func(i int) uint32 {
		if t.stszDefault != 0 {
			return t.stszDefault
		}
		if i < len(t.stsz) {
			return t.stsz[i]
		}
		return 0
	}

	cttsOf := make([]int64, sampleCount)
	if len(t.ctts) > 0 {
		pos := 0
		for _, run := range t.ctts {
			for i := uint32(0); i < run.Count && pos < sampleCount; i++ {
				cttsOf[pos] = int64(run.Offset)
				pos++
			}
		}
	}

	// Resolve (chunk index, sample count in that chunk) runs from stsc,
	// then walk chunk offsets assigning consecutive samples their byte
	// offsets within each chunk.
	if len(t.stsc) == 0 {
		return nil, errs.New(errs.InvalidData, component, "missing stsc")
	}
	entries := make([]sampleEntry, 0, sampleCount)
	sampleIdx := 0
	for runIdx, run := range t.stsc {
		firstChunk := int(run.FirstChunk)
		var lastChunk int
		if runIdx+1 < len(t.stsc) {
			lastChunk = int(t.stsc[runIdx+1].FirstChunk) - 1
		} else {
			lastChunk = len(t.chunkOffsets)
		}
		for chunk := firstChunk; chunk <= lastChunk && chunk-1 < len(t.chunkOffsets); chunk++ {
			offset := int64(t.chunkOffsets[chunk-1])
			for s := uint32(0); s < run.SamplesPerChunk && sampleIdx < sampleCount; s++ {
				size := sizeOf(sampleIdx)
				keyframe := true
				entries = append(entries, sampleEntry{
					Offset:   offset,
					Size:     size,
					DTS:      dtsOf[sampleIdx],
					PTS:      dtsOf[sampleIdx] + cttsOf[sampleIdx],
					Keyframe: keyframe,
				})
				offset += int64(size)
				sampleIdx++
			}
		}
	}

	if len(t.syncSamples) > 0 {
		sync := make(map[int]bool, len(t.syncSamples))
		for _, n := range t.syncSamples {
			sync[int(n)-1] = true
		}
		for i := range entries {
			entries[i].Keyframe = sync[i]
		}
	}

	return entries, nil
}
