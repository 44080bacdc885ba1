// Package demux defines the uniform container contract 
// and the format registry that probes a byte source and opens the winning
// demuxer. Concrete demuxers live in the mp4, mp3, flac, aiff, ogg, and flv
// subpackages, mirroring the codec package's registry shape.
package demux

import (
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
)

// Score thresholds this package defines.
const (
	ScoreMax = 100
	ScorePartial = ScoreMax - 5
	ScoreMime = 75
	ScoreExtension = 50
)

// probeSnippetSize is how much of the byte source the registry reads before
// running every probe, per §4.2's "first ~65 KiB".
const probeSnippetSize = 65 * 1024

// Demuxer is the uniform container contract: open / streams / read_packet /
// seek / duration / metadata.
type Demuxer interface {
	// Open parses the container's index structures against src and
	// populates the stream list. May be called only once per instance.
	Open(src ioutil.Source) error

	// Streams returns the per-stream metadata Open discovered.
	Streams() []media.Stream

	// ReadPacket returns the next packet in file-order across all streams,
	// or errs.ErrEof once the source is exhausted.
	ReadPacket() (*media.Packet, error)

	// Seek repositions every stream's read cursor to the sync/keyframe at
	// or before targetUs (in microseconds).
	Seek(targetUs int64) error

	// Duration is the container's overall duration in microseconds, or -1
	// if unknown.
	Duration() int64

	// Metadata returns any container-level tags (title, artist,...).
	Metadata() map[string]string
}

// Factory constructs a fresh, unopened Demuxer instance.
type Factory func() Demuxer

// ProbeFunc scores how confidently a demuxer's format matches the given
// snippet (the first bytes of the source) and optional filename, returning
// (score, true) on a match or (0, false) on no match at all. A returned
// score is in [0, ScoreMax].
type ProbeFunc func(snippet []byte, filename string) (int, bool)

type registration struct {
	name string
	probe ProbeFunc
	factory Factory
}

var registry []registration

// Register installs a demuxer's probe and factory. Called from each
// subpackage's init(). Registration order is the tie-break for probes that
// score equally.
func Register(name string, probe ProbeFunc, factory Factory) {
	registry = append(registry, registration{name: name, probe: probe, factory: factory})
}

const component = "demux/registry"

// OpenBest reads the probe snippet from src, runs every registered probe,
// and opens the highest-scoring demuxer. filename may be empty; it is only
// used by probes that fall back to extension matching.
func OpenBest(src ioutil.Source, filename string) (Demuxer, error) {
	pos := src.Position()
	n := probeSnippetSize
	if sz, ok := src.Size(); ok && sz < int64(n) {
		n = int(sz)
	}
	var snippet []byte
	if n > 0 {
		b, err := src.ReadExact(n)
		if err != nil && len(b) == 0 {
			return nil, errs.Wrap(errs.Io, component, "reading probe snippet", err)
		}
		snippet = b
	}
	if _, err := src.Seek(ioutil.SeekStart, pos); err != nil {
		return nil, errs.Wrap(errs.Io, component, "rewinding after probe", err)
	}

	bestScore := -1
	bestIdx := -1
	for i, reg := range registry {
		score, ok := reg.probe(snippet, filename)
		if !ok {
			continue
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, errs.New(errs.Unsupported, component, "no demuxer recognized this source")
	}

	d := registry[bestIdx].factory()
	if err := d.Open(src); err != nil {
		return nil, err
	}
	return d, nil
}
