package demux

import (
	"testing"

	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
)

type fakeDemuxer struct {
	name   string
	opened bool
}

func (d *fakeDemuxer) Open(ioutil.Source) error           { d.opened = true; return nil }
func (d *fakeDemuxer) Streams() []media.Stream            { return nil }
func (d *fakeDemuxer) ReadPacket() (*media.Packet, error) { return nil, nil }
func (d *fakeDemuxer) Seek(int64) error                   { return nil }
func (d *fakeDemuxer) Duration() int64                    { return -1 }
func (d *fakeDemuxer) Metadata() map[string]string        { return nil }

func TestOpenBestPicksHighestScoringProbe(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = nil

	Register("low", func([]byte, string) (int, bool) { return ScoreExtension, true }, func() Demuxer {
		return &fakeDemuxer{name: "low"}
	})
	winner := &fakeDemuxer{name: "high"}
	Register("high", func([]byte, string) (int, bool) { return ScoreMax, true }, func() Demuxer {
		return winner
	})

	src := ioutil.NewMemSource([]byte("whatever bytes"))
	d, err := OpenBest(src, "clip.bin")
	if err != nil {
		t.Fatalf("OpenBest() error = %v", err)
	}
	got, ok := d.(*fakeDemuxer)
	if !ok || got.name != "high" {
		t.Fatalf("OpenBest() picked %v, want the high-scoring fake", d)
	}
	if !winner.opened {
		t.Fatal("expected OpenBest to call Open on the winning demuxer")
	}
}

func TestOpenBestReturnsUnsupportedWhenNoProbeMatches(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = nil

	Register("never", func([]byte, string) (int, bool) { return 0, false }, func() Demuxer {
		return &fakeDemuxer{}
	})

	src := ioutil.NewMemSource([]byte("nope"))
	if _, err := OpenBest(src, "clip.bin"); err == nil {
		t.Fatal("expected an error when no probe matches")
	}
}

func TestOpenBestRewindsSourceAfterProbing(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = nil

	Register("any", func([]byte, string) (int, bool) { return ScoreMax, true }, func() Demuxer {
		return &fakeDemuxer{}
	})

	// Large enough that the probe snippet read (up to 65KiB) fits entirely
	// after the seeded offset below, regardless of where it starts from.
	src := ioutil.NewMemSource(make([]byte, 70000))
	if _, err := src.Seek(ioutil.SeekStart, 100); err != nil {
		t.Fatalf("seed seek error = %v", err)
	}
	if _, err := OpenBest(src, ""); err != nil {
		t.Fatalf("OpenBest() error = %v", err)
	}
	if src.Position() != 100 {
		t.Fatalf("Position() after OpenBest = %d, want 100 (restored)", src.Position())
	}
}
