package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderIncrementsLabeledCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.MalformedDrop("h264")
	r.MalformedDrop("h264")
	r.MissingRef("h264")
	r.PacketSent("aac")
	r.FrameEmitted("aac")

	if got := testutil.ToFloat64(r.MalformedDrops.WithLabelValues("h264")); got != 2 {
		t.Fatalf("MalformedDrops{h264} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.MissingRefFallback.WithLabelValues("h264")); got != 1 {
		t.Fatalf("MissingRefFallback{h264} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.PacketsDecoded.WithLabelValues("aac")); got != 1 {
		t.Fatalf("PacketsDecoded{aac} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.FramesEmitted.WithLabelValues("aac")); got != 1 {
		t.Fatalf("FramesEmitted{aac} = %v, want 1", got)
	}
}

func TestNilRecorderMethodsAreNoOps(t *testing.T) {
	var r *Recorder
	// None of these should panic; a nil *Recorder lets decoders skip nil
	// checks at every call site.
	r.MalformedDrop("h264")
	r.MissingRef("h264")
	r.PacketSent("aac")
	r.FrameEmitted("aac")
	r.SetContainment("h264", "malformed_drops", 3)
}

func TestSetContainmentReflectsLatestPolledValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.SetContainment("h264", "malformed_drops", 3)
	r.SetContainment("h264", "malformed_drops", 7) // a later poll overwrites, not adds

	if got := testutil.ToFloat64(r.Containment.WithLabelValues("h264", "malformed_drops")); got != 7 {
		t.Fatalf("Containment{h264,malformed_drops} = %v, want 7", got)
	}
}
