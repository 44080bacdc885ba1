// Package stats exposes per-decoder error-containment counters
// (malformed_nal_drops, missing_reference_fallbacks, and their
// counterparts in other decoders) as Prometheus instruments, grounded
// on snapetech-plexTuner's use of github.com/prometheus/client_golang for
// operational telemetry. This is additive: no decode path depends on it,
// decoders work identically with a nil *Recorder.
package stats

import "github.com/prometheus/client_golang/prometheus"

// Recorder collects containment-policy counters across all active decoders
// and demuxers, labeled by component and codec/format so a single /metrics
// endpoint can serve every stream.
type Recorder struct {
	MalformedDrops *prometheus.CounterVec
	MissingRefFallback *prometheus.CounterVec
	PacketsDecoded *prometheus.CounterVec
	FramesEmitted *prometheus.CounterVec
	Containment *prometheus.GaugeVec
}

// NewRecorder builds a Recorder and registers its collectors with reg. Pass
// prometheus.NewRegistry() for an isolated registry, or nil to use the
// default global one.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		MalformedDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelcore",
			Subsystem: "decoder",
			Name: "malformed_drops_total",
			Help: "Slices/frames/blocks dropped due to unrecoverable parse failures, per codec.",
		}, []string{"codec"}),
		MissingRefFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelcore",
			Subsystem: "decoder",
			Name: "missing_reference_fallbacks_total",
			Help: "References substituted with a zero-filled picture due to an out-of-range reference index.",
		}, []string{"codec"}),
		PacketsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelcore",
			Subsystem: "decoder",
			Name: "packets_sent_total",
			Help: "Packets accepted by SendPacket, per codec.",
		}, []string{"codec"}),
		FramesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelcore",
			Subsystem: "decoder",
			Name: "frames_emitted_total",
			Help: "Frames returned by ReceiveFrame, per codec.",
		}, []string{"codec"}),
		Containment: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reelcore",
			Subsystem: "decoder",
			Name: "containment_counter",
			Help: "Cumulative codec.ContainmentReporter counters (malformed_drops, missing_reference_fallback,...), per codec and counter name.",
		}, []string{"codec", "counter"}),
	}
	reg.MustRegister(r.MalformedDrops, r.MissingRefFallback, r.PacketsDecoded, r.FramesEmitted, r.Containment)
	return r
}

// MalformedDrop increments the malformed-drop counter for codec, tolerating
// a nil Recorder so decoders can take an optional *Recorder without nil
// checks at every call site.
func (r *Recorder) MalformedDrop(codec string) {
	if r == nil {
		return
	}
	r.MalformedDrops.WithLabelValues(codec).Inc()
}

func (r *Recorder) MissingRef(codec string) {
	if r == nil {
		return
	}
	r.MissingRefFallback.WithLabelValues(codec).Inc()
}

func (r *Recorder) PacketSent(codec string) {
	if r == nil {
		return
	}
	r.PacketsDecoded.WithLabelValues(codec).Inc()
}

func (r *Recorder) FrameEmitted(codec string) {
	if r == nil {
		return
	}
	r.FramesEmitted.WithLabelValues(codec).Inc()
}

// SetContainment records the current cumulative value of a
// codec.ContainmentReporter counter. Set rather than Inc because callers
// poll a decoder's running totals rather than observing individual events.
func (r *Recorder) SetContainment(codec, counter string, value int64) {
	if r == nil {
		return
	}
	r.Containment.WithLabelValues(codec, counter).Set(float64(value))
}
