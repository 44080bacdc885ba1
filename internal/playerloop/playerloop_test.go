package playerloop

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bramblemedia/reelcore/internal/clock"
	"github.com/bramblemedia/reelcore/internal/codec"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
	"github.com/bramblemedia/reelcore/internal/stats"
)

// fakeDemuxer implements demux.Demuxer over an in-memory packet slice, for
// exercising Loop without any real container format.
type fakeDemuxer struct {
	streams  []media.Stream
	packets  []media.Packet
	cursor   int
	seeks    []int64
	duration int64
}

func (d *fakeDemuxer) Open(ioutil.Source) error { return nil }
func (d *fakeDemuxer) Streams() []media.Stream  { return d.streams }
func (d *fakeDemuxer) ReadPacket() (*media.Packet, error) {
	if d.cursor >= len(d.packets) {
		return nil, errs.New(errs.Eof, "test/demux", "exhausted")
	}
	p := d.packets[d.cursor]
	d.cursor++
	return &p, nil
}
func (d *fakeDemuxer) Seek(targetUs int64) error {
	d.seeks = append(d.seeks, targetUs)
	d.cursor = 0
	return nil
}
func (d *fakeDemuxer) Duration() int64             { return d.duration }
func (d *fakeDemuxer) Metadata() map[string]string { return nil }

// fakeAudioDecoder emits one AudioFrame per non-flush SendPacket, and Eof
// once flushed and drained.
type fakeAudioDecoder struct {
	pending    *media.AudioFrame
	eof        bool
	flushCount int
}

func (d *fakeAudioDecoder) CodecID() media.CodecID           { return media.CodecPCMS16LE }
func (d *fakeAudioDecoder) Name() string                     { return "fake-audio" }
func (d *fakeAudioDecoder) Open(media.CodecParameters) error { return nil }
func (d *fakeAudioDecoder) SendPacket(pkt *media.Packet) error {
	if pkt.IsFlush() {
		d.eof = true
		return nil
	}
	d.pending = &media.AudioFrame{
		NbSamples:    1,
		SampleRate:   48000,
		SampleFormat: media.SampleS16,
		Planes:       [][]byte{{0, 0}},
		PTS:          pkt.PTS,
		TimeBase:     pkt.TimeBase,
	}
	return nil
}
func (d *fakeAudioDecoder) ReceiveFrame() (media.Frame, error) {
	if d.pending != nil {
		f := d.pending
		d.pending = nil
		return f, nil
	}
	if d.eof {
		return nil, errs.New(errs.Eof, "test/codec", "drained")
	}
	return nil, errs.New(errs.NeedMoreData, "test/codec", "no frame ready")
}
func (d *fakeAudioDecoder) Flush() { d.flushCount++; d.pending = nil; d.eof = false }

var _ codec.Decoder = (*fakeAudioDecoder)(nil)

// fakeContainingDecoder additionally implements codec.ContainmentReporter,
// mirroring how h264/mpeg4 expose their error-containment tallies.
type fakeContainingDecoder struct {
	fakeAudioDecoder
	malformed int64
}

func (d *fakeContainingDecoder) ContainmentCounters() map[string]int64 {
	return map[string]int64{"malformed_drops": d.malformed}
}

var _ codec.ContainmentReporter = (*fakeContainingDecoder)(nil)

func newTestLoop(packets int) (*Loop, *fakeDemuxer, *fakeAudioDecoder) {
	dm := &fakeDemuxer{
		streams:  []media.Stream{{Index: 0, MediaType: media.Audio, CodecID: media.CodecPCMS16LE}},
		duration: 10_000_000,
	}
	for i := 0; i < packets; i++ {
		dm.packets = append(dm.packets, media.Packet{
			Payload:     []byte{0, 0},
			StreamIndex: 0,
			PTS:         int64(i),
			TimeBase:    ratio.New(1, 1000),
		})
	}
	dec := &fakeAudioDecoder{}

	l := &Loop{
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		demuxer:   dm,
		clock:     clock.New(),
		decoders:  map[int]codec.Decoder{0: dec},
		streams:   dm.streams,
		audioSink: NopAudioSink{},
		videoCh:   make(chan *media.VideoFrame, VideoBufferSize),
		audioCh:   make(chan *media.AudioFrame, AudioBufferSize),
		cmdCh:     make(chan Command, CommandBufferSize),
		statusCh:  make(chan Status, StatusBufferSize),
		volume:    1,
	}
	return l, dm, dec
}

func TestRunDrainsAllPacketsAndEmitsEnd(t *testing.T) {
	l, _, dec := newTestLoop(3)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var audioFrames int
	var sawEnd bool
loop:
	for {
		select {
		case f, ok := <-l.AudioFrames():
			if !ok {
				continue
			}
			if f != nil {
				audioFrames++
			}
		case st, ok := <-l.Status():
			if !ok {
				continue
			}
			if st.Kind == StatusEnd {
				sawEnd = true
			}
		case err := <-done:
			require.NoError(t, err)
			break loop
		case <-ctx.Done():
			t.Fatal("timed out waiting for Run to finish")
		}
	}

	require.Equal(t, 3, audioFrames)
	require.True(t, sawEnd)
	require.Equal(t, 1, dec.flushCount, "drainAllDecoders flushes via an empty packet, not Flush()")
}

func TestTogglePauseReportsStatus(t *testing.T) {
	l, _, _ := newTestLoop(0)
	require.False(t, l.handleCommand(Command{Kind: CmdTogglePause}))
	st := <-l.statusCh
	require.Equal(t, StatusPaused, st.Kind)
	require.True(t, st.Paused)

	require.False(t, l.handleCommand(Command{Kind: CmdTogglePause}))
	st = <-l.statusCh
	require.False(t, st.Paused)
}

func TestSeekFlushesDecodersAndRebasesClock(t *testing.T) {
	l, dm, dec := newTestLoop(5)
	l.clock.SetAudioPTS(2_000_000)

	require.False(t, l.handleCommand(Command{Kind: CmdSeek, SeekDeltaSeconds: 3}))

	require.Len(t, dm.seeks, 1)
	require.Equal(t, int64(5_000_000), dm.seeks[0])
	require.Equal(t, 1, dec.flushCount)
	// A real wall clock backs l.clock here (no fake nowFunc reachable from
	// this package), so allow a small tolerance for the time between
	// SeekReset and this read.
	require.InDelta(t, 5_000_000, l.clock.CurrentTimeUs(), 50_000)

	st := <-l.statusCh
	require.Equal(t, StatusSeeked, st.Kind)
	require.Equal(t, int64(5_000_000), st.CurrentUs)
}

func TestVolumeCommandsClampToUnitRange(t *testing.T) {
	l, _, _ := newTestLoop(0)
	l.volume = 0.95
	l.handleCommand(Command{Kind: CmdVolumeUp})
	<-l.statusCh
	require.Equal(t, float32(1), l.volume)

	l.volume = 0.05
	l.handleCommand(Command{Kind: CmdVolumeDown})
	<-l.statusCh
	require.Equal(t, float32(0), l.volume)
}

func TestFeedPacketPublishesContainmentCountersWhenSupported(t *testing.T) {
	l, _, _ := newTestLoop(0)
	dec := &fakeContainingDecoder{malformed: 4}
	l.decoders[0] = dec
	reg := prometheus.NewRegistry()
	l.stats = stats.NewRecorder(reg)

	pkt := &media.Packet{Payload: []byte{0, 0}, StreamIndex: 0, TimeBase: ratio.New(1, 1000)}
	require.NoError(t, l.feedPacket(context.Background(), pkt))

	got := testutil.ToFloat64(l.stats.Containment.WithLabelValues("fake-audio", "malformed_drops"))
	require.Equal(t, float64(4), got)
}

func TestFeedPacketSkipsContainmentReportWhenUnsupported(t *testing.T) {
	l, _, dec := newTestLoop(0)
	reg := prometheus.NewRegistry()
	l.stats = stats.NewRecorder(reg)

	pkt := &media.Packet{Payload: []byte{0, 0}, StreamIndex: 0, TimeBase: ratio.New(1, 1000)}
	require.NoError(t, l.feedPacket(context.Background(), pkt))
	_ = dec // fakeAudioDecoder doesn't implement ContainmentReporter; no panic, no metric.
}

func TestStopCommandEndsLoop(t *testing.T) {
	l, _, _ := newTestLoop(100)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	l.Send(Command{Kind: CmdStop})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Stop did not terminate Run in time")
	}
}
