// Package playerloop is the thin orchestration layer tying decode to
// presentation: a demux+decode goroutine that drives the codec/container core,
// a bounded video channel that applies natural backpressure, a command
// channel carrying PlayerCommand variants from a presentation layer, and a
// status channel reporting PlayerStatus back. Nothing in here is part of
// the bit-exact codec/container core; it only wires that core to the small
// set of external collaborators §6 names (audio sink, presentation thread).
package playerloop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bramblemedia/reelcore/internal/clock"
	"github.com/bramblemedia/reelcore/internal/codec"
	"github.com/bramblemedia/reelcore/internal/demux"
	"github.com/bramblemedia/reelcore/internal/errs"
	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/media"
	"github.com/bramblemedia/reelcore/internal/ratio"
	"github.com/bramblemedia/reelcore/internal/stats"
)

const (
	// VideoBufferSize is the bounded capacity this package defines: when full,
	// the decode goroutine blocks on send, so the decoder never races ahead
	// of display.
	VideoBufferSize = 3
	// AudioBufferSize approximates "unbounded mpsc channel".
	// Go channels need a static capacity; audio frames are small (one per
	// ~20-40ms of output) and a real-time audio sink drains far faster than
	// any codec here can produce them, so a generous fixed buffer is
	// observationally unbounded in practice without an actual unbounded
	// queue implementation.
	AudioBufferSize = 256
	// CommandBufferSize/StatusBufferSize are headroom for bursts of UI
	// input (e.g. repeated VolumeUp) and status updates; neither channel
	// is meant to apply backpressure.
	CommandBufferSize = 16
	StatusBufferSize = 32

	// pauseIdleSleep bounds how long the decode goroutine sleeps between
	// command polls while paused with no pending step, per convention,
	// "(c) brief sleeps (≤16 ms) when paused without pending work".
	pauseIdleSleep = 16 * time.Millisecond
)

// CommandKind enumerates the PlayerCommand variants this package defines.
type CommandKind int

const (
	CmdTogglePause CommandKind = iota
	CmdStepFrame
	CmdSeek
	CmdVolumeUp
	CmdVolumeDown
	CmdToggleMute
	CmdStop
)

// Command is one PlayerCommand sent from the presentation thread.
type Command struct {
	Kind CommandKind
	// SeekDeltaSeconds is only meaningful for CmdSeek: relative offset from
	// the clock's current position, by convention ("Seek(seconds_delta)").
	SeekDeltaSeconds float64
}

// StatusKind enumerates the PlayerStatus variants this package defines.
type StatusKind int

const (
	StatusTime StatusKind = iota
	StatusPaused
	StatusVolume
	StatusSeeked
	StatusEnd
	StatusError
)

// Status is one PlayerStatus value sent to the presentation thread.
type Status struct {
	Kind StatusKind
	CurrentUs int64
	TotalUs int64
	Paused bool
	Volume float32
	Muted bool
	Err error
}

// AudioSink is the external collaborator that renders decoded
// audio. The core never assumes a concrete audio backend; Loop only needs
// something that can accept frames and be told to drop queued ones on seek.
type AudioSink interface {
	WriteFrame(frame *media.AudioFrame) error
	Flush()
}

// NopAudioSink discards frames. It satisfies AudioSink for callers (such as
// a --no-audio reference player invocation) that want the clock and video
// pipeline to run without an actual audio backend.
type NopAudioSink struct{}

func (NopAudioSink) WriteFrame(*media.AudioFrame) error { return nil }
func (NopAudioSink) Flush() {}

// Loop owns one playback session: the demuxer, one decoder per stream, and
// the media clock. It is the boundary this package draws between the
// codec/container core and "a thin presentation layer" collaborator: Loop
// calls only demux.Demuxer/codec.Decoder/clock.Clock methods, never
// anything GUI- or audio-output-specific.
type Loop struct {
	log *slog.Logger
	sessionID uuid.UUID

	demuxer demux.Demuxer
	clock *clock.Clock
	stats *stats.Recorder

	decoders map[int]codec.Decoder
	streams []media.Stream

	audioSink AudioSink
	videoCh chan *media.VideoFrame
	audioCh chan *media.AudioFrame
	cmdCh chan Command
	statusCh chan Status

	volume float32
	muted bool
	pendingSteps int
}

// New opens src (via the format registry's probe) and a decoder for every
// stream whose codec is registered, and returns a Loop ready for Run. A
// stream whose codec has no registered decoder is kept in Streams() but
// produces no frames, matching Unsupported propagation policy
// ("caller may continue with degraded output").
func New(src ioutil.Source, filename string, sink AudioSink, rec *stats.Recorder) (*Loop, error) {
	d, err := demux.OpenBest(src, filename)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NopAudioSink{}
	}

	sessionID := uuid.New()
	l := &Loop{
		log: slog.With("component", "playerloop", "session", sessionID.String()),
		sessionID: sessionID,
		demuxer: d,
		clock: clock.New(),
		stats: rec,
		decoders: make(map[int]codec.Decoder),
		streams: d.Streams(),
		audioSink: sink,
		videoCh: make(chan *media.VideoFrame, VideoBufferSize),
		audioCh: make(chan *media.AudioFrame, AudioBufferSize),
		cmdCh: make(chan Command, CommandBufferSize),
		statusCh: make(chan Status, StatusBufferSize),
		volume: 1.0,
	}

	for _, st := range l.streams {
		if st.MediaType != media.Audio && st.MediaType != media.Video {
			continue
		}
		if !codec.Registered(st.CodecID) {
			l.log.Warn("no decoder registered for stream codec", "stream", st.Index, "codec", st.CodecID)
			continue
		}
		dec, err := codec.Create(st.CodecID)
		if err != nil {
			l.log.Warn("codec registry rejected codec id", "stream", st.Index, "error", err)
			continue
		}
		if err := dec.Open(media.CodecParameters{
			CodecID: st.CodecID,
			ExtraData: st.ExtraData,
			Audio: st.Params.Audio,
			Video: st.Params.Video,
		}); err != nil {
			l.log.Warn("decoder open failed", "stream", st.Index, "error", err)
			continue
		}
		l.decoders[st.Index] = dec
	}

	return l, nil
}

// Streams returns the demuxer's discovered stream metadata.
func (l *Loop) Streams() []media.Stream { return l.streams }

// SetVolume sets the initial volume before Run starts, clamped to [0,1].
// Once running, volume changes go through CmdVolumeUp/CmdVolumeDown so they
// serialize with the decode goroutine like every other command.
func (l *Loop) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	l.volume = v
}

// SessionID identifies this playback session, included in Status.Err log
// context so concurrent reference-player runs can be correlated.
func (l *Loop) SessionID() uuid.UUID { return l.sessionID }

// VideoFrames is the bounded (capacity VideoBufferSize) channel the
// presentation thread drains.
func (l *Loop) VideoFrames() <-chan *media.VideoFrame { return l.videoCh }

// AudioFrames mirrors the audio frames pushed to AudioSink, for a
// presentation layer that wants to observe them too (e.g. a VU meter).
func (l *Loop) AudioFrames() <-chan *media.AudioFrame { return l.audioCh }

// Status is the channel PlayerStatus values arrive on.
func (l *Loop) Status() <-chan Status { return l.statusCh }

// Send enqueues a PlayerCommand. It never blocks the caller for longer than
// filling CommandBufferSize; a full command queue indicates the decode
// goroutine has stalled or exited.
func (l *Loop) Send(cmd Command) {
	select {
	case l.cmdCh <- cmd:
	default:
		l.log.Warn("command queue full, dropping", "kind", cmd.Kind)
	}
}

// Run drives the session until ctx is cancelled, a CmdStop command arrives,
// or the demuxer reaches end of stream. It never returns before all owned
// goroutines have exited.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// cancel unblocks statusTicker on a normal (nil-error) exit too;
		// errgroup only cancels gctx early on a non-nil return, and not
		// at all until Wait returns on its own.
		defer cancel()
		return l.decodeLoop(gctx)
	})
	g.Go(func() error {
		return l.statusTicker(gctx)
	})

	err := g.Wait()
	close(l.statusCh)
	return err
}

// decodeLoop is "demux+decode thread": it owns the demuxer,
// every decoder, and the media clock, polling commands between packets so
// TogglePause/Seek/Stop take effect promptly without a second mutator
// touching non-thread-safe decoder state.
func (l *Loop) decodeLoop(ctx context.Context) error {
	defer close(l.videoCh)
	defer close(l.audioCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-l.cmdCh:
			if stop := l.handleCommand(cmd); stop {
				return nil
			}
			continue
		default:
		}

		if l.clock.IsPaused() && l.pendingSteps == 0 {
			select {
			case <-ctx.Done():
				return nil
			case cmd := <-l.cmdCh:
				if stop := l.handleCommand(cmd); stop {
					return nil
				}
			case <-time.After(pauseIdleSleep):
			}
			continue
		}

		pkt, err := l.demuxer.ReadPacket()
		if err != nil {
			if errors.Is(err, errs.ErrEof) {
				l.drainAllDecoders(ctx)
				l.emitStatus(Status{Kind: StatusEnd})
				return nil
			}
			if kind, ok := errs.KindOf(err); ok && kind == errs.InvalidData {
				l.log.Warn("demux read_packet error, skipping", "error", err)
				continue
			}
			l.emitStatus(Status{Kind: StatusError, Err: err})
			return err
		}

		if l.pendingSteps > 0 {
			l.pendingSteps--
		}

		if err := l.feedPacket(ctx, pkt); err != nil {
			l.emitStatus(Status{Kind: StatusError, Err: err})
			return err
		}
	}
}

// feedPacket dispatches pkt to the decoder matching its StreamIndex, then
// drains frames per steady-state data flow: send_packet, then
// receive_frame until NeedMoreData.
func (l *Loop) feedPacket(ctx context.Context, pkt *media.Packet) error {
	dec, ok := l.decoders[pkt.StreamIndex]
	if !ok {
		return nil // subtitle/data stream, or codec with no registered decoder
	}
	codecName := dec.Name()
	if l.stats != nil {
		l.stats.PacketSent(codecName)
	}
	if err := dec.SendPacket(pkt); err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.InvalidData {
			l.log.Warn("decoder rejected packet, continuing", "stream", pkt.StreamIndex, "error", err)
			return nil
		}
		return err
	}
	if err := l.drainDecoder(ctx, dec, codecName); err != nil {
		return err
	}
	l.reportContainment(dec, codecName)
	return nil
}

// reportContainment publishes a decoder's cumulative error-containment
// counters (e.g. h264's malformed_nal_drops) if it implements
// codec.ContainmentReporter. Most codecs don't, so this is a no-op for them.
func (l *Loop) reportContainment(dec codec.Decoder, codecName string) {
	if l.stats == nil {
		return
	}
	cr, ok := dec.(codec.ContainmentReporter)
	if !ok {
		return
	}
	for name, value := range cr.ContainmentCounters() {
		l.stats.SetContainment(codecName, name, value)
	}
}

func (l *Loop) drainDecoder(ctx context.Context, dec codec.Decoder, codecName string) error {
	for {
		frame, err := dec.ReceiveFrame()
		if err != nil {
			if kind, ok := errs.KindOf(err); ok && (kind == errs.NeedMoreData || kind == errs.Eof) {
				return nil
			}
			return err
		}
		if l.stats != nil {
			l.stats.FrameEmitted(codecName)
		}
		if err := l.emitFrame(ctx, frame); err != nil {
			return err
		}
	}
}

// emitFrame routes a decoded frame to its channel, advancing the media
// clock from audio frames (the clock is audio-master by convention).
func (l *Loop) emitFrame(ctx context.Context, frame media.Frame) error {
	switch f := frame.(type) {
	case *media.VideoFrame:
		select {
		case l.videoCh <- f:
			return nil
		case <-ctx.Done():
			return nil
		}
	case *media.AudioFrame:
		pts, _, _, tb := f.BaseTimestamps()
		us := tb.Rescale(pts, ratio.Microsecond)
		l.clock.SetAudioPTS(us)
		if err := l.audioSink.WriteFrame(f); err != nil {
			l.log.Warn("audio sink rejected frame", "error", err)
		}
		select {
		case l.audioCh <- f:
		default:
			// Presentation layer isn't draining AudioFrames(); the sink
			// already has it and the clock already advanced, so dropping
			// the observability copy here is harmless.
		}
		return nil
	default:
		return nil
	}
}

// drainAllDecoders sends the flush sentinel to every decoder and drains
// remaining buffered frames, per decoder lifecycle ("sending
// an empty packet initiates drain").
func (l *Loop) drainAllDecoders(ctx context.Context) {
	for idx, dec := range l.decoders {
		codecName := dec.Name()
		if err := dec.SendPacket(&media.Packet{StreamIndex: idx}); err != nil {
			continue
		}
		_ = l.drainDecoder(ctx, dec, codecName)
		l.reportContainment(dec, codecName)
	}
}

// handleCommand applies one PlayerCommand, reporting true when the decode
// loop should return (CmdStop, or a closed-channel-equivalent condition).
func (l *Loop) handleCommand(cmd Command) bool {
	switch cmd.Kind {
	case CmdTogglePause:
		paused := l.clock.TogglePause()
		l.emitStatus(Status{Kind: StatusPaused, Paused: paused})
	case CmdStepFrame:
		l.pendingSteps++
	case CmdSeek:
		l.seek(cmd.SeekDeltaSeconds)
	case CmdVolumeUp:
		l.setVolume(l.volume + 0.1)
	case CmdVolumeDown:
		l.setVolume(l.volume - 0.1)
	case CmdToggleMute:
		l.muted = !l.muted
		l.emitStatus(Status{Kind: StatusVolume, Volume: l.volume, Muted: l.muted})
	case CmdStop:
		return true
	}
	return false
}

func (l *Loop) setVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	l.volume = v
	l.emitStatus(Status{Kind: StatusVolume, Volume: l.volume, Muted: l.muted})
}

// seek flushes every decoder and the audio sink, repositions the demuxer,
// and rebases the media clock, per Cancellation/ordering rules
// for seeking.
func (l *Loop) seek(deltaSeconds float64) {
	targetUs := l.clock.CurrentTimeUs() + int64(deltaSeconds*1_000_000)
	if targetUs < 0 {
		targetUs = 0
	}
	for _, dec := range l.decoders {
		dec.Flush()
	}
	l.audioSink.Flush()
	if err := l.demuxer.Seek(targetUs); err != nil {
		l.emitStatus(Status{Kind: StatusError, Err: err})
		return
	}
	l.clock.SeekReset(targetUs)
	l.emitStatus(Status{Kind: StatusSeeked, CurrentUs: targetUs})
}

// statusTickInterval is how often StatusTime is emitted while playing.
const statusTickInterval = 200 * time.Millisecond

// statusTicker periodically reports the current clock position, independent
// of the decode goroutine, so the presentation layer gets a steady time
// readout even while decode is blocked on a full video channel.
func (l *Loop) statusTicker(ctx context.Context) error {
	ticker := time.NewTicker(statusTickInterval)
	defer ticker.Stop()
	total := l.demuxer.Duration()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.emitStatus(Status{
				Kind: StatusTime,
				CurrentUs: l.clock.CurrentTimeUs(),
				TotalUs: total,
			})
		}
	}
}

func (l *Loop) emitStatus(s Status) {
	if s.Kind == StatusError && s.Err != nil {
		l.log.Error("status error", "error", s.Err, "session", l.sessionID.String())
	}
	select {
	case l.statusCh <- s:
	default:
		l.log.Warn("status channel full, dropping", "kind", s.Kind)
	}
}
