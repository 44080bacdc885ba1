// Command reelplay is the illustrative reference player this package defines:
// it owns nothing the codec/container core doesn't already expose through
// demux.Demuxer/codec.Decoder/playerloop.Loop. It exists to exercise that
// core end-to-end, not as a deliverable of its own (: "A reference
// player embeds this core but is out of scope except for the small set of
// interfaces it consumes").
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/bramblemedia/reelcore/internal/ioutil"
	"github.com/bramblemedia/reelcore/internal/playerloop"
	"github.com/bramblemedia/reelcore/internal/stats"

	// Blank imports register every demuxer/decoder with their respective
	// registries via each subpackage's init(); the core packages above never
	// import these directly (: probing and codec
	// selection are table-driven, not a switch this command has to own).
	_ "github.com/bramblemedia/reelcore/internal/codec/aac"
	_ "github.com/bramblemedia/reelcore/internal/codec/flac"
	_ "github.com/bramblemedia/reelcore/internal/codec/h264"
	_ "github.com/bramblemedia/reelcore/internal/codec/mp3"
	_ "github.com/bramblemedia/reelcore/internal/codec/mpeg4"
	_ "github.com/bramblemedia/reelcore/internal/codec/pcm"
	_ "github.com/bramblemedia/reelcore/internal/demux/aiff"
	_ "github.com/bramblemedia/reelcore/internal/demux/flac"
	_ "github.com/bramblemedia/reelcore/internal/demux/flv"
	_ "github.com/bramblemedia/reelcore/internal/demux/mp3"
	_ "github.com/bramblemedia/reelcore/internal/demux/mp4"
	_ "github.com/bramblemedia/reelcore/internal/demux/ogg"
)

// Exit codes by convention: 0 normal, 2 bad argument, 3 open failure,
// 4 decode/runtime error.
const (
	exitOK = 0
	exitBadArgument = 2
	exitOpenFailure = 3
	exitRuntime = 4
)

var errInvalidArgCount = errors.New("expected exactly one argument: a file path or http(s) URL")

func main() {
	os.Exit(run(context.Background(), os.Args))
}

func run(ctx context.Context, args []string) int {
	var exitCode int

	appl := &cli.Command{
		Name: "reelplay",
		Usage: "Play a local file or HTTP(S) URL through the reelcore decode core",
		ArgsUsage: "<path-or-url>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-video", Usage: "disable video presentation (logged only; video is still decoded)"},
			&cli.BoolFlag{Name: "no-audio", Usage: "disable audio presentation (logged only; audio is still decoded)"},
			&cli.StringFlag{Name: "volume", Usage: "initial volume 0..1", Value: "1.0"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				exitCode = exitBadArgument
				return fmt.Errorf("%w: got %d", errInvalidArgCount, cmd.NArg())
			}
			volume, err := strconv.ParseFloat(cmd.String("volume"), 64)
			if err != nil {
				exitCode = exitBadArgument
				return fmt.Errorf("--volume must be a number: %w", err)
			}
			if volume < 0 || volume > 1 {
				exitCode = exitBadArgument
				return fmt.Errorf("--volume must be within [0,1], got %v", volume)
			}

			code, err := playOne(ctx, cmd.Args().First(), cmd.Bool("no-video"), cmd.Bool("no-audio"), float32(volume))
			exitCode = code
			return err
		},
	}

	if err := appl.Run(ctx, args); err != nil {
		slog.Error("reelplay failed", "error", err)
		if exitCode == exitOK {
			// Run failed before Action ran far enough to set exitCode
			// (e.g. an unrecognized flag) — that's always a bad argument.
			exitCode = exitBadArgument
		}
	}
	return exitCode
}

// playOne opens path, drives one playerloop.Loop session to completion, and
// returns the exit code to use alongside any error.
func playOne(ctx context.Context, path string, noVideo, noAudio bool, volume float32) (int, error) {
	src, filename, err := openSource(path)
	if err != nil {
		return exitOpenFailure, err
	}
	if closer, ok := src.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	rec := stats.NewRecorder(nil)
	sink := playerloop.AudioSink(playerloop.NopAudioSink{})

	loop, err := playerloop.New(src, filename, sink, rec)
	if err != nil {
		return exitOpenFailure, fmt.Errorf("opening %s: %w", path, err)
	}
	loop.SetVolume(volume)
	// Video/audio stream selection happens at the demuxer/decoder level; the
	// flags gate only local presentation, which this illustrative command
	// doesn't implement beyond logging.
	slog.Info("presentation flags", "no-video", noVideo, "no-audio", noAudio)

	logStreams(loop)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(runCtx) }()

	statusCh := loop.Status()
	videoCh := loop.VideoFrames()
	for {
		select {
		case st, ok := <-statusCh:
			if !ok {
				statusCh = nil // avoid busy-spinning on a closed channel
				continue
			}
			switch st.Kind {
			case playerloop.StatusEnd:
				slog.Info("playback finished")
			case playerloop.StatusError:
				cancel()
				<-errCh
				return exitRuntime, st.Err
			}
		case _, ok := <-videoCh:
			if !ok {
				videoCh = nil
				continue
			}
			// An illustrative player would hand this frame to a display
			// surface (: out of scope); here it is only drained
			// so the bounded channel never blocks the decoder.
		case err := <-errCh:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		}
	}
}

func logStreams(loop *playerloop.Loop) {
	for _, st := range loop.Streams() {
		slog.Info("stream", "index", st.Index, "type", st.MediaType.String(), "codec", st.CodecID.String())
	}
}

// openSource builds an ioutil.Source from a local path or an http(s) URL,
// per two supported byte-source kinds.
func openSource(path string) (ioutil.Source, string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		src, err := ioutil.OpenHTTP(nil, path)
		return src, path, err
	}
	src, err := ioutil.OpenFile(path)
	return src, path, err
}
