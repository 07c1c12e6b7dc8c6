package discord

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/bwmarrin/discordgo"

	"github.com/skoipy/skoipy/internal/app/player"
)

// Discord voice expects 48kHz stereo Opus.
const (
	sampleRate = 48000
	channels   = 2
)

// Settings configures the ffmpeg transcode pipeline. Values come from
// the audio.settings config map.
type Settings struct {
	FFmpegPath        string `mapstructure:"ffmpeg_path" default:"ffmpeg"`
	ReconnectDelayMax int    `mapstructure:"reconnect_delay_max" default:"5" validate:"min=0"`
	FrameSize         int    `mapstructure:"frame_size" default:"960" validate:"min=120"`
	BufferingAfterMs  int    `mapstructure:"buffering_after_ms" default:"1500" validate:"min=100"`
}

// DecodeSettings decodes, defaults, and validates audio settings.
func DecodeSettings(raw map[string]any) (Settings, error) {
	var s Settings
	if err := mapstructure.Decode(raw, &s); err != nil {
		return s, errors.Wrap(err, "invalid audio settings")
	}
	if err := defaults.Set(&s); err != nil {
		return s, errors.Wrap(err, "failed to apply audio defaults")
	}
	if err := validator.New().Struct(&s); err != nil {
		return s, errors.Wrap(err, "invalid audio settings")
	}
	return s, nil
}

// ffmpegPlayer plays one stream at a time by piping an ffmpeg PCM
// transcode through an Opus encoder into the voice connection.
type ffmpegPlayer struct {
	vc       *discordgo.VoiceConnection
	settings Settings
	events   chan player.AudioEvent

	mu      sync.Mutex
	current *playback
}

// playback is one running stream. silenced suppresses end-of-stream
// events when the stream was cancelled rather than finishing.
type playback struct {
	cancel   context.CancelFunc
	silenced atomic.Bool
	done     chan struct{}
}

func newFFmpegPlayer(vc *discordgo.VoiceConnection, settings Settings) *ffmpegPlayer {
	return &ffmpegPlayer{
		vc:       vc,
		settings: settings,
		events:   make(chan player.AudioEvent, 8),
	}
}

func (p *ffmpegPlayer) Events() <-chan player.AudioEvent {
	return p.events
}

// Play starts streaming the URL. Any previous stream is cancelled
// first without emitting an event.
func (p *ffmpegPlayer) Play(ctx context.Context, streamURL string) error {
	p.Stop()

	streamCtx, cancel := context.WithCancel(context.Background())
	pb := &playback{cancel: cancel, done: make(chan struct{})}

	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", strconv.Itoa(p.settings.ReconnectDelayMax),
		"-nostdin",
		"-i", streamURL,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	}
	cmd := exec.CommandContext(streamCtx, p.settings.FFmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to open ffmpeg stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to open ffmpeg stderr")
	}

	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to create opus encoder")
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return errors.Wrap(err, "failed to start ffmpeg")
	}

	go logStderr(stderr)

	p.mu.Lock()
	p.current = pb
	p.mu.Unlock()

	go p.pump(streamCtx, pb, cmd, bufio.NewReaderSize(stdout, 1<<14), enc)
	return nil
}

// Stop cancels the current stream, if any, and waits for its pump to
// exit. No event is emitted for a stopped stream.
func (p *ffmpegPlayer) Stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()

	if pb == nil {
		return
	}
	pb.silenced.Store(true)
	pb.cancel()
	<-pb.done
}

// pump reads PCM frames from ffmpeg, encodes them, and feeds the voice
// connection until the stream ends or is cancelled.
func (p *ffmpegPlayer) pump(ctx context.Context, pb *playback, cmd *exec.Cmd, stream io.Reader, enc *opus.Encoder) {
	defer close(pb.done)
	defer func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			zlog.Debug().Msgf("discord: ffmpeg exited: err=%v", err)
		}
	}()

	if err := p.vc.Speaking(true); err != nil {
		zlog.Warn().Msgf("discord: speaking on failed: err=%v", err)
	}
	defer func() {
		if err := p.vc.Speaking(false); err != nil {
			zlog.Debug().Msgf("discord: speaking off failed: err=%v", err)
		}
	}()

	// A read that stalls past the threshold means the source is not
	// keeping up. The session flips to buffering until data flows again.
	stallAfter := time.Duration(p.settings.BufferingAfterMs) * time.Millisecond
	var stalled atomic.Bool
	stall := time.AfterFunc(stallAfter, func() {
		stalled.Store(true)
		p.emit(player.AudioEvent{Type: player.AudioBuffering})
	})
	stall.Stop()
	defer stall.Stop()

	frame := make([]int16, p.settings.FrameSize*channels)
	maxBytes := p.settings.FrameSize * channels * 2

	for {
		stall.Reset(stallAfter)
		err := binary.Read(stream, binary.LittleEndian, &frame)
		stall.Stop()
		if stalled.Swap(false) {
			p.emit(player.AudioEvent{Type: player.AudioResumed})
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if !pb.silenced.Load() {
				p.emit(player.AudioEvent{Type: player.AudioFinished})
			}
			return
		}
		if err != nil {
			if ctx.Err() == nil && !pb.silenced.Load() {
				p.emit(player.AudioEvent{Type: player.AudioError, Err: err})
			}
			return
		}

		// The voice connection hands the packet to its own sender
		// goroutine, so each frame needs its own buffer.
		packet := make([]byte, maxBytes)
		n, err := enc.Encode(frame, packet)
		if err != nil {
			if !pb.silenced.Load() {
				p.emit(player.AudioEvent{Type: player.AudioError, Err: err})
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case p.vc.OpusSend <- packet[:n]:
		}
	}
}

// emit delivers an event without blocking the pump.
func (p *ffmpegPlayer) emit(ev player.AudioEvent) {
	select {
	case p.events <- ev:
	default:
		zlog.Warn().Msgf("discord: audio event dropped: type=%s", ev.Type)
	}
}

// logStderr forwards ffmpeg diagnostics, skipping progress spam.
func logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "size=") || strings.Contains(line, "time=") {
			continue
		}
		zlog.Debug().Msgf("discord: ffmpeg: %s", line)
	}
}
