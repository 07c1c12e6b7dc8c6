package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/app/queue"
	"github.com/skoipy/skoipy/internal/domain/messages"
	"github.com/skoipy/skoipy/internal/domain/track"
)

// DefaultMaxTrackDuration is the longest playable track. The cap is
// inclusive: a track of exactly this length is accepted.
const DefaultMaxTrackDuration = 900 * time.Second

// Resolver turns a queued reference into a playable track.
type Resolver interface {
	Resolve(ctx context.Context, ref track.Reference) (*track.Track, error)
}

// VoiceConnection is the session's handle on a voice channel.
type VoiceConnection interface {
	ChannelID() string
	MemberCount() (int, error)
	Disconnect() error
}

// AudioPlayer plays a single stream at a time. Stop must cancel the
// current stream without emitting an event; Events carries natural
// ends, stream errors, and stall transitions.
type AudioPlayer interface {
	Play(ctx context.Context, streamURL string) error
	Stop()
	Events() <-chan AudioEvent
}

// Notifier posts messages to the session's text channel.
type Notifier interface {
	Send(msg string)
}

// Tracker records analytics events. Implementations must not block.
type Tracker interface {
	Track(event string, props map[string]any)
}

// Config holds session configuration.
type Config struct {
	MaxTrackDuration time.Duration // Inclusive duration cap (default 900s)
}

// Deps holds the session's collaborators.
type Deps struct {
	Queue    *queue.Queue
	Conn     VoiceConnection
	Audio    AudioPlayer
	Notifier Notifier
	Resolver Resolver
	Tracker  Tracker
}

// Session owns playback for one guild: the queue, the voice connection,
// and the resolve/play pipeline.
type Session struct {
	guildID string
	config  Config

	queue    *queue.Queue
	conn     VoiceConnection
	audio    AudioPlayer
	notifier Notifier
	resolver Resolver
	tracker  Tracker

	mu           sync.RWMutex
	state        State
	current      *track.Track
	lastActivity time.Time

	// generation invalidates in-flight resolve/play work. Every play
	// attempt captures the value at its start and abandons itself when
	// the value has moved on (skip, stop, newer attempt).
	generation atomic.Uint64

	// playMu spans the generation check and the stream start so that
	// only one attempt at a time can reach the transport. A stale
	// attempt detected inside the section can only ever stop its own
	// stream: any newer attempt is still waiting on the mutex.
	playMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a session and attaches the single audio event
// listener. The listener lives for the session's lifetime; per-play
// listener registration is deliberately avoided.
func NewSession(guildID string, cfg Config, deps Deps) *Session {
	if cfg.MaxTrackDuration <= 0 {
		cfg.MaxTrackDuration = DefaultMaxTrackDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		guildID:      guildID,
		config:       cfg,
		queue:        deps.Queue,
		conn:         deps.Conn,
		audio:        deps.Audio,
		notifier:     deps.Notifier,
		resolver:     deps.Resolver,
		tracker:      deps.Tracker,
		state:        StateIdle,
		lastActivity: time.Now(),
		ctx:          ctx,
		cancel:       cancel,
	}

	s.wg.Add(1)
	go s.audioEventLoop()

	return s
}

// Play enqueues references and starts playback if idle. When next is
// true the references go to the front of the queue.
func (s *Session) Play(ctx context.Context, refs []track.Reference, next bool) {
	if next {
		s.queue.EnqueueNext(refs...)
	} else {
		s.queue.Enqueue(refs...)
	}
	s.touch()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.advance(ctx)
}

// Skip stops the current track and moves to the next one.
func (s *Session) Skip(ctx context.Context) {
	s.touch()
	s.generation.Add(1)
	s.audio.Stop()

	s.mu.Lock()
	skipped := s.current
	s.current = nil
	s.mu.Unlock()

	s.notifier.Send(messages.Skip)
	if skipped != nil {
		s.tracker.Track("Skipped Song", map[string]any{
			"name":   skipped.Title,
			"artist": skipped.ArtistLine(),
		})
	}

	s.advance(ctx)
}

// Stop halts playback and drops the current track. The queue is left
// intact.
func (s *Session) Stop() {
	s.touch()
	s.generation.Add(1)
	s.audio.Stop()

	s.mu.Lock()
	s.current = nil
	s.state = StateIdle
	s.mu.Unlock()
}

// Leave stops playback, says goodbye, and disconnects from voice.
func (s *Session) Leave(ctx context.Context) {
	s.Stop()
	s.notifier.Send(messages.RandomLeave())
	if err := s.conn.Disconnect(); err != nil {
		zlog.Warn().Msgf("player: disconnect failed: guild=%s err=%v", s.guildID, err)
	}
}

// Shuffle permutes the pending queue.
func (s *Session) Shuffle() {
	s.touch()
	s.queue.Shuffle()
}

// Clear drops all pending queue items.
func (s *Session) Clear() int {
	s.touch()
	return s.queue.Clear()
}

// SetAutoQueue configures auto-refill. generatorID 0 selects the
// random playlist source.
func (s *Session) SetAutoQueue(enabled bool, generatorID int) {
	s.touch()
	s.queue.SetAutoQueue(enabled, generatorID)
}

// SetRefillShuffle shuffles each auto-queued playlist before it plays.
func (s *Session) SetRefillShuffle(enabled bool) {
	s.touch()
	s.queue.SetRefillShuffle(enabled)
}

// AutoQueue reports the queue's auto-refill setting.
func (s *Session) AutoQueue() (enabled bool, generatorID int) {
	return s.queue.AutoQueue()
}

// Notify posts a message to the session's text channel.
func (s *Session) Notify(msg string) {
	s.notifier.Send(msg)
}

// QueueSnapshot returns a copy of the pending queue items.
func (s *Session) QueueSnapshot() []track.Reference {
	return s.queue.Snapshot()
}

// State returns the current playback state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns the currently playing track.
func (s *Session) Current() (*track.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

// LastActivity returns the time of the last user interaction or track
// start.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// GuildID returns the owning guild.
func (s *Session) GuildID() string {
	return s.guildID
}

// VoiceChannelID returns the connected voice channel.
func (s *Session) VoiceChannelID() string {
	return s.conn.ChannelID()
}

// VoiceMemberCount returns the member count of the connected channel,
// including the bot itself.
func (s *Session) VoiceMemberCount() (int, error) {
	return s.conn.MemberCount()
}

// Close releases the session's resources. It does not send messages;
// use Leave for a user-visible shutdown.
func (s *Session) Close() {
	s.Stop()
	s.cancel()
	s.wg.Wait()
}

// advance plays the next queue item, converting every failure into a
// notification and another attempt. It owns playback until a newer
// generation takes over or the queue ends.
func (s *Session) advance(ctx context.Context) {
	gen := s.generation.Add(1)

	for {
		s.setState(StateStarting)

		ref, ok := s.queue.Advance(ctx)
		if s.generation.Load() != gen {
			return
		}
		if !ok {
			s.mu.Lock()
			s.state = StateIdle
			s.current = nil
			s.mu.Unlock()
			s.notifier.Send(messages.QueueEnd)
			return
		}

		if s.playRef(ctx, gen, ref) {
			return
		}
		if s.generation.Load() != gen {
			return
		}
	}
}

// playRef resolves and starts one reference. Returns true when playback
// started or a newer generation owns the session; false means the
// caller should try the next item (the user was already notified).
func (s *Session) playRef(ctx context.Context, gen uint64, ref track.Reference) bool {
	tr, err := s.resolver.Resolve(ctx, ref)
	if s.generation.Load() != gen {
		return true
	}
	if err != nil {
		zlog.Warn().Msgf("player: resolve failed: guild=%s query=%q err=%v", s.guildID, ref.Query, err)
		s.notifier.Send(messages.NoMatch)
		return false
	}

	if tr.Duration > s.config.MaxTrackDuration {
		zlog.Info().Msgf("player: rejecting long track: guild=%s track=%s duration=%v",
			s.guildID, tr.Title, tr.Duration)
		s.notifier.Send(messages.TooLong)
		return false
	}

	s.playMu.Lock()
	if s.generation.Load() != gen {
		s.playMu.Unlock()
		return true
	}
	if err := s.audio.Play(ctx, tr.StreamURL); err != nil {
		s.playMu.Unlock()
		if s.generation.Load() != gen {
			return true
		}
		zlog.Warn().Msgf("player: stream start failed: guild=%s track=%s err=%v", s.guildID, tr.Title, err)
		s.notifier.Send(messages.NoMatch)
		return false
	}
	if s.generation.Load() != gen {
		// A skip won the race while the stream was opening. Its own
		// attempt is still queued behind playMu, so the stream stopped
		// here is this attempt's.
		s.audio.Stop()
		s.playMu.Unlock()
		return true
	}

	s.mu.Lock()
	s.current = tr
	s.state = StatePlaying
	s.lastActivity = time.Now()
	s.mu.Unlock()
	s.playMu.Unlock()

	zlog.Info().Msgf("player: now playing: guild=%s track=%s duration=%v", s.guildID, tr.Title, tr.Duration)
	s.notifier.Send(fmt.Sprintf("Now playing: %s", displayTitle(tr)))
	s.tracker.Track("Played Song", map[string]any{
		"name":      tr.Title,
		"artist":    tr.ArtistLine(),
		"requester": string(ref.Requester),
	})

	return true
}

// audioEventLoop is the session's single audio listener. Natural ends
// and stream errors advance the queue; stall events flip the state
// between playing and buffering.
func (s *Session) audioEventLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.audio.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case AudioBuffering:
				s.setStateIf(StatePlaying, StateBuffering)
			case AudioResumed:
				s.setStateIf(StateBuffering, StatePlaying)
			case AudioError:
				zlog.Warn().Msgf("player: stream error: guild=%s err=%v", s.guildID, ev.Err)
				fallthrough
			case AudioFinished:
				s.mu.Lock()
				active := s.state == StatePlaying || s.state == StateBuffering
				s.current = nil
				s.mu.Unlock()
				if active {
					s.advance(s.ctx)
				}
			}
		}
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) setStateIf(from, to State) {
	s.mu.Lock()
	if s.state == from {
		s.state = to
	}
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func displayTitle(t *track.Track) string {
	if line := t.ArtistLine(); line != "" {
		return fmt.Sprintf("%s - %s", t.Title, line)
	}
	return t.Title
}
