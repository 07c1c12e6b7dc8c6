package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/skoipy/skoipy/internal/app/queue"
	"github.com/skoipy/skoipy/internal/domain/messages"
	"github.com/skoipy/skoipy/internal/domain/track"
)

type fakeResolver struct {
	mu     sync.Mutex
	tracks map[string]*track.Track
	errs   map[string]error

	// When set, Resolve signals started and blocks until release is
	// closed. Used to interleave a skip with an in-flight resolve.
	started chan struct{}
	release chan struct{}
}

func (f *fakeResolver) Resolve(_ context.Context, ref track.Reference) (*track.Track, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[ref.Query]; ok {
		return nil, err
	}
	if tr, ok := f.tracks[ref.Query]; ok {
		return tr, nil
	}
	return nil, errors.Newf("no result for %q", ref.Query)
}

type fakeConn struct {
	members     int
	disconnects int
}

func (f *fakeConn) ChannelID() string        { return "voice1" }
func (f *fakeConn) MemberCount() (int, error) { return f.members, nil }
func (f *fakeConn) Disconnect() error {
	f.disconnects++
	return nil
}

type fakeAudio struct {
	mu      sync.Mutex
	played  []string
	playing string
	stops   int
	events  chan AudioEvent

	// When set, the first Play signals started and blocks until
	// release is closed. Used to interleave a skip with a stream that
	// is still opening.
	started  chan struct{}
	release  chan struct{}
	gateUsed bool
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{events: make(chan AudioEvent, 10)}
}

func (f *fakeAudio) Play(_ context.Context, streamURL string) error {
	f.mu.Lock()
	gate := f.started != nil && !f.gateUsed
	if gate {
		f.gateUsed = true
	}
	f.mu.Unlock()
	if gate {
		f.started <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, streamURL)
	f.playing = streamURL
	return nil
}

func (f *fakeAudio) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.playing = ""
}

func (f *fakeAudio) Events() <-chan AudioEvent { return f.events }

func (f *fakeAudio) playedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]string, len(f.played))
	copy(result, f.played)
	return result
}

func (f *fakeAudio) current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Send(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeNotifier) count(msg string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m == msg {
			n++
		}
	}
	return n
}

type fakeTracker struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeTracker) Track(event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type sessionFixture struct {
	session  *Session
	resolver *fakeResolver
	conn     *fakeConn
	audio    *fakeAudio
	notifier *fakeNotifier
	tracker  *fakeTracker
}

func newFixture(t *testing.T, resolver *fakeResolver) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		resolver: resolver,
		conn:     &fakeConn{members: 2},
		audio:    newFakeAudio(),
		notifier: &fakeNotifier{},
		tracker:  &fakeTracker{},
	}
	f.session = NewSession("guild1", Config{}, Deps{
		Queue:    queue.New("guild1", nil),
		Conn:     f.conn,
		Audio:    f.audio,
		Notifier: f.notifier,
		Resolver: f.resolver,
		Tracker:  f.tracker,
	})
	t.Cleanup(f.session.Close)
	return f
}

func resolved(query string, duration time.Duration) *track.Track {
	return &track.Track{
		ID:        "yt_" + query,
		Title:     query,
		Duration:  duration,
		StreamURL: "https://stream/" + query,
	}
}

func TestPlayStartsPlayback(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{
		"song": resolved("song", 3*time.Minute),
	}}
	f := newFixture(t, resolver)

	f.session.Play(context.Background(), []track.Reference{{Query: "song"}}, false)

	assert.Equal(t, StatePlaying, f.session.State())
	assert.Equal(t, []string{"https://stream/song"}, f.audio.playedURLs())
	current, ok := f.session.Current()
	assert.True(t, ok)
	assert.Equal(t, "song", current.Title)
	assert.Contains(t, f.tracker.events, "Played Song")
}

func TestDurationCap(t *testing.T) {
	tests := []struct {
		name       string
		duration   time.Duration
		wantPlayed bool
	}{
		{
			name:       "exactly at the cap is allowed",
			duration:   900 * time.Second,
			wantPlayed: true,
		},
		{
			name:       "one second over is rejected",
			duration:   901 * time.Second,
			wantPlayed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &fakeResolver{tracks: map[string]*track.Track{
				"song": resolved("song", tt.duration),
			}}
			f := newFixture(t, resolver)

			f.session.Play(context.Background(), []track.Reference{{Query: "song"}}, false)

			if tt.wantPlayed {
				assert.Equal(t, []string{"https://stream/song"}, f.audio.playedURLs())
				assert.Equal(t, 0, f.notifier.count(messages.TooLong))
			} else {
				assert.Empty(t, f.audio.playedURLs())
				assert.Equal(t, 1, f.notifier.count(messages.TooLong))
				// The rejected track ends the queue.
				assert.Equal(t, 1, f.notifier.count(messages.QueueEnd))
				assert.Equal(t, StateIdle, f.session.State())
			}
		})
	}
}

func TestResolveFailureAdvances(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{
		"good": resolved("good", time.Minute),
	}}
	f := newFixture(t, resolver)

	f.session.Play(context.Background(), []track.Reference{
		{Query: "missing"},
		{Query: "good"},
	}, false)

	assert.Equal(t, 1, f.notifier.count(messages.NoMatch))
	assert.Equal(t, []string{"https://stream/good"}, f.audio.playedURLs())
	assert.Equal(t, StatePlaying, f.session.State())
}

func TestQueueEndNotifiedOnce(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{
		"song": resolved("song", time.Minute),
	}}
	f := newFixture(t, resolver)

	f.session.Play(context.Background(), []track.Reference{{Query: "song"}}, false)
	assert.Equal(t, StatePlaying, f.session.State())

	// Natural end with nothing left.
	f.audio.events <- AudioEvent{Type: AudioFinished}

	assert.Eventually(t, func() bool {
		return f.notifier.count(messages.QueueEnd) == 1 && f.session.State() == StateIdle
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.notifier.count(messages.QueueEnd))
}

func TestSkipPlaysNext(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{
		"first":  resolved("first", time.Minute),
		"second": resolved("second", time.Minute),
	}}
	f := newFixture(t, resolver)

	f.session.Play(context.Background(), []track.Reference{
		{Query: "first"},
		{Query: "second"},
	}, false)
	f.session.Skip(context.Background())

	assert.Equal(t, 1, f.notifier.count(messages.Skip))
	assert.Equal(t, []string{"https://stream/first", "https://stream/second"}, f.audio.playedURLs())
	assert.Contains(t, f.tracker.events, "Skipped Song")
}

func TestSkipAbandonsInFlightResolve(t *testing.T) {
	resolver := &fakeResolver{
		tracks: map[string]*track.Track{
			"slow": resolved("slow", time.Minute),
		},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	f := newFixture(t, resolver)

	done := make(chan struct{})
	go func() {
		f.session.Play(context.Background(), []track.Reference{{Query: "slow"}}, false)
		close(done)
	}()

	// Wait until the resolve is in flight, then skip past it. The
	// second resolve (from the skip's advance) also hits the gate.
	<-resolver.started
	go func() {
		f.session.Skip(context.Background())
	}()
	close(resolver.release)
	<-done

	assert.Eventually(t, func() bool {
		return f.session.State() == StateIdle
	}, time.Second, 10*time.Millisecond)

	// The stale resolve must not have started playback.
	assert.Empty(t, f.audio.playedURLs())
}

func TestSkipDuringStreamStart(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{
		"first":  resolved("first", time.Minute),
		"second": resolved("second", time.Minute),
	}}
	f := newFixture(t, resolver)
	f.audio.started = make(chan struct{}, 1)
	f.audio.release = make(chan struct{})

	playDone := make(chan struct{})
	go func() {
		f.session.Play(context.Background(), []track.Reference{
			{Query: "first"},
			{Query: "second"},
		}, false)
		close(playDone)
	}()

	// The first stream is opening; skip lands before it reaches the
	// transport.
	<-f.audio.started
	skipDone := make(chan struct{})
	go func() {
		f.session.Skip(context.Background())
		close(skipDone)
	}()
	// Wait until the skip has invalidated the in-flight attempt before
	// letting the stale stream start complete.
	assert.Eventually(t, func() bool {
		return f.notifier.count(messages.Skip) == 1
	}, time.Second, time.Millisecond)
	close(f.audio.release)
	<-playDone
	<-skipDone

	// The skip's track owns the transport; the stale attempt stopped
	// only its own stream.
	assert.Eventually(t, func() bool {
		current, ok := f.session.Current()
		return ok && current.Title == "second" && f.session.State() == StatePlaying
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "https://stream/second", f.audio.current())
	assert.Equal(t, []string{"https://stream/first", "https://stream/second"}, f.audio.playedURLs())
}

func TestLeaveSendsFarewellAndDisconnects(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{}}
	f := newFixture(t, resolver)

	f.session.Leave(context.Background())

	assert.Equal(t, 1, f.conn.disconnects)
	assert.Equal(t, StateIdle, f.session.State())
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Len(t, f.notifier.msgs, 1, "leave sends exactly one farewell")
}

func TestClearKeepsCurrentTrack(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{
		"song": resolved("song", time.Minute),
	}}
	f := newFixture(t, resolver)

	f.session.Play(context.Background(), []track.Reference{{Query: "song"}}, false)
	f.session.Play(context.Background(), []track.Reference{{Query: "b"}, {Query: "c"}}, false)

	removed := f.session.Clear()
	assert.Equal(t, 2, removed)
	assert.Equal(t, StatePlaying, f.session.State())
	_, ok := f.session.Current()
	assert.True(t, ok)
}

func TestBufferingTransitions(t *testing.T) {
	resolver := &fakeResolver{tracks: map[string]*track.Track{
		"song": resolved("song", time.Minute),
	}}
	f := newFixture(t, resolver)

	f.session.Play(context.Background(), []track.Reference{{Query: "song"}}, false)

	f.audio.events <- AudioEvent{Type: AudioBuffering}
	assert.Eventually(t, func() bool {
		return f.session.State() == StateBuffering
	}, time.Second, 10*time.Millisecond)

	f.audio.events <- AudioEvent{Type: AudioResumed}
	assert.Eventually(t, func() bool {
		return f.session.State() == StatePlaying
	}, time.Second, 10*time.Millisecond)
}
