package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skoipy/skoipy/internal/app/player"
	"github.com/skoipy/skoipy/internal/app/queue"
	"github.com/skoipy/skoipy/internal/domain/track"
)

type stubConn struct {
	mu      sync.Mutex
	members int
}

func (c *stubConn) ChannelID() string { return "voice1" }
func (c *stubConn) MemberCount() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members, nil
}
func (c *stubConn) Disconnect() error { return nil }

func (c *stubConn) setMembers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = n
}

type stubAudio struct {
	events chan player.AudioEvent
}

func (a *stubAudio) Play(context.Context, string) error  { return nil }
func (a *stubAudio) Stop()                               {}
func (a *stubAudio) Events() <-chan player.AudioEvent    { return a.events }

type stubNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *stubNotifier) Send(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *stubNotifier) len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type stubResolver struct{}

func (stubResolver) Resolve(context.Context, track.Reference) (*track.Track, error) {
	return &track.Track{Title: "t", Duration: time.Minute, StreamURL: "u"}, nil
}

type stubTracker struct{}

func (stubTracker) Track(string, map[string]any) {}

type stubFactory struct {
	calls    atomic.Int64
	conn     *stubConn
	notifier *stubNotifier

	// When set, creates for blockGuild signal started and block until
	// release is closed.
	blockGuild string
	started    chan struct{}
	release    chan struct{}
}

func (f *stubFactory) NewSession(_ context.Context, guildID, _, _ string) (*player.Session, error) {
	if f.started != nil && guildID == f.blockGuild {
		f.started <- struct{}{}
		<-f.release
	}
	f.calls.Add(1)
	return player.NewSession(guildID, player.Config{}, player.Deps{
		Queue:    queue.New(guildID, nil),
		Conn:     f.conn,
		Audio:    &stubAudio{events: make(chan player.AudioEvent)},
		Notifier: f.notifier,
		Resolver: stubResolver{},
		Tracker:  stubTracker{},
	}), nil
}

type stubLocator struct {
	channels map[string]string // userID -> channelID
}

func (l *stubLocator) UserVoiceChannel(_, userID string) (string, bool) {
	ch, ok := l.channels[userID]
	return ch, ok
}

func (l *stubLocator) UserDisplayName(_, userID string) string { return userID }

func newTestRegistry(cfg Config) (*Registry, *stubFactory) {
	factory := &stubFactory{
		conn:     &stubConn{members: 2},
		notifier: &stubNotifier{},
	}
	locator := &stubLocator{channels: map[string]string{"user1": "voice1"}}
	return New(cfg, factory, locator), factory
}

func TestGetOrCreateRequiresVoiceChannel(t *testing.T) {
	r, factory := newTestRegistry(Config{})

	_, err := r.GetOrCreate(context.Background(), "guild1", "lurker", "text1")
	assert.ErrorIs(t, err, ErrNotInVoiceChannel)
	assert.Equal(t, int64(0), factory.calls.Load())
	assert.Equal(t, 0, r.Count())
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	r, factory := newTestRegistry(Config{})
	ctx := context.Background()

	s1, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
	assert.NoError(t, err)
	assert.Equal(t, 1, factory.notifier.len(), "greeting sent on create")

	s2, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
	assert.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, int64(1), factory.calls.Load())
	assert.Equal(t, 1, factory.notifier.len(), "no greeting on lookup")
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r, factory := newTestRegistry(Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	sessions := make([]*player.Session, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), factory.calls.Load())
	assert.Equal(t, 1, r.Count())
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
}

func TestCreateDoesNotBlockOtherGuilds(t *testing.T) {
	r, factory := newTestRegistry(Config{})
	ctx := context.Background()
	factory.blockGuild = "guild1"
	factory.started = make(chan struct{}, 1)
	factory.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		_, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
		assert.NoError(t, err)
		close(done)
	}()

	// guild1's create is stuck joining voice; guild2 must not wait on
	// it.
	<-factory.started
	s2, err := r.GetOrCreate(ctx, "guild2", "user1", "text2")
	assert.NoError(t, err)
	assert.NotNil(t, s2)
	assert.Equal(t, 1, r.Count())

	close(factory.release)
	<-done
	assert.Equal(t, 2, r.Count())
}

func TestRemoveIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry(Config{})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Count())

	r.Remove(ctx, "guild1")
	assert.Equal(t, 0, r.Count())

	// Second remove and removal of an unknown guild are no-ops.
	r.Remove(ctx, "guild1")
	r.Remove(ctx, "nosuchguild")
	assert.Equal(t, 0, r.Count())
}

func TestReapAloneInChannel(t *testing.T) {
	r, factory := newTestRegistry(Config{})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
	assert.NoError(t, err)

	factory.conn.setMembers(1)
	r.reap(ctx)
	assert.Equal(t, 0, r.Count())
}

func TestReapIdleSession(t *testing.T) {
	r, _ := newTestRegistry(Config{IdleTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
	assert.NoError(t, err)

	// Still active: not reaped.
	r.reap(ctx)
	assert.Equal(t, 1, r.Count())

	time.Sleep(80 * time.Millisecond)
	r.reap(ctx)
	assert.Equal(t, 0, r.Count())
}

func TestReapKeepsActiveSession(t *testing.T) {
	r, _ := newTestRegistry(Config{})
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, "guild1", "user1", "text1")
	assert.NoError(t, err)

	r.reap(ctx)
	assert.Equal(t, 1, r.Count())
}
