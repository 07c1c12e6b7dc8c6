// Package registry maps guilds to their playback sessions and reaps
// abandoned ones.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/app/player"
	"github.com/skoipy/skoipy/internal/domain/messages"
)

// Errors
var (
	ErrNotInVoiceChannel = errors.New("user is not in a voice channel")
)

// Factory creates a session bound to a guild's voice and text channels.
type Factory interface {
	NewSession(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*player.Session, error)
}

// VoiceLocator finds the voice channel a user currently occupies.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (channelID string, ok bool)
	UserDisplayName(guildID, userID string) string
}

// Config holds registry configuration.
type Config struct {
	ReapInterval time.Duration // How often the reaper runs (default 60s)
	IdleTimeout  time.Duration // Inactivity before a session is removed (default 1h)
}

// Registry holds at most one session per guild.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*player.Session
	creates  map[string]*sync.Mutex

	factory Factory
	locator VoiceLocator
	config  Config
}

// New creates a session registry.
func New(cfg Config, factory Factory, locator VoiceLocator) *Registry {
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 60 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	return &Registry{
		sessions: make(map[string]*player.Session),
		creates:  make(map[string]*sync.Mutex),
		factory:  factory,
		locator:  locator,
		config:   cfg,
	}
}

// Get returns the guild's session if one exists.
func (r *Registry) Get(guildID string) (*player.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[guildID]
	return s, ok
}

// GetOrCreate returns the guild's session, creating one joined to the
// user's voice channel when none exists. The user must be in a voice
// channel; that is the only error that surfaces to command handlers.
func (r *Registry) GetOrCreate(ctx context.Context, guildID, userID, textChannelID string) (*player.Session, error) {
	if s, ok := r.Get(guildID); ok {
		return s, nil
	}

	voiceChannelID, ok := r.locator.UserVoiceChannel(guildID, userID)
	if !ok {
		return nil, ErrNotInVoiceChannel
	}

	// Creates serialize per guild, not globally: the factory joins a
	// voice channel over the network and must not hold up other guilds.
	lock := r.createLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the guild lock: a concurrent create wins once.
	if s, ok := r.Get(guildID); ok {
		return s, nil
	}

	s, err := r.factory.NewSession(ctx, guildID, voiceChannelID, textChannelID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	r.mu.Lock()
	r.sessions[guildID] = s
	r.mu.Unlock()

	zlog.Info().Msgf("registry: session created: guild=%s voice_channel=%s", guildID, voiceChannelID)
	s.Notify(messages.RandomJoin(r.locator.UserDisplayName(guildID, userID)))

	return s, nil
}

func (r *Registry) createLock(guildID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.creates[guildID]
	if !ok {
		lock = &sync.Mutex{}
		r.creates[guildID] = lock
	}
	return lock
}

// Remove stops and deletes the guild's session. Removing a guild
// without a session is a no-op.
func (r *Registry) Remove(ctx context.Context, guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	s.Leave(ctx)
	s.Close()
	zlog.Info().Msgf("registry: session removed: guild=%s", guildID)
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run reaps abandoned sessions until the context is cancelled. A
// session is abandoned when the bot is alone in the voice channel or
// nothing has touched it for the idle timeout.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Registry) reap(ctx context.Context) {
	r.mu.RLock()
	candidates := make(map[string]*player.Session, len(r.sessions))
	for guildID, s := range r.sessions {
		candidates[guildID] = s
	}
	r.mu.RUnlock()

	for guildID, s := range candidates {
		if reason, ok := r.shouldReap(s); ok {
			zlog.Info().Msgf("registry: reaping session: guild=%s reason=%s", guildID, reason)
			r.Remove(ctx, guildID)
		}
	}
}

func (r *Registry) shouldReap(s *player.Session) (string, bool) {
	members, err := s.VoiceMemberCount()
	if err != nil {
		zlog.Warn().Msgf("registry: member count failed: guild=%s err=%v", s.GuildID(), err)
	} else if members <= 1 {
		return "alone in channel", true
	}

	if time.Since(s.LastActivity()) > r.config.IdleTimeout {
		return "idle", true
	}

	return "", false
}

// Close removes every session. Used during shutdown.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*player.Session)
	r.mu.Unlock()

	for guildID, s := range sessions {
		s.Close()
		zlog.Debug().Msgf("registry: session closed: guild=%s", guildID)
	}
}
