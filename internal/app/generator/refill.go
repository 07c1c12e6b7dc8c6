package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/domain/track"
	"github.com/skoipy/skoipy/internal/infra/sheets"
	"github.com/skoipy/skoipy/internal/infra/store"
)

// ConfigStore reads per-guild settings.
type ConfigStore interface {
	GetOrCreate(ctx context.Context, guildID string) (store.ServerConfig, error)
}

// RandomPlaylists picks a random playlist row from a guild's sheet.
type RandomPlaylists interface {
	RandomPlaylist(ctx context.Context, sheetID string) (sheets.Playlist, error)
}

// PlaylistGenerator builds playlists on the Skoipy service.
type PlaylistGenerator interface {
	GeneratePlaylist(ctx context.Context, apiKey string, generatorID int) (string, error)
}

// Tracker records analytics events.
type Tracker interface {
	Track(event string, props map[string]any)
}

// Notifier posts to the guild's text channel. The refill announces
// which playlist it queued, same as the explicit commands do.
type Notifier interface {
	NotifyGuild(guildID, msg string)
}

// Refill feeds the queue's auto-refill: generator playlists when a
// generator is configured, otherwise a random playlist from the
// guild's sheet.
type Refill struct {
	store     ConfigStore
	sheets    RandomPlaylists
	generator PlaylistGenerator
	expander  *Expander
	tracker   Tracker
	notifier  Notifier
}

// NewRefill creates a refill source.
func NewRefill(cfgStore ConfigStore, random RandomPlaylists, gen PlaylistGenerator, expander *Expander, tracker Tracker, notifier Notifier) *Refill {
	return &Refill{
		store:     cfgStore,
		sheets:    random,
		generator: gen,
		expander:  expander,
		tracker:   tracker,
		notifier:  notifier,
	}
}

// Fetch returns the next batch of references for a guild. generatorID
// 0 selects the random playlist source.
func (r *Refill) Fetch(ctx context.Context, guildID string, generatorID int) ([]track.Reference, error) {
	cfg, err := r.store.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if generatorID != 0 {
		return r.fetchGenerated(ctx, cfg, generatorID)
	}
	return r.fetchRandom(ctx, cfg)
}

func (r *Refill) fetchGenerated(ctx context.Context, cfg store.ServerConfig, generatorID int) ([]track.Reference, error) {
	if r.generator == nil {
		return nil, errors.New("playlist generation is disabled")
	}
	if cfg.SkoipyAPIKey == "" {
		return nil, errors.New("no skoipy API key configured")
	}

	uri, err := r.generator.GeneratePlaylist(ctx, cfg.SkoipyAPIKey, generatorID)
	if err != nil {
		return nil, err
	}

	r.notifier.NotifyGuild(cfg.ServerID, "Queuing auto generated playlist")
	return r.expander.Expand(ctx, uri, track.RequesterTypeAuto, cfg.OverrideID)
}

func (r *Refill) fetchRandom(ctx context.Context, cfg store.ServerConfig) ([]track.Reference, error) {
	playlist, err := r.sheets.RandomPlaylist(ctx, cfg.SheetsID)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch random playlist")
	}
	if !strings.Contains(playlist.URI, "spotify") {
		return nil, errors.Wrapf(ErrUnsupported, "playlist %q", playlist.Name)
	}

	msg := fmt.Sprintf("Queuing %s", playlist.Name)
	if playlist.Artist != "" {
		msg += fmt.Sprintf(" by %s", playlist.Artist)
	}
	r.notifier.NotifyGuild(cfg.ServerID, msg)

	artist := playlist.Artist
	if artist == "" {
		artist = "Unknown"
	}
	r.tracker.Track("Random Queued", map[string]any{
		"name":              playlist.Name,
		"artist":            artist,
		"Discord Server Id": cfg.ServerID,
	})

	zlog.Info().Msgf("generator: random playlist selected: guild=%s playlist=%s", cfg.ServerID, playlist.Name)
	return r.expander.Expand(ctx, playlist.URI, track.RequesterTypeRandom, cfg.OverrideID)
}
