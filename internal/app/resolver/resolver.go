// Package resolver turns queue references into playable tracks.
package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/domain/track"
)

// Metadata resolves a YouTube URL or video ID to a playable track.
type Metadata interface {
	Video(ctx context.Context, urlOrID string) (*track.Track, error)
}

// Searcher finds a video ID for a free-text query.
type Searcher interface {
	Find(ctx context.Context, query string, officialAudio bool) (videoID string, err error)
}

// Resolver implements the session's resolve step: search when needed,
// then fetch duration and stream URL.
type Resolver struct {
	meta   Metadata
	search Searcher
}

// New creates a resolver.
func New(meta Metadata, search Searcher) *Resolver {
	return &Resolver{meta: meta, search: search}
}

// Resolve turns a reference into a playable track. Spotify-sourced
// references search with an official-audio bias and keep their catalog
// metadata for display.
func (r *Resolver) Resolve(ctx context.Context, ref track.Reference) (*track.Track, error) {
	target := ref.Query

	if ref.Source != track.SourceYouTube {
		id, err := r.search.Find(ctx, ref.Query, ref.Source == track.SourceSpotify)
		if err != nil {
			return nil, errors.Wrapf(err, "no video found for %q", ref.Query)
		}
		target = id
	}

	tr, err := r.meta.Video(ctx, target)
	if err != nil {
		return nil, err
	}

	if ref.Title != "" {
		tr.Title = ref.Title
	}
	if ref.Artist != "" && len(tr.Artists) == 0 {
		tr.Artists = []string{ref.Artist}
	}

	zlog.Debug().Msgf("resolver: resolved: query=%q video=%s duration=%v", ref.Query, tr.ID, tr.Duration)
	return tr, nil
}
