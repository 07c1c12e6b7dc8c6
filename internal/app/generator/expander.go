package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/domain/track"
	"github.com/skoipy/skoipy/internal/infra/spotify"
	"github.com/skoipy/skoipy/internal/infra/youtube"
)

// Catalog reads Spotify track metadata.
type Catalog interface {
	GetTrack(ctx context.Context, trackID string) (*spotify.TrackInfo, error)
	GetAlbumTracks(ctx context.Context, albumID string) ([]spotify.TrackInfo, error)
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]spotify.TrackInfo, error)
}

// PlaylistLister reads YouTube playlist entries.
type PlaylistLister interface {
	Playlist(ctx context.Context, url string) ([]youtube.PlaylistItem, error)
}

// Overrides maps "title, artist" keys to replacement YouTube URLs.
type Overrides interface {
	URLOverrides(ctx context.Context, sheetID string) (map[string]string, error)
}

// Expander turns a user-supplied URL or query into queue references.
type Expander struct {
	catalog   Catalog
	playlists PlaylistLister
	overrides Overrides
}

// NewExpander creates an expander.
func NewExpander(catalog Catalog, playlists PlaylistLister, overrides Overrides) *Expander {
	return &Expander{
		catalog:   catalog,
		playlists: playlists,
		overrides: overrides,
	}
}

// Expand resolves the input to references ready for the queue. The
// guild's override sheet (may be empty) rewrites known tracks to
// hand-picked YouTube URLs.
func (e *Expander) Expand(ctx context.Context, input string, requester track.RequesterType, overrideSheetID string) ([]track.Reference, error) {
	now := time.Now()

	switch Classify(input) {
	case KindSpotifyTrack:
		info, err := e.catalog.GetTrack(ctx, input)
		if err != nil {
			return nil, err
		}
		return e.applyOverrides(ctx, overrideSheetID, []track.Reference{spotifyRef(*info, requester, now)}), nil

	case KindSpotifyAlbum:
		infos, err := e.catalog.GetAlbumTracks(ctx, input)
		if err != nil {
			return nil, err
		}
		return e.applyOverrides(ctx, overrideSheetID, spotifyRefs(infos, requester, now)), nil

	case KindSpotifyPlaylist:
		infos, err := e.catalog.GetPlaylistTracks(ctx, input)
		if err != nil {
			return nil, err
		}
		return e.applyOverrides(ctx, overrideSheetID, spotifyRefs(infos, requester, now)), nil

	case KindYouTubeVideo:
		return []track.Reference{{
			Query:     input,
			Source:    track.SourceYouTube,
			Requester: requester,
			AddedAt:   now,
		}}, nil

	case KindYouTubePlaylist:
		items, err := e.playlists.Playlist(ctx, input)
		if err != nil {
			return nil, err
		}
		refs := make([]track.Reference, 0, len(items))
		for _, item := range items {
			refs = append(refs, track.Reference{
				Query:     youtube.WatchURL(item.ID),
				Title:     item.Title,
				Source:    track.SourceYouTube,
				Requester: requester,
				AddedAt:   now,
			})
		}
		return refs, nil

	case KindSearch:
		return []track.Reference{{
			Query:     input,
			Source:    track.SourceSearch,
			Requester: requester,
			AddedAt:   now,
		}}, nil

	default:
		return nil, errors.Wrapf(ErrUnsupported, "cannot expand %q", input)
	}
}

// applyOverrides rewrites references whose "title, artist" key appears
// in the guild's override sheet. Override lookup failures are logged
// and ignored; the original references still play.
func (e *Expander) applyOverrides(ctx context.Context, sheetID string, refs []track.Reference) []track.Reference {
	if sheetID == "" || e.overrides == nil {
		return refs
	}

	overrides, err := e.overrides.URLOverrides(ctx, sheetID)
	if err != nil {
		zlog.Warn().Msgf("generator: override lookup failed: sheet=%s err=%v", sheetID, err)
		return refs
	}
	if len(overrides) == 0 {
		return refs
	}

	for i := range refs {
		key := fmt.Sprintf("%s, %s", refs[i].Title, refs[i].Artist)
		if url, ok := overrides[key]; ok {
			zlog.Debug().Msgf("generator: override applied: key=%q url=%s", key, url)
			refs[i].Query = url
			refs[i].Source = track.SourceYouTube
		}
	}
	return refs
}

func spotifyRef(info spotify.TrackInfo, requester track.RequesterType, now time.Time) track.Reference {
	return track.Reference{
		Query:     fmt.Sprintf("%s %s", info.Name, info.ArtistLine()),
		Title:     info.Name,
		Artist:    info.ArtistLine(),
		Source:    track.SourceSpotify,
		Requester: requester,
		AddedAt:   now,
	}
}

func spotifyRefs(infos []spotify.TrackInfo, requester track.RequesterType, now time.Time) []track.Reference {
	refs := make([]track.Reference, 0, len(infos))
	for _, info := range infos {
		refs = append(refs, spotifyRef(info, requester, now))
	}
	return refs
}
