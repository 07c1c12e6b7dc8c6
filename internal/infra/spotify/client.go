// Package spotify provides a metadata client for the Spotify Web API.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
}

// TrackInfo is the metadata needed to find a track on YouTube.
type TrackInfo struct {
	ID      string
	Name    string
	Artists []string
}

// ArtistLine joins the artist names for display and search queries.
func (t TrackInfo) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Client is a Spotify Web API client using the client credentials flow.
// Only public catalog data is read, so no user token is involved.
type Client struct {
	client     *spotify.Client
	maxRetries int
	retryDelay time.Duration
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify client ID and secret are required")
	}

	auth := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := auth.Client(ctx)

	return &Client{
		client:     spotify.New(httpClient),
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// GetTrack retrieves a single track's metadata.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*TrackInfo, error) {
	var full *spotify.FullTrack
	err := c.retry(func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(extractID(trackID, "track")))
		if err != nil {
			return err
		}
		full = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	info := convertSimpleTrack(full.SimpleTrack)
	return &info, nil
}

// GetAlbumTracks retrieves all tracks of an album.
func (c *Client) GetAlbumTracks(ctx context.Context, albumID string) ([]TrackInfo, error) {
	var tracks []TrackInfo
	offset := 0
	limit := 50

	for {
		var page *spotify.SimpleTrackPage
		err := c.retry(func() error {
			p, err := c.client.GetAlbumTracks(ctx, spotify.ID(extractID(albumID, "album")),
				spotify.Limit(limit),
				spotify.Offset(offset),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get album tracks")
		}

		for _, t := range page.Tracks {
			tracks = append(tracks, convertSimpleTrack(t))
		}

		if len(page.Tracks) < limit {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// GetPlaylistTracks retrieves all tracks from a playlist.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistID string) ([]TrackInfo, error) {
	var tracks []TrackInfo
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(extractID(playlistID, "playlist")),
				spotify.Limit(limit),
				spotify.Offset(offset),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Only process tracks (exclude episodes)
			if item.Track.Track != nil && item.Track.Track.ID != "" {
				tracks = append(tracks, convertSimpleTrack(item.Track.Track.SimpleTrack))
			}
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// convertSimpleTrack converts a Spotify track to TrackInfo.
func convertSimpleTrack(t spotify.SimpleTrack) TrackInfo {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	return TrackInfo{
		ID:      string(t.ID),
		Name:    t.Name,
		Artists: artists,
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractID extracts the resource ID from a Spotify URL, URI, or bare ID.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)

	// URI format: spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:"+kind+":") {
		return strings.TrimPrefix(input, "spotify:"+kind+":")
	}

	// URL format: https://open.spotify.com/track/TRACK_ID or
	// https://open.spotify.com/intl-XX/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/"+kind+"/") {
		parts := strings.Split(input, "/"+kind+"/")
		if len(parts) >= 2 {
			// Remove query parameters and trailing slashes
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already an ID
	return input
}
