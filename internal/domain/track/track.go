// Package track provides the track domain entities.
package track

import (
	"strings"
	"time"
)

// Source identifies where a queued reference came from.
type Source string

const (
	SourceSpotify Source = "SPOTIFY" // Spotify track/album/playlist URL or URI
	SourceYouTube Source = "YOUTUBE" // Direct YouTube video URL
	SourceSearch  Source = "SEARCH"  // Free-text search query
)

// RequesterType represents the type of requester.
type RequesterType string

const (
	RequesterTypeUser   RequesterType = "USER"
	RequesterTypeRandom RequesterType = "RANDOM"
	RequesterTypeAuto   RequesterType = "AUTO"
)

// Reference is an unresolved queue entry. Resolution to a playable Track
// happens lazily, when the entry reaches the head of the queue.
type Reference struct {
	Query     string        // URL, URI, or search text
	Title     string        // Display title, if known before resolution
	Artist    string        // Display artist, if known before resolution
	Source    Source        // Where the reference came from
	Requester RequesterType // Who enqueued it
	AddedAt   time.Time     // Time when added to queue
}

// Track represents a fully resolved, playable track.
type Track struct {
	ID        string        // YouTube video ID
	Title     string        // Video title
	Artists   []string      // Artist names (from Spotify metadata when available)
	Duration  time.Duration // Playback length
	StreamURL string        // Direct audio stream URL
	PageURL   string        // Public video URL
}

// ArtistLine joins the artist names for display.
func (t *Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}
