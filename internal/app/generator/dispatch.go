// Package generator expands URLs and auto-queue sources into track
// references.
package generator

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnsupported is returned for URLs from integrations the bot does
// not handle.
var ErrUnsupported = errors.New("unsupported integration")

// Kind classifies an input string.
type Kind int

const (
	KindSearch Kind = iota // Free-text search query
	KindSpotifyTrack
	KindSpotifyAlbum
	KindSpotifyPlaylist
	KindYouTubeVideo
	KindYouTubePlaylist
	KindUnsupported // Some other URL
)

var (
	spotifyTrackRe    = regexp.MustCompile(`^(https://open\.spotify\.com/(intl-[a-zA-Z-]+/)?track/|spotify:track:)([a-zA-Z0-9]+)`)
	spotifyAlbumRe    = regexp.MustCompile(`^(https://open\.spotify\.com/(intl-[a-zA-Z-]+/)?album/|spotify:album:)([a-zA-Z0-9]+)`)
	spotifyPlaylistRe = regexp.MustCompile(`^(https://open\.spotify\.com/(intl-[a-zA-Z-]+/)?playlist/|spotify:playlist:)([a-zA-Z0-9]+)`)
	youtubeVideoRe    = regexp.MustCompile(`^https://(www\.)?(youtube\.com/watch\?.*v=|youtu\.be/)([a-zA-Z0-9_-]+)`)
	youtubePlaylistRe = regexp.MustCompile(`^https://(www\.)?youtube\.com/playlist\?.*list=([a-zA-Z0-9_-]+)`)
)

// Classify determines what an input string refers to. Anything that
// looks like a URL but matches no known integration is unsupported;
// plain text is a search query.
func Classify(input string) Kind {
	input = strings.TrimSpace(input)

	switch {
	case spotifyTrackRe.MatchString(input):
		return KindSpotifyTrack
	case spotifyAlbumRe.MatchString(input):
		return KindSpotifyAlbum
	case spotifyPlaylistRe.MatchString(input):
		return KindSpotifyPlaylist
	case youtubePlaylistRe.MatchString(input):
		return KindYouTubePlaylist
	case youtubeVideoRe.MatchString(input):
		return KindYouTubeVideo
	case strings.Contains(input, "://") || strings.HasPrefix(input, "spotify:"):
		return KindUnsupported
	default:
		return KindSearch
	}
}
