package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{
			name:  "spotify track URL",
			input: "https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh",
			want:  KindSpotifyTrack,
		},
		{
			name:  "spotify track URL with query",
			input: "https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh?si=xyz",
			want:  KindSpotifyTrack,
		},
		{
			name:  "spotify intl track URL",
			input: "https://open.spotify.com/intl-ja/track/4iV5W9uYEdYUVa79Axb7Rh",
			want:  KindSpotifyTrack,
		},
		{
			name:  "spotify track URI",
			input: "spotify:track:4iV5W9uYEdYUVa79Axb7Rh",
			want:  KindSpotifyTrack,
		},
		{
			name:  "spotify album URL",
			input: "https://open.spotify.com/album/6QaVfG1pHYl1z15ZxkvVDW",
			want:  KindSpotifyAlbum,
		},
		{
			name:  "spotify playlist URI",
			input: "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			want:  KindSpotifyPlaylist,
		},
		{
			name:  "youtube video URL",
			input: "https://www.youtube.com/watch?v=FTQbiNvZqaY",
			want:  KindYouTubeVideo,
		},
		{
			name:  "youtube short URL",
			input: "https://youtu.be/FTQbiNvZqaY",
			want:  KindYouTubeVideo,
		},
		{
			name:  "youtube playlist URL",
			input: "https://www.youtube.com/playlist?list=PLabc_123",
			want:  KindYouTubePlaylist,
		},
		{
			name:  "plain search text",
			input: "africa toto",
			want:  KindSearch,
		},
		{
			name:  "unknown URL",
			input: "https://soundcloud.com/some/track",
			want:  KindUnsupported,
		},
		{
			name:  "unknown spotify URI kind",
			input: "spotify:artist:0LcJLqbBmaGUft1e9Mm8HV",
			want:  KindUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}
