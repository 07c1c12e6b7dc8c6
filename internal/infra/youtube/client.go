// Package youtube resolves YouTube videos to stream URLs and finds
// videos by search.
package youtube

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	youtube "github.com/kkdai/youtube/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/domain/track"
)

// opusItag is the Opus 160kbps audio-only format.
const opusItag = 251

// Client wraps the YouTube metadata/stream client.
type Client struct {
	yt youtube.Client
}

// New creates a new YouTube client.
func New() *Client {
	return &Client{}
}

// Video resolves a video URL or ID to a playable track.
func (c *Client) Video(ctx context.Context, urlOrID string) (*track.Track, error) {
	video, err := c.yt.GetVideoContext(ctx, urlOrID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get video")
	}

	formats := video.Formats.WithAudioChannels().Type("audio")
	if len(formats) == 0 {
		return nil, errors.Newf("no audio formats for video %s", video.ID)
	}

	// Prefer the Opus stream, fall back to whatever is first.
	format := &formats[0]
	for i := range formats {
		if formats[i].ItagNo == opusItag {
			format = &formats[i]
			break
		}
	}

	streamURL, err := c.yt.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stream URL")
	}

	zlog.Debug().Msgf("youtube: resolved video: id=%s title=%s itag=%d duration=%v",
		video.ID, video.Title, format.ItagNo, video.Duration)

	return &track.Track{
		ID:        video.ID,
		Title:     video.Title,
		Duration:  video.Duration,
		StreamURL: streamURL,
		PageURL:   WatchURL(video.ID),
	}, nil
}

// PlaylistItem is one entry of a YouTube playlist.
type PlaylistItem struct {
	ID    string
	Title string
}

// Playlist lists the entries of a playlist URL.
func (c *Client) Playlist(ctx context.Context, url string) ([]PlaylistItem, error) {
	playlist, err := c.yt.GetPlaylistContext(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist")
	}

	items := make([]PlaylistItem, 0, len(playlist.Videos))
	for _, v := range playlist.Videos {
		items = append(items, PlaylistItem{ID: v.ID, Title: v.Title})
	}
	return items, nil
}

// WatchURL returns the public URL for a video ID.
func WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}
