package youtube

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/raitonoberu/ytsearch"
	"github.com/raitonoberu/ytmusic"
	zlog "github.com/rs/zerolog/log"
)

// Search finds video IDs for free-text queries. YouTube Music results
// are preferred because they map song metadata to the canonical audio
// upload; plain video search is the fallback.
type Search struct{}

// NewSearch creates a new search client.
func NewSearch() *Search {
	return &Search{}
}

// Find returns the best matching video ID for the query. When
// officialAudio is set the fallback search is biased toward audio
// uploads rather than music videos.
func (s *Search) Find(ctx context.Context, query string, officialAudio bool) (string, error) {
	if query == "" {
		return "", errors.New("search query is required")
	}

	if id := s.findMusic(query); id != "" {
		return id, nil
	}

	q := query
	if officialAudio {
		q += " Official Audio"
	}
	search := ytsearch.VideoSearch(q)
	results, err := search.Next()
	if err != nil {
		return "", errors.Wrap(err, "video search failed")
	}
	if len(results.Videos) == 0 {
		return "", errors.Newf("no videos found for %q", query)
	}

	zlog.Debug().Msgf("youtube: search matched: query=%q video=%s", query, results.Videos[0].ID)
	return results.Videos[0].ID, nil
}

// findMusic queries YouTube Music. Failures fall through to plain
// search, so errors are only logged.
func (s *Search) findMusic(query string) string {
	search := ytmusic.TrackSearch(query)
	result, err := search.Next()
	if err != nil {
		zlog.Debug().Msgf("youtube: music search failed: query=%q err=%v", query, err)
		return ""
	}
	for _, t := range result.Tracks {
		if t.VideoID != "" {
			zlog.Debug().Msgf("youtube: music search matched: query=%q video=%s", query, t.VideoID)
			return t.VideoID
		}
	}
	return ""
}
