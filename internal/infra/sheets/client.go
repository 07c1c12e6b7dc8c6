// Package sheets reads playlist data from published Google Sheets.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Playlist is one row of the random playlist sheet.
type Playlist struct {
	Name   string
	Artist string
	URI    string
}

// gvizResponse is the payload wrapped inside the gviz JSONP envelope.
type gvizResponse struct {
	Table struct {
		Rows []struct {
			C []*struct {
				V any `json:"v"`
			} `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

// Column layout of the sheets. The playlist sheet carries
// name/artist/uri; the override sheet carries title/artist and the
// replacement URL at column 3.
const (
	colName        = 0
	colArtist      = 1
	colURI         = 2
	colOverrideURL = 3
)

// Client fetches sheet rows over the gviz endpoint, which works for
// any link-shared spreadsheet without credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Override maps change rarely, cache them per sheet.
	overrideCache map[string]map[string]string
	cacheMu       sync.RWMutex
}

// New creates a new sheets client.
func New() *Client {
	return &Client{
		baseURL:       "https://docs.google.com/spreadsheets/d/",
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		overrideCache: make(map[string]map[string]string),
	}
}

// RandomPlaylist returns a random row from the playlist sheet.
func (c *Client) RandomPlaylist(ctx context.Context, sheetID string) (Playlist, error) {
	if sheetID == "" {
		return Playlist{}, errors.New("sheet ID is required")
	}

	rows, err := c.fetchRows(ctx, sheetID)
	if err != nil {
		return Playlist{}, err
	}

	playlists := make([]Playlist, 0, len(rows))
	for _, row := range rows {
		uri := cell(row, colURI)
		if uri == "" {
			continue
		}
		playlists = append(playlists, Playlist{
			Name:   cell(row, colName),
			Artist: cell(row, colArtist),
			URI:    uri,
		})
	}
	if len(playlists) == 0 {
		return Playlist{}, errors.Newf("sheet %s has no playlists", sheetID)
	}

	return playlists[rand.Intn(len(playlists))], nil
}

// URLOverrides returns the override map of the given sheet, keyed
// "title, artist". Results are cached.
func (c *Client) URLOverrides(ctx context.Context, sheetID string) (map[string]string, error) {
	if sheetID == "" {
		return map[string]string{}, nil
	}

	c.cacheMu.RLock()
	if cached, ok := c.overrideCache[sheetID]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	rows, err := c.fetchRows(ctx, sheetID)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]string)
	for _, row := range rows {
		title := cell(row, colName)
		url := cell(row, colOverrideURL)
		if title == "" || url == "" {
			continue
		}
		key := fmt.Sprintf("%s, %s", title, cell(row, colArtist))
		overrides[key] = url
	}

	c.cacheMu.Lock()
	c.overrideCache[sheetID] = overrides
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("sheets: cached overrides: sheet=%s count=%d", sheetID, len(overrides))

	return overrides, nil
}

type row = []*struct {
	V any `json:"v"`
}

func (c *Client) fetchRows(ctx context.Context, sheetID string) ([]row, error) {
	reqURL := c.baseURL + sheetID + "/gviz/tq?tqx=out:json"

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("sheet request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	payload, err := stripEnvelope(string(body))
	if err != nil {
		return nil, err
	}

	var response gvizResponse
	if err := json.Unmarshal([]byte(payload), &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse sheet response")
	}

	rows := make([]row, 0, len(response.Table.Rows))
	for _, r := range response.Table.Rows {
		rows = append(rows, r.C)
	}
	return rows, nil
}

// stripEnvelope unwraps the gviz JSONP envelope:
// /*O_o*/ google.visualization.Query.setResponse({...});
func stripEnvelope(body string) (string, error) {
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return "", errors.New("malformed sheet response")
	}
	return body[start : end+1], nil
}

func cell(r row, i int) string {
	if i >= len(r) || r[i] == nil {
		return ""
	}
	s, ok := r[i].V.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
