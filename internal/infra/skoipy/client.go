// Package skoipy calls the Skoipy playlist generator service.
package skoipy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client is a Skoipy API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// generateRequest is the request body for playlist generation.
type generateRequest struct {
	APIKey      string `json:"api_key"`
	GeneratorID int    `json:"generator_id"`
}

// generateResponse is the response body for playlist generation.
type generateResponse struct {
	PlaylistURI string `json:"playlist_uri"`
	Error       string `json:"error,omitempty"`
}

// New creates a new Skoipy client.
func New() *Client {
	return &Client{
		baseURL:    "https://www.skoipy.com/api",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GeneratePlaylist asks the service to build a playlist from the given
// generator and returns its Spotify URI.
func (c *Client) GeneratePlaylist(ctx context.Context, apiKey string, generatorID int) (string, error) {
	if apiKey == "" {
		return "", errors.New("skoipy API key is required")
	}
	if generatorID <= 0 {
		return "", errors.Newf("invalid generator ID: %d", generatorID)
	}

	payload, err := json.Marshal(generateRequest{
		APIKey:      apiKey,
		GeneratorID: generatorID,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode request")
	}

	reqURL := fmt.Sprintf("%s/generators/%d/generate", c.baseURL, generatorID)
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	var response generateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrap(err, "failed to parse response")
	}

	if resp.StatusCode != http.StatusOK || response.Error != "" {
		return "", errors.Newf("skoipy API error (status %d): %s", resp.StatusCode, response.Error)
	}
	if response.PlaylistURI == "" {
		return "", errors.New("skoipy API returned no playlist")
	}

	zlog.Info().Msgf("skoipy: generated playlist: generator=%d uri=%s", generatorID, response.PlaylistURI)
	return response.PlaylistURI, nil
}
