package skoipy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratePlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/generators/42/generate", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "key123", req["api_key"])
		assert.Equal(t, float64(42), req["generator_id"])

		fmt.Fprint(w, `{"playlist_uri":"spotify:playlist:abc123"}`)
	}))
	defer server.Close()

	client := New()
	client.baseURL = server.URL

	uri, err := client.GeneratePlaylist(context.Background(), "key123", 42)
	assert.NoError(t, err)
	assert.Equal(t, "spotify:playlist:abc123", uri)
}

func TestGeneratePlaylistErrors(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		generatorID int
		status      int
		body        string
	}{
		{
			name:        "missing api key",
			apiKey:      "",
			generatorID: 1,
		},
		{
			name:        "invalid generator id",
			apiKey:      "key",
			generatorID: 0,
		},
		{
			name:        "api error response",
			apiKey:      "key",
			generatorID: 1,
			status:      http.StatusForbidden,
			body:        `{"error":"bad key"}`,
		},
		{
			name:        "empty playlist",
			apiKey:      "key",
			generatorID: 1,
			status:      http.StatusOK,
			body:        `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := New()
			client.baseURL = server.URL

			_, err := client.GeneratePlaylist(context.Background(), tt.apiKey, tt.generatorID)
			assert.Error(t, err)
		})
	}
}
