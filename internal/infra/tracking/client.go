// Package tracking sends analytics events to Mixpanel.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Config represents tracking configuration.
type Config struct {
	Token   string // Mixpanel project token; empty disables tracking
	Enabled bool
}

// Client delivers events asynchronously. Playback never waits on
// analytics; delivery failures are logged and dropped.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	wg         sync.WaitGroup
}

type event struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
}

// New creates a new tracking client.
func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		baseURL:    "https://api.mixpanel.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Track queues an event for delivery and returns immediately.
func (c *Client) Track(name string, props map[string]any) {
	if !c.cfg.Enabled || c.cfg.Token == "" {
		return
	}

	merged := make(map[string]any, len(props)+3)
	for k, v := range props {
		merged[k] = v
	}
	merged["token"] = c.cfg.Token
	merged["time"] = time.Now().UnixMilli()
	merged["$insert_id"] = uuid.NewString()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.send(event{Event: name, Properties: merged}); err != nil {
			zlog.Warn().Msgf("tracking: event dropped: event=%s err=%v", name, err)
		}
	}()
}

// Close waits for in-flight deliveries.
func (c *Client) Close() {
	c.wg.Wait()
}

func (c *Client) send(e event) error {
	payload, err := json.Marshal([]event{e})
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/track", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.Newf("tracking request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
