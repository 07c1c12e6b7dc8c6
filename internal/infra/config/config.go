// Package config loads the bot configuration.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Skoipy   SkoipyConfig   `yaml:"skoipy"`
	Store    StoreConfig    `yaml:"store"`
	Tracking TrackingConfig `yaml:"tracking"`
	Playback PlaybackConfig `yaml:"playback"`
	Sessions SessionsConfig `yaml:"sessions"`
	Audio    AudioConfig    `yaml:"audio"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// SpotifyConfig holds Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
}

// SkoipyConfig holds generator service settings.
type SkoipyConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// StoreConfig holds the SQLite database location.
type StoreConfig struct {
	Path string `yaml:"path" default:"skoipy.db"`
}

// TrackingConfig holds analytics settings.
type TrackingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// PlaybackConfig holds playback limits.
type PlaybackConfig struct {
	MaxTrackDurationSec int `yaml:"max_track_duration_sec" default:"900" validate:"min=1"`
}

// SessionsConfig holds the session reaper settings.
type SessionsConfig struct {
	ReapIntervalSec int `yaml:"reap_interval_sec" default:"60" validate:"min=1"`
	IdleTimeoutSec  int `yaml:"idle_timeout_sec" default:"3600" validate:"min=1"`
}

// AudioConfig carries backend-specific settings, decoded by the audio
// adapter.
type AudioConfig struct {
	Settings map[string]any `yaml:"settings"`
}

// MaxTrackDuration returns the playback cap as a duration.
func (c PlaybackConfig) MaxTrackDuration() time.Duration {
	return time.Duration(c.MaxTrackDurationSec) * time.Second
}

// ReapInterval returns the reaper tick as a duration.
func (c SessionsConfig) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSec) * time.Second
}

// IdleTimeout returns the inactivity cutoff as a duration.
func (c SessionsConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// Load reads, defaults, env-overrides, and validates the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to apply defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// overrideFromEnv lets secrets come from the environment instead of
// the config file.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("MP_TOKEN"); v != "" {
		c.Tracking.Token = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
