// Package store persists per-guild configuration in SQLite.
package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	zlog "github.com/rs/zerolog/log"
)

// ServerConfig is one guild's settings.
type ServerConfig struct {
	ServerID     string
	SheetsID     string // Random playlist sheet
	OverrideID   string // URL override sheet
	SkoipyAPIKey string
	AutoGenerate bool
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS server_config (
	server_id      TEXT PRIMARY KEY,
	sheets_id      TEXT NOT NULL DEFAULT '',
	override_id    TEXT NOT NULL DEFAULT '',
	skoipy_api_key TEXT NOT NULL DEFAULT '',
	auto_generate  INTEGER NOT NULL DEFAULT 0
);`

// Open opens (and creates if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	zlog.Debug().Msgf("store: opened database: path=%s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrCreate returns the guild's config, inserting an empty row when
// none exists.
func (s *Store) GetOrCreate(ctx context.Context, guildID string) (ServerConfig, error) {
	if guildID == "" {
		return ServerConfig{}, errors.New("guild ID is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO server_config (server_id) VALUES (?)`, guildID)
	if err != nil {
		return ServerConfig{}, errors.Wrap(err, "failed to insert config")
	}

	var cfg ServerConfig
	var autoGenerate int
	err = s.db.QueryRowContext(ctx,
		`SELECT server_id, sheets_id, override_id, skoipy_api_key, auto_generate
		 FROM server_config WHERE server_id = ?`, guildID).
		Scan(&cfg.ServerID, &cfg.SheetsID, &cfg.OverrideID, &cfg.SkoipyAPIKey, &autoGenerate)
	if err != nil {
		return ServerConfig{}, errors.Wrap(err, "failed to read config")
	}
	cfg.AutoGenerate = autoGenerate != 0

	return cfg, nil
}

// SetSheetsID stores the random playlist sheet for a guild.
func (s *Store) SetSheetsID(ctx context.Context, guildID, sheetsID string) error {
	return s.update(ctx, guildID, "sheets_id", sheetsID)
}

// SetOverrideID stores the URL override sheet for a guild.
func (s *Store) SetOverrideID(ctx context.Context, guildID, overrideID string) error {
	return s.update(ctx, guildID, "override_id", overrideID)
}

// SetSkoipyAPIKey stores the guild's generator service key.
func (s *Store) SetSkoipyAPIKey(ctx context.Context, guildID, apiKey string) error {
	return s.update(ctx, guildID, "skoipy_api_key", apiKey)
}

// SetAutoGenerate stores the guild's auto-generate preference.
func (s *Store) SetAutoGenerate(ctx context.Context, guildID string, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return s.update(ctx, guildID, "auto_generate", v)
}

func (s *Store) update(ctx context.Context, guildID, column, value string) error {
	if _, err := s.GetOrCreate(ctx, guildID); err != nil {
		return err
	}

	// column comes from a fixed set of callers, never user input.
	_, err := s.db.ExecContext(ctx,
		`UPDATE server_config SET `+column+` = ? WHERE server_id = ?`, value, guildID)
	if err != nil {
		return errors.Wrapf(err, "failed to update %s", column)
	}
	return nil
}
