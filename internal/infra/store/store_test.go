package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetOrCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg, err := s.GetOrCreate(ctx, "guild1")
	assert.NoError(t, err)
	assert.Equal(t, "guild1", cfg.ServerID)
	assert.Empty(t, cfg.SheetsID)
	assert.False(t, cfg.AutoGenerate)

	// Idempotent.
	again, err := s.GetOrCreate(ctx, "guild1")
	assert.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestGetOrCreateRequiresGuildID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetOrCreate(context.Background(), "")
	assert.Error(t, err)
}

func TestSetters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.SetSheetsID(ctx, "guild1", "sheet123"))
	assert.NoError(t, s.SetOverrideID(ctx, "guild1", "override456"))
	assert.NoError(t, s.SetSkoipyAPIKey(ctx, "guild1", "key789"))
	assert.NoError(t, s.SetAutoGenerate(ctx, "guild1", true))

	cfg, err := s.GetOrCreate(ctx, "guild1")
	assert.NoError(t, err)
	assert.Equal(t, "sheet123", cfg.SheetsID)
	assert.Equal(t, "override456", cfg.OverrideID)
	assert.Equal(t, "key789", cfg.SkoipyAPIKey)
	assert.True(t, cfg.AutoGenerate)

	// Guilds are independent.
	other, err := s.GetOrCreate(ctx, "guild2")
	assert.NoError(t, err)
	assert.Empty(t, other.SheetsID)
}

func TestSetterCreatesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.SetSheetsID(ctx, "fresh", "sheetX"))
	cfg, err := s.GetOrCreate(ctx, "fresh")
	assert.NoError(t, err)
	assert.Equal(t, "sheetX", cfg.SheetsID)
}
