package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"discord":{"token":"tok","guild_id":"g1"}}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Discord.Token)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/bot.db", cfg.Database.SQLite.Path)
	assert.Equal(t, 1, cfg.Tickets.MaxOpenPerUser)
	assert.Equal(t, "data/transcripts", cfg.Tickets.TranscriptDir)
	assert.Equal(t, "community-bot.events", cfg.Events.Exchange)
	assert.Equal(t, "lang.yml", cfg.Lang)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadConfigExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"discord": {"token": "tok", "guild_id": "g1"},
		"database": {"driver": "mongodb", "mongodb": {"uri": "mongodb://localhost", "database": "bot"}},
		"tickets": {"max_open_per_user": 3},
		"events": {"enabled": true, "url": "amqp://localhost", "exchange": "custom.events"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb", cfg.Database.Driver)
	assert.Equal(t, "bot", cfg.Database.MongoDB.Database)
	assert.Equal(t, 3, cfg.Tickets.MaxOpenPerUser)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "custom.events", cfg.Events.Exchange)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSaveConfigRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := &Config{}
	cfg.Discord.Token = "tok"
	cfg.Database.Driver = "sqlite"

	require.NoError(t, SaveConfig(cfg, path))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Discord.Token)
}
