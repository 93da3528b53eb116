package config

import (
	"encoding/json"
	"os"
)

type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	Database DatabaseConfig `json:"database"`
	Tickets  TicketsConfig  `json:"tickets"`
	Events   EventsConfig   `json:"events"`
	Lang     string         `json:"lang_file"`
}

type DiscordConfig struct {
	Token   string `json:"token"`
	GuildID string `json:"guild_id"`
}

type DatabaseConfig struct {
	Driver  string        `json:"driver"`
	SQLite  SQLiteConfig  `json:"sqlite"`
	MongoDB MongoDBConfig `json:"mongodb"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

type MongoDBConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type TicketsConfig struct {
	MaxOpenPerUser int    `json:"max_open_per_user"`
	TranscriptDir  string `json:"transcript_dir"`
}

// EventsConfig wires the optional AMQP lifecycle-event publisher. When
// disabled, close/finish events are only logged locally.
type EventsConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/bot.db"
	}
	if cfg.Tickets.MaxOpenPerUser <= 0 {
		cfg.Tickets.MaxOpenPerUser = 1
	}
	if cfg.Tickets.TranscriptDir == "" {
		cfg.Tickets.TranscriptDir = "data/transcripts"
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "community-bot.events"
	}
	if cfg.Lang == "" {
		cfg.Lang = "lang.yml"
	}
	return &cfg, nil
}

func SaveConfig(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
