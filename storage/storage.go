package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"community-bot/config"
)

// Cfg is the process configuration, set once at startup before any handler runs.
var Cfg *config.Config

// DB is the active database backend.
var DB Database

const (
	GiveawayOpen     = "OPEN"
	GiveawayFinished = "FINISHED"
)

// GuildConfig is the per-guild override row. Empty strings and zero ints mean
// "not configured"; effective values are resolved through the helpers below.
type GuildConfig struct {
	GuildID string `bson:"guild_id"`

	TicketPanelChannelID string `bson:"ticket_panel_channel_id"`
	TicketCategoryID     string `bson:"ticket_category_id"`
	TicketLogsChannelID  string `bson:"ticket_logs_channel_id"`
	TicketSupportRoleID  string `bson:"ticket_support_role_id"`
	TicketCount          int    `bson:"ticket_count"`
	TicketTitle          string `bson:"ticket_title"`
	TicketDesc           string `bson:"ticket_desc"`
	TicketColor          int    `bson:"ticket_color"`
	TicketViewerURL      string `bson:"ticket_viewer_url"`

	EmojiClaim  string `bson:"tk_emoji_claim"`
	EmojiAdmin  string `bson:"tk_emoji_admin"`
	EmojiClose  string `bson:"tk_emoji_close"`
	EmojiCancel string `bson:"tk_emoji_cancel"`
	EmojiVoice  string `bson:"tk_emoji_voice"`

	RatingChannelID string `bson:"rating_channel_id"`

	GiveawayColor int    `bson:"giveaway_color"`
	GiveawayEmoji string `bson:"giveaway_emoji"`

	PresenceInterval int `bson:"presence_interval"`

	PunishChannelID  string `bson:"punish_channel_id"`
	WelcomeChannelID string `bson:"welcome_channel_id"`
	WelcomeMessage   string `bson:"welcome_message"`
}

const (
	DefaultEmbedColor    = 0x992D22
	DefaultGiveawayColor = 0x3498DB
)

func (g *GuildConfig) EffectiveTicketColor() int {
	if g.TicketColor != 0 {
		return g.TicketColor
	}
	return DefaultEmbedColor
}

func (g *GuildConfig) EffectiveGiveawayColor() int {
	if g.GiveawayColor != 0 {
		return g.GiveawayColor
	}
	return DefaultGiveawayColor
}

func (g *GuildConfig) EffectiveGiveawayEmoji() string {
	if g.GiveawayEmoji != "" {
		return g.GiveawayEmoji
	}
	return "🎉"
}

func (g *GuildConfig) EffectivePresenceInterval() time.Duration {
	if g.PresenceInterval > 0 {
		return time.Duration(g.PresenceInterval) * time.Second
	}
	return 60 * time.Second
}

type TicketCategory struct {
	ID          int64  `bson:"id"`
	GuildID     string `bson:"guild_id"`
	Label       string `bson:"label"`
	Description string `bson:"description"`
	Emoji       string `bson:"emoji"`
	// LocationID optionally overrides the guild-wide Discord category the
	// ticket channel is created under.
	LocationID string `bson:"location_id"`
}

type Ticket struct {
	ChannelID  string `bson:"channel_id"`
	GuildID    string `bson:"guild_id"`
	UserID     string `bson:"user_id"`
	CategoryID int64  `bson:"category_id"`
	Number     int    `bson:"number"`
	OpenedAt   string `bson:"opened_at"`
	ClaimedBy  string `bson:"claimed_by"`
	// VoiceChannelID is the call channel opened for this ticket, empty when
	// none exists. Persisted so the call survives a bot restart and gets
	// cleaned up on close.
	VoiceChannelID string `bson:"voice_channel_id"`
}

type Punishment struct {
	ID       int64  `bson:"id"`
	GuildID  string `bson:"guild_id"`
	UserID   string `bson:"user_id"`
	StaffID  string `bson:"staff_id"`
	Penalty  string `bson:"penalty"`
	Reason   string `bson:"reason"`
	IssuedAt string `bson:"issued_at"`
}

type StaffRating struct {
	GuildID   string `bson:"guild_id"`
	ChannelID string `bson:"channel_id"`
	StaffID   string `bson:"staff_id"`
	UserID    string `bson:"user_id"`
	Stars     int    `bson:"stars"`
	RatedAt   string `bson:"rated_at"`
}

type RatingSummary struct {
	StaffID string  `bson:"staff_id"`
	Count   int     `bson:"count"`
	Average float64 `bson:"average"`
}

// GiveawayRequirements is the serialized entry predicate stored alongside a
// giveaway. Currently only a required role.
type GiveawayRequirements struct {
	RoleID string `json:"role_id,omitempty"`
}

func (r GiveawayRequirements) Encode() string {
	data, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func DecodeRequirements(s string) GiveawayRequirements {
	var r GiveawayRequirements
	if s != "" {
		_ = json.Unmarshal([]byte(s), &r)
	}
	return r
}

type Giveaway struct {
	MessageID    string    `bson:"message_id"`
	ChannelID    string    `bson:"channel_id"`
	GuildID      string    `bson:"guild_id"`
	Title        string    `bson:"title"`
	Description  string    `bson:"description"`
	Prize        string    `bson:"prize"`
	WinnersCount int       `bson:"winners_count"`
	EndTime      time.Time `bson:"end_time"`
	HostID       string    `bson:"host_id"`
	Requirements string    `bson:"requirements"`
	Status       string    `bson:"status"`
	WinnerIDs    []string  `bson:"winner_ids"`
}

type PresenceEntry struct {
	ID           int64  `bson:"id"`
	GuildID      string `bson:"guild_id"`
	ActivityType string `bson:"activity_type"`
	ActivityText string `bson:"activity_text"`
	ActivityURL  string `bson:"activity_url"`
}

type Database interface {
	Init() error
	Close() error

	EnsureGuild(guildID string) error
	GetGuildConfig(guildID string) (*GuildConfig, error)
	SaveGuildConfig(gc *GuildConfig) error
	// NextTicketNumber atomically increments and returns the per-guild
	// display counter.
	NextTicketNumber(guildID string) (int, error)

	AddTicketCategory(c TicketCategory) (int64, error)
	UpdateTicketCategory(c TicketCategory) error
	DeleteTicketCategory(guildID string, id int64) error
	GetTicketCategory(guildID string, id int64) (*TicketCategory, error)
	ListTicketCategories(guildID string) ([]TicketCategory, error)

	CreateTicket(t Ticket) error
	GetTicket(channelID string) (*Ticket, error)
	// ClaimTicket assigns the ticket to staffID only if it is unclaimed.
	// Returns false when someone claimed it first.
	ClaimTicket(channelID, staffID string) (bool, error)
	SetTicketVoiceChannel(channelID, voiceID string) error
	DeleteTicket(channelID string) error
	ListOpenTickets(guildID string) ([]Ticket, error)
	CountUserTickets(guildID, userID string) (int, error)

	// SaveRating upserts the rating for a closed ticket: one row per
	// (guild, channel), last write wins.
	SaveRating(r StaffRating) error
	StaffRatingSummaries(guildID string) ([]RatingSummary, error)

	AddPunishment(p Punishment) (int64, error)
	// ListPunishments returns the newest records first, at most limit of them.
	ListPunishments(guildID, userID string, limit int) ([]Punishment, error)
	ClearPunishments(guildID, userID string) error

	CreateGiveaway(g Giveaway) error
	GetGiveaway(messageID string) (*Giveaway, error)
	ListOpenGiveaways(guildID string) ([]Giveaway, error)
	DueGiveaways(now time.Time) ([]Giveaway, error)
	// FinishGiveaway performs the guarded OPEN→FINISHED transition. Returns
	// false when the giveaway was already finished; callers must not draw
	// winners in that case.
	FinishGiveaway(messageID string) (bool, error)
	SetGiveawayWinners(messageID string, winnerIDs []string) error
	// ToggleEntry inserts the entry if absent and removes it if present.
	// Returns true when the user is entered after the call.
	ToggleEntry(giveawayID, userID string) (bool, error)
	CountEntries(giveawayID string) (int, error)
	ListEntrants(giveawayID string) ([]string, error)

	AddPresence(p PresenceEntry) (int64, error)
	DeletePresence(guildID string, id int64) error
	ListPresences(guildID string) ([]PresenceEntry, error)

	SaveEmbedTemplate(guildID, name, data string) error
	GetEmbedTemplate(guildID, name string) (string, error)
	DeleteEmbedTemplate(guildID, name string) error
	ListEmbedTemplates(guildID string) ([]string, error)
}

func InitDB(cfg *config.DatabaseConfig) error {
	switch cfg.Driver {
	case "sqlite":
		db := &SQLiteDB{Path: cfg.SQLite.Path}
		if err := db.Init(); err != nil {
			return err
		}
		DB = db
		return nil

	case "mongodb":
		db := &MongoDB{URI: cfg.MongoDB.URI, DBName: cfg.MongoDB.Database}
		if err := db.Init(); err != nil {
			return err
		}
		DB = db
		return nil

	default:
		return fmt.Errorf("unsupported database driver: %s (use \"sqlite\" or \"mongodb\")", cfg.Driver)
	}
}
