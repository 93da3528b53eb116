package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	Path string
	db   *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS config (
	guild_id                TEXT PRIMARY KEY,
	ticket_panel_channel_id TEXT NOT NULL DEFAULT '',
	ticket_category_id      TEXT NOT NULL DEFAULT '',
	ticket_logs_channel_id  TEXT NOT NULL DEFAULT '',
	ticket_support_role_id  TEXT NOT NULL DEFAULT '',
	ticket_count            INTEGER NOT NULL DEFAULT 0,
	ticket_title            TEXT NOT NULL DEFAULT '',
	ticket_desc             TEXT NOT NULL DEFAULT '',
	ticket_color            INTEGER NOT NULL DEFAULT 0,
	ticket_viewer_url       TEXT NOT NULL DEFAULT '',
	tk_emoji_claim          TEXT NOT NULL DEFAULT '',
	tk_emoji_admin          TEXT NOT NULL DEFAULT '',
	tk_emoji_close          TEXT NOT NULL DEFAULT '',
	tk_emoji_cancel         TEXT NOT NULL DEFAULT '',
	tk_emoji_voice          TEXT NOT NULL DEFAULT '',
	rating_channel_id       TEXT NOT NULL DEFAULT '',
	giveaway_color          INTEGER NOT NULL DEFAULT 0,
	giveaway_emoji          TEXT NOT NULL DEFAULT '',
	presence_interval       INTEGER NOT NULL DEFAULT 0,
	punish_channel_id       TEXT NOT NULL DEFAULT '',
	welcome_channel_id      TEXT NOT NULL DEFAULT '',
	welcome_message         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ticket_categories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id    TEXT NOT NULL,
	label       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	emoji       TEXT NOT NULL DEFAULT '',
	location_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cat_guild ON ticket_categories(guild_id);

CREATE TABLE IF NOT EXISTS active_tickets (
	channel_id       TEXT PRIMARY KEY,
	guild_id         TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	category_id      INTEGER NOT NULL DEFAULT 0,
	number           INTEGER NOT NULL DEFAULT 0,
	opened_at        TEXT NOT NULL,
	claimed_by       TEXT NOT NULL DEFAULT '',
	voice_channel_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ticket_guild ON active_tickets(guild_id);

CREATE TABLE IF NOT EXISTS staff_ratings (
	guild_id   TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	staff_id   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	stars      INTEGER NOT NULL,
	rated_at   TEXT NOT NULL,
	PRIMARY KEY (guild_id, channel_id)
);
CREATE INDEX IF NOT EXISTS idx_rating_guild_staff ON staff_ratings(guild_id, staff_id);

CREATE TABLE IF NOT EXISTS giveaways (
	message_id    TEXT PRIMARY KEY,
	channel_id    TEXT NOT NULL,
	guild_id      TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	prize         TEXT NOT NULL,
	winners_count INTEGER NOT NULL,
	end_time      INTEGER NOT NULL,
	host_id       TEXT NOT NULL,
	requirements  TEXT NOT NULL DEFAULT '{}',
	status        TEXT NOT NULL DEFAULT 'OPEN',
	winner_ids    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_gw_status_end ON giveaways(status, end_time);

CREATE TABLE IF NOT EXISTS giveaway_entries (
	giveaway_id TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	PRIMARY KEY (giveaway_id, user_id)
);

CREATE TABLE IF NOT EXISTS presence (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id      TEXT NOT NULL,
	activity_type TEXT NOT NULL,
	activity_text TEXT NOT NULL,
	activity_url  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS embed_templates (
	guild_id TEXT NOT NULL,
	name     TEXT NOT NULL,
	data     TEXT NOT NULL,
	PRIMARY KEY (guild_id, name)
);

CREATE TABLE IF NOT EXISTS punishments (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id  TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	staff_id  TEXT NOT NULL,
	penalty   TEXT NOT NULL,
	reason    TEXT NOT NULL,
	issued_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_punish_user ON punishments(guild_id, user_id);
`

// Columns added after the first release, per table. Applied with ALTER TABLE
// when an existing database predates them.
var addedColumns = map[string][]struct{ name, typ string }{
	"config": {
		{"rating_channel_id", "TEXT NOT NULL DEFAULT ''"},
		{"giveaway_color", "INTEGER NOT NULL DEFAULT 0"},
		{"giveaway_emoji", "TEXT NOT NULL DEFAULT ''"},
		{"presence_interval", "INTEGER NOT NULL DEFAULT 0"},
		{"ticket_viewer_url", "TEXT NOT NULL DEFAULT ''"},
		{"punish_channel_id", "TEXT NOT NULL DEFAULT ''"},
		{"welcome_channel_id", "TEXT NOT NULL DEFAULT ''"},
		{"welcome_message", "TEXT NOT NULL DEFAULT ''"},
	},
	"active_tickets": {
		{"voice_channel_id", "TEXT NOT NULL DEFAULT ''"},
	},
}

func (s *SQLiteDB) Init() error {
	if dir := filepath.Dir(s.Path); dir != "" && dir != "." {
		_ = os.MkdirAll(dir, 0755)
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("sqlite open: %w", err)
	}
	s.db = db

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	for table := range addedColumns {
		if err := s.migrateTable(table); err != nil {
			return fmt.Errorf("sqlite migrate %s: %w", table, err)
		}
	}
	log.Printf("[DB] SQLite initialised at %s", s.Path)
	return nil
}

func (s *SQLiteDB) migrateTable(table string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			continue
		}
		existing[name] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, m := range addedColumns[table] {
		if existing[m.name] {
			continue
		}
		log.Printf("[DB] migrating: adding %s column %s", table, m.name)
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, m.name, m.typ)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDB) EnsureGuild(guildID string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO config (guild_id) VALUES (?)", guildID)
	return err
}

const guildConfigCols = `guild_id, ticket_panel_channel_id, ticket_category_id, ticket_logs_channel_id,
	ticket_support_role_id, ticket_count, ticket_title, ticket_desc, ticket_color, ticket_viewer_url,
	tk_emoji_claim, tk_emoji_admin, tk_emoji_close, tk_emoji_cancel, tk_emoji_voice,
	rating_channel_id, giveaway_color, giveaway_emoji, presence_interval,
	punish_channel_id, welcome_channel_id, welcome_message`

func (s *SQLiteDB) GetGuildConfig(guildID string) (*GuildConfig, error) {
	if err := s.EnsureGuild(guildID); err != nil {
		return nil, err
	}
	row := s.db.QueryRow("SELECT "+guildConfigCols+" FROM config WHERE guild_id = ?", guildID)

	var gc GuildConfig
	err := row.Scan(
		&gc.GuildID, &gc.TicketPanelChannelID, &gc.TicketCategoryID, &gc.TicketLogsChannelID,
		&gc.TicketSupportRoleID, &gc.TicketCount, &gc.TicketTitle, &gc.TicketDesc, &gc.TicketColor, &gc.TicketViewerURL,
		&gc.EmojiClaim, &gc.EmojiAdmin, &gc.EmojiClose, &gc.EmojiCancel, &gc.EmojiVoice,
		&gc.RatingChannelID, &gc.GiveawayColor, &gc.GiveawayEmoji, &gc.PresenceInterval,
		&gc.PunishChannelID, &gc.WelcomeChannelID, &gc.WelcomeMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("config row: %w", err)
	}
	return &gc, nil
}

func (s *SQLiteDB) SaveGuildConfig(gc *GuildConfig) error {
	_, err := s.db.Exec(`
		INSERT INTO config (`+guildConfigCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			ticket_panel_channel_id = excluded.ticket_panel_channel_id,
			ticket_category_id      = excluded.ticket_category_id,
			ticket_logs_channel_id  = excluded.ticket_logs_channel_id,
			ticket_support_role_id  = excluded.ticket_support_role_id,
			ticket_count            = excluded.ticket_count,
			ticket_title            = excluded.ticket_title,
			ticket_desc             = excluded.ticket_desc,
			ticket_color            = excluded.ticket_color,
			ticket_viewer_url       = excluded.ticket_viewer_url,
			tk_emoji_claim          = excluded.tk_emoji_claim,
			tk_emoji_admin          = excluded.tk_emoji_admin,
			tk_emoji_close          = excluded.tk_emoji_close,
			tk_emoji_cancel         = excluded.tk_emoji_cancel,
			tk_emoji_voice          = excluded.tk_emoji_voice,
			rating_channel_id       = excluded.rating_channel_id,
			giveaway_color          = excluded.giveaway_color,
			giveaway_emoji          = excluded.giveaway_emoji,
			presence_interval       = excluded.presence_interval,
			punish_channel_id       = excluded.punish_channel_id,
			welcome_channel_id      = excluded.welcome_channel_id,
			welcome_message         = excluded.welcome_message`,
		gc.GuildID, gc.TicketPanelChannelID, gc.TicketCategoryID, gc.TicketLogsChannelID,
		gc.TicketSupportRoleID, gc.TicketCount, gc.TicketTitle, gc.TicketDesc, gc.TicketColor, gc.TicketViewerURL,
		gc.EmojiClaim, gc.EmojiAdmin, gc.EmojiClose, gc.EmojiCancel, gc.EmojiVoice,
		gc.RatingChannelID, gc.GiveawayColor, gc.GiveawayEmoji, gc.PresenceInterval,
		gc.PunishChannelID, gc.WelcomeChannelID, gc.WelcomeMessage,
	)
	return err
}

func (s *SQLiteDB) NextTicketNumber(guildID string) (int, error) {
	if err := s.EnsureGuild(guildID); err != nil {
		return 0, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE config SET ticket_count = ticket_count + 1 WHERE guild_id = ?", guildID); err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRow("SELECT ticket_count FROM config WHERE guild_id = ?", guildID).Scan(&n); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *SQLiteDB) AddTicketCategory(c TicketCategory) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO ticket_categories (guild_id, label, description, emoji, location_id) VALUES (?, ?, ?, ?, ?)",
		c.GuildID, c.Label, c.Description, c.Emoji, c.LocationID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteDB) UpdateTicketCategory(c TicketCategory) error {
	res, err := s.db.Exec(
		"UPDATE ticket_categories SET label = ?, description = ?, emoji = ?, location_id = ? WHERE id = ? AND guild_id = ?",
		c.Label, c.Description, c.Emoji, c.LocationID, c.ID, c.GuildID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteDB) DeleteTicketCategory(guildID string, id int64) error {
	_, err := s.db.Exec("DELETE FROM ticket_categories WHERE id = ? AND guild_id = ?", id, guildID)
	return err
}

func (s *SQLiteDB) GetTicketCategory(guildID string, id int64) (*TicketCategory, error) {
	row := s.db.QueryRow(
		"SELECT id, guild_id, label, description, emoji, location_id FROM ticket_categories WHERE id = ? AND guild_id = ?",
		id, guildID,
	)
	var c TicketCategory
	if err := row.Scan(&c.ID, &c.GuildID, &c.Label, &c.Description, &c.Emoji, &c.LocationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteDB) ListTicketCategories(guildID string) ([]TicketCategory, error) {
	rows, err := s.db.Query(
		"SELECT id, guild_id, label, description, emoji, location_id FROM ticket_categories WHERE guild_id = ? ORDER BY id",
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []TicketCategory
	for rows.Next() {
		var c TicketCategory
		if err := rows.Scan(&c.ID, &c.GuildID, &c.Label, &c.Description, &c.Emoji, &c.LocationID); err != nil {
			continue
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *SQLiteDB) CreateTicket(t Ticket) error {
	_, err := s.db.Exec(
		"INSERT INTO active_tickets (channel_id, guild_id, user_id, category_id, number, opened_at, claimed_by, voice_channel_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		t.ChannelID, t.GuildID, t.UserID, t.CategoryID, t.Number, t.OpenedAt, t.ClaimedBy, t.VoiceChannelID,
	)
	return err
}

func (s *SQLiteDB) GetTicket(channelID string) (*Ticket, error) {
	row := s.db.QueryRow(
		"SELECT channel_id, guild_id, user_id, category_id, number, opened_at, claimed_by, voice_channel_id FROM active_tickets WHERE channel_id = ?",
		channelID,
	)
	var t Ticket
	if err := row.Scan(&t.ChannelID, &t.GuildID, &t.UserID, &t.CategoryID, &t.Number, &t.OpenedAt, &t.ClaimedBy, &t.VoiceChannelID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ClaimTicket enforces first-claim-wins at the data layer: the UPDATE only
// matches an unclaimed row, so a concurrent second claim affects zero rows.
func (s *SQLiteDB) ClaimTicket(channelID, staffID string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE active_tickets SET claimed_by = ? WHERE channel_id = ? AND claimed_by = ''",
		staffID, channelID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteDB) SetTicketVoiceChannel(channelID, voiceID string) error {
	res, err := s.db.Exec(
		"UPDATE active_tickets SET voice_channel_id = ? WHERE channel_id = ?",
		voiceID, channelID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteDB) DeleteTicket(channelID string) error {
	_, err := s.db.Exec("DELETE FROM active_tickets WHERE channel_id = ?", channelID)
	return err
}

func (s *SQLiteDB) ListOpenTickets(guildID string) ([]Ticket, error) {
	rows, err := s.db.Query(
		"SELECT channel_id, guild_id, user_id, category_id, number, opened_at, claimed_by, voice_channel_id FROM active_tickets WHERE guild_id = ? ORDER BY number",
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ChannelID, &t.GuildID, &t.UserID, &t.CategoryID, &t.Number, &t.OpenedAt, &t.ClaimedBy, &t.VoiceChannelID); err != nil {
			continue
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteDB) CountUserTickets(guildID, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM active_tickets WHERE guild_id = ? AND user_id = ?",
		guildID, userID,
	).Scan(&n)
	return n, err
}

func (s *SQLiteDB) SaveRating(r StaffRating) error {
	_, err := s.db.Exec(`
		INSERT INTO staff_ratings (guild_id, channel_id, staff_id, user_id, stars, rated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, channel_id) DO UPDATE SET
			staff_id = excluded.staff_id,
			user_id  = excluded.user_id,
			stars    = excluded.stars,
			rated_at = excluded.rated_at`,
		r.GuildID, r.ChannelID, r.StaffID, r.UserID, r.Stars, r.RatedAt,
	)
	return err
}

func (s *SQLiteDB) StaffRatingSummaries(guildID string) ([]RatingSummary, error) {
	rows, err := s.db.Query(
		"SELECT staff_id, COUNT(*), AVG(stars) FROM staff_ratings WHERE guild_id = ? GROUP BY staff_id ORDER BY AVG(stars) DESC",
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []RatingSummary
	for rows.Next() {
		var r RatingSummary
		if err := rows.Scan(&r.StaffID, &r.Count, &r.Average); err != nil {
			continue
		}
		sums = append(sums, r)
	}
	return sums, rows.Err()
}

func (s *SQLiteDB) AddPunishment(p Punishment) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO punishments (guild_id, user_id, staff_id, penalty, reason, issued_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.GuildID, p.UserID, p.StaffID, p.Penalty, p.Reason, p.IssuedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteDB) ListPunishments(guildID, userID string, limit int) ([]Punishment, error) {
	rows, err := s.db.Query(
		"SELECT id, guild_id, user_id, staff_id, penalty, reason, issued_at FROM punishments WHERE guild_id = ? AND user_id = ? ORDER BY id DESC LIMIT ?",
		guildID, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Punishment
	for rows.Next() {
		var p Punishment
		if err := rows.Scan(&p.ID, &p.GuildID, &p.UserID, &p.StaffID, &p.Penalty, &p.Reason, &p.IssuedAt); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ClearPunishments(guildID, userID string) error {
	_, err := s.db.Exec("DELETE FROM punishments WHERE guild_id = ? AND user_id = ?", guildID, userID)
	return err
}

func (s *SQLiteDB) CreateGiveaway(g Giveaway) error {
	_, err := s.db.Exec(`
		INSERT INTO giveaways (message_id, channel_id, guild_id, title, description, prize, winners_count, end_time, host_id, requirements, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.MessageID, g.ChannelID, g.GuildID, g.Title, g.Description, g.Prize,
		g.WinnersCount, g.EndTime.Unix(), g.HostID, g.Requirements, GiveawayOpen,
	)
	return err
}

func (s *SQLiteDB) scanGiveaway(row interface{ Scan(...any) error }) (*Giveaway, error) {
	var (
		g       Giveaway
		endUnix int64
		winners string
	)
	err := row.Scan(
		&g.MessageID, &g.ChannelID, &g.GuildID, &g.Title, &g.Description, &g.Prize,
		&g.WinnersCount, &endUnix, &g.HostID, &g.Requirements, &g.Status, &winners,
	)
	if err != nil {
		return nil, err
	}
	g.EndTime = time.Unix(endUnix, 0).UTC()
	if winners != "" {
		g.WinnerIDs = strings.Split(winners, ",")
	}
	return &g, nil
}

const giveawayCols = "message_id, channel_id, guild_id, title, description, prize, winners_count, end_time, host_id, requirements, status, winner_ids"

func (s *SQLiteDB) GetGiveaway(messageID string) (*Giveaway, error) {
	row := s.db.QueryRow("SELECT "+giveawayCols+" FROM giveaways WHERE message_id = ?", messageID)
	g, err := s.scanGiveaway(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (s *SQLiteDB) queryGiveaways(query string, args ...any) ([]Giveaway, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Giveaway
	for rows.Next() {
		g, err := s.scanGiveaway(rows)
		if err != nil {
			continue
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) ListOpenGiveaways(guildID string) ([]Giveaway, error) {
	return s.queryGiveaways(
		"SELECT "+giveawayCols+" FROM giveaways WHERE guild_id = ? AND status = ? ORDER BY end_time",
		guildID, GiveawayOpen,
	)
}

func (s *SQLiteDB) DueGiveaways(now time.Time) ([]Giveaway, error) {
	return s.queryGiveaways(
		"SELECT "+giveawayCols+" FROM giveaways WHERE status = ? AND end_time <= ? ORDER BY end_time",
		GiveawayOpen, now.Unix(),
	)
}

// FinishGiveaway flips status OPEN→FINISHED exactly once. The WHERE clause on
// status makes the transition the serialization point: whichever caller wins
// draws the winners, everyone else gets false.
func (s *SQLiteDB) FinishGiveaway(messageID string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE giveaways SET status = ? WHERE message_id = ? AND status = ?",
		GiveawayFinished, messageID, GiveawayOpen,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteDB) SetGiveawayWinners(messageID string, winnerIDs []string) error {
	_, err := s.db.Exec(
		"UPDATE giveaways SET winner_ids = ? WHERE message_id = ?",
		strings.Join(winnerIDs, ","), messageID,
	)
	return err
}

func (s *SQLiteDB) ToggleEntry(giveawayID, userID string) (bool, error) {
	res, err := s.db.Exec(
		"DELETE FROM giveaway_entries WHERE giveaway_id = ? AND user_id = ?",
		giveawayID, userID,
	)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	_, err = s.db.Exec(
		"INSERT INTO giveaway_entries (giveaway_id, user_id) VALUES (?, ?)",
		giveawayID, userID,
	)
	return err == nil, err
}

func (s *SQLiteDB) CountEntries(giveawayID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM giveaway_entries WHERE giveaway_id = ?", giveawayID).Scan(&n)
	return n, err
}

func (s *SQLiteDB) ListEntrants(giveawayID string) ([]string, error) {
	rows, err := s.db.Query("SELECT user_id FROM giveaway_entries WHERE giveaway_id = ?", giveawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteDB) AddPresence(p PresenceEntry) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO presence (guild_id, activity_type, activity_text, activity_url) VALUES (?, ?, ?, ?)",
		p.GuildID, p.ActivityType, p.ActivityText, p.ActivityURL,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteDB) DeletePresence(guildID string, id int64) error {
	_, err := s.db.Exec("DELETE FROM presence WHERE id = ? AND guild_id = ?", id, guildID)
	return err
}

func (s *SQLiteDB) ListPresences(guildID string) ([]PresenceEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, guild_id, activity_type, activity_text, activity_url FROM presence WHERE guild_id = ? ORDER BY id",
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PresenceEntry
	for rows.Next() {
		var p PresenceEntry
		if err := rows.Scan(&p.ID, &p.GuildID, &p.ActivityType, &p.ActivityText, &p.ActivityURL); err != nil {
			continue
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func (s *SQLiteDB) SaveEmbedTemplate(guildID, name, data string) error {
	_, err := s.db.Exec(`
		INSERT INTO embed_templates (guild_id, name, data) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, name) DO UPDATE SET data = excluded.data`,
		guildID, name, data,
	)
	return err
}

func (s *SQLiteDB) GetEmbedTemplate(guildID, name string) (string, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM embed_templates WHERE guild_id = ? AND name = ?", guildID, name).Scan(&data)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return data, err
}

func (s *SQLiteDB) DeleteEmbedTemplate(guildID, name string) error {
	_, err := s.db.Exec("DELETE FROM embed_templates WHERE guild_id = ? AND name = ?", guildID, name)
	return err
}

func (s *SQLiteDB) ListEmbedTemplates(guildID string) ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM embed_templates WHERE guild_id = ? ORDER BY name", guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			continue
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
