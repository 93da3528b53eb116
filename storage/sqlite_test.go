package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db := &SQLiteDB{Path: ":memory:"}
	require.NoError(t, db.Init())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestGuildConfigRoundtrip(t *testing.T) {
	db := newTestDB(t)

	gc, err := db.GetGuildConfig("g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", gc.GuildID)
	assert.Equal(t, DefaultEmbedColor, gc.EffectiveTicketColor())

	gc.TicketPanelChannelID = "c1"
	gc.TicketSupportRoleID = "r1"
	gc.GiveawayColor = 0x112233
	require.NoError(t, db.SaveGuildConfig(gc))

	got, err := db.GetGuildConfig("g1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.TicketPanelChannelID)
	assert.Equal(t, "r1", got.TicketSupportRoleID)
	assert.Equal(t, 0x112233, got.EffectiveGiveawayColor())
}

func TestNextTicketNumberIncrements(t *testing.T) {
	db := newTestDB(t)

	n1, err := db.NextTicketNumber("g1")
	require.NoError(t, err)
	n2, err := db.NextTicketNumber("g1")
	require.NoError(t, err)
	other, err := db.NextTicketNumber("g2")
	require.NoError(t, err)

	assert.Equal(t, 1, n1)
	assert.Equal(t, 2, n2)
	assert.Equal(t, 1, other, "counters are per guild")
}

func TestTicketLifecycle(t *testing.T) {
	db := newTestDB(t)

	catID, err := db.AddTicketCategory(TicketCategory{GuildID: "g1", Label: "Support", Description: "Help"})
	require.NoError(t, err)

	ticket := Ticket{
		ChannelID:  "ch1",
		GuildID:    "g1",
		UserID:     "u1",
		CategoryID: catID,
		Number:     1,
		OpenedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	require.NoError(t, db.CreateTicket(ticket))

	got, err := db.GetTicket("ch1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Empty(t, got.ClaimedBy)

	count, err := db.CountUserTickets("g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	open, err := db.ListOpenTickets("g1")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	require.NoError(t, db.DeleteTicket("ch1"))
	got, err = db.GetTicket("ch1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaimTicketFirstWins(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateTicket(Ticket{ChannelID: "ch1", GuildID: "g1", UserID: "u1", OpenedAt: "now"}))

	ok, err := db.ClaimTicket("ch1", "staff1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ClaimTicket("ch1", "staff2")
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	got, err := db.GetTicket("ch1")
	require.NoError(t, err)
	assert.Equal(t, "staff1", got.ClaimedBy)
}

func TestTicketVoiceChannelPersists(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateTicket(Ticket{ChannelID: "ch1", GuildID: "g1", UserID: "u1", OpenedAt: "now"}))

	require.NoError(t, db.SetTicketVoiceChannel("ch1", "vc1"))

	got, err := db.GetTicket("ch1")
	require.NoError(t, err)
	assert.Equal(t, "vc1", got.VoiceChannelID, "call channel survives a re-read")

	err = db.SetTicketVoiceChannel("missing", "vc2")
	assert.Error(t, err, "setting a call on a non-ticket must fail")
}

func TestPunishmentRecord(t *testing.T) {
	db := newTestDB(t)

	_, err := db.AddPunishment(Punishment{GuildID: "g1", UserID: "u1", StaffID: "s1", Penalty: "warning", Reason: "spam", IssuedAt: "t1"})
	require.NoError(t, err)
	_, err = db.AddPunishment(Punishment{GuildID: "g1", UserID: "u1", StaffID: "s2", Penalty: "temp ban", Reason: "repeat spam", IssuedAt: "t2"})
	require.NoError(t, err)
	_, err = db.AddPunishment(Punishment{GuildID: "g1", UserID: "u2", StaffID: "s1", Penalty: "warning", Reason: "other", IssuedAt: "t3"})
	require.NoError(t, err)

	records, err := db.ListPunishments("g1", "u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "temp ban", records[0].Penalty, "newest first")
	assert.Equal(t, "warning", records[1].Penalty)

	records, err = db.ListPunishments("g1", "u1", 1)
	require.NoError(t, err)
	assert.Len(t, records, 1, "limit caps the record")

	require.NoError(t, db.ClearPunishments("g1", "u1"))
	records, err = db.ListPunishments("g1", "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = db.ListPunishments("g1", "u2", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1, "clearing one member leaves others alone")
}

func TestSaveRatingLastWriteWins(t *testing.T) {
	db := newTestDB(t)

	r := StaffRating{GuildID: "g1", ChannelID: "ch1", StaffID: "s1", UserID: "u1", Stars: 3, RatedAt: "t1"}
	require.NoError(t, db.SaveRating(r))

	r.Stars = 5
	r.RatedAt = "t2"
	require.NoError(t, db.SaveRating(r))

	sums, err := db.StaffRatingSummaries("g1")
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "s1", sums[0].StaffID)
	assert.Equal(t, 1, sums[0].Count, "re-rating replaces, never duplicates")
	assert.InDelta(t, 5.0, sums[0].Average, 0.001)
}

func TestStaffRatingSummariesGroups(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveRating(StaffRating{GuildID: "g1", ChannelID: "c1", StaffID: "s1", UserID: "u1", Stars: 4, RatedAt: "t"}))
	require.NoError(t, db.SaveRating(StaffRating{GuildID: "g1", ChannelID: "c2", StaffID: "s1", UserID: "u2", Stars: 2, RatedAt: "t"}))
	require.NoError(t, db.SaveRating(StaffRating{GuildID: "g1", ChannelID: "c3", StaffID: "s2", UserID: "u3", Stars: 5, RatedAt: "t"}))

	sums, err := db.StaffRatingSummaries("g1")
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "s2", sums[0].StaffID, "sorted by average descending")
	assert.Equal(t, 2, sums[1].Count)
	assert.InDelta(t, 3.0, sums[1].Average, 0.001)
}

func makeGiveaway(id string, end time.Time) Giveaway {
	return Giveaway{
		MessageID:    id,
		ChannelID:    "ch1",
		GuildID:      "g1",
		Prize:        "prize",
		WinnersCount: 1,
		EndTime:      end,
		HostID:       "host",
		Requirements: "{}",
	}
}

func TestToggleEntryPair(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateGiveaway(makeGiveaway("m1", time.Now().Add(time.Hour))))

	joined, err := db.ToggleEntry("m1", "u1")
	require.NoError(t, err)
	assert.True(t, joined)

	count, err := db.CountEntries("m1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	joined, err = db.ToggleEntry("m1", "u1")
	require.NoError(t, err)
	assert.False(t, joined, "second toggle leaves")

	count, err = db.CountEntries("m1")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "toggle pair is a no-op")
}

func TestFinishGiveawayAtMostOnce(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateGiveaway(makeGiveaway("m1", time.Now().Add(-time.Minute))))

	ok, err := db.FinishGiveaway("m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.FinishGiveaway("m1")
	require.NoError(t, err)
	assert.False(t, ok, "second finish must be a no-op")

	g, err := db.GetGiveaway("m1")
	require.NoError(t, err)
	assert.Equal(t, GiveawayFinished, g.Status)
}

func TestDueGiveawaysSelectsOnlyExpiredOpen(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	require.NoError(t, db.CreateGiveaway(makeGiveaway("past", now.Add(-time.Minute))))
	require.NoError(t, db.CreateGiveaway(makeGiveaway("future", now.Add(time.Hour))))
	require.NoError(t, db.CreateGiveaway(makeGiveaway("done", now.Add(-time.Hour))))
	ok, err := db.FinishGiveaway("done")
	require.NoError(t, err)
	require.True(t, ok)

	due, err := db.DueGiveaways(now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "past", due[0].MessageID)
}

func TestGiveawayWinnersPersist(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateGiveaway(makeGiveaway("m1", time.Now())))

	_, err := db.ToggleEntry("m1", "u1")
	require.NoError(t, err)
	_, err = db.ToggleEntry("m1", "u2")
	require.NoError(t, err)

	entrants, err := db.ListEntrants("m1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, entrants)

	require.NoError(t, db.SetGiveawayWinners("m1", []string{"u2"}))
	g, err := db.GetGiveaway("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, g.WinnerIDs)
}

func TestTicketCategoryCRUD(t *testing.T) {
	db := newTestDB(t)

	id, err := db.AddTicketCategory(TicketCategory{GuildID: "g1", Label: "Sales", Description: "Buy things", Emoji: "💰"})
	require.NoError(t, err)

	cat, err := db.GetTicketCategory("g1", id)
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, "Sales", cat.Label)

	cat.Label = "Billing"
	cat.LocationID = "loc1"
	require.NoError(t, db.UpdateTicketCategory(*cat))

	got, err := db.GetTicketCategory("g1", id)
	require.NoError(t, err)
	assert.Equal(t, "Billing", got.Label)
	assert.Equal(t, "loc1", got.LocationID)

	require.NoError(t, db.DeleteTicketCategory("g1", id))
	got, err = db.GetTicketCategory("g1", id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmbedTemplates(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveEmbedTemplate("g1", "rules", `{"title":"Rules"}`))
	require.NoError(t, db.SaveEmbedTemplate("g1", "rules", `{"title":"Rules v2"}`))

	data, err := db.GetEmbedTemplate("g1", "rules")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Rules v2"}`, data)

	names, err := db.ListEmbedTemplates("g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rules"}, names)

	require.NoError(t, db.DeleteEmbedTemplate("g1", "rules"))
	data, err = db.GetEmbedTemplate("g1", "rules")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPresenceEntries(t *testing.T) {
	db := newTestDB(t)

	id, err := db.AddPresence(PresenceEntry{GuildID: "g1", ActivityType: "playing", ActivityText: "with tickets"})
	require.NoError(t, err)

	entries, err := db.ListPresences("g1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "with tickets", entries[0].ActivityText)

	require.NoError(t, db.DeletePresence("g1", id))
	entries, err = db.ListPresences("g1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRequirementsEncodeDecode(t *testing.T) {
	req := GiveawayRequirements{RoleID: "r1"}
	decoded := DecodeRequirements(req.Encode())
	assert.Equal(t, "r1", decoded.RoleID)

	assert.Empty(t, DecodeRequirements("").RoleID)
	assert.Empty(t, DecodeRequirements("{}").RoleID)
}
