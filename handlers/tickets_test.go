package handlers

import (
	"testing"
	"time"

	"community-bot/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerDB(t *testing.T) *storage.SQLiteDB {
	t.Helper()
	db := &storage.SQLiteDB{Path: ":memory:"}
	require.NoError(t, db.Init())
	prev := storage.DB
	storage.DB = db
	t.Cleanup(func() {
		storage.DB = prev
		_ = db.Close()
	})
	return db
}

func TestCancelledCloseKeepsTicket(t *testing.T) {
	newHandlerDB(t)
	require.NoError(t, storage.DB.CreateTicket(storage.Ticket{ChannelID: "ch1", GuildID: "g1", UserID: "u1", OpenedAt: "now"}))

	ctx, ok := beginClose("ch1")
	require.True(t, ok)

	_, again := beginClose("ch1")
	assert.False(t, again, "only one countdown per channel")

	require.True(t, cancelClose("ch1"))
	assert.False(t, awaitCloseCountdown(ctx, 50*time.Millisecond, 10*time.Millisecond, nil),
		"a cancelled countdown must not proceed to teardown")

	ticket, err := storage.DB.GetTicket("ch1")
	require.NoError(t, err)
	require.NotNil(t, ticket, "cancel leaves the record intact")

	_, ok = beginClose("ch1")
	assert.True(t, ok, "cancel frees the channel for a new countdown")
	require.True(t, cancelClose("ch1"))
}

func TestCloseCountdownElapses(t *testing.T) {
	ctx, ok := beginClose("ch2")
	require.True(t, ok)

	ticks := 0
	proceed := awaitCloseCountdown(ctx, 40*time.Millisecond, 10*time.Millisecond, func(time.Duration) { ticks++ })
	assert.True(t, proceed)
	assert.Equal(t, 3, ticks, "no edit fires once the countdown hits zero")

	endClose("ch2")
	assert.False(t, cancelClose("ch2"), "entry is gone after the countdown ran out")
}

func TestOpenTicketAllowed(t *testing.T) {
	newHandlerDB(t)

	allowed, open, err := openTicketAllowed("g1", "u1", 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, open)

	require.NoError(t, storage.DB.CreateTicket(storage.Ticket{ChannelID: "ch1", GuildID: "g1", UserID: "u1", OpenedAt: "now"}))

	allowed, open, err = openTicketAllowed("g1", "u1", 1)
	require.NoError(t, err)
	assert.False(t, allowed, "limit reached")
	assert.Equal(t, 1, open)
}

func TestOpenTicketAllowedFailsClosed(t *testing.T) {
	db := newHandlerDB(t)
	require.NoError(t, db.Close())

	allowed, _, err := openTicketAllowed("g1", "u1", 1)
	assert.Error(t, err, "a count failure must surface instead of skipping the limit")
	assert.False(t, allowed)
}

func TestMarkPanelClaimed(t *testing.T) {
	embeds := []*discordgo.MessageEmbed{{Title: "Ticket #0001 — Support"}}
	components := []discordgo.MessageComponent{
		&discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				&discordgo.Button{CustomID: "ticket_claim", Label: "Claim"},
				&discordgo.Button{CustomID: "ticket_close", Label: "Close"},
			},
		},
	}

	gotEmbeds, gotComps := markPanelClaimed(embeds, components, "staff1")

	row := gotComps[0].(*discordgo.ActionsRow)
	claim := row.Components[0].(*discordgo.Button)
	other := row.Components[1].(*discordgo.Button)
	assert.True(t, claim.Disabled, "claim control goes dark")
	assert.False(t, other.Disabled, "other controls stay live")

	require.Len(t, gotEmbeds[0].Fields, 1)
	assert.Equal(t, "Claimed By", gotEmbeds[0].Fields[0].Name)
	assert.Contains(t, gotEmbeds[0].Fields[0].Value, "staff1")
}
