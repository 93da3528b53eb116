package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmptyDocument(t *testing.T) {
	doc := &Document{
		GuildName:   "Test Guild",
		ChannelName: "ticket-0001",
		TicketTopic: "Support",
		OpenedBy:    "alice",
		ClosedBy:    "bob",
		ClosedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	html, err := doc.Render()
	require.NoError(t, err)
	assert.Contains(t, html, "ticket-0001")
	assert.Contains(t, html, "No messages were sent in this ticket.")
	assert.Contains(t, html, "0 message(s)")
}

func TestRenderEscapesUserContent(t *testing.T) {
	doc := &Document{
		ChannelName: "ticket-0002",
		ClosedAt:    time.Now(),
		Messages: []Message{
			{
				AuthorName: "mallory",
				Content:    `<script>alert("x")</script>`,
				Timestamp:  time.Now(),
			},
		},
	}

	html, err := doc.Render()
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert")
	assert.Contains(t, html, "mallory")
}

func TestStoreSave(t *testing.T) {
	dir := t.TempDir()
	store := &Store{Dir: dir, BaseURL: "https://transcripts.example.com/"}

	doc := &Document{ChannelName: "ticket-0003", ClosedAt: time.Now()}
	filename, url, err := store.Save(doc)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(filename, ".html"))
	assert.Equal(t, "https://transcripts.example.com/"+filename, url)

	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ticket-0003")
}

func TestStoreSaveNoBaseURL(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	_, url, err := store.Save(&Document{ChannelName: "t", ClosedAt: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, url)
}
