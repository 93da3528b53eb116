// Package transcript renders a closed ticket's message history to a
// self-contained HTML file and stores it under a stable, unguessable name.
package transcript

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Attachment struct {
	Filename string
	URL      string
}

type Message struct {
	AuthorName   string
	AuthorAvatar string
	Content      string
	Timestamp    time.Time
	Attachments  []Attachment
	Bot          bool
}

// Document is everything the renderer needs. It carries no Discord session
// types so it can be built and tested without a gateway.
type Document struct {
	GuildName   string
	ChannelName string
	TicketTopic string
	OpenedBy    string
	ClosedBy    string
	ClosedAt    time.Time
	Messages    []Message
}

var page = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05 UTC") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Transcript — {{.ChannelName}}</title>
<style>
body { background: #313338; color: #dbdee1; font-family: "gg sans", "Segoe UI", sans-serif; margin: 0; }
.header { background: #1e1f22; padding: 16px 24px; }
.header h1 { margin: 0 0 4px; font-size: 18px; color: #f2f3f5; }
.header .meta { font-size: 13px; color: #949ba4; }
.messages { padding: 16px 24px; }
.msg { display: flex; margin-bottom: 16px; }
.msg img.avatar { width: 40px; height: 40px; border-radius: 50%; margin-right: 16px; }
.msg .author { font-weight: 600; color: #f2f3f5; }
.msg .author .bot { background: #5865f2; color: #fff; font-size: 10px; border-radius: 3px; padding: 1px 4px; margin-left: 4px; vertical-align: middle; }
.msg .time { font-size: 11px; color: #949ba4; margin-left: 8px; }
.msg .content { white-space: pre-wrap; word-break: break-word; }
.msg .attachment a { color: #00a8fc; font-size: 13px; }
.empty { color: #949ba4; font-style: italic; }
</style>
</head>
<body>
<div class="header">
<h1>#{{.ChannelName}} — {{.GuildName}}</h1>
<div class="meta">Topic: {{.TicketTopic}} · Opened by {{.OpenedBy}} · Closed by {{.ClosedBy}} at {{fmtTime .ClosedAt}} · {{len .Messages}} message(s)</div>
</div>
<div class="messages">
{{if not .Messages}}<div class="empty">No messages were sent in this ticket.</div>{{end}}
{{range .Messages}}<div class="msg">
<img class="avatar" src="{{.AuthorAvatar}}" alt="">
<div>
<div><span class="author">{{.AuthorName}}{{if .Bot}}<span class="bot">BOT</span>{{end}}</span><span class="time">{{fmtTime .Timestamp}}</span></div>
<div class="content">{{.Content}}</div>
{{range .Attachments}}<div class="attachment"><a href="{{.URL}}">📎 {{.Filename}}</a></div>
{{end}}</div>
</div>
{{end}}</div>
</body>
</html>
`))

// Render writes the document as HTML. All user content goes through
// html/template's contextual escaping.
func (d *Document) Render() (string, error) {
	var sb strings.Builder
	if err := page.Execute(&sb, d); err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return sb.String(), nil
}

// Store saves rendered transcripts under Dir and addresses them as
// BaseURL + filename. BaseURL belongs to the external viewer; this process
// never serves the files itself.
type Store struct {
	Dir     string
	BaseURL string
}

// Save renders and persists the document. Returns the generated filename and
// the public URL (empty when no BaseURL is configured).
func (s *Store) Save(d *Document) (filename, url string, err error) {
	html, err := d.Render()
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", "", fmt.Errorf("transcript dir: %w", err)
	}

	filename = uuid.NewString() + ".html"
	if err := os.WriteFile(filepath.Join(s.Dir, filename), []byte(html), 0644); err != nil {
		return "", "", fmt.Errorf("write transcript: %w", err)
	}

	if s.BaseURL != "" {
		url = strings.TrimSuffix(s.BaseURL, "/") + "/" + filename
	}
	return filename, url, nil
}
