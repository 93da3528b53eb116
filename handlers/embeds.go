package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"community-bot/storage"

	"github.com/bwmarrin/discordgo"
)

// embedTemplate is the persisted shape of a saved embed.
type embedTemplate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color,omitempty"`
	Image       string `json:"image,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Footer      string `json:"footer,omitempty"`
}

var embedFieldOptions = []*discordgo.ApplicationCommandOption{
	{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Embed title", Required: true},
	{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Embed description (use \\n for new lines)", Required: true},
	{Type: discordgo.ApplicationCommandOptionString, Name: "color", Description: "Hex colour (e.g. #ff0000)"},
	{Type: discordgo.ApplicationCommandOptionString, Name: "image", Description: "Image URL"},
	{Type: discordgo.ApplicationCommandOptionString, Name: "thumbnail", Description: "Thumbnail URL"},
	{Type: discordgo.ApplicationCommandOptionString, Name: "footer", Description: "Footer text"},
}

func embedCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "embed",
			Description:              "Create, save and post custom embeds",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "send", Description: "Send a one-off embed to a channel",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: append([]*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to send the embed in", Required: true},
					}, embedFieldOptions...),
				},
				{
					Name: "save", Description: "Save an embed as a reusable template",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: append([]*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name", Required: true},
					}, embedFieldOptions...),
				},
				{
					Name: "post", Description: "Post a saved template to a channel",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name", Required: true},
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to post in", Required: true},
					},
				},
				{
					Name: "templates", Description: "List saved templates",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name: "delete", Description: "Delete a saved template",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Template name", Required: true},
					},
				},
			},
		},
	}
}

func handleEmbedCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need admin permissions to use this command.", true)
		return
	}
	sub := i.ApplicationCommandData().Options[0]
	om := subOptMap(sub.Options)

	switch sub.Name {
	case "send":
		tpl, err := templateFromOptions(om)
		if err != nil {
			respond(s, i, err.Error(), true)
			return
		}
		ch := om["channel"].ChannelValue(s)
		if _, err := s.ChannelMessageSendEmbed(ch.ID, tpl.build()); err != nil {
			respond(s, i, fmt.Sprintf("Failed to send embed: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Embed sent to <#%s>!", ch.ID), true)

	case "save":
		tpl, err := templateFromOptions(om)
		if err != nil {
			respond(s, i, err.Error(), true)
			return
		}
		name := om["name"].StringValue()
		data, _ := json.Marshal(tpl)
		if err := storage.DB.SaveEmbedTemplate(i.GuildID, name, string(data)); err != nil {
			respond(s, i, fmt.Sprintf("Failed to save template: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Template `%s` saved.", name), true)

	case "post":
		name := om["name"].StringValue()
		data, err := storage.DB.GetEmbedTemplate(i.GuildID, name)
		if err != nil || data == "" {
			respond(s, i, fmt.Sprintf("Template `%s` not found.", name), true)
			return
		}
		var tpl embedTemplate
		if err := json.Unmarshal([]byte(data), &tpl); err != nil {
			respond(s, i, fmt.Sprintf("Template `%s` is corrupt: %v", name, err), true)
			return
		}
		ch := om["channel"].ChannelValue(s)
		if _, err := s.ChannelMessageSendEmbed(ch.ID, tpl.build()); err != nil {
			respond(s, i, fmt.Sprintf("Failed to post embed: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Template `%s` posted to <#%s>!", name, ch.ID), true)

	case "templates":
		names, err := storage.DB.ListEmbedTemplates(i.GuildID)
		if err != nil {
			respond(s, i, fmt.Sprintf("Failed to list templates: %v", err), true)
			return
		}
		if len(names) == 0 {
			respond(s, i, "No templates saved.", true)
			return
		}
		respond(s, i, "**Saved templates:** `"+strings.Join(names, "`, `")+"`", true)

	case "delete":
		name := om["name"].StringValue()
		if err := storage.DB.DeleteEmbedTemplate(i.GuildID, name); err != nil {
			respond(s, i, fmt.Sprintf("Failed to delete template: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Template `%s` deleted.", name), true)
	}
}

func templateFromOptions(om map[string]*discordgo.ApplicationCommandInteractionDataOption) (*embedTemplate, error) {
	tpl := &embedTemplate{
		Title:       om["title"].StringValue(),
		Description: strings.ReplaceAll(om["description"].StringValue(), "\\n", "\n"),
		Image:       optStr(om, "image", ""),
		Thumbnail:   optStr(om, "thumbnail", ""),
		Footer:      optStr(om, "footer", ""),
	}
	if o, ok := om["color"]; ok {
		color, err := parseHexColor(o.StringValue())
		if err != nil {
			return nil, fmt.Errorf("invalid colour %q, use hex like #ff0000", o.StringValue())
		}
		tpl.Color = color
	}
	return tpl, nil
}

func (t *embedTemplate) build() *discordgo.MessageEmbed {
	color := t.Color
	if color == 0 {
		color = storage.DefaultEmbedColor
	}
	embed := &discordgo.MessageEmbed{
		Title:       t.Title,
		Description: t.Description,
		Color:       color,
	}
	if t.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: t.Image}
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	if t.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: t.Footer}
	}
	return embed
}

// parseHexColor accepts "#rrggbb" or "rrggbb".
func parseHexColor(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, fmt.Errorf("invalid hex colour %q", s)
	}
	var color int
	if _, err := fmt.Sscanf(s, "%06x", &color); err != nil {
		return 0, fmt.Errorf("invalid hex colour %q", s)
	}
	return color, nil
}
