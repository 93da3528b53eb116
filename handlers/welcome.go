package handlers

import (
	"fmt"
	"log"
	"strings"
	"time"

	"community-bot/storage"

	"github.com/bwmarrin/discordgo"
)

const defaultWelcomeMessage = "Hello %user%, welcome to **%server%**! Feel free to look around and say hi."

func welcomeCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "welcome",
			Description:              "Welcome message configuration",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "set", Description: "Enable welcome messages in a channel",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel for welcome messages", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "message", Description: "Message template (%user%, %username%, %server%)"},
					},
				},
				{
					Name: "disable", Description: "Turn welcome messages off",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name: "show", Description: "Show the current welcome configuration",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
	}
}

// RegisterWelcome wires the member-join greeter onto the gateway session.
func RegisterWelcome(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		handleMemberJoin(s, m)
	})
}

func handleWelcomeCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need admin permissions to configure welcome messages.", true)
		return
	}

	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "set":
		om := subOptMap(sub.Options)
		gc.WelcomeChannelID = om["channel"].ChannelValue(s).ID
		if o, ok := om["message"]; ok {
			gc.WelcomeMessage = o.StringValue()
		}
		if err := storage.DB.SaveGuildConfig(gc); err != nil {
			respond(s, i, fmt.Sprintf("Failed to save config: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Welcome messages enabled in <#%s>.", gc.WelcomeChannelID), true)

	case "disable":
		gc.WelcomeChannelID = ""
		if err := storage.DB.SaveGuildConfig(gc); err != nil {
			respond(s, i, fmt.Sprintf("Failed to save config: %v", err), true)
			return
		}
		respond(s, i, "Welcome messages disabled.", true)

	case "show":
		if gc.WelcomeChannelID == "" {
			respond(s, i, "Welcome messages are disabled. Enable them with `/welcome set`.", true)
			return
		}
		msg := gc.WelcomeMessage
		if msg == "" {
			msg = defaultWelcomeMessage
		}
		respond(s, i, fmt.Sprintf("Welcome channel: <#%s>\nTemplate: %s", gc.WelcomeChannelID, msg), true)
	}
}

func handleMemberJoin(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	gc, err := storage.DB.GetGuildConfig(m.GuildID)
	if err != nil || gc.WelcomeChannelID == "" {
		return
	}

	guildName := m.GuildID
	memberCount := 0
	if g, err := s.State.Guild(m.GuildID); err == nil {
		guildName = g.Name
		memberCount = g.MemberCount
	}

	embed := &discordgo.MessageEmbed{
		Description: buildWelcomeMessage(gc.WelcomeMessage, m.User.Mention(), m.User.Username, guildName),
		Color:       storage.DefaultEmbedColor,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: m.User.AvatarURL("256")},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	embed.Author = &discordgo.MessageEmbedAuthor{
		Name:    fmt.Sprintf("Welcome to %s!", guildName),
		IconURL: m.User.AvatarURL("64"),
	}
	if memberCount > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Member #%d", memberCount)}
	}

	_, err = s.ChannelMessageSendComplex(gc.WelcomeChannelID, &discordgo.MessageSend{
		Content: m.User.Mention(),
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		log.Printf("[WELCOME] Failed to greet %s: %v", m.User.ID, err)
	}
}

// buildWelcomeMessage fills the template placeholders. An empty template uses
// the default greeting.
func buildWelcomeMessage(template, mention, username, guildName string) string {
	if template == "" {
		template = defaultWelcomeMessage
	}
	msg := strings.ReplaceAll(template, "%user%", mention)
	msg = strings.ReplaceAll(msg, "%username%", username)
	msg = strings.ReplaceAll(msg, "%server%", guildName)
	return msg
}
