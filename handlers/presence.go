package handlers

import (
	"fmt"
	"log"
	"strings"
	"time"

	"community-bot/storage"

	"github.com/bwmarrin/discordgo"
)

func presenceCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "presence",
			Description:              "Rotating bot presence management",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "add", Description: "Add a presence entry to the rotation",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type: discordgo.ApplicationCommandOptionString, Name: "type", Description: "Activity type", Required: true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "Playing", Value: "playing"},
								{Name: "Watching", Value: "watching"},
								{Name: "Listening", Value: "listening"},
								{Name: "Streaming", Value: "streaming"},
							},
						},
						{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Activity text", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Stream URL (streaming only)"},
					},
				},
				{
					Name: "remove", Description: "Remove a presence entry",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "Entry ID (from /presence list)", Required: true},
					},
				},
				{
					Name: "list", Description: "List the presence rotation",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name: "interval", Description: "Set the rotation interval",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "seconds", Description: "Seconds between rotations (min 10)", Required: true},
					},
				},
			},
		},
	}
}

func handlePresenceCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need admin permissions to manage the bot presence.", true)
		return
	}
	sub := i.ApplicationCommandData().Options[0]
	om := subOptMap(sub.Options)

	switch sub.Name {
	case "add":
		entry := storage.PresenceEntry{
			GuildID:      i.GuildID,
			ActivityType: om["type"].StringValue(),
			ActivityText: om["text"].StringValue(),
			ActivityURL:  optStr(om, "url", ""),
		}
		id, err := storage.DB.AddPresence(entry)
		if err != nil {
			respond(s, i, fmt.Sprintf("Failed to add entry: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Presence entry %d added: %s **%s**", id, entry.ActivityType, entry.ActivityText), true)

	case "remove":
		id := om["id"].IntValue()
		if err := storage.DB.DeletePresence(i.GuildID, id); err != nil {
			respond(s, i, fmt.Sprintf("Failed to remove entry: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Presence entry %d removed.", id), true)

	case "list":
		entries, err := storage.DB.ListPresences(i.GuildID)
		if err != nil {
			respond(s, i, fmt.Sprintf("Failed to list entries: %v", err), true)
			return
		}
		if len(entries) == 0 {
			respond(s, i, "No presence entries configured.", true)
			return
		}
		var sb strings.Builder
		sb.WriteString("**Presence Rotation:**\n")
		for _, e := range entries {
			sb.WriteString(fmt.Sprintf("• `%d` %s **%s**\n", e.ID, e.ActivityType, e.ActivityText))
		}
		respond(s, i, sb.String(), true)

	case "interval":
		secs := om["seconds"].IntValue()
		if secs < 10 {
			respond(s, i, "Interval must be at least 10 seconds.", true)
			return
		}
		gc, err := storage.DB.GetGuildConfig(i.GuildID)
		if err != nil {
			respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
			return
		}
		gc.PresenceInterval = int(secs)
		if err := storage.DB.SaveGuildConfig(gc); err != nil {
			respond(s, i, fmt.Sprintf("Failed to save config: %v", err), true)
			return
		}
		respond(s, i, fmt.Sprintf("Rotation interval set to %d seconds.", secs), true)
	}
}

func activityType(kind string) discordgo.ActivityType {
	switch kind {
	case "watching":
		return discordgo.ActivityTypeWatching
	case "listening":
		return discordgo.ActivityTypeListening
	case "streaming":
		return discordgo.ActivityTypeStreaming
	default:
		return discordgo.ActivityTypeGame
	}
}

// StartPresenceRotator cycles the bot activity through the guild's persisted
// entries. Interval and entry changes are picked up on the next rotation.
func StartPresenceRotator(s *discordgo.Session, guildID string, stop <-chan struct{}) {
	go func() {
		pos := 0
		for {
			interval := 60 * time.Second
			if gc, err := storage.DB.GetGuildConfig(guildID); err == nil {
				interval = gc.EffectivePresenceInterval()
			}

			select {
			case <-stop:
				return
			case <-time.After(interval):
			}

			entries, err := storage.DB.ListPresences(guildID)
			if err != nil || len(entries) == 0 {
				continue
			}
			entry := entries[pos%len(entries)]
			pos++

			err = s.UpdateStatusComplex(discordgo.UpdateStatusData{
				Activities: []*discordgo.Activity{{
					Name: entry.ActivityText,
					Type: activityType(entry.ActivityType),
					URL:  entry.ActivityURL,
				}},
				Status: string(discordgo.StatusOnline),
			})
			if err != nil {
				log.Printf("[PRESENCE] Update failed: %v", err)
			}
		}
	}()
}
