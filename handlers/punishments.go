package handlers

import (
	"fmt"
	"log"
	"strings"
	"time"

	"community-bot/storage"

	"github.com/bwmarrin/discordgo"
)

var staffPerm int64 = discordgo.PermissionManageMessages

const punishmentHistoryLimit = 10

func punishmentCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "punish",
			Description:              "Staff punishment records",
			DefaultMemberPermissions: &staffPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "register", Description: "Record a punishment for a member",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to punish", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "penalty", Description: "The punishment applied (e.g. temporary ban)", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Why it was applied", Required: true},
					},
				},
				{
					Name: "history", Description: "Show a member's punishment record",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to look up", Required: true},
					},
				},
				{
					Name: "clear", Description: "Clear a member's punishment record",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to clear", Required: true},
					},
				},
				{
					Name: "channel", Description: "Set the channel punishment notices are posted in",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Notice channel (unset = DM the member)", Required: true},
					},
				},
			},
		},
	}
}

func handlePunishCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "register":
		handlePunishRegister(s, i, sub.Options)
	case "history":
		handlePunishHistory(s, i, sub.Options)
	case "clear":
		handlePunishClear(s, i, sub.Options)
	case "channel":
		handlePunishChannel(s, i, sub.Options)
	}
}

func handlePunishRegister(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)
	target := om["user"].UserValue(s)
	penalty := om["penalty"].StringValue()
	reason := om["reason"].StringValue()

	p := storage.Punishment{
		GuildID:  i.GuildID,
		UserID:   target.ID,
		StaffID:  i.Member.User.ID,
		Penalty:  penalty,
		Reason:   reason,
		IssuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := storage.DB.AddPunishment(p); err != nil {
		respond(s, i, fmt.Sprintf("Failed to record punishment: %v", err), true)
		return
	}

	gc, _ := storage.DB.GetGuildConfig(i.GuildID)

	embed := &discordgo.MessageEmbed{
		Title: "Punishment Applied",
		Color: 0xED4245,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Member", Value: fmt.Sprintf("<@%s>", target.ID), Inline: true},
			{Name: "Applied By", Value: fmt.Sprintf("<@%s>", i.Member.User.ID), Inline: true},
			{Name: "Punishment", Value: penalty},
			{Name: "Reason", Value: reason},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	// Public notice channel if configured, otherwise DM the member.
	delivered := "in DMs"
	if gc != nil && gc.PunishChannelID != "" {
		_, err := s.ChannelMessageSendComplex(gc.PunishChannelID, &discordgo.MessageSend{
			Content: fmt.Sprintf("<@%s>", target.ID),
			Embeds:  []*discordgo.MessageEmbed{embed},
		})
		if err != nil {
			log.Printf("[PUNISH] Notice to %s failed: %v", gc.PunishChannelID, err)
		}
		delivered = fmt.Sprintf("in <#%s>", gc.PunishChannelID)
	} else {
		dm, err := s.UserChannelCreate(target.ID)
		if err == nil {
			_, err = s.ChannelMessageSendEmbed(dm.ID, embed)
		}
		if err != nil {
			log.Printf("[PUNISH] DM to %s failed: %v", target.ID, err)
			delivered = "(DM failed, member not notified)"
		}
	}

	log.Printf("[PUNISH] %s punished %s in guild %s", i.Member.User.ID, target.ID, i.GuildID)
	respond(s, i, fmt.Sprintf("Punishment recorded for <@%s>, notice posted %s.", target.ID, delivered), true)
}

func handlePunishHistory(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)
	target := om["user"].UserValue(s)

	records, err := storage.DB.ListPunishments(i.GuildID, target.ID, punishmentHistoryLimit)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load record: %v", err), true)
		return
	}
	if len(records) == 0 {
		respond(s, i, fmt.Sprintf("Clean record: no punishments for <@%s>.", target.ID), true)
		return
	}

	var sb strings.Builder
	for _, p := range records {
		date := p.IssuedAt
		if len(date) >= 10 {
			date = date[:10]
		}
		sb.WriteString(fmt.Sprintf("**Punishment:** %s\n**Reason:** %s\n**Applied by:** <@%s> on %s\n\n", p.Penalty, p.Reason, p.StaffID, date))
	}

	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Conduct record — %s", target.Username),
		Description: sb.String(),
		Color:       0xED4245,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: target.AvatarURL("256")},
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Showing up to %d most recent", punishmentHistoryLimit)},
	}, true)
}

func handlePunishClear(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if !isAdmin(i) {
		respond(s, i, "Only admins can clear a punishment record.", true)
		return
	}

	om := subOptMap(opts)
	target := om["user"].UserValue(s)

	if err := storage.DB.ClearPunishments(i.GuildID, target.ID); err != nil {
		respond(s, i, fmt.Sprintf("Failed to clear record: %v", err), true)
		return
	}
	log.Printf("[PUNISH] Record of %s cleared by %s", target.ID, i.Member.User.ID)
	respond(s, i, fmt.Sprintf("Punishment record cleared for <@%s>.", target.ID), true)
}

func handlePunishChannel(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if !isAdmin(i) {
		respond(s, i, "Only admins can change the notice channel.", true)
		return
	}

	om := subOptMap(opts)
	ch := om["channel"].ChannelValue(s)

	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}
	gc.PunishChannelID = ch.ID
	if err := storage.DB.SaveGuildConfig(gc); err != nil {
		respond(s, i, fmt.Sprintf("Failed to save config: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Punishment notices will be posted in <#%s>.", ch.ID), true)
}
