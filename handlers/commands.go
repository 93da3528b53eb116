package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	"community-bot/config"
	"community-bot/events"

	"github.com/bwmarrin/discordgo"
)

var adminPerm int64 = discordgo.PermissionAdministrator

// Events is the optional AMQP publisher. Nil when events.enabled is false.
var Events *events.Publisher

func Commands(cfg *config.Config) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0)
	cmds = append(cmds, ticketCommands()...)
	cmds = append(cmds, giveawayCommands()...)
	cmds = append(cmds, ratingCommands()...)
	cmds = append(cmds, presenceCommands()...)
	cmds = append(cmds, embedCommands()...)
	cmds = append(cmds, punishmentCommands()...)
	cmds = append(cmds, welcomeCommands()...)
	return cmds
}

func Register(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		// Rating buttons arrive from DMs, everything else is guild-only.
		if i.GuildID == "" {
			if i.Type == discordgo.InteractionMessageComponent &&
				strings.HasPrefix(i.MessageComponentData().CustomID, "rate:") {
				handleRatingButton(s, i)
			}
			return
		}

		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			handleSlashCommand(s, i)
		case discordgo.InteractionMessageComponent:
			handleComponent(s, i)
		case discordgo.InteractionModalSubmit:
			handleModal(s, i)
		}
	})
}

func handleSlashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name

	switch name {
	case "ticket":
		handleTicketCommand(s, i)
	case "close":
		handleCloseCommand(s, i)
	case "add":
		handleAddUser(s, i)
	case "remove":
		handleRemoveUser(s, i)

	case "giveaway":
		handleGiveawayCommand(s, i)
	case "ratings":
		handleRatingsCommand(s, i)
	case "presence":
		handlePresenceCommand(s, i)
	case "embed":
		handleEmbedCommand(s, i)
	case "punish":
		handlePunishCommand(s, i)
	case "welcome":
		handleWelcomeCommand(s, i)

	default:
		log.Printf("Unknown command: %s", name)
	}
}

func handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	switch customID {
	case "ticket_category_select":
		handleTicketCategorySelect(s, i)
	case "ticket_claim":
		handleTicketClaim(s, i)
	case "ticket_voice":
		handleTicketVoice(s, i)
	case "ticket_admin":
		handleTicketAdminMenu(s, i)
	case "ticket_admin_select":
		handleTicketAdminSelect(s, i)
	case "ticket_close":
		handleTicketCloseButton(s, i)
	case "ticket_close_cancel":
		handleTicketCloseCancel(s, i)
	case "giveaway_join":
		handleGiveawayJoin(s, i)
	default:
		if strings.HasPrefix(customID, "rate:") {
			handleRatingButton(s, i)
			return
		}
		log.Printf("Unknown component: %s", customID)
	}
}

func handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.ModalSubmitData().CustomID

	switch {
	case strings.HasPrefix(customID, "ticket_reason:"):
		handleTicketReasonModal(s, i)
	case customID == "ticket_rename":
		handleTicketRenameModal(s, i)
	default:
		log.Printf("Unknown modal: %s", customID)
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		log.Printf("Failed to respond: %v", err)
	}
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		m[opt.Name] = opt
	}
	return m
}

func subOptMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func optStr(m map[string]*discordgo.ApplicationCommandInteractionDataOption, key, def string) string {
	if o, ok := m[key]; ok {
		return o.StringValue()
	}
	return def
}

func optInt(m map[string]*discordgo.ApplicationCommandInteractionDataOption, key string, def int64) int64 {
	if o, ok := m[key]; ok {
		return o.IntValue()
	}
	return def
}

// interactionUser works for both guild (Member) and DM (User) interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
}

// isStaff is admin or holder of the configured support role.
func isStaff(i *discordgo.InteractionCreate, supportRoleID string) bool {
	if isAdmin(i) {
		return true
	}
	if i.Member == nil || supportRoleID == "" {
		return false
	}
	for _, roleID := range i.Member.Roles {
		if roleID == supportRoleID {
			return true
		}
	}
	return false
}

// publishEvent is a no-op when the AMQP publisher is not configured.
func publishEvent(routingKey string, payload any) {
	if Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Events.Publish(ctx, routingKey, payload); err != nil {
		log.Printf("[EVENTS] Publish %s failed: %v", routingKey, err)
	}
}

func parseComponentEmoji(emoji string) *discordgo.ComponentEmoji {
	if emoji == "" {
		return nil
	}
	return &discordgo.ComponentEmoji{Name: emoji}
}
