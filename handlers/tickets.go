package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"community-bot/events"
	"community-bot/storage"
	"community-bot/transcript"

	"github.com/bwmarrin/discordgo"
)

// Transcripts is the durable transcript store, set in main before handlers run.
var Transcripts *transcript.Store

var (
	closeTimers   = make(map[string]context.CancelFunc)
	closeTimersMu sync.Mutex
)

const closeCountdown = 20 * time.Second

func ticketCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "ticket",
			Description:              "Ticket system management",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "setup", Description: "Configure the ticket system for this server",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "panel-channel", Description: "Channel to post the ticket panel in", Required: true},
						{Type: discordgo.ApplicationCommandOptionRole, Name: "support-role", Description: "Role that handles tickets", Required: true},
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "category", Description: "Channel category ticket channels are created under"},
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "log-channel", Description: "Channel for close summaries"},
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "rating-channel", Description: "Channel for staff rating logs"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Panel embed title"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Panel embed description"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "color", Description: "Panel embed colour (e.g. #992d22)"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "viewer-url", Description: "Base URL of the transcript viewer"},
					},
				},
				{
					Name: "addcategory", Description: "Add a ticket category to the panel",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "label", Description: "Display name", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Short description", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "Emoji (e.g. 🎫)"},
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "location", Description: "Channel category for this ticket type (overrides the default)"},
					},
				},
				{
					Name: "editcategory", Description: "Edit a ticket category",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "Category ID (from /ticket config)", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "label", Description: "New display name"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "New description"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "New emoji"},
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "location", Description: "New channel category"},
					},
				},
				{
					Name: "removecategory", Description: "Remove a ticket category",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "Category ID to remove", Required: true},
					},
				},
				{
					Name: "panel", Description: "Post the ticket panel",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name: "list", Description: "List all open tickets",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name: "config", Description: "Show the current ticket configuration",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
		{Name: "close", Description: "Close the current ticket"},
		{
			Name: "add", Description: "Add a user to the current ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to add", Required: true},
			},
		},
		{
			Name: "remove", Description: "Remove a user from the current ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to remove", Required: true},
			},
		},
	}
}

func handleTicketCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need admin permissions to manage the ticket system.", true)
		return
	}
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "setup":
		handleTicketSetup(s, i, sub.Options)
	case "addcategory":
		handleTicketAddCategory(s, i, sub.Options)
	case "editcategory":
		handleTicketEditCategory(s, i, sub.Options)
	case "removecategory":
		handleTicketRemoveCategory(s, i, sub.Options)
	case "panel":
		handleTicketPanel(s, i)
	case "list":
		handleTicketList(s, i)
	case "config":
		handleTicketConfigCmd(s, i)
	}
}

func handleTicketSetup(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)

	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}

	gc.TicketPanelChannelID = om["panel-channel"].ChannelValue(s).ID
	gc.TicketSupportRoleID = om["support-role"].RoleValue(s, i.GuildID).ID
	if o, ok := om["category"]; ok {
		gc.TicketCategoryID = o.ChannelValue(s).ID
	}
	if o, ok := om["log-channel"]; ok {
		gc.TicketLogsChannelID = o.ChannelValue(s).ID
	}
	if o, ok := om["rating-channel"]; ok {
		gc.RatingChannelID = o.ChannelValue(s).ID
	}
	if o, ok := om["title"]; ok {
		gc.TicketTitle = o.StringValue()
	}
	if o, ok := om["description"]; ok {
		gc.TicketDesc = o.StringValue()
	}
	if o, ok := om["color"]; ok {
		color, err := parseHexColor(o.StringValue())
		if err != nil {
			respond(s, i, "Invalid colour. Use hex like `#992d22`.", true)
			return
		}
		gc.TicketColor = color
	}
	if o, ok := om["viewer-url"]; ok {
		gc.TicketViewerURL = o.StringValue()
	}

	if err := storage.DB.SaveGuildConfig(gc); err != nil {
		respond(s, i, fmt.Sprintf("Failed to save config: %v", err), true)
		return
	}
	respond(s, i, "Ticket system configured. Use `/ticket addcategory` to add categories, then `/ticket panel` to post the panel.", true)
}

func handleTicketAddCategory(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)

	cat := storage.TicketCategory{
		GuildID:     i.GuildID,
		Label:       om["label"].StringValue(),
		Description: om["description"].StringValue(),
		Emoji:       optStr(om, "emoji", ""),
	}
	if o, ok := om["location"]; ok {
		cat.LocationID = o.ChannelValue(s).ID
	}

	id, err := storage.DB.AddTicketCategory(cat)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to add category: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Category **%s %s** added (ID %d). Run `/ticket panel` to refresh.", cat.Emoji, cat.Label, id), true)
}

func handleTicketEditCategory(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)
	id := om["id"].IntValue()

	cat, err := storage.DB.GetTicketCategory(i.GuildID, id)
	if err != nil || cat == nil {
		respond(s, i, fmt.Sprintf("Category %d not found.", id), true)
		return
	}

	if o, ok := om["label"]; ok {
		cat.Label = o.StringValue()
	}
	if o, ok := om["description"]; ok {
		cat.Description = o.StringValue()
	}
	if o, ok := om["emoji"]; ok {
		cat.Emoji = o.StringValue()
	}
	if o, ok := om["location"]; ok {
		cat.LocationID = o.ChannelValue(s).ID
	}

	if err := storage.DB.UpdateTicketCategory(*cat); err != nil {
		respond(s, i, fmt.Sprintf("Failed to update category: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Category %d updated. Run `/ticket panel` to refresh.", id), true)
}

func handleTicketRemoveCategory(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)
	id := om["id"].IntValue()

	if err := storage.DB.DeleteTicketCategory(i.GuildID, id); err != nil {
		respond(s, i, fmt.Sprintf("Failed to remove category: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Category %d removed. Run `/ticket panel` to refresh.", id), true)
}

func handleTicketPanel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}
	if gc.TicketPanelChannelID == "" {
		respond(s, i, "No panel channel set. Run `/ticket setup` first.", true)
		return
	}

	cats, err := storage.DB.ListTicketCategories(i.GuildID)
	if err != nil || len(cats) == 0 {
		respond(s, i, "No categories configured. Add one with `/ticket addcategory`.", true)
		return
	}

	title := gc.TicketTitle
	if title == "" {
		title = "🎫 Support Tickets"
	}
	desc := gc.TicketDesc
	if desc == "" {
		desc = "Select a category below to open a ticket."
	}

	menuOpts := make([]discordgo.SelectMenuOption, 0, len(cats))
	for _, cat := range cats {
		menuOpts = append(menuOpts, discordgo.SelectMenuOption{
			Label:       cat.Label,
			Value:       strconv.FormatInt(cat.ID, 10),
			Description: cat.Description,
			Emoji:       parseComponentEmoji(cat.Emoji),
		})
	}

	_, err = s.ChannelMessageSendComplex(gc.TicketPanelChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: desc,
			Color:       gc.EffectiveTicketColor(),
			Footer:      &discordgo.MessageEmbedFooter{Text: "Use the menu below to open a ticket"},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    "ticket_category_select",
						Placeholder: "Select a category...",
						Options:     menuOpts,
					},
				},
			},
		},
	})
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to send panel: %v", err), true)
		return
	}
	respond(s, i, "Ticket panel posted!", true)
}

func handleTicketList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	tickets, err := storage.DB.ListOpenTickets(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to list tickets: %v", err), true)
		return
	}
	if len(tickets) == 0 {
		respond(s, i, "No open tickets.", true)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Open Tickets** (%d):\n", len(tickets)))
	for _, t := range tickets {
		claimed := "unclaimed"
		if t.ClaimedBy != "" {
			claimed = fmt.Sprintf("claimed by <@%s>", t.ClaimedBy)
		}
		sb.WriteString(fmt.Sprintf("• <#%s> — #%04d by <@%s> (%s)\n", t.ChannelID, t.Number, t.UserID, claimed))
	}
	respond(s, i, sb.String(), true)
}

func handleTicketConfigCmd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}
	cats, _ := storage.DB.ListTicketCategories(i.GuildID)

	var sb strings.Builder
	sb.WriteString("**Ticket System Configuration**\n\n")
	sb.WriteString(fmt.Sprintf("Panel Channel: `%s`\n", gc.TicketPanelChannelID))
	sb.WriteString(fmt.Sprintf("Support Role: `%s`\n", gc.TicketSupportRoleID))
	sb.WriteString(fmt.Sprintf("Channel Category: `%s`\n", gc.TicketCategoryID))
	sb.WriteString(fmt.Sprintf("Log Channel: `%s`\n", gc.TicketLogsChannelID))
	sb.WriteString(fmt.Sprintf("Rating Channel: `%s`\n", gc.RatingChannelID))
	sb.WriteString(fmt.Sprintf("Viewer URL: `%s`\n", gc.TicketViewerURL))
	sb.WriteString(fmt.Sprintf("Tickets Opened: `%d`\n\n", gc.TicketCount))

	sb.WriteString(fmt.Sprintf("**Categories** (%d):\n", len(cats)))
	for _, cat := range cats {
		loc := ""
		if cat.LocationID != "" {
			loc = fmt.Sprintf(" [location: `%s`]", cat.LocationID)
		}
		sb.WriteString(fmt.Sprintf("• `%d` %s **%s** — %s%s\n", cat.ID, cat.Emoji, cat.Label, cat.Description, loc))
	}
	respond(s, i, sb.String(), true)
}

// handleTicketCategorySelect opens the reason modal. The ticket channel is only
// created once the modal comes back.
func handleTicketCategorySelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}
	catID := data.Values[0]

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: "ticket_reason:" + catID,
			Title:    "Open a ticket",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "reason",
							Label:       "What do you need help with?",
							Style:       discordgo.TextInputParagraph,
							Placeholder: "Describe your issue...",
							Required:    true,
							MaxLength:   1000,
						},
					},
				},
			},
		},
	})
}

func handleTicketReasonModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	catID, err := strconv.ParseInt(strings.TrimPrefix(data.CustomID, "ticket_reason:"), 10, 64)
	if err != nil {
		return
	}

	reason := ""
	for _, row := range data.Components {
		if ar, ok := row.(*discordgo.ActionsRow); ok {
			for _, c := range ar.Components {
				if ti, ok := c.(*discordgo.TextInput); ok && ti.CustomID == "reason" {
					reason = ti.Value
				}
			}
		}
	}

	createTicket(s, i, catID, reason)
}

func createTicket(s *discordgo.Session, i *discordgo.InteractionCreate, catID int64, reason string) {
	userID := i.Member.User.ID

	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}

	maxOpen := storage.Cfg.Tickets.MaxOpenPerUser
	allowed, open, err := openTicketAllowed(i.GuildID, userID, maxOpen)
	if err != nil {
		log.Printf("[TICKETS] Open-ticket count for %s failed: %v", userID, err)
		respond(s, i, "Could not verify your open tickets, try again.", true)
		return
	}
	if !allowed {
		respond(s, i, fmt.Sprintf("You already have %d open ticket(s) (max %d).", open, maxOpen), true)
		return
	}

	cat, err := storage.DB.GetTicketCategory(i.GuildID, catID)
	if err != nil || cat == nil {
		respond(s, i, "That category no longer exists. Ask an admin to refresh the panel.", true)
		return
	}

	num, err := storage.DB.NextTicketNumber(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to allocate ticket number: %v", err), true)
		return
	}

	parentID := cat.LocationID
	if parentID == "" {
		parentID = gc.TicketCategoryID
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{ID: i.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles | discordgo.PermissionReadMessageHistory,
		},
	}
	if gc.TicketSupportRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    gc.TicketSupportRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionAttachFiles | discordgo.PermissionReadMessageHistory | discordgo.PermissionManageMessages,
		})
	}

	ch, err := s.GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
		Name:                 fmt.Sprintf("ticket-%04d", num),
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                fmt.Sprintf("%s | opened by %s", cat.Label, i.Member.User.Username),
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		// No channel, no record.
		respond(s, i, fmt.Sprintf("Failed to create ticket channel: %v", err), true)
		return
	}

	ticket := storage.Ticket{
		ChannelID:  ch.ID,
		GuildID:    i.GuildID,
		UserID:     userID,
		CategoryID: catID,
		Number:     num,
		OpenedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := storage.DB.CreateTicket(ticket); err != nil {
		log.Printf("[TICKETS] Failed to persist ticket %s: %v", ch.ID, err)
		_, _ = s.ChannelDelete(ch.ID)
		respond(s, i, "Failed to create ticket, try again.", true)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Ticket #%04d — %s", num, cat.Label),
		Description: fmt.Sprintf("Welcome <@%s>!\n\n**Reason:**\n%s\n\nA staff member will assist you shortly.", userID, reason),
		Color:       gc.EffectiveTicketColor(),
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	pingContent := fmt.Sprintf("<@%s>", userID)
	if gc.TicketSupportRoleID != "" {
		pingContent += fmt.Sprintf(" | <@&%s>", gc.TicketSupportRoleID)
	}

	_, _ = s.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content: pingContent,
		Embeds:  []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label: "Claim", Style: discordgo.SuccessButton,
						CustomID: "ticket_claim",
						Emoji:    claimEmoji(gc),
					},
					discordgo.Button{
						Label: "Call", Style: discordgo.SecondaryButton,
						CustomID: "ticket_voice",
						Emoji:    emojiOr(gc.EmojiVoice, "🔊"),
					},
					discordgo.Button{
						Label: "Admin", Style: discordgo.SecondaryButton,
						CustomID: "ticket_admin",
						Emoji:    emojiOr(gc.EmojiAdmin, "⚙️"),
					},
					discordgo.Button{
						Label: "Close", Style: discordgo.DangerButton,
						CustomID: "ticket_close",
						Emoji:    emojiOr(gc.EmojiClose, "🔒"),
					},
				},
			},
		},
	})

	log.Printf("[TICKETS] #%04d opened by %s in guild %s", num, userID, i.GuildID)
	respond(s, i, fmt.Sprintf("Ticket created: <#%s>", ch.ID), true)
}

// openTicketAllowed fails closed: a count error blocks creation rather than
// bypassing the per-user limit.
func openTicketAllowed(guildID, userID string, maxOpen int) (bool, int, error) {
	open, err := storage.DB.CountUserTickets(guildID, userID)
	if err != nil {
		return false, 0, err
	}
	return open < maxOpen, open, nil
}

func claimEmoji(gc *storage.GuildConfig) *discordgo.ComponentEmoji {
	return emojiOr(gc.EmojiClaim, "🙋")
}

func emojiOr(emoji, def string) *discordgo.ComponentEmoji {
	if emoji == "" {
		emoji = def
	}
	return &discordgo.ComponentEmoji{Name: emoji}
}

func handleTicketClaim(s *discordgo.Session, i *discordgo.InteractionCreate) {
	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}
	if !isStaff(i, gc.TicketSupportRoleID) {
		respond(s, i, "Only support staff can claim tickets.", true)
		return
	}

	ticket, err := storage.DB.GetTicket(i.ChannelID)
	if err != nil || ticket == nil {
		respond(s, i, "This is not a ticket channel.", true)
		return
	}

	claimed, err := storage.DB.ClaimTicket(i.ChannelID, i.Member.User.ID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to claim: %v", err), true)
		return
	}
	if !claimed {
		respond(s, i, fmt.Sprintf("This ticket is already claimed by <@%s>.", ticket.ClaimedBy), true)
		return
	}

	// The click edits the welcome panel itself: the claim control goes dark
	// and the claimer shows up on the embed.
	embeds, comps := markPanelClaimed(i.Message.Embeds, i.Message.Components, i.Member.User.ID)
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: comps,
		},
	})

	log.Printf("[TICKETS] %s claimed by %s", i.ChannelID, i.Member.User.ID)
	_, _ = s.ChannelMessageSend(i.ChannelID, fmt.Sprintf("🙋 Ticket claimed by <@%s>. They will be handling your request.", i.Member.User.ID))
}

// markPanelClaimed disables the claim button and stamps the claimer on the
// welcome embed. Components arriving on a message unmarshal as pointers, so
// the edits happen in place.
func markPanelClaimed(embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent, staffID string) ([]*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	for _, row := range components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if btn, ok := c.(*discordgo.Button); ok && btn.CustomID == "ticket_claim" {
				btn.Disabled = true
			}
		}
	}
	if len(embeds) > 0 {
		embeds[0].Fields = append(embeds[0].Fields, &discordgo.MessageEmbedField{
			Name:   "Claimed By",
			Value:  fmt.Sprintf("<@%s>", staffID),
			Inline: true,
		})
	}
	return embeds, components
}

func handleTicketVoice(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ticket, err := storage.DB.GetTicket(i.ChannelID)
	if err != nil || ticket == nil {
		respond(s, i, "This is not a ticket channel.", true)
		return
	}

	if ticket.VoiceChannelID != "" {
		respond(s, i, fmt.Sprintf("A call already exists for this ticket: <#%s>", ticket.VoiceChannelID), true)
		return
	}

	gc, _ := storage.DB.GetGuildConfig(i.GuildID)
	parent, err := s.Channel(i.ChannelID)
	parentID := ""
	if err == nil {
		parentID = parent.ParentID
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{ID: i.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{
			ID:    ticket.UserID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak,
		},
	}
	if gc != nil && gc.TicketSupportRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    gc.TicketSupportRoleID,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak,
		})
	}

	vc, err := s.GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
		Name:                 fmt.Sprintf("call-ticket-%04d", ticket.Number),
		Type:                 discordgo.ChannelTypeGuildVoice,
		ParentID:             parentID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to create call channel: %v", err), true)
		return
	}

	// Persisted on the ticket row so the call is found again after a restart.
	if err := storage.DB.SetTicketVoiceChannel(i.ChannelID, vc.ID); err != nil {
		log.Printf("[TICKETS] Failed to persist call channel for %s: %v", i.ChannelID, err)
	}

	respond(s, i, fmt.Sprintf("🔊 Call channel created: <#%s>", vc.ID), false)
}

func handleTicketAdminMenu(s *discordgo.Session, i *discordgo.InteractionCreate) {
	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}
	if !isStaff(i, gc.TicketSupportRoleID) {
		respond(s, i, "Only support staff can use the admin menu.", true)
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Admin options:",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							MenuType: discordgo.StringSelectMenu,
							CustomID: "ticket_admin_select",
							Options: []discordgo.SelectMenuOption{
								{Label: "Notify opener", Value: "notify", Description: "DM the ticket opener that staff is waiting", Emoji: &discordgo.ComponentEmoji{Name: "🔔"}},
								{Label: "Rename ticket", Value: "rename", Description: "Rename this ticket channel", Emoji: &discordgo.ComponentEmoji{Name: "✏️"}},
							},
						},
					},
				},
			},
		},
	})
}

func handleTicketAdminSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}

	ticket, err := storage.DB.GetTicket(i.ChannelID)
	if err != nil || ticket == nil {
		respond(s, i, "This is not a ticket channel.", true)
		return
	}

	switch data.Values[0] {
	case "notify":
		dm, err := s.UserChannelCreate(ticket.UserID)
		if err == nil {
			_, err = s.ChannelMessageSend(dm.ID, fmt.Sprintf("🔔 Staff is waiting for your reply in your ticket: <#%s>", ticket.ChannelID))
		}
		if err != nil {
			respond(s, i, "Could not DM the ticket opener (DMs closed?).", true)
			return
		}
		respond(s, i, "Opener notified.", true)

	case "rename":
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: "ticket_rename",
				Title:    "Rename ticket",
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.TextInput{
								CustomID:  "name",
								Label:     "New channel name",
								Style:     discordgo.TextInputShort,
								Required:  true,
								MaxLength: 100,
							},
						},
					},
				},
			},
		})
	}
}

func handleTicketRenameModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()

	name := ""
	for _, row := range data.Components {
		if ar, ok := row.(*discordgo.ActionsRow); ok {
			for _, c := range ar.Components {
				if ti, ok := c.(*discordgo.TextInput); ok && ti.CustomID == "name" {
					name = ti.Value
				}
			}
		}
	}
	if name == "" {
		return
	}

	if _, err := s.ChannelEdit(i.ChannelID, &discordgo.ChannelEdit{Name: name}); err != nil {
		respond(s, i, fmt.Sprintf("Failed to rename: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Ticket renamed to `%s`.", name), true)
}

func handleCloseCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	startCloseCountdown(s, i)
}

func handleTicketCloseButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	startCloseCountdown(s, i)
}

// beginClose registers a pending close for the channel. Returns false when a
// countdown is already running.
func beginClose(channelID string) (context.Context, bool) {
	ctx, cancel := context.WithCancel(context.Background())
	closeTimersMu.Lock()
	defer closeTimersMu.Unlock()
	if _, running := closeTimers[channelID]; running {
		cancel()
		return nil, false
	}
	closeTimers[channelID] = cancel
	return ctx, true
}

// cancelClose aborts a pending close. Returns false when none is running.
func cancelClose(channelID string) bool {
	closeTimersMu.Lock()
	cancel, ok := closeTimers[channelID]
	if ok {
		delete(closeTimers, channelID)
	}
	closeTimersMu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func endClose(channelID string) {
	closeTimersMu.Lock()
	delete(closeTimers, channelID)
	closeTimersMu.Unlock()
}

// awaitCloseCountdown blocks until the countdown elapses or ctx is cancelled.
// Returns true when the close should proceed; onTick fires once per tick with
// the time left.
func awaitCloseCountdown(ctx context.Context, total, tick time.Duration, onTick func(remaining time.Duration)) bool {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	remaining := total
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			remaining -= tick
			if remaining > 0 && onTick != nil {
				onTick(remaining)
			}
		}
	}
	return true
}

// startCloseCountdown begins the cancellable 20 second countdown. The
// countdown message carries the cancel button and is edited every 5 seconds.
func startCloseCountdown(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ticket, err := storage.DB.GetTicket(i.ChannelID)
	if err != nil || ticket == nil {
		respond(s, i, "This is not a ticket channel.", true)
		return
	}

	ctx, ok := beginClose(i.ChannelID)
	if !ok {
		respond(s, i, "This ticket is already closing.", true)
		return
	}

	gc, _ := storage.DB.GetGuildConfig(i.GuildID)
	cancelEmoji := "↩️"
	if gc != nil && gc.EmojiCancel != "" {
		cancelEmoji = gc.EmojiCancel
	}

	remaining := int(closeCountdown / time.Second)
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("🔒 Closing this ticket in **%d seconds**...", remaining),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label: "Cancel", Style: discordgo.SecondaryButton,
							CustomID: "ticket_close_cancel",
							Emoji:    &discordgo.ComponentEmoji{Name: cancelEmoji},
						},
					},
				},
			},
		},
	})

	closedBy := i.Member.User
	channelID := i.ChannelID
	guildID := i.GuildID
	interaction := i.Interaction

	go func() {
		proceed := awaitCloseCountdown(ctx, closeCountdown, 5*time.Second, func(left time.Duration) {
			content := fmt.Sprintf("🔒 Closing this ticket in **%d seconds**...", int(left/time.Second))
			_, _ = s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{Content: &content})
		})
		if !proceed {
			content := "Ticket close cancelled."
			_, _ = s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{
				Content:    &content,
				Components: &[]discordgo.MessageComponent{},
			})
			return
		}

		endClose(channelID)
		finalizeClose(s, guildID, channelID, closedBy)
	}()
}

func handleTicketCloseCancel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !cancelClose(i.ChannelID) {
		respond(s, i, "This ticket is not closing.", true)
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("↩️ Close cancelled by <@%s>.", i.Member.User.ID),
		},
	})
}

// finalizeClose runs the teardown: transcript, log summary, rating DM, record
// delete, channel delete. Every external step is best effort; the channel is
// deleted no matter what.
func finalizeClose(s *discordgo.Session, guildID, channelID string, closedBy *discordgo.User) {
	ticket, err := storage.DB.GetTicket(channelID)
	if err != nil || ticket == nil {
		log.Printf("[TICKETS] Close of %s: record already gone", channelID)
		return
	}
	gc, _ := storage.DB.GetGuildConfig(guildID)

	doc := buildTranscript(s, guildID, channelID, ticket, closedBy)

	var transcriptFile, transcriptURL string
	if Transcripts != nil {
		base := ""
		if gc != nil {
			base = gc.TicketViewerURL
		}
		Transcripts.BaseURL = base
		transcriptFile, transcriptURL, err = Transcripts.Save(doc)
		if err != nil {
			log.Printf("[TICKETS] Transcript save failed for %s: %v", channelID, err)
		}
	}

	if gc != nil && gc.TicketLogsChannelID != "" {
		fields := []*discordgo.MessageEmbedField{
			{Name: "Opened By", Value: fmt.Sprintf("<@%s>", ticket.UserID), Inline: true},
			{Name: "Closed By", Value: fmt.Sprintf("<@%s>", closedBy.ID), Inline: true},
			{Name: "Opened At", Value: ticket.OpenedAt, Inline: true},
			{Name: "Messages", Value: strconv.Itoa(len(doc.Messages)), Inline: true},
		}
		if transcriptURL != "" {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Transcript", Value: transcriptURL})
		}
		_, err := s.ChannelMessageSendEmbed(gc.TicketLogsChannelID, &discordgo.MessageEmbed{
			Title:     fmt.Sprintf("Ticket #%04d Closed", ticket.Number),
			Color:     0xED4245,
			Fields:    fields,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		if err != nil {
			log.Printf("[TICKETS] Log summary failed for %s: %v", channelID, err)
		}
	}

	sendRatingDM(s, ticket)

	publishEvent(events.KeyTicketClosed, events.TicketClosed{
		GuildID:        guildID,
		ChannelID:      channelID,
		Number:         ticket.Number,
		OpenedBy:       ticket.UserID,
		ClosedBy:       closedBy.ID,
		TranscriptFile: transcriptFile,
		TranscriptURL:  transcriptURL,
		ClosedAt:       time.Now().UTC().Format(time.RFC3339),
	})

	if err := storage.DB.DeleteTicket(channelID); err != nil {
		log.Printf("[TICKETS] Failed to delete record %s: %v", channelID, err)
	}

	if ticket.VoiceChannelID != "" {
		_, _ = s.ChannelDelete(ticket.VoiceChannelID)
	}

	log.Printf("[TICKETS] #%04d closed by %s", ticket.Number, closedBy.ID)
	_, _ = s.ChannelDelete(channelID)
}

func buildTranscript(s *discordgo.Session, guildID, channelID string, ticket *storage.Ticket, closedBy *discordgo.User) *transcript.Document {
	doc := &transcript.Document{
		ChannelName: fmt.Sprintf("ticket-%04d", ticket.Number),
		OpenedBy:    ticket.UserID,
		ClosedBy:    closedBy.Username,
		ClosedAt:    time.Now().UTC(),
	}
	if g, err := s.Guild(guildID); err == nil {
		doc.GuildName = g.Name
	}
	if ch, err := s.Channel(channelID); err == nil {
		doc.ChannelName = ch.Name
		doc.TicketTopic = ch.Topic
	}
	if u, err := s.User(ticket.UserID); err == nil {
		doc.OpenedBy = u.Username
	}

	// Oldest-first, paginated. ChannelMessages returns newest-first pages.
	var all []*discordgo.Message
	beforeID := ""
	for {
		page, err := s.ChannelMessages(channelID, 100, beforeID, "", "")
		if err != nil || len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < 100 {
			break
		}
		beforeID = page[len(page)-1].ID
	}

	for idx := len(all) - 1; idx >= 0; idx-- {
		m := all[idx]
		msg := transcript.Message{
			AuthorName:   m.Author.Username,
			AuthorAvatar: m.Author.AvatarURL("64"),
			Content:      m.Content,
			Timestamp:    m.Timestamp,
			Bot:          m.Author.Bot,
		}
		for _, a := range m.Attachments {
			msg.Attachments = append(msg.Attachments, transcript.Attachment{
				Filename: a.Filename,
				URL:      a.URL,
			})
		}
		doc.Messages = append(doc.Messages, msg)
	}
	return doc
}

func handleAddUser(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ticket, err := storage.DB.GetTicket(i.ChannelID)
	if err != nil || ticket == nil {
		respond(s, i, "This is not a ticket channel.", true)
		return
	}

	opts := optionMap(i)
	target := opts["user"].UserValue(s)

	err = s.ChannelPermissionSet(i.ChannelID, target.ID, discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionViewChannel|discordgo.PermissionSendMessages|discordgo.PermissionReadMessageHistory, 0)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Added <@%s> to this ticket.", target.ID), false)
}

func handleRemoveUser(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ticket, err := storage.DB.GetTicket(i.ChannelID)
	if err != nil || ticket == nil {
		respond(s, i, "This is not a ticket channel.", true)
		return
	}

	opts := optionMap(i)
	target := opts["user"].UserValue(s)

	if err := s.ChannelPermissionDelete(i.ChannelID, target.ID); err != nil {
		respond(s, i, fmt.Sprintf("Failed: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Removed <@%s> from this ticket.", target.ID), false)
}
