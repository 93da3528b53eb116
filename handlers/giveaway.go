package handlers

import (
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"community-bot/events"
	"community-bot/lang"
	"community-bot/storage"

	"github.com/bwmarrin/discordgo"
)

const scanInterval = 10 * time.Second

func giveawayCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "giveaway",
			Description:              "Giveaway management",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "create",
					Description: "Create a new giveaway",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to post the giveaway in", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "prize", Description: "What are you giving away?", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "Duration (e.g. 30m, 2h, 7d)", Required: true},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "winners", Description: "Number of winners (default: 1, max: 20)"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Custom embed title"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Custom embed description"},
						{Type: discordgo.ApplicationCommandOptionRole, Name: "required-role", Description: "Role required to enter"},
					},
				},
				{
					Name:        "end",
					Description: "End a giveaway early and pick winners now",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "message-id", Description: "Giveaway message ID (from /giveaway list)", Required: true},
					},
				},
				{
					Name:        "reroll",
					Description: "Reroll the winners of a finished giveaway",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "message-id", Description: "Giveaway message ID", Required: true},
					},
				},
				{
					Name:        "list",
					Description: "List all open giveaways",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name:        "config",
					Description: "Set the giveaway embed colour and join emoji",
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "color", Description: "Hex colour (e.g. #3498db)"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "Join button emoji"},
					},
				},
			},
		},
	}
}

func handleGiveawayCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need admin permissions to manage giveaways.", true)
		return
	}
	sub := i.ApplicationCommandData().Options[0]

	switch sub.Name {
	case "create":
		handleGiveawayCreate(s, i, sub.Options)
	case "end":
		handleGiveawayEnd(s, i, sub.Options)
	case "reroll":
		handleGiveawayReroll(s, i, sub.Options)
	case "list":
		handleGiveawayList(s, i)
	case "config":
		handleGiveawayConfig(s, i, sub.Options)
	}
}

var durationRe = regexp.MustCompile(`^(\d+)([mhd])$`)

// parseGiveawayDuration accepts only <number><m|h|d>. Anything else is a hard
// failure, never a silent default.
func parseGiveawayDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	switch m[2] {
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

func handleGiveawayCreate(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)
	ch := om["channel"].ChannelValue(s)
	prize := om["prize"].StringValue()

	dur, err := parseGiveawayDuration(om["duration"].StringValue())
	if err != nil {
		respond(s, i, lang.T("giveaway_bad_duration"), true)
		return
	}

	winners := optInt(om, "winners", 1)
	if winners < 1 {
		winners = 1
	}
	if winners > 20 {
		winners = 20
	}

	req := storage.GiveawayRequirements{}
	if o, ok := om["required-role"]; ok {
		req.RoleID = o.RoleValue(s, i.GuildID).ID
	}

	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}

	g := storage.Giveaway{
		ChannelID:    ch.ID,
		GuildID:      i.GuildID,
		Title:        optStr(om, "title", ""),
		Description:  optStr(om, "description", ""),
		Prize:        prize,
		WinnersCount: int(winners),
		EndTime:      time.Now().Add(dur).UTC(),
		HostID:       i.Member.User.ID,
		Requirements: req.Encode(),
		Status:       storage.GiveawayOpen,
	}

	msg, err := s.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{buildGiveawayEmbed(gc, &g, 0)},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    lang.T("giveaway_join"),
						Style:    discordgo.PrimaryButton,
						CustomID: "giveaway_join",
						Emoji:    &discordgo.ComponentEmoji{Name: gc.EffectiveGiveawayEmoji()},
					},
				},
			},
		},
	})
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to post giveaway: %v", err), true)
		return
	}

	g.MessageID = msg.ID
	if err := storage.DB.CreateGiveaway(g); err != nil {
		_ = s.ChannelMessageDelete(ch.ID, msg.ID)
		respond(s, i, fmt.Sprintf("Failed to save giveaway: %v", err), true)
		return
	}

	log.Printf("[GIVEAWAY] %s created in guild %s, ends %s", msg.ID, i.GuildID, g.EndTime.Format(time.RFC3339))
	respond(s, i, lang.T("giveaway_created", "channel", fmt.Sprintf("<#%s>", ch.ID)), true)
}

func buildGiveawayEmbed(gc *storage.GuildConfig, g *storage.Giveaway, entrants int) *discordgo.MessageEmbed {
	title := g.Title
	if title == "" {
		title = lang.T("giveaway_title")
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: lang.T("giveaway_prize"), Value: g.Prize, Inline: true},
		{Name: lang.T("giveaway_winners"), Value: strconv.Itoa(g.WinnersCount), Inline: true},
		{Name: lang.T("giveaway_entries"), Value: strconv.Itoa(entrants), Inline: true},
		{Name: lang.T("giveaway_ends"), Value: fmt.Sprintf("<t:%d:R>", g.EndTime.Unix()), Inline: true},
		{Name: lang.T("giveaway_hosted_by"), Value: fmt.Sprintf("<@%s>", g.HostID), Inline: true},
	}
	if req := storage.DecodeRequirements(g.Requirements); req.RoleID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: lang.T("giveaway_required_role"), Value: fmt.Sprintf("<@&%s>", req.RoleID), Inline: true,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: g.Description,
		Color:       gc.EffectiveGiveawayColor(),
		Fields:      fields,
		Timestamp:   g.EndTime.Format(time.RFC3339),
	}
}

func handleGiveawayJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	g, err := storage.DB.GetGiveaway(i.Message.ID)
	if err != nil || g == nil {
		respond(s, i, lang.T("giveaway_not_found"), true)
		return
	}
	if g.Status != storage.GiveawayOpen {
		respond(s, i, lang.T("giveaway_already_ended"), true)
		return
	}

	if req := storage.DecodeRequirements(g.Requirements); req.RoleID != "" {
		hasRole := false
		for _, roleID := range i.Member.Roles {
			if roleID == req.RoleID {
				hasRole = true
				break
			}
		}
		if !hasRole {
			respond(s, i, lang.T("giveaway_missing_role", "role", fmt.Sprintf("<@&%s>", req.RoleID)), true)
			return
		}
	}

	joined, err := storage.DB.ToggleEntry(g.MessageID, i.Member.User.ID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to update your entry: %v", err), true)
		return
	}

	// Recount instead of trusting the embed: concurrent toggles make any
	// cached number stale.
	count, _ := storage.DB.CountEntries(g.MessageID)
	gc, _ := storage.DB.GetGuildConfig(i.GuildID)
	if gc != nil {
		_, _ = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel: g.ChannelID,
			ID:      g.MessageID,
			Embeds:  &[]*discordgo.MessageEmbed{buildGiveawayEmbed(gc, g, count)},
		})
	}

	if joined {
		respond(s, i, lang.T("giveaway_joined"), true)
	} else {
		respond(s, i, lang.T("giveaway_left"), true)
	}
}

func handleGiveawayEnd(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)
	messageID := om["message-id"].StringValue()

	g, err := storage.DB.GetGiveaway(messageID)
	if err != nil || g == nil {
		respond(s, i, lang.T("giveaway_not_found"), true)
		return
	}
	if g.Status != storage.GiveawayOpen {
		respond(s, i, lang.T("giveaway_already_ended"), true)
		return
	}

	if !finishGiveaway(s, g) {
		respond(s, i, lang.T("giveaway_already_ended"), true)
		return
	}
	respond(s, i, "Giveaway ended.", true)
}

func handleGiveawayReroll(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)
	messageID := om["message-id"].StringValue()

	g, err := storage.DB.GetGiveaway(messageID)
	if err != nil || g == nil {
		respond(s, i, lang.T("giveaway_not_found"), true)
		return
	}
	if g.Status != storage.GiveawayFinished {
		respond(s, i, lang.T("giveaway_reroll_only_finished"), true)
		return
	}

	entrants, err := storage.DB.ListEntrants(messageID)
	if err != nil || len(entrants) == 0 {
		respond(s, i, lang.T("giveaway_no_entries"), true)
		return
	}

	winners := pickWinners(entrants, g.WinnersCount)
	_ = storage.DB.SetGiveawayWinners(messageID, winners)

	_, _ = s.ChannelMessageSend(g.ChannelID, lang.T("giveaway_rerolled",
		"winners", mentionList(winners), "prize", g.Prize))

	publishEvent(events.KeyGiveawayFinished, events.GiveawayFinished{
		GuildID:   g.GuildID,
		MessageID: g.MessageID,
		Prize:     g.Prize,
		WinnerIDs: winners,
		Entrants:  len(entrants),
		Reroll:    true,
	})

	respond(s, i, "Winners rerolled.", true)
}

func handleGiveawayList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	giveaways, err := storage.DB.ListOpenGiveaways(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to list giveaways: %v", err), true)
		return
	}
	if len(giveaways) == 0 {
		respond(s, i, lang.T("giveaway_none_open"), true)
		return
	}

	var sb strings.Builder
	for _, g := range giveaways {
		count, _ := storage.DB.CountEntries(g.MessageID)
		sb.WriteString(fmt.Sprintf("• `%s` — **%s** in <#%s>, %d entries, ends <t:%d:R>\n",
			g.MessageID, g.Prize, g.ChannelID, count, g.EndTime.Unix()))
	}
	respond(s, i, sb.String(), true)
}

func handleGiveawayConfig(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	om := subOptMap(opts)

	gc, err := storage.DB.GetGuildConfig(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load config: %v", err), true)
		return
	}

	if o, ok := om["color"]; ok {
		color, err := parseHexColor(o.StringValue())
		if err != nil {
			respond(s, i, "Invalid colour. Use hex like `#3498db`.", true)
			return
		}
		gc.GiveawayColor = color
	}
	if o, ok := om["emoji"]; ok {
		gc.GiveawayEmoji = o.StringValue()
	}

	if err := storage.DB.SaveGuildConfig(gc); err != nil {
		respond(s, i, fmt.Sprintf("Failed to save config: %v", err), true)
		return
	}
	respond(s, i, fmt.Sprintf("Giveaway config updated: colour `#%06x`, emoji %s.", gc.EffectiveGiveawayColor(), gc.EffectiveGiveawayEmoji()), true)
}

// StartGiveawayScanner polls for due giveaways until stop is closed. Polling
// over persisted rows also picks up giveaways that expired while the process
// was down.
func StartGiveawayScanner(s *discordgo.Session, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				due, err := storage.DB.DueGiveaways(time.Now())
				if err != nil {
					log.Printf("[GIVEAWAY] Scan failed: %v", err)
					continue
				}
				for idx := range due {
					finishGiveaway(s, &due[idx])
				}
			}
		}
	}()
}

// finishGiveaway flips the status and, only when this caller won the flip,
// draws and announces winners. Returns false when the giveaway was already
// finished by another path.
func finishGiveaway(s *discordgo.Session, g *storage.Giveaway) bool {
	ok, err := storage.DB.FinishGiveaway(g.MessageID)
	if err != nil {
		log.Printf("[GIVEAWAY] Finish %s failed: %v", g.MessageID, err)
		return false
	}
	if !ok {
		return false
	}

	entrants, err := storage.DB.ListEntrants(g.MessageID)
	if err != nil {
		log.Printf("[GIVEAWAY] Entrant load %s failed: %v", g.MessageID, err)
		entrants = nil
	}

	gc, _ := storage.DB.GetGuildConfig(g.GuildID)
	title := g.Title
	if title == "" {
		title = lang.T("giveaway_title")
	}
	color := storage.DefaultGiveawayColor
	if gc != nil {
		color = gc.EffectiveGiveawayColor()
	}

	endedEmbed := &discordgo.MessageEmbed{
		Title:       lang.T("giveaway_ended_title"),
		Description: fmt.Sprintf("**%s**\n%s: %s\n%s: %d", title, lang.T("giveaway_prize"), g.Prize, lang.T("giveaway_entries"), len(entrants)),
		Color:       color,
	}
	_, _ = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: g.ChannelID,
		ID:      g.MessageID,
		Embeds:  &[]*discordgo.MessageEmbed{endedEmbed},
		Components: &[]discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    lang.T("giveaway_join"),
						Style:    discordgo.SecondaryButton,
						CustomID: "giveaway_join",
						Disabled: true,
					},
				},
			},
		},
	})

	var winners []string
	if len(entrants) == 0 {
		_, _ = s.ChannelMessageSend(g.ChannelID, lang.T("giveaway_no_entries"))
	} else {
		winners = pickWinners(entrants, g.WinnersCount)
		if err := storage.DB.SetGiveawayWinners(g.MessageID, winners); err != nil {
			log.Printf("[GIVEAWAY] Winner save %s failed: %v", g.MessageID, err)
		}
		_, _ = s.ChannelMessageSend(g.ChannelID, lang.T("giveaway_winner_announce",
			"winners", mentionList(winners), "prize", g.Prize))
	}

	publishEvent(events.KeyGiveawayFinished, events.GiveawayFinished{
		GuildID:   g.GuildID,
		MessageID: g.MessageID,
		Prize:     g.Prize,
		WinnerIDs: winners,
		Entrants:  len(entrants),
	})

	log.Printf("[GIVEAWAY] %s finished, %d entrants, %d winner(s)", g.MessageID, len(entrants), len(winners))
	return true
}

// pickWinners samples count distinct entrants without replacement.
func pickWinners(entrants []string, count int) []string {
	if count >= len(entrants) {
		out := make([]string, len(entrants))
		copy(out, entrants)
		return out
	}
	shuffled := make([]string, len(entrants))
	copy(shuffled, entrants)
	rand.Shuffle(len(shuffled), func(a, b int) {
		shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
	})
	return shuffled[:count]
}

func mentionList(ids []string) string {
	mentions := make([]string, len(ids))
	for idx, id := range ids {
		mentions[idx] = fmt.Sprintf("<@%s>", id)
	}
	return strings.Join(mentions, ", ")
}
