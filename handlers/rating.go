package handlers

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"community-bot/events"
	"community-bot/lang"
	"community-bot/storage"

	"github.com/bwmarrin/discordgo"
)

func ratingCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "ratings",
			Description:              "Staff rating statistics",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "stats", Description: "Show rating count and average per staff member",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
	}
}

func handleRatingsCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need admin permissions to view rating stats.", true)
		return
	}

	sums, err := storage.DB.StaffRatingSummaries(i.GuildID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to load ratings: %v", err), true)
		return
	}
	if len(sums) == 0 {
		respond(s, i, "No ratings recorded yet.", true)
		return
	}

	var sb strings.Builder
	for _, r := range sums {
		sb.WriteString(fmt.Sprintf("<@%s> — %.2f ⭐ (%d rating(s))\n", r.StaffID, r.Average, r.Count))
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Staff Ratings",
		Description: sb.String(),
		Color:       storage.DefaultEmbedColor,
	}, true)
}

// sendRatingDM asks the ticket opener to rate the staff member who claimed the
// ticket. Unclaimed tickets get no rating prompt.
func sendRatingDM(s *discordgo.Session, ticket *storage.Ticket) {
	if ticket.ClaimedBy == "" {
		return
	}

	dm, err := s.UserChannelCreate(ticket.UserID)
	if err != nil {
		log.Printf("[RATING] Could not open DM with %s: %v", ticket.UserID, err)
		return
	}

	guildName := ticket.GuildID
	if g, err := s.Guild(ticket.GuildID); err == nil {
		guildName = g.Name
	}

	buttons := make([]discordgo.MessageComponent, 0, 5)
	for stars := 1; stars <= 5; stars++ {
		buttons = append(buttons, discordgo.Button{
			Label:    strings.Repeat("⭐", stars),
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("rate:%s:%s:%s:%d", ticket.GuildID, ticket.ChannelID, ticket.ClaimedBy, stars),
		})
	}

	_, err = s.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       lang.T("rating_dm_title"),
			Description: lang.T("rating_dm_body", "guild", guildName),
			Color:       storage.DefaultEmbedColor,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: buttons},
		},
	})
	if err != nil {
		log.Printf("[RATING] DM send failed for %s: %v", ticket.UserID, err)
	}
}

// handleRatingButton fires in DMs. Re-clicking a star replaces the previous
// rating for the same ticket.
func handleRatingButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	parts := strings.Split(i.MessageComponentData().CustomID, ":")
	if len(parts) != 5 {
		return
	}
	guildID, channelID, staffID := parts[1], parts[2], parts[3]
	stars, err := strconv.Atoi(parts[4])
	if err != nil || stars < 1 || stars > 5 {
		return
	}

	rating := storage.StaffRating{
		GuildID:   guildID,
		ChannelID: channelID,
		StaffID:   staffID,
		UserID:    interactionUser(i).ID,
		Stars:     stars,
		RatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := storage.DB.SaveRating(rating); err != nil {
		respond(s, i, fmt.Sprintf("Failed to save your rating: %v", err), true)
		return
	}

	starStr := strconv.Itoa(stars)
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       lang.T("rating_dm_title"),
				Description: lang.T("rating_thanks", "stars", starStr),
				Color:       storage.DefaultEmbedColor,
			}},
			Components: []discordgo.MessageComponent{},
		},
	})

	logRating(s, rating)
	publishEvent(events.KeyRatingReceived, events.RatingReceived{
		GuildID:   guildID,
		ChannelID: channelID,
		StaffID:   staffID,
		Stars:     stars,
	})
}

func logRating(s *discordgo.Session, r storage.StaffRating) {
	gc, err := storage.DB.GetGuildConfig(r.GuildID)
	if err != nil || gc.RatingChannelID == "" {
		return
	}

	desc := fmt.Sprintf("<@%s> rated <@%s>: %s", r.UserID, r.StaffID, strings.Repeat("⭐", r.Stars))
	if sums, err := storage.DB.StaffRatingSummaries(r.GuildID); err == nil {
		for _, sum := range sums {
			if sum.StaffID == r.StaffID {
				desc += fmt.Sprintf("\n\nAverage: **%.2f** over %d rating(s)", sum.Average, sum.Count)
				break
			}
		}
	}

	_, err = s.ChannelMessageSendEmbed(gc.RatingChannelID, &discordgo.MessageEmbed{
		Title:       lang.T("rating_log_title"),
		Description: desc,
		Color:       gc.EffectiveTicketColor(),
		Timestamp:   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[RATING] Log send failed: %v", err)
	}
}
