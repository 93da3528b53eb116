package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDB mirrors the SQLite backend collection-for-table. Numeric ids that
// SQLite hands out via AUTOINCREMENT come from a counters collection here.
type MongoDB struct {
	URI    string
	DBName string

	client      *mongo.Client
	config      *mongo.Collection
	categories  *mongo.Collection
	tickets     *mongo.Collection
	ratings     *mongo.Collection
	giveaways   *mongo.Collection
	entries     *mongo.Collection
	presence    *mongo.Collection
	templates   *mongo.Collection
	punishments *mongo.Collection
	counters    *mongo.Collection
}

func (m *MongoDB) Init() error {
	if m.URI == "" || m.DBName == "" {
		return fmt.Errorf("database.mongodb.uri and database.mongodb.database must be set in config.json to use driver=mongodb")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(m.URI))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	mdb := client.Database(m.DBName)
	m.client = client
	m.config = mdb.Collection("config")
	m.categories = mdb.Collection("ticket_categories")
	m.tickets = mdb.Collection("active_tickets")
	m.ratings = mdb.Collection("staff_ratings")
	m.giveaways = mdb.Collection("giveaways")
	m.entries = mdb.Collection("giveaway_entries")
	m.presence = mdb.Collection("presence")
	m.templates = mdb.Collection("embed_templates")
	m.punishments = mdb.Collection("punishments")
	m.counters = mdb.Collection("counters")

	m.config.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guild_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	m.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "guild_id", Value: 1}},
	})
	m.tickets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "channel_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	m.ratings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "channel_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	m.giveaways.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "message_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	m.giveaways.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_time", Value: 1}},
	})
	m.entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "giveaway_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	m.templates.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	m.punishments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}},
	})

	log.Printf("[DB] MongoDB initialised (%s)", m.DBName)
	return nil
}

func (m *MongoDB) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (m *MongoDB) nextID(name string) (int64, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Seq, err
}

func (m *MongoDB) EnsureGuild(guildID string) error {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := m.config.UpdateOne(
		ctx,
		bson.M{"guild_id": guildID},
		bson.M{"$setOnInsert": GuildConfig{GuildID: guildID}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (m *MongoDB) GetGuildConfig(guildID string) (*GuildConfig, error) {
	if err := m.EnsureGuild(guildID); err != nil {
		return nil, err
	}
	ctx, cancel := opCtx()
	defer cancel()

	var gc GuildConfig
	if err := m.config.FindOne(ctx, bson.M{"guild_id": guildID}).Decode(&gc); err != nil {
		return nil, fmt.Errorf("config doc: %w", err)
	}
	return &gc, nil
}

func (m *MongoDB) SaveGuildConfig(gc *GuildConfig) error {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := m.config.ReplaceOne(
		ctx,
		bson.M{"guild_id": gc.GuildID},
		gc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoDB) NextTicketNumber(guildID string) (int, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var doc struct {
		TicketCount int `bson:"ticket_count"`
	}
	err := m.config.FindOneAndUpdate(
		ctx,
		bson.M{"guild_id": guildID},
		bson.M{"$inc": bson.M{"ticket_count": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.TicketCount, err
}

func (m *MongoDB) AddTicketCategory(c TicketCategory) (int64, error) {
	id, err := m.nextID("ticket_categories")
	if err != nil {
		return 0, err
	}
	c.ID = id

	ctx, cancel := opCtx()
	defer cancel()
	_, err = m.categories.InsertOne(ctx, c)
	return id, err
}

func (m *MongoDB) UpdateTicketCategory(c TicketCategory) error {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := m.categories.ReplaceOne(ctx, bson.M{"id": c.ID, "guild_id": c.GuildID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (m *MongoDB) DeleteTicketCategory(guildID string, id int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := m.categories.DeleteOne(ctx, bson.M{"id": id, "guild_id": guildID})
	return err
}

func (m *MongoDB) GetTicketCategory(guildID string, id int64) (*TicketCategory, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var c TicketCategory
	err := m.categories.FindOne(ctx, bson.M{"id": id, "guild_id": guildID}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *MongoDB) ListTicketCategories(guildID string) ([]TicketCategory, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cursor, err := m.categories.Find(ctx, bson.M{"guild_id": guildID},
		options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var cats []TicketCategory
	return cats, cursor.All(ctx, &cats)
}

func (m *MongoDB) CreateTicket(t Ticket) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := m.tickets.InsertOne(ctx, t)
	return err
}

func (m *MongoDB) GetTicket(channelID string) (*Ticket, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var t Ticket
	err := m.tickets.FindOne(ctx, bson.M{"channel_id": channelID}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (m *MongoDB) ClaimTicket(channelID, staffID string) (bool, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := m.tickets.UpdateOne(
		ctx,
		bson.M{"channel_id": channelID, "claimed_by": ""},
		bson.M{"$set": bson.M{"claimed_by": staffID}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (m *MongoDB) SetTicketVoiceChannel(channelID, voiceID string) error {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := m.tickets.UpdateOne(
		ctx,
		bson.M{"channel_id": channelID},
		bson.M{"$set": bson.M{"voice_channel_id": voiceID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (m *MongoDB) DeleteTicket(channelID string) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := m.tickets.DeleteOne(ctx, bson.M{"channel_id": channelID})
	return err
}

func (m *MongoDB) ListOpenTickets(guildID string) ([]Ticket, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cursor, err := m.tickets.Find(ctx, bson.M{"guild_id": guildID},
		options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tickets []Ticket
	return tickets, cursor.All(ctx, &tickets)
}

func (m *MongoDB) CountUserTickets(guildID, userID string) (int, error) {
	ctx, cancel := opCtx()
	defer cancel()

	n, err := m.tickets.CountDocuments(ctx, bson.M{"guild_id": guildID, "user_id": userID})
	return int(n), err
}

func (m *MongoDB) SaveRating(r StaffRating) error {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := m.ratings.ReplaceOne(
		ctx,
		bson.M{"guild_id": r.GuildID, "channel_id": r.ChannelID},
		r,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoDB) StaffRatingSummaries(guildID string) ([]RatingSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := m.ratings.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"guild_id": guildID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     "$staff_id",
			"count":   bson.M{"$sum": 1},
			"average": bson.M{"$avg": "$stars"},
		}}},
		{{Key: "$sort", Value: bson.M{"average": -1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sums []RatingSummary
	for cursor.Next(ctx) {
		var doc struct {
			StaffID string  `bson:"_id"`
			Count   int     `bson:"count"`
			Average float64 `bson:"average"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		sums = append(sums, RatingSummary{StaffID: doc.StaffID, Count: doc.Count, Average: doc.Average})
	}
	return sums, cursor.Err()
}

func (m *MongoDB) AddPunishment(p Punishment) (int64, error) {
	id, err := m.nextID("punishments")
	if err != nil {
		return 0, err
	}
	p.ID = id

	ctx, cancel := opCtx()
	defer cancel()
	_, err = m.punishments.InsertOne(ctx, p)
	return id, err
}

func (m *MongoDB) ListPunishments(guildID, userID string, limit int) ([]Punishment, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cursor, err := m.punishments.Find(ctx,
		bson.M{"guild_id": guildID, "user_id": userID},
		options.Find().SetSort(bson.D{{Key: "id", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Punishment
	return out, cursor.All(ctx, &out)
}

func (m *MongoDB) ClearPunishments(guildID, userID string) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := m.punishments.DeleteMany(ctx, bson.M{"guild_id": guildID, "user_id": userID})
	return err
}

func (m *MongoDB) CreateGiveaway(g Giveaway) error {
	ctx, cancel := opCtx()
	defer cancel()

	g.Status = GiveawayOpen
	_, err := m.giveaways.InsertOne(ctx, g)
	return err
}

func (m *MongoDB) GetGiveaway(messageID string) (*Giveaway, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var g Giveaway
	err := m.giveaways.FindOne(ctx, bson.M{"message_id": messageID}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (m *MongoDB) findGiveaways(filter bson.M) ([]Giveaway, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := m.giveaways.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "end_time", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Giveaway
	return out, cursor.All(ctx, &out)
}

func (m *MongoDB) ListOpenGiveaways(guildID string) ([]Giveaway, error) {
	return m.findGiveaways(bson.M{"guild_id": guildID, "status": GiveawayOpen})
}

func (m *MongoDB) DueGiveaways(now time.Time) ([]Giveaway, error) {
	return m.findGiveaways(bson.M{"status": GiveawayOpen, "end_time": bson.M{"$lte": now}})
}

func (m *MongoDB) FinishGiveaway(messageID string) (bool, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := m.giveaways.UpdateOne(
		ctx,
		bson.M{"message_id": messageID, "status": GiveawayOpen},
		bson.M{"$set": bson.M{"status": GiveawayFinished}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (m *MongoDB) SetGiveawayWinners(messageID string, winnerIDs []string) error {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := m.giveaways.UpdateOne(
		ctx,
		bson.M{"message_id": messageID},
		bson.M{"$set": bson.M{"winner_ids": winnerIDs}},
	)
	return err
}

func (m *MongoDB) ToggleEntry(giveawayID, userID string) (bool, error) {
	ctx, cancel := opCtx()
	defer cancel()

	res, err := m.entries.DeleteOne(ctx, bson.M{"giveaway_id": giveawayID, "user_id": userID})
	if err != nil {
		return false, err
	}
	if res.DeletedCount > 0 {
		return false, nil
	}
	_, err = m.entries.InsertOne(ctx, bson.M{"giveaway_id": giveawayID, "user_id": userID})
	return err == nil, err
}

func (m *MongoDB) CountEntries(giveawayID string) (int, error) {
	ctx, cancel := opCtx()
	defer cancel()

	n, err := m.entries.CountDocuments(ctx, bson.M{"giveaway_id": giveawayID})
	return int(n), err
}

func (m *MongoDB) ListEntrants(giveawayID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := m.entries.Find(ctx, bson.M{"giveaway_id": giveawayID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []string
	for cursor.Next(ctx) {
		var doc struct {
			UserID string `bson:"user_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		users = append(users, doc.UserID)
	}
	return users, cursor.Err()
}

func (m *MongoDB) AddPresence(p PresenceEntry) (int64, error) {
	id, err := m.nextID("presence")
	if err != nil {
		return 0, err
	}
	p.ID = id

	ctx, cancel := opCtx()
	defer cancel()
	_, err = m.presence.InsertOne(ctx, p)
	return id, err
}

func (m *MongoDB) DeletePresence(guildID string, id int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := m.presence.DeleteOne(ctx, bson.M{"id": id, "guild_id": guildID})
	return err
}

func (m *MongoDB) ListPresences(guildID string) ([]PresenceEntry, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cursor, err := m.presence.Find(ctx, bson.M{"guild_id": guildID},
		options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []PresenceEntry
	return entries, cursor.All(ctx, &entries)
}

func (m *MongoDB) SaveEmbedTemplate(guildID, name, data string) error {
	ctx, cancel := opCtx()
	defer cancel()

	_, err := m.templates.ReplaceOne(
		ctx,
		bson.M{"guild_id": guildID, "name": name},
		bson.M{"guild_id": guildID, "name": name, "data": data},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoDB) GetEmbedTemplate(guildID, name string) (string, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var doc struct {
		Data string `bson:"data"`
	}
	err := m.templates.FindOne(ctx, bson.M{"guild_id": guildID, "name": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	return doc.Data, err
}

func (m *MongoDB) DeleteEmbedTemplate(guildID, name string) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := m.templates.DeleteOne(ctx, bson.M{"guild_id": guildID, "name": name})
	return err
}

func (m *MongoDB) ListEmbedTemplates(guildID string) ([]string, error) {
	ctx, cancel := opCtx()
	defer cancel()

	cursor, err := m.templates.Find(ctx, bson.M{"guild_id": guildID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		names = append(names, doc.Name)
	}
	return names, cursor.Err()
}
