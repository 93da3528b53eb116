// Package events publishes lifecycle events to an AMQP topic exchange.
// Publishing is best effort and happens only after the local database commit:
// a broker outage can drop an event but never corrupt bot state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	log.Printf("[EVENTS] Connected, publishing to exchange %q", exchange)
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Routing keys.
const (
	KeyTicketClosed     = "ticket.closed"
	KeyGiveawayFinished = "giveaway.finished"
	KeyRatingReceived   = "rating.received"
)

type TicketClosed struct {
	GuildID        string `json:"guild_id"`
	ChannelID      string `json:"channel_id"`
	Number         int    `json:"number"`
	OpenedBy       string `json:"opened_by"`
	ClosedBy       string `json:"closed_by"`
	TranscriptFile string `json:"transcript_file,omitempty"`
	TranscriptURL  string `json:"transcript_url,omitempty"`
	ClosedAt       string `json:"closed_at"`
}

type GiveawayFinished struct {
	GuildID   string   `json:"guild_id"`
	MessageID string   `json:"message_id"`
	Prize     string   `json:"prize"`
	WinnerIDs []string `json:"winner_ids"`
	Entrants  int      `json:"entrants"`
	Reroll    bool     `json:"reroll,omitempty"`
}

type RatingReceived struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	StaffID   string `json:"staff_id"`
	Stars     int    `json:"stars"`
}
