// Package discord delivers status payloads as embeds through a Discord bot.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hamed0406/serverwatch/internal/delivery"
	"github.com/hamed0406/serverwatch/internal/render"
)

// Channel sends and edits channel messages over the Discord REST API.
type Channel struct {
	session *discordgo.Session
}

// New creates a bot session. The gateway is not opened; only REST calls are made.
func New(token string) (*Channel, error) {
	if token == "" {
		return nil, errors.New("discord: token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	// the tracker owns retries (there are none); fail fast instead of sleeping on 429s
	s.ShouldRetryOnRateLimit = false
	return &Channel{session: s}, nil
}

func (c *Channel) Create(ctx context.Context, destination string, p render.Payload) (delivery.Handle, error) {
	msg, err := c.session.ChannelMessageSendEmbed(destination, Embed(p), discordgo.WithContext(ctx))
	if err != nil {
		return delivery.Handle{}, err
	}
	return delivery.Handle{Destination: destination, ID: msg.ID}, nil
}

func (c *Channel) Edit(ctx context.Context, h delivery.Handle, p render.Payload) error {
	_, err := c.session.ChannelMessageEditEmbed(h.Destination, h.ID, Embed(p), discordgo.WithContext(ctx))
	return err
}

func (c *Channel) Close() error { return c.session.Close() }

// Embed maps a payload onto a Discord embed.
func Embed(p render.Payload) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(p.Fields))
	for _, f := range p.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	e := &discordgo.MessageEmbed{
		Title:  p.Title,
		Color:  p.Color,
		Fields: fields,
	}
	if p.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: p.Footer}
	}
	if !p.Timestamp.IsZero() {
		e.Timestamp = p.Timestamp.UTC().Format(time.RFC3339)
	}
	return e
}
