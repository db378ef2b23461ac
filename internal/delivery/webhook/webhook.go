// Package webhook delivers status payloads through a Discord-compatible
// incoming webhook. Messages are created with ?wait=true so the response
// carries the message id, and edited with PATCH /messages/{id}.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/hamed0406/serverwatch/internal/delivery"
	"github.com/hamed0406/serverwatch/internal/delivery/discord"
	"github.com/hamed0406/serverwatch/internal/render"
)

// Destination is the handle destination recorded for webhook messages.
const Destination = "webhook"

type Channel struct {
	URL    string
	Client *http.Client
}

// New returns nil for an empty URL.
func New(webhookURL string) *Channel {
	if webhookURL == "" {
		return nil
	}
	return &Channel{
		URL:    strings.TrimRight(webhookURL, "/"),
		Client: &http.Client{}, // calls are bounded by the tracker's ctx
	}
}

type messageBody struct {
	Embeds []*discordgo.MessageEmbed `json:"embeds"`
}

type messageResponse struct {
	ID string `json:"id"`
}

func (c *Channel) Create(ctx context.Context, _ string, p render.Payload) (delivery.Handle, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return delivery.Handle{}, fmt.Errorf("webhook url: %w", err)
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()

	resp, err := c.do(ctx, http.MethodPost, u.String(), p)
	if err != nil {
		return delivery.Handle{}, err
	}
	defer resp.Body.Close()

	var m messageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&m); err != nil {
		return delivery.Handle{}, fmt.Errorf("decode webhook response: %w", err)
	}
	if m.ID == "" {
		return delivery.Handle{}, errors.New("webhook response has no message id")
	}
	return delivery.Handle{Destination: Destination, ID: m.ID}, nil
}

// Edit keeps the webhook's query (e.g. thread_id) so edits reach the same thread.
func (c *Channel) Edit(ctx context.Context, h delivery.Handle, p render.Payload) error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	u = u.JoinPath("messages", h.ID)

	resp, err := c.do(ctx, http.MethodPatch, u.String(), p)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Channel) do(ctx context.Context, method, target string, p render.Payload) (*http.Response, error) {
	body, err := json.Marshal(messageBody{Embeds: []*discordgo.MessageEmbed{discord.Embed(p)}})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, fmt.Errorf("webhook %s returned %s", method, resp.Status)
	}
	return resp, nil
}
