// Package render turns a status record into a chat notification payload.
// Rendering is a pure function of the target and the record.
package render

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/hamed0406/serverwatch/internal/domain"
)

const (
	ColorOnline  = 0x00ff00
	ColorOffline = 0xff0000

	emojiOnline  = "🟢"
	emojiOffline = "🔴"
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Payload is a channel-neutral rich message. Delivery adapters map it onto
// their own message format.
type Payload struct {
	Title     string    `json:"title"`
	Color     int       `json:"color"`
	Status    string    `json:"status"`
	Fields    []Field   `json:"fields"`
	Footer    string    `json:"footer"`
	Timestamp time.Time `json:"timestamp"`
}

// Field returns the value of the field labelled name.
func (p Payload) Field(name string) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

type Renderer struct {
	locale string
	l      labels
}

// NewRenderer picks the closest supported language for locale; unknown
// locales render in English.
func NewRenderer(locale string) *Renderer {
	tag := match(locale)
	return &Renderer{locale: tag.String(), l: catalog[tag]}
}

// Locale is the language the renderer resolved to.
func (r *Renderer) Locale() string { return r.locale }

// Render builds the payload for rec. It reads no clock: the relative
// timestamp and the payload timestamp both come from rec.ObservedAt.
func (r *Renderer) Render(t domain.Target, rec domain.StatusRecord) Payload {
	color, emoji := ColorOffline, emojiOffline
	if rec.Online() {
		color, emoji = ColorOnline, emojiOnline
	}
	status := strings.ToUpper(string(rec.Reachability))

	name := clean(rec.Name)
	if name == "" {
		name = clean(t.DisplayName())
	}

	fields := []Field{
		{Name: r.l.name, Value: name, Inline: true},
		{Name: r.l.mapName, Value: orNA(clean(rec.Map)), Inline: true},
		{Name: r.l.players, Value: rec.Occupancy(), Inline: true},
		{Name: r.l.game, Value: orNA(clean(rec.Game)), Inline: true},
		{Name: r.l.status, Value: status, Inline: true},
		{Name: r.l.updated, Value: fmt.Sprintf("<t:%d:R>", rec.ObservedAt.Unix()), Inline: true},
	}
	if rec.Online() && rec.Latency > 0 {
		fields = append(fields, Field{Name: r.l.ping, Value: fmt.Sprintf("%dms", rec.Latency.Milliseconds()), Inline: true})
	}
	if rec.Error != "" {
		fields = append(fields, Field{Name: r.l.errText, Value: rec.Error})
	}

	return Payload{
		Title:     fmt.Sprintf("%s %s - %s", emoji, r.l.title, clean(t.DisplayName())),
		Color:     color,
		Status:    status,
		Fields:    fields,
		Footer:    fmt.Sprintf("%s: %s:%d", r.l.footer, t.Host, t.Port),
		Timestamp: rec.ObservedAt.UTC(),
	}
}

// clean NFC-normalizes names reported by game servers, which are free text.
func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func orNA(s string) string {
	if s == "" {
		return domain.NotAvailable
	}
	return s
}
