// Package delivery decides, per target, whether a rendered payload edits the
// previously delivered message or is sent as a new one.
package delivery

import (
	"context"
	"errors"

	"github.com/hamed0406/serverwatch/internal/render"
)

// ErrNoDestination is returned for a target without a delivery channel.
var ErrNoDestination = errors.New("delivery: target has no destination")

// Handle addresses a previously delivered message.
type Handle struct {
	Destination string `json:"destination"`
	ID          string `json:"id"`
}

func (h Handle) IsZero() bool { return h.ID == "" }

// Channel is a chat transport. Both calls must honor ctx.
type Channel interface {
	Create(ctx context.Context, destination string, p render.Payload) (Handle, error)
	Edit(ctx context.Context, h Handle, p render.Payload) error
}

type Outcome int

const (
	Created Outcome = iota + 1
	Edited
	// Recreated means the edit failed and a fresh message replaced the handle.
	Recreated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Edited:
		return "edited"
	case Recreated:
		return "recreated"
	default:
		return "none"
	}
}
