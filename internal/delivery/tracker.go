package delivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/domain"
	"github.com/hamed0406/serverwatch/internal/render"
)

const defaultDeliveryTimeout = 10 * time.Second

// Tracker performs at most one delivery per call: edit when a handle for the
// same destination exists, otherwise create. A failed edit drops the handle
// and falls through to create. Nothing is retried.
type Tracker struct {
	logger      *zap.Logger
	channel     Channel
	handles     HandleStore
	timeout     time.Duration
	destination string
}

type TrackerOption func(*Tracker)

// WithTimeout bounds each channel call.
func WithTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithDefaultDestination is used for targets without their own channel,
// e.g. when every message goes through one webhook.
func WithDefaultDestination(dest string) TrackerOption {
	return func(t *Tracker) { t.destination = dest }
}

func NewTracker(logger *zap.Logger, ch Channel, handles HandleStore, opts ...TrackerOption) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handles == nil {
		handles = NewMemoryHandles()
	}
	t := &Tracker{logger: logger, channel: ch, handles: handles, timeout: defaultDeliveryTimeout}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) Deliver(ctx context.Context, target domain.Target, p render.Payload) (Outcome, error) {
	dest := target.Channel
	if dest == "" {
		dest = t.destination
	}
	if dest == "" {
		return 0, ErrNoDestination
	}

	h, ok := t.handles.Get(target.ID)
	if ok && h.Destination != dest {
		// the target moved to another channel; the old message stays where it is
		t.handles.Delete(target.ID)
		ok = false
	}

	outcome := Created
	if ok {
		err := t.edit(ctx, h, p)
		if err == nil {
			return Edited, nil
		}
		t.logger.Warn("delivery_edit_failed",
			zap.String("target_id", string(target.ID)),
			zap.String("message_id", h.ID),
			zap.Error(err),
		)
		t.handles.Delete(target.ID)
		outcome = Recreated
	}

	nh, err := t.create(ctx, dest, p)
	if err != nil {
		return 0, fmt.Errorf("create message in %s: %w", dest, err)
	}
	t.handles.Put(target.ID, nh)
	return outcome, nil
}

// Forget drops the handle of a target so the next delivery creates a message.
func (t *Tracker) Forget(id domain.TargetID) { t.handles.Delete(id) }

func (t *Tracker) edit(ctx context.Context, h Handle, p render.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.channel.Edit(ctx, h, p)
}

func (t *Tracker) create(ctx context.Context, dest string, p render.Payload) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	h, err := t.channel.Create(ctx, dest, p)
	if err != nil {
		return Handle{}, err
	}
	if h.Destination == "" {
		h.Destination = dest
	}
	return h, nil
}
