// internal/probe/retry.go
package probe

import (
	"context"
	"fmt"
	"time"
)

// RetryProber runs Inner up to Attempts times, each attempt bounded by Timeout.
type RetryProber struct {
	Inner    Prober
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

func (r *RetryProber) Probe(ctx context.Context, addr Address) (Info, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		info, err := r.attempt(ctx, addr)
		if err == nil {
			return info, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < attempts-1 && r.Backoff > 0 {
			select {
			case <-ctx.Done():
				return Info{}, fmt.Errorf("%w (after %d attempts)", lastErr, i+1)
			case <-time.After(r.Backoff):
			}
		}
	}
	// annotate so logs show it was a retry series
	return Info{}, fmt.Errorf("%w (after %d attempts)", lastErr, attempts)
}

func (r *RetryProber) attempt(ctx context.Context, addr Address) (Info, error) {
	if r.Timeout <= 0 {
		return r.Inner.Probe(ctx, addr)
	}
	actx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	return r.Inner.Probe(actx, addr)
}
