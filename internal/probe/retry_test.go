package probe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fake prober you can control
type scriptedProber struct {
	errs  []error
	calls int
}

func (s *scriptedProber) Probe(ctx context.Context, addr Address) (Info, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Info{}, s.errs[i]
	}
	return Info{Name: "ok"}, nil
}

func TestRetryProber_SucceedsAfterRetry(t *testing.T) {
	p := &scriptedProber{errs: []error{errors.New("first fail")}}
	rp := &RetryProber{Inner: p, Attempts: 3, Backoff: 10 * time.Millisecond}

	info, err := rp.Probe(context.Background(), Address{Host: "10.0.0.1", Port: 27015})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if info.Name != "ok" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if p.calls != 2 {
		t.Fatalf("want 2 calls, got %d", p.calls)
	}
}

func TestRetryProber_AllFailAnnotates(t *testing.T) {
	last := errors.New("fail2")
	p := &scriptedProber{errs: []error{errors.New("fail1"), last}}
	rp := &RetryProber{Inner: p, Attempts: 2}

	_, err := rp.Probe(context.Background(), Address{Host: "10.0.0.1", Port: 27015})
	if !errors.Is(err, last) {
		t.Fatalf("want last error wrapped, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Fatalf("want attempt annotation, got %q", err)
	}
}

func TestRetryProber_TimeoutBoundsEachAttempt(t *testing.T) {
	var calls int
	slow := ProberFunc(func(ctx context.Context, addr Address) (Info, error) {
		calls++
		<-ctx.Done()
		return Info{}, ctx.Err()
	})
	rp := &RetryProber{Inner: slow, Attempts: 2, Timeout: 20 * time.Millisecond}

	start := time.Now()
	_, err := rp.Probe(context.Background(), Address{Host: "10.0.0.1", Port: 27015})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 attempts, got %d", calls)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("attempts were not bounded")
	}
}

func TestRetryProber_StopsWhenParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := ProberFunc(func(ctx context.Context, addr Address) (Info, error) {
		cancel()
		return Info{}, errors.New("refused")
	})
	var calls int
	counting := ProberFunc(func(ctx context.Context, addr Address) (Info, error) {
		calls++
		return p(ctx, addr)
	})
	rp := &RetryProber{Inner: counting, Attempts: 5, Backoff: time.Second}

	if _, err := rp.Probe(ctx, Address{Host: "10.0.0.1", Port: 27015}); err == nil {
		t.Fatalf("want error")
	}
	if calls != 1 {
		t.Fatalf("want a single attempt after cancel, got %d", calls)
	}
}
