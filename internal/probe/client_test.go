package probe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/cache"
	"github.com/hamed0406/serverwatch/internal/domain"
)

type testSettings struct {
	timeout time.Duration
	ttl     time.Duration
}

func (s testSettings) ProbeTimeout() time.Duration { return s.timeout }
func (s testSettings) CacheTTL() time.Duration     { return s.ttl }

var defaultSettings = testSettings{timeout: time.Second, ttl: time.Minute}

type brokenCache struct{}

func (brokenCache) Get(context.Context, domain.TargetID) (domain.StatusRecord, bool, error) {
	return domain.StatusRecord{}, false, errors.New("connection reset")
}
func (brokenCache) Set(context.Context, domain.TargetID, domain.StatusRecord, time.Duration) error {
	return errors.New("connection reset")
}
func (brokenCache) Invalidate(context.Context, domain.TargetID) error { return nil }

func arena() domain.Target {
	return domain.Target{ID: "arena", Name: "Arena", Host: "10.0.0.5", Port: 27015, Active: true}
}

func countingProber(calls *atomic.Int32, info Info, err error) Prober {
	return ProberFunc(func(ctx context.Context, addr Address) (Info, error) {
		calls.Add(1)
		return info, err
	})
}

func TestClient_LiveThenCached(t *testing.T) {
	var calls atomic.Int32
	p := countingProber(&calls, Info{Name: "Arena #1", Map: "de_dust2", Players: 12, MaxPlayers: 20}, nil)
	c := NewClient(zap.NewNop(), p, cache.NewMemory(), defaultSettings)

	rec, src, err := c.Status(context.Background(), arena())
	if err != nil {
		t.Fatal(err)
	}
	if src != SourceLive || !rec.Online() || rec.Occupancy() != "12/20" {
		t.Fatalf("unexpected first result: %v %+v", src, rec)
	}

	for i := 0; i < 5; i++ {
		again, src, err := c.Status(context.Background(), arena())
		if err != nil {
			t.Fatal(err)
		}
		if src != SourceCache {
			t.Fatalf("want cache hit, got %v", src)
		}
		if again != rec {
			t.Fatalf("cached record differs: %+v vs %+v", again, rec)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("want exactly one probe within ttl, got %d", n)
	}
}

func TestClient_FillsMissingFields(t *testing.T) {
	var calls atomic.Int32
	c := NewClient(zap.NewNop(), countingProber(&calls, Info{Players: 1, MaxPlayers: 10}, nil), nil, defaultSettings,
		WithDefaultGame("Team Fortress 2"))

	rec, _, err := c.Status(context.Background(), arena())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "Arena" || rec.Map != "Unknown Map" || rec.Game != "Team Fortress 2" || rec.Version != "Unknown" {
		t.Fatalf("unexpected defaults: %+v", rec)
	}
}

func TestClient_FailureFallsBackAndIsNotCached(t *testing.T) {
	var calls atomic.Int32
	p := countingProber(&calls, Info{}, context.DeadlineExceeded)
	mem := cache.NewMemory()
	c := NewClient(zap.NewNop(), p, mem, defaultSettings, WithRetry(2, 0))

	rec, src, err := c.Status(context.Background(), arena())
	if err != nil {
		t.Fatal(err)
	}
	if src != SourceFallback {
		t.Fatalf("want fallback, got %v", src)
	}
	if rec.Online() || rec.Players != 0 || rec.MaxPlayers != 0 {
		t.Fatalf("fallback must be offline with zero occupancy: %+v", rec)
	}
	if rec.Map != domain.NotAvailable || rec.Version != domain.NotAvailable {
		t.Fatalf("fallback map/version should be N/A: %+v", rec)
	}
	if rec.Name != "Arena" || rec.Game != "Counter-Strike 2" {
		t.Fatalf("unexpected fallback labels: %+v", rec)
	}
	if rec.Error != "server did not respond in time" {
		t.Fatalf("unexpected error summary %q", rec.Error)
	}
	if mem.Len() != 0 {
		t.Fatalf("fallback record must not be cached")
	}

	if _, src, _ := c.Status(context.Background(), arena()); src != SourceFallback {
		t.Fatalf("second call should probe again, got %v", src)
	}
	if n := calls.Load(); n != 4 {
		t.Fatalf("want 2 attempts per call, got %d", n)
	}
}

func TestClient_PanicBecomesFallback(t *testing.T) {
	p := ProberFunc(func(ctx context.Context, addr Address) (Info, error) {
		panic("decoder exploded")
	})
	c := NewClient(zap.NewNop(), p, cache.NewMemory(), defaultSettings, WithRetry(1, 0))

	rec, src, err := c.Status(context.Background(), arena())
	if err != nil {
		t.Fatal(err)
	}
	if src != SourceFallback || rec.Error != "query failed unexpectedly" {
		t.Fatalf("unexpected result: %v %+v", src, rec)
	}
}

func TestClient_CacheErrorIsMiss(t *testing.T) {
	var calls atomic.Int32
	p := countingProber(&calls, Info{Name: "Arena", Map: "de_inferno", Players: 3, MaxPlayers: 10}, nil)
	c := NewClient(zap.NewNop(), p, brokenCache{}, defaultSettings)

	rec, src, err := c.Status(context.Background(), arena())
	if err != nil {
		t.Fatal(err)
	}
	if src != SourceLive || !rec.Online() {
		t.Fatalf("want live online record, got %v %+v", src, rec)
	}
}

func TestClient_InvalidTargetIsConfigError(t *testing.T) {
	var calls atomic.Int32
	c := NewClient(zap.NewNop(), countingProber(&calls, Info{}, nil), nil, defaultSettings)

	bad := arena()
	bad.Port = 0
	_, _, err := c.Status(context.Background(), bad)
	var ce *domain.ConfigError
	if !errors.As(err, &ce) || ce.Field != "port" {
		t.Fatalf("want port ConfigError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("invalid target must not be probed")
	}
}

func TestClient_ConcurrentCallsShareOneProbe(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	p := ProberFunc(func(ctx context.Context, addr Address) (Info, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return Info{Name: "Arena", Map: "de_nuke", Players: 5, MaxPlayers: 10}, nil
	})
	c := NewClient(zap.NewNop(), p, cache.NewMemory(), defaultSettings)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.Status(context.Background(), arena()) }()
	<-started
	go func() { defer wg.Done(); c.Status(context.Background(), arena()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("want one shared probe, got %d", n)
	}
}

func TestClient_SharedProbeSurvivesFirstCallerCancel(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	p := ProberFunc(func(ctx context.Context, addr Address) (Info, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return Info{Name: "Arena", Map: "de_nuke", Players: 5, MaxPlayers: 10}, nil
		case <-ctx.Done():
			return Info{}, ctx.Err()
		}
	})
	c := NewClient(zap.NewNop(), p, cache.NewMemory(), defaultSettings, WithRetry(1, 0))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	go c.Status(firstCtx, arena())
	<-started
	cancelFirst()

	type result struct {
		rec domain.StatusRecord
		src Source
	}
	second := make(chan result, 1)
	go func() {
		rec, src, _ := c.Status(context.Background(), arena())
		second <- result{rec, src}
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	got := <-second
	if got.src == SourceFallback || !got.rec.Online() {
		t.Fatalf("second caller should get the live record, got source=%s online=%v", got.src, got.rec.Online())
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("want one shared probe, got %d", n)
	}
}

func TestClient_InvalidateForcesLiveProbe(t *testing.T) {
	var calls atomic.Int32
	p := countingProber(&calls, Info{Name: "Arena", Map: "de_dust2"}, nil)
	c := NewClient(zap.NewNop(), p, cache.NewMemory(), defaultSettings)

	c.Status(context.Background(), arena())
	if err := c.Invalidate(context.Background(), "arena"); err != nil {
		t.Fatal(err)
	}
	if _, src, _ := c.Status(context.Background(), arena()); src != SourceLive {
		t.Fatalf("want live after invalidate, got %v", src)
	}
	if calls.Load() != 2 {
		t.Fatalf("want 2 probes, got %d", calls.Load())
	}
}

func TestClient_QueryOnceBypassesCache(t *testing.T) {
	var calls atomic.Int32
	p := countingProber(&calls, Info{Name: "Arena", Map: "de_dust2", Players: 2, MaxPlayers: 10}, nil)
	mem := cache.NewMemory()
	c := NewClient(zap.NewNop(), p, mem, defaultSettings)

	for i := 0; i < 2; i++ {
		rec, err := c.QueryOnce(context.Background(), "10.0.0.5", 27015)
		if err != nil {
			t.Fatal(err)
		}
		if !rec.Online() {
			t.Fatalf("want online, got %+v", rec)
		}
	}
	if calls.Load() != 2 || mem.Len() != 0 {
		t.Fatalf("QueryOnce must not use the cache: calls=%d cached=%d", calls.Load(), mem.Len())
	}
}

func TestClient_QueryOnceReportsSummary(t *testing.T) {
	var calls atomic.Int32
	c := NewClient(zap.NewNop(), countingProber(&calls, Info{}, ErrNoResponse), nil, defaultSettings, WithRetry(1, 0))

	_, err := c.QueryOnce(context.Background(), "10.0.0.5", 27015)
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("want QueryError, got %v", err)
	}
	if qe.Summary != "server returned an empty response" || !errors.Is(err, ErrNoResponse) {
		t.Fatalf("unexpected query error: %+v", qe)
	}
	if qe.DNSClass != "" {
		t.Fatalf("literal IP should skip dns check, got %q", qe.DNSClass)
	}
}
