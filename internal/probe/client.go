package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hamed0406/serverwatch/internal/cache"
	"github.com/hamed0406/serverwatch/internal/domain"
)

const (
	defaultAttempts = 2
	defaultBackoff  = 300 * time.Millisecond
	defaultGame     = "Counter-Strike 2"
	unknownMap      = "Unknown Map"
	unknownVersion  = "Unknown"
)

// Settings are the tunables the client reads on every query.
type Settings interface {
	ProbeTimeout() time.Duration
	CacheTTL() time.Duration
}

// Source tells where a record returned by Client.Status came from.
type Source int

const (
	SourceCache Source = iota + 1
	SourceLive
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceLive:
		return "live"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Client obtains status records: cache first, then a live probe through the
// configured protocol adapter, then an offline fallback record.
type Client struct {
	logger   *zap.Logger
	prober   Prober
	cache    cache.Cache
	settings Settings
	attempts int
	backoff  time.Duration
	game     string
	now      func() time.Time
	flight   singleflight.Group
}

type ClientOption func(*Client)

// WithRetry overrides the number of attempts (default 2) and the backoff between them.
func WithRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// WithDefaultGame sets the game label used when a server does not report one.
func WithDefaultGame(game string) ClientOption {
	return func(c *Client) {
		if game != "" {
			c.game = game
		}
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(logger *zap.Logger, prober Prober, c cache.Cache, settings Settings, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := &Client{
		logger:   logger,
		prober:   prober,
		cache:    c,
		settings: settings,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		game:     defaultGame,
		now:      time.Now,
	}
	for _, o := range opts {
		o(cl)
	}
	return cl
}

type liveResult struct {
	rec    domain.StatusRecord
	source Source
}

// Status returns the record for t. The only error it returns is a
// *domain.ConfigError for a target that cannot be probed at all; probe
// failures come back as an offline record with Source == SourceFallback.
func (c *Client) Status(ctx context.Context, t domain.Target) (domain.StatusRecord, Source, error) {
	if err := t.Validate(); err != nil {
		return domain.StatusRecord{}, 0, err
	}

	if rec, ok := c.cached(ctx, t.ID); ok {
		c.logger.Debug("status_cache_hit", zap.String("target_id", string(t.ID)))
		return rec, SourceCache, nil
	}

	// Concurrent callers for one target share a single live probe. The shared
	// probe ignores the first caller's cancellation; RetryProber still bounds
	// every attempt with the probe timeout.
	shared := context.WithoutCancel(ctx)
	v, _, _ := c.flight.Do(string(t.ID), func() (any, error) {
		return c.live(shared, t), nil
	})
	res := v.(liveResult)
	return res.rec, res.source, nil
}

func (c *Client) cached(ctx context.Context, id domain.TargetID) (domain.StatusRecord, bool) {
	if c.cache == nil {
		return domain.StatusRecord{}, false
	}
	rec, ok, err := c.cache.Get(ctx, id)
	if err != nil {
		c.logger.Warn("status_cache_unavailable", zap.String("target_id", string(id)), zap.Error(err))
		return domain.StatusRecord{}, false
	}
	return rec, ok
}

func (c *Client) live(ctx context.Context, t domain.Target) liveResult {
	info, err := c.probe(ctx, Address{Host: t.Host, Port: t.Port, Secret: t.Secret})
	if err != nil {
		c.logger.Warn("probe_failed",
			zap.String("target_id", string(t.ID)),
			zap.String("addr", t.Addr()),
			zap.Error(err),
		)
		// not cached: a transient failure must not suppress the next attempt
		rec := domain.NewOfflineRecord(t.DisplayName(), c.game, Summarize(err), c.now().UTC())
		return liveResult{rec: rec, source: SourceFallback}
	}

	rec := c.online(t, info)
	if c.cache != nil {
		if err := c.cache.Set(ctx, t.ID, rec, c.settings.CacheTTL()); err != nil {
			c.logger.Warn("status_cache_write_failed", zap.String("target_id", string(t.ID)), zap.Error(err))
		}
	}
	return liveResult{rec: rec, source: SourceLive}
}

// probe runs the adapter with retries and converts a panic into an error.
func (c *Client) probe(ctx context.Context, addr Address) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errProbePanic, r)
		}
	}()
	rp := &RetryProber{
		Inner:    c.prober,
		Attempts: c.attempts,
		Timeout:  c.settings.ProbeTimeout(),
		Backoff:  c.backoff,
	}
	return rp.Probe(ctx, addr)
}

func (c *Client) online(t domain.Target, info Info) domain.StatusRecord {
	name := info.Name
	if name == "" {
		name = t.DisplayName()
	}
	m := info.Map
	if m == "" {
		m = unknownMap
	}
	game := info.Game
	if game == "" {
		game = c.game
	}
	version := info.Version
	if version == "" {
		version = unknownVersion
	}
	return domain.NewOnlineRecord(domain.OnlineInfo{
		Name:       name,
		Map:        m,
		Players:    info.Players,
		MaxPlayers: info.MaxPlayers,
		Game:       game,
		Version:    version,
		Latency:    info.Latency,
	}, c.now().UTC())
}

// Invalidate drops the cached record of a target whose configuration changed.
func (c *Client) Invalidate(ctx context.Context, id domain.TargetID) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Invalidate(ctx, id)
}

// QueryError is the failure returned by QueryOnce.
type QueryError struct {
	Addr     string
	Summary  string
	DNSClass string
	Err      error
}

func (e *QueryError) Error() string {
	msg := fmt.Sprintf("query %s: %s", e.Addr, e.Summary)
	if e.DNSClass != "" {
		msg += " dns=" + e.DNSClass
	}
	return msg
}

func (e *QueryError) Unwrap() error { return e.Err }

// QueryOnce probes host:port directly for diagnostics. It bypasses the cache
// and has no delivery or persistence side effects.
func (c *Client) QueryOnce(ctx context.Context, host string, port int) (domain.StatusRecord, error) {
	t := domain.Target{Host: host, Port: port}
	if err := t.Validate(); err != nil {
		return domain.StatusRecord{}, err
	}

	info, err := c.probe(ctx, Address{Host: host, Port: port})
	if err != nil {
		qe := &QueryError{Addr: t.Addr(), Summary: Summarize(err), Err: err}
		if net.ParseIP(host) == nil {
			dns := CheckDNS(ctx, host)
			qe.DNSClass = dns.Class
			c.logger.Info("dns_check",
				zap.String("domain", dns.Domain),
				zap.String("class", dns.Class),
				zap.Bool("has_a_or_aaaa", dns.HasAOrAAAA),
				zap.Strings("nameservers", dns.Nameservers),
				zap.String("cname", dns.CNAME),
				zap.String("resolver_error", dns.ResolverError),
			)
		}
		return domain.StatusRecord{}, qe
	}
	return c.online(t, info), nil
}
