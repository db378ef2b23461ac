package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string // API bind address, e.g., "127.0.0.1:8080" (Windows) or ":8080" (Docker)
	LogDir      string // logs directory
	LogLevel    string // debug | info | warn | error
	DatabaseURL string // postgres://... or sqlite://path; empty means in-memory
	RedisURL    string // empty means in-process cache

	UpdateInterval  time.Duration // time between monitoring cycles
	QueryTimeout    time.Duration // per-attempt probe timeout
	StatusCacheTTL  time.Duration // how long a successful probe is reused
	QueryAttempts   int           // probe attempts per live query
	RetryBackoff    time.Duration // backoff between probe attempts
	DeliveryTimeout time.Duration // bound on a single edit/create call
	InitialDelay    time.Duration // delay before the first cycle after start
	MaxConcurrent   int           // 0 means one goroutine per target

	Scope          string // guild whose targets are monitored; empty means all
	QueryProtocol  string // a2s | http
	HTTPStatusPath string // path queried by the http protocol adapter
	DefaultGame    string // game label used when the server does not report one
	TargetsFile    string // YAML target list for the in-memory registry
	Locale         string // renderer language

	DiscordToken      string
	DiscordWebhookURL string

	HistoryRetention time.Duration

	PublicAPIKeys []string
	AdminAPIKeys  []string
	PublicRPM     int
	PublicBurst   int
	AdminRPM      int
	AdminBurst    int
	CORSOrigins   []string // empty allows any origin
}

// PollInterval, ProbeTimeout and CacheTTL are the read-only tunables the
// monitoring engine consumes. They are independent of each other.
func (c Config) PollInterval() time.Duration { return c.UpdateInterval }
func (c Config) ProbeTimeout() time.Duration { return c.QueryTimeout }
func (c Config) CacheTTL() time.Duration     { return c.StatusCacheTTL }

func FromEnv() Config {
	// Bind address (Windows-friendly default)
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = os.Getenv("ADDR")
	}
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	return Config{
		Addr:        addr,
		LogDir:      logDir,
		LogLevel:    envString("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		UpdateInterval:  time.Duration(envInt("UPDATE_INTERVAL_MINUTES", 10, 1)) * time.Minute,
		QueryTimeout:    envMillis("SERVER_QUERY_TIMEOUT", 5000, 1),
		StatusCacheTTL:  time.Duration(envInt("CACHE_TTL_SECONDS", 60, 0)) * time.Second,
		QueryAttempts:   envInt("QUERY_ATTEMPTS", 2, 1),
		RetryBackoff:    envMillis("RETRY_BACKOFF_MS", 300, 0),
		DeliveryTimeout: envMillis("DELIVERY_TIMEOUT_MS", 10000, 1),
		InitialDelay:    envMillis("INITIAL_DELAY_MS", 5000, 0),
		MaxConcurrent:   envInt("MAX_CONCURRENT_CHECKS", 0, 0),

		Scope:          os.Getenv("MONITOR_SCOPE"),
		QueryProtocol:  strings.ToLower(envString("QUERY_PROTOCOL", "a2s")),
		HTTPStatusPath: envString("HTTP_STATUS_PATH", "/status"),
		DefaultGame:    envString("DEFAULT_GAME", "Counter-Strike 2"),
		TargetsFile:    os.Getenv("TARGETS_FILE"),
		Locale:         envString("LOCALE", "en"),

		DiscordToken:      os.Getenv("DISCORD_TOKEN"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),

		HistoryRetention: time.Duration(envInt("HISTORY_RETENTION_DAYS", 30, 0)) * 24 * time.Hour,

		PublicAPIKeys: splitList(os.Getenv("PUBLIC_API_KEYS")),
		AdminAPIKeys:  splitList(os.Getenv("ADMIN_API_KEYS")),
		PublicRPM:     envInt("PUBLIC_RPM", 120, 0),
		PublicBurst:   envInt("PUBLIC_BURST", 60, 1),
		AdminRPM:      envInt("ADMIN_RPM", 30, 0),
		AdminBurst:    envInt("ADMIN_BURST", 10, 1),
		CORSOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns def unless the variable parses to an integer >= floor.
func envInt(key string, def, floor int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= floor {
			return n
		}
	}
	return def
}

func envMillis(key string, def, floor int) time.Duration {
	return time.Duration(envInt(key, def, floor)) * time.Millisecond
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
