package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hamed0406/serverwatch/internal/config"
	"github.com/hamed0406/serverwatch/internal/logging"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check the environment before starting serve",
	Long: `Check the environment variables serve depends on and print one line
per finding. Exits non-zero when serve would refuse to start or when a
route group would reject every request.`,
	RunE: runPreflight,
}

func init() {
	rootCmd.AddCommand(preflightCmd)

	preflightCmd.Flags().Bool("no-color", false, "disable colored output")
}

type level int

const (
	levelOK level = iota
	levelWarn
	levelFail
)

type finding struct {
	level level
	msg   string
}

var errPreflight = errors.New("preflight failed")

func runPreflight(cmd *cobra.Command, args []string) error {
	noColor, _ := cmd.Flags().GetBool("no-color")
	configureColor(noColor)

	out := cmd.OutOrStdout()
	failed := false
	for _, f := range preflight(config.FromEnv()) {
		switch f.level {
		case levelOK:
			fmt.Fprintln(out, okMsg("%s", f.msg))
		case levelWarn:
			fmt.Fprintln(out, warnMsg("%s", f.msg))
		case levelFail:
			fmt.Fprintln(out, errMsg("%s", f.msg))
			failed = true
		}
	}
	if failed {
		return errPreflight
	}
	fmt.Fprintln(out, okMsg("preflight passed"))
	return nil
}

// preflight inspects cfg without touching the network.
func preflight(cfg config.Config) []finding {
	var out []finding
	ok := func(format string, a ...any) { out = append(out, finding{levelOK, fmt.Sprintf(format, a...)}) }
	warn := func(format string, a ...any) { out = append(out, finding{levelWarn, fmt.Sprintf(format, a...)}) }
	fail := func(format string, a ...any) { out = append(out, finding{levelFail, fmt.Sprintf(format, a...)}) }

	switch {
	case cfg.DiscordToken != "":
		ok("delivery: discord bot")
		if cfg.DiscordWebhookURL != "" {
			warn("DISCORD_WEBHOOK_URL is ignored while DISCORD_TOKEN is set")
		}
	case cfg.DiscordWebhookURL != "":
		ok("delivery: webhook")
	default:
		fail("neither DISCORD_TOKEN nor DISCORD_WEBHOOK_URL is set; serve will not start")
	}

	switch cfg.QueryProtocol {
	case "a2s":
		ok("QUERY_PROTOCOL=a2s")
	case "http":
		ok("QUERY_PROTOCOL=http path=%s", cfg.HTTPStatusPath)
	default:
		fail("QUERY_PROTOCOL=%q is not a2s or http", cfg.QueryProtocol)
	}

	if cfg.TargetsFile == "" {
		if cfg.DatabaseURL == "" {
			warn("TARGETS_FILE and DATABASE_URL are both empty; nothing will be monitored")
		} else {
			ok("targets come from DATABASE_URL")
		}
	} else if targets, err := config.LoadTargets(cfg.TargetsFile); err != nil {
		fail("TARGETS_FILE: %v", err)
	} else {
		ok("TARGETS_FILE has %d target(s)", len(targets))
	}

	switch {
	case cfg.DatabaseURL == "":
		warn("DATABASE_URL empty; status and history are kept in memory only")
	case strings.HasPrefix(cfg.DatabaseURL, "postgres://"), strings.HasPrefix(cfg.DatabaseURL, "postgresql://"):
		ok("DATABASE_URL: postgres")
	case strings.HasPrefix(cfg.DatabaseURL, "sqlite://"):
		ok("DATABASE_URL: sqlite")
	default:
		fail("DATABASE_URL scheme is not postgres:// or sqlite://")
	}

	if cfg.RedisURL == "" {
		ok("status cache: in-process (ttl %s)", cfg.CacheTTL())
	} else {
		ok("status cache: redis (ttl %s)", cfg.CacheTTL())
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		warn("LOG_LEVEL: %v; info will be used", err)
	}

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes will 401)")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		fail("PUBLIC_API_KEYS is empty (read routes will 401)")
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if strings.ContainsAny(k, " \t") {
				warn("%s contains whitespace inside a key", name)
				break
			}
		}
	}

	if len(cfg.CORSOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may call the API from a browser")
	} else {
		ok("ALLOWED_ORIGINS=%s", strings.Join(cfg.CORSOrigins, ","))
	}

	ok("interval %s, probe timeout %s, %d attempt(s)", cfg.PollInterval(), cfg.ProbeTimeout(), cfg.QueryAttempts)
	return out
}
