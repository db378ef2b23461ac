package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/cache"
	"github.com/hamed0406/serverwatch/internal/config"
	"github.com/hamed0406/serverwatch/internal/domain"
	"github.com/hamed0406/serverwatch/internal/probe"
)

var queryCmd = &cobra.Command{
	Use:   "query HOST PORT",
	Short: "Probe one server once and print the result",
	Long: `Probe a server directly, bypassing the status cache. Nothing is
delivered or persisted. When the probe fails for a hostname, its DNS
records are checked so the error says whether the name resolves at all.

Example:
  serverwatch query play.example.net 27015
  serverwatch query 10.0.0.5 8080 --protocol http`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().String("protocol", "", "a2s or http (overrides QUERY_PROTOCOL)")
	queryCmd.Flags().Bool("no-color", false, "disable colored output")
}

func runQuery(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid port %q", args[1])
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	configureColor(noColor)

	cfg := config.FromEnv()
	if v, _ := cmd.Flags().GetString("protocol"); v != "" {
		cfg.QueryProtocol = v
	}
	prober, err := newProber(cfg)
	if err != nil {
		return err
	}
	client := probe.NewClient(zap.NewNop(), prober, cache.NewMemory(), cfg,
		probe.WithRetry(cfg.QueryAttempts, cfg.RetryBackoff),
		probe.WithDefaultGame(cfg.DefaultGame),
	)

	rec, err := client.QueryOnce(cmd.Context(), args[0], port)
	out := cmd.OutOrStdout()
	if err != nil {
		printQueryError(out, err)
		return errQueryFailed
	}
	printRecord(out, args[0], port, rec)
	return nil
}

// errQueryFailed keeps the exit status non-zero after the failure was already printed.
var errQueryFailed = errors.New("query failed")

func printRecord(w io.Writer, host string, port int, rec domain.StatusRecord) {
	fmt.Fprintln(w, okMsg("%s is %s", boldStyle.Render(domain.Target{Host: host, Port: port}.Addr()), okStyle.Render("online")))
	fmt.Fprint(w, keyValues("  ",
		pair{"Name", rec.Name},
		pair{"Map", rec.Map},
		pair{"Players", rec.Occupancy()},
		pair{"Game", rec.Game},
		pair{"Version", rec.Version},
		pair{"Ping", rec.Latency.Round(time.Millisecond).String()},
	))
}

func printQueryError(w io.Writer, err error) {
	var qe *probe.QueryError
	var ce *domain.ConfigError
	switch {
	case errors.As(err, &qe):
		fmt.Fprintln(w, errMsg("%s is %s", boldStyle.Render(qe.Addr), errStyle.Render("unreachable")))
		pairs := []pair{{"Error", qe.Summary}}
		if qe.DNSClass != "" {
			pairs = append(pairs, pair{"DNS", qe.DNSClass})
		}
		fmt.Fprint(w, keyValues("  ", pairs...))
	case errors.As(err, &ce):
		fmt.Fprintln(w, errMsg("invalid address: %s", ce.Error()))
	default:
		fmt.Fprintln(w, errMsg("%v", err))
	}
}
