package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

var errProbePanic = errors.New("probe panicked")

const maxSummaryLen = 200

// Summarize turns a probe error into the short text shown to chat users.
// Raw error chains never reach the delivery channel.
func Summarize(err error) string {
	if err == nil {
		return ""
	}
	var (
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case errors.Is(err, errProbePanic):
		return "query failed unexpectedly"
	case errors.Is(err, context.DeadlineExceeded):
		return "server did not respond in time"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return "host unreachable"
	case errors.As(err, &dnsErr):
		return "host could not be resolved"
	case errors.Is(err, ErrNoResponse):
		return "server returned an empty response"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "server did not respond in time"
	}

	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > maxSummaryLen {
		msg = msg[:maxSummaryLen] + "..."
	}
	return "query failed: " + msg
}
