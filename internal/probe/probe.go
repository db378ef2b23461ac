package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

// ErrNoResponse is returned by adapters when the server answered with nothing usable.
var ErrNoResponse = errors.New("probe: empty response")

// Address is what a protocol adapter needs to reach one server.
type Address struct {
	Host   string
	Port   int
	Secret string
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Info is the protocol-neutral answer of a successful probe.
type Info struct {
	Name       string
	Map        string
	Players    int
	MaxPlayers int
	Game       string
	Version    string
	Latency    time.Duration
}

// Prober is a protocol adapter issuing one status query against one server.
// Implementations must honor ctx and return an error for any failed attempt.
type Prober interface {
	Probe(ctx context.Context, addr Address) (Info, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, addr Address) (Info, error)

func (f ProberFunc) Probe(ctx context.Context, addr Address) (Info, error) { return f(ctx, addr) }
