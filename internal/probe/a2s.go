package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/rumblefrog/go-a2s"
)

const defaultA2STimeout = 5 * time.Second

// A2SProber speaks the Source engine query protocol (A2S_INFO over UDP),
// which CS2 and most Source/Goldsrc servers answer on their game port.
type A2SProber struct{}

func NewA2SProber() *A2SProber { return &A2SProber{} }

func (p *A2SProber) Probe(ctx context.Context, addr Address) (Info, error) {
	timeout := defaultA2STimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
		if timeout <= 0 {
			return Info{}, context.DeadlineExceeded
		}
	}

	client, err := a2s.NewClient(addr.String(), a2s.TimeoutOption(timeout))
	if err != nil {
		return Info{}, fmt.Errorf("a2s client: %w", err)
	}

	type result struct {
		info *a2s.ServerInfo
		err  error
		rtt  time.Duration
	}
	done := make(chan result, 1)
	go func() {
		start := time.Now()
		info, err := client.QueryInfo()
		done <- result{info: info, err: err, rtt: time.Since(start)}
	}()

	select {
	case <-ctx.Done():
		// closing the socket unblocks QueryInfo
		_ = client.Close()
		return Info{}, ctx.Err()
	case r := <-done:
		_ = client.Close()
		if r.err != nil {
			return Info{}, r.err
		}
		if r.info == nil {
			return Info{}, ErrNoResponse
		}
		return Info{
			Name:       r.info.Name,
			Map:        r.info.Map,
			Players:    int(r.info.Players),
			MaxPlayers: int(r.info.MaxPlayers),
			Game:       r.info.Game,
			Version:    r.info.Version,
			Latency:    r.rtt,
		}, nil
	}
}
