package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxStatusBodySize = 1 << 20 // 1MB

// HTTPProber queries a JSON status endpoint exposed by the game server
// (or a sidecar next to it), e.g. http://host:port/status.
type HTTPProber struct {
	Client *http.Client
	Path   string
}

func NewHTTPProber(path string) *HTTPProber {
	if path == "" {
		path = "/status"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HTTPProber{
		// no client timeout; RetryProber bounds each attempt through ctx
		Client: &http.Client{},
		Path:   path,
	}
}

type httpStatusBody struct {
	Name       string `json:"name"`
	Map        string `json:"map"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	Game       string `json:"game"`
	Version    string `json:"version"`
}

func (h *HTTPProber) Probe(ctx context.Context, addr Address) (Info, error) {
	u := url.URL{Scheme: "http", Host: addr.String(), Path: h.Path}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Info{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if addr.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+addr.Secret)
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Info{}, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var body httpStatusBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxStatusBodySize)).Decode(&body); err != nil {
		if err == io.EOF {
			return Info{}, ErrNoResponse
		}
		return Info{}, fmt.Errorf("malformed status response: %w", err)
	}

	return Info{
		Name:       body.Name,
		Map:        body.Map,
		Players:    body.Players,
		MaxPlayers: body.MaxPlayers,
		Game:       body.Game,
		Version:    body.Version,
		Latency:    latency,
	}, nil
}
