package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

type TargetID string

// Target is a monitored game server as handed out by the registry.
// The engine never creates or deletes targets; it only reads the active ones.
type Target struct {
	ID           TargetID      `json:"id" yaml:"id"`
	Scope        string        `json:"scope" yaml:"scope"` // owning guild
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	Secret       string        `json:"-" yaml:"secret"`
	Name         string        `json:"name" yaml:"name"`
	Channel      string        `json:"channel" yaml:"channel"`
	Active       bool          `json:"active" yaml:"active"`
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval"`
	CreatedAt    time.Time     `json:"created_at" yaml:"-"`
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// DisplayName falls back to the address when no name was configured.
func (t Target) DisplayName() string {
	if n := strings.TrimSpace(t.Name); n != "" {
		return n
	}
	return t.Addr()
}

// Validate reports missing or malformed address fields as a *ConfigError.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return &ConfigError{TargetID: t.ID, Field: "host", Reason: "missing"}
	}
	if t.Port <= 0 || t.Port > 65535 {
		return &ConfigError{TargetID: t.ID, Field: "port", Reason: fmt.Sprintf("out of range: %d", t.Port)}
	}
	return nil
}

// HistoryEntry is one cycle's outcome for one target. Rows are never updated.
type HistoryEntry struct {
	TargetID   TargetID      `json:"target_id"`
	Online     bool          `json:"online"`
	Players    int           `json:"players"`
	MaxPlayers int           `json:"max_players"`
	Map        string        `json:"map"`
	Latency    time.Duration `json:"latency"`
	ObservedAt time.Time     `json:"observed_at"`
}

// HistoryFromRecord projects a status record onto a history row.
func HistoryFromRecord(id TargetID, r StatusRecord) HistoryEntry {
	return HistoryEntry{
		TargetID:   id,
		Online:     r.Online(),
		Players:    r.Players,
		MaxPlayers: r.MaxPlayers,
		Map:        r.Map,
		Latency:    r.Latency,
		ObservedAt: r.ObservedAt,
	}
}

// CurrentStatus is the latest upserted record for a target.
type CurrentStatus struct {
	TargetID  TargetID     `json:"target_id"`
	Record    StatusRecord `json:"record"`
	UpdatedAt time.Time    `json:"updated_at"`
}
