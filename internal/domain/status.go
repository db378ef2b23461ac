package domain

import (
	"strconv"
	"time"
)

type Reachability string

const (
	Online  Reachability = "online"
	Offline Reachability = "offline"
)

// NotAvailable is used for map and version on offline records.
const NotAvailable = "N/A"

// StatusRecord is the normalized outcome of one probe or of its fallback.
// Build it with NewOnlineRecord or NewOfflineRecord; records are superseded, never edited.
type StatusRecord struct {
	Reachability Reachability  `json:"status"`
	Name         string        `json:"name"`
	Map          string        `json:"map"`
	Players      int           `json:"players"`
	MaxPlayers   int           `json:"max_players"`
	Game         string        `json:"game"`
	Version      string        `json:"version"`
	Latency      time.Duration `json:"latency"`
	ObservedAt   time.Time     `json:"observed_at"`
	Error        string        `json:"error,omitempty"`
}

// Online reports whether the record came from a successful probe.
func (r StatusRecord) Online() bool { return r.Reachability == Online }

// Occupancy renders "current/max".
func (r StatusRecord) Occupancy() string {
	return strconv.Itoa(r.Players) + "/" + strconv.Itoa(r.MaxPlayers)
}

// OnlineInfo carries the probe response fields of an online record.
type OnlineInfo struct {
	Name       string
	Map        string
	Players    int
	MaxPlayers int
	Game       string
	Version    string
	Latency    time.Duration
}

// NewOnlineRecord builds an online record. Online records never carry error detail.
func NewOnlineRecord(info OnlineInfo, at time.Time) StatusRecord {
	if info.Players < 0 {
		info.Players = 0
	}
	if info.MaxPlayers < 0 {
		info.MaxPlayers = 0
	}
	return StatusRecord{
		Reachability: Online,
		Name:         info.Name,
		Map:          info.Map,
		Players:      info.Players,
		MaxPlayers:   info.MaxPlayers,
		Game:         info.Game,
		Version:      info.Version,
		Latency:      info.Latency,
		ObservedAt:   at,
	}
}

// NewOfflineRecord builds an offline record with zeroed occupancy.
// detail is the human readable failure summary; empty means a confirmed offline answer.
func NewOfflineRecord(name, game, detail string, at time.Time) StatusRecord {
	return StatusRecord{
		Reachability: Offline,
		Name:         name,
		Map:          NotAvailable,
		Game:         game,
		Version:      NotAvailable,
		ObservedAt:   at,
		Error:        detail,
	}
}
