// models/models.go
package models

import (
	"fmt"
	"time"
)

// ListKind selects a per-server word list.
type ListKind string

const (
	Blacklist ListKind = "blacklist"
	Whitelist ListKind = "whitelist"
)

func ParseListKind(s string) (ListKind, error) {
	switch ListKind(s) {
	case Blacklist, Whitelist:
		return ListKind(s), nil
	}
	return "", fmt.Errorf("unknown word list %q", s)
}

// RoleKind selects one of the roles the game manages.
type RoleKind string

const (
	ReliableRole RoleKind = "reliable"
	FailedRole   RoleKind = "failed"
)

func ParseRoleKind(s string) (RoleKind, error) {
	switch RoleKind(s) {
	case ReliableRole, FailedRole:
		return RoleKind(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Metric orders leaderboards.
type Metric string

const (
	MetricScore Metric = "score"
	MetricKarma Metric = "karma"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricScore:
		return MetricScore, nil
	case MetricKarma:
		return MetricKarma, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// LeaderboardEntry is one ranked user. Value is the score or the karma,
// summed over servers for global boards.
type LeaderboardEntry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Value  float64 `json:"value"`
}

// ServerEntry ranks servers by their longest chain.
type ServerEntry struct {
	Rank      int    `json:"rank"`
	ServerID  string `json:"server_id"`
	HighScore int    `json:"high_score"`
}

// UserRank is the position of a member in their server.
type UserRank struct {
	Stats       UserStats `json:"stats"`
	ScoreRank   int       `json:"score_rank"`
	KarmaRank   int       `json:"karma_rank"`
	Accuracy    float64   `json:"accuracy"`
	GeneratedAt time.Time `json:"generated_at"`
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
