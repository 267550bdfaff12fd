// services/leaderboard.go
package services

import (
	"context"

	"github.com/wfunc/wordchain/models"
	"github.com/wfunc/wordchain/persistence"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Query selects a leaderboard. An empty ServerID ranks users across every
// server.
type Query struct {
	ServerID string
	Metric   models.Metric
	Limit    int
}

// LeaderboardAggregator 排行榜，只读
type LeaderboardAggregator struct {
	repo persistence.Repository
}

func NewLeaderboardAggregator(repo persistence.Repository) *LeaderboardAggregator {
	return &LeaderboardAggregator{repo: repo}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (l *LeaderboardAggregator) TopUsers(ctx context.Context, q Query) ([]models.LeaderboardEntry, error) {
	if q.Metric == "" {
		q.Metric = models.MetricScore
	}
	return l.repo.TopUsers(ctx, q.ServerID, q.Metric, clampLimit(q.Limit))
}

func (l *LeaderboardAggregator) TopServers(ctx context.Context, limit int) ([]models.ServerEntry, error) {
	return l.repo.TopServers(ctx, clampLimit(limit))
}

func (l *LeaderboardAggregator) UserRank(ctx context.Context, serverID, userID string) (*models.UserRank, error) {
	return l.repo.UserRank(ctx, serverID, userID)
}
