// persistence/memory.go
package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/wordchain/models"
)

type statsKey struct {
	serverID string
	userID   string
}

type wordKey struct {
	word string
	lang string
}

// Memory 内存实现，用于测试和 database.driver=memory
type Memory struct {
	servers map[string]models.ServerConfig
	used    map[string]map[string]struct{}
	lists   map[models.ListKind]map[string]map[string]struct{}
	stats   map[statsKey]models.UserStats
	words   map[wordKey]bool
	banned  map[string]time.Time
	mutex   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		servers: make(map[string]models.ServerConfig),
		used:    make(map[string]map[string]struct{}),
		lists: map[models.ListKind]map[string]map[string]struct{}{
			models.Blacklist: make(map[string]map[string]struct{}),
			models.Whitelist: make(map[string]map[string]struct{}),
		},
		stats:  make(map[statsKey]models.UserStats),
		words:  make(map[wordKey]bool),
		banned: make(map[string]time.Time),
	}
}

func copyServer(cfg models.ServerConfig) models.ServerConfig {
	cfg.Languages = append([]string(nil), cfg.Languages...)
	return cfg
}

func (m *Memory) LoadServer(_ context.Context, serverID string) (*models.ServerConfig, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	cfg, ok := m.servers[serverID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cfg = copyServer(cfg)
	return &cfg, nil
}

func (m *Memory) SaveServer(_ context.Context, cfg *models.ServerConfig) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.saveServer(*cfg)
	return nil
}

func (m *Memory) saveServer(cfg models.ServerConfig) {
	now := time.Now()
	if existing, ok := m.servers[cfg.ServerID]; ok {
		cfg.CreatedAt = existing.CreatedAt
	} else if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	m.servers[cfg.ServerID] = copyServer(cfg)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) UsedWords(_ context.Context, serverID string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return sortedKeys(m.used[serverID]), nil
}

func (m *Memory) list(kind models.ListKind) (map[string]map[string]struct{}, error) {
	lists, ok := m.lists[kind]
	if !ok {
		return nil, fmt.Errorf("unknown word list %q", kind)
	}
	return lists, nil
}

func (m *Memory) ListWords(_ context.Context, serverID string, kind models.ListKind) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	lists, err := m.list(kind)
	if err != nil {
		return nil, err
	}
	return sortedKeys(lists[serverID]), nil
}

func (m *Memory) AddListWord(_ context.Context, serverID string, kind models.ListKind, word string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	lists, err := m.list(kind)
	if err != nil {
		return err
	}
	if lists[serverID] == nil {
		lists[serverID] = make(map[string]struct{})
	}
	lists[serverID][word] = struct{}{}
	return nil
}

func (m *Memory) RemoveListWord(_ context.Context, serverID string, kind models.ListKind, word string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	lists, err := m.list(kind)
	if err != nil {
		return err
	}
	delete(lists[serverID], word)
	return nil
}

func (m *Memory) LoadUserStats(_ context.Context, serverID, userID string) (*models.UserStats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	stats, ok := m.stats[statsKey{serverID, userID}]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &stats, nil
}

func (m *Memory) Commit(_ context.Context, c Commit) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	serverID := c.Server.ServerID
	m.saveServer(c.Server)
	if c.ClearUsedWords {
		delete(m.used, serverID)
	}
	if c.AddUsedWord != "" {
		if m.used[serverID] == nil {
			m.used[serverID] = make(map[string]struct{})
		}
		m.used[serverID][c.AddUsedWord] = struct{}{}
	}
	if c.Stats != nil {
		m.stats[statsKey{c.Stats.ServerID, c.Stats.UserID}] = *c.Stats
	}
	return nil
}

func (m *Memory) DeleteUserData(_ context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for key := range m.stats {
		if key.userID == userID {
			delete(m.stats, key)
		}
	}
	for id, cfg := range m.servers {
		changed := false
		if models.Deref(cfg.LastMemberID) == userID {
			cfg.LastMemberID = nil
			changed = true
		}
		if models.Deref(cfg.FailedMemberID) == userID {
			cfg.FailedMemberID = nil
			cfg.CorrectInputsByFailedMember = 0
			changed = true
		}
		if changed {
			m.servers[id] = cfg
		}
	}
	return nil
}

func (m *Memory) CachedWord(_ context.Context, word, lang string) (bool, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	valid, ok := m.words[wordKey{word, lang}]
	return valid, ok, nil
}

func (m *Memory) StoreWord(_ context.Context, word, lang string, valid bool) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	key := wordKey{word, lang}
	if !valid && m.words[key] {
		return nil
	}
	m.words[key] = valid
	return nil
}

func metricValue(stats models.UserStats, metric models.Metric) float64 {
	if metric == models.MetricKarma {
		return stats.Karma
	}
	return float64(stats.Score)
}

func (m *Memory) TopUsers(_ context.Context, serverID string, metric models.Metric, limit int) ([]models.LeaderboardEntry, error) {
	m.mutex.RLock()
	totals := make(map[string]float64)
	for key, stats := range m.stats {
		if serverID != "" && key.serverID != serverID {
			continue
		}
		totals[key.userID] += metricValue(stats, metric)
	}
	m.mutex.RUnlock()

	rows := make([]models.LeaderboardEntry, 0, len(totals))
	for userID, value := range totals {
		rows = append(rows, models.LeaderboardEntry{UserID: userID, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func (m *Memory) TopServers(_ context.Context, limit int) ([]models.ServerEntry, error) {
	m.mutex.RLock()
	rows := make([]models.ServerEntry, 0, len(m.servers))
	for id, cfg := range m.servers {
		rows = append(rows, models.ServerEntry{ServerID: id, HighScore: cfg.HighScore})
	}
	m.mutex.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].HighScore != rows[j].HighScore {
			return rows[i].HighScore > rows[j].HighScore
		}
		return rows[i].ServerID < rows[j].ServerID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func (m *Memory) UserRank(_ context.Context, serverID, userID string) (*models.UserRank, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats, ok := m.stats[statsKey{serverID, userID}]
	if !ok {
		return nil, ErrRecordNotFound
	}
	rank := &models.UserRank{
		Stats:       stats,
		ScoreRank:   1,
		KarmaRank:   1,
		Accuracy:    stats.Accuracy(),
		GeneratedAt: time.Now(),
	}
	for key, other := range m.stats {
		if key.serverID != serverID {
			continue
		}
		if other.Score > stats.Score {
			rank.ScoreRank++
		}
		if other.Karma > stats.Karma {
			rank.KarmaRank++
		}
	}
	return rank, nil
}

func (m *Memory) Ban(_ context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.banned[userID]; !ok {
		m.banned[userID] = time.Now()
	}
	return nil
}

func (m *Memory) Unban(_ context.Context, userID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.banned, userID)
	return nil
}

func (m *Memory) IsBanned(_ context.Context, userID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.banned[userID]
	return ok, nil
}

func (m *Memory) Close() error {
	return nil
}
