// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/wordchain/models"
)

// Repository 游戏持久化接口
type Repository interface {
	LoadServer(ctx context.Context, serverID string) (*models.ServerConfig, error)
	SaveServer(ctx context.Context, cfg *models.ServerConfig) error
	UsedWords(ctx context.Context, serverID string) ([]string, error)

	ListWords(ctx context.Context, serverID string, kind models.ListKind) ([]string, error)
	AddListWord(ctx context.Context, serverID string, kind models.ListKind, word string) error
	RemoveListWord(ctx context.Context, serverID string, kind models.ListKind, word string) error

	LoadUserStats(ctx context.Context, serverID, userID string) (*models.UserStats, error)
	// Commit applies one decided submission atomically.
	Commit(ctx context.Context, c Commit) error
	// DeleteUserData removes every stats row of the user and clears the
	// last-member and failed-member bindings that point at them.
	DeleteUserData(ctx context.Context, userID string) error

	CachedWord(ctx context.Context, word, lang string) (valid bool, found bool, err error)
	StoreWord(ctx context.Context, word, lang string, valid bool) error

	TopUsers(ctx context.Context, serverID string, metric models.Metric, limit int) ([]models.LeaderboardEntry, error)
	TopServers(ctx context.Context, limit int) ([]models.ServerEntry, error)
	UserRank(ctx context.Context, serverID, userID string) (*models.UserRank, error)

	Ban(ctx context.Context, userID string) error
	Unban(ctx context.Context, userID string) error
	IsBanned(ctx context.Context, userID string) (bool, error)

	Close() error
}

// Commit is everything a single decision writes. The server row and the
// stats row are stored as given; the used-word set is cleared first when
// ClearUsedWords is set, then AddUsedWord is inserted if non-empty.
type Commit struct {
	Server         models.ServerConfig
	Stats          *models.UserStats
	ClearUsedWords bool
	AddUsedWord    string
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)

func metricColumn(metric models.Metric) string {
	if metric == models.MetricKarma {
		return "karma"
	}
	return "score"
}
