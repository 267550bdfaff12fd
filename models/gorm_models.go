// models/gorm_models.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// ServerConfig is the per-server game record. The chain fields mirror the
// in-memory chain state and are written in the same transaction as stats.
type ServerConfig struct {
	ServerID                    string         `gorm:"primaryKey"`
	ChannelID                   string         `gorm:"index"`
	Languages                   pq.StringArray `gorm:"type:text[]"`
	ReliableRoleID              *string
	FailedRoleID                *string
	FailedMemberID              *string
	CorrectInputsByFailedMember int            `gorm:"default:0"`
	CurrentWord                 *string
	CurrentWordLanguage         *string
	CurrentCount                int            `gorm:"default:0"`
	HighScore                   int            `gorm:"default:0;index"`
	LastMemberID                *string
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// WordCacheEntry records a confirmed lookup verdict for a (word, language) pair.
type WordCacheEntry struct {
	Word      string `gorm:"primaryKey"`
	Language  string `gorm:"primaryKey"`
	Valid     bool   `gorm:"not null"`
	CheckedAt time.Time
}

func (WordCacheEntry) TableName() string {
	return "word_cache"
}

// UsedWord is a folded word consumed by the current chain of a server.
type UsedWord struct {
	ServerID string `gorm:"primaryKey"`
	Word     string `gorm:"primaryKey"`
}

// UserStats holds the per-server counters of a member. It never stores words.
type UserStats struct {
	ServerID     string  `gorm:"primaryKey"`
	UserID       string  `gorm:"primaryKey;index"`
	Score        int     `gorm:"default:0"`
	Correct      int     `gorm:"default:0"`
	Wrong        int     `gorm:"default:0"`
	Streak       int     `gorm:"default:0"`
	BestStreak   int     `gorm:"default:0"`
	Karma        float64 `gorm:"default:0"`
	LastActiveAt time.Time
}

// Accuracy is correct / (correct + wrong), zero before the first submission.
func (s UserStats) Accuracy() float64 {
	total := s.Correct + s.Wrong
	if total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(total)
}

// BlacklistEntry and WhitelistEntry store folded words.
type BlacklistEntry struct {
	ServerID  string `gorm:"primaryKey"`
	Word      string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type WhitelistEntry struct {
	ServerID  string `gorm:"primaryKey"`
	Word      string `gorm:"primaryKey"`
	CreatedAt time.Time
}

// BannedMember is excluded from the game on every server.
type BannedMember struct {
	UserID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}
