// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/wordchain/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ServerConfig{},
		&models.WordCacheEntry{},
		&models.UsedWord{},
		&models.UserStats{},
		&models.BlacklistEntry{},
		&models.WhitelistEntry{},
		&models.BannedMember{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

func (p *GormPostgreSQL) LoadServer(ctx context.Context, serverID string) (*models.ServerConfig, error) {
	var cfg models.ServerConfig
	if err := p.db.WithContext(ctx).Where("server_id = ?", serverID).First(&cfg).Error; err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (p *GormPostgreSQL) SaveServer(ctx context.Context, cfg *models.ServerConfig) error {
	return upsert(p.db.WithContext(ctx), cfg)
}

func upsert(tx *gorm.DB, value interface{}) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

func (p *GormPostgreSQL) UsedWords(ctx context.Context, serverID string) ([]string, error) {
	var words []string
	err := p.db.WithContext(ctx).Model(&models.UsedWord{}).
		Where("server_id = ?", serverID).
		Pluck("word", &words).Error
	return words, err
}

func listModel(kind models.ListKind, serverID, word string) (interface{}, error) {
	switch kind {
	case models.Blacklist:
		return &models.BlacklistEntry{ServerID: serverID, Word: word}, nil
	case models.Whitelist:
		return &models.WhitelistEntry{ServerID: serverID, Word: word}, nil
	}
	return nil, fmt.Errorf("unknown word list %q", kind)
}

func (p *GormPostgreSQL) ListWords(ctx context.Context, serverID string, kind models.ListKind) ([]string, error) {
	model, err := listModel(kind, "", "")
	if err != nil {
		return nil, err
	}
	var words []string
	err = p.db.WithContext(ctx).Model(model).
		Where("server_id = ?", serverID).
		Order("word").
		Pluck("word", &words).Error
	return words, err
}

func (p *GormPostgreSQL) AddListWord(ctx context.Context, serverID string, kind models.ListKind, word string) error {
	model, err := listModel(kind, serverID, word)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(model).Error
}

func (p *GormPostgreSQL) RemoveListWord(ctx context.Context, serverID string, kind models.ListKind, word string) error {
	model, err := listModel(kind, "", "")
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).
		Where("server_id = ? AND word = ?", serverID, word).
		Delete(model).Error
}

func (p *GormPostgreSQL) LoadUserStats(ctx context.Context, serverID, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := p.db.WithContext(ctx).
		Where("server_id = ? AND user_id = ?", serverID, userID).
		First(&stats).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &stats, nil
}

// Commit 在一个事务中写入服务器状态、已用单词和用户统计
func (p *GormPostgreSQL) Commit(ctx context.Context, c Commit) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		server := c.Server
		if err := upsert(tx, &server); err != nil {
			return fmt.Errorf("save server %s: %w", server.ServerID, err)
		}
		if c.ClearUsedWords {
			if err := tx.Where("server_id = ?", server.ServerID).Delete(&models.UsedWord{}).Error; err != nil {
				return fmt.Errorf("clear used words: %w", err)
			}
		}
		if c.AddUsedWord != "" {
			used := models.UsedWord{ServerID: server.ServerID, Word: c.AddUsedWord}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&used).Error; err != nil {
				return fmt.Errorf("add used word: %w", err)
			}
		}
		if c.Stats != nil {
			stats := *c.Stats
			if err := upsert(tx, &stats); err != nil {
				return fmt.Errorf("save stats: %w", err)
			}
		}
		return nil
	})
}

func (p *GormPostgreSQL) DeleteUserData(ctx context.Context, userID string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.UserStats{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ServerConfig{}).
			Where("last_member_id = ?", userID).
			Update("last_member_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&models.ServerConfig{}).
			Where("failed_member_id = ?", userID).
			Updates(map[string]interface{}{
				"failed_member_id":                nil,
				"correct_inputs_by_failed_member": 0,
			}).Error
	})
}

func (p *GormPostgreSQL) CachedWord(ctx context.Context, word, lang string) (bool, bool, error) {
	var entry models.WordCacheEntry
	err := p.db.WithContext(ctx).
		Where("word = ? AND language = ?", word, lang).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return entry.Valid, true, nil
}

// StoreWord upserts a verdict. Negatives are insert-only so they never
// replace a confirmed word.
func (p *GormPostgreSQL) StoreWord(ctx context.Context, word, lang string, valid bool) error {
	entry := models.WordCacheEntry{Word: word, Language: lang, Valid: valid, CheckedAt: time.Now()}
	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "word"}, {Name: "language"}},
		DoUpdates: clause.AssignmentColumns([]string{"valid", "checked_at"}),
	}
	if !valid {
		conflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "word"}, {Name: "language"}},
			DoNothing: true,
		}
	}
	return p.db.WithContext(ctx).Clauses(conflict).Create(&entry).Error
}

// TopUsers 按分数或业力排名，serverID 为空时按用户汇总全部服务器
func (p *GormPostgreSQL) TopUsers(ctx context.Context, serverID string, metric models.Metric, limit int) ([]models.LeaderboardEntry, error) {
	column := metricColumn(metric)
	query := p.db.WithContext(ctx).Model(&models.UserStats{}).
		Select(fmt.Sprintf("user_id, SUM(%s) AS value", column)).
		Group("user_id").
		Order("value DESC, user_id").
		Limit(limit)
	if serverID != "" {
		query = query.Where("server_id = ?", serverID)
	}

	var rows []models.LeaderboardEntry
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func (p *GormPostgreSQL) TopServers(ctx context.Context, limit int) ([]models.ServerEntry, error) {
	var rows []models.ServerEntry
	err := p.db.WithContext(ctx).Model(&models.ServerConfig{}).
		Select("server_id, high_score").
		Order("high_score DESC, server_id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func (p *GormPostgreSQL) UserRank(ctx context.Context, serverID, userID string) (*models.UserRank, error) {
	stats, err := p.LoadUserStats(ctx, serverID, userID)
	if err != nil {
		return nil, err
	}
	var above int64
	if err := p.db.WithContext(ctx).Model(&models.UserStats{}).
		Where("server_id = ? AND score > ?", serverID, stats.Score).
		Count(&above).Error; err != nil {
		return nil, err
	}
	var karmaAbove int64
	if err := p.db.WithContext(ctx).Model(&models.UserStats{}).
		Where("server_id = ? AND karma > ?", serverID, stats.Karma).
		Count(&karmaAbove).Error; err != nil {
		return nil, err
	}
	return &models.UserRank{
		Stats:       *stats,
		ScoreRank:   int(above) + 1,
		KarmaRank:   int(karmaAbove) + 1,
		Accuracy:    stats.Accuracy(),
		GeneratedAt: time.Now(),
	}, nil
}

func (p *GormPostgreSQL) Ban(ctx context.Context, userID string) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BannedMember{UserID: userID}).Error
}

func (p *GormPostgreSQL) Unban(ctx context.Context, userID string) error {
	return p.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.BannedMember{}).Error
}

func (p *GormPostgreSQL) IsBanned(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.BannedMember{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count > 0, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
