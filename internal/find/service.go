package find

import (
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 服务层的哨兵错误，对应发现资格检查的各个失败分支
var (
	ErrCacheNotFound    = errors.New("宝藏不存在")
	ErrOwnCache         = errors.New("不能发现自己创建的宝藏")
	ErrCacheNotActive   = errors.New("宝藏当前不可发现")
	ErrCacheExpired     = errors.New("宝藏已过期")
	ErrSingletonClaimed = errors.New("宝藏已被其他用户认领")
	ErrAlreadyFound     = errors.New("已经发现过这个宝藏")
)

// ScoreMirror 抽象了发现入账后对读模型的同步。
// 生产实现写入Redis；测试中可以注入假实现来验证回滚语义。
type ScoreMirror interface {
	ApplyFind(c *cache.Cache, finder *user.User, f *CacheFind) error
}

// Result 是一次成功入账的摘要。
type Result struct {
	Find           CacheFind `json:"find"`
	PointsEarned   int       `json:"pointsEarned"`
	NewScore       int       `json:"newScore"`
	CacheFindCount int       `json:"cacheFindCount"`
}

// Recorder 负责发现记录的原子入账。
type Recorder struct {
	db     *gorm.DB
	mirror ScoreMirror
}

// NewRecorder 创建一个Recorder。
func NewRecorder(db *gorm.DB, mirror ScoreMirror) *Recorder {
	return &Recorder{db: db, mirror: mirror}
}

// DefaultRecorder 是连接全局数据库与Redis镜像的生产实例，
// 由setup.go在启动时装配。
var DefaultRecorder *Recorder

// Details 是确认发现时随附的上下文。
type Details struct {
	// Note 是发现者的可选留言
	Note string
	// Location 是发现发生时用户的位置
	Location geo.Point
}

// RecordFind 将一次发现原子性地写入持久层。
// 在同一个事务中完成：资格复核、发现记录插入、宝藏计数更新、
// 用户积分更新，以及读模型镜像同步。镜像写入失败时整个事务回滚。
func (r *Recorder) RecordFind(cacheID, userID string, details Details) (*Result, error) {
	findID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成发现记录UUID: %w", err)
	}
	now := time.Now().UnixMilli()

	var result *Result
	err = r.db.Transaction(func(tx *gorm.DB) error {
		// 行锁定宝藏，后续的计数更新以锁定后的值为准
		var c cache.Cache
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", cacheID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCacheNotFound
			}
			return fmt.Errorf("无法锁定宝藏记录: %w", err)
		}

		// 资格复核，顺序与扫描端保持一致
		alreadyFound, err := hasUserFoundCacheIn(tx, cacheID, userID)
		if err != nil {
			return err
		}
		switch {
		case c.CreatorID == userID:
			return ErrOwnCache
		case c.Status != cache.StatusActive:
			return ErrCacheNotActive
		case c.ExpiresAt != 0 && c.ExpiresAt <= now:
			return ErrCacheExpired
		case c.IsSingleton && c.FindCount > 0 && !alreadyFound:
			return ErrSingletonClaimed
		case alreadyFound:
			return ErrAlreadyFound
		}

		var finder user.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", userID).First(&finder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return user.ErrUserNotFound
			}
			return fmt.Errorf("无法锁定用户记录: %w", err)
		}

		// 积分在此刻快照，之后宝藏积分的变更不影响这条记录
		newFind := CacheFind{
			ID:           findID.String(),
			CacheID:      cacheID,
			UserID:       userID,
			Username:     finder.Username,
			PointsEarned: c.Value,
			FoundAt:      now,
			Latitude:     details.Location.Lat,
			Longitude:    details.Location.Lon,
			Note:         details.Note,
		}
		if err := tx.Create(&newFind).Error; err != nil {
			// 复合唯一索引兜底并发下的重复发现
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyFound
			}
			return fmt.Errorf("无法创建发现记录: %w", err)
		}

		c.FindCount++
		c.LastFoundAt = now
		if err := tx.Model(&cache.Cache{}).Where("id = ?", cacheID).
			Updates(map[string]interface{}{
				"find_count":    c.FindCount,
				"last_found_at": c.LastFoundAt,
			}).Error; err != nil {
			return fmt.Errorf("无法更新宝藏计数: %w", err)
		}

		finder.Score += c.Value
		finder.FindsCount++
		if err := tx.Model(&user.User{}).Where("uuid = ?", userID).
			Updates(map[string]interface{}{
				"score":       finder.Score,
				"finds_count": finder.FindsCount,
			}).Error; err != nil {
			return fmt.Errorf("无法更新用户积分: %w", err)
		}

		// 镜像同步失败会导致整个事务回滚
		if err := r.mirror.ApplyFind(&c, &finder, &newFind); err != nil {
			return fmt.Errorf("无法同步读模型: %w", err)
		}

		result = &Result{
			Find:           newFind,
			PointsEarned:   newFind.PointsEarned,
			NewScore:       finder.Score,
			CacheFindCount: c.FindCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.DefaultWatcher.Notify()
	return result, nil
}
