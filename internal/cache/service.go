package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinCacheSpacingMeters 是两个宝藏藏匿点之间允许的最小间距。
const MinCacheSpacingMeters = 50.0

// 服务层的哨兵错误
var (
	ErrCacheNotFound = errors.New("宝藏不存在")
	ErrNotOwner      = errors.New("只有创建者可以执行此操作")
	ErrTooClose      = errors.New("与已有宝藏的距离过近")
	ErrInvalidStatus = errors.New("不允许的状态变更")
)

// CreateCacheInput 是创建宝藏所需的全部字段。
type CreateCacheInput struct {
	Name        string
	Description string
	Hint        string
	Latitude    float64
	Longitude   float64
	Value       int
	Difficulty  int
	Terrain     int
	Category    CacheCategory
	IsSingleton bool
	MinDistance float64
	ExpiresAt   int64
}

// validateInput 对创建请求做字段级校验。
func validateInput(input *CreateCacheInput) error {
	if _, err := geo.NewPoint(input.Latitude, input.Longitude); err != nil {
		return fmt.Errorf("非法的藏匿坐标: %w", err)
	}
	if len(input.Name) == 0 || len(input.Name) > 128 {
		return errors.New("宝藏名称长度必须在1到128之间")
	}
	if len(input.Description) < 10 || len(input.Description) > 500 {
		return errors.New("宝藏描述长度必须在10到500之间")
	}
	if input.Value < 1 || input.Value > 100 {
		return errors.New("宝藏积分必须在1到100之间")
	}
	if input.Difficulty < 1 || input.Difficulty > 5 {
		return errors.New("难度等级必须在1到5之间")
	}
	if input.Terrain < 1 || input.Terrain > 5 {
		return errors.New("地形等级必须在1到5之间")
	}
	if !ValidCategories[input.Category] {
		return errors.New("未知的宝藏分类")
	}
	if input.MinDistance < 0 {
		return errors.New("确认半径不能为负数")
	}
	if input.ExpiresAt != 0 && input.ExpiresAt <= time.Now().UnixMilli() {
		return errors.New("过期时间必须在未来")
	}
	return nil
}

// checkSpacing 确保新宝藏与所有未归档的现有宝藏保持最小间距。
func checkSpacing(tx *gorm.DB, point geo.Point) error {
	var existing []Cache
	if err := tx.Where("status <> ?", StatusArchived).Find(&existing).Error; err != nil {
		return fmt.Errorf("无法读取现有宝藏位置: %w", err)
	}
	for i := range existing {
		if geo.Distance(point, existing[i].Point()) < MinCacheSpacingMeters {
			return ErrTooClose
		}
	}
	return nil
}

// CreateCache 创建一个新的宝藏，并同步更新创建者的统计数据。
// SQLite写入与Redis缓存更新是原子性的：缓存写入失败时数据库事务回滚。
func CreateCache(creatorID string, input CreateCacheInput) (*Cache, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	newID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成宝藏UUID: %w", err)
	}

	newCache := Cache{
		ID:          newID.String(),
		Name:        input.Name,
		Description: input.Description,
		Hint:        input.Hint,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		CreatorID:   creatorID,
		Value:       input.Value,
		Difficulty:  input.Difficulty,
		Terrain:     input.Terrain,
		Category:    input.Category,
		Status:      StatusActive,
		IsSingleton: input.IsSingleton,
		MinDistance: input.MinDistance,
		ExpiresAt:   input.ExpiresAt,
	}
	point := newCache.Point()

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := checkSpacing(tx, point); err != nil {
			return err
		}

		// 行锁定创建者，保证统计数据的读-改-写是安全的
		var creator user.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("uuid = ?", creatorID).First(&creator).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return user.ErrUserNotFound
			}
			return fmt.Errorf("无法锁定创建者记录: %w", err)
		}

		if err := tx.Create(&newCache).Error; err != nil {
			return fmt.Errorf("无法在SQLite中创建宝藏: %w", err)
		}

		creator.CreatesCount++
		if err := tx.Model(&user.User{}).Where("uuid = ?", creatorID).
			Update("creates_count", creator.CreatesCount).Error; err != nil {
			return fmt.Errorf("无法更新创建者统计: %w", err)
		}

		stats := user.UserStats{
			Username: creator.Username,
			Score:    creator.Score,
			Finds:    creator.FindsCount,
			Creates:  creator.CreatesCount,
		}
		statsJSON, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("无法序列化创建者统计: %w", err)
		}

		// Redis缓存更新失败会导致整个事务回滚
		LockRepository()
		defer UnlockRepository()
		user.LockRepository()
		defer user.UnlockRepository()

		snapJSON, err := json.Marshal(SnapshotOf(&newCache))
		if err != nil {
			return fmt.Errorf("无法序列化宝藏快照: %w", err)
		}
		pipe := database.RDB.Pipeline()
		pipe.HSet(database.Ctx, InfoKey, newCache.ID, snapJSON)
		pipe.HSet(database.Ctx, user.StatsKey, creatorID, statsJSON)
		pipe.SAdd(database.Ctx, user.DirtySetKey, creatorID)
		if _, err := pipe.Exec(database.Ctx); err != nil {
			return fmt.Errorf("无法将宝藏 %s 写入Redis缓存: %w", newCache.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	DefaultWatcher.Notify()
	return &newCache, nil
}

// GetCacheByID 优先从Redis读模型获取宝藏快照，缓存未命中时回退到SQLite。
func GetCacheByID(cacheID string) (*Snapshot, error) {
	if database.IsRedisHealthy() {
		RLockRepository()
		data, err := database.RDB.HGet(database.Ctx, InfoKey, cacheID).Result()
		RUnlockRepository()
		if err == nil {
			var snap Snapshot
			if err := json.Unmarshal([]byte(data), &snap); err == nil {
				return &snap, nil
			}
		}
	}

	var c Cache
	if err := database.DB.Where("id = ?", cacheID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("无法从SQLite读取宝藏: %w", err)
	}
	snap := SnapshotOf(&c)
	return &snap, nil
}

// ActiveCachesNear 返回以center为圆心、radius米半径内的所有活跃宝藏快照。
// 正常情况下从Redis读模型过滤；Redis不可用时降级为SQLite全表扫描。
func ActiveCachesNear(center geo.Point, radius float64) ([]Snapshot, error) {
	var snaps []Snapshot
	var err error

	if database.IsRedisHealthy() {
		snaps, err = allSnapshots()
		if err != nil {
			return nil, err
		}
	} else {
		var rows []Cache
		if err := database.DB.Where("status = ?", StatusActive).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("无法从SQLite读取活跃宝藏: %w", err)
		}
		snaps = make([]Snapshot, len(rows))
		for i := range rows {
			snaps[i] = SnapshotOf(&rows[i])
		}
	}

	nearby := make([]Snapshot, 0, len(snaps))
	for i := range snaps {
		if snaps[i].Status != StatusActive {
			continue
		}
		if geo.Distance(center, snaps[i].Point()) <= radius {
			nearby = append(nearby, snaps[i])
		}
	}
	return nearby, nil
}

// ListCachesByCreator 返回某个用户创建的所有宝藏。
func ListCachesByCreator(creatorID string) ([]Snapshot, error) {
	var rows []Cache
	if err := database.DB.Where("creator_id = ?", creatorID).
		Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("无法从SQLite读取用户的宝藏: %w", err)
	}
	snaps := make([]Snapshot, len(rows))
	for i := range rows {
		snaps[i] = SnapshotOf(&rows[i])
	}
	return snaps, nil
}

// UpdateCacheStatus 由创建者在ACTIVE和DISABLED之间切换宝藏状态。
func UpdateCacheStatus(cacheID, requesterID string, status CacheStatus) error {
	if status != StatusActive && status != StatusDisabled {
		return ErrInvalidStatus
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var c Cache
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", cacheID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCacheNotFound
			}
			return fmt.Errorf("无法锁定宝藏记录: %w", err)
		}
		if c.CreatorID != requesterID {
			return ErrNotOwner
		}
		if c.Status == StatusArchived || c.Status == StatusExpired {
			return ErrInvalidStatus
		}

		c.Status = status
		if err := tx.Model(&Cache{}).Where("id = ?", cacheID).
			Update("status", status).Error; err != nil {
			return fmt.Errorf("无法更新宝藏状态: %w", err)
		}

		LockRepository()
		defer UnlockRepository()
		if err := WriteSnapshotUnsafe(SnapshotOf(&c)); err != nil {
			return fmt.Errorf("无法更新Redis中的宝藏快照: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	DefaultWatcher.Notify()
	return nil
}

// DeleteCache 由创建者归档自己的宝藏。
// 归档后的宝藏从读模型中移除，历史发现记录保持不变。
func DeleteCache(cacheID, requesterID string) error {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var c Cache
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", cacheID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCacheNotFound
			}
			return fmt.Errorf("无法锁定宝藏记录: %w", err)
		}
		if c.CreatorID != requesterID {
			return ErrNotOwner
		}

		if err := tx.Model(&Cache{}).Where("id = ?", cacheID).
			Update("status", StatusArchived).Error; err != nil {
			return fmt.Errorf("无法归档宝藏: %w", err)
		}

		LockRepository()
		defer UnlockRepository()
		if err := RemoveSnapshotUnsafe(cacheID); err != nil {
			return fmt.Errorf("无法从Redis移除宝藏快照: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	DefaultWatcher.Notify()
	return nil
}
