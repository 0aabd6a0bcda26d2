package user

import (
	"encoding/json"
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"github.com/redis/go-redis/v9"
)

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("无法迁移user表: %w", err)
	}
	fmt.Println("User数据库表迁移成功。")
	return nil
}

// WarmupCache 从SQLite加载所有用户，并预热到Redis的缓存结构中。
func WarmupCache() error {
	var users []User
	// 1. 从SQLite读取所有用户
	if err := database.DB.Find(&users).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取用户数据: %w", err)
	}

	LockRepository()
	defer UnlockRepository()

	// 2. 使用Pipeline批量重建缓存
	pipe := database.RDB.Pipeline()
	// 先清空旧的缓存，确保数据一致性
	pipe.Del(database.Ctx, KnownUsersKey, StatsKey, RankingKey, DirtySetKey, ProcessingDirtySetKey)

	if len(users) == 0 {
		if _, err := pipe.Exec(database.Ctx); err != nil {
			return fmt.Errorf("清空用户缓存失败: %w", err)
		}
		fmt.Println("无现有用户数据，无需预热用户缓存。")
		return nil
	}

	for _, u := range users {
		stats := UserStats{
			Username: u.Username,
			Score:    u.Score,
			Finds:    u.FindsCount,
			Creates:  u.CreatesCount,
		}
		statsJSON, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("无法序列化用户 %s 的统计数据: %w", u.UUID, err)
		}
		pipe.SAdd(database.Ctx, KnownUsersKey, u.UUID)
		pipe.HSet(database.Ctx, StatsKey, u.UUID, statsJSON)
		pipe.ZAdd(database.Ctx, RankingKey, redis.Z{Score: float64(u.Score), Member: u.UUID})
	}

	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热用户数据到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 个用户到Redis。\n", len(users))
	return nil
}

// PrimeCachedDB 是user模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := WarmupCache(); err != nil {
		return err
	}
	return nil
}
