package cache

import (
	"encoding/json"
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
)

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Cache{}); err != nil {
		return fmt.Errorf("无法迁移cache表: %w", err)
	}
	fmt.Println("Cache数据库表迁移成功。")
	return nil
}

// WarmupCache 从SQLite加载所有未归档的宝藏，重建Redis读模型。
func WarmupCache() error {
	var caches []Cache
	if err := database.DB.Where("status <> ?", StatusArchived).Find(&caches).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取宝藏数据: %w", err)
	}

	LockRepository()
	defer UnlockRepository()

	pipe := database.RDB.Pipeline()
	// 先清空旧的缓存，确保数据一致性
	pipe.Del(database.Ctx, InfoKey)

	if len(caches) == 0 {
		if _, err := pipe.Exec(database.Ctx); err != nil {
			return fmt.Errorf("清空宝藏缓存失败: %w", err)
		}
		fmt.Println("无现有宝藏数据，无需预热宝藏缓存。")
		return nil
	}

	for i := range caches {
		snapJSON, err := json.Marshal(SnapshotOf(&caches[i]))
		if err != nil {
			return fmt.Errorf("无法序列化宝藏 %s 的快照: %w", caches[i].ID, err)
		}
		pipe.HSet(database.Ctx, InfoKey, caches[i].ID, snapJSON)
	}

	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热宝藏数据到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 个宝藏到Redis。\n", len(caches))
	return nil
}

// PrimeCachedDB 是cache模块的初始化总入口
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	return WarmupCache()
}
