package metadata

import (
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
)

// PrimeDB 负责初始化metadata模块的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("无法迁移metadata表: %w", err)
	}
	fmt.Println("Metadata数据库表迁移成功。")
	return nil
}

// WarmupCache 从SQLite恢复Redis中的元数据计数器。
func WarmupCache() error {
	totalFinds, err := GetSnapshotTotalFinds(database.DB)
	if err != nil {
		return fmt.Errorf("无法读取快照总发现数: %w", err)
	}
	if err := database.RDB.Set(database.Ctx, RedisTotalFindsKey, totalFinds, 0).Err(); err != nil {
		return fmt.Errorf("无法预热元数据计数器到Redis: %w", err)
	}
	return nil
}

// PrimeCachedDB 是metadata模块的初始化总入口
func PrimeCachedDB() error {
	if err := PrimeDB(); err != nil {
		return err
	}
	return WarmupCache()
}
