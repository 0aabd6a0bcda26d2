package find

import (
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
)

// migrateDB 负责自动迁移数据库表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&CacheFind{}); err != nil {
		return fmt.Errorf("无法迁移cache_find表: %w", err)
	}
	fmt.Println("CacheFind数据库表迁移成功。")
	return nil
}

// PrimeDB 是find模块的初始化总入口。
// 发现记录的读模型由user和cache模块的预热逻辑覆盖，这里只需迁移表
// 并装配生产Recorder。
func PrimeDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	DefaultRecorder = NewRecorder(database.DB, NewRedisMirror())
	return nil
}
