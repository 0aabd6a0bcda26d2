package cache

import (
	"fmt"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"github.com/SlpAus/mapmyst-backend/pkg/lifecycle"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// sweepInterval 是过期扫描的基础周期。
	sweepInterval = 1 * time.Minute
	// sweepRetryInterval 是扫描失败后的退避时长。
	sweepRetryInterval = 2 * time.Minute
)

// StartExpirySweeper 启动后台过期扫描器。
// 它周期性地将到期的活跃宝藏标记为EXPIRED，并同步更新读模型。
func StartExpirySweeper(handle *lifecycle.Handle) {
	go runSweeperLoop(handle)
}

func runSweeperLoop(handle *lifecycle.Handle) {
	defer handle.Close()
	fmt.Println("宝藏过期扫描器已启动。")

	for {
		interval := sweepInterval
		if err := sweepExpiredCaches(); err != nil {
			fmt.Printf("过期扫描失败: %v\n", err)
			interval = sweepRetryInterval
		}

		if err := handle.Sleep(interval); err != nil {
			fmt.Println("宝藏过期扫描器已停止。")
			return
		}
	}
}

// sweepExpiredCaches 执行一轮过期检查。
func sweepExpiredCaches() error {
	// Redis不可用时跳过本轮，避免读模型与数据库产生分歧
	if !database.IsRedisHealthy() {
		return nil
	}

	now := time.Now().UnixMilli()
	var expired []Cache
	if err := database.DB.Where("status = ? AND expires_at > 0 AND expires_at <= ?", StatusActive, now).
		Find(&expired).Error; err != nil {
		return fmt.Errorf("无法查询到期宝藏: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	for i := range expired {
		cacheID := expired[i].ID
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var c Cache
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND status = ?", cacheID, StatusActive).First(&c).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return nil // 已被其他写入者处理
				}
				return err
			}

			c.Status = StatusExpired
			if err := tx.Model(&Cache{}).Where("id = ?", cacheID).
				Update("status", StatusExpired).Error; err != nil {
				return err
			}

			LockRepository()
			defer UnlockRepository()
			return WriteSnapshotUnsafe(SnapshotOf(&c))
		})
		if err != nil {
			return fmt.Errorf("无法标记宝藏 %s 为过期: %w", cacheID, err)
		}
	}

	fmt.Printf("过期扫描完成，标记了 %d 个宝藏。\n", len(expired))
	DefaultWatcher.Notify()
	return nil
}
