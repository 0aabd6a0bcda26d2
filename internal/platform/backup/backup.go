package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"github.com/SlpAus/mapmyst-backend/internal/platform/metadata"
	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/SlpAus/mapmyst-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const reconcileInterval = 10 * time.Minute // 定时对账频率

var reconcileMutex sync.Mutex // 避免意外竞态

// StartBackupScheduler 启动一个后台Goroutine来定期执行读模型对账。
// 发现入账时SQLite与Redis在同一事务内写入，对账的作用是修复
// Redis侧可能的漂移，并把快照元数据落盘。
func StartBackupScheduler(handle *lifecycle.Handle) {
	defer handle.Close() // 确保在退出时通知管理器
	fmt.Println("读模型对账调度器已启动。")

	for {
		// 使用可中断的休眠，使循环在收到停机信号时立刻唤醒并退出
		if err := handle.Sleep(reconcileInterval); err != nil {
			fmt.Printf("对账调度器: 休眠被中断，正在关闭...\n")
			return
		}

		if !database.IsRedisHealthy() {
			fmt.Println("对账调度器: 检测到Redis不可用，跳过本次对账。")
			continue
		}

		fmt.Println("对账调度器: 正在执行定时对账...")
		if err := ReconcileReadModel(handle.Ctx()); err != nil {
			// 如果错误是由于停机信号导致的，则静默退出
			if err != context.Canceled && err != context.DeadlineExceeded {
				fmt.Printf("对账调度器错误: 执行对账失败: %v\n", err)
			}
		} else {
			fmt.Println("对账调度器: 对账成功。")
		}
	}
}

// ReconcileReadModel 执行一次原子的读模型对账：
// 消费dirty集合，用SQLite中的权威数据重写这些用户的Redis条目，
// 并把快照元数据持久化到SQLite。
func ReconcileReadModel(ctx context.Context) (err error) {
	reconcileMutex.Lock()
	defer reconcileMutex.Unlock()

	var totalFindsCmd *redis.StringCmd
	var dirtyUserIDs []string

	transferred, err := func() (bool, error) {
		// user 模块在整批Redis操作期间保持锁定，确保dirty集合不撕裂
		user.LockRepository()
		defer user.UnlockRepository()

		dirtySetExists, err := database.RDB.Exists(ctx, user.DirtySetKey).Result()
		if err != nil {
			return false, fmt.Errorf("无法检查Redis中 DirtySetKey 是否存在: %w", err)
		}

		// 1. 使用原子事务(TxPipeline)消费dirty集合
		pipe := database.RDB.TxPipeline()
		totalFindsCmd = pipe.Get(database.Ctx, metadata.RedisTotalFindsKey)
		dirtyUserIDsCmd := pipe.SMembers(database.Ctx, user.DirtySetKey)
		if dirtySetExists > 0 {
			pipe.Rename(database.Ctx, user.DirtySetKey, user.ProcessingDirtySetKey)
		}
		_, err = pipe.Exec(database.Ctx)
		if err != nil && err != redis.Nil {
			return false, fmt.Errorf("无法从Redis原子地消费dirty集合: %w", err)
		}
		// TxPipeline 成功后，transferred为true，代表 DirtySetKey 已被消费

		dirtyUserIDs, err = dirtyUserIDsCmd.Result()
		if err != nil {
			return true, fmt.Errorf("获取 dirtyUserIDs 的结果时失败: %w", err)
		}
		return true, nil
	}()

	if transferred {
		defer func() {
			if err != nil {
				pipe := database.RDB.TxPipeline()
				pipe.SUnionStore(database.Ctx, user.DirtySetKey, user.DirtySetKey, user.ProcessingDirtySetKey)
				pipe.Del(database.Ctx, user.ProcessingDirtySetKey)
				pipe.Exec(database.Ctx)
			} else {
				database.RDB.Del(database.Ctx, user.ProcessingDirtySetKey)
			}
		}()
	}

	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	totalFinds, err := totalFindsCmd.Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("获取 totalFinds 的结果时失败: %w", err)
	}

	// 2. 用SQLite中的权威数据重写dirty用户的Redis条目
	if len(dirtyUserIDs) > 0 {
		var users []user.User
		if err := database.DB.Where("uuid IN ?", dirtyUserIDs).Find(&users).Error; err != nil {
			return fmt.Errorf("无法从SQLite读取dirty用户: %w", err)
		}

		user.LockRepository()
		pipe := database.RDB.Pipeline()
		for i := range users {
			u := &users[i]
			stats := user.UserStats{
				Username: u.Username,
				Score:    u.Score,
				Finds:    u.FindsCount,
				Creates:  u.CreatesCount,
			}
			statsJSON, merr := json.Marshal(stats)
			if merr != nil {
				user.UnlockRepository()
				return fmt.Errorf("无法序列化用户 %s 的统计数据: %w", u.UUID, merr)
			}
			pipe.HSet(database.Ctx, user.StatsKey, u.UUID, statsJSON)
			pipe.ZAdd(database.Ctx, user.RankingKey, redis.Z{Score: float64(u.Score), Member: u.UUID})
		}
		_, perr := pipe.Exec(database.Ctx)
		user.UnlockRepository()
		if perr != nil {
			return fmt.Errorf("重写dirty用户的Redis条目失败: %w", perr)
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// 3. 快照元数据落盘
	lastTotal, err := metadata.GetSnapshotTotalFinds(database.DB)
	if err != nil {
		return fmt.Errorf("获取 lastTotal 失败: %w", err)
	}
	if totalFinds == lastTotal && len(dirtyUserIDs) == 0 {
		return nil // 无变化，无需落盘
	}

	const maxRetry = 3
	for i := 0; i < maxRetry; i++ {
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := metadata.SetSnapshotTotalFinds(tx, totalFinds); err != nil {
				return fmt.Errorf("更新元数据 SnapshotTotalFinds 失败: %w", err)
			}
			if err := metadata.SetLastSnapshotUnixMs(tx, time.Now().UnixMilli()); err != nil {
				return fmt.Errorf("更新元数据 LastSnapshotUnixMs 失败: %w", err)
			}
			return nil
		})

		if err == nil || !database.IsRetryableError(err) {
			break
		}
	}
	return err
}
