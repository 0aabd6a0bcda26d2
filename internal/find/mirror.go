package find

import (
	"encoding/json"
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"github.com/SlpAus/mapmyst-backend/internal/platform/metadata"
	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/redis/go-redis/v9"
)

// redisMirror 是 ScoreMirror 的生产实现。
// 它用一个Pipeline把发现入账涉及的全部读模型变更一次性提交。
type redisMirror struct{}

// NewRedisMirror 返回写入全局Redis的镜像实现。
func NewRedisMirror() ScoreMirror {
	return redisMirror{}
}

func (redisMirror) ApplyFind(c *cache.Cache, finder *user.User, f *CacheFind) error {
	snapJSON, err := json.Marshal(cache.SnapshotOf(c))
	if err != nil {
		return fmt.Errorf("无法序列化宝藏快照: %w", err)
	}

	stats := user.UserStats{
		Username: finder.Username,
		Score:    finder.Score,
		Finds:    finder.FindsCount,
		Creates:  finder.CreatesCount,
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("无法序列化用户统计: %w", err)
	}

	cache.LockRepository()
	defer cache.UnlockRepository()
	user.LockRepository()
	defer user.UnlockRepository()

	pipe := database.RDB.Pipeline()
	pipe.HSet(database.Ctx, cache.InfoKey, c.ID, snapJSON)
	pipe.HSet(database.Ctx, user.StatsKey, finder.UUID, statsJSON)
	pipe.ZAdd(database.Ctx, user.RankingKey, redis.Z{Score: float64(finder.Score), Member: finder.UUID})
	pipe.SAdd(database.Ctx, user.DirtySetKey, finder.UUID)
	pipe.Incr(database.Ctx, metadata.RedisTotalFindsKey)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return err
	}
	return nil
}
