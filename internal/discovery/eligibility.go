package discovery

import (
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
)

// FindChecker 抽象了“用户是否已发现过某宝藏”的存在性检查。
// 生产实现查询find模块；测试中注入内存假实现。
type FindChecker interface {
	HasUserFoundCache(cacheID, userID string) (bool, error)
}

// isEligible 判断userID是否有资格发现snap。
// 规则按固定顺序短路求值；重复发现检查出错时按不合格处理（fail-closed），
// 错误不向扫描周期传播。
func isEligible(snap *cache.Snapshot, userID string, now int64, checker FindChecker) bool {
	if snap.CreatorID == userID {
		return false
	}
	if snap.Status != cache.StatusActive {
		return false
	}
	if snap.ExpiresAt != 0 && snap.ExpiresAt <= now {
		return false
	}
	if snap.IsSingleton && snap.FindCount >= 1 {
		return false
	}
	found, err := checker.HasUserFoundCache(snap.ID, userID)
	if err != nil || found {
		return false
	}
	return true
}

// nowUnixMilli 便于测试替换时间源。
var nowUnixMilli = func() int64 {
	return time.Now().UnixMilli()
}
