package discovery

import (
	"context"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/find"
	"github.com/SlpAus/mapmyst-backend/internal/platform/config"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
)

// DefaultManager 是装配了生产依赖的全局Manager实例。
var DefaultManager *Manager

// cacheStoreSource 用cache模块的读模型实现CacheSource。
type cacheStoreSource struct{}

func (cacheStoreSource) ActiveCachesNear(ctx context.Context, center geo.Point, radius float64) ([]cache.Snapshot, error) {
	// 读模型查询本身足够快，超时控制由上层的ctx保证语义边界
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cache.ActiveCachesNear(center, radius)
}

// findStoreChecker 用find模块实现FindChecker。
type findStoreChecker struct{}

func (findStoreChecker) HasUserFoundCache(cacheID, userID string) (bool, error) {
	return find.HasUserFoundCache(cacheID, userID)
}

// InitModule 在启动时装配生产Manager。
// 必须在find.PrimeDB之后调用，以保证DefaultRecorder已就绪。
func InitModule(cfg config.DiscoveryConfig) {
	DefaultManager = NewManager(
		cfg,
		cacheStoreSource{},
		findStoreChecker{},
		find.DefaultRecorder,
		cache.DefaultWatcher,
	)
}
