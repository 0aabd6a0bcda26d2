package find

import (
	"errors"
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"gorm.io/gorm"
)

// HasUserFoundCache 检查某个用户是否已经发现过某个宝藏。
// 直接查询SQLite权威数据，复合索引保证了查询效率。
func HasUserFoundCache(cacheID, userID string) (bool, error) {
	return hasUserFoundCacheIn(database.DB, cacheID, userID)
}

func hasUserFoundCacheIn(db *gorm.DB, cacheID, userID string) (bool, error) {
	var f CacheFind
	err := db.Where("cache_id = ? AND user_id = ?", cacheID, userID).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("无法查询发现记录: %w", err)
	}
	return true, nil
}

// ListFindsByUser 返回某个用户的全部发现记录，按时间倒序。
func ListFindsByUser(userID string) ([]CacheFind, error) {
	var finds []CacheFind
	if err := database.DB.Where("user_id = ?", userID).
		Order("found_at desc").Find(&finds).Error; err != nil {
		return nil, fmt.Errorf("无法读取用户的发现记录: %w", err)
	}
	return finds, nil
}

// ListFindsByCache 返回某个宝藏的全部发现记录，按时间正序。
func ListFindsByCache(cacheID string) ([]CacheFind, error) {
	var finds []CacheFind
	if err := database.DB.Where("cache_id = ?", cacheID).
		Order("found_at asc").Find(&finds).Error; err != nil {
		return nil, fmt.Errorf("无法读取宝藏的发现记录: %w", err)
	}
	return finds, nil
}
