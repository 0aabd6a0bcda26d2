package find

import (
	"time"

	"gorm.io/gorm"
)

// CacheFind 定义了一条发现记录在SQLite数据库中的持久化模型。
// (cache_id, user_id) 上的复合唯一索引是防止重复发现的最终防线。
type CacheFind struct {
	// ID 是发现记录的主键，使用UUID v7。
	ID string `gorm:"primarykey;type:varchar(36)"`

	CacheID string `gorm:"uniqueIndex:idx_find_cache_user;not null;type:varchar(36)"`
	UserID  string `gorm:"uniqueIndex:idx_find_cache_user;not null;type:varchar(36)"`

	// Username 是发现者用户名的冗余快照，用于展示时免去一次关联查询。
	Username string `gorm:"type:varchar(64)"`

	// PointsEarned 是发现时宝藏积分的快照。
	// 之后宝藏积分的变更不影响已入账的记录。
	PointsEarned int `gorm:"not null"`

	// FoundAt 是发现发生的时刻（unix毫秒）。
	FoundAt int64 `gorm:"not null"`

	// Latitude/Longitude 是发现发生时用户的位置。
	Latitude  float64
	Longitude float64

	// Note 是发现者留下的可选留言。
	Note string `gorm:"type:varchar(256)"`

	// Verified 保留字段，当前逻辑不使用。
	Verified bool

	// 部分gorm.Model，由GORM自动管理
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
