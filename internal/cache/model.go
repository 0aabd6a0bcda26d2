package cache

import (
	"time"

	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"gorm.io/gorm"
)

// CacheStatus 表示宝藏的生命周期状态。
type CacheStatus string

const (
	StatusActive   CacheStatus = "ACTIVE"
	StatusDisabled CacheStatus = "DISABLED"
	StatusArchived CacheStatus = "ARCHIVED"
	StatusExpired  CacheStatus = "EXPIRED"
)

// CacheCategory 表示宝藏的主题分类。
type CacheCategory string

const (
	CategoryEasy       CacheCategory = "EASY"
	CategoryNature     CacheCategory = "NATURE"
	CategoryUrban      CacheCategory = "URBAN"
	CategoryHistorical CacheCategory = "HISTORICAL"
	CategoryPuzzle     CacheCategory = "PUZZLE"
	CategoryMystery    CacheCategory = "MYSTERY"
	CategoryAdventure  CacheCategory = "ADVENTURE"
)

// ValidCategories 列出所有合法的分类值，用于请求校验。
var ValidCategories = map[CacheCategory]bool{
	CategoryEasy:       true,
	CategoryNature:     true,
	CategoryUrban:      true,
	CategoryHistorical: true,
	CategoryPuzzle:     true,
	CategoryMystery:    true,
	CategoryAdventure:  true,
}

// Cache 定义了宝藏在SQLite数据库中的持久化模型。
type Cache struct {
	// ID 是宝藏的主键，使用UUID v7。
	ID string `gorm:"primarykey;type:varchar(36)"`

	Name        string `gorm:"not null;type:varchar(128)"`
	Description string `gorm:"type:varchar(512)"`
	Hint        string `gorm:"type:varchar(256)"`

	// 宝藏的藏匿坐标
	Latitude  float64 `gorm:"not null"`
	Longitude float64 `gorm:"not null"`

	// CreatorID 是创建者的用户UUID。
	CreatorID string `gorm:"index;not null;type:varchar(36)"`

	// Value 是发现该宝藏可获得的积分。
	Value int `gorm:"not null"`

	Difficulty int
	Terrain    int
	Category   CacheCategory `gorm:"type:varchar(16)"`
	Status     CacheStatus   `gorm:"index;not null;type:varchar(16)"`

	// IsSingleton 为true时，宝藏只能被第一个发现者认领。
	IsSingleton bool

	// MinDistance 是该宝藏自定义的确认半径（米）。
	// 为0时使用全局默认值。
	MinDistance float64

	// FindCount 记录该宝藏被发现的总次数。
	FindCount int

	// LastFoundAt 是最近一次被发现的时刻（unix毫秒），0表示从未被发现。
	LastFoundAt int64

	// ExpiresAt 是宝藏的过期时刻（unix毫秒），0表示永不过期。
	ExpiresAt int64 `gorm:"index"`

	// 部分gorm.Model，由GORM自动管理
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// Point 返回宝藏的藏匿坐标。
func (c *Cache) Point() geo.Point {
	p, _ := geo.NewPoint(c.Latitude, c.Longitude)
	return p
}

// Snapshot 是宝藏在Redis读模型中的快照视图，
// 也是扫描引擎消费的候选数据结构。
type Snapshot struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Hint        string        `json:"hint,omitempty"`
	Latitude    float64       `json:"lat"`
	Longitude   float64       `json:"lon"`
	CreatorID   string        `json:"creatorId"`
	Value       int           `json:"value"`
	Difficulty  int           `json:"difficulty"`
	Terrain     int           `json:"terrain"`
	Category    CacheCategory `json:"category"`
	Status      CacheStatus   `json:"status"`
	IsSingleton bool          `json:"isSingleton"`
	MinDistance float64       `json:"minDistance"`
	FindCount   int           `json:"findCount"`
	LastFoundAt int64         `json:"lastFoundAt"`
	ExpiresAt   int64         `json:"expiresAt"`
}

// Point 返回快照中的藏匿坐标。
func (s *Snapshot) Point() geo.Point {
	p, _ := geo.NewPoint(s.Latitude, s.Longitude)
	return p
}

// SnapshotOf 从持久化模型构建Redis快照。
func SnapshotOf(c *Cache) Snapshot {
	return Snapshot{
		ID:          c.ID,
		Name:        c.Name,
		Hint:        c.Hint,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		CreatorID:   c.CreatorID,
		Value:       c.Value,
		Difficulty:  c.Difficulty,
		Terrain:     c.Terrain,
		Category:    c.Category,
		Status:      c.Status,
		IsSingleton: c.IsSingleton,
		MinDistance: c.MinDistance,
		FindCount:   c.FindCount,
		LastFoundAt: c.LastFoundAt,
		ExpiresAt:   c.ExpiresAt,
	}
}
