package user

import (
	"time"

	"gorm.io/gorm"
)

// User 定义了用户在SQLite数据库中的持久化模型。
// 它只存储最核心的、作为快照基础的数据。
type User struct {
	// UUID 是用户的主键，来自客户端Cookie。
	UUID string `gorm:"primarykey;type:varchar(36)"`

	// Username 是用户激活时选择的显示名称，全局唯一。
	Username string `gorm:"uniqueIndex;type:varchar(64)"`

	// FirstName 和 LastName 是可选的个人资料字段。
	FirstName string `gorm:"type:varchar(64)"`
	LastName  string `gorm:"type:varchar(64)"`

	// Score 记录了用户通过发现宝藏累积的总积分。
	Score int

	// FindsCount 记录了用户成功发现宝藏的总次数。
	FindsCount int

	// CreatesCount 记录了用户创建宝藏的总次数。
	CreatesCount int

	// 部分gorm.Model，由GORM自动管理
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
