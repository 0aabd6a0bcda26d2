package user

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 服务层的哨兵错误
var (
	ErrUsernameTaken = errors.New("用户名已被占用")
	ErrUserNotFound  = errors.New("用户不存在")
)

// IsValidUUID 检查一个字符串是否是合法的UUID格式。
func IsValidUUID(u string) bool {
	_, err := uuid.Parse(u)
	return err == nil
}

// CreateProvisionalUser 生成一个临时的、尚未持久化的新用户UUID。
// 这个UUID将被设置到cookie中，但此时尚未被“认证”。
func CreateProvisionalUser() (string, error) {
	newUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成UUID v7: %w", err)
	}
	return newUUID.String(), nil
}

// IsUserActivated 检查一个给定的UUID是否已经被认证（即存在于我们的持久化系统中）。
// 它只查询Redis缓存，以获得最高性能。
func IsUserActivated(uuidStr string) (bool, error) {
	if uuidStr == "" {
		return false, nil
	}
	exists, err := database.RDB.SIsMember(database.Ctx, KnownUsersKey, uuidStr).Result()
	if err != nil {
		return false, fmt.Errorf("检查Redis用户缓存时出错: %w", err)
	}
	return exists, nil
}

// ActivateUser 将一个临时的UUID与用户名绑定，并正式持久化到数据库和缓存中。
// 这个操作是原子性的，如果缓存写入失败，数据库写入将被回滚。
func ActivateUser(uuidStr, username, firstName, lastName string) error {
	// 首先检查该用户是否已经被激活，避免重复写入
	activated, err := IsUserActivated(uuidStr)
	if err != nil {
		return err
	}
	if activated {
		return nil // 用户已存在，无需操作
	}

	return database.DB.Transaction(func(tx *gorm.DB) error {
		newUser := User{
			UUID:      uuidStr,
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
		}
		if err := tx.Create(&newUser).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// 主键冲突说明用户已存在；用户名冲突则需要告知调用方换名。
				var existing User
				if tx.Where("uuid = ?", uuidStr).First(&existing).Error == nil {
					return nil
				}
				return ErrUsernameTaken
			}
			return fmt.Errorf("无法在SQLite中创建新用户: %w", err)
		}

		stats := UserStats{Username: username}
		statsJSON, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("无法序列化用户统计数据: %w", err)
		}

		// 尝试将新用户写入Redis缓存
		// 如果Redis写入失败，返回错误以回滚SQLite的写入，保证数据一致性
		LockRepository()
		defer UnlockRepository()
		pipe := database.RDB.Pipeline()
		pipe.SAdd(database.Ctx, KnownUsersKey, uuidStr)
		pipe.HSet(database.Ctx, StatsKey, uuidStr, statsJSON)
		pipe.ZAdd(database.Ctx, RankingKey, redis.Z{Score: 0, Member: uuidStr})
		pipe.SAdd(database.Ctx, DirtySetKey, uuidStr)
		if _, err := pipe.Exec(database.Ctx); err != nil {
			return fmt.Errorf("无法将新用户 %s 写入Redis缓存: %w", uuidStr, err)
		}
		return nil
	})
}

// Profile 是返回给前端的用户资料视图。
type Profile struct {
	UUID      string `json:"uuid"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Score     int    `json:"score"`
	Finds     int    `json:"finds"`
	Creates   int    `json:"creates"`
	Rank      int64  `json:"rank"`
}

// GetProfile 组合SQLite中的资料字段与Redis中的实时排名，返回用户资料。
func GetProfile(uuidStr string) (*Profile, error) {
	var u User
	if err := database.DB.Where("uuid = ?", uuidStr).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("无法从SQLite读取用户: %w", err)
	}

	profile := &Profile{
		UUID:      u.UUID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Score:     u.Score,
		Finds:     u.FindsCount,
		Creates:   u.CreatesCount,
	}

	rank, err := GetUserRank(uuidStr)
	if err != nil {
		return nil, err
	}
	profile.Rank = rank
	return profile, nil
}

// GetUserRank 从Redis排名中获取用户的名次（从1开始）。
// 如果用户不在排名中，返回0。
func GetUserRank(uuidStr string) (int64, error) {
	RLockRepository()
	defer RUnlockRepository()

	rank, err := database.RDB.ZRevRank(database.Ctx, RankingKey, uuidStr).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("无法从Redis获取用户排名: %w", err)
	}
	return rank + 1, nil
}

// LeaderboardEntry 是排行榜中的一行。
type LeaderboardEntry struct {
	Rank     int64  `json:"rank"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Finds    int    `json:"finds"`
}

// GetLeaderboard 从Redis读取积分最高的前limit名用户。
func GetLeaderboard(limit int64) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	RLockRepository()
	defer RUnlockRepository()

	members, err := database.RDB.ZRevRangeWithScores(database.Ctx, RankingKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("无法从Redis读取排行榜: %w", err)
	}
	if len(members) == 0 {
		return []LeaderboardEntry{}, nil
	}

	uuids := make([]string, len(members))
	for i, m := range members {
		uuids[i] = m.Member.(string)
	}

	statsJSONs, err := database.RDB.HMGet(database.Ctx, StatsKey, uuids...).Result()
	if err != nil {
		return nil, fmt.Errorf("无法从Redis批量读取用户统计: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		entry := LeaderboardEntry{
			Rank:  int64(i + 1),
			UUID:  uuids[i],
			Score: int(m.Score),
		}
		if raw, ok := statsJSONs[i].(string); ok {
			var stats UserStats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				entry.Username = stats.Username
				entry.Finds = stats.Finds
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
