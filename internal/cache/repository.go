package cache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
)

// --- Redis 键名常量 ---

const (
	// InfoKey 是一个 Redis Hash 的键，存储所有宝藏的快照数据。
	// Field: 宝藏的UUID
	// Value: Snapshot 结构体的JSON序列化字符串
	InfoKey = "cache:info"
)

// --- 并发控制 ---

// repoMutex 保护对本模块管理的Redis键的并发访问。
var repoMutex sync.RWMutex

// LockRepository 封装了对模块全局锁的写锁定操作。
func LockRepository() {
	repoMutex.Lock()
}

// UnlockRepository 封装了对模块全局锁的写解锁操作。
func UnlockRepository() {
	repoMutex.Unlock()
}

// RLockRepository 封装了对模块全局锁的读锁定操作。
func RLockRepository() {
	repoMutex.RLock()
}

// RUnlockRepository 封装了对模块全局锁的读解锁操作。
func RUnlockRepository() {
	repoMutex.RUnlock()
}

// --- Redis 读模型访问 ---

// WriteSnapshotUnsafe 将一个宝藏快照写入Redis读模型。
// 调用方必须已持有写锁。
func WriteSnapshotUnsafe(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("无法序列化宝藏快照 %s: %w", snap.ID, err)
	}
	return database.RDB.HSet(database.Ctx, InfoKey, snap.ID, data).Err()
}

// RemoveSnapshotUnsafe 从Redis读模型中移除一个宝藏。
// 调用方必须已持有写锁。
func RemoveSnapshotUnsafe(cacheID string) error {
	return database.RDB.HDel(database.Ctx, InfoKey, cacheID).Err()
}

// allSnapshots 读取Redis中所有宝藏的快照。
func allSnapshots() ([]Snapshot, error) {
	RLockRepository()
	raw, err := database.RDB.HGetAll(database.Ctx, InfoKey).Result()
	RUnlockRepository()
	if err != nil {
		return nil, fmt.Errorf("无法从Redis读取宝藏快照: %w", err)
	}

	snaps := make([]Snapshot, 0, len(raw))
	for id, data := range raw {
		var snap Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			fmt.Printf("警告: 宝藏 %s 的Redis快照损坏，已跳过: %v\n", id, err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
