package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/stretchr/testify/assert"
)

// fakeChecker 是FindChecker的内存假实现。
type fakeChecker struct {
	found map[string]bool
	err   error
}

func (f *fakeChecker) HasUserFoundCache(cacheID, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.found[cacheID+"/"+userID], nil
}

func activeSnapshot(id, creatorID string) cache.Snapshot {
	return cache.Snapshot{
		ID:        id,
		Name:      "test cache",
		Latitude:  44.8176,
		Longitude: 20.4633,
		CreatorID: creatorID,
		Value:     50,
		Status:    cache.StatusActive,
	}
}

func TestEligibleCache(t *testing.T) {
	snap := activeSnapshot("c1", "owner")
	checker := &fakeChecker{found: map[string]bool{}}
	assert.True(t, isEligible(&snap, "finder", time.Now().UnixMilli(), checker))
}

func TestOwnCacheIneligible(t *testing.T) {
	snap := activeSnapshot("c1", "owner")
	checker := &fakeChecker{found: map[string]bool{}}
	assert.False(t, isEligible(&snap, "owner", time.Now().UnixMilli(), checker))
}

func TestInactiveStatusIneligible(t *testing.T) {
	checker := &fakeChecker{found: map[string]bool{}}
	now := time.Now().UnixMilli()

	for _, status := range []cache.CacheStatus{cache.StatusDisabled, cache.StatusArchived, cache.StatusExpired} {
		snap := activeSnapshot("c1", "owner")
		snap.Status = status
		assert.False(t, isEligible(&snap, "finder", now, checker), "status %s", status)
	}
}

func TestExpiredCacheIneligible(t *testing.T) {
	now := time.Now().UnixMilli()
	checker := &fakeChecker{found: map[string]bool{}}

	snap := activeSnapshot("c1", "owner")
	snap.ExpiresAt = now - 1000
	assert.False(t, isEligible(&snap, "finder", now, checker))

	// 未来过期的宝藏仍然合格
	snap.ExpiresAt = now + time.Hour.Milliseconds()
	assert.True(t, isEligible(&snap, "finder", now, checker))

	// 0 表示永不过期
	snap.ExpiresAt = 0
	assert.True(t, isEligible(&snap, "finder", now, checker))
}

func TestSingletonClaimedIneligibleForEveryone(t *testing.T) {
	now := time.Now().UnixMilli()
	checker := &fakeChecker{found: map[string]bool{}}

	snap := activeSnapshot("c1", "owner")
	snap.IsSingleton = true
	snap.FindCount = 1

	for _, uid := range []string{"finder", "someone-else", "third"} {
		assert.False(t, isEligible(&snap, uid, now, checker))
	}

	// 未被认领的单人宝藏仍然合格
	snap.FindCount = 0
	assert.True(t, isEligible(&snap, "finder", now, checker))
}

func TestAlreadyFoundIneligible(t *testing.T) {
	now := time.Now().UnixMilli()
	snap := activeSnapshot("c1", "owner")
	checker := &fakeChecker{found: map[string]bool{"c1/finder": true}}

	assert.False(t, isEligible(&snap, "finder", now, checker))
	assert.True(t, isEligible(&snap, "other", now, checker))
}

func TestCheckerFailureIsFailClosed(t *testing.T) {
	now := time.Now().UnixMilli()
	snap := activeSnapshot("c1", "owner")
	checker := &fakeChecker{err: errors.New("store unavailable")}

	assert.False(t, isEligible(&snap, "finder", now, checker))
}
