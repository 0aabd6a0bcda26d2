package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/find"
	"github.com/SlpAus/mapmyst-backend/internal/platform/config"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/SlpAus/mapmyst-backend/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	token.GenerateSecretKey()
	m.Run()
}

// fakeSource 是CacheSource的内存假实现，按半径过滤候选。
type fakeSource struct {
	mu    sync.Mutex
	snaps []cache.Snapshot
	err   error
}

func (f *fakeSource) ActiveCachesNear(ctx context.Context, center geo.Point, radius float64) ([]cache.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []cache.Snapshot
	for _, s := range f.snaps {
		if s.Status == cache.StatusActive && geo.Distance(center, s.Point()) <= radius {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) set(snaps ...cache.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = snaps
}

// fakeRecorder 是FindRecorder的内存假实现。
type fakeRecorder struct {
	mu     sync.Mutex
	err    error
	calls  int
	result *find.Result
}

func (f *fakeRecorder) RecordFind(cacheID, userID string, details find.Details) (*find.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &find.Result{PointsEarned: 50, NewScore: 50, CacheFindCount: 1}, nil
}

func testConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		SearchRadiusMeters:     50,
		DiscoveryRadiusMeters:  10,
		VeryCloseRadiusMeters:  20,
		WarmRadiusMeters:       30,
		ScanInterval:           10 * time.Millisecond,
		ConfirmedDisplayWindow: 50 * time.Millisecond,
		StoreTimeout:           time.Second,
	}
}

var testOrigin = geo.Point{Lat: 44.8176, Lon: 20.4633}

// north 返回从p向北移动meters米后的坐标。
func north(p geo.Point, meters float64) geo.Point {
	return geo.Point{Lat: p.Lat + meters/111195.0, Lon: p.Lon}
}

func snapshotAt(id string, p geo.Point) cache.Snapshot {
	return cache.Snapshot{
		ID:        id,
		Name:      "cache " + id,
		Latitude:  p.Lat,
		Longitude: p.Lon,
		CreatorID: "owner",
		Value:     50,
		Status:    cache.StatusActive,
	}
}

func newTestSession(userID string, loc geo.Point, source *fakeSource, checker *fakeChecker) *session {
	return newSession(userID, loc, testConfig(), source, checker, cache.NewWatcher())
}

func TestCycleIdleWhenNothingNearby(t *testing.T) {
	source := &fakeSource{}
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))

	state := s.snapshot()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Empty(t, state.CacheID)
	assert.Empty(t, state.Message)
}

func TestCycleConfirmableAtZeroDistance(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))

	state := s.snapshot()
	assert.Equal(t, PhaseConfirmable, state.Phase)
	assert.Equal(t, "c1", state.CacheID)
	assert.Equal(t, 0.0, state.Distance)
	assert.Equal(t, TierDiscoverable, state.Tier)
	assert.True(t, state.CanDiscover)
	assert.NotEmpty(t, state.TicketID)
	assert.NotEmpty(t, state.Signature)
}

func TestCycleProximityTiers(t *testing.T) {
	tests := []struct {
		meters  float64
		tier    Tier
		message bool
	}{
		{15, TierVeryClose, true},
		{25, TierWarm, true},
		{40, TierCold, false},
	}

	for _, tc := range tests {
		source := &fakeSource{}
		source.set(snapshotAt("c1", north(testOrigin, tc.meters)))
		s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

		require.NoError(t, s.runCycle(context.Background()))

		state := s.snapshot()
		assert.Equal(t, PhaseProximityAlert, state.Phase, "距离 %v 米", tc.meters)
		assert.Equal(t, tc.tier, state.Tier)
		assert.False(t, state.CanDiscover)
		assert.InDelta(t, tc.meters, state.Distance, 0.5)
		if tc.message {
			assert.NotEmpty(t, state.Message)
		} else {
			// 冷层级仍记录宝藏与距离，但不展示提示
			assert.Empty(t, state.Message)
			assert.Equal(t, "c1", state.CacheID)
		}
	}
}

func TestCycleSelectsNearestCache(t *testing.T) {
	source := &fakeSource{}
	source.set(
		snapshotAt("far", north(testOrigin, 30)),
		snapshotAt("near", north(testOrigin, 15)),
	)
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))
	assert.Equal(t, "near", s.snapshot().CacheID)
}

func TestCycleTieBreaksOnLowestID(t *testing.T) {
	p := north(testOrigin, 15)
	source := &fakeSource{}
	source.set(snapshotAt("b", p), snapshotAt("a", p), snapshotAt("c", p))
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))
	assert.Equal(t, "a", s.snapshot().CacheID)
}

func TestCycleSkipsIneligibleCandidates(t *testing.T) {
	own := snapshotAt("own", testOrigin)
	own.CreatorID = "u1"
	other := snapshotAt("other", north(testOrigin, 25))

	source := &fakeSource{}
	source.set(own, other)
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))

	// 距离为0的自有宝藏被跳过，选中更远的合格宝藏
	assert.Equal(t, "other", s.snapshot().CacheID)
}

func TestCycleHonorsPerCacheMinDistance(t *testing.T) {
	snap := snapshotAt("c1", north(testOrigin, 15))
	snap.MinDistance = 25

	source := &fakeSource{}
	source.set(snap)
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))

	// 宝藏自定义的确认半径放宽到25米，15米即可确认
	state := s.snapshot()
	assert.Equal(t, PhaseConfirmable, state.Phase)
	assert.True(t, state.CanDiscover)
}

func TestCycleDoesNotReselectWhileConfirmable(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))
	require.Equal(t, PhaseConfirmable, s.snapshot().Phase)
	firstTicket := s.snapshot().TicketID

	// 出现一个更近的新宝藏，也不允许切换目标
	source.set(snapshotAt("c0", testOrigin), snapshotAt("c1", testOrigin))
	require.NoError(t, s.runCycle(context.Background()))

	state := s.snapshot()
	assert.Equal(t, PhaseConfirmable, state.Phase)
	assert.Equal(t, "c1", state.CacheID)
	assert.Equal(t, firstTicket, state.TicketID)
}

func TestCycleSourceErrorSurfacesToCaller(t *testing.T) {
	source := &fakeSource{err: errors.New("store unavailable")}
	s := newTestSession("u1", testOrigin, source, &fakeChecker{found: map[string]bool{}})

	err := s.runCycle(context.Background())
	assert.Error(t, err)
}

func TestUpdateLocationTakesEffectNextCycle(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	s := newTestSession("u1", north(testOrigin, 100), source, &fakeChecker{found: map[string]bool{}})

	require.NoError(t, s.runCycle(context.Background()))
	require.Equal(t, PhaseIdle, s.snapshot().Phase)

	s.updateLocation(testOrigin)
	require.NoError(t, s.runCycle(context.Background()))
	assert.Equal(t, PhaseConfirmable, s.snapshot().Phase)
}
