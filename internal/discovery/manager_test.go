package discovery

import (
	"errors"
	"testing"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(source *fakeSource, checker *fakeChecker, recorder *fakeRecorder) *Manager {
	return NewManager(testConfig(), source, checker, recorder, cache.NewWatcher())
}

func waitForPhase(t *testing.T, m *Manager, userID string, phase Phase) State {
	t.Helper()
	var state State
	require.Eventually(t, func() bool {
		s, err := m.StateSnapshot(userID)
		if err != nil {
			return false
		}
		state = s
		return s.Phase == phase
	}, time.Second, 5*time.Millisecond)
	return state
}

func TestEndToEndDiscoveryAndConfirm(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	recorder := &fakeRecorder{}
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, recorder)
	defer m.StopAll()

	require.NoError(t, m.StartMonitoring("u1", testOrigin))

	state := waitForPhase(t, m, "u1", PhaseConfirmable)
	assert.Equal(t, "c1", state.CacheID)
	assert.Equal(t, 0.0, state.Distance)
	assert.True(t, state.CanDiscover)

	result, err := m.Confirm("u1", state.TicketID, state.Signature, "")
	require.NoError(t, err)
	assert.Equal(t, 50, result.PointsEarned)
	assert.Equal(t, 1, result.CacheFindCount)

	confirmed, err := m.StateSnapshot("u1")
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, confirmed.Phase)
	assert.Equal(t, 50, confirmed.PointsEarned)
	assert.Empty(t, confirmed.TicketID)

	// 展示窗口结束后自动回到Idle
	// (假数据源仍返回该宝藏，但假checker未记录发现，所以会再次进入Confirmable；
	// 先移除宝藏，验证纯粹的自动清除路径)
	source.set()
	waitForPhase(t, m, "u1", PhaseIdle)
}

func TestStartMonitoringIsIdempotent(t *testing.T) {
	source := &fakeSource{}
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, &fakeRecorder{})
	defer m.StopAll()

	require.NoError(t, m.StartMonitoring("u1", testOrigin))
	require.NoError(t, m.StartMonitoring("u1", testOrigin))

	state, err := m.StateSnapshot("u1")
	require.NoError(t, err)
	assert.True(t, state.Monitoring)
}

func TestStopMonitoringDiscardsState(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, &fakeRecorder{})

	require.NoError(t, m.StartMonitoring("u1", testOrigin))
	waitForPhase(t, m, "u1", PhaseConfirmable)

	m.StopMonitoring("u1")

	_, err := m.StateSnapshot("u1")
	assert.ErrorIs(t, err, ErrNotMonitoring)
	assert.ErrorIs(t, m.UpdateLocation("u1", testOrigin), ErrNotMonitoring)
}

func TestOwnerNeverSeesOwnCache(t *testing.T) {
	snap := snapshotAt("c1", testOrigin)
	snap.CreatorID = "owner"
	source := &fakeSource{}
	source.set(snap)
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, &fakeRecorder{})
	defer m.StopAll()

	require.NoError(t, m.StartMonitoring("owner", testOrigin))
	require.NoError(t, m.StartMonitoring("visitor", testOrigin))

	// 访客很快进入Confirmable
	waitForPhase(t, m, "visitor", PhaseConfirmable)

	// 创建者的会话始终保持Idle
	state, err := m.StateSnapshot("owner")
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Empty(t, state.CacheID)
}

func TestConfirmFailureStaysConfirmable(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	recorder := &fakeRecorder{err: errors.New("transaction failed")}
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, recorder)
	defer m.StopAll()

	require.NoError(t, m.StartMonitoring("u1", testOrigin))
	state := waitForPhase(t, m, "u1", PhaseConfirmable)

	_, err := m.Confirm("u1", state.TicketID, state.Signature, "")
	require.Error(t, err)

	after, err := m.StateSnapshot("u1")
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmable, after.Phase)
	assert.NotEmpty(t, after.Error)
	assert.Equal(t, state.TicketID, after.TicketID)

	// 入账恢复后，用同一凭据重新确认成功
	recorder.mu.Lock()
	recorder.err = nil
	recorder.mu.Unlock()

	result, err := m.Confirm("u1", state.TicketID, state.Signature, "")
	require.NoError(t, err)
	assert.Equal(t, 50, result.PointsEarned)
}

func TestConfirmRejectsForgedTicket(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	recorder := &fakeRecorder{}
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, recorder)
	defer m.StopAll()

	require.NoError(t, m.StartMonitoring("u1", testOrigin))
	state := waitForPhase(t, m, "u1", PhaseConfirmable)

	_, err := m.Confirm("u1", "forged-ticket", state.Signature, "")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = m.Confirm("u1", state.TicketID, "forged-signature", "")
	assert.ErrorIs(t, err, ErrInvalidTicket)

	recorder.mu.Lock()
	assert.Equal(t, 0, recorder.calls)
	recorder.mu.Unlock()
}

func TestConfirmWithoutConfirmableState(t *testing.T) {
	source := &fakeSource{}
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, &fakeRecorder{})
	defer m.StopAll()

	_, err := m.Confirm("u1", "t", "s", "")
	assert.ErrorIs(t, err, ErrNotMonitoring)

	require.NoError(t, m.StartMonitoring("u1", testOrigin))
	time.Sleep(30 * time.Millisecond)

	_, err = m.Confirm("u1", "t", "s", "")
	assert.ErrorIs(t, err, ErrNotConfirmable)
}

func TestCancelReturnsToIdle(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, &fakeRecorder{})
	defer m.StopAll()

	require.NoError(t, m.StartMonitoring("u1", testOrigin))
	waitForPhase(t, m, "u1", PhaseConfirmable)

	require.NoError(t, m.Cancel("u1"))

	state, err := m.StateSnapshot("u1")
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Empty(t, state.TicketID)

	// Idle状态下再取消是冲突
	assert.ErrorIs(t, m.Cancel("u1"), ErrNotConfirmable)
}

func TestMovingIntoRangeTriggersAutoTransition(t *testing.T) {
	source := &fakeSource{}
	source.set(snapshotAt("c1", testOrigin))
	m := newTestManager(source, &fakeChecker{found: map[string]bool{}}, &fakeRecorder{})
	defer m.StopAll()

	// 起点在15米外：ProximityAlert
	require.NoError(t, m.StartMonitoring("u1", north(testOrigin, 15)))
	state := waitForPhase(t, m, "u1", PhaseProximityAlert)
	assert.Equal(t, TierVeryClose, state.Tier)

	// 移动到宝藏位置：无需用户操作自动进入Confirmable
	require.NoError(t, m.UpdateLocation("u1", testOrigin))
	waitForPhase(t, m, "u1", PhaseConfirmable)
}

func TestUpdateLocationUnknownUser(t *testing.T) {
	m := newTestManager(&fakeSource{}, &fakeChecker{found: map[string]bool{}}, &fakeRecorder{})
	assert.ErrorIs(t, m.UpdateLocation("nobody", geo.Point{Lat: 1, Lon: 1}), ErrNotMonitoring)
}
