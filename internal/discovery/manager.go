package discovery

import (
	"errors"
	"sync"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/find"
	"github.com/SlpAus/mapmyst-backend/internal/platform/config"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/SlpAus/mapmyst-backend/pkg/token"
)

// FindRecorder 抽象了发现入账事务。
// 生产实现是find模块的Recorder；测试中可以注入假实现。
type FindRecorder interface {
	RecordFind(cacheID, userID string, details find.Details) (*find.Result, error)
}

// Manager层的哨兵错误
var (
	ErrNotMonitoring  = errors.New("会话未在监控中")
	ErrNotConfirmable = errors.New("当前没有待确认的发现")
	ErrInvalidTicket  = errors.New("确认凭据无效")
)

// Manager 管理所有用户的发现会话。
// 每个用户同一时刻至多有一个会话。
type Manager struct {
	cfg      config.DiscoveryConfig
	source   CacheSource
	checker  FindChecker
	recorder FindRecorder
	notifier ChangeNotifier

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager 创建一个Manager，所有依赖均显式注入。
func NewManager(cfg config.DiscoveryConfig, source CacheSource, checker FindChecker, recorder FindRecorder, notifier ChangeNotifier) *Manager {
	return &Manager{
		cfg:      cfg,
		source:   source,
		checker:  checker,
		recorder: recorder,
		notifier: notifier,
		sessions: make(map[string]*session),
	}
}

// StartMonitoring 为用户启动扫描会话。已在监控中时是幂等的no-op。
func (m *Manager) StartMonitoring(userID string, initial geo.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[userID]; ok {
		return nil
	}

	s := newSession(userID, initial, m.cfg, m.source, m.checker, m.notifier)
	m.sessions[userID] = s
	s.start()
	return nil
}

// StopMonitoring 停止用户的扫描会话并丢弃全部会话状态。
func (m *Manager) StopMonitoring(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if ok {
		s.stop()
	}
}

// StopAll 停止所有会话，在服务停机时调用。
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
}

func (m *Manager) sessionFor(userID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotMonitoring
	}
	return s, nil
}

// UpdateLocation 更新用户的当前位置，在下一个扫描周期生效。
func (m *Manager) UpdateLocation(userID string, p geo.Point) error {
	s, err := m.sessionFor(userID)
	if err != nil {
		return err
	}
	s.updateLocation(p)
	return nil
}

// StateSnapshot 返回用户会话状态的副本。
func (m *Manager) StateSnapshot(userID string) (State, error) {
	s, err := m.sessionFor(userID)
	if err != nil {
		return State{}, err
	}
	return s.snapshot(), nil
}

// Confirm 由用户显式确认一次发现，可附带一条留言。
// 入账失败时状态保持Confirmable，用户可以重新确认。
func (m *Manager) Confirm(userID, ticketID, signature, note string) (*find.Result, error) {
	s, err := m.sessionFor(userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != PhaseConfirmable {
		return nil, ErrNotConfirmable
	}
	if ticketID != s.state.TicketID {
		return nil, ErrInvalidTicket
	}
	payload := token.TicketPayload{
		TicketID: ticketID,
		CacheID:  s.pendingCacheID,
		UserID:   userID,
	}
	if !token.ValidateTicketSignature(payload, signature) {
		return nil, ErrInvalidTicket
	}

	details := find.Details{
		Note:     note,
		Location: s.location.Load().(geo.Point),
	}
	result, err := m.recorder.RecordFind(s.pendingCacheID, userID, details)
	if err != nil {
		// 入账失败：记录错误，保持Confirmable等待用户重试
		s.state.Error = err.Error()
		return nil, err
	}

	s.state.Phase = PhaseConfirmed
	s.state.PointsEarned = result.PointsEarned
	s.state.Message = "发现成功！"
	s.state.Error = ""
	s.state.TicketID = ""
	s.state.Signature = ""
	s.state.CanDiscover = false
	s.generation++

	// 展示窗口结束后自动回到Idle；期间的任何阶段变更会作废这个定时器
	gen := s.generation
	go func() {
		time.Sleep(m.cfg.ConfirmedDisplayWindow)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation == gen && s.state.Phase == PhaseConfirmed {
			s.resetToIdleLocked()
		}
	}()

	return result, nil
}

// Cancel 由用户显式放弃当前待确认的发现，回到Idle。
func (m *Manager) Cancel(userID string) error {
	s, err := m.sessionFor(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase != PhaseConfirmable {
		return ErrNotConfirmable
	}
	s.resetToIdleLocked()
	return nil
}
