package discovery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/platform/config"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/SlpAus/mapmyst-backend/pkg/token"
	"github.com/google/uuid"
)

// CacheSource 抽象了候选宝藏的获取。
type CacheSource interface {
	ActiveCachesNear(ctx context.Context, center geo.Point, radius float64) ([]cache.Snapshot, error)
}

// ChangeNotifier 抽象了宝藏数据的变更订阅。
// 订阅信号让会话在下一个定时周期前立即重扫。
type ChangeNotifier interface {
	Subscribe() (<-chan struct{}, func())
}

// session 是单个用户的扫描会话。
// 状态只由会话自己的扫描循环和Manager的显式调用修改。
type session struct {
	userID string
	cfg    config.DiscoveryConfig

	source   CacheSource
	checker  FindChecker
	notifier ChangeNotifier

	// location 持有最新的用户位置(geo.Point)。
	// 位置更新是后写覆盖，在下一个扫描周期被消费。
	location atomic.Value

	mu    sync.Mutex
	state State
	// pendingCacheID 是已进入Confirmable/Confirmed的宝藏；
	// 在它清空之前，扫描周期不会再选择其他宝藏。
	pendingCacheID string
	// generation 在每次阶段变更时递增，用于作废过期的自动清除定时器。
	generation uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(userID string, initial geo.Point, cfg config.DiscoveryConfig, source CacheSource, checker FindChecker, notifier ChangeNotifier) *session {
	s := &session{
		userID:   userID,
		cfg:      cfg,
		source:   source,
		checker:  checker,
		notifier: notifier,
		done:     make(chan struct{}),
	}
	s.location.Store(initial)
	s.state = State{Monitoring: true, Phase: PhaseIdle}
	return s
}

// start 启动会话的扫描循环。
func (s *session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
}

// stop 取消扫描循环并等待其退出。
func (s *session) stop() {
	s.cancel()
	<-s.done
}

// updateLocation 原子替换当前位置，下一个周期生效。
func (s *session) updateLocation(p geo.Point) {
	s.location.Store(p)
}

// snapshot 返回当前状态的副本。
func (s *session) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// run 是会话的主循环：执行一个扫描周期，然后等待
// 定时器到期、变更通知或会话取消。周期出错时退避双倍间隔。
func (s *session) run(ctx context.Context) {
	defer close(s.done)

	notifyCh, cancelSub := s.notifier.Subscribe()
	defer cancelSub()

	for {
		wait := s.cfg.ScanInterval
		if err := s.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Printf("用户 %s 的扫描周期失败: %v\n", s.userID, err)
			s.mu.Lock()
			s.state.Error = err.Error()
			s.mu.Unlock()
			wait = 2 * s.cfg.ScanInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-notifyCh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// confirmRadiusFor 返回某个宝藏生效的确认半径。
// 宝藏自定义的MinDistance在合理区间内时覆盖全局默认值。
func (s *session) confirmRadiusFor(snap *cache.Snapshot) float64 {
	if snap.MinDistance > 0 && snap.MinDistance <= s.cfg.SearchRadiusMeters {
		return snap.MinDistance
	}
	return s.cfg.DiscoveryRadiusMeters
}

// runCycle 执行一轮扫描：拉取候选、过滤资格、选择最近者并推进状态。
func (s *session) runCycle(ctx context.Context) error {
	loc := s.location.Load().(geo.Point)

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	candidates, err := s.source.ActiveCachesNear(storeCtx, loc, s.cfg.SearchRadiusMeters)
	if err != nil {
		return err
	}

	now := nowUnixMilli()
	eligible := make([]cache.Snapshot, 0, len(candidates))
	for i := range candidates {
		if isEligible(&candidates[i], s.userID, now, s.checker) {
			eligible = append(eligible, candidates[i])
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 已有待确认或已确认的宝藏时，只刷新它的距离，不重新选择。
	// 入账失败留下的错误信息也在此期间保留，直到用户重试或取消。
	if s.pendingCacheID != "" {
		for i := range eligible {
			if eligible[i].ID == s.pendingCacheID {
				s.state.Distance = geo.Distance(loc, eligible[i].Point())
				break
			}
		}
		return nil
	}
	s.state.Error = ""

	if len(eligible) == 0 {
		s.resetToIdleLocked()
		return nil
	}

	// 选择距离最近的合格宝藏；距离完全相等时取ID最小者，保证确定性
	best := 0
	bestDist := geo.Distance(loc, eligible[0].Point())
	for i := 1; i < len(eligible); i++ {
		d := geo.Distance(loc, eligible[i].Point())
		if d < bestDist || (d == bestDist && eligible[i].ID < eligible[best].ID) {
			best = i
			bestDist = d
		}
	}
	nearest := &eligible[best]

	confirmRadius := s.confirmRadiusFor(nearest)
	tier := classify(bestDist, confirmRadius, s.cfg.VeryCloseRadiusMeters, s.cfg.WarmRadiusMeters)

	s.state.CacheID = nearest.ID
	s.state.CacheName = nearest.Name
	s.state.Distance = bestDist
	s.state.Tier = tier
	s.state.Message = tierMessage(tier)
	s.state.CanDiscover = bestDist <= confirmRadius

	if s.state.CanDiscover {
		return s.enterConfirmableLocked(nearest.ID)
	}

	s.state.Phase = PhaseProximityAlert
	s.state.TicketID = ""
	s.state.Signature = ""
	s.state.PointsEarned = 0
	return nil
}

// enterConfirmableLocked 让指定宝藏进入可确认状态并签发确认凭据。
// 调用方必须已持有状态锁。
func (s *session) enterConfirmableLocked(cacheID string) error {
	ticketID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("无法生成确认凭据ID: %w", err)
	}
	payload := token.TicketPayload{
		TicketID: ticketID.String(),
		CacheID:  cacheID,
		UserID:   s.userID,
	}
	signature, err := token.GenerateTicketSignature(payload)
	if err != nil {
		return fmt.Errorf("无法签发确认凭据: %w", err)
	}

	s.state.Phase = PhaseConfirmable
	s.state.TicketID = payload.TicketID
	s.state.Signature = signature
	s.pendingCacheID = cacheID
	s.generation++
	return nil
}

// resetToIdleLocked 清空状态回到Idle。
// 调用方必须已持有状态锁。
func (s *session) resetToIdleLocked() {
	s.state = State{Monitoring: true, Phase: PhaseIdle}
	s.pendingCacheID = ""
	s.generation++
}
