package discovery

// Phase 表示发现会话当前所处的阶段。
type Phase string

const (
	// PhaseIdle 表示附近没有可发现的宝藏。
	PhaseIdle Phase = "IDLE"
	// PhaseProximityAlert 表示搜索半径内有合格宝藏，但尚未进入确认半径。
	PhaseProximityAlert Phase = "PROXIMITY_ALERT"
	// PhaseConfirmable 表示宝藏已进入确认半径，等待用户显式确认。
	PhaseConfirmable Phase = "CONFIRMABLE"
	// PhaseConfirmed 表示发现已入账，短暂展示后自动回到Idle。
	PhaseConfirmed Phase = "CONFIRMED"
)

// Tier 是距离最近宝藏的粗粒度提示层级。
type Tier string

const (
	TierDiscoverable Tier = "DISCOVERABLE"
	TierVeryClose    Tier = "VERY_CLOSE"
	TierWarm         Tier = "WARM"
	TierCold         Tier = "COLD"
)

// State 是发现会话对外可见的全部状态。
// 它只存在于内存中，会话停止时被丢弃。
type State struct {
	Monitoring bool  `json:"monitoring"`
	Phase      Phase `json:"phase"`

	// 最近的合格宝藏（Idle时为空）
	CacheID  string  `json:"cacheId,omitempty"`
	CacheName string `json:"cacheName,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Tier     Tier    `json:"tier,omitempty"`

	// CanDiscover 表示当前距离是否允许确认发现
	CanDiscover bool `json:"canDiscover"`

	// Confirmable阶段签发的确认凭据
	TicketID  string `json:"ticketId,omitempty"`
	Signature string `json:"signature,omitempty"`

	// Confirmed阶段的入账摘要
	PointsEarned int `json:"pointsEarned,omitempty"`

	// 面向用户的提示与最近一次扫描错误
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// tierMessage 返回各提示层级的用户可见文案。
// 冷层级不展示任何提示，但状态仍记录宝藏与距离。
func tierMessage(tier Tier) string {
	switch tier {
	case TierDiscoverable:
		return "宝藏就在这里，可以确认发现了！"
	case TierVeryClose:
		return "非常接近了，再走几步！"
	case TierWarm:
		return "有些接近了，继续寻找。"
	default:
		return ""
	}
}

// classify 根据距离与生效的确认半径划分提示层级。
func classify(distance, confirmRadius, veryCloseRadius, warmRadius float64) Tier {
	switch {
	case distance <= confirmRadius:
		return TierDiscoverable
	case distance <= veryCloseRadius:
		return TierVeryClose
	case distance <= warmRadius:
		return TierWarm
	default:
		return TierCold
	}
}
