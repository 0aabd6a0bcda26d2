package discovery

import (
	"errors"
	"net/http"

	"github.com/SlpAus/mapmyst-backend/internal/find"
	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/gin-gonic/gin"
)

// locationRequest 是携带坐标的请求体。
type locationRequest struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

func (r *locationRequest) point() (geo.Point, error) {
	return geo.NewPoint(r.Latitude, r.Longitude)
}

// StartMonitoringHandler 启动当前用户的发现会话。
// POST /api/discovery/start
func StartMonitoringHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	p, err := req.point()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法的坐标"})
		return
	}

	if err := DefaultManager.StartMonitoring(userID, p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法启动发现会话"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "发现会话已启动"})
}

// StopMonitoringHandler 停止当前用户的发现会话。
// POST /api/discovery/stop
func StopMonitoringHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)
	DefaultManager.StopMonitoring(userID)
	c.JSON(http.StatusOK, gin.H{"message": "发现会话已停止"})
}

// UpdateLocationHandler 上报最新位置。
// PUT /api/discovery/location
func UpdateLocationHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	p, err := req.point()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法的坐标"})
		return
	}

	if err := DefaultManager.UpdateLocation(userID, p); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "会话未在监控中"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "位置已更新"})
}

// GetStateHandler 返回当前会话状态。
// GET /api/discovery/state
func GetStateHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	state, err := DefaultManager.StateSnapshot(userID)
	if err != nil {
		// 未监控不是错误，返回一个空闲的未监控状态
		c.JSON(http.StatusOK, State{Monitoring: false, Phase: PhaseIdle})
		return
	}
	c.JSON(http.StatusOK, state)
}

// confirmRequest 是确认发现接口的请求体。
type confirmRequest struct {
	TicketID  string `json:"ticketId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Note      string `json:"note" binding:"max=256"`
}

// ConfirmHandler 确认当前待确认的发现。
// POST /api/discovery/confirm
func ConfirmHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	result, err := DefaultManager.Confirm(userID, req.TicketID, req.Signature, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotMonitoring), errors.Is(err, ErrNotConfirmable):
			c.JSON(http.StatusConflict, gin.H{"error": "当前没有待确认的发现"})
		case errors.Is(err, ErrInvalidTicket):
			c.JSON(http.StatusForbidden, gin.H{"error": "确认凭据无效"})
		case errors.Is(err, find.ErrAlreadyFound):
			c.JSON(http.StatusConflict, gin.H{"error": "已经发现过这个宝藏"})
		default:
			// 入账失败是可重试的：状态保持Confirmable
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// CancelHandler 放弃当前待确认的发现。
// POST /api/discovery/cancel
func CancelHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	if err := DefaultManager.Cancel(userID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "当前没有待确认的发现"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已取消"})
}
