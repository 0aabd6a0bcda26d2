package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// activateRequest 是激活用户接口的请求体。
type activateRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=64"`
	FirstName string `json:"firstName" binding:"max=64"`
	LastName  string `json:"lastName" binding:"max=64"`
}

// ActivateUserHandler 将当前cookie中的临时用户与用户名绑定并持久化。
// POST /api/user/activate
func ActivateUserHandler(c *gin.Context) {
	userID := c.GetString(UserIDKey)
	if !IsValidUUID(userID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的用户ID"})
		return
	}

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
		return
	}

	if err := ActivateUser(userID, req.Username, req.FirstName, req.LastName); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "用户名已被占用"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法激活用户"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"uuid": userID, "username": req.Username})
}

// GetProfileHandler 返回当前用户的资料与实时排名。
// GET /api/user/profile
func GetProfileHandler(c *gin.Context) {
	userID := c.GetString(UserIDKey)

	profile, err := GetProfile(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户资料"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetLeaderboardHandler 返回积分排行榜。
// GET /api/user/leaderboard?limit=10
func GetLeaderboardHandler(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "10"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的limit参数"})
		return
	}

	entries, err := GetLeaderboard(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取排行榜"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
