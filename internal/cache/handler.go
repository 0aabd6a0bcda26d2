package cache

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SlpAus/mapmyst-backend/internal/platform/config"
	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/SlpAus/mapmyst-backend/pkg/geo"
	"github.com/gin-gonic/gin"
)

// createCacheRequest 是创建宝藏接口的请求体。
type createCacheRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Hint        string  `json:"hint"`
	Latitude    float64 `json:"latitude" binding:"required"`
	Longitude   float64 `json:"longitude" binding:"required"`
	Value       int     `json:"value" binding:"required"`
	Difficulty  int     `json:"difficulty" binding:"required"`
	Terrain     int     `json:"terrain" binding:"required"`
	Category    string  `json:"category" binding:"required"`
	IsSingleton bool    `json:"isSingleton"`
	MinDistance float64 `json:"minDistance"`
	ExpiresAt   int64   `json:"expiresAt"`
}

// CreateCacheHandler 创建一个新的宝藏。
// POST /api/cache
func CreateCacheHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	var req createCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
		return
	}

	newCache, err := CreateCache(userID, CreateCacheInput{
		Name:        req.Name,
		Description: req.Description,
		Hint:        req.Hint,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Value:       req.Value,
		Difficulty:  req.Difficulty,
		Terrain:     req.Terrain,
		Category:    CacheCategory(req.Category),
		IsSingleton: req.IsSingleton,
		MinDistance: req.MinDistance,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTooClose):
			c.JSON(http.StatusConflict, gin.H{"error": "与已有宝藏的距离过近"})
		case errors.Is(err, user.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户尚未激活"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, SnapshotOf(newCache))
}

// GetCacheHandler 返回单个宝藏的快照。
// GET /api/cache/:id
func GetCacheHandler(c *gin.Context) {
	snap, err := GetCacheByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrCacheNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "宝藏不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取宝藏"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetNearbyCachesHandler 返回指定坐标附近的活跃宝藏。
// GET /api/cache/nearby?lat=..&lon=..&radius=..
func GetNearbyCachesHandler(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的坐标参数"})
		return
	}

	center, err := geo.NewPoint(lat, lon)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法的坐标"})
		return
	}

	radius := config.Cfg.Discovery.SearchRadiusMeters
	if radiusStr := c.Query("radius"); radiusStr != "" {
		r, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil || r <= 0 || r > 10000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的radius参数"})
			return
		}
		radius = r
	}

	snaps, err := ActiveCachesNear(center, radius)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取附近的宝藏"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"caches": snaps})
}

// GetMyCachesHandler 返回当前用户创建的所有宝藏。
// GET /api/cache/mine
func GetMyCachesHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)
	snaps, err := ListCachesByCreator(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户的宝藏"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"caches": snaps})
}

// updateStatusRequest 是状态切换接口的请求体。
type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateCacheStatusHandler 由创建者启用或停用宝藏。
// PUT /api/cache/:id/status
func UpdateCacheStatusHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	err := UpdateCacheStatus(c.Param("id"), userID, CacheStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrCacheNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "宝藏不存在"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "只有创建者可以执行此操作"})
		case errors.Is(err, ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "不允许的状态变更"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "无法更新宝藏状态"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "状态已更新"})
}

// DeleteCacheHandler 由创建者归档自己的宝藏。
// DELETE /api/cache/:id
func DeleteCacheHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)

	err := DeleteCache(c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrCacheNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "宝藏不存在"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "只有创建者可以执行此操作"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "无法归档宝藏"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "宝藏已归档"})
}
