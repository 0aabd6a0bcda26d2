package api

import (
	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/discovery"
	"github.com/SlpAus/mapmyst-backend/internal/find"
	"github.com/SlpAus/mapmyst-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(user.EnsureUserCookieMiddleware(), user.LoadUserMiddleware())
	{
		// 用户相关的路由组
		userRoutes := api.Group("/user")
		{
			userRoutes.POST("/activate", user.ActivateUserHandler)
			userRoutes.GET("/profile", user.RequireActivatedUserMiddleware(), user.GetProfileHandler)
			userRoutes.GET("/leaderboard", user.GetLeaderboardHandler)
		}

		// 宝藏相关的路由组
		cacheRoutes := api.Group("/cache")
		{
			cacheRoutes.GET("/nearby", cache.GetNearbyCachesHandler)
			cacheRoutes.GET("/mine", user.RequireActivatedUserMiddleware(), cache.GetMyCachesHandler)
			cacheRoutes.GET("/:id", cache.GetCacheHandler)
			cacheRoutes.POST("", user.RequireActivatedUserMiddleware(), cache.CreateCacheHandler)
			cacheRoutes.PUT("/:id/status", user.RequireActivatedUserMiddleware(), cache.UpdateCacheStatusHandler)
			cacheRoutes.DELETE("/:id", user.RequireActivatedUserMiddleware(), cache.DeleteCacheHandler)
		}

		// 发现记录相关的路由
		findRoutes := api.Group("/find")
		{
			findRoutes.GET("/mine", user.RequireActivatedUserMiddleware(), find.GetMyFindsHandler)
		}

		// 发现会话相关的路由组
		discoveryRoutes := api.Group("/discovery", user.RequireActivatedUserMiddleware())
		{
			discoveryRoutes.POST("/start", discovery.StartMonitoringHandler)
			discoveryRoutes.POST("/stop", discovery.StopMonitoringHandler)
			discoveryRoutes.PUT("/location", discovery.UpdateLocationHandler)
			discoveryRoutes.GET("/state", discovery.GetStateHandler)
			discoveryRoutes.POST("/confirm", discovery.ConfirmHandler)
			discoveryRoutes.POST("/cancel", discovery.CancelHandler)
		}
	}
}
