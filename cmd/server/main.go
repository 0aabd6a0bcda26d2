package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SlpAus/mapmyst-backend/api"
	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/discovery"
	"github.com/SlpAus/mapmyst-backend/internal/platform/backup"
	"github.com/SlpAus/mapmyst-backend/internal/platform/config"
	"github.com/SlpAus/mapmyst-backend/internal/platform/database"
	"github.com/SlpAus/mapmyst-backend/internal/platform/health"
	"github.com/SlpAus/mapmyst-backend/internal/platform/shutdown"
	"github.com/SlpAus/mapmyst-backend/internal/platform/startup"
	"github.com/SlpAus/mapmyst-backend/pkg/lifecycle"
	"github.com/SlpAus/mapmyst-backend/pkg/token"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	token.GenerateSecretKey()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}

	database.InitDB(cfg.Database.Sqlite)
	database.InitRedis(cfg.Database.Redis)

	// 1. 阻塞式获取初始Run ID
	health.InitializeRunID()

	// 2. 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 3. 装配发现引擎
	discovery.InitModule(cfg.Discovery)

	// 4. 阻塞式执行一次启动后健康检查
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck()

	// 5. 异步启动后台的持续健康检查器
	go health.StartRedisHealthCheck()

	// 6. 启动后台服务，纳入生命周期管理
	gracefulManager := lifecycle.NewManager()
	forcefulManager := lifecycle.NewManager()

	backupHandle, err := gracefulManager.NewServiceHandle("read-model-reconciler")
	if err != nil {
		panic(err)
	}
	go backup.StartBackupScheduler(backupHandle)

	sweeperHandle, err := gracefulManager.NewServiceHandle("cache-expiry-sweeper")
	if err != nil {
		panic(err)
	}
	cache.StartExpirySweeper(sweeperHandle)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic("Failed to start server: " + err.Error())
		}
	}()

	// 7. 阻塞等待停机信号，编排优雅停机
	coordinator := shutdown.NewCoordinator(gracefulManager, forcefulManager)
	coordinator.ListenForSignalsAndShutdown(server)
}
