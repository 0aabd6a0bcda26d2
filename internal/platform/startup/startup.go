package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/mapmyst-backend/internal/cache"
	"github.com/SlpAus/mapmyst-backend/internal/find"
	"github.com/SlpAus/mapmyst-backend/internal/platform/backup"
	"github.com/SlpAus/mapmyst-backend/internal/platform/metadata"
	"github.com/SlpAus/mapmyst-backend/internal/user"
)

// InitializeApplication 是应用首次启动时执行的总入口
func InitializeApplication() error {
	fmt.Println("开始应用首次初始化...")

	if err := metadata.PrimeCachedDB(); err != nil {
		return err
	}
	if err := user.PrimeCachedDB(); err != nil {
		return err
	}
	if err := cache.PrimeCachedDB(); err != nil {
		return err
	}
	if err := find.PrimeDB(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

// RebuildCache 是一个专门用于在运行时热重建Redis缓存的函数
func RebuildCache() error {
	fmt.Println("开始缓存热重建...")

	if err := metadata.WarmupCache(); err != nil {
		return err
	}
	if err := user.WarmupCache(); err != nil {
		return err
	}
	if err := cache.WarmupCache(); err != nil {
		return err
	}

	// 重建完成后触发一次对账，刷新快照元数据
	fmt.Println("缓存热重建完成，正在触发一次读模型对账...")
	if err := backup.ReconcileReadModel(context.Background()); err != nil {
		fmt.Printf("警告: 缓存热重建后的对账失败: %v\n", err)
	} else {
		fmt.Println("读模型对账成功！")
	}

	// 重建改变了宝藏读模型，通知所有扫描会话立即重扫
	cache.DefaultWatcher.Notify()
	return nil
}
