// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/Ravlo/internal/api"
	"github.com/Corphon/Ravlo/internal/app"
	"github.com/Corphon/Ravlo/internal/config"
	"github.com/Corphon/Ravlo/internal/di"
	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("🚀 启动 Ravlo 服务器...")

	// 1. 首先加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s", baseConfig.Port)

	// 2. 初始化日志
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.ParseLogLevel(baseConfig.LogLevel))
	if err := utils.InitLogger(filepath.Join(baseConfig.LogDir, "ravlo.log")); err != nil {
		log.Printf("⚠️ 日志文件不可用，仅输出到控制台: %v", err)
	}
	defer logger.Close()

	// 3. 初始化所有服务（按依赖顺序）
	application, err := app.InitServices(baseConfig, di.GetContainer(), logger)
	if err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	if err := application.HealthCheck(); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}
	log.Println("✅ 所有服务初始化完成")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	application.StartBackground(ctx)

	// 4. 设置路由
	limiter := api.NewRateLimiter()
	limiter.StartCleanup(ctx, time.Minute)

	wsManager := api.NewWebSocketManager(logger, application.Metrics)
	go wsManager.Run(ctx)

	router, err := api.SetupRouter(application.Container, api.RouterOptions{
		SiteURL:     baseConfig.SiteURL,
		DebugMode:   baseConfig.DebugMode,
		ForceHTTPS:  !baseConfig.DebugMode,
		Logger:      logger,
		RateLimiter: limiter,
		WebSocket:   wsManager,
	})
	if err != nil {
		log.Fatalf("❌ 设置路由失败: %v", err)
	}
	log.Println("✅ 路由设置完成")

	// 5. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s", baseConfig.Port)
	log.Printf("🔗 访问地址: http://localhost:%s", baseConfig.Port)

	setupGracefulShutdown(router, baseConfig.Port, stop)
}

// 优雅关闭函数
func setupGracefulShutdown(router *gin.Engine, port string, stopBackground context.CancelFunc) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 在新的 goroutine 中启动服务器
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ 启动服务器失败: %v", err)
		}
	}()

	// 等待中断信号以进行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")

	// 先停止后台任务和 WebSocket 连接
	stopBackground()

	// 给定超时时间关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ 服务器强制关闭: %v", err)
	}

	log.Println("✅ 服务器优雅关闭完成")
}
