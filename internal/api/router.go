// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/Corphon/Ravlo/internal/di"
	"github.com/Corphon/Ravlo/internal/services"
	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/gin-gonic/gin"
)

// RouterOptions 路由配置；为空的组件会自动创建
type RouterOptions struct {
	SiteURL     string
	DebugMode   bool
	ForceHTTPS  bool // 反向代理后按 X-Forwarded-Proto 跳转
	Logger      *utils.Logger
	RateLimiter *RateLimiter
	WebSocket   *WebSocketManager
}

// ResolveServices 从容器取出处理器需要的服务
func ResolveServices(container *di.Container) (Services, error) {
	var svc Services
	var err error

	if svc.Formatter, err = di.Resolve[*services.FormatterService](container, di.Formatter); err != nil {
		return svc, err
	}
	if svc.Drafts, err = di.Resolve[*services.DraftService](container, di.Drafts); err != nil {
		return svc, err
	}
	if svc.Posts, err = di.Resolve[*services.PostService](container, di.Posts); err != nil {
		return svc, err
	}
	if svc.Hooks, err = di.Resolve[*services.HookService](container, di.Hooks); err != nil {
		return svc, err
	}
	if svc.Preferences, err = di.Resolve[*services.PreferenceService](container, di.Preferences); err != nil {
		return svc, err
	}
	if svc.LLM, err = di.Resolve[*services.LLMService](container, di.LLM); err != nil {
		return svc, err
	}
	if svc.Config, err = di.Resolve[*services.ConfigService](container, di.Config); err != nil {
		return svc, err
	}
	if svc.Usage, err = di.Resolve[*services.StatsService](container, di.Usage); err != nil {
		return svc, err
	}
	if svc.Metrics, err = di.Resolve[*utils.AppMetrics](container, di.Metrics); err != nil {
		return svc, err
	}
	return svc, nil
}

// SetupRouter 配置HTTP路由
func SetupRouter(container *di.Container, opts RouterOptions) (*gin.Engine, error) {
	svc, err := ResolveServices(container)
	if err != nil {
		return nil, fmt.Errorf("服务未正确初始化: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	limiter := opts.RateLimiter
	if limiter == nil {
		limiter = NewRateLimiter()
	}
	ws := opts.WebSocket
	if ws == nil {
		ws = NewWebSocketManager(logger, svc.Metrics)
	}

	handler := NewHandler(svc, ws, opts.SiteURL, logger)
	wsHandler := NewWebSocketHandler(ws, svc.Formatter, logger)

	if !opts.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(requestLogger(logger, svc.Metrics))
	r.Use(corsMiddleware())

	// HTTPS重定向（生产环境）
	if opts.ForceHTTPS {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") == "http" {
				c.Redirect(http.StatusPermanentRedirect, "https://"+c.Request.Host+c.Request.URL.RequestURI())
				c.Abort()
				return
			}
			c.Next()
		})
	}

	// ===============================
	// 静态资源
	// ===============================
	r.GET("/sitemap.xml", handler.Sitemap)
	r.GET("/og-image.png", handler.OGImage)

	// WebSocket 支持
	r.GET("/ws/formatter", wsHandler.FormatterWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(limiter.DefaultRateLimit())
	{
		api.GET("/health", handler.Health)
		api.GET("/metrics", handler.GetMetrics)

		// 格式化器
		formatGroup := api.Group("/format")
		{
			formatGroup.POST("", handler.Format)
			formatGroup.POST("/decode", handler.Decode)
			formatGroup.POST("/stats", handler.Stats)
		}

		preloadGroup := api.Group("/formatter/preload")
		{
			preloadGroup.POST("", handler.SetPreload)
			preloadGroup.POST("/consume", handler.ConsumePreload)
		}

		// 草稿
		draftsGroup := api.Group("/drafts")
		{
			draftsGroup.GET("", handler.ListDrafts)
			draftsGroup.POST("", handler.SaveDraft)
			draftsGroup.GET("/export", handler.ExportDrafts)
			draftsGroup.POST("/import", handler.ImportDrafts)
			draftsGroup.GET("/:id", handler.GetDraft)
			draftsGroup.PUT("/:id", handler.UpdateDraft)
			draftsGroup.DELETE("/:id", handler.DeleteDraft)
		}

		// 生成器
		generate := limiter.GenerationRateLimit()
		api.POST("/posts/generate", generate, handler.GeneratePost)
		api.POST("/comments/generate", generate, handler.GenerateComment)

		hooksGroup := api.Group("/hooks")
		{
			hooksGroup.GET("", handler.ListHooks)
			hooksGroup.GET("/stats", handler.HookStats)
			hooksGroup.GET("/:id", handler.GetHook)
		}

		// 偏好设置
		prefsGroup := api.Group("/preferences")
		{
			prefsGroup.GET("/theme", handler.GetTheme)
			prefsGroup.PUT("/theme", handler.SetTheme)
			prefsGroup.POST("/theme/toggle", handler.ToggleTheme)
		}

		// 生成服务设置
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.GET("/config", handler.GetLLMConfig)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
			llmGroup.GET("/usage", handler.GetUsage)
			llmGroup.DELETE("/usage", handler.ResetUsage)
		}

		// WebSocket 管理路由
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
			wsGroup.POST("/cleanup", handler.CleanupWebSocketConnections)
		}
	}

	return r, nil
}
