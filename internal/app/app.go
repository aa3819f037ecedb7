// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Corphon/Ravlo/internal/config"
	"github.com/Corphon/Ravlo/internal/di"
	"github.com/Corphon/Ravlo/internal/services"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/utils"

	// 注册生成服务提供商
	_ "github.com/Corphon/Ravlo/internal/llm/providers/google"
)

// App 持有已初始化的服务
type App struct {
	Base      *config.Config
	Container *di.Container
	Store     *storage.FileStorage
	Metrics   *utils.AppMetrics
	Logger    *utils.Logger
}

// InitServices 按依赖顺序创建服务并注册到容器
func InitServices(base *config.Config, container *di.Container, logger *utils.Logger) (*App, error) {
	if base == nil {
		return nil, fmt.Errorf("基础配置不能为空")
	}
	if container == nil {
		container = di.GetContainer()
	}
	if logger == nil {
		logger = utils.GetLogger()
	}

	// 1. 存储与指标
	store, err := storage.NewFileStorage(base.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}
	metrics := utils.NewAppMetrics(utils.GetMetricsCollector(), logger)
	container.Register(di.Store, store)
	container.Register(di.Metrics, metrics)

	// 2. 设置
	settings, err := config.NewManager(base, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化设置失败: %w", err)
	}
	container.Register(di.Settings, settings)

	// 3. 生成服务
	usage := services.NewStatsService(store, nil, logger)
	container.Register(di.Usage, usage)

	llmService := services.NewLLMService(settings.Current(), metrics, usage, logger)
	container.Register(di.LLM, llmService)

	configService := services.NewConfigService(settings, logger)
	configService.SubscribeToChanges(llmService)
	container.Register(di.Config, configService)

	hooks, err := services.NewHookService()
	if err != nil {
		return nil, fmt.Errorf("加载开头模板失败: %w", err)
	}
	container.Register(di.Hooks, hooks)
	container.Register(di.Posts, services.NewPostService(llmService, hooks, logger))

	// 4. 格式化器与草稿
	container.Register(di.Drafts, services.NewDraftService(store, metrics, logger))
	container.Register(di.Formatter, services.NewFormatterService(store, metrics, logger))
	container.Register(di.Preferences, services.NewPreferenceService(store, logger))

	logger.Info("services initialized", map[string]interface{}{
		"services":  len(container.GetNames()),
		"data_dir":  base.DataDir,
		"llm_ready": llmService.IsReady(),
		"llm_state": llmService.GetReadyState(),
	})

	return &App{
		Base:      base,
		Container: container,
		Store:     store,
		Metrics:   metrics,
		Logger:    logger,
	}, nil
}

// StartBackground 启动缓存清理和指标汇报，ctx 结束时停止
func (a *App) StartBackground(ctx context.Context) {
	a.Store.StartCacheCleanup(ctx, 5*time.Minute)
	a.Metrics.StartMetricsCollection(ctx, 10*time.Minute)
}

// HealthCheck 检查关键服务是否已注册
func (a *App) HealthCheck() error {
	for _, name := range []string{di.Store, di.LLM, di.Config, di.Drafts, di.Formatter} {
		if !a.Container.Has(name) {
			return fmt.Errorf("关键服务未注册: %s", name)
		}
	}
	return nil
}
