// internal/services/config_service.go
package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/Ravlo/internal/config"
	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/llm"
	"github.com/Corphon/Ravlo/internal/utils"
)

const maxChangeHistory = 100

// ConfigStore 持久化生成服务设置，config.Manager 实现它
type ConfigStore interface {
	Current() *config.AppConfig
	UpdateLLMConfig(provider string, settings map[string]string) error
}

// ConfigService 管理生成服务设置：校验、持久化并通知订阅者
type ConfigService struct {
	store  ConfigStore
	logger *utils.Logger

	// 配置变更事件订阅者
	subscribers []ConfigChangeSubscriber

	// 配置历史记录，不含密钥
	changeHistory []ConfigChangeRecord

	mu sync.RWMutex
}

// ConfigChangeSubscriber 配置变更订阅者接口
type ConfigChangeSubscriber interface {
	OnConfigChanged(oldConfig, newConfig *config.AppConfig) error
}

// ConfigChangeRecord 配置变更记录
type ConfigChangeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changed_by"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
}

// LLMSettingsView 对外展示的设置，不含密钥
type LLMSettingsView struct {
	Provider     string   `json:"provider"`
	DefaultModel string   `json:"default_model"`
	HasAPIKey    bool     `json:"has_api_key"`
	Providers    []string `json:"providers"`
}

// NewConfigService 创建配置服务实例
func NewConfigService(store ConfigStore, logger *utils.Logger) *ConfigService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &ConfigService{
		store:         store,
		logger:        logger,
		changeHistory: make([]ConfigChangeRecord, 0, maxChangeHistory),
	}
}

// GetCurrentConfig 获取当前配置的副本
func (s *ConfigService) GetCurrentConfig() *config.AppConfig {
	return s.store.Current()
}

// View 返回去掉密钥的设置
func (s *ConfigService) View() LLMSettingsView {
	cfg := s.store.Current()
	return LLMSettingsView{
		Provider:     cfg.LLMProvider,
		DefaultModel: cfg.LLMConfig["default_model"],
		HasAPIKey:    cfg.LLMConfig["api_key"] != "",
		Providers:    llm.ListProviders(),
	}
}

// UpdateLLMConfig 更新生成服务提供商和设置。
// 未提供 api_key 时沿用当前密钥；未提供 default_model 时使用提供商的第一个模型。
func (s *ConfigService) UpdateLLMConfig(provider string, settings map[string]string, changedBy string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return apperrors.NewValidationError("provider cannot be empty", nil)
	}
	if !containsValue(llm.ListProviders(), provider) {
		return apperrors.NewValidationError(fmt.Sprintf("unknown provider %q", provider), llm.ErrUnknownProvider)
	}

	oldConfig := s.store.Current()

	merged := make(map[string]string, len(settings)+2)
	for k, v := range settings {
		merged[k] = strings.TrimSpace(v)
	}
	if merged["api_key"] == "" {
		merged["api_key"] = oldConfig.LLMConfig["api_key"]
	}
	if merged["default_model"] == "" {
		if models := llm.GetSupportedModelsForProvider(provider); len(models) > 0 {
			merged["default_model"] = models[0]
		}
	}

	if err := s.store.UpdateLLMConfig(provider, merged); err != nil {
		return apperrors.NewStorageError("保存配置失败", err)
	}
	newConfig := s.store.Current()

	s.recordChange(provider, merged["default_model"], changedBy)
	s.logger.Info("LLM configuration updated", map[string]interface{}{
		"provider":   provider,
		"model":      merged["default_model"],
		"changed_by": changedBy,
	})

	return s.notifySubscribers(oldConfig, newConfig)
}

// SubscribeToChanges 订阅配置变更事件
func (s *ConfigService) SubscribeToChanges(subscriber ConfigChangeSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, subscriber)
}

// notifySubscribers 依次通知订阅者，返回第一个错误
func (s *ConfigService) notifySubscribers(oldConfig, newConfig *config.AppConfig) error {
	s.mu.RLock()
	subscribers := make([]ConfigChangeSubscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.RUnlock()

	var firstErr error
	for _, subscriber := range subscribers {
		if err := subscriber.OnConfigChanged(oldConfig, newConfig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetChangeHistory 获取最近的配置变更
func (s *ConfigService) GetChangeHistory(limit int) []ConfigChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.changeHistory) {
		limit = len(s.changeHistory)
	}

	history := make([]ConfigChangeRecord, limit)
	copy(history, s.changeHistory[len(s.changeHistory)-limit:])
	return history
}

func (s *ConfigService) recordChange(provider, model, changedBy string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.changeHistory) >= maxChangeHistory {
		s.changeHistory = s.changeHistory[1:]
	}
	s.changeHistory = append(s.changeHistory, ConfigChangeRecord{
		Timestamp: time.Now(),
		ChangedBy: changedBy,
		Provider:  provider,
		Model:     model,
	})
}
