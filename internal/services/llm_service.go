// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Corphon/Ravlo/internal/config"
	"github.com/Corphon/Ravlo/internal/llm"
	"github.com/Corphon/Ravlo/internal/utils"
)

var ErrLLMNotReady = errors.New("llm service not ready")

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	isReady            bool
	readyState         string
	activeDefaultModel string

	metrics *utils.AppMetrics
	usage   *StatsService
	logger  *utils.Logger
}

// LLMStatus 服务状态
type LLMStatus struct {
	Ready        bool     `json:"ready"`
	State        string   `json:"state"`
	Provider     string   `json:"provider"`
	DefaultModel string   `json:"default_model,omitempty"`
	Models       []string `json:"models,omitempty"`
}

// NewLLMService 根据当前设置创建服务；配置不完整时返回未就绪的服务而不是错误
func NewLLMService(cfg *config.AppConfig, metrics *utils.AppMetrics, usage *StatsService, logger *utils.Logger) *LLMService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewAppMetrics(nil, logger)
	}

	service := &LLMService{
		readyState: "Uninitialized",
		metrics:    metrics,
		usage:      usage,
		logger:     logger,
	}

	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service
	}
	service.providerName = cfg.LLMProvider

	if cfg.LLMProvider == "" || cfg.LLMConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service
	}

	if err := service.UpdateProvider(cfg.LLMProvider, cfg.LLMConfig); err != nil {
		logger.Warn("LLM provider initialization failed", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
	}
	return service
}

// IsReady 返回服务是否已就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider != nil && s.isReady
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// Status 返回服务状态快照
func (s *LLMService) Status() LLMStatus {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	status := LLMStatus{
		Ready:        s.provider != nil && s.isReady,
		State:        s.readyState,
		Provider:     s.providerName,
		DefaultModel: s.activeDefaultModel,
	}
	if s.provider != nil {
		status.Models = s.provider.GetSupportedModels()
	} else if s.providerName != "" {
		status.Models = llm.GetSupportedModelsForProvider(s.providerName)
	}
	return status
}

// UpdateProvider 更新LLM服务的提供商
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := llm.GetProvider(providerName, cfg)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = cfg["default_model"]
	s.isReady = true
	s.readyState = "Ready"

	s.logger.Info("LLM provider configured", map[string]interface{}{
		"provider": providerName,
		"model":    s.activeDefaultModel,
	})
	return nil
}

// OnConfigChanged 设置变更后按新配置重建提供商
func (s *LLMService) OnConfigChanged(_, newConfig *config.AppConfig) error {
	if newConfig == nil {
		return nil
	}
	return s.UpdateProvider(newConfig.LLMProvider, newConfig.LLMConfig)
}

// CompleteText 发送一次生成请求，不重试
func (s *LLMService) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.providerMutex.RLock()
	provider, ready, name := s.provider, s.isReady, s.providerName
	if req.Model == "" {
		req.Model = s.activeDefaultModel
	}
	s.providerMutex.RUnlock()

	if provider == nil || !ready {
		return nil, ErrLLMNotReady
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		s.metrics.RecordError("external_service_error", "llm")
		s.logger.Error("LLM request failed", map[string]interface{}{
			"provider": name,
			"model":    req.Model,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.metrics.RecordLLMRequest(name, resp.ModelName, resp.TokensUsed, time.Since(start))
	if s.usage != nil {
		if err := s.usage.RecordAPIRequest(resp.TokensUsed); err != nil {
			s.logger.Warn("failed to record usage", map[string]interface{}{"error": err.Error()})
		}
	}
	return resp, nil
}

// cleanJSONString 去除模型输出中 JSON 前后的多余内容，返回第一个完整的对象或数组
func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	s = s[start:]

	open, closing := byte('{'), byte('}')
	if s[0] == '[' {
		open, closing = '[', ']'
	}

	// 简单的括号计数匹配
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case open:
			balance++
		case closing:
			balance--
		}
		if balance == 0 {
			return strings.TrimSpace(s[:i+1])
		}
	}

	// 没找到匹配的结束符，回退到最后一个
	if end := strings.LastIndexByte(s, closing); end >= 0 {
		return strings.TrimSpace(s[:end+1])
	}
	return strings.TrimSpace(s)
}
