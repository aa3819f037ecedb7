package services

import (
	"errors"
	"testing"

	"github.com/Corphon/Ravlo/internal/config"
	apperrors "github.com/Corphon/Ravlo/internal/errors"
)

// memConfigStore 是内存中的 ConfigStore
type memConfigStore struct {
	cfg  config.AppConfig
	fail bool
}

func (m *memConfigStore) Current() *config.AppConfig {
	out := &config.AppConfig{LLMProvider: m.cfg.LLMProvider, LLMConfig: map[string]string{}}
	for k, v := range m.cfg.LLMConfig {
		out.LLMConfig[k] = v
	}
	return out
}

func (m *memConfigStore) UpdateLLMConfig(provider string, settings map[string]string) error {
	if m.fail {
		return errors.New("read-only")
	}
	m.cfg = config.AppConfig{LLMProvider: provider, LLMConfig: settings}
	return nil
}

func TestConfigServiceUpdateAppliesToLLM(t *testing.T) {
	store := &memConfigStore{cfg: config.AppConfig{LLMProvider: fakeProviderName, LLMConfig: map[string]string{}}}
	svc := NewConfigService(store, quietLogger())

	llmSvc := NewLLMService(store.Current(), nil, nil, quietLogger())
	svc.SubscribeToChanges(llmSvc)
	if llmSvc.IsReady() {
		t.Fatalf("should start not ready")
	}

	if err := svc.UpdateLLMConfig(fakeProviderName, map[string]string{"api_key": " secret "}, "test"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !llmSvc.IsReady() {
		t.Fatalf("llm should be ready after update: %s", llmSvc.GetReadyState())
	}

	view := svc.View()
	if !view.HasAPIKey || view.DefaultModel != "fake-small" || view.Provider != fakeProviderName {
		t.Fatalf("view = %+v", view)
	}
	if store.cfg.LLMConfig["api_key"] != "secret" {
		t.Fatalf("api key not trimmed: %q", store.cfg.LLMConfig["api_key"])
	}

	// 不带密钥的更新保留原密钥
	if err := svc.UpdateLLMConfig(fakeProviderName, map[string]string{"default_model": "fake-large"}, "test"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.cfg.LLMConfig["api_key"] != "secret" || llmSvc.Status().DefaultModel != "fake-large" {
		t.Fatalf("config = %+v status = %+v", store.cfg, llmSvc.Status())
	}

	history := svc.GetChangeHistory(0)
	if len(history) != 2 || history[1].Model != "fake-large" {
		t.Fatalf("history = %+v", history)
	}
}

func TestConfigServiceValidation(t *testing.T) {
	store := &memConfigStore{cfg: config.AppConfig{LLMConfig: map[string]string{}}}
	svc := NewConfigService(store, quietLogger())

	if err := svc.UpdateLLMConfig("", nil, "test"); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.UpdateLLMConfig("nope", nil, "test"); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	store.fail = true
	if err := svc.UpdateLLMConfig(fakeProviderName, map[string]string{"api_key": "k"}, "test"); !apperrors.IsStorageError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
