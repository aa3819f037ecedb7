package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Corphon/Ravlo/internal/config"
	"github.com/Corphon/Ravlo/internal/llm"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/utils"
)

const fakeProviderName = "fake-test"

// fakeProvider 注册到全局工厂，供 LLMService 测试使用
type fakeProvider struct {
	model string
	fail  bool
}

func (p *fakeProvider) Initialize(cfg map[string]string) error {
	if cfg["api_key"] == "" {
		return llm.ErrMissingAPIKey
	}
	p.model = cfg["default_model"]
	p.fail = cfg["fail"] == "true"
	return nil
}

func (p *fakeProvider) GetName() string              { return fakeProviderName }
func (p *fakeProvider) GetSupportedModels() []string { return []string{"fake-small", "fake-large"} }

func (p *fakeProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.fail {
		return nil, errors.New("upstream unavailable")
	}
	return &llm.CompletionResponse{
		Text:         "echo: " + req.Prompt,
		TokensUsed:   42,
		ModelName:    req.Model,
		ProviderName: fakeProviderName,
	}, nil
}

func init() {
	llm.Register(fakeProviderName, func() llm.Provider { return &fakeProvider{} })
}

func TestLLMServiceNotReadyWithoutKey(t *testing.T) {
	svc := NewLLMService(&config.AppConfig{LLMProvider: fakeProviderName}, nil, nil, quietLogger())
	if svc.IsReady() {
		t.Fatalf("service should not be ready without api key")
	}
	if svc.GetReadyState() != "API key not configured" {
		t.Fatalf("state = %q", svc.GetReadyState())
	}

	_, err := svc.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, ErrLLMNotReady) {
		t.Fatalf("expected ErrLLMNotReady, got %v", err)
	}

	status := svc.Status()
	if status.Ready || len(status.Models) != 2 {
		t.Fatalf("status = %+v", status)
	}
}

func TestLLMServiceNilConfig(t *testing.T) {
	svc := NewLLMService(nil, nil, nil, quietLogger())
	if svc.IsReady() {
		t.Fatalf("nil config must not be ready")
	}
}

func TestLLMServiceUnknownProvider(t *testing.T) {
	svc := NewLLMService(nil, nil, nil, quietLogger())
	err := svc.UpdateProvider("does-not-exist", map[string]string{"api_key": "k"})
	if !errors.Is(err, llm.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if svc.IsReady() {
		t.Fatalf("failed update must leave service not ready")
	}
}

func TestLLMServiceCompleteRecordsUsage(t *testing.T) {
	collector := utils.NewMetricsCollector()
	metrics := utils.NewAppMetrics(collector, quietLogger())
	usage := NewStatsService(storage.NewMemoryStore(), func() time.Time { return testClock }, quietLogger())

	svc := NewLLMService(&config.AppConfig{
		LLMProvider: fakeProviderName,
		LLMConfig:   map[string]string{"api_key": "k", "default_model": "fake-small"},
	}, metrics, usage, quietLogger())
	if !svc.IsReady() {
		t.Fatalf("state = %q", svc.GetReadyState())
	}

	resp, err := svc.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "echo: hello" || resp.ModelName != "fake-small" {
		t.Fatalf("resp = %+v", resp)
	}

	stats := usage.GetUsageStats()
	if stats.TodayRequests != 1 || stats.MonthlyTokens != 42 {
		t.Fatalf("usage = %+v", stats)
	}
	if collector.GetCounterValue("llm_requests_total") != 1 {
		t.Fatalf("llm request counter not incremented")
	}
}

func TestLLMServiceProviderFailure(t *testing.T) {
	usage := NewStatsService(storage.NewMemoryStore(), nil, quietLogger())
	svc := NewLLMService(&config.AppConfig{
		LLMProvider: fakeProviderName,
		LLMConfig:   map[string]string{"api_key": "k", "fail": "true"},
	}, nil, usage, quietLogger())

	if _, err := svc.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatalf("expected provider error")
	}
	if usage.GetUsageStats().TodayRequests != 0 {
		t.Fatalf("failed request must not count as usage")
	}
}

func TestCleanJSONString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{`{"a":1}`, `{"a":1}`},
		{"Sure! {\"a\":1} hope this helps", `{"a":1}`},
		{"\u200b{\"a\":\"}\"}trailing", `{"a":"}"}`},
		{`[1,[2]] and more`, `[1,[2]]`},
		{`{"a":{"b":1}`, `{"a":{"b":1}`},
		{"no json here", "no json here"},
	}
	for _, tt := range tests {
		if got := cleanJSONString(tt.in); got != tt.want {
			t.Errorf("cleanJSONString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
