package app

import (
	"bytes"
	"testing"

	"github.com/Corphon/Ravlo/internal/config"
	"github.com/Corphon/Ravlo/internal/di"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/services"
	"github.com/Corphon/Ravlo/internal/utils"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	base := &config.Config{
		Port:        "0",
		DataDir:     t.TempDir(),
		GeminiModel: config.DefaultModel,
		SiteURL:     config.DefaultSiteURL,
	}
	a, err := InitServices(base, di.NewContainer(), utils.NewLogger(&bytes.Buffer{}, utils.ERROR))
	if err != nil {
		t.Fatalf("InitServices: %v", err)
	}
	return a
}

func TestInitServicesRegistersEverything(t *testing.T) {
	a := newTestApp(t)

	if err := a.HealthCheck(); err != nil {
		t.Fatalf("health check: %v", err)
	}

	for _, name := range []string{di.Store, di.Metrics, di.Settings, di.Config, di.Usage, di.LLM, di.Hooks, di.Posts, di.Drafts, di.Formatter, di.Preferences} {
		if !a.Container.Has(name) {
			t.Errorf("service %q not registered", name)
		}
	}

	llm, err := di.Resolve[*services.LLMService](a.Container, di.LLM)
	if err != nil {
		t.Fatalf("resolve llm: %v", err)
	}
	if llm.IsReady() {
		t.Errorf("llm should not be ready without an API key")
	}
	if _, err := di.Resolve[*services.DraftService](a.Container, di.LLM); err == nil {
		t.Errorf("resolving with the wrong type should fail")
	}
}

func TestDraftsPersistAcrossInit(t *testing.T) {
	base := &config.Config{DataDir: t.TempDir(), GeminiModel: config.DefaultModel}
	logger := utils.NewLogger(&bytes.Buffer{}, utils.ERROR)

	first, err := InitServices(base, di.NewContainer(), logger)
	if err != nil {
		t.Fatalf("InitServices: %v", err)
	}
	drafts, _ := di.Resolve[*services.DraftService](first.Container, di.Drafts)
	saved, err := drafts.Save(models.SaveDraftRequest{Content: "𝗵𝗲𝗹𝗹𝗼"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	second, err := InitServices(base, di.NewContainer(), logger)
	if err != nil {
		t.Fatalf("InitServices: %v", err)
	}
	reloaded, _ := di.Resolve[*services.DraftService](second.Container, di.Drafts)
	got, err := reloaded.Get(saved.Draft.ID)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if got.Content != "𝗵𝗲𝗹𝗹𝗼" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestInitServicesRequiresConfig(t *testing.T) {
	if _, err := InitServices(nil, di.NewContainer(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
