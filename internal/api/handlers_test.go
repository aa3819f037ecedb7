package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Corphon/Ravlo/internal/config"
	"github.com/Corphon/Ravlo/internal/di"
	"github.com/Corphon/Ravlo/internal/llm"
	"github.com/Corphon/Ravlo/internal/services"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/styling"
	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const scriptedProvider = "api-scripted"

// scriptedLLM 返回固定的两段帖子
type scriptedLLM struct{}

func (scriptedLLM) Initialize(cfg map[string]string) error {
	if cfg["api_key"] == "" {
		return llm.ErrMissingAPIKey
	}
	return nil
}
func (scriptedLLM) GetName() string              { return scriptedProvider }
func (scriptedLLM) GetSupportedModels() []string { return []string{"scripted-1"} }
func (scriptedLLM) CompleteText(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{
		Text:       `{"concise":"Short take.","storyRich":"A longer story."}`,
		TokensUsed: 10,
	}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
	llm.Register(scriptedProvider, func() llm.Provider { return scriptedLLM{} })
}

type memSettings struct{ cfg config.AppConfig }

func (m *memSettings) Current() *config.AppConfig {
	out := &config.AppConfig{LLMProvider: m.cfg.LLMProvider, LLMConfig: map[string]string{}}
	for k, v := range m.cfg.LLMConfig {
		out.LLMConfig[k] = v
	}
	return out
}

func (m *memSettings) UpdateLLMConfig(provider string, settings map[string]string) error {
	m.cfg = config.AppConfig{LLMProvider: provider, LLMConfig: settings}
	return nil
}

type testServer struct {
	router   *gin.Engine
	settings *memSettings
	ws       *WebSocketManager
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()

	logger := utils.NewLogger(&bytes.Buffer{}, utils.ERROR)
	store := storage.NewMemoryStore()
	metrics := utils.NewAppMetrics(utils.NewMetricsCollector(), logger)
	settings := &memSettings{cfg: config.AppConfig{
		LLMProvider: scriptedProvider,
		LLMConfig:   map[string]string{"api_key": apiKey},
	}}

	usage := services.NewStatsService(store, nil, logger)
	llmSvc := services.NewLLMService(settings.Current(), metrics, usage, logger)
	configSvc := services.NewConfigService(settings, logger)
	configSvc.SubscribeToChanges(llmSvc)
	hooks, err := services.NewHookService()
	if err != nil {
		t.Fatalf("hooks: %v", err)
	}

	container := di.NewContainer()
	container.Register(di.Metrics, metrics)
	container.Register(di.Usage, usage)
	container.Register(di.LLM, llmSvc)
	container.Register(di.Config, configSvc)
	container.Register(di.Hooks, hooks)
	container.Register(di.Posts, services.NewPostService(llmSvc, hooks, logger))
	container.Register(di.Drafts, services.NewDraftService(store, metrics, logger))
	container.Register(di.Formatter, services.NewFormatterService(store, metrics, logger))
	container.Register(di.Preferences, services.NewPreferenceService(store, logger))

	ws := NewWebSocketManager(logger, metrics)
	router, err := SetupRouter(container, RouterOptions{
		SiteURL:   "https://ravlo.ai",
		DebugMode: true,
		Logger:    logger,
		WebSocket: ws,
	})
	if err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}
	return &testServer{router: router, settings: settings, ws: ws}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func TestFormatEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	w, env := s.do(t, http.MethodPost, "/api/format", map[string]interface{}{
		"text": "hello world", "start": 0, "end": 5, "op": "bold",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var got struct {
		Text         string `json:"text"`
		SelectionEnd int    `json:"selection_end"`
	}
	decodeData(t, env, &got)
	if want := styling.OpBold.Apply("hello") + " world"; got.Text != want {
		t.Errorf("text = %q, want %q", got.Text, want)
	}
	if got.SelectionEnd != 5 {
		t.Errorf("selection_end = %d", got.SelectionEnd)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing request id header")
	}

	w, env = s.do(t, http.MethodPost, "/api/format", map[string]interface{}{
		"text": "hi", "start": 0, "end": 9, "op": "bold",
	})
	if w.Code != http.StatusBadRequest || env.Error.Code != ErrorBadRequest {
		t.Errorf("out of range selection: status = %d error = %+v", w.Code, env.Error)
	}

	w, env = s.do(t, http.MethodPost, "/api/format", map[string]interface{}{
		"text": "hi", "whole": true, "op": "sparkle",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown op: status = %d", w.Code)
	}
}

func TestDecodeAndStatsEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	styled := styling.OpBold.Apply("hi") + " " + styling.OpUnderline.Apply("you")

	_, env := s.do(t, http.MethodPost, "/api/format/decode", map[string]string{"text": styled})
	var decoded struct {
		Text string `json:"text"`
	}
	decodeData(t, env, &decoded)
	if decoded.Text != "hi you" {
		t.Errorf("decoded = %q", decoded.Text)
	}

	_, env = s.do(t, http.MethodPost, "/api/format/stats", map[string]string{"text": styled})
	var stats struct {
		Visible int `json:"visible"`
		Words   int `json:"words"`
	}
	decodeData(t, env, &stats)
	if stats.Visible != 6 || stats.Words != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDraftLifecycle(t *testing.T) {
	s := newTestServer(t, "")

	w, env := s.do(t, http.MethodPost, "/api/drafts", map[string]string{"content": "first post"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", w.Code, w.Body.String())
	}
	var created struct {
		Draft struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"draft"`
	}
	decodeData(t, env, &created)
	if created.Draft.Title != "Draft #1" {
		t.Errorf("title = %q", created.Draft.Title)
	}
	id := created.Draft.ID

	w, _ = s.do(t, http.MethodPut, "/api/drafts/"+id, map[string]string{"content": "edited", "title": "Mine"})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	_, env = s.do(t, http.MethodGet, "/api/drafts/"+id, nil)
	var draft struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	decodeData(t, env, &draft)
	if draft.Title != "Mine" || draft.Content != "edited" {
		t.Errorf("draft = %+v", draft)
	}

	w, env = s.do(t, http.MethodPost, "/api/drafts", map[string]string{"content": "   "})
	if w.Code != http.StatusBadRequest || env.Error.Message != "Cannot save an empty draft." {
		t.Errorf("blank draft: status = %d error = %+v", w.Code, env.Error)
	}

	w, _ = s.do(t, http.MethodDelete, "/api/drafts/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w, env = s.do(t, http.MethodGet, "/api/drafts/"+id, nil)
	if w.Code != http.StatusNotFound || env.Error.Code != ErrorDraftNotFound {
		t.Errorf("deleted draft: status = %d error = %+v", w.Code, env.Error)
	}

	_, env = s.do(t, http.MethodGet, "/api/drafts", nil)
	var list struct {
		Count int `json:"count"`
	}
	decodeData(t, env, &list)
	if list.Count != 0 {
		t.Errorf("count = %d", list.Count)
	}
}

func TestDraftImportMultipartAndExport(t *testing.T) {
	s := newTestServer(t, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "drafts.json")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(`[{"id":"a1","content":"<p><strong>Bold</strong> move</p>","timestamp":1714564800000}]`))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, env := s.serve(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d body = %s", w.Code, w.Body.String())
	}
	var result struct {
		Imported int `json:"imported"`
	}
	decodeData(t, env, &result)
	if result.Imported != 1 {
		t.Fatalf("imported = %d", result.Imported)
	}

	w, _ = s.do(t, http.MethodGet, "/api/drafts/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Errorf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Drafts")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][0] != "a1" || rows[1][3] != "Bold move" {
		t.Errorf("rows = %v", rows)
	}

	w, _ = s.do(t, http.MethodPost, "/api/drafts/import", map[string]string{"not": "an array"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad import status = %d", w.Code)
	}
}

func TestPreloadConsumedOnce(t *testing.T) {
	s := newTestServer(t, "")

	w, _ := s.do(t, http.MethodPost, "/api/formatter/preload", map[string]string{"text": "from generator"})
	if w.Code != http.StatusCreated {
		t.Fatalf("preload status = %d", w.Code)
	}

	var got struct {
		Available bool   `json:"available"`
		Text      string `json:"text"`
	}
	_, env := s.do(t, http.MethodPost, "/api/formatter/preload/consume", nil)
	decodeData(t, env, &got)
	if !got.Available || got.Text != "from generator" {
		t.Fatalf("first consume = %+v", got)
	}

	_, env = s.do(t, http.MethodPost, "/api/formatter/preload/consume", nil)
	decodeData(t, env, &got)
	if got.Available {
		t.Errorf("second consume should be empty: %+v", got)
	}
}

func TestGeneratePostRequiresConfiguredLLM(t *testing.T) {
	s := newTestServer(t, "")
	req := map[string]string{"topic": "hiring", "hook_id": "story-0"}

	w, env := s.do(t, http.MethodPost, "/api/posts/generate", req)
	if w.Code != http.StatusServiceUnavailable || env.Error.Code != ErrorLLMServiceUnavailable {
		t.Fatalf("status = %d error = %+v", w.Code, env.Error)
	}

	w, _ = s.do(t, http.MethodPut, "/api/llm/config", map[string]interface{}{
		"provider": scriptedProvider,
		"config":   map[string]string{"api_key": "k"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("config update status = %d body = %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodPost, "/api/posts/generate", req)
	if w.Code != http.StatusOK {
		t.Fatalf("generate status = %d body = %s", w.Code, w.Body.String())
	}
	var post struct {
		Concise   string `json:"concise"`
		StoryRich string `json:"storyRich"`
	}
	decodeData(t, env, &post)
	if post.Concise != "Short take." || post.StoryRich != "A longer story." {
		t.Errorf("post = %+v", post)
	}

	w, env = s.do(t, http.MethodPost, "/api/posts/generate", map[string]string{"topic": "x", "hook_id": "nope-1"})
	if w.Code != http.StatusNotFound || env.Error.Code != ErrorHookNotFound {
		t.Errorf("unknown hook: status = %d error = %+v", w.Code, env.Error)
	}

	_, env = s.do(t, http.MethodGet, "/api/llm/usage", nil)
	var usage struct {
		TodayRequests int `json:"today_requests"`
	}
	decodeData(t, env, &usage)
	if usage.TodayRequests != 1 {
		t.Errorf("today_requests = %d", usage.TodayRequests)
	}
}

func TestLLMConfigHidesKey(t *testing.T) {
	s := newTestServer(t, "super-secret")

	w, _ := s.do(t, http.MethodGet, "/api/llm/config", nil)
	if strings.Contains(w.Body.String(), "super-secret") {
		t.Fatalf("config response leaks the key: %s", w.Body.String())
	}

	w, env := s.do(t, http.MethodPut, "/api/llm/config", map[string]interface{}{"provider": "missing"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown provider: status = %d error = %+v", w.Code, env.Error)
	}
	if s.settings.cfg.LLMConfig["api_key"] != "super-secret" {
		t.Errorf("failed update must not touch settings")
	}
}

func TestHooksEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	w, env := s.do(t, http.MethodGet, "/api/hooks?category=story", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var hooks []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	}
	decodeData(t, env, &hooks)
	if len(hooks) == 0 || hooks[0].ID != "story-0" {
		t.Fatalf("hooks = %+v", hooks)
	}
	for _, h := range hooks {
		if h.Category != "story" {
			t.Errorf("unexpected category %q", h.Category)
		}
	}

	w, _ = s.do(t, http.MethodGet, "/api/hooks?category=spooky", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad category status = %d", w.Code)
	}

	w, env = s.do(t, http.MethodGet, "/api/hooks/nope-3", nil)
	if w.Code != http.StatusNotFound || env.Error.Code != ErrorHookNotFound {
		t.Errorf("missing hook: status = %d error = %+v", w.Code, env.Error)
	}
}

func TestThemeEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	var got struct {
		Theme string `json:"theme"`
	}
	_, env := s.do(t, http.MethodGet, "/api/preferences/theme", nil)
	decodeData(t, env, &got)
	if got.Theme != "light" {
		t.Fatalf("default theme = %q", got.Theme)
	}

	_, env = s.do(t, http.MethodPost, "/api/preferences/theme/toggle", nil)
	decodeData(t, env, &got)
	if got.Theme != "dark" {
		t.Fatalf("toggled theme = %q", got.Theme)
	}

	w, _ := s.do(t, http.MethodPut, "/api/preferences/theme", map[string]string{"theme": "sepia"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid theme status = %d", w.Code)
	}
}

func TestSitemapAndOGImage(t *testing.T) {
	s := newTestServer(t, "")

	w, _ := s.do(t, http.MethodGet, "/sitemap.xml", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<loc>https://ravlo.ai/faq</loc>") {
		t.Fatalf("sitemap: %d %s", w.Code, w.Body.String())
	}

	w, _ = s.do(t, http.MethodGet, "/og-image.png", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("og image: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Errorf("body is not a png")
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("k", 3, time.Minute) {
			t.Fatalf("request %d should pass", i)
		}
	}
	if rl.Allow("k", 3, time.Minute) {
		t.Fatalf("fourth request should be limited")
	}
	if _, remaining, _ := rl.GetRateLimitHeaders("k", 3, time.Minute); remaining != 0 {
		t.Errorf("remaining = %d", remaining)
	}

	now = now.Add(2 * time.Minute)
	if removed := rl.cleanup(); removed != 1 {
		t.Errorf("cleanup removed %d", removed)
	}
	if !rl.Allow("k", 3, time.Minute) {
		t.Errorf("new window should pass")
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter()
	r := gin.New()
	r.Use(requestIDMiddleware())
	r.GET("/x", rl.ByIP("test", 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, want)
		}
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	if got := sanitizeErrorMessage("bad api_key supplied"); got != "An internal error occurred" {
		t.Errorf("got %q", got)
	}
	if got := sanitizeErrorMessage("draft not found"); got != "draft not found" {
		t.Errorf("got %q", got)
	}
}
