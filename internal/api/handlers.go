// internal/api/handlers.go
package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/Ravlo/internal/assets"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/services"
	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	generationTimeout = 60 * time.Second
	maxImportBytes    = 5 << 20
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Services 处理器依赖的服务集合
type Services struct {
	Formatter   *services.FormatterService
	Drafts      *services.DraftService
	Posts       *services.PostService
	Hooks       *services.HookService
	Preferences *services.PreferenceService
	LLM         *services.LLMService
	Config      *services.ConfigService
	Usage       *services.StatsService
	Metrics     *utils.AppMetrics
}

// Handler 处理API请求
type Handler struct {
	Services
	WebSocket *WebSocketManager // 草稿变更通知
	Response  *ResponseHelper   // 响应助手
	SiteURL   string

	logger    *utils.Logger
	startedAt time.Time
	now       func() time.Time

	// 分享图只渲染一次
	ogOnce  sync.Once
	ogImage []byte
	ogErr   error
}

// NewHandler 创建API处理器
func NewHandler(svc Services, ws *WebSocketManager, siteURL string, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if svc.Metrics == nil {
		svc.Metrics = utils.NewAppMetrics(nil, logger)
	}
	if ws == nil {
		ws = NewWebSocketManager(logger, svc.Metrics)
	}
	return &Handler{
		Services:  svc,
		WebSocket: ws,
		Response:  NewResponseHelper(),
		SiteURL:   siteURL,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

type textRequest struct {
	Text string `json:"text"`
}

// ========================================
// 系统
// ========================================

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"llm_ready":      h.LLM.IsReady(),
		"websocket":      h.WebSocket.GetStatus()["total_connections"],
	})
}

// GetMetrics 返回内存中的指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, h.Metrics.Collector().GetMetrics())
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := h.WebSocket.GetStatus()
	status["timestamp"] = h.now().Format(time.RFC3339)
	h.Response.Success(c, status)
}

// CleanupWebSocketConnections 立即清理过期连接
func (h *Handler) CleanupWebSocketConnections(c *gin.Context) {
	removed := h.WebSocket.cleanupExpiredConnections()
	h.Response.Success(c, gin.H{"removed": removed}, "连接清理已执行")
}

// ========================================
// 格式化器
// ========================================

// Format 对缓冲区或选区应用样式操作
func (h *Handler) Format(c *gin.Context) {
	var req models.FormatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid format request", err.Error())
		return
	}

	result, err := h.Formatter.Format(req)
	if err != nil {
		h.Response.HandleError(c, err, ErrorFormatFailed)
		return
	}
	h.Response.Success(c, result)
}

// Decode 去除全部样式
func (h *Handler) Decode(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request", err.Error())
		return
	}
	h.Response.Success(c, gin.H{"text": h.Formatter.Decode(req.Text)})
}

// Stats 统计文本长度
func (h *Handler) Stats(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request", err.Error())
		return
	}
	h.Response.Success(c, services.Stats(req.Text))
}

// SetPreload 生成器把内容交给格式化器
func (h *Handler) SetPreload(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request", err.Error())
		return
	}
	if err := h.Formatter.SetPreload(req.Text); err != nil {
		h.Response.HandleError(c, err, ErrorStorageFailed)
		return
	}
	h.Response.Created(c, gin.H{"stored": true})
}

// ConsumePreload 读取并清除预载内容
func (h *Handler) ConsumePreload(c *gin.Context) {
	text, ok, err := h.Formatter.ConsumePreload()
	if err != nil {
		h.Response.HandleError(c, err, ErrorStorageFailed)
		return
	}
	h.Response.Success(c, gin.H{"available": ok, "text": text})
}

// ========================================
// 草稿
// ========================================

// ListDrafts 列出草稿，最新在前
func (h *Handler) ListDrafts(c *gin.Context) {
	drafts := h.Drafts.List()
	if drafts == nil {
		drafts = []models.Draft{}
	}
	h.Response.Success(c, gin.H{"drafts": drafts, "count": len(drafts)})
}

// GetDraft 获取单个草稿
func (h *Handler) GetDraft(c *gin.Context) {
	draft, err := h.Drafts.Get(c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, ErrorDraftNotFound)
		return
	}
	h.Response.Success(c, draft)
}

// SaveDraft 新建或更新草稿
func (h *Handler) SaveDraft(c *gin.Context) {
	var req models.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid draft", err.Error())
		return
	}
	h.saveDraft(c, req)
}

// UpdateDraft 以路径中的 id 保存草稿
func (h *Handler) UpdateDraft(c *gin.Context) {
	var req models.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid draft", err.Error())
		return
	}
	req.EditingID = c.Param("id")
	h.saveDraft(c, req)
}

func (h *Handler) saveDraft(c *gin.Context, req models.SaveDraftRequest) {
	result, err := h.Drafts.Save(req)
	if err != nil {
		h.Response.HandleError(c, err, ErrorStorageFailed)
		return
	}

	h.notifyDrafts("saved", result.Draft.ID)
	if result.Updated {
		h.Response.Success(c, result, "Draft updated")
		return
	}
	h.Response.Created(c, result, "Draft saved")
}

// DeleteDraft 删除草稿；id 不存在时不做任何事
func (h *Handler) DeleteDraft(c *gin.Context) {
	id := c.Param("id")
	if err := h.Drafts.Remove(id); err != nil {
		h.Response.HandleError(c, err, ErrorStorageFailed)
		return
	}
	h.notifyDrafts("removed", id)
	h.Response.Success(c, gin.H{"id": id}, "Draft deleted")
}

// ExportDrafts 下载电子表格
func (h *Handler) ExportDrafts(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.Drafts.ExportXLSX(&buf); err != nil {
		h.Response.HandleError(c, err, ErrorExportFailed)
		return
	}
	filename := "ravlo-drafts-" + h.now().Format("20060102") + ".xlsx"
	h.Response.DownloadResponse(c, buf.Bytes(), filename, xlsxContentType)
}

// ImportDrafts 导入旧版草稿，支持 JSON 请求体或 multipart 的 file 字段
func (h *Handler) ImportDrafts(c *gin.Context) {
	data, err := readImportPayload(c)
	if err != nil {
		h.Response.BadRequest(c, "Could not read import payload", err.Error())
		return
	}

	result, err := h.Drafts.ImportLegacy(data)
	if err != nil {
		h.Response.HandleError(c, err, ErrorDraftImportFailed)
		return
	}
	if result.Imported > 0 {
		h.notifyDrafts("imported", "")
	}
	h.Response.Success(c, result)
}

func readImportPayload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

// notifyDrafts 通知所有打开的页面草稿列表已变化
func (h *Handler) notifyDrafts(action, id string) {
	h.WebSocket.BroadcastAll(reply("drafts_changed", "", gin.H{"action": action, "id": id}))
}

// ========================================
// 生成器
// ========================================

// GeneratePost 生成两个版本的帖子
func (h *Handler) GeneratePost(c *gin.Context) {
	if !h.LLM.IsReady() {
		h.Response.ServiceUnavailable(c, ErrorLLMServiceUnavailable, "Post generation is not configured", h.LLM.GetReadyState())
		return
	}

	var req models.GeneratePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid generation request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), generationTimeout)
	defer cancel()

	result, err := h.Posts.GeneratePost(ctx, req)
	if err != nil {
		h.Response.HandleError(c, err, ErrorHookNotFound)
		return
	}
	h.Response.Success(c, result)
}

// GenerateComment 为帖子链接生成评论
func (h *Handler) GenerateComment(c *gin.Context) {
	if !h.LLM.IsReady() {
		h.Response.ServiceUnavailable(c, ErrorLLMServiceUnavailable, "Comment generation is not configured", h.LLM.GetReadyState())
		return
	}

	var req models.GenerateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid comment request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), generationTimeout)
	defer cancel()

	result, err := h.Posts.GenerateComment(ctx, req)
	if err != nil {
		h.Response.HandleError(c, err, ErrorGenerationFailed)
		return
	}
	h.Response.Success(c, result)
}

// ListHooks 列出开头模板，可按 category 过滤
func (h *Handler) ListHooks(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		h.Response.Success(c, h.Hooks.All())
		return
	}

	hooks, err := h.Hooks.ByCategory(models.HookCategory(category))
	if err != nil {
		h.Response.HandleError(c, err, ErrorHookNotFound)
		return
	}
	h.Response.Success(c, hooks)
}

// HookStats 各分类模板数量
func (h *Handler) HookStats(c *gin.Context) {
	h.Response.Success(c, h.Hooks.Stats())
}

// GetHook 按 id 获取模板
func (h *Handler) GetHook(c *gin.Context) {
	hook, err := h.Hooks.Get(c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, ErrorHookNotFound)
		return
	}
	h.Response.Success(c, hook)
}

// ========================================
// 偏好设置
// ========================================

// GetTheme 获取主题
func (h *Handler) GetTheme(c *gin.Context) {
	h.Response.Success(c, gin.H{"theme": h.Preferences.Theme()})
}

// SetTheme 设置主题
func (h *Handler) SetTheme(c *gin.Context) {
	var req struct {
		Theme models.Theme `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request", err.Error())
		return
	}
	if err := h.Preferences.SetTheme(req.Theme); err != nil {
		h.Response.HandleError(c, err, ErrorStorageFailed)
		return
	}
	h.Response.Success(c, gin.H{"theme": req.Theme})
}

// ToggleTheme 切换主题
func (h *Handler) ToggleTheme(c *gin.Context) {
	theme, err := h.Preferences.ToggleTheme()
	if err != nil {
		h.Response.HandleError(c, err, ErrorStorageFailed)
		return
	}
	h.Response.Success(c, gin.H{"theme": theme})
}

// ========================================
// 生成服务设置
// ========================================

// GetLLMStatus 获取生成服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	h.Response.Success(c, h.LLM.Status())
}

// GetLLMConfig 获取生成服务设置，不返回密钥
func (h *Handler) GetLLMConfig(c *gin.Context) {
	h.Response.Success(c, h.Config.View())
}

// UpdateLLMConfig 更新生成服务设置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider"`
		Config   map[string]string `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request", err.Error())
		return
	}

	if err := h.Config.UpdateLLMConfig(req.Provider, req.Config, c.ClientIP()); err != nil {
		h.Response.HandleError(c, err, ErrorLLMConfigInvalid)
		return
	}
	h.Response.Success(c, gin.H{
		"config": h.Config.View(),
		"status": h.LLM.Status(),
	}, "Configuration updated")
}

// GetUsage 生成接口使用统计
func (h *Handler) GetUsage(c *gin.Context) {
	h.Response.Success(c, h.Usage.GetUsageStats())
}

// ResetUsage 清零使用统计
func (h *Handler) ResetUsage(c *gin.Context) {
	if err := h.Usage.ResetStats(); err != nil {
		h.Response.HandleError(c, err, ErrorStorageFailed)
		return
	}
	h.Response.Success(c, h.Usage.GetUsageStats(), "Usage statistics reset")
}

// ========================================
// 静态资源
// ========================================

// Sitemap 返回站点地图
func (h *Handler) Sitemap(c *gin.Context) {
	data, err := assets.Sitemap(h.SiteURL, assets.DefaultPages, h.now())
	if err != nil {
		h.Response.HandleError(c, err, ErrorAssetFailed)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/xml; charset=utf-8", data)
}

// OGImage 返回社交分享图
func (h *Handler) OGImage(c *gin.Context) {
	h.ogOnce.Do(func() {
		host := h.SiteURL
		if u, err := url.Parse(h.SiteURL); err == nil && u.Host != "" {
			host = u.Host
		}

		var buf bytes.Buffer
		if h.ogErr = assets.OGImage(&buf, assets.DefaultOGOptions(host)); h.ogErr == nil {
			h.ogImage = buf.Bytes()
		}
	})

	if h.ogErr != nil {
		h.logger.Error("render og image failed", map[string]interface{}{"error": h.ogErr.Error()})
		h.Response.InternalError(c, "Failed to render image")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", h.ogImage)
}
