// internal/services/draft_service.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/utils"
	"github.com/google/uuid"
)

// DraftService 管理草稿列表。整个列表作为一个 JSON 数组保存在 models.DraftsKey 下，
// 最新创建的在前。读取失败或数据损坏视为空列表。
type DraftService struct {
	store   storage.BlobStore
	metrics *utils.AppMetrics
	logger  *utils.Logger

	now   func() time.Time
	newID func() string

	// 串行化读-改-写
	mu sync.Mutex
}

// DraftOption 配置 DraftService
type DraftOption func(*DraftService)

// WithClock 注入时钟
func WithClock(now func() time.Time) DraftOption {
	return func(s *DraftService) { s.now = now }
}

// WithIDGenerator 注入 id 生成器
func WithIDGenerator(newID func() string) DraftOption {
	return func(s *DraftService) { s.newID = newID }
}

// NewDraftService 创建草稿服务
func NewDraftService(store storage.BlobStore, metrics *utils.AppMetrics, logger *utils.Logger, opts ...DraftOption) *DraftService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewAppMetrics(nil, logger)
	}

	s := &DraftService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load 读取草稿列表，任何读取或解析错误都按空列表处理
func (s *DraftService) load() []models.Draft {
	data, ok, err := s.store.Get(models.DraftsKey)
	if err != nil {
		s.logger.Warn("failed to read drafts, treating as empty", map[string]interface{}{"error": err.Error()})
		return []models.Draft{}
	}
	if !ok || len(data) == 0 {
		return []models.Draft{}
	}

	var drafts []models.Draft
	if err := json.Unmarshal(data, &drafts); err != nil {
		s.logger.Warn("drafts blob is corrupt, treating as empty", map[string]interface{}{"error": err.Error()})
		return []models.Draft{}
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	return drafts
}

func (s *DraftService) persist(drafts []models.Draft, action string) error {
	data, err := json.Marshal(drafts)
	if err != nil {
		return apperrors.NewProcessingError("序列化草稿失败", err)
	}
	if err := s.store.Put(models.DraftsKey, data); err != nil {
		s.metrics.RecordError(string(apperrors.ErrorTypeStorage), "drafts")
		return apperrors.NewStorageError("保存草稿失败", err)
	}
	s.metrics.RecordDraftAction(action, len(drafts))
	return nil
}

// List 返回全部草稿，最新创建的在前
func (s *DraftService) List() []models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get 按 id 查找草稿
func (s *DraftService) Get(id string) (models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.load() {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Draft{}, apperrors.NewNotFoundError(fmt.Sprintf("draft %q not found", id), nil)
}

// Upsert id 已存在时替换标题、内容和时间戳，否则插入到最前
func (s *DraftService) Upsert(draft models.Draft) error {
	if draft.ID == "" {
		return apperrors.NewValidationError("draft id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, _ := upsertDraft(s.load(), draft)
	return s.persist(drafts, "upsert")
}

// upsertDraft 返回新列表以及是否为更新
func upsertDraft(drafts []models.Draft, draft models.Draft) ([]models.Draft, bool) {
	for i := range drafts {
		if drafts[i].ID == draft.ID {
			drafts[i].Title = draft.Title
			drafts[i].Content = draft.Content
			drafts[i].Timestamp = draft.Timestamp
			return drafts, true
		}
	}
	return append([]models.Draft{draft}, drafts...), false
}

// Remove 删除草稿；id 不存在时什么也不做
func (s *DraftService) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := s.load()
	kept := drafts[:0]
	for _, d := range drafts {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(drafts) {
		return nil
	}
	return s.persist(kept, "remove")
}

// Save 格式化器的保存流程。内容去空白后为空时返回验证错误且不修改存储。
// 没有 EditingID 时新建草稿，标题默认为 "Draft #<n+1>"；
// 编辑时保留 id，标题默认为 "Draft #<id 后四位>"。
func (s *DraftService) Save(req models.SaveDraftRequest) (*models.SaveDraftResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.NewValidationError("Cannot save an empty draft.", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := s.load()
	title := strings.TrimSpace(req.Title)
	draft := models.Draft{
		ID:        req.EditingID,
		Title:     title,
		Content:   req.Content,
		Timestamp: s.now().UnixMilli(),
	}

	if draft.ID == "" {
		draft.ID = s.newID()
		if draft.Title == "" {
			draft.Title = fmt.Sprintf("Draft #%d", len(drafts)+1)
		}
	} else if draft.Title == "" {
		draft.Title = "Draft #" + lastN(draft.ID, 4)
	}

	drafts, updated := upsertDraft(drafts, draft)
	action := "create"
	if updated {
		action = "update"
	}
	if err := s.persist(drafts, action); err != nil {
		return nil, err
	}

	s.logger.Info("draft saved", map[string]interface{}{
		"id":      draft.ID,
		"updated": updated,
		"count":   len(drafts),
	})
	return &models.SaveDraftResult{Draft: draft, Updated: updated}, nil
}

func lastN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
