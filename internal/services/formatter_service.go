// internal/services/formatter_service.go
package services

import (
	"encoding/json"
	"strings"
	"sync"
	"unicode/utf8"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/styling"
	"github.com/Corphon/Ravlo/internal/utils"
)

// FormatterService 把 (buffer, selection, op) 映射为 (newBuffer, newSelectionEnd)，
// 并负责生成器到格式化器的一次性内容交接
type FormatterService struct {
	store   storage.BlobStore
	metrics *utils.AppMetrics
	logger  *utils.Logger

	// mu 保证预载内容的读取和删除是一步
	mu sync.Mutex
}

// NewFormatterService 创建格式化服务
func NewFormatterService(store storage.BlobStore, metrics *utils.AppMetrics, logger *utils.Logger) *FormatterService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewAppMetrics(nil, logger)
	}
	return &FormatterService{store: store, metrics: metrics, logger: logger}
}

// Format 对选区（或整个缓冲区）应用一个操作。选区两端先扩展到字素簇边界，
// 所以返回的 Start 可能小于请求的 Start，变换范围也可能比请求的更宽；
// 选区已在边界上时结果与 buffer[:start] + op(buffer[start:end]) + buffer[end:] 一致。
func (s *FormatterService) Format(req models.FormatRequest) (*models.FormatResponse, error) {
	op, err := styling.ParseOperation(req.Op)
	if err != nil {
		return nil, err
	}

	sel := styling.Selection{Start: req.Start, End: req.End}
	if req.Whole {
		sel = styling.Whole(req.Text)
	}
	if err := sel.Validate(utf8.RuneCountInString(req.Text)); err != nil {
		return nil, err
	}
	sel = styling.SnapToGraphemes(req.Text, sel)

	text, end, err := op.ApplyToSelection(req.Text, sel)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordFormat(string(op), sel.Len())
	return &models.FormatResponse{
		Text:         text,
		Start:        sel.Start,
		SelectionEnd: end,
		Stats:        Stats(text),
	}, nil
}

// Decode 去除全部样式
func (s *FormatterService) Decode(text string) string {
	return styling.Decode(text)
}

// Stats 统计文本长度
func Stats(text string) models.TextStats {
	return models.TextStats{
		CodePoints: utf8.RuneCountInString(text),
		Bytes:      len(text),
		Visible:    styling.VisibleLength(text),
		Words:      len(strings.Fields(styling.Decode(text))),
	}
}

// SetPreload 保存交给格式化器的内容，覆盖之前未取走的内容
func (s *FormatterService) SetPreload(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.NewValidationError("preload content is empty", nil)
	}
	data, err := json.Marshal(text)
	if err != nil {
		return apperrors.NewProcessingError("序列化预载内容失败", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Put(models.PreloadKey, data); err != nil {
		return apperrors.NewStorageError("保存预载内容失败", err)
	}
	return nil
}

// ConsumePreload 取走预载内容，只能取一次；没有内容时 ok 为 false
func (s *FormatterService) ConsumePreload() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.store.Get(models.PreloadKey)
	if err != nil || !ok {
		return "", false, nil
	}
	if err := s.store.Delete(models.PreloadKey); err != nil {
		return "", false, apperrors.NewStorageError("清除预载内容失败", err)
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		s.logger.Warn("preload blob is corrupt, discarding", map[string]interface{}{"error": err.Error()})
		return "", false, nil
	}
	return text, true, nil
}
