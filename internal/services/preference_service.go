// internal/services/preference_service.go
package services

import (
	"encoding/json"
	"fmt"
	"sync"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/utils"
)

// PreferenceService 持久化界面主题
type PreferenceService struct {
	store  storage.BlobStore
	logger *utils.Logger
	mu     sync.Mutex
}

// NewPreferenceService 创建偏好服务
func NewPreferenceService(store storage.BlobStore, logger *utils.Logger) *PreferenceService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &PreferenceService{store: store, logger: logger}
}

// Theme 返回当前主题；未保存或取值无效时为 light
func (s *PreferenceService) Theme() models.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.themeUnlocked()
}

func (s *PreferenceService) themeUnlocked() models.Theme {
	data, ok, err := s.store.Get(models.ThemeKey)
	if err != nil || !ok {
		return models.ThemeLight
	}

	var theme models.Theme
	if err := json.Unmarshal(data, &theme); err != nil || !theme.Valid() {
		// 兼容未加引号的旧值
		theme = models.Theme(data)
		if !theme.Valid() {
			return models.ThemeLight
		}
	}
	return theme
}

// SetTheme 保存主题
func (s *PreferenceService) SetTheme(theme models.Theme) error {
	if !theme.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown theme %q", theme), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setUnlocked(theme)
}

func (s *PreferenceService) setUnlocked(theme models.Theme) error {
	data, _ := json.Marshal(theme)
	if err := s.store.Put(models.ThemeKey, data); err != nil {
		return apperrors.NewStorageError("保存主题失败", err)
	}
	s.logger.Debug("theme updated", map[string]interface{}{"theme": theme})
	return nil
}

// ToggleTheme 在 light 和 dark 之间切换并返回新主题
func (s *PreferenceService) ToggleTheme() (models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.themeUnlocked().Toggle()
	if err := s.setUnlocked(next); err != nil {
		return "", err
	}
	return next, nil
}
