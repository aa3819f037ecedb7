// internal/services/hook_service.go
package services

import (
	_ "embed"
	"fmt"
	"math"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed hooks.yaml
var defaultHooksYAML []byte

// hookCatalogFile 是 hooks.yaml 的结构
type hookCatalogFile struct {
	Curiosity []string `yaml:"curiosity"`
	Story     []string `yaml:"story"`
	Provoke   []string `yaml:"provoke"`
}

// 每个分类的评分与使用次数公式
type hookScoring struct {
	baseScore float64
	scoreStep float64
	baseUsage int
	usageStep int
	usageMod  int
}

var hookScorings = map[models.HookCategory]hookScoring{
	models.HookCuriosity: {4.0, 0.3, 20, 7, 50},
	models.HookStory:     {5.0, 0.4, 30, 9, 60},
	models.HookProvoke:   {4.5, 0.5, 15, 5, 40},
}

// HookService 提供开头模板目录，只读
type HookService struct {
	hooks []models.HookTemplate
	byID  map[string]models.HookTemplate
	stats models.HookStats
}

// NewHookService 从内置目录创建服务
func NewHookService() (*HookService, error) {
	return NewHookServiceFromYAML(defaultHooksYAML)
}

// NewHookServiceFromYAML 从 YAML 目录创建服务
func NewHookServiceFromYAML(data []byte) (*HookService, error) {
	var file hookCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.NewProcessingError("解析开头模板目录失败", err)
	}

	s := &HookService{byID: make(map[string]models.HookTemplate)}
	for _, group := range []struct {
		category  models.HookCategory
		templates []string
	}{
		{models.HookCuriosity, file.Curiosity},
		{models.HookStory, file.Story},
		{models.HookProvoke, file.Provoke},
	} {
		scoring := hookScorings[group.category]
		for i, template := range group.templates {
			hook := models.HookTemplate{
				ID:              fmt.Sprintf("%s-%d", group.category, i),
				Category:        group.category,
				Template:        template,
				EngagementScore: math.Round((scoring.baseScore+float64(i%5)*scoring.scoreStep)*10) / 10,
				UsageCount:      scoring.baseUsage + (i*scoring.usageStep)%scoring.usageMod,
			}
			s.hooks = append(s.hooks, hook)
			s.byID[hook.ID] = hook
		}
	}

	s.stats = models.HookStats{
		Curiosity: len(file.Curiosity),
		Story:     len(file.Story),
		Provoke:   len(file.Provoke),
		Total:     len(s.hooks),
	}
	return s, nil
}

// All 返回全部模板，按分类和序号排列
func (s *HookService) All() []models.HookTemplate {
	return append([]models.HookTemplate(nil), s.hooks...)
}

// ByCategory 返回某个分类下的模板
func (s *HookService) ByCategory(category models.HookCategory) ([]models.HookTemplate, error) {
	if !category.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown hook category %q", category), nil)
	}

	var out []models.HookTemplate
	for _, hook := range s.hooks {
		if hook.Category == category {
			out = append(out, hook)
		}
	}
	return out, nil
}

// Get 按 id 查找模板
func (s *HookService) Get(id string) (models.HookTemplate, error) {
	hook, ok := s.byID[id]
	if !ok {
		return models.HookTemplate{}, apperrors.NewNotFoundError(fmt.Sprintf("hook %q not found", id), nil)
	}
	return hook, nil
}

// Stats 返回各分类数量
func (s *HookService) Stats() models.HookStats {
	return s.stats
}
