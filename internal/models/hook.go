// internal/models/hook.go
package models

// HookCategory 开头模板分类
type HookCategory string

const (
	HookCuriosity HookCategory = "curiosity"
	HookStory     HookCategory = "story"
	HookProvoke   HookCategory = "provoke"
)

// HookCategories 按展示顺序排列的分类
var HookCategories = []HookCategory{HookCuriosity, HookStory, HookProvoke}

// Valid 检查分类是否受支持
func (c HookCategory) Valid() bool {
	for _, v := range HookCategories {
		if v == c {
			return true
		}
	}
	return false
}

// HookTemplate 一条开头模板
type HookTemplate struct {
	ID              string       `json:"id"`
	Category        HookCategory `json:"category"`
	Template        string       `json:"template"`
	EngagementScore float64      `json:"engagementScore"`
	UsageCount      int          `json:"usageCount"`
}

// HookStats 各分类模板数量
type HookStats struct {
	Curiosity int `json:"curiosity"`
	Story     int `json:"story"`
	Provoke   int `json:"provoke"`
	Total     int `json:"total"`
}
