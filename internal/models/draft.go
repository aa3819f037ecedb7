// internal/models/draft.go
package models

// DraftsKey 草稿列表在存储中的固定键
const DraftsKey = "ravlo-drafts"

// Draft 用户保存的帖子快照
type Draft struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch 毫秒
}

// SaveDraftRequest 格式化器的保存请求；EditingID 为空时新建
type SaveDraftRequest struct {
	EditingID string `json:"editing_id,omitempty"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

// SaveDraftResult 保存结果
type SaveDraftResult struct {
	Draft   Draft `json:"draft"`
	Updated bool  `json:"updated"`
}

// ImportResult 旧版草稿导入结果
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	IDs      []string `json:"ids"`
}
