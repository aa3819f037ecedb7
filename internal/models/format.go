// internal/models/format.go
package models

// PreloadKey 生成器交给格式化器的一次性内容
const PreloadKey = "ravlo-formatter-preload"

// FormatRequest 对缓冲区或选区应用一个样式操作
// Start/End 为码点偏移；Whole 为 true 时忽略选区
type FormatRequest struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Op    string `json:"op"`
	Whole bool   `json:"whole,omitempty"`
}

// FormatResponse 格式化结果
type FormatResponse struct {
	Text         string    `json:"text"`
	Start        int       `json:"start"`
	SelectionEnd int       `json:"selection_end"`
	Stats        TextStats `json:"stats"`
}

// TextStats 文本长度统计
type TextStats struct {
	CodePoints int `json:"code_points"`
	Bytes      int `json:"bytes"`
	Visible    int `json:"visible"` // 字素簇数量
	Words      int `json:"words"`
}
