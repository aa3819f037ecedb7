// internal/services/draft_import.go
package services

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/styling"
)

// legacyDraft 是浏览器版本导出的草稿；id 可能是数字，内容是编辑器的 HTML
type legacyDraft struct {
	ID        json.RawMessage `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Timestamp float64         `json:"timestamp"`
}

func (d legacyDraft) id() string {
	raw := bytes.TrimSpace(d.ID)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	// 数字 id 原样保留
	if _, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return string(raw)
	}
	return ""
}

// ImportLegacy 导入浏览器版本的草稿数组，HTML 内容转换为样式化的纯文本后逐条 upsert。
// 顺序保持不变；内容为空的条目跳过。
func (s *DraftService) ImportLegacy(data []byte) (*models.ImportResult, error) {
	var legacy []legacyDraft
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, apperrors.NewValidationError("导入文件不是草稿数组", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := s.load()
	result := &models.ImportResult{IDs: []string{}}

	// 倒序插入，保持原列表最新在前的顺序
	for i := len(legacy) - 1; i >= 0; i-- {
		item := legacy[i]

		content, err := HTMLToStyledText(item.Content)
		if err != nil || strings.TrimSpace(content) == "" {
			result.Skipped++
			continue
		}

		draft := models.Draft{
			ID:        item.id(),
			Title:     strings.TrimSpace(item.Title),
			Content:   content,
			Timestamp: int64(item.Timestamp),
		}
		if draft.ID == "" {
			draft.ID = s.newID()
		}
		if draft.Title == "" {
			draft.Title = "Draft #" + lastN(draft.ID, 4)
		}
		if draft.Timestamp <= 0 {
			draft.Timestamp = s.now().UnixMilli()
		}

		drafts, _ = upsertDraft(drafts, draft)
		result.Imported++
		result.IDs = append([]string{draft.ID}, result.IDs...)
	}

	if result.Imported > 0 {
		if err := s.persist(drafts, "import"); err != nil {
			return nil, err
		}
	}

	s.logger.Info("legacy drafts imported", map[string]interface{}{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	})
	return result, nil
}

// HTMLToStyledText 把编辑器 HTML 转成样式化文本：
// <b>/<strong> 粗体，<i>/<em> 斜体，<u> 下划线，<code> 等宽，<br> 和块级元素换行。
func HTMLToStyledText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	walkHTML(doc.Find("body"), styling.Style{}, &b)
	return strings.TrimSpace(b.String()), nil
}

func walkHTML(sel *goquery.Selection, style styling.Style, b *strings.Builder) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		next := style
		switch goquery.NodeName(node) {
		case "#text":
			text := strings.ReplaceAll(node.Text(), "\u00a0", " ")
			b.WriteString(styling.Apply(text, style))
			return
		case "br":
			b.WriteByte('\n')
			return
		case "script", "style", "#comment":
			return
		case "b", "strong":
			next.Alphabet = styling.AlphabetBoldSerif
		case "code", "tt", "kbd", "pre":
			next.Alphabet = styling.AlphabetMonospace
		case "i", "em":
			next.Italic = true
		case "u", "ins":
			next.Underline = true
		case "div", "p", "li", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
		}
		walkHTML(node, next, b)
	})
}
