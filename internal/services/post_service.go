// internal/services/post_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/llm"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/utils"
)

// 生成参数
const (
	postTemperature = 0.7
	postMaxTokens   = 512
	postTopP        = 0.95

	fallbackConcise   = "Unable to generate concise version"
	fallbackStoryRich = "Unable to generate story-rich version"
)

// TextCompleter 是 PostService 依赖的生成接口，LLMService 实现它
type TextCompleter interface {
	CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// PostService 生成帖子和评论
type PostService struct {
	llm    TextCompleter
	hooks  *HookService
	logger *utils.Logger
}

// NewPostService 创建帖子生成服务；hooks 用于按 hook_id 查找模板，可为空
func NewPostService(completer TextCompleter, hooks *HookService, logger *utils.Logger) *PostService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &PostService{llm: completer, hooks: hooks, logger: logger}
}

// normalizePostRequest 校验必填字段，未填写语气时使用 Professional
func normalizePostRequest(req models.GeneratePostRequest) (models.GeneratePostRequest, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	req.HookTemplate = strings.TrimSpace(req.HookTemplate)
	req.Description = strings.TrimSpace(req.Description)

	if req.Topic == "" || req.HookTemplate == "" || !req.HookCategory.Valid() {
		return req, apperrors.NewValidationError("Please select a hook category, template, and enter a topic", nil)
	}

	if req.Tone == "" {
		req.Tone = models.ToneProfessional
	}
	if !req.Tone.Valid() {
		return req, apperrors.NewValidationError(fmt.Sprintf("unsupported tone %q", req.Tone), nil)
	}
	return req, nil
}

// GeneratePost 生成简洁版和故事版两个帖子
func (s *PostService) GeneratePost(ctx context.Context, req models.GeneratePostRequest) (*models.GeneratePostResponse, error) {
	if req.HookTemplate == "" && req.HookID != "" && s.hooks != nil {
		hook, err := s.hooks.Get(req.HookID)
		if err != nil {
			return nil, err
		}
		req.HookTemplate = hook.Template
		if req.HookCategory == "" {
			req.HookCategory = hook.Category
		}
	}

	req, err := normalizePostRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.llm.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      BuildPostPrompt(req),
		Temperature: postTemperature,
		MaxTokens:   postMaxTokens,
		TopP:        postTopP,
	})
	if err != nil {
		return nil, apperrors.NewExternalError("Failed to generate posts. Please try again.", err)
	}

	result := ParsePostResponse(resp.Text)
	s.logger.Info("post generated", map[string]interface{}{
		"category": req.HookCategory,
		"tone":     req.Tone,
		"concise":  utf8.RuneCountInString(result.Concise),
		"story":    utf8.RuneCountInString(result.StoryRich),
	})
	return &result, nil
}

// BuildPostPrompt 构造帖子生成提示词
func BuildPostPrompt(req models.GeneratePostRequest) string {
	pick := func(cond bool, yes, no string) string {
		if cond {
			return yes
		}
		return no
	}

	var formatting []string
	if req.UseEmojis {
		formatting = append(formatting, "- Include relevant emojis (2-4 per post)")
	} else {
		formatting = append(formatting, "- NO emojis (modern LinkedIn posts typically avoid emojis for a more professional look)")
	}
	if req.AddHashtags {
		formatting = append(formatting, "- Add 3-5 relevant hashtags at the end of each post")
	}
	if req.UseBullets {
		formatting = append(formatting, "- CRITICAL: Use ONLY '→' symbol for bullet points (never use '•' or '-')")
	} else {
		formatting = append(formatting, "- Use traditional bullet points (•) when listing items")
	}

	bullet := pick(req.UseBullets, "→", "•")
	hashtags := pick(req.AddHashtags, "- Add 3-5 relevant hashtags at the end", "")

	var b strings.Builder
	b.WriteString("You are a LinkedIn content expert. Create highly engaging, properly formatted LinkedIn posts using the following specifications:\n\n")
	fmt.Fprintf(&b, "Hook Template: \"%s\"\n", req.HookTemplate)
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	if req.Description != "" {
		fmt.Fprintf(&b, "Additional Context: %s\n", req.Description)
	}

	b.WriteString("\nFORMATTING REQUIREMENTS:\n")
	b.WriteString("- Use line breaks (\\n) to separate paragraphs\n")
	b.WriteString("- Add proper spacing between sections\n")
	b.WriteString(strings.Join(formatting, "\n") + "\n")
	b.WriteString("- Add strategic line breaks for readability\n")

	b.WriteString("\nGenerate exactly 2 versions of LinkedIn posts:\n\n")
	b.WriteString("1. CONCISE VERSION (≤150 words):\n")
	b.WriteString("- Start with the provided hook template\n")
	b.WriteString("- Keep it punchy and direct with proper line breaks\n")
	b.WriteString(pick(req.UseEmojis, "- Include 2-3 relevant emojis", "- NO emojis for modern professional look") + "\n")
	b.WriteString("- End with a clear call-to-action or question\n")
	b.WriteString("- Use 2-3 paragraphs maximum\n")
	if hashtags != "" {
		b.WriteString(hashtags + "\n")
	}

	b.WriteString("\n2. STORY-RICH VERSION (≤300 words):\n")
	b.WriteString("- Begin with the hook template\n")
	b.WriteString("- Develop with personal anecdotes or detailed examples\n")
	b.WriteString("- Include multiple line breaks for easy reading\n")
	b.WriteString(pick(req.UseEmojis, "- Use emojis strategically (3-4 emojis)", "- NO emojis for modern professional look") + "\n")
	b.WriteString("- Create 4-5 short paragraphs\n")
	b.WriteString("- End with an engaging question or call-to-action\n")
	if hashtags != "" {
		b.WriteString(hashtags + "\n")
	}

	b.WriteString("\nFORMAT EXAMPLE:\n")
	fmt.Fprintf(&b, "\"Hook line here... %s\n\n", pick(req.UseEmojis, "🚀", ""))
	b.WriteString("Main content paragraph with insights.\n\n")
	b.WriteString("Key points:\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "%s Point %d\n", bullet, i)
	}
	fmt.Fprintf(&b, "\nFinal thought with engagement question? %s\n", pick(req.UseEmojis, "💭", ""))
	if req.AddHashtags {
		b.WriteString("\n#LinkedInTips #ProfessionalGrowth #ContentCreation")
	}
	b.WriteString("\"\n")

	if req.UseBullets {
		b.WriteString("\nIMPORTANT: When creating bullet points, ALWAYS use the \"→\" symbol, never use \"•\" or \"-\".\n")
	}

	b.WriteString("\nReturn ONLY in this exact JSON format:\n")
	b.WriteString(`{"concise": "your properly formatted concise post with \n line breaks", "storyRich": "your properly formatted story-rich post with \n line breaks"}`)
	b.WriteString("\n\nMake the content sound natural, human-like, conversational, and optimized for maximum LinkedIn engagement.")
	if req.UseBullets {
		b.WriteString(" Remember to use → for all bullet points.")
	}
	return b.String()
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fencedPattern     = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
	objectPattern     = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParsePostResponse 把模型输出解析为两个版本：先按 JSON 解析，再按行归类，最后对半切分
func ParsePostResponse(raw string) models.GeneratePostResponse {
	if out, ok := parsePostJSON(raw); ok {
		return out
	}

	concise, story := classifyPostLines(raw)
	if concise == "" && story == "" {
		concise, story = bisect(raw)
	}

	if concise == "" {
		concise = fallbackConcise
	}
	if story == "" {
		story = fallbackStoryRich
	}
	return models.GeneratePostResponse{Concise: concise, StoryRich: story}
}

// parsePostJSON 第一层：提取 JSON，两个字段都必须非空
func parsePostJSON(raw string) (models.GeneratePostResponse, bool) {
	candidate := strings.TrimSpace(raw)
	if m := fencedJSONPattern.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	} else if m := fencedPattern.FindStringSubmatch(candidate); m != nil {
		candidate = m[1]
	} else if m := objectPattern.FindString(candidate); m != "" {
		candidate = m
	}

	var parsed struct {
		Concise   string `json:"concise"`
		StoryRich string `json:"storyRich"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		// 模型常在 JSON 后追加说明文字
		if err := json.Unmarshal([]byte(cleanJSONString(candidate)), &parsed); err != nil {
			return models.GeneratePostResponse{}, false
		}
	}

	out := models.GeneratePostResponse{
		Concise:   strings.TrimSpace(parsed.Concise),
		StoryRich: strings.TrimSpace(parsed.StoryRich),
	}
	return out, out.Concise != "" && out.StoryRich != ""
}

// classifyPostLines 第二层：含 "concise" 的行开始简洁版，含 "story" 的行开始故事版
func classifyPostLines(raw string) (string, string) {
	var concise, story []string
	var section *[]string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "concise"):
			section = &concise
			continue
		case strings.Contains(lower, "story"):
			section = &story
			continue
		}

		if section == nil || strings.HasPrefix(line, "{") || strings.HasPrefix(line, `"`) {
			continue
		}
		*section = append(*section, line)
	}
	return strings.Join(concise, " "), strings.Join(story, " ")
}

// bisect 第三层：按码点对半切分
func bisect(raw string) (string, string) {
	runes := []rune(raw)
	half := len(runes) / 2
	return strings.TrimSpace(string(runes[:half])), strings.TrimSpace(string(runes[half:]))
}

// GenerateComment 为一篇帖子生成评论
func (s *PostService) GenerateComment(ctx context.Context, req models.GenerateCommentRequest) (*models.GenerateCommentResponse, error) {
	req.PostURL = strings.TrimSpace(req.PostURL)
	if req.PostURL == "" {
		return nil, apperrors.NewValidationError("Please enter a post URL", nil)
	}
	if u, err := url.ParseRequestURI(req.PostURL); err != nil || u.Host == "" {
		return nil, apperrors.NewValidationError("Please enter a valid post URL", err)
	}
	if !containsValue(models.CommentTones, req.Tone) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported comment tone %q", req.Tone), nil)
	}
	if !containsValue(models.CommentMotives, req.Motive) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported comment motive %q", req.Motive), nil)
	}
	if req.Length < models.MinCommentLength || req.Length > models.MaxCommentLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("comment length must be between %d and %d", models.MinCommentLength, models.MaxCommentLength), nil)
	}

	resp, err := s.llm.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      BuildCommentPrompt(req),
		Temperature: postTemperature,
		MaxTokens:   postMaxTokens,
		TopP:        postTopP,
	})
	if err != nil {
		return nil, apperrors.NewExternalError("Failed to generate comment. Please try again.", err)
	}

	return &models.GenerateCommentResponse{Comment: strings.TrimSpace(resp.Text)}, nil
}

// BuildCommentPrompt 构造评论生成提示词
func BuildCommentPrompt(req models.GenerateCommentRequest) string {
	return fmt.Sprintf(`Generate a LinkedIn comment for a post at: %s

Comment requirements:
- Tone: %s
- Motive: %s
- Length: Approximately %d characters
- Should be engaging and add value to the conversation
- Maintain professional LinkedIn etiquette

Generate a single, well-crafted comment that follows these guidelines.`, req.PostURL, req.Tone, req.Motive, req.Length)
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
