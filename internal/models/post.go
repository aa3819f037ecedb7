// internal/models/post.go
package models

// Tone 帖子语气
type Tone string

const (
	ToneProfessional Tone = "Professional"
	ToneCasual       Tone = "Casual"
	ToneMotivational Tone = "Motivational"
	ToneAnalytical   Tone = "Analytical"
)

// Tones 所有支持的语气
var Tones = []Tone{ToneProfessional, ToneCasual, ToneMotivational, ToneAnalytical}

// Valid 检查语气是否受支持
func (t Tone) Valid() bool {
	for _, v := range Tones {
		if v == t {
			return true
		}
	}
	return false
}

// GeneratePostRequest 生成帖子请求
type GeneratePostRequest struct {
	Topic        string       `json:"topic"`
	Tone         Tone         `json:"tone"`
	HookCategory HookCategory `json:"hook_category"`
	HookTemplate string       `json:"hook_template"`
	HookID       string       `json:"hook_id,omitempty"` // 未给出模板文本时按 id 查目录
	Description  string       `json:"description,omitempty"`
	UseEmojis    bool         `json:"use_emojis,omitempty"`
	AddHashtags  bool         `json:"add_hashtags,omitempty"`
	UseBullets   bool         `json:"use_bullets,omitempty"`
}

// GeneratePostResponse 两个版本的帖子
type GeneratePostResponse struct {
	Concise   string `json:"concise"`
	StoryRich string `json:"storyRich"`
}

// CommentTone 评论语气
type CommentTone string

const (
	CommentAgree     CommentTone = "Agree"
	CommentChallenge CommentTone = "Challenge"
	CommentSeekGuide CommentTone = "Seek Guidance"
	CommentEncourage CommentTone = "Encourage"
)

// CommentTones 所有评论语气
var CommentTones = []CommentTone{CommentAgree, CommentChallenge, CommentSeekGuide, CommentEncourage}

// CommentMotive 评论动机
type CommentMotive string

const (
	MotiveInsight       CommentMotive = "Insight"
	MotiveQuestion      CommentMotive = "Question"
	MotiveHumor         CommentMotive = "Humor"
	MotiveResourceShare CommentMotive = "Resource Share"
)

// CommentMotives 所有评论动机
var CommentMotives = []CommentMotive{MotiveInsight, MotiveQuestion, MotiveHumor, MotiveResourceShare}

const (
	MinCommentLength = 50
	MaxCommentLength = 300
)

// GenerateCommentRequest 生成评论请求
type GenerateCommentRequest struct {
	PostURL string        `json:"post_url"`
	Tone    CommentTone   `json:"tone"`
	Motive  CommentMotive `json:"motive"`
	Length  int           `json:"length"`
}

// GenerateCommentResponse 生成的评论
type GenerateCommentResponse struct {
	Comment string `json:"comment"`
}
