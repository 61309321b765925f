package handler

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/service"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// ListMentorPersonas 返回可选的导师人设
func (a *API) ListMentorPersonas(c *gin.Context) {
	personas := service.Personas()

	items := make([]gin.H, 0, len(personas))
	for _, persona := range personas {
		items = append(items, gin.H{"key": persona.Key, "name": persona.Name})
	}

	c.JSON(http.StatusOK, gin.H{"personas": items})
}

// MentorChat 执行一次导师对话，返回分段回复及其渲染后的 HTML
func (a *API) MentorChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	var payload struct {
		Persona string `json:"persona"`
		Message string `json:"message"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	result, err := a.mentors.Chat(c.Request.Context(), userID, payload.Persona, payload.Message, time.Now())
	if err != nil {
		handleMentorError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"persona": gin.H{"key": result.Persona.Key, "name": result.Persona.Name},
		"reply": gin.H{
			"evaluation": result.Reply.Evaluation,
			"advice":     result.Reply.Advice,
			"challenge":  result.Reply.Challenge,
			"raw":        result.Reply.Raw,
		},
		"reply_html": gin.H{
			"evaluation": renderMarkdown(result.Reply.Evaluation),
			"advice":     renderMarkdown(result.Reply.Advice),
			"challenge":  renderMarkdown(result.Reply.Challenge),
		},
		"usage": gin.H{
			"prompt_tokens":     result.PromptTokens,
			"completion_tokens": result.CompletionTokens,
		},
	})
}

// renderMarkdown 把模型输出渲染为净化后的 HTML 片段
func renderMarkdown(content string) string {
	if content == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return sanitizer.Sanitize(buf.String())
}

func handleMentorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMentorPersonaUnknown):
		respondError(c, http.StatusBadRequest, "未知的导师人设")
	case errors.Is(err, service.ErrMentorMessageEmpty):
		respondError(c, http.StatusBadRequest, "消息不能为空")
	case errors.Is(err, service.ErrUsageLimitExceeded):
		respondError(c, http.StatusTooManyRequests, "今日对话次数已用完")
	case errors.Is(err, service.ErrAIAPIKeyMissing):
		respondError(c, http.StatusServiceUnavailable, "尚未配置 AI 平台密钥")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "用户不存在")
	default:
		respondError(c, http.StatusBadGateway, "导师暂时无法回应")
	}
}
