package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/service"
)

// settingsPayload 为系统设置的 API 表示，密钥只写不读
type settingsPayload struct {
	SiteName         string `json:"site_name"`
	AIProvider       string `json:"ai_provider"`
	OpenAIAPIKey     string `json:"openai_api_key,omitempty"`
	DeepSeekAPIKey   string `json:"deepseek_api_key,omitempty"`
	MentorPrompt     string `json:"mentor_prompt"`
	MentorDailyLimit int    `json:"mentor_daily_limit"`
	HasOpenAIKey     bool   `json:"has_openai_key"`
	HasDeepSeekKey   bool   `json:"has_deepseek_key"`
}

// GetSystemSettings 返回系统设置，API Key 以布尔掩码形式暴露
func (a *API) GetSystemSettings(c *gin.Context) {
	settings, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settingsPayload{
		SiteName:         settings.SiteName,
		AIProvider:       settings.AIProvider,
		MentorPrompt:     settings.MentorPrompt,
		MentorDailyLimit: settings.MentorDailyLimit,
		HasOpenAIKey:     settings.OpenAIAPIKey != "",
		HasDeepSeekKey:   settings.DeepSeekAPIKey != "",
	}})
}

// UpdateSystemSettings 保存系统设置
func (a *API) UpdateSystemSettings(c *gin.Context) {
	var payload settingsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	settings, err := a.system.UpdateSettings(service.SystemSettingsInput{
		SiteName:         payload.SiteName,
		AIProvider:       payload.AIProvider,
		OpenAIAPIKey:     payload.OpenAIAPIKey,
		DeepSeekAPIKey:   payload.DeepSeekAPIKey,
		MentorPrompt:     payload.MentorPrompt,
		MentorDailyLimit: payload.MentorDailyLimit,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settingsPayload{
		SiteName:         settings.SiteName,
		AIProvider:       settings.AIProvider,
		MentorPrompt:     settings.MentorPrompt,
		MentorDailyLimit: settings.MentorDailyLimit,
		HasOpenAIKey:     settings.OpenAIAPIKey != "",
		HasDeepSeekKey:   settings.DeepSeekAPIKey != "",
	}})
}

// TestAIConnection 校验给定平台与密钥能否访问模型接口
func (a *API) TestAIConnection(c *gin.Context) {
	var payload struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if err := a.system.TestAIConnection(c.Request.Context(), payload.Provider, payload.APIKey); err != nil {
		if errors.Is(err, service.ErrAIAPIKeyMissing) {
			respondError(c, http.StatusBadRequest, "请先填写 API Key")
			return
		}
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
