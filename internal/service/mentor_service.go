package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mentorlog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrMentorPersonaUnknown 在指定的导师人设不存在时返回
	ErrMentorPersonaUnknown = errors.New("unknown mentor persona")
	// ErrMentorMessageEmpty 在用户消息为空时返回
	ErrMentorMessageEmpty = errors.New("mentor message is empty")
)

const (
	defaultOpenAIMentorModel   = "gpt-4o-mini"
	defaultDeepSeekMentorModel = "deepseek-chat"
	defaultMentorMaxTokens     = 640
	defaultMentorTemperature   = 0.6
	maxMentorMessageRuneCount  = 2000

	// TierPremium 的用户不受每日对话配额限制
	TierPremium = "premium"
)

// MentorPersona 描述一个可选的导师人设
type MentorPersona struct {
	Key          string
	Name         string
	SystemPrompt string
}

// mentorPersonas 为内置人设集合，Key 稳定用于 API 传参
var mentorPersonas = []MentorPersona{
	{
		Key:  "coach",
		Name: "铁血教练",
		SystemPrompt: "你是一位直接、严格但真诚的习惯教练。基于用户的打卡数据给出毫不含糊的反馈，" +
			"不说空话，不过度安慰。",
	},
	{
		Key:  "strategist",
		Name: "理性策略师",
		SystemPrompt: "你是一位冷静的行为策略师。用数据和因果分析帮用户定位习惯执行中的薄弱环节，" +
			"给出可落地的调整方案。",
	},
	{
		Key:  "monk",
		Name: "平和禅者",
		SystemPrompt: "你是一位温和的修行者。引导用户接纳波动、回到当下，" +
			"用平实的语言帮助他们与习惯长期相处。",
	},
}

// mentorFormatInstruction 约定模型输出的分段格式，便于解析
const mentorFormatInstruction = "请严格按以下格式输出，三个区块缺一不可：\n" +
	"[评价] 对用户本周表现的评价\n[建议] 下一步的具体建议\n[挑战] 一个本周可完成的小挑战"

// MentorResult 为一次导师对话的完整结果
type MentorResult struct {
	Persona          MentorPersona
	Reply            MentorReply
	PromptTokens     int
	CompletionTokens int
}

// MentorService 提供基于人设的 AI 导师对话
// 对话前检查免费档位的每日配额，并把用户的周统计快照注入提示词
type MentorService struct {
	db     *gorm.DB
	client *aiChatClient
	stats  *StatsService
	usage  *UsageService
}

// NewMentorService 构造默认的 MentorService。
func NewMentorService(gdb *gorm.DB, settings *SystemSettingService) *MentorService {
	return &MentorService{
		db:     gdb,
		client: newAIChatClient(settings, defaultOpenAIMentorModel, defaultDeepSeekMentorModel),
		stats:  NewStatsService(gdb),
		usage:  NewUsageService(gdb),
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *MentorService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *MentorService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *MentorService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// Personas 返回全部内置人设。
func Personas() []MentorPersona {
	result := make([]MentorPersona, len(mentorPersonas))
	copy(result, mentorPersonas)
	return result
}

// personaByKey 按 Key 查找人设。
func personaByKey(key string) (MentorPersona, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(key))
	for _, persona := range mentorPersonas {
		if persona.Key == trimmed {
			return persona, true
		}
	}
	return MentorPersona{}, false
}

// Chat 执行一次导师对话：校验配额、拼装带统计快照的提示词、调用模型并解析分段回复。
// 免费档位超出每日配额时返回 ErrUsageLimitExceeded；扣减配额后上游调用失败会回退本次计数。
func (s *MentorService) Chat(ctx context.Context, userID uint, personaKey, message string, now time.Time) (MentorResult, error) {
	persona, ok := personaByKey(personaKey)
	if !ok {
		return MentorResult{}, ErrMentorPersonaUnknown
	}

	trimmedMessage := strings.TrimSpace(message)
	if trimmedMessage == "" {
		return MentorResult{}, ErrMentorMessageEmpty
	}
	trimmedMessage = truncateRunes(trimmedMessage, maxMentorMessageRuneCount)

	if now.IsZero() {
		now = time.Now()
	}

	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MentorResult{}, ErrUserNotFound
		}
		return MentorResult{}, fmt.Errorf("load user: %w", err)
	}

	settings, err := s.client.settings.GetSettings()
	if err != nil {
		return MentorResult{}, fmt.Errorf("读取系统设置失败: %w", err)
	}

	charged := false
	if user.Tier != TierPremium {
		if _, err := s.usage.Increment(userID, UsageKindMentorChat, now, settings.MentorDailyLimit); err != nil {
			return MentorResult{}, err
		}
		charged = true
	}

	// 扣减之后未能给出回复时回退配额，失败的请求不消耗当日次数
	refund := func() {
		if !charged {
			return
		}
		if err := s.usage.Refund(userID, UsageKindMentorChat, now); err != nil {
			log.Printf("[AI MENTOR] 配额回退失败: %v", err)
		}
	}

	stats, err := s.stats.WeeklyStats(userID, now)
	if err != nil {
		refund()
		return MentorResult{}, err
	}

	userPrompt := buildMentorPrompt(stats, trimmedMessage)
	logAIExchange("MENTOR", "prompt", userPrompt)

	systemPrompt := persona.SystemPrompt
	if override := strings.TrimSpace(settings.MentorPrompt); override != "" {
		systemPrompt = override
	}
	systemPrompt = systemPrompt + "\n\n" + mentorFormatInstruction

	result, err := s.client.callWithSettings(ctx, settings, aiChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    defaultMentorMaxTokens,
		Temperature:  defaultMentorTemperature,
	})
	if err != nil {
		refund()
		return MentorResult{}, err
	}

	logAIExchange("MENTOR", "response", result.Content)

	return MentorResult{
		Persona:          persona,
		Reply:            ParseMentorReply(result.Content),
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}

// buildMentorPrompt 把周统计快照与用户消息拼装为用户提示词
func buildMentorPrompt(stats *WeeklyStats, message string) string {
	var builder strings.Builder
	builder.WriteString("用户本周数据：\n")
	builder.WriteString(fmt.Sprintf("- 周完成率：%d%%\n", stats.WeeklyCompletionRate))
	builder.WriteString(fmt.Sprintf("- 当前连续打卡：%d 天\n", stats.CurrentStreak))
	builder.WriteString(fmt.Sprintf("- 已配置习惯数：%d\n\n", stats.TotalHabits))
	builder.WriteString("用户消息：\n")
	builder.WriteString(message)
	return builder.String()
}

func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit])
}
