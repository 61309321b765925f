package service

import "strings"

// 导师回复的区块标记，模型按提示词约定以方括号标签分段输出
const (
	mentorSectionEvaluation = "评价"
	mentorSectionAdvice     = "建议"
	mentorSectionChallenge  = "挑战"
)

// MentorReply 为解析后的导师回复
// 缺失的区块保持为空字符串，Raw 始终保留原始文本
type MentorReply struct {
	Evaluation string
	Advice     string
	Challenge  string
	Raw        string
}

// ParseMentorReply 按方括号标记把自由文本补全拆分为带标签的区块
// 标记行形如 "[建议] ..."，标记之前的散文归入评价区块；未知标记按正文处理
func ParseMentorReply(content string) MentorReply {
	reply := MentorReply{Raw: content}

	sections := map[string]*strings.Builder{
		mentorSectionEvaluation: {},
		mentorSectionAdvice:     {},
		mentorSectionChallenge:  {},
	}

	current := mentorSectionEvaluation
	for _, line := range strings.Split(content, "\n") {
		if label, rest, ok := splitSectionMarker(line); ok {
			if _, known := sections[label]; known {
				current = label
				line = rest
				if strings.TrimSpace(line) == "" {
					continue
				}
			}
		}

		builder := sections[current]
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(line)
	}

	reply.Evaluation = strings.TrimSpace(sections[mentorSectionEvaluation].String())
	reply.Advice = strings.TrimSpace(sections[mentorSectionAdvice].String())
	reply.Challenge = strings.TrimSpace(sections[mentorSectionChallenge].String())

	return reply
}

// splitSectionMarker 识别行首的方括号标记，返回标签与同行剩余文本
func splitSectionMarker(line string) (label, rest string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "[") {
		return "", "", false
	}

	closing := strings.Index(trimmed, "]")
	if closing <= 1 {
		return "", "", false
	}

	label = strings.TrimSpace(trimmed[1:closing])
	rest = strings.TrimSpace(trimmed[closing+1:])
	return label, rest, true
}
