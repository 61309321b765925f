package service

import (
	"strings"
	"testing"
)

func TestParseMentorReplyAllSections(t *testing.T) {
	content := "[评价] 本周完成率稳步上升，连续打卡没有中断。\n" +
		"[建议] 把阅读移到晚间时段，避免和深度工作冲突。\n" +
		"[挑战] 连续三天在 7 点前完成晨间运动。"

	reply := ParseMentorReply(content)

	if !strings.Contains(reply.Evaluation, "完成率稳步上升") {
		t.Fatalf("unexpected evaluation: %q", reply.Evaluation)
	}
	if !strings.Contains(reply.Advice, "阅读移到晚间") {
		t.Fatalf("unexpected advice: %q", reply.Advice)
	}
	if !strings.Contains(reply.Challenge, "连续三天") {
		t.Fatalf("unexpected challenge: %q", reply.Challenge)
	}
	if reply.Raw != content {
		t.Fatal("expected raw content to be preserved")
	}
}

func TestParseMentorReplyMultilineSections(t *testing.T) {
	content := "[评价]\n第一行。\n第二行。\n[建议]\n只有一条建议。"

	reply := ParseMentorReply(content)

	if reply.Evaluation != "第一行。\n第二行。" {
		t.Fatalf("unexpected evaluation: %q", reply.Evaluation)
	}
	if reply.Advice != "只有一条建议。" {
		t.Fatalf("unexpected advice: %q", reply.Advice)
	}
	if reply.Challenge != "" {
		t.Fatalf("expected empty challenge, got %q", reply.Challenge)
	}
}

func TestParseMentorReplyMissingSections(t *testing.T) {
	reply := ParseMentorReply("[挑战] 本周每天散步十分钟。")

	if reply.Evaluation != "" || reply.Advice != "" {
		t.Fatalf("expected empty sections, got %+v", reply)
	}
	if reply.Challenge != "本周每天散步十分钟。" {
		t.Fatalf("unexpected challenge: %q", reply.Challenge)
	}
}

func TestParseMentorReplyLeadingProseFallsToEvaluation(t *testing.T) {
	content := "总体来说这周不错。\n[建议] 继续保持。"

	reply := ParseMentorReply(content)

	if reply.Evaluation != "总体来说这周不错。" {
		t.Fatalf("unexpected evaluation: %q", reply.Evaluation)
	}
	if reply.Advice != "继续保持。" {
		t.Fatalf("unexpected advice: %q", reply.Advice)
	}
}

func TestParseMentorReplyUnknownMarkerTreatedAsText(t *testing.T) {
	content := "[评价] 不错。\n[其他] 这行属于评价正文。"

	reply := ParseMentorReply(content)

	if !strings.Contains(reply.Evaluation, "[其他]") {
		t.Fatalf("expected unknown marker kept as text, got %q", reply.Evaluation)
	}
}

func TestParseMentorReplyEmptyInput(t *testing.T) {
	reply := ParseMentorReply("")

	if reply.Evaluation != "" || reply.Advice != "" || reply.Challenge != "" {
		t.Fatalf("expected all sections empty, got %+v", reply)
	}
}
