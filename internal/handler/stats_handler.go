package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/service"
)

// GetWeeklyStats 返回当前用户本周的统计快照
func (a *API) GetWeeklyStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	stats, err := a.stats.WeeklyStats(userID, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "用户不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "计算统计信息失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"weekly_completion_rate": stats.WeeklyCompletionRate,
		"current_streak":         stats.CurrentStreak,
		"total_habits":           stats.TotalHabits,
	})
}

// GetTopHabits 返回回看窗口内完成次数靠前的习惯
func (a *API) GetTopHabits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	lookbackDays := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(c, http.StatusBadRequest, "无效的回看天数")
			return
		}
		lookbackDays = parsed
	}

	top, err := a.stats.TopHabits(userID, lookbackDays)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "计算统计信息失败")
		return
	}

	items := make([]gin.H, 0, len(top))
	for _, habit := range top {
		items = append(items, gin.H{
			"habit_name":       habit.HabitName,
			"category_name":    habit.CategoryName,
			"completion_count": habit.CompletionCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"habits": items})
}
