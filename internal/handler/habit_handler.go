package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/db"
	"github.com/mentorlog/internal/service"
)

type habitPayload struct {
	Name            string `json:"name"`
	CategoryName    string `json:"category_name"`
	Icon            string `json:"icon"`
	SortIndex       *int   `json:"sort_index"`
	Relapsable      bool   `json:"relapsable"`
	TimeBlock       string `json:"time_block"`
	DurationMinutes int    `json:"duration_minutes"`
	SuccessCriteria string `json:"success_criteria"`
}

// ListHabits 返回习惯列表 JSON
func (a *API) ListHabits(c *gin.Context) {
	filter := service.HabitFilter{
		TimeBlock: c.Query("time_block"),
		Category:  c.Query("category"),
		Search:    c.Query("search"),
	}

	habits, err := a.habits.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}

	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// GetHabit 返回单个习惯详情
func (a *API) GetHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	habit, err := a.habits.Get(id)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	habit, err := a.habits.Create(habitInputFromPayload(payload))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	habit, err := a.habits.Update(id, habitInputFromPayload(payload))
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 删除习惯
func (a *API) DeleteHabit(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	if err := a.habits.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除习惯失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ReorderHabits 按给定顺序重排习惯
func (a *API) ReorderHabits(c *gin.Context) {
	var payload struct {
		IDs []uint `json:"ids"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if err := a.habits.Reorder(payload.IDs); err != nil {
		respondError(c, http.StatusInternalServerError, "调整顺序失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reordered": true})
}

// ListHabitCategories 返回全部习惯分类
func (a *API) ListHabitCategories(c *gin.Context) {
	categories, err := a.habits.ListCategories()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取分类失败")
		return
	}

	items := make([]gin.H, 0, len(categories))
	for _, category := range categories {
		items = append(items, gin.H{
			"id":          category.ID,
			"name":        category.Name,
			"description": category.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{"categories": items})
}

// GetTimeBlockSummary 按时段返回习惯分组及预计时长
func (a *API) GetTimeBlockSummary(c *gin.Context) {
	groups, err := a.habits.TimeBlockSummary()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取时段汇总失败")
		return
	}

	items := make([]gin.H, 0, len(groups))
	for _, group := range groups {
		habits := make([]gin.H, 0, len(group.Habits))
		for _, habit := range group.Habits {
			habits = append(habits, habitToPayload(habit))
		}
		items = append(items, gin.H{
			"time_block":    group.TimeBlock,
			"habits":        habits,
			"total_minutes": group.TotalMinutes,
		})
	}

	c.JSON(http.StatusOK, gin.H{"blocks": items})
}

func habitInputFromPayload(payload habitPayload) service.HabitInput {
	return service.HabitInput{
		Name:            payload.Name,
		CategoryName:    payload.CategoryName,
		Icon:            payload.Icon,
		SortIndex:       payload.SortIndex,
		Relapsable:      payload.Relapsable,
		TimeBlock:       payload.TimeBlock,
		DurationMinutes: payload.DurationMinutes,
		SuccessCriteria: payload.SuccessCriteria,
	}
}

func habitToPayload(habit db.Habit) gin.H {
	return gin.H{
		"id":               habit.ID,
		"name":             habit.Name,
		"category_name":    habit.Category.Name,
		"icon":             habit.Icon,
		"sort_index":       habit.SortIndex,
		"relapsable":       habit.Relapsable,
		"time_block":       habit.TimeBlock,
		"duration_minutes": habit.DurationMinutes,
		"success_criteria": habit.SuccessCriteria,
	}
}

func handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrHabitInvalidInput):
		respondError(c, http.StatusBadRequest, "习惯配置无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
