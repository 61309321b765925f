package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/db"
	"github.com/mentorlog/internal/service"
)

// EnsureTodayLog 幂等创建当天的打卡表
func (a *API) EnsureTodayLog(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	logRow, err := a.habitLogs.EnsureDailyLog(userID, time.Now())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "创建打卡表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"log": serializeHabitLog(*logRow)})
}

// GetDailyLog 返回指定日期的打卡表
func (a *API) GetDailyLog(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	date, err := parseDateParam(c.Param("date"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return
	}

	logRow, err := a.habitLogs.GetDailyLog(userID, date)
	if err != nil {
		if errors.Is(err, service.ErrHabitLogNotFound) {
			respondError(c, http.StatusNotFound, "当天没有打卡记录")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"log": serializeHabitLog(*logRow)})
}

// ListLogs 返回日期区间内的打卡表
func (a *API) ListLogs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	start, err := parseDateParam(c.Query("start"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return
	}
	end, err := parseDateParam(c.Query("end"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return
	}
	if end.Before(start) {
		respondError(c, http.StatusBadRequest, "结束日期不能早于开始日期")
		return
	}

	logs, err := a.habitLogs.LogsBetween(userID, start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	items := make([]gin.H, 0, len(logs))
	for _, logRow := range logs {
		items = append(items, serializeHabitLog(logRow))
	}

	c.JSON(http.StatusOK, gin.H{"logs": items})
}

// SetEntryFlags 更新某天某习惯的完成/破戒状态
// completed 与 relapsed 相互独立，可分别传入
func (a *API) SetEntryFlags(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	habitID, err := parseUintParam(c, "habitId")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	date, err := parseDateParam(c.Param("date"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return
	}

	var payload struct {
		Completed *bool `json:"completed"`
		Relapsed  *bool `json:"relapsed"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	if payload.Completed == nil && payload.Relapsed == nil {
		respondError(c, http.StatusBadRequest, "缺少要更新的状态")
		return
	}

	var entry *db.HabitLogEntry
	if payload.Completed != nil {
		entry, err = a.habitLogs.SetCompletion(userID, date, habitID, *payload.Completed)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "保存打卡状态失败")
			return
		}
	}
	if payload.Relapsed != nil {
		entry, err = a.habitLogs.SetRelapse(userID, date, habitID, *payload.Relapsed)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "保存打卡状态失败")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"entry": serializeLogEntry(*entry)})
}

func serializeHabitLog(logRow db.HabitLog) gin.H {
	entries := make([]gin.H, 0, len(logRow.Entries))
	for _, entry := range logRow.Entries {
		entries = append(entries, serializeLogEntry(entry))
	}

	return gin.H{
		"id":       logRow.ID,
		"log_date": logRow.LogDate.Format(dateFormat),
		"entries":  entries,
	}
}

func serializeLogEntry(entry db.HabitLogEntry) gin.H {
	return gin.H{
		"id":        entry.ID,
		"habit_id":  entry.HabitID,
		"completed": entry.Completed,
		"relapsed":  entry.Relapsed,
	}
}
