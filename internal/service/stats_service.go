package service

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mentorlog/internal/db"
	"gorm.io/gorm"
)

// ErrUserNotFound 在指定用户不存在时返回
var ErrUserNotFound = errors.New("user not found")

const (
	daysPerWeek         = 7
	topHabitLimit       = 3
	defaultLookbackDays = 7
)

// StatsService 负责从打卡日志计算派生统计视图
// 只读不写：周完成率、当前连胜、表现最佳习惯均为纯聚合结果
type StatsService struct {
	db *gorm.DB
}

// WeeklyStats 为本周统计快照
// CurrentStreak 直接读取用户表上的冗余计数器，不在读路径重新计算
type WeeklyStats struct {
	WeeklyCompletionRate int
	CurrentStreak        int
	TotalHabits          int
}

// TopHabit 表示回看窗口内完成次数靠前的习惯
type TopHabit struct {
	HabitName       string
	CategoryName    string
	CompletionCount int
}

// NewStatsService 构造 StatsService
func NewStatsService(gdb *gorm.DB) *StatsService {
	return &StatsService{db: gdb}
}

// WeeklyStats 计算用户本周（周一至周日）的完成率快照
// now 可注入以便测试，零值时取当前时间；缺失的天按零完成计入，而非从分母剔除
func (s *StatsService) WeeklyStats(userID uint, now time.Time) (*WeeklyStats, error) {
	if now.IsZero() {
		now = time.Now()
	}

	weekStart, weekEnd := weekRange(now)

	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var totalHabits int64
	if err := s.db.Model(&db.Habit{}).Count(&totalHabits).Error; err != nil {
		return nil, fmt.Errorf("count habits: %w", err)
	}

	logs, err := s.completedLogsBetween(userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	weeklyCompletions := 0
	for _, logRow := range logs {
		weeklyCompletions += len(logRow.Entries)
	}

	// 一周恒按 7 天计算目标数，未打卡的天视为零完成
	possibleCompletions := int(totalHabits) * daysPerWeek

	rate := 0
	if possibleCompletions > 0 {
		rate = int(math.Round(100 * float64(weeklyCompletions) / float64(possibleCompletions)))
		// 习惯在周中被删除时已有完成数可能超过目标数，比率封顶在 100
		if rate > 100 {
			rate = 100
		}
	}

	return &WeeklyStats{
		WeeklyCompletionRate: rate,
		CurrentStreak:        user.CurrentStreak,
		TotalHabits:          int(totalHabits),
	}, nil
}

// TopHabits 统计回看窗口内完成次数最多的前三个习惯
// lookbackDays 不合法时回退为 7；完成数相同时按习惯 ID 升序保证结果稳定
// 完成过的习惯不足三个时按实际数量返回，不做补齐
func (s *StatsService) TopHabits(userID uint, lookbackDays int) ([]TopHabit, error) {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}

	end := normalizeToDate(time.Now())
	start := end.AddDate(0, 0, -(lookbackDays - 1))

	logs, err := s.completedLogsBetween(userID, start, end)
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int)
	for _, logRow := range logs {
		for _, entry := range logRow.Entries {
			counts[entry.HabitID]++
		}
	}

	if len(counts) == 0 {
		return []TopHabit{}, nil
	}

	ids := make([]uint, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b uint) int {
		if diff := cmp.Compare(counts[b], counts[a]); diff != 0 {
			return diff
		}
		return cmp.Compare(a, b)
	})

	if len(ids) > topHabitLimit {
		ids = ids[:topHabitLimit]
	}

	var habits []db.Habit
	if err := s.db.Preload("Category").Where("id IN ?", ids).Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("load top habits: %w", err)
	}

	habitMap := make(map[uint]db.Habit, len(habits))
	for _, habit := range habits {
		habitMap[habit.ID] = habit
	}

	result := make([]TopHabit, 0, len(ids))
	for _, id := range ids {
		item := TopHabit{CompletionCount: counts[id]}
		if habit, ok := habitMap[id]; ok {
			item.HabitName = habit.Name
			item.CategoryName = habit.Category.Name
		}
		result = append(result, item)
	}

	return result, nil
}

// completedLogsBetween 加载区间内的打卡表，仅预载已完成的条目
// 只破戒未完成的条目在查询层即被排除
func (s *StatsService) completedLogsBetween(userID uint, start, end time.Time) ([]db.HabitLog, error) {
	var logs []db.HabitLog
	if err := s.db.Preload("Entries", "completed = ?", true).
		Where("user_id = ?", userID).
		Where("log_date BETWEEN ? AND ?", normalizeToDate(start), normalizeToDate(end)).
		Order("log_date ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	return logs, nil
}

// weekRange 返回 now 所在周的周一和周日（均截断到零点）
func weekRange(now time.Time) (time.Time, time.Time) {
	day := normalizeToDate(now)

	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	start := day.AddDate(0, 0, -weekday+1)
	end := start.AddDate(0, 0, daysPerWeek-1)
	return start, end
}
