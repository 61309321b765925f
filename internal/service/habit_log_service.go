package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/mentorlog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrHabitLogNotFound 在指定日期没有打卡表时返回
var ErrHabitLogNotFound = errors.New("habit log not found")

// maxStreakScanDays 限制连胜回溯的最大天数，防止全表扫描
const maxStreakScanDays = 366

// HabitLogService 负责每日打卡表及其条目的维护
// 每次条目完成状态变更都会在同一事务内刷新用户的冗余连胜计数
type HabitLogService struct {
	db *gorm.DB
}

// NewHabitLogService 构造 HabitLogService
func NewHabitLogService(gdb *gorm.DB) *HabitLogService {
	return &HabitLogService{db: gdb}
}

// EnsureDailyLog 幂等创建用户当天的打卡表，并为每个已配置习惯补齐条目
// 重复调用只会补齐缺失条目，不会重建已有数据
func (s *HabitLogService) EnsureDailyLog(userID uint, date time.Time) (*db.HabitLog, error) {
	logDate := normalizeToDate(date)

	var logRow db.HabitLog
	err := s.db.Transaction(func(tx *gorm.DB) error {
		created, err := ensureDailyLogTx(tx, userID, logDate)
		if err != nil {
			return err
		}
		logRow = *created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.Preload("Entries").First(&logRow, logRow.ID).Error; err != nil {
		return nil, fmt.Errorf("reload habit log: %w", err)
	}

	return &logRow, nil
}

// SetCompletion 更新某天某习惯的完成状态，并在同一事务内刷新连胜
func (s *HabitLogService) SetCompletion(userID uint, date time.Time, habitID uint, completed bool) (*db.HabitLogEntry, error) {
	return s.setEntryFlag(userID, date, habitID, "completed", completed, true)
}

// SetRelapse 更新某天某习惯的破戒状态
// 破戒与完成相互独立，不影响连胜的判定
func (s *HabitLogService) SetRelapse(userID uint, date time.Time, habitID uint, relapsed bool) (*db.HabitLogEntry, error) {
	return s.setEntryFlag(userID, date, habitID, "relapsed", relapsed, false)
}

// LogsBetween 返回区间内的打卡表及全部条目，按日期升序
func (s *HabitLogService) LogsBetween(userID uint, start, end time.Time) ([]db.HabitLog, error) {
	var logs []db.HabitLog
	if err := s.db.Preload("Entries").
		Where("user_id = ?", userID).
		Where("log_date BETWEEN ? AND ?", normalizeToDate(start), normalizeToDate(end)).
		Order("log_date ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	return logs, nil
}

// GetDailyLog 返回指定日期的打卡表，不存在时返回 ErrHabitLogNotFound
func (s *HabitLogService) GetDailyLog(userID uint, date time.Time) (*db.HabitLog, error) {
	var logRow db.HabitLog
	if err := s.db.Preload("Entries").
		Where("user_id = ? AND log_date = ?", userID, normalizeToDate(date)).
		First(&logRow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitLogNotFound
		}
		return nil, fmt.Errorf("get habit log: %w", err)
	}
	return &logRow, nil
}

func (s *HabitLogService) setEntryFlag(userID uint, date time.Time, habitID uint, column string, value bool, refreshStreak bool) (*db.HabitLogEntry, error) {
	logDate := normalizeToDate(date)

	var entry db.HabitLogEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		logRow, err := ensureDailyLogTx(tx, userID, logDate)
		if err != nil {
			return err
		}

		if err := ensureLogEntryTx(tx, logRow.ID, habitID); err != nil {
			return err
		}

		if err := tx.Model(&db.HabitLogEntry{}).
			Where("habit_log_id = ? AND habit_id = ?", logRow.ID, habitID).
			Update(column, value).Error; err != nil {
			return fmt.Errorf("update log entry: %w", err)
		}

		if err := tx.Where("habit_log_id = ? AND habit_id = ?", logRow.ID, habitID).
			First(&entry).Error; err != nil {
			return fmt.Errorf("reload log entry: %w", err)
		}

		if refreshStreak {
			return refreshCurrentStreak(tx, userID, logDate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// ensureDailyLogTx 在事务内幂等创建打卡表并补齐条目
func ensureDailyLogTx(tx *gorm.DB, userID uint, logDate time.Time) (*db.HabitLog, error) {
	logRow := db.HabitLog{UserID: userID, LogDate: logDate}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "log_date"}},
		DoNothing: true,
	}).Create(&logRow).Error; err != nil {
		return nil, fmt.Errorf("upsert habit log: %w", err)
	}

	if err := tx.Where("user_id = ? AND log_date = ?", userID, logDate).
		First(&logRow).Error; err != nil {
		return nil, fmt.Errorf("reload habit log: %w", err)
	}

	var habitIDs []uint
	if err := tx.Model(&db.Habit{}).Pluck("id", &habitIDs).Error; err != nil {
		return nil, fmt.Errorf("list habit ids: %w", err)
	}

	for _, habitID := range habitIDs {
		if err := ensureLogEntryTx(tx, logRow.ID, habitID); err != nil {
			return nil, err
		}
	}

	return &logRow, nil
}

// ensureLogEntryTx 幂等创建单个习惯条目，已存在时保持原状
func ensureLogEntryTx(tx *gorm.DB, logID, habitID uint) error {
	entry := db.HabitLogEntry{HabitLogID: logID, HabitID: habitID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_log_id"}, {Name: "habit_id"}},
		DoNothing: true,
	}).Create(&entry).Error; err != nil {
		return fmt.Errorf("upsert log entry: %w", err)
	}
	return nil
}

// refreshCurrentStreak 向前回溯，统计连续"至少完成一项"的天数并写回用户表
// 回溯锚点取用户最新打卡日与本次变更日期中较晚者，补记或修改历史日期
// 不会把计数覆盖成过去某天的快照；首个不合格的天即终止
// 该冗余值是统计读取路径的唯一连胜来源
func refreshCurrentStreak(tx *gorm.DB, userID uint, asOf time.Time) error {
	anchor := asOf

	var latest db.HabitLog
	err := tx.Where("user_id = ?", userID).Order("log_date DESC").First(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("find latest log: %w", err)
	}
	if err == nil {
		if latestDate := normalizeToDate(latest.LogDate); latestDate.After(anchor) {
			anchor = latestDate
		}
	}

	var logs []db.HabitLog
	if err := tx.Preload("Entries", "completed = ?", true).
		Where("user_id = ? AND log_date <= ?", userID, anchor).
		Order("log_date DESC").
		Limit(maxStreakScanDays).
		Find(&logs).Error; err != nil {
		return fmt.Errorf("list logs for streak: %w", err)
	}

	streak := 0
	expected := anchor
	for _, logRow := range logs {
		if !logRow.LogDate.Equal(expected) {
			break
		}
		if len(logRow.Entries) == 0 {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}

	if err := tx.Model(&db.User{}).Where("id = ?", userID).
		Update("current_streak", streak).Error; err != nil {
		return fmt.Errorf("update current streak: %w", err)
	}

	return nil
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
