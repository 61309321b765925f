package db

import (
	"time"

	"gorm.io/gorm"
)

// HabitLog 表示某个用户某一天的打卡表
// UserID + LogDate 采用唯一索引，保证每人每天只有一张表；日期统一截断到本地零点
type HabitLog struct {
	gorm.Model
	UserID  uint      `gorm:"index;index:idx_habit_log_unique,unique"`
	LogDate time.Time `gorm:"index:idx_habit_log_unique,unique"`
	Entries []HabitLogEntry
}

// TableName 重写确保唯一索引作用到 user_id + log_date
func (HabitLog) TableName() string {
	return "habit_logs"
}

// HabitLogEntry 为打卡表下的单个习惯条目
// Completed 与 Relapsed 相互独立：破戒型习惯可以只破戒不完成，两者不可混淆
// HabitID 指向创建时存在的习惯，不强制该习惯至今仍然存在
type HabitLogEntry struct {
	gorm.Model
	HabitLogID uint `gorm:"index;index:idx_habit_log_entry_unique,unique"`
	HabitID    uint `gorm:"index;index:idx_habit_log_entry_unique,unique"`
	Completed  bool `gorm:"default:false"`
	Relapsed   bool `gorm:"default:false"`
}

// TableName 重写确保唯一索引作用到 habit_log_id + habit_id
func (HabitLogEntry) TableName() string {
	return "habit_log_entries"
}
