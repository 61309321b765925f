package db

import "gorm.io/gorm"

// HabitCategory 定义习惯分类
// Name 唯一，创建时按名称幂等 upsert，避免 check-then-create 竞态
type HabitCategory struct {
	gorm.Model
	Name        string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (HabitCategory) TableName() string {
	return "habit_categories"
}

// Habit 定义了习惯模型
// TimeBlock 取 morning/midday/evening，用于按时段分组展示与时长汇总
// Relapsable 标记"破戒型"习惯：其违反以 relapse 记录，而非二值完成
// SortIndex 控制列表展示顺序；软删除保证历史日志仍可引用
type Habit struct {
	gorm.Model
	Name            string `gorm:"size:200;not null"`
	CategoryID      uint   `gorm:"index"`
	Category        HabitCategory
	Icon            string `gorm:"size:64"`
	SortIndex       int    `gorm:"default:0"`
	Relapsable      bool   `gorm:"default:false"`
	TimeBlock       string `gorm:"size:16;default:morning"`
	DurationMinutes int    `gorm:"default:0"`
	SuccessCriteria string `gorm:"type:text"`
}
