package db

import (
	"time"

	"gorm.io/gorm"
)

// UsageCounter 记录用户某一天对某类配额的使用次数
// UserID + Day + Kind 唯一，自增通过数据库原子 upsert 完成，避免读改写丢失更新
// 过期策略为按天清理旧行，而非逐行 TTL
type UsageCounter struct {
	gorm.Model
	UserID uint      `gorm:"index;index:idx_usage_counter_unique,unique"`
	Day    time.Time `gorm:"index:idx_usage_counter_unique,unique"`
	Kind   string    `gorm:"size:64;index:idx_usage_counter_unique,unique"`
	Count  int       `gorm:"default:0"`
}

// TableName 重写确保唯一索引作用到 user_id + day + kind
func (UsageCounter) TableName() string {
	return "usage_counters"
}
