package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/mentorlog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUsageLimitExceeded 在当日配额已用尽时返回
var ErrUsageLimitExceeded = errors.New("daily usage limit exceeded")

// UsageKindMentorChat 表示导师对话配额
const UsageKindMentorChat = "mentor_chat"

// UsageService 维护按 (用户, 日, 类型) 分桶的使用计数
// 自增依赖数据库的原子 upsert，多个并发请求不会互相覆盖
type UsageService struct {
	db *gorm.DB
}

// NewUsageService 构造 UsageService
func NewUsageService(gdb *gorm.DB) *UsageService {
	return &UsageService{db: gdb}
}

// Increment 将当日计数原子加一并返回新值
// limit > 0 时，若自增后的值超过上限则返回 ErrUsageLimitExceeded（计数仍会保留）
func (s *UsageService) Increment(userID uint, kind string, now time.Time, limit int) (int, error) {
	day := normalizeToDate(now)

	record := db.UsageCounter{UserID: userID, Day: day, Kind: kind, Count: 1}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}, {Name: "kind"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("count + 1"),
			"updated_at": now,
		}),
	}).Create(&record).Error; err != nil {
		return 0, fmt.Errorf("increment usage counter: %w", err)
	}

	count, err := s.CountFor(userID, kind, day)
	if err != nil {
		return 0, err
	}

	if limit > 0 && count > limit {
		return count, ErrUsageLimitExceeded
	}

	return count, nil
}

// Refund 回退一次当日计数，用于已扣减但未成功提供服务的场景
// 计数不会降到 0 以下
func (s *UsageService) Refund(userID uint, kind string, now time.Time) error {
	if err := s.db.Model(&db.UsageCounter{}).
		Where("user_id = ? AND day = ? AND kind = ? AND count > 0", userID, normalizeToDate(now), kind).
		Update("count", gorm.Expr("count - 1")).Error; err != nil {
		return fmt.Errorf("refund usage counter: %w", err)
	}
	return nil
}

// CountFor 读取某日的使用次数，无记录时返回 0
func (s *UsageService) CountFor(userID uint, kind string, day time.Time) (int, error) {
	var record db.UsageCounter
	err := s.db.Where("user_id = ? AND day = ? AND kind = ?", userID, normalizeToDate(day), kind).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load usage counter: %w", err)
	}
	return record.Count, nil
}

// PurgeBefore 清理指定日期之前的计数行，实现按天过期
func (s *UsageService) PurgeBefore(day time.Time) (int64, error) {
	result := s.db.Unscoped().Where("day < ?", normalizeToDate(day)).Delete(&db.UsageCounter{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge usage counters: %w", result.Error)
	}
	return result.RowsAffected, nil
}
