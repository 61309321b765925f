package service

import (
	"errors"
	"testing"
	"time"

	"github.com/mentorlog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupUsageTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.UsageCounter{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestUsageIncrementAndLimit(t *testing.T) {
	cleanup := setupUsageTestDB(t)
	defer cleanup()

	svc := NewUsageService(db.DB)
	now := time.Date(2024, 5, 8, 9, 0, 0, 0, time.Local)

	count, err := svc.Increment(1, UsageKindMentorChat, now, 2)
	if err != nil {
		t.Fatalf("first Increment returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	count, err = svc.Increment(1, UsageKindMentorChat, now, 2)
	if err != nil {
		t.Fatalf("second Increment returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	if _, err := svc.Increment(1, UsageKindMentorChat, now, 2); !errors.Is(err, ErrUsageLimitExceeded) {
		t.Fatalf("expected ErrUsageLimitExceeded, got %v", err)
	}
}

func TestUsageCountResetsByDay(t *testing.T) {
	cleanup := setupUsageTestDB(t)
	defer cleanup()

	svc := NewUsageService(db.DB)
	yesterday := time.Date(2024, 5, 7, 23, 0, 0, 0, time.Local)
	today := time.Date(2024, 5, 8, 1, 0, 0, 0, time.Local)

	if _, err := svc.Increment(1, UsageKindMentorChat, yesterday, 0); err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}

	count, err := svc.Increment(1, UsageKindMentorChat, today, 0)
	if err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}

	// 跨天后计数从零开始
	if count != 1 {
		t.Fatalf("expected fresh daily count 1, got %d", count)
	}
}

func TestUsageUnlimitedWhenNoLimit(t *testing.T) {
	cleanup := setupUsageTestDB(t)
	defer cleanup()

	svc := NewUsageService(db.DB)
	now := time.Date(2024, 5, 8, 9, 0, 0, 0, time.Local)

	for i := 0; i < 10; i++ {
		if _, err := svc.Increment(1, UsageKindMentorChat, now, 0); err != nil {
			t.Fatalf("Increment returned error: %v", err)
		}
	}

	count, err := svc.CountFor(1, UsageKindMentorChat, now)
	if err != nil {
		t.Fatalf("CountFor returned error: %v", err)
	}
	if count != 10 {
		t.Fatalf("expected count 10, got %d", count)
	}
}

func TestUsageRefund(t *testing.T) {
	cleanup := setupUsageTestDB(t)
	defer cleanup()

	svc := NewUsageService(db.DB)
	now := time.Date(2024, 5, 8, 9, 0, 0, 0, time.Local)

	svc.Increment(1, UsageKindMentorChat, now, 0)
	svc.Increment(1, UsageKindMentorChat, now, 0)

	if err := svc.Refund(1, UsageKindMentorChat, now); err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}

	count, err := svc.CountFor(1, UsageKindMentorChat, now)
	if err != nil {
		t.Fatalf("CountFor returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1 after refund, got %d", count)
	}

	// 回退不会把计数降到 0 以下
	if err := svc.Refund(1, UsageKindMentorChat, now); err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}
	if err := svc.Refund(1, UsageKindMentorChat, now); err != nil {
		t.Fatalf("Refund returned error: %v", err)
	}

	count, err = svc.CountFor(1, UsageKindMentorChat, now)
	if err != nil {
		t.Fatalf("CountFor returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}
}

func TestUsagePurgeBefore(t *testing.T) {
	cleanup := setupUsageTestDB(t)
	defer cleanup()

	svc := NewUsageService(db.DB)
	old := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	today := time.Date(2024, 5, 8, 9, 0, 0, 0, time.Local)

	svc.Increment(1, UsageKindMentorChat, old, 0)
	svc.Increment(1, UsageKindMentorChat, today, 0)

	purged, err := svc.PurgeBefore(today)
	if err != nil {
		t.Fatalf("PurgeBefore returned error: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged row, got %d", purged)
	}

	count, err := svc.CountFor(1, UsageKindMentorChat, today)
	if err != nil {
		t.Fatalf("CountFor returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected today's count to survive, got %d", count)
	}
}
