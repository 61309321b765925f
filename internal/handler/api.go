package handler

import (
	"github.com/mentorlog/internal/service"
	"gorm.io/gorm"
)

// API 汇集 HTTP handler 共享的服务依赖
type API struct {
	db        *gorm.DB
	habits    *service.HabitService
	habitLogs *service.HabitLogService
	stats     *service.StatsService
	usage     *service.UsageService
	mentors   *service.MentorService
	profiles  *service.ProfileService
	system    *service.SystemSettingService
	uploadDir string
	uploadURL string
}

// NewAPI 构造 handler 集合并装配各业务服务
func NewAPI(db *gorm.DB, uploadDir, uploadURL string) *API {
	systemService := service.NewSystemSettingService(db)

	return &API{
		db:        db,
		habits:    service.NewHabitService(db),
		habitLogs: service.NewHabitLogService(db),
		stats:     service.NewStatsService(db),
		usage:     service.NewUsageService(db),
		mentors:   service.NewMentorService(db, systemService),
		profiles:  service.NewProfileService(db),
		system:    systemService,
		uploadDir: uploadDir,
		uploadURL: uploadURL,
	}
}

// DB 暴露底层数据库连接。
func (a *API) DB() *gorm.DB {
	return a.db
}

// Mentors 暴露导师服务，便于测试替换 HTTP 客户端。
func (a *API) Mentors() *service.MentorService {
	return a.mentors
}
