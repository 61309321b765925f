package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/config"
	"github.com/mentorlog/internal/db"
	"github.com/mentorlog/internal/router"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 可选地创建种子用户
	if err := db.EnsureUser(cfg.SeedUserName, cfg.SeedUserPassword); err != nil {
		log.Fatalf("failed to ensure seed user: %v", err)
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(cfg.SessionSecret, cfg.UploadDir, cfg.UploadURLPath, cfg.SessionCookieSecure)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
