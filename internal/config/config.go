package config

import (
	"fmt"
	"os"
	"strings"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr          string
	Port                string
	DatabasePath        string
	SessionSecret       string
	SessionCookieSecure bool
	GinMode             string
	UploadDir           string
	UploadURLPath       string
	SeedUserName        string
	SeedUserPassword    string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "mentorlog.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "mentorlog-dev-secret"
	}

	// 默认按纯 HTTP 部署，Secure 标记由 TLS 终结方式决定
	sessionCookieSecure := false
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SESSION_COOKIE_SECURE"))) {
	case "1", "true", "yes":
		sessionCookieSecure = true
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	uploadDir := strings.TrimSpace(os.Getenv("UPLOAD_DIR"))
	if uploadDir == "" {
		uploadDir = "web/static/uploads"
	}

	uploadURLPath := strings.TrimSpace(os.Getenv("UPLOAD_URL_PATH"))
	if uploadURLPath == "" {
		uploadURLPath = "/static/uploads"
	}

	seedUserName := strings.TrimSpace(os.Getenv("SEED_USER_NAME"))
	seedUserPassword := strings.TrimSpace(os.Getenv("SEED_USER_PASSWORD"))

	return AppConfig{
		ListenAddr:          listenAddr,
		Port:                port,
		DatabasePath:        databasePath,
		SessionSecret:       sessionSecret,
		SessionCookieSecure: sessionCookieSecure,
		GinMode:             ginMode,
		UploadDir:           uploadDir,
		UploadURLPath:       uploadURLPath,
		SeedUserName:        seedUserName,
		SeedUserPassword:    seedUserPassword,
	}
}
