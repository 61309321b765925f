package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/db"
	"github.com/mentorlog/internal/handler"
)

// sessionMaxAgeSeconds 为会话 Cookie 的有效期（7 天）
const sessionMaxAgeSeconds = 86400 * 7

// SetupRouter 基于全局数据库连接构造 Gin 引擎和路由
func SetupRouter(sessionSecret, uploadDir, uploadURLPath string, secureCookies bool) *gin.Engine {
	api := handler.NewAPI(db.DB, uploadDir, uploadURLPath)
	return SetupRouterWith(api, sessionSecret, uploadDir, uploadURLPath, secureCookies)
}

// SetupRouterWith 使用外部构造的 handler 集合装配路由，便于测试注入
// secureCookies 控制会话 Cookie 的 Secure 标记，纯 HTTP 部署必须为 false，
// 否则浏览器不会回传会话 Cookie
func SetupRouterWith(a *handler.API, sessionSecret, uploadDir, uploadURLPath string, secureCookies bool) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAgeSeconds,
		HttpOnly: true,
		Secure:   secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("mentorlog_session", store))

	// 上传文件静态服务
	if uploadDir != "" && uploadURLPath != "" {
		r.Static(uploadURLPath, uploadDir)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/auth/register", a.Register)
		apiGroup.POST("/auth/login", a.Login)
		apiGroup.POST("/auth/logout", a.Logout)

		// 需要登录的路由
		auth := apiGroup.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/stats/weekly", a.GetWeeklyStats)
			auth.GET("/stats/top-habits", a.GetTopHabits)

			auth.GET("/habits", a.ListHabits)
			auth.POST("/habits", a.CreateHabit)
			auth.GET("/habits/:id", a.GetHabit)
			auth.PUT("/habits/:id", a.UpdateHabit)
			auth.DELETE("/habits/:id", a.DeleteHabit)
			auth.POST("/habits/reorder", a.ReorderHabits)
			auth.GET("/habit-categories", a.ListHabitCategories)
			auth.GET("/time-blocks", a.GetTimeBlockSummary)

			auth.POST("/logs/today", a.EnsureTodayLog)
			auth.GET("/logs", a.ListLogs)
			auth.GET("/logs/:date", a.GetDailyLog)
			auth.PUT("/logs/:date/entries/:habitId", a.SetEntryFlags)

			auth.GET("/mentor/personas", a.ListMentorPersonas)
			auth.POST("/mentor/chat", a.MentorChat)

			auth.GET("/profile", a.GetProfile)
			auth.PUT("/profile", a.UpdateProfile)
			auth.POST("/profile/avatar", a.UploadAvatar)

			auth.GET("/settings", a.GetSystemSettings)
			auth.PUT("/settings", a.UpdateSystemSettings)
			auth.POST("/settings/ai-test", a.TestAIConnection)
		}
	}

	return r
}
