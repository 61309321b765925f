package handler

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/db"
	"golang.org/x/crypto/bcrypt"
)

const sessionUserIDKey = "user_id"

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Register 创建新用户并建立会话
func (a *API) Register(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	username := strings.TrimSpace(payload.Username)
	if username == "" || strings.TrimSpace(payload.Password) == "" {
		respondError(c, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	var count int64
	if err := a.db.Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}
	if count > 0 {
		respondError(c, http.StatusConflict, "用户名已被占用")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	user := db.User{
		Username: username,
		Password: string(hashed),
		Email:    strings.TrimSpace(payload.Email),
	}
	if err := a.db.Create(&user).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "注册失败")
		return
	}

	if !saveSessionUser(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// Login 校验凭证并建立会话
func (a *API) Login(c *gin.Context) {
	var payload credentialsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	var user db.User
	if err := a.db.Where("username = ?", strings.TrimSpace(payload.Username)).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	if !saveSessionUser(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// AuthRequired 要求请求携带已登录会话，未登录时返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get(sessionUserIDKey) == nil {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentUserID 从会话中取出登录用户 ID
func currentUserID(c *gin.Context) (uint, bool) {
	session := sessions.Default(c)
	value := session.Get(sessionUserIDKey)
	if value == nil {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func saveSessionUser(c *gin.Context, userID uint) bool {
	session := sessions.Default(c)
	session.Set(sessionUserIDKey, userID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return false
	}
	return true
}
