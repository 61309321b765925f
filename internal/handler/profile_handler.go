package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/service"
)

// GetProfile 返回当前用户的资料视图
func (a *API) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	profile, err := a.profiles.GetProfile(userID)
	if err != nil {
		handleProfileError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateProfile 更新当前用户的展示类资料
func (a *API) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	var payload struct {
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	profile, err := a.profiles.UpdateProfile(userID, service.ProfileInput{
		Email:     payload.Email,
		AvatarURL: payload.AvatarURL,
	})
	if err != nil {
		handleProfileError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func handleProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "用户不存在")
	case errors.Is(err, service.ErrProfileInvalidInput):
		respondError(c, http.StatusBadRequest, "资料格式不合法")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
