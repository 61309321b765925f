package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mentorlog/internal/db"
	"gorm.io/gorm"
)

// ErrProfileInvalidInput 在资料输入不合法时返回
var ErrProfileInvalidInput = errors.New("invalid profile input")

// ProfileService 负责用户资料的读取与更新
// 存储字段与 API 字段之间使用显式的静态映射结构，不做动态字段拼装
type ProfileService struct {
	db *gorm.DB
}

// ProfileView 为 API 侧的用户资料视图
// 每个字段对应 User 表的一个列，重命名在此处一次性完成
type ProfileView struct {
	ID            uint   `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	AvatarURL     string `json:"avatar_url"`
	Tier          string `json:"tier"`
	CurrentStreak int    `json:"current_streak"`
}

// ProfileInput 定义用户可自行修改的资料字段
// 档位与连胜由系统维护，不接受外部写入
type ProfileInput struct {
	Email     string
	AvatarURL string
}

// NewProfileService 构造 ProfileService
func NewProfileService(gdb *gorm.DB) *ProfileService {
	return &ProfileService{db: gdb}
}

// GetProfile 返回用户资料视图
func (s *ProfileService) GetProfile(userID uint) (*ProfileView, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	view := profileViewFromUser(user)
	return &view, nil
}

// UpdateProfile 更新展示类字段并返回最新视图
func (s *ProfileService) UpdateProfile(userID uint, input ProfileInput) (*ProfileView, error) {
	email := strings.TrimSpace(input.Email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: malformed email", ErrProfileInvalidInput)
	}

	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	user.Email = email
	user.AvatarURL = strings.TrimSpace(input.AvatarURL)

	if err := s.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	view := profileViewFromUser(user)
	return &view, nil
}

// SetAvatarURL 仅更新头像地址，供上传流程使用
func (s *ProfileService) SetAvatarURL(userID uint, url string) error {
	if err := s.db.Model(&db.User{}).Where("id = ?", userID).
		Update("avatar_url", strings.TrimSpace(url)).Error; err != nil {
		return fmt.Errorf("set avatar url: %w", err)
	}
	return nil
}

// profileViewFromUser 完成存储模型到 API 视图的字段映射
func profileViewFromUser(user db.User) ProfileView {
	return ProfileView{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		AvatarURL:     user.AvatarURL,
		Tier:          user.Tier,
		CurrentStreak: user.CurrentStreak,
	}
}
