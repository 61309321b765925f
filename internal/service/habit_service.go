package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mentorlog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitInvalidInput 当习惯配置异常时返回
	ErrHabitInvalidInput = errors.New("invalid habit input")
)

// 合法的时段取值
const (
	TimeBlockMorning = "morning"
	TimeBlockMidday  = "midday"
	TimeBlockEvening = "evening"
)

var timeBlockOrder = []string{TimeBlockMorning, TimeBlockMidday, TimeBlockEvening}

// HabitService 负责 Habit 与分类数据的增删改查
// 主要用于配置与生成流程，保持与 handler 解耦
type HabitService struct {
	db *gorm.DB
}

// HabitFilter 描述列表过滤条件
type HabitFilter struct {
	TimeBlock string
	Category  string
	Search    string
}

// HabitInput 定义创建/更新习惯时可配置字段
// CategoryName 按名称幂等关联分类，不存在时自动创建
type HabitInput struct {
	Name            string
	CategoryName    string
	Icon            string
	SortIndex       *int
	Relapsable      bool
	TimeBlock       string
	DurationMinutes int
	SuccessCriteria string
}

// TimeBlockGroup 汇总某个时段下的习惯及预计总时长
type TimeBlockGroup struct {
	TimeBlock    string
	Habits       []db.Habit
	TotalMinutes int
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回习惯集合，按排序值升序，支持基本筛选
func (s *HabitService) List(filter HabitFilter) ([]db.Habit, error) {
	query := s.db.Model(&db.Habit{}).Preload("Category")

	if filter.TimeBlock != "" {
		query = query.Where("time_block = ?", strings.ToLower(strings.TrimSpace(filter.TimeBlock)))
	}
	if filter.Category != "" {
		query = query.Joins("JOIN habit_categories ON habit_categories.id = habits.category_id").
			Where("habit_categories.name = ?", strings.TrimSpace(filter.Category))
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("habits.name LIKE ? OR habits.success_criteria LIKE ?", like, like)
	}

	var habits []db.Habit
	if err := query.Order("sort_index ASC, habits.id ASC").Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	return habits, nil
}

// Get 根据 ID 获取习惯
func (s *HabitService) Get(id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Preload("Category").First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯，分类按名称幂等 upsert
func (s *HabitService) Create(input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	var habit db.Habit

	err := s.db.Transaction(func(tx *gorm.DB) error {
		category, err := ensureCategory(tx, input.CategoryName, "")
		if err != nil {
			return err
		}

		sortIndex, err := resolveSortIndex(tx, input.SortIndex)
		if err != nil {
			return err
		}

		habit = db.Habit{
			Name:            strings.TrimSpace(input.Name),
			CategoryID:      category.ID,
			Icon:            strings.TrimSpace(input.Icon),
			SortIndex:       sortIndex,
			Relapsable:      input.Relapsable,
			TimeBlock:       normalizeTimeBlock(input.TimeBlock),
			DurationMinutes: input.DurationMinutes,
			SuccessCriteria: strings.TrimSpace(input.SuccessCriteria),
		}

		if err := tx.Create(&habit).Error; err != nil {
			return fmt.Errorf("create habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(habit.ID)
}

// Update 更新习惯的元数据与排序
func (s *HabitService) Update(id uint, input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	var existing db.Habit
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		category, err := ensureCategory(tx, input.CategoryName, "")
		if err != nil {
			return err
		}

		existing.Name = strings.TrimSpace(input.Name)
		existing.CategoryID = category.ID
		existing.Icon = strings.TrimSpace(input.Icon)
		existing.Relapsable = input.Relapsable
		existing.TimeBlock = normalizeTimeBlock(input.TimeBlock)
		existing.DurationMinutes = input.DurationMinutes
		existing.SuccessCriteria = strings.TrimSpace(input.SuccessCriteria)
		if input.SortIndex != nil {
			existing.SortIndex = *input.SortIndex
		}

		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("update habit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(existing.ID)
}

// Delete 软删除习惯，历史打卡条目仍保留对其的引用
func (s *HabitService) Delete(id uint) error {
	if err := s.db.Delete(&db.Habit{}, id).Error; err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// Reorder 按给定 ID 顺序重写排序值
func (s *HabitService) Reorder(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for index, id := range ids {
			if err := tx.Model(&db.Habit{}).Where("id = ?", id).
				Update("sort_index", index).Error; err != nil {
				return fmt.Errorf("reorder habit %d: %w", id, err)
			}
		}
		return nil
	})
}

// ListCategories 返回全部分类，按名称升序
func (s *HabitService) ListCategories() ([]db.HabitCategory, error) {
	var categories []db.HabitCategory
	if err := s.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list habit categories: %w", err)
	}
	return categories, nil
}

// EnsureCategory 按名称幂等创建分类，已存在时仅返回现有记录
func (s *HabitService) EnsureCategory(name, description string) (*db.HabitCategory, error) {
	var category *db.HabitCategory
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		category, err = ensureCategory(tx, name, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// TimeBlockSummary 按时段分组习惯并汇总预计时长，时段按一天内的先后排列
func (s *HabitService) TimeBlockSummary() ([]TimeBlockGroup, error) {
	habits, err := s.List(HabitFilter{})
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]db.Habit)
	for _, habit := range habits {
		block := normalizeTimeBlock(habit.TimeBlock)
		grouped[block] = append(grouped[block], habit)
	}

	result := make([]TimeBlockGroup, 0, len(timeBlockOrder))
	for _, block := range timeBlockOrder {
		items, ok := grouped[block]
		if !ok {
			continue
		}

		total := 0
		for _, habit := range items {
			total += habit.DurationMinutes
		}

		result = append(result, TimeBlockGroup{TimeBlock: block, Habits: items, TotalMinutes: total})
	}

	return result, nil
}

// ensureCategory 在事务内按唯一名称 upsert 分类
// 采用 ON CONFLICT DO NOTHING 后重查，避免 check-then-create 竞态
func ensureCategory(tx *gorm.DB, name, description string) (*db.HabitCategory, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrHabitInvalidInput)
	}

	record := db.HabitCategory{Name: trimmed, Description: strings.TrimSpace(description)}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("upsert habit category: %w", err)
	}

	if err := tx.Where("name = ?", trimmed).First(&record).Error; err != nil {
		return nil, fmt.Errorf("reload habit category: %w", err)
	}

	return &record, nil
}

func resolveSortIndex(tx *gorm.DB, explicit *int) (int, error) {
	if explicit != nil {
		return *explicit, nil
	}

	var maxIndex *int
	if err := tx.Model(&db.Habit{}).Select("MAX(sort_index)").Scan(&maxIndex).Error; err != nil {
		return 0, fmt.Errorf("resolve sort index: %w", err)
	}
	if maxIndex == nil {
		return 0, nil
	}
	return *maxIndex + 1, nil
}

func validateHabitInput(input HabitInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrHabitInvalidInput)
	}

	if strings.TrimSpace(input.CategoryName) == "" {
		return fmt.Errorf("%w: category name is required", ErrHabitInvalidInput)
	}

	block := strings.ToLower(strings.TrimSpace(input.TimeBlock))
	if block != "" && block != TimeBlockMorning && block != TimeBlockMidday && block != TimeBlockEvening {
		return fmt.Errorf("%w: unsupported time block %s", ErrHabitInvalidInput, input.TimeBlock)
	}

	if input.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrHabitInvalidInput)
	}

	return nil
}

func normalizeTimeBlock(block string) string {
	block = strings.ToLower(strings.TrimSpace(block))
	switch block {
	case TimeBlockMidday, TimeBlockEvening:
		return block
	default:
		return TimeBlockMorning
	}
}
