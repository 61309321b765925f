package main

import (
	"fmt"
	"log"

	"github.com/mentorlog/internal/config"
	"github.com/mentorlog/internal/db"
	"github.com/mentorlog/internal/service"
)

// 默认习惯目录生成器：分类按名称幂等创建，重复执行不会产生脏数据
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	habits := service.NewHabitService(db.DB)

	var count int64
	db.DB.Model(&db.Habit{}).Count(&count)
	if count > 0 {
		fmt.Println("习惯已存在，跳过生成")
		return
	}

	catalog := []service.HabitInput{
		{
			Name:            "冷水澡",
			CategoryName:    "身体",
			Icon:            "🚿",
			TimeBlock:       service.TimeBlockMorning,
			DurationMinutes: 5,
			SuccessCriteria: "淋浴最后 2 分钟切换冷水",
		},
		{
			Name:            "晨间运动",
			CategoryName:    "身体",
			Icon:            "🏃",
			TimeBlock:       service.TimeBlockMorning,
			DurationMinutes: 30,
			SuccessCriteria: "完成 30 分钟有氧或力量训练",
		},
		{
			Name:            "深度工作",
			CategoryName:    "专注",
			Icon:            "💻",
			TimeBlock:       service.TimeBlockMidday,
			DurationMinutes: 90,
			SuccessCriteria: "不受打扰地工作 90 分钟",
		},
		{
			Name:            "不刷短视频",
			CategoryName:    "专注",
			Icon:            "📵",
			Relapsable:      true,
			TimeBlock:       service.TimeBlockMidday,
			SuccessCriteria: "全天不打开短视频应用",
		},
		{
			Name:            "阅读",
			CategoryName:    "心智",
			Icon:            "📖",
			TimeBlock:       service.TimeBlockEvening,
			DurationMinutes: 20,
			SuccessCriteria: "睡前阅读 20 分钟",
		},
		{
			Name:            "睡前复盘",
			CategoryName:    "心智",
			Icon:            "📝",
			TimeBlock:       service.TimeBlockEvening,
			DurationMinutes: 10,
			SuccessCriteria: "写下今天的三条记录",
		},
	}

	for _, input := range catalog {
		if _, err := habits.Create(input); err != nil {
			log.Fatalf("创建习惯 %s 失败: %v", input.Name, err)
		}
	}

	fmt.Printf("默认习惯目录生成完成，共 %d 个习惯\n", len(catalog))
}
