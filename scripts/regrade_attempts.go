// 离线重新评分脚本
//
// 按当前答案标准重新计算某个测验所有已完成尝试的分数。
// 默认只输出差异报告，加 -apply 才会写回数据库。
//
// 用法: go run scripts/regrade_attempts.go -quiz <quizId> [-apply] [-config configs/config.yaml]

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"quizhub_backend/internal/config"
	"quizhub_backend/internal/grading"
	"quizhub_backend/internal/model"
	"quizhub_backend/internal/repository"
	"quizhub_backend/pkg/database"
	"quizhub_backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

type regradeChange struct {
	AttemptID string `yaml:"attemptId"`
	UserID    string `yaml:"userId"`
	AttemptNo int    `yaml:"attemptNo"`
	OldScore  int    `yaml:"oldScore"`
	NewScore  int    `yaml:"newScore"`
}

type regradeReport struct {
	QuizID    string          `yaml:"quizId"`
	QuizName  string          `yaml:"quizName"`
	Applied   bool            `yaml:"applied"`
	Completed int             `yaml:"completedAttempts"`
	Changed   []regradeChange `yaml:"changed"`
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	quizID := flag.String("quiz", "", "测验ID")
	apply := flag.Bool("apply", false, "写回新分数")
	flag.Parse()

	if !model.IsValidID(*quizID) {
		log.Fatalf("需要有效的 -quiz 参数")
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	var (
		quizzes  repository.QuizStore   = repository.NewGormQuizStore(db)
		attempts repository.AttemptStore = repository.NewGormAttemptStore(db)
	)
	if cfg.Mongo.Enabled {
		_, mdb, err := database.InitMongo(&cfg.Mongo)
		if err != nil {
			log.Fatalf("MongoDB 连接失败: %v", err)
		}
		quizzes = repository.NewMongoQuizStore(mdb)
		attempts = repository.NewMongoAttemptStore(mdb)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	quiz, err := quizzes.FindByID(ctx, *quizID)
	if err != nil {
		log.Fatalf("读取测验失败: %v", err)
	}
	list, err := attempts.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		log.Fatalf("读取尝试失败: %v", err)
	}

	report := regradeReport{QuizID: quiz.ID, QuizName: quiz.Title, Applied: *apply}
	now := time.Now().UTC()
	for i := range list {
		a := &list[i]
		if !a.IsCompleted() {
			continue
		}
		report.Completed++

		answers := make([]grading.Answer, 0, len(a.Answers))
		for _, rec := range a.Answers {
			answers = append(answers, grading.Answer{
				QuestionID:  rec.QuestionID,
				Selected:    rec.Selected,
				TimeSpentMs: rec.TimeSpentMs,
			})
		}
		res := grading.Grade(quiz, answers)
		if res.TotalScore == a.Score {
			continue
		}
		report.Changed = append(report.Changed, regradeChange{
			AttemptID: a.ID,
			UserID:    a.UserID,
			AttemptNo: a.AttemptNo,
			OldScore:  a.Score,
			NewScore:  res.TotalScore,
		})

		if !*apply {
			continue
		}
		a.Score = res.TotalScore
		a.TimeSpentMs = res.TimeSpentMs
		a.Answers = res.Answers
		a.GradedAt = &now
		a.AutoGraded = true
		a.GradedBy = nil
		if ok, err := attempts.UpdateGrade(ctx, a); err != nil || !ok {
			log.Printf("写回尝试 %s 失败: ok=%v err=%v", a.ID, ok, err)
		}
	}

	out := yaml.NewEncoder(os.Stdout)
	out.SetIndent(2)
	if err := out.Encode(report); err != nil {
		log.Fatalf("输出报告失败: %v", err)
	}
	_ = out.Close()
}
