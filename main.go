// @title QuizHub 后端 API
// @version 1.0
// @description QuizHub 在线测验平台的后端服务器。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"quizhub_backend/internal/app"
	"quizhub_backend/internal/config"
	"quizhub_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	app.ConfigFile = filepath.Join(*configDir, "config.yaml")

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		logger.Log.Info("数据库迁移完成，退出程序")
		application.Close(context.Background())
		return
	}

	bootstrapSuperadmin(application)

	application.Run()
}

// bootstrapSuperadmin 通过环境变量初始化超级管理员，已存在时跳过
func bootstrapSuperadmin(application *app.App) {
	email := os.Getenv("QUIZHUB_SUPERADMIN_EMAIL")
	password := os.Getenv("QUIZHUB_SUPERADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}
	name := os.Getenv("QUIZHUB_SUPERADMIN_NAME")
	if name == "" {
		name = "Super Admin"
	}

	_, err := application.AdminService().CreateAdminUser(context.Background(), name, email, password)
	if err != nil {
		logger.Log.Info("superadmin bootstrap skipped", zap.Error(err))
	}
}

