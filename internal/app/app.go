package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"quizhub_backend/internal/config"
	"quizhub_backend/internal/controller"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/service"
	"quizhub_backend/internal/util"
	"quizhub_backend/pkg/configwatcher"
	"quizhub_backend/pkg/database"
	"quizhub_backend/pkg/events"
	"quizhub_backend/pkg/logger"
	"quizhub_backend/pkg/monitoring"
	"quizhub_backend/pkg/security"
	"quizhub_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigFile 热加载监听的配置文件，main 按 -config 覆盖
var ConfigFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Mongo           *mongo.Client
	services        *services
	publisher       events.Publisher
	tracer          *sdktrace.TracerProvider
	scheduler       *cron.Cron
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	quizzes  repository.QuizStore
	attempts repository.AttemptStore
}

type services struct {
	auth    *service.AuthService
	admin   *service.AdminService
	storage *service.StorageService
	quiz    *service.QuizService
	attempt *service.AttemptService
}

type controllers struct {
	auth    *controller.AuthController
	admin   *controller.AdminController
	quiz    *controller.QuizController
	attempt *controller.AttemptController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) reloadConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

// initRepositories 测验与尝试可切换到 MongoDB，用户始终在关系库
func (a *App) initRepositories(db *gorm.DB, mongoDB *mongo.Database) *repositories {
	repos := &repositories{user: repository.NewUserRepository(db)}
	if mongoDB != nil {
		repos.quizzes = repository.NewMongoQuizStore(mongoDB)
		repos.attempts = repository.NewMongoAttemptStore(mongoDB)
		return repos
	}
	repos.quizzes = repository.NewGormQuizStore(db)
	repos.attempts = repository.NewGormAttemptStore(db)
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	mailer := service.NewMailer(cfg.Mail)
	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, service.NewRedisOTPStore(rdb), service.NewRedisSessionStore(rdb), mailer, cfg, nil)
	s.admin = service.NewAdminService(repos.user, mailer, nil)
	s.attempt = service.NewAttemptService(repos.quizzes, repos.attempts, nil, a.publisher)
	s.quiz = service.NewQuizService(repos.quizzes, repos.attempts, repos.user, s.storage, nil)

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		admin:   controller.NewAdminController(s.admin),
		quiz:    controller.NewQuizController(s.quiz),
		attempt: controller.NewAttemptController(s.attempt),
		health:  controller.NewHealthController(a.DB, a.Redis, a.Mongo),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.AMQP.Enabled {
		return events.LogPublisher{}
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		// 事件为尽力而为，连接失败不阻止启动
		logger.Log.Error("Failed to connect to AMQP, events will only be logged", zap.Error(err))
		return events.LogPublisher{}
	}
	logger.Log.Info("AMQP publisher ready", zap.String("exchange", cfg.AMQP.Exchange))
	return publisher
}

// startBackgroundTasks 定时统计长时间未提交的尝试
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	a.scheduler = cron.New()
	_, err := a.scheduler.AddFunc(cfg.Jobs.StaleAttemptCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := s.attempt.MeasureStaleAttempts(ctx)
		if err != nil {
			logger.Log.Error("stale attempt job failed", zap.Error(err))
			return
		}
		logger.Log.Debug("stale attempt job finished", zap.Int64("inProgress", n))
	})
	if err != nil {
		logger.Log.Error("Invalid stale attempt cron spec", zap.String("spec", cfg.Jobs.StaleAttemptCron), zap.Error(err))
		return
	}
	a.scheduler.Start()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	var mongoDB *mongo.Database
	if cfg.Mongo.Enabled {
		client, mdb, err := database.InitMongo(&cfg.Mongo)
		if err != nil {
			logger.Log.Fatal("Failed to initialize mongo", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = repository.EnsureMongoIndexes(ctx, mdb)
		cancel()
		if err != nil {
			logger.Log.Fatal("Failed to create mongo indexes", zap.Error(err))
		}
		app.Mongo = client
		mongoDB = mdb
	}

	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("quizhub", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.publisher = app.initPublisher(cfg)

	repos := app.initRepositories(db, mongoDB)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetLevel(newCfg.Server.Mode)
	})

	app.startBackgroundTasks(services, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if _, err := os.Stat(ConfigFile); err == nil {
		go func() {
			if err := configwatcher.Watch(watchCtx, filepath.Clean(ConfigFile), a.reloadConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close(ctx)
	logger.Log.Info("Server exiting")
}

// Close 停止后台任务并释放连接；等待计数器更新和事件发送完成
func (a *App) Close(ctx context.Context) {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	if a.services != nil {
		a.services.attempt.Wait()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Mongo != nil {
		_ = a.Mongo.Disconnect(ctx)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *App) AdminService() *service.AdminService {
	return a.services.admin
}
