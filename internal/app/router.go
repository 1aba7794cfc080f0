package app

import (
	"quizhub_backend/docs"
	"quizhub_backend/internal/config"
	"quizhub_backend/internal/middleware"
	"quizhub_backend/internal/model"
	"quizhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg, c.auth.AuthService), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.Profile)
		authGroup.POST("/auth/logout", c.auth.Logout)
		authGroup.POST("/password/change", c.auth.ChangePassword)

		// 学生答题接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerFacultyRoutes(authGroup, c)

		// 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		auth := public.Group("/auth")
		{
			auth.POST("/otp/request", c.auth.RequestOTP)
			auth.POST("/otp/verify", c.auth.VerifyOTP)
			auth.POST("/otp/resend", c.auth.ResendOTP)
			auth.POST("/register", c.auth.Register)
			auth.POST("/login", c.auth.Login)
			auth.POST("/password/forgot", c.auth.ForgotPassword)
			auth.POST("/password/reset/:token", c.auth.ResetPassword)
		}
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/quizzes/user", middleware.RoleMiddleware(model.Student), c.quiz.ListUserQuizzes)

	attempts := rg.Group("/attempts")
	{
		attempts.POST("/start/:quizId", c.attempt.StartAttempt)
		attempts.POST("/finish/:attemptId", c.attempt.FinishAttempt)
		attempts.GET("/show-result/:quizId", c.attempt.ShowResult)
	}

	// 学生视图会隐藏答案
	rg.GET("/quizzes/:id", c.quiz.GetQuiz)
}

func (a *App) registerFacultyRoutes(rg *gin.RouterGroup, c *controllers) {
	faculty := rg.Group("")
	faculty.Use(middleware.RoleMiddleware(model.Faculty))
	{
		faculty.POST("/quizzes", c.quiz.CreateQuiz)
		faculty.GET("/quizzes/faculty", c.quiz.ListFacultyQuizzes)
		faculty.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		faculty.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
		faculty.GET("/quizzes/:id/report", c.quiz.Report)
		faculty.POST("/quizzes/:id/report/export", c.quiz.ExportReport)
		faculty.POST("/quizzes/:id/grade", c.quiz.PreviewGrade)
		faculty.POST("/attempts/:attemptId/regrade", c.attempt.RegradeAttempt)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/quizzes", middleware.RoleMiddleware(model.Superadmin), c.quiz.ListAllQuizzes)

	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Superadmin))
	{
		admin.POST("/users", c.admin.CreateUser)
		admin.GET("/faculty/pending", c.admin.ListPendingFaculty)
		admin.POST("/faculty/:id/approve", c.admin.ApproveFaculty)
		admin.POST("/faculty/:id/reject", c.admin.RejectFaculty)
	}
}
