package app

import (
	"leave_assessment_backend/docs"
	"leave_assessment_backend/internal/config"
	"leave_assessment_backend/internal/middleware"
	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		registerLeaveRoutes(authGroup, c)
		registerCodeRoutes(authGroup, c)
		registerQuizRoutes(authGroup, c)

		// 题库预览（教师）
		authGroup.POST("/assessment/generate", middleware.RoleMiddleware(model.Teacher), c.assessment.Generate)
	}
}

func registerLeaveRoutes(rg *gin.RouterGroup, c *controllers) {
	student := middleware.RoleMiddleware(model.Student)
	teacher := middleware.RoleMiddleware(model.Teacher)

	leave := rg.Group("/leave")
	{
		// 学生
		leave.POST("", student, c.leave.Create)
		leave.GET("/my-leaves", student, c.leave.ListMine)
		leave.GET("/stats", student, c.leave.Stats)
		leave.DELETE("/:id", student, c.leave.Delete)
		leave.GET("/:id/assessment", student, c.assessment.Fetch)
		leave.POST("/:id/submit-assessment", student, c.assessment.Submit)

		// 教师
		leave.GET("", teacher, c.leave.ListAll)
		leave.PUT("/:id/status", teacher, c.leave.UpdateStatus)
		leave.POST("/:id/assessment", teacher, c.assessment.Attach)
		leave.GET("/:id/assessment/result", teacher, c.assessment.Result)

		// 学生本人或教师
		leave.GET("/:id", c.leave.Get)
	}
}

func registerQuizRoutes(rg *gin.RouterGroup, c *controllers) {
	student := middleware.RoleMiddleware(model.Student)
	teacher := middleware.RoleMiddleware(model.Teacher)

	quiz := rg.Group("/quiz")
	{
		// 学生
		quiz.GET("", student, c.quiz.List)
		quiz.GET("/my-attempts", student, c.quiz.MyAttempts)
		quiz.GET("/:id", student, c.quiz.Get)
		quiz.POST("/:id/submit", student, c.quiz.Submit)
		quiz.GET("/:id/results", student, c.quiz.Results)

		// 教师
		quiz.POST("/create", teacher, c.quiz.Create)
		quiz.GET("/teacher/all", teacher, c.quiz.ListForTeacher)
		quiz.PUT("/:id", teacher, c.quiz.Update)
		quiz.DELETE("/:id", teacher, c.quiz.Delete)
	}
}

func registerCodeRoutes(rg *gin.RouterGroup, c *controllers) {
	code := rg.Group("/code")
	{
		code.POST("/execute", c.code.Execute)
		code.POST("/run-tests", c.code.RunTests)
		code.POST("/validate", c.code.Validate)
		code.POST("/evaluate", c.code.Evaluate)
		code.POST("/hints", c.code.Hints)
		code.POST("/explain", c.code.Explain)
	}
}
