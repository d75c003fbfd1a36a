package app

import (
	"elearn_backend/docs"
	"elearn_backend/internal/config"
	"elearn_backend/internal/middleware"
	"elearn_backend/internal/model"
	"elearn_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)

		// 讲师相关接口
		a.registerInstructorRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		public.GET("/programs", c.program.ListPrograms)
		public.GET("/programs/categories", c.program.Categories)
		public.GET("/programs/:id", c.program.GetProgram)

		public.GET("/certificates/verify/:serial", c.certificate.Verify)

		// Stripe 回调通过签名校验，不走 JWT
		public.POST("/payments/webhook", c.payment.Webhook)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.user.GetProfile)
	rg.PUT("/profile", c.user.UpdateProfile)
	rg.POST("/profile/avatar", c.user.UploadAvatar)
	rg.GET("/dashboard", c.user.GetDashboard)

	attempts := rg.Group("/attempts")
	{
		attempts.GET("/user", c.attempt.ListUserAttempts)
		attempts.GET("/can-start/:programId", c.attempt.CanStart)
		attempts.POST("/start/:programId", c.attempt.StartAttempt)
		attempts.POST("/:attemptId/submit", c.attempt.SubmitAttempt)
		attempts.POST("/:attemptId/abandon", c.attempt.AbandonAttempt)
		attempts.GET("/:attemptId", c.attempt.GetResult)
	}

	chat := rg.Group("/chat")
	{
		chat.POST("/sessions", c.chat.CreateSession)
		chat.GET("/sessions", c.chat.ListSessions)
		chat.GET("/sessions/:id", c.chat.GetSession)
		chat.DELETE("/sessions/:id", c.chat.DeleteSession)
		chat.POST("/sessions/:id/messages", c.chat.SendMessage)
	}

	rg.GET("/certificates", c.certificate.ListMine)

	rg.POST("/payments/checkout", c.payment.CreateCheckout)
	rg.GET("/subscriptions/me", c.payment.GetSubscription)
}

func (a *App) registerInstructorRoutes(rg *gin.RouterGroup, c *controllers) {
	programs := rg.Group("/programs")
	programs.Use(middleware.RoleMiddleware(model.Instructor))
	{
		programs.GET("/mine", c.program.ListMyPrograms)
		programs.POST("", c.program.CreateProgram)
		programs.PUT("/:id", c.program.UpdateProgram)
		programs.DELETE("/:id", c.program.DeleteProgram)
		programs.PUT("/:id/exam", c.program.UpdateExamConfig)
		programs.GET("/:id/manage", c.program.GetManagedProgram)

		programs.POST("/:id/questions", c.program.AddQuestion)
		programs.PUT("/:id/questions/:questionId", c.program.UpdateQuestion)
		programs.DELETE("/:id/questions/:questionId", c.program.DeleteQuestion)
	}
}
