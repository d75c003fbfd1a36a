package app

import (
	"context"
	"elearn_backend/internal/config"
	"elearn_backend/internal/controller"
	"elearn_backend/internal/middleware"
	"elearn_backend/internal/repository"
	"elearn_backend/internal/service"
	"elearn_backend/internal/util"
	"elearn_backend/pkg/configwatcher"
	"elearn_backend/pkg/database"
	"elearn_backend/pkg/logger"
	"elearn_backend/pkg/monitoring"
	"elearn_backend/pkg/security"
	"elearn_backend/pkg/tracing"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)

	// 后台任务（限流清理等）随 Stop 结束
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

type repositories struct {
	user         *repository.UserRepository
	achievement  *repository.AchievementRepository
	program      *repository.ProgramRepository
	programCache *repository.ProgramCache
	attempt      *repository.QuizAttemptRepository
	chat         *repository.ChatRepository
	certificate  *repository.CertificateRepository
	payment      *repository.PaymentRepository
}

type services struct {
	auth        *service.AuthService
	user        *service.UserService
	storage     *service.StorageService
	program     *service.ProgramService
	attempt     *service.AttemptService
	payment     *service.PaymentService
	certificate *service.CertificateService
	ai          *service.AIService
	chat        *service.ChatService
	dashboard   *service.DashboardService
}

type controllers struct {
	auth        *controller.AuthController
	user        *controller.UserController
	program     *controller.ProgramController
	attempt     *controller.AttemptController
	chat        *controller.ChatController
	certificate *controller.CertificateController
	payment     *controller.PaymentController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		achievement:  repository.NewAchievementRepository(db),
		program:      repository.NewProgramRepository(db),
		programCache: repository.NewProgramCache(rdb),
		attempt:      repository.NewQuizAttemptRepository(db),
		chat:         repository.NewChatRepository(db),
		certificate:  repository.NewCertificateRepository(db),
		payment:      repository.NewPaymentRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) (*services, error) {
	s := &services{}

	s.storage = service.NewStorageService(&cfg.Storage)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, s.storage)
	s.program = service.NewProgramService(repos.program, repos.programCache, db)
	s.payment = service.NewPaymentService(repos.payment, repos.program, repos.user, cfg.Stripe)

	var err error
	s.certificate, err = service.NewCertificateService(repos.certificate, repos.user, s.storage, cfg.Certificate)
	if err != nil {
		return nil, err
	}

	s.attempt = service.NewAttemptService(
		repos.attempt,
		repos.program,
		repos.user,
		repos.achievement,
		s.payment,
		s.certificate,
		db,
		cfg.Quiz,
	)

	s.ai = service.NewAIService(cfg.AI)
	s.chat = service.NewChatService(repos.chat, repos.program, s.ai, cfg.AI)
	s.dashboard = service.NewDashboardService(s.user, s.attempt, repos.achievement, s.certificate, s.payment)

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		user:        controller.NewUserController(s.user, s.dashboard),
		program:     controller.NewProgramController(s.program),
		attempt:     controller.NewAttemptController(s.attempt),
		chat:        controller.NewChatController(s.chat),
		certificate: controller.NewCertificateController(s.certificate),
		payment:     controller.NewPaymentController(s.payment),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.Recovery(cfg.Server.Mode))
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	if cfg.RateLimit.MaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		router.Use(security.RateLimiter(a.bgCtx, cfg.RateLimit.MaxRequests, window))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 使用已建立的连接组装应用，rdb 可为 nil
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	gin.SetMode(cfg.Server.Mode)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	repos := app.initRepositories(db, rdb)
	services, err := app.initServices(repos, cfg, db)
	if err != nil {
		bgCancel()
		return nil, err
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.New()
	router.Use(gin.Logger())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetMode(newCfg.Server.Mode)
	})
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		services.attempt.UpdatePolicy(newCfg.Quiz)
	})

	return app, nil
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存不可用时降级为直接查库
		logger.Log.Warn("Redis unavailable, program cache disabled", zap.Error(err))
	}

	app, err := New(cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

// Stop 结束后台任务，可重复调用
func (a *App) Stop() {
	if a.bgCancel != nil {
		a.bgCancel()
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) Run(configPath string) {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := configwatcher.WatchConfig(ctx, filepath.Join(configPath, "config.yaml"), a.applyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Stop()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
