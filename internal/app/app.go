package app

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leave_assessment_backend/internal/config"
	"leave_assessment_backend/internal/controller"
	"leave_assessment_backend/internal/repository"
	"leave_assessment_backend/internal/service"
	"leave_assessment_backend/internal/util"
	"leave_assessment_backend/pkg/database"
	"leave_assessment_backend/pkg/events"
	"leave_assessment_backend/pkg/logger"
	"leave_assessment_backend/pkg/monitoring"
	"leave_assessment_backend/pkg/security"
	"leave_assessment_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Mongo  *mongo.Client
	Redis  *redis.Client
	Events events.Publisher

	shutdownTracer func(context.Context) error
}

type repositories struct {
	leave      repository.LeaveRepository
	quiz       repository.QuizRepository
	attendance repository.AttendanceReader
	lock       repository.GenerationLock
	checks     map[string]controller.HealthCheck
}

type services struct {
	leave      *service.LeaveService
	assessment *service.AssessmentService
	quiz       *service.QuizService
	executor   *service.CodeExecutionService
	tutor      *service.TutorService
}

type controllers struct {
	leave      *controller.LeaveController
	assessment *controller.AssessmentController
	quiz       *controller.QuizController
	code       *controller.CodeController
	health     *controller.HealthController
}

// initRepositories 按 database.driver 选择存储，Redis 锁可选
func (a *App) initRepositories(cfg *config.Config) *repositories {
	repos := &repositories{checks: map[string]controller.HealthCheck{}}

	switch cfg.Database.Driver {
	case util.DatabaseMongo:
		client, db, err := database.InitMongo(&cfg.Mongo)
		if err != nil {
			logger.Log.Fatal("Failed to initialize MongoDB", zap.Error(err))
		}
		a.Mongo = client
		leaves := repository.NewMongoLeaveRepository(db)
		quizzes := repository.NewMongoQuizRepository(db)
		if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := leaves.EnsureIndexes(ctx); err != nil {
				logger.Log.Fatal("Failed to create MongoDB indexes", zap.Error(err))
			}
			if err := quizzes.EnsureIndexes(ctx); err != nil {
				logger.Log.Fatal("Failed to create MongoDB quiz indexes", zap.Error(err))
			}
			cancel()
		}
		repos.leave = leaves
		repos.quiz = quizzes
		repos.attendance = repository.NewMongoAttendanceRepository(db)
		repos.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	default:
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
		if err != nil {
			logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		}
		a.DB = db
		if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
			if err := database.Migrate(db); err != nil {
				logger.Log.Fatal("Failed to migrate database", zap.Error(err))
			}
		}
		repos.leave = repository.NewLeaveRepository(db)
		repos.quiz = repository.NewQuizRepository(db)
		repos.attendance = repository.NewAttendanceRepository(db)
		repos.checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	// 生成锁只用于减少重复调用 AI，正确性由条件写入保证，Redis 不可用时降级
	if cfg.Redis.Host != "" {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Warn("Redis unavailable, question generation runs without a lock", zap.Error(err))
		} else {
			a.Redis = rdb
			repos.lock = repository.NewRedisGenerationLock(rdb)
			repos.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	ai := service.NewAIService(cfg.AI)
	var provider service.ChatCompleter
	if cfg.AI.Enabled() {
		provider = ai
	} else {
		logger.Log.Warn("AI provider not configured, questions come from the local bank")
	}

	generator := service.NewQuestionGenerator(provider, rand.New(rand.NewSource(time.Now().UnixNano())))
	executor := service.NewCodeExecutionService(cfg.Judge0)
	assessment := service.NewAssessmentService(repos.leave, generator, executor, repos.lock, a.Events, cfg.Assessment)
	quiz := service.NewQuizService(repos.quiz, executor, a.Events)
	assessment.QuizHistory = quiz

	return &services{
		leave:      service.NewLeaveService(repos.leave, repos.attendance, assessment, a.Events, cfg.Assessment),
		assessment: assessment,
		quiz:       quiz,
		executor:   executor,
		tutor:      service.NewTutorService(ai),
	}
}

func (a *App) initControllers(s *services, repos *repositories) *controllers {
	return &controllers{
		leave:      controller.NewLeaveController(s.leave),
		assessment: controller.NewAssessmentController(s.assessment),
		quiz:       controller.NewQuizController(s.quiz),
		code:       controller.NewCodeController(s.executor, s.tutor),
		health:     controller.NewHealthController(repos.checks),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	app := &App{Config: cfg}

	publisher, err := events.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Log.Warn("RabbitMQ unavailable, event publishing is disabled", zap.Error(err))
		publisher, _ = events.NewRabbitPublisher("", cfg.RabbitMQ.Exchange)
	}
	app.Events = publisher

	repos := app.initRepositories(cfg)
	if cfg.MigrateOnly {
		return app
	}
	services := app.initServices(repos, cfg)
	controllers := app.initControllers(services, repos)

	// 监控初始化
	monitoring.Init()

	shutdown, err := tracing.InitTracer("leave-assessment", cfg.Tracing)
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	app.shutdownTracer = shutdown

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen", zap.Error(err))
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

// Close 关闭 NewApp 打开的连接
func (a *App) Close(ctx context.Context) {
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			logger.Log.Warn("error closing event publisher", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	database.DisconnectMongo(a.Mongo)
}
