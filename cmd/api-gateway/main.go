package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/madrasati/madrasati-api/api/swagger"
	"github.com/madrasati/madrasati-api/internal/handler"
	"github.com/madrasati/madrasati-api/internal/middleware"
	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/quiz"
	"github.com/madrasati/madrasati-api/internal/repository"
	"github.com/madrasati/madrasati-api/internal/service"
	"github.com/madrasati/madrasati-api/internal/store"
	"github.com/madrasati/madrasati-api/pkg/cache"
	"github.com/madrasati/madrasati-api/pkg/config"
	"github.com/madrasati/madrasati-api/pkg/database"
	"github.com/madrasati/madrasati-api/pkg/logger"
	corsmiddleware "github.com/madrasati/madrasati-api/pkg/middleware/cors"
	reqidmiddleware "github.com/madrasati/madrasati-api/pkg/middleware/requestid"
)

// @title Madrasati API
// @version 1.0.0
// @description School management, grade computation and realtime quiz matches
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}
	defer redisClient.Close()

	docStore := store.NewRedisStore(redisClient, logr, cfg.Game.MatchTTL)

	accountRepo := repository.NewAccountRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(accountRepo, nil, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	schoolService := service.NewSchoolService(settingsRepo, classRepo, studentRepo, nil, logr)
	gradeService := service.NewGradeService(settingsRepo, classRepo, studentRepo, logr)
	questionService := service.NewQuestionService(questionRepo, nil, logr)
	notificationService := service.NewNotificationService(notificationRepo, nil, logr)
	gameService := service.NewGameService(docStore, accountRepo, logr)

	coordinator := quiz.NewCoordinator(docStore, questionService, metricsService, logr, quiz.Config{
		QuestionTimeLimit: cfg.Game.QuestionTimeLimit,
		WriteRetries:      cfg.Game.WriteRetries,
		PointsPerCell:     float64(cfg.Game.PointsPerCell),
		MatchTTL:          cfg.Game.MatchTTL,
		FinishLatchTTL:    cfg.Game.FinishLatchTTL,
	})

	authHandler := handler.NewAuthHandler(authService)
	schoolHandler := handler.NewSchoolHandler(schoolService)
	gradeHandler := handler.NewGradeHandler(gradeService)
	questionHandler := handler.NewQuestionHandler(questionService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	gameHandler := handler.NewGameHandler(coordinator, gameService, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(metricsService.Handler()))
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authorized := api.Group("")
	authorized.Use(middleware.JWT(authService))

	principal := authorized.Group("")
	principal.Use(middleware.RequireRoles(models.RolePrincipal))
	{
		principal.POST("/accounts", authHandler.IssueAccount)
		principal.GET("/school/settings", schoolHandler.GetSettings)
		principal.PUT("/school/settings", schoolHandler.UpdateSettings)
		principal.POST("/school/classes", schoolHandler.CreateClass)
		principal.GET("/school/classes", schoolHandler.ListClasses)
		principal.GET("/school/classes/:id", schoolHandler.GetClass)
		principal.DELETE("/school/classes/:id", schoolHandler.DeleteClass)
		principal.POST("/school/classes/:id/subjects", schoolHandler.AddSubject)
		principal.DELETE("/school/classes/:id/subjects/:subjectId", schoolHandler.RemoveSubject)
		principal.POST("/school/classes/:id/students", schoolHandler.AddStudent)
		principal.GET("/school/classes/:id/students", schoolHandler.Roster)
		principal.PUT("/school/students/:id", schoolHandler.UpdateStudent)
		principal.DELETE("/school/students/:id", schoolHandler.RemoveStudent)
		principal.POST("/notifications", notificationHandler.Broadcast)
	}

	staff := authorized.Group("")
	staff.Use(middleware.RequireRoles(models.RolePrincipal, models.RoleTeacher))
	{
		staff.PUT("/students/:id/grades/:subjectId", gradeHandler.UpdateGradeCells)
		staff.GET("/students/:id/sheet", gradeHandler.StudentSheet)
		staff.GET("/classes/:id/sheets", gradeHandler.ClassSheets)
		staff.POST("/questions", questionHandler.Create)
		staff.GET("/questions", questionHandler.List)
		staff.PUT("/questions/:id", questionHandler.Replace)
		staff.DELETE("/questions/:id", questionHandler.Delete)
	}

	{
		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/matches", gameHandler.CreateMatch)
		authorized.POST("/matches/:id/join", gameHandler.JoinMatch)
		authorized.GET("/matches/:id", gameHandler.GetMatch)
		authorized.POST("/matches/:id/question", gameHandler.DrawQuestion)
		authorized.POST("/matches/:id/answer", gameHandler.SubmitAnswer)
		authorized.POST("/matches/:id/chat", gameHandler.Chat)
		authorized.POST("/matches/:id/forfeit", gameHandler.Forfeit)
		authorized.GET("/matches/:id/events", gameHandler.Events)
		authorized.POST("/challenges", gameHandler.CreateChallenge)
		authorized.GET("/challenges/:id", gameHandler.GetChallenge)
		authorized.POST("/challenges/:id/accept", gameHandler.AcceptChallenge)
		authorized.POST("/challenges/:id/decline", gameHandler.DeclineChallenge)
		authorized.GET("/leaderboard", gameHandler.Leaderboard)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
