package main

import (
	stdlog "log"

	"surveybot/config"
	"surveybot/handlers"
	"surveybot/logger"
	"surveybot/models"
	"surveybot/routes"
	"surveybot/services"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		stdlog.Fatal("Failed to initialize logger:", err)
	}
	defer log.Sync()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	// Auto-migrate database models
	if err := db.AutoMigrate(&models.User{}, &models.Answer{}); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Load and validate the questionnaire. A corrupt catalog must refuse
	// to serve events, so everything here is fatal.
	catalog, err := models.LoadCatalog(cfg.QuestionsFile)
	if err != nil {
		log.Fatal("failed to load questionnaire", "file", cfg.QuestionsFile, "error", err)
	}
	if err := catalog.Validate(); err != nil {
		log.Fatal("questionnaire is invalid", "file", cfg.QuestionsFile, "error", err)
	}
	if err := cfg.Branch.Validate(len(catalog)); err != nil {
		log.Fatal("branch rule is invalid", "error", err)
	}
	log.Info("questionnaire loaded", "file", cfg.QuestionsFile, "questions", len(catalog))

	// Initialize services
	store := services.NewSessionStore(cfg.SessionTTL, cfg.SweepInterval, log)
	go store.Run()

	answerService := services.NewAnswerService(db, catalog, log)
	surveyService := services.NewSurveyService(catalog, cfg.Branch, store, answerService, cfg.AdminIDs, log)
	reportService := services.NewReportService(db, redisClient, catalog, cfg.TallyCacheTTL, log)
	chartService, err := services.NewChartService(cfg.ChartFont, log)
	if err != nil {
		log.Fatal("failed to initialize chart renderer", "error", err)
	}

	// Initialize the Telegram bot
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal("failed to connect to Telegram", "error", err)
	}

	// Initialize handlers
	adminHandler := handlers.NewAdminHandler(bot, surveyService, reportService, chartService, catalog, log)
	surveyHandler := handlers.NewSurveyHandler(bot, surveyService, adminHandler, cfg.ImagesDir, log)
	statsHandler := handlers.NewStatsHandler(answerService, store, log)

	// Ops HTTP server
	router := gin.Default()
	routes.SetupRoutes(router, statsHandler)
	go func() {
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("ops server stopped", "error", err)
		}
	}()

	// Start polling. The handler fans updates out to its shard workers,
	// which keep per-user arrival order.
	surveyHandler.Run()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	log.Info("bot started", "username", bot.Self.UserName, "admins", len(cfg.AdminIDs))
	for update := range updates {
		surveyHandler.Dispatch(update)
	}
}
