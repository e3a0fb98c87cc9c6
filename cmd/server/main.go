package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/markbunyevacz/HR-AI-website/internal/config"
	"github.com/markbunyevacz/HR-AI-website/internal/domain/fiber/handler"
	"github.com/markbunyevacz/HR-AI-website/internal/middleware"
	"github.com/markbunyevacz/HR-AI-website/internal/model"
	"github.com/markbunyevacz/HR-AI-website/internal/queue"
	"github.com/markbunyevacz/HR-AI-website/internal/repository"
	"github.com/markbunyevacz/HR-AI-website/internal/service"
	"github.com/markbunyevacz/HR-AI-website/internal/usecase"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()

	app := fiber.New(fiber.Config{
		AppName: appConfig.Name,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}
			return ctx.Status(code).JSON(fiber.Map{"error": message})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: appConfig.Env != "production",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.Env == "production"
		},
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(50, 1*time.Minute))

	db := ConnectDB()

	ocrRepo := repository.NewOCRResultRepository(db)
	ocrService := service.NewOCRService()

	queueConfig := config.LoadQueueConfig()
	uc := usecase.NewOCRUsecase(ocrRepo, ocrService, queue.Config{
		Concurrency:   queueConfig.Concurrency,
		MaxAttempts:   queueConfig.MaxAttempts,
		BackoffBase:   queueConfig.BackoffBase,
		KeepCompleted: queueConfig.KeepCompleted,
		KeepFailed:    queueConfig.KeepFailed,
		StallTimeout:  queueConfig.StallTimeout,
	})

	if webhookURL := config.LoadOCRConfig().WebhookURL; webhookURL != "" {
		notify := service.NewNotifyService(webhookURL)
		uc.Queue().OnEvent(notify.Listener())
	}

	ocrHandler := handler.NewOCRHandler(uc, "./uploads/ocr")
	ocrHandler.RegisterRoutes(app)

	uc.Start()

	// Graceful shutdown: stop accepting requests, then drain the queue.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Println("Server running on ", appConfig.Port)
	if err := app.Listen(appConfig.Port); err != nil {
		log.Fatal(err)
	}

	uc.Stop()
	ocrService.Terminate()
}

func ConnectDB() *gorm.DB {
	dbConfig := config.LoadDBConfig()
	appConfig := config.LoadAppConfig()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Name,
		dbConfig.Port,
		dbConfig.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	pgDB, err := db.DB()
	if err != nil {
		log.Fatalf("Could not get database instance: %v", err)
	}
	if appConfig.Env != "production" {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(200)
		pgDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(&model.OCRResult{}); err != nil {
		log.Fatal("migration failed: ", err)
	}
	return db
}
