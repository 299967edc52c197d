package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foodia/backend/config"
	"github.com/foodia/backend/internal/api"
	"github.com/foodia/backend/internal/database"
	"github.com/foodia/backend/internal/middleware"
	"github.com/foodia/backend/internal/router"
	"github.com/foodia/backend/internal/server"
	"github.com/foodia/backend/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	s3Config, err := config.NewS3Config(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 client: %v", err)
	}

	authService := service.NewAuthService(db, cfg.JWTSecret).
		WithGoogle(cfg.GoogleClientID, "")
	quotaService := service.NewQuotaService(db, cfg.DailyFreeGenerations)
	recipeService := service.NewRecipeService(db)
	imageService := service.NewImageService(cfg, s3Config)

	llmService, err := service.NewLLMService(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM service: %v", err)
	}

	limiter := middleware.NewGenerationRateLimiter(redisClient)

	authHandler := api.NewAuthHandler(authService)
	recipeHandler := api.NewRecipeHandler(recipeService, quotaService, llmService, imageService, authService, limiter, cfg.ChargePolicy)
	userHandler := api.NewUserHandler(db, quotaService, authService)

	engine := router.SetupRouter(cfg, authHandler, recipeHandler, userHandler)
	srv := server.New(cfg.ServerHost+":"+cfg.ServerPort, engine)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s:%s", cfg.ServerHost, cfg.ServerPort)
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		log.Printf("Received signal: %v", sig)
	}

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
