package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"novalabs_hub/internal/api"
	"novalabs_hub/internal/app/service"
	"novalabs_hub/internal/app/worker"
	"novalabs_hub/internal/common/security"
	"novalabs_hub/internal/domain/repository"
	"novalabs_hub/internal/platform/config"
	"novalabs_hub/internal/platform/database"
	"novalabs_hub/internal/platform/sessioncache"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	// 4. Initialize Redis (session backend)
	sessioncache.ConnectRedis()
	defer sessioncache.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	labRepo := repository.NewPgLabRepository(database.DB)
	progressRepo := repository.NewPgProgressRepository(database.DB)
	sessionRepo := repository.NewRedisSessionRepository(sessioncache.RDB)

	// 6. Initialize Services
	authService := service.NewAuthService(userRepo)
	labService := service.NewLabService(labRepo, progressRepo)
	progressService := service.NewProgressService(labRepo, progressRepo, userRepo)
	sessionService := service.NewSessionService(
		sessionRepo,
		config.AppConfig.SessionTTL,
		config.AppConfig.SessionStateMaxBytes,
	)

	// 7. Session sweeper (as a goroutine)
	sweeper := worker.NewSessionSweeper(sessionRepo, config.AppConfig.SessionSweepInterval)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go sweeper.Start(workerCtx)

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(authService, labService, progressService, sessionService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")
	workerCancel() // Signal sweeper to stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server and sweeper stopped gracefully.")
}
