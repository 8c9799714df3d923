package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldintake/internal/cache"
	"fieldintake/internal/config"
	"fieldintake/internal/repository"
	"fieldintake/internal/service"
	"fieldintake/internal/transport/rest"
	"fieldintake/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	// Load sync config and log delivery settings
	syncConfig := config.DefaultSyncConfig()
	log.Printf("Sync Config:")
	log.Printf("  Interval:  %s", syncConfig.PeriodicInterval)
	log.Printf("  Backoff:   %s base, exponent cap %d", syncConfig.BackoffBase, syncConfig.BackoffMaxExponent)
	log.Printf("  Retention: %s", syncConfig.Retention)
	if syncConfig.IsConfigured() {
		log.Println("  Endpoint:  configured")
	} else {
		log.Println("  Endpoint:  NOT SET (uploads will wait for provisioning)")
	}

	// MongoDB connection
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
		log.Println("Warning: MONGO_URI not set, using default")
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	// Ping MongoDB
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database("fieldintake")

	// Redis connection
	redisAddr := os.Getenv("REDIS_URI")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Println("Warning: REDIS_URI not set, using default")
	}
	// Remove redis:// prefix if present
	if len(redisAddr) > 8 && redisAddr[:8] == "redis://" {
		redisAddr = redisAddr[8:]
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	// Ping Redis
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize repositories
	questionRepo := repository.NewQuestionRepo(db)
	surveyRepo := repository.NewSurveyRepo(db)
	uploadRepo := repository.NewUploadUnitRepo(db)

	// Initialize caches
	sessionCache := cache.NewSessionCache(rdb)
	uploadLocks := cache.NewUploadLockCache(rdb)

	// Initialize services
	device := service.DeviceInfo{
		DeviceID:    syncConfig.DeviceID,
		AppVersion:  syncConfig.AppVersion,
		OSVersion:   runtime.GOOS,
		DeviceModel: runtime.GOARCH,
	}

	authSvc := service.NewAuthService()
	evaluator := service.NewScriptEvaluator()
	uploadClient := service.NewUploadClient(syncConfig)
	uploadSvc := service.NewUploadService(syncConfig, uploadClient, uploadRepo, uploadLocks, device)
	traversalSvc := service.NewTraversalService(questionRepo, surveyRepo, sessionCache, evaluator, uploadSvc)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	uploadSvc.SetBroadcaster(wsHub)

	// Start the periodic upload trigger
	uploadSvc.StartPeriodic()
	defer uploadSvc.StopPeriodic()

	// Create router with container
	container := &rest.Container{
		AuthService:      authSvc,
		TraversalService: traversalSvc,
		UploadService:    uploadSvc,
		UploadRepo:       uploadRepo,
		WSHub:            wsHub,
	}

	router := rest.NewRouter(container)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST /v1/sessions")
		log.Println("  POST /v1/sessions/{id}/answer")
		log.Println("  POST /v1/sessions/{id}/advance")
		log.Println("  POST /v1/sessions/{id}/retreat")
		log.Println("  GET  /v1/uploads")
		log.Println("  POST /v1/uploads/sync")
		log.Println("  WS   /v1/ws/uploads")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
