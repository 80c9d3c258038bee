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

	"github.com/go-filegate/internal/application/scheduler"
	"github.com/go-filegate/internal/config"
	"github.com/go-filegate/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-filegate/internal/infrastructure/jwt"
	s3infra "github.com/go-filegate/internal/infrastructure/s3"
	"github.com/go-filegate/internal/infrastructure/shortener"
	"github.com/go-filegate/internal/infrastructure/sns"
	"github.com/go-filegate/internal/pkg/clock"
	transporthttp "github.com/go-filegate/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// S3 store for catalog artifacts.
	s3Client := s3infra.NewClient(cfg)
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketName)

	// SNS delete notifier (optional — logs locally when no topic is set).
	var deleteNotifier sns.DeleteNotifier
	if n, err := sns.NewNotifier(cfg); err == nil {
		deleteNotifier = n
	} else {
		log.Printf("WARN: SNS notifier not available, logging delete notices: %v", err)
		deleteNotifier = sns.LogNotifier{}
	}

	jobRepo := dynamo.NewJobRepo(dynamoClient, cfg.DynamoTables.DeliveryJobs)
	sched := scheduler.New(jobRepo, deleteNotifier, clock.System(), scheduler.Options{
		CallTimeout: cfg.ExternalCallTimeout,
	})
	if err := sched.Start(context.Background()); err != nil {
		log.Fatalf("scheduler start: %v", err)
	}

	deps := &transporthttp.Deps{
		AccessRepo:       dynamo.NewAccessRepo(dynamoClient, cfg.DynamoTables.UserAccess),
		VerificationRepo: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.Verifications),
		JobRepo:          jobRepo,
		ItemRepo:         dynamo.NewItemRepo(dynamoClient, cfg.DynamoTables.CatalogItems),
		S3Store:          s3Store,
		Shortener:        shortener.NewClient(cfg),
		Scheduler:        sched,
		JWTProvider:      jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	// Stop after the listener: no new deliveries can schedule jobs, and
	// due jobs drain before exit.
	sched.Stop()
	log.Println("Server stopped")
}
