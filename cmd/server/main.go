package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/events"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/postgres"

	batchListenerPkg "github.com/fekuna/omnipos-inventory-service/internal/batchsync/listener"

	ledgerH "github.com/fekuna/omnipos-inventory-service/internal/ledger/handler"
	ledgerRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/ledger/repository"
	ledgerUCPkg "github.com/fekuna/omnipos-inventory-service/internal/ledger/usecase"

	resH "github.com/fekuna/omnipos-inventory-service/internal/reservation/handler"
	resRepoPkg "github.com/fekuna/omnipos-inventory-service/internal/reservation/repository"
	resSweeperPkg "github.com/fekuna/omnipos-inventory-service/internal/reservation/sweeper"
	resUCPkg "github.com/fekuna/omnipos-inventory-service/internal/reservation/usecase"

	orchH "github.com/fekuna/omnipos-inventory-service/internal/orchestrator/handler"
	orchUCPkg "github.com/fekuna/omnipos-inventory-service/internal/orchestrator/usecase"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	txManager := postgres.NewTxManager(db)

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka
	batchConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.BatchTopic,
		GroupID: cfg.Kafka.BatchGroupID,
	})
	defer batchConsumer.Close()

	eventsProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.EventsTopic,
	})
	defer eventsProducer.Close()
	appLogger.Info("Connected to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("batch_topic", cfg.Kafka.BatchTopic),
		zap.String("events_topic", cfg.Kafka.EventsTopic),
	)

	publisher := events.NewKafkaPublisher(eventsProducer, appLogger)

	// 6. Initialize Repositories
	ledgerRepo := ledgerRepoPkg.NewPGRepository(db)
	resRepo := resRepoPkg.NewPGRepository(db)

	// 7. Initialize UseCases
	ledgerUC := ledgerUCPkg.NewLedgerUseCase(ledgerRepo, txManager, redisClient, appLogger)
	resUC := resUCPkg.NewReservationUseCase(resRepo, ledgerUC, txManager, cfg.Reservation.DefaultTTL, appLogger)
	orchUC := orchUCPkg.NewOrchestratorUseCase(resUC, ledgerUC, txManager, publisher, redisClient, appLogger)

	// 8. Start Listeners and Sweeper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batchListener := batchListenerPkg.NewListener(batchConsumer, ledgerUC, appLogger)
	go batchListener.Start(ctx)

	sweeper := resSweeperPkg.NewSweeper(resUC, cfg.Reservation.SweepInterval, appLogger)
	go sweeper.Start(ctx)

	// 9. Initialize Handlers and Router
	if cfg.Server.AppEnv != "dev" && cfg.Server.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(auth.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api/v1")
	ledgerH.NewHandler(ledgerUC, appLogger).RegisterRoutes(api)
	resH.NewHandler(resUC, appLogger).RegisterRoutes(api)
	orchH.NewHandler(orchUC, appLogger).RegisterRoutes(api)

	// 10. Start HTTP Server
	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("forced shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
