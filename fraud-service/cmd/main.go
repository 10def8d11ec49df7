package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	fraudcmd "github.com/cardbank/cms/fraud-service/internal/command"
	"github.com/cardbank/cms/fraud-service/internal/handler"
	"github.com/cardbank/cms/fraud-service/internal/repository"
	"github.com/cardbank/cms/fraud-service/internal/rules"
	"github.com/cardbank/cms/shared/config"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/middleware"
	redisClient "github.com/cardbank/cms/shared/redis"
	"github.com/cardbank/cms/shared/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	root := &cobra.Command{
		Use:          "fraud-service",
		Short:        "Rule based fraud evaluation",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE:  func(cmd *cobra.Command, args []string) error { return migrate(cmd.Context()) },
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("fraud-service failed", "error", err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context) error {
	cfg, err := config.LoadFraud()
	if err != nil {
		return err
	}
	pool, err := repository.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		return err
	}
	slog.Info("Schema applied")
	return nil
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadFraud()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(cfg.OTelEnabled, "fraud-service")
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	redisOpts := redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Redis is mandatory only when it backs the event store; otherwise it
	// just carries fraud.evaluated notifications.
	redis, err := redisClient.NewClient(ctx, redisOpts)
	if err != nil {
		if cfg.StorageDriver == config.DriverRedis {
			return err
		}
		slog.Warn("Redis unavailable, fraud.evaluated events disabled", "error", err)
		redis = nil
	}
	if redis != nil {
		defer redis.Close()
	}

	var store repository.EventStore
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := repository.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = repository.NewPostgresEventStore(pool)
	case config.DriverRedis:
		store = repository.NewRedisEventStore(redis.Client, cfg.LookbackWindow)
	default:
		slog.Warn("Using in-memory storage; attempt history is lost on restart")
		store = repository.NewMemoryEventStore()
	}

	policy := rules.Policy{AmountLimit: cfg.AmountLimit, LookbackWindow: cfg.LookbackWindow}
	var fraudCommands *fraudcmd.FraudCommandService
	if redis != nil {
		fraudCommands = fraudcmd.NewFraudCommandService(store, policy, events.NewPublisher(redis.Client))
	} else {
		fraudCommands = fraudcmd.NewFraudCommandService(store, policy, nil)
	}
	fraudHandler := handler.NewFraudHandler(fraudCommands)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/fraud/v1", middleware.AuthMiddleware(cfg.JWTSecret))
	{
		v1.POST("/evaluate", middleware.RequireScope(middleware.ScopeFraudEvaluate), fraudHandler.Evaluate)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: otelhttp.NewHandler(router, "fraud-service")}
	go func() {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Fraud service starting",
		"port", cfg.Port, "storage", cfg.StorageDriver,
		"amountLimit", cfg.AmountLimit, "lookbackWindow", cfg.LookbackWindow)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
