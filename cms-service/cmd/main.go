package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmscmd "github.com/cardbank/cms/cms-service/internal/command"
	"github.com/cardbank/cms/cms-service/internal/fraudclient"
	"github.com/cardbank/cms/cms-service/internal/handler"
	cmsqry "github.com/cardbank/cms/cms-service/internal/query"
	"github.com/cardbank/cms/cms-service/internal/repository"
	"github.com/cardbank/cms/shared/config"
	"github.com/cardbank/cms/shared/events"
	"github.com/cardbank/cms/shared/fieldcrypt"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/models"
	redisClient "github.com/cardbank/cms/shared/redis"
	"github.com/cardbank/cms/shared/telemetry"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	accountViewPrefix     = "cms:account:view:"
	cardViewPrefix        = "cms:card:view:"
	transactionViewPrefix = "cms:transaction:view:"
	// Balances change on every transaction; keep their projection short lived.
	accountViewTTL = 30 * time.Second
	cardViewTTL    = 5 * time.Minute
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	root := &cobra.Command{
		Use:          "cms-service",
		Short:        "Accounts, cards and the transaction engine",
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
		slog.Error("cms-service failed", "error", err)
		os.Exit(1)
	}
}

func openDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context) error {
	cfg, err := config.LoadCMS()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	slog.Info("Schema applied")
	return nil
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadCMS()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(cfg.OTelEnabled, "cms-service")
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	// Write store
	var store repository.Store
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		crypt, err := fieldcrypt.NewEncryptor(cfg.CardEncryptionKey)
		if err != nil {
			return err
		}
		store = repository.NewPostgresStore(db, crypt)
	default:
		slog.Warn("Using in-memory storage; state is lost on restart")
		store = repository.NewMemoryStore()
	}

	// Redis connection (read model store + event streaming)
	redis, err := redisClient.NewClient(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer redis.Close()

	publisher := events.NewPublisher(redis.Client)
	accountViews := redisClient.NewVersionedViewCache[models.AccountView](redis.Client, accountViewPrefix, accountViewTTL,
		func(v *models.AccountView) int64 { return v.Version() })
	cardViews := redisClient.NewViewCache[models.CardView](redis.Client, cardViewPrefix, cardViewTTL)
	transactionViews := redisClient.NewViewCache[models.TransactionView](redis.Client, transactionViewPrefix, 0)

	// --- CQRS wiring ---
	fraud := fraudclient.NewClient(cfg.FraudURL, cfg.ServiceTokenSecret)

	txCommands := cmscmd.NewTransactionCommandService(store, fraud, publisher, accountViews, cfg.FraudTimeout)
	accountCommands := cmscmd.NewAccountCommandService(store, publisher, accountViews)
	cardCommands := cmscmd.NewCardCommandService(store, publisher, cardViews)

	txQueries := cmsqry.NewTransactionQueryService(store, transactionViews)
	accountQueries := cmsqry.NewAccountQueryService(store, accountViews)
	cardQueries := cmsqry.NewCardQueryService(store, cardViews)

	transactionHandler := handler.NewTransactionHandler(txCommands, txQueries)
	accountHandler := handler.NewAccountHandler(accountCommands, accountQueries)
	cardHandler := handler.NewCardHandler(cardCommands, cardQueries)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	v1 := router.Group("/cms/v1", auth)
	{
		v1.POST("/accounts", middleware.RequireScope(middleware.ScopeAccountsWrite), accountHandler.CreateAccount)
		v1.GET("/accounts/:id", middleware.RequireScope(middleware.ScopeAccountsWrite), accountHandler.GetAccount)
		v1.PATCH("/accounts/:id", middleware.RequireScope(middleware.ScopeAccountsWrite), accountHandler.UpdateAccount)
		v1.GET("/accounts/:id/cards", middleware.RequireScope(middleware.ScopeCardsWrite), cardHandler.ListAccountCards)
		v1.GET("/accounts/:id/transactions", middleware.RequireScope(middleware.ScopeTransactionsWrite), transactionHandler.ListAccountTransactions)

		v1.POST("/cards", middleware.RequireScope(middleware.ScopeCardsWrite), cardHandler.CreateCard)
		v1.GET("/cards", middleware.RequireScope(middleware.ScopeCardsWrite), cardHandler.ListCards)
		v1.GET("/cards/:id", middleware.RequireScope(middleware.ScopeCardsWrite), cardHandler.GetCard)
		v1.POST("/cards/:id/activate", middleware.RequireScope(middleware.ScopeCardsWrite), cardHandler.ActivateCard)
		v1.POST("/cards/:id/deactivate", middleware.RequireScope(middleware.ScopeCardsWrite), cardHandler.DeactivateCard)

		v1.POST("/transactions", middleware.RequireScope(middleware.ScopeTransactionsWrite), transactionHandler.CreateTransaction)
		v1.GET("/transactions/:id", middleware.RequireScope(middleware.ScopeTransactionsWrite), transactionHandler.GetTransaction)
	}

	go func() {
		subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
			Group:    "cms-transaction-views",
			Consumer: consumerName(),
			Stream:   events.TransactionEventsStream,
			Handler:  txQueries.HandleTransactionEvent,
		})
		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Subscriber stopped", "error", err)
		}
	}()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: otelhttp.NewHandler(router, "cms-service")}
	go func() {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("CMS service starting", "port", cfg.Port, "storage", cfg.StorageDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		return "cms-consumer-1"
	}
	return "cms-" + host
}
