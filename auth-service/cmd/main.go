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

	"github.com/cardbank/cms/auth-service/internal/handler"
	authqry "github.com/cardbank/cms/auth-service/internal/query"
	"github.com/cardbank/cms/auth-service/internal/repository"
	"github.com/cardbank/cms/shared/config"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/telemetry"
	"github.com/cardbank/cms/shared/utils"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	root := &cobra.Command{
		Use:          "auth-service",
		Short:        "Issues scoped access tokens to registered clients",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the token endpoint",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "hash-secret <secret>",
			Short: "Print the bcrypt hash of a client secret for AUTH_CLIENTS",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				hash, err := utils.HashSecret(args[0])
				if err != nil {
					return fmt.Errorf("failed to hash secret: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("auth-service failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadAuth()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(cfg.OTelEnabled, "auth-service")
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	clients, err := repository.ParseClients(cfg.Clients)
	if err != nil {
		return fmt.Errorf("invalid AUTH_CLIENTS: %w", err)
	}
	if len(clients) == 0 {
		slog.Warn("No clients registered; every token request will be refused")
	}

	// Token issuance does not mutate state; no command service needed
	tokenQueries := authqry.NewTokenQueryService(repository.NewClientRepository(clients), cfg.JWTSecret, cfg.TokenTTL)
	tokenHandler := handler.NewTokenHandler(tokenQueries)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware())

	router.POST("/oauth2/token", tokenHandler.Token)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: otelhttp.NewHandler(router, "auth-service")}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Auth service starting", "port", cfg.Port, "clients", len(clients))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
