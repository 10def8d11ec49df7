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

	"github.com/cardbank/cms/api-gateway/internal/proxy"
	"github.com/cardbank/cms/shared/config"
	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	root := &cobra.Command{
		Use:          "api-gateway",
		Short:        "Public entry point in front of the CMS and auth services",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("api-gateway failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.LoadGateway()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(cfg.OTelEnabled, "api-gateway")
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "api-gateway"})
	})

	client := proxy.NewHTTPClient()

	// No authentication at the gateway; the CMS service checks tokens and scopes.
	router.POST("/oauth2/token", proxy.To(client, cfg.AuthServiceURL))
	router.Any("/cms/v1/*any", proxy.To(client, cfg.CMSServiceURL))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: otelhttp.NewHandler(router, "api-gateway")}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("API Gateway starting", "port", cfg.Port, "cms", cfg.CMSServiceURL, "auth", cfg.AuthServiceURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
