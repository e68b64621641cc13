// Package main запускает HTTP-сервер сервиса членства MDPU.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mdpu/membership-system/internal/checkout"
	"github.com/mdpu/membership-system/internal/config"
	"github.com/mdpu/membership-system/internal/handler"
	"github.com/mdpu/membership-system/internal/mailer"
	"github.com/mdpu/membership-system/internal/middleware"
	"github.com/mdpu/membership-system/internal/repository"
	"github.com/mdpu/membership-system/internal/service"
	"github.com/mdpu/membership-system/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	// Необязательные интеграции: без конфигурации сервис стартует,
	// а зависящие от них операции отвечают ошибкой config_missing.
	var store service.Storage
	if s3, err := storage.NewS3Storage(storage.Config{
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		Region:    cfg.StorageRegion,
		Endpoint:  cfg.StorageEndpoint,
	}); err == nil {
		store = s3
	} else {
		sugar.Infow("object storage disabled", "reason", err.Error())
	}

	var mail service.Mailer
	if cfg.MailAPIURL != "" {
		mail = mailer.NewClient(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	}

	var checkoutClient service.CheckoutClient
	if cfg.CheckoutBaseURL != "" && cfg.CheckoutSecretKey != "" {
		checkoutClient = checkout.NewClient(cfg.CheckoutBaseURL, cfg.CheckoutSecretKey)
	}

	loc, err := time.LoadLocation(cfg.ReportTZ)
	if err != nil {
		sugar.Infow("failed to load report timezone, using UTC", "tz", cfg.ReportTZ)
		loc = time.UTC
	}

	svc := service.NewService(repo, store, mail, checkoutClient, logger, service.Options{
		AdminInitKey:          cfg.AdminInitKey,
		AdminEmails:           cfg.AdminEmails,
		PublicBaseURL:         cfg.PublicBaseURL,
		CheckoutPriceDues:     cfg.CheckoutPriceDues,
		CheckoutPriceDonation: cfg.CheckoutPriceDonation,
		Location:              loc,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск планировщика месячных отчётов
	g.Go(func() error {
		svc.StartReportScheduler(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting membership server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
