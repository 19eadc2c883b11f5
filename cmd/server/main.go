package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/db"
	"github.com/ignatzorin/freelance-payments/internal/gateway"
	"github.com/ignatzorin/freelance-payments/internal/goroutine"
	httpHandlers "github.com/ignatzorin/freelance-payments/internal/http/handlers"
	"github.com/ignatzorin/freelance-payments/internal/http/middleware"
	httpRouter "github.com/ignatzorin/freelance-payments/internal/http/router"
	"github.com/ignatzorin/freelance-payments/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/service"
	"github.com/ignatzorin/freelance-payments/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if _, err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	store := persistence.NewStore(dbConn)
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	gw := gateway.NewMockGateway(cfg.GatewayLatency, cfg.Billing.Gateway.PaymentFailureRate, cfg.Billing.Gateway.WithdrawalFailureRate)
	paymentCfg := service.PaymentConfig{
		GatewayTimeout:   cfg.GatewayTimeout,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		EligibilityCheck: cfg.EligibilityCheck,
	}

	// Сервисы.
	invoiceService := service.NewInvoiceService(store, cfg.Billing)
	projectService := service.NewProjectService(store, invoiceService)
	paymentService := service.NewPaymentService(store, invoiceService, gw, service.ProjectEligibility{}, paymentCfg)
	walletService := service.NewWalletService(store, gw, cfg.Billing, paymentCfg)
	notificationService := service.NewNotificationService(store.Notifications())

	// Вебсокеты и доставка событий outbox.
	hub := ws.NewHub()
	dispatcher := service.NewOutboxDispatcher(store, hub, service.DispatcherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	})

	var workers sync.WaitGroup
	workers.Add(2)
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		defer workers.Done()
		hub.Run(ctx)
	})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		defer workers.Done()
		dispatcher.Run(ctx)
	})

	// HTTP хэндлеры и роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Health:        httpHandlers.NewHealthHandler(store, hub.Connected),
		Payments:      httpHandlers.NewPaymentHandler(paymentService, invoiceService),
		Wallets:       httpHandlers.NewWalletHandler(walletService),
		Invoices:      httpHandlers.NewInvoiceHandler(invoiceService),
		Projects:      httpHandlers.NewProjectHandler(projectService, invoiceService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, httpHandlers.AllowOrigins(cfg.AllowedOrigins)),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           middleware.CORS(cfg.AllowedOrigins, engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("main: ошибка остановки http сервера: %v", err)
		}
	})

	logger.Log.WithFields(logrus.Fields{
		"port": cfg.HTTPPort,
		"env":  cfg.Env,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}

	// ждём, пока диспетчер закончит текущую пачку
	workers.Wait()
	logger.Log.Info("main: сервер остановлен")
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.Errorf("main: ошибка закрытия базы: %v", err)
	}
}
