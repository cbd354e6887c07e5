package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront/internal/app/orders"
	"storefront/internal/app/reconciler"
	"storefront/internal/app/reconciliation"
	"storefront/internal/app/settlement"
	"storefront/internal/config"
	"storefront/internal/gateway"
	http_storefront "storefront/internal/handler/http/storefront"
	kafka_handler "storefront/internal/handler/kafka"
	"storefront/internal/infrastructure/database"
	"storefront/internal/infrastructure/kafka"
	"storefront/internal/notify"
	"storefront/internal/repository/address_repo"
	postgres_address_repo "storefront/internal/repository/address_repo/postgres"
	"storefront/internal/repository/memory"
	"storefront/internal/repository/order_repo"
	postgres_order_repo "storefront/internal/repository/order_repo/postgres"
	"storefront/internal/repository/payments_repo"
	postgres_payments_repo "storefront/internal/repository/payments_repo/postgres"
	"storefront/internal/repository/products_repo"
	postgres_products_repo "storefront/internal/repository/products_repo/postgres"
	"storefront/internal/repository/sellers_repo"
	postgres_sellers_repo "storefront/internal/repository/sellers_repo/postgres"
)

type repositories struct {
	orders    order_repo.OrderRepository
	payments  payments_repo.PaymentRepository
	products  products_repo.ProductRepository
	sellers   sellers_repo.SellerRepository
	addresses address_repo.AddressRepository
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Storefront service starting...", zap.String("store_driver", cfg.StoreDriver))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var repos repositories
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		appLogger.Warn("Using in-memory record store; data is lost on restart")
		store := memory.NewStore()
		repos = repositories{
			orders:    store.Orders(),
			payments:  store.Payments(),
			products:  store.Products(),
			sellers:   store.Sellers(),
			addresses: store.Addresses(),
		}
	default:
		db := connectPostgres(cfg, appLogger)
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			} else {
				appLogger.Info("Database connection closed.")
			}
		}()
		runMigrations(cfg, appLogger)
		repos = repositories{
			orders:    postgres_order_repo.NewOrderRepository(db, appLogger),
			payments:  postgres_payments_repo.NewPaymentRepository(db, appLogger),
			products:  postgres_products_repo.NewProductRepository(db, appLogger),
			sellers:   postgres_sellers_repo.NewSellerRepository(db, appLogger),
			addresses: postgres_address_repo.NewAddressRepository(db, appLogger),
		}
	}

	var gw gateway.Client
	if cfg.GatewayMockMode {
		appLogger.Warn("Payment gateway running in mock mode")
		gw = gateway.NewMockClient(cfg.GatewayKeyID, appLogger.With(zap.String("component", "MockGateway")))
	} else {
		gw = gateway.NewHTTPClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout,
			appLogger.With(zap.String("component", "GatewayClient")))
	}

	var notifier notify.Notifier = notify.NewDryRunNotifier(appLogger.With(zap.String("component", "Notifier")))
	var kafkaProducer kafka.Producer
	if cfg.KafkaEnabled {
		topicsCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := kafka.EnsureTopics(topicsCtx, cfg.GetKafkaBrokers(),
			[]string{cfg.KafkaPaymentConfirmationTopic, cfg.KafkaDeadLetterTopic, cfg.KafkaNotificationTopic}, appLogger)
		cancel()
		if err != nil {
			appLogger.Warn("Failed to ensure Kafka topics, continuing", zap.Error(err))
		}

		kafkaProducer, err = kafka.NewProducer(cfg.GetKafkaBrokers(), appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		if !cfg.NotifyDryRun {
			notifier = notify.NewKafkaNotifier(kafkaProducer, cfg.KafkaNotificationTopic, appLogger.With(zap.String("component", "Notifier")))
		}
	}

	engine := settlement.NewEngine(repos.products, repos.sellers, appLogger.With(zap.String("component", "Settlement")))
	orderService := orders.NewOrderService(repos.orders, repos.payments, repos.addresses, gw, cfg.HomeCurrency,
		appLogger.With(zap.String("component", "OrderIntake")))
	reconciliationService := reconciliation.NewService(repos.payments, repos.orders, engine, notifier,
		appLogger.With(zap.String("component", "Reconciliation")))

	var wg sync.WaitGroup

	gatewayReconciler := reconciler.New(gw, repos.orders, repos.payments,
		cfg.ReconcileInterval, cfg.ReconcileLookback, cfg.ReconcileTimeout,
		appLogger.With(zap.String("component", "GatewayReconciler")))
	wg.Add(1)
	go func() {
		defer wg.Done()
		gatewayReconciler.Start(ctx)
	}()
	appLogger.Info("Gateway reconciler started.", zap.Duration("interval", cfg.ReconcileInterval))

	if cfg.KafkaEnabled {
		consumer := kafka.NewConsumer(cfg.GetKafkaBrokers(), cfg.KafkaPaymentConfirmationTopic, cfg.KafkaConsumerGroup, appLogger,
			kafka.WithMaxAttempts(cfg.KafkaConsumerMaxAttempts),
			kafka.WithDeadLetter(kafkaProducer, cfg.KafkaDeadLetterTopic))
		confirmationHandler := kafka_handler.NewPaymentConfirmationConsumer(reconciliationService,
			appLogger.With(zap.String("component", "PaymentConfirmationConsumer")))
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer consumer.Close()
			if err := consumer.Run(ctx, confirmationHandler.HandleMessage); err != nil {
				appLogger.Error("Kafka payment confirmation consumer stopped", zap.Error(err))
				stop()
			}
		}()
		appLogger.Info("Kafka payment confirmation consumer started!")
	}

	router := http_storefront.NewRouter(orderService, reconciliationService, cfg.CORSAllowedOrigins, appLogger)

	serverAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()
	appLogger.Info("Storefront service listening", zap.String("address", serverAddr))

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down storefront service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Storefront graceful shutdown failed", zap.Error(err))
	}
	stop()
	wg.Wait()

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}
	appLogger.Info("Storefront service stopped.")
}

func connectPostgres(cfg *config.Config, logger *zap.Logger) *sql.DB {
	logger.Info("Waiting for database to be available...")
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.DBHost,
		Port:     cfg.DBConfig.DBPort,
		User:     cfg.DBConfig.DBUser,
		Password: cfg.DBConfig.DBPassword,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.DBSSLMode,
	}

	var (
		db  *sql.DB
		err error
	)
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL database!")
			return db
		}
		logger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	logger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	return nil
}

func runMigrations(cfg *config.Config, logger *zap.Logger) {
	logger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		logger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.Info("Database migrations completed successfully (or no new migrations).")
}
