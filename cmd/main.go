package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"bar-pos/internal/config"
	"bar-pos/internal/database"
	"bar-pos/internal/localstore"
	"bar-pos/internal/logger"
	"bar-pos/internal/messaging"
	"bar-pos/internal/models"
	"bar-pos/internal/services/catalog"
	"bar-pos/internal/services/ledger"
	"bar-pos/internal/services/notification"
	"bar-pos/internal/services/till"
	"bar-pos/migrations"
)

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (till-service, sales-notifier, catalog-bridge, local-admin)")
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		category   = flag.String("category", models.CategoryNormal, "Initial price category of the till")
		prefetch   = flag.Int("prefetch", 10, "RabbitMQ prefetch count")
		reset      = flag.Bool("reset", false, "local-admin: delete every local price and sale")
		pricesFile = flag.String("prices", "", "local-admin: YAML price file to merge into the local catalog")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_starting", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":    *mode,
		"backend": cfg.Storage.Backend,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "till-service":
		err = runTillService(ctx, cfg, log, *category)
	case "sales-notifier":
		err = runSalesNotifier(ctx, cfg, log, *prefetch)
	case "catalog-bridge":
		err = runCatalogBridge(ctx, cfg, log)
	case "local-admin":
		err = runLocalAdmin(cfg, log, *reset, *pricesFile)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}
	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// tillBackend is the catalog source and ledger a till runs against.
type tillBackend struct {
	catalog till.CatalogProvider
	ledger  till.SalesLedger
	checks  []till.HealthCheck
	// started after the cache exists; nil for the local backend
	subscribe func(ctx context.Context, cache *catalog.Cache)
	close     func()
}

func runTillService(ctx context.Context, cfg *config.Config, log *logger.Logger, category string) error {
	requestID := logger.GenerateRequestID()

	var (
		backend *tillBackend
		err     error
	)
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		backend, err = openLocalBackend(cfg, log)
	default:
		backend, err = openPostgresBackend(ctx, cfg, log)
	}
	if err != nil {
		return err
	}
	defer backend.close()

	cache := catalog.NewCache(backend.catalog, log)
	if err := cache.Refresh(ctx); err != nil {
		// The till still starts; the cache retries on first use.
		log.Error("catalog_preload_failed", "Starting with an empty catalog", requestID, err, nil)
	}
	if backend.subscribe != nil {
		backend.subscribe(ctx, cache)
	}

	engine := till.NewEngine(cache, backend.ledger, category, till.WithLogger(log))
	handler := till.NewHandler(engine, cache, log, backend.checks...)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("Till service started on port %d", cfg.HTTP.Port), requestID, map[string]interface{}{
			"port":     cfg.HTTP.Port,
			"category": category,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("graceful_shutdown", "Shutting down HTTP server", requestID, nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

func openLocalBackend(cfg *config.Config, log *logger.Logger) (*tillBackend, error) {
	store, err := localstore.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	provider, err := catalog.NewLocalProvider(store)
	if err != nil {
		return nil, err
	}

	log.Info("store_opened", "Using local storage", "", map[string]interface{}{
		"path": store.Path(),
	})

	return &tillBackend{
		catalog: provider,
		ledger:  ledger.NewLocalLedger(store, log),
		close:   func() {},
	}, nil
}

func openPostgresBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*tillBackend, error) {
	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.Files); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// One connection per direction; the consumer owns and closes its own.
	pubConn, err := messaging.New(cfg, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize messaging: %w", err)
	}
	subConn, err := messaging.New(cfg, log)
	if err != nil {
		pubConn.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize messaging: %w", err)
	}

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", "", nil)

	publisher := messaging.NewPublisher(pubConn, log)
	consumer := messaging.NewExclusiveConsumer(subConn, log, messaging.CatalogExchange, "till-catalog-"+uuid.NewString(), 1)

	return &tillBackend{
		catalog: catalog.NewPostgresProvider(db),
		ledger:  ledger.NewNotifying(ledger.NewPostgresLedger(db, log), publisher, log),
		checks: []till.HealthCheck{
			{Name: "database", Check: db.Ping},
			{Name: "rabbitmq", Check: func(ctx context.Context) error {
				if pubConn.IsClosed() {
					return errors.New("connection closed")
				}
				return nil
			}},
		},
		subscribe: func(ctx context.Context, cache *catalog.Cache) {
			subscriber := catalog.NewSubscriber(consumer, cache, log)
			go func() {
				if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
					log.Error("catalog_subscriber_failed", "Live catalog updates stopped", "", err, nil)
				}
			}()
		},
		close: func() {
			consumer.Close()
			pubConn.Close()
			db.Close()
		},
	}, nil
}

func runSalesNotifier(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, messaging.SalesNotificationsQueue, "sales-notifier", prefetch)
	subscriber := notification.NewSubscriber(consumer, log)
	defer subscriber.Close()

	return subscriber.Start(ctx)
}

func runCatalogBridge(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	listenConn, err := db.Listen(ctx, catalog.ChangesChannel)
	if err != nil {
		return err
	}
	defer listenConn.Release()

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	bridge := catalog.NewBridge(listenConn.Conn(), messaging.NewPublisher(conn, log), log)
	if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runLocalAdmin maintains the local store while the till is stopped. Reset
// runs before the import so both can be combined to replace the price lists.
func runLocalAdmin(cfg *config.Config, log *logger.Logger, reset bool, pricesFile string) error {
	if !reset && pricesFile == "" {
		return errors.New("local-admin needs --reset, --prices or both")
	}
	requestID := logger.GenerateRequestID()

	store, err := localstore.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}

	if reset {
		if err := store.Delete(catalog.PricesKey, ledger.SalesKey); err != nil {
			return fmt.Errorf("failed to reset local data: %w", err)
		}
		log.Info("local_data_reset", "Deleted local prices and sales", requestID, map[string]interface{}{
			"path": store.Path(),
		})
	}

	// Reseeds the default categories after a reset.
	provider, err := catalog.NewLocalProvider(store)
	if err != nil {
		return err
	}

	if pricesFile == "" {
		return nil
	}
	f, err := os.Open(pricesFile)
	if err != nil {
		return fmt.Errorf("failed to open price file: %w", err)
	}
	defer f.Close()

	n, err := provider.ImportPrices(f)
	if err != nil {
		return err
	}
	log.Info("prices_imported", fmt.Sprintf("Imported %d prices", n), requestID, map[string]interface{}{
		"file":  pricesFile,
		"count": n,
	})
	return nil
}
