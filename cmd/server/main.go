package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/stanstork/notifications-api/internal/behavior"
	"github.com/stanstork/notifications-api/internal/config"
	"github.com/stanstork/notifications-api/internal/handlers"
	"github.com/stanstork/notifications-api/internal/memstore"
	"github.com/stanstork/notifications-api/internal/middleware"
	"github.com/stanstork/notifications-api/internal/migration"
	"github.com/stanstork/notifications-api/internal/models"
	"github.com/stanstork/notifications-api/internal/notification"
	"github.com/stanstork/notifications-api/internal/repository"
	"github.com/stanstork/notifications-api/internal/routes"
	"github.com/stanstork/notifications-api/internal/subscription"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// stores is the storage backend selected by configuration.
type stores struct {
	behavior      behavior.Store
	catalog       repository.CatalogRepository
	endpoints     repository.EndpointRepository
	subscriptions repository.SubscriptionRepository
	history       repository.NotificationHistoryRepository
	health        handlers.Pinger
}

type application struct {
	config *config.Config
	db     *sql.DB
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, keeping info")
	}

	app := &application{config: cfg, logger: logger}

	var st stores
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn().Msg("Using in-memory storage; data is lost on restart")
		st = memoryStores()
	default:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to the database")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to ping database")
		}

		// Run database migrations.
		if err := migration.RunMigrations(db, logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		app.db = db
		st = postgresStores(db)
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(st, logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORS.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

func postgresStores(db *sql.DB) stores {
	return stores{
		behavior:      repository.NewBehaviorGroupStore(db),
		catalog:       repository.NewCatalogRepository(db),
		endpoints:     repository.NewEndpointRepository(db),
		subscriptions: repository.NewSubscriptionRepository(db),
		history:       repository.NewNotificationHistoryRepository(db),
		health:        db,
	}
}

func memoryStores() stores {
	store := memstore.New()
	return stores{
		behavior:      store,
		catalog:       store,
		endpoints:     store.Endpoints(),
		subscriptions: memstore.NewSubscriptions(),
		history:       memstore.NewHistory(),
	}
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(st stores, logger zerolog.Logger) http.Handler {
	pagination := app.config.Pagination

	// Services
	engine := behavior.NewService(st.behavior, logger, behavior.WithPageDefaults(pagination.DefaultLimit, pagination.MaxLimit))
	subscriptions := subscription.NewService(st.subscriptions, st.catalog, subscription.Features{
		DrawerEnabled: app.config.Features.DrawerEnabled,
	}, logger)
	history := notification.NewHistoryService(st.history, logger, pagination.DefaultLimit, pagination.MaxLimit)

	// Notifiers
	outbound := notification.NewLogNotifier(app.config.Dispatch.Enabled, logger)
	recipients := notification.NewSubscriptionNotifier(subscriptions, logger)
	processor := notification.NewProcessor(st.catalog, engine, st.history, logger, map[models.EndpointType]notification.Notifier{
		models.EndpointTypeWebhook:           outbound,
		models.EndpointTypeCamel:             outbound,
		models.EndpointTypeEmailSubscription: recipients,
		models.EndpointTypeDrawer:            recipients,
	})

	// Handlers
	return routes.NewRouter(routes.Handlers{
		Auth:                  handlers.NewAuthHandler(app.config.JWTSecret, logger),
		BehaviorGroups:        handlers.NewBehaviorGroupHandler(engine, logger),
		DefaultBehaviorGroups: handlers.NewDefaultBehaviorGroupHandler(engine, logger),
		Subscriptions:         handlers.NewSubscriptionHandler(subscriptions, logger),
		Endpoints:             handlers.NewEndpointHandler(st.endpoints, logger),
		Notifications:         handlers.NewNotificationHandler(history, processor, logger),
		Catalog:               handlers.NewCatalogHandler(st.catalog, logger),
		Health:                st.health,
	})
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:              ":" + app.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
