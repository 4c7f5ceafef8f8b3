package ingest

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

	"github.com/go-telegram/bot"

	"procodus.dev/thermobot/internal/store"
	"procodus.dev/thermobot/internal/view"
	"procodus.dev/thermobot/pkg/metrics"
	"procodus.dev/thermobot/pkg/mq"
)

// metricsNamespace prefixes every Prometheus metric this service exports.
const metricsNamespace = "thermobot"

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// HTTP server configuration
	HTTPPort int

	// Storage locations
	RecordsDir string
	UsersFile  string

	// Telegram configuration
	BotToken   string
	APIBaseURL string // empty means the production Bot API
	WebhookURL string

	// AllowedUsers restricts inbound chat events to these user ids.
	// Empty means open access.
	AllowedUsers []string

	// RabbitMQ configuration. Empty RabbitMQURL disables the AMQP feed.
	RabbitMQURL string
	QueueName   string
}

// Server wires the registry, view state, chat transport and ingestion paths
// together and owns their lifecycle.
type Server struct {
	logger      *slog.Logger
	config      *ServerConfig
	registry    *store.Registry
	views       *view.Views
	dispatcher  *view.Dispatcher
	bot         *bot.Bot
	consumer    *Consumer
	httpServer  *http.Server
	metrics     *metrics.IngestMetrics
	viewMetrics *metrics.ViewMetrics
}

// NewServer creates a new Server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	if cfg.RecordsDir == "" {
		return nil, errors.New("records directory cannot be empty")
	}

	if cfg.UsersFile == "" {
		return nil, errors.New("users file cannot be empty")
	}

	if cfg.BotToken == "" {
		return nil, errors.New("bot token cannot be empty")
	}

	if cfg.RabbitMQURL != "" && cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty when rabbitmq is configured")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run initializes storage, transport and ingestion and blocks until
// shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting thermobot server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if err := s.initCore(); err != nil {
		return err
	}

	// AMQP ingestion feed is optional.
	if s.config.RabbitMQURL != "" {
		mqClient := mq.New(s.config.QueueName, s.config.RabbitMQURL, s.logger)
		mqMetrics := metrics.NewMQMetrics(metricsNamespace)
		mqClient.SetMetrics(mqMetrics)

		consumer, err := NewConsumer(&ConsumerConfig{
			Logger:   s.logger,
			Registry: s.registry,
			MQClient: mqClient,
			Metrics:  s.metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize consumer: %w", err)
		}
		s.consumer = consumer

		if err := s.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start consumer: %w", err)
		}
	}

	mux := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("thermobot server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// initCore loads durable state and builds the view pipeline.
func (s *Server) initCore() error {
	if err := os.MkdirAll(s.config.RecordsDir, 0o750); err != nil {
		return fmt.Errorf("create records directory: %w", err)
	}

	registry, err := store.NewRegistry(&store.RegistryConfig{
		Logger: s.logger,
		Dir:    s.config.RecordsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	if err := registry.LoadAll(); err != nil {
		return fmt.Errorf("failed to load sensors: %w", err)
	}
	s.registry = registry

	views, err := view.NewViews(&view.ViewsConfig{
		Logger: s.logger,
		Path:   s.config.UsersFile,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize user views: %w", err)
	}
	if err := views.Load(); err != nil {
		return fmt.Errorf("failed to load user views: %w", err)
	}
	s.views = views

	// Webhook-only bot: updates arrive over HTTP, polling never starts.
	// Skipping the startup getMe call lets the server come up while the
	// Bot API is unreachable.
	botOpts := []bot.Option{bot.WithSkipGetMe()}
	if s.config.APIBaseURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(s.config.APIBaseURL))
	}

	b, err := bot.New(s.config.BotToken, botOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram client: %w", err)
	}
	s.bot = b

	surface, err := NewTelegramSurface(b)
	if err != nil {
		return fmt.Errorf("failed to initialize surface: %w", err)
	}

	s.metrics = metrics.NewIngestMetrics(metricsNamespace)
	s.viewMetrics = metrics.NewViewMetrics(metricsNamespace)
	s.metrics.SensorsKnown.Set(float64(registry.Len()))

	reconciler, err := view.NewReconciler(&view.ReconcilerConfig{
		Logger:  s.logger,
		Views:   views,
		Surface: surface,
		Metrics: s.viewMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reconciler: %w", err)
	}

	var access view.Access = view.OpenAccess{}
	if len(s.config.AllowedUsers) > 0 {
		access = view.NewAllowList(s.config.AllowedUsers)
	}

	dispatcher, err := view.NewDispatcher(&view.DispatcherConfig{
		Logger:     s.logger,
		Registry:   registry,
		Views:      views,
		Reconciler: reconciler,
		Access:     access,
		Metrics:    s.viewMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	s.dispatcher = dispatcher

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down thermobot server")

	var shutdownErr error

	if s.httpServer != nil {
		s.logger.Info("stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	if s.consumer != nil {
		s.logger.Info("stopping consumer")
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; consumer shutdown error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("consumer shutdown error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		s.logger.Error("thermobot server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("thermobot server shutdown completed successfully")
	return nil
}
