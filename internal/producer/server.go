package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procodus.dev/thermobot/pkg/metrics"
	"procodus.dev/thermobot/pkg/mq"
)

// ServerConfig holds the configuration for the producer Server.
type ServerConfig struct {
	Logger *slog.Logger

	RabbitMQURL string
	QueueName   string

	// Count is the number of synthetic thermometers.
	Count int

	// Interval between reading batches.
	Interval time.Duration
}

// Server runs the synthetic reading publisher on a fixed interval until
// shutdown.
type Server struct {
	logger   *slog.Logger
	config   *ServerConfig
	producer *Producer
	mqClient *mq.Client
}

// NewServer creates a new producer Server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	if cfg.Count <= 0 {
		return nil, errors.New("thermometer count must be positive")
	}

	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be positive")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run publishes reading batches until a signal arrives or the context is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting reading generator")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	s.mqClient = mq.New(s.config.QueueName, s.config.RabbitMQURL, s.logger)
	s.mqClient.SetMetrics(metrics.NewMQMetrics("thermobot_generator"))

	producer, err := New(&Config{
		Logger:   s.logger,
		MQClient: s.mqClient,
		Count:    s.config.Count,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize producer: %w", err)
	}
	s.producer = producer

	for _, t := range producer.Thermometers() {
		s.logger.Info("generated thermometer", "sensor_id", t.ID, "name", t.Name)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			s.logger.Info("received shutdown signal", "signal", sig.String())
			return s.Shutdown()
		case <-ctx.Done():
			s.logger.Info("context canceled")
			return s.Shutdown()
		case <-ticker.C:
			if err := s.producer.PublishReadings(ctx); err != nil {
				s.logger.Warn("reading batch completed with errors", "error", err)
			}
		}
	}
}

// Shutdown closes the queue client.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down reading generator")

	if s.mqClient != nil {
		if err := s.mqClient.Close(); err != nil {
			s.logger.Error("failed to close mq client", "error", err)
			return fmt.Errorf("mq client close error: %w", err)
		}
	}

	s.logger.Info("reading generator stopped")
	return nil
}
