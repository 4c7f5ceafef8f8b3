package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/thermobot/internal/store"
	"procodus.dev/thermobot/pkg/metrics"
	"procodus.dev/thermobot/pkg/mq"
)

// Consumer drains reading envelopes from a RabbitMQ queue and applies them
// to the registry. It carries the same payloads as the HTTP path, for
// gateways that buffer readings through a broker.
type Consumer struct {
	logger   *slog.Logger
	registry *store.Registry
	mqClient mq.ClientInterface
	metrics  *metrics.IngestMetrics
	done     chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger   *slog.Logger
	Registry *store.Registry
	MQClient mq.ClientInterface
	Metrics  *metrics.IngestMetrics // optional
}

// NewConsumer creates a new Consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Registry == nil {
		return nil, errors.New("registry cannot be nil")
	}

	if cfg.MQClient == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	return &Consumer{
		logger:   cfg.Logger,
		registry: cfg.Registry,
		mqClient: cfg.MQClient,
		metrics:  cfg.Metrics,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming readings from the queue.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting reading consumer")

	// Give the background connection a moment to come up.
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("reading consumer started, waiting for messages")

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages drains the deliveries channel until it closes or the
// context is canceled.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(delivery)
		}
	}
}

// handleDelivery applies a single reading envelope. Unparseable payloads
// are poison: acked and dropped so the broker does not redeliver them.
// Persistence failures are nacked for redelivery.
func (c *Consumer) handleDelivery(delivery amqp.Delivery) {
	var reading Reading
	if err := json.Unmarshal(delivery.Body, &reading); err != nil {
		c.logger.Error("failed to unmarshal reading", "error", err)
		c.countReading("rejected")
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	if err := reading.Validate(); err != nil {
		c.logger.Error("dropping invalid reading", "error", err)
		c.countReading("rejected")
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.ApplyDuration.WithLabelValues("amqp"))
	}
	result, err := applyReading(c.registry, &reading)
	if timer != nil {
		timer.ObserveDuration()
	}

	if err != nil {
		c.logger.Error("failed to persist reading",
			"sensor_id", reading.ID,
			"error", err,
		)
		c.countReading("failed")
		if c.metrics != nil {
			c.metrics.PersistFailures.WithLabelValues("amqp").Inc()
		}
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}

	c.countReading(result)
	if c.metrics != nil {
		c.metrics.SensorsKnown.Set(float64(c.registry.Len()))
	}

	c.logger.Debug("reading applied",
		"sensor_id", reading.ID,
		"result", result,
	)
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping reading consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	<-c.done

	c.logger.Info("reading consumer stopped")
	return nil
}

func (c *Consumer) countReading(result string) {
	if c.metrics != nil {
		c.metrics.ReadingsTotal.WithLabelValues("amqp", result).Inc()
	}
}
