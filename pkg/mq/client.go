// Package mq provides a RabbitMQ client with automatic reconnection.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/thermobot/pkg/metrics"
)

// Client is a RabbitMQ client that manages its connection in the background
// and reconnects after connection or channel failures.
type Client struct {
	mu              sync.Mutex
	logger          *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	ready           bool
	metrics         *metrics.MQMetrics // optional
}

const (
	// Delay before redialing after a connection failure.
	reconnectDelay = 5 * time.Second

	// Delay before reopening the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Initial and maximum backoff for Push retries.
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 10 * time.Second

	// Push gives up after this many failed attempts.
	maxRetryAttempts = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// New creates a new client and starts connecting to the server in the
// background.
func New(queueName, addr string, l *slog.Logger) *Client {
	client := Client{
		logger:    l,
		queueName: queueName,
		done:      make(chan struct{}),
	}
	go client.handleReconnect(addr)
	return &client
}

// SetMetrics sets the metrics collector for this client.
// Call it before the client starts processing messages.
func (client *Client) SetMetrics(m *metrics.MQMetrics) {
	client.metrics = m
}

// handleReconnect dials the server and, on connection loss, keeps retrying
// until the client is closed.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.logger.Info("attempting to connect", "queue", client.queueName)

		if client.metrics != nil {
			client.metrics.ReconnectAttempts.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.logger.Error("failed to connect, retrying", "error", err)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			break
		}
	}
}

// connect creates a new AMQP connection.
func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if client.metrics != nil {
			client.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	client.mu.Lock()
	client.connection = conn
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.mu.Unlock()
	conn.NotifyClose(client.notifyConnClose)

	client.logger.Info("connected")
	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(1)
	}

	return conn, nil
}

// handleReInit opens the channel and re-opens it after channel exceptions.
// Returns true when the client is shutting down.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		if err := client.init(conn); err != nil {
			client.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.logger.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.logger.Info("channel closed, re-running init")
		}
	}
}

// init opens a channel in confirm mode and declares the queue.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		client.queueName,
		false, // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return err
	}

	client.mu.Lock()
	client.channel = ch
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	ch.NotifyClose(client.notifyChanClose)
	ch.NotifyPublish(client.notifyConfirm)
	client.ready = true
	client.mu.Unlock()

	client.logger.Info("client init done")

	return nil
}

// current snapshots the channel and confirmation feed under the lock.
// Returns false while disconnected.
func (client *Client) current() (*amqp.Channel, chan amqp.Confirmation, bool) {
	client.mu.Lock()
	defer client.mu.Unlock()

	if !client.ready {
		return nil, nil, false
	}
	return client.channel, client.notifyConfirm, true
}

func (client *Client) setReady(ready bool) {
	client.mu.Lock()
	client.ready = ready
	client.mu.Unlock()
}

// Push publishes data onto the queue and waits for a broker confirmation.
// When the client is disconnected it waits with exponential backoff for the
// background reconnect to succeed, and fails after maxRetryAttempts.
func (client *Client) Push(ctx context.Context, data []byte) error {
	var timer *prometheus.Timer
	if client.metrics != nil {
		timer = prometheus.NewTimer(client.metrics.PushDuration.WithLabelValues(client.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff
	retries := 0

	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.done:
			return errShutdown
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			retries++
			return nil
		}
	}

	for {
		if retries >= maxRetryAttempts {
			if client.metrics != nil {
				client.metrics.PushFailures.WithLabelValues(client.queueName, "max_retries_exceeded").Inc()
			}
			return errMaxRetriesExceeded
		}

		ch, confirms, ok := client.current()
		if !ok {
			client.logger.Info("not connected, waiting for reconnection",
				"backoff", backoff, "retries", retries)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		if err := client.publish(ctx, ch, data); err != nil {
			client.logger.Error("push failed, retrying", "error", err, "retries", retries)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			if client.metrics != nil {
				client.metrics.PushFailures.WithLabelValues(client.queueName, "context_canceled").Inc()
			}
			return ctx.Err()
		case confirm := <-confirms:
			if confirm.Ack {
				if client.metrics != nil {
					client.metrics.MessagesPushed.WithLabelValues(client.queueName).Inc()
				}
				client.logger.Debug("push confirmed", "delivery_tag", confirm.DeliveryTag)
				return nil
			}
			client.logger.Warn("push not acknowledged, retrying", "delivery_tag", confirm.DeliveryTag)
			if err := wait(); err != nil {
				return err
			}
		}
	}
}

// UnsafePush publishes to the queue without waiting for confirmation.
func (client *Client) UnsafePush(ctx context.Context, data []byte) error {
	ch, _, ok := client.current()
	if !ok {
		return errNotConnected
	}
	return client.publish(ctx, ch, data)
}

func (client *Client) publish(ctx context.Context, ch *amqp.Channel, data []byte) error {
	return ch.PublishWithContext(
		ctx,
		"",               // exchange
		client.queueName, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
		},
	)
}

// Consume continuously puts queue items on the returned channel.
// Each delivery must be Ack'd on success or Nack'd on failure, otherwise
// data builds up on the server.
func (client *Client) Consume() (<-chan amqp.Delivery, error) {
	ch, _, ok := client.current()
	if !ok {
		return nil, errNotConnected
	}

	if err := ch.Qos(
		1,     // prefetchCount
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return ch.Consume(
		client.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
}

// Close cleanly shuts down the channel and connection.
func (client *Client) Close() error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if !client.ready {
		return errAlreadyClosed
	}
	close(client.done)

	if err := client.channel.Close(); err != nil {
		return err
	}
	if err := client.connection.Close(); err != nil {
		return err
	}

	client.ready = false
	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(0)
	}

	return nil
}
