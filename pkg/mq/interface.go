package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface defines the interface for message queue operations.
// It exists so that services can be tested against a mock client.
type ClientInterface interface {
	// Push publishes data onto the queue and waits for a broker confirmation.
	// It blocks until the confirmation arrives or the context is done.
	Push(ctx context.Context, data []byte) error

	// UnsafePush publishes to the queue without waiting for confirmation.
	// No guarantee is made that the broker received the message.
	UnsafePush(ctx context.Context, data []byte) error

	// Consume continuously puts queue items on the returned channel.
	// Each delivery must be Ack'd on success or Nack'd on failure.
	Consume() (<-chan amqp.Delivery, error)

	// Close cleanly shuts down the channel and connection.
	Close() error
}

// Ensure Client implements ClientInterface.
var _ ClientInterface = (*Client)(nil)
