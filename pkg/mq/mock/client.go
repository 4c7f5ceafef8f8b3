// Package mock provides a mock implementation of the mq client interface for testing.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/thermobot/pkg/mq"
)

// Client is a mock implementation of mq.ClientInterface.
// It records calls and allows configuring return values.
type Client struct {
	mu sync.Mutex

	// PushFunc is called when Push is invoked. If nil, Push returns PushError.
	PushFunc func(ctx context.Context, data []byte) error
	// PushError is returned by Push if PushFunc is nil.
	PushError error
	// Pushed holds the payloads of all Push calls.
	Pushed [][]byte

	// ConsumeChannel is returned by Consume.
	ConsumeChannel <-chan amqp.Delivery
	// ConsumeError is returned by Consume.
	ConsumeError error
	// ConsumeCalls counts calls to Consume.
	ConsumeCalls int

	// CloseError is returned by Close.
	CloseError error
	// CloseCalls counts calls to Close.
	CloseCalls int
}

var _ mq.ClientInterface = (*Client)(nil)

// New creates a mock client with default behavior (no errors).
func New() *Client {
	return &Client{
		ConsumeChannel: make(chan amqp.Delivery),
	}
}

// Push implements mq.ClientInterface.
func (m *Client) Push(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Pushed = append(m.Pushed, data)
	if m.PushFunc != nil {
		return m.PushFunc(ctx, data)
	}
	return m.PushError
}

// UnsafePush implements mq.ClientInterface.
func (m *Client) UnsafePush(ctx context.Context, data []byte) error {
	return m.Push(ctx, data)
}

// Consume implements mq.ClientInterface.
func (m *Client) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++
	return m.ConsumeChannel, m.ConsumeError
}

// Close implements mq.ClientInterface.
func (m *Client) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	return m.CloseError
}

// PushedPayloads returns a copy of all recorded Push payloads.
func (m *Client) PushedPayloads() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.Pushed))
	copy(out, m.Pushed)
	return out
}
