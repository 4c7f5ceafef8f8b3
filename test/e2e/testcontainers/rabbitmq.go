// Package testcontainers starts throwaway broker containers for the
// end-to-end suites.
package testcontainers

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultRabbitMQImage = "rabbitmq:3-management-alpine"

// RabbitMQConfig holds configuration for the RabbitMQ test container.
// Zero values fall back to the guest/guest defaults of the stock image.
type RabbitMQConfig struct {
	// Image overrides the broker image.
	Image string
	// User is the RabbitMQ username.
	User string
	// Password is the RabbitMQ password.
	Password string
	// ContainerName names the container; empty lets Docker pick one.
	ContainerName string
}

func (c *RabbitMQConfig) withDefaults() *RabbitMQConfig {
	out := RabbitMQConfig{}
	if c != nil {
		out = *c
	}
	if out.Image == "" {
		out.Image = defaultRabbitMQImage
	}
	if out.User == "" {
		out.User = "guest"
	}
	if out.Password == "" {
		out.Password = "guest"
	}
	return &out
}

// StartRabbitMQ starts a RabbitMQ container and returns it together with
// the AMQP connection URL for the mapped broker port.
func StartRabbitMQ(ctx context.Context, config *RabbitMQConfig) (testcontainers.Container, string, error) {
	cfg := config.withDefaults()

	req := testcontainers.ContainerRequest{
		Image:        cfg.Image,
		Name:         cfg.ContainerName,
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": cfg.User,
			"RABBITMQ_DEFAULT_PASS": cfg.Password,
		},
		// The port opens before the broker accepts logins; wait for both.
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5672/tcp"),
			wait.ForLog("Server startup complete"),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start rabbitmq container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("resolve rabbitmq host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5672")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("resolve rabbitmq port: %w", err)
	}

	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.User, cfg.Password, host, port.Port())
	return container, url, nil
}
