// Package producer generates synthetic thermometer readings and publishes
// them to the ingestion queue.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"procodus.dev/thermobot/internal/ingest"
	"procodus.dev/thermobot/pkg/generator"
	"procodus.dev/thermobot/pkg/mq"
)

// Producer owns a fleet of synthetic thermometers and publishes one reading
// per thermometer per tick.
type Producer struct {
	logger       *slog.Logger
	mqClient     mq.ClientInterface
	thermometers []*generator.Thermometer
	generators   []*generator.ReadingGenerator
}

// Config holds the configuration for the Producer.
type Config struct {
	Logger   *slog.Logger
	MQClient mq.ClientInterface

	// Count is the number of synthetic thermometers.
	Count int
}

// New creates a producer with Count synthetic thermometers.
func New(cfg *Config) (*Producer, error) {
	if cfg == nil {
		return nil, errors.New("producer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.MQClient == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	if cfg.Count <= 0 {
		return nil, errors.New("thermometer count must be positive")
	}

	thermometers := make([]*generator.Thermometer, 0, cfg.Count)
	generators := make([]*generator.ReadingGenerator, 0, cfg.Count)
	for range cfg.Count {
		t := generator.NewThermometer()
		if t == nil {
			return nil, errors.New("failed to generate thermometer")
		}
		thermometers = append(thermometers, t)
		generators = append(generators, generator.NewReadingGenerator())
	}

	return &Producer{
		logger:       cfg.Logger,
		mqClient:     cfg.MQClient,
		thermometers: thermometers,
		generators:   generators,
	}, nil
}

// Thermometers returns the synthetic fleet.
func (p *Producer) Thermometers() []*generator.Thermometer {
	return p.thermometers
}

// PublishReadings publishes one current reading per thermometer.
// It keeps going past individual failures and returns the last error.
func (p *Producer) PublishReadings(ctx context.Context) error {
	now := time.Now()

	var lastErr error
	for i, t := range p.thermometers {
		g := p.generators[i]
		temperature := g.Temperature(now)

		reading := ingest.Reading{
			ID:          t.ID,
			Name:        t.Name,
			Temperature: temperature,
			Humidity:    g.Humidity(now, temperature),
		}

		payload, err := json.Marshal(reading)
		if err != nil {
			lastErr = fmt.Errorf("marshal reading for %s: %w", t.ID, err)
			p.logger.Error("failed to marshal reading", "sensor_id", t.ID, "error", err)
			continue
		}

		if err := p.mqClient.Push(ctx, payload); err != nil {
			lastErr = fmt.Errorf("publish reading for %s: %w", t.ID, err)
			p.logger.Error("failed to publish reading", "sensor_id", t.ID, "error", err)
			continue
		}

		p.logger.Debug("published reading",
			"sensor_id", t.ID,
			"name", t.Name,
			"temperature", reading.Temperature,
			"humidity", reading.Humidity,
		)
	}

	return lastErr
}
