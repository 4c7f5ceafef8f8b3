package view

import (
	"context"
	"errors"
	"log/slog"

	"procodus.dev/thermobot/internal/store"
	"procodus.dev/thermobot/pkg/metrics"
)

// DispatcherConfig holds the configuration for the Dispatcher.
type DispatcherConfig struct {
	Logger     *slog.Logger
	Registry   *store.Registry
	Views      *Views
	Reconciler *Reconciler
	Access     Access               // defaults to OpenAccess
	Metrics    *metrics.ViewMetrics // optional
}

// Dispatcher routes inbound interaction events to screen rendering. It is
// the single place the access gate is applied.
type Dispatcher struct {
	logger     *slog.Logger
	registry   *store.Registry
	views      *Views
	reconciler *Reconciler
	access     Access
	metrics    *metrics.ViewMetrics
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg *DispatcherConfig) (*Dispatcher, error) {
	if cfg == nil {
		return nil, errors.New("dispatcher config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Registry == nil {
		return nil, errors.New("registry cannot be nil")
	}

	if cfg.Views == nil {
		return nil, errors.New("views cannot be nil")
	}

	if cfg.Reconciler == nil {
		return nil, errors.New("reconciler cannot be nil")
	}

	access := cfg.Access
	if access == nil {
		access = OpenAccess{}
	}

	return &Dispatcher{
		logger:     cfg.Logger,
		registry:   cfg.Registry,
		views:      cfg.Views,
		reconciler: cfg.Reconciler,
		access:     access,
		metrics:    cfg.Metrics,
	}, nil
}

// HandleCommand processes a chat command. Every known command renders the
// list screen; a user's initial state is the list.
func (d *Dispatcher) HandleCommand(ctx context.Context, userID, command string) error {
	if !d.admit(userID) {
		return nil
	}

	switch command {
	case "/start", "/list", "/termometers":
		return d.renderList(ctx, userID)
	default:
		d.logger.Debug("ignoring unknown command", "user_id", userID, "command", command)
		return nil
	}
}

// HandleCallback processes an inline control interaction carrying a
// navigation token. Unparseable tokens are acknowledged without action.
func (d *Dispatcher) HandleCallback(ctx context.Context, userID, token string) error {
	if !d.admit(userID) {
		return nil
	}

	action, err := DecodeAction(token)
	if err != nil {
		d.logger.Debug("dropping unparseable token", "user_id", userID, "token", token)
		if d.metrics != nil {
			d.metrics.TokenDecodeFailures.Inc()
		}
		return nil
	}

	switch action.Screen {
	case ScreenDetail:
		sensor, ok := d.registry.Find(action.SensorID)
		if !ok {
			// Sensor vanished between renders; fall back to the list.
			d.logger.Warn("token references unknown sensor",
				"user_id", userID, "sensor_id", action.SensorID)
			return d.renderList(ctx, userID)
		}
		return d.renderDetail(ctx, userID, sensor)
	default:
		return d.renderList(ctx, userID)
	}
}

// admit applies the access gate and registers admitted users. Unlisted
// users are dropped silently.
func (d *Dispatcher) admit(userID string) bool {
	if !d.access.Allowed(userID) {
		d.logger.Debug("dropping event from unlisted user", "user_id", userID)
		if d.metrics != nil {
			d.metrics.DroppedEvents.Inc()
		}
		return false
	}

	if err := d.views.Register(userID); err != nil {
		d.logger.Error("failed to register user", "user_id", userID, "error", err)
	}
	return true
}

func (d *Dispatcher) renderList(ctx context.Context, userID string) error {
	content := ListContent(userID, d.registry.List())
	err := d.reconciler.Render(ctx, userID, content)
	d.count(ScreenList, err)
	return err
}

func (d *Dispatcher) renderDetail(ctx context.Context, userID string, sensor *store.Sensor) error {
	content := DetailContent(userID, sensor)
	err := d.reconciler.Render(ctx, userID, content)
	d.count(ScreenDetail, err)
	return err
}

func (d *Dispatcher) count(screen Screen, err error) {
	if d.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	d.metrics.RendersTotal.WithLabelValues(string(screen), result).Inc()
}
