package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"procodus.dev/thermobot/pkg/metrics"
)

// ErrNotModified reports that an edit would produce no visible change.
// The reconciler treats it as a successful edit.
var ErrNotModified = errors.New("view content unchanged")

// Button is one selectable control with its navigation token.
type Button struct {
	Label string
	Token string
}

// Content is the desired state of a user's view: text plus an ordered grid
// of controls.
type Content struct {
	Text     string
	Keyboard [][]Button
}

// Surface is the remote presentation surface the reconciler drives.
// Implementations map these calls onto the chat transport.
type Surface interface {
	// Send delivers a fresh view to the user and returns the identities of
	// the resulting message and chat.
	Send(ctx context.Context, userID string, c Content) (messageID, chatID string, err error)

	// Edit replaces the content of an existing view in place. It returns
	// ErrNotModified when the content is already what was requested.
	Edit(ctx context.Context, chatID, messageID string, c Content) error

	// Delete removes an existing view.
	Delete(ctx context.Context, chatID, messageID string) error
}

// ReconcilerConfig holds the configuration for the Reconciler.
type ReconcilerConfig struct {
	Logger  *slog.Logger
	Views   *Views
	Surface Surface
	Metrics *metrics.ViewMetrics // optional
}

// Reconciler makes the remote surface show exactly the desired content for
// a user while keeping at most one visible view per user.
type Reconciler struct {
	logger  *slog.Logger
	views   *Views
	surface Surface
	metrics *metrics.ViewMetrics
}

// NewReconciler creates a new Reconciler.
func NewReconciler(cfg *ReconcilerConfig) (*Reconciler, error) {
	if cfg == nil {
		return nil, errors.New("reconciler config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Views == nil {
		return nil, errors.New("views cannot be nil")
	}

	if cfg.Surface == nil {
		return nil, errors.New("surface cannot be nil")
	}

	return &Reconciler{
		logger:  cfg.Logger,
		views:   cfg.Views,
		surface: cfg.Surface,
		metrics: cfg.Metrics,
	}, nil
}

// Render reconciles the user's view to the desired content: edit in place
// when a previous view exists, otherwise delete-and-resend. View state is
// only updated after a successful send; a failed send leaves it untouched.
func (r *Reconciler) Render(ctx context.Context, userID string, c Content) error {
	last, ok := r.views.Find(userID)

	if ok && last.LastMessageID != "" {
		err := r.surface.Edit(ctx, last.ChatID, last.LastMessageID, c)
		if err == nil || errors.Is(err, ErrNotModified) {
			return nil
		}

		r.logger.Warn("edit failed, replacing view",
			"user_id", userID,
			"message_id", last.LastMessageID,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.EditFallbacks.Inc()
		}

		// Best effort: a view we fail to delete is orphaned, not fatal.
		if derr := r.surface.Delete(ctx, last.ChatID, last.LastMessageID); derr != nil {
			r.logger.Warn("failed to delete stale view",
				"user_id", userID,
				"message_id", last.LastMessageID,
				"error", derr,
			)
		}
	}

	messageID, chatID, err := r.surface.Send(ctx, userID, c)
	if err != nil {
		return fmt.Errorf("send view to user %s: %w", userID, err)
	}

	if err := r.views.SetLast(userID, messageID, chatID); err != nil {
		return fmt.Errorf("record view for user %s: %w", userID, err)
	}

	return nil
}
