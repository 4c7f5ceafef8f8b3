package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/thermobot/pkg/metrics"
)

// handleReading accepts one sensor reading over HTTP.
func (s *Server) handleReading(w http.ResponseWriter, r *http.Request) {
	var reading Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		s.logger.Warn("rejecting unparseable reading", "error", err)
		s.countReading("http", "rejected")
		http.Error(w, fmt.Sprintf("Error: %v", err), http.StatusBadRequest)
		return
	}

	if err := reading.Validate(); err != nil {
		s.logger.Warn("rejecting invalid reading", "error", err)
		s.countReading("http", "rejected")
		http.Error(w, fmt.Sprintf("Error: %v", err), http.StatusBadRequest)
		return
	}

	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.ApplyDuration.WithLabelValues("http"))
	}
	result, err := applyReading(s.registry, &reading)
	if timer != nil {
		timer.ObserveDuration()
	}

	if err != nil {
		s.logger.Error("failed to persist reading",
			"sensor_id", reading.ID,
			"error", err,
		)
		s.countReading("http", "failed")
		if s.metrics != nil {
			s.metrics.PersistFailures.WithLabelValues("http").Inc()
		}
		http.Error(w, fmt.Sprintf("Error: %v", err), http.StatusInternalServerError)
		return
	}

	s.logger.Info("reading received",
		"sensor_id", reading.ID,
		"name", reading.Name,
		"temperature", reading.Temperature,
		"humidity", reading.Humidity,
		"result", result,
	)
	s.countReading("http", result)
	if s.metrics != nil {
		s.metrics.SensorsKnown.Set(float64(s.registry.Len()))
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Data received"))
}

// handleWebhook accepts a Telegram update and routes it to the dispatcher.
// Dispatch failures are logged, not returned: replying non-200 would make
// Telegram redeliver the update.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var update models.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("dropping unparseable update", "error", err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	ctx := r.Context()

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		userID := strconv.FormatInt(cq.From.ID, 10)

		if err := s.dispatcher.HandleCallback(ctx, userID, cq.Data); err != nil {
			s.logger.Error("callback dispatch failed", "user_id", userID, "error", err)
		}
		// Dismiss the loading state on the pressed control.
		if _, err := s.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
		}); err != nil {
			s.logger.Warn("failed to answer callback query", "error", err)
		}

	case update.Message != nil && update.Message.From != nil:
		userID := strconv.FormatInt(update.Message.From.ID, 10)
		command, _, _ := strings.Cut(update.Message.Text, " ")

		if err := s.dispatcher.HandleCommand(ctx, userID, command); err != nil {
			s.logger.Error("command dispatch failed", "user_id", userID, "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSetup registers the webhook URL with the Bot API.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if _, err := s.bot.SetWebhook(r.Context(), &bot.SetWebhookParams{
		URL: s.config.WebhookURL,
	}); err != nil {
		s.logger.Error("failed to set webhook", "url", s.config.WebhookURL, "error", err)
		http.Error(w, fmt.Sprintf("Error: %v", err), http.StatusBadGateway)
		return
	}

	fmt.Fprintf(w, "Webhook set to %s", s.config.WebhookURL)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /termometer", s.handleReading)
	mux.HandleFunc("POST /{$}", s.handleWebhook)
	mux.HandleFunc("GET /setup", s.handleSetup)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func (s *Server) countReading(source, result string) {
	if s.metrics != nil {
		s.metrics.ReadingsTotal.WithLabelValues(source, result).Inc()
	}
}
