package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ErrNotFound is returned when a sensor identity is not in the registry.
var ErrNotFound = errors.New("sensor not found")

// ErrExists is returned when registering an identity that is already known.
var ErrExists = errors.New("sensor already registered")

// RegistryConfig holds the configuration for the Registry.
type RegistryConfig struct {
	Logger *slog.Logger

	// Dir is the directory holding one record file per sensor.
	Dir string
}

// Registry is the in-memory catalog of known sensors. Sensors are never
// removed during the process lifetime.
type Registry struct {
	mu     sync.RWMutex
	logger *slog.Logger
	dir    string
	byID   map[string]*Sensor
	order  []string
}

// NewRegistry creates a new Registry.
func NewRegistry(cfg *RegistryConfig) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("registry config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Dir == "" {
		return nil, errors.New("records directory cannot be empty")
	}

	return &Registry{
		logger: cfg.Logger,
		dir:    cfg.Dir,
		byID:   make(map[string]*Sensor),
	}, nil
}

// LoadAll enumerates the record files in the records directory and loads one
// sensor per file. Run once at startup.
func (r *Registry) LoadAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read records directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".csv")
		sensor := newSensorAt(id, recordFilePath(r.dir, id))
		if err := sensor.Load(); err != nil {
			return fmt.Errorf("load sensor %s: %w", id, err)
		}

		r.byID[id] = sensor
		r.order = append(r.order, id)

		r.logger.Info("loaded sensor",
			"sensor_id", id,
			"name", sensor.Name(),
			"records", len(sensor.records),
		)
	}

	r.logger.Info("sensor registry loaded", "sensors", len(r.order))
	return nil
}

// Find returns the sensor with the given identity, or false when unknown.
func (r *Registry) Find(id string) (*Sensor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	return s, ok
}

// Add registers a brand-new sensor. Registration counts as the first
// reading: one record is written and persisted immediately.
// Returns an error if the identity is already registered.
func (r *Registry) Add(s *Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.id]; ok {
		return fmt.Errorf("sensor %s: %w", s.id, ErrExists)
	}

	s.mu.Lock()
	s.path = recordFilePath(r.dir, s.id)
	s.appendRecord()
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	r.byID[s.id] = s
	r.order = append(r.order, s.id)

	r.logger.Info("registered sensor", "sensor_id", s.id, "name", s.Name())
	return nil
}

// Update applies a new reading to a known sensor and persists it.
// Returns ErrNotFound when the identity is unknown; an update never creates
// a sensor.
func (r *Registry) Update(id string, temperature, humidity float64, name string) error {
	r.mu.RLock()
	s, ok := r.byID[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("update sensor %s: %w", id, ErrNotFound)
	}

	return s.Update(temperature, humidity, name)
}

// List returns a snapshot of the current sensors in registration order.
// The returned slice is the caller's to keep; later registrations are not
// observed through it.
func (r *Registry) List() []*Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Sensor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
