// Package ingest receives sensor readings over HTTP and AMQP and serves the
// chat webhook.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"procodus.dev/thermobot/internal/store"
)

// Reading is the JSON envelope a thermometer (or gateway) submits.
type Reading struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Validate checks the fields required to route and display the reading.
// The id names the sensor's record file, so ids that could resolve outside
// the records directory are rejected.
func (r *Reading) Validate() error {
	if r.ID == "" {
		return errors.New("reading is missing id")
	}
	if strings.ContainsAny(r.ID, `/\`) || strings.Contains(r.ID, "..") {
		return fmt.Errorf("reading id %q contains path characters", r.ID)
	}
	if r.Name == "" {
		return errors.New("reading is missing name")
	}
	return nil
}

// applyReading registers an unseen sensor or updates a known one, persisting
// either way. Returns "created" or "updated" for metric labels.
func applyReading(registry *store.Registry, r *Reading) (string, error) {
	if _, ok := registry.Find(r.ID); ok {
		return "updated", registry.Update(r.ID, r.Temperature, r.Humidity, r.Name)
	}

	err := registry.Add(store.NewSensor(r.ID, r.Name, r.Temperature, r.Humidity))
	if errors.Is(err, store.ErrExists) {
		// Lost a registration race with the other ingestion path.
		return "updated", registry.Update(r.ID, r.Temperature, r.Humidity, r.Name)
	}
	return "created", err
}
