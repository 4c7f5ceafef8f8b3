// Package store owns the sensor catalog and the bounded per-sensor reading
// history, persisted as one CSV file per sensor.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// MaxRecords caps the per-sensor history at one reading per minute for 24h.
const MaxRecords = 1440

// timestampLayout matches the wall-clock format used in the record files.
const timestampLayout = "02-01-06 15:04:05"

// recordColumns is the header of a sensor record file.
var recordColumns = []string{"name", "temperature", "humidity", "timestamp"}

// Record is one immutable historical reading snapshot.
type Record struct {
	Name        string
	Temperature float64
	Humidity    float64
	Timestamp   string
}

// Sensor is one thermometer with its current reading and bounded history.
// All mutation goes through Update; writes on the same sensor are mutually
// exclusive.
type Sensor struct {
	mu          sync.Mutex
	id          string
	name        string
	temperature float64
	humidity    float64
	records     []Record
	path        string

	// now is replaceable in tests.
	now func() time.Time
}

// NewSensor creates a sensor that is not yet attached to a registry.
// It holds no records until it is registered or loaded.
func NewSensor(id, name string, temperature, humidity float64) *Sensor {
	return &Sensor{
		id:          id,
		name:        name,
		temperature: temperature,
		humidity:    humidity,
		now:         time.Now,
	}
}

// newSensorAt creates a sensor bound to an existing record file.
func newSensorAt(id, path string) *Sensor {
	return &Sensor{
		id:   id,
		path: path,
		now:  time.Now,
	}
}

// ID returns the sensor identity.
func (s *Sensor) ID() string { return s.id }

// Name returns the current display name.
func (s *Sensor) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Temperature returns the most recent temperature in °C.
func (s *Sensor) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature
}

// Humidity returns the most recent relative humidity in %.
func (s *Sensor) Humidity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.humidity
}

// Records returns a copy of the record history, oldest first.
func (s *Sensor) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Update applies new current values, appends a record built from them, and
// rewrites the record file before returning. A failed write is returned to
// the caller; the in-memory state still reflects the new reading.
func (s *Sensor) Update(temperature, humidity float64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.temperature = temperature
	s.humidity = humidity
	s.name = name
	s.appendRecord()

	return s.save()
}

// appendRecord snapshots the current values, evicting the oldest record when
// the history exceeds MaxRecords. Caller must hold s.mu.
func (s *Sensor) appendRecord() {
	s.records = append(s.records, Record{
		Name:        s.name,
		Temperature: s.temperature,
		Humidity:    s.humidity,
		Timestamp:   s.now().Format(timestampLayout),
	})
	if len(s.records) > MaxRecords {
		s.records = s.records[1:]
	}
}

// save rewrites the whole record file. Caller must hold s.mu.
func (s *Sensor) save() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create record file for sensor %s: %w", s.id, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(recordColumns); err != nil {
		_ = f.Close()
		return fmt.Errorf("write record header for sensor %s: %w", s.id, err)
	}
	for _, r := range s.records {
		row := []string{
			r.Name,
			strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			strconv.FormatFloat(r.Humidity, 'f', -1, 64),
			r.Timestamp,
		}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("write record for sensor %s: %w", s.id, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush records for sensor %s: %w", s.id, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close record file for sensor %s: %w", s.id, err)
	}

	return nil
}

// Load reads the record file and seeds the current values from the last
// record. A missing file leaves the sensor with an empty history; a
// malformed row is a data-corruption error.
func (s *Sensor) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.records = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("open record file for sensor %s: %w", s.id, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(recordColumns)

	// Header row first.
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			s.records = nil
			return nil
		}
		return fmt.Errorf("read record header for sensor %s: %w", s.id, err)
	}

	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read records for sensor %s: %w", s.id, err)
		}

		temperature, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return fmt.Errorf("sensor %s record %d: bad temperature %q: %w", s.id, len(records)+1, row[1], err)
		}
		humidity, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return fmt.Errorf("sensor %s record %d: bad humidity %q: %w", s.id, len(records)+1, row[2], err)
		}

		records = append(records, Record{
			Name:        row[0],
			Temperature: temperature,
			Humidity:    humidity,
			Timestamp:   row[3],
		})
	}

	s.records = records
	if len(records) > 0 {
		last := records[len(records)-1]
		s.name = last.Name
		s.temperature = last.Temperature
		s.humidity = last.Humidity
	}

	return nil
}

// recordFilePath derives the storage unit name from the sensor identity so
// lookups need no index file.
func recordFilePath(dir, id string) string {
	return filepath.Join(dir, id+".csv")
}
