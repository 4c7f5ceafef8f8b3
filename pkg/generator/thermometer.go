// Package generator produces synthetic thermometer readings for load and
// demo runs.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// roomNames are plausible placements for a household thermometer.
var roomNames = []string{
	"Kitchen", "Living Room", "Bedroom", "Nursery",
	"Garage", "Greenhouse", "Attic", "Basement", "Office",
}

// Thermometer describes one synthetic device.
type Thermometer struct {
	ID   string `fake:"{uuid}"`
	Name string
}

// NewThermometer creates a thermometer with a random id and room name.
func NewThermometer() *Thermometer {
	var t Thermometer
	if err := gofakeit.Struct(&t); err != nil {
		return nil
	}
	t.Name = fmt.Sprintf("%s %s", gofakeit.RandomString(roomNames), gofakeit.AdjectiveDescriptive())
	return &t
}

// ReadingGenerator produces temperature and humidity values with a daily
// cycle and correlated noise for a single thermometer.
type ReadingGenerator struct {
	baselineTemp     float64
	baselineHumidity float64
	noise            float64
}

// NewReadingGenerator creates a generator with randomized baselines.
// Note: math/rand is acceptable for simulation data.
func NewReadingGenerator() *ReadingGenerator {
	return &ReadingGenerator{
		baselineTemp:     18.0 + rand.Float64()*8,  // #nosec G404 - simulation data
		baselineHumidity: 45.0 + rand.Float64()*20, // #nosec G404 - simulation data
		noise:            rand.Float64() * 2,       // #nosec G404 - simulation data
	}
}

// Temperature returns a temperature in °C with a daily cycle peaking in the
// early afternoon.
func (g *ReadingGenerator) Temperature(t time.Time) float64 {
	hour := float64(t.Hour())

	dailyCycle := 4 * math.Sin((hour-6)*math.Pi/12)
	noise := (rand.Float64() - 0.5) * g.noise // #nosec G404 - simulation data

	return g.baselineTemp + dailyCycle + noise
}

// Humidity returns a relative humidity in % inversely correlated with the
// given temperature, clamped to realistic bounds.
func (g *ReadingGenerator) Humidity(t time.Time, temperature float64) float64 {
	hour := float64(t.Hour())

	dailyCycle := -3 * math.Sin((hour-6)*math.Pi/12)
	tempEffect := -(temperature - g.baselineTemp) * 1.5
	noise := (rand.Float64() - 0.5) * g.noise * 0.5 // #nosec G404 - simulation data

	humidity := g.baselineHumidity + dailyCycle + tempEffect + noise

	return math.Max(20, math.Min(95, humidity))
}
