package tracker

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// TelemetryConfig tunes the instrument simulation.
type TelemetryConfig struct {
	// Period between samples
	Period time.Duration

	// MinSpeed and MaxSpeed bound the speed random walk in km/h
	MinSpeed float64
	MaxSpeed float64

	// SpeedStep is the half-width of the per-tick speed change
	SpeedStep float64

	// PushBack is the maximum perturbation used to return an out-of-range
	// speed into the band
	PushBack float64

	// DeliveryNoise is the upper bound of the random extra deliveries per tick
	DeliveryNoise float64

	// Ease is the temperature ease factor
	Ease float64

	// IdleTemperature is the target when no waypoint is loaded
	IdleTemperature float64
}

// DefaultTelemetryConfig returns the standard simulation tuning.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Period:          200 * time.Millisecond,
		MinSpeed:        2000,
		MaxSpeed:        6000,
		SpeedStep:       50,
		PushBack:        100,
		DeliveryNoise:   50,
		Ease:            0.05,
		IdleTemperature: -20,
	}
}

// InitialTelemetry is the sample shown before the first tick.
func InitialTelemetry() TelemetrySample {
	return TelemetrySample{
		SpeedKmh:     3500,
		Delivered:    14_500_000,
		TemperatureC: -15,
	}
}

// TargetTemperature maps latitude to an air temperature: -30°C at the
// poles rising linearly to 25°C at the equator.
func TargetTemperature(lat float64) float64 {
	return -30 + (1-math.Abs(lat)/90)*55
}

// Telemetry produces smoothly varying synthetic instrument readings.
type Telemetry struct {
	cfg TelemetryConfig
	rng *rand.Rand
}

// NewTelemetry creates a simulator. A nil rng uses a randomly seeded source.
func NewTelemetry(cfg TelemetryConfig, rng *rand.Rand) *Telemetry {
	if cfg.Period <= 0 {
		cfg.Period = DefaultTelemetryConfig().Period
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Telemetry{cfg: cfg, rng: rng}
}

// Next computes the sample that follows prev. lat is the current waypoint
// latitude; hasLocation is false when no waypoint is loaded.
func (t *Telemetry) Next(prev TelemetrySample, lat float64, hasLocation bool) TelemetrySample {
	next := prev

	// Speed: bounded random walk with a push back into the band
	next.SpeedKmh += math.Floor(t.rng.Float64()*2*t.cfg.SpeedStep) - t.cfg.SpeedStep
	if next.SpeedKmh < t.cfg.MinSpeed {
		next.SpeedKmh = t.cfg.MinSpeed + t.rng.Float64()*t.cfg.PushBack
	} else if next.SpeedKmh > t.cfg.MaxSpeed {
		next.SpeedKmh = t.cfg.MaxSpeed - t.rng.Float64()*t.cfg.PushBack
	}

	// Deliveries scale with speed and never go backwards
	inc := int64(math.Floor(next.SpeedKmh/10)) + int64(math.Floor(t.rng.Float64()*t.cfg.DeliveryNoise))
	if inc > 0 {
		next.Delivered += inc
	}

	target := t.cfg.IdleTemperature
	if hasLocation {
		target = TargetTemperature(lat)
	}
	temp := prev.TemperatureC + (target-prev.TemperatureC)*t.cfg.Ease
	next.TemperatureC = math.Round(temp*10) / 10

	return next
}

// Run updates the state's telemetry every period until ctx is cancelled.
func (t *Telemetry) Run(ctx context.Context, s *State) error {
	ticker := time.NewTicker(t.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Tick(s)
		}
	}
}

// Tick advances the state's telemetry by one sample.
func (t *Telemetry) Tick(s *State) TelemetrySample {
	wp, ok := s.Current()
	next := t.Next(s.Telemetry(), wp.Lat, ok)
	s.SetTelemetry(next)
	return next
}
