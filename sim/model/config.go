package model

import (
	"fmt"
	"math"

	"github.com/healthdes/desim/sim"
	"github.com/healthdes/desim/sim/audit"
)

// Config is the construction input of an M/M/s run.
// Loaded from YAML by the cmd package; every field has a yaml key.
type Config struct {
	MeanInterArrivalTime float64  `yaml:"mean_interarrival_time"` // mean gap between arrivals (> 0)
	MeanServiceDuration  float64  `yaml:"mean_service_duration"`  // mean time a server is held (> 0)
	ServerCount          int      `yaml:"server_count"`           // pool capacity (>= 1)
	RunLength            float64  `yaml:"run_length"`             // simulated stop time (>= 0; 0 is an empty run)
	Entropy              int64    `yaml:"entropy"`                // master seed of all streams
	FirstObservation     *float64 `yaml:"first_observation,omitempty"`
	AuditInterval        *float64 `yaml:"audit_interval,omitempty"`
}

// DefaultConfig returns the baseline clinic scenario: five servers, an arrival
// every 4 time units and 10 units of service on average, over one day of
// minutes, audited every 120 minutes.
func DefaultConfig() Config {
	interval := 120.0
	return Config{
		MeanInterArrivalTime: 4,
		MeanServiceDuration:  10,
		ServerCount:          5,
		RunLength:            1440,
		Entropy:              42,
		AuditInterval:        &interval,
	}
}

// Audit returns the auditor cadence part of the configuration.
func (c Config) Audit() audit.Config {
	return audit.Config{FirstObservation: c.FirstObservation, Interval: c.AuditInterval}
}

func positiveFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s must be > 0, got %v", sim.ErrConfiguration, name, v)
	}
	return nil
}

// Validate checks every field. The first violation is returned.
func (c Config) Validate() error {
	if err := positiveFinite("mean_interarrival_time", c.MeanInterArrivalTime); err != nil {
		return err
	}
	if err := positiveFinite("mean_service_duration", c.MeanServiceDuration); err != nil {
		return err
	}
	if c.ServerCount < 1 {
		return fmt.Errorf("%w: server_count must be >= 1, got %d", sim.ErrConfiguration, c.ServerCount)
	}
	if math.IsNaN(c.RunLength) || math.IsInf(c.RunLength, 0) || c.RunLength < 0 {
		return fmt.Errorf("%w: run_length must be >= 0, got %v", sim.ErrConfiguration, c.RunLength)
	}
	return c.Audit().Validate()
}
