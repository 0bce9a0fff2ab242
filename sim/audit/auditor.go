// Package audit implements a background sampler that records point-in-time
// state of ResourcePools on a fixed cadence.
package audit

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/healthdes/desim/sim"
)

// Config sets when the auditor fires. Both fields nil means the auditor is
// inert. A nil FirstObservation with an Interval starts sampling at Interval;
// a nil Interval with a FirstObservation takes a single sample.
type Config struct {
	FirstObservation *float64 `yaml:"first_observation,omitempty"`
	Interval         *float64 `yaml:"audit_interval,omitempty"`
}

// Validate checks the cadence parameters.
func (c Config) Validate() error {
	if c.FirstObservation != nil {
		f := *c.FirstObservation
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return fmt.Errorf("%w: first observation must be >= 0, got %v", sim.ErrConfiguration, f)
		}
	}
	if c.Interval != nil {
		iv := *c.Interval
		if math.IsNaN(iv) || math.IsInf(iv, 0) || iv <= 0 {
			return fmt.Errorf("%w: audit interval must be > 0, got %v", sim.ErrConfiguration, iv)
		}
	}
	return nil
}

// Inert reports whether the auditor will record nothing.
func (c Config) Inert() bool {
	return c.FirstObservation == nil && c.Interval == nil
}

// Sample is one observation of one resource.
type Sample struct {
	Time           float64 `json:"time"`
	Resource       string  `json:"resource"`
	QueueLength    int     `json:"queue_length"`
	NumberInSystem int     `json:"number_in_system"`
}

// Summary is the arithmetic mean of a resource's samples. The means are not
// weighted by the time between samples.
type Summary struct {
	Samples            int     `json:"samples"`
	MeanQueueLength    float64 `json:"mean_queue_length"`
	MeanNumberInSystem float64 `json:"mean_number_in_system"`
}

// series accumulates a single resource's observations.
type series struct {
	pool        *sim.ResourcePool
	queueLength []float64
	inSystem    []float64
}

// Auditor samples registered pools on its own process.
type Auditor struct {
	cfg     Config
	order   []string
	series  map[string]*series
	samples []Sample
	started bool
}

// New creates an auditor with the given cadence.
func New(cfg Config) (*Auditor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Auditor{
		cfg:    cfg,
		series: make(map[string]*series),
	}, nil
}

// Register adds pool to the set sampled at each fire. Samples for one fire
// follow registration order.
func (a *Auditor) Register(pool *sim.ResourcePool) error {
	if pool == nil {
		return fmt.Errorf("%w: nil resource pool", sim.ErrConfiguration)
	}
	if a.started {
		return fmt.Errorf("%w: cannot register %s after the auditor started", sim.ErrConfiguration, pool.Name())
	}
	if _, ok := a.series[pool.Name()]; ok {
		return fmt.Errorf("%w: resource %q registered twice", sim.ErrConfiguration, pool.Name())
	}
	a.order = append(a.order, pool.Name())
	a.series[pool.Name()] = &series{pool: pool}
	return nil
}

// fireTime reports the k-th fire time and whether a k-th fire exists.
func (a *Auditor) fireTime(k int) (float64, bool) {
	switch {
	case a.cfg.Interval == nil:
		return *a.cfg.FirstObservation, k == 0
	case a.cfg.FirstObservation == nil:
		return float64(k+1) * *a.cfg.Interval, true
	default:
		return *a.cfg.FirstObservation + float64(k)*(*a.cfg.Interval), true
	}
}

// Start spawns the sampling process on engine. Fires after until are never
// scheduled. An inert auditor spawns nothing.
func (a *Auditor) Start(engine *sim.Engine, until float64) error {
	if a.started {
		return fmt.Errorf("%w: auditor already started", sim.ErrConfiguration)
	}
	a.started = true
	if a.cfg.Inert() {
		logrus.Debugf("auditor inert; no samples will be recorded")
		return nil
	}
	_, err := engine.Spawn("auditor", func(p *sim.Process) error {
		for k := 0; ; k++ {
			t, ok := a.fireTime(k)
			if !ok || t > until {
				return nil
			}
			if err := p.WaitUntil(t); err != nil {
				return err
			}
			a.observe(p.Now())
		}
	})
	return err
}

func (a *Auditor) observe(now float64) {
	for _, name := range a.order {
		s := a.series[name]
		q := s.pool.QueueLength()
		n := s.pool.NumberInSystem()
		s.queueLength = append(s.queueLength, float64(q))
		s.inSystem = append(s.inSystem, float64(n))
		a.samples = append(a.samples, Sample{Time: now, Resource: name, QueueLength: q, NumberInSystem: n})
	}
}

// Samples returns a copy of every recorded sample in fire order.
func (a *Auditor) Samples() []Sample {
	out := make([]Sample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Resources returns the registered resource names in registration order.
func (a *Auditor) Resources() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Summaries reduces the samples of each registered resource to means.
// A resource with no samples reports zero means.
func (a *Auditor) Summaries() map[string]Summary {
	out := make(map[string]Summary, len(a.series))
	for name, s := range a.series {
		sum := Summary{Samples: len(s.queueLength)}
		if sum.Samples > 0 {
			sum.MeanQueueLength = stat.Mean(s.queueLength, nil)
			sum.MeanNumberInSystem = stat.Mean(s.inSystem, nil)
		}
		out[name] = sum
	}
	return out
}

// Summarize reduces an arbitrary sample collection by resource name.
func Summarize(samples []Sample) map[string]Summary {
	queue := make(map[string][]float64)
	inSystem := make(map[string][]float64)
	for _, s := range samples {
		queue[s.Resource] = append(queue[s.Resource], float64(s.QueueLength))
		inSystem[s.Resource] = append(inSystem[s.Resource], float64(s.NumberInSystem))
	}
	out := make(map[string]Summary, len(queue))
	for name, q := range queue {
		out[name] = Summary{
			Samples:            len(q),
			MeanQueueLength:    stat.Mean(q, nil),
			MeanNumberInSystem: stat.Mean(inSystem[name], nil),
		}
	}
	return out
}
