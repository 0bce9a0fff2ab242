// Package model composes the engine, a server pool, two random streams and
// an auditor into an M/M/s queueing model.
package model

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/desim/sim"
	"github.com/healthdes/desim/sim/audit"
)

// ErrModelAlreadyCompleted reports a mutation attempt on a completed model.
// The model state is left unchanged.
var ErrModelAlreadyCompleted = errors.New("model already completed")

// State is the lifecycle state of a Model.
type State string

const (
	StateConfigured State = "configured"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
)

// Stream purposes and the resource name used by the model.
const (
	StreamArrivals  = "arrivals"
	StreamService   = "service"
	ResourceServers = "servers"
)

// EntityRecord is the outcome of one completed service.
// WaitTime + ServiceDuration equals CompletionTime - ArrivalTime.
type EntityRecord struct {
	ID              int     `json:"id"`
	ArrivalTime     float64 `json:"arrival_time"`
	WaitTime        float64 `json:"wait_time"`
	ServiceDuration float64 `json:"service_duration"`
	CompletionTime  float64 `json:"completion_time"`
}

// Model owns every component of one run. Records are appended only while
// Running and are frozen once the model is Completed.
type Model struct {
	cfg   Config
	state State

	engine   *sim.Engine
	streams  *sim.Streams
	arrivals *sim.RandomStream
	service  *sim.RandomStream
	pool     *sim.ResourcePool
	auditor  *audit.Auditor

	arrived int
	records []EntityRecord
	samples []audit.Sample
}

// New validates cfg and builds a model in the Configured state.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine := sim.NewEngine()
	pool, err := sim.NewResourcePool(engine, ResourceServers, cfg.ServerCount)
	if err != nil {
		return nil, err
	}
	streams, err := sim.NewStreams(sim.Entropy(cfg.Entropy), 2)
	if err != nil {
		return nil, err
	}
	arrivals, err := streams.Bind(0, StreamArrivals)
	if err != nil {
		return nil, err
	}
	service, err := streams.Bind(1, StreamService)
	if err != nil {
		return nil, err
	}
	auditor, err := audit.New(cfg.Audit())
	if err != nil {
		return nil, err
	}
	if err := auditor.Register(pool); err != nil {
		return nil, err
	}
	return &Model{
		cfg:      cfg,
		state:    StateConfigured,
		engine:   engine,
		streams:  streams,
		arrivals: arrivals,
		service:  service,
		pool:     pool,
		auditor:  auditor,
	}, nil
}

// Config returns the configuration the model was built with.
func (m *Model) Config() Config { return m.cfg }

// State returns the lifecycle state.
func (m *Model) State() State { return m.state }

// Engine exposes the engine, e.g. to attach hooks before Run.
func (m *Model) Engine() *sim.Engine { return m.engine }

// Pool returns the server pool.
func (m *Model) Pool() *sim.ResourcePool { return m.pool }

// Streams returns the model's random streams.
func (m *Model) Streams() *sim.Streams { return m.streams }

// Arrivals returns the number of entities spawned so far, including those
// still waiting or in service when the run stopped.
func (m *Model) Arrivals() int { return m.arrived }

// Records returns a copy of the completed-entity records.
func (m *Model) Records() []EntityRecord {
	out := make([]EntityRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Samples returns a copy of the audit samples. Empty until Completed.
func (m *Model) Samples() []audit.Sample {
	out := make([]audit.Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Spawn adds a process to the model's engine. Rejected once Completed.
func (m *Model) Spawn(name string, fn sim.ProcessFunc) error {
	if m.state == StateCompleted {
		return fmt.Errorf("%w: cannot spawn %q", ErrModelAlreadyCompleted, name)
	}
	_, err := m.engine.Spawn(name, fn)
	return err
}

// Run drives the model from time zero to RunLength and completes it. A failed
// run keeps no records.
func (m *Model) Run() error {
	switch m.state {
	case StateCompleted:
		return ErrModelAlreadyCompleted
	case StateRunning:
		return fmt.Errorf("model is already running")
	}
	m.state = StateRunning
	logrus.Infof("Starting run: servers=%d, iat=%v, service=%v, run_length=%v, entropy=%d",
		m.cfg.ServerCount, m.cfg.MeanInterArrivalTime, m.cfg.MeanServiceDuration, m.cfg.RunLength, m.cfg.Entropy)

	err := m.start()
	if err == nil {
		err = m.engine.Run(m.cfg.RunLength)
	}
	m.samples = m.auditor.Samples()
	m.state = StateCompleted
	m.engine.Close()

	if err != nil {
		m.records = nil
		m.samples = nil
		return fmt.Errorf("running model: %w", err)
	}
	logrus.Infof("Run completed at t=%v: %d arrivals, %d completed, %d audit samples",
		m.engine.Now(), m.arrived, len(m.records), len(m.samples))
	return nil
}

func (m *Model) start() error {
	if _, err := m.engine.Spawn("arrivals", m.arrivalProcess); err != nil {
		return err
	}
	return m.auditor.Start(m.engine, m.cfg.RunLength)
}

// arrivalProcess spawns one service process per sampled arrival until the
// next arrival would fall after RunLength.
func (m *Model) arrivalProcess(p *sim.Process) error {
	for {
		gap, err := m.arrivals.SampleExponential(m.cfg.MeanInterArrivalTime)
		if err != nil {
			return err
		}
		if p.Now()+gap > m.cfg.RunLength {
			return nil
		}
		if err := p.Timeout(gap); err != nil {
			return err
		}
		m.arrived++
		id := m.arrived
		if _, err := m.engine.Spawn(fmt.Sprintf("entity-%d", id), m.serviceProcess(id)); err != nil {
			return err
		}
	}
}

func (m *Model) serviceProcess(id int) sim.ProcessFunc {
	return func(p *sim.Process) error {
		arrival := p.Now()
		unit, err := m.pool.Request(p)
		if err != nil {
			return err
		}
		start := p.Now()
		duration, err := m.service.SampleExponential(m.cfg.MeanServiceDuration)
		if err != nil {
			return err
		}
		if err := p.Timeout(duration); err != nil {
			return err
		}
		if err := m.pool.Release(unit); err != nil {
			return err
		}
		return m.record(EntityRecord{
			ID:              id,
			ArrivalTime:     arrival,
			WaitTime:        start - arrival,
			ServiceDuration: duration,
			CompletionTime:  p.Now(),
		})
	}
}

func (m *Model) record(r EntityRecord) error {
	if m.state != StateRunning {
		return fmt.Errorf("%w: dropping record of entity %d", ErrModelAlreadyCompleted, r.ID)
	}
	m.records = append(m.records, r)
	logrus.Debugf("[t=%.4f] entity %d done: wait=%.4f service=%.4f", r.CompletionTime, r.ID, r.WaitTime, r.ServiceDuration)
	return nil
}
