// Package results reduces the frozen output of a completed model run into
// mean-based summary statistics.
package results

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/healthdes/desim/sim"
	"github.com/healthdes/desim/sim/audit"
	"github.com/healthdes/desim/sim/model"
)

// ErrEmptyResults reports aggregation over a run in which no entity
// completed service. It is not fatal; the caller decides whether the run is
// degenerate.
var ErrEmptyResults = errors.New("no completed entities")

// Summary is the scalar summary of one run.
type Summary struct {
	Entities    int                      `json:"entities"`
	MeanWait    float64                  `json:"mean_wait"`
	MeanService float64                  `json:"mean_service"`
	Utilisation float64                  `json:"utilisation"`
	Resources   map[string]audit.Summary `json:"resources"`
}

// Summarize computes the summary of a run of runLength with capacity servers.
// Utilisation is total service time over runLength × capacity.
func Summarize(records []model.EntityRecord, samples []audit.Sample, runLength float64, capacity int) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrEmptyResults
	}
	if !(runLength > 0) || math.IsInf(runLength, 0) || capacity < 1 {
		return nil, fmt.Errorf("%w: utilisation needs run length > 0 and capacity >= 1, got %v and %d",
			sim.ErrConfiguration, runLength, capacity)
	}
	waits := make([]float64, len(records))
	services := make([]float64, len(records))
	for i, r := range records {
		waits[i] = r.WaitTime
		services[i] = r.ServiceDuration
	}
	return &Summary{
		Entities:    len(records),
		MeanWait:    stat.Mean(waits, nil),
		MeanService: stat.Mean(services, nil),
		Utilisation: floats.Sum(services) / (runLength * float64(capacity)),
		Resources:   audit.Summarize(samples),
	}, nil
}

// FromModel summarizes a completed model.
func FromModel(m *model.Model) (*Summary, error) {
	if m.State() != model.StateCompleted {
		return nil, fmt.Errorf("model is %s, not %s", m.State(), model.StateCompleted)
	}
	cfg := m.Config()
	return Summarize(m.Records(), m.Samples(), cfg.RunLength, cfg.ServerCount)
}

// AsMap flattens the summary into scalar keys. Per-resource values are keyed
// "meanQueueLength[<resource>]" and "meanNumberInSystem[<resource>]".
func (s *Summary) AsMap() map[string]float64 {
	out := map[string]float64{
		"meanWait":    s.MeanWait,
		"meanService": s.MeanService,
		"utilisation": s.Utilisation,
	}
	for name, r := range s.Resources {
		out["meanQueueLength["+name+"]"] = r.MeanQueueLength
		out["meanNumberInSystem["+name+"]"] = r.MeanNumberInSystem
	}
	return out
}

func (s *Summary) String() string {
	var sb strings.Builder
	sb.WriteString("=== Simulation Results ===\n")
	fmt.Fprintf(&sb, "Completed Entities   : %d\n", s.Entities)
	fmt.Fprintf(&sb, "Mean Wait            : %.4f\n", s.MeanWait)
	fmt.Fprintf(&sb, "Mean Service         : %.4f\n", s.MeanService)
	fmt.Fprintf(&sb, "Utilisation          : %.4f\n", s.Utilisation)
	for _, name := range slices.Sorted(maps.Keys(s.Resources)) {
		r := s.Resources[name]
		fmt.Fprintf(&sb, "[%s] Mean Queue Length : %.4f (%d samples)\n", name, r.MeanQueueLength, r.Samples)
		fmt.Fprintf(&sb, "[%s] Mean In System    : %.4f\n", name, r.MeanNumberInSystem)
	}
	return sb.String()
}
