package trace

import "github.com/healthdes/desim/sim"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDispatches int
	Dropped         int
	UniqueProcesses int
	FirstTime       float64
	LastTime        float64
	MaxPerProcess   int
	StateCounts     map[sim.ProcessState]int // yielded state → number of dispatches
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		StateCounts: make(map[sim.ProcessState]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDispatches = len(st.Dispatches)
	summary.Dropped = st.Dropped
	if len(st.Dispatches) == 0 {
		return summary
	}

	perProcess := make(map[string]int)
	summary.FirstTime = st.Dispatches[0].Time
	for _, d := range st.Dispatches {
		summary.StateCounts[d.State]++
		perProcess[d.Process]++
		if perProcess[d.Process] > summary.MaxPerProcess {
			summary.MaxPerProcess = perProcess[d.Process]
		}
		summary.LastTime = d.Time
	}
	summary.UniqueProcesses = len(perProcess)

	return summary
}
