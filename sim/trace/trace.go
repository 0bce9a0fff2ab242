// Package trace records the dispatch history of an engine for post-run
// analysis. A SimulationTrace is attached to an engine as a hook.
package trace

import "github.com/healthdes/desim/sim"

// TraceLevel controls the verbosity of dispatch tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures one record per dispatched event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords caps the number of stored dispatches; 0 means unbounded.
	// Dispatches past the cap are counted but not stored.
	MaxRecords int
}

// DispatchRecord captures one resumption of a process.
type DispatchRecord struct {
	Time    float64
	Seq     uint64
	Process string
	// State is the state the process yielded in: timeout, waiting or terminated.
	State sim.ProcessState
}

// SimulationTrace collects dispatch records during a run.
type SimulationTrace struct {
	Config     TraceConfig
	Dispatches []DispatchRecord
	Dropped    int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Dispatches: make([]DispatchRecord, 0),
	}
}

// RecordDispatch appends a dispatch record, or counts it as dropped once
// MaxRecords is reached.
func (st *SimulationTrace) RecordDispatch(record DispatchRecord) {
	if st.Config.MaxRecords > 0 && len(st.Dispatches) >= st.Config.MaxRecords {
		st.Dropped++
		return
	}
	st.Dispatches = append(st.Dispatches, record)
}

// Func implements sim.Hook. It records after each dispatch so the yielded
// state of the process is known.
func (st *SimulationTrace) Func(ctx sim.HookCtx) {
	if st.Config.Level != TraceLevelEvents || ctx.Pos != sim.HookPosAfterEvent {
		return
	}
	if ctx.Item == nil || ctx.Item.Process == nil {
		return
	}
	st.RecordDispatch(DispatchRecord{
		Time:    ctx.Item.Time,
		Seq:     ctx.Item.Seq,
		Process: ctx.Item.Process.String(),
		State:   ctx.Item.Process.State(),
	})
}
