package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/healthdes/desim/sim"
	"github.com/healthdes/desim/sim/model"
	"github.com/healthdes/desim/sim/recording"
	"github.com/healthdes/desim/sim/results"
	"github.com/healthdes/desim/sim/trace"
)

var (
	// CLI flags for the run configuration
	configPath       string  // YAML run configuration file
	seed             int64   // Entropy for all random streams
	meanInterArrival float64 // Mean inter-arrival time
	meanService      float64 // Mean service duration
	serverCount      int     // Number of servers in the pool
	runLength        float64 // Simulated stop time
	firstObservation float64 // Time of the first audit sample
	auditInterval    float64 // Time between audit samples

	// CLI flags for output
	logLevel    string // Log verbosity level
	recordPath  string // SQLite database (without extension) receiving records and samples
	traceEvents bool   // Log every event dispatch at debug level
	traceLevel  string // Dispatch trace collection level
	traceMax    int    // Maximum stored dispatch records
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "desim",
	Short: "Discrete-event simulator for M/M/s healthcare queueing models",
}

// runCmd executes one simulation using parameters from the config file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation and print its summary",
	Run: func(cmd *cobra.Command, args []string) {
		loadDotEnv()

		// Set up logging
		level, err := logrus.ParseLevel(envDefault(cmd, "log", envLogLevel, logLevel))
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		startTime := time.Now()
		if err := runSimulation(cmd); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// runSimulation builds, runs, summarizes and optionally records one model.
// A run in which no entity completed is reported but is not an error.
func runSimulation(cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid run configuration: %w", err)
	}

	m, err := model.New(cfg)
	if err != nil {
		return fmt.Errorf("unable to build model: %w", err)
	}
	if traceEvents {
		m.Engine().AcceptHook(sim.LogHook{})
	}
	if !trace.IsValidTraceLevel(traceLevel) {
		return fmt.Errorf("unknown trace level %q; valid levels: %s, %s", traceLevel, trace.TraceLevelNone, trace.TraceLevelEvents)
	}
	var st *trace.SimulationTrace
	if trace.TraceLevel(traceLevel) == trace.TraceLevelEvents {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelEvents, MaxRecords: traceMax})
		m.Engine().AcceptHook(st)
	}
	if err := m.Run(); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	if st != nil {
		ts := trace.Summarize(st)
		fmt.Fprintf(cmd.OutOrStdout(), "=== Dispatch Trace ===\nDispatches: %d (dropped %d), processes: %d, busiest: %d, span [%.4f, %.4f]\n",
			ts.TotalDispatches, ts.Dropped, ts.UniqueProcesses, ts.MaxPerProcess, ts.FirstTime, ts.LastTime)
	}

	summary, err := results.FromModel(m)
	switch {
	case errors.Is(err, results.ErrEmptyResults):
		logrus.Warnf("No entity completed service within run length %v; nothing to summarize", cfg.RunLength)
	case err != nil:
		return fmt.Errorf("unable to summarize run: %w", err)
	default:
		fmt.Fprint(cmd.OutOrStdout(), summary)
	}

	if recordPath != "" {
		if err := record(recordPath, m); err != nil {
			return fmt.Errorf("unable to record run: %w", err)
		}
	}
	return nil
}

// record writes the completed model into a fresh SQLite database.
func record(path string, m *model.Model) error {
	rec, err := recording.New(path)
	if err != nil {
		return err
	}
	runID := recording.NewRunID()
	if err := rec.RecordModel(runID, m); err != nil {
		return errors.Join(err, rec.Close())
	}
	if err := rec.Close(); err != nil {
		return err
	}
	logrus.Infof("Recorded run %s into %s", runID, rec.Path())
	return nil
}

// Execute runs the CLI root command
func Execute() {
	// logrus.Fatal must still run recorder flushes registered with atexit.
	logrus.StandardLogger().ExitFunc = atexit.Exit
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// init sets up CLI flags and subcommands
func init() {
	defaults := model.DefaultConfig()

	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration file")
	runCmd.Flags().Int64Var(&seed, "seed", defaults.Entropy, "Entropy from which all random streams are derived")
	runCmd.Flags().Float64Var(&meanInterArrival, "iat", defaults.MeanInterArrivalTime, "Mean inter-arrival time")
	runCmd.Flags().Float64Var(&meanService, "service", defaults.MeanServiceDuration, "Mean service duration")
	runCmd.Flags().IntVar(&serverCount, "servers", defaults.ServerCount, "Number of servers")
	runCmd.Flags().Float64Var(&runLength, "run-length", defaults.RunLength, "Simulated time at which the run stops")
	runCmd.Flags().Float64Var(&firstObservation, "first-obs", 0, "Time of the first audit sample")
	runCmd.Flags().Float64Var(&auditInterval, "audit-interval", *defaults.AuditInterval, "Time between audit samples")

	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&recordPath, "record", "", "Record entities and audit samples into this SQLite database (\".sqlite3\" is appended)")
	runCmd.Flags().BoolVar(&traceEvents, "trace", false, "Log every event dispatch (needs --log debug)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Dispatch trace collection: none, events")
	runCmd.Flags().IntVar(&traceMax, "trace-max", 100000, "Maximum dispatch records kept by --trace-level events (0 = unbounded)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
