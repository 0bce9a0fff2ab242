// Package recording persists the output collections of model runs into a
// SQLite database.
package recording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/healthdes/desim/sim/audit"
	"github.com/healthdes/desim/sim/model"
)

const defaultBatchSize = 10000

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	entropy INTEGER,
	server_count INTEGER,
	mean_interarrival_time REAL,
	mean_service_duration REAL,
	run_length REAL
);`,
	`CREATE TABLE IF NOT EXISTS entities (
	run_id TEXT,
	id INTEGER,
	arrival_time REAL,
	wait_time REAL,
	service_duration REAL,
	completion_time REAL
);`,
	`CREATE TABLE IF NOT EXISTS audit_samples (
	run_id TEXT,
	time REAL,
	resource TEXT,
	queue_length INTEGER,
	number_in_system INTEGER
);`,
}

type entityRow struct {
	runID string
	model.EntityRecord
}

type sampleRow struct {
	runID string
	audit.Sample
}

// Recorder buffers run output and writes it in batched transactions.
//
// Thread-safety: NOT thread-safe.
type Recorder struct {
	db        *sql.DB
	path      string
	batchSize int

	entities []entityRow
	samples  []sampleRow
	closed   bool
}

// New creates a database file at path + ".sqlite3" and prepares the schema.
// An empty path picks a unique name. An existing file is never overwritten.
// Buffered rows are flushed when the process exits through atexit.
func New(path string) (*Recorder, error) {
	if path == "" {
		path = "desim_run_" + xid.New().String()
	}
	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("recording database %s already exists", filename)
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("opening recording database: %w", err)
	}
	r, err := NewWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	r.path = filename
	logrus.Infof("Database created for recording: %s", filename)
	atexit.Register(func() {
		if err := r.Close(); err != nil {
			logrus.Errorf("closing recording database %s: %v", filename, err)
		}
	})
	return r, nil
}

// NewWithDB creates a Recorder on an already opened database.
func NewWithDB(db *sql.DB) (*Recorder, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("creating recording schema: %w", err)
		}
	}
	return &Recorder{db: db, batchSize: defaultBatchSize}, nil
}

// Path returns the database file name, or "" for NewWithDB recorders.
func (r *Recorder) Path() string { return r.path }

// NewRunID returns a fresh unique run identifier.
func NewRunID() string { return xid.New().String() }

// RecordRun writes the configuration row of a run immediately.
func (r *Recorder) RecordRun(runID string, cfg model.Config) error {
	if r.closed {
		return errRecorderClosed
	}
	_, err := r.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?)`,
		runID, cfg.Entropy, cfg.ServerCount, cfg.MeanInterArrivalTime, cfg.MeanServiceDuration, cfg.RunLength)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", runID, err)
	}
	return nil
}

// RecordEntities buffers entity records of a run.
func (r *Recorder) RecordEntities(runID string, records []model.EntityRecord) error {
	if r.closed {
		return errRecorderClosed
	}
	for _, rec := range records {
		r.entities = append(r.entities, entityRow{runID: runID, EntityRecord: rec})
	}
	return r.maybeFlush()
}

// RecordSamples buffers audit samples of a run.
func (r *Recorder) RecordSamples(runID string, samples []audit.Sample) error {
	if r.closed {
		return errRecorderClosed
	}
	for _, s := range samples {
		r.samples = append(r.samples, sampleRow{runID: runID, Sample: s})
	}
	return r.maybeFlush()
}

// RecordModel writes the configuration, records and samples of a completed model.
func (r *Recorder) RecordModel(runID string, m *model.Model) error {
	if m.State() != model.StateCompleted {
		return fmt.Errorf("recording run %s: model is %s", runID, m.State())
	}
	if err := r.RecordRun(runID, m.Config()); err != nil {
		return err
	}
	if err := r.RecordEntities(runID, m.Records()); err != nil {
		return err
	}
	return r.RecordSamples(runID, m.Samples())
}

func (r *Recorder) maybeFlush() error {
	if len(r.entities)+len(r.samples) < r.batchSize {
		return nil
	}
	return r.Flush()
}

// Flush writes every buffered row in one transaction.
func (r *Recorder) Flush() (err error) {
	if len(r.entities)+len(r.samples) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("flushing recording: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	ent, err := tx.Prepare(`INSERT INTO entities VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("flushing entities: %w", err)
	}
	defer ent.Close()
	for _, row := range r.entities {
		if _, err = ent.Exec(row.runID, row.ID, row.ArrivalTime, row.WaitTime, row.ServiceDuration, row.CompletionTime); err != nil {
			return fmt.Errorf("flushing entities: %w", err)
		}
	}

	smp, err := tx.Prepare(`INSERT INTO audit_samples VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("flushing audit samples: %w", err)
	}
	defer smp.Close()
	for _, row := range r.samples {
		if _, err = smp.Exec(row.runID, row.Time, row.Resource, row.QueueLength, row.NumberInSystem); err != nil {
			return fmt.Errorf("flushing audit samples: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing recording: %w", err)
	}
	logrus.Debugf("flushed %d entity rows and %d audit rows", len(r.entities), len(r.samples))
	r.entities = nil
	r.samples = nil
	return nil
}

// Close flushes pending rows and closes the database. Closing twice is a no-op.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	flushErr := r.Flush()
	r.closed = true
	return errors.Join(flushErr, r.db.Close())
}

var errRecorderClosed = errors.New("recorder closed")
