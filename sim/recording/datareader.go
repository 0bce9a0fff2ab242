package recording

import (
	"database/sql"
	"fmt"

	"github.com/healthdes/desim/sim/audit"
	"github.com/healthdes/desim/sim/model"
)

// DataReader reads back what a Recorder wrote.
type DataReader struct {
	db *sql.DB
}

// NewDataReader wraps an open recording database.
func NewDataReader(db *sql.DB) *DataReader {
	return &DataReader{db: db}
}

// OpenDataReader opens a recording database file for reading.
func OpenDataReader(filename string) (*DataReader, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("opening recording database: %w", err)
	}
	return &DataReader{db: db}, nil
}

// Close closes the underlying database.
func (d *DataReader) Close() error {
	return d.db.Close()
}

// RunIDs lists the recorded runs in insertion order.
func (d *DataReader) RunIDs() ([]string, error) {
	rows, err := d.db.Query(`SELECT run_id FROM runs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading runs: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("reading runs: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Entities returns the entity records of runID in completion order.
func (d *DataReader) Entities(runID string) ([]model.EntityRecord, error) {
	rows, err := d.db.Query(`SELECT id, arrival_time, wait_time, service_duration, completion_time
		FROM entities WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading entities of %s: %w", runID, err)
	}
	defer rows.Close()
	var out []model.EntityRecord
	for rows.Next() {
		var r model.EntityRecord
		if err := rows.Scan(&r.ID, &r.ArrivalTime, &r.WaitTime, &r.ServiceDuration, &r.CompletionTime); err != nil {
			return nil, fmt.Errorf("reading entities of %s: %w", runID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns the audit samples of runID in fire order.
func (d *DataReader) Samples(runID string) ([]audit.Sample, error) {
	rows, err := d.db.Query(`SELECT time, resource, queue_length, number_in_system
		FROM audit_samples WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading audit samples of %s: %w", runID, err)
	}
	defer rows.Close()
	var out []audit.Sample
	for rows.Next() {
		var s audit.Sample
		if err := rows.Scan(&s.Time, &s.Resource, &s.QueueLength, &s.NumberInSystem); err != nil {
			return nil, fmt.Errorf("reading audit samples of %s: %w", runID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
