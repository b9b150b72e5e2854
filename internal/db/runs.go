package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/eyetrack/internal/pipeline"
	"github.com/banshee-data/eyetrack/internal/tof"
)

// Run is one process lifetime: the calibration it started with and, once
// ended, its loop counters.
type Run struct {
	ID          string          `json:"run_id"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	GridSize    int             `json:"grid_size"`
	Version     string          `json:"version"`
	Tuning      json.RawMessage `json:"tuning"`
	Calibration []int           `json:"calibration"`
	Stats       pipeline.Stats  `json:"stats"`
}

// TickRow is one logged tick.
type TickRow struct {
	RunID    string                     `json:"run_id"`
	Seq      uint64                     `json:"seq"`
	Time     time.Time                  `json:"time"`
	DT       time.Duration              `json:"dt"`
	POI      tof.POI                    `json:"poi"`
	State    string                     `json:"state"`
	Pan      float64                    `json:"pan"`
	Tilt     float64                    `json:"tilt"`
	LidOpen  float64                    `json:"lid_open"`
	Counts   tof.ClassCounts            `json:"counts"`
	Adjusted tof.Grid[tof.AdjustedCell] `json:"adjusted"`
}

// StartRun records a new run and returns its ID. tuning is stored as JSON
// for later comparison between runs; the calibration is kept for
// inspection only and is never loaded back.
func (db *DB) StartRun(startedAt time.Time, calib tof.Calibration, version string, tuning any) (string, error) {
	tuningJSON, err := json.Marshal(tuning)
	if err != nil {
		return "", fmt.Errorf("failed to encode tuning: %w", err)
	}
	calibJSON, err := json.Marshal(calib.Grid().Cells)
	if err != nil {
		return "", fmt.Errorf("failed to encode calibration: %w", err)
	}

	id := uuid.NewString()
	_, err = db.Exec(
		`INSERT INTO runs (run_id, started_unix_nano, grid_size, version, tuning_json, calibration_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, startedAt.UnixNano(), calib.Size(), version, string(tuningJSON), string(calibJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// EndRun stores the end time and final counters of a run.
func (db *DB) EndRun(id string, endedAt time.Time, stats pipeline.Stats) error {
	res, err := db.Exec(
		`UPDATE runs SET ended_unix_nano = ?, ticks = ?, empty_polls = ?, read_errors = ? WHERE run_id = ?`,
		endedAt.UnixNano(), stats.Ticks, stats.EmptyPolls, stats.ReadErrors, id,
	)
	if err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RecordTick logs one processed tick under a run.
func (db *DB) RecordTick(runID string, t pipeline.Tick) error {
	adjusted, err := json.Marshal(t.Adjusted.Cells)
	if err != nil {
		return fmt.Errorf("failed to encode adjusted grid: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO ticks (
			run_id, seq, ts_unix_nano, dt_nanos, poi_x, poi_y, poi_distance_mm, poi_score,
			state, pan, tilt, lid_open, zones_valid, zones_status, zones_range, zones_background,
			adjusted_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, t.Seq, t.Time.UnixNano(), int64(t.DT), t.POI.X, t.POI.Y, t.POI.DistanceMM, t.POI.Score,
		t.State.String(), t.Position.Pan, t.Position.Tilt, t.Position.LidOpen,
		t.Counts.Valid, t.Counts.InvalidStatus, t.Counts.OutOfRange, t.Counts.Background,
		string(adjusted),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tick %d: %w", t.Seq, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.Query(
		`SELECT run_id, started_unix_nano, ended_unix_nano, grid_size, version, tuning_json,
		        calibration_json, ticks, empty_polls, read_errors
		 FROM runs ORDER BY started_unix_nano DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                   Run
			started             int64
			ended               sql.NullInt64
			tuning, calibration string
		)
		if err := rows.Scan(&r.ID, &started, &ended, &r.GridSize, &r.Version, &tuning,
			&calibration, &r.Stats.Ticks, &r.Stats.EmptyPolls, &r.Stats.ReadErrors); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			r.EndedAt = &t
		}
		r.Tuning = json.RawMessage(tuning)
		if err := json.Unmarshal([]byte(calibration), &r.Calibration); err != nil {
			return nil, fmt.Errorf("run %s: bad calibration: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecentTicks returns the last limit ticks of a run, newest first.
func (db *DB) RecentTicks(runID string, limit int) ([]TickRow, error) {
	rows, err := db.Query(
		`SELECT t.seq, t.ts_unix_nano, t.dt_nanos, t.poi_x, t.poi_y, t.poi_distance_mm, t.poi_score,
		        t.state, t.pan, t.tilt, t.lid_open, t.zones_valid, t.zones_status, t.zones_range,
		        t.zones_background, t.adjusted_json, r.grid_size
		 FROM ticks t JOIN runs r ON r.run_id = t.run_id
		 WHERE t.run_id = ? ORDER BY t.seq DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickRow
	for rows.Next() {
		var (
			tr       TickRow
			ts, dt   int64
			adjusted string
			size     int
		)
		if err := rows.Scan(&tr.Seq, &ts, &dt, &tr.POI.X, &tr.POI.Y, &tr.POI.DistanceMM, &tr.POI.Score,
			&tr.State, &tr.Pan, &tr.Tilt, &tr.LidOpen, &tr.Counts.Valid, &tr.Counts.InvalidStatus,
			&tr.Counts.OutOfRange, &tr.Counts.Background, &adjusted, &size); err != nil {
			return nil, err
		}
		tr.RunID = runID
		tr.Time = time.Unix(0, ts).UTC()
		tr.DT = time.Duration(dt)
		tr.Adjusted = tof.Grid[tof.AdjustedCell]{Size: size}
		if err := json.Unmarshal([]byte(adjusted), &tr.Adjusted.Cells); err != nil {
			return nil, fmt.Errorf("tick %d: bad adjusted grid: %w", tr.Seq, err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
