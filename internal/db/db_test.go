package db

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/eyetrack/internal/eyes"
	"github.com/banshee-data/eyetrack/internal/monitoring"
	"github.com/banshee-data/eyetrack/internal/pipeline"
	"github.com/banshee-data/eyetrack/internal/testutil"
	"github.com/banshee-data/eyetrack/internal/tof"
)

var testStart = time.Date(2024, 5, 4, 18, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "eyes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCalibration(t *testing.T) tof.Calibration {
	t.Helper()
	f := tof.NewGrid[tof.RawCell](4)
	for i := range f.Cells {
		f.Cells[i] = tof.RawCell{DistanceMM: 1000 + i, Status: 5}
	}
	return tof.NewCalibration(f, 2000)
}

func testTick(seq uint64, state eyes.State) pipeline.Tick {
	adjusted := testutil.FillAdjusted(4, tof.Background)
	adjusted.Cells[5] = 420
	return pipeline.Tick{
		Seq:      seq,
		Time:     testStart.Add(time.Duration(seq) * 5 * time.Millisecond),
		DT:       5 * time.Millisecond,
		Adjusted: adjusted,
		Counts:   tof.ClassCounts{Valid: 1, Background: 15},
		POI:      tof.POI{X: 1, Y: 1, DistanceMM: 420, Score: 1},
		State:    state,
		Position: eyes.Position{Pan: 12.5, Tilt: 80, LidOpen: 33},
	}
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"runs", "ticks"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	_, err = db.Exec(`SELECT ended_unix_nano FROM runs`)
	assert.Error(t, err, "summary columns are gone after rolling back")

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "re-running is a no-op")
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestOpenDB_NoSchema(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}

func TestRuns_StartEndList(t *testing.T) {
	db := newTestDB(t)
	calib := testCalibration(t)

	first, err := db.StartRun(testStart, calib, "v1", map[string]int{"grid_size": 4})
	require.NoError(t, err)
	second, err := db.StartRun(testStart.Add(time.Hour), calib, "v2", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	stats := pipeline.Stats{Ticks: 1200, EmptyPolls: 40, ReadErrors: 2}
	require.NoError(t, db.EndRun(first, testStart.Add(time.Minute), stats))
	assert.Error(t, db.EndRun("missing", testStart, stats))

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second, runs[0].ID, "newest first")
	assert.Nil(t, runs[0].EndedAt)
	assert.JSONEq(t, `null`, string(runs[0].Tuning))

	got := runs[1]
	assert.Equal(t, first, got.ID)
	assert.Equal(t, testStart, got.StartedAt)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, testStart.Add(time.Minute), *got.EndedAt)
	assert.Equal(t, 4, got.GridSize)
	assert.Equal(t, "v1", got.Version)
	assert.JSONEq(t, `{"grid_size":4}`, string(got.Tuning))
	assert.Equal(t, stats, got.Stats)
	if diff := cmp.Diff(calib.Grid().Cells, got.Calibration); diff != "" {
		t.Errorf("calibration mismatch (-want +got):\n%s", diff)
	}

	runs, err = db.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestTicks_RecordAndRecent(t *testing.T) {
	db := newTestDB(t)
	runID, err := db.StartRun(testStart, testCalibration(t), "dev", nil)
	require.NoError(t, err)

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, db.RecordTick(runID, testTick(seq, eyes.Tracking)))
	}
	assert.Error(t, db.RecordTick(runID, testTick(2, eyes.Tracking)), "duplicate seq")
	assert.Error(t, db.RecordTick("no-such-run", testTick(9, eyes.Idle)), "foreign key enforced")

	rows, err := db.RecentTicks(runID, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	want := testTick(3, eyes.Tracking)
	got := rows[0]
	assert.Equal(t, uint64(3), got.Seq)
	assert.Equal(t, want.Time, got.Time)
	assert.Equal(t, want.DT, got.DT)
	assert.Equal(t, want.POI, got.POI)
	assert.Equal(t, "tracking", got.State)
	assert.Equal(t, want.Counts, got.Counts)
	assert.InDelta(t, 12.5, got.Pan, 1e-9)
	if diff := cmp.Diff(want.Adjusted, got.Adjusted); diff != "" {
		t.Errorf("adjusted grid mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(2), rows[1].Seq)
}

func TestTickLogger_SamplesAndStateChanges(t *testing.T) {
	db := newTestDB(t)
	runID, err := db.StartRun(testStart, testCalibration(t), "dev", nil)
	require.NoError(t, err)

	logger := NewTickLogger(db, runID, 3)
	states := []eyes.State{eyes.Tracking, eyes.Tracking, eyes.Tracking, eyes.Tracking, eyes.Idle, eyes.Idle, eyes.Idle}
	for i, s := range states {
		logger.Observe(testTick(uint64(i+1), s))
	}

	rows, err := db.RecentTicks(runID, 100)
	require.NoError(t, err)
	var seqs []uint64
	for _, r := range rows {
		seqs = append(seqs, r.Seq)
	}
	assert.Equal(t, []uint64{6, 5, 3, 1}, seqs)
	assert.Zero(t, logger.Errors())
}

func TestTickLogger_CountsErrors(t *testing.T) {
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	db := newTestDB(t)
	logger := NewTickLogger(db, "unknown-run", 1)
	logger.Observe(testTick(1, eyes.Idle))
	logger.Observe(testTick(2, eyes.Idle))
	assert.Equal(t, uint64(2), logger.Errors())
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	_, err := db.StartRun(testStart, testCalibration(t), "v9", nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	t.Run("runs", func(t *testing.T) {
		rec := testutil.ServeDebug(mux, "/debug/runs?limit=5")
		require.Equal(t, http.StatusOK, rec.Code)

		var runs []Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, "v9", runs[0].Version)
	})

	t.Run("runs bad limit", func(t *testing.T) {
		rec := testutil.ServeDebug(mux, "/debug/runs?limit=zero")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("backup", func(t *testing.T) {
		rec := testutil.ServeDebug(mux, "/debug/backup")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "eyetrack-backup-")

		zr, err := gzip.NewReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		data, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))
	})
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}
