package db

import (
	"time"

	"github.com/banshee-data/eyetrack/internal/eyes"
	"github.com/banshee-data/eyetrack/internal/monitoring"
	"github.com/banshee-data/eyetrack/internal/pipeline"
)

// TickLogger is a pipeline observer that writes every Nth tick, plus every
// tick where the eyes change state, to the ticks table.
type TickLogger struct {
	db     *DB
	runID  string
	every  uint64
	last   eyes.State
	seen   bool
	errLog *monitoring.Throttle
	errors uint64
}

// NewTickLogger logs ticks of runID, sampling one in every ticks.
func NewTickLogger(db *DB, runID string, every int) *TickLogger {
	if every <= 0 {
		every = 1
	}
	return &TickLogger{
		db:     db,
		runID:  runID,
		every:  uint64(every),
		errLog: monitoring.NewThrottle(5 * time.Second),
	}
}

// Observe implements pipeline.Observer.
func (l *TickLogger) Observe(t pipeline.Tick) {
	changed := !l.seen || t.State != l.last
	l.seen = true
	l.last = t.State
	if !changed && t.Seq%l.every != 0 {
		return
	}
	if err := l.db.RecordTick(l.runID, t); err != nil {
		l.errors++
		l.errLog.Logf("db: %v (total tick log errors: %d)", err, l.errors)
	}
}

// Errors returns how many ticks failed to be written.
func (l *TickLogger) Errors() uint64 { return l.errors }
