package servo

import "sync"

// Write is one recorded SetChannelPosition call.
type Write struct {
	Channel  int
	Position float64
}

// Recorder is an Actuator that keeps every write in memory. It backs dev
// mode and tests.
type Recorder struct {
	mu     sync.Mutex
	writes []Write
	last   map[int]float64
	limit  int
}

// NewRecorder returns a Recorder keeping at most limit writes of history
// (0 keeps everything). The latest position per channel is always kept.
func NewRecorder(limit int) *Recorder {
	return &Recorder{last: make(map[int]float64), limit: limit}
}

// SetChannelPosition records the write.
func (r *Recorder) SetChannelPosition(channel int, normalized float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[channel] = normalized
	r.writes = append(r.writes, Write{Channel: channel, Position: normalized})
	if r.limit > 0 && len(r.writes) > r.limit {
		r.writes = append(r.writes[:0], r.writes[len(r.writes)-r.limit:]...)
	}
}

// Position returns the last position written to channel.
func (r *Recorder) Position(channel int) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.last[channel]
	return v, ok
}

// Writes returns a copy of the recorded history.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Write, len(r.writes))
	copy(out, r.writes)
	return out
}

// Reset clears the history but keeps the latest positions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}
