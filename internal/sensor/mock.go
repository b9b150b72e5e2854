package sensor

import (
	"sync"

	"github.com/banshee-data/eyetrack/internal/tof"
)

// Step is one scripted ReadFrame outcome. A step with Err set returns the
// error instead of the frame.
type Step struct {
	Frame tof.Frame
	Err   error
}

// Mock replays a script of frames and errors. Once the script is exhausted
// it reports no frame ready, or repeats the last frame when Repeat is set.
type Mock struct {
	mu     sync.Mutex
	steps  []Step
	next   int
	Repeat bool
	reads  int
	polls  int
}

// NewMock returns a Mock that replays steps in order.
func NewMock(steps ...Step) *Mock {
	return &Mock{steps: steps}
}

// NewMockFrames returns a Mock replaying frames without errors.
func NewMockFrames(frames ...tof.Frame) *Mock {
	steps := make([]Step, len(frames))
	for i, f := range frames {
		steps[i] = Step{Frame: f}
	}
	return NewMock(steps...)
}

// Push appends steps to the script.
func (m *Mock) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// IsFrameReady reports whether a scripted step remains.
func (m *Mock) IsFrameReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	return m.next < len(m.steps) || (m.Repeat && len(m.steps) > 0)
}

// ReadFrame returns the next scripted step.
func (m *Mock) ReadFrame() (tof.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.next >= len(m.steps) {
		if m.Repeat && len(m.steps) > 0 {
			last := m.steps[len(m.steps)-1]
			return last.Frame, last.Err
		}
		return tof.Frame{}, ErrNoFrame
	}
	s := m.steps[m.next]
	m.next++
	return s.Frame, s.Err
}

// Reads returns how many times ReadFrame was called.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Polls returns how many times IsFrameReady was called.
func (m *Mock) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}
