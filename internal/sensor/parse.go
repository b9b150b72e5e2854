package sensor

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/eyetrack/internal/tof"
)

// frameMessage is one line of the ranging board's output: parallel arrays
// of per-zone readings in row-major order.
type frameMessage struct {
	DistanceMM []int   `json:"distance_mm"`
	Status     []uint8 `json:"status"`
	Targets    []int   `json:"targets,omitempty"`
}

// ParseFrame decodes one JSON line into a frame of the expected size.
func ParseFrame(line []byte, size int) (tof.Frame, error) {
	var msg frameMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return tof.Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	f, err := tof.NewFrame(size, msg.DistanceMM, msg.Status, msg.Targets)
	if err != nil {
		return tof.Frame{}, fmt.Errorf("malformed frame: %w", err)
	}
	return f, nil
}

// FormatFrame encodes a frame in the line format ParseFrame reads.
func FormatFrame(f tof.Frame) ([]byte, error) {
	msg := frameMessage{
		DistanceMM: make([]int, len(f.Cells)),
		Status:     make([]uint8, len(f.Cells)),
		Targets:    make([]int, len(f.Cells)),
	}
	for i, c := range f.Cells {
		msg.DistanceMM[i] = c.DistanceMM
		msg.Status[i] = c.Status
		msg.Targets[i] = c.Targets
	}
	return json.Marshal(msg)
}
