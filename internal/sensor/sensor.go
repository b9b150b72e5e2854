// Package sensor provides the ranging collaborators that feed the frame
// processor: a serial line-protocol sensor, a scripted mock and a synthetic
// scene for running without hardware.
package sensor

import (
	"errors"

	"github.com/banshee-data/eyetrack/internal/tof"
)

// ErrNoFrame is returned by ReadFrame when no new frame is buffered.
var ErrNoFrame = errors.New("no frame ready")

// ErrClosed is returned by ReadFrame after the sensor has been closed.
var ErrClosed = errors.New("sensor closed")

// Sensor delivers ranging frames. IsFrameReady is a cheap poll; ReadFrame
// returns the latest complete frame and consumes it.
type Sensor interface {
	IsFrameReady() bool
	ReadFrame() (tof.Frame, error)
}
