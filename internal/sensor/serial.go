package sensor

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.bug.st/serial"
	"tailscale.com/tsweb"

	"github.com/banshee-data/eyetrack/internal/httputil"
	"github.com/banshee-data/eyetrack/internal/monitoring"
	"github.com/banshee-data/eyetrack/internal/tof"
)

// maxLineBytes bounds a single frame line; an 8x8 frame is under 1KB.
const maxLineBytes = 64 * 1024

// Stats are the counters of a Serial sensor.
type Stats struct {
	Lines       uint64 `json:"lines"`
	Frames      uint64 `json:"frames"`
	Dropped     uint64 `json:"dropped"`
	ParseErrors uint64 `json:"parse_errors"`
	LastLine    string `json:"last_line,omitempty"`
}

// Serial reads newline-delimited JSON frames from a serial port. A
// background scanner started by Monitor keeps only the most recent frame;
// frames that arrive before the previous one was read are dropped.
type Serial struct {
	port io.ReadCloser
	size int

	mu      sync.Mutex
	latest  tof.Frame
	ready   bool
	closed  bool
	stats   Stats
	badLine *monitoring.Throttle
}

// NewSerial wraps an open port producing frames of size x size zones.
func NewSerial(port io.ReadCloser, size int) (*Serial, error) {
	if err := tof.ValidateSize(size); err != nil {
		return nil, err
	}
	return &Serial{
		port:    port,
		size:    size,
		badLine: monitoring.NewThrottle(5 * time.Second),
	}, nil
}

// OpenSerial opens the serial port at path with the given options.
func OpenSerial(path string, opts PortOptions, size int) (*Serial, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	s, err := NewSerial(port, size)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// Monitor scans lines from the port until ctx is done, the port is closed
// or a read fails.
func (s *Serial) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	scan.Buffer(make([]byte, 0, 4096), maxLineBytes)

	lineChan := make(chan []byte)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs in its own goroutine so cancellation is
	// observed without waiting for the next line.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			line := append([]byte(nil), scan.Bytes()...)
			select {
			case lineChan <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErrChan:
			if s.isClosed() {
				return nil
			}
			return err
		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosed() {
						return err
					}
				default:
				}
				return nil
			}
			s.handleLine(line)
		}
	}
}

func (s *Serial) handleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return
	}
	f, err := ParseFrame(line, s.size)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Lines++
	s.stats.LastLine = string(line)
	if err != nil {
		s.stats.ParseErrors++
		s.badLine.Logf("sensor: dropping line: %v (total parse errors: %d)", err, s.stats.ParseErrors)
		return
	}
	if s.ready {
		s.stats.Dropped++
	}
	s.stats.Frames++
	s.latest = f
	s.ready = true
}

func (s *Serial) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IsFrameReady reports whether a frame arrived since the last ReadFrame.
func (s *Serial) IsFrameReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// ReadFrame returns the most recent frame and marks it consumed.
func (s *Serial) ReadFrame() (tof.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return tof.Frame{}, ErrClosed
	}
	if !s.ready {
		return tof.Frame{}, ErrNoFrame
	}
	s.ready = false
	return s.latest, nil
}

// Stats returns a snapshot of the sensor counters.
func (s *Serial) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close closes the port, which also ends Monitor.
func (s *Serial) Close() error {
	s.mu.Lock()
	s.closed = true
	s.ready = false
	s.mu.Unlock()
	return s.port.Close()
}

// AttachAdminRoutes exposes the sensor counters under /debug/.
func (s *Serial) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("sensor", "ranging sensor counters", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Stats())
	})
}
