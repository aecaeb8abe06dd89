// Package blackbox records per-tick controller state: in memory, to a
// sqlite store, or as CSV lines over a serial port.
package blackbox

import (
	"errors"
	"sync"

	"github.com/banshee-data/flightcore/internal/monitoring"
	"github.com/banshee-data/flightcore/internal/pid"
)

var logger = monitoring.NewLogger("[blackbox] ")

// Frame is one logged control tick.
type Frame struct {
	Iteration     int64                  `json:"iteration"`
	TimeUs        uint32                 `json:"time_us"`
	Setpoint      [pid.AxisCount]float32 `json:"setpoint"`
	Gyro          [pid.AxisCount]float32 `json:"gyro"`
	P             [pid.AxisCount]float32 `json:"p"`
	I             [pid.AxisCount]float32 `json:"i"`
	D             [pid.AxisCount]float32 `json:"d"`
	Sum           [pid.AxisCount]float32 `json:"sum"`
	Attitude      [2]int16               `json:"attitude"` // decidegrees
	Mode          uint16                 `json:"mode"`
	Armed         bool                   `json:"armed"`
	CrashRecovery bool                   `json:"crash_recovery"`
	MotorMixRange float32                `json:"motor_mix_range"`
}

// NewFrame assembles a frame from the tick input and the controller state
// after the tick.
func NewFrame(iteration int64, in *pid.TickInput, snap pid.Snapshot) Frame {
	return Frame{
		Iteration:     iteration,
		TimeUs:        uint32(snap.Time),
		Setpoint:      snap.Setpoint,
		Gyro:          in.Gyro,
		P:             snap.Output.P,
		I:             snap.Output.I,
		D:             snap.Output.D,
		Sum:           snap.Output.Sum,
		Attitude:      in.Attitude,
		Mode:          uint16(in.Mode),
		Armed:         in.Armed,
		CrashRecovery: snap.Crash.Active,
		MotorMixRange: snap.MotorMixRange,
	}
}

// Sink consumes frames. WriteFrame is called from the control loop and must
// not block for long.
type Sink interface {
	WriteFrame(f Frame) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(f Frame) error

func (fn SinkFunc) WriteFrame(f Frame) error { return fn(f) }

// MultiSink writes each frame to every sink, joining their errors.
type MultiSink []Sink

func (m MultiSink) WriteFrame(f Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteFrame(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder buffers frames in memory.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
	limit  int
	drops  int
}

// NewRecorder returns a Recorder holding at most limit frames; 0 means no
// limit. Frames past the limit are counted and dropped.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// WriteFrame appends f.
func (r *Recorder) WriteFrame(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.frames) >= r.limit {
		r.drops++
		return nil
	}
	r.frames = append(r.frames, f)
	return nil
}

// Frames returns a copy of the buffered frames.
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Dropped returns the number of frames rejected by the limit.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drops
}
