package blackbox

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// PortOptions describes the serial link a SerialSink streams over.
type PortOptions struct {
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"`
	DataBits int    `json:"data_bits" yaml:"data_bits"`
	StopBits int    `json:"stop_bits" yaml:"stop_bits"`
	Parity   string `json:"parity" yaml:"parity"`
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// Equal reports whether two PortOptions describe the same link once
// normalized.
func (o PortOptions) Equal(other PortOptions) bool {
	a, errA := o.Normalize()
	b, errB := other.Normalize()
	if errA != nil || errB != nil {
		return false
	}
	return a == b
}

// SerialMode converts the options for go.bug.st/serial.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// SerialPorter is the part of a serial port a SerialSink needs.
type SerialPorter interface {
	io.Writer
	io.Closer
}

// PortOpener opens a serial device.
type PortOpener func(path string, mode *serial.Mode) (SerialPorter, error)

// OpenPort opens a real serial device.
func OpenPort(path string, mode *serial.Mode) (SerialPorter, error) {
	return serial.Open(path, mode)
}

// CSVHeader is the first line a SerialSink writes.
var CSVHeader = []string{
	"iteration", "time_us",
	"setpoint_roll", "setpoint_pitch", "setpoint_yaw",
	"gyro_roll", "gyro_pitch", "gyro_yaw",
	"sum_roll", "sum_pitch", "sum_yaw",
	"i_roll", "i_pitch", "i_yaw",
	"mode", "armed", "crash_recovery",
}

// SerialSink streams decimated frames as CSV lines.
type SerialSink struct {
	mu      sync.Mutex
	port    io.WriteCloser
	w       *csv.Writer
	every   int64
	seen    int64
	started bool
}

// OpenSerialSink opens path with opts and returns a sink writing one frame in
// every. A nil open uses OpenPort.
func OpenSerialSink(path string, opts PortOptions, every int64, open PortOpener) (*SerialSink, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	if open == nil {
		open = OpenPort
	}
	port, err := open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	logger.Opsf("streaming frames to %s at %d baud", path, mode.BaudRate)
	return NewSerialSink(port, every), nil
}

// NewSerialSink wraps w. every < 1 is treated as 1.
func NewSerialSink(w io.WriteCloser, every int64) *SerialSink {
	if every < 1 {
		every = 1
	}
	return &SerialSink{port: w, w: csv.NewWriter(w), every: every}
}

// WriteFrame writes the first frame it receives and then one in every
// every, counting frames received rather than iterations.
func (s *SerialSink) WriteFrame(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.seen
	s.seen++
	if n%s.every != 0 {
		return nil
	}
	if !s.started {
		if err := s.w.Write(CSVHeader); err != nil {
			return err
		}
		s.started = true
	}
	if err := s.w.Write(csvRecord(f)); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the port.
func (s *SerialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.port.Close()
}

func csvRecord(f Frame) []string {
	rec := make([]string, 0, len(CSVHeader))
	rec = append(rec,
		strconv.FormatInt(f.Iteration, 10),
		strconv.FormatUint(uint64(f.TimeUs), 10))
	for _, group := range [][3]float32{f.Setpoint, f.Gyro, f.Sum, f.I} {
		for _, v := range group {
			rec = append(rec, strconv.FormatFloat(float64(v), 'f', 3, 32))
		}
	}
	return append(rec,
		strconv.FormatUint(uint64(f.Mode), 10),
		strconv.FormatBool(f.Armed),
		strconv.FormatBool(f.CrashRecovery))
}
