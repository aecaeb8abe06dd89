package telemetry

import (
	"sync"
	"time"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

// FrameMessage is the message type carrying a blackbox.Frame.
const FrameMessage = "frame"

// DefaultLiveInterval is the flight time between frames a HubSink forwards:
// 50 frames per simulated second.
const DefaultLiveInterval = 20 * time.Millisecond

// HubSink is a blackbox.Sink that broadcasts frames on a Hub. Simulations
// produce frames far faster than a browser can draw them, so it forwards
// at most one frame per interval of flight time, judged by frame
// timestamps.
type HubSink struct {
	hub      *Hub
	interval timeutil.DeltaUs

	mu      sync.Mutex
	started bool
	last    timeutil.TimeUs
}

// NewHubSink returns a sink broadcasting on hub. interval <= 0 uses
// DefaultLiveInterval.
func NewHubSink(hub *Hub, interval time.Duration) *HubSink {
	if interval <= 0 {
		interval = DefaultLiveInterval
	}
	return &HubSink{hub: hub, interval: timeutil.DeltaUs(interval.Microseconds())}
}

// WriteFrame implements blackbox.Sink.
func (s *HubSink) WriteFrame(f blackbox.Frame) error {
	now := timeutil.TimeUs(f.TimeUs)
	s.mu.Lock()
	due := !s.started || timeutil.CmpTimeUs(now, s.last) >= s.interval
	if due {
		s.started = true
		s.last = now
	}
	s.mu.Unlock()
	if !due {
		return nil
	}
	return s.hub.Broadcast(FrameMessage, f)
}

var _ blackbox.Sink = (*HubSink)(nil)
