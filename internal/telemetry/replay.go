package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

// ReplayEndMessage is sent after the last replayed frame.
const ReplayEndMessage = "replay_end"

// DefaultReplayTick is how often Replay wakes to release due frames.
const DefaultReplayTick = 20 * time.Millisecond

// ReplayOptions controls pacing. Speed 2 plays twice as fast; Speed <= 0 is
// treated as 1.
type ReplayOptions struct {
	Clock timeutil.Clock
	Speed float64
	Tick  time.Duration
}

func frameOffset(first, f blackbox.Frame) time.Duration {
	return timeutil.CmpTimeUs(timeutil.TimeUs(f.TimeUs), timeutil.TimeUs(first.TimeUs)).Duration()
}

// frameTime is the wall time a frame is stamped with in replay.
func frameTime(start time.Time, first, f blackbox.Frame) time.Time {
	return start.Add(frameOffset(first, f))
}

// Replay calls send for each frame at the pace its timestamps dictate,
// scaled by opts.Speed. Frames due within one tick are released together.
func Replay(ctx context.Context, frames []blackbox.Frame, opts ReplayOptions, send func(blackbox.Frame) error) error {
	if len(frames) == 0 {
		return nil
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultReplayTick
	}

	ticker := clock.NewTicker(tick)
	defer ticker.Stop()

	start := clock.Now()
	next := 0
	for {
		elapsed := time.Duration(float64(clock.Now().Sub(start)) * speed)
		for next < len(frames) && frameOffset(frames[0], frames[next]) <= elapsed {
			if err := send(frames[next]); err != nil {
				return err
			}
			next++
		}
		if next == len(frames) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
	}
}

// ServeReplay upgrades the request and streams frames to this one client,
// then sends replay_end and closes. It returns when the replay finishes or
// the client goes away.
func ServeReplay(w http.ResponseWriter, r *http.Request, frames []blackbox.Frame, opts ReplayOptions) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Diagf("replay upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The request context is not tied to the hijacked connection, so watch
	// for the client going away with a read loop.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	start := clock.Now()
	write := func(msg []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, msg)
	}

	err = Replay(ctx, frames, opts, func(f blackbox.Frame) error {
		msg, err := Encode(FrameMessage, frameTime(start, frames[0], f), f)
		if err != nil {
			return err
		}
		return write(msg)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logWriteError(r.RemoteAddr, err)
		}
		return
	}
	if end, err := Encode(ReplayEndMessage, clock.Now(), map[string]int{"frames": len(frames)}); err == nil {
		_ = write(end)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay complete"),
		time.Now().Add(writeWait))
}
