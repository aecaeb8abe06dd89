package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/mathutil"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/timeutil"
)

// ctxCheckEvery is how many ticks run between context checks.
const ctxCheckEvery = 256

// Options configures a Run.
type Options struct {
	Scenario Scenario
	Profile  pid.Profile
	Loop     pid.LoopConfig
	Plant    PlantConfig

	// Seed drives gyro noise and timing jitter; runs with equal options and
	// seed are identical.
	Seed      int64
	GyroNoise float32 // gyro noise standard deviation, deg/s
	JitterUs  int32   // maximum tick timestamp jitter, either direction
	StartUs   timeutil.TimeUs

	// Sink receives one frame in every RecordEvery ticks (all when < 2).
	Sink        blackbox.Sink
	RecordEvery int64
	Beeper      pid.Beeper
}

// Result summarises a Run.
type Result struct {
	Scenario         string        `json:"scenario"`
	Ticks            int64         `json:"ticks"`
	Recorded         int64         `json:"recorded"`
	Duration         time.Duration `json:"duration"`
	CrashEvents      int           `json:"crash_events"`
	MaxMotorMixRange float32       `json:"max_motor_mix_range"`
	Metrics          Metrics       `json:"metrics"`
	Final            pid.Snapshot  `json:"final"`
}

// Run flies opts.Scenario to completion in virtual time. It stops early
// with ctx's error if ctx is cancelled, or with the sink's error if a frame
// cannot be recorded.
func Run(ctx context.Context, opts Options) (*Result, error) {
	sc := opts.Scenario
	if sc.Command == nil {
		return nil, fmt.Errorf("scenario %q has no command script", sc.Name)
	}
	profile := opts.Profile
	if sc.Tune != nil {
		sc.Tune(&profile)
	}
	period := opts.Loop.TargetLooptimeUs()
	if period == 0 {
		return nil, fmt.Errorf("invalid loop config: zero loop time")
	}
	every := opts.RecordEvery
	if every < 1 {
		every = 1
	}

	plant := NewPlant(opts.Plant)
	if sc.Setup != nil {
		sc.Setup(plant)
	}
	mixer := &QuadMixer{}
	ctrl := pid.NewController(pid.ControllerConfig{
		Profile: profile,
		Loop:    opts.Loop,
		Mixer:   mixer,
		Beeper:  opts.Beeper,
	})
	rng := rand.New(rand.NewSource(opts.Seed))

	ticks := int64(sc.Duration / (time.Duration(period) * time.Microsecond))
	dt := float32(period) * 1e-6
	frames := make([]blackbox.Frame, 0, ticks)
	res := &Result{Scenario: sc.Name}
	nextEvent := 0
	inCrash := false
	var lastThrottle float32

	logger.Diagf("run %s: %d ticks at %dus, seed=%d noise=%.1f jitter=%dus",
		sc.Name, ticks, period, opts.Seed, opts.GyroNoise, opts.JitterUs)

	for tick := int64(0); tick < ticks; tick++ {
		if tick%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		elapsed := time.Duration(tick*int64(period)) * time.Microsecond
		for nextEvent < len(sc.Events) && sc.Events[nextEvent].At <= elapsed {
			sc.Events[nextEvent].Apply(plant)
			nextEvent++
		}

		cmd := sc.Command(elapsed)
		in := tickInput(cmd, plant, rng, opts.GyroNoise)

		if tick == 0 {
			lastThrottle = cmd.Throttle
		}
		// Throttle speed in PWM units per 100ms.
		throttleSpeed := (cmd.Throttle - lastThrottle) * 1000 / dt * 0.1
		lastThrottle = cmd.Throttle
		ctrl.SetItermAccelerator(pid.ItermAccelerator(&profile, throttleSpeed))

		now := opts.StartUs.Add(timeutil.DeltaUs(tick * int64(period)))
		if opts.JitterUs > 0 && tick > 0 {
			limit := mathutil.MinC(float32(opts.JitterUs), float32(period)/2)
			now = now.Add(timeutil.DeltaUs((rng.Float32()*2 - 1) * limit))
		}
		ctrl.Update(now, in)

		out := ctrl.Output()
		mixer.Mix(out.Sum, cmd.Throttle)
		plant.Step(mixer.AxisCommand(), dt)

		snap := ctrl.Snapshot()
		if snap.MotorMixRange > res.MaxMotorMixRange {
			res.MaxMotorMixRange = snap.MotorMixRange
		}
		if snap.Crash.Active && !inCrash {
			res.CrashEvents++
		}
		inCrash = snap.Crash.Active

		frame := blackbox.NewFrame(tick, in, snap)
		frames = append(frames, frame)
		if opts.Sink != nil && tick%every == 0 {
			if err := opts.Sink.WriteFrame(frame); err != nil {
				return nil, fmt.Errorf("record tick %d: %w", tick, err)
			}
			res.Recorded++
		}
	}

	res.Ticks = ticks
	res.Duration = time.Duration(ticks*int64(period)) * time.Microsecond
	res.Metrics = ComputeMetrics(frames)
	res.Final = ctrl.Snapshot()
	logger.Diagf("run %s done: crashes=%d max_mix_range=%.2f", sc.Name, res.CrashEvents, res.MaxMotorMixRange)
	return res, nil
}

func tickInput(cmd Command, plant *Plant, rng *rand.Rand, noise float32) *pid.TickInput {
	in := &pid.TickInput{
		RcDeflection:           cmd.Deflection,
		Attitude:               plant.Attitude(),
		Mode:                   cmd.Mode,
		Armed:                  cmd.Armed,
		AccPresent:             true,
		ThrottlePIDAttenuation: 1,
	}
	rate := plant.Rate()
	for _, axis := range pid.Axes {
		in.Setpoint[axis] = cmd.Deflection[axis] * MaxRate
		gyro := rate[axis]
		if noise > 0 {
			gyro += float32(rng.NormFloat64()) * noise
		}
		if mathutil.Abs(gyro) > MaxGyroRate {
			in.GyroOverflow = true
		}
		in.Gyro[axis] = mathutil.Constrain(gyro, -MaxGyroRate, MaxGyroRate)
	}
	return in
}
