package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/flightcore/internal/pid"
)

// MaxRate is the rate setpoint at full stick deflection, deg/s. Sticks map
// linearly with no expo.
const MaxRate = 670

// Command is the pilot input at one instant.
type Command struct {
	Deflection [pid.AxisCount]float32 // [-1, 1]
	Throttle   float32                // [0, 1]
	Mode       pid.FlightMode
	Armed      bool
}

// Event changes the plant once, at the first tick at or after At.
type Event struct {
	At    time.Duration
	Apply func(p *Plant)
}

// Scenario is a scripted flight.
type Scenario struct {
	Name        string
	Description string
	Duration    time.Duration

	// Tune adjusts the profile the scenario needs, if set.
	Tune func(p *pid.Profile)
	// Setup prepares the plant before the first tick, if set.
	Setup   func(p *Plant)
	Command func(t time.Duration) Command
	Events  []Event
}

func hover(time.Duration) Command {
	return Command{Throttle: 0.5, Armed: true}
}

var scenarios = map[string]Scenario{
	"hover": {
		Name:        "hover",
		Description: "sticks centred in rate mode",
		Duration:    2 * time.Second,
		Command:     hover,
	},
	"step": {
		Name:        "step",
		Description: "rate steps on all three axes",
		Duration:    1500 * time.Millisecond,
		Command: func(t time.Duration) Command {
			c := hover(t)
			if t >= 250*time.Millisecond {
				c.Deflection = [pid.AxisCount]float32{0.3, -0.2, 0.1}
			}
			return c
		},
	},
	"angle": {
		Name:        "angle",
		Description: "angle mode, half roll stick then release",
		Duration:    2 * time.Second,
		Command: func(t time.Duration) Command {
			c := hover(t)
			c.Mode = pid.ModeAngle
			if t >= 250*time.Millisecond && t < time.Second {
				c.Deflection[pid.AxisRoll] = 0.5
			}
			return c
		},
	},
	"horizon": {
		Name:        "horizon",
		Description: "horizon mode self-levels from a 20 degree roll",
		Duration:    2 * time.Second,
		Setup:       func(p *Plant) { p.SetAttitude(20, -10) },
		Command: func(t time.Duration) Command {
			c := hover(t)
			c.Mode = pid.ModeHorizon
			return c
		},
	},
	"crash": {
		Name:        "crash",
		Description: "an impact while hovering with crash recovery enabled",
		Duration:    2 * time.Second,
		Tune:        func(p *pid.Profile) { p.CrashRecovery = pid.CrashRecoveryBeep },
		Command:     hover,
		Events: []Event{{
			At: 500 * time.Millisecond,
			Apply: func(p *Plant) {
				p.Strike(pid.AxisRoll, 1200)
				p.Strike(pid.AxisPitch, -600)
			},
		}},
	},
	"saturate": {
		Name:        "saturate",
		Description: "full stick on every axis, driving the motors into saturation",
		Duration:    time.Second,
		Command: func(t time.Duration) Command {
			c := hover(t)
			if t >= 200*time.Millisecond {
				c.Deflection = [pid.AxisCount]float32{1, 1, 1}
			}
			return c
		},
	},
}

// ScenarioNames lists the built-in scenarios in name order.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupScenario returns the built-in scenario called name.
func LookupScenario(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q", name)
	}
	return s, nil
}
