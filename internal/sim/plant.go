// Package sim flies the rate controller against a simple rigid-body model
// in virtual time. It is a test harness, not a real-time scheduler.
package sim

import (
	"github.com/banshee-data/flightcore/internal/mathutil"
	"github.com/banshee-data/flightcore/internal/monitoring"
	"github.com/banshee-data/flightcore/internal/pid"
)

var logger = monitoring.NewLogger("[sim] ")

// MaxGyroRate is the gyro full-scale range in deg/s. Rates beyond it are
// reported as an overflow.
const MaxGyroRate = 2000

// PlantConfig describes the simulated airframe.
type PlantConfig struct {
	Authority [pid.AxisCount]float32 `json:"authority"` // deg/s² per unit of PID sum
	Damping   [pid.AxisCount]float32 `json:"damping"`   // 1/s
	MotorLag  float32                `json:"motor_lag"` // motor time constant, s
}

// DefaultPlantConfig is a 5 inch class quad: stiff on roll and pitch, soft
// on yaw.
func DefaultPlantConfig() PlantConfig {
	return PlantConfig{
		Authority: [pid.AxisCount]float32{40, 40, 15},
		Damping:   [pid.AxisCount]float32{5, 5, 3},
		MotorLag:  0.015,
	}
}

// Plant integrates body rates and attitude from axis commands.
type Plant struct {
	cfg         PlantConfig
	rate        [pid.AxisCount]float32 // deg/s
	motor       [pid.AxisCount]float32 // lagged command
	disturbance [pid.AxisCount]float32 // external deg/s²
	attitude    [2]float32             // roll, pitch in degrees
}

// NewPlant returns a plant at rest and level.
func NewPlant(cfg PlantConfig) *Plant {
	return &Plant{cfg: cfg}
}

// Step advances the plant by dt seconds under the given per-axis command.
func (p *Plant) Step(command [pid.AxisCount]float32, dt float32) {
	for _, axis := range pid.Axes {
		if p.cfg.MotorLag > 0 {
			p.motor[axis] += (command[axis] - p.motor[axis]) * dt / (p.cfg.MotorLag + dt)
		} else {
			p.motor[axis] = command[axis]
		}
		accel := p.cfg.Authority[axis]*p.motor[axis] + p.disturbance[axis] - p.cfg.Damping[axis]*p.rate[axis]
		p.rate[axis] += accel * dt
	}
	p.attitude[pid.AxisRoll] = wrapDegrees(p.attitude[pid.AxisRoll] + p.rate[pid.AxisRoll]*dt)
	p.attitude[pid.AxisPitch] = wrapDegrees(p.attitude[pid.AxisPitch] + p.rate[pid.AxisPitch]*dt)
}

func wrapDegrees(deg float32) float32 {
	for deg > 180 {
		deg -= 360
	}
	for deg <= -180 {
		deg += 360
	}
	return deg
}

// Rate returns the true body rates in deg/s.
func (p *Plant) Rate() [pid.AxisCount]float32 { return p.rate }

// AttitudeDegrees returns roll and pitch in degrees.
func (p *Plant) AttitudeDegrees() [2]float32 { return p.attitude }

// Attitude returns roll and pitch in decidegrees, as an attitude estimator
// would report them.
func (p *Plant) Attitude() [2]int16 {
	return [2]int16{
		int16(mathutil.Constrain(p.attitude[0]*10, -1800, 1800)),
		int16(mathutil.Constrain(p.attitude[1]*10, -1800, 1800)),
	}
}

// SetAttitude places the craft at roll and pitch degrees.
func (p *Plant) SetAttitude(roll, pitch float32) {
	p.attitude = [2]float32{wrapDegrees(roll), wrapDegrees(pitch)}
}

// Strike adds an instantaneous rate change on axis, as an impact would.
func (p *Plant) Strike(axis pid.Axis, rate float32) {
	p.rate[axis] += rate
}

// SetDisturbance applies a constant external angular acceleration on axis
// until changed.
func (p *Plant) SetDisturbance(axis pid.Axis, accel float32) {
	p.disturbance[axis] = accel
}
