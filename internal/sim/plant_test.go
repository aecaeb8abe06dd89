package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/flightcore/internal/pid"
)

func TestPlantDampsAndIntegrates(t *testing.T) {
	p := NewPlant(PlantConfig{Damping: [pid.AxisCount]float32{5, 5, 5}})
	p.Strike(pid.AxisRoll, 100)
	assert.Equal(t, float32(100), p.Rate()[pid.AxisRoll])

	for i := 0; i < 1000; i++ {
		p.Step([pid.AxisCount]float32{}, 0.001)
	}
	assert.Less(t, p.Rate()[pid.AxisRoll], float32(1), "rate decays")
	// 100 deg/s decaying at 5/s sweeps about 20 degrees.
	assert.InDelta(t, 20, p.AttitudeDegrees()[pid.AxisRoll], 0.5)
	assert.InDelta(t, 200, p.Attitude()[pid.AxisRoll], 5)
	assert.Zero(t, p.AttitudeDegrees()[pid.AxisPitch])
}

func TestPlantMotorLag(t *testing.T) {
	cfg := PlantConfig{Authority: [pid.AxisCount]float32{10, 10, 10}, MotorLag: 0.02}
	lagged := NewPlant(cfg)
	cfg.MotorLag = 0
	direct := NewPlant(cfg)

	cmd := [pid.AxisCount]float32{0, 100, 0}
	lagged.Step(cmd, 0.001)
	direct.Step(cmd, 0.001)
	assert.InDelta(t, 1.0, direct.Rate()[pid.AxisPitch], 1e-6)
	assert.Less(t, lagged.Rate()[pid.AxisPitch], direct.Rate()[pid.AxisPitch])
	assert.Positive(t, lagged.Rate()[pid.AxisPitch])
}

func TestPlantDisturbance(t *testing.T) {
	p := NewPlant(PlantConfig{})
	p.SetDisturbance(pid.AxisYaw, 1000)
	p.Step([pid.AxisCount]float32{}, 0.01)
	assert.InDelta(t, 10, p.Rate()[pid.AxisYaw], 1e-4)

	p.SetDisturbance(pid.AxisYaw, 0)
	p.Step([pid.AxisCount]float32{}, 0.01)
	assert.InDelta(t, 10, p.Rate()[pid.AxisYaw], 1e-4)
}

func TestPlantAttitudeWraps(t *testing.T) {
	p := NewPlant(PlantConfig{})
	p.SetAttitude(190, -200)
	assert.InDelta(t, -170, p.AttitudeDegrees()[0], 1e-4)
	assert.InDelta(t, 160, p.AttitudeDegrees()[1], 1e-4)

	p.SetAttitude(179.99, 0)
	assert.Equal(t, int16(1799), p.Attitude()[0])
}

func TestQuadMixer(t *testing.T) {
	tests := []struct {
		name      string
		sum       [pid.AxisCount]float32
		wantRange float32
		wantCmd   [pid.AxisCount]float32
		saturated bool
	}{
		{"idle", [pid.AxisCount]float32{}, 0, [pid.AxisCount]float32{}, false},
		{"half roll", [pid.AxisCount]float32{250, 0, 0}, 0.5, [pid.AxisCount]float32{250, 0, 0}, false},
		{"full roll", [pid.AxisCount]float32{500, 0, 0}, 1, [pid.AxisCount]float32{500, 0, 0}, true},
		{"over range", [pid.AxisCount]float32{2000, 0, 0}, 4, [pid.AxisCount]float32{500, 0, 0}, true},
		{"mixed", [pid.AxisCount]float32{100, 100, 100}, 0.4, [pid.AxisCount]float32{100, 100, 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m QuadMixer
			m.Mix(tt.sum, 0.5)
			assert.InDelta(t, tt.wantRange, m.MotorMixRange(), 1e-6)
			assert.Equal(t, tt.saturated, m.IsOutputSaturated(pid.AxisYaw, 0))
			for axis := range tt.wantCmd {
				assert.InDelta(t, tt.wantCmd[axis], m.AxisCommand()[axis], 1e-3)
			}
			for _, motor := range m.Motors() {
				assert.GreaterOrEqual(t, motor, float32(0))
				assert.LessOrEqual(t, motor, float32(1))
			}
		})
	}
}

func TestQuadMixerMotorDirections(t *testing.T) {
	var m QuadMixer
	m.Mix([pid.AxisCount]float32{100, 0, 0}, 0.5)
	motors := m.Motors()
	assert.InDelta(t, 0.4, motors[0], 1e-6, "right side slows for positive roll")
	assert.InDelta(t, 0.4, motors[1], 1e-6)
	assert.InDelta(t, 0.6, motors[2], 1e-6)
	assert.InDelta(t, 0.6, motors[3], 1e-6)
}
