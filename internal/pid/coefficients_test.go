package pid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/flightcore/internal/timeutil"
)

func TestResolveCoefficientsDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	got := ResolveCoefficients(&p, 250)

	want := Coefficients{
		LooptimeUs:                    250,
		DT:                            0.00025,
		Kp:                            [AxisCount]float32{0.032029 * 40, 0.032029 * 58, 0.032029 * 70},
		Ki:                            [AxisCount]float32{0.244381 * 40, 0.244381 * 50, 0.244381 * 45},
		Kd:                            [AxisCount]float32{0.000529 * 30, 0.000529 * 35, 0.000529 * 20},
		MaxVelocity:                   [AxisCount]float32{0, 0, 2.5},
		DtermSetpointWeight:           0,
		RelaxFactor:                   1,
		LevelGain:                     5,
		HorizonGain:                   5,
		HorizonTransition:             75,
		HorizonCutoffDegrees:          81,
		HorizonFactorRatio:            -0.3,
		LevelAngleLimit:               65,
		ITermWindupPointInv:           2,
		ItermLimit:                    150,
		CrashRecovery:                 CrashRecoveryOff,
		CrashTimeLimit:                500000,
		CrashTimeDelay:                0,
		CrashRecoveryAngleDecidegrees: 100,
		CrashRecoveryRate:             100,
		CrashDtermThreshold:           50,
		CrashGyroThreshold:            400,
		CrashSetpointThreshold:        350,
		CrashLimitYaw:                 200,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("ResolveCoefficients mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveCoefficientsConversions(t *testing.T) {
	p := DefaultProfile()
	p.DtermSetpointWeight = 254
	p.SetpointRelaxRatio = 50
	p.RateAccelLimit = 200
	p.CrashDelayMs = 40
	p.CrashTimeMs = 1200
	p.HorizonTiltEffect = 200
	p.ItermWindupPointPercent = 80

	c := ResolveCoefficients(&p, 1000)
	assert.InDelta(t, 2.0, c.DtermSetpointWeight, 1e-6)
	assert.InDelta(t, 2.0, c.RelaxFactor, 1e-6)
	assert.InDelta(t, 20.0, c.MaxVelocity[AxisRoll], 1e-4)
	assert.Equal(t, c.MaxVelocity[AxisRoll], c.MaxVelocity[AxisPitch])
	assert.InDelta(t, 10.0, c.MaxVelocity[AxisYaw], 1e-4)
	assert.Equal(t, timeutil.DeltaUs(40000), c.CrashTimeDelay)
	assert.Equal(t, timeutil.DeltaUs(1200000), c.CrashTimeLimit)
	assert.Less(t, c.HorizonCutoffDegrees, float32(0), "tilt effect above 175 disables leveling")
	assert.InDelta(t, 5.0, c.ITermWindupPointInv, 1e-4)
}

func TestResolveCoefficientsZeroLooptime(t *testing.T) {
	p := DefaultProfile()
	c := ResolveCoefficients(&p, 0)
	assert.Zero(t, c.DT)
	assert.Zero(t, c.MaxVelocity[AxisYaw])
}
