package pid

import "github.com/banshee-data/flightcore/internal/timeutil"

// Fixed scale factors from human-scaled gains to per-unit coefficients.
const (
	PTermScale = 0.032029
	ITermScale = 0.244381
	DTermScale = 0.000529
)

// Coefficients are the loop-rate-scaled values derived from a Profile. They
// are always recomputed as a whole.
type Coefficients struct {
	LooptimeUs uint32
	DT         float32 // nominal loop period, seconds

	Kp, Ki, Kd  [AxisCount]float32
	MaxVelocity [AxisCount]float32 // setpoint units per tick, 0 = no limit

	DtermSetpointWeight float32
	RelaxFactor         float32

	LevelGain             float32
	HorizonGain           float32
	HorizonTransition     float32
	HorizonCutoffDegrees  float32
	HorizonFactorRatio    float32
	HorizonTiltExpertMode bool
	LevelAngleLimit       float32

	ITermWindupPointInv float32
	ItermLimit          float32

	CrashRecovery                 CrashRecoveryMode
	CrashTimeLimit                timeutil.DeltaUs
	CrashTimeDelay                timeutil.DeltaUs
	CrashRecoveryAngleDecidegrees int32
	CrashRecoveryRate             float32
	CrashDtermThreshold           float32
	CrashGyroThreshold            float32
	CrashSetpointThreshold        float32
	CrashLimitYaw                 float32
}

// ResolveCoefficients derives runtime coefficients from p for a loop period
// of looptimeUs microseconds.
func ResolveCoefficients(p *Profile, looptimeUs uint32) Coefficients {
	dT := float32(looptimeUs) * 0.000001
	c := Coefficients{
		LooptimeUs: looptimeUs,
		DT:         dT,
	}
	for _, axis := range Axes {
		g := p.PID[axis]
		c.Kp[axis] = PTermScale * float32(g.P)
		c.Ki[axis] = ITermScale * float32(g.I)
		c.Kd[axis] = DTermScale * float32(g.D)
	}
	c.DtermSetpointWeight = float32(p.DtermSetpointWeight) / 127
	c.RelaxFactor = 1 / (float32(p.SetpointRelaxRatio) / 100)

	level := p.PID[PIDLevel]
	c.LevelGain = float32(level.P) / 10
	c.HorizonGain = float32(level.I) / 10
	c.HorizonTransition = float32(level.D)
	c.HorizonTiltExpertMode = p.HorizonTiltExpertMode
	c.HorizonCutoffDegrees = (175 - float32(p.HorizonTiltEffect)) * 1.8
	c.HorizonFactorRatio = (100 - float32(p.HorizonTiltEffect)) * 0.01
	c.LevelAngleLimit = float32(p.LevelAngleLimit)

	c.MaxVelocity[AxisRoll] = float32(p.RateAccelLimit) * 100 * dT
	c.MaxVelocity[AxisPitch] = c.MaxVelocity[AxisRoll]
	c.MaxVelocity[AxisYaw] = float32(p.YawRateAccelLimit) * 100 * dT

	windupPoint := float32(p.ItermWindupPointPercent) / 100
	c.ITermWindupPointInv = 1 / (1 - windupPoint)
	c.ItermLimit = float32(p.ItermLimit)

	c.CrashRecovery = p.CrashRecovery
	c.CrashTimeLimit = timeutil.FromMillis(p.CrashTimeMs)
	c.CrashTimeDelay = timeutil.FromMillis(p.CrashDelayMs)
	c.CrashRecoveryAngleDecidegrees = int32(p.CrashRecoveryAngle) * 10
	c.CrashRecoveryRate = float32(p.CrashRecoveryRate)
	c.CrashDtermThreshold = float32(p.CrashDThreshold)
	c.CrashGyroThreshold = float32(p.CrashGThreshold)
	c.CrashSetpointThreshold = float32(p.CrashSetpointThreshold)
	c.CrashLimitYaw = float32(p.CrashLimitYaw)
	return c
}
