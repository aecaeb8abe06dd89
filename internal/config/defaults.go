package config

import "strings"

// Gains is a resolved P/I/D triple.
type Gains struct {
	P, I, D int
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func (g *GainsConfig) resolve(def Gains) Gains {
	if g == nil {
		return def
	}
	return Gains{
		P: getInt(g.P, def.P),
		I: getInt(g.I, def.I),
		D: getInt(g.D, def.D),
	}
}

// GetRoll returns the roll gains or the defaults (40/40/30).
func (c *ProfileConfig) GetRoll() Gains { return c.Roll.resolve(Gains{40, 40, 30}) }

// GetPitch returns the pitch gains or the defaults (58/50/35).
func (c *ProfileConfig) GetPitch() Gains { return c.Pitch.resolve(Gains{58, 50, 35}) }

// GetYaw returns the yaw gains or the defaults (70/45/20).
func (c *ProfileConfig) GetYaw() Gains { return c.Yaw.resolve(Gains{70, 45, 20}) }

// GetLevel returns the level gains or the defaults (50/50/75).
func (c *ProfileConfig) GetLevel() Gains { return c.Level.resolve(Gains{50, 50, 75}) }

func (c *ProfileConfig) GetYawLowpassHz() int     { return getInt(c.YawLowpassHz, 0) }
func (c *ProfileConfig) GetDtermLowpassHz() int   { return getInt(c.DtermLowpassHz, 100) }
func (c *ProfileConfig) GetDtermNotchHz() int     { return getInt(c.DtermNotchHz, 260) }
func (c *ProfileConfig) GetDtermNotchCutoff() int { return getInt(c.DtermNotchCutoff, 160) }

// GetDtermFilterType returns the lower-cased filter name, default "biquad".
func (c *ProfileConfig) GetDtermFilterType() string {
	if c.DtermFilterType == nil || *c.DtermFilterType == "" {
		return "biquad"
	}
	return strings.ToLower(*c.DtermFilterType)
}

func (c *ProfileConfig) GetItermWindupPointPercent() int { return getInt(c.ItermWindupPointPercent, 50) }
func (c *ProfileConfig) GetItermLimit() int              { return getInt(c.ItermLimit, 150) }
func (c *ProfileConfig) GetItermThrottleThreshold() int  { return getInt(c.ItermThrottleThreshold, 350) }
func (c *ProfileConfig) GetItermAcceleratorGain() int    { return getInt(c.ItermAcceleratorGain, 1000) }

func (c *ProfileConfig) GetLevelAngleLimit() int     { return getInt(c.LevelAngleLimit, 65) }
func (c *ProfileConfig) GetSetpointRelaxRatio() int  { return getInt(c.SetpointRelaxRatio, 100) }
func (c *ProfileConfig) GetDtermSetpointWeight() int { return getInt(c.DtermSetpointWeight, 0) }
func (c *ProfileConfig) GetYawRateAccelLimit() int   { return getInt(c.YawRateAccelLimit, 100) }
func (c *ProfileConfig) GetRateAccelLimit() int      { return getInt(c.RateAccelLimit, 0) }
func (c *ProfileConfig) GetHorizonTiltEffect() int   { return getInt(c.HorizonTiltEffect, 130) }

// GetHorizonTiltExpertMode returns the expert mode flag, default false.
func (c *ProfileConfig) GetHorizonTiltExpertMode() bool {
	if c.HorizonTiltExpertMode == nil {
		return false
	}
	return *c.HorizonTiltExpertMode
}

// GetCrashRecovery returns the lower-cased crash recovery policy, default "off".
func (c *ProfileConfig) GetCrashRecovery() string {
	if c.CrashRecovery == nil || *c.CrashRecovery == "" {
		return "off"
	}
	return strings.ToLower(*c.CrashRecovery)
}

func (c *ProfileConfig) GetCrashTimeMs() int            { return getInt(c.CrashTimeMs, 500) }
func (c *ProfileConfig) GetCrashDelayMs() int           { return getInt(c.CrashDelayMs, 0) }
func (c *ProfileConfig) GetCrashRecoveryAngle() int     { return getInt(c.CrashRecoveryAngle, 10) }
func (c *ProfileConfig) GetCrashRecoveryRate() int      { return getInt(c.CrashRecoveryRate, 100) }
func (c *ProfileConfig) GetCrashDThreshold() int        { return getInt(c.CrashDThreshold, 50) }
func (c *ProfileConfig) GetCrashGThreshold() int        { return getInt(c.CrashGThreshold, 400) }
func (c *ProfileConfig) GetCrashSetpointThreshold() int { return getInt(c.CrashSetpointThreshold, 350) }
func (c *ProfileConfig) GetCrashLimitYaw() int          { return getInt(c.CrashLimitYaw, 200) }

func (c *ProfileConfig) GetGyroLooptimeUs() int  { return getInt(c.GyroLooptimeUs, 125) }
func (c *ProfileConfig) GetPIDProcessDenom() int { return getInt(c.PIDProcessDenom, 2) }
