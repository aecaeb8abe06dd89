package pid

import (
	"fmt"

	"github.com/banshee-data/flightcore/internal/config"
)

func gainsFromConfig(g config.Gains) Gains {
	return Gains{P: uint8(g.P), I: uint8(g.I), D: uint8(g.D)}
}

// ProfileFromConfig builds a Profile from a validated profile file. Unset
// fields take the DefaultProfile values.
func ProfileFromConfig(cfg *config.ProfileConfig) (Profile, error) {
	p := DefaultProfile()
	if cfg == nil {
		return p, nil
	}

	filterType, err := ParseFilterType(cfg.GetDtermFilterType())
	if err != nil {
		return Profile{}, err
	}
	crashMode, err := ParseCrashRecoveryMode(cfg.GetCrashRecovery())
	if err != nil {
		return Profile{}, err
	}

	p.PID[PIDRoll] = gainsFromConfig(cfg.GetRoll())
	p.PID[PIDPitch] = gainsFromConfig(cfg.GetPitch())
	p.PID[PIDYaw] = gainsFromConfig(cfg.GetYaw())
	p.PID[PIDLevel] = gainsFromConfig(cfg.GetLevel())

	p.YawLowpassHz = uint16(cfg.GetYawLowpassHz())
	p.DtermLowpassHz = uint16(cfg.GetDtermLowpassHz())
	p.DtermNotchHz = uint16(cfg.GetDtermNotchHz())
	p.DtermNotchCutoff = uint16(cfg.GetDtermNotchCutoff())
	p.DtermFilterType = filterType

	p.ItermWindupPointPercent = uint8(cfg.GetItermWindupPointPercent())
	p.ItermLimit = uint16(cfg.GetItermLimit())
	p.ItermThrottleThreshold = uint16(cfg.GetItermThrottleThreshold())
	p.ItermAcceleratorGain = uint16(cfg.GetItermAcceleratorGain())

	p.LevelAngleLimit = uint8(cfg.GetLevelAngleLimit())
	p.SetpointRelaxRatio = uint8(cfg.GetSetpointRelaxRatio())
	p.DtermSetpointWeight = uint8(cfg.GetDtermSetpointWeight())
	p.YawRateAccelLimit = uint16(cfg.GetYawRateAccelLimit())
	p.RateAccelLimit = uint16(cfg.GetRateAccelLimit())
	p.HorizonTiltEffect = uint8(cfg.GetHorizonTiltEffect())
	p.HorizonTiltExpertMode = cfg.GetHorizonTiltExpertMode()

	p.CrashRecovery = crashMode
	p.CrashTimeMs = uint16(cfg.GetCrashTimeMs())
	p.CrashDelayMs = uint16(cfg.GetCrashDelayMs())
	p.CrashRecoveryAngle = uint8(cfg.GetCrashRecoveryAngle())
	p.CrashRecoveryRate = uint8(cfg.GetCrashRecoveryRate())
	p.CrashDThreshold = uint16(cfg.GetCrashDThreshold())
	p.CrashGThreshold = uint16(cfg.GetCrashGThreshold())
	p.CrashSetpointThreshold = uint16(cfg.GetCrashSetpointThreshold())
	p.CrashLimitYaw = uint16(cfg.GetCrashLimitYaw())
	return p, nil
}

// LoopConfigFromConfig reads loop timing from a profile file.
func LoopConfigFromConfig(cfg *config.ProfileConfig) (LoopConfig, error) {
	if cfg == nil {
		return DefaultLoopConfig(), nil
	}
	denom := cfg.GetPIDProcessDenom()
	if denom < 1 || denom > 255 {
		return LoopConfig{}, fmt.Errorf("pid_process_denom %d out of range", denom)
	}
	return LoopConfig{
		GyroLooptimeUs: uint32(cfg.GetGyroLooptimeUs()),
		ProcessDenom:   uint8(denom),
	}, nil
}

// LoadProfile loads a profile file and converts it.
func LoadProfile(path string) (Profile, LoopConfig, error) {
	cfg, err := config.LoadProfileConfig(path)
	if err != nil {
		return Profile{}, LoopConfig{}, err
	}
	p, err := ProfileFromConfig(cfg)
	if err != nil {
		return Profile{}, LoopConfig{}, fmt.Errorf("profile %s: %w", path, err)
	}
	loop, err := LoopConfigFromConfig(cfg)
	if err != nil {
		return Profile{}, LoopConfig{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, loop, nil
}
