package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical profile defaults file.
const DefaultConfigPath = "config/profile.defaults.json"

// GainsConfig is a P/I/D triple as it appears in a profile file.
type GainsConfig struct {
	P *int `json:"p,omitempty" yaml:"p,omitempty"`
	I *int `json:"i,omitempty" yaml:"i,omitempty"`
	D *int `json:"d,omitempty" yaml:"d,omitempty"`
}

// ProfileConfig is the file schema for a PID profile plus loop timing.
// Omitted fields fall back to the firmware defaults through the Get*
// accessors, so partial files are safe.
type ProfileConfig struct {
	// Gains
	Roll  *GainsConfig `json:"roll,omitempty" yaml:"roll,omitempty"`
	Pitch *GainsConfig `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Yaw   *GainsConfig `json:"yaw,omitempty" yaml:"yaw,omitempty"`
	Level *GainsConfig `json:"level,omitempty" yaml:"level,omitempty"`

	// Filters
	YawLowpassHz     *int    `json:"yaw_lpf_hz,omitempty" yaml:"yaw_lpf_hz,omitempty"`
	DtermLowpassHz   *int    `json:"dterm_lpf_hz,omitempty" yaml:"dterm_lpf_hz,omitempty"`
	DtermNotchHz     *int    `json:"dterm_notch_hz,omitempty" yaml:"dterm_notch_hz,omitempty"`
	DtermNotchCutoff *int    `json:"dterm_notch_cutoff,omitempty" yaml:"dterm_notch_cutoff,omitempty"`
	DtermFilterType  *string `json:"dterm_filter_type,omitempty" yaml:"dterm_filter_type,omitempty"` // pt1, biquad or fir

	// Integral
	ItermWindupPointPercent *int `json:"iterm_windup_point_percent,omitempty" yaml:"iterm_windup_point_percent,omitempty"`
	ItermLimit              *int `json:"iterm_limit,omitempty" yaml:"iterm_limit,omitempty"`
	ItermThrottleThreshold  *int `json:"iterm_throttle_threshold,omitempty" yaml:"iterm_throttle_threshold,omitempty"`
	ItermAcceleratorGain    *int `json:"iterm_accelerator_gain,omitempty" yaml:"iterm_accelerator_gain,omitempty"`

	// Setpoint shaping
	LevelAngleLimit       *int  `json:"level_angle_limit,omitempty" yaml:"level_angle_limit,omitempty"`
	SetpointRelaxRatio    *int  `json:"setpoint_relax_ratio,omitempty" yaml:"setpoint_relax_ratio,omitempty"`
	DtermSetpointWeight   *int  `json:"dterm_setpoint_weight,omitempty" yaml:"dterm_setpoint_weight,omitempty"`
	YawRateAccelLimit     *int  `json:"yaw_rate_accel_limit,omitempty" yaml:"yaw_rate_accel_limit,omitempty"`
	RateAccelLimit        *int  `json:"rate_accel_limit,omitempty" yaml:"rate_accel_limit,omitempty"`
	HorizonTiltEffect     *int  `json:"horizon_tilt_effect,omitempty" yaml:"horizon_tilt_effect,omitempty"`
	HorizonTiltExpertMode *bool `json:"horizon_tilt_expert_mode,omitempty" yaml:"horizon_tilt_expert_mode,omitempty"`

	// Crash recovery
	CrashRecovery          *string `json:"crash_recovery,omitempty" yaml:"crash_recovery,omitempty"` // off, on or beep
	CrashTimeMs            *int    `json:"crash_time_ms,omitempty" yaml:"crash_time_ms,omitempty"`
	CrashDelayMs           *int    `json:"crash_delay_ms,omitempty" yaml:"crash_delay_ms,omitempty"`
	CrashRecoveryAngle     *int    `json:"crash_recovery_angle,omitempty" yaml:"crash_recovery_angle,omitempty"`
	CrashRecoveryRate      *int    `json:"crash_recovery_rate,omitempty" yaml:"crash_recovery_rate,omitempty"`
	CrashDThreshold        *int    `json:"crash_dthreshold,omitempty" yaml:"crash_dthreshold,omitempty"`
	CrashGThreshold        *int    `json:"crash_gthreshold,omitempty" yaml:"crash_gthreshold,omitempty"`
	CrashSetpointThreshold *int    `json:"crash_setpoint_threshold,omitempty" yaml:"crash_setpoint_threshold,omitempty"`
	CrashLimitYaw          *int    `json:"crash_limit_yaw,omitempty" yaml:"crash_limit_yaw,omitempty"`

	// Loop timing
	GyroLooptimeUs  *int `json:"gyro_looptime_us,omitempty" yaml:"gyro_looptime_us,omitempty"`
	PIDProcessDenom *int `json:"pid_process_denom,omitempty" yaml:"pid_process_denom,omitempty"`
}

// EmptyProfileConfig returns a ProfileConfig with all fields unset.
func EmptyProfileConfig() *ProfileConfig {
	return &ProfileConfig{}
}

// LoadProfileConfig loads a ProfileConfig from a .json, .yaml or .yml file
// no larger than 1MB, and validates it.
func LoadProfileConfig(path string) (*ProfileConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyProfileConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *ProfileConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadProfileConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

type intRange struct {
	name   string
	value  *int
	lo, hi int
}

// Validate checks every set field against its storage range.
func (c *ProfileConfig) Validate() error {
	checks := []intRange{
		{"yaw_lpf_hz", c.YawLowpassHz, 0, 500},
		{"dterm_lpf_hz", c.DtermLowpassHz, 0, 16000},
		{"dterm_notch_hz", c.DtermNotchHz, 0, 16000},
		{"dterm_notch_cutoff", c.DtermNotchCutoff, 0, 16000},
		{"iterm_windup_point_percent", c.ItermWindupPointPercent, 0, 99},
		{"iterm_limit", c.ItermLimit, 0, 500},
		{"iterm_throttle_threshold", c.ItermThrottleThreshold, 20, 1000},
		{"iterm_accelerator_gain", c.ItermAcceleratorGain, 1000, 30000},
		{"level_angle_limit", c.LevelAngleLimit, 10, 90},
		{"setpoint_relax_ratio", c.SetpointRelaxRatio, 0, 100},
		{"dterm_setpoint_weight", c.DtermSetpointWeight, 0, 254},
		{"yaw_rate_accel_limit", c.YawRateAccelLimit, 0, 1000},
		{"rate_accel_limit", c.RateAccelLimit, 0, 1000},
		{"horizon_tilt_effect", c.HorizonTiltEffect, 0, 250},
		{"crash_time_ms", c.CrashTimeMs, 0, 5000},
		{"crash_delay_ms", c.CrashDelayMs, 0, 500},
		{"crash_recovery_angle", c.CrashRecoveryAngle, 5, 30},
		{"crash_recovery_rate", c.CrashRecoveryRate, 50, 255},
		{"crash_dthreshold", c.CrashDThreshold, 0, 2000},
		{"crash_gthreshold", c.CrashGThreshold, 0, 2000},
		{"crash_setpoint_threshold", c.CrashSetpointThreshold, 0, 2000},
		{"crash_limit_yaw", c.CrashLimitYaw, 0, 1000},
		{"gyro_looptime_us", c.GyroLooptimeUs, 0, 20000},
		{"pid_process_denom", c.PIDProcessDenom, 1, 16},
	}
	for _, g := range []struct {
		axis string
		g    *GainsConfig
	}{{"roll", c.Roll}, {"pitch", c.Pitch}, {"yaw", c.Yaw}, {"level", c.Level}} {
		if g.g == nil {
			continue
		}
		checks = append(checks,
			intRange{g.axis + ".p", g.g.P, 0, 255},
			intRange{g.axis + ".i", g.g.I, 0, 255},
			intRange{g.axis + ".d", g.g.D, 0, 255},
		)
	}
	for _, r := range checks {
		if r.value == nil {
			continue
		}
		if *r.value < r.lo || *r.value > r.hi {
			return fmt.Errorf("%s must be between %d and %d, got %d", r.name, r.lo, r.hi, *r.value)
		}
	}

	if c.DtermFilterType != nil {
		switch strings.ToLower(*c.DtermFilterType) {
		case "pt1", "biquad", "fir":
		default:
			return fmt.Errorf("dterm_filter_type must be pt1, biquad or fir, got %q", *c.DtermFilterType)
		}
	}
	if c.CrashRecovery != nil {
		switch strings.ToLower(*c.CrashRecovery) {
		case "off", "on", "beep":
		default:
			return fmt.Errorf("crash_recovery must be off, on or beep, got %q", *c.CrashRecovery)
		}
	}
	return nil
}
