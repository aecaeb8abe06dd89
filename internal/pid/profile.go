// Package pid implements the attitude-rate control core: filter chain
// construction, coefficient resolution, setpoint shaping, crash recovery and
// the per-tick 2-DOF PID computation.
//
// A Controller is owned by exactly one goroutine. Reconfigure and Update must
// not overlap; Output and Snapshot return copies that may be handed to other
// goroutines.
package pid

import (
	"fmt"
	"strings"
)

// Axis is a control axis.
type Axis int

const (
	AxisRoll Axis = iota
	AxisPitch
	AxisYaw
)

// AxisCount is the number of controlled axes.
const AxisCount = 3

// Axes lists the controlled axes in tick order.
var Axes = [AxisCount]Axis{AxisRoll, AxisPitch, AxisYaw}

func (a Axis) String() string {
	switch a {
	case AxisRoll:
		return "roll"
	case AxisPitch:
		return "pitch"
	case AxisYaw:
		return "yaw"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// GainIndex selects a gain triple in Profile.PID.
type GainIndex int

const (
	PIDRoll GainIndex = iota
	PIDPitch
	PIDYaw
	PIDAlt
	PIDPos
	PIDPosR
	PIDNavR
	PIDLevel
	PIDMag
	PIDVel
	GainCount
)

// Gains is a human-scaled P/I/D triple.
type Gains struct {
	P uint8 `json:"p" yaml:"p"`
	I uint8 `json:"i" yaml:"i"`
	D uint8 `json:"d" yaml:"d"`
}

// FilterType selects the D-term low-pass implementation.
type FilterType uint8

const (
	FilterPT1 FilterType = iota
	FilterBiquad
	FilterFIR
)

var filterTypeNames = map[FilterType]string{
	FilterPT1:    "pt1",
	FilterBiquad: "biquad",
	FilterFIR:    "fir",
}

func (f FilterType) String() string {
	if s, ok := filterTypeNames[f]; ok {
		return s
	}
	return fmt.Sprintf("filter(%d)", uint8(f))
}

// ParseFilterType maps a name such as "biquad" to its FilterType.
func ParseFilterType(s string) (FilterType, error) {
	for k, v := range filterTypeNames {
		if strings.EqualFold(s, v) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown dterm filter type %q", s)
}

// CrashRecoveryMode is the crash detection policy.
type CrashRecoveryMode uint8

const (
	CrashRecoveryOff CrashRecoveryMode = iota
	CrashRecoveryOn
	CrashRecoveryBeep
)

var crashRecoveryNames = map[CrashRecoveryMode]string{
	CrashRecoveryOff:  "off",
	CrashRecoveryOn:   "on",
	CrashRecoveryBeep: "beep",
}

func (m CrashRecoveryMode) String() string {
	if s, ok := crashRecoveryNames[m]; ok {
		return s
	}
	return fmt.Sprintf("crash_recovery(%d)", uint8(m))
}

// ParseCrashRecoveryMode maps "off", "on" or "beep" to a CrashRecoveryMode.
func ParseCrashRecoveryMode(s string) (CrashRecoveryMode, error) {
	for k, v := range crashRecoveryNames {
		if strings.EqualFold(s, v) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown crash recovery mode %q", s)
}

// Profile is a tunable PID profile in human-scaled units.
type Profile struct {
	PID [GainCount]Gains `json:"pid" yaml:"pid"`

	YawLowpassHz     uint16     `json:"yaw_lpf_hz" yaml:"yaw_lpf_hz"`
	DtermLowpassHz   uint16     `json:"dterm_lpf_hz" yaml:"dterm_lpf_hz"`
	DtermNotchHz     uint16     `json:"dterm_notch_hz" yaml:"dterm_notch_hz"`
	DtermNotchCutoff uint16     `json:"dterm_notch_cutoff" yaml:"dterm_notch_cutoff"`
	DtermFilterType  FilterType `json:"dterm_filter_type" yaml:"dterm_filter_type"`

	ItermWindupPointPercent uint8  `json:"iterm_windup_point_percent" yaml:"iterm_windup_point_percent"`
	ItermLimit              uint16 `json:"iterm_limit" yaml:"iterm_limit"`
	ItermThrottleThreshold  uint16 `json:"iterm_throttle_threshold" yaml:"iterm_throttle_threshold"`
	ItermAcceleratorGain    uint16 `json:"iterm_accelerator_gain" yaml:"iterm_accelerator_gain"` // 1000 = x1

	LevelAngleLimit     uint8  `json:"level_angle_limit" yaml:"level_angle_limit"` // degrees
	SetpointRelaxRatio  uint8  `json:"setpoint_relax_ratio" yaml:"setpoint_relax_ratio"`
	DtermSetpointWeight uint8  `json:"dterm_setpoint_weight" yaml:"dterm_setpoint_weight"`
	YawRateAccelLimit   uint16 `json:"yaw_rate_accel_limit" yaml:"yaw_rate_accel_limit"` // 0 = off
	RateAccelLimit      uint16 `json:"rate_accel_limit" yaml:"rate_accel_limit"`         // 0 = off

	CrashTimeMs            uint16            `json:"crash_time_ms" yaml:"crash_time_ms"`
	CrashDelayMs           uint16            `json:"crash_delay_ms" yaml:"crash_delay_ms"`
	CrashRecoveryAngle     uint8             `json:"crash_recovery_angle" yaml:"crash_recovery_angle"` // degrees
	CrashRecoveryRate      uint8             `json:"crash_recovery_rate" yaml:"crash_recovery_rate"`   // deg/s
	CrashDThreshold        uint16            `json:"crash_dthreshold" yaml:"crash_dthreshold"`
	CrashGThreshold        uint16            `json:"crash_gthreshold" yaml:"crash_gthreshold"`
	CrashSetpointThreshold uint16            `json:"crash_setpoint_threshold" yaml:"crash_setpoint_threshold"`
	CrashLimitYaw          uint16            `json:"crash_limit_yaw" yaml:"crash_limit_yaw"`
	CrashRecovery          CrashRecoveryMode `json:"crash_recovery" yaml:"crash_recovery"`

	HorizonTiltEffect     uint8 `json:"horizon_tilt_effect" yaml:"horizon_tilt_effect"`
	HorizonTiltExpertMode bool  `json:"horizon_tilt_expert_mode" yaml:"horizon_tilt_expert_mode"`
}

// DefaultProfile returns the firmware reset profile.
func DefaultProfile() Profile {
	p := Profile{
		YawLowpassHz:            0,
		DtermLowpassHz:          100,
		DtermNotchHz:            260,
		DtermNotchCutoff:        160,
		DtermFilterType:         FilterBiquad,
		ItermWindupPointPercent: 50,
		ItermLimit:              150,
		ItermThrottleThreshold:  350,
		ItermAcceleratorGain:    1000,
		LevelAngleLimit:         65,
		SetpointRelaxRatio:      100,
		DtermSetpointWeight:     0,
		YawRateAccelLimit:       100,
		RateAccelLimit:          0,
		CrashTimeMs:             500,
		CrashDelayMs:            0,
		CrashRecoveryAngle:      10,
		CrashRecoveryRate:       100,
		CrashDThreshold:         50,
		CrashGThreshold:         400,
		CrashSetpointThreshold:  350,
		CrashLimitYaw:           200,
		CrashRecovery:           CrashRecoveryOff,
		HorizonTiltEffect:       130,
		HorizonTiltExpertMode:   false,
	}
	p.PID[PIDRoll] = Gains{40, 40, 30}
	p.PID[PIDPitch] = Gains{58, 50, 35}
	p.PID[PIDYaw] = Gains{70, 45, 20}
	p.PID[PIDAlt] = Gains{50, 0, 0}
	p.PID[PIDPos] = Gains{15, 0, 0}
	p.PID[PIDPosR] = Gains{34, 14, 53}
	p.PID[PIDNavR] = Gains{25, 33, 83}
	p.PID[PIDLevel] = Gains{50, 50, 75}
	p.PID[PIDMag] = Gains{40, 0, 0}
	p.PID[PIDVel] = Gains{55, 55, 75}
	return p
}

// LoopConfig describes the loop timing the controller runs at.
type LoopConfig struct {
	GyroLooptimeUs uint32 // gyro sample period
	ProcessDenom   uint8  // run the PID loop every Nth gyro sample
}

// DefaultLoopConfig is an 8 kHz gyro with the PID loop at 4 kHz.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{GyroLooptimeUs: 125, ProcessDenom: 2}
}

// TargetLooptimeUs is the nominal PID loop period. Zero means not started.
func (l LoopConfig) TargetLooptimeUs() uint32 {
	return l.GyroLooptimeUs * uint32(l.ProcessDenom)
}
