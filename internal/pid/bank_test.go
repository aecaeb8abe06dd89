package pid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileBankCopyProfile(t *testing.T) {
	tuned := DefaultProfile()
	tuned.PID[PIDRoll] = Gains{P: 90, I: 80, D: 70}
	tuned.CrashRecovery = CrashRecoveryBeep

	tests := []struct {
		name     string
		dst, src int
		wantSlot map[int]bool // slots expected to hold the tuned profile afterwards
	}{
		{"copy 0 to 2", 2, 0, map[int]bool{0: true, 2: true}},
		{"copy into last slot from middle", 2, 1, map[int]bool{0: true}},
		{"same index ignored", 0, 0, map[int]bool{0: true}},
		{"dst out of range", MaxProfileCount, 0, map[int]bool{0: true}},
		{"src out of range", 1, MaxProfileCount, map[int]bool{0: true}},
		{"negative index", -1, 0, map[int]bool{0: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewProfileBank()
			require.NoError(t, b.SetProfile(0, tuned))

			b.CopyProfile(tt.dst, tt.src)

			for i := 0; i < MaxProfileCount; i++ {
				got, err := b.Profile(i)
				require.NoError(t, err)
				want := DefaultProfile()
				if tt.wantSlot[i] {
					want = tuned
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("slot %d (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestProfileBankSelectAndReset(t *testing.T) {
	b := NewProfileBank()
	assert.Equal(t, 0, b.ActiveIndex())

	p := DefaultProfile()
	p.LevelAngleLimit = 45
	require.NoError(t, b.SetProfile(1, p))
	require.NoError(t, b.Select(1))
	assert.Equal(t, uint8(45), b.Active().LevelAngleLimit)

	b.ResetProfile(1)
	assert.Equal(t, DefaultProfile(), b.Active())
	b.ResetProfile(7) // ignored

	assert.Error(t, b.Select(MaxProfileCount))
	assert.Error(t, b.SetProfile(-1, p))
	_, err := b.Profile(3)
	assert.Error(t, err)
	assert.Equal(t, 1, b.ActiveIndex())
}

func TestParseEnums(t *testing.T) {
	ft, err := ParseFilterType("FIR")
	require.NoError(t, err)
	assert.Equal(t, FilterFIR, ft)
	assert.Equal(t, "biquad", FilterBiquad.String())
	assert.Equal(t, "filter(9)", FilterType(9).String())
	_, err = ParseFilterType("kalman")
	assert.Error(t, err)

	m, err := ParseCrashRecoveryMode("beep")
	require.NoError(t, err)
	assert.Equal(t, CrashRecoveryBeep, m)
	_, err = ParseCrashRecoveryMode("")
	assert.Error(t, err)

	assert.Equal(t, "pitch", AxisPitch.String())
	assert.Equal(t, "axis(5)", Axis(5).String())
}

func TestLoopConfig(t *testing.T) {
	assert.Equal(t, uint32(250), DefaultLoopConfig().TargetLooptimeUs())
	assert.Equal(t, uint32(0), LoopConfig{}.TargetLooptimeUs())
	assert.Equal(t, uint32(500), LoopConfig{GyroLooptimeUs: 125, ProcessDenom: 4}.TargetLooptimeUs())
}
