package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstrain(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi float32
		want      float32
	}{
		{"inside", 0.5, 0, 1, 0.5},
		{"below", -3, -1, 1, -1},
		{"above", 7, -1, 1, 1},
		{"on lower bound", -1, -1, 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Constrain(tt.v, tt.lo, tt.hi))
		})
	}

	assert.Equal(t, 200, Constrain(500, 1, 200))
}

func TestConstrainPassesNaN(t *testing.T) {
	got := Constrain(float32(math.NaN()), 0, 1)
	assert.True(t, math.IsNaN(float64(got)))
}

func TestMinC(t *testing.T) {
	assert.Equal(t, float32(0.25), MinC(float32(0.25), 1))
	assert.Equal(t, float32(1), MinC(float32(3), 1))

	inf := float32(math.Inf(1))
	assert.Equal(t, float32(1), MinC(0*inf, 1), "NaN saturates to the bound")
}

func TestAbsAndMaxAbs(t *testing.T) {
	assert.Equal(t, int32(40), Abs(int32(-40)))
	assert.Equal(t, float32(2.5), Abs(float32(2.5)))
	assert.Equal(t, int16(300), MaxAbs(int16(-300), 120))
}

func TestMapRange(t *testing.T) {
	assert.InDelta(t, 0.0, MapRange(1500.0, 1000, 2000, -1, 1), 1e-12)
	assert.InDelta(t, 1.0, MapRange(2000.0, 1000, 2000, -1, 1), 1e-12)
	assert.InDelta(t, -500.0, MapRange(988.0, 988, 2012, -500, 500), 1e-9)
}
