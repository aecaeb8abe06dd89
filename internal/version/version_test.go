package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "pidsim dev (unknown, built unknown)", String("pidsim"))

	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v1.2.0"
	assert.Equal(t, "pidsim v1.2.0 (unknown, built unknown)", String("pidsim"))
}
