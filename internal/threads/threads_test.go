package threads

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inodb/rnkdb/internal/ctdb"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		warning bool
	}{
		{"", 4, false},
		{"8", 8, false},
		{" 2 ", 2, false},
		{"1", 1, false},
		{"0", 1, true},
		{"-3", 1, true},
		{"abc", 4, true},
		{"2.5", 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			n, warning := Resolve(tt.raw)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, tt.warning, warning != "")
		})
	}
}

func TestApply(t *testing.T) {
	t.Cleanup(Reset)

	assert.Equal(t, 6, Apply(6))
	assert.Equal(t, 6, ctdb.CPUCount())

	// Idempotent.
	assert.Equal(t, 6, Apply(6))
	assert.Equal(t, 6, ctdb.CPUCount())

	assert.Equal(t, FromEnv(), Apply(0))
}

func TestInit_FromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"0", 1},
		{"abc", 4},
		{"3", 3},
		{"", 4},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv(EnvVar, tt.raw)
			Reset()
			t.Cleanup(Reset)

			assert.Equal(t, tt.want, Init())
			assert.Equal(t, tt.want, ctdb.CPUCount())

			// Read once: later changes are ignored until Reset.
			t.Setenv(EnvVar, "7")
			assert.Equal(t, tt.want, Init())
			assert.Equal(t, tt.want, FromEnv())
		})
	}
}

func TestInit_KeepsAppliedCount(t *testing.T) {
	t.Setenv(EnvVar, "0")
	Reset()
	t.Cleanup(Reset)

	Apply(6)
	assert.Equal(t, 6, Init())
	assert.Equal(t, 6, ctdb.CPUCount())
}
