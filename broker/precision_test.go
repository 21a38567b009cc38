package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorToStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    float64
		step float64
		want float64
	}{
		{"thousandths", 0.8339, 0.001, 0.833},
		{"exact", 1.5, 0.5, 1.5},
		{"down", 1.49, 0.5, 1},
		{"no step", 1.23456, 0, 1.23456},
		{"float noise", 0.3, 0.1, 0.3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FloorToStep(tt.v, tt.step))
		})
	}
}

func TestRoundToStep(t *testing.T) {
	assert.Equal(t, 100.5, RoundToStep(100.26, 0.5))
	assert.Equal(t, 100.0, RoundToStep(100.24, 0.5))
	assert.Equal(t, 0.12, RoundToStep(0.1234, 0.01))
	assert.Equal(t, 7.0, RoundToStep(7, -1))
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "0.3", FormatDecimal(0.3))
	assert.Equal(t, "120", FormatDecimal(120))
	assert.Equal(t, "0.005", FormatDecimal(0.005))
}
