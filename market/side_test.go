package market

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideText(t *testing.T) {
	t.Parallel()

	for _, s := range []Side{Long, Short, Flat} {
		b, err := s.MarshalText()
		require.NoError(t, err)

		got := Side(99)
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}
}

func TestSideUnmarshalRejectsUnknown(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "long", "BUY", "SIDEWAYS"} {
		s := Long
		err := s.UnmarshalText([]byte(in))
		assert.Error(t, err, "input %q", in)
		assert.Equal(t, Long, s, "unchanged on %q", in)
	}

	var v struct {
		Side Side `json:"side"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"side":"UP"}`), &v))
	require.NoError(t, json.Unmarshal([]byte(`{"side":"SHORT"}`), &v))
	assert.Equal(t, Short, v.Side)
}
