package ads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopology_ReferenceLayout(t *testing.T) {
	topo, err := NewTopology(8, 2)
	require.NoError(t, err)

	for ch := 0; ch < 8; ch++ {
		wantDevice := 2
		if ch < 4 {
			wantDevice = 1
		}
		assert.Equal(t, wantDevice, topo.SubDevice(ch), "sub-device of channel %d", ch)
		assert.Equal(t, ch%4, topo.Pin(ch), "pin of channel %d", ch)
	}
}

func TestTopology_Generalized(t *testing.T) {
	topo, err := NewTopology(12, 3)
	require.NoError(t, err)

	assert.Equal(t, 4, topo.PerDevice())
	assert.Equal(t, 1, topo.SubDevice(3))
	assert.Equal(t, 2, topo.SubDevice(4))
	assert.Equal(t, 3, topo.SubDevice(11))
	assert.Equal(t, 3, topo.Pin(11))
}

func TestNewTopology_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		channels   int
		subDevices int
	}{
		{"zero channels", 0, 2},
		{"zero sub-devices", 8, 0},
		{"uneven split", 7, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTopology(tt.channels, tt.subDevices)
			assert.Error(t, err)
		})
	}
}
