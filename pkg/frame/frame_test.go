package frame

import (
	"encoding/json"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goeeg/pkg/ads"
	"github.com/itohio/goeeg/pkg/sample"
)

func testFrame(t *testing.T, values ...float32) sample.Frame {
	t.Helper()

	topo, err := ads.NewTopology(len(values), 2)
	require.NoError(t, err)

	f := sample.Frame{Timestamp: 1500}
	for i, v := range values {
		f.Channels = append(f.Channels, sample.Reading{
			Channel:   i,
			SubDevice: topo.SubDevice(i),
			Pin:       topo.Pin(i),
			Value:     v,
		})
	}
	return f
}

func TestEncode_Shape(t *testing.T) {
	b, err := Encode(testFrame(t, 1.5, -2, 0, 1000000))
	require.NoError(t, err)

	want := `{"timestamp":1500,"channels":[` +
		`{"id":0,"value":1.5,"ads":1,"pin":0},` +
		`{"id":1,"value":-2,"ads":1,"pin":1},` +
		`{"id":2,"value":0,"ads":2,"pin":0},` +
		`{"id":3,"value":1000000,"ads":2,"pin":1}]}`
	assert.Equal(t, want, string(b))
}

func TestEncode_Deterministic(t *testing.T) {
	f := testFrame(t, 0.125, 5.2, -0.0000003, 999999, 1, 2, 3, 4)

	first, err := Encode(f)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Encode(f)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncode_NonFinite(t *testing.T) {
	b, err := Encode(testFrame(t, math32.NaN(), math32.Inf(1), math32.Inf(-1), 7))
	require.NoError(t, err)
	assert.True(t, json.Valid(b))

	f, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, float32(0), f.Channels[0].Value)
	assert.Equal(t, float32(0), f.Channels[1].Value)
	assert.Equal(t, float32(0), f.Channels[2].Value)
	assert.Equal(t, float32(7), f.Channels[3].Value)
}

func TestEncode_Empty(t *testing.T) {
	b, err := Encode(sample.Frame{Timestamp: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"timestamp":3,"channels":[]}`, string(b))
}

func TestDecode(t *testing.T) {
	in := testFrame(t, 10, 20, 30, 40, 50, 60, 70, 80)

	b, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = Decode([]byte(`{"timestamp":`))
	assert.Error(t, err)
}
