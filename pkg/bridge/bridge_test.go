package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "B 48 5 7", want: Begin(0x48, 5, 7)},
		{line: "  R 4b 3\r", want: Read(0x4B, 3)},
		{line: "S", want: Scan()},
		{line: "", wantErr: true},
		{line: "X", wantErr: true},
		{line: "BB 48 5 7", wantErr: true},
		{line: "B 48 6 7", wantErr: true},
		{line: "B 48 5 8", wantErr: true},
		{line: "B 48 5", wantErr: true},
		{line: "R 48 4", wantErr: true},
		{line: "R 80 0", wantErr: true},
		{line: "R zz 0", wantErr: true},
		{line: "S 48", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCommand)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "B 48 5 7", Begin(0x48, 5, 7).String())
	assert.Equal(t, "R 4B 0", Read(0x4B, 0).String())
	assert.Equal(t, "S", Scan().String())

	for _, c := range []Command{Begin(0x49, 0, 4), Read(0x4A, 2), Scan()} {
		parsed, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestReplies(t *testing.T) {
	assert.Equal(t, "OK\n", OK(""))
	assert.Equal(t, "OK -512\n", OK("-512"))
	assert.Equal(t, "ERR nack\n", Fail("nack"))
	assert.Equal(t, "08 48 4B", FormatScan([]uint8{0x08, 0x48, 0x4B}))
	assert.Equal(t, "", FormatScan(nil))
}

func TestConfigWord(t *testing.T) {
	// AIN0 vs GND, +/-0.256V, 860 SPS, single shot, comparator off.
	assert.Equal(t, uint16(0xCBE3), ConfigWord(0, 5, 7))
	// AIN3 vs GND, +/-6.144V, 128 SPS.
	assert.Equal(t, uint16(0xF183), ConfigWord(3, 0, 4))

	assert.True(t, ConversionReady(0x8583))
	assert.False(t, ConversionReady(0x0583))
}
