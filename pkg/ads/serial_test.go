package ads

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort answers bridge commands from a script. Unscripted commands time out.
type fakePort struct {
	serial.Port

	mu      sync.Mutex
	replies map[string]string
	written []string
	out     []byte
	closed  bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := strings.TrimSpace(string(b))
	p.written = append(p.written, cmd)
	if reply, ok := p.replies[cmd]; ok {
		p.out = append(p.out, reply...)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.out) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.out)
	p.out = p.out[n:]
	return n, nil
}

func (p *fakePort) ResetInputBuffer() error            { return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func newTestSerial(t *testing.T, replies map[string]string) (*Serial, *fakePort) {
	t.Helper()

	port := &fakePort{replies: replies}
	s := NewSerial("/dev/fake", 0, 20*time.Millisecond)
	s.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		assert.Equal(t, "/dev/fake", name)
		assert.Equal(t, DefaultBaudRate, mode.BaudRate)
		return port, nil
	}
	require.NoError(t, s.Connect())

	return s, port
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		wantErr error
	}{
		{name: "bare ok", line: "OK", want: ""},
		{name: "ok with payload", line: "OK -1234", want: "-1234"},
		{name: "ok with padded payload", line: "OK  48 4B ", want: "48 4B"},
		{name: "bare error", line: "ERR", wantErr: ErrBridge},
		{name: "error with message", line: "ERR nack 0x49", wantErr: ErrBridge},
		{name: "garbage", line: "hello", wantErr: errors.New("invalid")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.line)
			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrBridge) {
					assert.ErrorIs(t, err, ErrBridge)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRaw(t *testing.T) {
	v, err := parseRaw("-32768")
	require.NoError(t, err)
	assert.Equal(t, int16(-32768), v)

	_, err = parseRaw("40000")
	assert.Error(t, err)

	_, err = parseRaw("abc")
	assert.Error(t, err)
}

func TestParseScan(t *testing.T) {
	addrs, err := parseScan("48 4B")
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x48, 0x4B}, addrs)

	addrs, err = parseScan("")
	require.NoError(t, err)
	assert.Empty(t, addrs)

	_, err = parseScan("48 ZZ")
	assert.Error(t, err)
}

func TestCommandFormat(t *testing.T) {
	assert.Equal(t, "B 48 5 7", formatBegin(0x48, GainSixteen, DataRate(7)))
	assert.Equal(t, "R 4B 3", formatRead(0x4B, 3))
}

func TestSerial_RoundTrip(t *testing.T) {
	s, port := newTestSerial(t, map[string]string{
		"B 48 5 7": "OK\r\n",
		"R 48 2":   "\nOK -512\n",
		"R 4B 0":   "ERR nack\n",
		"S":        "OK 48 4B\n",
	})

	require.NoError(t, s.Begin(0x48, GainSixteen, DataRate(7)))

	raw, err := s.ReadSingleEnded(0x48, 2)
	require.NoError(t, err)
	assert.Equal(t, int16(-512), raw)

	_, err = s.ReadSingleEnded(0x4B, 0)
	assert.ErrorIs(t, err, ErrBridge)

	addrs, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x48, 0x4B}, addrs)

	assert.Equal(t, []string{"B 48 5 7", "R 48 2", "R 4B 0", "S"}, port.written)

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
	assert.False(t, s.IsConnected())
}

func TestSerial_Timeout(t *testing.T) {
	s, _ := newTestSerial(t, map[string]string{})

	_, err := s.ReadSingleEnded(0x48, 0)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSerial_NotConnected(t *testing.T) {
	s := NewSerial("/dev/fake", 0, 0)
	assert.Equal(t, DefaultTimeout, s.timeout)

	_, err := s.ReadSingleEnded(0x48, 0)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, s.Close())
}

func TestSerial_ConnectTwice(t *testing.T) {
	s, _ := newTestSerial(t, nil)
	assert.Error(t, s.Connect())
}
