package ads

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/goeeg/pkg/config"
)

// Mock simulates a bus with ADS1115 sub-devices for testing and development.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.RWMutex
	connected bool
	present   []uint8
	gains     map[uint8]Gain
	offline   map[uint8]bool

	startTime time.Time
	now       func() time.Time
}

// NewMock creates a mocked bus with sub-devices answering at the present addresses.
func NewMock(cfg *config.MockConfig, present []uint8) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			AmplitudeMicrovolts: 50,
			FrequencyHz:         10,
			NoiseMicrovolts:     5,
		}
	}

	offline := make(map[uint8]bool, len(cfg.Offline))
	for _, addr := range cfg.Offline {
		offline[addr] = true
	}

	return &Mock{
		cfg:     cfg,
		present: slices.Clone(present),
		gains:   make(map[uint8]Gain),
		offline: offline,
		now:     time.Now,
	}
}

// Connect simulates opening the bus.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = m.now()

	return nil
}

// Close stops the mocked bus.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return nil
}

// IsConnected returns whether the bus is open.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Begin records the gain for addr if a sub-device answers there.
func (m *Mock) Begin(addr uint8, gain Gain, rate DataRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if !slices.Contains(m.present, addr) {
		return fmt.Errorf("begin 0x%02X: no device acknowledged", addr)
	}

	m.gains[addr] = gain
	return nil
}

// ReadSingleEnded synthesizes a conversion result for addr/pin.
func (m *Mock) ReadSingleEnded(addr uint8, pin int) (int16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return 0, ErrNotConnected
	}
	gain, ok := m.gains[addr]
	if !ok {
		return 0, fmt.Errorf("read 0x%02X/%d: sub-device not initialized", addr, pin)
	}
	if m.offline[addr] {
		return 0, fmt.Errorf("read 0x%02X/%d: %w", addr, pin, ErrOffline)
	}
	if pin < 0 || pin > 3 {
		return 0, fmt.Errorf("read 0x%02X/%d: pin out of range", addr, pin)
	}

	elapsed := float32(m.now().Sub(m.startTime).Seconds())
	microvolts := m.signal(elapsed, int(addr)*4+pin)

	return toRaw(microvolts/1e6, gain), nil
}

// Scan reports the present addresses.
func (m *Mock) Scan() ([]uint8, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return nil, ErrNotConnected
	}

	addrs := slices.Clone(m.present)
	slices.Sort(addrs)
	return addrs, nil
}

// signal returns a per-input sinusoid with a small deterministic ripple, in microvolts.
func (m *Mock) signal(t float32, input int) float32 {
	phase := float32(input) * math32.Pi / 4
	base := float32(m.cfg.AmplitudeMicrovolts) * math32.Sin(2*math32.Pi*float32(m.cfg.FrequencyHz)*t+phase)

	noise := (math32.Sin(t*997+phase) + math32.Cos(t*1327)) * float32(m.cfg.NoiseMicrovolts) * 0.5

	return base + noise
}

// toRaw converts volts to a saturated conversion result.
func toRaw(volts float32, gain Gain) int16 {
	v := volts / gain.FullScale() * 32768
	if v > 32767 {
		return 32767
	} else if v < -32768 {
		return -32768
	}
	return int16(v)
}
