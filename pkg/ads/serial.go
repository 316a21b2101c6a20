package ads

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/goeeg/pkg/bridge"
)

const (
	// DefaultBaudRate is the bridge firmware UART rate.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds one command round trip.
	DefaultTimeout = 100 * time.Millisecond

	// Poll interval for the port read loop while waiting for a reply.
	readPoll = 5 * time.Millisecond
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial talks to the I2C bridge firmware over a serial line using the
// protocol in package bridge.
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	open func(name string, mode *serial.Mode) (serial.Port, error)

	mu        sync.Mutex
	conn      serial.Port
	pending   []byte
	connected bool
}

// NewSerial creates a bridge bus on the given port.
func NewSerial(port string, baudRate int, timeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		timeout:  timeout,
		open:     serial.Open,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}

	return result, nil
}

// Connect opens the serial port.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	port, err := s.open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", s.port, err)
	}

	s.conn = port
	s.pending = s.pending[:0]
	s.connected = true

	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.connected = false
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", s.port, err)
	}

	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Begin configures one ADS1115 behind the bridge.
func (s *Serial) Begin(addr uint8, gain Gain, rate DataRate) error {
	if _, err := s.command(formatBegin(addr, gain, rate)); err != nil {
		return fmt.Errorf("begin 0x%02X: %w", addr, err)
	}
	return nil
}

// ReadSingleEnded reads one single-ended conversion.
func (s *Serial) ReadSingleEnded(addr uint8, pin int) (int16, error) {
	payload, err := s.command(formatRead(addr, pin))
	if err != nil {
		return 0, fmt.Errorf("read 0x%02X/%d: %w", addr, pin, err)
	}
	return parseRaw(payload)
}

// Scan asks the bridge to probe the I2C bus.
func (s *Serial) Scan() ([]uint8, error) {
	payload, err := s.command(bridge.Scan().String())
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return parseScan(payload)
}

// command sends one line and waits for its reply.
func (s *Serial) command(cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	// Drop anything left over from a reply that arrived after its timeout.
	if err := s.conn.ResetInputBuffer(); err != nil {
		return "", fmt.Errorf("failed to reset input: %w", err)
	}
	s.pending = s.pending[:0]

	if _, err := s.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	line, err := s.readLine(time.Now().Add(s.timeout))
	if err != nil {
		return "", err
	}

	return parseResponse(line)
}

// readLine returns the next non-empty line. Caller must hold s.mu.
func (s *Serial) readLine(deadline time.Time) (string, error) {
	chunk := make([]byte, 64)
	for {
		if idx := bytes.IndexByte(s.pending, '\n'); idx >= 0 {
			line := strings.TrimSpace(string(s.pending[:idx]))
			s.pending = s.pending[idx+1:]
			if line == "" {
				continue
			}
			return line, nil
		}

		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := s.conn.Read(chunk)
		if err != nil {
			return "", fmt.Errorf("failed to read reply: %w", err)
		}
		s.pending = append(s.pending, chunk[:n]...)
	}
}

func formatBegin(addr uint8, gain Gain, rate DataRate) string {
	return bridge.Begin(addr, int(gain), int(rate)).String()
}

func formatRead(addr uint8, pin int) string {
	return bridge.Read(addr, pin).String()
}

// parseResponse splits a reply into its payload or a bridge error.
// Format: OK [payload] | ERR <message>
func parseResponse(line string) (string, error) {
	switch {
	case line == "OK":
		return "", nil
	case strings.HasPrefix(line, "OK "):
		return strings.TrimSpace(line[3:]), nil
	case line == "ERR":
		return "", ErrBridge
	case strings.HasPrefix(line, "ERR "):
		return "", fmt.Errorf("%w: %s", ErrBridge, strings.TrimSpace(line[4:]))
	default:
		return "", fmt.Errorf("invalid reply %q", line)
	}
}

func parseRaw(payload string) (int16, error) {
	v, err := strconv.ParseInt(payload, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid conversion result %q: %w", payload, err)
	}
	return int16(v), nil
}

func parseScan(payload string) ([]uint8, error) {
	fields := strings.Fields(payload)
	addrs := make([]uint8, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", f, err)
		}
		addrs = append(addrs, uint8(v))
	}
	return addrs, nil
}
