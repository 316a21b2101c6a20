package ads

// Bus defines the interface for reaching ADS1115 sub-devices (real or mocked).
type Bus interface {
	Connect() error
	Close() error
	IsConnected() bool
	// Begin configures the sub-device at addr and verifies it responds.
	Begin(addr uint8, gain Gain, rate DataRate) error
	// ReadSingleEnded performs one single-shot conversion of pin against GND.
	ReadSingleEnded(addr uint8, pin int) (int16, error)
	// Scan reports every address that acknowledges on the bus.
	Scan() ([]uint8, error)
}

// Ensure Serial implements Bus.
var _ Bus = (*Serial)(nil)

// Ensure Mock implements Bus.
var _ Bus = (*Mock)(nil)
