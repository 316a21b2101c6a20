package ads

import (
	"errors"
	"fmt"
)

// Bank exposes the sub-devices on a bus as one flat set of channels.
type Bank struct {
	bus   Bus
	addrs []uint8
	topo  Topology
	gain  Gain
	rate  DataRate
}

// NewBank binds addrs (one per sub-device, in channel order) on bus.
func NewBank(bus Bus, addrs []uint8, channels int, gain Gain, rate DataRate) (*Bank, error) {
	topo, err := NewTopology(channels, len(addrs))
	if err != nil {
		return nil, err
	}
	if topo.PerDevice() > 4 {
		return nil, fmt.Errorf("invalid topology: %d channels per sub-device, ADS1115 has 4 inputs", topo.PerDevice())
	}

	return &Bank{
		bus:   bus,
		addrs: addrs,
		topo:  topo,
		gain:  gain,
		rate:  rate,
	}, nil
}

// Init connects the bus if needed and begins every sub-device.
// Any failure means the pipeline cannot run.
func (b *Bank) Init() error {
	if !b.bus.IsConnected() {
		if err := b.bus.Connect(); err != nil {
			return fmt.Errorf("failed to connect bus: %w", err)
		}
	}

	var errs []error
	for i, addr := range b.addrs {
		if err := b.bus.Begin(addr, b.gain, b.rate); err != nil {
			errs = append(errs, fmt.Errorf("sub-device %d: %w", i+1, err))
		}
	}

	return errors.Join(errs...)
}

// Topology returns the channel layout.
func (b *Bank) Topology() Topology {
	return b.topo
}

// ReadChannel reads channel ch and returns volts.
func (b *Bank) ReadChannel(ch int) (float32, error) {
	if ch < 0 || ch >= b.topo.Channels {
		return 0, fmt.Errorf("channel %d out of range [0,%d)", ch, b.topo.Channels)
	}

	addr := b.addrs[b.topo.SubDevice(ch)-1]
	raw, err := b.bus.ReadSingleEnded(addr, b.topo.Pin(ch))
	if err != nil {
		return 0, err
	}

	return ComputeVolts(raw, b.gain), nil
}

// Close closes the underlying bus.
func (b *Bank) Close() error {
	return b.bus.Close()
}
