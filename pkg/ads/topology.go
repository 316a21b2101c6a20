package ads

import "fmt"

// Topology maps channel indexes onto sub-devices. Channels are split into
// equal contiguous blocks, one block per sub-device.
type Topology struct {
	Channels   int
	SubDevices int
}

// NewTopology validates and returns a topology.
func NewTopology(channels, subDevices int) (Topology, error) {
	if channels <= 0 || subDevices <= 0 {
		return Topology{}, fmt.Errorf("invalid topology: %d channels on %d sub-devices", channels, subDevices)
	}
	if channels%subDevices != 0 {
		return Topology{}, fmt.Errorf("invalid topology: %d channels do not divide across %d sub-devices", channels, subDevices)
	}
	return Topology{Channels: channels, SubDevices: subDevices}, nil
}

// PerDevice returns the number of channels digitized by one sub-device.
func (t Topology) PerDevice() int {
	return t.Channels / t.SubDevices
}

// SubDevice returns the 1-based sub-device id for ch.
// With two sub-devices this is 1 for ch < N/2 and 2 otherwise.
func (t Topology) SubDevice(ch int) int {
	return ch/t.PerDevice() + 1
}

// Pin returns the input pin of ch within its sub-device (ch mod N/D).
func (t Topology) Pin(ch int) int {
	return ch % t.PerDevice()
}
