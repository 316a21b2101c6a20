package ads

import (
	"fmt"
	"strings"
)

// Gain is the ADS1115 programmable gain amplifier setting. The numeric value
// is the PGA field of the config register.
type Gain uint8

const (
	GainTwoThirds Gain = iota // +/-6.144V
	GainOne                   // +/-4.096V
	GainTwo                   // +/-2.048V
	GainFour                  // +/-1.024V
	GainEight                 // +/-0.512V
	GainSixteen               // +/-0.256V
)

var gainNames = [...]string{"two_thirds", "one", "two", "four", "eight", "sixteen"}

var fullScale = [...]float32{6.144, 4.096, 2.048, 1.024, 0.512, 0.256}

// ParseGain parses a configuration name such as "sixteen".
func ParseGain(name string) (Gain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range gainNames {
		if n == name {
			return Gain(i), nil
		}
	}
	return 0, fmt.Errorf("unknown gain %q", name)
}

func (g Gain) String() string {
	if int(g) < len(gainNames) {
		return gainNames[g]
	}
	return fmt.Sprintf("Gain(%d)", uint8(g))
}

// FullScale returns the positive full-scale input range in volts.
func (g Gain) FullScale() float32 {
	if int(g) < len(fullScale) {
		return fullScale[g]
	}
	return fullScale[GainTwoThirds]
}

// DataRate is the ADS1115 data rate field of the config register.
type DataRate uint8

var dataRates = [...]int{8, 16, 32, 64, 128, 250, 475, 860}

// ParseDataRate maps samples per second to the register code.
func ParseDataRate(sps int) (DataRate, error) {
	for i, r := range dataRates {
		if r == sps {
			return DataRate(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported data rate %d SPS", sps)
}

// SPS returns the samples per second for the rate code.
func (r DataRate) SPS() int {
	if int(r) < len(dataRates) {
		return dataRates[r]
	}
	return 0
}

// ComputeVolts converts a raw 16-bit conversion result to volts.
func ComputeVolts(raw int16, gain Gain) float32 {
	return float32(raw) * gain.FullScale() / 32768
}
