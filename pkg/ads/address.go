package ads

import "fmt"

// ADS1115 addresses selected by the ADDR pin strap.
const (
	AddrGND uint8 = 0x48
	AddrVDD uint8 = 0x49
	AddrSDA uint8 = 0x4A
	AddrSCL uint8 = 0x4B
)

// Describe names addr for bus scan output.
func Describe(addr uint8) string {
	switch addr {
	case AddrGND:
		return fmt.Sprintf("0x%02X ADS1115 (ADDR to GND)", addr)
	case AddrVDD:
		return fmt.Sprintf("0x%02X ADS1115 (ADDR to VDD)", addr)
	case AddrSDA:
		return fmt.Sprintf("0x%02X ADS1115 (ADDR to SDA)", addr)
	case AddrSCL:
		return fmt.Sprintf("0x%02X ADS1115 (ADDR to SCL)", addr)
	default:
		return fmt.Sprintf("0x%02X unknown device", addr)
	}
}
