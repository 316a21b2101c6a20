//go:build tinygo

package main

import "machine"

const (
	// I2C bus to the ADS1115 pair. 400kHz keeps one 8-channel sweep well
	// under the 50ms host tick.
	I2C_FREQUENCY = 400 * machine.KHz
	PIN_SDA       = machine.SDA_PIN
	PIN_SCL       = machine.SCL_PIN

	// Serial configuration. Longest reply is "OK -32768\n" for reads and
	// 4 addresses for scans; 8 reads per tick at 20Hz is ~1.6kB/s.
	UART_BAUD_RATE = 115200

	// Conversion polling. At 860SPS a conversion takes ~1.2ms; at 8SPS 125ms.
	CONVERSION_POLL_US    = 200
	CONVERSION_TIMEOUT_MS = 150

	LINE_BUFFER = 32
)
