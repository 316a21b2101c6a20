//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/itohio/goeeg/pkg/bridge"
)

var (
	i2c    = machine.I2C0
	serial = machine.Serial

	// Last begin parameters per address.
	gains [128]int
	rates [128]int
	begun [128]bool

	lineBuffer [LINE_BUFFER]byte
	linePos    int
	overflow   bool
)

func main() {
	serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	if err := i2c.Configure(machine.I2CConfig{
		Frequency: I2C_FREQUENCY,
		SDA:       PIN_SDA,
		SCL:       PIN_SCL,
	}); err != nil {
		reply(bridge.Fail("i2c configure"))
	}

	for {
		processSerial()
		time.Sleep(100 * time.Microsecond)
	}
}

func processSerial() {
	for serial.Buffered() > 0 {
		data, err := serial.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if overflow {
				reply(bridge.Fail("line too long"))
			} else if linePos > 0 {
				handle(string(lineBuffer[:linePos]))
			}
			linePos = 0
			overflow = false
			continue
		}

		if linePos < len(lineBuffer) {
			lineBuffer[linePos] = data
			linePos++
		} else {
			overflow = true
		}
	}
}

func handle(line string) {
	cmd, err := bridge.Parse(line)
	if err != nil {
		reply(bridge.Fail("invalid command"))
		return
	}

	switch cmd.Op {
	case bridge.OpBegin:
		if !probe(cmd.Addr) {
			reply(bridge.Fail("nack " + hex(cmd.Addr)))
			return
		}
		gains[cmd.Addr] = cmd.Gain
		rates[cmd.Addr] = cmd.Rate
		begun[cmd.Addr] = true
		reply(bridge.OK(""))

	case bridge.OpRead:
		if !begun[cmd.Addr] {
			reply(bridge.Fail("not initialized " + hex(cmd.Addr)))
			return
		}
		raw, err := readSingleEnded(cmd.Addr, cmd.Pin)
		if err != nil {
			reply(bridge.Fail(err.Error()))
			return
		}
		reply(bridge.OK(strconv.Itoa(int(raw))))

	case bridge.OpScan:
		var found []uint8
		for addr := uint8(1); addr < 127; addr++ {
			if probe(addr) {
				found = append(found, addr)
			}
		}
		reply(bridge.OK(bridge.FormatScan(found)))
	}
}

// probe reports whether a device acknowledges addr.
func probe(addr uint8) bool {
	var b [1]byte
	return i2c.Tx(uint16(addr), nil, b[:]) == nil
}

// readSingleEnded starts a single-shot conversion of pin and waits for it.
func readSingleEnded(addr uint8, pin int) (int16, error) {
	config := bridge.ConfigWord(pin, gains[addr], rates[addr])
	if err := writeRegister(addr, bridge.RegConfig, config); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(CONVERSION_TIMEOUT_MS * time.Millisecond)
	for {
		time.Sleep(CONVERSION_POLL_US * time.Microsecond)

		status, err := readRegister(addr, bridge.RegConfig)
		if err != nil {
			return 0, err
		}
		if bridge.ConversionReady(status) {
			break
		}
		if time.Now().After(deadline) {
			return 0, errConversionTimeout
		}
	}

	v, err := readRegister(addr, bridge.RegConversion)
	return int16(v), err
}

func writeRegister(addr uint8, reg uint8, v uint16) error {
	return i2c.Tx(uint16(addr), []byte{reg, byte(v >> 8), byte(v)}, nil)
}

func readRegister(addr uint8, reg uint8) (uint16, error) {
	var b [2]byte
	if err := i2c.Tx(uint16(addr), []byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

type firmwareError string

func (e firmwareError) Error() string { return string(e) }

const errConversionTimeout = firmwareError("conversion timeout")

func hex(addr uint8) string {
	return bridge.FormatScan([]uint8{addr})
}

func reply(s string) {
	serial.Write([]byte(s))
}
