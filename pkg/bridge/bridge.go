// Package bridge defines the line protocol spoken between the host and the
// serial-to-I2C bridge firmware, and the ADS1115 register encoding the
// firmware applies.
//
//	B <addr> <gain> <rate>  -> OK
//	R <addr> <pin>          -> OK <raw>
//	S                       -> OK [<addr> ...]
//
// Addresses are two hex digits, gain and rate are the ADS1115 PGA and DR
// codes. Failures reply "ERR <message>".
package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	OpBegin = 'B'
	OpRead  = 'R'
	OpScan  = 'S'
)

var ErrInvalidCommand = errors.New("invalid command")

// Command is one parsed request line.
type Command struct {
	Op   byte
	Addr uint8
	Pin  int
	Gain int
	Rate int
}

// Begin returns the command configuring the sub-device at addr.
func Begin(addr uint8, gain, rate int) Command {
	return Command{Op: OpBegin, Addr: addr, Gain: gain, Rate: rate}
}

// Read returns the command converting one single-ended input.
func Read(addr uint8, pin int) Command {
	return Command{Op: OpRead, Addr: addr, Pin: pin}
}

// Scan returns the bus probe command.
func Scan() Command {
	return Command{Op: OpScan}
}

func (c Command) String() string {
	switch c.Op {
	case OpBegin:
		return fmt.Sprintf("B %02X %d %d", c.Addr, c.Gain, c.Rate)
	case OpRead:
		return fmt.Sprintf("R %02X %d", c.Addr, c.Pin)
	case OpScan:
		return "S"
	default:
		return ""
	}
}

// Parse reads one request line.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || len(fields[0]) != 1 {
		return Command{}, ErrInvalidCommand
	}

	var (
		c   = Command{Op: fields[0][0]}
		err error
	)
	switch c.Op {
	case OpBegin:
		if len(fields) != 4 {
			return Command{}, ErrInvalidCommand
		}
		if c.Addr, err = parseAddr(fields[1]); err != nil {
			return Command{}, err
		}
		if c.Gain, err = parseCode(fields[2], 5); err != nil {
			return Command{}, err
		}
		if c.Rate, err = parseCode(fields[3], 7); err != nil {
			return Command{}, err
		}
	case OpRead:
		if len(fields) != 3 {
			return Command{}, ErrInvalidCommand
		}
		if c.Addr, err = parseAddr(fields[1]); err != nil {
			return Command{}, err
		}
		if c.Pin, err = parseCode(fields[2], 3); err != nil {
			return Command{}, err
		}
	case OpScan:
		if len(fields) != 1 {
			return Command{}, ErrInvalidCommand
		}
	default:
		return Command{}, ErrInvalidCommand
	}

	return c, nil
}

func parseAddr(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 16, 7)
	if err != nil {
		return 0, ErrInvalidCommand
	}
	return uint8(v), nil
}

func parseCode(s string, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > max {
		return 0, ErrInvalidCommand
	}
	return v, nil
}

// OK formats a success reply.
func OK(payload string) string {
	if payload == "" {
		return "OK\n"
	}
	return "OK " + payload + "\n"
}

// Fail formats an error reply.
func Fail(msg string) string {
	return "ERR " + msg + "\n"
}

// FormatScan formats scanned addresses as a reply payload.
func FormatScan(addrs []uint8) string {
	var b strings.Builder
	for i, a := range addrs {
		if i > 0 {
			b.WriteByte(' ')
		}
		if a < 0x10 {
			b.WriteByte('0')
		}
		b.WriteString(strings.ToUpper(strconv.FormatUint(uint64(a), 16)))
	}
	return b.String()
}

// ADS1115 registers and config fields.
const (
	RegConversion = 0x00
	RegConfig     = 0x01

	configOS         = 0x8000 // Start a single conversion / conversion idle
	configModeSingle = 0x0100
	configCompOff    = 0x0003
)

// ConfigWord returns the config register value starting a single-shot
// conversion of pin against GND.
func ConfigWord(pin, gain, rate int) uint16 {
	return configOS |
		uint16(0x4+pin&0x3)<<12 |
		uint16(gain&0x7)<<9 |
		configModeSingle |
		uint16(rate&0x7)<<5 |
		configCompOff
}

// ConversionReady reports whether a config register read shows the
// conversion finished.
func ConversionReady(config uint16) bool {
	return config&configOS != 0
}
