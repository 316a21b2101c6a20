package main

import (
	"fmt"
	"io"

	"github.com/itohio/goeeg/pkg/ads"
)

// scan prints the available serial ports and every device answering on the
// bridge I2C bus.
func scan(w io.Writer, bus ads.Bus) error {
	ports, err := ads.Ports()
	if err != nil {
		fmt.Fprintf(w, "Serial ports: %v\n", err)
	} else {
		fmt.Fprintln(w, "Serial ports:")
		for _, p := range ports {
			fmt.Fprintf(w, "  %s\n", p.Name)
		}
	}

	if err := bus.Connect(); err != nil {
		return fmt.Errorf("failed to connect bus: %w", err)
	}
	defer bus.Close()

	addrs, err := bus.Scan()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "I2C devices:")
	if len(addrs) == 0 {
		fmt.Fprintln(w, "  none found, check SDA/SCL wiring and sub-device power")
		return nil
	}
	for _, addr := range addrs {
		fmt.Fprintf(w, "  %s\n", ads.Describe(addr))
	}
	return nil
}
