// Command dosed runs the powder dosing controller on a Linux board. It
// serves the rig's serial command protocol on a serial port and drives the
// scale, relays, pump and dispenser, or a simulated rig with --mock.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
