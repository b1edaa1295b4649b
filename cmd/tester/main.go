// Command tester is a host-side UDS tester for the telematic bootloader: it
// drives diagnostic sessions, security access, and full reflash transfers
// over an SLCAN USB-CAN adapter, for use against a real board or the
// bootloader's simulated bus in integration testing.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
