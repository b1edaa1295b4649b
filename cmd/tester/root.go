package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridania/telematic-bootloader/bus"
	"github.com/gridania/telematic-bootloader/cmd/tester/internal/connection"
)

var (
	portFlag       string
	baudFlag       int
	bitrateFlag    uint32
	requestIDFlag  uint32
	responseIDFlag uint32
	timeoutFlag    time.Duration
	quietFlag      bool
)

var rootCmd = &cobra.Command{
	Use:   "tester",
	Short: "tester drives the telematic bootloader's UDS diagnostic protocol over CAN",
	Long: `tester is a command-line UDS client for the telematic bootloader. It
talks to an ECU over an SLCAN USB-CAN adapter, issuing diagnostic session
control, security access, and reflash (Request Download / Transfer Data /
Request Transfer Exit) requests.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "serial port of the USB-CAN adapter (e.g. /dev/ttyUSB0, COM3)")
	rootCmd.PersistentFlags().IntVar(&baudFlag, "baud", 115200, "serial baud rate to the adapter")
	rootCmd.PersistentFlags().Uint32Var(&bitrateFlag, "bitrate", 250_000, "CAN bus bitrate in bit/s")
	rootCmd.PersistentFlags().Uint32Var(&requestIDFlag, "request-id", 0x80000148, "29-bit extended CAN ID the ECU listens on")
	rootCmd.PersistentFlags().Uint32Var(&responseIDFlag, "response-id", 0x800007E1, "29-bit extended CAN ID the ECU responds on")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 2*time.Second, "per-request response timeout")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "suppress informational output")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(sessionCmd, unlockCmd, flashCmd, resetCmd)
}

func openConnection() (*connection.SerialConnection, error) {
	if portFlag == "" {
		return nil, fmt.Errorf("no --port specified")
	}
	return connection.Open(connection.Config{
		Port:       portFlag,
		BaudRate:   baudFlag,
		BitrateBps: bitrateFlag,
		RequestID:  requestIDFlag,
		ResponseID: responseIDFlag,
	})
}

func printInfo(format string, args ...interface{}) {
	if !quietFlag {
		fmt.Printf(format, args...)
	}
}

// requestResponse sends req as one or more ISO-TP segmented CAN frames and
// waits for the matching response message, using the globally configured
// per-request timeout. The bootloader's bus only ever carries 8-byte raw
// CAN payloads (spec.md section 6), so anything larger than a single frame
// — the Transfer Data service in particular — must be segmented here the
// same way bus.ISOTPTransport does on the firmware side.
func requestResponse(conn *connection.SerialConnection, req []byte) ([]byte, error) {
	for _, raw := range bus.EncodeISOTP(req) {
		if err := conn.Send(raw); err != nil {
			return nil, fmt.Errorf("send: %w", err)
		}
	}

	var r bus.Reassembler
	deadline := time.Now().Add(timeoutFlag)
	for time.Now().Before(deadline) {
		raw, err := conn.Receive(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("receive: %w", err)
		}
		msg, complete, err := r.Feed(raw)
		if err != nil {
			return nil, fmt.Errorf("reassemble: %w", err)
		}
		if complete {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("timed out waiting for a complete response")
}

func checkNegative(resp []byte) error {
	if len(resp) >= 3 && resp[0] == 0x7F {
		return fmt.Errorf("negative response: SID 0x%02X NRC 0x%02X", resp[1], resp[2])
	}
	return nil
}
