// Package connection provides the tester CLI's transport to a USB-CAN
// adapter: a serial port speaking the SLCAN ASCII protocol, carrying UDS
// request/response frames addressed to the bootloader's fixed CAN IDs.
package connection

import (
	"bufio"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/gridania/telematic-bootloader/cmd/tester/internal/slcan"
)

// Connection is the abstraction the tester subcommands depend on: send one
// UDS request frame, receive the matching response frame.
type Connection interface {
	Send(data []byte) error
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

// SerialConnection implements Connection over an SLCAN USB-CAN adapter.
type SerialConnection struct {
	port       serial.Port
	reader     *bufio.Reader
	requestID  uint32
	responseID uint32
}

// Config holds the parameters needed to open a SerialConnection.
type Config struct {
	Port       string
	BaudRate   int
	BitrateBps uint32
	RequestID  uint32
	ResponseID uint32
}

// Open opens the serial port, configures the SLCAN channel at the given
// CAN bitrate, and opens it. Mirrors the retry-once-on-open pattern used
// for flaky USB-serial adapters elsewhere in the corpus.
func Open(cfg Config) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		if port != nil {
			port.Close()
		}
		port, err = serial.Open(cfg.Port, mode)
		if err != nil {
			return nil, fmt.Errorf("connection: open %s: %w", cfg.Port, err)
		}
	}
	if err := port.SetReadTimeout(2 * time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("connection: set read timeout: %w", err)
	}

	c := &SerialConnection{
		port:       port,
		reader:     bufio.NewReader(port),
		requestID:  cfg.RequestID,
		responseID: cfg.ResponseID,
	}

	for _, cmd := range [][]byte{slcan.Close(), slcan.OpenExtended(cfg.BitrateBps), slcan.Open()} {
		if _, err := port.Write(cmd); err != nil {
			port.Close()
			return nil, fmt.Errorf("connection: configure adapter: %w", err)
		}
	}

	return c, nil
}

// Send writes data as a single SLCAN extended transmit frame addressed to
// requestID. Callers are responsible for keeping data within spec.md's
// 8-byte-per-frame limit; no multi-frame assembly happens here.
func (c *SerialConnection) Send(data []byte) error {
	line, err := slcan.EncodeTransmit(slcan.Frame{ID: c.requestID, Data: data})
	if err != nil {
		return fmt.Errorf("connection: encode: %w", err)
	}
	if _, err := c.port.Write(line); err != nil {
		return fmt.Errorf("connection: write: %w", err)
	}
	return nil
}

// Receive blocks until a frame addressed to responseID arrives, or the
// given timeout elapses. Non-matching lines (status reports, echoes of
// our own transmit command) are skipped rather than treated as errors.
func (c *SerialConnection) Receive(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		line, err := c.reader.ReadString('\r')
		if err != nil {
			return nil, fmt.Errorf("connection: read: %w", err)
		}
		line = line[:len(line)-1]

		frame, ok, err := slcan.DecodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("connection: decode %q: %w", line, err)
		}
		if !ok || frame.ID != c.responseID {
			continue
		}
		return frame.Data, nil
	}
	return nil, fmt.Errorf("connection: receive timed out after %s", timeout)
}

// Close shuts down the SLCAN channel and releases the serial port.
func (c *SerialConnection) Close() error {
	c.port.Write(slcan.Close())
	return c.port.Close()
}

var _ Connection = (*SerialConnection)(nil)
