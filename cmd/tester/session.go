package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridania/telematic-bootloader/uds"
)

var sessionCmd = &cobra.Command{
	Use:   "session {default|programming|extended}",
	Short: "request a diagnostic session change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sessionType byte
		switch args[0] {
		case "default":
			sessionType = uds.SessionDefault
		case "programming":
			sessionType = uds.SessionProgramming
		case "extended":
			sessionType = uds.SessionExtended
		default:
			return fmt.Errorf("unknown session %q (want default|programming|extended)", args[0])
		}

		conn, err := openConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		resp, err := requestResponse(conn, []byte{uds.SIDDiagnosticSessionControl, sessionType})
		if err != nil {
			return err
		}
		if err := checkNegative(resp); err != nil {
			return err
		}
		printInfo("session now %s\n", args[0])
		return nil
	},
}
