package main

import (
	"github.com/spf13/cobra"

	"github.com/gridania/telematic-bootloader/uds"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "request an ECU hard reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		resp, err := requestResponse(conn, []byte{uds.SIDECUReset, uds.ResetHard})
		if err != nil {
			return err
		}
		if err := checkNegative(resp); err != nil {
			return err
		}
		printInfo("reset requested\n")
		return nil
	},
}
