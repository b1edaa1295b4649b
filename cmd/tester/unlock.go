package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gridania/telematic-bootloader/uds"
)

var unlockKeyFlag string

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "perform the security access seed/key handshake",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		seedResp, err := requestResponse(conn, []byte{uds.SIDSecurityAccess, 0x01})
		if err != nil {
			return err
		}
		if err := checkNegative(seedResp); err != nil {
			return err
		}
		if len(seedResp) != 6 {
			return fmt.Errorf("unexpected seed response length %d", len(seedResp))
		}
		seed := uint32(seedResp[2])<<24 | uint32(seedResp[3])<<16 | uint32(seedResp[4])<<8 | uint32(seedResp[5])

		// The production key derivation lives behind a tool the ECU
		// manufacturer controls; uds.CalculateKey here is the bootloader's
		// own placeholder algorithm, used only so this tool can unlock a
		// bootloader running that same placeholder.
		key, err := resolveKey(seed)
		if err != nil {
			return err
		}

		keyResp, err := requestResponse(conn, []byte{
			uds.SIDSecurityAccess, 0x02,
			byte(key >> 24), byte(key >> 16), byte(key >> 8), byte(key),
		})
		if err != nil {
			return err
		}
		if err := checkNegative(keyResp); err != nil {
			return err
		}
		printInfo("unlocked\n")
		return nil
	},
}

func init() {
	unlockCmd.Flags().StringVar(&unlockKeyFlag, "key", "", "hex-encoded 4-byte key (derived from the seed with the placeholder algorithm if omitted)")
}

// resolveKey returns the key for seed, either from --key or by computing it
// with the bootloader's placeholder algorithm after a masked confirmation
// prompt (mirroring the teacher's console password entry).
func resolveKey(seed uint32) (uint32, error) {
	if unlockKeyFlag != "" {
		var key uint32
		if _, err := fmt.Sscanf(unlockKeyFlag, "%x", &key); err != nil {
			return 0, fmt.Errorf("bad --key value %q: %w", unlockKeyFlag, err)
		}
		return key, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Printf("seed 0x%08X, press enter to derive key: ", seed)
		term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
	}
	return uds.CalculateKey(seed), nil
}
