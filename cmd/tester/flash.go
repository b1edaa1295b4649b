package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridania/telematic-bootloader/config"
	"github.com/gridania/telematic-bootloader/uds"
)

var flashAddressFlag uint32

var flashCmd = &cobra.Command{
	Use:   "flash <file>",
	Short: "reflash the application image: Request Download, Transfer Data, Request Transfer Exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		conn, err := openConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		addr := flashAddressFlag

		reqDownload := []byte{
			uds.SIDRequestDownload,
			0x44, // 4 address bytes, 4 size bytes
			byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr),
			byte(len(image) >> 24), byte(len(image) >> 16), byte(len(image) >> 8), byte(len(image)),
		}
		resp, err := requestResponse(conn, reqDownload)
		if err != nil {
			return err
		}
		if err := checkNegative(resp); err != nil {
			return err
		}
		if len(resp) != 4 {
			return fmt.Errorf("unexpected request download response length %d", len(resp))
		}
		maxBlockSize := int(resp[2])<<8 | int(resp[3])
		printInfo("erasing and downloading %d bytes at 0x%08X, block size %d\n", len(image), addr, maxBlockSize)

		seq := byte(1)
		for off := 0; off < len(image); off += maxBlockSize {
			end := off + maxBlockSize
			if end > len(image) {
				end = len(image)
			}
			frame := append([]byte{uds.SIDTransferData, seq}, image[off:end]...)
			resp, err := requestResponse(conn, frame)
			if err != nil {
				return fmt.Errorf("transfer data seq %d: %w", seq, err)
			}
			if err := checkNegative(resp); err != nil {
				return err
			}
			printInfo("\rflashed %d/%d bytes", end, len(image))
			seq++
		}
		printInfo("\n")

		resp, err = requestResponse(conn, []byte{uds.SIDRequestTransferExit})
		if err != nil {
			return err
		}
		if err := checkNegative(resp); err != nil {
			return err
		}
		printInfo("transfer complete, checksum sealed\n")
		return nil
	},
}

func init() {
	flashCmd.Flags().Uint32Var(&flashAddressFlag, "address", config.Default().AppStart, "flash address to start the download at")
}
