package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [hex-string]",
	Short: "Decode a raw result record offline",
	Long: `Decodes a raw 91-byte result record without talking to an
instrument. The record can be passed as a hex string argument or read
from a file with --file.

Examples:
  # Decode a captured record
  spintouch decode 0102030501063fa00000...070b0d11

  # Decode from a binary capture
  spintouch decode --file result.bin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

var (
	decodeFile       string
	decodeDiskSeries string
)

func init() {
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "F", "", "Read the raw record from a file instead of the command line")
	decodeCmd.Flags().StringVar(&decodeDiskSeries, "disk-series", "", "Cartridge series override for display")
}

func runDecode(cmd *cobra.Command, args []string) error {
	var raw []byte

	switch {
	case decodeFile != "":
		data, err := os.ReadFile(decodeFile)
		if err != nil {
			return fmt.Errorf("reading record file: %w", err)
		}
		// Accept both binary captures and hex dumps.
		if decoded, err := decodeHexString(string(data)); err == nil {
			raw = decoded
		} else {
			raw = data
		}
	case len(args) == 1:
		var err error
		raw, err = decodeHexString(args[0])
		if err != nil {
			return fmt.Errorf("invalid hex string: %w", err)
		}
	default:
		return fmt.Errorf("record required: pass a hex string or use --file")
	}

	cmd.SilenceUsage = true

	rec, err := protocol.Decode(raw)
	if err != nil {
		return err
	}

	printReading(os.Stdout, rec, decodeDiskSeries)
	return nil
}

// decodeHexString strips whitespace and common separators before hex
// decoding, so captures copied from logs decode as-is.
func decodeHexString(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-', ',':
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimPrefix(cleaned, "0x")
	return hex.DecodeString(cleaned)
}
