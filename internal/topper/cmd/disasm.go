package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"topper/internal/disasm"
	"topper/internal/ui/colorize"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file>",
	Short: "Decode a region linearly",
	Long: `Disasm decodes the selected region from its first byte to its end.
Undecodable code units are reported and skipped.`,
	Example: `
# Decode the first 64 bytes after the dex header
topper disasm classes.dex --offset 0x70 --length 0x40
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("dex-version")
		nop, _ := cmd.Flags().GetBool("nop-unknown")

		im, err := openImage(cmd, args[0])
		if err != nil {
			return err
		}
		defer im.Close()

		buf, base, err := region(cmd, im)
		if err != nil {
			return err
		}
		dec, err := disasm.NewDecoder(version, nop, im.Symbols())
		if err != nil {
			return err
		}

		listing, err := linear(dec, buf, base)
		if err != nil {
			return err
		}
		if isTerminal() {
			listing = colorize.Listing(listing)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), listing)
		return err
	},
}

func init() {
	addInputFlags(disasmCmd)
	disasmCmd.Flags().Int("dex-version", disasm.DefaultVersion, "Opcode table: 35, 37, 38 or 39")
	disasmCmd.Flags().Bool("nop-unknown", false, "Decode unassigned opcodes as nop")
}

// linear decodes buf front to back. A code unit that does not start a
// valid instruction is listed as bad and skipped.
func linear(dec *disasm.Decoder, buf []byte, base int) (string, error) {
	var sb strings.Builder
	for off := 0; off+1 < len(buf); {
		in, err := dec.DecodeAt(buf, off)
		if err != nil {
			var de *disasm.DecodeError
			if !errors.As(err, &de) {
				return sb.String(), err
			}
			reason := de.Err.Error()
			if de.Detail != "" {
				reason += ": " + de.Detail
			}
			fmt.Fprintf(&sb, "%08x  %-20s (bad: %s)\n", base+off, fmt.Sprintf("%02x %02x", buf[off], buf[off+1]), reason)
			off += 2
			continue
		}
		sb.WriteString(in.Line(base))
		sb.WriteByte('\n')
		off = in.End()
	}
	return sb.String(), nil
}
