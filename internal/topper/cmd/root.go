package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"topper/internal/topper/log"
)

func init() {
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(searchCmd, disasmCmd, schemaCmd)
}

var rootCmd = &cobra.Command{
	Use:   "topper",
	Short: "Exception-oriented gadget finder for Dalvik bytecode",
	Long: `Topper scans Dalvik bytecode for gadgets: short instruction sequences
ending in a pivot instruction such as throw. Input may be a raw bytecode
buffer, a dex file, or an apk.`,
	Example: `
# List throw gadgets of up to 8 instructions
topper search classes.dex

# Return-void gadgets as JSON, with CFGs written as DOT files
topper search app.apk --pivot return-void --json --dot ./cfg

# Decode a region
topper disasm blob.bin --offset 0x70 --length 0x40
  `,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := ResolveCwd(cmd); err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetBool("debug")
		logFile, _ := cmd.Flags().GetString("log-file")
		return log.Setup(logFile, debug)
	},
}

// isTerminal reports whether stdout is a terminal.
func isTerminal() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

func Execute() {
	err := execute()
	log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func execute() error {
	// Bypass fang's styled output when piped
	if !isTerminal() {
		return rootCmd.Execute()
	}
	return fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	)
}

func ResolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		err := os.Chdir(cwd)
		if err != nil {
			return "", fmt.Errorf("failed to change directory: %w", err)
		}
		return cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return cwd, nil
}
