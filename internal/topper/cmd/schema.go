package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"topper/internal/config"
	"topper/internal/render"
)

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schema for configuration",
	Long:   "Generate JSON schema for the topper configuration file, or for the search --json report",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema := config.Schema()
		if report, _ := cmd.Flags().GetBool("report"); report {
			schema = render.ReportSchema()
		}
		bts, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(bts))
		return nil
	},
}

func init() {
	schemaCmd.Flags().Bool("report", false, "Schema of the JSON report instead of the configuration")
}
