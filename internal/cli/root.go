// Package cli implements the dataloader command line: serve runs the HTTP
// loader, load ingests one local file.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dataloader",
	Short: "Load delimited text and spreadsheet files into PostgreSQL",
	Long: `dataloader streams a CSV, TSV, TXT or XLSX file into a PostgreSQL table
named after the file. A column mapping selects source headers and names the
target columns; every value is stored as text.

Configuration comes from the environment (and an optional .env file):
DATABASE_URL is required, everything else has a default.

Exit Codes:
  0  - Success, or the table was already loaded
  1  - The load was rejected or failed`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file loaded before reading configuration")
}

func envFileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return ".env"
	}
	return path
}
