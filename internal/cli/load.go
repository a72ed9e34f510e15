package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataloader/internal/core"
	"github.com/JonMunkholm/dataloader/internal/ingest"
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load one file into its table",
	Long: `Load streams a local file into the table derived from its name and
prints the outcome. Logs go to stderr.

Examples:
  # Mapping from a YAML file (key order is column order)
  dataloader load people.csv --mapping people.yaml

  # Mapping on the command line
  dataloader load export.txt --delimiter '|' --map "Customer ID=customer_id" --map Name=name`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

type loadFlagValues struct {
	mappingFile string
	pairs       []string
	delimiter   string
}

var loadFlags loadFlagValues

func init() {
	loadCmd.Flags().StringVar(&loadFlags.mappingFile, "mapping", "", "Mapping file (.json, .yaml, .yml) of source header to target column")
	loadCmd.Flags().StringArrayVar(&loadFlags.pairs, "map", nil, "Mapping entry source=target (repeatable)")
	loadCmd.Flags().StringVar(&loadFlags.delimiter, "delimiter", "", `Field delimiter for .txt files ("tab" for TAB); default ","`)
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := args[0]

	// hint prints the suggested action for known failures.
	hint := func(err error) error {
		if core.IsUserFacing(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), core.FormatUserError(err))
		}
		return &exitError{err: err}
	}
	reject := func(err error) error {
		res := &core.Result{Status: core.StatusRejected, FileName: path, Err: err}
		fmt.Fprintln(out, res.Message())
		return hint(err)
	}

	mapping, err := buildMapping(loadFlags.mappingFile, loadFlags.pairs)
	if err != nil {
		return reject(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return reject(err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	cfg, err := loadConfig(envFileFlag(cmd), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ingest.Ingest(cmd.Context(), ingest.Request{
		FileName:  path,
		Body:      f,
		Size:      size,
		Delimiter: loadFlags.delimiter,
		Mapping:   mapping,
	})
	fmt.Fprintln(out, res.Message())
	if err != nil {
		return hint(err)
	}
	return nil
}
