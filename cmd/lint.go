package cmd

import (
	"fmt"

	"github.com/agentic-research/ngstate/api"
	"github.com/agentic-research/ngstate/internal/ingest"
	"github.com/agentic-research/ngstate/internal/linter"
	"github.com/spf13/cobra"
)

var lintStrict bool

func init() {
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "Exit non-zero when any diagnostic is reported")
	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint [spec.yaml] [data...]",
	Short: "Check a state spec for likely mistakes",
	Long: `Check a state spec for likely mistakes.

Data arguments use the build syntax; only their keys are checked, the files
are not read. Without data arguments, data keys are not checked.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := api.Load(args[0])
		if err != nil {
			return err
		}
		var keys []string
		for _, arg := range args[1:] {
			keys = append(keys, ingest.ParseInput(arg).Key)
		}
		diags := linter.Lint(spec, keys)
		for _, d := range diags {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		if lintStrict && len(diags) > 0 {
			return fmt.Errorf("%d diagnostics", len(diags))
		}
		return nil
	},
}
