package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List known viewer sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(false)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, name := range e.sites.Names() {
			site, err := e.sites.Lookup(name)
			if err != nil {
				return err
			}
			mark := ""
			if name == e.cfg.Viewer.DefaultSite {
				mark = "*"
			}
			_, _ = fmt.Fprintf(w, "%s%s\t%s\n", name, mark, site.URL)
		}
		return w.Flush()
	},
}
