package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/agentic-research/ngstate/api"
	"github.com/agentic-research/ngstate/internal/ingest"
	"github.com/agentic-research/ngstate/internal/linter"
	"github.com/spf13/cobra"
)

var (
	buildData    []string
	buildFormat  string
	buildSite    string
	buildBaseURL string
	buildNoInfer bool
	buildShorten bool
)

func init() {
	buildCmd.Flags().StringArrayVarP(&buildData, "data", "d", nil, "Table input as [key=]path[#selector]; repeatable")
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "url", "Output format: url, json or pretty")
	buildCmd.Flags().StringVar(&buildSite, "site", "", "Target site (overrides the spec)")
	buildCmd.Flags().StringVar(&buildBaseURL, "base-url", "", "Viewer base URL (overrides the site)")
	buildCmd.Flags().BoolVar(&buildNoInfer, "no-infer", false, "Do not read source metadata")
	buildCmd.Flags().BoolVar(&buildShorten, "shorten", false, "Upload the state and print a short link")
}

var buildCmd = &cobra.Command{
	Use:   "build [spec.yaml] [data...]",
	Short: "Render a state spec with table data",
	Long: `Render a state spec with table data.

Positional data arguments and --data flags take [key=]path[#selector].
Without a key the table resolves the empty data key. Supported files are
.json, .ndjson, .csv, .tsv and SQLite databases, optionally .gz or .zst
compressed. For JSON the selector is a JSONPath to the row array; for
SQLite it is a table name or a SELECT query.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := api.Load(args[0])
		if err != nil {
			return err
		}
		e, err := loadEnv(!buildNoInfer)
		if err != nil {
			return err
		}
		if buildSite != "" {
			spec.Site = buildSite
		}
		if buildBaseURL != "" {
			spec.BaseURL = buildBaseURL
		}
		if spec.Site == "" {
			spec.Site = e.cfg.Viewer.DefaultSite
		}

		var (
			inputs []ingest.Input
			keys   []string
		)
		for _, arg := range append(args[1:], buildData...) {
			in := ingest.ParseInput(arg)
			inputs = append(inputs, in)
			keys = append(keys, in.Key)
		}
		for _, d := range linter.Lint(spec, keys) {
			log.Printf("warning: %s", d)
		}

		engine := ingest.NewEngine(e.sites, e.inferrer)
		s, err := engine.RenderFiles(cmd.Context(), spec, inputs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch buildFormat {
		case "url":
			if buildShorten {
				if e.uploader == nil {
					return fmt.Errorf("--shorten needs upload.endpoint in %s", configPath)
				}
				link, err := s.Shorten(cmd.Context(), e.uploader, "")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, link)
				return err
			}
			link, err := s.Link(cmd.Context(), "", e.uploader)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, link)
			return err
		case "json":
			b, err := s.ToJSON(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(b))
			return err
		case "pretty":
			doc, err := s.ToDict(cmd.Context())
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(b))
			return err
		}
		return fmt.Errorf("unknown format %q", buildFormat)
	},
}
