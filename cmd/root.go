package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/ngstate/internal/config"
	"github.com/agentic-research/ngstate/internal/sourceinfo"
	"github.com/agentic-research/ngstate/internal/viewer"
	"github.com/spf13/cobra"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ngstate.yaml", "Path to service configuration")
	rootCmd.AddCommand(buildCmd, parseCmd, serveCmd, sitesCmd)
}

var rootCmd = &cobra.Command{
	Use:           "ngstate",
	Short:         "ngstate: build neuroglancer viewer states from tables",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env bundles the collaborators every command builds from the config.
type env struct {
	cfg      *config.Config
	sites    *viewer.Sites
	inferrer sourceinfo.Inferrer
	uploader viewer.Uploader
}

func loadEnv(infer bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	sites := viewer.DefaultSites()
	for _, s := range cfg.Viewer.Sites {
		if err := sites.Add(viewer.Site{Name: s.Name, URL: s.URL, RewriteGraphene: s.RewriteGraphene}); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if _, err := sites.Lookup(cfg.Viewer.DefaultSite); err != nil {
		return nil, fmt.Errorf("config: default site: %w", err)
	}

	e := &env{cfg: cfg, sites: sites}
	if infer && cfg.Inference.Enabled {
		inf, err := sourceinfo.NewHTTPInferrer(nil, sourceinfo.Config{
			Timeout:   cfg.Inference.Timeout(),
			CacheSize: cfg.Inference.CacheSize,
		})
		if err != nil {
			return nil, err
		}
		e.inferrer = inf
	}
	if cfg.Upload.Endpoint != "" {
		e.uploader = &viewer.HTTPUploader{Endpoint: cfg.Upload.Endpoint, Token: cfg.Upload.Token()}
	}
	return e, nil
}
