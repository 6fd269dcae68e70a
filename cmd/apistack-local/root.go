package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/theory-cloud/apistack/pkg/composer"
	"github.com/theory-cloud/apistack/pkg/config"
	"github.com/theory-cloud/apistack/pkg/logger"
	obszap "github.com/theory-cloud/apistack/pkg/observability/zap"
)

// stackFlags override the matching configuration environment variables.
type stackFlags struct {
	configPath string
	env        string
	account    string
	region     string
	assetDir   string
}

func (f *stackFlags) lookup(key string) (string, bool) {
	var v string
	switch key {
	case config.EnvFile:
		v = f.configPath
	case config.EnvStage:
		v = f.env
	case config.EnvAccount:
		v = f.account
	case config.EnvRegion:
		v = f.region
	case config.EnvAssetDir:
		v = f.assetDir
	}
	if v != "" {
		return v, true
	}
	return os.LookupEnv(key)
}

// compose loads configuration, installs the global logger and composes the graph.
func (f *stackFlags) compose(ctx context.Context) (composer.Graph, error) {
	cfg, err := config.Load(ctx, config.WithLookup(f.lookup))
	if err != nil {
		return composer.Graph{}, err
	}

	log, err := obszap.NewZapLogger(cfg.Logging)
	if err != nil {
		return composer.Graph{}, err
	}
	logger.SetLogger(log)

	return composer.Compose(cfg.Settings())
}

func newRootCommand() *cobra.Command {
	flags := &stackFlags{}

	rootCmd := &cobra.Command{
		Use:   "apistack-local",
		Short: "Inspect and emulate the API stack locally",
		Long: `apistack-local composes the same resource graph the CDK app deploys.

It can print the graph for review or serve the gateway locally, answering CORS
preflights and proxying every other request to a diagnostic echo function.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "configuration file (overrides "+config.EnvFile+")")
	rootCmd.PersistentFlags().StringVar(&flags.env, "env", "", "environment identifier (overrides "+config.EnvStage+")")
	rootCmd.PersistentFlags().StringVar(&flags.account, "account", "", "target account (overrides "+config.EnvAccount+")")
	rootCmd.PersistentFlags().StringVar(&flags.region, "region", "", "target region (overrides "+config.EnvRegion+")")
	rootCmd.PersistentFlags().StringVar(&flags.assetDir, "asset-dir", "", "function asset directory (overrides "+config.EnvAssetDir+")")

	rootCmd.AddCommand(newPlanCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))

	return rootCmd
}
