package main

import (
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/t3up/analyzer/internal/config"
	"github.com/t3up/analyzer/internal/messages"
)

// rootOptions carries flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// loadConfig reads the config file from --config or the home default.
func (o *rootOptions) loadConfig() (*config.Config, []string, error) {
	path := o.configPath
	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, nil, err
		}
		path = filepath.Join(home, ".t3up", config.DefaultConfigFileName)
	}
	return config.Load(path)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		Long:          messages.RootLong,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", messages.RootConfigFlagHelp)
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	return cmd
}
