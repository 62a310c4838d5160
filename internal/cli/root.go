// Package cli wires the lazysheet commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rebeliceyang/lazysheet/internal/config"
	"github.com/rebeliceyang/lazysheet/internal/logger"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "lazysheet",
		Short:         "Browse delimited files and filter their columns",
		Long:          `lazysheet opens CSV/TSV files in the terminal and keeps per-column filter rules in a small backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/lazysheet/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newViewCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newRulesCmd(opts))
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// initStderrLogger is for commands that own the terminal's stderr
func initStderrLogger(cfg *config.Config, w io.Writer) error {
	return logger.Initialize(logger.Options{Writer: w, Level: cfg.Log.Level})
}
