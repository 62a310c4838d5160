package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/config"
	"github.com/rebeliceyang/lazysheet/internal/export"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/server"
	"github.com/rebeliceyang/lazysheet/internal/sheet"
)

func newRulesCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with stored filter rules",
	}
	cmd.AddCommand(newRulesExportCmd(o))
	return cmd
}

func newRulesExportCmd(o *rootOptions) *cobra.Command {
	var (
		sheetIndex int
		format     string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "export <file|dir>",
		Short: "Write the filter rules of one sheet to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if err := initStderrLogger(cfg, cmd.ErrOrStderr()); err != nil {
				return err
			}

			wb, err := sheet.Load(args[0], cfg.Data.Delimiter)
			if err != nil {
				return err
			}
			sh, ok := wb.Sheet(sheetIndex)
			if !ok {
				return errors.Errorf("%s has no sheet %d", args[0], sheetIndex)
			}

			rules, err := listRules(cmd.Context(), cfg, wb.FileID, sheetIndex)
			if err != nil {
				return err
			}

			if err := export.ExportRules(export.Records(rules, sh.Columns), f, out); err != nil {
				return errors.Wrap(err, "export rules")
			}
			logger.Info("exported filter rules", "count", len(rules), "out", out)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rules to %s\n", len(rules), out)
			return nil
		},
	}

	cmd.Flags().IntVar(&sheetIndex, "sheet", 0, "sheet index")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// listRules reads from the configured backend, or straight from the store
// when no backend URL is set
func listRules(ctx context.Context, cfg *config.Config, fileID models.FileID, sheetIndex int) ([]models.StoredRule, error) {
	if cfg.API.BaseURL != "" {
		client := api.NewClient(cfg.API.BaseURL, cfg.API.RequestTimeout)
		rules, err := client.GetForSheet(ctx, fileID, sheetIndex)
		return rules, errors.Wrap(err, "fetch rules")
	}

	st, err := server.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	rules, err := st.ListForSheet(ctx, fileID, sheetIndex)
	return rules, errors.Wrap(err, "list rules")
}
