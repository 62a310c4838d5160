package cli

import (
	"context"
	"net"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/app"
	"github.com/rebeliceyang/lazysheet/internal/config"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/server"
	"github.com/rebeliceyang/lazysheet/internal/sheet"
)

func newViewCmd(o *rootOptions) *cobra.Command {
	var (
		delimiter string
		baseURL   string
		noWatch   bool
	)

	cmd := &cobra.Command{
		Use:   "view <file|dir>",
		Short: "Open a file (or a directory of files) in the viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("delimiter") {
				cfg.Data.Delimiter = delimiter
			}
			if baseURL != "" {
				cfg.API.BaseURL = baseURL
			}
			if noWatch {
				cfg.UI.WatchFile = false
			}
			return runView(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "field delimiter (default: from the file extension)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "filter backend URL (default: start an embedded backend)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload when the file changes")
	return cmd
}

func runView(ctx context.Context, cfg *config.Config, path string) error {
	// The TUI owns the terminal, so logs go to a file
	if err := logger.Initialize(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level}); err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer func() { _ = logger.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.API.BaseURL == "" {
		url, stop, err := startEmbeddedBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer stop()
		cfg.API.BaseURL = url
	}
	client := api.NewClient(cfg.API.BaseURL, cfg.API.RequestTimeout)

	var wb *models.Workbook
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wb, err = sheet.Load(path, cfg.Data.Delimiter)
		return err
	})
	g.Go(func() error {
		return errors.Wrapf(client.Health(gctx), "filter backend at %s", client.BaseURL())
	})
	if err := g.Wait(); err != nil {
		return err
	}

	opts := app.Options{
		Path:      path,
		Workbook:  wb,
		Store:     client,
		Templates: client,
	}
	if cfg.UI.WatchFile {
		w, err := sheet.NewWatcher(ctx, path)
		if err != nil {
			logger.Warn("file watching disabled", "path", path, "error", err)
		} else {
			defer func() { _ = w.Close() }()
			opts.Changes = w.Changes()
		}
	}

	logger.Info("opening workbook", "path", path, "sheets", len(wb.Sheets), "backend", client.BaseURL())

	zone.NewGlobal()
	defer zone.Close()

	programOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.UI.MouseEnabled {
		programOpts = append(programOpts, tea.WithMouseCellMotion())
	}

	p := tea.NewProgram(app.New(cfg, opts), programOpts...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run program")
	}
	return nil
}

// startEmbeddedBackend serves the configured store on a loopback port. stop
// shuts the backend down and closes the store.
func startEmbeddedBackend(ctx context.Context, cfg *config.Config) (string, func(), error) {
	st, err := server.OpenStore(ctx, cfg.Store)
	if err != nil {
		return "", nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = st.Close()
		return "", nil, errors.Wrap(err, "listen for embedded backend")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- server.New(st).Serve(ctx, ln)
	}()

	stop := func() {
		cancel()
		if err := <-done; err != nil {
			logger.Error("embedded backend stopped with error", "error", err)
		}
		_ = st.Close()
	}
	return "http://" + ln.Addr().String(), stop, nil
}
