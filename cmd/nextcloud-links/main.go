package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/nextcloud-links/internal/config"
	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	"github.com/alexjbarnes/nextcloud-links/internal/host"
	"github.com/alexjbarnes/nextcloud-links/internal/logging"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
	"github.com/alexjbarnes/nextcloud-links/internal/pathmap"
	"github.com/alexjbarnes/nextcloud-links/internal/plugin"
	"github.com/alexjbarnes/nextcloud-links/internal/share"
	"github.com/alexjbarnes/nextcloud-links/internal/state"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is the fully wired plugin running inside the console host.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	host     host.Host
	store    *credentials.Store
	history  *state.State
	linker   *share.Reconciler
	plugin   *plugin.Plugin
	registry *host.Registry
}

// newApp loads configuration and wires every component. With clipboard
// set, links are also copied to the terminal clipboard.
func newApp(clipboard bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel, os.Stderr)

	console := host.NewConsole(os.Stderr, logger, cfg.ProjectRoot, cfg.PrefsFile)

	var h host.Host = console
	if clipboard {
		h = console.WithClipboard(os.Stderr)
	}

	store := credentials.NewStore(h.PrefsPath(), credentials.DeriveKey(), logger)
	if err := store.Load(); err != nil {
		return nil, err
	}

	history, err := state.LoadAt(cfg.StateDB)
	if err != nil {
		return nil, err
	}

	linker := share.NewReconciler(share.Config{
		API:         ocs.NewClient(nil, cfg.HTTPTimeout),
		Credentials: store,
		Mapper: func() pathmap.Mapper {
			return pathmap.New(h.ProjectPath(), cfg.ProjectAnchor, cfg.RemoteRoot)
		},
		ErrorLog: h,
	}, logger)

	p := plugin.New(plugin.Config{
		Host:         h,
		Linker:       linker,
		Store:        store,
		History:      history,
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	registry := host.NewRegistry()
	p.Register(registry)

	logger.Debug("nextcloud-links ready",
		slog.String("version", Version),
		slog.String("project", cfg.ProjectRoot),
		slog.String("remote_root", linker.RemoteProjectRoot()),
		slog.String("prefs", cfg.PrefsFile),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		host:     h,
		store:    store,
		history:  history,
		linker:   linker,
		plugin:   p,
		registry: registry,
	}, nil
}

func (a *app) Close() error {
	return a.history.Close()
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(clipboard bool, fn func(a *app) error) error {
	a, err := newApp(clipboard)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nextcloud-links",
		Short:         "Share project files as Nextcloud public links",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newShareCmd(),
		newLinksCmd(),
		newProjectCmd(),
		newLoginCmd(),
		newHistoryCmd(),
		newMenuCmd(),
		newMCPCmd(),
	)

	return root
}
