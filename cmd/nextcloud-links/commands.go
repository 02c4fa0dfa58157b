package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	"github.com/alexjbarnes/nextcloud-links/internal/host"
	"github.com/alexjbarnes/nextcloud-links/internal/mcpserver"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
	"github.com/alexjbarnes/nextcloud-links/internal/plugin"
	"github.com/alexjbarnes/nextcloud-links/internal/share"
	"github.com/alexjbarnes/nextcloud-links/internal/state"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))

	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", a, err)
		}

		out = append(out, abs)
	}

	return out, nil
}

func newShareCmd() *cobra.Command {
	var (
		modeName     string
		durationName string
		clipboard    bool
	)

	cmd := &cobra.Command{
		Use:   "share PATH...",
		Short: "Print a public link for each file, reusing an equivalent one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := share.ParseMode(modeName)
			if err != nil {
				return err
			}

			dur, err := share.ParseDuration(durationName)
			if err != nil {
				return err
			}

			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			return withApp(clipboard, func(a *app) error {
				urls, err := a.plugin.ShareLinks(cmd.Context(), paths, mode, dur)
				for _, u := range urls {
					fmt.Fprintln(cmd.OutOrStdout(), u)
				}

				return err
			})
		},
	}

	cmd.Flags().StringVarP(&modeName, "mode", "m", "read", "share mode: read or readwrite")
	cmd.Flags().StringVarP(&durationName, "duration", "d", share.Never.Name, "link lifetime: 1d, 1w, 1m, 6m or never")
	cmd.Flags().BoolVarP(&clipboard, "copy", "c", false, "also copy the links to the terminal clipboard (OSC 52)")

	return cmd
}

// shareTable lays out shares like the project tab.
func shareTable(shares []ocs.Share) *host.Table {
	t := &host.Table{}
	plugin.FillProjectTable(t, shares)

	return t
}

func newLinksCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "links PATH",
		Short: "List the public links of a file or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			return withApp(false, func(a *app) error {
				remote, err := a.linker.RemotePath(paths[0])
				if err != nil {
					return err
				}

				shares := a.linker.ListForPath(cmd.Context(), remote)

				return render(cmd.OutOrStdout(), format, nonNil(shares), shareTable(shares))
			})
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format: table, json or yaml")

	return cmd
}

func newProjectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "List every public link under the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			return withApp(false, func(a *app) error {
				if format == formatTable {
					// Same path the host takes when it opens the project tab.
					t := &host.Table{}
					if err := a.registry.Emit(cmd.Context(), host.EventProjectTabLoad, &host.Payload{Table: t}); err != nil {
						return err
					}

					return writeTable(cmd.OutOrStdout(), t)
				}

				shares := a.linker.ListProject(cmd.Context(), a.linker.RemoteProjectRoot())

				return render(cmd.OutOrStdout(), format, nonNil(shares), nil)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format: table, json or yaml")

	return cmd
}

func nonNil(shares []ocs.Share) []ocs.Share {
	if shares == nil {
		return []ocs.Share{}
	}

	return shares
}

func newLoginCmd() *cobra.Command {
	var (
		baseURL  string
		username string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the Nextcloud account; the password is read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("reading password: %w", err)
				}

				return fmt.Errorf("no password given")
			}

			password := strings.TrimRight(scanner.Text(), "\r")

			return withApp(false, func(a *app) error {
				// Fill and save the settings panel the way the host would.
				panel := &host.Panel{}
				if err := a.registry.Emit(cmd.Context(), host.EventSettingsLoad, &host.Payload{Panel: panel}); err != nil {
					return err
				}

				if baseURL != "" {
					panel.Field(plugin.FieldURL).Value = baseURL
				}

				if username != "" {
					panel.Field(plugin.FieldUsername).Value = username
				}

				panel.Field(plugin.FieldPassword).Value = password

				if err := panel.Press(cmd.Context(), plugin.SaveLabel); err != nil {
					return err
				}

				return credentials.Validate(a.store.Credentials())
			})
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "Nextcloud base URL, e.g. https://cloud.example.com")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Nextcloud username")

	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List links handed out before, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			return withApp(false, func(a *app) error {
				links, err := a.history.Links(limit)
				if err != nil {
					return fmt.Errorf("reading link history: %w", err)
				}

				if links == nil {
					links = []state.Link{}
				}

				t := &host.Table{Columns: []string{"When", "Path", "Permissions", "Expires", "Reused", "URL"}}
				for _, l := range links {
					exp := l.ExpireDate
					if exp == "" {
						exp = "never"
					}

					t.AddRow(
						l.CreatedAt.Local().Format("2006-01-02 15:04"),
						l.RemotePath,
						share.Permission(l.Permissions).String(),
						exp,
						fmt.Sprint(l.Reused),
						l.URL,
					)
				}

				return render(cmd.OutOrStdout(), format, links, t)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format: table, json or yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries, 0 for all")

	return cmd
}

func newMenuCmd() *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "menu PATH...",
		Short: "Print the context menu offered for the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			event := host.EventListContextMenu
			if preview {
				event = host.EventPreviewContextMenu
			}

			return withApp(false, func(a *app) error {
				menu := &host.Menu{}
				if err := a.registry.Emit(cmd.Context(), event, &host.Payload{Paths: paths, Menu: menu}); err != nil {
					return err
				}

				menu.Render(cmd.OutOrStdout())

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "show the preview pane menu instead of the list menu")

	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the link tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(false, func(a *app) error {
				server := mcp.NewServer(
					&mcp.Implementation{Name: "nextcloud-links", Version: Version},
					nil,
				)
				mcpserver.RegisterTools(server, mcpserver.Deps{
					Linker:       a.linker,
					History:      a.history,
					HistoryLimit: a.cfg.HistoryLimit,
					ProjectRoot:  a.host.ProjectPath(),
					Logger:       a.logger,
				})

				// Media browser open: warn about an incomplete account up front.
				if err := a.registry.Emit(cmd.Context(), host.EventMediaBrowserOpen, &host.Payload{}); err != nil {
					return err
				}

				a.logger.Info("serving MCP on stdio", slog.String("project", a.host.ProjectPath()))

				// The watcher stops once the client disconnects.
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()

				g, gctx := errgroup.WithContext(ctx)

				g.Go(func() error {
					return ignoreCanceled(a.store.Watch(gctx))
				})

				g.Go(func() error {
					defer cancel()
					return ignoreCanceled(server.Run(gctx, &mcp.StdioTransport{}))
				})

				return g.Wait()
			})
		},
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
