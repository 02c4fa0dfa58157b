package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	"github.com/alexjbarnes/nextcloud-links/internal/host"
	"github.com/alexjbarnes/nextcloud-links/internal/mcpserver"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs/ocstest"
	"github.com/alexjbarnes/nextcloud-links/internal/pathmap"
	"github.com/alexjbarnes/nextcloud-links/internal/plugin"
	"github.com/alexjbarnes/nextcloud-links/internal/share"
	"github.com/alexjbarnes/nextcloud-links/internal/state"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the
// console host and the logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// harness holds the full stack: a fake share server, a console host
// with clipboard, the preferences document, the history database and
// the registered plugin.
type harness struct {
	srv       *ocstest.Server
	popups    *syncBuffer
	clipboard *syncBuffer
	store     *credentials.Store
	history   *state.State
	linker    *share.Reconciler
	registry  *host.Registry
	project   string
	prefs     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	project := filepath.Join(dir, "work", "PROYECTOS", "spot", "2025")
	for _, name := range []string{"renders/final.mov", "renders/alt.mov", "audio/mix.wav"} {
		abs := filepath.Join(project, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte("x"), 0o644))
	}

	// The host keeps its own settings in the same document.
	prefs := filepath.Join(dir, "prefs", "user.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(prefs), 0o755))
	require.NoError(t, os.WriteFile(prefs, []byte(`{"theme":"dark","recent":["a","b"]}`), 0o600))

	srv := ocstest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	popups := &syncBuffer{}
	clipboard := &syncBuffer{}
	h := host.NewConsole(popups, logger, project, prefs).WithClipboard(clipboard)

	store := credentials.NewStore(h.PrefsPath(), testKey, logger)
	require.NoError(t, store.Load())

	history, err := state.LoadAt(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	linker := share.NewReconciler(share.Config{
		API:         ocs.NewClient(srv.Client(), 0),
		Credentials: store,
		Mapper: func() pathmap.Mapper {
			return pathmap.New(h.ProjectPath(), "PROYECTOS", "/PROYECTOS")
		},
		ErrorLog: h,
	}, logger)

	p := plugin.New(plugin.Config{
		Host:    h,
		Linker:  linker,
		Store:   store,
		History: history,
	}, logger)

	registry := host.NewRegistry()
	p.Register(registry)

	return &harness{
		srv:       srv,
		popups:    popups,
		clipboard: clipboard,
		store:     store,
		history:   history,
		linker:    linker,
		registry:  registry,
		project:   project,
		prefs:     prefs,
	}
}

func (h *harness) path(rel string) string {
	return filepath.Join(h.project, filepath.FromSlash(rel))
}

// login fills and saves the settings panel the way a user would.
func (h *harness) login(t *testing.T, creds credentials.Credentials) {
	t.Helper()
	ctx := context.Background()

	panel := &host.Panel{}
	require.NoError(t, h.registry.Emit(ctx, host.EventSettingsLoad, &host.Payload{Panel: panel}))

	panel.Field(plugin.FieldURL).Value = creds.BaseURL
	panel.Field(plugin.FieldUsername).Value = creds.Username
	panel.Field(plugin.FieldPassword).Value = creds.Password

	require.NoError(t, panel.Press(ctx, plugin.SaveLabel))
}

// contextMenu builds the list context menu for paths.
func (h *harness) contextMenu(t *testing.T, paths ...string) *host.Menu {
	t.Helper()

	menu := &host.Menu{}
	require.NoError(t, h.registry.Emit(context.Background(), host.EventListContextMenu, &host.Payload{
		Paths: paths,
		Menu:  menu,
	}))

	return menu
}

// mcpSession connects an in-memory MCP client to tools backed by the
// same components.
func (h *harness) mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "nextcloud-links-e2e", Version: "test"}, nil)
	mcpserver.RegisterTools(server, mcpserver.Deps{
		Linker:      h.linker,
		History:     h.history,
		ProjectRoot: h.project,
	})

	t1, t2 := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session
}

// extractJSON unmarshals the first text content from a CallToolResult.
func extractJSON(t *testing.T, result *mcp.CallToolResult, dest any) {
	t.Helper()
	require.NotEmpty(t, result.Content, "result has no content")
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "first content is not TextContent")
	require.NoError(t, json.Unmarshal([]byte(tc.Text), dest))
}
