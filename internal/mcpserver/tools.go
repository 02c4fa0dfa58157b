// Package mcpserver registers MCP tools that expose link sharing to
// agents. It adapts the share reconciler and the link history to the MCP
// SDK's tool handler interface.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
	"github.com/alexjbarnes/nextcloud-links/internal/share"
	"github.com/alexjbarnes/nextcloud-links/internal/state"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Linker resolves and lists links. Implemented by *share.Reconciler.
type Linker interface {
	Resolve(ctx context.Context, localPath string, policy share.Policy) (share.Result, error)
	ListForPath(ctx context.Context, remotePath string) []ocs.Share
	ListProject(ctx context.Context, remoteProjectRoot string) []ocs.Share
	RemotePath(localPath string) (string, error)
	RemoteProjectRoot() string
}

// History is the link history. Implemented by *state.State.
type History interface {
	state.Recorder
	Links(limit int) ([]state.Link, error)
}

// Deps are the collaborators of the tools. Relative paths in tool input
// are resolved against ProjectRoot. History is trimmed to HistoryLimit
// links after each share; zero keeps everything.
type Deps struct {
	Linker       Linker
	History      History
	HistoryLimit int
	ProjectRoot  string
	Now          func() time.Time
	Logger       *slog.Logger
}

// RegisterTools adds all link tools to the given MCP server.
func RegisterTools(server *mcp.Server, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}

	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "share_link",
		Description: "Get a public link for a project file. Reuses an existing public link with exactly the same permissions and expiration, otherwise creates one. Mode is read or readwrite; duration is 1d, 1w, 1m, 6m or never.",
	}, shareLinkHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_links",
		Description: "List the public links of a project file or folder with their permissions and expiration.",
	}, listLinksHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_project_links",
		Description: "List every public link under the current project.",
	}, listProjectLinksHandler(d))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "link_history",
		Description: "List links previously handed out by this tool, newest first.",
	}, historyHandler(d))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// ShareLinkInput holds parameters for share_link.
type ShareLinkInput struct {
	Path     string `json:"path" jsonschema:"required,file path, absolute or relative to the project root"`
	Mode     string `json:"mode,omitempty" jsonschema:"read or readwrite, defaults to read"`
	Duration string `json:"duration,omitempty" jsonschema:"1d, 1w, 1m, 6m or never, defaults to never"`
}

// ListLinksInput holds parameters for list_links.
type ListLinksInput struct {
	Path string `json:"path" jsonschema:"required,file path, absolute or relative to the project root"`
}

// ListProjectLinksInput has no parameters.
type ListProjectLinksInput struct{}

// HistoryInput holds parameters for link_history.
type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of entries, defaults to 20"`
}

// --- Result types ---

// ShareLinkResult is the output of share_link.
type ShareLinkResult struct {
	URL         string `json:"url"`
	RemotePath  string `json:"remote_path"`
	Reused      bool   `json:"reused"`
	Permissions string `json:"permissions"`
	ExpireDate  string `json:"expire_date,omitempty"`
}

// LinkEntry is one public link in a listing.
type LinkEntry struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	URL         string `json:"url"`
	Permissions string `json:"permissions"`
	ExpireDate  string `json:"expire_date,omitempty"`
}

// LinksResult is the output of list_links and list_project_links.
type LinksResult struct {
	RemotePath string      `json:"remote_path"`
	Total      int         `json:"total"`
	Links      []LinkEntry `json:"links"`
}

// HistoryEntry is one recorded link.
type HistoryEntry struct {
	URL         string `json:"url"`
	RemotePath  string `json:"remote_path"`
	LocalPath   string `json:"local_path"`
	Permissions string `json:"permissions"`
	ExpireDate  string `json:"expire_date,omitempty"`
	Reused      bool   `json:"reused"`
	CreatedAt   string `json:"created_at"`
}

// HistoryResult is the output of link_history.
type HistoryResult struct {
	Total int            `json:"total"`
	Links []HistoryEntry `json:"links"`
}

const defaultHistoryLimit = 20

// --- Handlers ---

func shareLinkHandler(d Deps) mcp.ToolHandlerFor[ShareLinkInput, *ShareLinkResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ShareLinkInput) (*mcp.CallToolResult, *ShareLinkResult, error) {
		mode, err := share.ParseMode(orDefault(input.Mode, "read"))
		if err != nil {
			return nil, nil, err
		}

		dur, err := share.ParseDuration(orDefault(input.Duration, share.Never.Name))
		if err != nil {
			return nil, nil, err
		}

		local := d.localPath(input.Path)
		policy := share.NewPolicy(mode, dur, d.Now())

		res, err := d.Linker.Resolve(ctx, local, policy)
		if err != nil {
			return nil, nil, err
		}

		if d.History != nil {
			err := state.RecordAndPrune(d.History, state.Link{
				OpID:        uuid.NewString(),
				LocalPath:   local,
				RemotePath:  res.RemotePath,
				URL:         res.URL,
				Permissions: int(policy.Permissions),
				ExpireDate:  policy.ExpireDate,
				Reused:      res.Reused,
				CreatedAt:   d.Now().UTC(),
			}, d.HistoryLimit)
			if err != nil {
				d.Logger.Warn("link history not updated",
					slog.String("remote_path", res.RemotePath),
					slog.String("error", err.Error()),
				)
			}
		}

		result := &ShareLinkResult{
			URL:         res.URL,
			RemotePath:  res.RemotePath,
			Reused:      res.Reused,
			Permissions: policy.Permissions.String(),
			ExpireDate:  policy.ExpireDate,
		}

		return textResult(result), result, nil
	}
}

func listLinksHandler(d Deps) mcp.ToolHandlerFor[ListLinksInput, *LinksResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListLinksInput) (*mcp.CallToolResult, *LinksResult, error) {
		remote, err := d.Linker.RemotePath(d.localPath(input.Path))
		if err != nil {
			return nil, nil, err
		}

		result := linksResult(remote, d.Linker.ListForPath(ctx, remote))

		return textResult(result), result, nil
	}
}

func listProjectLinksHandler(d Deps) mcp.ToolHandlerFor[ListProjectLinksInput, *LinksResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListProjectLinksInput) (*mcp.CallToolResult, *LinksResult, error) {
		root := d.Linker.RemoteProjectRoot()
		result := linksResult(root, d.Linker.ListProject(ctx, root))

		return textResult(result), result, nil
	}
}

func historyHandler(d Deps) mcp.ToolHandlerFor[HistoryInput, *HistoryResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, *HistoryResult, error) {
		if d.History == nil {
			return nil, nil, fmt.Errorf("link history is not available")
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}

		links, err := d.History.Links(limit)
		if err != nil {
			return nil, nil, fmt.Errorf("reading link history: %w", err)
		}

		entries := make([]HistoryEntry, 0, len(links))
		for _, l := range links {
			entries = append(entries, HistoryEntry{
				URL:         l.URL,
				RemotePath:  l.RemotePath,
				LocalPath:   l.LocalPath,
				Permissions: share.Permission(l.Permissions).String(),
				ExpireDate:  l.ExpireDate,
				Reused:      l.Reused,
				CreatedAt:   l.CreatedAt.Format(time.RFC3339),
			})
		}

		result := &HistoryResult{Total: len(entries), Links: entries}

		return textResult(result), result, nil
	}
}

func linksResult(remotePath string, shares []ocs.Share) *LinksResult {
	entries := make([]LinkEntry, 0, len(shares))
	for _, s := range shares {
		entries = append(entries, LinkEntry{
			ID:          s.ID,
			Path:        s.Path,
			URL:         s.URL,
			Permissions: share.Permission(s.Permissions).String(),
			ExpireDate:  s.Expiration,
		})
	}

	return &LinksResult{RemotePath: remotePath, Total: len(entries), Links: entries}
}

func (d Deps) localPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(d.ProjectRoot, p)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
