// Package plugin connects link sharing to the host's extension points:
// context menus, the settings panel, the project tab and the media
// browser.
package plugin

//go:generate mockgen -destination=mock_host_test.go -package=plugin github.com/alexjbarnes/nextcloud-links/internal/host Host,Clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	apperrors "github.com/alexjbarnes/nextcloud-links/internal/errors"
	"github.com/alexjbarnes/nextcloud-links/internal/host"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
	"github.com/alexjbarnes/nextcloud-links/internal/share"
	"github.com/alexjbarnes/nextcloud-links/internal/state"
	"github.com/google/uuid"
)

// Labels shown in the host UI.
const (
	MenuTitle      = "Nextcloud link"
	ShowLinksLabel = "Show existing links"
	SaveLabel      = "Save"
	PopupTitle     = "Nextcloud links"
	logLabel       = "nextcloud-links"
)

// Settings panel field names.
const (
	FieldURL      = "nextcloud_url"
	FieldUsername = "nextcloud_username"
	FieldPassword = "nextcloud_password"
)

// ProjectColumns are the columns of the project tab table.
var ProjectColumns = []string{"Path", "Permissions", "Expires", "URL"}

var modeColors = map[string]string{
	"read":      "#4caf50",
	"readwrite": "#ff9800",
}

// Linker resolves and lists links. Implemented by *share.Reconciler.
type Linker interface {
	Resolve(ctx context.Context, localPath string, policy share.Policy) (share.Result, error)
	ListForPath(ctx context.Context, remotePath string) []ocs.Share
	ListProject(ctx context.Context, remoteProjectRoot string) []ocs.Share
	RemotePath(localPath string) (string, error)
	RemoteProjectRoot() string
}

// CredentialStore reads and saves the account. Implemented by
// *credentials.Store.
type CredentialStore interface {
	Credentials() credentials.Credentials
	Save(c credentials.Credentials) error
}

// History records handed out links. Implemented by *state.State.
type History interface {
	state.Recorder
	LatestLink(remotePath string) (*state.Link, error)
}

// Config holds the plugin's collaborators. History is optional.
type Config struct {
	Host         host.Host
	Linker       Linker
	Store        CredentialStore
	History      History
	HistoryLimit int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Plugin handles host events.
type Plugin struct {
	host      host.Host
	clipboard host.Clipboard
	colorer   host.IconColorer

	linker       Linker
	store        CredentialStore
	history      History
	historyLimit int
	now          func() time.Time
	logger       *slog.Logger

	warnOnce sync.Once
}

// New creates a Plugin. Optional host capabilities are detected here.
func New(cfg Config, logger *slog.Logger) *Plugin {
	p := &Plugin{
		host:         cfg.Host,
		linker:       cfg.Linker,
		store:        cfg.Store,
		history:      cfg.History,
		historyLimit: cfg.HistoryLimit,
		now:          cfg.Now,
		logger:       logger,
	}

	if p.now == nil {
		p.now = time.Now
	}

	if cb, ok := cfg.Host.(host.Clipboard); ok {
		p.clipboard = cb
	}

	if ic, ok := cfg.Host.(host.IconColorer); ok {
		p.colorer = ic
	}

	return p
}

// Register subscribes the plugin to every host extension point.
func (p *Plugin) Register(r *host.Registry) {
	r.Register(host.EventSettingsLoad, p.onSettingsLoad)
	r.Register(host.EventMediaBrowserOpen, p.onMediaBrowserOpen)
	r.Register(host.EventListContextMenu, p.onContextMenu)
	r.Register(host.EventPreviewContextMenu, p.onContextMenu)
	r.Register(host.EventProjectTabLoad, p.onProjectTabLoad)
}

func (p *Plugin) onContextMenu(_ context.Context, payload *host.Payload) error {
	if payload.Menu == nil || len(payload.Paths) == 0 {
		return nil
	}

	paths := append([]string(nil), payload.Paths...)
	root := payload.Menu.AddSubmenu(MenuTitle, p.icon("link", ""))

	for _, mode := range share.Modes {
		sub := root.AddSubmenu(mode.Label, p.icon("link", modeColors[mode.Name]))

		for _, d := range share.Durations {
			sub.AddAction(d.Label, "", func(ctx context.Context) error {
				_, err := p.ShareLinks(ctx, paths, mode, d)
				return err
			})
		}
	}

	root.AddAction(ShowLinksLabel, p.icon("list", ""), func(ctx context.Context) error {
		p.ShowLinks(ctx, paths)
		return nil
	})

	return nil
}

func (p *Plugin) icon(name, color string) string {
	if p.colorer == nil {
		return ""
	}

	return p.colorer.ColoredIcon(name, color)
}

// ShareLinks resolves a link for each path and hands the result to the
// user: copied to the clipboard when the host has one, shown in a popup
// and recorded to history. The first failure is shown, logged and
// returned; links resolved before it are still delivered.
func (p *Plugin) ShareLinks(ctx context.Context, paths []string, mode share.Mode, d share.Duration) ([]string, error) {
	opID := uuid.NewString()
	policy := share.NewPolicy(mode, d, p.now())

	logger := p.logger.With(
		slog.String("op_id", opID),
		slog.String("mode", mode.Name),
		slog.String("duration", d.Name),
	)

	urls := make([]string, 0, len(paths))

	for _, path := range paths {
		res, err := p.linker.Resolve(ctx, path, policy)
		if err != nil {
			logger.Warn("share failed", slog.String("path", path), slog.String("error", err.Error()))
			p.deliver(urls)
			p.reportError("Could not share "+path, err)

			return urls, err
		}

		logger.Info("link ready",
			slog.String("path", path),
			slog.String("url", res.URL),
			slog.Bool("reused", res.Reused),
		)

		p.record(opID, path, res, policy)
		urls = append(urls, res.URL)
	}

	p.deliver(urls)

	return urls, nil
}

func (p *Plugin) deliver(urls []string) {
	if len(urls) == 0 {
		return
	}

	text := strings.Join(urls, "\n")
	message := text

	if p.clipboard != nil {
		if err := p.clipboard.CopyToClipboard(text); err != nil {
			p.host.LogError(logLabel+": clipboard", err.Error())
		} else {
			message = "Copied to clipboard:\n" + text
		}
	}

	p.host.Popup(PopupTitle, message, host.SeverityInfo)
}

func (p *Plugin) record(opID, localPath string, res share.Result, policy share.Policy) {
	if p.history == nil {
		return
	}

	err := state.RecordAndPrune(p.history, state.Link{
		OpID:        opID,
		LocalPath:   localPath,
		RemotePath:  res.RemotePath,
		URL:         res.URL,
		Permissions: int(policy.Permissions),
		ExpireDate:  policy.ExpireDate,
		Reused:      res.Reused,
		CreatedAt:   p.now().UTC(),
	}, p.historyLimit)
	if err != nil {
		p.logger.Warn("link history not updated", slog.String("error", err.Error()))
	}
}

// lastHandedOut returns the last link this tool gave out for remotePath.
func (p *Plugin) lastHandedOut(remotePath string) *state.Link {
	if p.history == nil {
		return nil
	}

	l, err := p.history.LatestLink(remotePath)
	if err != nil {
		p.logger.Warn("reading link history failed", slog.String("error", err.Error()))
		return nil
	}

	return l
}

// reportError shows err to the user and appends it to the host error log.
func (p *Plugin) reportError(title string, err error) {
	p.host.Popup(title, userMessage(err), host.SeverityError)
	p.host.LogError(logLabel, title+": "+err.Error())
}

// userMessage phrases err for a popup.
func userMessage(err error) string {
	var missing *credentials.MissingCredentialsError

	switch {
	case errors.As(err, &missing):
		return "Set your Nextcloud " + strings.Join(missing.Fields, ", ") + " in the plugin settings."
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return "The Nextcloud URL in the plugin settings is not valid."
	case errors.Is(err, apperrors.ErrOutsideProject):
		return "The file is not inside the current project."
	case errors.Is(err, apperrors.ErrInvalidPath):
		return "The file does not exist."
	case errors.Is(err, apperrors.ErrConnection):
		return "Could not reach the Nextcloud server."
	case errors.Is(err, apperrors.ErrRemoteAPI):
		return fmt.Sprintf("The Nextcloud server refused the request (HTTP %d).", ocs.StatusCode(err))
	default:
		return err.Error()
	}
}

// ShowLinks pops up the public links of each path, followed by the last
// link handed out for it when the history has one.
func (p *Plugin) ShowLinks(ctx context.Context, paths []string) {
	var b strings.Builder

	for _, path := range paths {
		remote, err := p.linker.RemotePath(path)
		if err != nil {
			p.reportError("Could not list links for "+path, err)
			return
		}

		shares := p.linker.ListForPath(ctx, remote)

		fmt.Fprintf(&b, "%s\n", remote)

		if len(shares) == 0 {
			b.WriteString("  no public links\n")
		}

		for _, s := range shares {
			fmt.Fprintf(&b, "  %s\n", DescribeShare(s))
		}

		if last := p.lastHandedOut(remote); last != nil {
			fmt.Fprintf(&b, "  last handed out: %s on %s\n", last.URL, last.CreatedAt.Format(time.DateOnly))
		}
	}

	p.host.Popup(PopupTitle, strings.TrimRight(b.String(), "\n"), host.SeverityInfo)
}

// DescribeShare renders a share as "url (permissions, expiry)".
func DescribeShare(s ocs.Share) string {
	return fmt.Sprintf("%s (%s, %s)", s.URL, share.Permission(s.Permissions), Expiry(s.Expiration))
}

// Expiry renders an expiration date for display.
func Expiry(date string) string {
	if date == "" {
		return "never expires"
	}

	return "expires " + date
}

func (p *Plugin) onSettingsLoad(_ context.Context, payload *host.Payload) error {
	if payload.Panel == nil {
		return nil
	}

	creds := p.store.Credentials()
	panel := payload.Panel

	panel.AddField(FieldURL, "Nextcloud URL", creds.BaseURL, false)
	panel.AddField(FieldUsername, "Username", creds.Username, false)
	panel.AddField(FieldPassword, "Password", creds.Password, true)

	panel.AddButton(SaveLabel, func(context.Context) error {
		return p.SaveSettings(panel)
	})

	return nil
}

// SaveSettings stores the credentials entered in panel.
func (p *Plugin) SaveSettings(panel *host.Panel) error {
	creds := credentials.Credentials{
		BaseURL:  panel.Value(FieldURL),
		Username: panel.Value(FieldUsername),
		Password: panel.Value(FieldPassword),
	}

	if err := p.store.Save(creds); err != nil {
		p.reportError("Could not save settings", err)
		return err
	}

	if err := credentials.Validate(creds); err != nil {
		p.host.Popup(PopupTitle, "Settings saved. "+userMessage(err), host.SeverityWarning)
		return nil
	}

	p.host.Popup(PopupTitle, "Settings saved.", host.SeverityInfo)

	return nil
}

func (p *Plugin) onProjectTabLoad(ctx context.Context, payload *host.Payload) error {
	if payload.Table == nil {
		return nil
	}

	FillProjectTable(payload.Table, p.linker.ListProject(ctx, p.linker.RemoteProjectRoot()))

	return nil
}

// FillProjectTable sets the title and columns of t and adds one row per
// share.
func FillProjectTable(t *host.Table, shares []ocs.Share) {
	t.Title = MenuTitle + "s"
	t.Columns = slices.Clone(ProjectColumns)

	for _, s := range shares {
		exp := s.Expiration
		if exp == "" {
			exp = "never"
		}

		t.AddRow(s.Path, share.Permission(s.Permissions).String(), exp, s.URL)
	}
}

// onMediaBrowserOpen warns once per session when the account is not set.
func (p *Plugin) onMediaBrowserOpen(context.Context, *host.Payload) error {
	err := credentials.Validate(p.store.Credentials())
	if err == nil {
		return nil
	}

	p.warnOnce.Do(func() {
		p.host.Popup(PopupTitle, userMessage(err), host.SeverityWarning)
	})

	return nil
}
