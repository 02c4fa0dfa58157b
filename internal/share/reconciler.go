// Package share finds or creates public links for project files.
package share

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alexjbarnes/nextcloud-links/internal/credentials"
	apperrors "github.com/alexjbarnes/nextcloud-links/internal/errors"
	"github.com/alexjbarnes/nextcloud-links/internal/ocs"
	"github.com/alexjbarnes/nextcloud-links/internal/pathmap"
	"github.com/samber/lo"
)

// API is the part of the share server the reconciler talks to.
type API interface {
	ListShares(ctx context.Context, creds credentials.Credentials, remotePath string) ([]ocs.Share, error)
	ListAllShares(ctx context.Context, creds credentials.Credentials) ([]ocs.Share, error)
	CreateShare(ctx context.Context, creds credentials.Credentials, req ocs.CreateRequest) (string, error)
}

// CredentialSource supplies the current account.
type CredentialSource interface {
	Credentials() credentials.Credentials
}

// ErrorLog receives failures that are reported to the user's error log
// instead of being returned.
type ErrorLog interface {
	LogError(label, message string)
}

// Config holds the collaborators of a Reconciler.
type Config struct {
	API         API
	Credentials CredentialSource
	// Mapper returns the path mapper of the current project. It is called
	// per operation because the host may switch projects at any time.
	Mapper   func() pathmap.Mapper
	ErrorLog ErrorLog
}

// Result is a resolved link.
type Result struct {
	URL        string
	RemotePath string
	// Reused is true when an existing share matched the policy.
	Reused bool
}

// Reconciler maps local files to remote paths and resolves them to
// public links, reusing an equivalent share when one exists.
type Reconciler struct {
	api      API
	creds    CredentialSource
	mapper   func() pathmap.Mapper
	errorLog ErrorLog
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler from cfg.
func NewReconciler(cfg Config, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		api:      cfg.API,
		creds:    cfg.Credentials,
		mapper:   cfg.Mapper,
		errorLog: cfg.ErrorLog,
		logger:   logger,
	}
}

// RemoteProjectRoot returns the remote prefix of the current project.
func (r *Reconciler) RemoteProjectRoot() string {
	return r.mapper().RemotePrefix
}

// RemotePath maps a local path of the current project to its remote path.
func (r *Reconciler) RemotePath(localPath string) (string, error) {
	return r.mapper().Remote(localPath)
}

// Resolve returns a public link for localPath satisfying policy. The
// credentials and the path are validated first; a path outside the
// project fails before any network call. An existing equivalent share is
// reused, otherwise a new one is created.
func (r *Reconciler) Resolve(ctx context.Context, localPath string, policy Policy) (Result, error) {
	creds := r.creds.Credentials().Normalized()
	if err := credentials.Validate(creds); err != nil {
		return Result{}, err
	}

	if localPath == "" {
		return Result{}, fmt.Errorf("%w: no path given", apperrors.ErrInvalidPath)
	}

	if _, err := os.Stat(localPath); err != nil {
		return Result{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidPath, localPath)
	}

	remotePath, err := r.RemotePath(localPath)
	if err != nil {
		return Result{}, err
	}

	if link, ok := r.findMatching(ctx, creds, remotePath, policy); ok {
		r.logger.Info("reusing existing share",
			slog.String("remote_path", remotePath),
			slog.String("url", link),
		)

		return Result{URL: link, RemotePath: remotePath, Reused: true}, nil
	}

	link, err := r.create(ctx, creds, remotePath, policy)
	if err != nil {
		return Result{}, err
	}

	return Result{URL: link, RemotePath: remotePath}, nil
}

// FindMatching returns the URL of the first public share on remotePath
// that satisfies policy, in server order. Failures are logged and
// reported as no match so the caller goes on to create a share.
func (r *Reconciler) FindMatching(ctx context.Context, remotePath string, policy Policy) (string, bool) {
	return r.findMatching(ctx, r.creds.Credentials().Normalized(), remotePath, policy)
}

func (r *Reconciler) findMatching(ctx context.Context, creds credentials.Credentials, remotePath string, policy Policy) (string, bool) {
	shares, err := r.api.ListShares(ctx, creds, remotePath)
	if err != nil {
		r.logFailure("find matching share", remotePath, err)
		return "", false
	}

	match, ok := lo.Find(shares, policy.Matches)
	if !ok {
		r.logger.Debug("no matching share",
			slog.String("remote_path", remotePath),
			slog.Int("shares", len(shares)),
		)

		return "", false
	}

	return match.URL, true
}

// Create creates a public link share on remotePath and returns its URL.
func (r *Reconciler) Create(ctx context.Context, remotePath string, policy Policy) (string, error) {
	return r.create(ctx, r.creds.Credentials().Normalized(), remotePath, policy)
}

func (r *Reconciler) create(ctx context.Context, creds credentials.Credentials, remotePath string, policy Policy) (string, error) {
	link, err := r.api.CreateShare(ctx, creds, ocs.CreateRequest{
		Path:        remotePath,
		ShareType:   ocs.ShareTypePublicLink,
		Permissions: int(policy.Permissions),
		ExpireDate:  policy.ExpireDate,
	})
	if err != nil {
		r.logger.Warn("creating share failed",
			slog.String("remote_path", remotePath),
			slog.String("error", err.Error()),
		)

		return "", err
	}

	r.logger.Info("share created",
		slog.String("remote_path", remotePath),
		slog.String("permissions", policy.Permissions.String()),
		slog.String("expire_date", policy.ExpireDate),
		slog.String("url", link),
	)

	return link, nil
}

// ListForPath returns every public link share on remotePath. Failures
// are logged and yield no shares.
func (r *Reconciler) ListForPath(ctx context.Context, remotePath string) []ocs.Share {
	shares, err := r.api.ListShares(ctx, r.creds.Credentials().Normalized(), remotePath)
	if err != nil {
		r.logFailure("list shares", remotePath, err)
		return nil
	}

	return lo.Filter(shares, func(s ocs.Share, _ int) bool {
		return s.IsPublicLink()
	})
}

// ListProject returns the account's public link shares under
// remoteProjectRoot. The account is listed without a path filter and
// narrowed locally. Failures are logged and yield no shares.
func (r *Reconciler) ListProject(ctx context.Context, remoteProjectRoot string) []ocs.Share {
	shares, err := r.api.ListAllShares(ctx, r.creds.Credentials().Normalized())
	if err != nil {
		r.logFailure("list project shares", remoteProjectRoot, err)
		return nil
	}

	root := strings.TrimSuffix(remoteProjectRoot, "/")

	return lo.Filter(shares, func(s ocs.Share, _ int) bool {
		return s.IsPublicLink() && (s.Path == root || strings.HasPrefix(s.Path, root+"/"))
	})
}

func (r *Reconciler) logFailure(label, remotePath string, err error) {
	r.logger.Warn(label+" failed",
		slog.String("remote_path", remotePath),
		slog.String("error", err.Error()),
	)

	if r.errorLog != nil {
		r.errorLog.LogError("nextcloud-links: "+label, err.Error())
	}
}
