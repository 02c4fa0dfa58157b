// Package pathmap converts local project paths into the paths under
// which the same files live on the share server.
package pathmap

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/alexjbarnes/nextcloud-links/internal/errors"
	"golang.org/x/text/unicode/norm"
)

// Mapper maps local paths under ProjectRoot onto RemotePrefix.
type Mapper struct {
	ProjectRoot  string
	RemotePrefix string
}

// New builds a Mapper for a project, deriving the remote prefix with
// RemoteProjectRoot.
func New(projectRoot, anchor, remoteRoot string) Mapper {
	return Mapper{
		ProjectRoot:  projectRoot,
		RemotePrefix: RemoteProjectRoot(projectRoot, anchor, remoteRoot),
	}
}

// Remote returns the remote path for localPath.
func (m Mapper) Remote(localPath string) (string, error) {
	return ToRemotePath(localPath, m.ProjectRoot, m.RemotePrefix)
}

// ToRemotePath maps an absolute local path to its remote resource path.
// Both paths are made absolute, slash separated and NFC normalized
// before the containment check, which is a plain prefix comparison: it is
// case-sensitive and does not resolve symlinks. No filesystem access.
func ToRemotePath(localPath, projectRoot, remotePrefix string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("%w: empty path", apperrors.ErrInvalidPath)
	}

	root, err := normalize(projectRoot)
	if err != nil {
		return "", fmt.Errorf("normalizing project root: %w", err)
	}

	candidate, err := normalize(localPath)
	if err != nil {
		return "", fmt.Errorf("normalizing path: %w", err)
	}

	if !within(candidate, root) {
		return "", fmt.Errorf("%w: %s is not under %s", apperrors.ErrOutsideProject, localPath, projectRoot)
	}

	rel := strings.TrimLeft(strings.TrimPrefix(candidate, root), "/")
	if rel == "" {
		return cleanRemote(remotePrefix), nil
	}

	return cleanRemote(remotePrefix + "/" + rel), nil
}

// RemoteProjectRoot derives the remote prefix of a project. The first
// path segment named anchor is located and every segment after it is
// joined onto remoteRoot. Without the anchor (or with nothing after it)
// only the project's base directory name is used.
func RemoteProjectRoot(projectRoot, anchor, remoteRoot string) string {
	root := norm.NFC.String(filepath.ToSlash(filepath.Clean(projectRoot)))
	segments := strings.FieldsFunc(root, func(r rune) bool { return r == '/' })

	var tail []string

	idx := slices.Index(segments, anchor)
	if anchor != "" && idx >= 0 && idx < len(segments)-1 {
		tail = segments[idx+1:]
	} else if len(segments) > 0 {
		tail = segments[len(segments)-1:]
	}

	return cleanRemote(remoteRoot + "/" + strings.Join(tail, "/"))
}

func normalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	return norm.NFC.String(filepath.ToSlash(abs)), nil
}

// within reports whether candidate is root or a descendant of it.
func within(candidate, root string) bool {
	if candidate == root {
		return true
	}

	return strings.HasPrefix(candidate, strings.TrimSuffix(root, "/")+"/")
}

// cleanRemote collapses slash runs, forces a single leading slash and
// drops a trailing one.
func cleanRemote(p string) string {
	var b strings.Builder

	b.Grow(len(p) + 1)
	b.WriteByte('/')

	prevSlash := true
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}

			prevSlash = true
		} else {
			prevSlash = false
		}

		b.WriteByte(c)
	}

	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}

	return out
}
