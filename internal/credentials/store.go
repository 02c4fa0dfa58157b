// Package credentials persists the share server account inside the host
// application's per-user preferences document.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Namespace is the key of the preferences document object holding the
// credential fields. Other keys of the document belong to the host and
// are preserved on save.
const Namespace = "nextcloud_links"

const (
	prefsDirPerm  = fs.FileMode(0o700)
	prefsFilePerm = fs.FileMode(0o600)
)

// storedCredentials is the on-disk shape. Password holds the obfuscated
// value.
type storedCredentials struct {
	Username string `json:"nextcloud_username"`
	Password string `json:"nextcloud_password"`
	URL      string `json:"nextcloud_url"`
}

// Store holds the credential triple in memory and reads/writes it from
// the preferences document. Safe for concurrent use.
type Store struct {
	path   string
	key    string
	logger *slog.Logger

	mu    sync.RWMutex
	creds Credentials
}

// NewStore creates a Store backed by the preferences document at path,
// obfuscating the password with key. Call Load to read the current values.
func NewStore(path, key string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		key:    key,
		logger: logger,
	}
}

// Path returns the preferences document path.
func (s *Store) Path() string {
	return s.path
}

// Credentials returns the in-memory credentials.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.creds
}

// Load reads the credentials from the preferences document. A missing
// document or namespace yields empty credentials.
func (s *Store) Load() error {
	doc, err := s.readDocument()
	if err != nil {
		return err
	}

	var creds Credentials

	if raw, ok := doc[Namespace]; ok {
		var stored storedCredentials
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("decoding %s in %s: %w", Namespace, s.path, err)
		}

		creds = Credentials{
			BaseURL:  stored.URL,
			Username: stored.Username,
			Password: Deobfuscate(stored.Password, s.key),
		}
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	return nil
}

// Save normalizes and writes the credentials, then replaces the
// in-memory copy. Incomplete credentials are allowed so a settings form
// can be saved field by field.
func (s *Store) Save(c Credentials) error {
	c = c.Normalized()

	doc, err := s.readDocument()
	if err != nil {
		return err
	}

	ns, err := json.Marshal(storedCredentials{
		Username: c.Username,
		Password: Obfuscate(c.Password, s.key),
		URL:      c.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	doc[Namespace] = ns

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}

	s.mu.Lock()
	s.creds = c
	s.mu.Unlock()

	s.logger.Info("credentials saved",
		slog.String("path", s.path),
		slog.String("url", c.BaseURL),
		slog.String("username", c.Username),
	)

	return nil
}

// readDocument returns the preferences document as raw top-level keys.
// A missing or empty file is an empty document. A malformed file is an
// error so Save never overwrites host preferences it could not parse.
func (s *Store) readDocument() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading preferences %s: %w", s.path, err)
	}

	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing preferences %s: %w", s.path, err)
	}

	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}

	return doc, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, prefsDirPerm); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-write-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Chmod(prefsFilePerm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}
