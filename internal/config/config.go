package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// appDir is the per-user directory holding the default preferences
// document and state database.
const appDir = ".nextcloud-links"

var validate = validator.New()

// Config holds all environment-based configuration for nextcloud-links.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`

	// Host preferences document holding the stored credentials.
	// Defaults to ~/.nextcloud-links/user.json.
	PrefsFile string `env:"NEXTCLOUD_PREFS_FILE"`

	// Local root of the current project. Defaults to the working directory.
	ProjectRoot string `env:"NEXTCLOUD_PROJECT_ROOT"`

	// Remote directory that mirrors the local projects directory, and the
	// local directory name that marks where project-relative segments start.
	RemoteRoot    string `env:"NEXTCLOUD_REMOTE_ROOT" envDefault:"/PROYECTOS" validate:"required,startswith=/"`
	ProjectAnchor string `env:"NEXTCLOUD_PROJECT_ANCHOR" envDefault:"PROYECTOS" validate:"excludes=/"`

	HTTPTimeout time.Duration `env:"NEXTCLOUD_HTTP_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	// Link history database. Defaults to ~/.nextcloud-links/state.db.
	StateDB string `env:"NEXTCLOUD_STATE_DB"`
	// HistoryLimit caps the number of recorded links. Zero keeps all.
	HistoryLimit int `env:"NEXTCLOUD_HISTORY_LIMIT" envDefault:"500" validate:"gte=0"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	return nil
}

// formatValidationError reports the first failing field by its
// environment variable name.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	e := verrs[0]

	name := e.StructField()
	if f, ok := envNames[name]; ok {
		name = f
	}

	if e.Param() != "" {
		return fmt.Errorf("%s: must satisfy %s=%s (got %v)", name, e.Tag(), e.Param(), e.Value())
	}

	return fmt.Errorf("%s: must satisfy %s (got %v)", name, e.Tag(), e.Value())
}

var envNames = map[string]string{
	"LogLevel":      "LOG_LEVEL",
	"RemoteRoot":    "NEXTCLOUD_REMOTE_ROOT",
	"ProjectAnchor": "NEXTCLOUD_PROJECT_ANCHOR",
	"HTTPTimeout":   "NEXTCLOUD_HTTP_TIMEOUT",
	"HistoryLimit":  "NEXTCLOUD_HISTORY_LIMIT",
}

// resolvePaths fills in default locations and makes every path absolute.
// The path mapper compares string prefixes, which only works reliably
// with absolute paths.
func (c *Config) resolvePaths() error {
	if c.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determining working directory: %w", err)
		}

		c.ProjectRoot = wd
	}

	if c.PrefsFile == "" || c.StateDB == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}

		if c.PrefsFile == "" {
			c.PrefsFile = filepath.Join(dir, "user.json")
		}

		if c.StateDB == "" {
			c.StateDB = filepath.Join(dir, "state.db")
		}
	}

	for _, p := range []*string{&c.ProjectRoot, &c.PrefsFile, &c.StateDB} {
		expanded, err := expandHome(*p)
		if err != nil {
			return err
		}

		abs, err := filepath.Abs(expanded)
		if err != nil {
			return fmt.Errorf("resolving %s to absolute path: %w", *p, err)
		}

		*p = abs
	}

	return nil
}

// DefaultDir returns ~/.nextcloud-links.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, appDir), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
