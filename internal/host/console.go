package host

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
)

// Console is a Host for terminals: popups are printed, errors are logged.
type Console struct {
	out         io.Writer
	logger      *slog.Logger
	projectPath string
	prefsPath   string
}

// NewConsole creates a Console printing popups to out.
func NewConsole(out io.Writer, logger *slog.Logger, projectPath, prefsPath string) *Console {
	return &Console{
		out:         out,
		logger:      logger,
		projectPath: projectPath,
		prefsPath:   prefsPath,
	}
}

func (c *Console) Popup(title, message string, severity Severity) {
	fmt.Fprintf(c.out, "[%s] %s: %s\n", severity, title, message)
}

func (c *Console) LogError(label, message string) {
	c.logger.Error(label, slog.String("message", message))
}

func (c *Console) ProjectPath() string { return c.projectPath }

func (c *Console) PrefsPath() string { return c.prefsPath }

// ClipboardConsole is a Console that also copies to the terminal's
// clipboard with the OSC 52 escape sequence.
type ClipboardConsole struct {
	*Console
	term io.Writer
}

// WithClipboard returns c with clipboard support writing to term.
func (c *Console) WithClipboard(term io.Writer) *ClipboardConsole {
	return &ClipboardConsole{Console: c, term: term}
}

func (c *ClipboardConsole) CopyToClipboard(text string) error {
	seq := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
	if _, err := io.WriteString(c.term, seq); err != nil {
		return fmt.Errorf("writing clipboard sequence: %w", err)
	}

	return nil
}
