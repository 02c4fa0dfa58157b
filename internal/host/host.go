// Package host describes the application the plugin runs inside: the
// capabilities it offers, the extension points it emits and the widget
// model used to fill menus, settings panels and tables.
package host

// Severity is the visual weight of a popup.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Host is the set of capabilities every host provides.
type Host interface {
	// Popup shows a notification to the user.
	Popup(title, message string, severity Severity)
	// LogError appends to the host's error log.
	LogError(label, message string)
	// ProjectPath is the local root of the current project.
	ProjectPath() string
	// PrefsPath is the per-user preferences document.
	PrefsPath() string
}

// Clipboard is implemented by hosts that can write the system clipboard.
type Clipboard interface {
	CopyToClipboard(text string) error
}

// IconColorer is implemented by hosts that can tint their built-in icons.
// It returns an icon reference usable in MenuItem.Icon.
type IconColorer interface {
	ColoredIcon(name, color string) string
}
