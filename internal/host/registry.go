package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Event names a host extension point.
type Event string

const (
	EventListContextMenu    Event = "list_context_menu"
	EventPreviewContextMenu Event = "preview_context_menu"
	EventSettingsLoad       Event = "settings_panel_load"
	EventProjectTabLoad     Event = "project_tab_load"
	EventMediaBrowserOpen   Event = "media_browser_open"
)

// Events lists every extension point in the order hosts initialise them.
var Events = []Event{
	EventSettingsLoad,
	EventMediaBrowserOpen,
	EventListContextMenu,
	EventPreviewContextMenu,
	EventProjectTabLoad,
}

// Payload carries what the host hands to handlers. Only the fields
// relevant to the event are set.
type Payload struct {
	// Paths are the selected local files of a context menu.
	Paths []string
	Menu  *Menu
	Panel *Panel
	Table *Table
}

// Handler reacts to an event, typically by filling the payload's widget.
type Handler func(ctx context.Context, p *Payload) error

// Registry maps events to their handlers, kept in registration order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Event][]Handler)}
}

// Register appends h to the handlers of event.
func (r *Registry) Register(event Event, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = append(r.handlers[event], h)
}

// Handlers returns how many handlers are registered for event.
func (r *Registry) Handlers(event Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.handlers[event])
}

// Emit runs every handler of event in registration order. A failing
// handler does not stop the others; their errors are joined.
func (r *Registry) Emit(ctx context.Context, event Event, p *Payload) error {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[event]...)
	r.mu.RUnlock()

	var errs []error

	for i, h := range handlers {
		if err := h(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event, i, err))
		}
	}

	return errors.Join(errs...)
}
