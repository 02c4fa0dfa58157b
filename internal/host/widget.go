package host

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Action runs when a menu item or panel button is triggered.
type Action func(ctx context.Context) error

// MenuItem is either a leaf with an Action or a Submenu.
type MenuItem struct {
	Label   string
	Icon    string
	Action  Action
	Submenu *Menu
}

// Menu is an ordered list of items.
type Menu struct {
	Title string
	Items []*MenuItem
}

// AddAction appends a leaf item.
func (m *Menu) AddAction(label, icon string, action Action) *MenuItem {
	item := &MenuItem{Label: label, Icon: icon, Action: action}
	m.Items = append(m.Items, item)

	return item
}

// AddSubmenu appends a nested menu and returns it.
func (m *Menu) AddSubmenu(label, icon string) *Menu {
	sub := &Menu{Title: label}
	m.Items = append(m.Items, &MenuItem{Label: label, Icon: icon, Submenu: sub})

	return sub
}

// Find walks the menu by item labels and returns the final item, or nil.
func (m *Menu) Find(labels ...string) *MenuItem {
	cur := m

	var found *MenuItem

	for _, label := range labels {
		if cur == nil {
			return nil
		}

		found = nil

		for _, item := range cur.Items {
			if item.Label == label {
				found = item
				break
			}
		}

		if found == nil {
			return nil
		}

		cur = found.Submenu
	}

	return found
}

// Trigger runs the action found at labels.
func (m *Menu) Trigger(ctx context.Context, labels ...string) error {
	item := m.Find(labels...)
	if item == nil || item.Action == nil {
		return fmt.Errorf("no menu action %q", strings.Join(labels, " > "))
	}

	return item.Action(ctx)
}

// Render writes the menu as an indented tree.
func (m *Menu) Render(w io.Writer) {
	m.render(w, 0)
}

func (m *Menu) render(w io.Writer, depth int) {
	indent := strings.Repeat("  ", depth)

	for _, item := range m.Items {
		if item.Submenu != nil {
			fmt.Fprintf(w, "%s%s >\n", indent, item.Label)
			item.Submenu.render(w, depth+1)

			continue
		}

		fmt.Fprintf(w, "%s%s\n", indent, item.Label)
	}
}

// Field is an editable value of a settings panel.
type Field struct {
	Name   string
	Label  string
	Value  string
	Secret bool
}

// Panel is a settings form: a list of fields and buttons.
type Panel struct {
	Title   string
	Fields  []*Field
	Buttons []*MenuItem
}

// AddField appends a field and returns it.
func (p *Panel) AddField(name, label, value string, secret bool) *Field {
	f := &Field{Name: name, Label: label, Value: value, Secret: secret}
	p.Fields = append(p.Fields, f)

	return f
}

// Field returns the field called name, or nil.
func (p *Panel) Field(name string) *Field {
	for _, f := range p.Fields {
		if f.Name == name {
			return f
		}
	}

	return nil
}

// Value returns the value of the field called name.
func (p *Panel) Value(name string) string {
	if f := p.Field(name); f != nil {
		return f.Value
	}

	return ""
}

// AddButton appends a button.
func (p *Panel) AddButton(label string, action Action) {
	p.Buttons = append(p.Buttons, &MenuItem{Label: label, Action: action})
}

// Press runs the button labelled label.
func (p *Panel) Press(ctx context.Context, label string) error {
	for _, b := range p.Buttons {
		if b.Label == label {
			return b.Action(ctx)
		}
	}

	return fmt.Errorf("no button %q", label)
}

// Table is a grid of text cells under named columns.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// AddRow appends a row. Missing cells are left empty.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}
