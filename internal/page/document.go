// Package page is an in-memory model of the site's forms. It implements the
// forms page boundary and reports every mutation as a Command so a remote
// browser can mirror it.
package page

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wolfman30/barberia-elite/internal/forms"
)

var (
	// ErrUnknownForm is returned when an event targets a form not on the page.
	ErrUnknownForm = errors.New("page: unknown form")

	// ErrUnknownField is returned when an event targets a missing field.
	ErrUnknownField = errors.New("page: unknown field")
)

// Command types pushed to observers.
const (
	CommandFieldState = "field_state"
	CommandVisibility = "visibility"
	CommandReset      = "reset"
	CommandAttribute  = "attribute"
	CommandText       = "text"
	CommandButton     = "button"
	CommandNotify     = "notify"
	CommandDismiss    = "dismiss"
)

// Command describes one UI mutation.
type Command struct {
	Type    string `json:"type"`
	Target  string `json:"target,omitempty"`
	Field   string `json:"field,omitempty"`
	State   string `json:"state,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
	Name    string `json:"name,omitempty"`
	Value   string `json:"value,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Observer receives every command the document emits. It is called without
// the document lock held.
type Observer func(Command)

// Document holds the forms and elements of one rendered page.
type Document struct {
	mu            sync.Mutex
	forms         map[string]*Form
	elements      map[string]*Element
	notifications map[string]*Notification
	seq           int
	observer      Observer
}

var _ forms.Page = (*Document)(nil)

// New creates an empty document. observer may be nil.
func New(observer Observer) *Document {
	return &Document{
		forms:         make(map[string]*Form),
		elements:      make(map[string]*Element),
		notifications: make(map[string]*Notification),
		observer:      observer,
	}
}

// Build lays out the forms in defs whose id appears in present, together with
// their success and counter elements. A nil present keeps every form.
func Build(defs forms.Definitions, present []string, observer Observer) *Document {
	keep := make(map[string]bool, len(present))
	for _, id := range present {
		keep[id] = true
	}
	doc := New(observer)
	for _, def := range defs {
		if present != nil && !keep[def.ID] {
			continue
		}
		doc.AddForm(def.ID, def.FieldNames()...)
		if def.SuccessID != "" {
			doc.AddElement(def.SuccessID)
		}
		for _, counterID := range def.Counters {
			doc.AddElement(counterID)
		}
	}
	return doc
}

// AddForm adds a visible form with the named fields.
func (d *Document) AddForm(id string, fields ...string) *Form {
	f := &Form{Element: Element{doc: d, id: id, visible: true}}
	for _, name := range fields {
		f.fields = append(f.fields, &Field{
			doc:      d,
			form:     id,
			name:     name,
			state:    forms.FieldNeutral,
			attrs:    make(map[string]string),
			handlers: make(map[forms.Event][]func()),
		})
	}
	d.mu.Lock()
	d.forms[id] = f
	d.mu.Unlock()
	return f
}

// AddElement adds a visible element.
func (d *Document) AddElement(id string) *Element {
	el := &Element{doc: d, id: id, visible: true}
	d.mu.Lock()
	d.elements[id] = el
	d.mu.Unlock()
	return el
}

// Form implements forms.Page.
func (d *Document) Form(id string) (forms.FormElement, bool) {
	f, ok := d.lookupForm(id)
	if !ok {
		return nil, false
	}
	return f, true
}

// Element implements forms.Page.
func (d *Document) Element(id string) (forms.Element, bool) {
	d.mu.Lock()
	el, ok := d.elements[id]
	d.mu.Unlock()
	if !ok {
		return nil, false
	}
	return el, true
}

// Notify implements forms.Page.
func (d *Document) Notify(message string) forms.Notification {
	d.mu.Lock()
	d.seq++
	n := &Notification{doc: d, id: fmt.Sprintf("notice-%d", d.seq), message: message}
	d.notifications[n.id] = n
	d.mu.Unlock()
	d.emit(Command{Type: CommandNotify, Target: n.id, Text: message})
	return n
}

// Notifications returns the messages currently shown, oldest first.
func (d *Document) Notifications() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.notifications))
	for id := range d.notifications {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return d.notifications[ids[i]].order() < d.notifications[ids[j]].order()
	})
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.notifications[id].message)
	}
	return out
}

// Dispatch sets the value of a field and fires its listeners for ev.
func (d *Document) Dispatch(formID, field string, ev forms.Event, value string) error {
	f, ok := d.lookupForm(formID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownForm, formID)
	}
	fld, ok := f.field(field)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, formID, field)
	}
	d.mu.Lock()
	fld.value = value
	handlers := append([]func(){}, fld.handlers[ev]...)
	d.mu.Unlock()

	for _, h := range handlers {
		h()
	}
	return nil
}

// SetValue changes a field value without firing listeners.
func (d *Document) SetValue(formID, field, value string) error {
	f, ok := d.lookupForm(formID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownForm, formID)
	}
	fld, ok := f.field(field)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, formID, field)
	}
	d.mu.Lock()
	fld.value = value
	d.mu.Unlock()
	return nil
}

// Submit fires the submit listeners of a form.
func (d *Document) Submit(formID string) error {
	f, ok := d.lookupForm(formID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownForm, formID)
	}
	d.mu.Lock()
	handlers := append([]func(){}, f.submit...)
	d.mu.Unlock()

	for _, h := range handlers {
		h()
	}
	return nil
}

// Lookup returns the concrete form for inspection.
func (d *Document) Lookup(formID string) (*Form, bool) {
	return d.lookupForm(formID)
}

// LookupElement returns the concrete element for inspection.
func (d *Document) LookupElement(id string) (*Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	return el, ok
}

func (d *Document) lookupForm(id string) (*Form, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.forms[id]
	return f, ok
}

func (d *Document) emit(cmd Command) {
	if d.observer != nil {
		d.observer(cmd)
	}
}

func boolPtr(v bool) *bool { return &v }
