package page

import (
	"strconv"
	"strings"

	"github.com/wolfman30/barberia-elite/internal/forms"
)

// Element is a plain node that can be shown, hidden and given text.
type Element struct {
	doc     *Document
	id      string
	visible bool
	text    string
}

var _ forms.Element = (*Element)(nil)

func (e *Element) ID() string { return e.id }

func (e *Element) Visible() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.visible
}

func (e *Element) SetVisible(visible bool) {
	e.doc.mu.Lock()
	e.visible = visible
	e.doc.mu.Unlock()
	e.doc.emit(Command{Type: CommandVisibility, Target: e.id, Visible: boolPtr(visible)})
}

func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.text
}

func (e *Element) SetText(text string) {
	e.doc.mu.Lock()
	e.text = text
	e.doc.mu.Unlock()
	e.doc.emit(Command{Type: CommandText, Target: e.id, Text: text})
}

// Form is a form element with its fields and submit button.
type Form struct {
	Element
	fields      []*Field
	buttonLabel string
	submit      []func()
}

var _ forms.FormElement = (*Form)(nil)

func (f *Form) Fields() []forms.FieldElement {
	out := make([]forms.FieldElement, 0, len(f.fields))
	for _, fld := range f.fields {
		out = append(out, fld)
	}
	return out
}

// Field returns the concrete field for inspection.
func (f *Form) Field(name string) (*Field, bool) {
	return f.field(name)
}

func (f *Form) field(name string) (*Field, bool) {
	for _, fld := range f.fields {
		if fld.name == name {
			return fld, true
		}
	}
	return nil, false
}

func (f *Form) Reset() {
	f.doc.mu.Lock()
	for _, fld := range f.fields {
		fld.value = ""
	}
	f.doc.mu.Unlock()
	f.doc.emit(Command{Type: CommandReset, Target: f.id})
}

func (f *Form) SetButtonLabel(label string) {
	f.doc.mu.Lock()
	f.buttonLabel = label
	f.doc.mu.Unlock()
	f.doc.emit(Command{Type: CommandButton, Target: f.id, Text: label})
}

// ButtonLabel returns the overriding label, empty when the original shows.
func (f *Form) ButtonLabel() string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return f.buttonLabel
}

func (f *Form) OnSubmit(fn func()) {
	f.doc.mu.Lock()
	f.submit = append(f.submit, fn)
	f.doc.mu.Unlock()
}

// Values returns a copy of every field value.
func (f *Form) Values() map[string]string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	out := make(map[string]string, len(f.fields))
	for _, fld := range f.fields {
		out[fld.name] = fld.value
	}
	return out
}

// Field is one input of a form.
type Field struct {
	doc      *Document
	form     string
	name     string
	value    string
	state    forms.FieldState
	attrs    map[string]string
	handlers map[forms.Event][]func()
}

var _ forms.FieldElement = (*Field)(nil)

func (f *Field) Name() string { return f.name }

func (f *Field) Value() string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return f.value
}

func (f *Field) State() forms.FieldState {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return f.state
}

func (f *Field) SetState(state forms.FieldState) {
	f.doc.mu.Lock()
	f.state = state
	f.doc.mu.Unlock()
	f.doc.emit(Command{Type: CommandFieldState, Target: f.form, Field: f.name, State: string(state)})
}

func (f *Field) Attribute(name string) string {
	f.doc.mu.Lock()
	defer f.doc.mu.Unlock()
	return f.attrs[name]
}

func (f *Field) SetAttribute(name, value string) {
	f.doc.mu.Lock()
	f.attrs[name] = value
	f.doc.mu.Unlock()
	f.doc.emit(Command{Type: CommandAttribute, Target: f.form, Field: f.name, Name: name, Value: value})
}

func (f *Field) On(event forms.Event, fn func()) {
	f.doc.mu.Lock()
	f.handlers[event] = append(f.handlers[event], fn)
	f.doc.mu.Unlock()
}

// Notification is a transient message.
type Notification struct {
	doc     *Document
	id      string
	message string
}

var _ forms.Notification = (*Notification)(nil)

// Dismiss removes the notification. Repeated calls are no-ops.
func (n *Notification) Dismiss() {
	n.doc.mu.Lock()
	_, ok := n.doc.notifications[n.id]
	delete(n.doc.notifications, n.id)
	n.doc.mu.Unlock()
	if ok {
		n.doc.emit(Command{Type: CommandDismiss, Target: n.id})
	}
}

func (n *Notification) order() int {
	v, _ := strconv.Atoi(strings.TrimPrefix(n.id, "notice-"))
	return v
}
