package forms

// Event is a UI event a field listener can subscribe to.
type Event string

const (
	EventChange Event = "change"
	EventBlur   Event = "blur"
	EventInput  Event = "input"
	EventSubmit Event = "submit"
)

// FieldState is the visual marker shown on an input.
type FieldState string

const (
	FieldNeutral FieldState = "neutral"
	FieldInvalid FieldState = "invalid"
)

// Page is the UI boundary the workflow attaches to. Lookups by id are the
// only discovery it performs.
type Page interface {
	Form(id string) (FormElement, bool)
	Element(id string) (Element, bool)
	// Notify shows a transient on-screen message.
	Notify(message string) Notification
}

// Element is any addressable node of the page.
type Element interface {
	ID() string
	Visible() bool
	SetVisible(visible bool)
	SetText(text string)
}

// FormElement is a form and its inputs.
type FormElement interface {
	Element
	Fields() []FieldElement
	// Reset clears every input value.
	Reset()
	// SetButtonLabel swaps the submit button label. An empty label restores
	// the original one.
	SetButtonLabel(label string)
	OnSubmit(fn func())
}

// FieldElement is one input, select or textarea of a form.
type FieldElement interface {
	Name() string
	Value() string
	SetState(state FieldState)
	SetAttribute(name, value string)
	On(event Event, fn func())
}

// Notification is a message shown by Page.Notify.
type Notification interface {
	Dismiss()
}
