package forms

import (
	"context"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/wolfman30/barberia-elite/internal/storage"
	"github.com/wolfman30/barberia-elite/internal/validation"
)

const (
	// DefaultNotificationDelay is how long the invalid-form notice stays up.
	DefaultNotificationDelay = 4 * time.Second

	invalidNotice = "Por favor completa todos los campos correctamente"
)

// State is the lifecycle position of one attached form.
type State string

const (
	StateIdle         State = "idle"
	StateValidating   State = "validating"
	StateRejected     State = "rejected"
	StateAccepted     State = "accepted"
	StateSuccessShown State = "success_shown"
)

// Diagnostics receives the workflow's log output at four severities.
type Diagnostics interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Success(msg string, args ...any)
}

// Metrics records submission and field validation outcomes.
type Metrics interface {
	ObserveSubmission(form, outcome string)
	ObserveFieldValidation(form, field string, valid bool)
}

// Forwarder sends an accepted record to a remote endpoint. Implementations
// log and record their own failures; the workflow does not report them again.
type Forwarder interface {
	Forward(ctx context.Context, rec SubmissionRecord) error
}

// Outcome reports what HandleSubmit decided.
type Outcome struct {
	Accepted bool
	Invalid  []string
	Record   *SubmissionRecord
	Err      error
}

// Descriptor is the handle of one attached form: its definition and the page
// elements it binds to.
type Descriptor struct {
	Definition Definition

	page    Page
	form    FormElement
	success Element
	fields  []boundField
}

type boundField struct {
	element     FieldElement
	constraints validation.Constraints
}

// ID returns the form id.
func (d *Descriptor) ID() string { return d.Definition.ID }

type formState struct {
	state      State
	revert     *clock.Timer
	generation uint64
}

// Workflow owns the validation and submission lifecycle of the forms
// attached to it.
type Workflow struct {
	store             storage.Store
	diag              Diagnostics
	clock             clock.Clock
	loc               *time.Location
	notificationDelay time.Duration
	metrics           Metrics
	forwarder         Forwarder

	mu    sync.Mutex
	forms map[string]*formState
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock replaces the wall clock used for timers and "today".
func WithClock(c clock.Clock) Option {
	return func(w *Workflow) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithLocation sets the time zone calendar days are compared in.
func WithLocation(loc *time.Location) Option {
	return func(w *Workflow) {
		if loc != nil {
			w.loc = loc
		}
	}
}

// WithNotificationDelay sets how long invalid-form notices stay visible.
func WithNotificationDelay(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.notificationDelay = d
		}
	}
}

// WithMetrics records outcomes into m.
func WithMetrics(m Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithForwarder posts every accepted record through f in the background.
func WithForwarder(f Forwarder) Option {
	return func(w *Workflow) { w.forwarder = f }
}

// New creates a workflow persisting into store and logging into diag.
func New(store storage.Store, diag Diagnostics, opts ...Option) *Workflow {
	w := &Workflow{
		store:             store,
		diag:              diag,
		clock:             clock.New(),
		loc:               time.UTC,
		notificationDelay: DefaultNotificationDelay,
		forms:             make(map[string]*formState),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Attach binds the workflow to the form def describes. A form missing from
// the page is skipped and reported with ok == false.
func (w *Workflow) Attach(page Page, def Definition) (*Descriptor, bool) {
	form, ok := page.Form(def.ID)
	if !ok {
		w.diag.Info("form not present, skipping", "form", def.ID)
		return nil, false
	}

	d := &Descriptor{Definition: def, page: page, form: form}
	if def.SuccessID != "" {
		if el, ok := page.Element(def.SuccessID); ok {
			d.success = el
		} else {
			w.diag.Warn("success element not present", "form", def.ID, "element", def.SuccessID)
		}
	}

	minDate := validation.MinDate(w.clock.Now(), w.loc)
	for _, el := range form.Fields() {
		var c validation.Constraints
		if fd, ok := def.Field(el.Name()); ok {
			c = fd.Constraints
		}
		bf := boundField{element: el, constraints: c}
		d.fields = append(d.fields, bf)

		el.On(EventChange, func() { w.checkField(d, bf, false) })
		el.On(EventBlur, func() { w.checkField(d, bf, false) })

		if c.Role == validation.RoleDate {
			el.SetAttribute("min", minDate)
		}
		if counterID, ok := def.Counters[el.Name()]; ok {
			if counter, ok := page.Element(counterID); ok {
				field := el
				field.On(EventInput, func() {
					counter.SetText(strconv.Itoa(utf8.RuneCountInString(field.Value())))
				})
			}
		}
	}
	form.OnSubmit(func() { w.HandleSubmit(context.Background(), d) })

	w.mu.Lock()
	w.forms[def.ID] = &formState{state: StateIdle}
	w.mu.Unlock()

	form.SetVisible(true)
	if d.success != nil {
		d.success.SetVisible(false)
	}
	return d, true
}

// AttachAll attaches every definition whose form is present on page.
func (w *Workflow) AttachAll(page Page, defs Definitions) []*Descriptor {
	var out []*Descriptor
	for _, def := range defs {
		if d, ok := w.Attach(page, def); ok {
			out = append(out, d)
		}
	}
	return out
}

// ValidateField checks a raw value against constraints using the workflow's
// notion of today.
func (w *Workflow) ValidateField(name, raw string, c validation.Constraints) bool {
	return validation.ValidateField(name, raw, c, w.clock.Now(), w.loc)
}

// CheckField validates the named field of d and updates its marker.
func (w *Workflow) CheckField(d *Descriptor, name string) bool {
	for _, bf := range d.fields {
		if bf.element.Name() == name {
			return w.checkField(d, bf, false)
		}
	}
	return true
}

// checkField validates bf and updates its marker. An empty field stays
// neutral unless strict is set, which submission does.
func (w *Workflow) checkField(d *Descriptor, bf boundField, strict bool) bool {
	value := bf.element.Value()
	valid := w.ValidateField(bf.element.Name(), value, bf.constraints)
	if valid || (!strict && value == "") {
		bf.element.SetState(FieldNeutral)
	} else {
		bf.element.SetState(FieldInvalid)
	}
	if w.metrics != nil {
		w.metrics.ObserveFieldValidation(d.ID(), bf.element.Name(), valid)
	}
	return valid
}

// HandleSubmit validates every field of d. When all pass the record is
// stored, the success view is shown and a revert is scheduled.
func (w *Workflow) HandleSubmit(ctx context.Context, d *Descriptor) Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.stateFor(d)
	st.state = StateValidating

	def := d.Definition
	var invalid []string
	values := make(map[string]string, len(d.fields))
	for _, bf := range d.fields {
		if !w.checkField(d, bf, true) {
			invalid = append(invalid, bf.element.Name())
		}
		values[bf.element.Name()] = bf.element.Value()
	}

	if len(invalid) > 0 {
		st.state = StateRejected
		w.diag.Warn(def.Messages.Invalid, "form", def.ID, "invalid_fields", invalid)
		w.observeSubmission(def.ID, "rejected")
		if def.Kind != KindNewsletter {
			w.showNotice(d)
		}
		st.state = StateIdle
		return Outcome{Invalid: invalid}
	}

	st.state = StateAccepted
	rec := SubmissionRecord{Form: def.ID, Kind: def.Kind, Fields: values, Timestamp: w.clock.Now().UTC()}
	if err := w.store.Set(ctx, def.RecordKey, rec); err != nil {
		w.diag.Error("failed to store submission", "form", def.ID, "key", def.RecordKey, "error", err)
		w.observeSubmission(def.ID, "error")
		st.state = StateIdle
		return Outcome{Err: err}
	}
	w.diag.Success(def.Messages.Success, "form", def.ID, "fields", values)
	w.observeSubmission(def.ID, "accepted")

	if d.success != nil {
		d.form.SetVisible(false)
		d.success.SetVisible(true)
	}
	if def.SuccessLabel != "" {
		d.form.SetButtonLabel(def.SuccessLabel)
	}

	w.cancelRevert(st)
	gen := st.generation
	st.revert = w.clock.AfterFunc(def.RevertDelay, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if st.generation != gen {
			return
		}
		st.revert = nil
		w.revert(d, st)
	})
	st.state = StateSuccessShown

	if w.forwarder != nil {
		fwd := w.forwarder
		fctx := context.WithoutCancel(ctx)
		go func() { _ = fwd.Forward(fctx, rec) }()
	}
	return Outcome{Accepted: true, Record: &rec}
}

// Reset returns d to its form view immediately, cancelling a pending revert.
func (w *Workflow) Reset(d *Descriptor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.stateFor(d)
	w.cancelRevert(st)
	w.revert(d, st)
}

// State reports where d is in its lifecycle.
func (w *Workflow) State(d *Descriptor) State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateFor(d).state
}

// LastRecord reads the most recent accepted submission of def.
func (w *Workflow) LastRecord(ctx context.Context, def Definition) (SubmissionRecord, bool, error) {
	var rec SubmissionRecord
	found, err := w.store.Get(ctx, def.RecordKey, &rec)
	if err != nil || !found {
		return SubmissionRecord{}, false, err
	}
	return rec, true, nil
}

// Close stops every pending revert timer.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, st := range w.forms {
		w.cancelRevert(st)
	}
}

func (w *Workflow) revert(d *Descriptor, st *formState) {
	d.form.Reset()
	for _, bf := range d.fields {
		bf.element.SetState(FieldNeutral)
	}
	if d.Definition.SuccessLabel != "" {
		d.form.SetButtonLabel("")
	}
	if d.success != nil {
		d.success.SetVisible(false)
	}
	d.form.SetVisible(true)
	st.state = StateIdle
}

func (w *Workflow) cancelRevert(st *formState) {
	st.generation++
	if st.revert != nil {
		st.revert.Stop()
		st.revert = nil
	}
}

func (w *Workflow) showNotice(d *Descriptor) {
	n := d.page.Notify(invalidNotice)
	if n == nil {
		return
	}
	w.clock.AfterFunc(w.notificationDelay, n.Dismiss)
}

func (w *Workflow) stateFor(d *Descriptor) *formState {
	st, ok := w.forms[d.ID()]
	if !ok {
		st = &formState{state: StateIdle}
		w.forms[d.ID()] = st
	}
	return st
}

func (w *Workflow) observeSubmission(form, outcome string) {
	if w.metrics != nil {
		w.metrics.ObserveSubmission(form, outcome)
	}
}
