package page

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/barberia-elite/internal/forms"
)

type commandLog struct {
	mu   sync.Mutex
	cmds []Command
}

func (l *commandLog) observe(c Command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cmds = append(l.cmds, c)
}

func (l *commandLog) all() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Command(nil), l.cmds...)
}

func TestBuild_OnlyPresentForms(t *testing.T) {
	doc := Build(forms.DefaultDefinitions(), []string{"contactForm"}, nil)

	_, ok := doc.Form("contactForm")
	assert.True(t, ok)
	_, ok = doc.Form("reservationForm")
	assert.False(t, ok)
	_, ok = doc.Element("contactFormSuccess")
	assert.True(t, ok)
	_, ok = doc.Element("contactCharCount")
	assert.True(t, ok)
	_, ok = doc.Element("formSuccess")
	assert.False(t, ok)
}

func TestBuild_NilPresentKeepsAll(t *testing.T) {
	doc := Build(forms.DefaultDefinitions(), nil, nil)
	for _, id := range []string{"reservationForm", "contactForm", "newsletterForm"} {
		_, ok := doc.Form(id)
		assert.True(t, ok, id)
	}
}

func TestDispatch_UpdatesValueAndFiresListeners(t *testing.T) {
	doc := New(nil)
	f := doc.AddForm("f", "email", "nombre")
	fld, ok := f.Field("email")
	require.True(t, ok)

	var seen []string
	fld.On(forms.EventBlur, func() { seen = append(seen, fld.Value()) })

	require.NoError(t, doc.Dispatch("f", "email", forms.EventBlur, "a@b.co"))
	require.NoError(t, doc.Dispatch("f", "email", forms.EventChange, "x@y.co"))

	assert.Equal(t, []string{"a@b.co"}, seen)
	assert.Equal(t, "x@y.co", fld.Value())
	assert.ErrorIs(t, doc.Dispatch("nope", "email", forms.EventBlur, ""), ErrUnknownForm)
	assert.ErrorIs(t, doc.Dispatch("f", "nope", forms.EventBlur, ""), ErrUnknownField)
}

func TestListenerMayMutateDocument(t *testing.T) {
	doc := New(nil)
	f := doc.AddForm("f", "email")
	fld, _ := f.Field("email")
	fld.On(forms.EventChange, func() { fld.SetState(forms.FieldInvalid) })
	f.OnSubmit(func() { f.SetVisible(false) })

	require.NoError(t, doc.Dispatch("f", "email", forms.EventChange, "x"))
	require.NoError(t, doc.Submit("f"))

	assert.Equal(t, forms.FieldInvalid, fld.State())
	assert.False(t, f.Visible())
}

func TestCommandsEmitted(t *testing.T) {
	log := &commandLog{}
	doc := New(log.observe)
	f := doc.AddForm("reservationForm", "fecha")
	success := doc.AddElement("formSuccess")
	fld, _ := f.Field("fecha")

	fld.SetAttribute("min", "2024-06-15")
	fld.SetState(forms.FieldInvalid)
	f.SetVisible(false)
	success.SetVisible(true)
	success.SetText("ok")
	f.SetButtonLabel("¡Suscrito!")
	f.Reset()

	want := []Command{
		{Type: CommandAttribute, Target: "reservationForm", Field: "fecha", Name: "min", Value: "2024-06-15"},
		{Type: CommandFieldState, Target: "reservationForm", Field: "fecha", State: "invalid"},
		{Type: CommandVisibility, Target: "reservationForm", Visible: boolPtr(false)},
		{Type: CommandVisibility, Target: "formSuccess", Visible: boolPtr(true)},
		{Type: CommandText, Target: "formSuccess", Text: "ok"},
		{Type: CommandButton, Target: "reservationForm", Text: "¡Suscrito!"},
		{Type: CommandReset, Target: "reservationForm"},
	}
	if diff := cmp.Diff(want, log.all()); diff != "" {
		t.Fatalf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestResetClearsValues(t *testing.T) {
	doc := New(nil)
	f := doc.AddForm("f", "a", "b")
	require.NoError(t, doc.SetValue("f", "a", "1"))
	require.NoError(t, doc.SetValue("f", "b", "2"))

	f.Reset()

	assert.Equal(t, map[string]string{"a": "", "b": ""}, f.Values())
}

func TestNotifications(t *testing.T) {
	log := &commandLog{}
	doc := New(log.observe)

	first := doc.Notify("uno")
	doc.Notify("dos")
	assert.Equal(t, []string{"uno", "dos"}, doc.Notifications())

	first.Dismiss()
	first.Dismiss()
	assert.Equal(t, []string{"dos"}, doc.Notifications())

	dismissals := 0
	for _, c := range log.all() {
		if c.Type == CommandDismiss {
			dismissals++
			assert.Equal(t, "notice-1", c.Target)
		}
	}
	assert.Equal(t, 1, dismissals)
}
