package webui

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/internal/page"
	"github.com/wolfman30/barberia-elite/internal/storage"
	"github.com/wolfman30/barberia-elite/pkg/logging"
	"golang.org/x/net/websocket"
)

var lima = time.FixedZone("PET", -5*60*60)

type recordingFactory struct {
	mu     sync.Mutex
	stores map[string]*storage.MemoryStore
}

func (f *recordingFactory) factory() storage.Factory {
	return func(sessionID string) storage.Store {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.stores == nil {
			f.stores = make(map[string]*storage.MemoryStore)
		}
		st, ok := f.stores[sessionID]
		if !ok {
			st = storage.NewMemoryStore()
			f.stores[sessionID] = st
		}
		return st
	}
}

func (f *recordingFactory) store(id string) *storage.MemoryStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores[id]
}

type harness struct {
	handler *Handler
	tokens  *SessionTokens
	clock   *clock.Mock
	stores  *recordingFactory
	url     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, time.June, 15, 10, 0, 0, 0, lima))
	stores := &recordingFactory{}
	tokens := NewSessionTokens([]byte("0123456789abcdef0123456789abcdef"))
	h := NewHandler(forms.DefaultDefinitions(), stores.factory(), tokens, logging.New("error"),
		forms.WithClock(clk), forms.WithLocation(lima))

	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	return &harness{
		handler: h,
		tokens:  tokens,
		clock:   clk,
		stores:  stores,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, err := websocket.Dial(h.url, "", "http://localhost/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg InboundMessage) {
	t.Helper()
	require.NoError(t, websocket.JSON.Send(conn, msg))
}

// readUntil reads messages until match returns true and returns that message.
func readUntil(t *testing.T, conn *websocket.Conn, match func(OutboundMessage) bool) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg OutboundMessage
		require.NoError(t, websocket.JSON.Receive(conn, &msg))
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ string) func(OutboundMessage) bool {
	return func(m OutboundMessage) bool { return m.Type == typ }
}

func visibility(target string, visible bool) func(OutboundMessage) bool {
	return func(m OutboundMessage) bool {
		return m.Type == TypeCommand && m.Command.Type == page.CommandVisibility &&
			m.Command.Target == target && *m.Command.Visible == visible
	}
}

func hello(t *testing.T, conn *websocket.Conn, token string, formIDs ...string) OutboundMessage {
	t.Helper()
	send(t, conn, InboundMessage{Type: TypeHello, Token: token, Forms: formIDs})
	return readUntil(t, conn, ofType(TypeSession))
}

func TestPingPong(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, InboundMessage{Type: TypePing})
	msg := readUntil(t, conn, func(OutboundMessage) bool { return true })
	assert.Equal(t, TypePong, msg.Type)
}

func TestEventsRequireHello(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, InboundMessage{Type: TypeBlur, Form: "contactForm", Field: "email", Value: "x"})
	msg := readUntil(t, conn, func(OutboundMessage) bool { return true })
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "hello required", msg.Text)
}

func TestHello_AttachesPresentForms(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	session := hello(t, conn, "", "reservationForm")
	assert.True(t, ValidSessionID(session.SessionID))
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, []string{"reservationForm"}, session.Forms)

	attr := readUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == TypeCommand && m.Command.Type == page.CommandAttribute
	})
	assert.Equal(t, "fecha", attr.Command.Field)
	assert.Equal(t, "min", attr.Command.Name)
	assert.Equal(t, "2024-06-15", attr.Command.Value)

	require.Eventually(t, func() bool {
		return len(h.handler.Sessions()) == 1
	}, time.Second, 10*time.Millisecond)

	send(t, conn, InboundMessage{Type: TypeHello})
	msg := readUntil(t, conn, ofType(TypeError))
	assert.Equal(t, "session already started", msg.Text)
}

func TestBlurMarksInvalidField(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	hello(t, conn, "", "contactForm")

	send(t, conn, InboundMessage{Type: TypeBlur, Form: "contactForm", Field: "email", Value: "juan@"})
	msg := readUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == TypeCommand && m.Command.Type == page.CommandFieldState
	})
	assert.Equal(t, "email", msg.Command.Field)
	assert.Equal(t, string(forms.FieldInvalid), msg.Command.State)
}

func TestSubmitAcceptedThenReverts(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	session := hello(t, conn, "", "contactForm")

	send(t, conn, InboundMessage{Type: TypeSubmit, Form: "contactForm", Values: map[string]string{
		"nombre":  "Lucía",
		"email":   "lucia@example.pe",
		"asunto":  "consulta",
		"mensaje": "¿Atienden los domingos?",
	}})

	result := readUntil(t, conn, ofType(TypeResult))
	require.NotNil(t, result.Accepted)
	assert.True(t, *result.Accepted)
	assert.Equal(t, "contactForm", result.Form)

	stored := h.stores.store(session.SessionID)
	require.NotNil(t, stored)
	var rec forms.SubmissionRecord
	found, err := stored.Get(context.Background(), "lastMessage", &rec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Lucía", rec.Value("nombre"))

	h.clock.Add(5 * time.Second)
	readUntil(t, conn, visibility("contactForm", true))
}

func TestSubmitRejected(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	hello(t, conn, "", "newsletterForm")

	send(t, conn, InboundMessage{Type: TypeSubmit, Form: "newsletterForm", Values: map[string]string{"email": "nope"}})

	result := readUntil(t, conn, ofType(TypeResult))
	require.NotNil(t, result.Accepted)
	assert.False(t, *result.Accepted)
	assert.Equal(t, []string{"email"}, result.Invalid)
}

func TestUnknownFormAndType(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	hello(t, conn, "", "contactForm")

	send(t, conn, InboundMessage{Type: TypeSubmit, Form: "reservationForm"})
	msg := readUntil(t, conn, ofType(TypeError))
	assert.Equal(t, "reservationForm", msg.Form)

	send(t, conn, InboundMessage{Type: "shout"})
	msg = readUntil(t, conn, ofType(TypeError))
	assert.Equal(t, errUnknownType.Error(), msg.Text)
}

func TestResetRestoresForm(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	hello(t, conn, "", "contactForm")

	send(t, conn, InboundMessage{Type: TypeReset, Form: "contactForm"})
	msg := readUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == TypeCommand && m.Command.Type == page.CommandReset
	})
	assert.Equal(t, "contactForm", msg.Command.Target)
}

func TestDisconnectRemovesSession(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	session := hello(t, conn, "", "contactForm")

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{session.SessionID}, h.handler.Sessions())
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return len(h.handler.Sessions()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAttachedIDs(t *testing.T) {
	defs := forms.DefaultDefinitions()
	assert.Equal(t, []string{"reservationForm", "contactForm", "newsletterForm"}, attachedIDs(defs, nil))
	assert.Equal(t, []string{"contactForm"}, attachedIDs(defs, []string{"ghost", "contactForm"}))
	assert.Empty(t, attachedIDs(defs, []string{}))
}

func TestHello_ResumesSignedSession(t *testing.T) {
	h := newHarness(t)
	first := hello(t, h.dial(t), "", "newsletterForm")

	resumed := hello(t, h.dial(t), first.Token, "newsletterForm")
	assert.Equal(t, first.SessionID, resumed.SessionID)
}

func TestHello_IgnoresUnsignedSession(t *testing.T) {
	h := newHarness(t)
	victim := hello(t, h.dial(t), "", "newsletterForm")

	forged, err := NewSessionTokens([]byte("another-secret-another-secret-00")).Issue(victim.SessionID)
	require.NoError(t, err)

	for _, token := range []string{victim.SessionID, forged, "*"} {
		got := hello(t, h.dial(t), token, "newsletterForm")
		assert.NotEqual(t, victim.SessionID, got.SessionID)
		assert.True(t, ValidSessionID(got.SessionID))
	}
}

type blockingWriter struct {
	release chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func (b *blockingWriter) write(OutboundMessage) error {
	<-b.release
	return nil
}

func (b *blockingWriter) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestOutbox_ClosesConnectionWhenFull(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{}), closed: make(chan struct{})}
	o := newOutbox(w.write, w, logging.New("error"))
	o.timeout = 10 * time.Millisecond
	defer func() {
		close(w.release)
		o.close()
	}()

	for i := 0; i < outboundBuffer+2; i++ {
		o.send(OutboundMessage{Type: TypeCommand})
	}

	select {
	case <-w.closed:
	case <-time.After(time.Second):
		t.Fatal("connection not closed on overflow")
	}

	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	assert.True(t, closed)
}
