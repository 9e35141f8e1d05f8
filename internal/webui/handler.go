// Package webui bridges a browser page to the form workflow over a
// websocket. The browser reports which forms it renders and streams field
// events; the server answers with page commands.
package webui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/internal/page"
	"github.com/wolfman30/barberia-elite/internal/storage"
	"github.com/wolfman30/barberia-elite/pkg/logging"
	"golang.org/x/net/websocket"
)

const (
	outboundBuffer = 64
	// sendTimeout bounds how long a full outbound buffer may block before
	// the connection is dropped.
	sendTimeout = 2 * time.Second
)

// Inbound message types.
const (
	TypeHello  = "hello"
	TypeInput  = "input"
	TypeChange = "change"
	TypeBlur   = "blur"
	TypeSubmit = "submit"
	TypeReset  = "reset"
	TypePing   = "ping"
)

// Outbound message types.
const (
	TypeSession = "session"
	TypeCommand = "command"
	TypeResult  = "result"
	TypePong    = "pong"
	TypeError   = "error"
)

// InboundMessage is what the page sends.
type InboundMessage struct {
	Type string `json:"type"`
	// Token resumes the session it was issued for.
	Token  string            `json:"token,omitempty"`
	Forms  []string          `json:"forms,omitempty"`
	Form   string            `json:"form,omitempty"`
	Field  string            `json:"field,omitempty"`
	Value  string            `json:"value,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// OutboundMessage is what the server sends back.
type OutboundMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Token     string        `json:"token,omitempty"`
	Forms     []string      `json:"forms,omitempty"`
	Command   *page.Command `json:"command,omitempty"`
	Form      string        `json:"form,omitempty"`
	Accepted  *bool         `json:"accepted,omitempty"`
	Invalid   []string      `json:"invalid,omitempty"`
	Text      string        `json:"text,omitempty"`
}

// Handler serves /ws/forms connections.
type Handler struct {
	defs    forms.Definitions
	stores  storage.Factory
	tokens  *SessionTokens
	options []forms.Option
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewHandler creates a bridge serving defs. Each session persists through a
// store from stores and is resumed with a token from tokens; options
// configure every per-connection workflow.
func NewHandler(defs forms.Definitions, stores storage.Factory, tokens *SessionTokens, logger *logging.Logger, options ...forms.Option) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if stores == nil {
		stores = storage.MemoryFactory()
	}
	if tokens == nil {
		tokens = NewSessionTokens(nil)
	}
	return &Handler{
		defs:     defs,
		stores:   stores,
		tokens:   tokens,
		options:  options,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Sessions returns the ids of the open sessions.
func (h *Handler) Sessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HandleWebSocket upgrades to WebSocket and runs one page session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn) {
	out := newOutbox(func(msg OutboundMessage) error {
		return websocket.JSON.Send(conn, msg)
	}, conn, h.logger)
	defer out.close()

	var s *session
	defer func() {
		if s != nil {
			h.unregister(s)
		}
	}()

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webui: connection closed", "error", err)
			return
		}

		switch msg.Type {
		case TypePing:
			out.send(OutboundMessage{Type: TypePong})
			continue
		case TypeHello:
			if s != nil {
				out.send(OutboundMessage{Type: TypeError, Text: "session already started"})
				continue
			}
			opened, err := h.open(msg, out)
			if err != nil {
				h.logger.Error("webui: failed to open session", "error", err)
				out.send(OutboundMessage{Type: TypeError, Text: "session unavailable"})
				return
			}
			s = opened
			continue
		}

		if s == nil {
			out.send(OutboundMessage{Type: TypeError, Text: "hello required"})
			continue
		}
		if err := s.handle(ctx, msg); err != nil {
			h.logger.Debug("webui: rejected event", "session_id", s.id, "type", msg.Type, "error", err)
			out.send(OutboundMessage{Type: TypeError, Form: msg.Form, Text: err.Error()})
		}
	}
}

// open builds the page and workflow for a hello and registers the session.
// A hello without a valid token starts a fresh session.
func (h *Handler) open(hello InboundMessage, out *outbox) (*session, error) {
	id := ""
	if hello.Token != "" {
		resumed, err := h.tokens.Verify(hello.Token)
		if err != nil {
			h.logger.Warn("webui: ignoring session token", "error", err)
		}
		id = resumed
	}
	if id == "" {
		id = generateSessionID()
	}
	token, err := h.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	logger := h.logger.With("session_id", id)

	doc := page.Build(h.defs, hello.Forms, func(cmd page.Command) {
		c := cmd
		out.send(OutboundMessage{Type: TypeCommand, Command: &c})
	})
	wf := forms.New(h.stores(id), logger, h.options...)
	s := &session{id: id, doc: doc, wf: wf, out: out, descriptors: make(map[string]*forms.Descriptor)}

	attached := attachedIDs(h.defs, hello.Forms)
	// session reply precedes the attach commands
	out.send(OutboundMessage{Type: TypeSession, SessionID: id, Token: token, Forms: attached})
	for _, d := range wf.AttachAll(doc, h.defs) {
		s.descriptors[d.ID()] = d
	}

	h.mu.Lock()
	if prev, ok := h.sessions[id]; ok && prev != s {
		logger.Info("webui: session replaced by new connection")
	}
	h.sessions[id] = s
	h.mu.Unlock()

	logger.Info("webui: session opened", "forms", attached)
	return s, nil
}

func (h *Handler) unregister(s *session) {
	s.wf.Close()
	h.mu.Lock()
	if h.sessions[s.id] == s {
		delete(h.sessions, s.id)
	}
	h.mu.Unlock()
	h.logger.Info("webui: session closed", "session_id", s.id)
}

// session is one connected page.
type session struct {
	id          string
	doc         *page.Document
	wf          *forms.Workflow
	out         *outbox
	descriptors map[string]*forms.Descriptor
}

var errUnknownType = errors.New("unknown message type")

// attachedIDs lists the definitions the page renders, in definition order.
func attachedIDs(defs forms.Definitions, present []string) []string {
	keep := make(map[string]bool, len(present))
	for _, id := range present {
		keep[id] = true
	}
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		if present == nil || keep[def.ID] {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

func (s *session) handle(ctx context.Context, msg InboundMessage) error {
	switch msg.Type {
	case TypeInput:
		return s.doc.Dispatch(msg.Form, msg.Field, forms.EventInput, msg.Value)
	case TypeChange:
		return s.doc.Dispatch(msg.Form, msg.Field, forms.EventChange, msg.Value)
	case TypeBlur:
		return s.doc.Dispatch(msg.Form, msg.Field, forms.EventBlur, msg.Value)
	case TypeSubmit:
		return s.submit(ctx, msg)
	case TypeReset:
		d, ok := s.descriptors[msg.Form]
		if !ok {
			return page.ErrUnknownForm
		}
		s.wf.Reset(d)
		return nil
	default:
		return errUnknownType
	}
}

func (s *session) submit(ctx context.Context, msg InboundMessage) error {
	d, ok := s.descriptors[msg.Form]
	if !ok {
		return page.ErrUnknownForm
	}
	for name, value := range msg.Values {
		if err := s.doc.SetValue(msg.Form, name, value); err != nil {
			return err
		}
	}
	outcome := s.wf.HandleSubmit(ctx, d)
	accepted := outcome.Accepted
	s.out.send(OutboundMessage{Type: TypeResult, Form: msg.Form, Accepted: &accepted, Invalid: outcome.Invalid})
	return nil
}

// outbox serializes writes to the socket from the reader and timer
// goroutines.
type outbox struct {
	write   func(OutboundMessage) error
	conn    io.Closer
	logger  *logging.Logger
	timeout time.Duration
	queue   chan OutboundMessage
	done    chan struct{}
	wg      sync.WaitGroup
	stop    sync.Once

	mu     sync.Mutex
	closed bool
}

func newOutbox(write func(OutboundMessage) error, conn io.Closer, logger *logging.Logger) *outbox {
	o := &outbox{
		write:   write,
		conn:    conn,
		logger:  logger,
		timeout: sendTimeout,
		queue:   make(chan OutboundMessage, outboundBuffer),
		done:    make(chan struct{}),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

func (o *outbox) run() {
	defer o.wg.Done()
	for {
		select {
		case msg := <-o.queue:
			if err := o.write(msg); err != nil {
				o.logger.Debug("webui: send failed", "error", err)
			}
		case <-o.done:
			return
		}
	}
}

// send queues msg, waiting up to the timeout for room. A page that cannot
// keep up would drift from the server state, so its connection is closed
// instead of dropping commands. Messages after close are discarded.
func (o *outbox) send(msg OutboundMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- msg:
		return
	default:
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()
	select {
	case o.queue <- msg:
	case <-timer.C:
		o.closed = true
		o.logger.Warn("webui: outbound buffer full, closing connection", "type", msg.Type)
		if err := o.conn.Close(); err != nil {
			o.logger.Debug("webui: close failed", "error", err)
		}
	}
}

// close stops the writer. Queued messages are discarded.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.stop.Do(func() {
		close(o.done)
		o.wg.Wait()
	})
}
