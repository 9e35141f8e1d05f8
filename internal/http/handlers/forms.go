package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/internal/validation"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

// FormsHandler exposes the form definitions and single-field validation.
type FormsHandler struct {
	defs   forms.Definitions
	clock  clock.Clock
	loc    *time.Location
	logger *logging.Logger
}

// NewFormsHandler creates a forms handler. A nil clock uses the wall clock.
func NewFormsHandler(defs forms.Definitions, clk clock.Clock, loc *time.Location, logger *logging.Logger) *FormsHandler {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FormsHandler{defs: defs, clock: clk, loc: loc, logger: logger}
}

type formsResponse struct {
	Forms   forms.Definitions `json:"forms"`
	MinDate string            `json:"min_date"`
}

// List handles GET /api/forms.
func (h *FormsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formsResponse{
		Forms:   h.defs,
		MinDate: validation.MinDate(h.clock.Now(), h.loc),
	})
}

// ValidateFieldRequest is the body of POST /api/forms/{form}/validate.
type ValidateFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ValidateFieldResponse reports the rules a value fails.
type ValidateFieldResponse struct {
	Field     string   `json:"field"`
	Valid     bool     `json:"valid"`
	Failed    []string `json:"failed,omitempty"`
	Formatted string   `json:"formatted,omitempty"`
}

// ValidateField handles POST /api/forms/{form}/validate.
func (h *FormsHandler) ValidateField(w http.ResponseWriter, r *http.Request) {
	def, err := h.defs.Lookup(chi.URLParam(r, "form"))
	if err != nil {
		http.Error(w, "unknown form", http.StatusNotFound)
		return
	}

	var req ValidateFieldRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	fd, ok := def.Field(req.Field)
	if !ok {
		http.Error(w, "unknown field", http.StatusNotFound)
		return
	}

	failed := validation.ValidateFieldDetailed(fd.Name, req.Value, fd.Constraints, h.clock.Now(), h.loc)
	resp := ValidateFieldResponse{Field: fd.Name, Valid: len(failed) == 0, Failed: failed}
	if resp.Valid && fd.Role == validation.RolePhone {
		resp.Formatted = validation.FormatPhone(req.Value)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
