package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/barberia-elite/internal/forms"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Notifier is told about every stored lead.
type Notifier interface {
	LeadReceived(ctx context.Context, lead *Lead) error
}

// Handler handles HTTP requests for leads
type Handler struct {
	intake   *Intake
	repo     Repository
	notifier Notifier
	logger   *logging.Logger
}

// NewHandler creates a new leads handler. notifier may be nil.
func NewHandler(intake *Intake, repo Repository, notifier Notifier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		intake:   intake,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateSubmission handles POST /api/submissions/{form} requests
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "form")

	var req CreateLeadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode submission", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lead, err := h.intake.Accept(r.Context(), formID, &req)
	if err != nil {
		h.writeError(w, formID, err)
		return
	}

	h.logger.Success("lead created", "id", lead.ID, "form", lead.Form)

	if h.notifier != nil {
		if err := h.notifier.LeadReceived(r.Context(), lead); err != nil {
			h.logger.Error("failed to notify shop", "error", err, "id", lead.ID)
		}
	}

	writeJSON(w, http.StatusCreated, lead)
}

func (h *Handler) writeError(w http.ResponseWriter, formID string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		h.logger.Warn("submission rejected", "form", formID, "fields", verr.Fields)
		writeJSON(w, http.StatusBadRequest, verr)
	case errors.Is(err, forms.ErrUnknownForm):
		http.Error(w, "unknown form", http.StatusNotFound)
	case errors.Is(err, ErrFormMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("failed to create lead", "error", err, "form", formID)
		http.Error(w, "failed to store submission", http.StatusInternalServerError)
	}
}

// GetLead handles GET /api/leads/{id} requests
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load lead", "error", err, "id", id)
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads []*Lead `json:"leads"`
	Count int     `json:"count"`
}

// ListLeads handles GET /api/submissions requests, optionally filtered by ?form=.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.repo.List(r.Context(), r.URL.Query().Get("form"))
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ListLeadsResponse{Leads: leads, Count: len(leads)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
