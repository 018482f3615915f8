package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/sajclarke/tax-calculator-app/history"
	"github.com/sajclarke/tax-calculator-app/paye"
)

var log = logrus.WithField("module", "api")

// maxRequestBytes caps the assessment form body.
const maxRequestBytes = 8 << 10

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *paye.Engine
	Store  history.Store
}

// NewHandler creates a new handler.
func NewHandler(engine *paye.Engine, store history.Store) *Handler {
	return &Handler{Engine: engine, Store: store}
}

// =============================================================================
// META
// =============================================================================

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSchedule returns the rate table in force.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toScheduleDTO(h.Engine.Schedule()))
}

// =============================================================================
// ASSESSMENT HANDLERS
// =============================================================================

// CreateAssessment validates the form input, runs the engine and appends
// the result to the session history.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req AssessmentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	input, err := req.toInput()
	if err != nil {
		writeFieldErrors(w, fieldErrorsFrom(err))
		return
	}

	result, err := h.Engine.ComputeAssessment(input)
	if err != nil {
		if paye.IsInvalidInput(err) {
			writeFieldErrors(w, fieldErrorsFrom(err))
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute assessment", err)
		return
	}

	session := SessionFrom(r.Context())
	if err := h.Store.Append(r.Context(), session, result); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save assessment", err)
		return
	}

	log.WithFields(logrus.Fields{
		"session":         session,
		"assessment":      result.ID,
		"employment_type": result.EmploymentType,
	}).Debug("assessment computed")

	writeJSON(w, http.StatusCreated, toAssessmentDTO(result, h.Engine.Schedule()))
}

// ListAssessments returns the session history, most recent first.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	results, err := h.Store.List(r.Context(), SessionFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assessments", err)
		return
	}

	schedule := h.Engine.Schedule()
	writeJSON(w, http.StatusOK, lo.Map(results, func(res paye.AssessmentResult, _ int) AssessmentDTO {
		return toAssessmentDTO(res, schedule)
	}))
}

// GetAssessment returns a single history entry.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	id := paye.AssessmentID(chi.URLParam(r, "id"))

	result, err := h.Store.Get(r.Context(), SessionFrom(r.Context()), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Assessment not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get assessment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessmentDTO(result, h.Engine.Schedule()))
}

// ClearAssessments empties the session history.
func (h *Handler) ClearAssessments(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Clear(r.Context(), SessionFrom(r.Context())); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		if status >= http.StatusInternalServerError {
			log.WithError(err).Error(message)
		}
	}
	writeJSON(w, status, resp)
}

func writeFieldErrors(w http.ResponseWriter, fields FieldErrors) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgValidateFailed, Fields: fields})
}
