package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"fieldintake/internal/service"
)

// SessionHandler handles interview session endpoints
type SessionHandler struct {
	traversal *service.TraversalService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(traversal *service.TraversalService) *SessionHandler {
	return &SessionHandler{traversal: traversal}
}

// StartSessionRequest is the request body for starting a session
type StartSessionRequest struct {
	Language string `json:"language"`
}

// Start handles POST /v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	result, err := h.traversal.Start(r.Context(), req.Language)
	if err != nil {
		if errors.Is(err, service.ErrNoQuestions) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Resume handles POST /v1/sessions/{surveyId}/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	result, err := h.traversal.Resume(r.Context(), surveyID)
	if err != nil {
		writeNavigationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Current handles GET /v1/sessions/{surveyId}/current
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	result, err := h.traversal.Current(r.Context(), surveyID)
	if err != nil {
		writeNavigationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Record handles POST /v1/sessions/{surveyId}/answer
func (h *SessionHandler) Record(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	var input service.AnswerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.traversal.Record(r.Context(), surveyID, input)
	if err != nil {
		writeNavigationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Advance handles POST /v1/sessions/{surveyId}/advance
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	result, err := h.traversal.Advance(r.Context(), surveyID)
	if err != nil {
		writeNavigationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Retreat handles POST /v1/sessions/{surveyId}/retreat
func (h *SessionHandler) Retreat(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	result, err := h.traversal.Retreat(r.Context(), surveyID)
	if err != nil {
		writeNavigationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeNavigationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSessionCompleted), errors.Is(err, service.ErrNoCurrentQuestion):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
