package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"fieldintake/internal/repository"
	"fieldintake/internal/service"
)

// UploadHandler handles upload status and trigger endpoints
type UploadHandler struct {
	uploadSvc  *service.UploadService
	uploadRepo repository.UploadUnitRepo
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadSvc *service.UploadService, uploadRepo repository.UploadUnitRepo) *UploadHandler {
	return &UploadHandler{
		uploadSvc:  uploadSvc,
		uploadRepo: uploadRepo,
	}
}

// List handles GET /v1/uploads
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	units, err := h.uploadRepo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"uploads": units})
}

// Retry handles POST /v1/uploads/{entityId}/retry. An explicit retry always
// attempts, even for units the periodic sweep no longer retries.
func (h *UploadHandler) Retry(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entityId"]

	outcome, err := h.uploadSvc.Attempt(r.Context(), entityID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnitNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrAttemptInFlight):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// Sync handles POST /v1/uploads/sync, a full on-demand sweep.
func (h *UploadHandler) Sync(w http.ResponseWriter, r *http.Request) {
	results, err := h.uploadSvc.RetryPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
