package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"palisade/internal/audit"
	"palisade/internal/directory/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// DirectoryService is the slice of the person directory the transport needs.
type DirectoryService interface {
	Enroll(ctx context.Context, draft models.Draft) (*models.Person, error)
	Update(ctx context.Context, personID id.PersonID, expectedVersion int64, patch models.Patch) (*models.Person, error)
	Deactivate(ctx context.Context, personID id.PersonID, expectedVersion int64) (*models.Person, error)
	Reactivate(ctx context.Context, personID id.PersonID, expectedVersion int64) (*models.Person, error)
	Get(ctx context.Context, personID id.PersonID) (*models.Person, error)
}

// AuditReader lists a person's audit trail.
type AuditReader interface {
	List(ctx context.Context, personID id.PersonID) ([]audit.Record, error)
}

type DirectoryHandler struct {
	logger    *slog.Logger
	directory DirectoryService
	audit     AuditReader
}

func (h *DirectoryHandler) Register(r chi.Router) {
	r.Post("/directory/persons", h.handleEnroll)
	r.Get("/directory/persons/{personID}", h.handleGet)
	r.Patch("/directory/persons/{personID}", h.handleUpdate)
	r.Post("/directory/persons/{personID}/deactivate", h.handleDeactivate)
	r.Post("/directory/persons/{personID}/reactivate", h.handleReactivate)
	r.Get("/directory/persons/{personID}/audit", h.handleAuditTrail)
}

func (h *DirectoryHandler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	draft, ok := httputil.DecodeAndPrepare[models.Draft](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	person, err := h.directory.Enroll(ctx, draft)
	if err != nil {
		h.logger.WarnContext(ctx, "enroll failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, person)
}

func (h *DirectoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	person, err := h.directory.Get(ctx, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

type updatePersonRequest struct {
	ExpectedVersion int64        `json:"expected_version"`
	Patch           models.Patch `json:"patch"`
}

func (h *DirectoryHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[updatePersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	person, err := h.directory.Update(ctx, personID, req.ExpectedVersion, req.Patch)
	if err != nil {
		h.logger.WarnContext(ctx, "update failed",
			"request_id", requestID,
			"person_id", personID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

type versionOnlyRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

func (h *DirectoryHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.directory.Deactivate)
}

func (h *DirectoryHandler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.directory.Reactivate)
}

func (h *DirectoryHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, personID id.PersonID, expectedVersion int64) (*models.Person, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[versionOnlyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	person, err := op(ctx, personID, req.ExpectedVersion)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

func (h *DirectoryHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.audit.List(ctx, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}
