package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"palisade/internal/ledger/models"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// LedgerService is the slice of the entry ledger the transport needs.
type LedgerService interface {
	Record(ctx context.Context, req models.Request) (*models.Event, bool, error)
	Get(ctx context.Context, eventID id.EventID) (*models.Event, error)
	HistoryByPerson(ctx context.Context, personID id.PersonID, limit int) ([]*models.Event, error)
	HistoryByNode(ctx context.Context, nodeID id.NodeID, since time.Time, limit int) ([]*models.Event, error)
}

type LedgerHandler struct {
	logger *slog.Logger
	ledger LedgerService
}

// RegisterGateway exposes event recording to authenticated gateway devices.
func (h *LedgerHandler) RegisterGateway(r chi.Router) {
	r.Post("/gateway/events", h.handleRecord)
}

func (h *LedgerHandler) RegisterOperator(r chi.Router) {
	r.Get("/ledger/events/{eventID}", h.handleGet)
	r.Get("/ledger/persons/{personID}/events", h.handleHistoryByPerson)
	r.Get("/ledger/nodes/{nodeID}/events", h.handleHistoryByNode)
}

func (h *LedgerHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.Request](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	// The authenticated device is authoritative over whatever the body says.
	if serial := requestcontext.DeviceSerial(ctx); serial != "" {
		req.DeviceSerial = serial
	}

	event, replayed, err := h.ledger.Record(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "event recording failed",
			"request_id", requestID,
			"gateway_request_id", req.RequestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, map[string]any{
		"event":    event,
		"replayed": replayed,
	})
}

func (h *LedgerHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	event, err := h.ledger.Get(ctx, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *LedgerHandler) handleHistoryByPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.ledger.HistoryByPerson(ctx, personID, queryLimit(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *LedgerHandler) handleHistoryByNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nodeID, err := id.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "since must be RFC 3339"))
			return
		}
	}

	events, err := h.ledger.HistoryByNode(ctx, nodeID, since, queryLimit(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}
