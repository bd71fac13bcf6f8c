package httptransport

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"palisade/internal/biometric/models"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// BiometricService is the slice of the biometric index the transport needs.
type BiometricService interface {
	EnrollEmbedding(ctx context.Context, personID id.PersonID, vector []float32, quality float64) (*models.Sample, error)
	EnrollTemplate(ctx context.Context, personID id.PersonID, template []byte, position string, quality float64) (*models.Sample, error)
	SoftDelete(ctx context.Context, sampleID id.SampleID) error
	MatchFace(ctx context.Context, probe []float32, topK int, threshold float64) (*models.MatchResult, error)
	MatchFingerprint(ctx context.Context, probe []byte, topK int, threshold float64) (*models.MatchResult, error)
}

type BiometricHandler struct {
	logger        *slog.Logger
	biometric     BiometricService
	faceThreshold float64
}

func (h *BiometricHandler) Register(r chi.Router) {
	r.Post("/biometric/embeddings", h.handleEnrollEmbedding)
	r.Post("/biometric/templates", h.handleEnrollTemplate)
	r.Delete("/biometric/samples/{sampleID}", h.handleSoftDelete)
}

// RegisterGateway exposes matching to authenticated gateway devices.
func (h *BiometricHandler) RegisterGateway(r chi.Router) {
	r.Post("/gateway/match/face", h.handleMatchFace)
	r.Post("/gateway/match/fingerprint", h.handleMatchFingerprint)
}

type enrollEmbeddingRequest struct {
	PersonID string    `json:"person_id"`
	Vector   []float32 `json:"vector"`
	Quality  float64   `json:"quality"`
}

func (h *BiometricHandler) handleEnrollEmbedding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[enrollEmbeddingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	personID, err := id.ParsePersonID(req.PersonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sample, err := h.biometric.EnrollEmbedding(ctx, personID, req.Vector, req.Quality)
	if err != nil {
		h.logger.WarnContext(ctx, "embedding enrollment failed",
			"request_id", requestID,
			"person_id", req.PersonID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sample)
}

type enrollTemplateRequest struct {
	PersonID string  `json:"person_id"`
	Template string  `json:"template"` // base64
	Position string  `json:"position"`
	Quality  float64 `json:"quality"`
}

func (h *BiometricHandler) handleEnrollTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[enrollTemplateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	personID, err := id.ParsePersonID(req.PersonID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	template, err := base64.StdEncoding.DecodeString(req.Template)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "template must be base64"))
		return
	}

	sample, err := h.biometric.EnrollTemplate(ctx, personID, template, req.Position, req.Quality)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sample)
}

func (h *BiometricHandler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sampleID, err := id.ParseSampleID(chi.URLParam(r, "sampleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.biometric.SoftDelete(ctx, sampleID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// defaultTopK applies when a gateway match request omits top_k; gates
// usually want only the best candidate.
const defaultTopK = 1

type matchFaceRequest struct {
	Vector []float32 `json:"vector"`
	// TopK and Threshold are optional; absent means the server default
	// applies.
	TopK      *int     `json:"top_k"`
	Threshold *float64 `json:"threshold"`
}

func (h *BiometricHandler) handleMatchFace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[matchFaceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	threshold := h.faceThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	result, err := h.biometric.MatchFace(ctx, req.Vector, topK, threshold)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type matchFingerprintRequest struct {
	Template string `json:"template"` // base64
	// TopK is optional; absent means the server default applies.
	TopK      *int    `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

func (h *BiometricHandler) handleMatchFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[matchFingerprintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	probe, err := base64.StdEncoding.DecodeString(req.Template)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "template must be base64"))
		return
	}
	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	result, err := h.biometric.MatchFingerprint(ctx, probe, topK, req.Threshold)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
