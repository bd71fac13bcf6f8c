package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"palisade/internal/search"
	"palisade/pkg/platform/httputil"
)

// SearchService is the slice of the search index the transport needs.
type SearchService interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

type SearchHandler struct {
	logger *slog.Logger
	search SearchService
}

func (h *SearchHandler) Register(r chi.Router) {
	r.Get("/search/persons", h.handleSearch)
}

func (h *SearchHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results, err := h.search.Search(ctx, r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}
