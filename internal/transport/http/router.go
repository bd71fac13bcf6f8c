// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and never embed business logic.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"palisade/pkg/platform/httputil"
	authmw "palisade/pkg/platform/middleware/auth"
	devicemw "palisade/pkg/platform/middleware/device"
	"palisade/pkg/platform/middleware/requestid"
	"palisade/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router wires together.
type Deps struct {
	Logger    *slog.Logger
	Directory DirectoryService
	Audit     AuditReader
	Biometric BiometricService
	Ledger    LedgerService
	Search    SearchService
	Topology  TopologyService
	Validator authmw.JWTValidator
	Devices   devicemw.Verifier

	// FaceThreshold is the default maximum face-match distance applied when
	// a gateway request does not carry its own.
	FaceThreshold float64
}

// NewRouter wires all endpoints. Operator routes sit behind bearer-token
// auth; gateway routes behind device-secret auth.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	directory := &DirectoryHandler{logger: deps.Logger, directory: deps.Directory, audit: deps.Audit}
	biometric := &BiometricHandler{logger: deps.Logger, biometric: deps.Biometric, faceThreshold: deps.FaceThreshold}
	ledger := &LedgerHandler{logger: deps.Logger, ledger: deps.Ledger}
	search := &SearchHandler{logger: deps.Logger, search: deps.Search}
	topology := &TopologyHandler{logger: deps.Logger, topology: deps.Topology}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireOperator(deps.Validator, deps.Logger))
		directory.Register(r)
		biometric.Register(r)
		search.Register(r)
		topology.Register(r)
		ledger.RegisterOperator(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(devicemw.RequireDevice(deps.Devices, deps.Logger))
		ledger.RegisterGateway(r)
		biometric.RegisterGateway(r)
	})

	return r
}
