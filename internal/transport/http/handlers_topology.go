package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"palisade/internal/topology/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// TopologyService is the slice of the topology registry the transport needs.
type TopologyService interface {
	RegisterVillage(ctx context.Context, name, region string) (*models.Village, error)
	RegisterNode(ctx context.Context, villageID id.VillageID, name string) (*models.Node, error)
	RegisterDevice(ctx context.Context, serial string, kind models.DeviceKind, nodeID *id.NodeID) (*models.Device, string, error)
	Resolve(ctx context.Context, deviceID id.DeviceID) (*models.Resolved, error)
	ListNodes(ctx context.Context, villageID id.VillageID) ([]*models.Node, error)
	ListDevices(ctx context.Context, nodeID id.NodeID) ([]*models.Device, error)
}

type TopologyHandler struct {
	logger   *slog.Logger
	topology TopologyService
}

func (h *TopologyHandler) Register(r chi.Router) {
	r.Post("/topology/villages", h.handleRegisterVillage)
	r.Get("/topology/villages/{villageID}/nodes", h.handleListNodes)
	r.Post("/topology/nodes", h.handleRegisterNode)
	r.Get("/topology/nodes/{nodeID}/devices", h.handleListDevices)
	r.Post("/topology/devices", h.handleRegisterDevice)
	r.Get("/topology/devices/{deviceID}", h.handleResolveDevice)
}

type registerVillageRequest struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

func (h *TopologyHandler) handleRegisterVillage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerVillageRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	village, err := h.topology.RegisterVillage(ctx, req.Name, req.Region)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, village)
}

type registerNodeRequest struct {
	VillageID string `json:"village_id"`
	Name      string `json:"name"`
}

func (h *TopologyHandler) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerNodeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	villageID, err := id.ParseVillageID(req.VillageID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	node, err := h.topology.RegisterNode(ctx, villageID, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, node)
}

type registerDeviceRequest struct {
	Serial string `json:"serial"`
	Kind   string `json:"kind"`
	NodeID string `json:"node_id,omitempty"`
}

func (h *TopologyHandler) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[registerDeviceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var nodeID *id.NodeID
	if req.NodeID != "" {
		parsed, err := id.ParseNodeID(req.NodeID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		nodeID = &parsed
	}

	device, secret, err := h.topology.RegisterDevice(ctx, req.Serial, models.DeviceKind(req.Kind), nodeID)
	if err != nil {
		h.logger.WarnContext(ctx, "device registration failed",
			"request_id", requestID,
			"serial", req.Serial,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	// The plaintext secret appears in this response and nowhere else.
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"device": device,
		"secret": secret,
	})
}

func (h *TopologyHandler) handleResolveDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID, err := id.ParseDeviceID(chi.URLParam(r, "deviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resolved, err := h.topology.Resolve(ctx, deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolved)
}

func (h *TopologyHandler) handleListNodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	villageID, err := id.ParseVillageID(chi.URLParam(r, "villageID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	nodes, err := h.topology.ListNodes(ctx, villageID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (h *TopologyHandler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nodeID, err := id.ParseNodeID(chi.URLParam(r, "nodeID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	devices, err := h.topology.ListDevices(ctx, nodeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"devices": devices})
}
