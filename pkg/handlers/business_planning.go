package handlers

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gateway/pkg/planning"
)

// PlanningClient is the upstream business-planning API. *planning.Client satisfies it.
type PlanningClient interface {
	GetFrameworks(ctx context.Context) (*planning.Response, error)
	SelectCompany(ctx context.Context, body []byte) (*planning.Response, error)
}

// planningErrorResponse is the envelope for proxy failures.
type planningErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// BusinessPlanningHandler proxies /api/business-planning routes to the upstream API.
type BusinessPlanningHandler struct {
	client PlanningClient
	logger *zap.Logger
}

// NewBusinessPlanningHandler creates a new business-planning proxy handler.
func NewBusinessPlanningHandler(client PlanningClient, logger *zap.Logger) *BusinessPlanningHandler {
	return &BusinessPlanningHandler{
		client: client,
		logger: logger,
	}
}

// RegisterRoutes registers the proxy routes on the given mux.
func (h *BusinessPlanningHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/business-planning/gtm/frameworks", h.GetFrameworks)
	mux.HandleFunc("POST /api/business-planning/select-company", h.SelectCompany)
}

// GetFrameworks handles GET /api/business-planning/gtm/frameworks
func (h *BusinessPlanningHandler) GetFrameworks(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.GetFrameworks(r.Context())
	h.relay(w, "gtm/frameworks", resp, err)
}

// SelectCompany handles POST /api/business-planning/select-company
// The request body is forwarded verbatim.
func (h *BusinessPlanningHandler) SelectCompany(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.relay(w, "select-company", nil, err)
		return
	}

	resp, err := h.client.SelectCompany(r.Context(), body)
	h.relay(w, "select-company", resp, err)
}

// relay writes the upstream status and body, or the failure envelope.
func (h *BusinessPlanningHandler) relay(w http.ResponseWriter, route string, resp *planning.Response, err error) {
	if err != nil {
		h.logger.Error("Business-planning request failed",
			zap.String("route", route),
			zap.Error(err))
		if err := WriteJSON(w, http.StatusInternalServerError, planningErrorResponse{Success: false, Error: err.Error()}); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteRawJSON(w, resp.StatusCode, resp.Body); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
