package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/logging"
	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
	"github.com/ekaya-inc/ekaya-gateway/pkg/services"
)

// DiscoverRequest is the body of POST /discover.
type DiscoverRequest struct {
	ConnectionString string `json:"connectionString"`
}

// CreateConnectionRequest is the body of POST /connections.
type CreateConnectionRequest struct {
	ConnectionString string `json:"connectionString"`
	Name             string `json:"name,omitempty"`
}

// DatabaseHandler serves /api/database routes over a DatabaseService.
type DatabaseHandler struct {
	databaseService services.DatabaseService
	logger          *zap.Logger
}

// NewDatabaseHandler creates a new database handler.
func NewDatabaseHandler(databaseService services.DatabaseService, logger *zap.Logger) *DatabaseHandler {
	return &DatabaseHandler{
		databaseService: databaseService,
		logger:          logger,
	}
}

// RegisterRoutes registers the database handler's routes on the given mux.
func (h *DatabaseHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/database/types", h.ListTypes)
	mux.HandleFunc("GET /api/database/connections", h.ListConnections)
	mux.HandleFunc("POST /api/database/connections", h.CreateConnection)
	mux.HandleFunc("GET /api/database/connections/{id}", h.GetConnection)
	mux.HandleFunc("DELETE /api/database/connections/{id}", h.RemoveConnection)
	mux.HandleFunc("GET /api/database/connections/{id}/health", h.CheckHealth)
	mux.HandleFunc("GET /api/database/connections/{id}/metadata", h.GetMetadata)
	mux.HandleFunc("POST /api/database/connections/{id}/metadata", h.GetMetadata)
	mux.HandleFunc("POST /api/database/connections/{id}/query", h.ExecuteQuery)
	mux.HandleFunc("GET /api/database/connections/{id}/visualizations/{table}", h.SuggestVisualizations)
	mux.HandleFunc("POST /api/database/discover", h.Discover)
}

// ListTypes handles GET /api/database/types
func (h *DatabaseHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]any{"types": h.databaseService.ListTypes()})
}

// ListConnections handles GET /api/database/connections
func (h *DatabaseHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.databaseService.ListConnections(r.Context())
	if err != nil {
		h.serviceError(w, "Failed to list connections", err)
		return
	}
	if conns == nil {
		conns = []*models.Connection{}
	}
	h.respond(w, http.StatusOK, map[string]any{"connections": conns})
}

// CreateConnection handles POST /api/database/connections
func (h *DatabaseHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := h.decode(w, r, &req); err != nil || req.ConnectionString == "" {
		h.badRequest(w, "Connection string is required")
		return
	}

	conn, err := h.databaseService.CreateConnection(r.Context(), req.Name, req.ConnectionString)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnsupportedType) || errors.Is(err, apperrors.ErrInvalidConnection) {
			sanitized := logging.SanitizeError(err)
			h.logger.Warn("Rejected connection string",
				zap.String("connection", logging.SanitizeConnectionString(req.ConnectionString)),
				zap.String("error", sanitized))
			if err := ErrorWithDetails(w, http.StatusBadRequest, "Invalid connection string", errors.New(sanitized)); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.serviceError(w, "Failed to create connection", err)
		return
	}
	h.respond(w, http.StatusCreated, map[string]any{"connection": conn})
}

// GetConnection handles GET /api/database/connections/{id}
func (h *DatabaseHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.databaseService.GetConnection(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "Connection not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.serviceError(w, "Failed to get connection", err)
		return
	}
	if conn == nil {
		if err := ErrorResponse(w, http.StatusNotFound, "Connection not found"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"connection": conn})
}

// RemoveConnection handles DELETE /api/database/connections/{id}
func (h *DatabaseHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.databaseService.RemoveConnection(r.Context(), r.PathValue("id")); err != nil {
		h.serviceError(w, "Failed to remove connection", err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"message": "Connection removed successfully"})
}

// CheckHealth handles GET /api/database/connections/{id}/health
func (h *DatabaseHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.databaseService.CheckHealth(r.Context(), r.PathValue("id"))
	if err != nil {
		h.serviceError(w, "Failed to check connection health", err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"health": health})
}

// GetMetadata handles GET and POST /api/database/connections/{id}/metadata
// Both methods read current metadata; POST does not force a refresh.
func (h *DatabaseHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	metadata, err := h.databaseService.GetMetadata(r.Context(), r.PathValue("id"))
	if err != nil {
		h.serviceError(w, "Failed to get metadata", err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"metadata": metadata})
}

// ExecuteQuery handles POST /api/database/connections/{id}/query
// Only table is checked here; the rest of the body goes to the service as-is.
func (h *DatabaseHandler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if err := ErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.badRequest(w, "Failed to read request body")
		return
	}

	var req struct {
		Table string `json:"table"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Table == "" {
		h.badRequest(w, "Table name is required")
		return
	}

	result, err := h.databaseService.ExecuteQueryRequest(r.Context(), r.PathValue("id"), body)
	if err != nil {
		h.serviceError(w, "Failed to execute query", err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"result": result})
}

// SuggestVisualizations handles GET /api/database/connections/{id}/visualizations/{table}
func (h *DatabaseHandler) SuggestVisualizations(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.databaseService.SuggestVisualizations(r.Context(), r.PathValue("id"), r.PathValue("table"))
	if err != nil {
		h.serviceError(w, "Failed to suggest visualizations", err)
		return
	}
	if suggestions == nil {
		suggestions = []models.VisualizationSuggestion{}
	}
	h.respond(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// Discover handles POST /api/database/discover
func (h *DatabaseHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := h.decode(w, r, &req); err != nil || req.ConnectionString == "" {
		h.badRequest(w, "Connection string is required")
		return
	}

	databases, err := h.databaseService.DiscoverDatabases(r.Context(), req.ConnectionString)
	if err != nil {
		h.serviceError(w, "Failed to discover databases", err)
		return
	}
	if databases == nil {
		databases = []models.DiscoveredDatabase{}
	}
	h.respond(w, http.StatusOK, map[string]any{"databases": databases})
}

func (h *DatabaseHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (h *DatabaseHandler) respond(w http.ResponseWriter, status int, body any) {
	if err := WriteJSON(w, status, body); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *DatabaseHandler) badRequest(w http.ResponseWriter, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// serviceError logs err and writes a 500 with err as details, credentials stripped.
func (h *DatabaseHandler) serviceError(w http.ResponseWriter, message string, err error) {
	sanitized := logging.SanitizeError(err)
	h.logger.Error(message, zap.String("error", sanitized))
	if err := ErrorWithDetails(w, http.StatusInternalServerError, message, errors.New(sanitized)); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
