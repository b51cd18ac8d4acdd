package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rfontan/pointly/go/internal/poker"
)

// WebSocketHandler handles WebSocket upgrade requests for poker rooms.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	auth              Authorizer
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, auth Authorizer) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		auth:              auth,
	}
}

// HandlePokerConnection handles WebSocket connections for a project's room.
// The caller identity comes from the auth layer (X-User-ID header, or user_id
// query parameter for development), and membership is checked before the
// upgrade so a non-member never occupies a room slot.
func (h *WebSocketHandler) HandlePokerConnection(w http.ResponseWriter, r *http.Request) {
	projectIDStr := r.URL.Query().Get("project_id")
	if projectIDStr == "" {
		http.Error(w, "project_id is required", http.StatusBadRequest)
		return
	}
	projectID, err := uuid.Parse(projectIDStr)
	if err != nil {
		http.Error(w, "invalid project_id format", http.StatusBadRequest)
		return
	}

	userID, ok := poker.CallerID(r)
	if !ok {
		http.Error(w, "caller identity is required", http.StatusUnauthorized)
		return
	}

	if err := h.auth.Authorize(r.Context(), projectID, userID); err != nil {
		log.Warn().
			Str("project_id", projectID.String()).
			Str("user_id", userID.String()).
			Msg("room join denied")
		http.Error(w, "not a project member", http.StatusForbidden)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID, projectID); err != nil {
		log.Error().
			Err(err).
			Str("project_id", projectID.String()).
			Str("user_id", userID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns statistics about active room connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, rooms := h.connectionManager.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"total_connections": total,
		"active_rooms":      len(rooms),
		"room_connections":  rooms,
	})
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/poker", h.HandlePokerConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
